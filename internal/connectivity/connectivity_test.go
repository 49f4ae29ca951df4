package connectivity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProbeHealthEndpoint(t *testing.T) {
	var method atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method.Store(r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res := NewHTTPProbe(srv.Client(), srv.URL+"/health", srv.URL, time.Second).Probe(context.Background())
	require.True(t, res.Reachable)
	require.NoError(t, res.Err)
	require.Equal(t, srv.URL+"/health", res.Endpoint)
	require.Equal(t, http.MethodHead, method.Load())
	require.GreaterOrEqual(t, res.LatencyMS, int64(0))
}

func TestProbeFallsBackToRoot(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	res := NewHTTPProbe(srv.Client(), srv.URL+"/health", srv.URL+"/", time.Second).Probe(context.Background())
	require.True(t, res.Reachable)
	require.Equal(t, srv.URL+"/", res.Endpoint)
}

func TestProbeTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	res := NewHTTPProbe(srv.Client(), srv.URL+"/health", "", 50*time.Millisecond).Probe(context.Background())
	require.False(t, res.Reachable)
	require.Error(t, res.Err)
}

type scriptedProbe struct {
	mu      sync.Mutex
	results []bool
	calls   int
}

func (p *scriptedProbe) Probe(context.Context) Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	ok := p.results[len(p.results)-1]
	if p.calls < len(p.results) {
		ok = p.results[p.calls]
	}
	p.calls++
	if !ok {
		return Result{Err: errors.New("dial tcp: connection refused")}
	}
	return Result{Reachable: true, LatencyMS: 12, Latency: 12 * time.Millisecond, Endpoint: "health"}
}

func (p *scriptedProbe) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestMonitorFlipsAndNotifies(t *testing.T) {
	probe := &scriptedProbe{results: []bool{true, false, false, true}}
	m := NewMonitor(probe, MonitorConfig{Interval: time.Hour})
	var changes []bool
	m.OnChange(func(s Status) { changes = append(changes, s.Connected) })

	ctx := context.Background()
	require.True(t, m.Check(ctx).Connected)
	down := m.Check(ctx)
	require.False(t, down.Connected)
	require.Contains(t, down.Error, "connection refused")
	m.Check(ctx)
	m.Check(ctx)

	require.Equal(t, []bool{false, true}, changes)
	require.Equal(t, int64(12), m.Status().LatencyMS)
}

func TestMonitorFirstProbeIsNotAReconnect(t *testing.T) {
	for _, up := range []bool{true, false} {
		probe := &scriptedProbe{results: []bool{up, up}}
		m := NewMonitor(probe, MonitorConfig{Interval: time.Hour})
		fired := 0
		m.OnChange(func(Status) { fired++ })

		m.Check(context.Background())
		m.Check(context.Background())
		require.Zero(t, fired)
		require.Equal(t, up, m.Status().Connected)
	}
}

func TestTriggerOnlineProbesImmediately(t *testing.T) {
	probe := &scriptedProbe{results: []bool{false, true}}
	m := NewMonitor(probe, MonitorConfig{Interval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool { return probe.count() == 1 }, time.Second, 5*time.Millisecond)
	require.False(t, m.Status().Connected)

	m.TriggerOnline()
	require.Eventually(t, func() bool { return m.Status().Connected }, time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestHandlerReportsStatus(t *testing.T) {
	probe := &scriptedProbe{results: []bool{false}}
	m := NewMonitor(probe, MonitorConfig{})
	m.Check(context.Background())

	rec := httptest.NewRecorder()
	h := NewHandler(m)
	h.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/connectivity", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), `"connected":false`)

	rec = httptest.NewRecorder()
	h.handleOnline(rec, httptest.NewRequest(http.MethodPost, "/connectivity/online", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
}
