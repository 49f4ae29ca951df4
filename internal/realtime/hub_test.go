package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-hotel/internal/alerts"
	"github.com/odyssey-erp/odyssey-hotel/internal/rbac"
	"github.com/odyssey-erp/odyssey-hotel/internal/shared"
	"github.com/odyssey-erp/odyssey-hotel/internal/sound"
)

func startHub(t *testing.T, cfg HubConfig) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(cfg)
	srv := httptest.NewServer(rbac.Middleware{}.Identify(hub))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, session string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	header.Set(rbac.HeaderSessionID, session)
	header.Set(rbac.HeaderRole, "manager")
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame map[string]json.RawMessage
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestHubRoutesFramesBySession(t *testing.T) {
	hub, srv := startHub(t, HubConfig{})
	a := dial(t, srv, "front-desk")
	b := dial(t, srv, "kitchen")
	require.Eventually(t, func() bool { return hub.Clients("front-desk") == 1 && hub.Clients("kitchen") == 1 }, time.Second, 5*time.Millisecond)

	hub.Notify("kitchen", alerts.Notice{ItemID: "flour", Message: "Flour is out of stock"})
	frame := readFrame(t, b)
	require.JSONEq(t, `"notice"`, string(frame["type"]))
	require.Contains(t, string(frame["data"]), "Flour is out of stock")

	hub.PushView("front-desk", alerts.View{Version: 7})
	frame = readFrame(t, a)
	require.JSONEq(t, `"view"`, string(frame["type"]))
	require.Contains(t, string(frame["data"]), `"version":7`)
}

func TestSoundDeviceBroadcastsCues(t *testing.T) {
	hub, srv := startHub(t, HubConfig{})
	a := dial(t, srv, "s1")
	b := dial(t, srv, "s2")
	require.Eventually(t, func() bool { return hub.Clients("s1") == 1 && hub.Clients("s2") == 1 }, time.Second, 5*time.Millisecond)

	dev := NewSoundDevice(hub)
	require.False(t, dev.Suspended())
	require.NoError(t, dev.Play(context.Background(), sound.Cue{Kind: sound.KindCritical, Tones: sound.Expand(sound.KindCritical), Volume: 0.5}))
	for _, conn := range []*websocket.Conn{a, b} {
		frame := readFrame(t, conn)
		require.JSONEq(t, `"cue"`, string(frame["type"]))
		require.Contains(t, string(frame["data"]), `"kind":"critical"`)
	}
}

func TestSoundDeviceTargetsCueSessions(t *testing.T) {
	hub, srv := startHub(t, HubConfig{})
	loud := dial(t, srv, "loud")
	muted := dial(t, srv, "muted")
	require.Eventually(t, func() bool { return hub.Clients("loud") == 1 && hub.Clients("muted") == 1 }, time.Second, 5*time.Millisecond)

	dev := NewSoundDevice(hub)
	require.NoError(t, dev.Play(context.Background(), sound.Cue{Kind: sound.KindWarning, Tones: sound.Expand(sound.KindWarning), Volume: 1, Sessions: []string{"loud"}}))
	hub.PushView("muted", alerts.View{Version: 3})

	frame := readFrame(t, loud)
	require.JSONEq(t, `"cue"`, string(frame["type"]))
	require.NotContains(t, string(frame["data"]), "sessions")

	// The view pushed after the cue is the first thing muted sees.
	frame = readFrame(t, muted)
	require.JSONEq(t, `"view"`, string(frame["type"]))
}

func TestHubDispatchesClientMessages(t *testing.T) {
	got := make(chan Message, 1)
	connected := make(chan shared.Identity, 1)
	_, srv := startHub(t, HubConfig{
		OnConnect: func(id shared.Identity) { connected <- id },
		OnMessage: func(id shared.Identity, msg Message) {
			if id.SessionID == "s1" {
				got <- msg
			}
		},
	})
	conn := dial(t, srv, "s1")
	id := <-connected
	require.Equal(t, "manager", id.Role)

	require.NoError(t, conn.WriteJSON(Message{Type: "dismiss", ItemID: "soap"}))
	select {
	case msg := <-got:
		require.Equal(t, Message{Type: "dismiss", ItemID: "soap"}, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("message not dispatched")
	}
}

func TestHubRejectsAnonymous(t *testing.T) {
	_, srv := startHub(t, HubConfig{})
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://backoffice.example.com"})
	req := httptest.NewRequest(http.MethodGet, "http://api.example.com/ws", nil)

	req.Header.Set("Origin", "https://backoffice.example.com")
	require.True(t, check(req))
	req.Header.Set("Origin", "https://evil.example.net")
	require.False(t, check(req))
	req.Header.Set("Origin", "http://api.example.com")
	require.True(t, check(req))
}
