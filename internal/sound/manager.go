package sound

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/odyssey-erp/odyssey-hotel/internal/observability"
)

// Config seeds the manager state.
type Config struct {
	Enabled bool
	Volume  float64
	Logger  *slog.Logger
	Metrics *observability.Pipeline
}

// Manager owns the process-wide audio device. Create one in main and pass it around.
type Manager struct {
	open    Opener
	logger  *slog.Logger
	metrics *observability.Pipeline

	mu      sync.Mutex
	device  Device
	resumed bool
	enabled bool
	volume  float64
	closed  bool

	playMu   sync.Mutex
	inflight sync.WaitGroup
}

// NewManager builds a Manager. The device is opened on first play.
func NewManager(open Opener, cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		open:    open,
		logger:  logger,
		metrics: cfg.Metrics,
		enabled: cfg.Enabled,
		volume:  clampVolume(cfg.Volume),
	}
}

// SetEnabled toggles playback for subsequent calls.
func (m *Manager) SetEnabled(enabled bool) {
	m.mu.Lock()
	m.enabled = enabled
	m.mu.Unlock()
}

// SetVolume sets the gain for subsequent calls, clamped to [0, 1].
func (m *Manager) SetVolume(volume float64) {
	m.mu.Lock()
	m.volume = clampVolume(volume)
	m.mu.Unlock()
}

// Settings returns the current enabled flag and volume.
func (m *Manager) Settings() (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled, m.volume
}

// Resume wakes a suspended device. Only the first successful call reaches the device.
func (m *Manager) Resume(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	dev, err := m.deviceLocked(ctx)
	if err != nil {
		return err
	}
	return m.resumeLocked(ctx, dev)
}

// PlayNotification plays kind in the background. It never blocks and never fails;
// problems are logged. Sessions, when given, restrict which listeners hear it.
func (m *Manager) PlayNotification(kind Kind, sessions ...string) {
	enabled, volume := m.Settings()
	if !enabled {
		m.metrics.SoundCue(string(kind), "muted")
		return
	}
	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		m.play(context.Background(), kind, volume, sessions)
	}()
}

// PlaySequence plays kinds in order with delay between cues, in the background.
// Cancelling ctx skips the cues that have not started; a cue in progress finishes.
func (m *Manager) PlaySequence(ctx context.Context, kinds []Kind, delay time.Duration, sessions ...string) {
	enabled, volume := m.Settings()
	if !enabled || len(kinds) == 0 {
		for _, k := range kinds {
			m.metrics.SoundCue(string(k), "muted")
		}
		return
	}
	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		for i, kind := range kinds {
			if i > 0 && delay > 0 {
				timer := time.NewTimer(delay)
				select {
				case <-ctx.Done():
					timer.Stop()
				case <-timer.C:
				}
			}
			if ctx.Err() != nil {
				for _, k := range kinds[i:] {
					m.metrics.SoundCue(string(k), "cancelled")
				}
				return
			}
			// The cue itself runs detached so cancellation cannot cut it short.
			m.play(context.WithoutCancel(ctx), kind, volume, sessions)
		}
	}()
}

// Wait blocks until background playback has finished.
func (m *Manager) Wait() {
	m.inflight.Wait()
}

// Close waits for playback and releases the device.
func (m *Manager) Close() error {
	m.Wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.device == nil {
		return nil
	}
	err := m.device.Close()
	m.device = nil
	return err
}

func (m *Manager) play(ctx context.Context, kind Kind, volume float64, sessions []string) {
	m.mu.Lock()
	dev, err := m.deviceLocked(ctx)
	if err == nil {
		if rerr := m.resumeLocked(ctx, dev); rerr != nil {
			m.logger.Warn("resume audio device", slog.Any("error", rerr))
		}
	}
	m.mu.Unlock()
	if err != nil {
		m.metrics.SoundCue(string(kind), "failed")
		m.logger.Warn("open audio device", slog.String("kind", string(kind)), slog.Any("error", err))
		return
	}

	m.playMu.Lock()
	defer m.playMu.Unlock()
	if err := dev.Play(ctx, Cue{Kind: kind, Tones: Expand(kind), Volume: volume, Sessions: sessions}); err != nil {
		m.metrics.SoundCue(string(kind), "failed")
		m.logger.Warn("play sound cue", slog.String("kind", string(kind)), slog.Any("error", err))
		return
	}
	m.metrics.SoundCue(string(kind), "played")
}

var errClosed = errors.New("sound: manager closed")

func (m *Manager) deviceLocked(ctx context.Context) (Device, error) {
	if m.closed {
		return nil, errClosed
	}
	if m.device != nil {
		return m.device, nil
	}
	if m.open == nil {
		return nil, errors.New("sound: no device opener")
	}
	dev, err := m.open(ctx)
	if err != nil {
		return nil, err
	}
	m.device = dev
	return dev, nil
}

func (m *Manager) resumeLocked(ctx context.Context, dev Device) error {
	if m.resumed {
		return nil
	}
	if dev.Suspended() {
		if err := dev.Resume(ctx); err != nil {
			return err
		}
	}
	m.resumed = true
	return nil
}

func clampVolume(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
