package sound

import (
	"context"
	"log/slog"
	"sync"
)

// Cue is what the manager hands to a device for one notification.
type Cue struct {
	Kind   Kind    `json:"kind"`
	Tones  []Tone  `json:"tones"`
	Volume float64 `json:"volume"`
	// Sessions limits delivery on devices that fan out to listeners.
	// Empty means every listener.
	Sessions []string `json:"-"`
}

// Device is the audio output. Implementations may start suspended until Resume.
type Device interface {
	Suspended() bool
	Resume(ctx context.Context) error
	Play(ctx context.Context, cue Cue) error
	Close() error
}

// Opener acquires the device on first use.
type Opener func(ctx context.Context) (Device, error)

// LogDevice writes cues to a logger. Used on headless hosts.
type LogDevice struct {
	logger *slog.Logger

	mu        sync.Mutex
	suspended bool
}

// NewLogDevice constructs a LogDevice, initially suspended.
func NewLogDevice(logger *slog.Logger) *LogDevice {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDevice{logger: logger, suspended: true}
}

// Suspended reports whether Resume is still pending.
func (d *LogDevice) Suspended() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.suspended
}

// Resume marks the device running.
func (d *LogDevice) Resume(context.Context) error {
	d.mu.Lock()
	d.suspended = false
	d.mu.Unlock()
	return nil
}

// Play logs the cue.
func (d *LogDevice) Play(ctx context.Context, cue Cue) error {
	freqs := make([]float64, len(cue.Tones))
	for i, t := range cue.Tones {
		freqs[i] = t.Frequency
	}
	d.logger.LogAttrs(ctx, slog.LevelInfo, "sound cue",
		slog.String("kind", string(cue.Kind)),
		slog.Any("frequencies", freqs),
		slog.Float64("volume", cue.Volume),
		slog.Duration("length", Length(cue.Tones)),
		slog.Int("sessions", len(cue.Sessions)),
	)
	return nil
}

// Close is a no-op.
func (d *LogDevice) Close() error { return nil }

// Multi fans a cue out to several devices. The first error is returned after all were tried.
type Multi []Device

func (m Multi) Suspended() bool {
	for _, d := range m {
		if d.Suspended() {
			return true
		}
	}
	return false
}

func (m Multi) Resume(ctx context.Context) error {
	var first error
	for _, d := range m {
		if !d.Suspended() {
			continue
		}
		if err := d.Resume(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) Play(ctx context.Context, cue Cue) error {
	var first error
	for _, d := range m {
		if err := d.Play(ctx, cue); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) Close() error {
	var first error
	for _, d := range m {
		if err := d.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
