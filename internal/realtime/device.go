package realtime

import (
	"context"

	"github.com/odyssey-erp/odyssey-hotel/internal/sound"
)

// SoundDevice plays cues by sending them to connected browsers, which
// synthesise the tones locally.
type SoundDevice struct {
	hub *Hub
}

// NewSoundDevice adapts hub to sound.Device.
func NewSoundDevice(hub *Hub) *SoundDevice {
	return &SoundDevice{hub: hub}
}

// Suspended is always false; browsers unlock their own audio.
func (d *SoundDevice) Suspended() bool { return false }

// Resume is a no-op.
func (d *SoundDevice) Resume(context.Context) error { return nil }

// Play sends the cue to its target sessions, or to everyone when it has none.
func (d *SoundDevice) Play(_ context.Context, cue sound.Cue) error {
	frame := Frame{Type: FrameCue, Data: cue}
	if len(cue.Sessions) == 0 {
		d.hub.Broadcast(frame)
		return nil
	}
	for _, id := range cue.Sessions {
		d.hub.SendTo(id, frame)
	}
	return nil
}

// Close is a no-op; the hub is closed by its owner.
func (d *SoundDevice) Close() error { return nil }
