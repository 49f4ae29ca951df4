// Package preferences holds per-session notification preferences.
// State lives for the process lifetime only; a reset restores the defaults.
package preferences

import (
	"sync"
)

// Preferences controls how alerts are surfaced to a session.
type Preferences struct {
	SoundEnabled bool `json:"sound_enabled"`
	ToastEnabled bool `json:"toast_enabled"`
	CriticalOnly bool `json:"critical_only"`
}

// Defaults returns the preferences of a fresh session.
func Defaults() Preferences {
	return Preferences{SoundEnabled: true, ToastEnabled: true, CriticalOnly: false}
}

// Partial is a shallow update; nil fields are left unchanged.
type Partial struct {
	SoundEnabled *bool `json:"sound_enabled,omitempty"`
	ToastEnabled *bool `json:"toast_enabled,omitempty"`
	CriticalOnly *bool `json:"critical_only,omitempty"`
}

// Apply merges p into prefs.
func (p Partial) Apply(prefs Preferences) Preferences {
	if p.SoundEnabled != nil {
		prefs.SoundEnabled = *p.SoundEnabled
	}
	if p.ToastEnabled != nil {
		prefs.ToastEnabled = *p.ToastEnabled
	}
	if p.CriticalOnly != nil {
		prefs.CriticalOnly = *p.CriticalOnly
	}
	return prefs
}

// Bool is a helper for building partials.
func Bool(v bool) *bool { return &v }

// WatchFunc observes preference changes for a session.
type WatchFunc func(sessionID string, prefs Preferences)

// Store keeps preferences per session id.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]Preferences
	watchers []WatchFunc
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]Preferences)}
}

// Get returns the preferences of sessionID, defaults when never updated.
func (s *Store) Get(sessionID string) Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if prefs, ok := s.sessions[sessionID]; ok {
		return prefs
	}
	return Defaults()
}

// Update merges partial into the session preferences and returns the result.
// Applying the same partial again yields the same state.
func (s *Store) Update(sessionID string, partial Partial) Preferences {
	s.mu.Lock()
	prefs, ok := s.sessions[sessionID]
	if !ok {
		prefs = Defaults()
	}
	prefs = partial.Apply(prefs)
	s.sessions[sessionID] = prefs
	watchers := append([]WatchFunc(nil), s.watchers...)
	s.mu.Unlock()

	for _, w := range watchers {
		w(sessionID, prefs)
	}
	return prefs
}

// Reset drops the session state so the next Get returns defaults.
func (s *Store) Reset(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	watchers := append([]WatchFunc(nil), s.watchers...)
	s.mu.Unlock()

	for _, w := range watchers {
		w(sessionID, Defaults())
	}
}

// Watch registers fn to run after every update or reset.
func (s *Store) Watch(fn WatchFunc) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
}
