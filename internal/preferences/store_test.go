package preferences

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	s := NewStore()
	require.Equal(t, Preferences{SoundEnabled: true, ToastEnabled: true, CriticalOnly: false}, s.Get("s1"))
}

func TestUpdateIsIdempotent(t *testing.T) {
	s := NewStore()
	partial := Partial{SoundEnabled: Bool(false)}

	once := s.Update("s1", partial)
	twice := s.Update("s1", partial)
	require.Equal(t, once, twice)
	require.Equal(t, Preferences{SoundEnabled: false, ToastEnabled: true}, s.Get("s1"))
}

func TestUpdateMergesShallowly(t *testing.T) {
	s := NewStore()
	s.Update("s1", Partial{CriticalOnly: Bool(true)})
	s.Update("s1", Partial{ToastEnabled: Bool(false)})

	require.Equal(t, Preferences{SoundEnabled: true, ToastEnabled: false, CriticalOnly: true}, s.Get("s1"))
	require.Equal(t, Defaults(), s.Get("s2"))
}

func TestResetRestoresDefaults(t *testing.T) {
	s := NewStore()
	s.Update("s1", Partial{SoundEnabled: Bool(false)})
	s.Reset("s1")
	require.Equal(t, Defaults(), s.Get("s1"))
}

func TestWatchersSeeNewState(t *testing.T) {
	s := NewStore()
	var seen []Preferences
	s.Watch(func(sessionID string, prefs Preferences) {
		require.Equal(t, "s1", sessionID)
		seen = append(seen, prefs)
	})
	s.Update("s1", Partial{CriticalOnly: Bool(true)})
	s.Reset("s1")

	require.Len(t, seen, 2)
	require.True(t, seen[0].CriticalOnly)
	require.Equal(t, Defaults(), seen[1])
}
