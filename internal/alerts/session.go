package alerts

import (
	"sync"

	"github.com/odyssey-erp/odyssey-hotel/internal/inventory"
	"github.com/odyssey-erp/odyssey-hotel/internal/preferences"
	"github.com/odyssey-erp/odyssey-hotel/internal/rbac"
)

// SnapshotSource is the read side of the inventory cache.
type SnapshotSource interface {
	Snapshot() inventory.Snapshot
}

// View is the complete outward contract for one session.
type View struct {
	Critical    []Alert                 `json:"critical"`
	LowStock    []Alert                 `json:"low_stock"`
	Permissions rbac.Permissions        `json:"permissions"`
	Preferences preferences.Preferences `json:"preferences"`
	Version     uint64                  `json:"version"`
}

// Session carries the per-viewer state: role, preferences and dismissals.
type Session struct {
	id     string
	source SnapshotSource
	prefs  *preferences.Store

	mu        sync.Mutex
	role      rbac.Role
	dismissed DismissedSet
	announced DismissedSet
}

// NewSession builds a Session reading snapshots from source.
func NewSession(id string, role rbac.Role, source SnapshotSource, prefs *preferences.Store) *Session {
	return &Session{
		id:        id,
		source:    source,
		prefs:     prefs,
		role:      role,
		dismissed: make(DismissedSet),
		announced: make(DismissedSet),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Role returns the role the session was last seen with.
func (s *Session) Role() rbac.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

// SetRole updates the session role.
func (s *Session) SetRole(role rbac.Role) {
	s.mu.Lock()
	s.role = role
	s.mu.Unlock()
}

// Preferences returns the session preferences.
func (s *Session) Preferences() preferences.Preferences {
	if s.prefs == nil {
		return preferences.Defaults()
	}
	return s.prefs.Get(s.id)
}

// View renders the current snapshot for this session.
func (s *Session) View() View {
	return s.viewOf(s.snapshot())
}

func (s *Session) viewOf(snap inventory.Snapshot) View {
	s.mu.Lock()
	perms := rbac.Resolve(s.role)
	s.dismissed.Prune(snap)
	prefs := s.Preferences()
	res := Aggregate(snap, perms, prefs, s.dismissed)
	s.mu.Unlock()
	return View{
		Critical:    res.Critical,
		LowStock:    res.LowStock,
		Permissions: perms,
		Preferences: prefs,
		Version:     snap.Version,
	}
}

// DismissAlert hides the item's current alert state. It reports false when the
// item is unknown or not alerting. The store is never touched.
func (s *Session) DismissAlert(itemID string) bool {
	e, ok := s.snapshot().Lookup(itemID)
	if !ok || e.Level == inventory.LevelNormal {
		return false
	}
	s.mu.Lock()
	s.dismissed[DismissKey{ItemID: e.Item.ID, Level: e.Level, StateSeq: e.StateSeq}] = struct{}{}
	s.mu.Unlock()
	return true
}

// UpdatePreferences merges partial into the session preferences.
func (s *Session) UpdatePreferences(partial preferences.Partial) preferences.Preferences {
	if s.prefs == nil {
		return partial.Apply(preferences.Defaults())
	}
	return s.prefs.Update(s.id, partial)
}

// Reset clears dismissals and preferences, as a page reload would.
func (s *Session) Reset() {
	s.mu.Lock()
	s.dismissed = make(DismissedSet)
	s.announced = make(DismissedSet)
	s.mu.Unlock()
	if s.prefs != nil {
		s.prefs.Reset(s.id)
	}
}

// fresh returns the alerts of view not announced before and remembers them.
// A remembered state is forgotten once the item moves on, so the next
// transition announces again.
func (s *Session) fresh(view View, snap inventory.Snapshot) []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.announced.Prune(snap)
	var out []Alert
	for _, list := range [][]Alert{view.Critical, view.LowStock} {
		for _, a := range list {
			key := a.Key()
			if s.announced.Has(key) {
				continue
			}
			s.announced[key] = struct{}{}
			out = append(out, a)
		}
	}
	return out
}

func (s *Session) snapshot() inventory.Snapshot {
	if s.source == nil {
		return inventory.Snapshot{}
	}
	return s.source.Snapshot()
}
