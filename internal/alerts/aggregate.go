// Package alerts turns inventory snapshots into per-session alert views.
package alerts

import (
	"github.com/odyssey-erp/odyssey-hotel/internal/inventory"
	"github.com/odyssey-erp/odyssey-hotel/internal/preferences"
	"github.com/odyssey-erp/odyssey-hotel/internal/rbac"
)

// Alert is an item that needs attention.
type Alert struct {
	inventory.Item
	Level    inventory.Level `json:"level"`
	StateSeq uint64          `json:"state_seq"`
}

// Key identifies the alert state a dismissal applies to.
func (a Alert) Key() DismissKey {
	return DismissKey{ItemID: a.ID, Level: a.Level, StateSeq: a.StateSeq}
}

// Result holds the alert lists in snapshot order.
type Result struct {
	Critical []Alert `json:"critical"`
	LowStock []Alert `json:"low_stock"`
}

// DismissKey binds a dismissal to one classification of one item.
// A new level or a new StateSeq no longer matches, so the alert re-arms.
type DismissKey struct {
	ItemID   string
	Level    inventory.Level
	StateSeq uint64
}

// DismissedSet is a session-local set of dismissed alert states.
type DismissedSet map[DismissKey]struct{}

// Has reports whether key was dismissed. A nil set has nothing.
func (d DismissedSet) Has(key DismissKey) bool {
	if d == nil {
		return false
	}
	_, ok := d[key]
	return ok
}

// Prune drops keys that no longer describe an item's current state.
func (d DismissedSet) Prune(snap inventory.Snapshot) {
	for key := range d {
		e, ok := snap.Lookup(key.ItemID)
		if !ok || e.Level != key.Level || e.StateSeq != key.StateSeq {
			delete(d, key)
		}
	}
}

// Aggregate builds the alert lists for one viewer. It never fails: an empty
// snapshot or a restricted role yields empty lists.
func Aggregate(snap inventory.Snapshot, perms rbac.Permissions, prefs preferences.Preferences, dismissed DismissedSet) Result {
	res := Result{Critical: []Alert{}, LowStock: []Alert{}}
	showLow := perms.CanViewAll && !prefs.CriticalOnly
	for _, e := range snap.Entries {
		alert := Alert{Item: e.Item, Level: e.Level, StateSeq: e.StateSeq}
		if dismissed.Has(alert.Key()) {
			continue
		}
		switch e.Level {
		case inventory.LevelCritical:
			res.Critical = append(res.Critical, alert)
		case inventory.LevelLow:
			if showLow {
				res.LowStock = append(res.LowStock, alert)
			}
		}
	}
	return res
}

// Count returns how many items sit at each alerting level, ignoring viewers.
func Count(snap inventory.Snapshot) (critical, low int) {
	for _, e := range snap.Entries {
		switch e.Level {
		case inventory.LevelCritical:
			critical++
		case inventory.LevelLow:
			low++
		}
	}
	return critical, low
}
