package alerts

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/odyssey-erp/odyssey-hotel/internal/inventory"
	"github.com/odyssey-erp/odyssey-hotel/internal/observability"
	"github.com/odyssey-erp/odyssey-hotel/internal/preferences"
	"github.com/odyssey-erp/odyssey-hotel/internal/rbac"
	"github.com/odyssey-erp/odyssey-hotel/internal/sound"
)

// SnapshotFeed is the inventory cache as seen by the alert service.
type SnapshotFeed interface {
	SnapshotSource
	Subscribe(id string) (<-chan inventory.Snapshot, func())
}

// Notice is a toast for one newly visible alert.
type Notice struct {
	Kind     sound.Kind      `json:"kind"`
	ItemID   string          `json:"item_id"`
	ItemName string          `json:"item_name"`
	Level    inventory.Level `json:"level"`
	Priority rbac.Priority   `json:"priority"`
	Message  string          `json:"message"`
}

// Notifier delivers views and toasts to a session's clients.
type Notifier interface {
	PushView(sessionID string, view View)
	Notify(sessionID string, notice Notice)
}

// Player plays audible cues to the listed sessions.
type Player interface {
	PlayNotification(kind sound.Kind, sessions ...string)
}

// ServiceConfig groups the service collaborators. Nil members are skipped.
type ServiceConfig struct {
	Preferences *preferences.Store
	Notifier    Notifier
	Player      Player
	Logger      *slog.Logger
	Metrics     *observability.Pipeline
	Language    language.Tag
}

// Service tracks sessions and announces alerts as the inventory changes.
type Service struct {
	feed     SnapshotFeed
	prefs    *preferences.Store
	notifier Notifier
	player   Player
	logger   *slog.Logger
	metrics  *observability.Pipeline
	printer  *message.Printer

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewService builds a Service over feed.
func NewService(feed SnapshotFeed, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	prefs := cfg.Preferences
	if prefs == nil {
		prefs = preferences.NewStore()
	}
	tag := cfg.Language
	if tag == language.Und {
		tag = language.English
	}
	s := &Service{
		feed:     feed,
		prefs:    prefs,
		notifier: cfg.Notifier,
		player:   cfg.Player,
		logger:   logger,
		metrics:  cfg.Metrics,
		printer:  message.NewPrinter(tag),
		sessions: make(map[string]*Session),
	}
	prefs.Watch(s.onPreferences)
	return s
}

// Session returns the session for id, creating it on first use. The role is
// refreshed on every call since it comes from the request.
func (s *Service) Session(id string, role rbac.Role) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.SetRole(role)
		return sess
	}
	sess := NewSession(id, role, s.feed, s.prefs)
	s.sessions[id] = sess
	return sess
}

// Lookup returns an existing session.
func (s *Service) Lookup(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// EndSession resets and forgets a session.
func (s *Service) EndSession(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		sess.Reset()
	}
}

// Dismiss hides an alert for a session and pushes the updated view.
func (s *Service) Dismiss(sess *Session, itemID string) (View, bool) {
	ok := sess.DismissAlert(itemID)
	view := sess.View()
	if ok && s.notifier != nil {
		s.notifier.PushView(sess.ID(), view)
	}
	return view, ok
}

// Run consumes cache snapshots until ctx is done or the cache closes.
func (s *Service) Run(ctx context.Context) error {
	ch, cancel := s.feed.Subscribe("alerts")
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-ch:
			if !ok {
				return nil
			}
			s.Evaluate(snap)
		}
	}
}

// Evaluate pushes snapshot-derived views to every session and announces alerts
// each session has not seen in their current state.
func (s *Service) Evaluate(snap inventory.Snapshot) {
	critical, low := Count(snap)
	s.metrics.SetAlertCounts(critical, low)

	s.mu.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	cues := make(map[sound.Kind][]string)
	for _, sess := range sessions {
		view := sess.viewOf(snap)
		if s.notifier != nil {
			s.notifier.PushView(sess.ID(), view)
		}
		fresh := sess.fresh(view, snap)
		if len(fresh) == 0 {
			continue
		}
		if view.Preferences.ToastEnabled && s.notifier != nil {
			for _, a := range fresh {
				s.notifier.Notify(sess.ID(), s.notice(a, view.Permissions.Priority))
			}
		}
		if view.Preferences.SoundEnabled {
			kind := cueFor(fresh)
			cues[kind] = append(cues[kind], sess.ID())
		}
		s.logger.Debug("alerts announced", slog.String("session_id", sess.ID()), slog.Int("count", len(fresh)))
	}
	if s.player == nil {
		return
	}
	for _, kind := range []sound.Kind{sound.KindCritical, sound.KindWarning} {
		if targets := cues[kind]; len(targets) > 0 {
			sort.Strings(targets)
			s.player.PlayNotification(kind, targets...)
		}
	}
}

// Cue plays kind to the given sessions that have sound enabled. With no ids
// it targets every known session with sound enabled.
func (s *Service) Cue(kind sound.Kind, sessionIDs ...string) {
	if s.player == nil {
		return
	}
	s.mu.RLock()
	known := make([]string, 0, len(s.sessions))
	if len(sessionIDs) == 0 {
		for id := range s.sessions {
			known = append(known, id)
		}
	} else {
		for _, id := range sessionIDs {
			if _, ok := s.sessions[id]; ok {
				known = append(known, id)
			}
		}
	}
	s.mu.RUnlock()

	var targets []string
	for _, id := range known {
		if s.prefs.Get(id).SoundEnabled {
			targets = append(targets, id)
		}
	}
	if len(targets) == 0 {
		return
	}
	sort.Strings(targets)
	s.player.PlayNotification(kind, targets...)
}

func (s *Service) onPreferences(sessionID string, _ preferences.Preferences) {
	if s.notifier == nil {
		return
	}
	sess, ok := s.Lookup(sessionID)
	if !ok {
		return
	}
	s.notifier.PushView(sessionID, sess.View())
}

func (s *Service) notice(a Alert, priority rbac.Priority) Notice {
	n := Notice{
		Kind:     kindFor(a.Level),
		ItemID:   a.ID,
		ItemName: a.ItemName,
		Level:    a.Level,
		Priority: priority,
	}
	if a.Level == inventory.LevelCritical {
		n.Message = s.printer.Sprintf("%s is out of stock", a.ItemName)
	} else {
		n.Message = s.printer.Sprintf("%s is running low: %.2f %s left (minimum %.2f)", a.ItemName, a.CurrentQuantity, a.Unit, a.MinThreshold)
	}
	return n
}

func kindFor(level inventory.Level) sound.Kind {
	if level == inventory.LevelCritical {
		return sound.KindCritical
	}
	return sound.KindWarning
}

func cueFor(alerts []Alert) sound.Kind {
	for _, a := range alerts {
		if a.Level == inventory.LevelCritical {
			return sound.KindCritical
		}
	}
	return sound.KindWarning
}
