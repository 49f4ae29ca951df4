package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAuditIncomplete marks an entry missing its action or target.
var ErrAuditIncomplete = errors.New("audit entry requires action, entity and entity id")

// AuditLog is one mutation recorded against an entity.
type AuditLog struct {
	ActorID  string
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

func (l AuditLog) check() error {
	if l.Action == "" || l.Entity == "" || l.EntityID == "" {
		return ErrAuditIncomplete
	}
	return nil
}

// AuditLogger appends entries to the audit_logs table.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

const insertAudit = `INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`

// Record persists the entry. A zero At uses the database clock.
func (l *AuditLogger) Record(ctx context.Context, entry AuditLog) error {
	if l == nil || l.pool == nil {
		return errors.New("audit logger not initialised")
	}
	if err := entry.check(); err != nil {
		return err
	}
	var meta []byte
	if len(entry.Meta) > 0 {
		var err error
		if meta, err = json.Marshal(entry.Meta); err != nil {
			return fmt.Errorf("encode audit meta: %w", err)
		}
	}
	var at *time.Time
	if !entry.At.IsZero() {
		at = &entry.At
	}
	_, err := l.pool.Exec(ctx, insertAudit, entry.ActorID, entry.Action, entry.Entity, entry.EntityID, meta, at)
	return err
}

// MemoryAuditLog keeps the most recent entries in process, for the memory
// store driver.
type MemoryAuditLog struct {
	mu      sync.Mutex
	limit   int
	entries []AuditLog
	now     func() time.Time
}

// NewMemoryAuditLog keeps at most limit entries; limit <= 0 means 1000.
func NewMemoryAuditLog(limit int) *MemoryAuditLog {
	if limit <= 0 {
		limit = 1000
	}
	return &MemoryAuditLog{limit: limit, now: time.Now}
}

// Record appends the entry, evicting the oldest when full.
func (m *MemoryAuditLog) Record(_ context.Context, entry AuditLog) error {
	if err := entry.check(); err != nil {
		return err
	}
	if entry.At.IsZero() {
		entry.At = m.now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == m.limit {
		copy(m.entries, m.entries[1:])
		m.entries = m.entries[:len(m.entries)-1]
	}
	m.entries = append(m.entries, entry)
	return nil
}

// Entries returns the retained entries for entityID, oldest first. An empty
// id returns everything.
func (m *MemoryAuditLog) Entries(entityID string) []AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AuditLog, 0, len(m.entries))
	for _, e := range m.entries {
		if entityID == "" || e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out
}
