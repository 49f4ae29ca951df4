package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-hotel/internal/changefeed"
	"github.com/odyssey-erp/odyssey-hotel/internal/observability"
)

// Lister is the read side of the store needed by the cache.
type Lister interface {
	List(ctx context.Context, filter Filter) ([]Item, error)
}

// Entry is a mirrored item with its classification.
// StateSeq increases every time the cache observes the item change level.
type Entry struct {
	Item     Item   `json:"item"`
	Level    Level  `json:"level"`
	StateSeq uint64 `json:"state_seq"`
}

// Snapshot is an immutable view of the mirrored items in store order.
type Snapshot struct {
	Entries   []Entry   `json:"entries"`
	Version   uint64    `json:"version"`
	FetchedAt time.Time `json:"fetched_at"`
	index     map[string]int
}

// Lookup finds an entry by item id.
func (s Snapshot) Lookup(id string) (Entry, bool) {
	if s.index == nil {
		for _, e := range s.Entries {
			if e.Item.ID == id {
				return e, true
			}
		}
		return Entry{}, false
	}
	i, ok := s.index[id]
	if !ok {
		return Entry{}, false
	}
	return s.Entries[i], true
}

// Items returns the mirrored items in order.
func (s Snapshot) Items() []Item {
	items := make([]Item, len(s.Entries))
	for i, e := range s.Entries {
		items[i] = e.Item
	}
	return items
}

// NewSnapshot classifies items into a standalone snapshot, mainly for tests and jobs.
func NewSnapshot(items []Item) Snapshot {
	entries := make([]Entry, len(items))
	for i, item := range items {
		entries[i] = Entry{Item: item, Level: Classify(item)}
	}
	return buildSnapshot(entries, 0, time.Time{})
}

func buildSnapshot(entries []Entry, version uint64, at time.Time) Snapshot {
	index := make(map[string]int, len(entries))
	for i, e := range entries {
		index[e.Item.ID] = i
	}
	return Snapshot{Entries: entries, Version: version, FetchedAt: at, index: index}
}

// CacheConfig tunes the cache.
type CacheConfig struct {
	QueueSize int
	Logger    *slog.Logger
	Metrics   *observability.Pipeline
}

// Cache mirrors inventory rows in memory. Change events are applied by a single
// goroutine in arrival order; every applied change publishes a new snapshot.
type Cache struct {
	repo    Lister
	logger  *slog.Logger
	metrics *observability.Pipeline
	events  chan changefeed.Event
	resync  atomic.Bool
	group   singleflight.Group
	now     func() time.Time

	mu      sync.RWMutex
	entries []Entry
	seqs    map[string]uint64
	current Snapshot

	subsMu    sync.Mutex
	subs      map[string]chan Snapshot
	delivered uint64
}

// NewCache constructs a Cache over repo.
func NewCache(repo Lister, cfg CacheConfig) *Cache {
	size := cfg.QueueSize
	if size <= 0 {
		size = 256
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		repo:    repo,
		logger:  logger,
		metrics: cfg.Metrics,
		events:  make(chan changefeed.Event, size),
		now:     func() time.Time { return time.Now().UTC() },
		seqs:    make(map[string]uint64),
		current: buildSnapshot(nil, 0, time.Time{}),
		subs:    make(map[string]chan Snapshot),
	}
}

// Enqueue hands an event to the cache without blocking. When the queue is full
// the event is dropped and a full refetch is scheduled instead.
func (c *Cache) Enqueue(evt changefeed.Event) bool {
	select {
	case c.events <- evt:
		return true
	default:
		c.resync.Store(true)
		c.metrics.EventOverflow()
		c.logger.Warn("inventory event queue full, scheduling refetch", slog.String("op", string(evt.Op)), slog.String("id", evt.ID))
		return false
	}
}

// Run applies queued events until ctx is cancelled. An initial refetch failure is logged, not fatal.
func (c *Cache) Run(ctx context.Context) error {
	if err := c.Refresh(ctx); err != nil {
		c.logger.Warn("initial inventory fetch", slog.Any("error", err))
	}
	for {
		select {
		case <-ctx.Done():
			c.closeSubscribers()
			return ctx.Err()
		case evt := <-c.events:
			c.Apply(ctx, evt)
			if c.resync.CompareAndSwap(true, false) {
				_ = c.Refresh(ctx)
			}
		}
	}
}

// Apply patches the mirror with one event. Rows carried by the event win over
// the mirrored copy; events without a row fall back to a refetch.
func (c *Cache) Apply(ctx context.Context, evt changefeed.Event) {
	if evt.Op == changefeed.OpRefresh {
		_ = c.Refresh(ctx)
		return
	}
	if evt.Table != TableItems {
		return
	}
	switch evt.Op {
	case changefeed.OpDelete:
		c.remove(evt.ID)
	case changefeed.OpInsert, changefeed.OpUpdate:
		if len(evt.Row) == 0 {
			_ = c.Refresh(ctx)
			return
		}
		var item Item
		if err := json.Unmarshal(evt.Row, &item); err != nil {
			c.logger.Warn("decode inventory row, refetching", slog.String("id", evt.ID), slog.Any("error", err))
			_ = c.Refresh(ctx)
			return
		}
		if item.ID == "" {
			item.ID = evt.ID
		}
		c.upsert(item)
	default:
		return
	}
	c.metrics.EventApplied(string(evt.Op))
}

// Refresh refetches every row. On failure the last good snapshot is kept.
// Concurrent calls share one fetch.
func (c *Cache) Refresh(ctx context.Context) error {
	_, err, _ := c.group.Do("refresh", func() (interface{}, error) {
		if c.repo == nil {
			return nil, errors.New("inventory cache: store not configured")
		}
		items, err := c.repo.List(ctx, Filter{})
		if err != nil {
			return nil, err
		}
		c.replace(items)
		return nil, nil
	})
	if err != nil {
		c.metrics.RefreshFailed()
		c.logger.Error("refresh inventory snapshot", slog.Any("error", err))
	}
	return err
}

// Snapshot returns the latest published snapshot.
func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Subscribe registers a consumer. The channel always holds the most recent
// snapshot; older undelivered ones are replaced. The current snapshot is sent
// immediately. Call cancel to unsubscribe.
func (c *Cache) Subscribe(id string) (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	c.subsMu.Lock()
	if old, ok := c.subs[id]; ok {
		close(old)
	}
	c.subs[id] = ch
	ch <- c.Snapshot()
	c.subsMu.Unlock()
	return ch, func() {
		c.subsMu.Lock()
		defer c.subsMu.Unlock()
		if cur, ok := c.subs[id]; ok && cur == ch {
			delete(c.subs, id)
			close(ch)
		}
	}
}

func (c *Cache) upsert(item Item) {
	c.mu.Lock()
	level := Classify(item)
	found := false
	for i, e := range c.entries {
		if e.Item.ID != item.ID {
			continue
		}
		found = true
		seq := e.StateSeq
		if e.Level != level {
			seq++
			c.seqs[item.ID] = seq
		}
		c.entries[i] = Entry{Item: item, Level: level, StateSeq: seq}
		break
	}
	if !found {
		c.entries = append(c.entries, Entry{Item: item, Level: level, StateSeq: c.nextSeq(item.ID)})
	}
	snap := c.publishLocked()
	c.mu.Unlock()
	c.broadcast(snap)
}

func (c *Cache) remove(id string) {
	c.mu.Lock()
	for i, e := range c.entries {
		if e.Item.ID == id {
			c.entries = append(c.entries[:i:i], c.entries[i+1:]...)
			break
		}
	}
	snap := c.publishLocked()
	c.mu.Unlock()
	c.broadcast(snap)
}

func (c *Cache) replace(items []Item) {
	c.mu.Lock()
	prev := make(map[string]Entry, len(c.entries))
	for _, e := range c.entries {
		prev[e.Item.ID] = e
	}
	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		level := Classify(item)
		old, ok := prev[item.ID]
		var seq uint64
		switch {
		case !ok:
			seq = c.nextSeq(item.ID)
		case old.Level != level:
			seq = old.StateSeq + 1
			c.seqs[item.ID] = seq
		default:
			seq = old.StateSeq
		}
		entries = append(entries, Entry{Item: item, Level: level, StateSeq: seq})
	}
	c.entries = entries
	snap := c.publishLocked()
	c.mu.Unlock()
	c.broadcast(snap)
}

// nextSeq returns the seq for an item entering the mirror. Items that were
// deleted and come back get a fresh seq so earlier dismissals do not match.
func (c *Cache) nextSeq(id string) uint64 {
	seq, seen := c.seqs[id]
	if seen {
		seq++
	}
	c.seqs[id] = seq
	return seq
}

func (c *Cache) publishLocked() Snapshot {
	entries := make([]Entry, len(c.entries))
	copy(entries, c.entries)
	snap := buildSnapshot(entries, c.current.Version+1, c.now())
	c.current = snap
	c.metrics.SnapshotPublished(snap.Version)
	return snap
}

func (c *Cache) broadcast(snap Snapshot) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	if snap.Version <= c.delivered {
		return
	}
	c.delivered = snap.Version
	for _, ch := range c.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

func (c *Cache) closeSubscribers() {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
}
