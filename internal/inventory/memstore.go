package inventory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process RepositoryPort used for local runs and tests.
// It keeps insertion order so reads mirror a stable store ordering.
type MemoryStore struct {
	mu    sync.Mutex
	order []string
	items map[string]Item
	now   func() time.Time
}

// NewMemoryStore seeds a store with items.
func NewMemoryStore(seed ...Item) *MemoryStore {
	s := &MemoryStore{items: make(map[string]Item), now: func() time.Time { return time.Now().UTC() }}
	for _, item := range seed {
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		if _, ok := s.items[item.ID]; !ok {
			s.order = append(s.order, item.ID)
		}
		s.items[item.ID] = item
	}
	return s
}

func (s *MemoryStore) List(_ context.Context, filter Filter) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]Item, 0, len(s.order))
	for _, id := range s.order {
		item := s.items[id]
		if filter.Category != "" && item.Category != filter.Category {
			continue
		}
		if filter.MaxQuantity != nil && item.CurrentQuantity > *filter.MaxQuantity {
			continue
		}
		items = append(items, item)
		if filter.Limit > 0 && len(items) == filter.Limit {
			break
		}
	}
	return items, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	return item, nil
}

func (s *MemoryStore) Insert(_ context.Context, item Item) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if _, ok := s.items[item.ID]; ok {
		return Item{}, ErrDuplicate
	}
	item.UpdatedAt = s.now()
	s.items[item.ID] = item
	s.order = append(s.order, item.ID)
	return item, nil
}

func (s *MemoryStore) Update(_ context.Context, item Item) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; !ok {
		return Item{}, ErrNotFound
	}
	item.UpdatedAt = s.now()
	s.items[item.ID] = item
	return item, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// DeductBatch applies the batch under one lock, all or nothing.
func (s *MemoryStore) DeductBatch(_ context.Context, deductions []Deduction) error {
	merged, err := mergeDeductions(deductions)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stock := make(map[string]float64, len(merged))
	for _, d := range merged {
		if item, ok := s.items[d.ItemID]; ok {
			stock[d.ItemID] = item.CurrentQuantity
		}
	}
	if shortages := findShortages(merged, stock); len(shortages) > 0 {
		return &ShortageError{Shortages: shortages}
	}
	now := s.now()
	for _, d := range merged {
		item := s.items[d.ItemID]
		item.CurrentQuantity -= d.Quantity
		if item.CurrentQuantity < 1e-9 {
			item.CurrentQuantity = 0
		}
		item.UpdatedAt = now
		s.items[d.ItemID] = item
	}
	return nil
}
