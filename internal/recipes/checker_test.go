package recipes

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-hotel/internal/inventory"
	"github.com/odyssey-erp/odyssey-hotel/internal/shared"
	"github.com/odyssey-erp/odyssey-hotel/internal/sound"
)

type pantry struct {
	store   *inventory.MemoryStore
	cache   *inventory.Cache
	service *inventory.Service
}

func newPantry(t *testing.T, items ...inventory.Item) *pantry {
	t.Helper()
	store := inventory.NewMemoryStore(items...)
	cache := inventory.NewCache(store, inventory.CacheConfig{})
	require.NoError(t, cache.Refresh(context.Background()))
	return &pantry{store: store, cache: cache, service: inventory.NewService(store, nil, inventory.ServiceConfig{})}
}

func (p *pantry) set(t *testing.T, id string, qty float64) {
	t.Helper()
	ctx := context.Background()
	item, err := p.store.Get(ctx, id)
	require.NoError(t, err)
	item.CurrentQuantity = qty
	_, err = p.store.Update(ctx, item)
	require.NoError(t, err)
	require.NoError(t, p.cache.Refresh(ctx))
}

func (p *pantry) qty(t *testing.T, id string) float64 {
	t.Helper()
	item, err := p.store.Get(context.Background(), id)
	require.NoError(t, err)
	return item.CurrentQuantity
}

var cake = []Requirement{
	{InventoryItemID: "flour", QuantityNeeded: 1, Unit: "kg", Name: "Flour"},
	{InventoryItemID: "sugar", QuantityNeeded: 1, Unit: "kg", Name: "Sugar"},
}

func TestCheckFlourAndSugar(t *testing.T) {
	p := newPantry(t,
		inventory.Item{ID: "flour", ItemName: "Flour", CurrentQuantity: 2, Unit: "kg"},
		inventory.Item{ID: "sugar", ItemName: "Sugar", CurrentQuantity: 0, Unit: "kg"},
	)
	checker := NewChecker(p.cache, p.service, CheckerConfig{})

	res, err := checker.Check(cake, 1)
	require.NoError(t, err)
	require.False(t, res.CanMake)
	require.Equal(t, []string{"sugar"}, res.MissingItems)
	require.True(t, res.Availability[0].Available)
	require.Equal(t, 1.0, res.Availability[1].Shortfall)

	p.set(t, "sugar", 1)
	res, err = checker.Check(cake, 1)
	require.NoError(t, err)
	require.True(t, res.CanMake)
	require.Empty(t, res.MissingItems)
}

func TestCheckTreatsUnknownItemAsEmpty(t *testing.T) {
	res := Check(inventory.NewSnapshot(nil), []Requirement{{InventoryItemID: "saffron", QuantityNeeded: 0.01, Name: "Saffron"}}, 1)
	require.False(t, res.CanMake)
	require.Equal(t, []string{"saffron"}, res.MissingItems)
	require.Equal(t, "Saffron", res.Availability[0].ItemName)
	require.Zero(t, res.Availability[0].CurrentStock)
}

func TestCheckAppliesMultiplierAndSharedLines(t *testing.T) {
	snap := inventory.NewSnapshot([]inventory.Item{{ID: "butter", ItemName: "Butter", CurrentQuantity: 3}})
	reqs := []Requirement{
		{InventoryItemID: "butter", QuantityNeeded: 1},
		{InventoryItemID: "butter", QuantityNeeded: 0.5},
	}
	require.True(t, Check(snap, reqs, 2).CanMake)

	res := Check(snap, reqs, 3)
	require.False(t, res.CanMake)
	require.Equal(t, []string{"butter"}, res.MissingItems)
	require.Equal(t, 3.0, res.Availability[0].QuantityNeeded)
}

func TestCheckRejectsInvalidInput(t *testing.T) {
	checker := NewChecker(newPantry(t).cache, nil, CheckerConfig{})
	_, err := checker.Check(nil, 1)
	require.ErrorIs(t, err, ErrInvalidRequirement)
	_, err = checker.Check(cake, 0)
	require.ErrorIs(t, err, ErrInvalidRequirement)
	_, err = checker.Check([]Requirement{{InventoryItemID: "flour", QuantityNeeded: -1}}, 1)
	require.ErrorIs(t, err, ErrInvalidRequirement)
}

func TestDeductIsAllOrNothing(t *testing.T) {
	p := newPantry(t,
		inventory.Item{ID: "flour", ItemName: "Flour", CurrentQuantity: 2},
		inventory.Item{ID: "sugar", ItemName: "Sugar", CurrentQuantity: 0},
	)
	checker := NewChecker(p.cache, p.service, CheckerConfig{})

	_, err := checker.Deduct(context.Background(), "chef", "", cake, 1)
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.Equal(t, 2.0, p.qty(t, "flour"))

	// The snapshot says there is sugar but the store disagrees.
	p.set(t, "sugar", 1)
	_, err = p.store.Update(context.Background(), inventory.Item{ID: "sugar", ItemName: "Sugar", CurrentQuantity: 0})
	require.NoError(t, err)
	_, err = checker.Deduct(context.Background(), "chef", "", cake, 1)
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.Equal(t, 2.0, p.qty(t, "flour"))
}

type cueRecorder struct {
	mu       sync.Mutex
	kinds    []sound.Kind
	sessions []string
}

func (r *cueRecorder) Cue(kind sound.Kind, sessionIDs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kind)
	r.sessions = append(r.sessions, sessionIDs...)
}

func TestDeductPlaysSuccessCueOnlyOnCommit(t *testing.T) {
	p := newPantry(t,
		inventory.Item{ID: "flour", ItemName: "Flour", CurrentQuantity: 2},
		inventory.Item{ID: "sugar", ItemName: "Sugar", CurrentQuantity: 0},
	)
	cues := &cueRecorder{}
	checker := NewChecker(p.cache, p.service, CheckerConfig{Announcer: cues})
	ctx := shared.ContextWithIdentity(context.Background(), shared.Identity{SessionID: "pastry", Role: "manager"})

	_, err := checker.Deduct(ctx, "chef", "", cake, 1)
	require.Error(t, err)
	require.Empty(t, cues.kinds)

	p.set(t, "sugar", 1)
	_, err = checker.Deduct(ctx, "chef", "", cake, 1)
	require.NoError(t, err)
	require.Equal(t, []sound.Kind{sound.KindSuccess}, cues.kinds)
	require.Equal(t, []string{"pastry"}, cues.sessions)
}

func TestConcurrentDeductExactlyOneWins(t *testing.T) {
	p := newPantry(t, inventory.Item{ID: "flour", ItemName: "Flour", CurrentQuantity: 1})
	checker := NewChecker(p.cache, p.service, CheckerConfig{})
	reqs := []Requirement{{InventoryItemID: "flour", QuantityNeeded: 1}}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		short   int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := checker.Deduct(context.Background(), "chef", "", reqs, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case inventoryShort(err):
				short++
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, success)
	require.Equal(t, 1, short)
	require.Zero(t, p.qty(t, "flour"))
}

func inventoryShort(err error) bool {
	var se *inventory.ShortageError
	return errors.As(err, &se) && errors.Is(err, ErrInsufficientStock)
}

func TestDeductIdempotencyKey(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	p := newPantry(t,
		inventory.Item{ID: "flour", ItemName: "Flour", CurrentQuantity: 5},
		inventory.Item{ID: "sugar", ItemName: "Sugar", CurrentQuantity: 5},
	)
	checker := NewChecker(p.cache, p.service, CheckerConfig{Idempotency: shared.NewRedisIdempotencyStore(client, 0)})
	ctx := context.Background()

	_, err := checker.Deduct(ctx, "chef", "order-42", cake, 2)
	require.NoError(t, err)
	_, err = checker.Deduct(ctx, "chef", "order-42", cake, 2)
	require.ErrorIs(t, err, ErrDuplicateRequest)
	require.Equal(t, 3.0, p.qty(t, "flour"))

	// A failed deduction releases its key.
	require.NoError(t, p.store.Delete(ctx, "sugar"))
	_, err = checker.Deduct(ctx, "chef", "order-43", cake, 1)
	require.ErrorIs(t, err, ErrInsufficientStock)
	exists, err := client.Exists(ctx, "idempotency:order-43").Result()
	require.NoError(t, err)
	require.Zero(t, exists)
}
