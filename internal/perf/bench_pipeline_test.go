package perf

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/odyssey-erp/odyssey-hotel/internal/alerts"
	"github.com/odyssey-erp/odyssey-hotel/internal/inventory"
	"github.com/odyssey-erp/odyssey-hotel/internal/preferences"
	"github.com/odyssey-erp/odyssey-hotel/internal/rbac"
	"github.com/odyssey-erp/odyssey-hotel/internal/recipes"
)

func hotelSnapshot(n int) inventory.Snapshot {
	items := make([]inventory.Item, n)
	for i := range items {
		items[i] = inventory.Item{
			ID:              fmt.Sprintf("item-%04d", i),
			ItemName:        fmt.Sprintf("Item %d", i),
			CurrentQuantity: float64(i % 7),
			MinThreshold:    3,
		}
	}
	return inventory.NewSnapshot(items)
}

func TestAggregateLatencyTarget(t *testing.T) {
	snap := hotelSnapshot(2000)
	perms := rbac.Resolve(rbac.RoleManager)
	prefs := preferences.Defaults()

	samples := make([]time.Duration, 0, 20)
	for i := 0; i < 20; i++ {
		start := time.Now()
		res := alerts.Aggregate(snap, perms, prefs, nil)
		samples = append(samples, time.Since(start))
		if len(res.Critical) == 0 || len(res.LowStock) == 0 {
			t.Fatalf("expected both alert kinds, got %d critical %d low", len(res.Critical), len(res.LowStock))
		}
	}
	if p95 := percentile95(samples); p95 > 50*time.Millisecond {
		t.Fatalf("aggregate latency regression: p95=%s", p95)
	}
}

func BenchmarkAggregate(b *testing.B) {
	snap := hotelSnapshot(2000)
	perms := rbac.Resolve(rbac.RoleManager)
	prefs := preferences.Defaults()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		alerts.Aggregate(snap, perms, prefs, nil)
	}
}

func BenchmarkRecipeCheck(b *testing.B) {
	snap := hotelSnapshot(2000)
	reqs := make([]recipes.Requirement, 0, 12)
	for i := 0; i < 12; i++ {
		reqs = append(reqs, recipes.Requirement{InventoryItemID: fmt.Sprintf("item-%04d", i*37), QuantityNeeded: 1})
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		recipes.Check(snap, reqs, 2)
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	return sorted[index]
}
