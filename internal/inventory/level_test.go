package inventory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyBoundaries(t *testing.T) {
	cases := []struct {
		name string
		item Item
		want Level
	}{
		{"zero stock", Item{CurrentQuantity: 0, MinThreshold: 5}, LevelCritical},
		{"at threshold", Item{CurrentQuantity: 5, MinThreshold: 5}, LevelLow},
		{"one above threshold", Item{CurrentQuantity: 6, MinThreshold: 5}, LevelNormal},
		{"fractional below", Item{CurrentQuantity: 0.5, MinThreshold: 1}, LevelLow},
		{"zero threshold positive stock", Item{CurrentQuantity: 0.01, MinThreshold: 0}, LevelNormal},
		{"zero threshold zero stock", Item{CurrentQuantity: 0, MinThreshold: 0}, LevelCritical},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Classify(tc.item))
		})
	}
}

func TestClassifyIsTotal(t *testing.T) {
	for qty := 0.0; qty <= 10; qty += 0.5 {
		for threshold := 0.0; threshold <= 10; threshold++ {
			level := Classify(Item{CurrentQuantity: qty, MinThreshold: threshold})
			require.Contains(t, []Level{LevelCritical, LevelLow, LevelNormal}, level)
		}
	}
}
