package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryAuditLogEvictsOldest(t *testing.T) {
	log := NewMemoryAuditLog(2)
	ctx := context.Background()

	require.NoError(t, log.Record(ctx, AuditLog{Action: "create", Entity: "inventory_item", EntityID: "flour"}))
	require.NoError(t, log.Record(ctx, AuditLog{Action: "update", Entity: "inventory_item", EntityID: "sugar"}))
	require.NoError(t, log.Record(ctx, AuditLog{Action: "update", Entity: "inventory_item", EntityID: "flour"}))

	all := log.Entries("")
	require.Len(t, all, 2)
	require.Equal(t, "sugar", all[0].EntityID)
	require.False(t, all[0].At.IsZero())

	flour := log.Entries("flour")
	require.Len(t, flour, 1)
	require.Equal(t, "update", flour[0].Action)
}

func TestAuditRejectsIncompleteEntries(t *testing.T) {
	require.ErrorIs(t, NewMemoryAuditLog(0).Record(context.Background(), AuditLog{Action: "delete"}), ErrAuditIncomplete)
	require.Error(t, (*AuditLogger)(nil).Record(context.Background(), AuditLog{Action: "delete", Entity: "x", EntityID: "y"}))
}
