package infrastructure

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopflow/internal/service/inventory/domain"
)

func TestFromDomainReservation_PendingKeyOnlyWhilePending(t *testing.T) {
	r := domain.NewReservation("ORD-20250301-001", 9, 2, time.Now(), time.Minute)

	m := fromDomainReservation(r)
	require.NotNil(t, m.PendingKey)
	assert.Equal(t, "ORD-20250301-001:9", *m.PendingKey)

	require.NoError(t, r.Release())
	assert.Nil(t, fromDomainReservation(r).PendingKey)
}

func TestFromDomainInventory_StoresDerivedStatus(t *testing.T) {
	m := fromDomainInventory(&domain.Inventory{ProductID: 1, Quantity: 0, LowStockThreshold: 10})
	assert.Equal(t, "OUT_OF_STOCK", m.StockStatus)
}
