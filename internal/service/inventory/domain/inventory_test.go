package domain

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		qty, threshold int
		want           StockStatus
	}{
		{0, 10, StockOutOfStock},
		{-1, 10, StockOutOfStock},
		{10, 10, StockLow},
		{1, 10, StockLow},
		{11, 10, StockAvailable},
		{5, 0, StockAvailable},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, DeriveStatus(c.qty, c.threshold), "qty=%d threshold=%d", c.qty, c.threshold)
	}
}

func TestInventory_HoldDeductUnhold(t *testing.T) {
	// Arrange
	inv, err := NewInventory(1, 10, 3)
	require.NoError(t, err)

	// Act & Assert
	require.NoError(t, inv.Hold(5))
	assert.Equal(t, 5, inv.ReservedQuantity)

	err = inv.Hold(6)
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.Equal(t, 5, inv.ReservedQuantity, "failed hold must not change the ledger")

	require.NoError(t, inv.Deduct(5))
	assert.Equal(t, 5, inv.Quantity)
	assert.Equal(t, 0, inv.ReservedQuantity)
	assert.Equal(t, StockAvailable, inv.Status())

	require.NoError(t, inv.Hold(2))
	require.NoError(t, inv.Unhold(2))
	assert.Equal(t, 0, inv.ReservedQuantity)
	assert.Error(t, inv.Unhold(1))
}

func TestInventory_SetQuantityKeepsReserved(t *testing.T) {
	inv, _ := NewInventory(1, 10, 3)
	require.NoError(t, inv.Hold(4))

	err := inv.SetQuantity(3)
	assert.True(t, errors.Is(err, ErrInvalidQuantity))
	assert.Equal(t, 10, inv.Quantity)

	require.NoError(t, inv.SetQuantity(4))
	assert.Equal(t, 0, inv.Available())
}

func TestReservation_Transitions(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewReservation("ORD-20250301-001", 7, 2, now, DefaultHoldDuration)
	assert.Equal(t, now.Add(15*time.Minute), r.ExpiresAt)
	assert.False(t, r.IsExpired(now.Add(14*time.Minute)))
	assert.True(t, r.IsExpired(now.Add(16*time.Minute)))

	require.NoError(t, r.Confirm())

	err := r.Confirm()
	assert.True(t, errors.Is(err, ErrAlreadyConfirmed))
	assert.True(t, errors.Is(err, ErrInvalidReservationState))

	err = r.Release()
	assert.True(t, errors.Is(err, ErrInvalidReservationState))
	assert.False(t, errors.Is(err, ErrAlreadyConfirmed))
	assert.Equal(t, ReservationConfirmed, r.Status)
	assert.False(t, r.IsExpired(now.Add(time.Hour)), "terminal reservations never expire")
}
