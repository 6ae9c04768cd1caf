package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_DispatchesOnEventType(t *testing.T) {
	// Arrange
	env, err := New(StockReleasedPayload{
		ProductID: 42, OrderID: "ORD-20260101-001", ReleasedQuantity: 3,
		AvailableQuantity: 7, StockStatus: "AVAILABLE", Reason: ReleaseReasonExpired,
	}, time.Now())
	require.NoError(t, err)
	body, err := json.Marshal(env)
	require.NoError(t, err)

	// Act
	parsed, p, err := Parse(body)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, StockReleased, parsed.EventType)
	assert.Equal(t, "42", parsed.Key)
	assert.Equal(t, TopicInventory, parsed.Topic())
	released, ok := p.(*StockReleasedPayload)
	require.True(t, ok)
	assert.Equal(t, ReleaseReasonExpired, released.Reason)
	assert.Equal(t, 3, released.ReleasedQuantity)
}

func TestDecode_OrderCreatedKeepsMoney(t *testing.T) {
	env := MustNew(OrderCreatedPayload{
		OrderNumber: "ORD-20260101-007",
		Items:       []OrderItemPayload{{ProductID: 1, Quantity: 2, UnitPrice: decimal.RequireFromString("9.99")}},
		TotalAmount: decimal.RequireFromString("19.98"),
		FinalAmount: decimal.RequireFromString("19.98"),
		Status:      "PENDING",
	}, time.Now())

	p, err := Decode(env)

	require.NoError(t, err)
	created := p.(*OrderCreatedPayload)
	assert.True(t, created.TotalAmount.Equal(decimal.RequireFromString("19.98")))
	assert.Equal(t, TopicOrder, env.Topic())
	assert.Equal(t, "ORD-20260101-007", env.Key)
}

func TestDecode_RejectsUnknownTypeAndVersion(t *testing.T) {
	_, err := Decode(Envelope{EventType: "cart-cleared", Version: CurrentVersion, Payload: []byte(`{}`)})
	assert.True(t, errors.Is(err, ErrUnknownType))

	_, err = Decode(Envelope{EventType: StockUpdated, Version: 2, Payload: []byte(`{}`)})
	assert.True(t, errors.Is(err, ErrUnsupportedVersion))
}
