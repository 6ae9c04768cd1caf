package interfaces

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopflow/internal/pkg/event"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func message(t *testing.T, p event.Payload) kafka.Message {
	t.Helper()
	body, err := json.Marshal(event.MustNew(p, time.Now()))
	require.NoError(t, err)
	return kafka.Message{Value: body}
}

func TestInventoryEventHandler_ExpiredReleaseIsWarning(t *testing.T) {
	buf := captureLogs(t)
	h := NewInventoryEventHandler()

	err := h.Handle(context.Background(), message(t, event.StockReleasedPayload{
		ProductID: 3, OrderID: "ORD-20240315-001", ReleasedQuantity: 2, Reason: event.ReleaseReasonExpired,
	}))

	require.NoError(t, err)
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "ORD-20240315-001", line["order_number"])
	assert.Equal(t, "EXPIRED", line["reason"])
}

func TestInventoryEventHandler_LogsReservations(t *testing.T) {
	buf := captureLogs(t)
	h := NewInventoryEventHandler()

	require.NoError(t, h.Handle(context.Background(), message(t, event.StockReservedPayload{ProductID: 3, OrderID: "ORD-1", ReservedQuantity: 1})))
	require.NoError(t, h.Handle(context.Background(), message(t, event.StockConfirmedPayload{ProductID: 3, OrderID: "ORD-1", ConfirmedQuantity: 1})))

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "\n"))
	assert.Contains(t, out, `"message":"stock reserved"`)
	assert.Contains(t, out, `"message":"stock confirmed"`)
}

func TestInventoryEventHandler_IgnoresOtherEvents(t *testing.T) {
	captureLogs(t)
	h := NewInventoryEventHandler()

	assert.NoError(t, h.Handle(context.Background(), message(t, event.OrderConfirmedPayload{OrderNumber: "ORD-1"})))
	assert.NoError(t, h.Handle(context.Background(), kafka.Message{Value: []byte(`{"eventType":"cart-cleared","version":1,"payload":{}}`)}))
}

func TestInventoryEventHandler_MalformedGoesToDLT(t *testing.T) {
	captureLogs(t)

	err := NewInventoryEventHandler().Handle(context.Background(), kafka.Message{Value: []byte(`not json`)})

	assert.Error(t, err)
}
