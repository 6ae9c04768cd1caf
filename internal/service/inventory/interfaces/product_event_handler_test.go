package interfaces

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"shopflow/internal/pkg/event"
	"shopflow/internal/service/inventory/domain"
)

type mockLifecycle struct{ mock.Mock }

func (m *mockLifecycle) CreateInventory(ctx context.Context, productID int64, initialStock int) error {
	return m.Called(ctx, productID, initialStock).Error(0)
}

func (m *mockLifecycle) DeleteInventory(ctx context.Context, productID int64) error {
	return m.Called(ctx, productID).Error(0)
}

func message(t *testing.T, p event.Payload) kafka.Message {
	t.Helper()
	body, err := json.Marshal(event.MustNew(p, time.Now()))
	require.NoError(t, err)
	return kafka.Message{Value: body}
}

func TestProductEventHandler_Created(t *testing.T) {
	svc := &mockLifecycle{}
	svc.On("CreateInventory", mock.Anything, int64(11), 30).Return(nil).Once()
	svc.On("CreateInventory", mock.Anything, int64(11), 30).Return(domain.ErrInventoryExists).Once()
	h := NewProductEventHandler(svc)
	msg := message(t, event.ProductCreatedPayload{ProductID: 11, InitialStock: 30})

	require.NoError(t, h.Handle(context.Background(), msg))
	require.NoError(t, h.Handle(context.Background(), msg), "redelivery is idempotent")
	svc.AssertExpectations(t)
}

func TestProductEventHandler_Deleted(t *testing.T) {
	svc := &mockLifecycle{}
	svc.On("DeleteInventory", mock.Anything, int64(11)).Return(nil)

	err := NewProductEventHandler(svc).Handle(context.Background(), message(t, event.ProductDeletedPayload{ProductID: 11}))

	require.NoError(t, err)
	svc.AssertExpectations(t)
}

func TestProductEventHandler_MalformedGoesToDLT(t *testing.T) {
	h := NewProductEventHandler(&mockLifecycle{})

	err := h.Handle(context.Background(), kafka.Message{Value: []byte("{not json")})

	assert.Error(t, err)
}

func TestProductEventHandler_IgnoresOtherFamilies(t *testing.T) {
	svc := &mockLifecycle{}

	err := NewProductEventHandler(svc).Handle(context.Background(), message(t, event.StockUpdatedPayload{ProductID: 1}))

	assert.NoError(t, err)
	svc.AssertNotCalled(t, "CreateInventory", mock.Anything, mock.Anything, mock.Anything)
}
