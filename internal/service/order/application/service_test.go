package application

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"shopflow/internal/pkg/event"
	"shopflow/internal/service/order/application/saga"
	"shopflow/internal/service/order/domain"
	"shopflow/internal/service/order/domain/port"
)

var (
	alice    = port.Credentials{UserID: "alice", Token: "Bearer t"}
	customer = domain.Actor{UserID: "alice", Role: domain.RoleCustomer}
	staff    = domain.Actor{UserID: "ops-1", Role: domain.RoleStaff}
	fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
)

type fixture struct {
	svc     *OrderApplicationService
	repo    *memOrderRepo
	inv     *fakeInventory
	cart    *mockCart
	catalog *mockCatalog
}

func newFixture(t *testing.T, items ...port.CartItem) *fixture {
	t.Helper()
	f := &fixture{
		repo:    newMemOrderRepo(),
		inv:     newFakeInventory(map[int64]int{1: 10, 2: 10}),
		cart:    new(mockCart),
		catalog: new(mockCatalog),
	}
	f.svc = NewOrderApplicationService(f.repo, f.cart, f.catalog, f.inv, defaultPolicy)
	f.svc.now = func() time.Time { return fixedNow }

	f.cart.On("GetCart", mock.Anything, alice).Return(&port.Cart{UserID: "alice", Items: items}, nil).Maybe()
	f.cart.On("ValidateCart", mock.Anything, alice).Return(&port.CartValidation{Valid: true}, nil).Maybe()
	f.cart.On("ClearCart", mock.Anything, alice).Return(nil).Maybe()
	f.catalog.On("GetProduct", mock.Anything, int64(1)).Return(&port.Product{
		ID: 1, Name: "Keyboard", SKU: "KB-1", Price: decimal.RequireFromString("50.00"),
		Images: []port.ProductImage{{URL: "kb-side.png"}, {URL: "kb-front.png", IsPrimary: true}},
	}, nil).Maybe()
	f.catalog.On("GetProduct", mock.Anything, int64(2)).Return(&port.Product{
		ID: 2, Name: "Mouse", SKU: "MS-1", Price: decimal.RequireFromString("30.00"), DiscountPrice: decimal.RequireFromString("25.00"),
	}, nil).Maybe()
	return f
}

func (f *fixture) placeOrder(t *testing.T) *OrderView {
	t.Helper()
	view, err := f.svc.CreateOrder(context.Background(), alice, CreateOrderRequest{})
	require.NoError(t, err)
	return view
}

func TestCreateOrder_ReservesPricesAndPersists(t *testing.T) {
	f := newFixture(t, port.CartItem{ProductID: 1, Quantity: 2}, port.CartItem{ProductID: 2, Quantity: 1})

	view := f.placeOrder(t)

	assert.Equal(t, "ORD-20240315-001", view.OrderNumber)
	assert.Equal(t, string(domain.StatePending), view.Status)
	require.Len(t, view.Items, 2)
	assert.True(t, view.Items[1].UnitPrice.Equal(decimal.RequireFromString("25.00")), "discount price wins")
	assert.Equal(t, "kb-front.png", view.Items[0].ProductImageURL, "primary image wins")
	assert.Empty(t, view.Items[1].ProductImageURL)
	assert.True(t, view.TotalAmount.Equal(decimal.RequireFromString("125.00")))
	assert.True(t, view.FinalAmount.Equal(view.TotalAmount))

	assert.Equal(t, "PENDING", f.inv.hold(view.OrderNumber, 1))
	assert.Equal(t, "PENDING", f.inv.hold(view.OrderNumber, 2))
	assert.Equal(t, 8, f.inv.stock[1])
	assert.Equal(t, []event.Type{event.OrderCreated}, f.repo.eventTypes())
	f.cart.AssertCalled(t, "ClearCart", mock.Anything, alice)
}

func TestCreateOrder_SequenceCountsTodaysOrders(t *testing.T) {
	f := newFixture(t, port.CartItem{ProductID: 1, Quantity: 1})

	first := f.placeOrder(t)
	second := f.placeOrder(t)

	assert.Equal(t, "ORD-20240315-001", first.OrderNumber)
	assert.Equal(t, "ORD-20240315-002", second.OrderNumber)
}

func TestCreateOrder_InsufficientStockReleasesEarlierReservations(t *testing.T) {
	f := newFixture(t, port.CartItem{ProductID: 1, Quantity: 2}, port.CartItem{ProductID: 2, Quantity: 50})

	_, err := f.svc.CreateOrder(context.Background(), alice, CreateOrderRequest{})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	var execErr *saga.ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "reserve:2", execErr.Step)

	assert.Equal(t, "RELEASED", f.inv.hold("ORD-20240315-001", 1))
	assert.Equal(t, 10, f.inv.stock[1], "stock returned")
	assert.Empty(t, f.repo.orders, "no order persisted")
	f.cart.AssertNotCalled(t, "ClearCart", mock.Anything, mock.Anything)
}

func TestCreateOrder_ReservationTransportFailure(t *testing.T) {
	f := newFixture(t, port.CartItem{ProductID: 1, Quantity: 1})
	f.inv.reserveErr[1] = errors.New("connection refused")

	_, err := f.svc.CreateOrder(context.Background(), alice, CreateOrderRequest{})

	assert.ErrorIs(t, err, domain.ErrStockReservationFailed)
	assert.Empty(t, f.repo.orders)
}

func TestCreateOrder_UnknownProduct(t *testing.T) {
	f := newFixture(t, port.CartItem{ProductID: 9, Quantity: 1})
	f.catalog.On("GetProduct", mock.Anything, int64(9)).Return(nil, errors.New("404"))

	_, err := f.svc.CreateOrder(context.Background(), alice, CreateOrderRequest{})

	assert.ErrorIs(t, err, domain.ErrProductUnavailable)
	assert.Empty(t, f.inv.holds, "nothing reserved")
}

func TestCreateOrder_PersistFailureReleasesEverything(t *testing.T) {
	f := newFixture(t, port.CartItem{ProductID: 1, Quantity: 1}, port.CartItem{ProductID: 2, Quantity: 1})
	f.repo.createErr = errors.Wrap(domain.ErrDuplicateOrderNumber, "ORD-20240315-001")

	_, err := f.svc.CreateOrder(context.Background(), alice, CreateOrderRequest{})

	assert.ErrorIs(t, err, domain.ErrDuplicateOrderNumber)
	assert.Equal(t, "RELEASED", f.inv.hold("ORD-20240315-001", 1))
	assert.Equal(t, "RELEASED", f.inv.hold("ORD-20240315-001", 2))
	assert.Equal(t, []int64{2, 1}, f.inv.releaseCalls, "compensation runs in reverse")
}

func TestCreateOrder_EmptyCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateOrder(context.Background(), alice, CreateOrderRequest{})

	assert.ErrorIs(t, err, domain.ErrCartEmpty)
	f.cart.AssertNotCalled(t, "ValidateCart", mock.Anything, mock.Anything)
}

func TestCreateOrder_InvalidCart(t *testing.T) {
	f := &fixture{repo: newMemOrderRepo(), inv: newFakeInventory(nil), cart: new(mockCart), catalog: new(mockCatalog)}
	f.svc = NewOrderApplicationService(f.repo, f.cart, f.catalog, f.inv, defaultPolicy)
	f.cart.On("GetCart", mock.Anything, alice).Return(&port.Cart{Items: []port.CartItem{{ProductID: 1, Quantity: 1}}}, nil)
	f.cart.On("ValidateCart", mock.Anything, alice).Return(&port.CartValidation{Valid: false, Errors: []string{"product 1 is inactive"}}, nil)

	_, err := f.svc.CreateOrder(context.Background(), alice, CreateOrderRequest{})

	var validation *domain.CartValidationError
	require.True(t, errors.As(err, &validation))
	assert.Equal(t, []string{"product 1 is inactive"}, validation.Reasons)
}

func TestCreateOrder_ClearCartFailureKeepsOrder(t *testing.T) {
	f := &fixture{repo: newMemOrderRepo(), inv: newFakeInventory(map[int64]int{1: 5}), cart: new(mockCart), catalog: new(mockCatalog)}
	f.svc = NewOrderApplicationService(f.repo, f.cart, f.catalog, f.inv, defaultPolicy)
	f.cart.On("GetCart", mock.Anything, alice).Return(&port.Cart{Items: []port.CartItem{{ProductID: 1, Quantity: 1}}}, nil)
	f.cart.On("ValidateCart", mock.Anything, alice).Return(&port.CartValidation{Valid: true}, nil)
	f.cart.On("ClearCart", mock.Anything, alice).Return(errors.New("cart down"))
	f.catalog.On("GetProduct", mock.Anything, int64(1)).Return(&port.Product{ID: 1, Price: decimal.NewFromInt(3)}, nil)

	view, err := f.svc.CreateOrder(context.Background(), alice, CreateOrderRequest{})

	require.NoError(t, err)
	assert.Len(t, f.repo.orders, 1)
	assert.Equal(t, "PENDING", f.inv.hold(view.OrderNumber, 1))
}

func TestConfirmOrder_ConfirmsEveryItem(t *testing.T) {
	f := newFixture(t, port.CartItem{ProductID: 1, Quantity: 1}, port.CartItem{ProductID: 2, Quantity: 1})
	order := f.placeOrder(t)

	view, err := f.svc.ConfirmOrder(context.Background(), order.OrderNumber, customer)

	require.NoError(t, err)
	assert.Equal(t, string(domain.StateConfirmed), view.Status)
	assert.Equal(t, "CONFIRMED", f.inv.hold(order.OrderNumber, 1))
	assert.Equal(t, "CONFIRMED", f.inv.hold(order.OrderNumber, 2))
	assert.Equal(t, []event.Type{event.OrderCreated, event.OrderConfirmed}, f.repo.eventTypes())
}

func TestConfirmOrder_PartialFailureIsRetryable(t *testing.T) {
	f := newFixture(t, port.CartItem{ProductID: 1, Quantity: 1}, port.CartItem{ProductID: 2, Quantity: 1})
	order := f.placeOrder(t)
	f.inv.confirmErr[2] = errors.New("timeout")

	_, err := f.svc.ConfirmOrder(context.Background(), order.OrderNumber, customer)

	assert.ErrorIs(t, err, domain.ErrStockConfirmationFailed)
	stored, _ := f.repo.FindByNumber(context.Background(), order.OrderNumber)
	assert.Equal(t, domain.StatePending, stored.Status)
	assert.Equal(t, "CONFIRMED", f.inv.hold(order.OrderNumber, 1))

	// 重试时已确认的商品返回 ALREADY_CONFIRMED，跳过
	delete(f.inv.confirmErr, 2)
	view, err := f.svc.ConfirmOrder(context.Background(), order.OrderNumber, customer)

	require.NoError(t, err)
	assert.Equal(t, string(domain.StateConfirmed), view.Status)
	assert.Equal(t, "CONFIRMED", f.inv.hold(order.OrderNumber, 2))
}

func TestConfirmOrder_RejectsNonPending(t *testing.T) {
	f := newFixture(t, port.CartItem{ProductID: 1, Quantity: 1})
	order := f.placeOrder(t)
	_, err := f.svc.CancelOrder(context.Background(), order.OrderNumber, customer, "")
	require.NoError(t, err)

	_, err = f.svc.ConfirmOrder(context.Background(), order.OrderNumber, customer)

	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)
	assert.Empty(t, f.inv.confirmCalls)
}

func TestFulfilmentPath(t *testing.T) {
	f := newFixture(t, port.CartItem{ProductID: 1, Quantity: 1})
	order := f.placeOrder(t)
	ctx := context.Background()

	_, err := f.svc.ConfirmOrder(ctx, order.OrderNumber, customer)
	require.NoError(t, err)
	_, err = f.svc.ProcessOrder(ctx, order.OrderNumber, staff)
	require.NoError(t, err)
	_, err = f.svc.ShipOrder(ctx, order.OrderNumber, staff)
	require.NoError(t, err)
	view, err := f.svc.DeliverOrder(ctx, order.OrderNumber, staff)
	require.NoError(t, err)
	assert.Equal(t, string(domain.StateDelivered), view.Status)

	history, err := f.svc.GetOrderHistory(ctx, order.OrderNumber, customer)
	require.NoError(t, err)
	require.Len(t, history, 5)
	assert.Equal(t, "", history[0].PreviousStatus)
	assert.Equal(t, "Payment confirmed", history[1].Reason)
	assert.Equal(t, "SHIPPED", history[4].PreviousStatus)
	assert.Equal(t, "ops-1", history[4].ChangedBy)

	assert.Equal(t, []event.Type{
		event.OrderCreated, event.OrderConfirmed, event.OrderShipped, event.OrderDelivered,
	}, f.repo.eventTypes())
}

func TestStaffTransitions_ForbiddenForCustomers(t *testing.T) {
	f := newFixture(t, port.CartItem{ProductID: 1, Quantity: 1})
	order := f.placeOrder(t)
	_, err := f.svc.ConfirmOrder(context.Background(), order.OrderNumber, customer)
	require.NoError(t, err)

	_, err = f.svc.ProcessOrder(context.Background(), order.OrderNumber, customer)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.ListOrdersByStatus(context.Background(), domain.StateConfirmed, domain.Page{}, customer)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestShipOrder_SkippingProcessingIsRejected(t *testing.T) {
	f := newFixture(t, port.CartItem{ProductID: 1, Quantity: 1})
	order := f.placeOrder(t)

	_, err := f.svc.ShipOrder(context.Background(), order.OrderNumber, staff)

	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)
}

func TestCancelOrder_ReleasesAndRecordsReason(t *testing.T) {
	f := newFixture(t, port.CartItem{ProductID: 1, Quantity: 3})
	order := f.placeOrder(t)

	view, err := f.svc.CancelOrder(context.Background(), order.OrderNumber, customer, "changed my mind")

	require.NoError(t, err)
	assert.Equal(t, string(domain.StateCancelled), view.Status)
	assert.Equal(t, "changed my mind", view.CancelledReason)
	assert.Equal(t, 10, f.inv.stock[1])
	assert.Equal(t, event.OrderCancelled, f.repo.eventTypes()[1])
}

func TestCancelOrder_ReleaseFailureStillCancels(t *testing.T) {
	f := newFixture(t, port.CartItem{ProductID: 1, Quantity: 1}, port.CartItem{ProductID: 2, Quantity: 1})
	order := f.placeOrder(t)
	f.inv.releaseErr[1] = errors.New("inventory down")

	view, err := f.svc.CancelOrder(context.Background(), order.OrderNumber, customer, "")

	require.NoError(t, err)
	assert.Equal(t, string(domain.StateCancelled), view.Status)
	assert.Equal(t, "Cancelled by CUSTOMER", view.CancelledReason)
	assert.Equal(t, []int64{1, 2}, f.inv.releaseCalls)
	assert.Equal(t, "RELEASED", f.inv.hold(order.OrderNumber, 2))
}

func TestCancelOrder_RolePolicy(t *testing.T) {
	f := newFixture(t, port.CartItem{ProductID: 1, Quantity: 1})
	order := f.placeOrder(t)
	ctx := context.Background()
	_, err := f.svc.ConfirmOrder(ctx, order.OrderNumber, customer)
	require.NoError(t, err)

	_, err = f.svc.CancelOrder(ctx, order.OrderNumber, customer, "")
	assert.ErrorIs(t, err, domain.ErrCancellationNotAllowed)

	view, err := f.svc.CancelOrder(ctx, order.OrderNumber, staff, "fraud suspected")
	require.NoError(t, err)
	assert.Equal(t, string(domain.StateCancelled), view.Status)

	refunded, err := f.svc.RefundOrder(ctx, order.OrderNumber, staff)
	require.NoError(t, err)
	assert.Equal(t, string(domain.StateRefunded), refunded.Status)
}

func TestCancelOrder_ShippedCannotBeCancelled(t *testing.T) {
	f := newFixture(t, port.CartItem{ProductID: 1, Quantity: 1})
	order := f.placeOrder(t)
	ctx := context.Background()
	for _, step := range []func(context.Context, string, domain.Actor) (*OrderView, error){
		f.svc.ConfirmOrder, f.svc.ProcessOrder, f.svc.ShipOrder,
	} {
		_, err := step(ctx, order.OrderNumber, staff)
		require.NoError(t, err)
	}

	_, err := f.svc.CancelOrder(ctx, order.OrderNumber, staff, "")

	assert.ErrorIs(t, err, domain.ErrCancellationNotAllowed)
	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)
}

func TestGetOrder_HidesOtherUsersOrders(t *testing.T) {
	f := newFixture(t, port.CartItem{ProductID: 1, Quantity: 1})
	order := f.placeOrder(t)

	_, err := f.svc.GetOrder(context.Background(), order.OrderNumber, domain.Actor{UserID: "mallory", Role: domain.RoleCustomer})
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	view, err := f.svc.GetOrder(context.Background(), order.OrderNumber, staff)
	require.NoError(t, err)
	assert.Equal(t, "alice", view.UserID)
}

func TestListOrders(t *testing.T) {
	f := newFixture(t, port.CartItem{ProductID: 1, Quantity: 1})
	for i := 0; i < 3; i++ {
		f.placeOrder(t)
	}

	page, err := f.svc.ListOrdersByUser(context.Background(), "alice", domain.Page{Number: 1, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Orders, 2)

	byStatus, err := f.svc.ListOrdersByStatus(context.Background(), domain.StatePending, domain.Page{}, staff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), byStatus.Total)
}
