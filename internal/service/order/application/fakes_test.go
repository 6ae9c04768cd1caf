package application

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"

	"shopflow/internal/pkg/event"
	"shopflow/internal/service/order/domain"
	"shopflow/internal/service/order/domain/port"
)

type memOrderRepo struct {
	mu        sync.Mutex
	orders    map[string]domain.Order
	events    []event.Envelope
	createErr error
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: map[string]domain.Order{}}
}

func clone(o domain.Order) *domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	o.History = append([]domain.StatusChange(nil), o.History...)
	return &o
}

func (r *memOrderRepo) Create(_ context.Context, o *domain.Order, events ...event.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.orders[o.OrderNumber]; ok {
		return errors.Wrapf(domain.ErrDuplicateOrderNumber, "%s", o.OrderNumber)
	}
	r.orders[o.OrderNumber] = *clone(*o)
	r.events = append(r.events, events...)
	return nil
}

func (r *memOrderRepo) UpdateStatus(_ context.Context, o *domain.Order, from domain.State, events ...event.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.orders[o.OrderNumber]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if cur.Status != from {
		return domain.ErrConcurrentUpdate
	}
	r.orders[o.OrderNumber] = *clone(*o)
	r.events = append(r.events, events...)
	return nil
}

func (r *memOrderRepo) FindByNumber(_ context.Context, number string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[number]
	if !ok {
		return nil, errors.Wrapf(domain.ErrOrderNotFound, "order %s", number)
	}
	return clone(o), nil
}

func (r *memOrderRepo) CountCreatedOn(_ context.Context, day time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	y, m, d := day.UTC().Date()
	for _, o := range r.orders {
		oy, om, od := o.CreatedAt.UTC().Date()
		if oy == y && om == m && od == d {
			n++
		}
	}
	return n, nil
}

func (r *memOrderRepo) list(match func(domain.Order) bool, page domain.Page) ([]*domain.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*domain.Order
	for _, o := range r.orders {
		if match(o) {
			all = append(all, clone(o))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].OrderNumber > all[j].OrderNumber })
	total := int64(len(all))
	start := page.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + page.Size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *memOrderRepo) ListByUser(_ context.Context, userID string, page domain.Page) ([]*domain.Order, int64, error) {
	return r.list(func(o domain.Order) bool { return o.UserID == userID }, page)
}

func (r *memOrderRepo) ListByStatus(_ context.Context, status domain.State, page domain.Page) ([]*domain.Order, int64, error) {
	return r.list(func(o domain.Order) bool { return o.Status == status }, page)
}

func (r *memOrderRepo) eventTypes() []event.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event.Type
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

// fakeInventory 记录每个 (订单, 商品) 的预留状态
type fakeInventory struct {
	mu           sync.Mutex
	stock        map[int64]int
	holds        map[string]string // key -> PENDING/CONFIRMED/RELEASED
	qty          map[string]int
	reserveErr   map[int64]error
	confirmErr   map[int64]error
	releaseErr   map[int64]error
	confirmCalls []int64
	releaseCalls []int64
}

func newFakeInventory(stock map[int64]int) *fakeInventory {
	return &fakeInventory{
		stock:      stock,
		holds:      map[string]string{},
		qty:        map[string]int{},
		reserveErr: map[int64]error{},
		confirmErr: map[int64]error{},
		releaseErr: map[int64]error{},
	}
}

func holdKey(order string, product int64) string {
	return order + ":" + strconv.FormatInt(product, 10)
}

func (f *fakeInventory) ReserveStock(_ context.Context, order string, productID int64, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.reserveErr[productID]; err != nil {
		return err
	}
	if f.stock[productID] < qty {
		return errors.Wrap(port.ErrInsufficientStock, "not enough")
	}
	f.stock[productID] -= qty
	f.holds[holdKey(order, productID)] = "PENDING"
	f.qty[holdKey(order, productID)] = qty
	return nil
}

func (f *fakeInventory) ConfirmStock(_ context.Context, order string, productID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmCalls = append(f.confirmCalls, productID)
	if err := f.confirmErr[productID]; err != nil {
		return err
	}
	switch f.holds[holdKey(order, productID)] {
	case "PENDING":
		f.holds[holdKey(order, productID)] = "CONFIRMED"
		return nil
	case "CONFIRMED":
		return port.ErrAlreadyConfirmed
	default:
		return port.ErrRejected
	}
}

func (f *fakeInventory) ReleaseStock(_ context.Context, order string, productID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releaseCalls = append(f.releaseCalls, productID)
	if err := f.releaseErr[productID]; err != nil {
		return err
	}
	k := holdKey(order, productID)
	if f.holds[k] != "PENDING" {
		return port.ErrRejected
	}
	f.holds[k] = "RELEASED"
	f.stock[productID] += f.qty[k]
	return nil
}

func (f *fakeInventory) hold(order string, productID int64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.holds[holdKey(order, productID)]
}

type mockCart struct{ mock.Mock }

func (m *mockCart) GetCart(ctx context.Context, creds port.Credentials) (*port.Cart, error) {
	args := m.Called(ctx, creds)
	c, _ := args.Get(0).(*port.Cart)
	return c, args.Error(1)
}

func (m *mockCart) ValidateCart(ctx context.Context, creds port.Credentials) (*port.CartValidation, error) {
	args := m.Called(ctx, creds)
	v, _ := args.Get(0).(*port.CartValidation)
	return v, args.Error(1)
}

func (m *mockCart) ClearCart(ctx context.Context, creds port.Credentials) error {
	return m.Called(ctx, creds).Error(0)
}

type mockCatalog struct{ mock.Mock }

func (m *mockCatalog) GetProduct(ctx context.Context, productID int64) (*port.Product, error) {
	args := m.Called(ctx, productID)
	p, _ := args.Get(0).(*port.Product)
	return p, args.Error(1)
}

// tablePolicy 是 CancellationPolicy 的静态实现
type tablePolicy map[domain.Role][]domain.State

func (p tablePolicy) CanCancel(role domain.Role, status domain.State) (bool, error) {
	for _, s := range p[role] {
		if s == status {
			return true, nil
		}
	}
	return false, nil
}

var defaultPolicy = tablePolicy{
	domain.RoleCustomer: {domain.StatePending},
	domain.RoleStaff:    {domain.StatePending, domain.StateConfirmed, domain.StateProcessing},
	domain.RoleAdmin:    {domain.StatePending, domain.StateConfirmed, domain.StateProcessing},
}
