package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"shopflow/internal/pkg/event"
	"shopflow/internal/service/inventory/domain"
)

// memRepo 是 domain.Repository 的内存实现。Atomic 串行执行并在出错时回滚全部状态。
type memRepo struct {
	mu           sync.Mutex
	inventories  map[int64]domain.Inventory
	reservations map[int64]domain.Reservation
	events       []event.Envelope
	nextID       int64
	failSave     func(r *domain.Reservation) error
}

func newMemRepo(invs ...domain.Inventory) *memRepo {
	m := &memRepo{inventories: map[int64]domain.Inventory{}, reservations: map[int64]domain.Reservation{}}
	for _, inv := range invs {
		m.nextID++
		inv.ID = m.nextID
		m.inventories[inv.ProductID] = inv
	}
	return m
}

func (m *memRepo) Atomic(ctx context.Context, fn func(ctx context.Context, tx domain.TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	invs := make(map[int64]domain.Inventory, len(m.inventories))
	for k, v := range m.inventories {
		invs[k] = v
	}
	res := make(map[int64]domain.Reservation, len(m.reservations))
	for k, v := range m.reservations {
		res[k] = v
	}
	events, nextID := len(m.events), m.nextID

	if err := fn(ctx, &memTx{m: m}); err != nil {
		m.inventories, m.reservations, m.events, m.nextID = invs, res, m.events[:events], nextID
		return err
	}
	return nil
}

func (m *memRepo) FindInventory(_ context.Context, productID int64) (*domain.Inventory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.inventories[productID]
	if !ok {
		return nil, domain.ErrInventoryNotFound
	}
	return &inv, nil
}

func (m *memRepo) ListByStatus(_ context.Context, statuses ...domain.StockStatus) ([]*domain.Inventory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Inventory
	for _, inv := range m.inventories {
		inv := inv
		for _, s := range statuses {
			if inv.Status() == s {
				out = append(out, &inv)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (m *memRepo) FindExpiredReservations(_ context.Context, now time.Time, limit int) ([]*domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Reservation
	for _, r := range m.sortedReservations() {
		if r.IsExpired(now) && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRepo) sortedReservations() []*domain.Reservation {
	out := make([]*domain.Reservation, 0, len(m.reservations))
	for _, r := range m.reservations {
		r := r
		out = append(out, &r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memRepo) inventory(productID int64) domain.Inventory {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inventories[productID]
}

func (m *memRepo) reservationsFor(orderID string) []domain.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Reservation
	for _, r := range m.sortedReservations() {
		if r.OrderID == orderID {
			out = append(out, *r)
		}
	}
	return out
}

func (m *memRepo) eventTypes() []event.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]event.Type, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.EventType)
	}
	return out
}

// pendingSum 校验跨记录不变式：PENDING 预留数量之和等于 reservedQuantity
func (m *memRepo) pendingSum(productID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := 0
	for _, r := range m.reservations {
		if r.ProductID == productID && r.IsPending() {
			sum += r.Quantity
		}
	}
	return sum
}

type memTx struct{ m *memRepo }

func (t *memTx) LockInventory(_ context.Context, productID int64) (*domain.Inventory, error) {
	inv, ok := t.m.inventories[productID]
	if !ok {
		return nil, errors.Wrapf(domain.ErrInventoryNotFound, "product %d", productID)
	}
	return &inv, nil
}

func (t *memTx) CreateInventory(_ context.Context, inv *domain.Inventory) error {
	if _, ok := t.m.inventories[inv.ProductID]; ok {
		return domain.ErrInventoryExists
	}
	t.m.nextID++
	inv.ID = t.m.nextID
	t.m.inventories[inv.ProductID] = *inv
	return nil
}

func (t *memTx) SaveInventory(_ context.Context, inv *domain.Inventory) error {
	if inv.ReservedQuantity < 0 || inv.ReservedQuantity > inv.Quantity {
		return errors.Errorf("ledger invariant violated: %+v", *inv)
	}
	t.m.inventories[inv.ProductID] = *inv
	return nil
}

func (t *memTx) DeleteInventory(_ context.Context, productID int64) error {
	if _, ok := t.m.inventories[productID]; !ok {
		return domain.ErrInventoryNotFound
	}
	delete(t.m.inventories, productID)
	return nil
}

func (t *memTx) LockReservationFor(_ context.Context, orderID string, productID int64) (*domain.Reservation, error) {
	var latest *domain.Reservation
	for _, r := range t.m.sortedReservations() {
		if r.OrderID != orderID || r.ProductID != productID {
			continue
		}
		if r.IsPending() {
			return r, nil
		}
		latest = r
	}
	if latest == nil {
		return nil, domain.ErrReservationNotFound
	}
	return latest, nil
}

func (t *memTx) LockReservation(_ context.Context, id int64) (*domain.Reservation, error) {
	r, ok := t.m.reservations[id]
	if !ok {
		return nil, domain.ErrReservationNotFound
	}
	return &r, nil
}

func (t *memTx) CreateReservation(_ context.Context, r *domain.Reservation) error {
	for _, existing := range t.m.reservations {
		if existing.IsPending() && existing.OrderID == r.OrderID && existing.ProductID == r.ProductID {
			return domain.ErrReservationExists
		}
	}
	t.m.nextID++
	r.ID = t.m.nextID
	t.m.reservations[r.ID] = *r
	return nil
}

func (t *memTx) SaveReservation(_ context.Context, r *domain.Reservation) error {
	if t.m.failSave != nil {
		if err := t.m.failSave(r); err != nil {
			return err
		}
	}
	t.m.reservations[r.ID] = *r
	return nil
}

func (t *memTx) Publish(_ context.Context, events ...event.Envelope) error {
	t.m.events = append(t.m.events, events...)
	return nil
}
