package domain

import (
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// ReservationStatus 预留状态。PENDING 是唯一的非终态。
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDING"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationReleased  ReservationStatus = "RELEASED"
	ReservationExpired   ReservationStatus = "EXPIRED"
)

// DefaultHoldDuration 预留的默认持有时长
const DefaultHoldDuration = 15 * time.Minute

// Reservation 是某个订单对某个商品的一次限时占用。
type Reservation struct {
	ID        int64
	OrderID   string
	ProductID int64
	Quantity  int
	Status    ReservationStatus
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewReservation(orderID string, productID int64, qty int, now time.Time, hold time.Duration) *Reservation {
	return &Reservation{
		OrderID:   orderID,
		ProductID: productID,
		Quantity:  qty,
		Status:    ReservationPending,
		ExpiresAt: now.Add(hold),
	}
}

// PendingKey 用于数据库唯一索引，保证同一 (orderId, productId) 最多一个 PENDING。
func PendingKey(orderID string, productID int64) string {
	return orderID + ":" + strconv.FormatInt(productID, 10)
}

func (r *Reservation) IsPending() bool { return r.Status == ReservationPending }

// IsExpired 只有 PENDING 且过了 expiresAt 才算过期
func (r *Reservation) IsExpired(now time.Time) bool {
	return r.IsPending() && r.ExpiresAt.Before(now)
}

func (r *Reservation) Confirm() error { return r.transition(ReservationConfirmed) }
func (r *Reservation) Release() error { return r.transition(ReservationReleased) }
func (r *Reservation) Expire() error  { return r.transition(ReservationExpired) }

func (r *Reservation) transition(to ReservationStatus) error {
	if r.Status == ReservationPending {
		r.Status = to
		return nil
	}
	if r.Status == ReservationConfirmed && to == ReservationConfirmed {
		return errors.Wrapf(ErrAlreadyConfirmed, "reservation %d", r.ID)
	}
	return errors.Wrapf(ErrInvalidReservationState, "reservation %d is %s, cannot move to %s", r.ID, r.Status, to)
}
