// internal/service/order/domain/order.go
package domain

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const orderNumberLayout = "20060102"

// FormatOrderNumber 生成 ORD-YYYYMMDD-NNN，seq 从 1 开始
func FormatOrderNumber(day time.Time, seq int) string {
	return fmt.Sprintf("ORD-%s-%03d", day.Format(orderNumberLayout), seq)
}

// OrderItem 是订单行，价格在下单时固化
type OrderItem struct {
	ProductID       int64
	ProductName     string
	ProductImageURL string
	SKU             string
	UnitPrice       decimal.Decimal
	Quantity        int
	Subtotal        decimal.Decimal
}

// UnitPrice 有折扣价且大于 0 时使用折扣价
func UnitPrice(price, discountPrice decimal.Decimal) decimal.Decimal {
	if discountPrice.IsPositive() {
		return discountPrice
	}
	return price
}

func NewOrderItem(productID int64, name, sku string, unitPrice decimal.Decimal, qty int) OrderItem {
	return OrderItem{
		ProductID:   productID,
		ProductName: name,
		SKU:         sku,
		UnitPrice:   unitPrice,
		Quantity:    qty,
		Subtotal:    unitPrice.Mul(decimal.NewFromInt(int64(qty))),
	}
}

type ShippingAddress struct {
	AddressLine1 string
	AddressLine2 string
	City         string
	State        string
	PostalCode   string
	Country      string
}

// StatusChange 是只追加的状态历史，初始记录的 PreviousStatus 为空
type StatusChange struct {
	PreviousStatus State
	NewStatus      State
	ChangedBy      string
	Reason         string
	ChangedAt      time.Time
}

// Order 是订单聚合的根实体
type Order struct {
	ID              int64
	OrderNumber     string
	UserID          string
	Status          State
	Items           []OrderItem
	TotalAmount     decimal.Decimal
	DiscountAmount  decimal.Decimal
	FinalAmount     decimal.Decimal
	Shipping        ShippingAddress
	Notes           string
	CancelledReason string
	History         []StatusChange
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewOrder 创建 PENDING 订单并写入初始历史
func NewOrder(number, userID string, items []OrderItem, discount decimal.Decimal, shipping ShippingAddress, notes string, now time.Time) (*Order, error) {
	if number == "" || userID == "" || len(items) == 0 {
		return nil, errors.New("cannot create order with empty required fields")
	}
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal)
	}
	if discount.IsNegative() || discount.GreaterThan(total) {
		return nil, errors.Errorf("invalid discount %s for total %s", discount, total)
	}
	return &Order{
		OrderNumber:    number,
		UserID:         userID,
		Status:         StatePending,
		Items:          items,
		TotalAmount:    total,
		DiscountAmount: discount,
		FinalAmount:    total.Sub(discount),
		Shipping:       shipping,
		Notes:          notes,
		History: []StatusChange{{
			NewStatus: StatePending,
			ChangedBy: userID,
			Reason:    "Order created",
			ChangedAt: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// TransitionTo 按流转表改变状态并追加一条历史。失败时订单保持不变。
func (o *Order) TransitionTo(to State, changedBy, reason string, now time.Time) error {
	if !o.Status.CanTransitionTo(to) {
		return errors.Wrapf(ErrInvalidStatusTransition, "order %s: %s -> %s", o.OrderNumber, o.Status, to)
	}
	o.History = append(o.History, StatusChange{
		PreviousStatus: o.Status,
		NewStatus:      to,
		ChangedBy:      changedBy,
		Reason:         reason,
		ChangedAt:      now,
	})
	o.Status = to
	o.UpdatedAt = now
	if to == StateCancelled {
		o.CancelledReason = reason
	}
	return nil
}

// LastChange 返回最近一次状态变更
func (o *Order) LastChange() StatusChange {
	return o.History[len(o.History)-1]
}
