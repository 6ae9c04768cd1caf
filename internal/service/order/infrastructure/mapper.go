package infrastructure

import "shopflow/internal/service/order/domain"

func fromDomainOrder(o *domain.Order) *OrderModel {
	m := &OrderModel{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		UserID:          o.UserID,
		Status:          string(o.Status),
		TotalAmount:     o.TotalAmount,
		DiscountAmount:  o.DiscountAmount,
		FinalAmount:     o.FinalAmount,
		AddressLine1:    o.Shipping.AddressLine1,
		AddressLine2:    o.Shipping.AddressLine2,
		City:            o.Shipping.City,
		State:           o.Shipping.State,
		PostalCode:      o.Shipping.PostalCode,
		Country:         o.Shipping.Country,
		Notes:           o.Notes,
		CancelledReason: o.CancelledReason,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for _, it := range o.Items {
		m.Items = append(m.Items, OrderItemModel{
			OrderID:         o.ID,
			ProductID:       it.ProductID,
			ProductName:     it.ProductName,
			ProductImageURL: it.ProductImageURL,
			SKU:             it.SKU,
			UnitPrice:       it.UnitPrice,
			Quantity:        it.Quantity,
			Subtotal:        it.Subtotal,
		})
	}
	for _, h := range o.History {
		m.History = append(m.History, fromDomainChange(o.ID, h))
	}
	return m
}

func fromDomainChange(orderID int64, h domain.StatusChange) StatusHistoryModel {
	return StatusHistoryModel{
		OrderID:        orderID,
		PreviousStatus: string(h.PreviousStatus),
		NewStatus:      string(h.NewStatus),
		ChangedBy:      h.ChangedBy,
		Reason:         h.Reason,
		ChangedAt:      h.ChangedAt,
	}
}

func toDomainOrder(m *OrderModel) *domain.Order {
	o := &domain.Order{
		ID:             m.ID,
		OrderNumber:    m.OrderNumber,
		UserID:         m.UserID,
		Status:         domain.State(m.Status),
		TotalAmount:    m.TotalAmount,
		DiscountAmount: m.DiscountAmount,
		FinalAmount:    m.FinalAmount,
		Shipping: domain.ShippingAddress{
			AddressLine1: m.AddressLine1,
			AddressLine2: m.AddressLine2,
			City:         m.City,
			State:        m.State,
			PostalCode:   m.PostalCode,
			Country:      m.Country,
		},
		Notes:           m.Notes,
		CancelledReason: m.CancelledReason,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	for _, it := range m.Items {
		o.Items = append(o.Items, domain.OrderItem{
			ProductID:       it.ProductID,
			ProductName:     it.ProductName,
			ProductImageURL: it.ProductImageURL,
			SKU:             it.SKU,
			UnitPrice:       it.UnitPrice,
			Quantity:        it.Quantity,
			Subtotal:        it.Subtotal,
		})
	}
	for _, h := range m.History {
		o.History = append(o.History, domain.StatusChange{
			PreviousStatus: domain.State(h.PreviousStatus),
			NewStatus:      domain.State(h.NewStatus),
			ChangedBy:      h.ChangedBy,
			Reason:         h.Reason,
			ChangedAt:      h.ChangedAt,
		})
	}
	return o
}
