package infrastructure

import (
	"shopflow/internal/service/inventory/domain"
)

func toDomainInventory(m *InventoryModel) *domain.Inventory {
	return &domain.Inventory{
		ID:                m.ID,
		ProductID:         m.ProductID,
		Quantity:          m.Quantity,
		ReservedQuantity:  m.ReservedQuantity,
		LowStockThreshold: m.LowStockThreshold,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func fromDomainInventory(inv *domain.Inventory) *InventoryModel {
	return &InventoryModel{
		ID:                inv.ID,
		ProductID:         inv.ProductID,
		Quantity:          inv.Quantity,
		ReservedQuantity:  inv.ReservedQuantity,
		LowStockThreshold: inv.LowStockThreshold,
		StockStatus:       string(inv.Status()),
		CreatedAt:         inv.CreatedAt,
		UpdatedAt:         inv.UpdatedAt,
	}
}

func toDomainReservation(m *ReservationModel) *domain.Reservation {
	return &domain.Reservation{
		ID:        m.ID,
		OrderID:   m.OrderID,
		ProductID: m.ProductID,
		Quantity:  m.Quantity,
		Status:    domain.ReservationStatus(m.Status),
		ExpiresAt: m.ExpiresAt,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func fromDomainReservation(r *domain.Reservation) *ReservationModel {
	m := &ReservationModel{
		ID:        r.ID,
		OrderID:   r.OrderID,
		ProductID: r.ProductID,
		Quantity:  r.Quantity,
		Status:    string(r.Status),
		ExpiresAt: r.ExpiresAt.UTC(),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.IsPending() {
		key := domain.PendingKey(r.OrderID, r.ProductID)
		m.PendingKey = &key
	}
	return m
}
