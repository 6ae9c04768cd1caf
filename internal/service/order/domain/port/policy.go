package port

import "shopflow/internal/service/order/domain"

// CancellationPolicy 决定某个角色能否从当前状态取消订单
type CancellationPolicy interface {
	CanCancel(role domain.Role, status domain.State) (bool, error)
}
