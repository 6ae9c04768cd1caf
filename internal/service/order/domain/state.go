// internal/service/order/domain/state.go
package domain

import "github.com/pkg/errors"

// State 定义了订单的生命周期状态
type State string

const (
	StatePending    State = "PENDING"    // 已创建，库存已预留
	StateConfirmed  State = "CONFIRMED"  // 已确认，库存已扣减
	StateProcessing State = "PROCESSING" // 仓库处理中
	StateShipped    State = "SHIPPED"
	StateDelivered  State = "DELIVERED"
	StateCancelled  State = "CANCELLED"
	StateRefunded   State = "REFUNDED"
)

// transitions 是唯一的状态流转表，未列出的边一律拒绝
var transitions = map[State][]State{
	StatePending:    {StateConfirmed, StateCancelled},
	StateConfirmed:  {StateProcessing, StateCancelled},
	StateProcessing: {StateShipped, StateCancelled},
	StateShipped:    {StateDelivered},
	StateCancelled:  {StateRefunded},
	StateDelivered:  {},
	StateRefunded:   {},
}

func (s State) CanTransitionTo(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s State) IsTerminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// ParseState 校验外部传入的状态字符串
func ParseState(v string) (State, error) {
	s := State(v)
	if _, ok := transitions[s]; !ok {
		return "", errors.Wrapf(ErrUnknownStatus, "%q", v)
	}
	return s, nil
}

// Role 是调用方角色，由网关通过请求头传入
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleStaff    Role = "STAFF"
	RoleAdmin    Role = "ADMIN"
)

// IsStaff 员工与管理员都属于后台角色
func (r Role) IsStaff() bool {
	return r == RoleStaff || r == RoleAdmin
}

// Actor 是发起操作的用户
type Actor struct {
	UserID string
	Role   Role
}

// CanAccess 后台角色可以访问所有订单，其他人只能访问自己的
func (a Actor) CanAccess(o *Order) bool {
	return a.Role.IsStaff() || a.UserID == o.UserID
}
