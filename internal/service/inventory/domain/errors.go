package domain

import "github.com/pkg/errors"

var (
	ErrInventoryNotFound       = errors.New("inventory not found")
	ErrReservationNotFound     = errors.New("reservation not found")
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrInvalidReservationState = errors.New("invalid reservation state")
	ErrReservationExists       = errors.New("pending reservation already exists")
	ErrInvalidQuantity         = errors.New("invalid quantity")
	ErrInventoryExists         = errors.New("inventory already exists")

	// ErrAlreadyConfirmed 包装了 ErrInvalidReservationState，
	// 调用方既可以按状态错误处理，也可以识别出“之前已经确认过”。
	ErrAlreadyConfirmed = errors.Wrap(ErrInvalidReservationState, "reservation already confirmed")
)
