package service

import (
	"errors"
	"fmt"

	"github.com/savelx/grocery-shop/internal/domain/models"
)

// Ошибки валидации: обнаруживаются до любой мутации и сразу возвращаются вызывающему
var (
	ErrEmptyOrder         = errors.New("order must contain at least one item")
	ErrInvalidQuantity    = errors.New("item quantity must be at least 1")
	ErrBlankReason        = errors.New("rejection reason must not be blank")
	ErrAddressIncomplete  = errors.New("delivery address is incomplete")
	ErrTotalMismatch      = errors.New("total amount does not match sum of line totals")
	ErrUnknownStatus      = errors.New("unknown order status")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// InvalidTransitionError — попытка перехода из состояния, которое его не допускает.
// Несёт текущий и запрошенный статусы, чтобы клиент мог обновить состояние перед повтором.
type InvalidTransitionError struct {
	From models.OrderStatus
	To   models.OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// AsInvalidTransition помогает транспортному слою отличить конфликт перехода (409)
// от прочих ошибок.
func AsInvalidTransition(err error) (*InvalidTransitionError, bool) {
	var ite *InvalidTransitionError
	if errors.As(err, &ite) {
		return ite, true
	}
	return nil, false
}
