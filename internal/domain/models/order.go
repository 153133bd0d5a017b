package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus — статус заказа в жизненном цикле доставки
type OrderStatus string

const (
	StatusPendingAdminDecision OrderStatus = "PENDING_ADMIN_DECISION"
	StatusAdminAccepted        OrderStatus = "ADMIN_ACCEPTED"
	StatusPreparing            OrderStatus = "PREPARING"
	StatusReadyForDelivery     OrderStatus = "READY_FOR_DELIVERY"
	StatusOutForDelivery       OrderStatus = "OUT_FOR_DELIVERY"
	StatusDelivered            OrderStatus = "DELIVERED"
	StatusRejectedByAdmin      OrderStatus = "REJECTED_BY_ADMIN"
	StatusCancelled            OrderStatus = "CANCELLED"
)

// allowedTransitions — единственный легальный граф переходов.
// Любое изменение статуса (включая generic-эндпоинт PUT /status) проходит через него.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	StatusPendingAdminDecision: {StatusAdminAccepted, StatusRejectedByAdmin, StatusCancelled},
	StatusAdminAccepted:        {StatusPreparing, StatusCancelled},
	StatusPreparing:            {StatusReadyForDelivery, StatusCancelled},
	StatusReadyForDelivery:     {StatusOutForDelivery, StatusCancelled},
	StatusOutForDelivery:       {StatusDelivered, StatusCancelled},
	StatusDelivered:            {},
	StatusRejectedByAdmin:      {},
	StatusCancelled:            {},
}

// Valid проверяет, что строка является известным статусом
func (s OrderStatus) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// IsTerminal — терминальные статусы не допускают дальнейших переходов
func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusRejectedByAdmin || s == StatusCancelled
}

// CanTransition проверяет легальность перехода from -> to
func CanTransition(from, to OrderStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// DeliveryAddress — структурированный адрес доставки, хранится в колонках заказа
type DeliveryAddress struct {
	Name       string   `json:"name"`
	Street     string   `json:"street"`
	City       string   `json:"city"`
	State      string   `json:"state"`
	PostalCode string   `json:"postal_code"`
	Phone      string   `json:"phone"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
}

// Order — заказ покупателя с позициями, адресом и статусом жизненного цикла
type Order struct {
	ID              int64           `json:"id"`
	OrderNumber     string          `json:"order_number"`
	UserID          int64           `json:"user_id"`
	RiderID         *int64          `json:"rider_id,omitempty"`
	Status          OrderStatus     `json:"status"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	DeliveryAddress DeliveryAddress `json:"delivery_address"`
	RejectionReason string          `json:"rejection_reason,omitempty"` // заполняется только для REJECTED_BY_ADMIN
	Items           []OrderItem     `json:"items"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OrderItem — позиция заказа; создается вместе с заказом в одной транзакции
// и после этого неизменяема
type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}
