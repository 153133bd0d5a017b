package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/savelx/grocery-shop/internal/domain/models"
	"github.com/savelx/grocery-shop/internal/jwt-new/jwtmiddleware"
	"github.com/savelx/grocery-shop/internal/service"
	"github.com/shopspring/decimal"
)

// OrderItemRequest — единственная каноническая форма позиции на границе REST
type OrderItemRequest struct {
	ProductID   int64           `json:"product_id" validate:"required"`
	ProductName string          `json:"product_name" validate:"required"`
	Quantity    int             `json:"quantity" validate:"required,gte=1"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// CreateOrderRequest — тело POST /api/orders
type CreateOrderRequest struct {
	Items           []OrderItemRequest     `json:"items" validate:"required,min=1,dive"`
	DeliveryAddress models.DeliveryAddress `json:"delivery_address"`
	TotalAmount     decimal.Decimal        `json:"total_amount"`
}

// RejectOrderRequest — тело POST /api/orders/{id}/reject
type RejectOrderRequest struct {
	RejectionReason string `json:"rejection_reason" validate:"required"`
}

// UpdateStatusRequest — тело PUT /api/orders/{id}/status
type UpdateStatusRequest struct {
	Status          string `json:"status" validate:"required"`
	RejectionReason string `json:"rejectionReason"`
}

func orderIDFromURL(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// CreateOrderHandler обрабатывает POST /api/orders
func CreateOrderHandler(log *slog.Logger, orders service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateOrderHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req CreateOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			http.Error(w, "validation error", http.StatusBadRequest)
			return
		}

		items := make([]service.CreateOrderItem, 0, len(req.Items))
		for _, item := range req.Items {
			items = append(items, service.CreateOrderItem{
				ProductID:   item.ProductID,
				ProductName: item.ProductName,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
			})
		}

		order, err := orders.Create(r.Context(), service.CreateOrderRequest{
			UserID:      userID,
			Items:       items,
			Address:     req.DeliveryAddress,
			TotalAmount: req.TotalAmount,
		})
		if err != nil {
			logger.Error("failed to create order", slog.Any("error", err))
			respondError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusCreated, order)
	}
}

// ListOrdersHandler обрабатывает GET /api/orders:
// админ видит все заказы, покупатель — только свои
func ListOrdersHandler(log *slog.Logger, orders service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ListOrdersHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		role, _ := jwtmiddleware.RoleFromContext(r.Context())

		var (
			result []*models.Order
			err    error
		)
		if role == models.RoleAdmin {
			result, err = orders.ListAll(r.Context())
		} else {
			result, err = orders.ListByUser(r.Context(), userID)
		}
		if err != nil {
			logger.Error("failed to list orders", slog.Any("error", err))
			respondError(w, logger, err)
			return
		}

		if result == nil {
			result = []*models.Order{}
		}
		writeJSON(w, logger, http.StatusOK, result)
	}
}

// GetOrderHandler обрабатывает GET /api/orders/{id};
// покупатель может смотреть только собственный заказ
func GetOrderHandler(log *slog.Logger, orders service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetOrderHandler"
		logger := log.With(slog.String("op", op))

		orderID, ok := orderIDFromURL(r)
		if !ok {
			http.Error(w, "invalid order id", http.StatusBadRequest)
			return
		}

		order, err := orders.GetByID(r.Context(), orderID)
		if err != nil {
			respondError(w, logger, err)
			return
		}

		role, _ := jwtmiddleware.RoleFromContext(r.Context())
		if role == models.RoleCustomer {
			userID, _ := jwtmiddleware.FromContext(r.Context())
			if order.UserID != userID {
				// чужой заказ неотличим от несуществующего
				http.Error(w, "order not found", http.StatusNotFound)
				return
			}
		}

		writeJSON(w, logger, http.StatusOK, order)
	}
}

// AcceptOrderHandler обрабатывает POST /api/orders/{id}/accept (только админ)
func AcceptOrderHandler(log *slog.Logger, orders service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AcceptOrderHandler"
		logger := log.With(slog.String("op", op))

		orderID, ok := orderIDFromURL(r)
		if !ok {
			http.Error(w, "invalid order id", http.StatusBadRequest)
			return
		}

		order, err := orders.Accept(r.Context(), orderID)
		if err != nil {
			logger.Error("failed to accept order", slog.Any("error", err))
			respondError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, order)
	}
}

// RejectOrderHandler обрабатывает POST /api/orders/{id}/reject (только админ)
func RejectOrderHandler(log *slog.Logger, orders service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.RejectOrderHandler"
		logger := log.With(slog.String("op", op))

		orderID, ok := orderIDFromURL(r)
		if !ok {
			http.Error(w, "invalid order id", http.StatusBadRequest)
			return
		}

		var req RejectOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		order, err := orders.Reject(r.Context(), orderID, req.RejectionReason)
		if err != nil {
			logger.Error("failed to reject order", slog.Any("error", err))
			respondError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, order)
	}
}

// UpdateOrderStatusHandler обрабатывает PUT /api/orders/{id}/status
// (админ и курьер); переход проверяется единым графом в сервисе
func UpdateOrderStatusHandler(log *slog.Logger, orders service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateOrderStatusHandler"
		logger := log.With(slog.String("op", op))

		orderID, ok := orderIDFromURL(r)
		if !ok {
			http.Error(w, "invalid order id", http.StatusBadRequest)
			return
		}

		var req UpdateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			http.Error(w, "validation error", http.StatusBadRequest)
			return
		}

		order, err := orders.UpdateStatus(r.Context(), orderID, models.OrderStatus(req.Status), req.RejectionReason)
		if err != nil {
			logger.Error("failed to update status", slog.Any("error", err))
			respondError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, order)
	}
}
