package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/savelx/grocery-shop/internal/cart"
	"github.com/savelx/grocery-shop/internal/domain/models"
	"github.com/savelx/grocery-shop/internal/jwt-new/jwtmiddleware"
	"github.com/savelx/grocery-shop/internal/service"
	"github.com/savelx/grocery-shop/internal/storage"
	"github.com/shopspring/decimal"
)

// AddCartItemRequest — тело POST /api/cart/items
type AddCartItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required"`
	Quantity  int   `json:"quantity"`
}

// SetCartQuantityRequest — тело PUT /api/cart/items/{productID}
type SetCartQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// CheckoutRequest — тело POST /api/cart/checkout
type CheckoutRequest struct {
	DeliveryAddress models.DeliveryAddress `json:"delivery_address"`
}

// CartResponse — снимок корзины с итоговой суммой
type CartResponse struct {
	Items []cart.Item     `json:"items"`
	Total decimal.Decimal `json:"total"`
}

func cartResponse(c *cart.Service) CartResponse {
	return CartResponse{Items: c.Snapshot(), Total: c.Total()}
}

func userCart(r *http.Request, carts *cart.Manager) (*cart.Service, bool) {
	userID, ok := jwtmiddleware.FromContext(r.Context())
	if !ok {
		return nil, false
	}
	return carts.CartFor(userID), true
}

// GetCartHandler обрабатывает GET /api/cart
func GetCartHandler(log *slog.Logger, carts *cart.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetCartHandler"
		logger := log.With(slog.String("op", op))

		c, ok := userCart(r, carts)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		writeJSON(w, logger, http.StatusOK, cartResponse(c))
	}
}

// AddCartItemHandler обрабатывает POST /api/cart/items: товар читается из каталога,
// его снимок кладется в строку корзины
func AddCartItemHandler(log *slog.Logger, carts *cart.Manager, products storage.ProductStorage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AddCartItemHandler"
		logger := log.With(slog.String("op", op))

		c, ok := userCart(r, carts)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req AddCartItemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			http.Error(w, "validation error", http.StatusBadRequest)
			return
		}

		product, err := products.GetProductByID(r.Context(), req.ProductID)
		if err != nil {
			respondError(w, logger, err)
			return
		}

		c.Add(product, req.Quantity)
		writeJSON(w, logger, http.StatusOK, cartResponse(c))
	}
}

// SetCartQuantityHandler обрабатывает PUT /api/cart/items/{productID};
// quantity <= 0 удаляет строку
func SetCartQuantityHandler(log *slog.Logger, carts *cart.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.SetCartQuantityHandler"
		logger := log.With(slog.String("op", op))

		c, ok := userCart(r, carts)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
		if err != nil {
			http.Error(w, "invalid product id", http.StatusBadRequest)
			return
		}

		var req SetCartQuantityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		c.SetQuantity(productID, req.Quantity)
		writeJSON(w, logger, http.StatusOK, cartResponse(c))
	}
}

// RemoveCartItemHandler обрабатывает DELETE /api/cart/items/{productID};
// отсутствие строки — не ошибка
func RemoveCartItemHandler(log *slog.Logger, carts *cart.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.RemoveCartItemHandler"
		logger := log.With(slog.String("op", op))

		c, ok := userCart(r, carts)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
		if err != nil {
			http.Error(w, "invalid product id", http.StatusBadRequest)
			return
		}

		c.Remove(productID)
		writeJSON(w, logger, http.StatusOK, cartResponse(c))
	}
}

// ClearCartHandler обрабатывает DELETE /api/cart
func ClearCartHandler(log *slog.Logger, carts *cart.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ClearCartHandler"
		logger := log.With(slog.String("op", op))

		c, ok := userCart(r, carts)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		c.Clear()
		writeJSON(w, logger, http.StatusOK, cartResponse(c))
	}
}

// CheckoutHandler обрабатывает POST /api/cart/checkout: снимок корзины
// конвертируется в заказ, при успехе корзина очищается
func CheckoutHandler(log *slog.Logger, carts *cart.Manager, orders service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CheckoutHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		c := carts.CartFor(userID)

		var req CheckoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		snapshot := c.Snapshot()
		items := make([]service.CreateOrderItem, 0, len(snapshot))
		for _, line := range snapshot {
			items = append(items, service.CreateOrderItem{
				ProductID:   line.ProductID,
				ProductName: line.Name,
				Quantity:    line.Quantity,
				UnitPrice:   line.UnitPrice,
			})
		}

		order, err := orders.Create(r.Context(), service.CreateOrderRequest{
			UserID:      userID,
			Items:       items,
			Address:     req.DeliveryAddress,
			TotalAmount: c.Total(),
		})
		if err != nil {
			logger.Error("checkout failed", slog.Any("error", err))
			respondError(w, logger, err)
			return
		}

		// корзина очищается только после успешного создания заказа
		c.Clear()
		writeJSON(w, logger, http.StatusCreated, order)
	}
}
