package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/savelx/grocery-shop/internal/domain/models"
	"github.com/savelx/grocery-shop/internal/lib/metrics"
	"github.com/savelx/grocery-shop/internal/storage"
	"github.com/shopspring/decimal"
)

// OrderNotifier — слой рассылки событий жизненного цикла. Вызывается после коммита,
// best-effort: ошибки доставки не влияют на результат операции.
type OrderNotifier interface {
	PublishNewOrder(order *models.Order)
	PublishStatusUpdate(orderID int64, status models.OrderStatus, reason string)
}

// CreateOrderItem — каноническая форма позиции на входе в сервис,
// приведение форматов клиента выполняется на границе REST.
type CreateOrderItem struct {
	ProductID   int64
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

type CreateOrderRequest struct {
	UserID      int64
	Items       []CreateOrderItem
	Address     models.DeliveryAddress
	TotalAmount decimal.Decimal
}

// OrderService — машина состояний заказа. Все изменения статуса проходят
// через единый граф переходов внутри одной транзакции БД.
type OrderService interface {
	Create(ctx context.Context, req CreateOrderRequest) (*models.Order, error)
	Accept(ctx context.Context, orderID int64) (*models.Order, error)
	Reject(ctx context.Context, orderID int64, reason string) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID int64, target models.OrderStatus, reason string) (*models.Order, error)
	GetByID(ctx context.Context, orderID int64) (*models.Order, error)
	ListAll(ctx context.Context) ([]*models.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.Order, error)
}

type orderService struct {
	log       *slog.Logger
	db        *sql.DB
	orderRepo storage.OrderStorage
	notifier  OrderNotifier
	metrics   *metrics.Metrics
}

func NewOrderService(log *slog.Logger, db *sql.DB, orderRepo storage.OrderStorage, notifier OrderNotifier, m *metrics.Metrics) OrderService {
	return &orderService{
		log:       log,
		db:        db,
		orderRepo: orderRepo,
		notifier:  notifier,
		metrics:   m,
	}
}

// generateOrderNumber выдает человекочитаемый номер; уникальность гарантирует
// индекс в БД, при коллизии номер перегенерируется
func generateOrderNumber() string {
	return fmt.Sprintf("GRC-%s-%s", time.Now().Format("20060102"), uuid.NewString()[:8])
}

// validateCreate проверяет запрос до любой мутации
func validateCreate(req CreateOrderRequest) error {
	if len(req.Items) == 0 {
		return ErrEmptyOrder
	}
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return ErrInvalidQuantity
		}
	}

	addr := req.Address
	if addr.Name == "" || addr.Street == "" || addr.City == "" ||
		addr.State == "" || addr.PostalCode == "" || addr.Phone == "" {
		return ErrAddressIncomplete
	}

	sum := decimal.Zero
	for _, item := range req.Items {
		sum = sum.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	if !sum.Equal(req.TotalAmount) {
		return ErrTotalMismatch
	}
	return nil
}

// Create валидирует запрос, записывает заказ и позиции в одной транзакции
// (откат — всё или ничего) и после коммита рассылает new_order админам.
func (s *orderService) Create(ctx context.Context, req CreateOrderRequest) (*models.Order, error) {
	const op = "service.OrderService.Create"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", req.UserID))

	if err := validateCreate(req); err != nil {
		logger.Warn("order validation failed", slog.Any("error", err))
		return nil, err
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, models.OrderItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))),
		})
	}

	var created *models.Order
	// одна повторная попытка на случай коллизии номера заказа
	for attempt := 0; attempt < 2; attempt++ {
		order := &models.Order{
			OrderNumber:     generateOrderNumber(),
			UserID:          req.UserID,
			Status:          models.StatusPendingAdminDecision,
			TotalAmount:     req.TotalAmount,
			DeliveryAddress: req.Address,
			Items:           items,
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			logger.Error("failed to begin transaction", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
		}

		created, err = s.orderRepo.CreateOrderTx(ctx, tx, order)
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Error("transaction rollback failed", slog.Any("error", rbErr))
			}
			if errors.Is(err, storage.ErrOrderNumberTaken) && attempt == 0 {
				logger.Warn("order number collision, retrying", slog.String("number", order.OrderNumber))
				continue
			}
			logger.Error("failed to create order", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to create order: %w", op, err)
		}

		if err := tx.Commit(); err != nil {
			logger.Error("failed to commit transaction", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
		}
		break
	}

	s.metrics.OrdersCreated.Inc()
	logger.Info("order created",
		slog.Int64("orderID", created.ID),
		slog.String("number", created.OrderNumber),
	)

	// fire-and-forget: заказ уже сохранен, ошибки нотификации не пробрасываются
	s.notifier.PublishNewOrder(created)
	return created, nil
}

// Accept переводит заказ PENDING_ADMIN_DECISION -> ADMIN_ACCEPTED.
// Повторный accept возвращает InvalidTransitionError, статус не меняется.
func (s *orderService) Accept(ctx context.Context, orderID int64) (*models.Order, error) {
	return s.transition(ctx, "service.OrderService.Accept", orderID, models.StatusAdminAccepted, nil)
}

// Reject переводит заказ в REJECTED_BY_ADMIN с обязательной причиной.
func (s *orderService) Reject(ctx context.Context, orderID int64, reason string) (*models.Order, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrBlankReason
	}
	return s.transition(ctx, "service.OrderService.Reject", orderID, models.StatusRejectedByAdmin, &reason)
}

// UpdateStatus — generic-переход, ограниченный легальным графом:
// ADMIN_ACCEPTED -> PREPARING -> READY_FOR_DELIVERY -> OUT_FOR_DELIVERY -> DELIVERED,
// плюс CANCELLED из любого нетерминального статуса и REJECTED_BY_ADMIN из PENDING.
func (s *orderService) UpdateStatus(ctx context.Context, orderID int64, target models.OrderStatus, reason string) (*models.Order, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStatus, target)
	}
	var reasonPtr *string
	if target == models.StatusRejectedByAdmin {
		if strings.TrimSpace(reason) == "" {
			return nil, ErrBlankReason
		}
		reasonPtr = &reason
	}
	return s.transition(ctx, "service.OrderService.UpdateStatus", orderID, target, reasonPtr)
}

// transition выполняет проверку легальности и запись статуса в одной транзакции
// с блокировкой строки заказа: из двух конкурентных переходов побеждает тот,
// чья транзакция закоммитится первой, второй получает InvalidTransitionError.
func (s *orderService) transition(ctx context.Context, op string, orderID int64, target models.OrderStatus, reason *string) (*models.Order, error) {
	logger := s.log.With(
		slog.String("op", op),
		slog.Int64("orderID", orderID),
		slog.String("target", string(target)),
	)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	order, err := s.orderRepo.LockOrderByIDTx(ctx, tx, orderID)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to lock order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get order: %w", op, err)
	}

	if !models.CanTransition(order.Status, target) {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Warn("illegal transition", slog.String("current", string(order.Status)))
		return nil, &InvalidTransitionError{From: order.Status, To: target}
	}

	if err := s.orderRepo.UpdateOrderStatusTx(ctx, tx, orderID, target, reason); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to update status", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to update status: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	order.Status = target
	reasonStr := ""
	if reason != nil {
		order.RejectionReason = *reason
		reasonStr = *reason
	}

	s.metrics.StatusTransitions.WithLabelValues(string(target)).Inc()
	logger.Info("order status updated")

	// рассылка после коммита; при падении процесса между коммитом и рассылкой
	// изменение сохраняется, а уведомление теряется — принятое поведение канала
	s.notifier.PublishStatusUpdate(orderID, target, reasonStr)
	return order, nil
}

func (s *orderService) GetByID(ctx context.Context, orderID int64) (*models.Order, error) {
	const op = "service.OrderService.GetByID"
	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return order, nil
}

func (s *orderService) ListAll(ctx context.Context) ([]*models.Order, error) {
	const op = "service.OrderService.ListAll"
	orders, err := s.orderRepo.ListOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}

func (s *orderService) ListByUser(ctx context.Context, userID int64) ([]*models.Order, error) {
	const op = "service.OrderService.ListByUser"
	orders, err := s.orderRepo.GetOrdersByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}
