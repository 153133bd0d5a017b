package service_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/savelx/grocery-shop/internal/domain/models"
	"github.com/savelx/grocery-shop/internal/lib/metrics"
	"github.com/savelx/grocery-shop/internal/service"
	"github.com/savelx/grocery-shop/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOrderRepo — in-memory замена OrderStorage; транзакция приходит из sqlmock
// и в фейке не используется
type fakeOrderRepo struct {
	mu         sync.Mutex
	nextID     int64
	orders     map[int64]*models.Order
	createErrs []error
	updateErr  error
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[int64]*models.Order)}
}

func (f *fakeOrderRepo) seed(order *models.Order) *models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	copied := *order
	copied.ID = f.nextID
	f.orders[copied.ID] = &copied
	return &copied
}

func (f *fakeOrderRepo) CreateOrderTx(_ context.Context, _ *sql.Tx, order *models.Order) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	f.nextID++
	copied := *order
	copied.ID = f.nextID
	f.orders[copied.ID] = &copied
	return &copied, nil
}

func (f *fakeOrderRepo) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[id]
	if !ok {
		return nil, storage.ErrOrderNotFound
	}
	copied := *order
	return &copied, nil
}

func (f *fakeOrderRepo) ListOrders(_ context.Context) ([]*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Order, 0, len(f.orders))
	for _, order := range f.orders {
		copied := *order
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeOrderRepo) GetOrdersByUserID(_ context.Context, userID int64) ([]*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Order
	for _, order := range f.orders {
		if order.UserID == userID {
			copied := *order
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) LockOrderByIDTx(_ context.Context, _ *sql.Tx, id int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[id]
	if !ok {
		return nil, storage.ErrOrderNotFound
	}
	copied := *order
	return &copied, nil
}

func (f *fakeOrderRepo) UpdateOrderStatusTx(_ context.Context, _ *sql.Tx, id int64, status models.OrderStatus, reason *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	order, ok := f.orders[id]
	if !ok {
		return storage.ErrOrderNotFound
	}
	order.Status = status
	if reason != nil {
		order.RejectionReason = *reason
	}
	return nil
}

type statusUpdate struct {
	orderID int64
	status  models.OrderStatus
	reason  string
}

// fakeNotifier записывает публикации, чтобы проверить порядок и содержимое
type fakeNotifier struct {
	mu        sync.Mutex
	newOrders []*models.Order
	updates   []statusUpdate
}

func (f *fakeNotifier) PublishNewOrder(order *models.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.newOrders = append(f.newOrders, order)
}

func (f *fakeNotifier) PublishStatusUpdate(orderID int64, status models.OrderStatus, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, statusUpdate{orderID: orderID, status: status, reason: reason})
}

func newTestOrderService(t *testing.T) (service.OrderService, *fakeOrderRepo, *fakeNotifier, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := newFakeOrderRepo()
	notifier := &fakeNotifier{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewOrderService(log, db, repo, notifier, metrics.New(prometheus.NewRegistry()))
	return svc, repo, notifier, mock
}

func validAddress() models.DeliveryAddress {
	return models.DeliveryAddress{
		Name:       "Ivan Petrov",
		Street:     "Lenina 1",
		City:       "Moscow",
		State:      "Moscow",
		PostalCode: "101000",
		Phone:      "+79990001122",
	}
}

func validCreateRequest() service.CreateOrderRequest {
	return service.CreateOrderRequest{
		UserID: 7,
		Items: []service.CreateOrderItem{
			{ProductID: 1, ProductName: "Apples", Quantity: 2, UnitPrice: decimal.RequireFromString("50")},
		},
		Address:     validAddress(),
		TotalAmount: decimal.RequireFromString("100"),
	}
}

func TestCreateOrder_Success(t *testing.T) {
	svc, _, notifier, mock := newTestOrderService(t)

	mock.ExpectBegin()
	mock.ExpectCommit()

	order, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	assert.Equal(t, models.StatusPendingAdminDecision, order.Status)
	assert.True(t, strings.HasPrefix(order.OrderNumber, "GRC-"))
	assert.Equal(t, int64(7), order.UserID)
	require.Len(t, order.Items, 1)
	assert.True(t, order.Items[0].LineTotal.Equal(decimal.RequireFromString("100")))

	// новый заказ уходит админам ровно один раз
	require.Len(t, notifier.newOrders, 1)
	assert.Equal(t, order.ID, notifier.newOrders[0].ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrder_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(req *service.CreateOrderRequest)
		wantErr error
	}{
		{
			name:    "empty items",
			mutate:  func(req *service.CreateOrderRequest) { req.Items = nil },
			wantErr: service.ErrEmptyOrder,
		},
		{
			name:    "zero quantity",
			mutate:  func(req *service.CreateOrderRequest) { req.Items[0].Quantity = 0 },
			wantErr: service.ErrInvalidQuantity,
		},
		{
			name:    "missing phone",
			mutate:  func(req *service.CreateOrderRequest) { req.Address.Phone = "" },
			wantErr: service.ErrAddressIncomplete,
		},
		{
			name:    "total mismatch",
			mutate:  func(req *service.CreateOrderRequest) { req.TotalAmount = decimal.RequireFromString("99") },
			wantErr: service.ErrTotalMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, notifier, mock := newTestOrderService(t)

			req := validCreateRequest()
			tt.mutate(&req)

			_, err := svc.Create(context.Background(), req)
			assert.ErrorIs(t, err, tt.wantErr)

			// валидация падает до любого обращения к БД и рассылки
			assert.Empty(t, notifier.newOrders)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCreateOrder_NumberCollisionRetry(t *testing.T) {
	svc, repo, notifier, mock := newTestOrderService(t)
	repo.createErrs = []error{storage.ErrOrderNumberTaken}

	// первая транзакция откатывается, вторая с новым номером коммитится
	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	order, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	assert.NotZero(t, order.ID)
	assert.Len(t, notifier.newOrders, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrder_RepeatedCollisionFails(t *testing.T) {
	svc, repo, notifier, mock := newTestOrderService(t)
	repo.createErrs = []error{storage.ErrOrderNumberTaken, storage.ErrOrderNumberTaken}

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), validCreateRequest())
	assert.ErrorIs(t, err, storage.ErrOrderNumberTaken)
	assert.Empty(t, notifier.newOrders)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccept_Success(t *testing.T) {
	svc, repo, notifier, mock := newTestOrderService(t)
	seeded := repo.seed(&models.Order{UserID: 7, Status: models.StatusPendingAdminDecision})

	mock.ExpectBegin()
	mock.ExpectCommit()

	order, err := svc.Accept(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAdminAccepted, order.Status)

	stored, _ := repo.GetOrderByID(context.Background(), seeded.ID)
	assert.Equal(t, models.StatusAdminAccepted, stored.Status)

	require.Len(t, notifier.updates, 1)
	assert.Equal(t, seeded.ID, notifier.updates[0].orderID)
	assert.Equal(t, models.StatusAdminAccepted, notifier.updates[0].status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccept_Twice(t *testing.T) {
	svc, repo, notifier, mock := newTestOrderService(t)
	seeded := repo.seed(&models.Order{UserID: 7, Status: models.StatusPendingAdminDecision})

	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Accept(context.Background(), seeded.ID)
	require.NoError(t, err)

	// повторный accept — конфликт, статус не меняется, событие не рассылается
	_, err = svc.Accept(context.Background(), seeded.ID)
	ite, ok := service.AsInvalidTransition(err)
	require.True(t, ok)
	assert.Equal(t, models.StatusAdminAccepted, ite.From)
	assert.Equal(t, models.StatusAdminAccepted, ite.To)

	stored, _ := repo.GetOrderByID(context.Background(), seeded.ID)
	assert.Equal(t, models.StatusAdminAccepted, stored.Status)
	assert.Len(t, notifier.updates, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReject_BlankReason(t *testing.T) {
	svc, repo, notifier, mock := newTestOrderService(t)
	seeded := repo.seed(&models.Order{UserID: 7, Status: models.StatusPendingAdminDecision})

	_, err := svc.Reject(context.Background(), seeded.ID, "   ")
	assert.ErrorIs(t, err, service.ErrBlankReason)
	assert.Empty(t, notifier.updates)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReject_Success(t *testing.T) {
	svc, repo, notifier, mock := newTestOrderService(t)
	seeded := repo.seed(&models.Order{UserID: 7, Status: models.StatusPendingAdminDecision})

	mock.ExpectBegin()
	mock.ExpectCommit()

	order, err := svc.Reject(context.Background(), seeded.ID, "out of stock")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejectedByAdmin, order.Status)
	assert.Equal(t, "out of stock", order.RejectionReason)

	require.Len(t, notifier.updates, 1)
	assert.Equal(t, "out of stock", notifier.updates[0].reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_ForwardPath(t *testing.T) {
	svc, repo, _, mock := newTestOrderService(t)
	seeded := repo.seed(&models.Order{UserID: 7, Status: models.StatusAdminAccepted})

	path := []models.OrderStatus{
		models.StatusPreparing,
		models.StatusReadyForDelivery,
		models.StatusOutForDelivery,
		models.StatusDelivered,
	}
	for range path {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}

	for _, target := range path {
		order, err := svc.UpdateStatus(context.Background(), seeded.ID, target, "")
		require.NoError(t, err, "transition to %s", target)
		assert.Equal(t, target, order.Status)
	}

	// DELIVERED терминален: дальше двигаться некуда
	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err := svc.UpdateStatus(context.Background(), seeded.ID, models.StatusCancelled, "")
	_, ok := service.AsInvalidTransition(err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_IllegalJump(t *testing.T) {
	svc, repo, _, mock := newTestOrderService(t)
	seeded := repo.seed(&models.Order{UserID: 7, Status: models.StatusPendingAdminDecision})

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.UpdateStatus(context.Background(), seeded.ID, models.StatusDelivered, "")
	ite, ok := service.AsInvalidTransition(err)
	require.True(t, ok)
	assert.Equal(t, models.StatusPendingAdminDecision, ite.From)
	assert.Equal(t, models.StatusDelivered, ite.To)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	svc, _, _, mock := newTestOrderService(t)

	_, err := svc.UpdateStatus(context.Background(), 1, "SHIPPED_TO_MARS", "")
	assert.ErrorIs(t, err, service.ErrUnknownStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_RejectRequiresReason(t *testing.T) {
	svc, repo, _, mock := newTestOrderService(t)
	seeded := repo.seed(&models.Order{UserID: 7, Status: models.StatusPendingAdminDecision})

	_, err := svc.UpdateStatus(context.Background(), seeded.ID, models.StatusRejectedByAdmin, "")
	assert.ErrorIs(t, err, service.ErrBlankReason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_CancelFromNonTerminal(t *testing.T) {
	svc, repo, notifier, mock := newTestOrderService(t)
	seeded := repo.seed(&models.Order{UserID: 7, Status: models.StatusPreparing})

	mock.ExpectBegin()
	mock.ExpectCommit()

	order, err := svc.UpdateStatus(context.Background(), seeded.ID, models.StatusCancelled, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, order.Status)
	assert.Len(t, notifier.updates, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransition_OrderNotFound(t *testing.T) {
	svc, _, _, mock := newTestOrderService(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Accept(context.Background(), 404)
	assert.ErrorIs(t, err, storage.ErrOrderNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
