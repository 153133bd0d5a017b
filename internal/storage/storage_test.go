package storage_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/savelx/grocery-shop/internal/domain/models"
	"github.com/savelx/grocery-shop/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderColumns = []string{
	"id", "order_number", "user_id", "rider_id", "status", "total_amount",
	"addr_name", "addr_street", "addr_city", "addr_state", "addr_postal_code", "addr_phone",
	"addr_lat", "addr_lng", "rejection_reason", "created_at", "updated_at",
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func sampleOrderRow() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(orderColumns).AddRow(
		int64(1), "GRC-20260101-abcd1234", int64(7), nil, "PENDING_ADMIN_DECISION", "100",
		"Ivan Petrov", "Lenina 1", "Moscow", "Moscow", "101000", "+79990001122",
		nil, nil, nil, now, now,
	)
}

func TestCreateOrderTx_Success(t *testing.T) {
	db, mock := newMockDB(t)
	repo := storage.NewOrderRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO orders").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(1), now, now))
	mock.ExpectQuery("INSERT INTO order_items").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(10)))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)

	order := &models.Order{
		OrderNumber: "GRC-20260101-abcd1234",
		UserID:      7,
		Status:      models.StatusPendingAdminDecision,
		TotalAmount: decimal.RequireFromString("100"),
		Items: []models.OrderItem{
			{ProductID: 1, ProductName: "Apples", Quantity: 2,
				UnitPrice: decimal.RequireFromString("50"), LineTotal: decimal.RequireFromString("100")},
		},
	}
	created, err := repo.CreateOrderTx(context.Background(), tx, order)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, int64(10), created.Items[0].ID)
	assert.Equal(t, int64(1), created.Items[0].OrderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrderTx_DuplicateNumber(t *testing.T) {
	db, mock := newMockDB(t)
	repo := storage.NewOrderRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO orders").
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)

	_, err = repo.CreateOrderTx(context.Background(), tx, &models.Order{OrderNumber: "GRC-x"})
	assert.ErrorIs(t, err, storage.ErrOrderNumberTaken)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

// падение вставки позиции откатывает всю транзакцию: в БД не остаётся
// ни заказа, ни части позиций
func TestCreateOrderTx_ItemInsertFailureRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := storage.NewOrderRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO orders").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(1), now, now))
	mock.ExpectQuery("INSERT INTO order_items").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)

	order := &models.Order{
		OrderNumber: "GRC-20260101-abcd1234",
		Items: []models.OrderItem{
			{ProductID: 1, ProductName: "Apples", Quantity: 2},
		},
	}
	_, err = repo.CreateOrderTx(context.Background(), tx, order)
	require.Error(t, err)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrderByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := storage.NewOrderRepository(db)

	mock.ExpectQuery("FROM orders WHERE id =").
		WithArgs(int64(1)).
		WillReturnRows(sampleOrderRow())
	mock.ExpectQuery("FROM order_items WHERE order_id =").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "order_id", "product_id", "product_name", "quantity", "unit_price", "line_total"}).
			AddRow(int64(10), int64(1), int64(1), "Apples", 2, "50", "100"))

	order, err := repo.GetOrderByID(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, models.StatusPendingAdminDecision, order.Status)
	assert.Nil(t, order.RiderID)
	assert.Empty(t, order.RejectionReason)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Apples", order.Items[0].ProductName)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("100")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrderByID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := storage.NewOrderRepository(db)

	mock.ExpectQuery("FROM orders WHERE id =").
		WithArgs(int64(404)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetOrderByID(context.Background(), 404)
	assert.ErrorIs(t, err, storage.ErrOrderNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockOrderByIDTx(t *testing.T) {
	db, mock := newMockDB(t)
	repo := storage.NewOrderRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(int64(1)).
		WillReturnRows(sampleOrderRow())
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)

	order, err := repo.LockOrderByIDTx(context.Background(), tx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), order.ID)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOrderStatusTx(t *testing.T) {
	db, mock := newMockDB(t)
	repo := storage.NewOrderRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE orders SET status =").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)

	reason := "out of stock"
	err = repo.UpdateOrderStatusTx(context.Background(), tx, 1, models.StatusRejectedByAdmin, &reason)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOrderStatusTx_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := storage.NewOrderRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE orders SET status =").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)

	err = repo.UpdateOrderStatusTx(context.Background(), tx, 404, models.StatusAdminAccepted, nil)
	assert.ErrorIs(t, err, storage.ErrOrderNotFound)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	db, mock := newMockDB(t)
	repo := storage.NewUserRepository(db)

	mock.ExpectQuery("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.CreateUser(context.Background(), &models.User{Email: "ivan@example.com"})
	assert.ErrorIs(t, err, storage.ErrUserExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByEmail_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := storage.NewUserRepository(db)

	mock.ExpectQuery("FROM users WHERE email =").
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetUserByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
