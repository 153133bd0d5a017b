package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/savelx/grocery-shop/internal/domain/models"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrOrderNumberTaken = errors.New("order number already taken")
)

// OrderStorage описывает методы для работы с заказами.
type OrderStorage interface {
	// CreateOrderTx вставляет заказ и все его позиции в одной транзакции.
	CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) (*models.Order, error)
	// GetOrderByID возвращает заказ вместе с позициями.
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	// ListOrders возвращает все заказы, новые первыми (позиции не загружаются).
	ListOrders(ctx context.Context) ([]*models.Order, error)
	// GetOrdersByUserID возвращает заказы пользователя, новые первыми.
	GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error)
	// LockOrderByIDTx читает заказ под блокировкой FOR UPDATE для проверки перехода.
	LockOrderByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error)
	// UpdateOrderStatusTx меняет статус (и причину отклонения) внутри транзакции.
	UpdateOrderStatusTx(ctx context.Context, tx *sql.Tx, id int64, status models.OrderStatus, reason *string) error
}

// orderRepository — конкретная реализация OrderStorage.
type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт новый репозиторий заказов.
func NewOrderRepository(db *sql.DB) OrderStorage {
	return &orderRepository{db: db}
}

const orderColumns = `id, order_number, user_id, rider_id, status, total_amount,
	addr_name, addr_street, addr_city, addr_state, addr_postal_code, addr_phone,
	addr_lat, addr_lng, rejection_reason, created_at, updated_at`

// scanOrder разбирает строку заказа с nullable-колонками
func scanOrder(row interface{ Scan(...interface{}) error }) (*models.Order, error) {
	order := &models.Order{}
	var riderID sql.NullInt64
	var lat, lng sql.NullFloat64
	var reason sql.NullString

	err := row.Scan(
		&order.ID, &order.OrderNumber, &order.UserID, &riderID, &order.Status, &order.TotalAmount,
		&order.DeliveryAddress.Name, &order.DeliveryAddress.Street, &order.DeliveryAddress.City,
		&order.DeliveryAddress.State, &order.DeliveryAddress.PostalCode, &order.DeliveryAddress.Phone,
		&lat, &lng, &reason, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if riderID.Valid {
		order.RiderID = &riderID.Int64
	}
	if lat.Valid {
		order.DeliveryAddress.Latitude = &lat.Float64
	}
	if lng.Valid {
		order.DeliveryAddress.Longitude = &lng.Float64
	}
	if reason.Valid {
		order.RejectionReason = reason.String
	}
	return order, nil
}

// CreateOrderTx вставляет заказ в таблицу orders и все позиции в order_items.
// Уникальный индекс по order_number превращается в ErrOrderNumberTaken,
// чтобы сервис мог перегенерировать номер и повторить.
func (r *orderRepository) CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) (*models.Order, error) {
	query := `INSERT INTO orders
		(order_number, user_id, status, total_amount,
		 addr_name, addr_street, addr_city, addr_state, addr_postal_code, addr_phone,
		 addr_lat, addr_lng, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	var lat, lng interface{}
	if order.DeliveryAddress.Latitude != nil {
		lat = *order.DeliveryAddress.Latitude
	}
	if order.DeliveryAddress.Longitude != nil {
		lng = *order.DeliveryAddress.Longitude
	}

	err := tx.QueryRowContext(ctx, query,
		order.OrderNumber, order.UserID, order.Status, order.TotalAmount,
		order.DeliveryAddress.Name, order.DeliveryAddress.Street, order.DeliveryAddress.City,
		order.DeliveryAddress.State, order.DeliveryAddress.PostalCode, order.DeliveryAddress.Phone,
		lat, lng,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, ErrOrderNumberTaken
		}
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err := tx.QueryRowContext(ctx,
			`INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price, line_total)
			 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			item.OrderID, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice, item.LineTotal,
		).Scan(&item.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to create order item: %w", err)
		}
	}

	return order, nil
}

// GetOrderByID возвращает заказ и его позиции.
func (r *orderRepository) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	items, err := r.itemsByOrderID(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (r *orderRepository) itemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, product_id, product_name, quantity, unit_price, line_total
		 FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName,
			&item.Quantity, &item.UnitPrice, &item.LineTotal); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// ListOrders возвращает все заказы для админа, новые первыми.
func (r *orderRepository) ListOrders(ctx context.Context) ([]*models.Order, error) {
	return r.listOrders(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
}

// GetOrdersByUserID возвращает заказы конкретного пользователя.
func (r *orderRepository) GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error) {
	return r.listOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (r *orderRepository) listOrders(ctx context.Context, query string, args ...interface{}) ([]*models.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

// LockOrderByIDTx читает заказ под FOR UPDATE: конкурентные accept/reject на одном
// заказе сериализуются БД, проигравший увидит уже изменённый статус.
func (r *orderRepository) LockOrderByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

// UpdateOrderStatusTx меняет статус заказа; reason записывается только вместе
// с отклонением (nil обнуляет колонку).
func (r *orderRepository) UpdateOrderStatusTx(ctx context.Context, tx *sql.Tx, id int64, status models.OrderStatus, reason *string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = $1, rejection_reason = $2, updated_at = NOW() WHERE id = $3`,
		status, reason, id)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}
