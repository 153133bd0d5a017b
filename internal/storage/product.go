package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/savelx/grocery-shop/internal/domain/models"
)

var ErrProductNotFound = errors.New("product not found")

// ProductStorage описывает методы для работы с каталогом товаров.
type ProductStorage interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context) ([]*models.Product, error)
	ListProductsByCategory(ctx context.Context, categoryID int64) ([]*models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error)
	UpdateProduct(ctx context.Context, product *models.Product) error
	DeleteProduct(ctx context.Context, id int64) error
}

type productRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) ProductStorage {
	return &productRepository{db: db}
}

const productColumns = "id, category_id, name, description, price, unit, image_url, created_at, updated_at"

func scanProduct(row interface{ Scan(...interface{}) error }) (*models.Product, error) {
	product := &models.Product{}
	var imageURL sql.NullString
	err := row.Scan(&product.ID, &product.CategoryID, &product.Name, &product.Description,
		&product.Price, &product.Unit, &imageURL, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if imageURL.Valid {
		product.ImageURL = imageURL.String
	}
	return product, nil
}

func (r *productRepository) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

func (r *productRepository) ListProducts(ctx context.Context) ([]*models.Product, error) {
	return r.list(ctx, "SELECT "+productColumns+" FROM products ORDER BY name")
}

func (r *productRepository) ListProductsByCategory(ctx context.Context, categoryID int64) ([]*models.Product, error) {
	return r.list(ctx, "SELECT "+productColumns+" FROM products WHERE category_id = $1 ORDER BY name", categoryID)
}

func (r *productRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *productRepository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO products (category_id, name, description, price, unit, image_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		 RETURNING id, created_at, updated_at`,
		product.CategoryID, product.Name, product.Description, product.Price, product.Unit, product.ImageURL,
	).Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (r *productRepository) UpdateProduct(ctx context.Context, product *models.Product) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE products SET category_id = $1, name = $2, description = $3, price = $4, unit = $5,
		 image_url = $6, updated_at = NOW() WHERE id = $7`,
		product.CategoryID, product.Name, product.Description, product.Price, product.Unit,
		product.ImageURL, product.ID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *productRepository) DeleteProduct(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}
