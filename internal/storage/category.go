package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/savelx/grocery-shop/internal/domain/models"
)

var ErrCategoryNotFound = errors.New("category not found")

type CategoryStorage interface {
	ListCategories(ctx context.Context) ([]*models.Category, error)
	GetCategoryByID(ctx context.Context, id int64) (*models.Category, error)
	CreateCategory(ctx context.Context, category *models.Category) (*models.Category, error)
	UpdateCategory(ctx context.Context, category *models.Category) error
	DeleteCategory(ctx context.Context, id int64) error
}

type categoryRepository struct {
	db *sql.DB
}

func NewCategoryRepository(db *sql.DB) CategoryStorage {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) ListCategories(ctx context.Context) ([]*models.Category, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name, image_url, created_at FROM categories ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []*models.Category
	for rows.Next() {
		category := &models.Category{}
		var imageURL sql.NullString
		if err := rows.Scan(&category.ID, &category.Name, &imageURL, &category.CreatedAt); err != nil {
			return nil, err
		}
		if imageURL.Valid {
			category.ImageURL = imageURL.String
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *categoryRepository) GetCategoryByID(ctx context.Context, id int64) (*models.Category, error) {
	category := &models.Category{}
	var imageURL sql.NullString
	row := r.db.QueryRowContext(ctx, "SELECT id, name, image_url, created_at FROM categories WHERE id = $1", id)
	if err := row.Scan(&category.ID, &category.Name, &imageURL, &category.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	if imageURL.Valid {
		category.ImageURL = imageURL.String
	}
	return category, nil
}

func (r *categoryRepository) CreateCategory(ctx context.Context, category *models.Category) (*models.Category, error) {
	err := r.db.QueryRowContext(ctx,
		"INSERT INTO categories (name, image_url, created_at) VALUES ($1, $2, NOW()) RETURNING id, created_at",
		category.Name, category.ImageURL,
	).Scan(&category.ID, &category.CreatedAt)
	if err != nil {
		return nil, err
	}
	return category, nil
}

func (r *categoryRepository) UpdateCategory(ctx context.Context, category *models.Category) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE categories SET name = $1, image_url = $2 WHERE id = $3",
		category.Name, category.ImageURL, category.ID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

func (r *categoryRepository) DeleteCategory(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM categories WHERE id = $1", id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCategoryNotFound
	}
	return nil
}
