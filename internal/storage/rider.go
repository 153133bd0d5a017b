package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/savelx/grocery-shop/internal/domain/models"
)

var (
	ErrRiderNotFound = errors.New("rider not found")
	ErrRiderExists   = errors.New("rider already exists")
)

type RiderStorage interface {
	GetRiderByEmail(ctx context.Context, email string) (*models.Rider, error)
	GetRiderByID(ctx context.Context, id int64) (*models.Rider, error)
	CreateRider(ctx context.Context, rider *models.Rider) (*models.Rider, error)
	UpdateRiderProfile(ctx context.Context, rider *models.Rider) error
}

type riderRepository struct {
	db *sql.DB
}

func NewRiderRepository(db *sql.DB) RiderStorage {
	return &riderRepository{db: db}
}

func (r *riderRepository) GetRiderByEmail(ctx context.Context, email string) (*models.Rider, error) {
	rider := &models.Rider{}
	row := r.db.QueryRowContext(ctx,
		"SELECT id, email, pass_hash, name, phone, vehicle, created_at FROM riders WHERE email = $1", email)
	if err := row.Scan(&rider.ID, &rider.Email, &rider.PassHash, &rider.Name, &rider.Phone, &rider.Vehicle, &rider.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRiderNotFound
		}
		return nil, err
	}
	return rider, nil
}

func (r *riderRepository) GetRiderByID(ctx context.Context, id int64) (*models.Rider, error) {
	rider := &models.Rider{}
	row := r.db.QueryRowContext(ctx,
		"SELECT id, email, pass_hash, name, phone, vehicle, created_at FROM riders WHERE id = $1", id)
	if err := row.Scan(&rider.ID, &rider.Email, &rider.PassHash, &rider.Name, &rider.Phone, &rider.Vehicle, &rider.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRiderNotFound
		}
		return nil, err
	}
	return rider, nil
}

func (r *riderRepository) CreateRider(ctx context.Context, rider *models.Rider) (*models.Rider, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		"INSERT INTO riders (email, pass_hash, name, phone, vehicle) VALUES ($1, $2, $3, $4, $5) RETURNING id",
		rider.Email, rider.PassHash, rider.Name, rider.Phone, rider.Vehicle,
	).Scan(&id)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, ErrRiderExists
		}
		return nil, err
	}
	rider.ID = id
	return rider, nil
}

func (r *riderRepository) UpdateRiderProfile(ctx context.Context, rider *models.Rider) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE riders SET name = $1, phone = $2, vehicle = $3 WHERE id = $4",
		rider.Name, rider.Phone, rider.Vehicle, rider.ID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRiderNotFound
	}
	return nil
}
