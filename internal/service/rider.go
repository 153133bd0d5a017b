package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/savelx/grocery-shop/internal/domain/models"
	security "github.com/savelx/grocery-shop/internal/jwt-new"
	"github.com/savelx/grocery-shop/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

// RiderService — регистрация/аутентификация курьеров и работа с профилем
type RiderService interface {
	Register(ctx context.Context, email, password, name, phone, vehicle string) (string, error)
	Login(ctx context.Context, email, password string) (string, error)
	GetProfile(ctx context.Context, riderID int64) (*models.Rider, error)
	UpdateProfile(ctx context.Context, riderID int64, name, phone, vehicle string) (*models.Rider, error)
}

type riderService struct {
	log       *slog.Logger
	riderRepo storage.RiderStorage
	tokenTTL  time.Duration
}

func NewRiderService(log *slog.Logger, riderRepo storage.RiderStorage, tokenTTL time.Duration) RiderService {
	return &riderService{
		log:       log,
		riderRepo: riderRepo,
		tokenTTL:  tokenTTL,
	}
}

func (s *riderService) Register(ctx context.Context, email, password, name, phone, vehicle string) (string, error) {
	const op = "service.RiderService.Register"
	logger := s.log.With(slog.String("op", op), slog.String("email", email))
	logger.Info("registering rider")

	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("failed to hash password", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to hash password: %w", op, err)
	}

	rider, err := s.riderRepo.CreateRider(ctx, &models.Rider{
		Email:    email,
		PassHash: passHash,
		Name:     name,
		Phone:    phone,
		Vehicle:  vehicle,
	})
	if err != nil {
		if errors.Is(err, storage.ErrRiderExists) {
			logger.Warn("rider already exists")
			return "", fmt.Errorf("%s: %w", op, err)
		}
		logger.Error("failed to create rider", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to create rider: %w", op, err)
	}

	token, err := security.NewToken(ctx, rider.ID, rider.Email, models.RoleRider, s.tokenTTL)
	if err != nil {
		logger.Error("failed to generate token", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to generate token: %w", op, err)
	}

	logger.Info("rider registered successfully", slog.Int64("riderID", rider.ID))
	return token, nil
}

func (s *riderService) Login(ctx context.Context, email, password string) (string, error) {
	const op = "service.RiderService.Login"
	logger := s.log.With(slog.String("op", op), slog.String("email", email))

	rider, err := s.riderRepo.GetRiderByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrRiderNotFound) {
			logger.Warn("rider not found")
			return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		logger.Error("failed to get rider", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to get rider: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword(rider.PassHash, []byte(password)); err != nil {
		logger.Warn("invalid password")
		return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	token, err := security.NewToken(ctx, rider.ID, rider.Email, models.RoleRider, s.tokenTTL)
	if err != nil {
		logger.Error("failed to generate token", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to generate token: %w", op, err)
	}

	logger.Info("rider logged in successfully", slog.Int64("riderID", rider.ID))
	return token, nil
}

func (s *riderService) GetProfile(ctx context.Context, riderID int64) (*models.Rider, error) {
	const op = "service.RiderService.GetProfile"
	rider, err := s.riderRepo.GetRiderByID(ctx, riderID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rider, nil
}

func (s *riderService) UpdateProfile(ctx context.Context, riderID int64, name, phone, vehicle string) (*models.Rider, error) {
	const op = "service.RiderService.UpdateProfile"
	logger := s.log.With(slog.String("op", op), slog.Int64("riderID", riderID))

	rider, err := s.riderRepo.GetRiderByID(ctx, riderID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if name != "" {
		rider.Name = name
	}
	if phone != "" {
		rider.Phone = phone
	}
	if vehicle != "" {
		rider.Vehicle = vehicle
	}

	if err := s.riderRepo.UpdateRiderProfile(ctx, rider); err != nil {
		logger.Error("failed to update profile", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to update profile: %w", op, err)
	}

	logger.Info("rider profile updated")
	return rider, nil
}
