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

type AuthService struct {
	log      *slog.Logger
	userRepo storage.UserStorage
	tokenTTL time.Duration
}

func NewAuthService(log *slog.Logger, userRepo storage.UserStorage, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		log:      log,
		userRepo: userRepo,
		tokenTTL: tokenTTL,
	}
}

type AuthServiceInterface interface {
	Register(ctx context.Context, email, password, name, phone string) (string, error)
	Login(ctx context.Context, email, password string) (string, error)
}

// Register создает нового покупателя (пароль хэшируется через bcrypt, который
// автоматически добавляет соль) и сразу выдает JWT-токен.
// Админы не регистрируются через API — они заводятся миграцией/вручную.
func (a *AuthService) Register(ctx context.Context, email, password, name, phone string) (string, error) {
	const op = "auth.Register"
	logger := a.log.With(
		slog.String("op", op),
		slog.String("email", email),
	)
	logger.Info("registering user")

	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("failed to hash password", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to hash password: %w", op, err)
	}

	newUser := &models.User{
		Email:    email,
		PassHash: passHash,
		Name:     name,
		Phone:    phone,
		Role:     models.RoleCustomer,
	}
	user, err := a.userRepo.CreateUser(ctx, newUser)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			logger.Warn("user already exists")
			return "", fmt.Errorf("%s: %w", op, err)
		}
		logger.Error("failed to create user", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to create user: %w", op, err)
	}

	token, err := security.NewToken(ctx, user.ID, user.Email, user.Role, a.tokenTTL)
	if err != nil {
		logger.Error("failed to generate token", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to generate token: %w", op, err)
	}

	logger.Info("user registered successfully", slog.Int64("userID", user.ID))
	return token, nil
}

// Login осуществляет аутентификацию пользователя: введённый пароль сравнивается
// с сохранённым хэшированным значением, после проверки генерируется JWT-токен
// с ролью пользователя (секрет для подписи берется из переменной окружения).
func (a *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	const op = "auth.Login"
	logger := a.log.With(
		slog.String("op", op),
		slog.String("email", email),
	)
	logger.Info("checking user")

	user, err := a.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			logger.Warn("user not found")
			return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		logger.Error("failed to get user", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to get user: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
		logger.Warn("invalid password")
		return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	token, err := security.NewToken(ctx, user.ID, user.Email, user.Role, a.tokenTTL)
	if err != nil {
		logger.Error("failed to generate token", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to generate token: %w", op, err)
	}

	logger.Info("user logged in successfully", slog.Int64("userID", user.ID))
	return token, nil
}
