package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/savelx/grocery-shop/internal/jwt-new/jwtmiddleware"
	"github.com/savelx/grocery-shop/internal/service"
)

// RiderRegisterRequest — тело POST /api/riders/register
type RiderRegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required"`
	Phone    string `json:"phone" validate:"required"`
	Vehicle  string `json:"vehicle"`
}

// RiderUpdateProfileRequest — тело PUT /api/riders/profile, все поля необязательны
type RiderUpdateProfileRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Vehicle string `json:"vehicle"`
}

// RiderRegisterHandler обрабатывает POST /api/riders/register
func RiderRegisterHandler(log *slog.Logger, riders service.RiderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.RiderRegisterHandler"
		logger := log.With(slog.String("op", op))

		var req RiderRegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			http.Error(w, "validation error", http.StatusBadRequest)
			return
		}

		token, err := riders.Register(r.Context(), req.Email, req.Password, req.Name, req.Phone, req.Vehicle)
		if err != nil {
			logger.Error("rider registration failed", slog.Any("error", err))
			respondError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusCreated, AuthResponse{Token: token})
	}
}

// RiderLoginHandler обрабатывает POST /api/riders/login
func RiderLoginHandler(log *slog.Logger, riders service.RiderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.RiderLoginHandler"
		logger := log.With(slog.String("op", op))

		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			http.Error(w, "validation error", http.StatusBadRequest)
			return
		}

		token, err := riders.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			logger.Error("rider login failed", slog.Any("error", err))
			respondError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, AuthResponse{Token: token})
	}
}

// RiderProfileHandler обрабатывает GET /api/riders/profile
func RiderProfileHandler(log *slog.Logger, riders service.RiderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.RiderProfileHandler"
		logger := log.With(slog.String("op", op))

		riderID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		rider, err := riders.GetProfile(r.Context(), riderID)
		if err != nil {
			respondError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, rider)
	}
}

// RiderUpdateProfileHandler обрабатывает PUT /api/riders/profile
func RiderUpdateProfileHandler(log *slog.Logger, riders service.RiderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.RiderUpdateProfileHandler"
		logger := log.With(slog.String("op", op))

		riderID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req RiderUpdateProfileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		rider, err := riders.UpdateProfile(r.Context(), riderID, req.Name, req.Phone, req.Vehicle)
		if err != nil {
			logger.Error("failed to update profile", slog.Any("error", err))
			respondError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, rider)
	}
}
