package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/savelx/grocery-shop/internal/service"
	"github.com/savelx/grocery-shop/internal/storage"
)

// writeJSON сериализует ответ; ошибка кодирования — internal server error
func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", slog.Any("error", err))
	}
}

type errorResponse struct {
	Error           string `json:"error"`
	CurrentStatus   string `json:"current_status,omitempty"`
	AttemptedStatus string `json:"attempted_status,omitempty"`
}

// respondError отображает таксономию ошибок сервиса на HTTP-коды:
// валидация — 400, нелегальный переход — 409 (с текущим и запрошенным статусами),
// не найдено — 404, аутентификация — 401, остальное — 500.
func respondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if ite, ok := service.AsInvalidTransition(err); ok {
		writeJSON(w, logger, http.StatusConflict, errorResponse{
			Error:           ite.Error(),
			CurrentStatus:   string(ite.From),
			AttemptedStatus: string(ite.To),
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrEmptyOrder),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrBlankReason),
		errors.Is(err, service.ErrAddressIncomplete),
		errors.Is(err, service.ErrTotalMismatch),
		errors.Is(err, service.ErrUnknownStatus):
		writeJSON(w, logger, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrInvalidCredentials):
		writeJSON(w, logger, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case errors.Is(err, storage.ErrOrderNotFound),
		errors.Is(err, storage.ErrProductNotFound),
		errors.Is(err, storage.ErrCategoryNotFound),
		errors.Is(err, storage.ErrUserNotFound),
		errors.Is(err, storage.ErrRiderNotFound):
		writeJSON(w, logger, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, storage.ErrUserExists),
		errors.Is(err, storage.ErrRiderExists):
		writeJSON(w, logger, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		logger.Error("internal error", slog.Any("error", err))
		writeJSON(w, logger, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}
