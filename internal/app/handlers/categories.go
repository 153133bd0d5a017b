package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/savelx/grocery-shop/internal/service"
)

// ListCategoriesHandler обрабатывает GET /api/categories
func ListCategoriesHandler(log *slog.Logger, categories service.CategoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ListCategoriesHandler"
		logger := log.With(slog.String("op", op))

		result, err := categories.List(r.Context())
		if err != nil {
			logger.Error("failed to list categories", slog.Any("error", err))
			respondError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, result)
	}
}

// CreateCategoryHandler обрабатывает POST /api/categories (админ, multipart)
func CreateCategoryHandler(log *slog.Logger, categories service.CategoryService, uploadsDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateCategoryHandler"
		logger := log.With(slog.String("op", op))

		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		name := r.FormValue("name")
		if name == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}

		imageURL, err := saveUploadedImage(r, "image", uploadsDir)
		if err != nil {
			logger.Error("failed to save image", slog.Any("error", err))
			http.Error(w, "failed to save image", http.StatusInternalServerError)
			return
		}

		category, err := categories.Create(r.Context(), name, imageURL)
		if err != nil {
			logger.Error("failed to create category", slog.Any("error", err))
			respondError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusCreated, category)
	}
}

// UpdateCategoryHandler обрабатывает PUT /api/categories/{id} (админ, multipart)
func UpdateCategoryHandler(log *slog.Logger, categories service.CategoryService, uploadsDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateCategoryHandler"
		logger := log.With(slog.String("op", op))

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid category id", http.StatusBadRequest)
			return
		}

		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		name := r.FormValue("name")
		if name == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}

		imageURL, err := saveUploadedImage(r, "image", uploadsDir)
		if err != nil {
			logger.Error("failed to save image", slog.Any("error", err))
			http.Error(w, "failed to save image", http.StatusInternalServerError)
			return
		}

		category, err := categories.Update(r.Context(), id, name, imageURL)
		if err != nil {
			logger.Error("failed to update category", slog.Any("error", err))
			respondError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, category)
	}
}

// DeleteCategoryHandler обрабатывает DELETE /api/categories/{id} (админ)
func DeleteCategoryHandler(log *slog.Logger, categories service.CategoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.DeleteCategoryHandler"
		logger := log.With(slog.String("op", op))

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid category id", http.StatusBadRequest)
			return
		}

		if err := categories.Delete(r.Context(), id); err != nil {
			logger.Error("failed to delete category", slog.Any("error", err))
			respondError(w, logger, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
