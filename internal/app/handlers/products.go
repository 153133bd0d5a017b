package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/savelx/grocery-shop/internal/service"
	"github.com/shopspring/decimal"
)

// parseProductForm разбирает multipart-форму товара (изображение необязательно)
func parseProductForm(r *http.Request, uploadsDir string) (service.ProductInput, error) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return service.ProductInput{}, err
	}

	categoryID, err := strconv.ParseInt(r.FormValue("category_id"), 10, 64)
	if err != nil {
		return service.ProductInput{}, err
	}
	price, err := decimal.NewFromString(r.FormValue("price"))
	if err != nil {
		return service.ProductInput{}, err
	}

	imageURL, err := saveUploadedImage(r, "image", uploadsDir)
	if err != nil {
		return service.ProductInput{}, err
	}

	return service.ProductInput{
		CategoryID:  categoryID,
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Price:       price,
		Unit:        r.FormValue("unit"),
		ImageURL:    imageURL,
	}, nil
}

// ListProductsHandler обрабатывает GET /api/products (?category_id= фильтрует)
func ListProductsHandler(log *slog.Logger, products service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ListProductsHandler"
		logger := log.With(slog.String("op", op))

		var categoryID int64
		if raw := r.URL.Query().Get("category_id"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				http.Error(w, "invalid category_id", http.StatusBadRequest)
				return
			}
			categoryID = id
		}

		result, err := products.List(r.Context(), categoryID)
		if err != nil {
			logger.Error("failed to list products", slog.Any("error", err))
			respondError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, result)
	}
}

// GetProductHandler обрабатывает GET /api/products/{id}
func GetProductHandler(log *slog.Logger, products service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetProductHandler"
		logger := log.With(slog.String("op", op))

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid product id", http.StatusBadRequest)
			return
		}

		product, err := products.Get(r.Context(), id)
		if err != nil {
			respondError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, product)
	}
}

// CreateProductHandler обрабатывает POST /api/products (админ, multipart)
func CreateProductHandler(log *slog.Logger, products service.ProductService, uploadsDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateProductHandler"
		logger := log.With(slog.String("op", op))

		input, err := parseProductForm(r, uploadsDir)
		if err != nil {
			logger.Error("invalid product form", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if input.Name == "" || input.Unit == "" {
			http.Error(w, "name and unit are required", http.StatusBadRequest)
			return
		}

		product, err := products.Create(r.Context(), input)
		if err != nil {
			logger.Error("failed to create product", slog.Any("error", err))
			respondError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusCreated, product)
	}
}

// UpdateProductHandler обрабатывает PUT /api/products/{id} (админ, multipart)
func UpdateProductHandler(log *slog.Logger, products service.ProductService, uploadsDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateProductHandler"
		logger := log.With(slog.String("op", op))

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid product id", http.StatusBadRequest)
			return
		}

		input, err := parseProductForm(r, uploadsDir)
		if err != nil {
			logger.Error("invalid product form", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		product, err := products.Update(r.Context(), id, input)
		if err != nil {
			logger.Error("failed to update product", slog.Any("error", err))
			respondError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, product)
	}
}

// DeleteProductHandler обрабатывает DELETE /api/products/{id} (админ)
func DeleteProductHandler(log *slog.Logger, products service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.DeleteProductHandler"
		logger := log.With(slog.String("op", op))

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid product id", http.StatusBadRequest)
			return
		}

		if err := products.Delete(r.Context(), id); err != nil {
			logger.Error("failed to delete product", slog.Any("error", err))
			respondError(w, logger, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
