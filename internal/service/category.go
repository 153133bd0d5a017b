package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/savelx/grocery-shop/internal/domain/models"
	"github.com/savelx/grocery-shop/internal/storage"
)

type CategoryService interface {
	List(ctx context.Context) ([]*models.Category, error)
	Create(ctx context.Context, name, imageURL string) (*models.Category, error)
	Update(ctx context.Context, id int64, name, imageURL string) (*models.Category, error)
	Delete(ctx context.Context, id int64) error
}

type categoryService struct {
	log          *slog.Logger
	categoryRepo storage.CategoryStorage
}

func NewCategoryService(log *slog.Logger, categoryRepo storage.CategoryStorage) CategoryService {
	return &categoryService{log: log, categoryRepo: categoryRepo}
}

func (s *categoryService) List(ctx context.Context) ([]*models.Category, error) {
	const op = "service.CategoryService.List"
	categories, err := s.categoryRepo.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return categories, nil
}

func (s *categoryService) Create(ctx context.Context, name, imageURL string) (*models.Category, error) {
	const op = "service.CategoryService.Create"
	logger := s.log.With(slog.String("op", op), slog.String("name", name))

	category, err := s.categoryRepo.CreateCategory(ctx, &models.Category{Name: name, ImageURL: imageURL})
	if err != nil {
		logger.Error("failed to create category", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create category: %w", op, err)
	}

	logger.Info("category created", slog.Int64("categoryID", category.ID))
	return category, nil
}

func (s *categoryService) Update(ctx context.Context, id int64, name, imageURL string) (*models.Category, error) {
	const op = "service.CategoryService.Update"
	logger := s.log.With(slog.String("op", op), slog.Int64("categoryID", id))

	category, err := s.categoryRepo.GetCategoryByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	category.Name = name
	if imageURL != "" {
		category.ImageURL = imageURL
	}

	if err := s.categoryRepo.UpdateCategory(ctx, category); err != nil {
		logger.Error("failed to update category", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to update category: %w", op, err)
	}

	logger.Info("category updated")
	return category, nil
}

func (s *categoryService) Delete(ctx context.Context, id int64) error {
	const op = "service.CategoryService.Delete"
	if err := s.categoryRepo.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("category deleted", slog.String("op", op), slog.Int64("categoryID", id))
	return nil
}
