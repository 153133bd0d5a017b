package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/savelx/grocery-shop/internal/domain/models"
	"github.com/savelx/grocery-shop/internal/storage"
	"github.com/shopspring/decimal"
)

// ProductInput — каноническая форма товара на входе в сервис
type ProductInput struct {
	CategoryID  int64
	Name        string
	Description string
	Price       decimal.Decimal
	Unit        string
	ImageURL    string
}

type ProductService interface {
	Get(ctx context.Context, id int64) (*models.Product, error)
	List(ctx context.Context, categoryID int64) ([]*models.Product, error)
	Create(ctx context.Context, input ProductInput) (*models.Product, error)
	Update(ctx context.Context, id int64, input ProductInput) (*models.Product, error)
	Delete(ctx context.Context, id int64) error
}

type productService struct {
	log         *slog.Logger
	productRepo storage.ProductStorage
}

func NewProductService(log *slog.Logger, productRepo storage.ProductStorage) ProductService {
	return &productService{log: log, productRepo: productRepo}
}

func (s *productService) Get(ctx context.Context, id int64) (*models.Product, error) {
	const op = "service.ProductService.Get"
	product, err := s.productRepo.GetProductByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return product, nil
}

// List возвращает каталог: весь или по категории, если categoryID > 0
func (s *productService) List(ctx context.Context, categoryID int64) ([]*models.Product, error) {
	const op = "service.ProductService.List"
	var (
		products []*models.Product
		err      error
	)
	if categoryID > 0 {
		products, err = s.productRepo.ListProductsByCategory(ctx, categoryID)
	} else {
		products, err = s.productRepo.ListProducts(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return products, nil
}

func (s *productService) Create(ctx context.Context, input ProductInput) (*models.Product, error) {
	const op = "service.ProductService.Create"
	logger := s.log.With(slog.String("op", op), slog.String("name", input.Name))

	product, err := s.productRepo.CreateProduct(ctx, &models.Product{
		CategoryID:  input.CategoryID,
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		Unit:        input.Unit,
		ImageURL:    input.ImageURL,
	})
	if err != nil {
		logger.Error("failed to create product", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create product: %w", op, err)
	}

	logger.Info("product created", slog.Int64("productID", product.ID))
	return product, nil
}

func (s *productService) Update(ctx context.Context, id int64, input ProductInput) (*models.Product, error) {
	const op = "service.ProductService.Update"
	logger := s.log.With(slog.String("op", op), slog.Int64("productID", id))

	product, err := s.productRepo.GetProductByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	product.CategoryID = input.CategoryID
	product.Name = input.Name
	product.Description = input.Description
	product.Price = input.Price
	product.Unit = input.Unit
	if input.ImageURL != "" {
		// новое изображение необязательно: без файла сохраняем прежний URL
		product.ImageURL = input.ImageURL
	}

	if err := s.productRepo.UpdateProduct(ctx, product); err != nil {
		logger.Error("failed to update product", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to update product: %w", op, err)
	}

	logger.Info("product updated")
	return product, nil
}

func (s *productService) Delete(ctx context.Context, id int64) error {
	const op = "service.ProductService.Delete"
	if err := s.productRepo.DeleteProduct(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("product deleted", slog.String("op", op), slog.Int64("productID", id))
	return nil
}
