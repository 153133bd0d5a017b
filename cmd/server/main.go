package main

import (
	"context"

	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/savelx/grocery-shop/internal/app"
	"github.com/savelx/grocery-shop/internal/app/handlers"
	"github.com/savelx/grocery-shop/internal/cart"
	"github.com/savelx/grocery-shop/internal/config"
	"github.com/savelx/grocery-shop/internal/jwt-new/jwtmiddleware"
	"github.com/savelx/grocery-shop/internal/lib/logger"
	"github.com/savelx/grocery-shop/internal/lib/logger/handlers/urllog"
	"github.com/savelx/grocery-shop/internal/lib/metrics"
	"github.com/savelx/grocery-shop/internal/realtime"
	"github.com/savelx/grocery-shop/internal/service"
	"github.com/savelx/grocery-shop/internal/storage"
)

func main() {
	// локальный .env подхватывается, если есть; в проде переменные приходят из окружения
	_ = godotenv.Load()

	// загрузка конфигурации
	cfg := config.MustLoad()

	// инициализация логгера, зависит от настройки окружения
	log := logger.SetupLogger(cfg.Env)
	log.Info("starting app", slog.String("env", cfg.Env))

	// загружаем объект приложения, конфигом и подключением к БД
	application, err := app.NewApp(log, cfg)
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to initialize app"))
	}
	defer application.DB.Close()

	m := metrics.NewDefault()

	router := chi.NewRouter()
	// настройка middleware
	router.Use(middleware.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	// реализация слоев по работе с БД по каждому направлению
	userRepo := storage.NewUserRepository(application.DB)
	riderRepo := storage.NewRiderRepository(application.DB)
	productRepo := storage.NewProductRepository(application.DB)
	categoryRepo := storage.NewCategoryRepository(application.DB)
	orderRepo := storage.NewOrderRepository(application.DB)

	// websocket-хаб и сервисы
	hub := realtime.NewHub(application.Logger, m)
	tokenTTL := time.Duration(application.Config.JWT.TokenTTL) * time.Minute
	authService := service.NewAuthService(application.Logger, userRepo, tokenTTL)
	riderService := service.NewRiderService(application.Logger, riderRepo, tokenTTL)
	productService := service.NewProductService(application.Logger, productRepo)
	categoryService := service.NewCategoryService(application.Logger, categoryRepo)
	orderService := service.NewOrderService(application.Logger, application.DB, orderRepo, hub, m)
	carts := cart.NewManager()

	wsHandler := realtime.NewHandler(application.Logger, hub, orderService, m, cfg.Realtime)

	uploadsDir := cfg.Uploads.Dir

	// публичные эндпоинты
	router.Post("/api/auth/register", handlers.RegisterHandler(application.Logger, authService))
	router.Post("/api/auth/login", handlers.LoginHandler(application.Logger, authService))
	router.Post("/api/riders/register", handlers.RiderRegisterHandler(application.Logger, riderService))
	router.Post("/api/riders/login", handlers.RiderLoginHandler(application.Logger, riderService))
	router.Get("/api/products", handlers.ListProductsHandler(application.Logger, productService))
	router.Get("/api/products/{id}", handlers.GetProductHandler(application.Logger, productService))
	router.Get("/api/categories", handlers.ListCategoriesHandler(application.Logger, categoryService))
	router.Get("/ws", wsHandler.ServeWS)
	router.Handle("/metrics", metrics.Handler())
	router.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploadsDir))))

	jwtMW := jwtmiddleware.NewJWTMiddleware()

	// эндпоинты покупателя
	router.Group(func(r chi.Router) {
		r.Use(jwtMW)
		r.Post("/api/orders", handlers.CreateOrderHandler(application.Logger, orderService))
		r.Get("/api/orders", handlers.ListOrdersHandler(application.Logger, orderService))
		r.Get("/api/orders/{id}", handlers.GetOrderHandler(application.Logger, orderService))

		r.Get("/api/cart", handlers.GetCartHandler(application.Logger, carts))
		r.Post("/api/cart/items", handlers.AddCartItemHandler(application.Logger, carts, productRepo))
		r.Put("/api/cart/items/{productID}", handlers.SetCartQuantityHandler(application.Logger, carts))
		r.Delete("/api/cart/items/{productID}", handlers.RemoveCartItemHandler(application.Logger, carts))
		r.Delete("/api/cart", handlers.ClearCartHandler(application.Logger, carts))
		r.Post("/api/cart/checkout", handlers.CheckoutHandler(application.Logger, carts, orderService))
	})

	// админские эндпоинты
	router.Group(func(r chi.Router) {
		r.Use(jwtMW)
		r.Use(jwtmiddleware.RequireRole("admin"))
		r.Post("/api/products", handlers.CreateProductHandler(application.Logger, productService, uploadsDir))
		r.Put("/api/products/{id}", handlers.UpdateProductHandler(application.Logger, productService, uploadsDir))
		r.Delete("/api/products/{id}", handlers.DeleteProductHandler(application.Logger, productService))
		r.Post("/api/categories", handlers.CreateCategoryHandler(application.Logger, categoryService, uploadsDir))
		r.Put("/api/categories/{id}", handlers.UpdateCategoryHandler(application.Logger, categoryService, uploadsDir))
		r.Delete("/api/categories/{id}", handlers.DeleteCategoryHandler(application.Logger, categoryService))
		r.Post("/api/orders/{id}/accept", handlers.AcceptOrderHandler(application.Logger, orderService))
		r.Post("/api/orders/{id}/reject", handlers.RejectOrderHandler(application.Logger, orderService))
	})

	// смена статуса доступна админу и курьеру, легальность перехода проверяет сервис
	router.Group(func(r chi.Router) {
		r.Use(jwtMW)
		r.Use(jwtmiddleware.RequireRole("admin", "rider"))
		r.Put("/api/orders/{id}/status", handlers.UpdateOrderStatusHandler(application.Logger, orderService))
	})

	// профиль курьера
	router.Group(func(r chi.Router) {
		r.Use(jwtMW)
		r.Use(jwtmiddleware.RequireRole("rider"))
		r.Get("/api/riders/profile", handlers.RiderProfileHandler(application.Logger, riderService))
		r.Put("/api/riders/profile", handlers.RiderUpdateProfileHandler(application.Logger, riderService))
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.Any("error", err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	stopSign := <-stop
	log.Info("received shutdown signal", slog.String("signal", stopSign.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown failed", slog.Any("error", err))
	}
	log.Info("server gracefully stopped")
}
