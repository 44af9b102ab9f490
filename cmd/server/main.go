package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/dverbin/ecom_api/internal/config"
	"github.com/dverbin/ecom_api/internal/es"
	"github.com/dverbin/ecom_api/internal/handlers"
	"github.com/dverbin/ecom_api/internal/logging"
	"github.com/dverbin/ecom_api/internal/metrics"
	"github.com/dverbin/ecom_api/internal/mykafka"
	"github.com/dverbin/ecom_api/internal/service/orders"
	"github.com/dverbin/ecom_api/internal/service/search"
	"github.com/dverbin/ecom_api/internal/token"
	httpserver "github.com/dverbin/ecom_api/internal/transport/http"
)

const productIndex = "product"

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	var prod *mykafka.Producer
	if configuration.KAFKA_ADDRESS != "" {
		prod = mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS})
	} else {
		logger.Warn("KAFKA_ADDRESS not set, domain events disabled")
	}

	indexer := &search.Indexer{Index: productIndex}
	searchHandler := &handlers.SearchHandler{Index: productIndex}
	if configuration.ES_URL != "" {
		esClient, err := es.NewClient(configuration)
		if err != nil {
			log.Fatalf("elasticsearch init error: %v", err)
		}
		indexer.ES = esClient
		searchHandler.ES = esClient
	} else {
		logger.Warn("ES_URL not set, product search disabled")
	}

	jwtSecret := []byte(configuration.JWT_SECRET)
	tokens := &token.Service{DB: db, JWTSecret: jwtSecret}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(metrics.NewServerMetrics("api").Middleware)
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			c.SetRequest(req.WithContext(logging.IntoContext(req.Context(), logger)))
			return next(c)
		}
	})

	deps := httpserver.Deps{
		DB:             db,
		Tokens:         tokens,
		AuthHandler:    &handlers.AuthHandler{DB: db, Tokens: tokens, Producer: prod},
		ProductHandler: &handlers.ProductHandler{DB: db, Producer: prod, Indexer: indexer, UploadDir: configuration.UPLOAD_DIR},
		CartHandler:    &handlers.CartHandler{DB: db, Producer: prod},
		AddressHandler: &handlers.AddressHandler{DB: db},
		OrderHandler:   &handlers.OrderHandler{Orders: &orders.Service{DB: db}, Producer: prod},
		AdminHandler:   &handlers.AdminHandler{DB: db},
		SearchHandler:  searchHandler,
	}
	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db close error", "error", err)
		}
	}

	if err := prod.Close(); err != nil {
		logger.Error("kafka close error", "error", err)
	}

	logger.Info("shutdown complete")
}
