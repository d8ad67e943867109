package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"discount-service/cache"
	"discount-service/clients"
	"discount-service/controllers"
	"discount-service/database"
	"discount-service/repository"
	"discount-service/routes"
	"discount-service/services"

	aws_pkg "discount-service/pkg/aws"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	cfg, err := LoadConfig()
	if err != nil {
		logger.Fatal("Config load failed", zap.Error(err))
	}

	// --- Database ---
	if err := database.Connect(logger); err != nil {
		logger.Fatal("DB connection failed", zap.Error(err))
	}

	// --- Redis cache (optional) ---
	var discountCache services.DiscountCache
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			logger.Warn("Redis unavailable, running without cache", zap.Error(err))
		} else {
			discountCache = cache.NewRedisDiscountCache(redisClient, logger)
		}
	}

	// --- AWS setup (optional) ---
	var assets services.AssetStore
	var snsClient services.SNSPublisher
	if cfg.ImageBucket != "" || cfg.DiscountTopicARN != "" {
		awsCfg, err := aws_pkg.LoadAWSConfig(context.Background())
		if err != nil {
			logger.Warn("AWS config load failed, image uploads and events disabled", zap.Error(err))
		} else {
			if cfg.ImageBucket != "" {
				assets = aws_pkg.NewS3AssetStore(awsCfg, cfg.ImageBucket)
			}
			if cfg.DiscountTopicARN != "" {
				snsClient = aws_pkg.NewSNSClient(awsCfg)
			}
		}
	}

	// --- Catalog client (optional) ---
	var catalog services.CatalogChecker
	if cfg.CatalogServiceURL != "" {
		catalog = clients.NewCatalogClient(cfg.CatalogServiceURL, 5*time.Second)
	}

	// --- HTTP router ---
	r := gin.New()
	r.Use(gin.Recovery())

	// Structured HTTP request logging
	r.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		}
		switch {
		case status >= 500:
			logger.Error("http_request", fields...)
		case status >= 400:
			logger.Warn("http_request", fields...)
		default:
			logger.Info("http_request", fields...)
		}
	})

	// Request timeout middleware
	r.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	// --- Dependency injection ---
	discountRepo := repository.NewGormDiscountRepository(database.DB)
	discountService := services.NewDiscountService(
		discountRepo, assets, catalog, discountCache, snsClient, cfg.DiscountTopicARN, logger)
	discountController := controllers.NewDiscountController(discountService)

	routes.RegisterDiscountRoutes(r, discountController)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "service": "discount-service"})
	})

	// --- HTTP server ---
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		logger.Info("Discount Service started", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Initiating graceful shutdown...")
	httpShutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(httpShutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
	if err := database.Close(); err != nil {
		logger.Error("Database close error", zap.Error(err))
	}

	log.Println("Discount Service stopped gracefully")
}
