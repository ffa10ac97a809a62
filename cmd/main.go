package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"catalog-inventory-service/internal/config"
	"catalog-inventory-service/internal/events"
	"catalog-inventory-service/internal/handlers"
	"catalog-inventory-service/internal/middleware"
	"catalog-inventory-service/internal/repository"
	"catalog-inventory-service/internal/services"
	"catalog-inventory-service/internal/subscribers"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title Catalog & Inventory API
// @version 1.0.0
// @description Category hierarchy and stock ledger service

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8083
// @BasePath /api/v1

// @securityDefinitions.bearer BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Initialize Redis client
	var redisClient *redis.Client
	redisURL := cfg.RedisURL
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Printf("WARNING: Failed to parse Redis URL: %v (continuing without Redis)", err)
	} else {
		redisClient = redis.NewClient(redisOpts)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("WARNING: Failed to connect to Redis: %v (caching will be disabled)", err)
			redisClient = nil
		} else {
			log.Println("✓ Redis connected successfully")
		}
		cancel()
	}

	// Structured logger shared by services and the events publisher
	serviceLogger := logrus.New()
	serviceLogger.SetFormatter(&logrus.JSONFormatter{})
	serviceLogger.SetLevel(logrus.InfoLevel)

	// Initialize NATS events publisher
	eventsPublisher, err := events.NewPublisher(cfg.NatsURL, serviceLogger)
	if err != nil {
		log.Printf("WARNING: Failed to initialize events publisher: %v (events won't be published)", err)
	} else {
		log.Println("✓ NATS events publisher initialized")
	}

	// Repositories with Redis caching
	categoryRepo := repository.NewCategoryRepository(db, redisClient)
	inventoryRepo := repository.NewInventoryRepository(db, redisClient)

	// Services. The publisher is passed through an interface, so the nil
	// check inside the services handles a missing NATS connection.
	var catalogPublisher services.CatalogEventPublisher
	var inventoryPublisher services.InventoryEventPublisher
	if eventsPublisher != nil {
		catalogPublisher = eventsPublisher
		inventoryPublisher = eventsPublisher
	}
	catalogService := services.NewCatalogService(categoryRepo, catalogPublisher,
		serviceLogger.WithField("component", "services.catalog"))
	if err := catalogService.Load(); err != nil {
		log.Fatal("Failed to load category tree:", err)
	}
	inventoryService := services.NewInventoryService(inventoryRepo, inventoryPublisher,
		serviceLogger.WithField("component", "services.inventory"), cfg.DefaultLowStockThreshold)

	// Product event subscriber keeps the denormalized counters and stock
	// item identity fields in sync with the products service
	var productSubscriber *subscribers.ProductSubscriber
	productSubscriber, err = subscribers.NewProductSubscriber(cfg.NatsURL, catalogService, inventoryService, serviceLogger)
	if err != nil {
		log.Printf("WARNING: Failed to initialize product subscriber: %v (continuing without product events)", err)
		productSubscriber = nil
	} else if err := productSubscriber.Start(); err != nil {
		log.Printf("WARNING: Product subscriber failed to start: %v", err)
		productSubscriber.Stop()
		productSubscriber = nil
	} else {
		log.Println("✓ Product event subscriber started")
	}

	// Handlers
	categoryHandler := handlers.NewCategoryHandler(catalogService)
	inventoryHandler := handlers.NewInventoryHandler(inventoryService)
	importHandler := handlers.NewImportHandler(catalogService)
	healthHandler := handlers.NewHealthHandler(db, redisClient)

	// Initialize Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())

	// Health check endpoints (no auth required)
	router.GET("/health", handlers.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)

	// Protected API routes
	api := router.Group("/api/v1")
	if cfg.JWTSecret != "" {
		api.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	} else {
		log.Println("WARNING: JWT_SECRET not set, admin API is unauthenticated")
	}

	v1 := api.Group("")
	{
		categories := v1.Group("/categories")
		{
			// Read operations
			categories.GET("/tree", categoryHandler.GetCategoryTree)
			categories.GET("/roots", categoryHandler.GetRootCategories)
			categories.GET("/stats", categoryHandler.GetCategoryStats)
			categories.GET("/slug/:slug", categoryHandler.GetCategoryBySlug)
			categories.GET("/:id", categoryHandler.GetCategory)
			categories.GET("/:id/children", categoryHandler.GetCategoryChildren)
			categories.GET("/:id/descendants", categoryHandler.GetCategoryDescendants)
			categories.GET("/:id/ancestors", categoryHandler.GetCategoryAncestors)

			// Write operations
			categories.POST("", categoryHandler.CreateCategory)
			categories.PUT("/:id", categoryHandler.UpdateCategory)
			categories.PUT("/:id/move", categoryHandler.MoveCategory)
			categories.PUT("/:id/product-stats", categoryHandler.UpdateProductStats)
			categories.DELETE("/:id", categoryHandler.DeleteCategory)

			// Import operations
			categories.GET("/import/template", importHandler.GetImportTemplate)
			categories.POST("/import", importHandler.ImportCategories)
		}

		inventory := v1.Group("/inventory")
		{
			inventory.GET("/items", inventoryHandler.ListStockItems)
			inventory.GET("/items/:productId", inventoryHandler.GetStockItem)
			inventory.GET("/items/:productId/movements", inventoryHandler.GetMovements)
			inventory.GET("/summary", inventoryHandler.GetInventorySummary)
			inventory.GET("/alerts", inventoryHandler.ListAlerts)

			inventory.POST("/items/:productId/adjust", inventoryHandler.AdjustStock)
			inventory.POST("/items/:productId/reserve", inventoryHandler.ReserveStock)
			inventory.POST("/items/:productId/unreserve", inventoryHandler.UnreserveStock)
			inventory.POST("/items/:productId/rebuild", inventoryHandler.RebuildStockItem)
			inventory.PUT("/items/:productId/settings", inventoryHandler.UpdateItemSettings)
			inventory.POST("/alerts/:id/acknowledge", inventoryHandler.AcknowledgeAlert)
		}
	}

	// Public storefront endpoints for reading categories (no auth required)
	storefront := router.Group("/api/v1/storefront")
	{
		storefront.GET("/categories/tree", categoryHandler.GetCategoryTree)
		storefront.GET("/categories/roots", categoryHandler.GetRootCategories)
		storefront.GET("/categories/:id", categoryHandler.GetCategory)
		storefront.GET("/categories/slug/:slug", categoryHandler.GetCategoryBySlug)
	}
	log.Println("✓ Public storefront routes initialized")

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Start server
	port := cfg.Port
	if port == "" {
		port = "8083"
	}

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Catalog inventory service starting on port %s", port)
		if err := router.Run(":" + port); err != nil {
			log.Fatal("Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal
	<-quit
	log.Println("Shutting down catalog-inventory-service...")

	// Stop product subscriber
	if productSubscriber != nil {
		productSubscriber.Stop()
		log.Println("✓ Product subscriber stopped")
	}

	// Close events publisher
	if eventsPublisher != nil {
		eventsPublisher.Close()
		log.Println("✓ Events publisher closed")
	}

	log.Println("Catalog inventory service stopped")
}
