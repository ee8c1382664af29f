package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"catalog-service/internal/cache"
	"catalog-service/internal/cartbus"
	"catalog-service/internal/config"
	"catalog-service/internal/events"
	"catalog-service/internal/handlers"
	"catalog-service/internal/middleware"
	"catalog-service/internal/repository"
	"catalog-service/internal/services"
	"catalog-service/internal/subscribers"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	gosharedmw "github.com/Tesseract-Nexus/go-shared/middleware"
	"github.com/Tesseract-Nexus/go-shared/rbac"
	"github.com/Tesseract-Nexus/go-shared/secrets"
)

// @title ShopForge Catalog API
// @version 1.0.0
// @description Multi-tenant category trees, catalogs and storefront browsing
// @termsOfService http://swagger.io/terms/

// @contact.name Catalog API Support
// @contact.email support@example.com

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

	cfg := config.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(lvl)
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	// Redis is optional: without it trees are rebuilt on every request
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.WithError(err).Warn("Failed to parse Redis URL, using localhost:6379")
		redisOpts = &redis.Options{Addr: "localhost:6379"}
	}
	redisOpts.Password = secrets.GetRedisPassword()
	redisClient := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("Failed to connect to Redis (caching will be disabled)")
		redisClient = nil
	} else {
		logger.Info("✓ Redis connected successfully")
	}
	cancel()

	eventsPublisher, err := events.NewPublisher(logger)
	if err != nil {
		logger.WithError(err).Warn("Failed to initialize events publisher (events won't be published)")
		eventsPublisher = nil
	} else {
		logger.Info("✓ NATS events publisher initialized")
	}

	// Repositories
	categoryRepo := repository.NewCategoryRepository(db, redisClient)
	catalogRepo := repository.NewCatalogRepository(db, categoryRepo)
	productRepo := repository.NewProductRepository(db, categoryRepo)
	cartRepo := repository.NewCartRepository(db)

	// Services
	treeService := services.NewTreeService(categoryRepo, cache.NewTreeCache(redisClient, cfg.TreeCacheTTL), logger)
	settingsService := services.NewSettingsService(catalogRepo, cfg.SettingsStageMaxAge, logger)
	canonicalService := services.NewCanonicalService(productRepo, logger)
	cartBus := cartbus.New(cfg.CartEventBuffer, logger)

	limits := handlers.PageLimits{Default: cfg.DefaultPageSize, Max: cfg.MaxPageSize}

	// Handlers
	categoryHandler := handlers.NewCategoryHandler(categoryRepo, treeService, eventsPublisher, limits, logger)
	importHandler := handlers.NewImportHandler(categoryRepo, logger)
	catalogHandler := handlers.NewCatalogHandler(catalogRepo, settingsService, eventsPublisher, logger)
	productHandler := handlers.NewProductHandler(productRepo, canonicalService, logger)
	storefrontHandler := handlers.NewStorefrontHandler(treeService, catalogRepo, settingsService, productRepo, limits, logger)
	cartHandler := handlers.NewCartHandler(cartRepo, productRepo, catalogRepo, settingsService, cartBus, eventsPublisher, logger)

	var natsConnected func() bool
	if eventsPublisher != nil {
		natsConnected = eventsPublisher.IsConnected
	}
	healthHandler := handlers.NewHealthHandler(db, redisClient, natsConnected)

	// Product changes from the products service invalidate cached trees
	var productSubscriber *subscribers.ProductSubscriber
	if os.Getenv("NATS_URL") != "" {
		productSubscriber, err = subscribers.NewProductSubscriber(categoryRepo, logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize product subscriber (cached trees expire by TTL only)")
			productSubscriber = nil
		} else {
			go func() {
				if err := productSubscriber.Start(context.Background()); err != nil {
					logger.WithError(err).Warn("Product subscriber error")
				}
			}()
		}
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(strings.Split(os.Getenv("CORS_ALLOWED_ORIGINS"), ",")))

	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)

	api := router.Group("/api/v1")

	// Permission checks: staff RBAC behind the mesh, token roles in jwt mode
	var requireRead, requireCreate, requireUpdate, requireDelete gin.HandlerFunc
	if cfg.AuthMode == "jwt" {
		api.Use(middleware.AuthMiddleware(cfg.JWTSecret))
		requireRead = middleware.RequireAnyRole("admin", "catalog_manager", "catalog_viewer")
		requireCreate = middleware.RequireAnyRole("admin", "catalog_manager")
		requireUpdate = requireCreate
		requireDelete = middleware.RequireAnyRole("admin")
		logger.Info("✓ JWT authentication enabled")
	} else {
		// Istio validates JWT and injects x-jwt-claim-* headers
		api.Use(gosharedmw.IstioAuth(gosharedmw.IstioAuthConfig{
			RequireAuth:        true,
			AllowLegacyHeaders: false,
			SkipPaths:          []string{"/health", "/ready", "/metrics", "/swagger"},
		}))
		rbacMiddleware := rbac.NewMiddlewareWithURL(cfg.StaffServiceURL, nil)
		requireRead = rbacMiddleware.RequirePermission(rbac.PermissionCategoriesRead)
		requireCreate = rbacMiddleware.RequirePermission(rbac.PermissionCategoriesCreate)
		requireUpdate = rbacMiddleware.RequirePermission(rbac.PermissionCategoriesUpdate)
		requireDelete = rbacMiddleware.RequirePermission(rbac.PermissionCategoriesDelete)
		logger.Info("✓ Istio auth and RBAC middleware initialized")
	}

	admin := api.Group("")
	admin.Use(middleware.TenantMiddleware())
	{
		categories := admin.Group("/categories")
		{
			categories.GET("", requireRead, categoryHandler.GetCategoryList)
			categories.GET("/tree", requireRead, categoryHandler.GetCategoryTree)
			categories.GET("/import/template", requireRead, importHandler.GetImportTemplate)
			categories.GET("/export", requireRead, importHandler.ExportCategories)
			categories.GET("/:id", requireRead, categoryHandler.GetCategory)
			categories.GET("/:id/ancestors", requireRead, categoryHandler.GetCategoryAncestors)
			categories.GET("/:id/children", requireRead, categoryHandler.GetCategoryChildren)

			categories.POST("", requireCreate, categoryHandler.CreateCategory)
			categories.POST("/bulk", requireCreate, categoryHandler.BulkCreateCategories)
			categories.POST("/import", requireCreate, importHandler.ImportCategories)

			categories.PUT("/:id", requireUpdate, categoryHandler.UpdateCategory)

			categories.DELETE("/bulk", requireDelete, categoryHandler.BulkDeleteCategories)
			categories.DELETE("/:id", requireDelete, categoryHandler.DeleteCategory)
		}

		catalogs := admin.Group("/catalogs")
		{
			catalogs.GET("", requireRead, catalogHandler.ListCatalogs)
			catalogs.GET("/:id", requireRead, catalogHandler.GetCatalog)
			catalogs.GET("/:id/settings", requireRead, catalogHandler.ListSettings)

			catalogs.POST("", requireCreate, catalogHandler.CreateCatalog)
			catalogs.POST("/:id/settings/resync", requireUpdate, catalogHandler.ResyncSettings)

			catalogs.PUT("/:id", requireUpdate, catalogHandler.UpdateCatalog)
			catalogs.PUT("/:id/settings", requireUpdate, catalogHandler.UpsertSetting)

			catalogs.DELETE("/:id", requireDelete, catalogHandler.DeleteCatalog)
			catalogs.DELETE("/:id/settings/:productId", requireUpdate, catalogHandler.DeleteSetting)
		}

		products := admin.Group("/products")
		{
			products.GET("/:id", requireRead, productHandler.GetProduct)
			products.POST("", requireCreate, productHandler.CreateProduct)
		}
	}

	// Public storefront endpoints (no auth required, tenant from X-Tenant-ID)
	// NOTE: Registered outside the authenticated /api/v1 group
	storefront := router.Group("/api/v1/storefront")
	storefront.Use(middleware.TenantMiddleware())
	{
		storefront.GET("/:storeId/categories/tree", storefrontHandler.GetTree)
		storefront.GET("/:storeId/categories/:id/ancestors", storefrontHandler.GetAncestors)
		storefront.GET("/:storeId/categories/:id/children", storefrontHandler.GetChildren)
		storefront.GET("/:storeId/categories/:id/products", storefrontHandler.GetProducts)

		storefront.GET("/cart/:cartId", cartHandler.GetCart)
		storefront.GET("/cart/:cartId/events", cartHandler.StreamEvents)
		storefront.POST("/cart/:cartId/items", cartHandler.AddItem)
		storefront.DELETE("/cart/:cartId/items/:itemId", cartHandler.RemoveItem)
	}
	logger.Info("✓ Public storefront routes initialized")

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.WithField("port", cfg.Port).Info("Catalog service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down catalog-service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Server shutdown did not complete")
	}

	if productSubscriber != nil {
		productSubscriber.Stop()
	}
	if eventsPublisher != nil {
		eventsPublisher.Close()
		logger.Info("✓ Events publisher closed")
	}

	logger.Info("Catalog service stopped")
}
