package config

import (
	"catalog-service/internal/models"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Tesseract-Nexus/go-shared/secrets"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Server
	Port        string
	Environment string

	// Auth
	AuthMode        string // "istio" or "jwt"
	JWTSecret       string
	StaffServiceURL string

	// Redis
	RedisURL     string
	TreeCacheTTL time.Duration

	// Catalog settings stage
	SettingsStageMaxAge time.Duration

	// Cart event stream
	CartEventBuffer int

	// Pagination
	DefaultPageSize int
	MaxPageSize     int
}

func Load() *Config {
	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	defaultPageSize, _ := strconv.Atoi(getEnv("DEFAULT_PAGE_SIZE", "20"))
	maxPageSize, _ := strconv.Atoi(getEnv("MAX_PAGE_SIZE", "100"))
	cartEventBuffer, _ := strconv.Atoi(getEnv("CART_EVENT_BUFFER", "16"))

	return &Config{
		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     dbPort,
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: secrets.GetDBPassword(),
		DBName:     getEnv("DB_NAME", "catalog_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// Server
		Port:        getEnv("PORT", "8083"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Auth
		AuthMode:        getEnv("AUTH_MODE", "istio"),
		JWTSecret:       secrets.GetJWTSecret(),
		StaffServiceURL: getEnv("STAFF_SERVICE_URL", "http://staff-service:8080"),

		// Redis
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379"),
		TreeCacheTTL: getDuration("TREE_CACHE_TTL", 10*time.Minute),

		SettingsStageMaxAge: getDuration("SETTINGS_STAGE_MAX_AGE", 5*time.Minute),

		CartEventBuffer: cartEventBuffer,

		// Pagination
		DefaultPageSize: defaultPageSize,
		MaxPageSize:     maxPageSize,
	}
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)

	var logLevel logger.LogLevel
	if cfg.Environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Slugs of soft-deleted categories may be reused; replace an older
	// index that also covered deleted rows
	if err := db.Exec(`DO $$ BEGIN
		IF EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_store_slug' AND indexdef NOT LIKE '%WHERE%') THEN
			DROP INDEX idx_store_slug;
		END IF;
	END $$`).Error; err != nil {
		log.Printf("Warning: slug index check failed: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Category{},
		&models.Product{},
		&models.CanonicalProduct{},
		&models.ProductAlias{},
		&models.Catalog{},
		&models.CatalogProductSetting{},
		&models.CartItem{},
	); err != nil {
		// Don't fail startup, just log the warning
		log.Printf("Warning: Auto-migration failed: %v", err)
	} else {
		log.Println("✓ Database schema migration completed")
	}

	return db, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Warning: invalid duration for %s: %q, using %s", key, value, defaultValue)
	}
	return defaultValue
}
