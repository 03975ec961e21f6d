package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"factory-ledger/src/config"
	"factory-ledger/src/handlers"
	"factory-ledger/src/models"
	"factory-ledger/src/repositories"
	"factory-ledger/src/routes"
	"factory-ledger/src/services"
)

func main() {
	configPath := os.Getenv("APP_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger, err := buildLogger(cfg.App.Env)
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer logger.Sync()

	db, err := config.InitDB(cfg.Postgres.DSN)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&models.Item{},
		&models.ItemBatch{},
		&models.BatchMovement{},
		&models.JobWork{},
		&models.JobWorkProcess{},
		&models.JobWorkBatch{},
	); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	if cfg.Seed.Enabled {
		if err := seedSampleData(db, logger); err != nil {
			logger.Warn("failed to seed sample data", zap.Error(err))
		}
	}

	// Initialize repositories
	batchRepo := &repositories.BatchRepository{DB: db}
	jobRepo := &repositories.JobWorkRepository{DB: db}

	// Initialize services
	stockService := &services.StockService{DB: db, Batches: batchRepo, Log: logger}
	jobWorkService := &services.JobWorkService{
		DB:      db,
		Jobs:    jobRepo,
		Batches: batchRepo,
		Stock:   stockService,
		Log:     logger,
	}

	// Initialize handlers
	stockHandler := &handlers.StockHandler{Service: stockService}
	jobWorkHandler := &handlers.JobWorkHandler{Service: jobWorkService}

	// Setup router dengan recovery middleware
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	if cfg.Metrics.Enabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	api := router.Group("/api/v1")
	routes.RegisterStockRoutes(api.Group("/stock"), stockHandler)
	routes.RegisterJobWorkRoutes(api.Group("/jobworks"), jobWorkHandler)

	logger.Info("starting server", zap.String("addr", cfg.HTTP.Addr))
	if err := router.Run(cfg.HTTP.Addr); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}

func buildLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func seedSampleData(db *gorm.DB, logger *zap.Logger) error {
	var itemCount int64
	db.Model(&models.Item{}).Count(&itemCount)
	if itemCount > 0 {
		return nil
	}

	logger.Info("seeding sample items")

	items := []models.Item{
		{
			Code:          "RM-ROD-12",
			Name:          "Steel Rod 12mm",
			UnitOfMeasure: "kg",
			ItemType:      models.ItemTypeMaterial,
			MinimumStock:  decimal.NewFromInt(50),
			IsActive:      true,
		},
		{
			Code:          "RM-SHEET-2",
			Name:          "MS Sheet 2mm",
			UnitOfMeasure: "kg",
			ItemType:      models.ItemTypeMaterial,
			MinimumStock:  decimal.NewFromInt(100),
			IsActive:      true,
		},
		{
			Code:          "FG-BRKT-A",
			Name:          "Bracket Assembly A",
			UnitOfMeasure: "pcs",
			ItemType:      models.ItemTypeProduct,
			IsActive:      true,
		},
	}

	for _, item := range items {
		if err := db.FirstOrCreate(&item, "code = ?", item.Code).Error; err != nil {
			return err
		}
	}
	logger.Info("seeded items", zap.Int("count", len(items)))
	return nil
}
