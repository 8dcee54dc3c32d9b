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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/land-ingest/app/config"
	"github.com/land-ingest/app/controllers"
	"github.com/land-ingest/app/services"
	"github.com/land-ingest/internal/mapper"
	"github.com/land-ingest/internal/merge"
	"github.com/land-ingest/internal/normalizer"
	"github.com/land-ingest/routes"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

func main() {
	// 1. Load configuration
	loadConfig()

	// 2. Khởi tạo logger
	logger := initLogger()
	defer logger.Sync()

	logger.Info("Starting Land Ingest Service")

	ingestPath := viper.GetString("config.ingest_path")
	if err := config.Load(ingestPath); err != nil {
		logger.Warn("Cannot read ingest config, using defaults", zap.String("path", ingestPath), zap.Error(err))
	}
	if err := normalizer.SetStreetCacheSize(config.C.StreetCacheSize); err != nil {
		logger.Fatal("Invalid street cache size", zap.Error(err))
	}

	// 3. Khởi tạo cache theo cache.type
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	cacheService, cleanup := initCache(ctx, logger)
	defer cleanup()

	// 4. Khởi tạo components và services
	rowMapper, err := mapper.New()
	if err != nil {
		logger.Fatal("Failed to load header aliases", zap.Error(err))
	}
	engine := merge.NewEngine(rowMapper, logger)
	ingestService := services.NewIngestService(rowMapper, engine, cacheService, logger)
	adminService := services.NewAdminService(ingestService, cacheService, config.C.Cache.PolicyVersion, logger)

	// 5. Khởi tạo controllers
	ingestController := controllers.NewIngestController(ingestService, logger)
	adminController := controllers.NewAdminController(adminService, logger)

	// 6. Khởi tạo Gin router
	if viper.GetString("app.env") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	routes.SetupAllRoutes(router, logger, ingestController, adminController)

	// 7. Khởi động server
	port := viper.GetString("server.port")
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}
	go func() {
		logger.Info("Land Ingest Service starting", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// loadConfig load configuration từ file và env vars
func loadConfig() {
	// .env.local overrides .env; both optional
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}

	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.SetDefault("app.env", "development")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("config.ingest_path", "./config/ingest.yaml")
	viper.SetDefault("cache.type", "memory")
	viper.SetDefault("redis.url", "redis://localhost:6379")
	viper.SetDefault("mongodb.uri", "mongodb://localhost:27017")
	viper.SetDefault("mongodb.database", "land_ingest")

	// APP_ENV, SERVER_PORT, REDIS_URL, MONGODB_URI, CACHE_TYPE ...
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Cannot read config file: %v", err)
	}
}

// initLogger khởi tạo structured logger
func initLogger() *zap.Logger {
	var cfg zap.Config
	if viper.GetString("app.env") == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	logger, err := cfg.Build()
	if err != nil {
		log.Fatal("Cannot initialize logger:", err)
	}
	return logger
}

// initCache chọn cache theo cache.type: memory, redis, mongo, hybrid (Redis L1 + MongoDB L2)
func initCache(ctx context.Context, logger *zap.Logger) (services.ICacheService, func()) {
	ttl := config.CacheTTL()
	version := config.C.Cache.PolicyVersion
	cacheType := viper.GetString("cache.type")

	var (
		redisCache services.ICacheService
		mongoCache *services.MongoCacheService
		closers    []func()
	)

	if cacheType == "redis" || cacheType == "hybrid" {
		rc, err := services.NewRedisCacheService(viper.GetString("redis.url"), version, ttl, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Redis cache", zap.Error(err))
		}
		redisCache = rc
		closers = append(closers, func() { _ = rc.Close() })
	}

	if cacheType == "mongo" || cacheType == "hybrid" {
		client := initMongoDB(logger)
		closers = append(closers, func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Error("Error disconnecting MongoDB", zap.Error(err))
			}
		})

		mc, err := services.NewMongoCacheService(client.Database(viper.GetString("mongodb.database")), config.C.Cache.L1Size, version, ttl, logger)
		if err != nil {
			logger.Fatal("Failed to initialize MongoDB cache", zap.Error(err))
		}
		if err := mc.WarmUp(ctx, config.C.Cache.L1Size/2); err != nil {
			logger.Warn("Failed to warm up cache", zap.Error(err))
		}
		mongoCache = mc
	}

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	logger.Info("Cache initialized", zap.String("type", cacheType), zap.String("policy_version", version))
	switch cacheType {
	case "redis":
		return redisCache, cleanup
	case "mongo":
		return mongoCache, cleanup
	case "hybrid":
		return services.NewHybridCacheService(redisCache, mongoCache, logger), cleanup
	case "none":
		return nil, cleanup
	default:
		memory := services.NewCacheService(ttl, version)
		memory.StartCleanupWorker(ctx, time.Minute)
		return memory, cleanup
	}
}

// initMongoDB khởi tạo kết nối MongoDB
func initMongoDB(logger *zap.Logger) *mongo.Client {
	uri := viper.GetString("mongodb.uri")

	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(uri))
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx, nil); err != nil {
		logger.Fatal("Failed to ping MongoDB", zap.Error(err))
	}

	logger.Info("Connected to MongoDB", zap.String("database", viper.GetString("mongodb.database")))
	return client
}
