package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"mentora/internal/api"
	"mentora/internal/auth"
	"mentora/internal/config"
	"mentora/internal/logging"
	"mentora/internal/redis"
	"mentora/internal/service/account"
	"mentora/internal/service/ai"
	"mentora/internal/service/catalog"
	"mentora/internal/service/history"
	"mentora/internal/storage"
)

func main() {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("MENTORA_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.BasicConfig.LogLevel, cfg.BasicConfig.Debug)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	dbType := cfg.BasicConfig.Database
	logger.Info("opening database", zap.String("driver", dbType))
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer db.Close()

	if err := storage.Migrate(db, dbType); err != nil {
		logger.Fatal("migrate database", zap.Error(err))
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redis.NewRedisClient(cfg)
		if err != nil {
			logger.Fatal("create redis client", zap.Error(err))
		}
		defer rdb.Close()
	}

	authService := auth.NewService(db, rdb, cfg.Auth.JWTSecret, cfg.Auth.AccessTTL(), cfg.Auth.RefreshTTL())
	accounts := account.NewService(db)
	catalogService := catalog.NewService(db, logger)
	historyService := history.NewService(db)

	initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	chatModel, err := ai.NewChatModel(initCtx, cfg, logger)
	cancel()
	if err != nil {
		// Chatbot requests answer with the fallback message until a provider is configured.
		logger.Warn("chat model unavailable", zap.String("provider", cfg.LLM.Provider), zap.Error(err))
		chatModel = nil
	}
	assistant := ai.NewService(chatModel, historyService, catalogService, logger)

	handlers := api.NewHandler(accounts, catalogService, historyService, assistant, authService, logger)

	if !cfg.BasicConfig.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(logging.GinLogger(logger.Named("http")), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.BasicConfig.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8000"
	}
	logger.Info("server listening", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
