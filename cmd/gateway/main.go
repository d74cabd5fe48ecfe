package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"rfqgateway/internal/config"
	"rfqgateway/internal/handler"
	"rfqgateway/internal/httpserver"
	"rfqgateway/internal/repository"
	"rfqgateway/internal/service/auth"
	"rfqgateway/internal/service/company"
	"rfqgateway/internal/service/rfq"
	"rfqgateway/internal/supabase"
	"rfqgateway/pkg/db"
	"rfqgateway/pkg/logger"
	"rfqgateway/pkg/redis"
	"rfqgateway/pkg/util"
)

func main() {
	// hash-secret <token> prints a bcrypt hash for ADMIN_BEARER_HASH
	if len(os.Args) == 3 && os.Args[1] == "hash-secret" {
		hash, err := util.HashSecret(os.Args[2])
		if err != nil {
			log.Fatalf("hash failed: %v", err)
		}
		fmt.Println(hash)
		return
	}

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger := logger.NewLogger(cfg.Log.Level)
	defer logger.Sync()

	gin.SetMode(gin.ReleaseMode)
	ctx := context.Background()

	// Redis (optional): session cache + invite dedup
	rdb := redis.NewRedisClient(cfg.Redis)
	var sessions auth.SessionCache
	if rdb != nil {
		defer rdb.Close()
		if err := redis.Ping(ctx, rdb); err != nil {
			logger.Warn("Redis not reachable at startup", zap.Error(err))
		}
		sessions = auth.NewRedisSessionCache(rdb, logger)
	} else {
		logger.Info("REDIS_ADDR not set, using in-memory session cache")
		sessions = auth.NewMemorySessionCache()
	}

	// Postgres (optional): transactional company creation
	var (
		dbConn    *pgxpool.Pool
		txCreator company.TxCreator
	)
	if cfg.DB.URL != "" {
		dbConn, err = db.NewConnection(ctx, cfg.DB, logger)
		if err != nil {
			logger.Fatal("DB initialization failed", zap.Error(err))
		}
		defer dbConn.Close()
		txCreator = repository.NewCompanyRepository(dbConn)
	}

	// Supabase
	supa := supabase.NewClient(supabase.Config{
		URL:            cfg.Supabase.URL,
		AnonKey:        cfg.Supabase.AnonKey,
		ServiceRoleKey: cfg.Supabase.ServiceRoleKey,
		Timeout:        cfg.Supabase.Timeout,
	}, logger)

	// Init Services
	authService := auth.NewService(supa, cfg.Supabase.JWTSecret, sessions, cfg.Auth.CacheTTL, logger)
	enricher := rfq.NewEnricher(supa, logger)
	rfqService := rfq.NewService(supa, enricher, cfg.RFQ.CardView, logger)
	deduper := util.NewDeduper(rdb, cfg.Company.AcceptLockTTL, logger)
	companyService := company.NewService(supa, txCreator, authService, deduper, cfg.Company.InviteTTL, logger)

	// Init Handlers
	healthHandler := handler.NewHealthHandler(cfg.App.ServiceName, rdb, dbConn)
	adminHandler := handler.NewAdminHandler(supa, logger)
	rfqHandler := handler.NewRFQHandler(rfqService, supa, logger)
	companyHandler := handler.NewCompanyHandler(companyService, logger)

	// Router
	router := httpserver.NewRouter(
		httpserver.Options{
			AllowedOrigins:  cfg.CORS.AllowedOrigins,
			AdminBearer:     cfg.Admin.Bearer,
			AdminBearerHash: cfg.Admin.BearerHash,
			CallbackURL:     cfg.App.CallbackURL,
		},
		authService,
		healthHandler,
		adminHandler,
		rfqHandler,
		companyHandler,
		logger,
	)

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting RFQ gateway",
			zap.String("port", cfg.Server.Port),
			zap.String("supabase_host", supa.Host()),
			zap.Bool("local_jwt", cfg.Supabase.JWTSecret != ""),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 优雅退出处理
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down RFQ gateway gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		logger.Info("HTTP server stopped")
	}
}
