package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"campusmarket/docs"
	"campusmarket/internal/auth"
	"campusmarket/internal/cache"
	"campusmarket/internal/config"
	"campusmarket/internal/db"
	"campusmarket/internal/handler"
	"campusmarket/internal/logging"
	"campusmarket/internal/metrics"
	"campusmarket/internal/repository"
	"campusmarket/internal/router"
	"campusmarket/internal/service"
	"campusmarket/internal/storage"
)

// @title Campus Marketplace API
// @version 1.0
// @description Buy and sell items between students of one institution, with admin moderation.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.Fatalf("logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		logger.WithError(err).Fatal("database init")
	}
	if err := db.Migrate(gormDB); err != nil {
		logger.WithError(err).Fatal("auto-migrate")
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err := cacheClient.Ping(ctx); err != nil {
		logger.WithError(err).Warn("redis unreachable, serving without cache")
	}

	store, uploadDir, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("storage init")
	}
	uploader := storage.NewUploader(store, cfg.UploadMaxBytes)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Initialize repositories
	userRepo := repository.NewUserRepository(gormDB)
	adminRepo := repository.NewAdminRepository(gormDB)
	itemRepo := repository.NewItemRepository(gormDB)
	reportRepo := repository.NewReportRepository(gormDB)

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	gate := auth.NewGate(jwtService, logger, m)

	// Initialize services
	authService := service.NewAuthService(userRepo, adminRepo, jwtService, cfg.EmailDomain, logger, m)
	userService := service.NewUserService(userRepo, itemRepo, uploader, cacheClient, logger)
	itemService := service.NewItemService(itemRepo, userRepo, uploader, cacheClient, logger)
	reportService := service.NewReportService(reportRepo, itemRepo, userRepo)

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	router.Register(e, cfg, router.Dependencies{
		Logger:    logger,
		Metrics:   m,
		Gate:      gate,
		Auth:      handler.NewAuthHandler(authService, userService),
		Items:     handler.NewItemHandler(itemService),
		Reports:   handler.NewReportHandler(reportService),
		Users:     handler.NewUserHandler(userService),
		Health:    handler.NewHealthHandler(db.NewChecker(gormDB), cacheClient),
		UploadDir: uploadDir,
	})

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = strings.TrimPrefix(strings.TrimPrefix(cfg.SwaggerHost, "https://"), "http://")
	}
	logger.Infof("swagger documentation available at http://%s/swagger/index.html", docs.SwaggerInfo.Host)

	go func() {
		logger.WithField("addr", cfg.Addr()).Info("server starting")
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server start")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server shutdown")
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// buildStorage picks the image backend. The returned directory is served
// under /uploads and is empty for object storage.
func buildStorage(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (storage.ImageStore, string, error) {
	if cfg.StorageDriver != "s3" {
		local, err := storage.NewLocalStore(cfg.UploadDir, "/uploads")
		if err != nil {
			return nil, "", err
		}
		logger.WithField("dir", local.Dir()).Info("storing images on local disk")
		return local, local.Dir(), nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
	if err != nil {
		return nil, "", err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	publicURL := cfg.S3PublicURL
	if publicURL == "" {
		publicURL = storage.DefaultPublicURL(cfg.S3Bucket, cfg.S3Region)
	}
	logger.WithFields(logrus.Fields{"bucket": cfg.S3Bucket, "region": cfg.S3Region}).Info("storing images in S3")
	return storage.NewS3Store(client, cfg.S3Bucket, publicURL), "", nil
}
