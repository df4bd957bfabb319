package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"agri_inspection/internal/api"
	"agri_inspection/internal/api/handler"
	"agri_inspection/internal/config"
	"agri_inspection/internal/export"
	"agri_inspection/internal/logger"
	"agri_inspection/internal/ocr"
	"agri_inspection/internal/queue"
	"agri_inspection/internal/repository/postgresql"
	"agri_inspection/internal/service"
	"agri_inspection/internal/storage"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"
)

func main() {
	// 1. Load configuration
	cfg := config.Load()
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	for _, w := range cfg.Warnings {
		log.Warn("config", zap.String("warning", w))
	}

	// 2. Database
	db, err := postgresql.NewDB(cfg)
	if err != nil {
		log.Fatal("connecting to database", zap.Error(err))
	}
	defer db.Close()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()
	if err := postgresql.EnsureSchema(startupCtx, db); err != nil {
		log.Fatal("creating schema", zap.Error(err))
	}
	log.Info("database ready", zap.String("host", cfg.DBHost), zap.String("db", cfg.DBName))

	// 3. Repositories and storage
	userRepo := postgresql.NewPgUserRepository(db)
	inspectionRepo := postgresql.NewPgInspectionRepository(db)
	configRepo := postgresql.NewPgSystemConfigRepository(db)

	media, err := storage.NewLocalStorage(cfg.MediaRoot)
	if err != nil {
		log.Fatal("preparing media storage", zap.Error(err))
	}

	exporter := export.NewWordExporter()
	if cfg.ExportTemplate != "" {
		if exporter, err = export.NewWordExporterFromFile(cfg.ExportTemplate); err != nil {
			log.Fatal("loading export template", zap.Error(err))
		}
	}

	// 4. Websocket hub
	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()
	webSocketManager := handler.NewWebSocketManager(log.Named("ws"))
	go webSocketManager.Start(appCtx)

	// 5. OCR job queue
	var (
		sqsClient *sqs.Client
		jobQueue  service.JobQueue
	)
	if cfg.OCRJobQueueURL == "" {
		log.Warn("OCR_JOB_QUEUE_URL not set, background OCR jobs are disabled")
	} else {
		awsSDKCfg, err := awsconfig.LoadDefaultConfig(startupCtx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			log.Fatal("loading AWS SDK config", zap.Error(err))
		}
		sqsClient = sqs.NewFromConfig(awsSDKCfg)
		jobQueue = queue.NewProducer(sqsClient, cfg.OCRJobQueueURL)
	}

	// 6. Services
	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTExpirationHours, log.Named("auth"))
	ocrService := service.NewOCRService(configRepo, ocr.NewDetector, log.Named("ocr"))
	ocrConfigService := service.NewOCRConfigService(configRepo, log.Named("ocr_config"))
	inspectionService := service.NewInspectionService(inspectionRepo, media, ocrService,
		webSocketManager, jobQueue, exporter, cfg.MaxUploadBytes, log.Named("inspection"))

	if cfg.AdminUsername != "" && cfg.AdminPassword != "" {
		if err := authService.EnsureSuperuser(startupCtx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
			log.Fatal("seeding superuser", zap.Error(err))
		}
	}

	// 7. OCR job consumer
	var wg sync.WaitGroup
	if sqsClient != nil {
		consumer := queue.NewConsumer(sqsClient, cfg.OCRJobQueueURL, inspectionService, log.Named("queue"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumer.Start(appCtx)
		}()
	}

	// 8. HTTP server
	router := api.SetupRouter(cfg, api.Services{
		Auth:        authService,
		OCR:         ocrService,
		OCRConfigs:  ocrConfigService,
		Inspections: inspectionService,
		DB:          db,
		WSManager:   webSocketManager,
	}, log)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("ListenAndServe", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	cancelApp()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		wg.Wait()
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Warn("OCR job consumer did not stop in time")
	}
	log.Info("server stopped")
}
