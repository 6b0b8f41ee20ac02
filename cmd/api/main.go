package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/mingke-lab/exam-go-api/internal/config"
	"github.com/mingke-lab/exam-go-api/internal/database"
	"github.com/mingke-lab/exam-go-api/internal/handler"
	"github.com/mingke-lab/exam-go-api/internal/middleware"
	"github.com/mingke-lab/exam-go-api/internal/models"
	"github.com/mingke-lab/exam-go-api/internal/repository"
	"github.com/mingke-lab/exam-go-api/internal/router"
	"github.com/mingke-lab/exam-go-api/internal/service"
	"github.com/mingke-lab/exam-go-api/pkg/ai"
	cloud "github.com/mingke-lab/exam-go-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Student{},
		&models.Paper{},
		&models.Question{},
		&models.ExamSubmission{},
		&models.Notification{},
		&models.ActivityLog{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		logger.Warn().Err(err).Msg("nats unavailable, cross-node notification fan-out disabled")
		natsConn = nil
	} else {
		defer natsConn.Close()
	}

	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	studentRepo := repository.NewStudentRepository(db)
	paperRepo := repository.NewPaperRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	activityService := service.NewActivityService(activityRepo, validate, logger)
	notificationService := service.NewNotificationService(notificationRepo, redisClient, "exam", natsConn, validate, logger)
	paperService := service.NewPaperService(paperRepo, validate, activityService, logger)
	questionService := service.NewQuestionService(questionRepo, paperRepo, validate, activityService, logger)
	gradeService := service.NewGradeService(paperRepo, submissionRepo, validate, activityService, notificationService, logger)
	studentService := service.NewStudentService(studentRepo, submissionRepo, redisClient, cfg.StatsCacheTTL, logger)
	batchService := service.NewAdminBatchService(studentRepo, questionRepo, paperRepo, validate, activityService, cfg.BatchConcurrency, cfg.BatchItemTimeout, logger)
	uploadService := service.NewUploadService(uploader, int(cfg.UploadMaxSizeMB), logger)

	var suggestService service.ReviewSuggestService
	if cfg.OpenAIAPIKey != "" {
		reviewer, err := ai.NewOpenAIReviewer(ai.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.OpenAIModel,
			Logger: logger,
		})
		if err != nil {
			log.Fatalf("failed to create ai reviewer: %v", err)
		}
		suggestService = service.NewReviewSuggestService(submissionRepo, paperRepo, reviewer, logger)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notificationService.Start(rootCtx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		PaperHandler:        handler.NewPaperHandler(paperService, logger),
		QuestionHandler:     handler.NewQuestionHandler(questionService, logger),
		SubmissionHandler:   handler.NewSubmissionHandler(gradeService, suggestService, logger),
		StudentHandler:      handler.NewStudentHandler(studentService, logger),
		AdminBatchHandler:   handler.NewAdminBatchHandler(batchService, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger, cfg.SSEKeepAlive),
		UploadHandler:       handler.NewUploadHandler(uploadService, logger),
		ActivityHandler:     handler.NewActivityHandler(activityService, logger),
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-rootCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
