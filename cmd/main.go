package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bussola-digital/bussola-backend/internal/audit"
	"github.com/bussola-digital/bussola-backend/internal/catalog"
	"github.com/bussola-digital/bussola-backend/internal/data/db"
	"github.com/bussola-digital/bussola-backend/internal/data/repos"
	"github.com/bussola-digital/bussola-backend/internal/handlers"
	"github.com/bussola-digital/bussola-backend/internal/middleware"
	"github.com/bussola-digital/bussola-backend/internal/observability"
	"github.com/bussola-digital/bussola-backend/internal/platform/envutil"
	"github.com/bussola-digital/bussola-backend/internal/platform/logger"
	"github.com/bussola-digital/bussola-backend/internal/server"
	"github.com/bussola-digital/bussola-backend/internal/services"
	"gorm.io/gorm"
)

func main() {
	// Logger
	logMode := envutil.String("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := envutil.String("JWT_SECRET_KEY", "")
	if jwtSecretKey == "" {
		log.Fatal("JWT_SECRET_KEY is required")
	}
	accessTokenTTL := time.Duration(envutil.Int("ACCESS_TOKEN_TTL", 86400)) * time.Second

	// Telemetry
	ctx := context.Background()
	shutdownOTel := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: envutil.String("OTEL_SERVICE_NAME", "bussola"),
		Environment: logMode,
		Version:     envutil.String("APP_VERSION", "dev"),
	})
	defer shutdownOTel(context.Background())
	if observability.Enabled() {
		metrics := observability.Init(log)
		metrics.StartServer(ctx, log, envutil.String("METRICS_ADDR", ":9090"))
	}

	// Database
	type dbService interface {
		DB() *gorm.DB
		AutoMigrateAll() error
	}
	var databaseService dbService
	if envutil.String("DB_DRIVER", "postgres") == "sqlite" {
		databaseService, err = db.NewSqliteService(log)
	} else {
		databaseService, err = db.NewPostgresService(log)
	}
	if err != nil {
		log.Fatal("Database init failed", "error", err)
	}
	if err = databaseService.AutoMigrateAll(); err != nil {
		log.Fatal("Database auto migration failed", "error", err)
	}
	thePG := databaseService.DB()

	// Catalogs are the product content; a broken catalog is a broken build.
	cat, err := catalog.Load()
	if err != nil {
		log.Fatal("Catalog load failed", "error", err)
	}
	log.Info("Catalog loaded", "action_version", cat.Actions.Version, "cause_version", cat.Causes.Version)

	// Audit trail
	var publisher audit.Publisher
	if os.Getenv("REDIS_ADDR") != "" {
		publisher, err = audit.NewRedisPublisher(log)
		if err != nil {
			log.Fatal("Redis audit publisher init failed", "error", err)
		}
	} else {
		log.Warn("REDIS_ADDR not set, audit events will be dropped")
		publisher = audit.NewNoopPublisher()
	}
	defer publisher.Close()

	// Repos
	log.Info("Setting up repos from main...")
	companyRepo := repos.NewCompanyRepo(thePG, log)
	userRepo := repos.NewUserRepo(thePG, log)
	assessmentRepo := repos.NewAssessmentRepo(thePG, log)
	answerRepo := repos.NewAnswerRepo(thePG, log)
	scoreRepo := repos.NewProcessScoreRepo(thePG, log)
	gapCauseRepo := repos.NewGapCauseRepo(thePG, log)
	recommendationRepo := repos.NewRecommendationRepo(thePG, log)
	planSlotRepo := repos.NewPlanSlotRepo(thePG, log)
	dodRepo := repos.NewDodConfirmationRepo(thePG, log)
	evidenceRepo := repos.NewEvidenceRepo(thePG, log)
	snapshotRepo := repos.NewSnapshotRepo(thePG, log)

	// Services
	log.Info("Setting up services from main...")
	authService := services.NewAuthService(thePG, log, companyRepo, userRepo, jwtSecretKey, accessTokenTTL)
	snapshotService := services.NewSnapshotService(thePG, log, cat, assessmentRepo, scoreRepo, recommendationRepo, planSlotRepo, evidenceRepo, snapshotRepo)
	assessmentService := services.NewAssessmentService(thePG, log, cat, companyRepo, assessmentRepo, answerRepo, scoreRepo, gapCauseRepo, recommendationRepo, planSlotRepo, snapshotService, publisher)
	planService := services.NewPlanService(thePG, log, cat, assessmentRepo, planSlotRepo, dodRepo, evidenceRepo, snapshotService, publisher)

	// Handlers
	log.Info("Setting up handlers from main...")
	authHandler := handlers.NewAuthHandler(authService)
	assessmentHandler := handlers.NewAssessmentHandler(assessmentService)
	planHandler := handlers.NewPlanHandler(planService)
	snapshotHandler := handlers.NewSnapshotHandler(snapshotService)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		Log:               log,
		DB:                thePG,
		AuthHandler:       authHandler,
		AuthMiddleware:    authMiddleware,
		AssessmentHandler: assessmentHandler,
		PlanHandler:       planHandler,
		SnapshotHandler:   snapshotHandler,
	})

	port := envutil.String("PORT", "8080")
	log.Info("Server listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Server failed", "error", err)
	}
}
