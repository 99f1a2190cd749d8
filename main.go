package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"binary-plan-engine/handlers"
	"binary-plan-engine/middleware"
	"binary-plan-engine/models"
	"binary-plan-engine/services"
	"binary-plan-engine/utils"
	"binary-plan-engine/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{})

	// Only Gateway requests allowed — hooks included.
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles, X-Service-Token",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if os.Getenv("REPORT_ARCHIVE_ENABLED") == "true" {
		if err := utils.InitR2(); err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Member{},
		&models.Plan{},
		&models.PlanUpgrade{},
		&models.Membership{},
		&models.MembershipHistory{},
		&models.MembershipReconsumption{},
		&models.WeeklyVolume{},
		&models.WeeklyVolumeHistory{},
		&models.MonthlyVolumeRank{},
		&models.Rank{},
		&models.UserRank{},
		&models.UserPoints{},
		&models.PointsTransaction{},
		&models.Order{},
		&models.Payment{},
		&models.CutExecution{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	nav := services.NewTreeNavigator()
	pointsService := services.NewPointsService()
	volumeService := services.NewVolumeService(nav)
	rankService := services.NewRankService()
	var notifier services.Notifier = services.NewEmailNotifier(db)
	if os.Getenv("SMTP_HOST") == "" {
		log.Println("⚠️  SMTP_HOST not set, notifications will only be logged")
		notifier = services.LogNotifier{}
	}
	reportService := services.NewReportService(notifier)

	weeklyCut := services.NewWeeklyCutService(db, nav, volumeService, pointsService, rankService, reportService)
	monthlyCut := services.NewMonthlyCutService(db, nav, volumeService, rankService, notifier, reportService)
	reconsumption := services.NewReconsumptionService(db, volumeService, pointsService)
	approval := services.NewApprovalService(db, volumeService, pointsService, notifier)
	scheduler := services.NewSchedulerService(db, weeklyCut, monthlyCut, reconsumption)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Keep the binary-tree mirror fresh from the user directory.
	memberSyncClient := workers.NewMemberSyncClient(db)
	go workers.PollMembers(ctx, memberSyncClient, 30*time.Second)

	if err := scheduler.Start(ctx); err != nil {
		log.Fatal("failed to start cut scheduler:", err)
	}
	defer scheduler.Stop()

	handlers.SetupCutRoutes(app, scheduler)
	handlers.SetupHookRoutes(app, approval)
	handlers.SetupMemberRoutes(app, db, pointsService)
	handlers.SetupCatalogRoutes(app, db)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Settlement engine running on http://localhost:%s", port)
	log.Println("✅ Member directory polling running (every 30s)")
	log.Println("✅ Cut scheduler running")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
