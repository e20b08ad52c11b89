package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lshigami/Quokkas/config"
	"github.com/lshigami/Quokkas/database"
	_ "github.com/lshigami/Quokkas/docs" // Swagger docs - auto-generated
	"github.com/lshigami/Quokkas/internal/clock"
	adminctrl "github.com/lshigami/Quokkas/internal/controller/admin"
	userctrl "github.com/lshigami/Quokkas/internal/controller/user"
	"github.com/lshigami/Quokkas/internal/gateway"
	"github.com/lshigami/Quokkas/internal/logger"
	"github.com/lshigami/Quokkas/internal/middleware"
	"github.com/lshigami/Quokkas/internal/model"
	"github.com/lshigami/Quokkas/internal/repository"
	"github.com/lshigami/Quokkas/internal/service"
	"github.com/rs/zerolog/log" // Global zerolog instance
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// @title Test Booking & Reconciliation API
// @version 1.0
// @description API for test bookings with gateway payment reconciliation, deterministic question sampling and idempotent exam submission.
// @termsOfService http://swagger.io/terms/
// @contact.name API Support
// @contact.url http://example.com/support
// @contact.email support@example.com
// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
func main() {
	logger.Init() // Call this early

	app := fx.New(
		// Core Application Components
		fx.Provide(
			config.NewConfig,
			database.NewDatabase, // Provides *gorm.DB
			clock.New,            // Provides clock.Clock pinned to the exam timezone
			NewGinEngine,         // Provides *gin.Engine
			func(cfg *config.Config) service.PaymentGateway {
				return gateway.NewClient(cfg)
			},
		),

		// Repositories Layer
		fx.Provide(
			repository.NewBookingRepository,
			repository.NewPaymentRecordRepository,
			repository.NewCategoryRepository,
			repository.NewQuestionRepository,
			repository.NewTestRepository,
			repository.NewExamResultRepository,
		),

		// Services Layer
		fx.Provide(
			service.NewQuestionSampler,
			service.NewAdminTestService,
			service.NewUserTestService,
			service.NewSubmissionService,
			// BookingReconciler needs the gateway key id for checkout payloads
			func(
				bookingRepo repository.BookingRepository,
				paymentRepo repository.PaymentRecordRepository,
				testRepo repository.TestRepository,
				gw service.PaymentGateway,
				clk clock.Clock,
				cfg *config.Config,
				db *gorm.DB,
			) service.BookingReconciler {
				return service.NewBookingReconciler(bookingRepo, paymentRepo, testRepo, gw, clk, cfg.Gateway.KeyID, db)
			},
		),

		// API Controllers Layer
		fx.Provide(
			adminctrl.NewAdminTestController,
			userctrl.NewUserTestController,
			userctrl.NewBookingController,
			userctrl.NewPaymentController,
		),

		// Invokers - Functions that are executed by Fx
		fx.Invoke(RegisterRoutesAndStartServer), // Combined registration and server start
		fx.Invoke(AutoMigrateDB),
	)

	// Start the application
	if err := app.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	// Wait for a shutdown signal
	<-app.Done()
	log.Info().Msg("Application shutting down gracefully...")
}

func NewGinEngine() *gin.Engine {
	gin.SetMode(gin.DebugMode)

	r := gin.New()

	// Custom logger using Zerolog for Gin
	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		log.Info().
			Str("client_ip", param.ClientIP).
			Str("method", param.Method).
			Str("path", param.Path).
			Int("status_code", param.StatusCode).
			Dur("latency", param.Latency).
			Str("user_agent", param.Request.UserAgent()).
			Str("error_message", param.ErrorMessage).
			Msg("gin_request")
		return "" // Returning empty string to avoid double logging if Gin's default logger is also active
	}))
	r.Use(gin.Recovery())

	// CORS Configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"}, // Be more specific in production
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Swagger UI
	// URL: http://localhost:PORT/swagger/index.html
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// RegisterRoutesAndStartServer configures API routes and manages server lifecycle.
func RegisterRoutesAndStartServer(
	lc fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Config,
	adminTestCtrl *adminctrl.AdminTestController,
	userTestCtrl *userctrl.UserTestController,
	bookingCtrl *userctrl.BookingController,
	paymentCtrl *userctrl.PaymentController,
) {
	// Admin Routes (prefixed with /api/v1/admin)
	adminAPIGroup := router.Group("/api/v1/admin")
	adminAPIGroup.Use(middleware.AdminOnly(cfg.JwtKey))
	{
		adminAPIGroup.POST("/categories", adminTestCtrl.CreateCategory)
		adminAPIGroup.POST("/categories/:category_id/questions", adminTestCtrl.AddQuestion)
		adminAPIGroup.POST("/tests", adminTestCtrl.CreateTest)
		adminAPIGroup.GET("/results", adminTestCtrl.GetAllResults)
	}

	// User Routes (prefixed with /api/v1)
	userAPIGroup := router.Group("/api/v1")
	{
		// Test catalog is public
		userAPIGroup.GET("/tests", userTestCtrl.GetAllTests)
		userAPIGroup.GET("/tests/:test_id", userTestCtrl.GetTestDetails)

		// Gateway-facing endpoints authenticate by signature, not by JWT:
		// the browser redirect and the provider's webhook both arrive
		// without a session.
		userAPIGroup.GET("/payments/callback", paymentCtrl.Callback)
		userAPIGroup.POST("/payments/callback", paymentCtrl.Callback)
		userAPIGroup.POST("/payments/webhook", paymentCtrl.Webhook)

		authGroup := userAPIGroup.Group("")
		authGroup.Use(middleware.Auth(cfg.JwtKey))
		{
			// Bookings
			authGroup.POST("/bookings", bookingCtrl.CreateBooking)
			authGroup.POST("/bookings/abandon", bookingCtrl.AbandonBooking)
			authGroup.GET("/bookings/status", bookingCtrl.GetBookingStatus)

			// Exam Attempts
			authGroup.POST("/tests/:test_id/start", userTestCtrl.StartExam)
			authGroup.POST("/tests/:test_id/submit", userTestCtrl.SubmitExam)
			authGroup.GET("/tests/:test_id/my-results", userTestCtrl.GetMyResults)
		}
	}

	// HTTP Server Setup and Lifecycle
	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("Test Booking API server starting on port %s", cfg.Server.Port)
			log.Info().Msgf("Swagger UI available at http://localhost:%s/swagger/index.html", cfg.Server.Port)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("Server ListenAndServe failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Server shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	})
}

func AutoMigrateDB(db *gorm.DB) error {
	log.Info().Msg("Running database migrations...")
	err := db.AutoMigrate(
		&model.QuestionCategory{},
		&model.Question{},
		&model.Test{},
		&model.Booking{},
		&model.PaymentRecord{},
		&model.ExamResult{},
	)
	if err != nil {
		log.Error().Err(err).Msg("Database migration failed")
		return err
	}
	log.Info().Msg("Database migration completed successfully.")
	return nil
}
