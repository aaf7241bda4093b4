package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uplinepay/backend/internal/config"
	"github.com/uplinepay/backend/internal/database"
	"github.com/uplinepay/backend/internal/handlers"
	"github.com/uplinepay/backend/internal/jobs"
	"github.com/uplinepay/backend/internal/middleware"
	"github.com/uplinepay/backend/internal/queue"
	"github.com/uplinepay/backend/internal/routes"
	"github.com/uplinepay/backend/internal/services/commission"
	"github.com/uplinepay/backend/internal/services/fraud"
	"github.com/uplinepay/backend/internal/services/hierarchy"
	"github.com/uplinepay/backend/internal/store"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.LoadConfig()

	// Initialize database
	db, err := database.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	// Create queue backed by Redis lists with job rows in Postgres
	q := queue.NewQueue(db, redisClient)

	// Initialize stores and rule provider
	gormStore := store.NewGormStore(db)
	rules := store.NewGormRules(db, cfg.Plan.BaseRuleSet())

	// Initialize services
	hierarchySvc := hierarchy.NewService(gormStore, rules)
	commissionEngine := commission.NewEngine(gormStore)
	executor := store.NewStatusExecutor(gormStore)
	fraudEngine := fraud.NewEngine(gormStore, gormStore, gormStore, executor)

	// Register all job handlers
	jobs.RegisterAllJobHandlers(q, db, hierarchySvc, commissionEngine, fraudEngine, rules, gormStore)

	// Initialize handlers
	commissionJob := jobs.NewCommissionJob(db, q, hierarchySvc, commissionEngine, rules)
	fraudScanJob := jobs.NewFraudScanJob(q, fraudEngine, rules, gormStore)
	partnerHandler := handlers.NewPartnerHandler(hierarchySvc, gormStore)
	transactionHandler := handlers.NewTransactionHandler(db, commissionJob, q)
	fraudHandler := handlers.NewFraudHandler(fraudEngine, fraudScanJob, gormStore, rules)

	// Initialize rate limiter: 20 req/s per IP, 60 writes/min per IP
	rateLimiter := middleware.NewRateLimiter(20, 60, 40, 10)
	defer rateLimiter.Stop()

	// Initialize Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// Apply global middleware
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Setup routes
	routes.RegisterPartnerRoutes(router, partnerHandler, rateLimiter)
	routes.RegisterTransactionRoutes(router, transactionHandler, rateLimiter)
	routes.RegisterFraudRoutes(router, fraudHandler, rateLimiter)

	// Start background workers
	worker := queue.NewWorker(q, []queue.JobType{
		queue.JobTypeCalculateCommission,
		queue.JobTypeCalculateResiduals,
		queue.JobTypeFraudAnalysis,
	}, 10)
	worker.Start()

	// Schedule recurring jobs
	scheduler := gocron.NewScheduler(time.UTC)
	if err := jobs.ScheduleRecurringJobs(scheduler, q, db, hierarchySvc, commissionEngine, fraudEngine, rules, gormStore, cfg.Plan.FraudSweepHour); err != nil {
		log.Fatalf("Failed to schedule recurring jobs: %v", err)
	}
	scheduler.StartAsync()

	// Start server
	srv := startServer(router, cfg.Server)

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Stop scheduler and workers
	scheduler.Stop()
	worker.Stop()

	// Create a deadline to wait for
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Shutdown server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}

// startServer starts the HTTP server
func startServer(router *gin.Engine, cfg config.ServerConfig) *http.Server {
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Server started on port %s", cfg.Port)
	return srv
}
