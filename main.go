package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"mini-crm/config"
	"mini-crm/consumer"
	"mini-crm/dispatcher"
	"mini-crm/handlers"
	"mini-crm/mailer"
	"mini-crm/middleware"
	"mini-crm/models"
	"mini-crm/monitoring"
	"mini-crm/notifier"
	"mini-crm/utils"
)

func main() {
	logger := log.New(os.Stdout, "MINICRM: ", log.LstdFlags|log.Lshortfile)

	if err := godotenv.Load(); err != nil {
		logger.Println("No .env file found, using environment")
	}
	cfg := config.Load()

	if cfg.SentryDSN != "" {
		if err := utils.InitSentry(cfg.SentryDSN, cfg.AppEnv, cfg.AppVersion); err != nil {
			logger.Printf("Sentry disabled: %v", err)
		} else {
			defer utils.FlushSentry()
		}
	}

	monitoring.Init()

	repo, err := connectRepository(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer repo.Close()

	redisClient, err := connectRedis(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize Redis: %v", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Printf("Error closing Redis connection: %v", err)
		}
	}()

	queue, err := dispatcher.NewRedisQueue(cfg.RedisHost, cfg.RedisPassword)
	if err != nil {
		logger.Fatalf("Failed to initialize reminder queue: %v", err)
	}
	defer queue.Close()

	// Kafka and Elasticsearch are optional collaborators; the API keeps
	// serving without them, minus events and search.
	kafkaProducer, err := utils.NewKafkaProducer(cfg.KafkaBroker)
	if err != nil {
		logger.Printf("Kafka unavailable, events disabled: %v", err)
		kafkaProducer = nil
	} else {
		defer kafkaProducer.Close()
	}

	esClient, err := utils.NewElasticsearchClient(cfg.ElasticsearchURL)
	if err != nil {
		logger.Printf("Elasticsearch unavailable, search disabled: %v", err)
		esClient = nil
	}

	mail := mailer.NewSendGridMailer(cfg.SendGridAPIKey, cfg.MailFrom, cfg.MailFromName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	disp := dispatcher.New(repo, queue, mail, logger, cfg.DispatcherPollInterval, cfg.DispatcherWorkers)
	disp.Start(ctx)
	defer disp.Stop()

	if kafkaProducer != nil {
		eventConsumer := consumer.NewEventConsumer(
			cfg.KafkaBroker,
			redisClient,
			esClient,
			notifier.New(mail, logger),
			cfg.NotifyEmails,
			logger,
		)
		eventConsumer.Start(ctx)
		defer eventConsumer.Stop()
	}

	router := setupRouter(cfg, repo, redisClient, kafkaProducer, esClient, disp, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Printf("Server is running on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Println("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("Server shutdown error: %v", err)
	}
}

func connectRepository(cfg *config.Config, logger *log.Logger) (*models.PostgresRepository, error) {
	var repo *models.PostgresRepository
	var err error
	maxRetries := 5
	retryDelay := 3 * time.Second

	for i := 0; i < maxRetries; i++ {
		repo, err = models.NewPostgresRepository(cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)
		if err == nil {
			return repo, nil
		}
		logger.Printf("Attempt %d: Failed to connect to database: %v", i+1, err)
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	return nil, err
}

func connectRedis(cfg *config.Config, logger *log.Logger) (utils.RedisClient, error) {
	var client utils.RedisClient
	var err error
	maxRetries := 5
	retryDelay := 3 * time.Second

	for i := 0; i < maxRetries; i++ {
		client, err = utils.NewRedisClient(cfg.RedisHost, cfg.RedisPassword)
		if err == nil {
			return client, nil
		}
		logger.Printf("Attempt %d: Failed to connect to Redis: %v", i+1, err)
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	return nil, err
}

func setupRouter(
	cfg *config.Config,
	repo models.Repository,
	redisClient utils.RedisClient,
	kafkaProducer utils.KafkaProducer,
	esClient utils.ElasticsearchClient,
	disp *dispatcher.Dispatcher,
	logger *log.Logger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(middleware.PrometheusMetrics())
	router.Use(middleware.SentryMiddleware())
	router.Use(middleware.ErrorHandler())

	authHandler := handlers.NewAuthHandler(repo, []byte(cfg.JWTSecret), cfg.TokenTTL)
	leadHandler := handlers.NewLeadHandler(repo, kafkaProducer, redisClient, esClient, logger)
	contactHandler := handlers.NewContactHandler(repo, kafkaProducer, logger)
	noteHandler := handlers.NewNoteHandler(repo, kafkaProducer, logger)
	reminderHandler := handlers.NewReminderHandler(repo, disp, logger)
	dashboardHandler := handlers.NewDashboardHandler(repo)

	router.GET("/metrics", gin.WrapH(monitoring.Handler()))

	api := router.Group("/api/v1")
	{
		api.GET("/health", func(c *gin.Context) {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()

			details := gin.H{"database": "available", "redis": "available"}
			status := http.StatusOK
			if err := repo.Ping(ctx); err != nil {
				details["database"] = "unavailable"
				status = http.StatusServiceUnavailable
			}
			if err := redisClient.Ping(ctx); err != nil {
				details["redis"] = "unavailable"
				status = http.StatusServiceUnavailable
			}

			body := gin.H{"status": "ok", "details": details}
			if status != http.StatusOK {
				body["status"] = "degraded"
			}
			c.JSON(status, body)
		})

		api.POST("/auth/register", authHandler.Register)
		api.POST("/auth/login", authHandler.Login)

		authed := api.Group("")
		authed.Use(middleware.RequireAuth([]byte(cfg.JWTSecret)))
		{
			authed.GET("/dashboard", dashboardHandler.GetDashboard)

			authed.GET("/leads", leadHandler.ListLeads)
			authed.GET("/leads/search", leadHandler.SearchLeads)
			authed.POST("/leads", leadHandler.CreateLead)
			authed.GET("/leads/:id", leadHandler.GetLead)
			authed.PUT("/leads/:id", leadHandler.UpdateLead)
			authed.DELETE("/leads/:id", leadHandler.DeleteLead)

			authed.GET("/contacts", contactHandler.ListContacts)
			authed.POST("/contacts", contactHandler.CreateContact)
			authed.GET("/contacts/:id", contactHandler.GetContact)
			authed.PUT("/contacts/:id", contactHandler.UpdateContact)
			authed.DELETE("/contacts/:id", contactHandler.DeleteContact)

			authed.GET("/notes", noteHandler.ListNotes)
			authed.POST("/notes", noteHandler.CreateNote)
			authed.GET("/notes/:id", noteHandler.GetNote)
			authed.PUT("/notes/:id", noteHandler.UpdateNote)
			authed.DELETE("/notes/:id", noteHandler.DeleteNote)

			authed.GET("/reminders", reminderHandler.ListReminders)
			authed.POST("/reminders", reminderHandler.CreateReminder)
			authed.GET("/reminders/:id", reminderHandler.GetReminder)
			authed.PUT("/reminders/:id", reminderHandler.UpdateReminder)
			authed.DELETE("/reminders/:id", reminderHandler.DeleteReminder)
		}
	}

	return router
}
