package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/qizhangumich/acams/internal/ai"
	"github.com/qizhangumich/acams/internal/auth"
	"github.com/qizhangumich/acams/internal/config"
	"github.com/qizhangumich/acams/internal/database"
	"github.com/qizhangumich/acams/internal/handlers"
	"github.com/qizhangumich/acams/internal/mail"
	"github.com/qizhangumich/acams/internal/middleware"
	"github.com/qizhangumich/acams/internal/progress"
	"github.com/qizhangumich/acams/internal/ratelimit"
)

const magicLinkLimitPerHour = 5

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, closeDB, err := database.Connect(&cfg.Database)
	if err != nil {
		log.Fatalf("Could not connect to the database: %v", err)
	}

	if err := database.SeedQuestions(db, cfg.Seed.QuestionsPath); err != nil {
		log.Fatalf("Could not seed questions: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var limiter auth.RateLimiter
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		limiter = ratelimit.New(redisClient, magicLinkLimitPerHour, time.Hour)
		log.Println("Successfully connected to Redis")
	} else {
		log.Println("Redis not configured, rate limiting via token counts")
	}

	sessions, err := auth.NewSessionService(cfg.Session.Secret, cfg.Session.Expiry())
	if err != nil {
		log.Fatalf("Could not initialize session service: %v", err)
	}

	magicLink := auth.NewMagicLinkService(db, limiter)
	go magicLink.RunCleanupRoutine(ctx)

	mailer := mail.NewMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username,
		cfg.SMTP.Password, cfg.SMTP.From, cfg.Server.BaseURL)

	var aiService *ai.Service
	if cfg.Gemini.APIKey != "" {
		aiService, err = ai.NewService(cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			log.Fatalf("Could not initialize AI service: %v", err)
		}
	} else {
		log.Println("WARNING: Gemini API key not configured, question chat disabled")
	}

	resolver := progress.NewResolver(db)
	h := handlers.New(db, resolver, sessions, magicLink, mailer, aiService,
		cfg.Server.BaseURL, cfg.Session.CookieName, cfg.Google.ClientID)

	router := gin.Default()
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", h.Health)
		v1.GET("/health/db", h.HealthDB)

		v1.POST("/auth/magic-link", h.RequestMagicLink)
		v1.GET("/auth/verify", h.VerifyMagicLink)
		v1.POST("/auth/google", h.GoogleAuth)

		authorized := v1.Group("/")
		authorized.Use(middleware.SessionMiddleware(db, sessions, cfg.Session.CookieName))
		{
			authorized.GET("/auth/me", h.Me)
			authorized.POST("/auth/logout", h.Logout)

			authorized.GET("/questions", h.ListQuestions)
			authorized.GET("/questions/next", h.NextQuestion)
			authorized.GET("/questions/by-index", h.QuestionByIndex)
			authorized.GET("/questions/:questionId", h.GetQuestion)

			// Canonical submission route plus the historical aliases.
			authorized.POST("/progress", h.SubmitAnswer)
			authorized.POST("/answer", h.SubmitAnswer)
			authorized.POST("/questions/submit", h.SubmitAnswer)

			authorized.GET("/progress", h.GetProgress)
			authorized.GET("/progress/resume", h.Resume)
			authorized.GET("/progress/summary", h.Summary)
			authorized.POST("/progress/update", h.UpdateNavigation)
			authorized.POST("/progress/reset", h.ResetProgress)

			authorized.GET("/dashboard", h.Dashboard)
			authorized.GET("/wrong-book", h.WrongBook)
			authorized.GET("/review/queue", h.ReviewQueue)
			authorized.GET("/review/sprint-dashboard", h.SprintDashboard)

			authorized.GET("/chat/:questionId", h.ChatHistory)
			authorized.POST("/chat/:questionId", h.SendChat)
		}
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Starting server on port %s...", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: Server shutdown failed: %v", err)
	}
	if err := closeDB(); err != nil {
		log.Printf("ERROR: Closing database failed: %v", err)
	}
	log.Println("Server stopped")
}
