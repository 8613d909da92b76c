package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/yourusername/account-api/internal/config"
	"github.com/yourusername/account-api/internal/handler"
	"github.com/yourusername/account-api/internal/middleware"
	pgRepo "github.com/yourusername/account-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/account-api/internal/repository/redis"
	"github.com/yourusername/account-api/internal/service"
	"github.com/yourusername/account-api/pkg/auth"
	"github.com/yourusername/account-api/pkg/database"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Loading configuration from %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	userRepo := pgRepo.NewUserRepo(db)
	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}

	accessExpiry := time.Duration(cfg.JWT.AccessExpiryHrs) * time.Hour
	actionExpiry := time.Duration(cfg.JWT.ActionExpiryMin) * time.Minute
	jwtService, err := auth.NewJWTService(cfg.JWT.Secret, accessExpiry, actionExpiry)
	if err != nil {
		log.Printf("Failed to initialize JWTService: %v", err)
		os.Exit(1)
	}

	var emailService service.EmailService = &service.NoopEmailService{}
	if cfg.Email.Enabled {
		emailService, err = service.NewResendEmailService(cfg.Email.APIKey, cfg.Email.From)
		if err != nil {
			log.Printf("Failed to initialize email service: %v", err)
			os.Exit(1)
		}
	}

	var moderationService service.ModerationService = &service.NoopModerationService{}
	if cfg.Moderation.Enabled {
		cacheTTL := time.Duration(cfg.Moderation.CacheTTLMin) * time.Minute
		moderationService, err = service.NewGeminiModerationService(cfg.Moderation.APIKey, cfg.Moderation.Model, cacheRepo, cacheTTL)
		if err != nil {
			log.Printf("Failed to initialize moderation service: %v", err)
			os.Exit(1)
		}
	}

	var assetService service.AssetService = &service.NoopAssetService{}
	if cfg.Storage.Enabled {
		assetService, err = service.NewS3AssetService(cfg.Storage)
		if err != nil {
			log.Printf("Failed to initialize asset service: %v", err)
			os.Exit(1)
		}
	}

	verificationService, err := service.NewVerificationService(userRepo)
	if err != nil {
		log.Printf("Failed to initialize verification service: %v", err)
		os.Exit(1)
	}

	accountService, err := service.NewAccountService(
		userRepo,
		jwtService,
		emailService,
		moderationService,
		assetService,
		verificationService,
		cfg.Server.PublicBaseURL,
	)
	if err != nil {
		log.Printf("Failed to initialize account service: %v", err)
		os.Exit(1)
	}

	accountHandler := handler.NewAccountHandler(accountService)
	authMiddleware := middleware.NewAuthMiddleware(jwtService)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	isProduction := gin.Mode() == gin.ReleaseMode

	router := gin.Default()

	// Trust only localhost in development so c.ClientIP() cannot be spoofed
	// in production.
	if isProduction {
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173", "http://localhost:3000", cfg.Server.PublicBaseURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	defaultLimit := rateLimiter.Limit(middleware.DefaultAccountRateLimitConfig())
	strictLimit := rateLimiter.Limit(middleware.StrictAccountRateLimitConfig())

	api := router.Group("/api")
	{
		api.POST("/register", strictLimit, accountHandler.Register)
		api.GET("/verify", defaultLimit, accountHandler.VerifyEmail)
		api.POST("/login", strictLimit, accountHandler.Login)
		api.POST("/text-verify", defaultLimit, accountHandler.SendTextVerificationCode)
		api.POST("/verify-text-code", strictLimit, accountHandler.VerifyTextCode)
		api.POST("/request-password-reset", defaultLimit, accountHandler.RequestPasswordReset)
		api.POST("/reset-password", defaultLimit, accountHandler.ResetPassword)

		authed := api.Group("/")
		authed.Use(authMiddleware.RequireAuth())
		{
			authed.PUT("/update-account", accountHandler.UpdateAccount)
			authed.DELETE("/delete-account", accountHandler.DeleteAccount)
		}
	}

	if cfg.Firebase.Enabled {
		firebaseAuthService, err := service.NewFirebaseAuthService(cfg.Firebase.APIKey)
		if err != nil {
			log.Printf("Failed to initialize firebase auth service: %v", err)
			os.Exit(1)
		}
		firebaseHandler := handler.NewFirebaseAuthHandler(firebaseAuthService)

		v2 := router.Group("/api/v2")
		{
			v2.POST("/register", strictLimit, firebaseHandler.Register)
			v2.POST("/login", strictLimit, firebaseHandler.Login)
			v2.POST("/google", strictLimit, firebaseHandler.GoogleSignIn)
			v2.POST("/reset-password", defaultLimit, firebaseHandler.ResetPassword)
			v2.DELETE("/delete-account", defaultLimit, firebaseHandler.DeleteAccount)
			v2.POST("/logout", firebaseHandler.Logout)
		}
		log.Println("Firebase auth surface enabled at /api/v2")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	if err := redisClient.Close(); err != nil {
		log.Printf("Error closing Redis client: %v", err)
	}

	log.Println("Server exited properly")
}
