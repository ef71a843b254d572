package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"

	"github.com/fawzii0x3/breath-school-api/internal/api"
	"github.com/fawzii0x3/breath-school-api/internal/config"
	"github.com/fawzii0x3/breath-school-api/internal/core"
	"github.com/fawzii0x3/breath-school-api/internal/crm"
	"github.com/fawzii0x3/breath-school-api/internal/db"
	"github.com/fawzii0x3/breath-school-api/internal/identity"
	"github.com/fawzii0x3/breath-school-api/internal/logger"
	"github.com/fawzii0x3/breath-school-api/internal/middleware"
	"github.com/fawzii0x3/breath-school-api/pkg/cache"
	"github.com/fawzii0x3/breath-school-api/pkg/messagequeue"
)

func main() {
	// --- 1. Load Application Configuration ---
	// The logger's level and sink come from configuration, so this step runs first.
	appConfig, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to load application configuration: %v", err)
	}

	// --- 2. Initialize Logger (Zap) ---
	zapLogger, flush := logger.New(logger.Options{
		Level:       appConfig.LogLevel,
		Development: !appConfig.IsRelease(),
		File:        appConfig.LogFile,
		MaxSizeMB:   appConfig.LogMaxSizeMB,
		MaxBackups:  appConfig.LogMaxBackups,
		MaxAgeDays:  appConfig.LogMaxAgeDays,
	})
	defer flush()
	zapLogger.Info("Application configuration loaded successfully.", zap.String("ginMode", appConfig.GinMode))

	// --- 3. Initialize Firebase Admin SDK (Firestore and Auth clients) ---
	initCtx, cancelInitCtx := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelInitCtx()
	clients, err := db.NewFirebase(initCtx, appConfig, zapLogger)
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize Firebase Admin SDK", zap.Error(err))
	}
	defer func() {
		if err := clients.Close(); err != nil {
			zapLogger.Warn("Closing Firestore client failed", zap.Error(err))
		}
	}()
	zapLogger.Info("Firebase Admin SDK (Firestore, Auth) initialized successfully.")

	// --- 4. Initialize Repositories ---
	userRepo := db.NewFirestoreUserRepository(clients.Firestore)
	courseRepo := db.NewFirestoreCourseRepository(clients.Firestore, zapLogger)
	sessionRepo := db.NewFirestoreSessionRepository(clients.Firestore, zapLogger)
	themeRepo := db.NewFirestoreThemeRepository(clients.Firestore)
	favoriteRepo := db.NewFirestoreFavoriteRepository(clients.Firestore, zapLogger)
	zapLogger.Info("Repositories initialized successfully.")

	// --- 5. Initialize CRM client, tag cache and event publisher ---
	crmClient, err := crm.NewClient(crm.Config{
		BaseURL: appConfig.CRMBaseURL,
		APIKey:  appConfig.CRMAPIKey,
		Timeout: appConfig.CRMTimeout,
	}, zapLogger)
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize CRM client", zap.Error(err))
	}

	var tagCache cache.Cache
	if appConfig.RedisURL != "" {
		redisCache, err := cache.NewRedisCache(initCtx, cache.NewRedisCacheConfig{
			URL:    appConfig.RedisURL,
			Prefix: "breath-school:",
		}, zapLogger)
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to connect to Redis", zap.Error(err))
		}
		tagCache = redisCache
	} else {
		zapLogger.Info("REDIS_URL not set, using in-process tag cache.")
		tagCache = cache.NewMemoryCache()
	}
	defer tagCache.Close()

	var publisher messagequeue.Publisher = messagequeue.NoopPublisher{}
	if appConfig.RabbitMQURL != "" {
		rabbit, err := messagequeue.NewRabbitMQService(messagequeue.NewRabbitMQServiceConfig{
			URL:      appConfig.RabbitMQURL,
			Exchange: appConfig.EventsExchange,
		}, zapLogger)
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to connect to RabbitMQ", zap.Error(err))
		}
		publisher = rabbit
	} else {
		zapLogger.Info("RABBITMQ_URL not set, user lifecycle events are discarded.")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			zapLogger.Warn("Closing event publisher failed", zap.Error(err))
		}
	}()

	// --- 6. Initialize Services ---
	allowUnverified := appConfig.AuthAllowUnverifiedTokens && !appConfig.IsRelease()
	verifier := identity.NewFirebaseVerifier(clients.Auth, allowUnverified, zapLogger)

	tagSync := core.NewTagSynchronizer(crmClient, tagCache, appConfig.TagCacheTTL, zapLogger)
	reconciliationService := core.NewReconciliationService(userRepo, crmClient, publisher, zapLogger)
	userService := core.NewUserService(userRepo, favoriteRepo, tagSync, crmClient, clients.Auth, publisher, core.UserServiceOptions{
		DeleteCRMContact: appConfig.CRMDeleteContactOnAccountDelete,
	}, zapLogger)
	courseService := core.NewCourseService(courseRepo, zapLogger)
	sessionService := core.NewSessionService(sessionRepo, zapLogger)
	themeService := core.NewThemeService(themeRepo)

	gate := middleware.NewAuthGate(verifier, userService, reconciliationService, middleware.AuthGateConfig{
		LookupTimeout:    appConfig.AuthLookupTimeout,
		CRMCreateTimeout: appConfig.CRMCreateTimeout,
	}, zapLogger)
	zapLogger.Info("Core services initialized successfully.")

	// --- 7. Setup Gin HTTP Engine ---
	if appConfig.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()

	// --- 8. Apply Global Middleware (Order is important) ---
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(zapLogger))
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	router.Use(middleware.Metrics())

	if appConfig.ClientURL != "" {
		router.Use(middleware.CORSMiddleware(appConfig.ClientURL))
		zapLogger.Info("CORS Middleware enabled", zap.String("clientURL", appConfig.ClientURL))
	} else {
		zapLogger.Warn("CORS Middleware SKIPPED: CLIENT_URL is not configured. API might not be accessible from a web frontend.")
	}

	// --- 9. Setup API Routes ---
	api.SetupRoutes(router, appConfig, zapLogger, gate, api.Services{
		Users:          userService,
		Reconciliation: reconciliationService,
		Courses:        courseService,
		Sessions:       sessionService,
		Themes:         themeService,
	})

	// --- 10. Configure and Start HTTP Server ---
	serverAddr := fmt.Sprintf(":%s", appConfig.Port)
	httpServer := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	zapLogger.Info("Starting HTTP server...", zap.String("address", serverAddr), zap.String("ginMode", gin.Mode()))

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// --- 11. Graceful Shutdown Handling ---
	quitChannel := make(chan os.Signal, 1)
	signal.Notify(quitChannel, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quitChannel
	zapLogger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	zapLogger.Info("Attempting graceful shutdown of HTTP server...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown due to error during graceful shutdown", zap.Error(err))
	}

	// Background CRM contact creation started by the auth gate must finish before its clients close.
	gate.Wait()

	zapLogger.Info("Server exiting gracefully.")
}
