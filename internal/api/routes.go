package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fawzii0x3/breath-school-api/internal/config"
	"github.com/fawzii0x3/breath-school-api/internal/core"
	"github.com/fawzii0x3/breath-school-api/internal/middleware"
)

// Services bundles the core services the handlers depend on.
type Services struct {
	Users          core.UserService
	Reconciliation core.ReconciliationService
	Courses        core.CourseService
	Sessions       core.SessionService
	Themes         core.ThemeService
}

// SetupRoutes configures all the application routes with their handlers and middleware.
// Global middleware (request id, logging, recovery, metrics, CORS) is applied in main.
func SetupRoutes(
	router *gin.Engine,
	appConfig *config.Config,
	logger *zap.Logger,
	gate *middleware.AuthGate,
	services Services,
) {
	userHandler := NewUserHandler(services.Users, services.Reconciliation, logger)
	courseHandler := NewCourseHandler(services.Courses, logger)
	sessionHandler := NewSessionHandler(services.Sessions, logger)
	themeHandler := NewThemeHandler(services.Themes, logger)

	authRequired := gate.Required()
	adminOnly := middleware.RequireAdmin()
	publicLimit := middleware.RateLimitPerIP(rate.Limit(appConfig.RateLimitRPS), appConfig.RateLimitBurst)

	apiV1 := router.Group("/api/v1")
	{
		// --- Account endpoints ---
		apiV1.POST("/auth/firebase", authRequired, userHandler.AuthenticateFirebase)
		apiV1.GET("/me", authRequired, userHandler.GetMe)
		apiV1.PUT("/me", authRequired, userHandler.UpdateMe)
		apiV1.DELETE("/delete", authRequired, userHandler.DeleteAccount)
		apiV1.PUT("/updateSubscriptionStatus", authRequired, userHandler.UpdateSubscriptionStatus)
		apiV1.PUT("/add-favorite/music/:music", authRequired, userHandler.AddFavoriteMusic)
		apiV1.PUT("/add-favorite/video/:video", authRequired, userHandler.AddFavoriteVideo)

		// Public reconciliation lookups. These create accounts, hence the rate limit.
		apiV1.GET("/users/:email", publicLimit, userHandler.CheckAndCreate)
		apiV1.GET("/check-and-create/:email", publicLimit, userHandler.CheckAndCreate)

		// --- Courses ---
		courses := apiV1.Group("/courses")
		{
			courses.GET("", gate.Optional(), courseHandler.ListCourses)
			courses.GET("/level/:level", courseHandler.ListCoursesByLevel)
			courses.GET("/:courseId", gate.Optional(), courseHandler.GetCourse)
			courses.POST("", authRequired, adminOnly, courseHandler.CreateCourse)
		}

		// --- Breathing sessions ---
		sessions := apiV1.Group("/sessions", authRequired)
		{
			sessions.POST("", sessionHandler.CreateSession)
			sessions.GET("", sessionHandler.ListSessions)
			sessions.PUT("/:sessionId/complete", sessionHandler.CompleteSession)
		}

		// --- Themes ---
		themes := apiV1.Group("/themes")
		{
			themes.GET("", themeHandler.ListThemes)
			themes.GET("/:id", themeHandler.GetTheme)
			themes.POST("", authRequired, adminOnly, themeHandler.CreateTheme)
			themes.PUT("/:id", authRequired, adminOnly, themeHandler.UpdateTheme)
			themes.DELETE("/:id", authRequired, adminOnly, themeHandler.DeleteTheme)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "message": "Breath School API is healthy."})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	logger.Info("API routes configured successfully under /api/v1, /health and /metrics.")
}
