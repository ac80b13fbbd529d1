package router

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/handler"
	"github.com/stemsi/exstem-assessment/internal/middleware"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Assessment *handler.AssessmentHandler
	Admin      *handler.AdminHandler
	Monitor    *handler.MonitorHandler
	WS         *handler.WSHandler
	System     *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds background work owned by middlewares.
func SetupRouter(
	ctx context.Context,
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// Restrict to AllowedOrigins when set; otherwise allow all so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", response.HeaderRequestID}
	corsConfig.ExposeHeaders = []string{response.HeaderRequestID}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())

	router.GET("/health", handlers.System.Health)
	router.GET("/ready", handlers.System.Ready)

	limiter := middleware.NewRateLimiter(ctx, cfg.RateLimitPerMinute, time.Minute)

	// ─── 1. Assessment Group (User JWT, Rate Limited) ──────────────────
	// :id is the quiz ID for the question routes and the assignment ID for state;
	// gin requires one wildcard name per path segment.
	assessment := router.Group("/api/v1/assignments")
	assessment.Use(middleware.RequireUser(authService), limiter.Middleware())
	{
		assessment.POST("/start", handlers.Assessment.Start)
		assessment.POST("/end", handlers.Assessment.End)
		assessment.POST("/:id/assign-questions", handlers.Assessment.AssignQuestions)
		assessment.GET("/:id/assigned-questions", handlers.Assessment.AssignedQuestions)
		assessment.GET("/:id/state", handlers.Assessment.State)
	}

	// ─── 2. WebSocket Group (User WS Auth) ─────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireUserWS(authService))
	{
		ws.GET("/assignments/:id/stream", handlers.WS.ExamStream)
	}

	// ─── 3. Admin Group (Admin JWT) ────────────────────────────────────
	admin := router.Group("/api/v1/admin")
	admin.Use(middleware.RequireAdmin(authService))
	{
		admin.POST("/quizzes", handlers.Admin.CreateQuiz)
		admin.POST("/quizzes/:id/questions", handlers.Admin.AddQuestions)
		admin.POST("/quizzes/:id/sessions", handlers.Admin.CreateSession)

		admin.POST("/assignments", handlers.Admin.CreateAssignment)
		admin.POST("/assignments/:id/reschedule", handlers.Admin.Reschedule)
		admin.GET("/assignments/:id/result", handlers.Admin.Result)

		admin.GET("/sessions/:id/monitor", handlers.Monitor.MonitorSessionSSE)
	}

	return router
}
