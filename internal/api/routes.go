package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"recruify/internal/ai"
	"recruify/internal/api/middleware"
	"recruify/internal/auth"
	"recruify/internal/pipeline"
	"recruify/internal/scan"
)

// Dependencies 汇总路由注册所需的共享资源。
type Dependencies struct {
	DB             *gorm.DB
	Redis          *redis.Client
	Queue          taskEnqueuer
	Inspector      taskInspector
	Storage        resumeStore
	Scanner        scan.Scanner
	Auth           *auth.AuthService
	AI             *ai.Service
	Pipeline       *pipeline.Service
	Logger         *slog.Logger
	AllowedOrigins []string

	AuthOptions      AuthOptions
	ApplicantOptions ApplicantOptions
	AIOptions        AIOptions
}

// RegisterRoutes 注册 /v1 下的全部接口。
func RegisterRoutes(router *gin.Engine, deps Dependencies) {
	authHandler := NewAuthHandler(deps.DB, deps.Auth, deps.Redis, deps.Logger, deps.AuthOptions)
	wsHandler := NewWsHandler(deps.Redis, deps.Auth, deps.Logger, deps.AllowedOrigins)
	postingHandler := NewPostingHandler(deps.DB, deps.Storage)
	applicantHandler := NewApplicantHandler(deps.DB, deps.Pipeline, deps.Storage, deps.Scanner, deps.Queue, deps.Inspector, deps.ApplicantOptions)
	pipelineHandler := NewPipelineHandler(deps.Pipeline)
	aiHandler := NewAIHandler(deps.AI, deps.Redis, deps.AIOptions)
	dashboardHandler := NewDashboardHandler(deps.DB)

	authMiddleware := middleware.AuthMiddleware(deps.Auth)
	passwordGate := middleware.RequirePasswordChangeCompletedMiddleware("/v1/auth/logout", "/v1/auth/change-password")

	v1 := router.Group("/v1")
	{
		v1.GET("/ws", wsHandler.HandleConnection)

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/demo", authHandler.Demo)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/logout", authMiddleware, passwordGate, authHandler.Logout)
			authGroup.POST("/change-password", authMiddleware, passwordGate, authHandler.ChangePassword)
		}

		protected := v1.Group("")
		protected.Use(authMiddleware, passwordGate)
		{
			protected.GET("/dashboard", dashboardHandler.Summary)

			protected.GET("/postings", postingHandler.List)
			protected.POST("/postings", postingHandler.Create)
			protected.GET("/postings/:id", postingHandler.Get)
			protected.PUT("/postings/:id", postingHandler.Update)
			protected.DELETE("/postings/:id", postingHandler.Delete)

			protected.GET("/applicants", applicantHandler.List)
			protected.POST("/applicants", applicantHandler.Create)
			protected.GET("/applicants/:id", applicantHandler.Get)
			protected.PATCH("/applicants/:id", applicantHandler.Update)
			protected.DELETE("/applicants/:id", applicantHandler.Delete)
			protected.GET("/applicants/:id/history", applicantHandler.History)
			protected.POST("/applicants/:id/resume", applicantHandler.UploadResume)
			protected.GET("/applicants/:id/resume", applicantHandler.DownloadResume)
			protected.POST("/applicants/:id/score", applicantHandler.Score)

			protected.GET("/pipeline", pipelineHandler.Board)
			protected.POST("/pipeline/move", pipelineHandler.Move)

			protected.POST("/ai/generate-jd", aiHandler.GenerateJD)
			protected.POST("/ai/score-resume", aiHandler.ScoreResume)
		}
	}
}
