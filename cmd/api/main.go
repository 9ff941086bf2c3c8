package main

import (
	"fmt"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/applyforge/applyforge-backend/internal/config"
	"github.com/applyforge/applyforge-backend/internal/database"
	"github.com/applyforge/applyforge-backend/internal/handlers"
	"github.com/applyforge/applyforge-backend/internal/logger"
	"github.com/applyforge/applyforge-backend/internal/middleware"
	"github.com/applyforge/applyforge-backend/internal/render"
	"github.com/applyforge/applyforge-backend/internal/services"
)

func main() {
	// 1. Load Configuration (.env + config.yaml)
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// 2. Database Connection
	db := database.Connect(cfg.DatabaseDSN)

	// 3. Initialize Core Services (Dependencies)
	llmService := services.NewLLMService(cfg.GeminiAPIKey, cfg.GeminiModel, log)
	jobService := services.NewJobService(db, log)
	experienceService := services.NewExperienceService(db, log)
	intakeService := services.NewIntakeService(db, llmService, log)
	extractionService := services.NewExtractionService(db, llmService, log)
	proposalService := services.NewProposalService(db, log)
	documentService := services.NewDocumentService(db, log)

	// 4. Initialize PDF Renderer
	// The renderer needs a chromium install; if it is missing, everything but
	// the render endpoint keeps working.
	var renderer render.Renderer
	if cfg.DisableRenderer {
		log.Warn("PDF renderer disabled by config")
	} else {
		pwRenderer, err := render.NewPlaywrightRenderer()
		if err != nil {
			log.Warn("PDF renderer unavailable, render endpoint will return 503", "err", err)
		} else {
			renderer = pwRenderer
			defer pwRenderer.Close()
			log.Info("PDF renderer connected")
		}
	}
	renderService := services.NewRenderService(jobService, renderer, render.NewCache(cfg.RenderCacheSize), log)

	// 5. Initialize Handlers
	jobHandler := handlers.NewJobHandler(llmService, jobService)
	experienceHandler := handlers.NewExperienceHandler(experienceService)
	intakeHandler := handlers.NewIntakeHandler(intakeService, log)
	proposalHandler := handlers.NewProposalHandler(proposalService, extractionService)
	documentHandler := handlers.NewDocumentHandler(documentService, renderService)

	// 6. Setup Router & CORS
	r := gin.Default()
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true // single-user, local deployment
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(corsConfig))
	r.Use(middleware.RequestID(log))

	// 7. Define Routes
	api := r.Group("/api/v1")
	{
		api.GET("/health", handlers.HealthCheck)

		// Job Routes
		api.POST("/jobs/extract", jobHandler.ParseJob)
		api.POST("/jobs", jobHandler.CreateJob)
		api.GET("/jobs", jobHandler.ListJobs)
		api.GET("/jobs/:id", jobHandler.GetJob)
		api.PUT("/jobs/:id", jobHandler.UpdateJob)
		api.DELETE("/jobs/:id", jobHandler.DeleteJob)
		api.POST("/jobs/:id/applied", jobHandler.MarkApplied)

		// Experience Routes
		api.POST("/experiences", experienceHandler.Create)
		api.GET("/experiences", experienceHandler.List)
		api.GET("/experiences/:id", experienceHandler.Get)
		api.PUT("/experiences/:id", experienceHandler.Update)
		api.DELETE("/experiences/:id", experienceHandler.Delete)
		api.POST("/experiences/:id/achievements", experienceHandler.AddAchievement)
		api.PUT("/achievements/:id", experienceHandler.UpdateAchievement)
		api.DELETE("/achievements/:id", experienceHandler.DeleteAchievement)

		// Intake Routes
		api.GET("/jobs/:id/intake", intakeHandler.GetByJob)
		api.POST("/jobs/:id/intake", intakeHandler.Open)
		api.POST("/intake/:id/advance", intakeHandler.Advance)
		api.POST("/intake/:id/end-conversation", intakeHandler.EndConversation)
		api.POST("/intake/:id/complete", intakeHandler.Complete)
		api.POST("/intake/:id/analyses", intakeHandler.Analyses)
		api.POST("/intake/:id/messages", intakeHandler.AddMessage)
		api.GET("/intake/:id/messages", intakeHandler.ListMessages)

		// Proposal Review Routes
		api.POST("/intake/:id/proposals/extract", proposalHandler.Extract)
		api.GET("/intake/:id/proposals", proposalHandler.ListGrouped)
		api.PUT("/proposals/:id", proposalHandler.Edit)
		api.POST("/proposals/:id/accept", proposalHandler.Accept)
		api.POST("/proposals/:id/reject", proposalHandler.Reject)
		api.POST("/proposals/:id/revert", proposalHandler.Revert)

		// Document Version Routes
		api.POST("/jobs/:id/documents/:kind/versions", documentHandler.CreateVersion)
		api.GET("/jobs/:id/documents/:kind/versions", documentHandler.ListVersions)
		api.GET("/jobs/:id/documents/:kind", documentHandler.GetCanonical)
		api.POST("/jobs/:id/documents/:kind/pin", documentHandler.Pin)
		api.DELETE("/jobs/:id/documents/:kind/pin", documentHandler.Unpin)
		api.POST("/jobs/:id/render", documentHandler.RenderPDF)
	}

	log.Info("Server starting", "port", cfg.Port)
	if err := r.Run(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		log.Fatal("Server failed to start", "err", err)
	}
}
