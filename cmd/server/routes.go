package main

import (
	"github.com/gin-gonic/gin"
	"github.com/noteguard/backend/internal/middleware"
	"github.com/noteguard/backend/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS())

	// Rate limiter for credential endpoints
	authLimiter := middleware.NewRateLimiter(5, 10)

	// Health check
	r.GET("/health", svc.health.Check)

	api := r.Group("/api")
	{
		// Auth routes (public, rate limited)
		auth := api.Group("/auth", authLimiter.Middleware())
		{
			auth.POST("/register", svc.authHandler.Register)
			auth.POST("/login", svc.authHandler.Login)
			auth.POST("/refresh", svc.authHandler.Refresh)
			auth.POST("/logout", svc.authHandler.Logout)
			auth.GET("/confirm-email", svc.authHandler.ConfirmEmail)
		}

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthRequired(svc.issuer))
		{
			protected.POST("/notes", svc.noteHandler.Create)
			protected.GET("/notes", svc.noteHandler.List)
			protected.GET("/notes/:id", svc.noteHandler.GetByID)
			protected.PUT("/notes/:id", svc.noteHandler.Update)
			protected.DELETE("/notes/:id", svc.noteHandler.Delete)
		}
	}
}
