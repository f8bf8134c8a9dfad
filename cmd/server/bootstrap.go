package main

import (
	"github.com/noteguard/backend/internal/config"
	"github.com/noteguard/backend/internal/handlers"
	"github.com/noteguard/backend/internal/models"
	"github.com/noteguard/backend/internal/services"
	"github.com/noteguard/backend/internal/store"
	"github.com/noteguard/backend/internal/token"
	"github.com/noteguard/backend/pkg/logger"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	issuer      *token.Issuer
	authHandler *handlers.AuthHandler
	noteHandler *handlers.NoteHandler
	health      *handlers.HealthHandler
	housekeeper *services.TokenHousekeeper
}

// bootstrap initializes all application dependencies: database, token
// issuer, services, schedulers. A missing signing key aborts startup here,
// never per-request.
func bootstrap(cfg *config.Config) *appServices {
	issuer, err := token.NewIssuer(&cfg.JWT)
	if err != nil {
		logger.Fatalf("Failed to initialize token issuer: %v", err)
	}

	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	db := models.GetDB()
	tokenStore := store.NewGormRefreshTokenStore(db)
	identity := services.NewIdentityService(db)
	mailer := services.NewEmailService(&cfg.SMTP, cfg.Server.BaseURL)

	sessions := services.NewSessionService(identity, tokenStore, issuer, mailer, cfg.JWT.RefreshTokenTTL())
	notes := services.NewNoteService(db)

	housekeeper := services.NewTokenHousekeeper(tokenStore, cfg.JWT.RetentionDays)
	housekeeper.Start()

	return &appServices{
		issuer:      issuer,
		authHandler: handlers.NewAuthHandler(sessions),
		noteHandler: handlers.NewNoteHandler(notes),
		health:      handlers.NewHealthHandler(db),
		housekeeper: housekeeper,
	}
}

// shutdown gracefully stops background services.
func (s *appServices) shutdown() {
	s.housekeeper.Stop()
	logger.Info().Msg("housekeeping stopped")
}
