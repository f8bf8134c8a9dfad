package services

import (
	"context"
	"time"

	"github.com/noteguard/backend/internal/store"
	"github.com/noteguard/backend/pkg/logger"
	"github.com/robfig/cron/v3"
)

// TokenHousekeeper periodically purges dead refresh token records. The
// session lifecycle itself never deletes records; this is the retention
// job that cleans up after it.
type TokenHousekeeper struct {
	tokens        store.RefreshTokenStore
	retentionDays int
	scheduler     *cron.Cron
}

func NewTokenHousekeeper(tokens store.RefreshTokenStore, retentionDays int) *TokenHousekeeper {
	return &TokenHousekeeper{
		tokens:        tokens,
		retentionDays: retentionDays,
	}
}

// Start runs one purge immediately, then daily.
func (h *TokenHousekeeper) Start() {
	h.scheduler = cron.New()

	if _, err := h.scheduler.AddFunc("@daily", h.runPurge); err != nil {
		logger.Error().Err(err).Msg("failed to schedule refresh token purge")
		return
	}

	h.scheduler.Start()
	go h.runPurge()
	logger.Info().Int("retention_days", h.retentionDays).Msg("refresh token housekeeping started")
}

func (h *TokenHousekeeper) Stop() {
	if h.scheduler != nil {
		h.scheduler.Stop()
	}
}

func (h *TokenHousekeeper) runPurge() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().AddDate(0, 0, -h.retentionDays)
	deleted, err := h.tokens.DeleteDead(ctx, cutoff)
	if err != nil {
		logger.Error().Err(err).Msg("refresh token purge failed")
		return
	}
	if deleted > 0 {
		logger.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("purged dead refresh tokens")
	}
}
