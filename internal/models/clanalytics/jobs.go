package clanalytics

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const (
	staleSessionsSpec = "@every 1m"
	retentionSpec     = "0 2 * * *"
	jobTimeout        = 5 * time.Minute
)

// StartJobs planifie la clôture des sessions inactives et, si retentionDays > 0,
// la purge quotidienne. Le cron retourné doit être arrêté par l'appelant.
func (as *AnalyticsService) StartJobs(sessionTimeout time.Duration, retentionDays int) (*cron.Cron, error) {
	c := cron.New()

	_, err := c.AddFunc(staleSessionsSpec, func() {
		as.runCloseStaleSessions(sessionTimeout)
	})
	if err != nil {
		return nil, err
	}

	if retentionDays > 0 {
		_, err = c.AddFunc(retentionSpec, func() {
			as.runPurge(retentionDays)
		})
		if err != nil {
			return nil, err
		}
	}

	c.Start()
	log.Info().
		Dur("session_timeout", sessionTimeout).
		Int("retention_days", retentionDays).
		Msg("analytics jobs started")
	return c, nil
}

func (as *AnalyticsService) runCloseStaleSessions(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	closed, err := as.CloseStaleSessions(ctx, timeout)
	if err != nil {
		log.Error().Err(err).Msg("closing stale sessions failed")
		return
	}
	if closed > 0 {
		log.Debug().Int64("closed", closed).Msg("stale sessions closed")
	}
}

func (as *AnalyticsService) runPurge(days int) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	deleted, err := as.PurgeOlderThan(ctx, days)
	if err != nil {
		log.Error().Err(err).Msg("analytics purge failed")
		return
	}
	log.Info().Int64("deleted", deleted).Int("retention_days", days).Msg("analytics purge completed")
}
