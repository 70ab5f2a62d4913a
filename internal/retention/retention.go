// Package retention prunes aged webhook records on a daily schedule so the
// webhooks table does not grow without bound.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// purgeSchedule runs the purge at 03:30 every day, off the midnight hour
// where backups and other cron jobs tend to cluster.
const purgeSchedule = "30 3 * * *"

// Repository is the slice of the storage layer the purger needs.
type Repository interface {
	ClearWebhooks(ctx context.Context, channel string, olderThan *time.Time) (int64, error)
}

// Purger deletes webhooks older than the retention window across all
// channels. It is only constructed when retention is enabled.
type Purger struct {
	repo   Repository
	logger *zap.Logger
	days   int
	cron   *cron.Cron
}

// New creates a purger keeping days of webhook history. days must be
// positive; a zero retention setting means the purger is never built.
func New(repo Repository, logger *zap.Logger, days int) *Purger {
	return &Purger{
		repo:   repo,
		logger: logger,
		days:   days,
		cron:   cron.New(),
	}
}

// Start schedules the daily purge and runs one immediately so an instance
// that was down over the scheduled time still catches up.
func (p *Purger) Start() error {
	if _, err := p.cron.AddFunc(purgeSchedule, p.purgeOnce); err != nil {
		return fmt.Errorf("schedule retention purge: %w", err)
	}
	p.cron.Start()

	go p.purgeOnce()

	p.logger.Info("retention purge scheduled",
		zap.Int("retention_days", p.days),
		zap.String("schedule", purgeSchedule),
	)
	return nil
}

// Stop halts the schedule and waits for an in-flight purge to finish.
func (p *Purger) Stop() {
	<-p.cron.Stop().Done()
}

func (p *Purger) purgeOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().AddDate(0, 0, -p.days)

	deleted, err := p.repo.ClearWebhooks(ctx, "", &cutoff)
	if err != nil {
		p.logger.Error("retention purge failed",
			zap.Time("cutoff", cutoff),
			zap.Error(err),
		)
		return
	}

	if deleted > 0 {
		p.logger.Info("retention purge completed",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
}
