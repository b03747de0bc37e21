package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/icodeforyou/bessquote/config"
)

// Store is the part of database.Database the maintenance task needs.
type Store interface {
	Backup(ctx context.Context) error
	PurgeBackups(ctx context.Context, retentionDays int) error
	PurgeLog(ctx context.Context, maxEntries int) error
	PurgeQuotes(ctx context.Context, retentionDays int) error
}

const maintenanceTimeout = time.Minute

// NewMaintenanceTask backs the database up and then applies the retention
// settings to backups, the stored log and stored quotes. A failing step is
// logged and the remaining steps still run.
func NewMaintenanceTask(logger *slog.Logger, db Store, cnfg *config.AppConfig) func() {
	steps := []struct {
		name string
		run  func(ctx context.Context) error
	}{
		{"backup", db.Backup},
		{"purge backups", func(ctx context.Context) error {
			return db.PurgeBackups(ctx, cnfg.Database.GetBackupRetentionDays())
		}},
		{"purge log", func(ctx context.Context) error {
			return db.PurgeLog(ctx, cnfg.Logging.GetDbMaxEntries())
		}},
		{"purge quotes", func(ctx context.Context) error {
			return db.PurgeQuotes(ctx, cnfg.Database.GetQuoteRetentionDays())
		}},
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), maintenanceTimeout)
		defer cancel()

		start := time.Now()
		failed := 0
		for _, s := range steps {
			if err := s.run(ctx); err != nil {
				failed++
				logger.Error("maintenance step failed", slog.String("step", s.name), slog.Any("error", err))
			}
		}
		logger.Info("maintenance done",
			slog.Int("steps", len(steps)),
			slog.Int("failed", failed),
			slog.Duration("took", time.Since(start)))
	}
}
