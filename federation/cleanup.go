package federation

import (
	"context"
	"log"
	"time"

	"github.com/deemkeen/worknet/db"
	"github.com/deemkeen/worknet/util"
)

// CleanupReport aggregates a best-effort cleanup run. Categories are
// independent, a failure in one never aborts the others.
type CleanupReport struct {
	DryRun     bool             `json:"dryRun"`
	Categories map[string]int64 `json:"categories"`
	Errors     map[string]string `json:"errors,omitempty"`
	Total      int64            `json:"total"`
}

type cleanupCategory struct {
	name  string
	count func() (error, int64)
	purge func() (error, int64)
}

// RunCleanup applies the configured retention windows across all
// categories. In dry-run mode every category performs a count-only query
// and nothing is mutated.
func RunCleanup(dryRun bool, conf *util.AppConfig) *CleanupReport {
	database := db.GetDB()
	now := time.Now()
	retention := conf.Conf.Retention

	logsCutoff := now.AddDate(0, 0, -retention.RequestLogsDays)
	queueCutoff := now.AddDate(0, 0, -retention.ProcessedQueueDays)
	alertsCutoff := now.AddDate(0, 0, -retention.AlertsDays)
	objectsCutoff := now.AddDate(0, 0, -retention.ObjectsDays)

	categories := []cleanupCategory{
		{
			name:  "expired_cache_entries",
			count: func() (error, int64) { return database.CountExpiredCacheEntries(now) },
			purge: func() (error, int64) { return database.DeleteExpiredCacheEntries(now) },
		},
		{
			name:  "completed_queue_items",
			count: func() (error, int64) { return database.CountCompletedDeliveriesBefore(queueCutoff) },
			purge: func() (error, int64) { return database.DeleteCompletedDeliveriesBefore(queueCutoff) },
		},
		{
			name:  "request_logs",
			count: func() (error, int64) { return database.CountRequestLogsBefore(logsCutoff) },
			purge: func() (error, int64) { return database.DeleteRequestLogsBefore(logsCutoff) },
		},
		{
			name:  "acknowledged_alerts",
			count: func() (error, int64) { return database.CountAcknowledgedAlertsBefore(alertsCutoff) },
			purge: func() (error, int64) { return database.DeleteAcknowledgedAlertsBefore(alertsCutoff) },
		},
		{
			name:  "federation_objects",
			count: func() (error, int64) { return database.CountActivitiesBefore(objectsCutoff) },
			purge: func() (error, int64) { return database.DeleteActivitiesBefore(objectsCutoff) },
		},
		{
			name:  "daily_counter_reset",
			count: func() (error, int64) { return database.CountResettableHealthRows() },
			purge: func() (error, int64) { return ResetDailyCounters() },
		},
	}

	report := &CleanupReport{
		DryRun:     dryRun,
		Categories: map[string]int64{},
		Errors:     map[string]string{},
	}

	for _, category := range categories {
		run := category.purge
		if dryRun {
			run = category.count
		}

		err, affected := run()
		if err != nil {
			log.Printf("Cleanup: Category %s failed: %v", category.name, err)
			report.Errors[category.name] = err.Error()
			continue
		}

		report.Categories[category.name] = affected
		report.Total += affected
		if !dryRun && affected > 0 {
			CleanupRowsTotal.WithLabelValues(category.name).Add(float64(affected))
		}
	}

	if len(report.Errors) == 0 {
		report.Errors = nil
	}

	log.Printf("Cleanup: Run complete (dryRun=%t), %d rows affected", dryRun, report.Total)
	return report
}

// StartCleanupScheduler runs the retention cleanup on a daily cadence
// until the context is cancelled.
func StartCleanupScheduler(ctx context.Context, conf *util.AppConfig) {
	log.Println("Cleanup: Starting retention scheduler (daily)")

	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				RunCleanup(false, conf)
			}
		}
	}()
}
