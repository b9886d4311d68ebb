package federation

import (
	"database/sql"
	"log"
	"time"

	"github.com/deemkeen/worknet/db"
	"github.com/deemkeen/worknet/domain"
	"github.com/deemkeen/worknet/util"
)

// RequestOutcome classifies one exchange with a remote host for the
// health counters. Throttled covers 429 and timeouts, which count the
// request but are not penalized like a hard error.
type RequestOutcome int

const (
	OutcomeSuccess RequestOutcome = iota
	OutcomeFailure
	OutcomeThrottled
)

// RecordRequest bumps the 24h counters for a host and refreshes its
// derived health score. Counter bumps are atomic row updates, safe under
// concurrent workers.
func RecordRequest(host string, outcome RequestOutcome) error {
	database := db.GetDB()
	now := time.Now()

	hardError := outcome == OutcomeFailure
	if err := database.IncrementHealthCounters(host, hardError, now); err != nil {
		return err
	}

	// Recompute the score from the fresh counters. Losing this update to a
	// concurrent writer is fine, the next request recomputes it again.
	err, health := database.ReadInstanceHealth(host)
	if err != nil || health == nil {
		return err
	}

	score := HealthScore(health.RequestCount24, health.ErrorCount24)
	status := health.Status
	if status != domain.InstanceBlocked {
		status = domain.InstanceActive
	}
	return database.UpdateHealthScore(host, score, status)
}

// HealthScore derives a bounded score from the 24h counters. Hosts with
// zero requests are neutral at 100; every additional error ratio point
// lowers the score, never raises it.
func HealthScore(requests int64, errors int64) float64 {
	if requests <= 0 {
		return 100
	}
	if errors < 0 {
		errors = 0
	}
	if errors > requests {
		errors = requests
	}
	score := 100 * (1 - float64(errors)/float64(requests))
	if score < 0 {
		return 0
	}
	return score
}

// IsRateLimited answers the delivery gate from local counters only, no
// network call involved.
func IsRateLimited(host string, conf *util.AppConfig) bool {
	err, health := db.GetDB().ReadInstanceHealth(host)
	if err != nil || health == nil {
		return false
	}
	if health.Status == domain.InstanceRateLimited {
		return true
	}
	return health.RequestCount24 >= int64(conf.Conf.Federation.RateLimitThreshold)
}

// GetHealth returns the current health row for a host, or a neutral view
// for hosts that were never contacted. Store errors other than a missing
// row are passed through, an unreadable store must not look healthy.
func GetHealth(host string) (error, *domain.InstanceHealth) {
	err, health := db.GetDB().ReadInstanceHealth(host)
	if err == sql.ErrNoRows {
		// Never-seen hosts are neutral, neither penalized nor rewarded.
		return nil, &domain.InstanceHealth{
			Host:        host,
			HealthScore: 100,
			Status:      domain.InstanceActive,
		}
	}
	return err, health
}

// ResetDailyCounters zeroes the 24h counters on the daily cadence. Only
// rows with nonzero counts are rewritten.
func ResetDailyCounters() (error, int64) {
	err, reset := db.GetDB().ResetDailyHealthCounters()
	if err != nil {
		return err, 0
	}
	if reset > 0 {
		log.Printf("HealthTracker: Reset 24h counters for %d hosts", reset)
	}
	return nil, reset
}
