package federation

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/deemkeen/worknet/db"
	"github.com/deemkeen/worknet/domain"
	"github.com/deemkeen/worknet/util"
	"github.com/google/uuid"
)

const claimBatchSize = 50

// staleClaimAge is how long a claim may sit in processing before it is
// treated as orphaned by a dead worker. Well above the 30s delivery
// timeout, so a live attempt is never reclaimed.
const staleClaimAge = 10 * time.Minute

// backoffMinutes is the retry curve applied per failed attempt.
var backoffMinutes = []int{1, 5, 15, 60, 240, 1440}

// deliveryResult classifies one delivery attempt.
type deliveryResult struct {
	outcome    RequestOutcome
	statusCode int
	err        error
}

// EnqueueActivity queues one activity for every target inbox. Items are
// sharded by target host so all deliveries to one host serialize through
// the same worker.
// A bad inbox never blocks the rest of the batch: each failure is
// collected and the joined error reports every target that was not
// queued.
func EnqueueActivity(actorId uuid.UUID, activityJSON string, inboxURIs []string, conf *util.AppConfig) error {
	database := db.GetDB()
	now := time.Now()

	recordLocalActivity(activityJSON, now)

	var errs []error
	for _, inboxURI := range inboxURIs {
		host, err := extractHost(inboxURI)
		if err != nil {
			errs = append(errs, fmt.Errorf("enqueue: %w", err))
			continue
		}

		item := &domain.OutboundQueueItem{
			Id:           uuid.New(),
			ActorId:      actorId,
			TargetHost:   host,
			Shard:        domain.ShardForHost(host, conf.Conf.Federation.Shards),
			InboxURI:     inboxURI,
			ActivityJSON: activityJSON,
			Status:       domain.DeliveryPending,
			NextRetryAt:  now,
			CreatedAt:    now,
		}

		if err := database.EnqueueDelivery(item); err != nil {
			errs = append(errs, fmt.Errorf("enqueue: failed to queue delivery to %s: %w", inboxURI, err))
		}
	}

	return errors.Join(errs...)
}

// recordLocalActivity stores one local activity row per activity id.
// Feeds the nodeinfo usage counters and the audit log; activities
// without an id are not recorded.
func recordLocalActivity(activityJSON string, now time.Time) {
	var activity InboundActivity
	if err := json.Unmarshal([]byte(activityJSON), &activity); err != nil || activity.ID == "" {
		return
	}

	database := db.GetDB()
	if err, seen := database.HasActivity(activity.ID); err != nil || seen {
		return
	}

	record := &domain.ActivityRecord{
		Id:           uuid.New(),
		ActivityURI:  activity.ID,
		ActivityType: activity.Type,
		ActorURI:     activity.Actor,
		RawJSON:      activityJSON,
		Local:        true,
		CreatedAt:    now,
	}
	if err := database.CreateActivityRecord(record); err != nil {
		log.Printf("DeliveryWorker: Failed to record local activity %s: %v", activity.ID, err)
	}
}

// StartDeliveryWorkers launches one worker goroutine per shard. Per-host
// ordering follows from the shard assignment, distinct hosts proceed in
// parallel. The workers stop when the context is cancelled.
func StartDeliveryWorkers(ctx context.Context, conf *util.AppConfig) {
	shards := conf.Conf.Federation.Shards
	interval := time.Duration(conf.Conf.Federation.WorkerIntervalSecs) * time.Second
	log.Printf("DeliveryWorker: Starting %d shard workers (interval %s)", shards, interval)

	for shard := 0; shard < shards; shard++ {
		go func(shard int) {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					processShard(shard, conf)
				}
			}
		}(shard)
	}
}

// processShard runs one delivery pass over a single shard.
func processShard(shard int, conf *util.AppConfig) {
	database := db.GetDB()

	// Claims orphaned by a dead worker go back through the retry path.
	if err, reclaimed := database.ReclaimStaleDeliveries(shard, time.Now().Add(-staleClaimAge)); err != nil {
		log.Printf("DeliveryWorker: Shard %d failed to reclaim stale claims: %v", shard, err)
	} else if reclaimed > 0 {
		log.Printf("DeliveryWorker: Shard %d reclaimed %d stale claims", shard, reclaimed)
	}

	// Failed items whose backoff elapsed become claimable again.
	if err, _ := database.ReleaseRetryableDeliveries(shard); err != nil {
		log.Printf("DeliveryWorker: Shard %d failed to release retries: %v", shard, err)
	}

	err, items := database.ReadClaimableDeliveries(shard, claimBatchSize)
	if err != nil {
		log.Printf("DeliveryWorker: Shard %d failed to read queue: %v", shard, err)
		return
	}
	if items == nil || len(*items) == 0 {
		return
	}

	log.Printf("DeliveryWorker: Shard %d processing %d pending deliveries", shard, len(*items))

	for _, item := range *items {
		processItem(&item, conf)
	}

	if err, pending := database.CountDeliveriesByStatus(domain.DeliveryPending); err == nil {
		QueuePendingGauge.Set(float64(pending))
	}
}

// processItem drives one queue item through the blocklist, rate-limit,
// claim and delivery steps.
func processItem(item *domain.OutboundQueueItem, conf *util.AppConfig) {
	database := db.GetDB()

	// Moderation gate, decided before any network call.
	if reason := blockReason(item); reason != "" {
		log.Printf("DeliveryWorker: Dead-lettering delivery to %s: %s", item.InboxURI, reason)
		deadLetter(item, reason)
		return
	}

	// Rate-limit gate: the item stays pending, deferred by one backoff
	// step, and the skip does not count as an attempt.
	if IsRateLimited(item.TargetHost, conf) {
		DeliveriesDeferredTotal.Inc()
		if err := database.DeferPendingDelivery(item.Id, time.Now().Add(time.Minute)); err != nil {
			log.Printf("DeliveryWorker: Failed to defer delivery %s: %v", item.Id, err)
		}
		return
	}

	err, claimed := database.ClaimDelivery(item.Id)
	if err != nil {
		log.Printf("DeliveryWorker: Failed to claim delivery %s: %v", item.Id, err)
		return
	}
	if !claimed {
		// Another worker won the race, nothing to do.
		return
	}

	result := deliverItem(item, conf)
	logRequest(item, result)

	switch result.outcome {
	case OutcomeSuccess:
		DeliveriesTotal.WithLabelValues("processed").Inc()
		if err := RecordRequest(item.TargetHost, OutcomeSuccess); err != nil {
			log.Printf("DeliveryWorker: Failed to record health for %s: %v", item.TargetHost, err)
		}
		if err := database.MarkDeliveryProcessed(item.Id); err != nil {
			log.Printf("DeliveryWorker: Failed to mark delivery %s processed: %v", item.Id, err)
		}
		log.Printf("DeliveryWorker: Successfully delivered to %s", item.InboxURI)

	case OutcomeThrottled, OutcomeFailure:
		if err := RecordRequest(item.TargetHost, result.outcome); err != nil {
			log.Printf("DeliveryWorker: Failed to record health for %s: %v", item.TargetHost, err)
		}
		retryOrDie(item, result, conf)
	}
}

// retryOrDie applies the backoff curve to a failed attempt, dead-lettering
// the item once all attempts are used up.
func retryOrDie(item *domain.OutboundQueueItem, result deliveryResult, conf *util.AppConfig) {
	database := db.GetDB()

	item.Attempts++
	if item.Attempts >= conf.Conf.Federation.MaxAttempts {
		log.Printf("DeliveryWorker: Giving up on delivery to %s after %d attempts", item.InboxURI, item.Attempts)
		deadLetter(item, fmt.Sprintf("exhausted %d attempts: %v", item.Attempts, result.err))
		return
	}

	backoff := backoffMinutes[min(item.Attempts-1, len(backoffMinutes)-1)]
	nextRetry := time.Now().Add(time.Duration(backoff) * time.Minute)

	DeliveriesTotal.WithLabelValues("failed").Inc()
	log.Printf("DeliveryWorker: Delivery to %s failed (attempt %d), retry in %dm: %v",
		item.InboxURI, item.Attempts, backoff, result.err)

	if err := database.MarkDeliveryFailed(item.Id, item.Attempts, result.err.Error(), nextRetry); err != nil {
		log.Printf("DeliveryWorker: Failed to mark delivery %s failed: %v", item.Id, err)
	}
}

// deadLetter moves an item to the terminal dead state and raises an alert.
func deadLetter(item *domain.OutboundQueueItem, reason string) {
	database := db.GetDB()

	if err := database.MarkDeliveryDead(item.Id, reason); err != nil {
		log.Printf("DeliveryWorker: Failed to dead-letter delivery %s: %v", item.Id, err)
		return
	}

	DeadLettersTotal.Inc()
	alert := &domain.FederationAlert{
		Id:        uuid.New(),
		AlertType: "delivery_dead_letter",
		Message:   fmt.Sprintf("delivery to %s dead-lettered: %s", item.InboxURI, reason),
		CreatedAt: time.Now(),
	}
	if err := database.CreateAlert(alert); err != nil {
		log.Printf("DeliveryWorker: Failed to create alert: %v", err)
	}
}

// blockReason checks the moderation denylists for the item's target. An
// empty string means the target is not blocked.
func blockReason(item *domain.OutboundQueueItem) string {
	database := db.GetDB()

	if err, blocked := database.IsDomainBlocked(item.TargetHost); err == nil && blocked {
		return fmt.Sprintf("target domain %s is blocked", item.TargetHost)
	}

	if actorURI := inboxOwnerURI(item.InboxURI); actorURI != "" {
		if err, blocked := database.IsActorBlocked(actorURI); err == nil && blocked {
			return fmt.Sprintf("target actor %s is blocked", actorURI)
		}
	}

	return ""
}

// inboxOwnerURI derives the owning actor URI from a personal inbox URI.
// Shared inboxes ("https://host/inbox") have no single owner.
func inboxOwnerURI(inboxURI string) string {
	parsed, err := url.Parse(inboxURI)
	if err != nil {
		return ""
	}
	const suffix = "/inbox"
	path := parsed.Path
	if len(path) <= len(suffix) || path[len(path)-len(suffix):] != suffix {
		return ""
	}
	trimmed := path[:len(path)-len(suffix)]
	if trimmed == "" {
		return ""
	}
	parsed.Path = trimmed
	return parsed.String()
}

// deliverItem signs and sends one claimed activity to its target inbox.
func deliverItem(item *domain.OutboundQueueItem, conf *util.AppConfig) deliveryResult {
	database := db.GetDB()

	err, actor := database.ReadActorById(item.ActorId)
	if err != nil {
		return deliveryResult{outcome: OutcomeFailure, err: fmt.Errorf("failed to load sending actor: %w", err)}
	}
	if !actor.CanSign() {
		return deliveryResult{outcome: OutcomeFailure, err: fmt.Errorf("actor %s has no usable key pair", actor.Username)}
	}

	privateKey, err := ParsePrivateKey(actor.PrivateKeyPem)
	if err != nil {
		return deliveryResult{outcome: OutcomeFailure, err: fmt.Errorf("failed to parse private key: %w", err)}
	}

	body := []byte(item.ActivityJSON)
	hash := sha256.Sum256(body)
	digest := "SHA-256=" + base64.StdEncoding.EncodeToString(hash[:])

	req, err := http.NewRequest("POST", item.InboxURI, bytes.NewReader(body))
	if err != nil {
		return deliveryResult{outcome: OutcomeFailure, err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("Content-Type", activityJSONType)
	req.Header.Set("Accept", activityJSONType)
	req.Header.Set("User-Agent", util.GetNameAndVersion())
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	req.Header.Set("Host", req.URL.Host)
	req.Header.Set("Digest", digest)

	keyID := fmt.Sprintf("https://%s/members/%s#main-key", conf.Conf.Domain, actor.Username)
	if err := SignRequest(req, privateKey, keyID); err != nil {
		return deliveryResult{outcome: OutcomeFailure, err: fmt.Errorf("failed to sign request: %w", err)}
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		// Timeouts and connection errors are transient, treated like a 429.
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return deliveryResult{outcome: OutcomeThrottled, err: fmt.Errorf("delivery timed out: %w", err)}
		}
		return deliveryResult{outcome: OutcomeThrottled, err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return deliveryResult{outcome: OutcomeSuccess, statusCode: resp.StatusCode}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return deliveryResult{
			outcome:    OutcomeThrottled,
			statusCode: resp.StatusCode,
			err:        fmt.Errorf("remote server throttled the request: %d", resp.StatusCode),
		}
	}

	return deliveryResult{
		outcome:    OutcomeFailure,
		statusCode: resp.StatusCode,
		err:        fmt.Errorf("remote server returned status: %d", resp.StatusCode),
	}
}

// logRequest appends one request-log row for a delivery attempt.
func logRequest(item *domain.OutboundQueueItem, result deliveryResult) {
	entry := &domain.FederationRequestLog{
		Id:         uuid.New(),
		Host:       item.TargetHost,
		Method:     "POST",
		TargetURI:  item.InboxURI,
		StatusCode: result.statusCode,
		Success:    result.outcome == OutcomeSuccess,
		CreatedAt:  time.Now(),
	}
	if result.err != nil {
		entry.Error = result.err.Error()
	}
	if err := db.GetDB().CreateRequestLog(entry); err != nil {
		log.Printf("DeliveryWorker: Failed to write request log: %v", err)
	}
}

// min returns the minimum of two integers
func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
