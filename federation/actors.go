package federation

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/deemkeen/worknet/db"
	"github.com/deemkeen/worknet/domain"
	"github.com/deemkeen/worknet/util"
)

const activityJSONType = "application/activity+json"

// ActorDocument represents the JSON structure of an ActivityPub actor
type ActorDocument struct {
	Context           interface{} `json:"@context"`
	ID                string      `json:"id"`
	Type              string      `json:"type"`
	PreferredUsername string      `json:"preferredUsername"`
	Name              string      `json:"name"`
	Summary           string      `json:"summary"`
	Inbox             string      `json:"inbox"`
	Outbox            string      `json:"outbox"`
	PublicKey         struct {
		ID           string `json:"id"`
		Owner        string `json:"owner"`
		PublicKeyPem string `json:"publicKeyPem"`
	} `json:"publicKey"`
}

// CacheStats is the aggregate view of the remote actor cache.
type CacheStats struct {
	TotalEntries    int64   `json:"totalEntries"`
	ExpiredEntries  int64   `json:"expiredEntries"`
	ActiveEntries   int64   `json:"activeEntries"`
	TotalHits       int64   `json:"totalHits"`
	AvgHitsPerEntry float64 `json:"avgHitsPerEntry"`
}

// GetCachedActor reads a cached actor document. A hit bumps the counter
// and only unexpired entries are returned; an expired row counts as a
// miss but stays in place until cleanup removes it.
func GetCachedActor(actorURI string) (error, *ActorDocument) {
	database := db.GetDB()

	err, entry := database.ReadCacheEntry(actorURI)
	if err != nil || entry == nil {
		ActorCacheMissesTotal.Inc()
		return err, nil
	}

	if entry.Expired(time.Now()) {
		ActorCacheMissesTotal.Inc()
		return nil, nil
	}

	if err := database.IncrementCacheHit(actorURI); err != nil {
		log.Printf("ActorCache: Failed to bump hit count for %s: %v", actorURI, err)
	}
	ActorCacheHitsTotal.Inc()

	var doc ActorDocument
	if err := json.Unmarshal([]byte(entry.Document), &doc); err != nil {
		return fmt.Errorf("cached document for %s is unparseable: %w", actorURI, err), nil
	}
	return nil, &doc
}

// PutCachedActor upserts a fetched document with the given TTL.
func PutCachedActor(actorURI string, document string, ttl time.Duration) error {
	now := time.Now()
	entry := &domain.RemoteActorCacheEntry{
		ActorURI:  actorURI,
		Document:  document,
		FetchedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	return db.GetDB().UpsertCacheEntry(entry)
}

// InvalidateActor hard-deletes a cache entry, used when an actor is known
// to have changed (e.g. key rotation detected downstream).
func InvalidateActor(actorURI string) error {
	return db.GetDB().DeleteCacheEntry(actorURI)
}

// GetOrFetchActor resolves an actor document cache-first, falling back to
// a network fetch. The moderation denylist is consulted before any
// network call.
func GetOrFetchActor(actorURI string, conf *util.AppConfig) (error, *ActorDocument) {
	err, cached := GetCachedActor(actorURI)
	if err == nil && cached != nil {
		return nil, cached
	}

	database := db.GetDB()
	host, err := extractHost(actorURI)
	if err != nil {
		return err, nil
	}

	if err, blocked := database.IsDomainBlocked(host); err == nil && blocked {
		return fmt.Errorf("domain %s is blocked", host), nil
	}
	if err, blocked := database.IsActorBlocked(actorURI); err == nil && blocked {
		return fmt.Errorf("actor %s is blocked", actorURI), nil
	}

	ttl := time.Duration(conf.Conf.Federation.CacheTtlHours) * time.Hour
	return fetchAndCacheActor(actorURI, ttl)
}

// fetchAndCacheActor fetches an actor document over the network and
// upserts it into the cache with the given TTL.
func fetchAndCacheActor(actorURI string, ttl time.Duration) (error, *ActorDocument) {
	req, err := http.NewRequest("GET", actorURI, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err), nil
	}

	req.Header.Set("Accept", activityJSONType)
	req.Header.Set("User-Agent", util.GetNameAndVersion())

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		ActorFetchesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("request failed: %w", err), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		ActorFetchesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("actor fetch failed with status: %d", resp.StatusCode), nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err), nil
	}

	var doc ActorDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("failed to parse actor JSON: %w", err), nil
	}

	// Validate required fields
	if doc.ID == "" || doc.Inbox == "" || doc.PublicKey.PublicKeyPem == "" {
		return fmt.Errorf("actor missing required fields"), nil
	}

	if err := PutCachedActor(doc.ID, string(body), ttl); err != nil {
		return fmt.Errorf("failed to cache actor: %w", err), nil
	}

	ActorFetchesTotal.WithLabelValues("ok").Inc()
	return nil, &doc
}

// Prewarm refetches the topN highest-hit cache entries with a renewed TTL.
// Individual fetch failures are logged and skipped, the batch never
// aborts. Returns the number of refreshed entries.
func Prewarm(topN int, conf *util.AppConfig) (error, int) {
	err, entries := db.GetDB().ReadTopCacheEntries(topN)
	if err != nil {
		return fmt.Errorf("prewarm: failed to read cache: %w", err), 0
	}
	if entries == nil || len(*entries) == 0 {
		return nil, 0
	}

	ttl := time.Duration(conf.Conf.Federation.PrewarmTtlHours) * time.Hour
	refreshed := 0
	for _, entry := range *entries {
		if err, _ := fetchAndCacheActor(entry.ActorURI, ttl); err != nil {
			log.Printf("ActorCache: Prewarm of %s failed, skipping: %v", entry.ActorURI, err)
			continue
		}
		refreshed++
	}

	log.Printf("ActorCache: Prewarmed %d/%d entries", refreshed, len(*entries))
	return nil, refreshed
}

// GetCacheStats computes the aggregate cache counters.
func GetCacheStats() (error, *CacheStats) {
	err, total, expired, hits := db.GetDB().ReadCacheCounts(time.Now())
	if err != nil {
		return err, nil
	}

	stats := &CacheStats{
		TotalEntries:   total,
		ExpiredEntries: expired,
		ActiveEntries:  total - expired,
		TotalHits:      hits,
	}
	if total > 0 {
		stats.AvgHitsPerEntry = float64(hits) / float64(total)
	}
	return nil, stats
}

// extractHost extracts the host from an actor URI
// Example: "https://chamber.example/members/alice" -> "chamber.example"
func extractHost(actorURI string) (string, error) {
	parsed, err := url.Parse(actorURI)
	if err != nil {
		return "", fmt.Errorf("invalid actor URI: %w", err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("actor URI %s has no host", actorURI)
	}
	return parsed.Host, nil
}
