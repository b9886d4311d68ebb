package domain

import (
	"github.com/google/uuid"
	"hash/fnv"
	"time"
)

// DeliveryStatus is the state of an outbound queue item. Transitions are
// validated through CanTransitionTo so an invalid move never reaches the
// store.
type DeliveryStatus string

const (
	DeliveryPending    DeliveryStatus = "pending"
	DeliveryProcessing DeliveryStatus = "processing"
	DeliveryProcessed  DeliveryStatus = "processed"
	DeliveryFailed     DeliveryStatus = "failed"
	DeliveryDead       DeliveryStatus = "dead"
)

// CanTransitionTo reports whether moving from s to next is a legal queue
// transition. Processed and dead are terminal; failed items go back to
// pending only through the retry path.
func (s DeliveryStatus) CanTransitionTo(next DeliveryStatus) bool {
	switch s {
	case DeliveryPending:
		return next == DeliveryProcessing || next == DeliveryDead
	case DeliveryProcessing:
		return next == DeliveryProcessed || next == DeliveryFailed || next == DeliveryDead
	case DeliveryFailed:
		return next == DeliveryPending || next == DeliveryDead
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are allowed.
func (s DeliveryStatus) IsTerminal() bool {
	return s == DeliveryProcessed || s == DeliveryDead
}

// OutboundQueueItem is one activity addressed to one remote inbox.
type OutboundQueueItem struct {
	Id           uuid.UUID
	ActorId      uuid.UUID // sending local actor
	TargetHost   string
	Shard        int
	InboxURI     string
	ActivityJSON string
	Status       DeliveryStatus
	Attempts     int
	LastError    string
	NextRetryAt  time.Time
	CreatedAt    time.Time
	ClaimedAt    *time.Time
	CompletedAt  *time.Time
}

// ShardForHost maps a target host onto a queue shard. All items for one
// host land in the same shard so deliveries to that host serialize.
func ShardForHost(host string, shards int) int {
	if shards <= 0 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(host))
	return int(h.Sum32() % uint32(shards))
}

// RemoteActorCacheEntry is a cached remote actor document.
type RemoteActorCacheEntry struct {
	ActorURI  string
	Document  string
	HitCount  int64
	FetchedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the entry is past its TTL at the given instant.
// An expired row is a cache miss, the row itself stays until cleanup.
func (e *RemoteActorCacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// InstanceStatus is the health state of a remote host.
type InstanceStatus string

const (
	InstanceActive      InstanceStatus = "active"
	InstanceRateLimited InstanceStatus = "rate_limited"
	InstanceBlocked     InstanceStatus = "blocked"
)

// InstanceHealth holds the rolling 24-hour counters for one remote host.
type InstanceHealth struct {
	Host           string
	RequestCount24 int64
	ErrorCount24   int64
	HealthScore    float64
	LastSeenAt     time.Time
	Status         InstanceStatus
}

// BlockedDomain is a moderation denylist entry for a whole host.
type BlockedDomain struct {
	Domain    string
	Reason    string
	CreatedAt time.Time
}

// BlockedActor is a moderation denylist entry for a single actor URI.
type BlockedActor struct {
	ActorURI  string
	Reason    string
	CreatedAt time.Time
}

// FederationAlert is an append-only operational alert.
type FederationAlert struct {
	Id           uuid.UUID
	AlertType    string // e.g. "delivery_dead_letter"
	Message      string
	Acknowledged bool
	CreatedAt    time.Time
}

// ActivityRecord is a stored copy of an inbound or outbound activity,
// kept for dedup and audit.
type ActivityRecord struct {
	Id           uuid.UUID
	ActivityURI  string
	ActivityType string
	ActorURI     string
	RawJSON      string
	Local        bool
	CreatedAt    time.Time
}

// FederationRequestLog is one append-only record of an outbound request
// attempt (delivery or actor fetch).
type FederationRequestLog struct {
	Id         uuid.UUID
	Host       string
	Method     string
	TargetURI  string
	StatusCode int
	Success    bool
	Error      string
	CreatedAt  time.Time
}
