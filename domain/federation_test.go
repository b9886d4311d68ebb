package domain

import (
	"testing"
	"time"
)

func TestDeliveryStatusTransitions(t *testing.T) {
	cases := []struct {
		from    DeliveryStatus
		to      DeliveryStatus
		allowed bool
	}{
		{DeliveryPending, DeliveryProcessing, true},
		{DeliveryPending, DeliveryDead, true},
		{DeliveryPending, DeliveryProcessed, false},
		{DeliveryPending, DeliveryFailed, false},
		{DeliveryProcessing, DeliveryProcessed, true},
		{DeliveryProcessing, DeliveryFailed, true},
		{DeliveryProcessing, DeliveryDead, true},
		{DeliveryProcessing, DeliveryPending, false},
		{DeliveryFailed, DeliveryPending, true},
		{DeliveryFailed, DeliveryDead, true},
		{DeliveryFailed, DeliveryProcessed, false},
		{DeliveryProcessed, DeliveryPending, false},
		{DeliveryProcessed, DeliveryDead, false},
		{DeliveryDead, DeliveryPending, false},
		{DeliveryDead, DeliveryProcessing, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Errorf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

func TestDeliveryStatusIsTerminal(t *testing.T) {
	terminal := map[DeliveryStatus]bool{
		DeliveryPending:    false,
		DeliveryProcessing: false,
		DeliveryFailed:     false,
		DeliveryProcessed:  true,
		DeliveryDead:       true,
	}
	for status, expect := range terminal {
		if status.IsTerminal() != expect {
			t.Errorf("%s: expected IsTerminal=%v", status, expect)
		}
	}
}

func TestShardForHostIsStable(t *testing.T) {
	first := ShardForHost("remote.example", 8)
	for i := 0; i < 100; i++ {
		if got := ShardForHost("remote.example", 8); got != first {
			t.Fatalf("Shard changed between calls: %d vs %d", first, got)
		}
	}
	if first < 0 || first >= 8 {
		t.Errorf("Shard %d out of range", first)
	}
}

func TestShardForHostSpreadsHosts(t *testing.T) {
	hosts := []string{
		"a.example", "b.example", "c.example", "d.example",
		"e.example", "f.example", "g.example", "h.example",
		"i.example", "j.example", "k.example", "l.example",
	}
	seen := make(map[int]bool)
	for _, host := range hosts {
		shard := ShardForHost(host, 8)
		if shard < 0 || shard >= 8 {
			t.Fatalf("Shard %d out of range for %s", shard, host)
		}
		seen[shard] = true
	}
	if len(seen) < 2 {
		t.Error("All hosts landed in one shard")
	}
}

func TestShardForHostZeroShards(t *testing.T) {
	if got := ShardForHost("remote.example", 0); got != 0 {
		t.Errorf("Expected shard 0 for 0 shards, got %d", got)
	}
}

func TestCacheEntryExpired(t *testing.T) {
	now := time.Now()
	entry := RemoteActorCacheEntry{ExpiresAt: now}

	if entry.Expired(now.Add(-time.Second)) {
		t.Error("Entry should not be expired before its deadline")
	}
	// The deadline itself counts as expired.
	if !entry.Expired(now) {
		t.Error("Entry should be expired at its deadline")
	}
	if !entry.Expired(now.Add(time.Second)) {
		t.Error("Entry should be expired after its deadline")
	}
}
