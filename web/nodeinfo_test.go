package web

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/deemkeen/worknet/domain"
)

func resetNodeInfoCache() {
	nodeInfoMu.Lock()
	nodeInfoCached = nil
	nodeInfoMu.Unlock()
}

func TestGetNodeInfo(t *testing.T) {
	database := setupTestDB(t)
	resetNodeInfoCache()

	newMember(t, database, "alice", domain.ActorActive)
	newMember(t, database, "bob", domain.ActorActive)

	if err := database.IncrementHealthCounters("remote.example", false, time.Now()); err != nil {
		t.Fatalf("IncrementHealthCounters failed: %v", err)
	}

	err, info := GetNodeInfo()
	if err != nil {
		t.Fatalf("GetNodeInfo failed: %v", err)
	}
	if info.Version != "2.0" {
		t.Errorf("Expected nodeinfo 2.0, got %s", info.Version)
	}
	if info.Usage.Users.Total != 2 {
		t.Errorf("Expected 2 users, got %d", info.Usage.Users.Total)
	}
	if info.Metadata.ConnectedHosts != 1 {
		t.Errorf("Expected 1 connected host, got %d", info.Metadata.ConnectedHosts)
	}
	if len(info.Protocols) != 1 || info.Protocols[0] != "activitypub" {
		t.Errorf("Unexpected protocols: %v", info.Protocols)
	}
	if info.OpenRegistrations {
		t.Error("Registrations must be closed")
	}
}

func TestGetNodeInfoIsCached(t *testing.T) {
	database := setupTestDB(t)
	resetNodeInfoCache()

	err, first := GetNodeInfo()
	if err != nil {
		t.Fatalf("GetNodeInfo failed: %v", err)
	}
	if first.Usage.Users.Total != 0 {
		t.Fatalf("Expected empty instance, got %d users", first.Usage.Users.Total)
	}

	// A new member does not show up until the cache expires.
	newMember(t, database, "alice", domain.ActorActive)
	err, second := GetNodeInfo()
	if err != nil {
		t.Fatalf("GetNodeInfo failed: %v", err)
	}
	if second.Usage.Users.Total != 0 {
		t.Errorf("Expected cached counters, got %d users", second.Usage.Users.Total)
	}
}

func TestGetNodeInfoDiscovery(t *testing.T) {
	conf := testConf()
	body := GetNodeInfoDiscovery(conf)

	var parsed struct {
		Links []struct {
			Rel  string `json:"rel"`
			Href string `json:"href"`
		} `json:"links"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		t.Fatalf("Discovery document is not valid JSON: %v", err)
	}
	if len(parsed.Links) != 1 {
		t.Fatalf("Expected 1 link, got %d", len(parsed.Links))
	}
	if parsed.Links[0].Href != "https://chamber.example/nodeinfo/2.0" {
		t.Errorf("Unexpected href: %s", parsed.Links[0].Href)
	}
}
