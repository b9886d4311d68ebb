package federation

import (
	"testing"
	"time"

	"github.com/deemkeen/worknet/db"
	"github.com/deemkeen/worknet/domain"
	"github.com/google/uuid"
)

// seedCleanupFixture writes one purgeable row per category plus rows
// that every retention window must spare.
func seedCleanupFixture(t *testing.T, database *db.DB) {
	old := time.Now().AddDate(0, 0, -365)

	// Expired and live cache entries.
	if err := PutCachedActor("https://old.example/members/a", `{"id":"x"}`, -time.Hour); err != nil {
		t.Fatalf("PutCachedActor failed: %v", err)
	}
	if err := PutCachedActor("https://live.example/members/b", `{"id":"y"}`, time.Hour); err != nil {
		t.Fatalf("PutCachedActor failed: %v", err)
	}

	if err := database.CreateRequestLog(&domain.FederationRequestLog{
		Id: uuid.New(), Host: "old.example", Method: "POST",
		TargetURI: "https://old.example/inbox", Success: true, CreatedAt: old,
	}); err != nil {
		t.Fatalf("CreateRequestLog failed: %v", err)
	}

	acked := &domain.FederationAlert{Id: uuid.New(), AlertType: "delivery_dead_letter", Message: "old", CreatedAt: old}
	if err := database.CreateAlert(acked); err != nil {
		t.Fatalf("CreateAlert failed: %v", err)
	}
	if err := database.AcknowledgeAlert(acked.Id); err != nil {
		t.Fatalf("AcknowledgeAlert failed: %v", err)
	}

	if err := database.CreateActivityRecord(&domain.ActivityRecord{
		Id: uuid.New(), ActivityURI: "https://old.example/activities/1",
		ActivityType: "Create", ActorURI: "https://old.example/members/a",
		RawJSON: "{}", CreatedAt: old,
	}); err != nil {
		t.Fatalf("CreateActivityRecord failed: %v", err)
	}

	if err := database.IncrementHealthCounters("old.example", false, time.Now()); err != nil {
		t.Fatalf("IncrementHealthCounters failed: %v", err)
	}
}

func TestRunCleanupDryRunMutatesNothing(t *testing.T) {
	database := setupTestDB(t)
	conf := testConf()
	seedCleanupFixture(t, database)

	report := RunCleanup(true, conf)
	if !report.DryRun {
		t.Error("Report should be flagged as dry run")
	}
	if report.Errors != nil {
		t.Fatalf("Unexpected errors: %v", report.Errors)
	}
	if report.Total == 0 {
		t.Fatal("Dry run should have found purgeable rows")
	}

	// Nothing was removed: a second dry run reports the same counts.
	again := RunCleanup(true, conf)
	if again.Total != report.Total {
		t.Errorf("Dry run mutated state: %d then %d", report.Total, again.Total)
	}
	for name, count := range report.Categories {
		if again.Categories[name] != count {
			t.Errorf("Category %s changed between dry runs: %d then %d", name, count, again.Categories[name])
		}
	}
}

// A dry run's counts must predict the live run exactly.
func TestRunCleanupDryRunMatchesLiveRun(t *testing.T) {
	database := setupTestDB(t)
	conf := testConf()
	seedCleanupFixture(t, database)

	preview := RunCleanup(true, conf)
	live := RunCleanup(false, conf)

	if live.Total != preview.Total {
		t.Errorf("Live run removed %d rows, dry run predicted %d", live.Total, preview.Total)
	}
	for name, predicted := range preview.Categories {
		if live.Categories[name] != predicted {
			t.Errorf("Category %s: predicted %d, removed %d", name, predicted, live.Categories[name])
		}
	}

	// A follow-up run finds nothing left.
	empty := RunCleanup(false, conf)
	if empty.Total != 0 {
		t.Errorf("Expected nothing left to clean, got %d", empty.Total)
	}
}

func TestRunCleanupSparesLiveRows(t *testing.T) {
	database := setupTestDB(t)
	conf := testConf()
	seedCleanupFixture(t, database)

	RunCleanup(false, conf)

	// The live cache entry survived.
	err, entry := database.ReadCacheEntry("https://live.example/members/b")
	if err != nil || entry == nil {
		t.Error("Live cache entry was purged")
	}

	// Health row survived with zeroed counters.
	err, health := database.ReadInstanceHealth("old.example")
	if err != nil {
		t.Fatalf("ReadInstanceHealth failed: %v", err)
	}
	if health.RequestCount24 != 0 {
		t.Errorf("Expected counters reset, got %d", health.RequestCount24)
	}
}
