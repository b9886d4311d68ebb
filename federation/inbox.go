package federation

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/deemkeen/worknet/db"
	"github.com/deemkeen/worknet/domain"
	"github.com/deemkeen/worknet/util"
	"github.com/google/uuid"
)

// InboundActivity is the generic envelope of an incoming activity.
type InboundActivity struct {
	Context interface{} `json:"@context"`
	ID      string      `json:"id"`
	Type    string      `json:"type"`
	Actor   string      `json:"actor"`
	Object  interface{} `json:"object"`
}

// HandleInbox processes an incoming signed activity: the sender's actor
// document is resolved through the cache, the HTTP signature is verified
// against its key, and the activity is stored for dedup and audit.
// Receivers de-duplicate by activity id, so redelivery is harmless.
func HandleInbox(w http.ResponseWriter, r *http.Request, conf *util.AppConfig) {
	signature := r.Header.Get("Signature")
	if signature == "" {
		log.Printf("Inbox: Missing HTTP signature")
		http.Error(w, "Missing signature", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("Inbox: Failed to read body: %v", err)
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var activity InboundActivity
	if err := json.Unmarshal(body, &activity); err != nil {
		log.Printf("Inbox: Failed to parse activity: %v", err)
		http.Error(w, "Invalid activity", http.StatusBadRequest)
		return
	}
	if activity.ID == "" || activity.Actor == "" {
		http.Error(w, "Invalid activity", http.StatusBadRequest)
		return
	}

	log.Printf("Inbox: Received %s from %s", activity.Type, activity.Actor)

	database := db.GetDB()

	// Blocked senders are rejected before any verification fetch.
	host, err := extractHost(activity.Actor)
	if err != nil {
		http.Error(w, "Invalid actor", http.StatusBadRequest)
		return
	}
	if err, blocked := database.IsDomainBlocked(host); err == nil && blocked {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if err, blocked := database.IsActorBlocked(activity.Actor); err == nil && blocked {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	// Resolve the sender through the cache to get its public key.
	err, remoteActor := GetOrFetchActor(activity.Actor, conf)
	if err != nil {
		log.Printf("Inbox: Failed to fetch actor %s: %v", activity.Actor, err)
		http.Error(w, "Failed to verify actor", http.StatusBadRequest)
		return
	}

	if _, err := VerifyRequest(r, remoteActor.PublicKey.PublicKeyPem); err != nil {
		log.Printf("Inbox: Signature verification failed: %v", err)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	// Duplicate deliveries are acknowledged without re-storing.
	if err, seen := database.HasActivity(activity.ID); err == nil && seen {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	record := &domain.ActivityRecord{
		Id:           uuid.New(),
		ActivityURI:  activity.ID,
		ActivityType: activity.Type,
		ActorURI:     activity.Actor,
		RawJSON:      string(body),
		Local:        false,
		CreatedAt:    time.Now(),
	}
	if err := database.CreateActivityRecord(record); err != nil {
		log.Printf("Inbox: Failed to store activity: %v", err)
		// Don't fail the request, redelivery will try again
	}

	if err := RecordRequest(host, OutcomeSuccess); err != nil {
		log.Printf("Inbox: Failed to record health for %s: %v", host, err)
	}

	w.WriteHeader(http.StatusAccepted)
}
