package web

import (
	"log"
	"net/http"
	"time"

	"github.com/deemkeen/worknet/db"
	"github.com/deemkeen/worknet/domain"
	"github.com/deemkeen/worknet/federation"
	"github.com/deemkeen/worknet/util"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// cacheActionRequest is the body of cache invalidation requests.
type cacheActionRequest struct {
	ActorURI string `json:"actorUri"`
	TopN     int    `json:"topN"`
}

type cleanupRequest struct {
	DryRun bool `json:"dryRun"`
}

type blocklistRequest struct {
	Domain   string `json:"domain"`
	ActorURI string `json:"actorUri"`
	Reason   string `json:"reason"`
}

// HandleCacheStats answers GET /admin/cache/stats.
func HandleCacheStats(c *gin.Context) {
	err, stats := federation.GetCacheStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute cache stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// HandleCachePrewarm answers POST /admin/cache/prewarm.
func HandleCachePrewarm(c *gin.Context, conf *util.AppConfig) {
	var req cacheActionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.TopN <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "topN must be a positive integer"})
		return
	}

	err, refreshed := federation.Prewarm(req.TopN, conf)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Prewarm failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"refreshed": refreshed})
}

// HandleCacheInvalidate answers POST /admin/cache/invalidate.
func HandleCacheInvalidate(c *gin.Context) {
	var req cacheActionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ActorURI == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "actorUri is required"})
		return
	}

	if err := federation.InvalidateActor(req.ActorURI); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Invalidate failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"invalidated": req.ActorURI})
}

// HandleCacheCleanup answers POST /admin/cache/cleanup, removing expired
// rows immediately.
func HandleCacheCleanup(c *gin.Context) {
	err, deleted := db.GetDB().DeleteExpiredCacheEntries(time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Cache cleanup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// HandleCleanupRun answers POST /admin/cleanup.
func HandleCleanupRun(c *gin.Context, conf *util.AppConfig) {
	var req cleanupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed cleanup request"})
		return
	}

	report := federation.RunCleanup(req.DryRun, conf)
	c.JSON(http.StatusOK, report)
}

// HandleEnsureServerKey answers POST /admin/keys/ensure. Idempotent.
func HandleEnsureServerKey(c *gin.Context) {
	err, key := federation.EnsureServerKey()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Key bootstrap failed"})
		return
	}
	// Only the key id leaves the server, never the private half.
	c.JSON(http.StatusOK, gin.H{"keyId": key.Id.String(), "createdAt": key.CreatedAt})
}

// HandleRotateServerKey answers POST /admin/keys/rotate.
func HandleRotateServerKey(c *gin.Context) {
	err, key := federation.RotateServerKey()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Key rotation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"keyId": key.Id.String(), "createdAt": key.CreatedAt})
}

// HandleListAlerts answers GET /admin/alerts.
func HandleListAlerts(c *gin.Context) {
	err, alerts := db.GetDB().ReadRecentAlerts(100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read alerts"})
		return
	}
	if alerts == nil {
		c.JSON(http.StatusOK, []domain.FederationAlert{})
		return
	}
	c.JSON(http.StatusOK, alerts)
}

// HandleAcknowledgeAlert answers POST /admin/alerts/:id/ack.
func HandleAcknowledgeAlert(c *gin.Context) {
	alertId, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert id"})
		return
	}

	if err := db.GetDB().AcknowledgeAlert(alertId); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to acknowledge alert"})
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleBlocklistAdd answers POST /admin/blocklist.
func HandleBlocklistAdd(c *gin.Context) {
	var req blocklistRequest
	if err := c.ShouldBindJSON(&req); err != nil || (req.Domain == "" && req.ActorURI == "") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "domain or actorUri is required"})
		return
	}

	database := db.GetDB()
	now := time.Now()

	if req.Domain != "" {
		block := &domain.BlockedDomain{Domain: req.Domain, Reason: req.Reason, CreatedAt: now}
		if err := database.CreateBlockedDomain(block); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to block domain"})
			return
		}
		log.Printf("Admin: Blocked domain %s", req.Domain)
	}

	if req.ActorURI != "" {
		block := &domain.BlockedActor{ActorURI: req.ActorURI, Reason: req.Reason, CreatedAt: now}
		if err := database.CreateBlockedActor(block); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to block actor"})
			return
		}
		log.Printf("Admin: Blocked actor %s", req.ActorURI)
	}

	c.Status(http.StatusNoContent)
}

// HandleBlocklistRemove answers POST /admin/blocklist/remove.
func HandleBlocklistRemove(c *gin.Context) {
	var req blocklistRequest
	if err := c.ShouldBindJSON(&req); err != nil || (req.Domain == "" && req.ActorURI == "") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "domain or actorUri is required"})
		return
	}

	database := db.GetDB()

	if req.Domain != "" {
		if err := database.DeleteBlockedDomain(req.Domain); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to unblock domain"})
			return
		}
	}

	if req.ActorURI != "" {
		if err := database.DeleteBlockedActor(req.ActorURI); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to unblock actor"})
			return
		}
	}

	c.Status(http.StatusNoContent)
}
