package web

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/deemkeen/worknet/federation"
	"github.com/deemkeen/worknet/util"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/acme/autocert"
)

func Router(conf *util.AppConfig) error {
	log.Printf("Starting federation server on %s:%d", conf.Conf.Host, conf.Conf.HttpPort)
	g := gin.Default()
	g.Use(gzip.Gzip(gzip.DefaultCompression))

	// Global rate limiter: 10 requests per second per IP, burst of 20
	globalLimiter := NewRateLimiter(10, 20)
	g.Use(RateLimitMiddleware(globalLimiter))

	// Stricter rate limit for federation endpoints: 5 req/sec per IP
	apLimiter := NewRateLimiter(5, 10)

	// Max 1MB request body size for incoming activities
	maxBodySize := MaxBytesMiddleware(1 * 1024 * 1024) // 1MB

	g.GET("/.well-known/webfinger", func(c *gin.Context) {
		c.Header("Content-Type", "application/json; charset=utf-8")

		resource := c.Query("resource")
		if resource == "" || !strings.HasPrefix(resource, "acct:") {
			c.Render(404, render.String{Format: GetWebFingerNotFound()})
			return
		}

		resource = strings.TrimPrefix(resource, "acct:")
		resource = strings.TrimSuffix(resource, fmt.Sprintf("@%s", conf.Conf.Domain))
		err, resp := GetWebfinger(resource, conf)
		if err == errActorGone {
			c.Render(410, render.String{Format: resp})
		} else if err != nil {
			c.Render(404, render.String{Format: resp})
		} else {
			c.Render(200, render.String{Format: resp})
		}
	})

	g.GET("/.well-known/host-meta", func(c *gin.Context) {
		c.Header("Cache-Control", HostMetaCacheControl)
		if WantsHostMetaJSON(c.GetHeader("Accept")) {
			c.Header("Content-Type", "application/json; charset=utf-8")
			c.Render(200, render.String{Format: GetHostMetaJSON(conf)})
			return
		}
		c.Header("Content-Type", "application/xrd+xml; charset=utf-8")
		c.Render(200, render.String{Format: GetHostMetaXRD(conf)})
	})

	g.GET("/.well-known/host-meta.json", func(c *gin.Context) {
		c.Header("Cache-Control", HostMetaCacheControl)
		c.Header("Content-Type", "application/json; charset=utf-8")
		c.Render(200, render.String{Format: GetHostMetaJSON(conf)})
	})

	g.GET("/.well-known/nodeinfo", func(c *gin.Context) {
		c.Header("Content-Type", "application/json; charset=utf-8")
		c.Render(200, render.String{Format: GetNodeInfoDiscovery(conf)})
	})

	g.GET("/nodeinfo/2.0", func(c *gin.Context) {
		err, info := GetNodeInfo()
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to compute node info"})
			return
		}
		c.JSON(200, info)
	})

	g.GET("/jwks", func(c *gin.Context) {
		err, jwks := federation.ExportJwks()
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to export key set"})
			return
		}
		c.JSON(200, jwks)
	})

	g.GET("/members/:username", func(c *gin.Context) {
		c.Header("Content-Type", "application/activity+json; charset=utf-8")
		err, actor := GetActor(c.Param("username"), conf)
		if err == errActorGone {
			c.Render(410, render.String{Format: actor})
		} else if err != nil {
			c.Render(404, render.String{Format: actor})
		} else {
			c.Render(200, render.String{Format: actor})
		}
	})

	g.POST("/inbox", RateLimitMiddleware(apLimiter), maxBodySize, func(c *gin.Context) {
		log.Println("POST /inbox (shared inbox)")
		federation.HandleInbox(c.Writer, c.Request, conf)
	})

	g.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Admin/operational surface, token-gated
	admin := g.Group("/admin", AdminAuthMiddleware(conf))
	{
		admin.GET("/cache/stats", HandleCacheStats)
		admin.POST("/cache/prewarm", func(c *gin.Context) { HandleCachePrewarm(c, conf) })
		admin.POST("/cache/invalidate", HandleCacheInvalidate)
		admin.POST("/cache/cleanup", HandleCacheCleanup)
		admin.POST("/cleanup", func(c *gin.Context) { HandleCleanupRun(c, conf) })
		admin.POST("/keys/ensure", HandleEnsureServerKey)
		admin.POST("/keys/rotate", HandleRotateServerKey)
		admin.GET("/alerts", HandleListAlerts)
		admin.POST("/alerts/:id/ack", HandleAcknowledgeAlert)
		admin.POST("/blocklist", HandleBlocklistAdd)
		admin.POST("/blocklist/remove", HandleBlocklistRemove)

		admin.GET("/alerts/feed", func(c *gin.Context) {
			c.Header("Content-Type", "application/xml; charset=utf-8")
			rss, err := GetAlertsFeed(conf)
			if err != nil {
				c.Render(404, render.String{Format: ""})
			} else {
				c.Render(200, render.String{Format: rss})
			}
		})
	}

	if conf.Conf.AutoTls {
		// Public deployments terminate TLS themselves via Let's Encrypt.
		log.Printf("Serving with autocert for %s", conf.Conf.Domain)
		return http.Serve(autocert.NewListener(conf.Conf.Domain), g)
	}

	err := g.Run(fmt.Sprintf(":%d", conf.Conf.HttpPort))
	if err != nil {
		return err
	}
	return nil
}
