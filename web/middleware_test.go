package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func adminTestRouter(adminToken string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	conf := testConf()
	conf.Conf.AdminToken = adminToken

	g := gin.New()
	g.GET("/admin/ping", AdminAuthMiddleware(conf), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return g
}

func TestAdminAuthMiddleware(t *testing.T) {
	cases := []struct {
		name       string
		configured string
		header     string
		expect     int
	}{
		{"no token configured", "", "Bearer anything", http.StatusForbidden},
		{"missing header", "secret", "", http.StatusUnauthorized},
		{"wrong token", "secret", "Bearer wrong", http.StatusForbidden},
		{"valid bearer token", "secret", "Bearer secret", http.StatusOK},
		{"valid bare token", "secret", "secret", http.StatusOK},
	}

	for _, tc := range cases {
		g := adminTestRouter(tc.configured)
		req := httptest.NewRequest("GET", "/admin/ping", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		w := httptest.NewRecorder()
		g.ServeHTTP(w, req)

		if w.Code != tc.expect {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.expect, w.Code)
		}
	}
}

func TestMaxBytesMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	g := gin.New()
	g.POST("/inbox", MaxBytesMiddleware(16), func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})

	req := httptest.NewRequest("POST", "/inbox", strings.NewReader("small"))
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Errorf("Expected small body accepted, got %d", w.Code)
	}

	req = httptest.NewRequest("POST", "/inbox", strings.NewReader(strings.Repeat("x", 64)))
	w = httptest.NewRecorder()
	g.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected oversized body rejected, got %d", w.Code)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	g := gin.New()
	limiter := NewRateLimiter(1, 2)
	g.GET("/", RateLimitMiddleware(limiter), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	// The burst allows the first two requests, the third is limited.
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		g.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("Expected burst requests to pass, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("Expected third request limited, got %v", codes)
	}

	// A different IP has its own bucket.
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected fresh IP allowed, got %d", w.Code)
	}
}
