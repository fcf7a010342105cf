package logging

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/paperdesk/creditledger/internal/config"
	log "github.com/sirupsen/logrus"
)

func TestRequestIDMiddlewareAssignsAndEchoes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	var seenGin, seenCtx string
	router.GET("/ping", func(c *gin.Context) {
		seenGin = GetGinRequestID(c)
		seenCtx = RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	generated := rec.Header().Get(RequestIDHeader)
	if generated == "" || generated != seenGin || generated != seenCtx {
		t.Fatalf("expected generated id everywhere, header=%q gin=%q ctx=%q", generated, seenGin, seenCtx)
	}

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "req-abc")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Header().Get(RequestIDHeader) != "req-abc" || seenGin != "req-abc" {
		t.Fatalf("expected incoming id to be kept, got %q", rec.Header().Get(RequestIDHeader))
	}

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); len(got) > maxRequestIDLen {
		t.Fatalf("oversized id must be replaced, got %d chars", len(got))
	}
}

func TestSetupConfiguresLogger(t *testing.T) {
	t.Cleanup(func() {
		log.SetLevel(log.InfoLevel)
		log.SetFormatter(&log.TextFormatter{})
		log.SetOutput(os.Stderr)
	})

	closer, errSetup := Setup(config.LoggingConfig{
		Level:  "debug",
		Format: "json",
		File:   filepath.Join(t.TempDir(), "logs", "ledger.log"),
	})
	if errSetup != nil {
		t.Fatalf("setup: %v", errSetup)
	}
	defer closer.Close()
	if log.GetLevel() != log.DebugLevel {
		t.Fatalf("expected debug level, got %s", log.GetLevel())
	}
	if _, ok := log.StandardLogger().Formatter.(*log.JSONFormatter); !ok {
		t.Fatalf("expected JSON formatter")
	}

	if _, errSetup = Setup(config.LoggingConfig{Level: "loud"}); errSetup == nil {
		t.Fatalf("expected invalid level error")
	}
	if _, errSetup = Setup(config.LoggingConfig{Level: "info", Format: "xml"}); errSetup == nil {
		t.Fatalf("expected invalid format error")
	}
}
