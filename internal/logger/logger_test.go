package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		expect logrus.Level
	}{
		{name: "default info", level: "", expect: logrus.InfoLevel},
		{name: "debug", level: "debug", expect: logrus.DebugLevel},
		{name: "warn", level: "warn", expect: logrus.WarnLevel},
		{name: "error", level: "error", expect: logrus.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.level)
			log := New()
			if got := log.Logger.GetLevel(); got != tt.expect {
				t.Fatalf("expected level %v, got %v", tt.expect, got)
			}
		})
	}
}

func TestWithRequestMintsID(t *testing.T) {
	log := New()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)

	entry := log.WithRequest(req)
	if entry.Data["req_id"] == nil || entry.Data["req_id"] == "" {
		t.Fatalf("expected generated req_id, got %v", entry.Data["req_id"])
	}
	if entry.Data["path"] != "/api/health" {
		t.Fatalf("unexpected path field: %v", entry.Data["path"])
	}
}

func TestWithRequestKeepsHeaderID(t *testing.T) {
	log := New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "fixed-id")

	entry := log.WithRequest(req)
	if entry.Data["req_id"] != "fixed-id" {
		t.Fatalf("expected header id to win, got %v", entry.Data["req_id"])
	}
}

func TestWithComponent(t *testing.T) {
	log := New().WithComponent("pipeline")
	if log.Data["component"] != "pipeline" {
		t.Fatalf("component field missing: %v", log.Data)
	}
}
