package infra

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		env       string
		wantDebug bool
		wantInfo  bool
	}{
		{env: "production", wantDebug: false, wantInfo: true},
		{env: "test", wantDebug: false, wantInfo: false},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		logger := newLogger(tt.env, &buf)

		logger.Debug().Msg("debug line")
		if got := bytes.Contains(buf.Bytes(), []byte("debug line")); got != tt.wantDebug {
			t.Fatalf("%s: debug written = %v, want %v", tt.env, got, tt.wantDebug)
		}
		logger.Info().Msg("info line")
		if got := bytes.Contains(buf.Bytes(), []byte("info line")); got != tt.wantInfo {
			t.Fatalf("%s: info written = %v, want %v", tt.env, got, tt.wantInfo)
		}
	}
}

func TestNewLoggerProductionIsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("production", &buf)
	logger.Info().Str("job_id", "p1").Msg("submitted")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["service"] != "creatorhub" || entry["job_id"] != "p1" || entry["message"] != "submitted" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestNewLoggerDevelopmentWritesDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("development", &buf)
	logger.Debug().Msg("cache miss")
	if !bytes.Contains(buf.Bytes(), []byte("cache miss")) {
		t.Fatalf("expected debug output, got %q", buf.String())
	}
}
