package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestCacheKeyDistinguishesNegativePrompt(t *testing.T) {
	a := GenerationRequest{Prompt: "a cat", NegativePrompt: "", Provider: "flux"}
	b := GenerationRequest{Prompt: "a cat", NegativePrompt: "blurry", Provider: "flux"}
	if a.CacheKey() == b.CacheKey() {
		t.Fatalf("cache keys collide: %q", a.CacheKey())
	}
}

func TestCacheKeyKeepsFieldBoundaries(t *testing.T) {
	a := GenerationRequest{Prompt: "ab", NegativePrompt: "c", Provider: "flux"}
	b := GenerationRequest{Prompt: "a", NegativePrompt: "bc", Provider: "flux"}
	if a.CacheKey() == b.CacheKey() {
		t.Fatalf("cache keys collide across fields: %q", a.CacheKey())
	}
}

func TestCacheKeyIsExactMatch(t *testing.T) {
	a := GenerationRequest{Prompt: "a cat", Provider: "flux"}
	b := GenerationRequest{Prompt: "a cat ", Provider: "flux"}
	if a.CacheKey() == b.CacheKey() {
		t.Fatalf("cache key must not normalize whitespace")
	}
	if a.CacheKey() != (GenerationRequest{Prompt: "a cat", Provider: "flux"}).CacheKey() {
		t.Fatalf("cache key must be deterministic")
	}
}

func TestValidatePrompt(t *testing.T) {
	tests := []struct {
		prompt  string
		wantErr bool
	}{
		{prompt: "", wantErr: true},
		{prompt: "   ", wantErr: false},
		{prompt: "a cat", wantErr: false},
	}
	for _, tt := range tests {
		err := GenerationRequest{Prompt: tt.prompt}.Validate()
		if tt.wantErr != errors.Is(err, ErrInvalidInput) || (!tt.wantErr && err != nil) {
			t.Fatalf("Validate(%q) = %v, wantErr %v", tt.prompt, err, tt.wantErr)
		}
	}
}

func TestJobStatusIsTerminal(t *testing.T) {
	cases := map[JobStatus]bool{
		JobStatusStarting:   false,
		JobStatusProcessing: false,
		JobStatusSucceeded:  true,
		JobStatusFailed:     true,
		JobStatusCanceled:   true,
	}
	for status, want := range cases {
		if got := status.IsTerminal(); got != want {
			t.Fatalf("%s.IsTerminal() = %v, want %v", status, got, want)
		}
	}
}

func TestOutputJSONShapes(t *testing.T) {
	raw, err := json.Marshal(Output{"https://x/img.png"})
	if err != nil {
		t.Fatalf("marshal single: %v", err)
	}
	if string(raw) != `"https://x/img.png"` {
		t.Fatalf("single output = %s", raw)
	}

	var list Output
	if err := json.Unmarshal([]byte(`["https://x/1.png","https://x/2.png"]`), &list); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(list) != 2 || list[1] != "https://x/2.png" {
		t.Fatalf("list output = %#v", list)
	}

	var single Output
	if err := json.Unmarshal([]byte(`"https://x/img.png"`), &single); err != nil {
		t.Fatalf("unmarshal single: %v", err)
	}
	if single.First() != "https://x/img.png" {
		t.Fatalf("single output = %#v", single)
	}

	var empty Output
	if err := json.Unmarshal([]byte(`null`), &empty); err != nil || empty != nil {
		t.Fatalf("null output = %#v, err=%v", empty, err)
	}
	if err := json.Unmarshal([]byte(`{"a":1}`), &empty); err == nil {
		t.Fatalf("expected error for object output")
	}
}

func TestUnknownProviderIsInvalidInput(t *testing.T) {
	err := UnknownProvider("midjourney")
	if !errors.Is(err, ErrUnknownProvider) || !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("UnknownProvider error chain broken: %v", err)
	}
}

func TestGenerationFailedKeepsMessage(t *testing.T) {
	err := GenerationFailed("abc", "NSFW content detected")
	var perr *ProviderError
	if !errors.As(err, &perr) || perr.Message != "NSFW content detected" {
		t.Fatalf("message not preserved: %v", err)
	}
	if !errors.Is(err, ErrProviderGeneration) {
		t.Fatalf("expected ErrProviderGeneration, got %v", err)
	}
	if perr := GenerationFailed("abc", "").(*ProviderError); perr.Message != DefaultFailureMessage {
		t.Fatalf("default message = %q", perr.Message)
	}
}
