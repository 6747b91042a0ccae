package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeGo(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestInlineQueriesPass(t *testing.T) {
	var stderr bytes.Buffer
	if code := run([]string{"../../sqlinline"}, &stderr); code != 0 {
		t.Fatalf("sqllint exit %d: %s", code, stderr.String())
	}
}

func TestMissingMarker(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "q.go", "package q\n\nconst QBad = `select token from provider_credentials where provider = $1`\n\nconst Greeting = \"please select a provider\"\n")

	violations, err := lint([]string{dir})
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if len(violations) != 1 || violations[0].name != "QBad" {
		t.Fatalf("violations = %#v", violations)
	}
}

func TestDuplicateMarker(t *testing.T) {
	dir := t.TempDir()
	marker := "--sql 11111111-2222-3333-4444-555555555555"
	writeGo(t, dir, "a.go", "package q\n\nconst QA = `"+marker+"\nselect 1 from generation_cache;`\n")
	writeGo(t, dir, "b.go", "package q\n\nconst QB = `"+marker+"\ndelete from generation_cache;`\n")

	var stderr bytes.Buffer
	if code := run([]string{dir}, &stderr); code != 1 {
		t.Fatalf("exit = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "marker already used by QA") {
		t.Fatalf("stderr = %s", stderr.String())
	}
}
