package runlog

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
)

// TestRecorder_Write verifies the record round-trips through its JSON file
func TestRecorder_Write(t *testing.T) {
	dir := t.TempDir()
	rec := NewRecorder(dir)

	code := 0
	record := Record{
		RunID:        "abcd1234-0000",
		Job:          "daily",
		StartedAt:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		FinishedAt:   time.Date(2026, 3, 1, 9, 0, 5, 0, time.UTC),
		Success:      true,
		Outcome:      "completed",
		RecoveryMode: "whole_json",
		ExitCode:     &code,
		Stdout:       `{"jobResult":"ok"}`,
	}
	if err := rec.Write(record); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("Expected one run file, got %v (err %v)", entries, err)
	}
	name := entries[0].Name()
	if !strings.Contains(name, "daily") || !strings.Contains(name, "abcd1234") {
		t.Errorf("Expected job and short run id in file name, got %q", name)
	}

	data, _ := os.ReadFile(filepath.Join(dir, name))
	var loaded Record
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if loaded.Job != "daily" || !loaded.Success || loaded.RecoveryMode != "whole_json" {
		t.Errorf("Round trip mismatch: %+v", loaded)
	}
}

// TestRecorder_Archive verifies old records are compressed and removed while
// fresh ones stay
func TestRecorder_Archive(t *testing.T) {
	dir := t.TempDir()
	rec := NewRecorder(dir)

	oldPath := filepath.Join(dir, "old-run.json")
	os.WriteFile(oldPath, []byte(`{"run_id":"old"}`), 0644)
	stale := time.Now().Add(-48 * time.Hour)
	os.Chtimes(oldPath, stale, stale)

	freshPath := filepath.Join(dir, "fresh-run.json")
	os.WriteFile(freshPath, []byte(`{"run_id":"fresh"}`), 0644)

	n, err := rec.Archive(24 * time.Hour)
	if err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 archived record, got %d", n)
	}
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Error("Expected old record to be removed after archiving")
	}
	if _, err := os.Stat(freshPath); err != nil {
		t.Error("Expected fresh record to survive")
	}

	// The archive must decompress back to the original bytes.
	compressed, err := os.ReadFile(oldPath + ".zst")
	if err != nil {
		t.Fatalf("Expected archive file: %v", err)
	}
	dec, err := zstd.NewReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer dec.Close()
	var out bytes.Buffer
	if _, err := out.ReadFrom(dec); err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}
	if out.String() != `{"run_id":"old"}` {
		t.Errorf("Expected original content, got %q", out.String())
	}
}

// TestRecorder_ArchiveMissingDir verifies archiving before any run is a
// no-op
func TestRecorder_ArchiveMissingDir(t *testing.T) {
	rec := NewRecorder(filepath.Join(t.TempDir(), "never-created"))
	n, err := rec.Archive(time.Hour)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 archived, got %d", n)
	}
}
