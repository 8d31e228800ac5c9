// Package runlog persists one JSON record per job run under the workspace
// runs directory, and compacts aged records into zstd archives so the
// directory stays browsable without losing history.
package runlog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Record captures everything worth keeping about one run.
type Record struct {
	RunID        string    `json:"run_id"`
	Job          string    `json:"job"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Success      bool      `json:"success"`
	Outcome      string    `json:"outcome"`
	RecoveryMode string    `json:"recovery_mode,omitempty"`
	ExitCode     *int      `json:"exit_code,omitempty"`
	Stdout       string    `json:"stdout,omitempty"`
	Stderr       string    `json:"stderr,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// Recorder writes run records into a directory.
type Recorder struct {
	dir string
}

func NewRecorder(dir string) *Recorder {
	return &Recorder{dir: dir}
}

// Write persists a record as <started>-<job>-<runid>.json.
func (r *Recorder) Write(rec Record) error {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("create runs dir: %w", err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run record: %w", err)
	}

	shortID := rec.RunID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}
	name := fmt.Sprintf("%s-%s-%s.json",
		rec.StartedAt.UTC().Format("20060102T150405"), rec.Job, shortID)
	if err := os.WriteFile(filepath.Join(r.dir, name), data, 0644); err != nil {
		return fmt.Errorf("write run record: %w", err)
	}
	return nil
}

// Archive compresses run records older than the cutoff into .json.zst files
// and removes the originals. Returns how many records were archived.
func (r *Recorder) Archive(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read runs dir: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	archived := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := r.compress(filepath.Join(r.dir, entry.Name())); err != nil {
			return archived, err
		}
		archived++
	}
	return archived, nil
}

func (r *Recorder) compress(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open run record: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(path + ".zst")
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}

	enc, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		dst.Close()
		return fmt.Errorf("init zstd writer: %w", err)
	}
	if _, err := io.Copy(enc, src); err != nil {
		enc.Close()
		dst.Close()
		return fmt.Errorf("compress run record: %w", err)
	}
	if err := enc.Close(); err != nil {
		dst.Close()
		return fmt.Errorf("finish archive: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return os.Remove(path)
}
