package promptfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestStore_LoadConcatenatesWithHeaders verifies file order and separator
// headers
func TestStore_LoadConcatenatesWithHeaders(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "one.md"), []byte("first"), 0644)
	os.WriteFile(filepath.Join(dir, "two.md"), []byte("second\n"), 0644)

	store := NewStore(dir)
	content, err := store.Load([]string{"one.md", "two.md"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !strings.Contains(content, "--- one.md ---\nfirst") {
		t.Errorf("Expected header + content for one.md, got %q", content)
	}
	if !strings.Contains(content, "--- two.md ---\nsecond") {
		t.Errorf("Expected header + content for two.md, got %q", content)
	}
	if strings.Index(content, "one.md") > strings.Index(content, "two.md") {
		t.Error("Expected templates in the order they were named")
	}
}

// TestStore_LoadMissingFile verifies a missing template is an error, not a
// silent skip
func TestStore_LoadMissingFile(t *testing.T) {
	store := NewStore(t.TempDir())

	_, err := store.Load([]string{"ghost.md"})
	if err == nil {
		t.Fatal("Expected error for missing template")
	}
	if !strings.Contains(err.Error(), "ghost.md") {
		t.Errorf("Expected error to name the missing file, got: %v", err)
	}
}

// TestStore_LoadEmptyList verifies at least one template must be named
func TestStore_LoadEmptyList(t *testing.T) {
	store := NewStore(t.TempDir())
	if _, err := store.Load(nil); err == nil {
		t.Fatal("Expected error for empty template list")
	}
}

// TestStore_Scaffold verifies defaults are written once and never clobber
// user edits
func TestStore_Scaffold(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	written, err := store.Scaffold()
	if err != nil {
		t.Fatalf("Scaffold failed: %v", err)
	}
	if len(written) == 0 {
		t.Fatal("Expected scaffold to write default templates")
	}

	// Edit one file, scaffold again, edit must survive.
	edited := filepath.Join(dir, written[0])
	if err := os.WriteFile(edited, []byte("user edit"), 0644); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	again, err := store.Scaffold()
	if err != nil {
		t.Fatalf("Second scaffold failed: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("Expected idempotent scaffold, rewrote %v", again)
	}
	data, _ := os.ReadFile(edited)
	if string(data) != "user edit" {
		t.Errorf("Expected user edit to survive, got %q", data)
	}
}
