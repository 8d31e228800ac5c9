package jobs

import (
	"strings"
	"testing"

	"github.com/clawcron/clawcron/pkg/memory"
)

// TestBuildPrompt_EmptyMemory verifies the explanatory block and example
// schema appear when no memory exists yet
func TestBuildPrompt_EmptyMemory(t *testing.T) {
	prompt := buildPrompt("# Task\nDo the thing.", map[string]any{}, "")

	if !strings.Contains(prompt, "# Task") {
		t.Error("Expected template content in prompt")
	}
	if !strings.Contains(prompt, "currently\nempty") && !strings.Contains(prompt, "currently empty") {
		t.Errorf("Expected empty-memory explanation, got:\n%s", prompt)
	}
	if !strings.Contains(prompt, `"jobMemory"`) {
		t.Error("Expected example schema mentioning jobMemory")
	}
	if !strings.Contains(prompt, `"jobResult"`) {
		t.Error("Expected reply contract mandating jobResult")
	}
}

// TestBuildPrompt_RendersExistingMemory verifies stored keys are listed,
// sorted, with metadata hidden
func TestBuildPrompt_RendersExistingMemory(t *testing.T) {
	prior := map[string]any{
		"zeta":             "last",
		"alpha":            float64(7),
		memory.MetadataKey: map[string]any{"updateCount": float64(3)},
	}

	prompt := buildPrompt("tpl", prior, "")

	if !strings.Contains(prompt, "- alpha: 7") {
		t.Errorf("Expected alpha listed, got:\n%s", prompt)
	}
	if !strings.Contains(prompt, "- zeta: last") {
		t.Errorf("Expected zeta listed, got:\n%s", prompt)
	}
	if strings.Index(prompt, "- alpha") > strings.Index(prompt, "- zeta") {
		t.Error("Expected keys in sorted order")
	}
	if strings.Contains(prompt, memory.MetadataKey) {
		t.Error("Expected metadata block hidden from the tool")
	}
}

// TestBuildPrompt_CustomInstructions verifies the optional block appears
// between memory and the reply contract
func TestBuildPrompt_CustomInstructions(t *testing.T) {
	prompt := buildPrompt("tpl", map[string]any{}, "Use British spelling.")

	if !strings.Contains(prompt, "Use British spelling.") {
		t.Error("Expected custom instructions in prompt")
	}
	if strings.Index(prompt, "Use British spelling.") > strings.Index(prompt, "Reply format") {
		t.Error("Expected instructions before the reply contract")
	}
}

// TestBuildPrompt_ComplexValuesAsJSON verifies non-string memory values are
// rendered as JSON
func TestBuildPrompt_ComplexValuesAsJSON(t *testing.T) {
	prior := map[string]any{"list": []any{"a", "b"}}

	prompt := buildPrompt("tpl", prior, "")

	if !strings.Contains(prompt, `- list: ["a","b"]`) {
		t.Errorf("Expected JSON rendering of list, got:\n%s", prompt)
	}
}
