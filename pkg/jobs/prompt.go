package jobs

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/clawcron/clawcron/pkg/memory"
)

const memoryIntro = `## Persisted memory

You have a small key-value memory that survives between runs. It is currently
empty. To remember something for next time, include a "jobMemory" object in
your JSON reply, for example:

{"jobResult": "your answer here", "jobMemory": {"lastSeenVersion": "1.2.0"}}`

const replyContract = `## Reply format

Respond with a single JSON object containing a "jobResult" string field with
your complete answer, and optionally a "jobMemory" object with key-value
pairs to persist for the next run. Example:

{"jobResult": "...", "jobMemory": {"key": "value"}}`

// buildPrompt assembles the final prompt: template content, the rendered
// prior-memory block, optional custom instructions, and the trailing reply
// contract the tool is asked to honor.
func buildPrompt(templateContent string, prior map[string]any, instructions string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(templateContent, "\n"))
	b.WriteString("\n\n")
	b.WriteString(renderMemoryBlock(prior))
	if strings.TrimSpace(instructions) != "" {
		b.WriteString("\n\n## Additional instructions\n\n")
		b.WriteString(strings.TrimSpace(instructions))
	}
	b.WriteString("\n\n")
	b.WriteString(replyContract)
	b.WriteString("\n")
	return b.String()
}

// renderMemoryBlock lists the persisted keys, or explains the mechanism with
// an example schema when nothing is persisted yet. The _metadata block is
// bookkeeping about the file itself and is not shown to the tool.
func renderMemoryBlock(prior map[string]any) string {
	keys := make([]string, 0, len(prior))
	for k := range prior {
		if k == memory.MetadataKey {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return memoryIntro
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("## Persisted memory\n\nValues you stored on previous runs:\n\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %s\n", k, renderValue(prior[k]))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return "null"
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(data)
	}
}
