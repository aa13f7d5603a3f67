package answer

import (
	"fmt"
	"strings"

	"github.com/weaveai/weave/internal/models"
)

// SystemInstruction is the fixed instruction every generation runs under.
func SystemInstruction(refusal string) string {
	return fmt.Sprintf(`You are a factual information retrieval system.
Rules:
1. Answer ONLY using the provided content
2. If the answer is not in the content, respond with: "%s"
3. Never use external knowledge
4. Never make assumptions
5. Be precise and concise`, refusal)
}

// UserPrompt numbers each resolved content block and appends the question.
func UserPrompt(query string, contents [][]byte) string {
	blocks := make([]string, len(contents))
	for i, c := range contents {
		blocks[i] = fmt.Sprintf("[%d] %s", i+1, c)
	}
	return fmt.Sprintf("Content:\n%s\n\nQuestion: %s\n\nAnswer using ONLY the content above. If not found, refuse.",
		strings.Join(blocks, "\n\n"), query)
}

// Citations renders the sources block in reference order.
func Citations(refs []models.DocumentReference) string {
	var sb strings.Builder
	sb.WriteString("\n\nSources:")
	for _, r := range refs {
		fmt.Fprintf(&sb, "\n- %s (%s)", r.Metadata.DocumentName, r.Metadata.Section)
	}
	return sb.String()
}
