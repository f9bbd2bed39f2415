package restore

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"gopkg.in/yaml.v3"

	"github.com/ctxkeep/ctxkeep/internal/payload"
)

// TranscriptMarkdown flattens the conversation into a markdown transcript,
// one heading per turn with the timestamp when present.
func TranscriptMarkdown(p *payload.ContextPayload) string {
	var b strings.Builder

	for i, turn := range p.Conversation {
		if i > 0 {
			b.WriteString("\n---\n\n")
		}
		fmt.Fprintf(&b, "**%s:**", turn.Role)
		if turn.Timestamp > 0 {
			fmt.Fprintf(&b, " (%s)", time.Unix(turn.Timestamp, 0).UTC().Format(time.RFC3339))
		}
		b.WriteString("\n\n")
		b.WriteString(turn.Text)
		b.WriteString("\n")
	}

	return b.String()
}

// TranscriptHTML renders the markdown transcript to HTML.
func TranscriptHTML(p *payload.ContextPayload) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(TranscriptMarkdown(p)), &buf); err != nil {
		return "", fmt.Errorf("render transcript: %w", err)
	}
	return buf.String(), nil
}

// EncodeYAML marshals a restore result for YAML output.
func EncodeYAML(v any) ([]byte, error) {
	return yaml.Marshal(v)
}
