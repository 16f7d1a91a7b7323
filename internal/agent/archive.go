package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/bobmcallan/flytel-agent/internal/llm"
)

// archivedConversation is the on-disk shape of one saved transcript.
type archivedConversation struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at"`
	Content   string `json:"content"`
}

// SaveConversation writes the session transcript to
// <dir>/<name>_<timestamp>_<uid>.json and returns the path. The name is
// optional and sanitized to filename-safe characters.
func SaveConversation(dir, name string, history []llm.Message) (string, error) {
	if dir == "" {
		dir = "conversations"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	now := time.Now().UTC()
	uid := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	prefix := sanitizeName(name)
	if prefix != "" {
		prefix += "_"
	}
	filename := fmt.Sprintf("%s%s_%s.json", prefix, now.Format("20060102T150405Z"), uid)
	path := filepath.Join(dir, filename)

	record := archivedConversation{
		ID:        uid,
		Name:      name,
		CreatedAt: now.Format(time.RFC3339),
		Content:   RenderTranscript(history),
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode conversation: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write conversation: %w", err)
	}
	return path, nil
}

// RenderTranscript flattens the history into readable lines. Assistant
// tool-call messages render the calls they requested; tool results keep
// their raw content.
func RenderTranscript(history []llm.Message) string {
	var b strings.Builder
	for _, msg := range history {
		switch msg.Role {
		case llm.RoleUser:
			fmt.Fprintf(&b, "You: %s\n", msg.Content)
		case llm.RoleAssistant:
			if len(msg.ToolCalls) > 0 {
				for _, call := range msg.ToolCalls {
					fmt.Fprintf(&b, "Assistant (tool call): %s %s\n", call.Name, call.Arguments)
				}
			}
			if msg.Content != "" {
				fmt.Fprintf(&b, "Assistant: %s\n", msg.Content)
			}
		case llm.RoleTool:
			fmt.Fprintf(&b, "Tool: %s\n", msg.Content)
		}
	}
	return b.String()
}

// sanitizeName keeps letters, digits, underscores and hyphens, mapping
// spaces to underscores.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	return b.String()
}
