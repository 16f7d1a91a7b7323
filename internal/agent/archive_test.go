package agent

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bobmcallan/flytel-agent/internal/llm"
)

func TestSaveConversation(t *testing.T) {
	dir := t.TempDir()
	history := []llm.Message{
		{Role: llm.RoleUser, Content: "list of airports"},
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "Settings_GetAirports", Arguments: "{}"}}},
		{Role: llm.RoleTool, ToolCallID: "call_1", Content: `[{"id": "a1"}]`},
		{Role: llm.RoleAssistant, Content: "One airport found."},
	}

	path, err := SaveConversation(dir, "airport chat", history)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	base := filepath.Base(path)
	if !strings.HasPrefix(base, "airport_chat_") || !strings.HasSuffix(base, ".json") {
		t.Errorf("unexpected filename %q", base)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var record struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		CreatedAt string `json:"created_at"`
		Content   string `json:"content"`
	}
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(record.ID) != 8 {
		t.Errorf("unexpected id %q", record.ID)
	}
	if record.Name != "airport chat" {
		t.Errorf("unexpected name %q", record.Name)
	}
	if !strings.Contains(record.Content, "You: list of airports") ||
		!strings.Contains(record.Content, "Assistant: One airport found.") {
		t.Errorf("unexpected content %q", record.Content)
	}
}

func TestSaveConversationUnnamed(t *testing.T) {
	path, err := SaveConversation(t.TempDir(), "", []llm.Message{
		{Role: llm.RoleUser, Content: "hello"},
	})
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	base := filepath.Base(path)
	if strings.HasPrefix(base, "_") {
		t.Errorf("unnamed save must not start with an underscore: %q", base)
	}
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"airport chat":    "airport_chat",
		"  spaced  ":      "spaced",
		"a b  c":          "a_b__c",
		"a/b\\c":          "abc",
		"keep_this-name1": "keep_this-name1",
	}
	for in, want := range cases {
		if got := sanitizeName(in); got != want {
			t.Errorf("sanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRenderTranscript(t *testing.T) {
	got := RenderTranscript([]llm.Message{
		{Role: llm.RoleUser, Content: "hi"},
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{Name: "check_inventory", Arguments: `{"product_name": "drill"}`}}},
		{Role: llm.RoleTool, Content: "result"},
		{Role: llm.RoleAssistant, Content: "done"},
	})
	want := "You: hi\n" +
		"Assistant (tool call): check_inventory {\"product_name\": \"drill\"}\n" +
		"Tool: result\n" +
		"Assistant: done\n"
	if got != want {
		t.Errorf("unexpected transcript:\n%q\nwant:\n%q", got, want)
	}
}
