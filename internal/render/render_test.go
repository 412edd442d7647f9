package render

import (
	"strings"
	"testing"

	"github.com/user/gopherchat/internal/types"
)

func TestBlock_Text(t *testing.T) {
	b := types.ContentBlock{Type: types.BlockTypeText, Text: "hello world"}
	if got := Block(b); got != "hello world" {
		t.Errorf("expected verbatim text, got %q", got)
	}
}

func TestBlock_Thinking(t *testing.T) {
	b := types.ContentBlock{Type: types.BlockTypeThinking, Text: "pondering"}
	got := Block(b)
	if !strings.Contains(got, "  . pondering") {
		t.Errorf("expected prefixed thinking, got %q", got)
	}
	if !strings.Contains(got, "\x1b[2m") {
		t.Errorf("expected dimmed output, got %q", got)
	}
}

func TestBlock_ToolUse(t *testing.T) {
	b := types.ContentBlock{Type: types.BlockTypeToolUse, ID: "t1", Name: "read_file"}
	got := Block(b)
	if !strings.Contains(got, "[tool: read_file]") {
		t.Errorf("expected tool header, got %q", got)
	}
}

func TestBlock_ToolResultError(t *testing.T) {
	b := types.ContentBlock{Type: types.BlockTypeToolResult, Result: "boom", IsError: true}
	got := Block(b)
	if !strings.Contains(got, "[tool error]") {
		t.Errorf("expected error marker, got %q", got)
	}
	if !strings.Contains(got, "boom") {
		t.Errorf("expected result body, got %q", got)
	}
}

func TestBlock_UnknownType(t *testing.T) {
	b := types.ContentBlock{Type: "mystery"}
	if got := Block(b); got != "" {
		t.Errorf("expected empty string for unknown type, got %q", got)
	}
}

func TestBlocks_JoinsAndSkipsEmpty(t *testing.T) {
	blocks := []types.ContentBlock{
		{Type: types.BlockTypeText, Text: "first"},
		{Type: "mystery"},
		{Type: types.BlockTypeText, Text: "second"},
	}
	got := Blocks(blocks)
	if got != "first\n\nsecond" {
		t.Errorf("expected joined text, got %q", got)
	}
}

func TestFinalText_TextOnly(t *testing.T) {
	blocks := []types.ContentBlock{
		{Type: types.BlockTypeThinking, Text: "hmm"},
		{Type: types.BlockTypeText, Text: "the answer"},
		{Type: types.BlockTypeToolUse, Name: "search"},
		{Type: types.BlockTypeToolResult, Result: "raw"},
		{Type: types.BlockTypeText, Text: "and more"},
	}
	got := FinalText(blocks)
	if got != "the answer\n\nand more" {
		t.Errorf("expected text blocks only, got %q", got)
	}
}

func TestResultBody_ConvertsHTML(t *testing.T) {
	got := ResultBody("<html><body><h1>Title</h1><p>Body text</p></body></html>")
	if strings.Contains(got, "<h1>") {
		t.Errorf("expected HTML converted, got %q", got)
	}
	if !strings.Contains(got, "Title") || !strings.Contains(got, "Body text") {
		t.Errorf("expected content preserved, got %q", got)
	}
}

func TestResultBody_PlainTextUntouched(t *testing.T) {
	if got := ResultBody("just some output"); got != "just some output" {
		t.Errorf("expected plain text untouched, got %q", got)
	}
}

func TestResultBody_Truncates(t *testing.T) {
	long := strings.Repeat("x", maxResultChars+100)
	got := ResultBody(long)
	if !strings.HasSuffix(got, "[truncated]") {
		t.Errorf("expected truncation marker, got tail %q", got[len(got)-20:])
	}
	if len(got) > maxResultChars+len("\n\n[truncated]") {
		t.Errorf("expected capped length, got %d", len(got))
	}
}
