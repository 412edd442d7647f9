// Package render formats content blocks for terminal and chat output.
package render

import (
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/user/gopherchat/internal/types"
)

const maxResultChars = 4000

// Block renders a single content block as display text.
func Block(b types.ContentBlock) string {
	switch b.Type {
	case types.BlockTypeText:
		return b.Text

	case types.BlockTypeThinking:
		return dim(prefixLines(b.Text, "  . "))

	case types.BlockTypeToolUse:
		return dim(fmt.Sprintf("[tool: %s]", b.Name))

	case types.BlockTypeToolResult:
		body := ResultBody(b.Result)
		if b.IsError {
			return dim("[tool error]\n" + prefixLines(body, "  "))
		}
		return dim(prefixLines(body, "  "))

	default:
		return ""
	}
}

// Blocks renders a message's blocks joined with blank lines, skipping
// empty ones.
func Blocks(blocks []types.ContentBlock) string {
	var parts []string
	for _, b := range blocks {
		if s := Block(b); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

// FinalText returns the plain assistant text of a block slice, with
// thinking and tool traffic omitted. Used for chat front ends that
// only deliver the answer.
func FinalText(blocks []types.ContentBlock) string {
	var parts []string
	for _, b := range blocks {
		if b.Type == types.BlockTypeText && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// ResultBody prepares a tool result for display: HTML results are
// converted to markdown, everything is truncated to the display cap.
func ResultBody(result string) string {
	body := result
	if looksLikeHTML(body) {
		md, err := htmltomarkdown.ConvertString(body)
		if err == nil {
			body = md
		}
	}
	body = strings.TrimSpace(body)
	if len(body) > maxResultChars {
		body = body[:maxResultChars] + "\n\n[truncated]"
	}
	return body
}

func looksLikeHTML(s string) bool {
	trimmed := strings.TrimSpace(s)
	lower := strings.ToLower(trimmed)
	return strings.HasPrefix(lower, "<!doctype html") ||
		strings.HasPrefix(lower, "<html")
}

func prefixLines(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

func dim(s string) string {
	if s == "" {
		return s
	}
	return "\x1b[2m" + s + "\x1b[0m"
}
