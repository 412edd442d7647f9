package memory

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/gopherchat/internal/types"
)

// factMarker prefixes assistant lines that should be persisted as
// durable facts, e.g. "REMEMBER: user prefers tabs".
const factMarker = "REMEMBER:"

var fileMu sync.Mutex

// Extractor walks a conversation's recent turns under a token budget
// and appends marked facts to the workdir's memory file.
type Extractor struct {
	tokenizer *tiktoken.Tiktoken
	maxTokens int
	fileName  string
}

// New creates an extractor. fileName is the memory file name relative
// to each conversation's working directory. maxTokens bounds how far
// back into the conversation extraction looks.
func New(fileName string, maxTokens int) (*Extractor, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("get tokenizer: %w", err)
	}
	return &Extractor{
		tokenizer: enc,
		maxTokens: maxTokens,
		fileName:  fileName,
	}, nil
}

func (e *Extractor) countTokens(text string) int {
	return len(e.tokenizer.Encode(text, nil, nil))
}

// Extract scans the most recent turns newest-first, collects marked
// fact lines from assistant text blocks, and appends any new ones to
// the conversation's memory file.
func (e *Extractor) Extract(ctx context.Context, conv *types.Conversation) error {
	if conv.WorkDir == "" {
		return nil
	}

	facts := e.recentFacts(conv)
	if len(facts) == 0 {
		return nil
	}

	path := filepath.Join(conv.WorkDir, e.fileName)
	saved, err := appendFacts(path, facts)
	if err != nil {
		return fmt.Errorf("append facts: %w", err)
	}
	if saved > 0 {
		slog.Debug("saved memory facts", "conversation_id", conv.ID, "count", saved)
	}
	return nil
}

// recentFacts walks messages newest-first under the token budget and
// returns fact lines in chronological order.
func (e *Extractor) recentFacts(conv *types.Conversation) []string {
	var facts []string
	used := 0

	for i := len(conv.Messages) - 1; i >= 0; i-- {
		msg := conv.Messages[i]
		text := messageText(msg)
		if text == "" {
			continue
		}
		tokens := e.countTokens(text)
		if used+tokens > e.maxTokens {
			break
		}
		used += tokens

		if msg.Role != types.RoleAssistant {
			continue
		}
		// Prepend so the result stays chronological.
		facts = append(factLines(text), facts...)
	}
	return facts
}

func messageText(msg *types.Message) string {
	var parts []string
	for _, b := range msg.Blocks {
		if b.Type == types.BlockTypeText && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func factLines(text string) []string {
	var facts []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		rest, ok := strings.CutPrefix(line, factMarker)
		if !ok {
			continue
		}
		fact := strings.TrimSpace(rest)
		if fact != "" {
			facts = append(facts, fact)
		}
	}
	return facts
}

// appendFacts appends deduplicated "- fact" lines to the memory file
// and returns how many were written.
func appendFacts(path string, facts []string) (int, error) {
	fileMu.Lock()
	defer fileMu.Unlock()

	existing, err := readMemoryFile(path)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]bool)
	for _, l := range strings.Split(existing, "\n") {
		seen[strings.TrimSpace(l)] = true
	}

	var lines []string
	for _, fact := range facts {
		line := "- " + fact
		if seen[line] {
			continue
		}
		seen[line] = true
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return 0, nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if _, err := f.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		return 0, err
	}
	return len(lines), nil
}

func readMemoryFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}
