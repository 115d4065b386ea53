package domain

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"droidrun/internal/agent/ports"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

func getEncoding() *tiktoken.Tiktoken {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})
	return encoding
}

// CountTokens returns a token count using the cl100k_base encoding, falling
// back to a character heuristic when the encoding is unavailable.
func CountTokens(text string) int {
	if enc := getEncoding(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}
	runes := len([]rune(trimmed))
	words := len(strings.Fields(trimmed))
	estimate := runes / 4
	if estimate < words {
		estimate = words
	}
	if estimate == 0 {
		estimate = 1
	}
	return estimate
}

// ConversationWindow is the append-only message history of an agent loop.
// Trimming never mutates the stored history; callers receive a truncated view.
type ConversationWindow struct {
	messages []ports.Message
	limit    int
}

// NewConversationWindow creates a window whose trimmed view keeps the
// 2*limit most recent messages.
func NewConversationWindow(limit int) *ConversationWindow {
	return &ConversationWindow{limit: limit}
}

// Append adds a message to the history.
func (w *ConversationWindow) Append(msg ports.Message) {
	w.messages = append(w.messages, msg)
}

// Len returns the number of stored messages.
func (w *ConversationWindow) Len() int {
	return len(w.messages)
}

// Messages returns a snapshot of the full history.
func (w *ConversationWindow) Messages() []ports.Message {
	out := make([]ports.Message, len(w.messages))
	copy(out, w.messages)
	return out
}

// Trimmed returns the view sent to the model: the first user message (the
// task framing) plus the most recent 2*limit messages. The first user
// message is not duplicated when it already falls inside the recent window.
// Histories within budget are returned whole.
func (w *ConversationWindow) Trimmed() []ports.Message {
	keep := 2 * w.limit
	if keep <= 0 || len(w.messages) <= keep {
		return w.Messages()
	}

	firstUserIdx := -1
	for i, msg := range w.messages {
		if msg.Role == ports.RoleUser {
			firstUserIdx = i
			break
		}
	}

	tailStart := len(w.messages) - keep
	out := make([]ports.Message, 0, keep+1)
	if firstUserIdx >= 0 && firstUserIdx < tailStart {
		out = append(out, w.messages[firstUserIdx])
	}
	out = append(out, w.messages[tailStart:]...)
	return out
}

// TokenCount returns the total token count of the stored history.
func (w *ConversationWindow) TokenCount() int {
	total := 0
	for _, msg := range w.messages {
		total += CountTokens(msg.Content)
	}
	return total
}
