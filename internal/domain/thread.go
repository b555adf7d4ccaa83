package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrThreadNotFound is returned when a thread id has never been written to.
var ErrThreadNotFound = errors.New("thread not found")

// Thread is an append-only conversation keyed by a caller-chosen identifier.
type Thread struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Messages  []Message `json:"messages,omitempty"`
}

// ThreadSummary is a lightweight listing entry for a thread.
type ThreadSummary struct {
	ID           string    `json:"id"`
	MessageCount int       `json:"messageCount"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ValidateTranscript checks that every tool message answers a request made
// by the assistant message that opened its tool block, and that each request
// id is answered at most once.
func ValidateTranscript(msgs []Message) error {
	var open map[string]bool
	for i, m := range msgs {
		if !m.Role.Valid() {
			return fmt.Errorf("message %d: unknown role %q", i, m.Role)
		}
		switch m.Role {
		case RoleTool:
			if open == nil {
				return fmt.Errorf("message %d: tool result without preceding tool request", i)
			}
			pending, ok := open[m.ToolCallID]
			if !ok {
				return fmt.Errorf("message %d: tool call id %q was not requested", i, m.ToolCallID)
			}
			if !pending {
				return fmt.Errorf("message %d: tool call id %q answered twice", i, m.ToolCallID)
			}
			open[m.ToolCallID] = false
		case RoleAssistant:
			open = nil
			if len(m.ToolCalls) > 0 {
				open = make(map[string]bool, len(m.ToolCalls))
				for _, tc := range m.ToolCalls {
					if _, dup := open[tc.ID]; dup {
						return fmt.Errorf("message %d: duplicate tool call id %q", i, tc.ID)
					}
					open[tc.ID] = true
				}
			}
		default:
			open = nil
		}
	}
	return nil
}
