package models

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// Role message author
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

var (
	ErrDanglingToolResult = goerr.New("tool result does not answer an open tool call")
	ErrDuplicateCallID    = goerr.New("tool call id already issued in transcript")
	ErrEmptyCallID        = goerr.New("tool call id is empty")
)

// Message is one transcript entry. Concrete types are UserMessage,
// AssistantMessage and ToolResultMessage.
type Message interface {
	Role() Role
	MessageID() string
	CreatedAt() time.Time
}

// meta shared message metadata
type meta struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func newMeta() meta {
	return meta{ID: uuid.NewString(), Timestamp: time.Now()}
}

func (m meta) MessageID() string     { return m.ID }
func (m meta) CreatedAt() time.Time { return m.Timestamp }

// UserMessage user input
type UserMessage struct {
	meta
	Content string `json:"content"`
}

func (*UserMessage) Role() Role { return RoleUser }

// NewUserMessage creates a user message
func NewUserMessage(content string) *UserMessage {
	return &UserMessage{meta: newMeta(), Content: content}
}

// ToolCallRequest a tool invocation requested by the assistant
type ToolCallRequest struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// AssistantMessage reasoning backend output
type AssistantMessage struct {
	meta
	Content   string            `json:"content,omitempty"`
	ToolCalls []ToolCallRequest `json:"toolCalls,omitempty"`
}

func (*AssistantMessage) Role() Role { return RoleAssistant }

// NewAssistantMessage creates an assistant message
func NewAssistantMessage(content string, calls ...ToolCallRequest) *AssistantMessage {
	return &AssistantMessage{meta: newMeta(), Content: content, ToolCalls: calls}
}

// HasToolCalls reports whether the backend asked for tools
func (m *AssistantMessage) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// ToolResultMessage answers exactly one ToolCallRequest
type ToolResultMessage struct {
	meta
	CallID   string `json:"callId"`
	ToolName string `json:"toolName"`
	Content  string `json:"content"`
	IsError  bool   `json:"isError,omitempty"`
}

func (*ToolResultMessage) Role() Role { return RoleTool }

// NewToolResultMessage creates a tool result message
func NewToolResultMessage(callID, toolName, content string, isError bool) *ToolResultMessage {
	return &ToolResultMessage{
		meta:     newMeta(),
		CallID:   callID,
		ToolName: toolName,
		Content:  content,
		IsError:  isError,
	}
}

// Transcript append-only conversation history
type Transcript struct {
	mu       sync.RWMutex
	messages []Message
	issued   map[string]string // call id -> tool name
	answered map[string]bool
}

// NewTranscript creates an empty transcript
func NewTranscript() *Transcript {
	return &Transcript{
		issued:   make(map[string]string),
		answered: make(map[string]bool),
	}
}

// Append adds a message, enforcing that tool results reference an earlier,
// still unanswered tool call.
func (t *Transcript) Append(msg Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch m := msg.(type) {
	case *AssistantMessage:
		seen := make(map[string]bool, len(m.ToolCalls))
		for _, call := range m.ToolCalls {
			if call.ID == "" {
				return goerr.Wrap(ErrEmptyCallID, "invalid assistant message", goerr.V("tool", call.Name))
			}
			if _, ok := t.issued[call.ID]; ok || seen[call.ID] {
				return goerr.Wrap(ErrDuplicateCallID, "invalid assistant message", goerr.V("callID", call.ID))
			}
			seen[call.ID] = true
		}
		for _, call := range m.ToolCalls {
			t.issued[call.ID] = call.Name
		}
	case *ToolResultMessage:
		if _, ok := t.issued[m.CallID]; !ok || t.answered[m.CallID] {
			return goerr.Wrap(ErrDanglingToolResult, "invalid tool result", goerr.V("callID", m.CallID))
		}
		t.answered[m.CallID] = true
	}

	t.messages = append(t.messages, msg)
	return nil
}

// Messages returns a snapshot of the transcript
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len number of messages
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Last returns the newest message or nil
func (t *Transcript) Last() Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.messages) == 0 {
		return nil
	}
	return t.messages[len(t.messages)-1]
}

// PendingCalls returns call ids issued but not yet answered
func (t *Transcript) PendingCalls() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var pending []string
	for _, msg := range t.messages {
		am, ok := msg.(*AssistantMessage)
		if !ok {
			continue
		}
		for _, call := range am.ToolCalls {
			if !t.answered[call.ID] {
				pending = append(pending, call.ID)
			}
		}
	}
	return pending
}

// CallName returns the tool name of an issued call id
func (t *Transcript) CallName(callID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	name, ok := t.issued[callID]
	return name, ok
}
