// Package dialog defines the canonical conversation turn and the request
// context shared by intent routing, chat, and document synthesis.
//
// Inbound messages arrive in heterogeneous shapes (plain content strings,
// parts arrays, request-level text fields, attachment metadata). They are
// normalized exactly once, at ingestion, into []*Turn; every downstream
// component consumes only the canonical form.
package dialog

import (
	"strings"

	"github.com/google/uuid"
)

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type Role string

func (r Role) String() string {
	return string(r)
}

// Attachment is one file attached to a turn. Content is the already
// extracted plain text; binary extraction happens upstream.
type Attachment struct {
	ID        string `json:"id,omitzero" msgpack:"id,omitempty"`
	Name      string `json:"name" msgpack:"name"`
	MediaType string `json:"media_type,omitzero" msgpack:"media_type,omitempty"`
	Content   string `json:"content,omitzero" msgpack:"content,omitempty"`
}

// Turn is one canonical conversation message. Text is the model-ready form
// with attachment blocks inlined; immutable once built.
type Turn struct {
	ID          string       `json:"id" msgpack:"id"`
	Role        Role         `json:"role" msgpack:"role"`
	Text        string       `json:"text" msgpack:"text"`
	Attachments []Attachment `json:"attachments,omitzero" msgpack:"attachments,omitempty"`
	Hidden      []string     `json:"hidden,omitzero" msgpack:"hidden,omitempty"`
}

// VisibleText is the turn text with attachment blocks and hidden markers
// stripped. This is the form the intent heuristics look at.
func (t *Turn) VisibleText() string {
	return StripNoise(t.Text)
}

// HasAttachments reports whether the turn carries at least one attachment.
func (t *Turn) HasAttachments() bool {
	return len(t.Attachments) > 0
}

// AgentContext aggregates everything one request needs: the normalized turn
// history, the resolved behavioral instruction, an optional pre-existing
// document, and identifiers. Built once per request, discarded after.
type AgentContext struct {
	Turns        []*Turn
	Instruction  string
	DocumentText string

	UserID         string
	ConversationID string
}

// LastUserTurn returns the most recent user turn, or nil.
func (ac *AgentContext) LastUserTurn() *Turn {
	return LastUserTurn(ac.Turns)
}

// LastUserTurn returns the most recent user turn in turns, or nil.
func LastUserTurn(turns []*Turn) *Turn {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == RoleUser {
			return turns[i]
		}
	}
	return nil
}

// AssistantBefore returns the assistant turn immediately preceding the most
// recent user turn, or nil. Used to detect confirmations of a proposed edit.
func AssistantBefore(turns []*Turn) *Turn {
	i := len(turns) - 1
	for ; i >= 0; i-- {
		if turns[i].Role == RoleUser {
			break
		}
	}
	for i--; i >= 0; i-- {
		if turns[i].Role == RoleAssistant {
			return turns[i]
		}
	}
	return nil
}

// Transcript renders turns as role-prefixed lines, the source material for
// document synthesis.
func Transcript(turns []*Turn) string {
	var sb strings.Builder
	for _, t := range turns {
		if t.Text == "" {
			continue
		}
		sb.WriteString(t.Role.String())
		sb.WriteString(": ")
		sb.WriteString(t.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Window returns at most n trailing turns.
func Window(turns []*Turn, n int) []*Turn {
	if len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}

func newTurnID() string {
	return uuid.NewString()
}
