package dialog

import (
	"strconv"
	"strings"
)

// InboundPart is one element of a parts-array message.
type InboundPart struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitzero"`
	ID        string `json:"id,omitzero"`
	Filename  string `json:"filename,omitzero"`
	URL       string `json:"url,omitzero"`
	Data      string `json:"data,omitzero"`
	MediaType string `json:"mediaType,omitzero"`
	MIMEType  string `json:"mimeType,omitzero"`
	Content   string `json:"content,omitzero"`
}

// InboundMeta carries client-side message metadata.
type InboundMeta struct {
	Attachments []Attachment `json:"attachments,omitzero"`
}

// InboundMessage is the wire shape of one message. Clients send any mix of
// a plain Content string, a Parts array, and metadata attachments.
type InboundMessage struct {
	ID       string        `json:"id,omitzero"`
	Role     string        `json:"role,omitzero"`
	Content  string        `json:"content,omitzero"`
	Parts    []InboundPart `json:"parts,omitzero"`
	Metadata *InboundMeta  `json:"metadata,omitzero"`
}

// InboundFile is a request-level file upload attached to the last user
// message.
type InboundFile struct {
	ID        string `json:"id,omitzero"`
	Name      string `json:"name,omitzero"`
	Filename  string `json:"filename,omitzero"`
	URL       string `json:"url,omitzero"`
	Data      string `json:"data,omitzero"`
	MediaType string `json:"mediaType,omitzero"`
	MIMEType  string `json:"mimeType,omitzero"`
	Content   string `json:"content,omitzero"`
}

func (f *InboundFile) name() string {
	if f.Filename != "" {
		return f.Filename
	}
	if f.Name != "" {
		return f.Name
	}
	return "attachment"
}

func (f *InboundFile) mediaType() string {
	if f.MediaType != "" {
		return f.MediaType
	}
	return f.MIMEType
}

// plainText extracts the text of a message, preferring the first text part.
func (m *InboundMessage) plainText() string {
	for _, p := range m.Parts {
		if p.Type == "text" && p.Text != "" {
			return p.Text
		}
	}
	return m.Content
}

func (m *InboundMessage) attachments() []Attachment {
	var out []Attachment
	if m.Metadata != nil {
		out = append(out, m.Metadata.Attachments...)
	}
	for _, p := range m.Parts {
		if p.Type != "file" {
			continue
		}
		if p.URL == "" && p.Data == "" && p.Content == "" {
			continue
		}
		name := p.Filename
		if name == "" {
			name = "attachment"
		}
		mt := p.MediaType
		if mt == "" {
			mt = p.MIMEType
		}
		out = append(out, Attachment{
			ID:        p.ID,
			Name:      name,
			MediaType: mt,
			Content:   p.Content,
		})
	}
	return out
}

// Normalize converts inbound messages into canonical turns. Request-level
// files are attached to the last user message that has no files of its own;
// with no messages at all a bare user turn is synthesized to carry them.
//
// Per turn: hidden-content markers are captured and stripped, attachment
// text is inlined as framed blocks, unknown roles are coerced to user, and
// turns with no text and no attachments are dropped.
func Normalize(messages []InboundMessage, files []InboundFile) []*Turn {
	if len(files) > 0 {
		messages = attachFiles(messages, files)
	}

	turns := make([]*Turn, 0, len(messages))
	for i := range messages {
		m := &messages[i]
		raw := m.plainText()
		hidden := ExtractHidden(raw)
		visible := strings.TrimSpace(hiddenRe.ReplaceAllString(raw, ""))
		atts := m.attachments()

		var sb strings.Builder
		sb.WriteString(visible)
		for _, att := range atts {
			if att.Content == "" {
				continue
			}
			sb.WriteString(InlineAttachment(att.Name, att.Content))
			hidden = append(hidden, att.Content)
		}
		text := sb.String()
		if text == "" && len(atts) == 0 {
			continue
		}

		id := m.ID
		if id == "" {
			id = newTurnID()
		}
		turns = append(turns, &Turn{
			ID:          id,
			Role:        normRole(m.Role),
			Text:        text,
			Attachments: atts,
			Hidden:      hidden,
		})
	}
	return turns
}

func attachFiles(messages []InboundMessage, files []InboundFile) []InboundMessage {
	parts := make([]InboundPart, 0, len(files))
	for _, f := range files {
		if f.URL == "" && f.Data == "" && f.Content == "" {
			continue
		}
		parts = append(parts, InboundPart{
			Type:      "file",
			ID:        f.ID,
			Filename:  f.name(),
			URL:       f.URL,
			Data:      f.Data,
			MediaType: f.mediaType(),
			Content:   f.Content,
		})
	}
	if len(parts) == 0 {
		return messages
	}
	if len(messages) == 0 {
		return []InboundMessage{{Role: "user", Parts: parts}}
	}
	for i := len(messages) - 1; i >= 0; i-- {
		m := &messages[i]
		if m.Role != "user" && m.Role != "" {
			continue
		}
		for _, p := range m.Parts {
			if p.Type == "file" {
				return messages
			}
		}
		m.Parts = append(m.Parts, parts...)
		return messages
	}
	return messages
}

func normRole(role string) Role {
	switch role {
	case "assistant":
		return RoleAssistant
	case "system":
		return RoleSystem
	default:
		return RoleUser
	}
}

const (
	contextEntryLimit = 1200
	contextTotalLimit = 4000
)

// AttachmentContext summarizes extracted attachment text across all turns
// into a bounded block suitable for framing inside the system prompt.
func AttachmentContext(turns []*Turn) string {
	var entries []string
	n := 0
	for _, t := range turns {
		for i, hidden := range t.Hidden {
			hidden = strings.TrimSpace(hidden)
			if hidden == "" {
				continue
			}
			n++
			label := "Документ " + strconv.Itoa(n)
			if i < len(t.Attachments) && t.Attachments[i].Name != "" {
				label = `Документ "` + t.Attachments[i].Name + `"`
			}
			if len(hidden) > contextEntryLimit {
				hidden = hidden[:truncAt(hidden, contextEntryLimit)] + " …"
			}
			entries = append(entries, label+":\n"+hidden)
		}
	}
	out := strings.Join(entries, "\n\n")
	if len(out) > contextTotalLimit {
		out = out[:truncAt(out, contextTotalLimit)]
	}
	return out
}

// truncAt backs n off to the previous rune boundary so a multi-byte
// character is never split.
func truncAt(s string, n int) int {
	for n > 0 && s[n-1]&0xC0 == 0x80 {
		n--
	}
	return n
}
