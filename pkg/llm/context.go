package llm

import "iter"

var _ ModelContext = (*modelContext)(nil)

// ContextBuilder assembles a ModelContext incrementally.
type ContextBuilder struct {
	Prompts  []*Prompt
	Messages []*Message

	Params *ModelParams
}

// Build snapshots the builder into an immutable ModelContext.
func (cb *ContextBuilder) Build() ModelContext {
	return &modelContext{
		prompts:  cb.Prompts,
		messages: cb.Messages,
		params:   cb.Params,
	}
}

// PromptText appends instruction text. Consecutive prompts with the same
// name are merged into one block.
func (cb *ContextBuilder) PromptText(name, text string) {
	if n := len(cb.Prompts); n > 0 && cb.Prompts[n-1].Name == name {
		p := cb.Prompts[n-1]
		if p.Text != "" {
			p.Text += "\n" + text
		} else {
			p.Text = text
		}
		return
	}
	cb.Prompts = append(cb.Prompts, &Prompt{Name: name, Text: text})
}

// AddMessage appends a message. Consecutive messages from the same role and
// name are merged, since most provider APIs expect alternating roles.
func (cb *ContextBuilder) AddMessage(msg *Message) {
	if n := len(cb.Messages); n > 0 {
		last := cb.Messages[n-1]
		if last.Role == msg.Role && last.Name == msg.Name {
			if last.Text != "" {
				last.Text += "\n" + msg.Text
			} else {
				last.Text = msg.Text
			}
			return
		}
	}
	cb.Messages = append(cb.Messages, msg)
}

// UserText appends a user message.
func (cb *ContextBuilder) UserText(name, text string) {
	cb.AddMessage(&Message{Role: RoleUser, Name: name, Text: text})
}

// ModelText appends a model (assistant) message.
func (cb *ContextBuilder) ModelText(name, text string) {
	cb.AddMessage(&Message{Role: RoleModel, Name: name, Text: text})
}

type modelContext struct {
	prompts  []*Prompt
	messages []*Message
	params   *ModelParams
}

func (mctx *modelContext) Prompts() iter.Seq[*Prompt] {
	return func(yield func(*Prompt) bool) {
		for _, prompt := range mctx.prompts {
			if !yield(prompt) {
				return
			}
		}
	}
}

func (mctx *modelContext) Messages() iter.Seq[*Message] {
	return func(yield func(*Message) bool) {
		for _, message := range mctx.messages {
			if !yield(message) {
				return
			}
		}
	}
}

func (mctx *modelContext) Params() *ModelParams {
	return mctx.params
}
