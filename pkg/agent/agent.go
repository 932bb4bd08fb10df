// Package agent executes one conversation turn end to end: it normalizes
// the inbound shapes, resolves the behavioral instruction, decides the
// route, then either streams a chat reply or runs the document synthesis
// pipeline. All progress goes to one event feed regardless of route.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/protoscribe/protoscribe/pkg/artifact"
	"github.com/protoscribe/protoscribe/pkg/convstore"
	"github.com/protoscribe/protoscribe/pkg/dialog"
	"github.com/protoscribe/protoscribe/pkg/intent"
	"github.com/protoscribe/protoscribe/pkg/llm"
	"github.com/protoscribe/protoscribe/pkg/pipeline"
)

// Agent handles conversation turns. The three model names may point at the
// same or different backends behind the Generator (usually an [llm.Mux]).
type Agent struct {
	Generator llm.Generator

	ChatModel       string
	ClassifierModel string
	DocumentModel   string

	Store     *convstore.Store
	Artifacts artifact.Store

	PipelineBudget time.Duration
}

// Request is one inbound conversation turn with its context.
type Request struct {
	Messages []dialog.InboundMessage
	Files    []dialog.InboundFile

	UserID         string
	ConversationID string

	// DocumentText is the pre-existing generated document, if any.
	DocumentText string

	// Instruction overrides the stored behavioral instruction when set.
	Instruction string
}

// Result reports what a handled turn produced.
type Result struct {
	Decision intent.Decision

	// Reply is the assistant text on the chat route.
	Reply string

	// Markdown is the rendered protocol on the document route.
	Markdown string
}

// HandleTurn processes one turn and streams its progress to feed. The feed
// is closed when HandleTurn returns.
func (a *Agent) HandleTurn(ctx context.Context, req *Request, feed *pipeline.Feed) (*Result, error) {
	defer feed.Close()

	ac := &dialog.AgentContext{
		Turns:          dialog.Normalize(req.Messages, req.Files),
		Instruction:    a.instruction(ctx, req),
		DocumentText:   req.DocumentText,
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
	}

	classifier := &intent.Classifier{Generator: a.Generator, Model: a.ClassifierModel}
	decision := intent.Resolve(ctx, ac, classifier)
	slog.Info("agent: route decided",
		"route", decision.Route,
		"reason", decision.Reason,
		"conversation", req.ConversationID)

	if decision.Route == intent.RouteDocument {
		pipe := &pipeline.Pipeline{
			Generator: a.Generator,
			Model:     a.DocumentModel,
			Store:     a.Store,
			Artifacts: a.Artifacts,
			Budget:    a.PipelineBudget,
		}
		md, err := pipe.Run(ctx, ac, feed)
		if err != nil {
			return nil, err
		}
		return &Result{Decision: decision, Markdown: md}, nil
	}

	reply, err := a.chat(ctx, ac, feed)
	if err != nil {
		return nil, err
	}
	a.persistChat(ctx, ac, reply)
	return &Result{Decision: decision, Reply: reply}, nil
}

// instruction resolves the behavioral instruction: request override first,
// then the stored one. A store failure falls back to the embedded default
// path inside convstore on the next call; here it only logs.
func (a *Agent) instruction(ctx context.Context, req *Request) string {
	if req.Instruction != "" {
		return req.Instruction
	}
	if a.Store == nil {
		return ""
	}
	instr, err := a.Store.Instruction(ctx)
	if err != nil {
		slog.Warn("agent: instruction lookup failed", "error", err)
		return ""
	}
	return instr
}

// chat streams a free-form assistant reply as a text event block.
func (a *Agent) chat(ctx context.Context, ac *dialog.AgentContext, feed *pipeline.Feed) (string, error) {
	cb := &llm.ContextBuilder{}
	if sys := systemPrompt(ac); sys != "" {
		cb.PromptText("", sys)
	}
	for _, t := range ac.Turns {
		switch t.Role {
		case dialog.RoleAssistant:
			cb.ModelText("", t.Text)
		case dialog.RoleSystem:
			cb.PromptText("", t.Text)
		default:
			cb.UserText("", t.Text)
		}
	}

	stream, err := a.Generator.GenerateStream(ctx, a.ChatModel, cb.Build())
	if err != nil {
		return "", fmt.Errorf("agent: chat stream: %w", err)
	}
	defer stream.Close()

	id := "chat-" + uuid.NewString()
	feed.Emit(ctx, pipeline.Event{Type: pipeline.EventTextStart, ID: id})
	var reply strings.Builder
	for {
		chunk, err := stream.Next()
		if err != nil {
			var state *llm.State
			if errors.As(err, &state) && state.Status() != llm.StatusError {
				break
			}
			feed.Emit(ctx, pipeline.Event{Type: pipeline.EventTextEnd, ID: id})
			return "", fmt.Errorf("agent: chat stream: %w", err)
		}
		if chunk.Text == "" {
			continue
		}
		reply.WriteString(chunk.Text)
		feed.Emit(ctx, pipeline.Event{Type: pipeline.EventTextDelta, ID: id, Delta: chunk.Text})
	}
	feed.Emit(ctx, pipeline.Event{Type: pipeline.EventTextEnd, ID: id})
	return reply.String(), nil
}

// persistChat stores the finished turns. Failure is logged only; the reply
// is already on the wire.
func (a *Agent) persistChat(ctx context.Context, ac *dialog.AgentContext, reply string) {
	if a.Store == nil || ac.UserID == "" {
		return
	}
	finished := append(slices.Clone(ac.Turns), &dialog.Turn{
		ID:   uuid.NewString(),
		Role: dialog.RoleAssistant,
		Text: reply,
	})
	var err error
	if ac.ConversationID != "" {
		_, err = a.Store.Update(ctx, ac.ConversationID, finished, nil)
		if errors.Is(err, convstore.ErrNotFound) {
			_, err = a.Store.Save(ctx, ac.UserID, finished, ac.DocumentText)
		}
	} else {
		_, err = a.Store.Save(ctx, ac.UserID, finished, ac.DocumentText)
	}
	if err != nil {
		slog.Error("agent: chat persistence failed", "conversation", ac.ConversationID, "error", err)
	}
}

const attachmentFramingFmt = `
===== ВЛОЖЕНИЯ ПОЛЬЗОВАТЕЛЯ (КОНТЕКСТ) =====
%s

ИНСТРУКЦИЯ ПО РАБОТЕ С ВЛОЖЕНИЯМИ:
1. Это справочные материалы. НЕ делай их краткий пересказ (summary), если пользователь об этом явно не попросил.
2. Используй информацию из них только для ответов на конкретные вопросы или выполнения задач пользователя.
3. Если пользователь не задал вопрос, просто подтверди получение файлов и скажи, что готов работать с ними согласно твоей основной инструкции.
===== КОНЕЦ ВЛОЖЕНИЙ =====`

// systemPrompt is the behavioral instruction plus, when the conversation
// carries attachments, the framed attachment context block.
func systemPrompt(ac *dialog.AgentContext) string {
	sys := ac.Instruction
	if actx := dialog.AttachmentContext(ac.Turns); actx != "" {
		sys += fmt.Sprintf(attachmentFramingFmt, actx)
	}
	return sys
}
