// Package pipeline turns a full conversation transcript into a
// ten-section survey protocol and streams its progress over an ordered
// event feed.
//
// One invocation is a strictly sequential state machine: transcript
// analysis (degradable), protocol generation (fatal on failure),
// deterministic rendering, then emission and persistence. The narrative
// calls hide latency; only the schema-constrained protocol call decides
// success.
package pipeline

import (
	"context"
	"encoding/base64"
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
	"github.com/protoscribe/protoscribe/pkg/llm"
	"github.com/protoscribe/protoscribe/pkg/protocol"
)

// DefaultBudget bounds one full invocation. No per-call sub-timeouts exist
// beyond it.
const DefaultBudget = 300 * time.Second

const (
	narrativeTemperature = 0.2
	protocolTemperature  = 0.1
)

// ErrProtocolGeneration is the only error that terminates an invocation and
// reaches the caller. Everything else is contained at its call site.
var ErrProtocolGeneration = errors.New("pipeline: protocol generation failed")

// Pipeline synthesizes protocols. Store and Artifacts are optional; when
// absent the corresponding persistence steps are skipped.
type Pipeline struct {
	Generator llm.Generator
	Model     string

	Store     *convstore.Store
	Artifacts artifact.Store

	// Budget overrides DefaultBudget when positive.
	Budget time.Duration

	// OnProtocol, when set, receives the generated protocol before rendering.
	OnProtocol func(*protocol.Protocol)
}

// Run executes one synthesis over the conversation in ac, streaming progress
// to feed. The feed is closed when Run returns. On success the rendered
// Markdown is returned and, when a store is configured, persisted together
// with the finished turns.
func (p *Pipeline) Run(ctx context.Context, ac *dialog.AgentContext, feed *Feed) (string, error) {
	budget := p.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	defer feed.Close()

	transcript := dialog.Transcript(ac.Turns)
	id := feed.CorrelationID()

	// The narrative text doubles as the assistant turn that gets persisted.
	var narrative strings.Builder
	text := func(delta string) {
		narrative.WriteString(delta)
		feed.Emit(ctx, Event{Type: EventTextDelta, ID: id, Delta: delta})
	}

	feed.Emit(ctx, Event{Type: EventTextStart, ID: id})

	// S1: streamed narrative analysis, then the structured one. Both are
	// best-effort; the user sees exactly one rendering of the analysis.
	text(stepAnalysis)
	streamed, _ := p.streamNarrative(ctx, analysisStreamPrompt(transcript), text)
	if streamed {
		text("\n")
	}
	analysis := p.analyze(ctx, transcript, streamed, text)

	// S2: streamed rationale, then the protocol itself.
	text(stepProtocol)
	if _, ok := p.streamNarrative(ctx, reasoningPrompt(transcript), text); ok {
		text("\n")
	}
	proto, err := p.generateProtocol(ctx, transcript, analysis)
	if err != nil {
		slog.Error("pipeline: protocol generation failed", "error", err)
		text(msgFatal)
		feed.Emit(ctx, Event{Type: EventTextEnd, ID: id})
		return "", fmt.Errorf("%w: %v", ErrProtocolGeneration, err)
	}
	if p.OnProtocol != nil {
		p.OnProtocol(proto)
	}

	// S3: deterministic rendering.
	md := protocol.Markdown(proto)

	// S4: emission, binary artifact, persistence.
	feed.Emit(ctx, Event{Type: EventDataClear})
	feed.Emit(ctx, Event{Type: EventDataTitle, Data: proto.Title()})
	for _, line := range strings.Split(md, "\n") {
		feed.Emit(ctx, Event{Type: EventDataDocDelta, Data: line + "\n"})
	}
	feed.Emit(ctx, Event{Type: EventDataFinish})

	text(msgDone)
	text(msgDocxReady)

	if docx, derr := protocol.DOCX(proto); derr != nil {
		slog.Error("pipeline: docx encoding failed", "error", derr)
		text(msgDocxFailed)
	} else {
		feed.Emit(ctx, Event{Type: EventDataDocx, Data: DocxPayload{
			Content:  base64.StdEncoding.EncodeToString(docx),
			Filename: proto.Filename(),
		}})
		p.storeArtifact(ctx, ac.ConversationID, proto, docx)
	}

	feed.Emit(ctx, Event{Type: EventTextEnd, ID: id})

	p.persist(ctx, ac, narrative.String(), md)

	return md, nil
}

// streamNarrative forwards the deltas of one free-form call to emit.
// Failures are logged, never surfaced. Returns whether anything was emitted
// and whether the stream ended cleanly.
func (p *Pipeline) streamNarrative(ctx context.Context, prompt string, emit func(string)) (emitted, ok bool) {
	cb := &llm.ContextBuilder{Params: &llm.ModelParams{Temperature: narrativeTemperature}}
	cb.UserText("", prompt)

	stream, err := p.Generator.GenerateStream(ctx, p.Model, cb.Build())
	if err != nil {
		slog.Warn("pipeline: narrative stream failed", "error", err)
		return false, false
	}
	defer stream.Close()

	for {
		chunk, err := stream.Next()
		if err != nil {
			var state *llm.State
			if errors.As(err, &state) && state.Status() != llm.StatusError {
				return emitted, true
			}
			slog.Warn("pipeline: narrative stream interrupted", "error", err)
			return emitted, false
		}
		if chunk.Text == "" {
			continue
		}
		emit(chunk.Text)
		emitted = true
	}
}

// analyze runs the schema-constrained transcript analysis. A nil return
// means the pipeline continues without analysis context. When the streamed
// narrative produced nothing, the structured result (or a skipped notice) is
// rendered instead so the user never sees zero or two analysis renderings.
func (p *Pipeline) analyze(ctx context.Context, transcript string, streamed bool, text func(string)) *protocol.TranscriptAnalysis {
	cb := &llm.ContextBuilder{Params: &llm.ModelParams{Temperature: narrativeTemperature}}
	cb.UserText("", analysisPrompt(transcript))

	var analysis protocol.TranscriptAnalysis
	_, raw, err := p.Generator.Invoke(ctx, p.Model, cb.Build(), protocol.AnalysisShape)
	if err == nil {
		err = llm.Decode(raw, &analysis)
	}
	if err != nil {
		slog.Warn("pipeline: transcript analysis degraded", "error", err)
		if !streamed {
			text(msgAnalysisSkipped)
		}
		return nil
	}
	if !streamed {
		renderAnalysis(&analysis, text)
	}
	return &analysis
}

func renderAnalysis(a *protocol.TranscriptAnalysis, text func(string)) {
	if a.HasContradictions && len(a.Contradictions) > 0 {
		text(headContradictions)
		for _, c := range a.Contradictions {
			text("  • " + c + "\n")
		}
		text("\n")
	}
	if a.HasAmbiguities && len(a.Ambiguities) > 0 {
		text(headAmbiguities)
		for _, amb := range a.Ambiguities {
			text("  • " + amb + "\n")
		}
		text("\n")
	}
	if len(a.MissingCriticalInfo) > 0 {
		text(headMissingInfo)
		for _, m := range a.MissingCriticalInfo {
			text("  • " + m + "\n")
		}
		text("\n")
	}
	text(fmt.Sprintf(confidenceDoneFmt, a.ConfidenceLabel()))
}

func (p *Pipeline) generateProtocol(ctx context.Context, transcript string, analysis *protocol.TranscriptAnalysis) (*protocol.Protocol, error) {
	cb := &llm.ContextBuilder{Params: &llm.ModelParams{Temperature: protocolTemperature}}
	cb.UserText("", protocolPrompt(transcript, analysis))

	_, raw, err := p.Generator.Invoke(ctx, p.Model, cb.Build(), protocol.Shape)
	if err != nil {
		return nil, err
	}
	var proto protocol.Protocol
	if err := llm.Decode(raw, &proto); err != nil {
		return nil, err
	}
	return &proto, nil
}

// storeArtifact keeps the binary downloadable after the stream ends.
// Failure is a warning; the client already received the inline payload.
func (p *Pipeline) storeArtifact(ctx context.Context, conversationID string, proto *protocol.Protocol, docx []byte) {
	if p.Artifacts == nil || conversationID == "" {
		return
	}
	err := p.Artifacts.Put(ctx, conversationID, &artifact.Artifact{
		Filename: proto.Filename(),
		Data:     docx,
	})
	if err != nil {
		slog.Warn("pipeline: artifact store failed", "conversation", conversationID, "error", err)
	}
}

// persist hands the finished turns and the rendered document to the store.
// Failure is logged only; the response is already on the wire.
func (p *Pipeline) persist(ctx context.Context, ac *dialog.AgentContext, narrative, markdown string) {
	if p.Store == nil || ac.UserID == "" {
		return
	}
	finished := append(slices.Clone(ac.Turns), &dialog.Turn{
		ID:   uuid.NewString(),
		Role: dialog.RoleAssistant,
		Text: narrative,
	})
	var err error
	if ac.ConversationID != "" {
		_, err = p.Store.Update(ctx, ac.ConversationID, finished, &markdown)
		if errors.Is(err, convstore.ErrNotFound) {
			_, err = p.Store.Save(ctx, ac.UserID, finished, markdown)
		}
	} else {
		_, err = p.Store.Save(ctx, ac.UserID, finished, markdown)
	}
	if err != nil {
		slog.Error("pipeline: persistence failed", "conversation", ac.ConversationID, "error", err)
	}
}
