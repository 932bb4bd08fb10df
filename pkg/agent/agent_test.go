package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/protoscribe/protoscribe/pkg/convstore"
	"github.com/protoscribe/protoscribe/pkg/dialog"
	"github.com/protoscribe/protoscribe/pkg/intent"
	"github.com/protoscribe/protoscribe/pkg/kv"
	"github.com/protoscribe/protoscribe/pkg/llm"
	"github.com/protoscribe/protoscribe/pkg/pipeline"
)

// fakeGenerator replays scripted responses in call order across all callers
// (classifier, chat, pipeline).
type fakeGenerator struct {
	mu      sync.Mutex
	streams [][]string
	invokes []string

	streamCalls int
}

func (g *fakeGenerator) GenerateStream(_ context.Context, _ string, _ llm.ModelContext) (llm.Stream, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.streamCalls++
	if len(g.streams) == 0 {
		return nil, errors.New("no scripted stream")
	}
	chunks := g.streams[0]
	g.streams = g.streams[1:]
	sb := llm.NewStreamBuilder(len(chunks) + 1)
	for _, c := range chunks {
		sb.Add(&llm.Chunk{Role: llm.RoleModel, Text: c})
	}
	sb.Done(llm.Usage{})
	return sb.Stream(), nil
}

func (g *fakeGenerator) Invoke(_ context.Context, _ string, _ llm.ModelContext, _ *llm.Shape) (llm.Usage, string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.invokes) == 0 {
		return llm.Usage{}, "", errors.New("no scripted invoke")
	}
	raw := g.invokes[0]
	g.invokes = g.invokes[1:]
	return llm.Usage{}, raw, nil
}

const analysisJSON = `{"hasContradictions":false,"contradictions":[],"hasAmbiguities":false,` +
	`"ambiguities":[],"missingCriticalInfo":[],"confidence":"high"}`

const protocolJSON = `{"protocolNumber":"№1","meetingDate":"01.02.2025",` +
	`"agenda":{"title":"Обследование","items":[]},` +
	`"participants":{"customer":{"organizationName":"","people":[]},"executor":{"organizationName":"","people":[]}},` +
	`"termsAndDefinitions":[],"abbreviations":[],"meetingContent":{"topics":[]},` +
	`"questionsAndAnswers":[],"decisions":[],"openQuestions":[],` +
	`"approval":{"executorSignature":{"organization":"","representative":""},` +
	`"customerSignature":{"organization":"","representative":""}}}`

func newAgent(t *testing.T, gen *fakeGenerator) *Agent {
	t.Helper()
	mem := kv.NewMemory()
	t.Cleanup(func() { mem.Close() })
	return &Agent{
		Generator:       gen,
		ChatModel:       "chat",
		ClassifierModel: "classifier",
		DocumentModel:   "document",
		Store:           convstore.New(mem),
	}
}

func handle(t *testing.T, a *Agent, req *Request) (*Result, []pipeline.Event, error) {
	t.Helper()
	feed := pipeline.NewFeed()
	var events []pipeline.Event
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range feed.Events() {
			events = append(events, e)
		}
	}()
	res, err := a.HandleTurn(context.Background(), req, feed)
	<-done
	return res, events, err
}

func countType(events []pipeline.Event, typ pipeline.EventType) int {
	n := 0
	for _, e := range events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func TestHandleTurnChatRoute(t *testing.T) {
	gen := &fakeGenerator{
		streams: [][]string{
			{`{"type":"chat","confidence":0.9,"reasoning":"обычный вопрос"}`}, // classifier
			{"Здравствуйте! ", "Чем могу помочь?"},                            // chat reply
		},
	}
	a := newAgent(t, gen)

	res, events, err := handle(t, a, &Request{
		Messages: []dialog.InboundMessage{{Role: "user", Content: "привет"}},
		UserID:   "user-1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision.Route != intent.RouteChat {
		t.Fatalf("route = %s", res.Decision.Route)
	}
	if res.Reply != "Здравствуйте! Чем могу помочь?" {
		t.Fatalf("reply = %q", res.Reply)
	}
	if countType(events, pipeline.EventTextStart) != 1 || countType(events, pipeline.EventTextEnd) != 1 {
		t.Fatal("chat reply must be framed by one text-start/text-end pair")
	}
	if countType(events, pipeline.EventDataDocDelta) != 0 {
		t.Fatal("chat route must emit no document events")
	}

	// The finished exchange was persisted as a new conversation.
	list, err := a.Store.List(context.Background(), "user-1")
	if err != nil || len(list) != 1 {
		t.Fatalf("List = %v, %v", list, err)
	}
	last := list[0].Turns[len(list[0].Turns)-1]
	if last.Role != dialog.RoleAssistant || last.Text != res.Reply {
		t.Fatalf("persisted turn = %+v", last)
	}
}

func TestHandleTurnDocumentRoute(t *testing.T) {
	gen := &fakeGenerator{
		// No classifier stream: the explicit command is decided heuristically.
		streams: [][]string{
			{"анализ\n"},      // analysis narrative
			{"обоснование\n"}, // protocol rationale
		},
		invokes: []string{analysisJSON, protocolJSON},
	}
	a := newAgent(t, gen)

	res, events, err := handle(t, a, &Request{
		Messages: []dialog.InboundMessage{
			{Role: "user", Content: "Вот расшифровка встречи."},
			{Role: "user", Content: "Сформируй протокол обследования."},
		},
		UserID: "user-1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision.Route != intent.RouteDocument {
		t.Fatalf("route = %s (%s)", res.Decision.Route, res.Decision.Reason)
	}
	if !strings.Contains(res.Markdown, "ПРОТОКОЛ ОБСЛЕДОВАНИЯ №1") {
		t.Fatalf("markdown = %q", res.Markdown)
	}
	for _, typ := range []pipeline.EventType{
		pipeline.EventDataClear, pipeline.EventDataTitle,
		pipeline.EventDataDocDelta, pipeline.EventDataFinish,
	} {
		if countType(events, typ) == 0 {
			t.Errorf("missing %s event", typ)
		}
	}
	if gen.streamCalls != 2 {
		t.Fatalf("streamCalls = %d, classifier must not run on an explicit command", gen.streamCalls)
	}
}

func TestHandleTurnUploadOnly(t *testing.T) {
	gen := &fakeGenerator{
		streams: [][]string{
			{"Файл получен, готов работать с ним."}, // chat reply
		},
	}
	a := newAgent(t, gen)

	res, events, err := handle(t, a, &Request{
		Files:  []dialog.InboundFile{{Filename: "план.pptx", Content: "Слайд 1: цели проекта"}},
		UserID: "user-1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision.Route != intent.RouteChat {
		t.Fatalf("route = %s", res.Decision.Route)
	}
	if !strings.Contains(res.Decision.Reason, "upload-only") {
		t.Fatalf("reason = %q", res.Decision.Reason)
	}
	for _, e := range events {
		switch e.Type {
		case pipeline.EventTextStart, pipeline.EventTextDelta, pipeline.EventTextEnd:
		default:
			t.Fatalf("unexpected %s event on upload-only turn", e.Type)
		}
	}
	if gen.streamCalls != 1 {
		t.Fatalf("streamCalls = %d, classifier must not run on upload-only", gen.streamCalls)
	}
}

func TestSystemPromptFramesAttachments(t *testing.T) {
	turns := dialog.Normalize(nil, []dialog.InboundFile{
		{Filename: "смета.xlsx", Content: "Строка 1: бюджет 5 млн"},
	})
	ac := &dialog.AgentContext{Turns: turns, Instruction: "Отвечай кратко."}

	sys := systemPrompt(ac)
	for _, want := range []string{
		"Отвечай кратко.",
		"===== ВЛОЖЕНИЯ ПОЛЬЗОВАТЕЛЯ (КОНТЕКСТ) =====",
		`Документ "смета.xlsx"`,
		"Строка 1: бюджет 5 млн",
		"===== КОНЕЦ ВЛОЖЕНИЙ =====",
	} {
		if !strings.Contains(sys, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}

	bare := &dialog.AgentContext{Instruction: "Отвечай кратко."}
	if got := systemPrompt(bare); got != "Отвечай кратко." {
		t.Fatalf("prompt without attachments = %q", got)
	}
}
