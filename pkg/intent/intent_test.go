package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/protoscribe/protoscribe/pkg/dialog"
	"github.com/protoscribe/protoscribe/pkg/llm"
)

func TestGenerationSignal(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"сформируй протокол обследования", true},
		{"подготовь итоговый документ", true},
		{"покажи финальный регламент", true},
		{"сделай регламент", true},
		{"сформируй", false},
		{"расскажи про документ", false},
		{"какая сегодня погода", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := GenerationSignal(tt.text); got != tt.want {
			t.Errorf("GenerationSignal(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestEditSignal(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		prev     string
		want     bool
	}{
		{"verb + section keyword", "измени раздел участников", "", true},
		{"verb + dotted ref", "убери подпись из 2.3", "", true},
		{"verb + in-document", "добавь это в документ", "", true},
		{"verb without target", "измени немного", "", false},
		{"confirmation after proposal", "да", "Верно ли, что нужно удалить пункт 3? Если да, я внесу эти изменения.", true},
		{"confirmation without proposal", "да", "Спасибо за информацию, продолжим.", false},
		{"confirmation no assistant", "ок", "", false},
		{"long sentence starting with да", "давайте обсудим погоду", "я внесу изменения", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EditSignal(tt.user, tt.prev); got != tt.want {
				t.Errorf("EditSignal(%q, %q) = %v, want %v", tt.user, tt.prev, got, tt.want)
			}
		})
	}
}

func TestAttachmentReadSignal(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"прочитай файл и скажи что там", true},
		{"кратко перескажи презентацию", true},
		{"summary файла", true},
		{"прочитай файл и внеси в документ", false},
		{"изучи вопрос", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := AttachmentReadSignal(tt.text); got != tt.want {
			t.Errorf("AttachmentReadSignal(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestUploadOnlySignal(t *testing.T) {
	withFile := &dialog.Turn{
		Role:        dialog.RoleUser,
		Attachments: []dialog.Attachment{{Name: "слайды.pptx"}},
	}
	if !UploadOnlySignal(withFile) {
		t.Error("attachment with empty text must be upload-only")
	}
	withFile.Text = "посмотри"
	if UploadOnlySignal(withFile) {
		t.Error("attachment with text is not upload-only")
	}
	if UploadOnlySignal(&dialog.Turn{Role: dialog.RoleUser, Text: "привет"}) {
		t.Error("no attachments is not upload-only")
	}
	if UploadOnlySignal(nil) {
		t.Error("nil turn is not upload-only")
	}
}

func TestSignalsOrderIndependent(t *testing.T) {
	text := "прочитай файл и сформируй протокол"
	a1, b1 := AttachmentReadSignal(text), GenerationSignal(text)
	b2, a2 := GenerationSignal(text), AttachmentReadSignal(text)
	if a1 != a2 || b1 != b2 {
		t.Error("signals must be pure and order independent")
	}
}

func ctxWith(doc string, turns ...*dialog.Turn) *dialog.AgentContext {
	return &dialog.AgentContext{Turns: turns, DocumentText: doc, Instruction: "инструкция"}
}

func userTurn(text string) *dialog.Turn {
	return &dialog.Turn{Role: dialog.RoleUser, Text: text}
}

func assistantTurn(text string) *dialog.Turn {
	return &dialog.Turn{Role: dialog.RoleAssistant, Text: text}
}

func TestDecidePrecedence(t *testing.T) {
	tests := []struct {
		name       string
		ac         *dialog.AgentContext
		classified Route
		want       Route
	}{
		{
			"upload only wins over classifier",
			ctxWith("", &dialog.Turn{
				Role:        dialog.RoleUser,
				Attachments: []dialog.Attachment{{Name: "ф.pdf"}},
			}),
			RouteDocument,
			RouteChat,
		},
		{
			"read attachment is chat",
			ctxWith("", userTurn("прочитай файл и опиши таблицу")),
			RouteDocument,
			RouteChat,
		},
		{
			"edit overrides classifier chat",
			ctxWith("существующий документ", userTurn("измени пункт 2.1")),
			RouteChat,
			RouteDocument,
		},
		{
			"edit without existing document still document",
			ctxWith("", userTurn("удали раздел 3")),
			RouteChat,
			RouteDocument,
		},
		{
			"generation overrides classifier chat",
			ctxWith("", userTurn("сформируй протокол обследования")),
			RouteChat,
			RouteDocument,
		},
		{
			"classifier resolves ambiguity",
			ctxWith("", userTurn("вся информация собрана")),
			RouteDocument,
			RouteDocument,
		},
		{
			"default chat",
			ctxWith("", userTurn("расскажи подробнее")),
			RouteChat,
			RouteChat,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.ac, tt.classified)
			if d.Route != tt.want {
				t.Errorf("Decide = %s (%s), want %s", d.Route, d.Reason, tt.want)
			}
			if d.Reason == "" {
				t.Error("decision must carry a reason")
			}
		})
	}
}

func TestDecideEditConfirmation(t *testing.T) {
	ac := ctxWith("документ",
		userTurn("убери второго участника"),
		assistantTurn("Верно ли, что нужно удалить пункт с участником? Если да, я внесу эти изменения."),
		userTurn("да"),
	)
	d := Decide(ac, RouteChat)
	if d.Route != RouteDocument {
		t.Fatalf("confirmation after edit proposal must route to document, got %s (%s)", d.Route, d.Reason)
	}
}

func TestDecideEditIgnoresInlinedAttachment(t *testing.T) {
	turn := userTurn("что скажешь?\n\n---\nВложенный файл: правки.docx\nизмени пункт 2.3\n---")
	d := Decide(ctxWith("", turn), RouteChat)
	if d.Route != RouteChat {
		t.Fatalf("edit phrasing inside attachment block must not trigger edit route, got %s", d.Route)
	}
}

// scriptedGenerator streams a fixed raw text, or fails.
type scriptedGenerator struct {
	raw string
	err error
}

func (g *scriptedGenerator) GenerateStream(_ context.Context, _ string, _ llm.ModelContext) (llm.Stream, error) {
	if g.err != nil {
		return nil, g.err
	}
	sb := llm.NewStreamBuilder(4)
	go func() {
		sb.Add(&llm.Chunk{Role: llm.RoleModel, Text: g.raw})
		sb.Done(llm.Usage{})
	}()
	return sb.Stream(), nil
}

func (g *scriptedGenerator) Invoke(_ context.Context, _ string, _ llm.ModelContext, _ *llm.Shape) (llm.Usage, string, error) {
	return llm.Usage{}, "", errors.New("not used")
}

func classify(t *testing.T, raw string, err error, turns ...*dialog.Turn) Route {
	t.Helper()
	c := &Classifier{Generator: &scriptedGenerator{raw: raw, err: err}, Model: "test"}
	return c.Classify(context.Background(), ctxWith("", turns...))
}

func TestClassifyParsesPlainJSON(t *testing.T) {
	got := classify(t, `{"type":"document","confidence":0.9,"reasoning":"готово"}`, nil,
		userTurn("информация собрана, двигаемся дальше"))
	if got != RouteDocument {
		t.Errorf("want document, got %s", got)
	}
}

func TestClassifyBraceExtraction(t *testing.T) {
	got := classify(t, `Sure! {"type":"document","confidence":0.9} thanks`, nil,
		userTurn("продолжаем"))
	if got != RouteDocument {
		t.Errorf("brace extraction failed, got %s", got)
	}
}

func TestClassifyStripsThinkingAndFences(t *testing.T) {
	raw := "<think>рассуждаю про документ...</think>\n```json\n{\"type\":\"chat\",\"confidence\":0.8}\n```"
	if got := classify(t, raw, nil, userTurn("вопрос")); got != RouteChat {
		t.Errorf("want chat, got %s", got)
	}
}

func TestClassifyGarbageFallsBackToChat(t *testing.T) {
	for _, raw := range []string{"", "no json here", "{}", "{"} {
		if got := classify(t, raw, nil, userTurn("обычный вопрос")); got != RouteChat {
			t.Errorf("raw %q: want chat fallback, got %s", raw, got)
		}
	}
}

func TestClassifyUnknownTypeCoercedToChat(t *testing.T) {
	got := classify(t, `{"type":"banana","confidence":0.99}`, nil, userTurn("вопрос"))
	if got != RouteChat {
		t.Errorf("unknown type must coerce to chat, got %s", got)
	}
}

func TestClassifyLowConfidenceHeuristicOverride(t *testing.T) {
	got := classify(t, `{"type":"chat","confidence":0.3}`, nil,
		userTurn("ну сформируй уже документ пожалуйста"))
	if got != RouteDocument {
		t.Errorf("low confidence + generation heuristic must override to document, got %s", got)
	}
}

func TestClassifyLowConfidenceWithoutHeuristicAccepted(t *testing.T) {
	got := classify(t, `{"type":"document","confidence":0.3}`, nil, userTurn("хм"))
	if got != RouteDocument {
		t.Errorf("low confidence type still accepted, got %s", got)
	}
}

func TestClassifyInvocationErrorNeverPropagates(t *testing.T) {
	got := classify(t, "", errors.New("transport down"), userTurn("сформируй протокол"))
	if got != RouteDocument {
		t.Errorf("invocation failure must fall back to heuristic, got %s", got)
	}
	got = classify(t, "", errors.New("transport down"), userTurn("обычный вопрос"))
	if got != RouteChat {
		t.Errorf("invocation failure without heuristic must be chat, got %s", got)
	}
}

func TestClassifyRepairsMalformedJSON(t *testing.T) {
	got := classify(t, `{type: "document", confidence: 0.8,}`, nil, userTurn("дальше"))
	if got != RouteDocument {
		t.Errorf("lenient repair failed, got %s", got)
	}
}

func TestClassifyUploadOnlyShortCircuits(t *testing.T) {
	// Generator would say document; upload-only must win without consulting it.
	c := &Classifier{Generator: &scriptedGenerator{raw: `{"type":"document","confidence":1}`}, Model: "test"}
	got := c.Classify(context.Background(), ctxWith("", &dialog.Turn{
		Role:        dialog.RoleUser,
		Attachments: []dialog.Attachment{{Name: "ф.pptx"}},
	}))
	if got != RouteChat {
		t.Errorf("upload-only must classify as chat, got %s", got)
	}
}
