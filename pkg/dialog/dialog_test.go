package dialog

import (
	"strings"
	"testing"
)

func TestStripNoise(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "сделай протокол", "сделай протокол"},
		{
			"attachment block",
			"прочитай файл\n\n---\nВложенный файл: notes.docx\nсодержимое\n---",
			"прочитай файл",
		},
		{
			"hidden marker",
			"вопрос <AI-HIDDEN>скрытый текст</AI-HIDDEN> остаётся",
			"вопрос  остаётся",
		},
		{
			"only attachment",
			"\n\n---\nВложенный файл: slides.pptx\nслайды\n---",
			"",
		},
		{"case insensitive marker", "<ai-hidden>x</ai-hidden>ok", "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripNoise(tt.in); got != tt.want {
				t.Errorf("StripNoise(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtractHidden(t *testing.T) {
	got := ExtractHidden("a <AI-HIDDEN>один</AI-HIDDEN> b <AI-HIDDEN>два</AI-HIDDEN>")
	if len(got) != 2 || got[0] != "один" || got[1] != "два" {
		t.Fatalf("ExtractHidden = %v", got)
	}
}

func TestNormalizePartsAndContent(t *testing.T) {
	turns := Normalize([]InboundMessage{
		{Role: "user", Content: "из content"},
		{Role: "assistant", Parts: []InboundPart{{Type: "text", Text: "из parts"}}},
		{Role: "tool", Content: "чужая роль"},
		{Role: "user", Content: "   "},
	}, nil)

	if len(turns) != 3 {
		t.Fatalf("want 3 turns, got %d", len(turns))
	}
	if turns[0].Text != "из content" || turns[1].Text != "из parts" {
		t.Errorf("texts: %q, %q", turns[0].Text, turns[1].Text)
	}
	if turns[2].Role != RoleUser {
		t.Errorf("unknown role must coerce to user, got %s", turns[2].Role)
	}
	for _, turn := range turns {
		if turn.ID == "" {
			t.Error("turn id must be assigned")
		}
	}
}

func TestNormalizeInlinesAttachmentContent(t *testing.T) {
	turns := Normalize([]InboundMessage{
		{
			Role:    "user",
			Content: "посмотри файл",
			Metadata: &InboundMeta{Attachments: []Attachment{
				{Name: "план.docx", Content: "раздел 1"},
			}},
		},
	}, nil)
	if len(turns) != 1 {
		t.Fatalf("want 1 turn, got %d", len(turns))
	}
	turn := turns[0]
	if !strings.Contains(turn.Text, "Вложенный файл: план.docx") {
		t.Errorf("attachment not inlined: %q", turn.Text)
	}
	if got := turn.VisibleText(); got != "посмотри файл" {
		t.Errorf("VisibleText = %q", got)
	}
	if len(turn.Hidden) != 1 || turn.Hidden[0] != "раздел 1" {
		t.Errorf("Hidden = %v", turn.Hidden)
	}
}

func TestNormalizeUploadOnly(t *testing.T) {
	turns := Normalize(nil, []InboundFile{
		{Filename: "слайды.pptx", URL: "blob:1", MediaType: "application/vnd.ms-powerpoint"},
	})
	if len(turns) != 1 {
		t.Fatalf("want synthesized turn, got %d", len(turns))
	}
	turn := turns[0]
	if turn.Role != RoleUser || !turn.HasAttachments() {
		t.Fatalf("unexpected turn: %+v", turn)
	}
	if turn.VisibleText() != "" {
		t.Errorf("upload-only turn must have empty visible text, got %q", turn.VisibleText())
	}
}

func TestNormalizeAttachesFilesToLastUserMessage(t *testing.T) {
	turns := Normalize([]InboundMessage{
		{Role: "user", Content: "старое"},
		{Role: "assistant", Content: "ответ"},
		{Role: "user", Content: "вот файл"},
	}, []InboundFile{{Name: "т.xlsx", URL: "blob:2"}})

	last := turns[len(turns)-1]
	if len(last.Attachments) != 1 || last.Attachments[0].Name != "т.xlsx" {
		t.Fatalf("file not attached to last user turn: %+v", last)
	}
	if len(turns[0].Attachments) != 0 {
		t.Error("file attached to wrong turn")
	}
}

func TestLastUserTurnAndAssistantBefore(t *testing.T) {
	turns := []*Turn{
		{Role: RoleUser, Text: "a"},
		{Role: RoleAssistant, Text: "Хотите, я применю эти изменения?"},
		{Role: RoleUser, Text: "да"},
	}
	if got := LastUserTurn(turns); got == nil || got.Text != "да" {
		t.Fatalf("LastUserTurn = %+v", got)
	}
	if got := AssistantBefore(turns); got == nil || !strings.Contains(got.Text, "применю") {
		t.Fatalf("AssistantBefore = %+v", got)
	}
	if got := AssistantBefore(turns[:1]); got != nil {
		t.Fatalf("AssistantBefore without assistant = %+v", got)
	}
}

func TestTranscript(t *testing.T) {
	turns := []*Turn{
		{Role: RoleUser, Text: "вопрос"},
		{Role: RoleAssistant, Text: "ответ"},
		{Role: RoleUser, Text: ""},
	}
	got := Transcript(turns)
	want := "user: вопрос\nassistant: ответ\n"
	if got != want {
		t.Errorf("Transcript = %q, want %q", got, want)
	}
}

func TestWindow(t *testing.T) {
	turns := make([]*Turn, 20)
	for i := range turns {
		turns[i] = &Turn{Role: RoleUser}
	}
	if got := Window(turns, 12); len(got) != 12 {
		t.Errorf("Window = %d turns", len(got))
	}
	if got := Window(turns[:3], 12); len(got) != 3 {
		t.Errorf("short Window = %d turns", len(got))
	}
}

func TestAttachmentContextBounds(t *testing.T) {
	long := strings.Repeat("ф", 2000)
	turns := []*Turn{
		{
			Role:        RoleUser,
			Attachments: []Attachment{{Name: "big.docx"}},
			Hidden:      []string{long},
		},
	}
	got := AttachmentContext(turns)
	if !strings.Contains(got, `Документ "big.docx"`) {
		t.Fatalf("missing label: %q", got[:50])
	}
	if len(got) > contextTotalLimit {
		t.Errorf("context exceeds total limit: %d", len(got))
	}
	if !strings.HasSuffix(got, "…") {
		t.Error("long entry must be truncated with ellipsis")
	}
}
