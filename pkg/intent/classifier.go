package intent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/protoscribe/protoscribe/pkg/dialog"
	"github.com/protoscribe/protoscribe/pkg/llm"
)

const (
	RouteChat     Route = "chat"
	RouteDocument Route = "document"
)

// Route is the destination of a user turn.
type Route string

const (
	classifierWindow        = 12
	classifierTurnTextLimit = 200
	classifierMinJSONLen    = 5
	lowConfidence           = 0.6
)

var (
	thinkBlockRe = regexp.MustCompile(`(?i)<think>[\s\S]*?</think>`)
	codeFenceRe  = regexp.MustCompile("(?i)```json|```")
)

type classification struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Classifier resolves ambiguous turns with one low-temperature free-form
// completion asking for a single JSON object. Every failure mode degrades to
// the heuristic fallback; Classify never returns an error.
type Classifier struct {
	Generator llm.Generator
	Model     string
}

// Classify returns the best-guess route for the last user turn.
func (c *Classifier) Classify(ctx context.Context, ac *dialog.AgentContext) Route {
	lastUser := ac.LastUserTurn()
	lastText := ""
	if lastUser != nil {
		lastText = lastUser.VisibleText()
	}

	if UploadOnlySignal(lastUser) {
		return RouteChat
	}
	// Deterministic fast path for explicit document commands.
	if ExplicitDocumentCommand(lastText) {
		return RouteDocument
	}

	raw, err := c.generate(ctx, ac, lastText)
	if err != nil {
		slog.Warn("intent: classifier invocation failed, using heuristic fallback", "error", err)
		return fallback(lastText)
	}
	return c.parse(raw, lastText)
}

func (c *Classifier) parse(raw, lastText string) Route {
	clean := thinkBlockRe.ReplaceAllString(strings.TrimSpace(raw), "")
	clean = strings.TrimSpace(codeFenceRe.ReplaceAllString(clean, ""))

	first := strings.Index(clean, "{")
	last := strings.LastIndex(clean, "}")
	if first >= 0 && last > first {
		clean = clean[first : last+1]
	}
	if first < 0 || len(clean) < classifierMinJSONLen {
		slog.Warn("intent: classifier returned no JSON object", "raw", truncate(raw, classifierTurnTextLimit))
		return fallback(lastText)
	}

	var obj classification
	if err := llm.Decode(clean, &obj); err != nil {
		slog.Warn("intent: classifier JSON unparsable", "error", err)
		return fallback(lastText)
	}
	if obj.Type != string(RouteChat) && obj.Type != string(RouteDocument) {
		obj.Type = string(RouteChat)
	}
	if obj.Confidence < lowConfidence {
		slog.Debug("intent: low confidence classification",
			"type", obj.Type, "confidence", obj.Confidence, "reasoning", obj.Reasoning)
		if ExplicitDocumentCommand(lastText) {
			return RouteDocument
		}
	}
	return Route(obj.Type)
}

func (c *Classifier) generate(ctx context.Context, ac *dialog.AgentContext, lastText string) (string, error) {
	cb := &llm.ContextBuilder{Params: &llm.ModelParams{Temperature: 0.1}}
	cb.UserText("", c.prompt(ac, lastText))

	stream, err := c.Generator.GenerateStream(ctx, c.Model, cb.Build())
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		chunk, err := stream.Next()
		if err != nil {
			var state *llm.State
			if errors.As(err, &state) && state.Status() != llm.StatusError {
				return sb.String(), nil
			}
			return "", err
		}
		sb.WriteString(chunk.Text)
	}
}

func (c *Classifier) prompt(ac *dialog.AgentContext, lastText string) string {
	var history strings.Builder
	for i, turn := range dialog.Window(ac.Turns, classifierWindow) {
		if i > 0 {
			history.WriteString("\n\n")
		}
		fmt.Fprintf(&history, "[%d] %s: %s", i+1, turn.Role, truncate(turn.Text, classifierTurnTextLimit))
	}

	return fmt.Sprintf(`Ты классификатор намерений в системе создания регламентов бизнес-процессов.

Отвечай ТОЛЬКО валидным JSON без Markdown, без блоков кода, без комментариев.
Формат: {"type":"chat|document","confidence":0.0-1.0,"reasoning":"..."}

ТВОЯ ЗАДАЧА: определить, хочет ли пользователь СЕЙЧАС получить сформированный документ, или продолжает диалог по сбору информации.

КОНТЕКСТ РАБОТЫ СИСТЕМЫ:
Система работает в 3 этапа:
1. Сбор общей информации о процессе (Этап 1)
2. Детальное описание шагов процесса (Этап 2)
3. Описание управления процессом (Этап 3)

После завершения сбора информации система формирует итоговый документ-регламент.

ИНСТРУКЦИИ ДЛЯ АССИСТЕНТА (как он работает):
%s

ИСТОРИЯ ДИАЛОГА (последние сообщения):
%s

ПОСЛЕДНЕЕ СООБЩЕНИЕ ПОЛЬЗОВАТЕЛЯ:
"%s"

КРИТЕРИИ АНАЛИЗА:

Выбирай "document" если:
- Пользователь явно просит показать/вывести/создать итоговый документ
- Пользователь дает команду на формирование регламента
- Пользователь просит изменить/отредактировать уже существующий документ
- Пользователь подтверждает готовность к генерации документа после предложения ассистента
- Пользователь говорит что информация собрана и можно переходить к документу
- Контекст показывает, что сбор информации завершен И пользователь дает финальное подтверждение

Выбирай "chat" если:
- Пользователь отвечает на вопросы ассистента
- Пользователь предоставляет дополнительную информацию
- Пользователь задает уточняющие вопросы
- Пользователь загружает файлы или документы
- Идет процесс обсуждения деталей процесса
- Пользователь дает промежуточные подтверждения в процессе сбора ("хорошо", "понятно", "да")
- Сбор информации еще не завершен

ВАЖНО:
- Анализируй весь контекст диалога, не только последнее сообщение
- Учитывай, на какой стадии находится процесс сбора информации
- Если ассистент только что предложил сформировать документ и пользователь согласился - это "document"
- Если информация еще собирается - это "chat", даже при коротких подтверждениях

Если не уверен, все равно верни JSON, например:
{"type":"chat","confidence":0,"reasoning":"uncertain"}

Проанализируй ситуацию и верни JSON.`, ac.Instruction, history.String(), lastText)
}

func fallback(lastText string) Route {
	if ExplicitDocumentCommand(lastText) {
		return RouteDocument
	}
	return RouteChat
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
