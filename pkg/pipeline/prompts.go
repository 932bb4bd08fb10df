package pipeline

import (
	"fmt"
	"strings"

	"github.com/protoscribe/protoscribe/pkg/protocol"
)

// Progress messages shown on the narrative channel.
const (
	stepAnalysis = "🔍 Шаг 1/2: Анализ расшифровки на противоречия и недосказанности\n"
	stepProtocol = "📝 Шаг 2/2: Формирование протокола обследования\n"

	msgAnalysisSkipped = "⚠️ Не удалось провести полный анализ, продолжаю генерацию протокола...\n\n"
	msgDone            = "✅ Протокол обследования сформирован!\n\n"
	msgDocxReady       = "📄 Протокол готов для скачивания в формате .docx\n"
	msgDocxFailed      = "⚠️ Не удалось сгенерировать .docx файл\n"
	msgFatal           = "❌ Ошибка при формировании протокола. Проверьте полноту данных в расшифровке.\n"
)

// Analysis rendering used when the streamed narrative produced no output.
const (
	headContradictions = "⚠️ **Обнаружены противоречия:**\n"
	headAmbiguities    = "🤔 **Обнаружены недосказанности:**\n"
	headMissingInfo    = "❗ **Недостающая критическая информация:**\n"
	confidenceDoneFmt  = "✅ Анализ завершен. Уровень уверенности: %s\n\n"
)

const analysisStreamPromptFmt = `Сделай краткий, но конкретный анализ расшифровки.

ФОРМАТ ВЫВОДА (строго):
⚠️ Обнаружены противоречия: <список через • на одной строке или несколько строк>

🤔 Обнаружены недосказанности: <список через •>

❗ Недостающая критическая информация: <список через •>

✅ Анализ завершен. Уровень уверенности: высокий|средний|низкий

ОГРАНИЧЕНИЯ:
- Не добавляй лишних разделов.
- Не используй Markdown-блоки кода.
- Если пунктов нет, укажи "нет" после двоеточия.

РАСШИФРОВКА ВСТРЕЧИ:
"""
%s
"""`

const analysisPromptFmt = `Ты аналитик, проверяющий расшифровку встречи с заказчиком.

ТВОЯ ЗАДАЧА:
1. Проверить расшифровку на ПРОТИВОРЕЧИЯ (взаимоисключающие утверждения, несоответствия)
2. Найти НЕДОСКАЗАННОСТИ (неясные формулировки, недостающие детали, неполные ответы)
3. Определить КРИТИЧЕСКИ ВАЖНУЮ недостающую информацию для протокола обследования

РАСШИФРОВКА ВСТРЕЧИ:
"""
%s
"""

Проанализируй текст и верни структурированный анализ.`

const reasoningPromptFmt = `Дай краткое обоснование структуры протокола по этой расшифровке.

ФОРМАТ:
Краткое обоснование:
- <1-2 факта из расшифровки, которые влияют на структуру>
- <что будет отражено в вопросах/решениях/открытых вопросах>
- <какие разделы требуют "Информация не предоставлена", если есть>

ОГРАНИЧЕНИЯ:
- Не добавляй новых фактов.
- Без Markdown-кода.
- 3-4 буллета максимум.

РАСШИФРОВКА ВСТРЕЧИ:
"""
%s
"""`

const protocolPromptFmt = `Ты специалист по составлению протоколов обследования.

ТВОЯ ЗАДАЧА:
Создать протокол обследования на основе расшифровки встречи с заказчиком.

СТРОГИЕ ТРЕБОВАНИЯ:
1. Протокол ДОЛЖЕН содержать ВСЕ 10 разделов
2. НЕ ИМПРОВИЗИРУЙ - используй ТОЛЬКО факты из расшифровки
3. Если информация отсутствует, укажи это явно (например, "Информация не предоставлена")
4. Даты должны быть в формате ДД.ММ.ГГГГ
5. Все участники должны быть указаны с полными ФИО и должностями
6. Таблицы должны быть заполнены корректно

СТРУКТУРА ПРОТОКОЛА:
1. Номер протокола и дата встречи
2. Повестка (тема + пункты)
3. Участники (таблицы со стороны Заказчика и Исполнителя)
4. Термины и определения
5. Сокращения и обозначения
6. Содержание встречи (обсуждаемые вопросы, темы)
7. Вопросы и ответы
8. Решения с ответственными
9. Открытые вопросы
10. Согласовано (подписи)
%s
РАСШИФРОВКА ВСТРЕЧИ:
"""
%s
"""

Сформируй структурированный протокол обследования в соответствии со схемой.`

const analysisResultsFmt = `
РЕЗУЛЬТАТЫ АНАЛИЗА:
- Противоречия: %s
- Недосказанности: %s
- Недостающая информация: %s
`

func analysisStreamPrompt(transcript string) string {
	return fmt.Sprintf(analysisStreamPromptFmt, transcript)
}

func analysisPrompt(transcript string) string {
	return fmt.Sprintf(analysisPromptFmt, transcript)
}

func reasoningPrompt(transcript string) string {
	return fmt.Sprintf(reasoningPromptFmt, transcript)
}

func protocolPrompt(transcript string, analysis *protocol.TranscriptAnalysis) string {
	block := ""
	if analysis != nil {
		block = fmt.Sprintf(analysisResultsFmt,
			orText(strings.Join(analysis.Contradictions, "; "), "не обнаружены"),
			orText(strings.Join(analysis.Ambiguities, "; "), "не обнаружены"),
			orText(strings.Join(analysis.MissingCriticalInfo, "; "), "отсутствует"))
	}
	return fmt.Sprintf(protocolPromptFmt, block, transcript)
}

func orText(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
