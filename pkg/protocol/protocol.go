// Package protocol defines the ten-section meeting-survey record, its
// deterministic Markdown rendering, and the DOCX encoding.
package protocol

import (
	"strings"

	"github.com/protoscribe/protoscribe/pkg/llm"
)

// Placeholder marks information the transcript did not provide. Sections are
// always rendered; missing data is spelled out, never omitted.
const Placeholder = "Информация не предоставлена"

// Participant is one row of a participants table.
type Participant struct {
	FullName string `json:"fullName" jsonschema:"ФИО"`
	Position string `json:"position" jsonschema:"Должность"`
}

// Side is one organization's participant list.
type Side struct {
	OrganizationName string        `json:"organizationName" jsonschema:"Название организации"`
	People           []Participant `json:"people"`
}

type Agenda struct {
	Title string   `json:"title" jsonschema:"Основная тема встречи"`
	Items []string `json:"items" jsonschema:"Пункты повестки"`
}

type Participants struct {
	Customer Side `json:"customer"`
	Executor Side `json:"executor"`
}

type TermDefinition struct {
	Term       string `json:"term" jsonschema:"Термин"`
	Definition string `json:"definition" jsonschema:"Определение"`
}

type Abbreviation struct {
	Abbreviation string `json:"abbreviation" jsonschema:"Сокращение"`
	FullForm     string `json:"fullForm" jsonschema:"Полная форма"`
}

type Subtopic struct {
	Title   string `json:"title,omitzero"`
	Content string `json:"content"`
}

type Topic struct {
	Title     string     `json:"title" jsonschema:"Название темы"`
	Content   string     `json:"content" jsonschema:"Содержание обсуждения"`
	Subtopics []Subtopic `json:"subtopics,omitzero"`
}

// MigrationFeature is one row of the optional migration-feature table.
type MigrationFeature struct {
	Tab      string `json:"tab" jsonschema:"Название вкладки"`
	Features string `json:"features" jsonschema:"Описание особенностей"`
}

type MeetingContent struct {
	Introduction      string             `json:"introduction,omitzero" jsonschema:"Вводная часть"`
	Topics            []Topic            `json:"topics"`
	MigrationFeatures []MigrationFeature `json:"migrationFeatures,omitzero" jsonschema:"Особенности миграции (если применимо)"`
}

type QuestionAnswer struct {
	Question string `json:"question" jsonschema:"Текст вопроса"`
	Answer   string `json:"answer" jsonschema:"Текст ответа"`
}

type Decision struct {
	Decision    string `json:"decision" jsonschema:"Текст решения"`
	Responsible string `json:"responsible" jsonschema:"Ответственный (Исполнитель/Заказчик)"`
}

type Signature struct {
	Organization   string `json:"organization"`
	Representative string `json:"representative" jsonschema:"ФИО представителя"`
}

type Approval struct {
	ExecutorSignature Signature `json:"executorSignature"`
	CustomerSignature Signature `json:"customerSignature"`
}

// Protocol is the full survey record. Exactly ten logical sections; every
// section renders even when its source list is empty.
type Protocol struct {
	ProtocolNumber string `json:"protocolNumber" jsonschema:"Номер протокола (например: №7)"`
	MeetingDate    string `json:"meetingDate" jsonschema:"Дата встречи в формате ДД.ММ.ГГГГ"`

	Agenda       Agenda       `json:"agenda"`
	Participants Participants `json:"participants"`

	TermsAndDefinitions []TermDefinition `json:"termsAndDefinitions"`
	Abbreviations       []Abbreviation   `json:"abbreviations"`
	MeetingContent      MeetingContent   `json:"meetingContent"`
	QuestionsAndAnswers []QuestionAnswer `json:"questionsAndAnswers"`
	Decisions           []Decision       `json:"decisions"`
	OpenQuestions       []string         `json:"openQuestions"`
	Approval            Approval         `json:"approval"`
}

// Title is the document heading.
func (p *Protocol) Title() string {
	return "ПРОТОКОЛ ОБСЛЕДОВАНИЯ " + p.ProtocolNumber
}

// Filename derives the artifact name: digits-only protocol number, meeting
// date with dots replaced by dashes.
func (p *Protocol) Filename() string {
	var digits strings.Builder
	for _, r := range p.ProtocolNumber {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	date := strings.ReplaceAll(p.MeetingDate, ".", "-")
	return "Протокол_обследования_" + digits.String() + "_" + date + ".docx"
}

// TranscriptAnalysis is the structured pre-generation check of the meeting
// transcript. It lives only inside one pipeline invocation.
type TranscriptAnalysis struct {
	HasContradictions   bool     `json:"hasContradictions" jsonschema:"Обнаружены ли противоречия"`
	Contradictions      []string `json:"contradictions" jsonschema:"Список обнаруженных противоречий"`
	HasAmbiguities      bool     `json:"hasAmbiguities" jsonschema:"Есть ли недосказанности/неясности"`
	Ambiguities         []string `json:"ambiguities" jsonschema:"Список недосказанностей"`
	MissingCriticalInfo []string `json:"missingCriticalInfo" jsonschema:"Список критически важной недостающей информации"`
	Confidence          string   `json:"confidence" jsonschema:"Уровень уверенности в полноте данных: high, medium или low"`
}

// ConfidenceLabel maps the confidence level to its Russian rendering.
func (a *TranscriptAnalysis) ConfidenceLabel() string {
	switch a.Confidence {
	case "high":
		return "высокий"
	case "medium":
		return "средний"
	default:
		return "низкий"
	}
}

var (
	// Shape is the schema-constrained output contract for protocol
	// generation.
	Shape = llm.MustShapeFor[Protocol]("protocol",
		"Протокол обследования: структурированный итог встречи с заказчиком, все 10 разделов.")

	// AnalysisShape is the output contract for transcript analysis.
	AnalysisShape = llm.MustShapeFor[TranscriptAnalysis]("transcript_analysis",
		"Анализ расшифровки встречи: противоречия, недосказанности, недостающая информация.")
)
