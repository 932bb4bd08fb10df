package protocol

import (
	"fmt"
	"strings"
)

// Markdown renders the protocol as its plain-text/Markdown form. Pure and
// deterministic: identical input yields byte-identical output, exactly ten
// numbered top-level sections in fixed order, explicit placeholders for
// missing data.
func Markdown(p *Protocol) string {
	var md strings.Builder

	md.WriteString(p.Title() + "\n\n")

	fmt.Fprintf(&md, "1.\tДата встречи: %s\n", orPlaceholder(p.MeetingDate))

	fmt.Fprintf(&md, "2.\tПовестка: %s\n", orPlaceholder(p.Agenda.Title))
	if len(p.Agenda.Items) == 0 {
		md.WriteString("•\t" + Placeholder + "\n")
	}
	for _, item := range p.Agenda.Items {
		md.WriteString("•\t" + item + "\n")
	}
	md.WriteString("\n")

	md.WriteString("3.\tУчастники:\n")
	fmt.Fprintf(&md, "Со стороны Заказчика %s:\n", orPlaceholder(p.Participants.Customer.OrganizationName))
	md.WriteString("ФИО\tДолжность\n")
	writePeople(&md, p.Participants.Customer.People)
	md.WriteString("\n")
	fmt.Fprintf(&md, "Со стороны Исполнителя %s:\n", orPlaceholder(p.Participants.Executor.OrganizationName))
	md.WriteString("ФИО\tДолжность/роль\n")
	writePeople(&md, p.Participants.Executor.People)
	md.WriteString("\n")

	md.WriteString("4.\tТермины и определения:\n")
	if len(p.TermsAndDefinitions) == 0 {
		md.WriteString("•\t" + Placeholder + "\n")
	}
	for _, td := range p.TermsAndDefinitions {
		fmt.Fprintf(&md, "•\t%s – %s\n", td.Term, td.Definition)
	}
	md.WriteString("\n")

	md.WriteString("5.\tСокращения и обозначения:\n")
	if len(p.Abbreviations) == 0 {
		md.WriteString("•\t" + Placeholder + "\n")
	}
	for _, ab := range p.Abbreviations {
		fmt.Fprintf(&md, "•\t%s – %s\n", ab.Abbreviation, ab.FullForm)
	}
	md.WriteString("\n")

	md.WriteString("6.\tСодержание встречи:\n")
	md.WriteString("В ходе встречи обсуждались следующие вопросы:\n")
	if p.MeetingContent.Introduction != "" {
		md.WriteString(p.MeetingContent.Introduction + "\n")
	}
	if len(p.MeetingContent.Topics) == 0 {
		md.WriteString(Placeholder + "\n")
	}
	for _, topic := range p.MeetingContent.Topics {
		md.WriteString(topic.Title + "\n")
		md.WriteString(topic.Content + "\n")
		for _, sub := range topic.Subtopics {
			if sub.Title != "" {
				md.WriteString(sub.Title + "\n")
			}
			md.WriteString(sub.Content + "\n")
		}
	}
	if len(p.MeetingContent.MigrationFeatures) > 0 {
		md.WriteString("Вкладка\tОсобенности\n")
		for _, f := range p.MeetingContent.MigrationFeatures {
			fmt.Fprintf(&md, "%s\t%s\n", f.Tab, f.Features)
		}
	}
	md.WriteString("\n")

	md.WriteString("7.\tВопросы:\n")
	if len(p.QuestionsAndAnswers) == 0 {
		md.WriteString(Placeholder + "\n")
	}
	for i, qa := range p.QuestionsAndAnswers {
		fmt.Fprintf(&md, "%d.\t%s\n", i+1, qa.Question)
	}
	md.WriteString("\nОтветы:\n")
	for i, qa := range p.QuestionsAndAnswers {
		fmt.Fprintf(&md, "%d.\t%s\n", i+1, qa.Answer)
	}
	md.WriteString("\n")

	md.WriteString("8.\tРешения:\n")
	if len(p.Decisions) == 0 {
		md.WriteString(Placeholder + "\n")
	}
	for i, d := range p.Decisions {
		fmt.Fprintf(&md, "%d.\t%s\n", i+1, d.Decision)
		fmt.Fprintf(&md, "Ответственный: %s\n", d.Responsible)
	}
	md.WriteString("\n")

	md.WriteString("9.\tОткрытые вопросы:\n")
	if len(p.OpenQuestions) == 0 {
		md.WriteString(Placeholder + "\n")
	}
	for i, q := range p.OpenQuestions {
		fmt.Fprintf(&md, "%d.\t%s\n", i+1, q)
	}
	md.WriteString("\n")

	md.WriteString("10.\tСогласовано:\n\n")
	md.WriteString("Со стороны Исполнителя:\tСо стороны Заказчика:\n")
	fmt.Fprintf(&md, "%s\t\t%s\n\n",
		orPlaceholder(p.Approval.ExecutorSignature.Organization),
		orPlaceholder(p.Approval.CustomerSignature.Organization))
	fmt.Fprintf(&md, "%s /______________\t%s /______________\n",
		orPlaceholder(p.Approval.ExecutorSignature.Representative),
		orPlaceholder(p.Approval.CustomerSignature.Representative))

	return md.String()
}

func writePeople(md *strings.Builder, people []Participant) {
	if len(people) == 0 {
		md.WriteString(Placeholder + "\t" + Placeholder + "\n")
		return
	}
	for _, p := range people {
		fmt.Fprintf(md, "%s\t%s\n", p.FullName, p.Position)
	}
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return Placeholder
	}
	return s
}
