package protocol

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
)

// DOCX encodes the protocol as a WordprocessingML package: the same ten
// sections as the Markdown form, with a centered Heading1 title, bordered
// tables for participants, migration features and signatures, and bold
// labels. Deterministic for identical input.
func DOCX(p *Protocol) ([]byte, error) {
	var body bytes.Buffer
	writeBody(&body, p)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := []struct {
		name    string
		content string
	}{
		{"[Content_Types].xml", docxContentTypes},
		{"_rels/.rels", docxRels},
		{"word/_rels/document.xml.rels", docxDocumentRels},
		{"word/styles.xml", docxStyles},
		{"word/document.xml", docxDocumentOpen + body.String() + docxDocumentClose},
	}
	for _, f := range files {
		w, err := zw.Create(f.name)
		if err != nil {
			return nil, fmt.Errorf("protocol: docx %s: %w", f.name, err)
		}
		if _, err := w.Write([]byte(f.content)); err != nil {
			return nil, fmt.Errorf("protocol: docx %s: %w", f.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("protocol: docx close: %w", err)
	}
	return buf.Bytes(), nil
}

func writeBody(w *bytes.Buffer, p *Protocol) {
	heading(w, p.Title())

	para(w, 0, run("1.\tДата встречи: ", true), run(orPlaceholder(p.MeetingDate), false))

	para(w, 0, run("2.\tПовестка: ", true), run(orPlaceholder(p.Agenda.Title), false))
	if len(p.Agenda.Items) == 0 {
		para(w, 720, run("•\t"+Placeholder, false))
	}
	for _, item := range p.Agenda.Items {
		para(w, 720, run("•\t"+item, false))
	}

	para(w, 0, run("3.\tУчастники:", true))
	para(w, 0, run("Со стороны Заказчика "+orPlaceholder(p.Participants.Customer.OrganizationName)+":", false))
	peopleTable(w, p.Participants.Customer.People, "Должность")
	para(w, 0, run("Со стороны Исполнителя "+orPlaceholder(p.Participants.Executor.OrganizationName)+":", false))
	peopleTable(w, p.Participants.Executor.People, "Должность/роль")

	para(w, 0, run("4.\tТермины и определения:", true))
	if len(p.TermsAndDefinitions) == 0 {
		para(w, 360, run("•\t"+Placeholder, false))
	}
	for _, td := range p.TermsAndDefinitions {
		para(w, 360, run("•\t"+td.Term, true), run(" – "+td.Definition, false))
	}

	para(w, 0, run("5.\tСокращения и обозначения:", true))
	if len(p.Abbreviations) == 0 {
		para(w, 360, run("•\t"+Placeholder, false))
	}
	for _, ab := range p.Abbreviations {
		para(w, 360, run("•\t"+ab.Abbreviation, true), run(" – "+ab.FullForm, false))
	}

	para(w, 0, run("6.\tСодержание встречи:", true))
	if p.MeetingContent.Introduction != "" {
		para(w, 0, run(p.MeetingContent.Introduction, false))
	}
	if len(p.MeetingContent.Topics) == 0 {
		para(w, 0, run(Placeholder, false))
	}
	for _, topic := range p.MeetingContent.Topics {
		para(w, 0, run(topic.Title, true))
		para(w, 0, run(topic.Content, false))
		for _, sub := range topic.Subtopics {
			if sub.Title != "" {
				para(w, 360, run(sub.Title, true))
			}
			para(w, 360, run(sub.Content, false))
		}
	}
	if len(p.MeetingContent.MigrationFeatures) > 0 {
		para(w, 0, run("Особенности миграции по вкладкам МТР.", true))
		table(w, []string{"Вкладка", "Особенности"}, migrationRows(p.MeetingContent.MigrationFeatures))
	}

	para(w, 0, run("7.\tВопросы:", true))
	if len(p.QuestionsAndAnswers) == 0 {
		para(w, 0, run(Placeholder, false))
	}
	for i, qa := range p.QuestionsAndAnswers {
		para(w, 0, run(fmt.Sprintf("%d.\t", i+1), true), run(qa.Question, false))
	}
	para(w, 0, run("Ответы:", true))
	for i, qa := range p.QuestionsAndAnswers {
		para(w, 0, run(fmt.Sprintf("%d.\t", i+1), true), run(qa.Answer, false))
	}

	para(w, 0, run("8.\tРешения:", true))
	if len(p.Decisions) == 0 {
		para(w, 0, run(Placeholder, false))
	}
	for i, d := range p.Decisions {
		para(w, 0,
			run(fmt.Sprintf("%d.\t", i+1), false),
			run(d.Decision, false),
			run("\nОтветственный: ", true),
			run(d.Responsible, false))
	}

	para(w, 0, run("9.\tОткрытые вопросы:", true))
	if len(p.OpenQuestions) == 0 {
		para(w, 0, run(Placeholder, false))
	}
	for i, q := range p.OpenQuestions {
		para(w, 0, run(fmt.Sprintf("%d.\t%s", i+1, q), false))
	}

	para(w, 0, run("10.\tСогласовано:", true))
	para(w, 0)
	signatureTable(w, p.Approval)
}

func migrationRows(features []MigrationFeature) [][]string {
	rows := make([][]string, 0, len(features))
	for _, f := range features {
		rows = append(rows, []string{f.Tab, f.Features})
	}
	return rows
}

func peopleTable(w *bytes.Buffer, people []Participant, positionHeader string) {
	rows := make([][]string, 0, len(people))
	for _, p := range people {
		rows = append(rows, []string{p.FullName, p.Position})
	}
	if len(rows) == 0 {
		rows = append(rows, []string{Placeholder, Placeholder})
	}
	table(w, []string{"ФИО", positionHeader}, rows)
}

type docxRun struct {
	text string
	bold bool
}

func run(text string, bold bool) docxRun {
	return docxRun{text: text, bold: bold}
}

func heading(w *bytes.Buffer, text string) {
	w.WriteString(`<w:p><w:pPr><w:pStyle w:val="Heading1"/><w:jc w:val="center"/></w:pPr>`)
	writeRun(w, run(text, false))
	w.WriteString(`</w:p>`)
}

func para(w *bytes.Buffer, indent int, runs ...docxRun) {
	w.WriteString(`<w:p>`)
	if indent > 0 {
		fmt.Fprintf(w, `<w:pPr><w:ind w:left="%d"/></w:pPr>`, indent)
	}
	for _, r := range runs {
		writeRun(w, r)
	}
	w.WriteString(`</w:p>`)
}

// writeRun emits one run, translating tabs and newlines into their
// WordprocessingML elements.
func writeRun(w *bytes.Buffer, r docxRun) {
	w.WriteString(`<w:r>`)
	if r.bold {
		w.WriteString(`<w:rPr><w:b/></w:rPr>`)
	}
	for i, line := range strings.Split(r.text, "\n") {
		if i > 0 {
			w.WriteString(`<w:br/>`)
		}
		for j, span := range strings.Split(line, "\t") {
			if j > 0 {
				w.WriteString(`<w:tab/>`)
			}
			if span != "" {
				w.WriteString(`<w:t xml:space="preserve">`)
				w.WriteString(escapeXML(span))
				w.WriteString(`</w:t>`)
			}
		}
	}
	w.WriteString(`</w:r>`)
}

const tableBorders = `<w:tblBorders>` +
	`<w:top w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
	`<w:left w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
	`<w:bottom w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
	`<w:right w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
	`<w:insideH w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
	`<w:insideV w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
	`</w:tblBorders>`

func table(w *bytes.Buffer, headers []string, rows [][]string) {
	w.WriteString(`<w:tbl><w:tblPr><w:tblW w:w="5000" w:type="pct"/>` + tableBorders + `</w:tblPr>`)
	w.WriteString(`<w:tr>`)
	for _, h := range headers {
		w.WriteString(`<w:tc><w:tcPr><w:shd w:val="clear" w:color="auto" w:fill="D9D9D9"/></w:tcPr>`)
		para(w, 0, run(h, true))
		w.WriteString(`</w:tc>`)
	}
	w.WriteString(`</w:tr>`)
	for _, row := range rows {
		w.WriteString(`<w:tr>`)
		for _, cell := range row {
			w.WriteString(`<w:tc>`)
			para(w, 0, run(cell, false))
			w.WriteString(`</w:tc>`)
		}
		w.WriteString(`</w:tr>`)
	}
	w.WriteString(`</w:tbl>`)
}

func signatureTable(w *bytes.Buffer, a Approval) {
	w.WriteString(`<w:tbl><w:tblPr><w:tblW w:w="5000" w:type="pct"/>` + tableBorders + `</w:tblPr><w:tr>`)
	signatureCell(w, "Со стороны Исполнителя:", a.ExecutorSignature)
	signatureCell(w, "Со стороны Заказчика:", a.CustomerSignature)
	w.WriteString(`</w:tr></w:tbl>`)
}

func signatureCell(w *bytes.Buffer, label string, s Signature) {
	w.WriteString(`<w:tc><w:tcPr><w:tcW w:w="2500" w:type="pct"/></w:tcPr>`)
	para(w, 0, run(label, true))
	para(w, 0, run(orPlaceholder(s.Organization), false))
	para(w, 0)
	para(w, 0, run(orPlaceholder(s.Representative)+" /______________", false))
	w.WriteString(`</w:tc>`)
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}

const (
	docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
		`<Default Extension="xml" ContentType="application/xml"/>` +
		`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
		`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
		`</Types>`

	docxRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
		`</Relationships>`

	docxDocumentRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` +
		`</Relationships>`

	docxStyles = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style>` +
		`<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/>` +
		`<w:pPr><w:spacing w:after="400"/><w:outlineLvl w:val="0"/></w:pPr>` +
		`<w:rPr><w:b/><w:sz w:val="32"/></w:rPr></w:style>` +
		`</w:styles>`

	docxDocumentOpen = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`

	docxDocumentClose = `</w:body></w:document>`
)
