package dialog

import (
	"regexp"
	"strings"
)

const (
	attachmentBlockOpen = "\n\n---\nВложенный файл: "
	attachmentBlockEnd  = "\n---"
)

var (
	attachmentBlockRe = regexp.MustCompile(`\n---\nВложенный файл:[\s\S]*?\n---`)
	hiddenRe          = regexp.MustCompile(`(?i)<AI-HIDDEN>[\s\S]*?</AI-HIDDEN>`)
	hiddenTagRe       = regexp.MustCompile(`(?i)</?AI-HIDDEN>`)
)

// StripNoise removes inlined attachment blocks and hidden-content markers,
// leaving only what the user actually typed.
func StripNoise(text string) string {
	text = attachmentBlockRe.ReplaceAllString(text, "")
	text = hiddenRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// ExtractHidden returns the contents of hidden-content markers, stripped of
// the markers themselves.
func ExtractHidden(text string) []string {
	var out []string
	for _, seg := range hiddenRe.FindAllString(text, -1) {
		seg = strings.TrimSpace(hiddenTagRe.ReplaceAllString(seg, ""))
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// InlineAttachment frames extracted attachment text as a block appended to
// the turn text, so the model sees the file content in place.
func InlineAttachment(name, content string) string {
	if name == "" {
		name = "документ"
	}
	return attachmentBlockOpen + name + "\n" + content + attachmentBlockEnd
}
