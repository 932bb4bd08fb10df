// Package intent routes each user turn to continued chat or document
// synthesis. Three layers cooperate: deterministic heuristics over the last
// user utterance, an LLM classifier for genuinely ambiguous turns, and an
// orchestrator that combines both under a strict precedence order.
package intent

import (
	"strings"

	"github.com/protoscribe/protoscribe/pkg/dialog"
)

// GenerationSignal reports an explicit request to produce the final
// document: a generation verb plus a document noun.
func GenerationSignal(text string) bool {
	t := strings.ToLower(text)
	if t == "" {
		return false
	}
	return containsAny(t, genVerbs) && containsAny(t, docNouns)
}

// EditSignal reports an explicit document-edit command: an edit verb plus a
// target hint (section keyword or a dotted numeric reference like 2.3), or a
// bare confirmation right after the assistant proposed a concrete edit.
func EditSignal(lastUserText, prevAssistantText string) bool {
	t := strings.ToLower(lastUserText)
	if t == "" {
		return false
	}
	if containsAny(t, editVerbs) && (containsAny(t, editTargetHints) || sectionRefRe.MatchString(t)) {
		return true
	}
	if IsConfirmation(t) {
		return containsAny(strings.ToLower(prevAssistantText), proposalHints)
	}
	return false
}

// IsConfirmation reports a short agreement utterance ("да", "ок", ...).
func IsConfirmation(text string) bool {
	return confirmationRe.MatchString(strings.TrimSpace(strings.ToLower(text)))
}

// AttachmentReadSignal reports a request to read or summarize an attached
// file. A simultaneous edit phrasing suppresses it; edit and generation
// always dominate reading.
func AttachmentReadSignal(text string) bool {
	t := strings.ToLower(text)
	if t == "" {
		return false
	}
	return containsAny(t, readVerbs) &&
		containsAny(t, fileNouns) &&
		!containsAny(t, readEditExclusions)
}

// UploadOnlySignal reports a turn that carries attachments and no visible
// text at all.
func UploadOnlySignal(turn *dialog.Turn) bool {
	if turn == nil {
		return false
	}
	return turn.HasAttachments() && turn.VisibleText() == ""
}

// ExplicitDocumentCommand is the classifier's deterministic fast path and
// fallback: an edit verb with any document target, or a generation verb with
// a document noun.
func ExplicitDocumentCommand(text string) bool {
	t := strings.ToLower(text)
	if t == "" {
		return false
	}
	if containsAny(t, classifierEditVerbs) && containsAny(t, classifierDocTargets) {
		return true
	}
	return containsAny(t, genVerbs) && containsAny(t, docNouns)
}
