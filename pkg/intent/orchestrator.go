package intent

import (
	"context"
	"strings"

	"github.com/protoscribe/protoscribe/pkg/dialog"
)

const (
	reasonClassifierDocument = "classifier selected document generation"
	reasonClassifierChat     = "classifier selected chat"
)

// Decision is the final route for the current turn plus a short diagnostic
// reason. The reason is for observability only.
type Decision struct {
	Route  Route
	Reason string
}

// Decide combines heuristic signals and the classifier route under strict
// precedence, stopping at the first match:
//
//  1. upload-only turn -> chat
//  2. attachment read request, no edit/generation -> chat
//  3. explicit edit -> document (even with no existing document)
//  4. explicit generation -> document
//  5. classifier route
//  6. default -> chat
//
// Deterministic user commands are never overridden by the probabilistic
// classifier; it only resolves genuinely ambiguous turns.
func Decide(ac *dialog.AgentContext, classified Route) Decision {
	lastUser := ac.LastUserTurn()
	lastText := ""
	if lastUser != nil {
		lastText = lastUser.VisibleText()
	}
	prevAssistantText := ""
	if prev := dialog.AssistantBefore(ac.Turns); prev != nil {
		prevAssistantText = dialog.StripNoise(prev.Text)
	}

	if UploadOnlySignal(lastUser) {
		return Decision{RouteChat, "upload-only: do not generate document on file upload"}
	}

	edit := EditSignal(lastText, prevAssistantText)
	generation := GenerationSignal(lastText)

	if AttachmentReadSignal(lastText) && !edit && !generation {
		return Decision{RouteChat, "heuristic: read/summarize attachment request"}
	}
	if edit {
		if strings.TrimSpace(ac.DocumentText) != "" {
			return Decision{RouteDocument, "heuristic: existing document + edit/confirm request"}
		}
		return Decision{RouteDocument, "heuristic: edit/confirm request without existing document"}
	}
	if generation {
		return Decision{RouteDocument, "heuristic: explicit request to generate the document"}
	}
	if classified == RouteDocument {
		return Decision{RouteDocument, reasonClassifierDocument}
	}
	return Decision{RouteChat, reasonClassifierChat}
}

// Resolve decides the route for the current turn, consulting the classifier
// only when no heuristic signal is decisive.
func Resolve(ctx context.Context, ac *dialog.AgentContext, c *Classifier) Decision {
	if d := Decide(ac, RouteChat); d.Reason != reasonClassifierChat {
		return d
	}
	return Decide(ac, c.Classify(ctx, ac))
}
