// Package artifact stores generated protocol files so they stay downloadable
// after the generation stream ends. One artifact is kept per conversation;
// writing a new one replaces the previous protocol.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ContentType is the MIME type of the stored .docx payload.
const ContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// ErrNotFound is returned when a conversation has no stored artifact.
var ErrNotFound = errors.New("artifact: not found")

// Artifact is a generated protocol file with its user-facing filename.
type Artifact struct {
	Filename string
	Data     []byte
}

// Store persists one artifact per conversation.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Put stores the artifact for a conversation, replacing any previous one.
	Put(ctx context.Context, conversationID string, a *Artifact) error

	// Get loads the artifact for a conversation.
	// Returns ErrNotFound if none is stored.
	Get(ctx context.Context, conversationID string) (*Artifact, error)

	// Exists reports whether a conversation has a stored artifact.
	Exists(ctx context.Context, conversationID string) (bool, error)

	// Delete removes the artifact. Deleting an absent artifact is not an
	// error.
	Delete(ctx context.Context, conversationID string) error
}

// validateID rejects conversation ids that could escape the storage
// namespace. Ids are uuid strings in practice.
func validateID(id string) error {
	if id == "" {
		return errors.New("artifact: empty conversation id")
	}
	if strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return fmt.Errorf("artifact: invalid conversation id %q", id)
	}
	return nil
}
