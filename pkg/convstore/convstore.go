// Package convstore persists conversations and the assistant's behavioral
// instruction on top of pkg/kv. A conversation is the unit of storage: its
// turns and the latest generated document text are written together as one
// msgpack record under the key ["conv", "<id>"]. Writes to the same
// conversation are serialized; the last writer wins.
package convstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/protoscribe/protoscribe/pkg/dialog"
	"github.com/protoscribe/protoscribe/pkg/kv"
)

var (
	// ErrNotFound is returned when a conversation id does not exist.
	ErrNotFound = errors.New("convstore: conversation not found")

	// ErrForbidden is returned when a caller acts on a conversation owned
	// by another user.
	ErrForbidden = errors.New("convstore: forbidden")
)

const defaultTitle = "Чат"

// Conversation is a stored dialog with its generated document, if any.
type Conversation struct {
	ID           string         `msgpack:"id" json:"id"`
	UserID       string         `msgpack:"user_id" json:"userId"`
	Title        string         `msgpack:"title" json:"title"`
	Turns        []*dialog.Turn `msgpack:"turns" json:"turns"`
	DocumentText string         `msgpack:"document_text" json:"documentText"`
	CreatedAt    time.Time      `msgpack:"created_at" json:"createdAt"`
	UpdatedAt    time.Time      `msgpack:"updated_at" json:"updatedAt"`
}

// Store reads and writes conversations and the behavioral instruction.
type Store struct {
	kv kv.Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	instrMu     sync.RWMutex
	instr       string
	instrLoaded bool
}

func New(store kv.Store) *Store {
	return &Store{
		kv:    store,
		locks: make(map[string]*sync.Mutex),
	}
}

// lock returns the mutex serializing writes to one conversation.
func (s *Store) lock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func convKey(id string) kv.Key {
	return kv.Key{"conv", id}
}

func (s *Store) put(ctx context.Context, c *Conversation) error {
	data, err := msgpack.Marshal(c)
	if err != nil {
		return fmt.Errorf("convstore: encode conversation %s: %w", c.ID, err)
	}
	return s.kv.Set(ctx, convKey(c.ID), data)
}

// Save creates a new conversation with the given turns.
func (s *Store) Save(ctx context.Context, userID string, turns []*dialog.Turn, documentText string) (*Conversation, error) {
	now := time.Now().UTC()
	c := &Conversation{
		ID:           uuid.NewString(),
		UserID:       userID,
		Title:        defaultTitle,
		Turns:        turns,
		DocumentText: documentText,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.put(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Update replaces the turns of an existing conversation. A nil documentText
// keeps the stored document; a non-nil one replaces it, including with an
// empty string.
func (s *Store) Update(ctx context.Context, id string, turns []*dialog.Turn, documentText *string) (*Conversation, error) {
	l := s.lock(id)
	l.Lock()
	defer l.Unlock()

	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Turns = turns
	if documentText != nil {
		c.DocumentText = *documentText
	}
	c.UpdatedAt = time.Now().UTC()
	if err := s.put(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Rename sets the conversation title.
func (s *Store) Rename(ctx context.Context, id, title string) (*Conversation, error) {
	l := s.lock(id)
	l.Lock()
	defer l.Unlock()

	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Title = title
	c.UpdatedAt = time.Now().UTC()
	if err := s.put(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get loads a conversation by id.
func (s *Store) Get(ctx context.Context, id string) (*Conversation, error) {
	data, err := s.kv.Get(ctx, convKey(id))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var c Conversation
	if err := msgpack.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("convstore: decode conversation %s: %w", id, err)
	}
	return &c, nil
}

// List returns the user's conversations, most recently updated first.
func (s *Store) List(ctx context.Context, userID string) ([]*Conversation, error) {
	var out []*Conversation
	for e, err := range s.kv.List(ctx, kv.Key{"conv"}) {
		if err != nil {
			return nil, err
		}
		var c Conversation
		if err := msgpack.Unmarshal(e.Value, &c); err != nil {
			return nil, fmt.Errorf("convstore: decode conversation %s: %w", e.Key, err)
		}
		if c.UserID != userID {
			continue
		}
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Delete removes a conversation. A non-empty userID enforces ownership.
func (s *Store) Delete(ctx context.Context, id, userID string) error {
	l := s.lock(id)
	l.Lock()
	defer l.Unlock()

	if userID != "" {
		c, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if c.UserID != userID {
			return ErrForbidden
		}
	}
	return s.kv.Delete(ctx, convKey(id))
}
