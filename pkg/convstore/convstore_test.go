package convstore

import (
	"context"
	"errors"
	"testing"

	"github.com/protoscribe/protoscribe/pkg/dialog"
	"github.com/protoscribe/protoscribe/pkg/kv"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	mem := kv.NewMemory()
	t.Cleanup(func() { mem.Close() })
	return New(mem)
}

func turns(texts ...string) []*dialog.Turn {
	out := make([]*dialog.Turn, 0, len(texts))
	for i, text := range texts {
		role := dialog.RoleUser
		if i%2 == 1 {
			role = dialog.RoleAssistant
		}
		out = append(out, &dialog.Turn{Role: role, Text: text})
	}
	return out
}

func TestSaveAndGet(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	c, err := s.Save(ctx, "user-1", turns("привет", "здравствуйте"), "")
	if err != nil {
		t.Fatal(err)
	}
	if c.ID == "" {
		t.Fatal("saved conversation must get an id")
	}
	if c.Title != "Чат" {
		t.Fatalf("Title = %q", c.Title)
	}

	got, err := s.Get(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Turns) != 2 || got.Turns[0].Text != "привет" {
		t.Fatalf("Turns = %+v", got.Turns)
	}
	if got.Turns[1].Role != dialog.RoleAssistant {
		t.Fatalf("Role = %q", got.Turns[1].Role)
	}
	if !got.CreatedAt.Equal(c.CreatedAt) {
		t.Fatalf("CreatedAt = %v, want %v", got.CreatedAt, c.CreatedAt)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) = %v, want ErrNotFound", err)
	}
}

func TestUpdate(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	c, err := s.Save(ctx, "user-1", turns("первый"), "")
	if err != nil {
		t.Fatal(err)
	}

	// Nil document keeps what is stored.
	doc := "# Протокол"
	if _, err := s.Update(ctx, c.ID, turns("первый", "ответ"), &doc); err != nil {
		t.Fatal(err)
	}
	updated, err := s.Update(ctx, c.ID, turns("первый", "ответ", "ещё"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if updated.DocumentText != doc {
		t.Fatalf("DocumentText = %q, want kept %q", updated.DocumentText, doc)
	}
	if len(updated.Turns) != 3 {
		t.Fatalf("len(Turns) = %d", len(updated.Turns))
	}
	if updated.UpdatedAt.Before(c.CreatedAt) {
		t.Fatal("UpdatedAt must not go backwards")
	}

	// Empty non-nil document clears it.
	empty := ""
	cleared, err := s.Update(ctx, c.ID, updated.Turns, &empty)
	if err != nil {
		t.Fatal(err)
	}
	if cleared.DocumentText != "" {
		t.Fatalf("DocumentText = %q, want cleared", cleared.DocumentText)
	}

	if _, err := s.Update(ctx, "missing", nil, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Update(missing) = %v, want ErrNotFound", err)
	}
}

func TestListByUser(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	a, err := s.Save(ctx, "user-1", turns("a"), "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Save(ctx, "user-2", turns("b"), ""); err != nil {
		t.Fatal(err)
	}
	c, err := s.Save(ctx, "user-1", turns("c"), "")
	if err != nil {
		t.Fatal(err)
	}
	// Touch the older conversation so it sorts first.
	if _, err := s.Update(ctx, a.ID, turns("a", "aa"), nil); err != nil {
		t.Fatal(err)
	}

	list, err := s.List(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("len(list) = %d", len(list))
	}
	if list[0].ID != a.ID || list[1].ID != c.ID {
		t.Fatalf("order = %s, %s; want %s, %s", list[0].ID, list[1].ID, a.ID, c.ID)
	}
}

func TestRenameAndDelete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	c, err := s.Save(ctx, "user-1", turns("x"), "")
	if err != nil {
		t.Fatal(err)
	}
	renamed, err := s.Rename(ctx, c.ID, "Обследование закупок")
	if err != nil {
		t.Fatal(err)
	}
	if renamed.Title != "Обследование закупок" {
		t.Fatalf("Title = %q", renamed.Title)
	}

	if err := s.Delete(ctx, c.ID, "user-2"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("Delete by stranger = %v, want ErrForbidden", err)
	}
	if err := s.Delete(ctx, c.ID, "user-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, c.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestInstruction(t *testing.T) {
	mem := kv.NewMemory()
	t.Cleanup(func() { mem.Close() })
	s := New(mem)
	ctx := context.Background()

	got, err := s.Instruction(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got != defaultInstruction {
		t.Fatal("missing override must resolve to the embedded default")
	}
	// First resolution seeds the store.
	stored, err := mem.Get(ctx, instructionKey())
	if err != nil || string(stored) != defaultInstruction {
		t.Fatalf("stored = %q, %v", stored, err)
	}

	if err := s.UpdateInstruction(ctx, "Новая инструкция"); err != nil {
		t.Fatal(err)
	}
	got, err = s.Instruction(ctx)
	if err != nil || got != "Новая инструкция" {
		t.Fatalf("Instruction = %q, %v", got, err)
	}

	// A fresh Store over the same kv sees the override, not the default.
	got, err = New(mem).Instruction(ctx)
	if err != nil || got != "Новая инструкция" {
		t.Fatalf("Instruction (fresh store) = %q, %v", got, err)
	}
}
