package kv

import (
	"context"
	"errors"
	"testing"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	b, err := NewBadger(BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return map[string]Store{
		"memory": NewMemory(),
		"badger": b,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			key := Key{"conv", "abc"}
			if _, err := s.Get(ctx, key); !errors.Is(err, ErrNotFound) {
				t.Fatalf("missing key: want ErrNotFound, got %v", err)
			}
			if err := s.Set(ctx, key, []byte("v1")); err != nil {
				t.Fatal(err)
			}
			if err := s.Set(ctx, key, []byte("v2")); err != nil {
				t.Fatal(err)
			}
			got, err := s.Get(ctx, key)
			if err != nil || string(got) != "v2" {
				t.Fatalf("Get = %q, %v", got, err)
			}
			if err := s.Delete(ctx, key); err != nil {
				t.Fatal(err)
			}
			if err := s.Delete(ctx, key); err != nil {
				t.Fatalf("double delete must not error: %v", err)
			}
			if _, err := s.Get(ctx, key); !errors.Is(err, ErrNotFound) {
				t.Fatalf("deleted key: want ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStoreListPrefix(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []Key{
				{"conv", "b"},
				{"conv", "a"},
				{"convx", "c"},
				{"instruction", "default"},
			} {
				if err := s.Set(ctx, k, []byte(k.String())); err != nil {
					t.Fatal(err)
				}
			}
			var got []string
			for e, err := range s.List(ctx, Key{"conv"}) {
				if err != nil {
					t.Fatal(err)
				}
				got = append(got, e.Key.String())
			}
			if len(got) != 2 || got[0] != "conv:a" || got[1] != "conv:b" {
				t.Fatalf("List = %v", got)
			}
		})
	}
}

func TestKeyEncoding(t *testing.T) {
	k := Key{"conv", "id-1", "doc"}
	if got := decode(encode(k)); got.String() != k.String() {
		t.Fatalf("round trip = %v", got)
	}
	if k.String() != "conv:id-1:doc" {
		t.Fatalf("String = %q", k.String())
	}
}
