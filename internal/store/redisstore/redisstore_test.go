package redisstore

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/nibzard/mdtasks/internal/store"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, ""), mr
}

func TestGetMissing(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Get(context.Background(), store.Identity{Path: "tasks.md"})
	if !store.IsNotFound(err) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPutAndGet(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	id := store.Identity{Path: "tasks.md", Ref: "main"}

	token, err := s.Put(ctx, id, "v1", "", "[bot] init")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if token != "1" {
		t.Errorf("first token: got %q, want 1", token)
	}
	token, err = s.Put(ctx, id, "v2", token, "[bot] update - t")
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	doc, err := s.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Content != "v2" || doc.Token != token {
		t.Errorf("Get: got %+v, want content v2 token %q", doc, token)
	}

	if got := mr.HGet("mdtasks:doc:tasks.md@main", "version"); got != "2" {
		t.Errorf("stored version: got %q, want 2", got)
	}

	history, err := s.History(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"[bot] update - t", "[bot] init"}
	if len(history) != len(want) {
		t.Fatalf("history: got %v, want %v", history, want)
	}
	for i := range want {
		if history[i] != want[i] {
			t.Errorf("history[%d]: got %q, want %q", i, history[i], want[i])
		}
	}
}

func TestPutConflicts(t *testing.T) {
	ctx := context.Background()
	id := store.Identity{Path: "tasks.md"}

	t.Run("stale token", func(t *testing.T) {
		s, _ := newTestStore(t)
		first, err := s.Put(ctx, id, "v1", "", "init")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := s.Put(ctx, id, "v2", first, "a"); err != nil {
			t.Fatal(err)
		}
		_, err = s.Put(ctx, id, "v3", first, "b")
		if !store.IsConflict(err) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
		doc, _ := s.Get(ctx, id)
		if doc.Content != "v2" {
			t.Errorf("content after rejected put: got %q, want v2", doc.Content)
		}
	})

	t.Run("create over existing", func(t *testing.T) {
		s, _ := newTestStore(t)
		if _, err := s.Put(ctx, id, "v1", "", "init"); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Put(ctx, id, "again", "", "init"); !store.IsConflict(err) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("token for missing document", func(t *testing.T) {
		s, _ := newTestStore(t)
		if _, err := s.Put(ctx, id, "v1", "7", "x"); !store.IsConflict(err) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("external write between read and put", func(t *testing.T) {
		s, mr := newTestStore(t)
		token, err := s.Put(ctx, id, "v1", "", "init")
		if err != nil {
			t.Fatal(err)
		}
		mr.HSet("mdtasks:doc:tasks.md", "content", "edited", "version", "9")
		if _, err := s.Put(ctx, id, "mine", token, "x"); !store.IsConflict(err) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})
}

func TestPrefixAndHistoryLimit(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := New(client, "team")
	ctx := context.Background()
	id := store.Identity{Path: "tasks.md"}
	token := ""
	for i := 0; i < HistoryLimit+5; i++ {
		token, err = s.Put(ctx, id, "c", token, "m")
		if err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
	}
	if !mr.Exists("team:doc:tasks.md") {
		t.Error("expected key under custom prefix")
	}
	history, _ := s.History(ctx, id)
	if len(history) != HistoryLimit {
		t.Errorf("history length: got %d, want %d", len(history), HistoryLimit)
	}
}

func TestClosedClient(t *testing.T) {
	s, mr := newTestStore(t)
	mr.Close()
	_, err := s.Get(context.Background(), store.Identity{Path: "tasks.md"})
	if err == nil || store.IsNotFound(err) {
		t.Errorf("expected transport error, got %v", err)
	}
}
