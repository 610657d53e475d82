package sqlite

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *DocumentStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "finlink.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDocumentStore_GetMissing(t *testing.T) {
	s := newTestStore(t)

	body, found, err := s.Get(context.Background(), "connections")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if found || body != nil {
		t.Errorf("Get() = (%s, %t), want nothing", body, found)
	}
}

func TestDocumentStore_PutReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	steps := []map[string][]byte{
		{"cards": []byte(`[]`), "bankAccounts": []byte(`[]`)},
		{"cards": []byte(`[{"id":"c1"}]`)},
	}
	for _, docs := range steps {
		if err := s.Put(ctx, docs); err != nil {
			t.Fatalf("Put() error: %v", err)
		}
	}

	tests := []struct {
		key  string
		want string
	}{
		{"cards", `[{"id":"c1"}]`},
		{"bankAccounts", `[]`},
	}
	for _, tt := range tests {
		body, found, err := s.Get(ctx, tt.key)
		if err != nil || !found {
			t.Fatalf("Get(%s) = found %t, err %v", tt.key, found, err)
		}
		if string(body) != tt.want {
			t.Errorf("Get(%s) = %s, want %s", tt.key, body, tt.want)
		}
	}
}

func TestDocumentStore_RejectsInvalidJSON(t *testing.T) {
	s := newTestStore(t)

	if err := s.Put(context.Background(), map[string][]byte{"cards": []byte(`{not json`)}); err == nil {
		t.Error("Put() accepted a malformed document")
	}
}

func TestDocumentStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finlink.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := s.Put(ctx, map[string][]byte{"connections": []byte(`[{"id":"item_1"}]`)}); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	body, found, _ := s.Get(ctx, "connections")
	if !found || string(body) != `[{"id":"item_1"}]` {
		t.Errorf("Get() after reopen = %s (found %t)", body, found)
	}
}
