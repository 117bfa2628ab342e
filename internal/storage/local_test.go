package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"branch-supply/internal/core"
)

func TestLocalStore_PutOpenDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(filepath.Join(dir, "evidence"))
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	ctx := context.Background()

	sum, err := s.Put(ctx, "abc.png", []byte("hello"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if sum != Checksum([]byte("hello")) || !strings.HasPrefix(sum, "blake3:") || len(sum) != len("blake3:")+64 {
		t.Errorf("checksum: got %s", sum)
	}

	info, err := os.Stat(filepath.Join(dir, "evidence", "abc.png"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm: want 0600, got %o", perm)
	}

	rc, err := s.Open(ctx, "abc.png")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "hello" {
		t.Errorf("content: got %q", data)
	}

	blobs, err := s.List(ctx)
	if err != nil || len(blobs) != 1 || blobs[0].Key != "abc.png" {
		t.Errorf("List: got %v, %v", blobs, err)
	}

	if err := s.Delete(ctx, "abc.png"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "abc.png"); err != nil {
		t.Errorf("second Delete should be a no-op, got %v", err)
	}
	if _, err := s.Open(ctx, "abc.png"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Open after delete: want ErrNotFound, got %v", err)
	}
}

func TestLocalStore_RejectsPathKeys(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	for _, key := range []string{"", "..", "../escape", `a\b`, "dir/file"} {
		if _, err := s.Put(context.Background(), key, []byte("x")); err == nil {
			t.Errorf("key %q: expected error", key)
		}
	}
}
