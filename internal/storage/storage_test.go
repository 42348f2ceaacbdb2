package storage

import (
	"bytes"
	"context"
	"io"
	"testing"
)

func TestLocalStorePutGetStat(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	data := []byte("hello world")
	if err := store.Put(ctx, "a/b/c.bin", data, "application/octet-stream"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	size, err := store.Stat(ctx, "a/b/c.bin")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if size != int64(len(data)) {
		t.Errorf("Stat size = %d, want %d", size, len(data))
	}

	r, err := store.Get(ctx, "a/b/c.bin")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Get data = %q, want %q", got, data)
	}
}

func TestLocalStoreRangeGet(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	data := []byte("0123456789")
	if err := store.Put(ctx, "file.bin", data, ""); err != nil {
		t.Fatalf("Put: %v", err)
	}

	r, err := store.RangeGet(ctx, "file.bin", Range{Start: 2, End: 5})
	if err != nil {
		t.Fatalf("RangeGet: %v", err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "2345" {
		t.Errorf("RangeGet = %q, want %q", got, "2345")
	}
}

func TestLocalStoreRangeGetSuffix(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	data := []byte("0123456789")
	if err := store.Put(ctx, "file.bin", data, ""); err != nil {
		t.Fatalf("Put: %v", err)
	}

	r, err := store.RangeGet(ctx, "file.bin", Range{End: 3, Suffix: true})
	if err != nil {
		t.Fatalf("RangeGet: %v", err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "789" {
		t.Errorf("RangeGet suffix = %q, want %q", got, "789")
	}
}

func TestLocalStoreDeleteIsIdempotent(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	if err := store.Put(ctx, "gone.bin", []byte("x"), ""); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Delete(ctx, "gone.bin"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if store.Exists(ctx, "gone.bin") {
		t.Error("expected key to be gone after Delete")
	}
	// Deleting again must not error.
	if err := store.Delete(ctx, "gone.bin"); err != nil {
		t.Errorf("second Delete should be a no-op, got: %v", err)
	}
}

func TestLocalStoreExists(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	if store.Exists(ctx, "missing.bin") {
		t.Error("Exists should be false for unknown key")
	}
	if err := store.Put(ctx, "present.bin", []byte("x"), ""); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !store.Exists(ctx, "present.bin") {
		t.Error("Exists should be true after Put")
	}
}

func TestLocalStoreRejectsPathTraversal(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	if err := store.Put(ctx, "../escape.bin", []byte("x"), ""); err == nil {
		t.Error("expected path traversal to be rejected")
	}
}

func TestLocalStoreType(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	if store.Type() != "local" {
		t.Errorf("Type() = %q, want local", store.Type())
	}
}
