package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"
)

func setupStore(t *testing.T) *FilesystemStore {
	t.Helper()
	store, err := NewFilesystemStore(t.TempDir(), "http://localhost:8080/")
	if err != nil {
		t.Fatalf("NewFilesystemStore: %v", err)
	}
	return store
}

func TestPutAndOpen(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	key, url, err := store.Put(ctx, []byte("%PDF contenido"), "oficio 2024.pdf", "pdf")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	year := fmt.Sprintf("%d/", time.Now().Year())
	if !strings.HasPrefix(key, year) {
		t.Errorf("key = %q, want %s prefix", key, year)
	}
	if !strings.HasSuffix(key, "_oficio 2024.pdf") {
		t.Errorf("key = %q, want original filename suffix", key)
	}
	if !strings.HasPrefix(url, "http://localhost:8080/objects/"+year) {
		t.Errorf("url = %q, want base URL prefix without double slash", url)
	}
	// The key's slash stays a path separator; only segment contents escape.
	if strings.Contains(url, "%2F") {
		t.Errorf("url = %q escapes the key separator", url)
	}
	if !strings.HasSuffix(url, "_oficio%202024.pdf") {
		t.Errorf("url = %q, want the filename escaped", url)
	}

	rc, err := store.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "%PDF contenido" {
		t.Errorf("read %q, want the stored bytes", data)
	}
}

func TestPutSanitizesFilename(t *testing.T) {
	store := setupStore(t)

	key, _, err := store.Put(context.Background(), []byte("x"), `../../etc:pass*wd?.pdf`, "pdf")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if strings.Contains(key, "..") {
		t.Errorf("key = %q contains a path traversal", key)
	}
	for _, c := range `:*?` {
		if strings.ContainsRune(key[5:], c) {
			t.Errorf("key = %q contains unsanitized %q", key, c)
		}
	}
}

func TestKeysAreUnique(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	k1, _, err := store.Put(ctx, []byte("a"), "same.pdf", "pdf")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	k2, _, err := store.Put(ctx, []byte("b"), "same.pdf", "pdf")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if k1 == k2 {
		t.Errorf("two uploads of the same name share key %q", k1)
	}
}

func TestDelete(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	key, _, err := store.Put(ctx, []byte("x"), "a.pdf", "pdf")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Open(ctx, key); err == nil {
		t.Error("Open succeeded after Delete")
	}

	// Deleting a missing object is not an error.
	if err := store.Delete(ctx, "2024/missing.pdf"); err != nil {
		t.Errorf("Delete(missing) = %v, want nil", err)
	}
}
