package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	fsStore, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("fs store: %v", err)
	}
	return map[string]Store{
		"memory": NewMemoryStore(),
		"fs":     fsStore,
	}
}

func TestPutGetDelete(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			info, err := store.Put(ctx, "photos/wanda.jpg", strings.NewReader("jpeg-bytes"), "image/jpeg")
			if err != nil {
				t.Fatalf("put: %v", err)
			}
			if info.Size != int64(len("jpeg-bytes")) || info.ContentType != "image/jpeg" {
				t.Fatalf("put info = %+v", info)
			}

			got, rc, err := store.Get(ctx, "photos/wanda.jpg")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			data, err := io.ReadAll(rc)
			rc.Close()
			if err != nil || string(data) != "jpeg-bytes" {
				t.Fatalf("read back %q, %v", data, err)
			}
			if got.ContentType != "image/jpeg" {
				t.Fatalf("content type lost: %+v", got)
			}

			if err := store.Delete(ctx, "photos/wanda.jpg"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, _, err := store.Get(ctx, "photos/wanda.jpg"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("get after delete: %v, want ErrNotFound", err)
			}
			if err := store.Delete(ctx, "photos/wanda.jpg"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("second delete: %v, want ErrNotFound", err)
			}
		})
	}
}

func TestGetMissing(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, _, err := store.Get(context.Background(), "photos/nope.jpg"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestKeySanitization(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, key := range []string{"", "  ", "/etc/passwd", "../escape", "photos/../../escape"} {
				if _, err := store.Put(context.Background(), key, strings.NewReader("x"), ""); err == nil {
					t.Fatalf("key %q accepted", key)
				}
			}
		})
	}
}

func TestPutOverwrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Put(ctx, "k", strings.NewReader("one"), ""); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, "k", strings.NewReader("two"), ""); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	_, rc, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "two" {
		t.Fatalf("read %q after overwrite", data)
	}
}
