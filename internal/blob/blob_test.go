package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return map[string]Store{
		"memory": NewMemory(),
		"fs":     fsStore,
	}
}

func TestPutGetHeadDelete(t *testing.T) {
	ctx := context.Background()
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			content := "transcript bytes"
			info, err := store.Put(ctx, "applications/a1/doc1", strings.NewReader(content), PutOptions{
				ContentType: "application/pdf",
				Metadata:    map[string]string{"document_type": "transcript"},
			})
			if err != nil {
				t.Fatal(err)
			}
			if info.Size != int64(len(content)) {
				t.Fatalf("size %d, want %d", info.Size, len(content))
			}
			if info.ContentType != "application/pdf" {
				t.Fatalf("content type %q", info.ContentType)
			}

			got, rc, err := store.Get(ctx, "applications/a1/doc1")
			if err != nil {
				t.Fatal(err)
			}
			b, err := io.ReadAll(rc)
			_ = rc.Close()
			if err != nil {
				t.Fatal(err)
			}
			if string(b) != content {
				t.Fatalf("content %q", b)
			}
			if got.Metadata["document_type"] != "transcript" {
				t.Fatalf("metadata %v", got.Metadata)
			}

			head, err := store.Head(ctx, "applications/a1/doc1")
			if err != nil {
				t.Fatal(err)
			}
			if head.Size != info.Size {
				t.Fatalf("head size %d", head.Size)
			}

			existed, err := store.Delete(ctx, "applications/a1/doc1")
			if err != nil || !existed {
				t.Fatalf("delete existed=%v err=%v", existed, err)
			}
			if _, err := store.Head(ctx, "applications/a1/doc1"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("want ErrNotFound after delete, got %v", err)
			}
			existed, err = store.Delete(ctx, "applications/a1/doc1")
			if err != nil || existed {
				t.Fatalf("second delete existed=%v err=%v", existed, err)
			}
		})
	}
}

func TestPutIsCreateOnly(t *testing.T) {
	ctx := context.Background()
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Put(ctx, "k", strings.NewReader("one"), PutOptions{}); err != nil {
				t.Fatal(err)
			}
			if _, err := store.Put(ctx, "k", strings.NewReader("two"), PutOptions{}); err == nil {
				t.Fatal("expected error overwriting existing key")
			}
			_, rc, err := store.Get(ctx, "k")
			if err != nil {
				t.Fatal(err)
			}
			b, _ := io.ReadAll(rc)
			_ = rc.Close()
			if string(b) != "one" {
				t.Fatalf("original content replaced: %q", b)
			}
		})
	}
}

func TestListFiltersByPrefix(t *testing.T) {
	ctx := context.Background()
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			for _, key := range []string{"applications/a1/x", "applications/a1/y", "applications/a2/z"} {
				if _, err := store.Put(ctx, key, strings.NewReader("data"), PutOptions{}); err != nil {
					t.Fatal(err)
				}
			}
			infos, err := store.List(ctx, "applications/a1/")
			if err != nil {
				t.Fatal(err)
			}
			if len(infos) != 2 {
				t.Fatalf("listed %d blobs, want 2", len(infos))
			}
			if infos[0].Key != "applications/a1/x" || infos[1].Key != "applications/a1/y" {
				t.Fatalf("keys %q %q", infos[0].Key, infos[1].Key)
			}
			all, err := store.List(ctx, "")
			if err != nil {
				t.Fatal(err)
			}
			if len(all) != 3 {
				t.Fatalf("listed %d blobs, want 3", len(all))
			}
		})
	}
}

func TestFilesystemRejectsTraversalKeys(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for _, key := range []string{"", "  ", "../escape", "a/../../b", "/abs/path"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), PutOptions{}); err == nil {
			t.Fatalf("key %q accepted", key)
		}
	}
}

func TestPresignURL(t *testing.T) {
	ctx := context.Background()
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fsStore.Put(ctx, "docs/d1", strings.NewReader("x"), PutOptions{}); err != nil {
		t.Fatal(err)
	}
	u, err := fsStore.PresignURL(ctx, "docs/d1", SignedURLOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if u != "http://local.blob/docs/d1" {
		t.Fatalf("url %q", u)
	}
	if _, err := fsStore.PresignURL(ctx, "docs/d1", SignedURLOptions{Method: "PUT"}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("want ErrUnsupported for PUT, got %v", err)
	}

	if _, err := NewMemory().PresignURL(ctx, "docs/d1", SignedURLOptions{}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("memory presign: want ErrUnsupported, got %v", err)
	}
}
