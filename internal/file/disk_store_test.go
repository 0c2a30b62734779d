package file

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"testing/iotest"
)

func TestDiskStoreRoundTrip(t *testing.T) {
	store := NewDiskStore(t.TempDir())
	ctx := context.Background()
	name, err := NewStoredName("a.txt")
	if err != nil {
		t.Fatalf("NewStoredName: %v", err)
	}

	n, err := store.Put(ctx, name, bytes.NewReader([]byte("disk payload")), "text/plain")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if n != 12 {
		t.Fatalf("expected 12 bytes written, got %d", n)
	}

	info, err := store.Stat(ctx, name)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size != 12 {
		t.Fatalf("unexpected size %d", info.Size)
	}

	rc, _, err := store.Get(ctx, name)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil || string(got) != "disk payload" {
		t.Fatalf("unexpected content %q (%v)", got, err)
	}

	if err := store.Remove(ctx, name); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := store.Stat(ctx, name); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound after remove, got %v", err)
	}
	if err := store.Remove(ctx, name); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound on second remove, got %v", err)
	}
}

func TestDiskStoreFailedPutLeavesNothing(t *testing.T) {
	root := t.TempDir()
	store := NewDiskStore(root)
	name, _ := NewStoredName("a.bin")

	broken := io.MultiReader(bytes.NewReader([]byte("partial")), iotest.ErrReader(errors.New("client went away")))
	if _, err := store.Put(context.Background(), name, broken, ""); err == nil {
		t.Fatalf("expected Put to fail")
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("read root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty root, found %d entries", len(entries))
	}
}

func TestDiskStoreCancelledContext(t *testing.T) {
	store := NewDiskStore(t.TempDir())
	name, _ := NewStoredName("a.bin")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.Put(ctx, name, bytes.NewReader([]byte("x")), ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDiskStoreRejectsForeignNames(t *testing.T) {
	root := t.TempDir()
	store := NewDiskStore(filepath.Join(root, "objects"))
	if err := os.Mkdir(filepath.Join(root, "objects"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "secret"), []byte("s"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, _, err := store.Get(context.Background(), "../secret"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}
