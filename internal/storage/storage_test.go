package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveAndReadRoundtrip(t *testing.T) {
	store := NewStore(t.TempDir())

	content := []byte("attachment bytes")
	path, err := store.SaveAttachment(7, "report.pdf", content)
	if err != nil {
		t.Fatalf("SaveAttachment failed: %v", err)
	}

	got, err := store.Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("roundtrip mismatch: got %q", got)
	}
}

func TestSaveCollisionGetsSuffix(t *testing.T) {
	store := NewStore(t.TempDir())

	first, err := store.SaveAttachment(1, "dup.txt", []byte("one"))
	if err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	second, err := store.SaveAttachment(1, "dup.txt", []byte("two"))
	if err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	if first == second {
		t.Fatal("collision overwrote the existing file")
	}
	got, _ := store.Read(first)
	if string(got) != "one" {
		t.Errorf("original content changed: %q", got)
	}
}

func TestSaveSanitizesFilename(t *testing.T) {
	base := t.TempDir()
	store := NewStore(base)

	path, err := store.SaveAttachment(3, "../../etc/passwd", []byte("x"))
	if err != nil {
		t.Fatalf("SaveAttachment failed: %v", err)
	}

	dir := filepath.Join(base, "3")
	if !strings.HasPrefix(path, dir) {
		t.Errorf("path %q escaped the message directory %q", path, dir)
	}
}

func TestRemove(t *testing.T) {
	store := NewStore(t.TempDir())

	path, err := store.SaveAttachment(5, "gone.txt", []byte("x"))
	if err != nil {
		t.Fatalf("SaveAttachment failed: %v", err)
	}
	if err := store.Remove(path); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file still exists after Remove")
	}
}
