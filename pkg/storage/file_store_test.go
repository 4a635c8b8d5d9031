package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileStoreSave(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	body := "%PDF-1.4 fake"
	path, err := fs.Save(context.Background(), "12345", ".pdf", strings.NewReader(body), int64(len(body)))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if path != filepath.Join(dir, "12345.pdf") {
		t.Fatalf("path = %q, want %q", path, filepath.Join(dir, "12345.pdf"))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != body {
		t.Fatalf("stored body = %q, want %q", data, body)
	}
}

func TestFileStoreSaveSanitizesID(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	path, err := fs.Save(context.Background(), "../evil", ".html", strings.NewReader("<html></html>"), 13)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		t.Fatalf("path %q escapes base dir %q", path, dir)
	}
}
