package readpos

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDirectoryResolver(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "12")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, name := range []string{"novel.epub", "novel.kepub.epub", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	files, err := DirectoryResolver{Root: root}.Resolve("12")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := filepath.Base(files[FormatEPUB]); got != "novel.epub" {
		t.Errorf("epub = %q, want novel.epub", got)
	}
	if got := filepath.Base(files[FormatKEPUB]); got != "novel.kepub.epub" {
		t.Errorf("kepub = %q, want novel.kepub.epub", got)
	}
}

func TestDirectoryResolverMissingBook(t *testing.T) {
	_, err := DirectoryResolver{Root: t.TempDir()}.Resolve("999")
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("err = %v, want ErrFileNotFound", err)
	}
}

func TestDirectoryResolverEmptyDir(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "7"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	files, err := DirectoryResolver{Root: root}.Resolve("7")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("files = %v, want empty map", files)
	}
}

func TestDirectoryResolverKepubNotCountedAsEpub(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "3")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "only.kepub.epub"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	files, err := DirectoryResolver{Root: root}.Resolve("3")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, ok := files[FormatEPUB]; ok {
		t.Error("kepub file reported as the epub rendition")
	}
	if _, ok := files[FormatKEPUB]; !ok {
		t.Error("kepub rendition missing")
	}
}
