package readpos

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DirectoryResolver resolves book identifiers to rendition files laid out
// as <Root>/<bookID>/*.epub. A ".kepub.epub" or ".kepub" suffix marks the
// Kobo rendition; a plain ".epub" the canonical one. The first file of
// each format wins.
type DirectoryResolver struct {
	// Root is the library directory holding one subdirectory per book.
	Root string
}

// Resolve scans the book's directory. A missing directory returns
// ErrFileNotFound; a directory with no rendition files returns an empty
// map and no error.
func (r DirectoryResolver) Resolve(bookID string) (map[Format]string, error) {
	dir := filepath.Join(r.Root, bookID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("readpos: book directory %s: %w", dir, ErrFileNotFound)
	}

	files := make(map[Format]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.ToLower(e.Name())
		full := filepath.Join(dir, e.Name())
		switch {
		case strings.HasSuffix(name, ".kepub.epub") || strings.HasSuffix(name, ".kepub"):
			if _, ok := files[FormatKEPUB]; !ok {
				files[FormatKEPUB] = full
			}
		case strings.HasSuffix(name, ".epub"):
			if _, ok := files[FormatEPUB]; !ok {
				files[FormatEPUB] = full
			}
		}
	}
	return files, nil
}
