package readpos

import (
	"errors"
	"os"
	"path"
	"testing"
	"time"
)

// memStore is an in-memory RemoteStore.
type memStore struct {
	files    map[string][]byte
	modified map[string]time.Time
	uploads  int
}

func newMemStore() *memStore {
	return &memStore{
		files:    make(map[string][]byte),
		modified: make(map[string]time.Time),
	}
}

func (m *memStore) List(folder, pattern string) ([]RemoteFile, error) {
	var out []RemoteFile
	for name := range m.files {
		if pattern != "" {
			ok, err := path.Match(pattern, name)
			if err != nil || !ok {
				continue
			}
		}
		out = append(out, RemoteFile{Name: name, Modified: m.modified[name]})
	}
	return out, nil
}

func (m *memStore) Upload(localPath, name, folder string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	m.files[name] = data
	m.modified[name] = time.Now()
	m.uploads++
	return nil
}

func (m *memStore) Download(name, folder string) ([]byte, error) {
	data, ok := m.files[name]
	if !ok {
		return nil, ErrFileNotFound
	}
	return data, nil
}

func TestPushUploadsPositionFile(t *testing.T) {
	root, bookID := buildBookDir(t)
	store := newMemStore()
	s := NewSyncer(NewCodec(DirectoryResolver{Root: root}), store)

	progress := 30.0
	bm := Bookmark{ProgressPercent: &progress, LastModified: time.UnixMilli(1697743052498)}
	if err := s.Push(bookID, "Test Book", "A. Author", bm); err != nil {
		t.Fatalf("Push: %v", err)
	}

	data, ok := store.files["Test Book.epub.po"]
	if !ok {
		t.Fatalf("position file not uploaded; store holds %v", store.files)
	}
	mp, err := ParseMoonPosition(string(data))
	if err != nil {
		t.Fatalf("uploaded content unparseable: %v", err)
	}
	if mp.Timestamp.UnixMilli() != 1697743052498 {
		t.Errorf("Timestamp = %d, want bookmark timestamp", mp.Timestamp.UnixMilli())
	}
}

func TestPushUpdatesExistingFile(t *testing.T) {
	root, bookID := buildBookDir(t)
	store := newMemStore()
	// MoonReader already created a differently named file for this book.
	existing := "Test Book - A. Author.epub.po"
	store.files[existing] = []byte("1*0@0#0:0.0%")

	s := NewSyncer(NewCodec(DirectoryResolver{Root: root}), store)
	progress := 30.0
	bm := Bookmark{ProgressPercent: &progress, LastModified: time.UnixMilli(2)}
	if err := s.Push(bookID, "Test Book", "A. Author", bm); err != nil {
		t.Fatalf("Push: %v", err)
	}

	if len(store.files) != 1 {
		t.Errorf("store holds %d files, want the existing one updated: %v", len(store.files), store.files)
	}
	if string(store.files[existing]) == "1*0@0#0:0.0%" {
		t.Error("existing position file not overwritten")
	}
}

func TestPushSkipsUnconvertibleBookmark(t *testing.T) {
	store := newMemStore()
	s := NewSyncer(NewCodec(nil), store)

	if err := s.Push("77", "Test Book", "", Bookmark{}); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if store.uploads != 0 {
		t.Errorf("uploads = %d, want 0 for an unconvertible bookmark", store.uploads)
	}
}

func TestPullConvertsRemotePosition(t *testing.T) {
	root, bookID := buildBookDir(t)
	store := newMemStore()
	store.files["Test Book.epub.po"] = []byte("1697743052498*1@0#0:50.0%")

	s := NewSyncer(NewCodec(DirectoryResolver{Root: root}), store)
	update, err := s.Pull(bookID, "Test Book", "", time.Time{})
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if update == nil {
		t.Fatal("Pull returned nil update")
	}
	if update.LocationType != "KoboSpan" {
		t.Errorf("LocationType = %q, want KoboSpan", update.LocationType)
	}
	if update.Timestamp.UnixMilli() != 1697743052498 {
		t.Errorf("Timestamp = %d, want wire timestamp", update.Timestamp.UnixMilli())
	}
}

func TestPullDiscardsStalePosition(t *testing.T) {
	root, bookID := buildBookDir(t)
	store := newMemStore()
	store.files["Test Book.epub.po"] = []byte("1000*1@0#0:50.0%")

	s := NewSyncer(NewCodec(DirectoryResolver{Root: root}), store)
	update, err := s.Pull(bookID, "Test Book", "", time.UnixMilli(2000))
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if update != nil {
		t.Errorf("update = %+v, want nil for a stale remote position", update)
	}
}

func TestPullMissingFile(t *testing.T) {
	s := NewSyncer(NewCodec(nil), newMemStore())
	_, err := s.Pull("77", "Unknown Book", "", time.Time{})
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("err = %v, want ErrFileNotFound", err)
	}
}

func TestFindPositionFileLadder(t *testing.T) {
	store := newMemStore()
	s := NewSyncer(NewCodec(nil), store)

	// Stage 1: exact title match.
	store.files = map[string][]byte{"My Novel.epub.po": nil}
	if name, err := s.findPositionFile("My Novel", "Jane Doe"); err != nil || name != "My Novel.epub.po" {
		t.Errorf("exact: (%q, %v)", name, err)
	}

	// Stage 2: title with author.
	store.files = map[string][]byte{"My Novel - Jane Doe.epub.po": nil}
	if name, err := s.findPositionFile("My Novel", "Jane Doe"); err != nil || name != "My Novel - Jane Doe.epub.po" {
		t.Errorf("with author: (%q, %v)", name, err)
	}

	// Stage 3: remote name contains the title.
	store.files = map[string][]byte{"My Novel (Annotated).epub.po": nil}
	if name, err := s.findPositionFile("My Novel", ""); err != nil || name != "My Novel (Annotated).epub.po" {
		t.Errorf("contains: (%q, %v)", name, err)
	}

	// Stage 4: the title contains the remote base name.
	store.files = map[string][]byte{"My Novel.epub.po": nil}
	if name, err := s.findPositionFile("My Novel Special Edition", ""); err != nil || name != "My Novel.epub.po" {
		t.Errorf("reverse contains: (%q, %v)", name, err)
	}

	// No match.
	store.files = map[string][]byte{"Other Book.epub.po": nil}
	if _, err := s.findPositionFile("My Novel", ""); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("no match err = %v, want ErrFileNotFound", err)
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`A/B\C:D`, "A_B_C_D"},
		{`What? "Yes" <maybe>`, "What_ _Yes_ _maybe_"},
		{"Plain Title", "Plain Title"},
	}
	for _, tt := range tests {
		if got := sanitizeFileName(tt.in); got != tt.want {
			t.Errorf("sanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
