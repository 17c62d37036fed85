package readpos

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultSyncFolder is the remote folder MoonReader keeps its position
// files in.
const DefaultSyncFolder = "/Apps/Books/.Moon+/Cache"

// positionFilePattern matches MoonReader position files.
const positionFilePattern = "*.epub.po"

// unsafeFileNameChars are characters stripped from titles before they
// become file names.
var unsafeFileNameChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// Syncer pushes reading positions to and pulls them from a remote store
// of MoonReader position files.
type Syncer struct {
	codec  *Codec
	store  RemoteStore
	folder string
	log    zerolog.Logger
}

// SyncOption configures a Syncer.
type SyncOption func(*Syncer)

// WithSyncFolder overrides the remote folder. The default is
// DefaultSyncFolder.
func WithSyncFolder(folder string) SyncOption {
	return func(s *Syncer) { s.folder = folder }
}

// WithSyncLogger sets the Syncer's logger.
func WithSyncLogger(log zerolog.Logger) SyncOption {
	return func(s *Syncer) { s.log = log }
}

// NewSyncer creates a Syncer over codec and store.
func NewSyncer(codec *Codec, store RemoteStore, opts ...SyncOption) *Syncer {
	s := &Syncer{
		codec:  codec,
		store:  store,
		folder: DefaultSyncFolder,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Push converts a Kobo bookmark and uploads the resulting position file.
// The file name is matched against existing remote files first, so a
// position file MoonReader already created is updated rather than
// duplicated. A bookmark that cannot be converted is skipped without
// error; storage failures are returned.
func (s *Syncer) Push(bookID, title, author string, bm Bookmark) error {
	mp, strategy, err := s.codec.ToMoonReader(bookID, bm)
	if err != nil {
		s.log.Debug().Err(err).Str("book", bookID).Msg("skipping unconvertible bookmark")
		return nil
	}

	name, err := s.positionFileName(title, author)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp("", "readpos-*.po")
	if err != nil {
		return fmt.Errorf("readpos: create position file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(mp.Encode()); err != nil {
		tmp.Close()
		return fmt.Errorf("readpos: write position file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("readpos: close position file: %w", err)
	}

	if err := s.store.Upload(tmp.Name(), name, s.folder); err != nil {
		return fmt.Errorf("readpos: upload %s: %w", name, err)
	}

	s.log.Info().
		Str("book", bookID).
		Str("file", name).
		Str("strategy", strategy.String()).
		Msg("pushed reading position")
	return nil
}

// Pull finds the book's remote position file, decodes it, and converts it
// into a Kobo update. Positions not newer than lastKnown are discarded
// (nil update, nil error). A missing position file returns
// ErrFileNotFound.
func (s *Syncer) Pull(bookID, title, author string, lastKnown time.Time) (*KoboUpdate, error) {
	name, err := s.findPositionFile(title, author)
	if err != nil {
		return nil, err
	}

	data, err := s.store.Download(name, s.folder)
	if err != nil {
		return nil, fmt.Errorf("readpos: download %s: %w", name, err)
	}

	update, err := s.codec.FromMoonReader(bookID, strings.TrimSpace(string(data)))
	if err != nil {
		return nil, err
	}

	if !lastKnown.IsZero() && !update.Timestamp.After(lastKnown) {
		s.log.Debug().
			Str("book", bookID).
			Time("remote", update.Timestamp).
			Time("known", lastKnown).
			Msg("remote position not newer, discarding")
		return nil, nil
	}

	s.log.Info().
		Str("book", bookID).
		Str("file", name).
		Time("timestamp", update.Timestamp).
		Msg("pulled reading position")
	return &update, nil
}

// positionFileName returns the remote file name to upload to: an existing
// remote match when one exists, otherwise the canonical "<title>.epub.po".
func (s *Syncer) positionFileName(title, author string) (string, error) {
	if name, err := s.findPositionFile(title, author); err == nil {
		return name, nil
	}
	clean := sanitizeFileName(title)
	if clean == "" {
		return "", fmt.Errorf("readpos: empty title for position file")
	}
	return clean + ".epub.po", nil
}

// findPositionFile matches the book against remote position files using a
// four-stage ladder: exact "<title>.epub.po", exact "<title> - <author>",
// remote name containing the title, and the title containing the remote
// base name. Returns ErrFileNotFound when nothing matches.
func (s *Syncer) findPositionFile(title, author string) (string, error) {
	files, err := s.store.List(s.folder, positionFilePattern)
	if err != nil {
		return "", fmt.Errorf("readpos: list %s: %w", s.folder, err)
	}

	cleanTitle := sanitizeFileName(title)
	if cleanTitle == "" {
		return "", ErrFileNotFound
	}
	lowTitle := strings.ToLower(cleanTitle)

	exact := cleanTitle + ".epub.po"
	withAuthor := ""
	if author != "" {
		withAuthor = sanitizeFileName(title+" - "+author) + ".epub.po"
	}

	for _, f := range files {
		if strings.EqualFold(f.Name, exact) {
			return f.Name, nil
		}
	}
	if withAuthor != "" {
		for _, f := range files {
			if strings.EqualFold(f.Name, withAuthor) {
				return f.Name, nil
			}
		}
	}
	for _, f := range files {
		if strings.Contains(strings.ToLower(f.Name), lowTitle) {
			return f.Name, nil
		}
	}
	for _, f := range files {
		base := strings.ToLower(strings.TrimSuffix(f.Name, ".epub.po"))
		if base != "" && strings.Contains(lowTitle, base) {
			return f.Name, nil
		}
	}

	return "", ErrFileNotFound
}

// sanitizeFileName replaces characters that are invalid in file names
// with underscores.
func sanitizeFileName(name string) string {
	return strings.TrimSpace(unsafeFileNameChars.ReplaceAllString(name, "_"))
}
