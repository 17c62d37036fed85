package readpos

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Analyzer extracts chapter structure from book archives. It is safe for
// concurrent use; analyzed structures are retained in a small bounded
// cache keyed by file path and modification time.
type Analyzer struct {
	cfg   Config
	log   zerolog.Logger
	cache *structureCache
}

// Option configures an Analyzer, Codec, or Syncer.
type Option func(*options)

type options struct {
	cfg Config
	log zerolog.Logger
}

func defaultOptions() options {
	return options{
		cfg: DefaultConfig(),
		log: zerolog.Nop(),
	}
}

// WithLogger sets the logger. The default discards all output.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithConfig overrides the default tuning configuration.
func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(opts ...Option) *Analyzer {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Analyzer{
		cfg:   o.cfg,
		log:   o.log,
		cache: newStructureCache(o.cfg.CacheSize),
	}
}

// AnalyzeStructure extracts the chapter structure of the book at
// archivePath. Analysis never fails loudly: any error (missing file,
// corrupt archive, DRM) yields a zero-chapter structure, which callers
// treat as "structure unknown" and fall back to estimation.
func (an *Analyzer) AnalyzeStructure(archivePath string) BookStructure {
	format := detectFormat(archivePath)

	if info, err := os.Stat(archivePath); err == nil {
		if s, ok := an.cache.get(archivePath, info.ModTime().UnixNano()); ok {
			return s
		}
	}

	ar, err := openArchive(archivePath)
	if err != nil {
		an.log.Debug().Err(err).Str("path", archivePath).Msg("structure analysis failed")
		return BookStructure{Format: format}
	}
	defer ar.close()

	var chapters []ChapterInfo
	if format == FormatKEPUB {
		chapters = an.kepubChapters(ar)
	} else {
		chapters = ar.resolveTOC(an.cfg.SpineFallbackCap)
	}

	s := BookStructure{
		Chapters:   chapters,
		Format:     format,
		SpineOrder: append([]string(nil), ar.spine...),
	}

	if info, err := os.Stat(archivePath); err == nil {
		an.cache.put(archivePath, info.ModTime().UnixNano(), s)
	}

	an.log.Debug().
		Str("path", archivePath).
		Str("format", string(format)).
		Int("chapters", len(chapters)).
		Msg("analyzed book structure")
	return s
}

// kepubChapters builds the chapter list of a KEPUB rendition from the full
// spine. KEPUB navigation documents rarely cover every spine file, and the
// span locator needs per-file resolution, so every spine file becomes a
// chapter. Titles come from the first heading of each file, falling back
// to "Chapter N".
func (an *Analyzer) kepubChapters(ar *archive) []ChapterInfo {
	hrefs := ar.spineHrefs()
	chapters := make([]ChapterInfo, 0, len(hrefs))
	for i, href := range hrefs {
		title := ""
		if data, _, err := ar.readContent(href); err == nil {
			title = firstHeadingText(data)
		}
		if title == "" {
			title = fmt.Sprintf("Chapter %d", i+1)
		}
		chapters = append(chapters, ChapterInfo{Index: i, Title: title, Href: href})
	}
	return chapters
}

// detectFormat classifies an archive path by extension. ".kepub.epub" and
// ".kepub" are the Kobo rendition; anything else is treated as EPUB.
func detectFormat(archivePath string) Format {
	low := strings.ToLower(archivePath)
	if strings.HasSuffix(low, ".kepub.epub") || strings.HasSuffix(low, ".kepub") {
		return FormatKEPUB
	}
	return FormatEPUB
}

// --- structure cache ---

// cacheKey identifies an analyzed archive by path and mtime, so a replaced
// file invalidates its entry.
type cacheKey struct {
	path    string
	modTime int64
}

// structureCache is a bounded FIFO cache of analyzed structures.
type structureCache struct {
	mu      sync.Mutex
	max     int
	entries map[cacheKey]BookStructure
	order   []cacheKey
}

func newStructureCache(max int) *structureCache {
	if max <= 0 {
		max = 1
	}
	return &structureCache{
		max:     max,
		entries: make(map[cacheKey]BookStructure, max),
	}
}

func (c *structureCache) get(path string, modTime int64) (BookStructure, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[cacheKey{path, modTime}]
	return s, ok
}

func (c *structureCache) put(path string, modTime int64, s BookStructure) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := cacheKey{path, modTime}
	if _, ok := c.entries[k]; ok {
		c.entries[k] = s
		return
	}
	if len(c.order) >= c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[k] = s
	c.order = append(c.order, k)
}
