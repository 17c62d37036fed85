package readpos

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// MoonPosition is a decoded MoonReader reading position.
type MoonPosition struct {
	// Timestamp is when the position was recorded.
	Timestamp time.Time

	// Chapter is the zero-based chapter index.
	Chapter int

	// ScrolledChars is the character scroll offset within the chapter.
	ScrolledChars int

	// ScreenOffset is the sub-scroll screen offset.
	ScreenOffset int

	// ChapterProgress is the progress through the chapter, in [0, 100].
	ChapterProgress float64
}

// moonPositionRe is the wire grammar:
// "<timestamp_ms>*<chapter>@<scrolled>#<screen>:<progress>%".
var moonPositionRe = regexp.MustCompile(`^(\d+)\*(\d+)@(\d+)#(\d+):(\d+(?:\.\d+)?)%$`)

// Encode renders the position in wire format. The timestamp is emitted in
// milliseconds and the progress with one decimal place.
func (p MoonPosition) Encode() string {
	return fmt.Sprintf("%d*%d@%d#%d:%.1f%%",
		p.Timestamp.UnixMilli(), p.Chapter, p.ScrolledChars, p.ScreenOffset,
		clampProgress(p.ChapterProgress))
}

// ParseMoonPosition decodes a wire-format position string. Any deviation
// from the grammar returns ErrFormatUnparseable.
func ParseMoonPosition(wire string) (MoonPosition, error) {
	m := moonPositionRe.FindStringSubmatch(strings.TrimSpace(wire))
	if m == nil {
		return MoonPosition{}, fmt.Errorf("readpos: %q: %w", wire, ErrFormatUnparseable)
	}
	ts, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return MoonPosition{}, fmt.Errorf("readpos: %q: %w", wire, ErrFormatUnparseable)
	}
	chapter, _ := strconv.Atoi(m[2])
	scrolled, _ := strconv.Atoi(m[3])
	screen, _ := strconv.Atoi(m[4])
	progress, err := strconv.ParseFloat(m[5], 64)
	if err != nil {
		return MoonPosition{}, fmt.Errorf("readpos: %q: %w", wire, ErrFormatUnparseable)
	}

	return MoonPosition{
		Timestamp:       time.UnixMilli(ts),
		Chapter:         chapter,
		ScrolledChars:   scrolled,
		ScreenOffset:    screen,
		ChapterProgress: clampProgress(progress),
	}, nil
}

// Codec converts reading positions between the Kobo and MoonReader sides
// of a book. It is safe for concurrent use.
type Codec struct {
	an       *Analyzer
	cfg      Config
	log      zerolog.Logger
	resolver FileResolver
}

// NewCodec creates a Codec backed by resolver for locating book files.
func NewCodec(resolver FileResolver, opts ...Option) *Codec {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Codec{
		an:       NewAnalyzer(opts...),
		cfg:      o.cfg,
		log:      o.log,
		resolver: resolver,
	}
}

// ToMoonReader converts a Kobo bookmark into a MoonReader position. The
// conversion cascade runs content match, reduced-context retry,
// structural estimation, and progress-only estimation in order; the
// returned Strategy names the stage that produced the result. An error is
// returned only when the bookmark carries neither a location nor a
// progress figure.
func (c *Codec) ToMoonReader(bookID string, bm Bookmark) (MoonPosition, Strategy, error) {
	if bm.Location == "" && bm.ProgressPercent == nil {
		return MoonPosition{}, 0, fmt.Errorf("readpos: bookmark for %s is empty: %w", bookID, ErrFormatUnparseable)
	}

	ts := bm.LastModified
	if ts.IsZero() {
		ts = time.Now()
	}

	files, err := c.resolveFiles(bookID)
	if err != nil {
		c.log.Warn().Err(err).Str("book", bookID).Msg("file resolution failed")
	}
	kepubPath := files[FormatKEPUB]
	epubPath := files[FormatEPUB]

	// Stage 1 and 2: locate the span in the KEPUB, search its text in the
	// EPUB; on a miss retry with the middle portion of the context.
	if bm.Location != "" && kepubPath != "" && epubPath != "" {
		pos, strategy, err := c.contentConvert(kepubPath, epubPath, bm)
		if err == nil {
			c.log.Info().
				Str("book", bookID).
				Str("strategy", strategy.String()).
				Msg("position converted by content")
			return c.finishPosition(epubPath, pos, ts), strategy, nil
		}
		c.log.Debug().Err(err).Str("book", bookID).Msg("content conversion failed")
	}

	// Stage 3: structural estimation from the location string's numerics.
	if bm.Location != "" {
		total := c.cfg.DefaultChapterCount
		if epubPath != "" {
			if s := c.an.AnalyzeStructure(epubPath); s.TotalChapters() > 0 {
				total = s.TotalChapters()
			}
		}
		if pos, ok := c.structuralEstimate(bm.Location, total); ok {
			return c.finishPosition(epubPath, pos, ts), StrategyStructural, nil
		}
	}

	// Stage 4: progress only.
	pos := c.progressEstimate(epubPath, bm.ProgressPercent)
	return c.finishPosition(epubPath, pos, ts), StrategyProgressOnly, nil
}

// contentConvert runs the content-match stages: extract a text sample at
// the span, search it in the EPUB rendition, retry with reduced context.
func (c *Codec) contentConvert(kepubPath, epubPath string, bm Bookmark) (PositionInfo, Strategy, error) {
	sample, err := c.an.FindSpan(kepubPath, bm.Location, bm.ProgressPercent)
	if err != nil {
		return PositionInfo{}, 0, err
	}

	pos, err := c.an.SearchText(epubPath, sample.Text)
	if err == nil {
		return pos, StrategyContentMatch, nil
	}

	// Retry with the middle half of the context, dropping boundary words
	// that may have been cut mid-sentence.
	if reduced, ok := middleContext(sample.Context); ok {
		if pos, err := c.an.SearchText(epubPath, reduced); err == nil {
			return pos, StrategyContextMatch, nil
		}
	}
	return PositionInfo{}, 0, fmt.Errorf("readpos: content conversion: %w", ErrTextNotMatched)
}

// middleContext returns the middle half of a context string, split on
// words. Contexts too short to be worth retrying yield ok=false.
func middleContext(context string) (string, bool) {
	if len(context) <= 50 {
		return "", false
	}
	words := strings.Fields(context)
	if len(words) <= 10 {
		return "", false
	}
	mid := words[len(words)/4 : len(words)*3/4]
	return strings.Join(mid, " "), true
}

// structuralEstimate derives a position from the numeric fields of a Kobo
// location string, without reading any book content. Offsets above the
// large-offset threshold are treated as character counts; smaller ones as
// positional indexes. The chapter is capped at totalChapters-1.
func (c *Codec) structuralEstimate(location string, totalChapters int) (PositionInfo, bool) {
	chapter, offset, ok := parseKoboLocation(location)
	if !ok {
		return PositionInfo{}, false
	}
	if totalChapters > 0 && chapter >= totalChapters {
		chapter = totalChapters - 1
	}

	var progress float64
	if offset > c.cfg.LargeOffsetThreshold {
		progress = float64(offset) / float64(c.cfg.LargeOffsetDivisor) * 100
	} else {
		progress = float64(offset) / float64(c.cfg.SmallOffsetDivisor) * 100
	}

	return PositionInfo{
		Chapter:         chapter,
		Paragraph:       offset / c.cfg.ParagraphSizeEstimate,
		CharacterOffset: offset % c.cfg.ParagraphSizeEstimate,
		ChapterProgress: clampProgress(progress),
	}, true
}

// progressEstimate maps a whole-book progress percentage to a chapter and
// in-chapter progress, using live structure when available and the
// default chapter count otherwise.
func (c *Codec) progressEstimate(epubPath string, progressPercent *float64) PositionInfo {
	progress := 0.0
	if progressPercent != nil {
		progress = clampProgress(*progressPercent)
	}

	total := c.cfg.DefaultChapterCount
	if epubPath != "" {
		if s := c.an.AnalyzeStructure(epubPath); s.TotalChapters() > 0 {
			total = s.TotalChapters()
		}
	}

	chapter := int(progress / 100 * float64(total))
	if chapter >= total {
		chapter = total - 1
	}
	if chapter < 0 {
		chapter = 0
	}

	chapterSpan := 100 / float64(total)
	within := 0.0
	if chapterSpan > 0 {
		within = (progress - float64(chapter)*chapterSpan) / chapterSpan * 100
	}

	return PositionInfo{
		Chapter:         chapter,
		ChapterProgress: clampProgress(within),
	}
}

// finishPosition applies part/chapter enrichment and packs a PositionInfo
// into the wire structure.
func (c *Codec) finishPosition(epubPath string, pos PositionInfo, ts time.Time) MoonPosition {
	if epubPath != "" {
		if s := c.an.AnalyzeStructure(epubPath); s.TotalChapters() > 0 {
			pos = enrichPosition(pos, ClassifyChapters(s.Chapters))
		}
	}
	return MoonPosition{
		Timestamp:       ts,
		Chapter:         pos.Chapter,
		ScrolledChars:   pos.Paragraph,
		ScreenOffset:    pos.CharacterOffset,
		ChapterProgress: clampProgress(pos.ChapterProgress),
	}
}

// FromMoonReader converts a wire-format MoonReader position into a Kobo
// update for the book. KEPUB renditions get a synthesized span reference;
// EPUB renditions get a chapter/offset location.
func (c *Codec) FromMoonReader(bookID, wire string) (KoboUpdate, error) {
	mp, err := ParseMoonPosition(wire)
	if err != nil {
		return KoboUpdate{}, err
	}

	files, err := c.resolveFiles(bookID)
	if err != nil {
		c.log.Warn().Err(err).Str("book", bookID).Msg("file resolution failed")
	}
	kepubPath := files[FormatKEPUB]
	epubPath := files[FormatEPUB]

	total := c.cfg.DefaultChapterCount
	structPath := kepubPath
	if structPath == "" {
		structPath = epubPath
	}
	var structure BookStructure
	if structPath != "" {
		structure = c.an.AnalyzeStructure(structPath)
		if structure.TotalChapters() > 0 {
			total = structure.TotalChapters()
		}
	}

	// Whole-book progress: the chapter's start fraction plus the in-chapter
	// progress scaled by the chapter's share of the book.
	chapterStart := float64(mp.Chapter) / float64(total) * 100
	bookProgress := clampProgress(chapterStart + mp.ChapterProgress/100*(100/float64(total)))

	update := KoboUpdate{
		Timestamp:       mp.Timestamp,
		ProgressPercent: bookProgress,
	}

	if kepubPath != "" {
		// Span references are synthesized here, not relayed from the
		// reader, so the source names this package.
		update.LocationValue = c.synthesizeSpanLocation(kepubPath, structure, mp, bookProgress)
		update.LocationType = "KoboSpan"
		update.LocationSource = "readpos"
	} else {
		// Chapter/offset locations are 1-based on the Kobo side.
		update.LocationValue = fmt.Sprintf("%d/%d", mp.Chapter+1, mp.ScrolledChars*100+mp.ScreenOffset)
		update.LocationType = "text"
		update.LocationSource = "moonreader"
	}

	c.log.Info().
		Str("book", bookID).
		Str("location_type", update.LocationType).
		Float64("progress", bookProgress).
		Msg("position converted from wire format")
	return update, nil
}

// synthesizeSpanLocation builds a KEPUB span reference for a book
// progress. The target span index is proportional to progress over the
// total span count; the content path names the chapter file.
func (c *Codec) synthesizeSpanLocation(kepubPath string, structure BookStructure, mp MoonPosition, bookProgress float64) string {
	span := 1
	if total := c.an.CountSpans(kepubPath); total > 0 {
		span = int(bookProgress / 100 * float64(total))
		if span < 1 {
			span = 1
		}
		if span > total {
			span = total
		}
	}

	title := "book"
	if ar, err := openArchive(kepubPath); err == nil {
		if ar.title != "" {
			title = ar.title
		}
		ar.close()
	}

	contentPath := fmt.Sprintf("OEBPS/Text/Chapter%02d.xhtml", mp.Chapter+1)
	if mp.Chapter < len(structure.Chapters) {
		if href := structure.Chapters[mp.Chapter].Href; href != "" {
			contentPath = href
		}
	}

	return fmt.Sprintf("%s.kepub.epub!%s#kobo.%d.1", title, contentPath, span)
}

// resolveFiles looks up the book's rendition files, tolerating a nil
// resolver.
func (c *Codec) resolveFiles(bookID string) (map[Format]string, error) {
	if c.resolver == nil {
		return nil, nil
	}
	return c.resolver.Resolve(bookID)
}

// Kobo location grammars for structural estimation, tried in order:
// a span fragment, a bare span id, or "<chapter>/<offset>".
var chapterOffsetRe = regexp.MustCompile(`^(\d+)/(\d+)$`)

// chapterFileRe extracts a chapter index from a content file name like
// "Chapter07.xhtml" or "chapter_7.html".
var chapterFileRe = regexp.MustCompile(`(?i)chapter[^0-9]*(\d+)`)

// contentNumberRe extracts a bare numeric file name like "07.xhtml".
var contentNumberRe = regexp.MustCompile(`/(\d+)\.x?html`)

// parseKoboLocation extracts (chapter, offset) numerics from any of the
// accepted Kobo location grammars. Chapter/offset pairs and bare span ids
// are 1-based on the Kobo side and converted to 0-based here; span
// locations carrying a content path take the chapter from that path.
func parseKoboLocation(location string) (chapter, offset int, ok bool) {
	location = strings.TrimSpace(location)

	if m := chapterOffsetRe.FindStringSubmatch(location); m != nil {
		chapter, _ = strconv.Atoi(m[1])
		if chapter > 0 {
			chapter--
		}
		offset, _ = strconv.Atoi(m[2])
		return chapter, offset, true
	}

	if x, y, spanOK := parseSpanLocation(location); spanOK {
		if i := strings.IndexByte(location, '!'); i >= 0 {
			contentPath := location[i+1:]
			if j := strings.IndexByte(contentPath, '#'); j >= 0 {
				contentPath = contentPath[:j]
			}
			chapter = chapterFromPath(contentPath)
		} else {
			// Bare span id: x counts chapters from 1, y is the position
			// within the chapter.
			chapter = x - 1
			if chapter < 0 {
				chapter = 0
			}
		}
		return chapter, y, true
	}

	return 0, 0, false
}

// chapterFromPath guesses a zero-based chapter index from a content file
// path. "Chapter07.xhtml" yields 6; unrecognized names yield 0.
func chapterFromPath(contentPath string) int {
	base := path.Base(contentPath)
	if m := chapterFileRe.FindStringSubmatch(base); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n - 1
		}
	}
	if m := contentNumberRe.FindStringSubmatch("/" + contentPath); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n - 1
		}
	}
	return 0
}
