package readpos

import "time"

// Format identifies which rendition of a book a file belongs to.
type Format string

// Supported book rendition formats.
const (
	FormatEPUB  Format = "epub"
	FormatKEPUB Format = "kepub"
)

// ChapterInfo describes one chapter in a book's reading order.
// Instances are produced fresh per analysis pass and are immutable
// after creation; the Index is stable only within that pass.
type ChapterInfo struct {
	// Index is the book-local ordinal of this chapter (0-based).
	Index int

	// Title is the display title from the TOC, an extracted heading,
	// or a synthetic "Chapter N" when no title could be resolved.
	Title string

	// Href is the content file path within the archive.
	Href string
}

// BookStructure is the complete chapter structure of one rendition.
// A zero-chapter BookStructure means "structure unknown".
type BookStructure struct {
	// Chapters in reading order.
	Chapters []ChapterInfo

	// Format tags which rendition the structure was extracted from.
	Format Format

	// SpineOrder is the raw ordered list of manifest ids from the spine.
	// It may be longer than Chapters (front matter, non-chapter files).
	SpineOrder []string
}

// TotalChapters returns the number of resolved chapters.
func (s BookStructure) TotalChapters() int {
	return len(s.Chapters)
}

// PositionInfo is a resolved position within the EPUB rendition.
type PositionInfo struct {
	// Chapter is the chapter index. After part/chapter enrichment this is
	// the chapter within the current part; 0 for part headers.
	Chapter int

	// Paragraph is the approximate paragraph index within the chapter.
	Paragraph int

	// CharacterOffset is the character offset of the match within the
	// chapter's plain text.
	CharacterOffset int

	// ChapterProgress is the progress through the current chapter,
	// always within [0, 100].
	ChapterProgress float64

	// Part is the 1-based part number; books without part headers are a
	// single part 1. 0 for front matter and unclassified positions.
	Part int

	// ChapterInPart is the chapter number within Part; 0 for part headers
	// and front matter.
	ChapterInPart int

	// IsPartHeader reports that this position falls on a part heading
	// page rather than real content.
	IsPartHeader bool
}

// TextSample is a fragment of text extracted at a span position,
// consumed immediately by the text matcher.
type TextSample struct {
	// Text is the search text: the span's own text, or the surrounding
	// context when the context is distinctive enough for matching.
	Text string

	// File is the archive-internal path of the content file the sample
	// was extracted from.
	File string

	// Position is the in-file position; meaningful for display and
	// debugging only. Content matching ignores it.
	Position int

	// Context is the larger surrounding text block used for matching
	// retries.
	Context string
}

// Strategy identifies which stage of the conversion cascade produced a
// result, for observability and testing.
type Strategy int

// Conversion strategies, in decreasing order of fidelity.
const (
	// StrategyContentMatch: span text extracted from the source rendition
	// was found in the target rendition.
	StrategyContentMatch Strategy = iota

	// StrategyContextMatch: the span text was not found, but the middle
	// portion of its surrounding context was.
	StrategyContextMatch

	// StrategyStructural: position estimated from spine/chapter counts and
	// the numeric fields of the source position string.
	StrategyStructural

	// StrategyProgressOnly: position estimated from the reported progress
	// percentage alone.
	StrategyProgressOnly
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategyContentMatch:
		return "content-match"
	case StrategyContextMatch:
		return "context-match"
	case StrategyStructural:
		return "structural"
	case StrategyProgressOnly:
		return "progress-only"
	default:
		return "unknown"
	}
}

// Confidence qualifies a classifier decision. The classifier is a
// heuristic; callers can discount low-confidence entries.
type Confidence int

// Classifier confidence levels.
const (
	// ConfidenceExplicit: the title carried an explicit part or chapter
	// number that was parsed directly.
	ConfidenceExplicit Confidence = iota

	// ConfidenceInferred: the value was derived from a heuristic
	// (numbering reset, unrecognized part numeral).
	ConfidenceInferred

	// ConfidenceGuessed: no numbering was found; the value is a running
	// counter.
	ConfidenceGuessed
)

// String returns the confidence name.
func (c Confidence) String() string {
	switch c {
	case ConfidenceExplicit:
		return "explicit"
	case ConfidenceInferred:
		return "inferred"
	case ConfidenceGuessed:
		return "guessed"
	default:
		return "unknown"
	}
}

// PartChapter is the classifier's verdict for one chapter entry.
type PartChapter struct {
	// Part is the part number this entry belongs to (1-based; 0 for
	// front matter).
	Part int

	// Chapter is the chapter number within Part (0 for part headers and
	// front matter).
	Chapter int

	// Title is the chapter title the verdict was derived from.
	Title string

	// IsPartHeader reports that the entry is a part heading, not content.
	IsPartHeader bool

	// IsFrontMatter reports that the entry is front or back matter
	// (cover, title page, copyright, contents, preface, foreword).
	IsFrontMatter bool

	// Confidence qualifies how the part/chapter numbers were determined.
	Confidence Confidence
}

// Bookmark is the source-side reading state to convert: the Kobo location
// string, the device-reported whole-book progress, and its timestamp.
type Bookmark struct {
	// Location is the opaque Kobo position string. Accepted grammars:
	// "<anything>!<path>#kobo.<x>.<y>", "kobo.<x>.<y>", "<chapter>/<offset>".
	Location string

	// ProgressPercent is the device-reported whole-book progress, if any.
	ProgressPercent *float64

	// LastModified is when the position was recorded.
	LastModified time.Time
}

// KoboUpdate is the result of converting a MoonReader position back to the
// Kobo side: a best-effort location string plus recovered book progress.
type KoboUpdate struct {
	// Timestamp is the wire position's timestamp.
	Timestamp time.Time

	// ProgressPercent is the recovered whole-book progress in [0, 100].
	ProgressPercent float64

	// LocationValue is the synthesized Kobo location string.
	LocationValue string

	// LocationType is "KoboSpan" for KEPUB span references, "text" for
	// chapter/offset pairs.
	LocationType string

	// LocationSource identifies the producer of the location value:
	// "readpos" for synthesized span references, "moonreader" for
	// chapter/offset pairs carried over from the reader.
	LocationSource string
}

// FileResolver resolves an abstract book identifier to the on-disk files of
// its renditions. An empty map is a legitimate result (book has neither
// rendition available).
type FileResolver interface {
	// Resolve returns format→absolute-path pairs for the book's available
	// renditions.
	Resolve(bookID string) (map[Format]string, error)
}

// RemoteFile describes one file in a remote store folder.
type RemoteFile struct {
	// Name is the file name within its folder.
	Name string

	// Modified is the remote modification time, when known.
	Modified time.Time
}

// RemoteStore is the narrow interface to the cloud storage holding
// MoonReader position files. Implementations live outside this package.
type RemoteStore interface {
	// List returns the files in folder whose names match pattern
	// (path.Match syntax; empty pattern matches everything).
	List(folder, pattern string) ([]RemoteFile, error)

	// Upload stores the file at localPath under name in folder.
	Upload(localPath, name, folder string) error

	// Download returns the content of name in folder, or ErrFileNotFound.
	Download(name, folder string) ([]byte, error)
}
