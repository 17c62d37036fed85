// Package readpos maps reading positions between two structurally different
// renditions of the same book: the Kobo KEPUB rendition, which marks
// fine-grained positions with kobo.X.Y span identifiers, and the canonical
// EPUB rendition, which MoonReader addresses with a compact
// timestamp*chapter@chars#offset:percent% position string.
//
// The two renditions segment chapters differently, so positions cannot be
// translated arithmetically. Instead the package extracts the text under a
// span identifier from the KEPUB, searches for the same text in the EPUB
// (exact substring first, word-level fuzzy alignment as a fallback), and
// derives the chapter index, paragraph, and chapter-relative progress from
// the match. When content matching fails, the conversion degrades through
// documented structural estimates rather than failing outright.
//
// # Analyzing a book
//
// An [Analyzer] extracts chapter structure from either rendition:
//
//	an := readpos.NewAnalyzer()
//	st := an.AnalyzeStructure("book.epub")
//	for _, ch := range st.Chapters {
//	    fmt.Println(ch.Index, ch.Title, ch.Href)
//	}
//
// AnalyzeStructure never fails: a missing, corrupt, or DRM-protected archive
// yields an empty structure, which callers must treat as "structure unknown".
//
// # Converting positions
//
// A [Codec] performs the bidirectional conversion. It locates the book's
// files through a [FileResolver]:
//
//	codec := readpos.NewCodec(readpos.DirectoryResolver{Root: library})
//	pos, strategy, err := codec.ToMoonReader("42", bookmark)
//	if err == nil {
//	    wire := pos.Encode()
//	    _ = strategy // which fallback produced the result
//	}
//
// Every conversion reports the [Strategy] that produced it, from
// [StrategyContentMatch] (text found in the target rendition) down to
// [StrategyProgressOnly] (pure estimation from the progress percentage).
//
// # Synchronizing
//
// A [Syncer] pushes and pulls the serialized position through a
// [RemoteStore] (the .epub.po file convention used by MoonReader's cloud
// sync). An unconvertible bookmark skips the push rather than failing it,
// and a pulled position older than the last known state is discarded.
//
// # Error handling
//
// The package defines sentinel errors for the recoverable failure classes:
//   - [ErrStructureUnavailable] – archive missing, corrupt, or unreadable
//   - [ErrSpanNotFound] – span identifier absent from every content file
//   - [ErrTextNotMatched] – extracted text not found in the target rendition
//   - [ErrFormatUnparseable] – position string matches no known grammar
//   - [ErrFileNotFound] – a requested file is not in the archive or store
//
// None of these escape the conversion entry points except as explicit
// return values; internal stages recover by falling back to the next
// cheaper strategy.
package readpos
