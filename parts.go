package readpos

import (
	"regexp"
	"strconv"
	"strings"
)

// Part-header title patterns. Only the exact "Part One" / "Part 1" forms
// and short two-word "Part X" titles count; longer titles that merely
// start with "Part" ("Part One: The Escape") are ordinary chapters.
var (
	partWordRe  = regexp.MustCompile(`(?i)^part\s+(one|two|three)$`)
	partDigitRe = regexp.MustCompile(`(?i)^part\s+([123])$`)
	bareIntRe   = regexp.MustCompile(`^\d+$`)
)

// partNumberWords maps the spelled-out part numbers the extractor knows.
// Anything beyond three falls back to the running part counter.
var partNumberWords = map[string]int{
	"one": 1, "two": 2, "three": 3,
}

// romanNumerals maps the roman chapter numbers seen in practice. Books
// with more than ten roman-numbered chapters per part are rare enough that
// unmapped numerals fall through to the running counter.
var romanNumerals = map[string]int{
	"I": 1, "II": 2, "III": 3, "IV": 4, "V": 5,
	"VI": 6, "VII": 7, "VIII": 8, "IX": 9, "X": 10,
}

// frontMatterKeywords mark non-content entries at either end of the book.
var frontMatterKeywords = []string{
	"cover", "title", "copyright", "contents", "table", "toc",
	"preface", "foreword",
}

// ClassifyChapters assigns a part and in-part chapter number to every
// chapter title, by index. The classifier is heuristic:
//
//   - Titles matching a part pattern open a new part and reset the chapter
//     counter.
//   - Roman numerals I through X and bare integers are explicit chapter
//     numbers.
//   - In books without explicit parts, a chapter number falling back to 1
//     after a higher number implies a new, unmarked part.
//   - Front-matter titles (cover, copyright, contents and the like) are
//     tagged and excluded from numbering.
//
// Each verdict carries a Confidence so callers can discount guesses.
func ClassifyChapters(chapters []ChapterInfo) map[int]PartChapter {
	verdicts := make(map[int]PartChapter, len(chapters))

	explicitParts := false
	for _, ch := range chapters {
		if isPartHeader(ch.Title) {
			explicitParts = true
			break
		}
	}

	// Books without part headers are a single implicit part 1; content
	// preceding the first header belongs to it as well.
	part := 1
	chapterInPart := 0
	lastNumber := 0

	for _, ch := range chapters {
		title := strings.TrimSpace(ch.Title)

		if isFrontMatter(title) {
			verdicts[ch.Index] = PartChapter{
				Part:          0,
				Chapter:       0,
				Title:         ch.Title,
				IsFrontMatter: true,
				Confidence:    ConfidenceExplicit,
			}
			continue
		}

		if isPartHeader(title) {
			conf := ConfidenceInferred
			if n, ok := extractPartNumber(title); ok {
				part = n
				conf = ConfidenceExplicit
			} else {
				part++
			}
			chapterInPart = 0
			lastNumber = 0
			verdicts[ch.Index] = PartChapter{
				Part:         part,
				Chapter:      0,
				Title:        ch.Title,
				IsPartHeader: true,
				Confidence:   conf,
			}
			continue
		}

		number, numberFound := extractChapterNumber(title)
		conf := ConfidenceGuessed
		switch {
		case numberFound:
			conf = ConfidenceExplicit
			// A reset to 1 in a book without part headers implies the
			// author numbered chapters per part without marking parts.
			if !explicitParts && number == 1 && lastNumber > 1 {
				part++
				conf = ConfidenceInferred
			}
			chapterInPart = number
			lastNumber = number
		default:
			chapterInPart++
			lastNumber = chapterInPart
		}

		verdicts[ch.Index] = PartChapter{
			Part:       part,
			Chapter:    chapterInPart,
			Title:      ch.Title,
			Confidence: conf,
		}
	}

	return verdicts
}

// isPartHeader reports whether a title announces a part boundary.
func isPartHeader(title string) bool {
	t := strings.TrimSpace(title)
	if partWordRe.MatchString(t) || partDigitRe.MatchString(t) {
		return true
	}
	// Short two-word "Part X" titles with an unrecognized numeral.
	fields := strings.Fields(t)
	return len(fields) == 2 && strings.EqualFold(fields[0], "part")
}

// extractPartNumber parses an explicit part number from a part-header
// title.
func extractPartNumber(title string) (int, bool) {
	t := strings.TrimSpace(title)
	if m := partWordRe.FindStringSubmatch(t); m != nil {
		return partNumberWords[strings.ToLower(m[1])], true
	}
	if m := partDigitRe.FindStringSubmatch(t); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			return n, true
		}
	}
	return 0, false
}

// extractChapterNumber parses an explicit chapter number from a title.
// Only whole-title numbering counts: a bare integer ("7") or a bare roman
// numeral ("IV"). Embedded numbers ("Chapter 7", "12. The Return") are
// not explicit; such titles take the running counter instead.
func extractChapterNumber(title string) (int, bool) {
	t := strings.TrimSpace(title)

	if bareIntRe.MatchString(t) {
		n, err := strconv.Atoi(t)
		if err == nil && n > 0 {
			return n, true
		}
	}
	if n, ok := romanNumerals[strings.ToUpper(t)]; ok {
		return n, true
	}
	return 0, false
}

// isFrontMatter reports whether a title names front or back matter rather
// than book content.
func isFrontMatter(title string) bool {
	low := strings.ToLower(strings.TrimSpace(title))
	if low == "" {
		return false
	}
	for _, kw := range frontMatterKeywords {
		if strings.Contains(low, kw) {
			return true
		}
	}
	return false
}

// enrichPosition overlays part/chapter classification onto a resolved
// position. The chapter field becomes the chapter within the current
// part; part-header positions carry chapter 0.
func enrichPosition(pos PositionInfo, verdicts map[int]PartChapter) PositionInfo {
	v, ok := verdicts[pos.Chapter]
	if !ok {
		return pos
	}
	pos.Part = v.Part
	pos.ChapterInPart = v.Chapter
	pos.IsPartHeader = v.IsPartHeader
	if v.IsPartHeader {
		pos.Chapter = 0
	} else if v.Chapter > 0 {
		pos.Chapter = v.Chapter
	}
	return pos
}
