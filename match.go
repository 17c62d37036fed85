package readpos

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// SearchText finds target text within the EPUB rendition at archivePath
// and returns its position. Content files are searched in spine order,
// exact match first, then word-level fuzzy alignment for longer targets.
// Returns ErrTextNotMatched when no file contains the target.
func (an *Analyzer) SearchText(archivePath, target string) (PositionInfo, error) {
	target = norm.NFC.String(strings.TrimSpace(target))
	if target == "" {
		return PositionInfo{}, fmt.Errorf("readpos: empty search target: %w", ErrTextNotMatched)
	}

	ar, err := openArchive(archivePath)
	if err != nil {
		return PositionInfo{}, err
	}
	defer ar.close()

	hrefs := ar.spineHrefs()
	for chapterIdx, href := range hrefs {
		data, _, err := ar.readContent(href)
		if err != nil {
			continue
		}
		plain, err := extractText(data)
		if err != nil || plain == "" {
			continue
		}

		pos, matched := an.searchInText(plain, target)
		if !matched {
			continue
		}

		an.log.Debug().
			Str("file", href).
			Int("chapter", chapterIdx).
			Int("offset", pos).
			Msg("text matched")
		return positionAt(plain, chapterIdx, pos), nil
	}

	return PositionInfo{}, fmt.Errorf("readpos: %q: %w", truncateForLog(target, 60), ErrTextNotMatched)
}

// searchInText locates target within plain text. An exact substring match
// wins; otherwise, for targets longer than the fuzzy threshold, the
// longest contiguous run of common words is found and accepted when it
// covers enough of the target.
func (an *Analyzer) searchInText(plain, target string) (int, bool) {
	if pos := strings.Index(plain, target); pos >= 0 {
		return pos, true
	}

	if len(target) <= an.cfg.MinFuzzyTargetLen {
		return 0, false
	}

	targetWords := strings.Fields(target)
	if len(targetWords) == 0 {
		return 0, false
	}
	textWords := strings.Fields(plain)

	_, start, size := longestCommonRun(textWords, targetWords)
	if float64(size) < an.cfg.FuzzyMatchRatio*float64(len(targetWords)) {
		return 0, false
	}

	// Re-locate the matched run in the original text to recover a real
	// character offset.
	run := strings.Join(textWords[start:start+size], " ")
	if pos := strings.Index(plain, run); pos >= 0 {
		return pos, true
	}
	if pos := strings.Index(plain, textWords[start]); pos >= 0 {
		return pos, true
	}
	return 0, false
}

// longestCommonRun finds the longest contiguous run of words common to a
// and b, returning the run's start in b, its start in a, and its length.
// Dynamic programming over word equality; the earliest run wins ties.
func longestCommonRun(a, b []string) (bStart, aStart, size int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > size {
					size = curr[j]
					aStart = i - curr[j]
					bStart = j - curr[j]
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}
	return bStart, aStart, size
}

// positionAt derives a PositionInfo from a character offset in a chapter's
// plain text. Paragraphs are counted by the blank lines the extractor
// inserts; progress is the offset's fraction of the chapter, clamped to
// [0, 100].
func positionAt(plain string, chapter, offset int) PositionInfo {
	paragraph := strings.Count(plain[:offset], "\n\n") + 1

	progress := 0.0
	if len(plain) > 0 {
		progress = float64(offset) / float64(len(plain)) * 100
	}
	progress = clampProgress(progress)

	return PositionInfo{
		Chapter:         chapter,
		Paragraph:       paragraph,
		CharacterOffset: offset,
		ChapterProgress: progress,
	}
}

// clampProgress bounds a progress percentage to [0, 100].
func clampProgress(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// truncateForLog shortens s for inclusion in error and log messages.
func truncateForLog(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
