package readpos

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Span identifier grammars. A Kobo location either embeds the span after a
// fragment marker ("...!path#kobo.X.Y") or is the bare identifier.
var (
	spanFragmentRe = regexp.MustCompile(`#kobo\.(\d+)\.(\d+)`)
	spanBareRe     = regexp.MustCompile(`^kobo\.(\d+)\.(\d+)$`)
	spanTagRe      = regexp.MustCompile(`<span[^>]*\bid="kobo\.\d+\.\d+"`)
)

// parseSpanLocation extracts the (x, y) span coordinates from a location
// string, trying the bare grammar first and the fragment grammar second.
func parseSpanLocation(location string) (x, y int, ok bool) {
	m := spanBareRe.FindStringSubmatch(location)
	if m == nil {
		m = spanFragmentRe.FindStringSubmatch(location)
	}
	if m == nil {
		return 0, 0, false
	}
	x, _ = strconv.Atoi(m[1])
	y, _ = strconv.Atoi(m[2])
	return x, y, true
}

// FindSpan locates a kobo span inside the KEPUB rendition at archivePath
// and returns a text sample around it. progress, when non-nil, is the
// whole-book progress used to disambiguate span ids that occur in more
// than one spine file. Returns ErrSpanNotFound when the id is absent, or
// ErrStructureUnavailable when the archive cannot be opened.
func (an *Analyzer) FindSpan(archivePath, location string, progress *float64) (TextSample, error) {
	x, y, ok := parseSpanLocation(location)
	if !ok {
		return TextSample{}, fmt.Errorf("readpos: location %q: %w", location, ErrFormatUnparseable)
	}
	spanID := fmt.Sprintf("kobo.%d.%d", x, y)

	ar, err := openArchive(archivePath)
	if err != nil {
		return TextSample{}, err
	}
	defer ar.close()

	type hit struct {
		href string
		data []byte
	}
	var hits []hit

	// Substring prefilter before any DOM work.
	needle := `id="` + spanID + `"`
	for _, href := range ar.spineHrefs() {
		data, _, err := ar.readContent(href)
		if err != nil {
			continue
		}
		if strings.Contains(string(data), needle) {
			hits = append(hits, hit{href: href, data: data})
		}
	}
	if len(hits) == 0 {
		return TextSample{}, fmt.Errorf("readpos: span %s: %w", spanID, ErrSpanNotFound)
	}

	chosen := hits[0]
	if len(hits) > 1 {
		hrefs := make([]string, len(hits))
		for i, h := range hits {
			hrefs[i] = h.href
		}
		best := an.disambiguateSpanFile(ar, hrefs, progress)
		for _, h := range hits {
			if h.href == best {
				chosen = h
				break
			}
		}
		an.log.Debug().
			Str("span", spanID).
			Int("candidates", len(hits)).
			Str("chosen", chosen.href).
			Msg("span id occurs in multiple files")
	}

	sample, err := an.sampleAroundSpan(chosen.data, spanID)
	if err != nil {
		return TextSample{}, err
	}
	sample.File = chosen.href
	return sample, nil
}

// disambiguateSpanFile picks one file from candidates that all contain the
// same span id. With a progress figure available, the file whose spine
// fraction is closest to it wins; otherwise a file whose path names book
// content is preferred; otherwise the first candidate.
func (an *Analyzer) disambiguateSpanFile(ar *archive, candidates []string, progress *float64) string {
	spine := ar.spineHrefs()

	if progress != nil && len(spine) > 0 {
		target := *progress / 100
		best := candidates[0]
		bestDist := 2.0
		for _, c := range candidates {
			for i, href := range spine {
				if href != c {
					continue
				}
				frac := float64(i) / float64(len(spine))
				dist := frac - target
				if dist < 0 {
					dist = -dist
				}
				if dist < bestDist {
					bestDist = dist
					best = c
				}
				break
			}
		}
		if bestDist <= 1.0 {
			return best
		}
	}

	for _, c := range candidates {
		low := strings.ToLower(c)
		for _, kw := range []string{"chapter", "content", "text", "part"} {
			if strings.Contains(low, kw) {
				return c
			}
		}
	}
	return candidates[0]
}

// sampleAroundSpan extracts the span's own text plus surrounding context
// from a content file known to contain the span.
func (an *Analyzer) sampleAroundSpan(data []byte, spanID string) (TextSample, error) {
	doc, err := parseHTML(data)
	if err != nil {
		return TextSample{}, fmt.Errorf("readpos: span %s: %w", spanID, ErrSpanNotFound)
	}
	node := findElementByID(doc, spanID)
	if node == nil {
		return TextSample{}, fmt.Errorf("readpos: span %s: %w", spanID, ErrSpanNotFound)
	}

	spanText := nodeText(node)

	var context string
	position := -1
	if block := nearestBlockAncestor(node); block != nil {
		blockText := nodeText(block)
		if spanText != "" {
			position = strings.Index(blockText, spanText)
		}
		if position >= 0 {
			start := position - an.cfg.ContextRadius
			if start < 0 {
				start = 0
			}
			end := position + len(spanText) + an.cfg.ContextRadius
			if end > len(blockText) {
				end = len(blockText)
			}
			context = blockText[start:end]
		} else if len(blockText) > 0 {
			// Span text not locatable in the block (nested markup reflow);
			// take the block head instead.
			end := an.cfg.BlockContextLimit
			if end > len(blockText) {
				end = len(blockText)
			}
			context = blockText[:end]
		}
	}
	if len(context) < an.cfg.MinContextLen {
		context = spanText
	}

	// Prefer the context for matching when it is meaningfully longer than
	// the span text alone.
	text := spanText
	if len(context) > len(spanText)+50 {
		text = context
	}
	if text == "" {
		return TextSample{}, fmt.Errorf("readpos: span %s has no text: %w", spanID, ErrSpanNotFound)
	}

	return TextSample{
		Text:     text,
		Position: position,
		Context:  context,
	}, nil
}

// CountSpans counts the kobo span markers in the KEPUB rendition at
// archivePath. Returns 0 when the archive cannot be read.
func (an *Analyzer) CountSpans(archivePath string) int {
	ar, err := openArchive(archivePath)
	if err != nil {
		return 0
	}
	defer ar.close()

	total := 0
	for _, href := range ar.spineHrefs() {
		data, _, err := ar.readContent(href)
		if err != nil {
			continue
		}
		total += len(spanTagRe.FindAllIndex(data, -1))
	}
	return total
}
