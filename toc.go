package readpos

import (
	"encoding/xml"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// resolveTOC extracts the chapter list of an EPUB rendition. Three
// strategies are tried in order:
//
//  1. EPUB 3 navigation document (manifest href containing "nav" or "toc").
//  2. Legacy NCX (spine toc attribute, or any manifest href ending ".ncx").
//  3. Raw spine order with synthesized titles, capped at limit entries.
//
// The result is never empty for a non-empty spine.
func (ar *archive) resolveTOC(limit int) []ChapterInfo {
	if chapters := ar.navChapters(); len(chapters) > 0 {
		return chapters
	}
	if chapters := ar.ncxChapters(); len(chapters) > 0 {
		return chapters
	}
	return ar.spineChapters(limit)
}

// navChapters locates an EPUB 3 navigation document by manifest href and
// collects its anchors as chapters.
func (ar *archive) navChapters() []ChapterInfo {
	for _, entry := range ar.manifest {
		low := strings.ToLower(entry.Href)
		if !strings.Contains(low, "nav") && !strings.Contains(low, "toc") {
			continue
		}
		if !strings.HasSuffix(low, ".xhtml") && !strings.HasSuffix(low, ".html") && !strings.HasSuffix(low, ".htm") {
			continue
		}
		data, _, err := ar.readContent(entry.Href)
		if err != nil {
			continue
		}
		if chapters := parseNavDocument(data); len(chapters) > 0 {
			return chapters
		}
	}
	return nil
}

// parseNavDocument extracts (title, href) pairs from the anchors of the
// first <nav> element. Anchors with empty text or href are skipped.
func parseNavDocument(data []byte) []ChapterInfo {
	doc, err := parseHTML(data)
	if err != nil {
		return nil
	}
	nav := findElement(doc, atom.Nav)
	if nav == nil {
		return nil
	}

	var chapters []ChapterInfo
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			href := strings.TrimSpace(getAttr(n, "href"))
			title := nodeText(n)
			if href != "" && title != "" {
				chapters = append(chapters, ChapterInfo{
					Index: len(chapters),
					Title: title,
					Href:  stripFragment(href),
				})
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(nav)
	return chapters
}

// --- NCX ---

type ncxDocument struct {
	XMLName xml.Name  `xml:"ncx"`
	NavMap  ncxNavMap `xml:"navMap"`
}

type ncxNavMap struct {
	NavPoints []ncxNavPoint `xml:"navPoint"`
}

type ncxNavPoint struct {
	Label     ncxNavLabel   `xml:"navLabel"`
	Content   ncxContent    `xml:"content"`
	NavPoints []ncxNavPoint `xml:"navPoint"`
}

type ncxNavLabel struct {
	Text string `xml:"text"`
}

type ncxContent struct {
	Src string `xml:"src,attr"`
}

// ncxChapters reads the legacy navigation control file and flattens its
// navPoint tree into document order.
func (ar *archive) ncxChapters() []ChapterInfo {
	var href string
	if ar.ncxID != "" {
		href = ar.manifestByID[ar.ncxID]
	}
	if href == "" {
		for _, entry := range ar.manifest {
			if strings.HasSuffix(strings.ToLower(entry.Href), ".ncx") {
				href = entry.Href
				break
			}
		}
	}
	if href == "" {
		return nil
	}

	data, _, err := ar.readContent(href)
	if err != nil {
		return nil
	}

	var ncx ncxDocument
	if err := xml.Unmarshal(stripBOM(data), &ncx); err != nil {
		return nil
	}

	var chapters []ChapterInfo
	var walk func(points []ncxNavPoint)
	walk = func(points []ncxNavPoint) {
		for _, p := range points {
			title := strings.TrimSpace(p.Label.Text)
			src := strings.TrimSpace(p.Content.Src)
			if title != "" && src != "" {
				chapters = append(chapters, ChapterInfo{
					Index: len(chapters),
					Title: title,
					Href:  stripFragment(src),
				})
			}
			walk(p.NavPoints)
		}
	}
	walk(ncx.NavMap.NavPoints)
	return chapters
}

// spineChapters synthesizes chapters from raw spine order when no
// navigation document exists. Titles are "Chapter N" (1-based). The list
// is capped because spines of heavily fragmented books run to hundreds of
// files that are not chapters.
func (ar *archive) spineChapters(limit int) []ChapterInfo {
	hrefs := ar.spineHrefs()
	if limit > 0 && len(hrefs) > limit {
		hrefs = hrefs[:limit]
	}
	chapters := make([]ChapterInfo, 0, len(hrefs))
	for i, href := range hrefs {
		chapters = append(chapters, ChapterInfo{
			Index: i,
			Title: fmt.Sprintf("Chapter %d", i+1),
			Href:  href,
		})
	}
	return chapters
}

// stripFragment removes a "#fragment" suffix from an href.
func stripFragment(href string) string {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		return href[:i]
	}
	return href
}
