package readpos

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// buildZip assembles an in-memory ZIP archive from name→content pairs.
// Iteration order follows the files slice so entry order is deterministic.
func buildZip(t *testing.T, files []zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, f := range files {
		fw, err := w.Create(f.name)
		if err != nil {
			t.Fatalf("create zip entry %s: %v", f.name, err)
		}
		if _, err := fw.Write([]byte(f.content)); err != nil {
			t.Fatalf("write zip entry %s: %v", f.name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
	return buf.Bytes()
}

type zipEntry struct {
	name    string
	content string
}

// writeArchive writes ZIP bytes to a file in a test temp dir and returns
// its path.
func writeArchive(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("write archive %s: %v", name, err)
	}
	return p
}

const testContainerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

// buildOPF renders a minimal package descriptor. chapters maps manifest id
// to href; spine lists idrefs in order.
func buildOPF(title string, items []zipEntry, spine []string, extra string) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="uid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>` + title + `</dc:title>
    <dc:identifier id="uid">test-book</dc:identifier>
  </metadata>
  <manifest>
`)
	for _, it := range items {
		sb.WriteString(fmt.Sprintf(`    <item id=%q href=%q media-type="application/xhtml+xml"/>`+"\n", it.name, it.content))
	}
	sb.WriteString("  </manifest>\n  <spine " + extra + ">\n")
	for _, id := range spine {
		sb.WriteString(fmt.Sprintf(`    <itemref idref=%q/>`+"\n", id))
	}
	sb.WriteString("  </spine>\n</package>")
	return sb.String()
}

// xhtmlDoc wraps body content in a minimal XHTML document.
func xhtmlDoc(body string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml"><head><title></title></head><body>` + body + `</body></html>`
}

// buildTestEPUB writes a three-chapter EPUB with a nav document to a temp
// file and returns its path. Chapter text is distinctive per chapter so
// content matching can be asserted.
func buildTestEPUB(t *testing.T) string {
	t.Helper()
	nav := xhtmlDoc(`<nav epub:type="toc" xmlns:epub="http://www.idpf.org/2007/ops"><ol>
		<li><a href="c1.xhtml">Chapter One</a></li>
		<li><a href="c2.xhtml">Chapter Two</a></li>
		<li><a href="c3.xhtml">Chapter Three</a></li>
	</ol></nav>`)
	opf := buildOPF("Test Book", []zipEntry{
		{"nav", "nav.xhtml"},
		{"c1", "c1.xhtml"},
		{"c2", "c2.xhtml"},
		{"c3", "c3.xhtml"},
	}, []string{"c1", "c2", "c3"}, "")

	data := buildZip(t, []zipEntry{
		{"mimetype", "application/epub+zip"},
		{"META-INF/container.xml", testContainerXML},
		{"OEBPS/content.opf", opf},
		{"OEBPS/nav.xhtml", nav},
		{"OEBPS/c1.xhtml", xhtmlDoc(`<h1>Chapter One</h1>
			<p>The morning fog rolled in across the harbor before dawn.</p>
			<p>Fishermen prepared their nets in the cold grey light.</p>`)},
		{"OEBPS/c2.xhtml", xhtmlDoc(`<h1>Chapter Two</h1>
			<p>The storm arrived without warning on the third day.</p>
			<p>Waves crashed over the breakwater and flooded the streets.</p>`)},
		{"OEBPS/c3.xhtml", xhtmlDoc(`<h1>Chapter Three</h1>
			<p>Spring came late that year to the northern coast.</p>`)},
	})
	return writeArchive(t, "test.epub", data)
}

// buildTestKEPUB writes the Kobo rendition of the same three chapters,
// with kobo span markers, to a temp file.
func buildTestKEPUB(t *testing.T) string {
	t.Helper()
	opf := buildOPF("Test Book", []zipEntry{
		{"c1", "c1.xhtml"},
		{"c2", "c2.xhtml"},
		{"c3", "c3.xhtml"},
	}, []string{"c1", "c2", "c3"}, "")

	data := buildZip(t, []zipEntry{
		{"mimetype", "application/epub+zip"},
		{"META-INF/container.xml", testContainerXML},
		{"OEBPS/content.opf", opf},
		{"OEBPS/c1.xhtml", xhtmlDoc(`<h1><span id="kobo.1.1">Chapter One</span></h1>
			<p><span id="kobo.2.1">The morning fog rolled in across the harbor before dawn.</span></p>
			<p><span id="kobo.3.1">Fishermen prepared their nets in the cold grey light.</span></p>`)},
		{"OEBPS/c2.xhtml", xhtmlDoc(`<h1><span id="kobo.1.1">Chapter Two</span></h1>
			<p><span id="kobo.2.1">The storm arrived without warning on the third day.</span></p>
			<p><span id="kobo.3.1">Waves crashed over the breakwater and flooded the streets.</span></p>`)},
		{"OEBPS/c3.xhtml", xhtmlDoc(`<h1><span id="kobo.1.1">Chapter Three</span></h1>
			<p><span id="kobo.2.1">Spring came late that year to the northern coast.</span></p>`)},
	})
	return writeArchive(t, "test.kepub.epub", data)
}

// buildBookDir lays out a resolver-compatible book directory containing
// both renditions and returns (root, bookID).
func buildBookDir(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	const bookID = "42"
	dir := filepath.Join(root, bookID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}

	for _, f := range []struct{ src, dst string }{
		{buildTestEPUB(t), "test.epub"},
		{buildTestKEPUB(t), "test.kepub.epub"},
	} {
		data, err := os.ReadFile(f.src)
		if err != nil {
			t.Fatalf("read %s: %v", f.src, err)
		}
		if err := os.WriteFile(filepath.Join(dir, f.dst), data, 0o644); err != nil {
			t.Fatalf("write %s: %v", f.dst, err)
		}
	}
	return root, bookID
}
