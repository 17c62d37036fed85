package readpos

import (
	"archive/zip"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
)

// maxDecompressSize is the maximum allowed decompressed size for a single
// ZIP entry, guarding against zip bombs. 256 MB.
const maxDecompressSize int64 = 256 * 1024 * 1024

// archive wraps an open book container: the ZIP reader, its entry indexes,
// and the parsed package descriptor (manifest + spine).
type archive struct {
	zr     *zip.Reader
	closer io.Closer

	exact map[string]*zip.File // exact-match ZIP file index
	lower map[string]*zip.File // lowercase ZIP file index

	opfPath string
	opfDir  string

	// manifest preserves package-descriptor document order.
	manifest     []manifestEntry
	manifestByID map[string]string

	// spine holds deduplicated idrefs in reading order.
	spine []string

	// title is the first dc:title from the descriptor metadata, used for
	// position-file naming.
	title string

	// ncxID is the spine's toc attribute, naming the legacy
	// navigation-control manifest item, when present.
	ncxID string
}

// manifestEntry is one (id, href) pair from the package descriptor.
type manifestEntry struct {
	ID   string
	Href string
}

// openArchive opens a book archive and parses its package descriptor.
// Any failure – unreadable zip, missing descriptor, malformed XML, DRM –
// is reported as a wrapped ErrStructureUnavailable.
func openArchive(archivePath string) (*archive, error) {
	zrc, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("readpos: open %s: %w", archivePath, ErrStructureUnavailable)
	}

	ar, err := initArchive(&zrc.Reader, zrc)
	if err != nil {
		zrc.Close()
		return nil, err
	}
	return ar, nil
}

// initArchive builds the entry indexes and parses container + descriptor.
func initArchive(zr *zip.Reader, closer io.Closer) (*archive, error) {
	ar := &archive{zr: zr, closer: closer}
	ar.buildIndex()

	if drmProtected(zr) {
		return nil, fmt.Errorf("readpos: DRM-protected archive: %w", ErrStructureUnavailable)
	}

	opfPath, err := locateDescriptor(zr)
	if err != nil {
		return nil, err
	}
	ar.opfPath = opfPath
	ar.opfDir = path.Dir(opfPath)

	data, err := ar.readFile(opfPath)
	if err != nil {
		return nil, fmt.Errorf("readpos: read descriptor %s: %w", opfPath, ErrStructureUnavailable)
	}

	if err := ar.parseDescriptor(data); err != nil {
		return nil, err
	}

	return ar, nil
}

// close releases the underlying file when the archive was opened by path.
func (ar *archive) close() {
	if ar.closer != nil {
		ar.closer.Close()
		ar.closer = nil
	}
}

// buildIndex builds exact-match and lowercase entry indexes for O(1) lookups.
func (ar *archive) buildIndex() {
	ar.exact = make(map[string]*zip.File, len(ar.zr.File))
	ar.lower = make(map[string]*zip.File, len(ar.zr.File))
	for _, f := range ar.zr.File {
		if _, ok := ar.exact[f.Name]; !ok {
			ar.exact[f.Name] = f // first match wins
		}
		low := strings.ToLower(f.Name)
		if _, ok := ar.lower[low]; !ok {
			ar.lower[low] = f
		}
	}
}

// findFile looks up a ZIP entry by path, trying an exact match first and a
// case-insensitive match second. Returns nil if no entry matches.
func (ar *archive) findFile(name string) *zip.File {
	if f, ok := ar.exact[name]; ok {
		return f
	}
	if f, ok := ar.lower[strings.ToLower(name)]; ok {
		return f
	}
	return nil
}

// readFile reads a ZIP entry by its archive-internal path.
func (ar *archive) readFile(name string) ([]byte, error) {
	f := ar.findFile(name)
	if f == nil {
		return nil, ErrFileNotFound
	}
	data, err := readZipFile(f)
	if err != nil {
		return nil, err
	}
	return stripBOM(data), nil
}

// readContent reads a manifest href, applying the resolution rule used
// everywhere content files are read: try the href literally, then resolved
// relative to the descriptor directory. Returns the content and the path
// that actually resolved.
func (ar *archive) readContent(href string) ([]byte, string, error) {
	if data, err := ar.readFile(href); err == nil {
		return data, href, nil
	}
	if resolved := resolveRelativePath(ar.opfPath, href); resolved != "" && resolved != href {
		if data, err := ar.readFile(resolved); err == nil {
			return data, resolved, nil
		}
	}
	return nil, "", ErrFileNotFound
}

// spineHrefs returns the manifest hrefs of the spine items, in reading
// order. Spine ids with no manifest entry are skipped.
func (ar *archive) spineHrefs() []string {
	hrefs := make([]string, 0, len(ar.spine))
	for _, id := range ar.spine {
		if href, ok := ar.manifestByID[id]; ok {
			hrefs = append(hrefs, href)
		}
	}
	return hrefs
}

// resolveRelativePath resolves href relative to the directory of basePath.
// Both are ZIP-internal forward-slash paths. The result is cleaned and
// validated to stay within the archive root; escapes yield "".
func resolveRelativePath(basePath, href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "/") {
		return ""
	}
	if decoded, err := url.PathUnescape(href); err == nil {
		href = decoded
	}
	cleaned := path.Clean(path.Join(path.Dir(basePath), href))
	if !isSafePath(cleaned) {
		return ""
	}
	return cleaned
}

// isSafePath checks whether p is a ZIP-internal path that does not escape
// the archive root via traversal.
func isSafePath(p string) bool {
	cleaned := path.Clean(p)
	if strings.HasPrefix(cleaned, "/") {
		return false
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return false
	}
	return true
}

// stripBOM removes a leading UTF-8 BOM from data, if present.
func stripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

// readZipFile reads the full contents of a ZIP entry, enforcing
// maxDecompressSize and rejecting unsafe entry paths.
func readZipFile(f *zip.File) ([]byte, error) {
	if !isSafePath(f.Name) {
		return nil, fmt.Errorf("readpos: unsafe zip entry path: %s", f.Name)
	}
	if f.UncompressedSize64 > uint64(maxDecompressSize) {
		return nil, fmt.Errorf("readpos: zip entry %s too large: %d bytes", f.Name, f.UncompressedSize64)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("readpos: open zip entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	// Read up to limit+1 so a forged declared size is still caught.
	lr := io.LimitReader(rc, maxDecompressSize+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, fmt.Errorf("readpos: read zip entry %s: %w", f.Name, err)
	}
	if int64(len(data)) > maxDecompressSize {
		return nil, fmt.Errorf("readpos: zip entry %s exceeds decompression limit", f.Name)
	}
	return data, nil
}
