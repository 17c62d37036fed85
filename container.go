package readpos

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"strings"
)

// containerPath is the well-known location of the container descriptor.
const containerPath = "META-INF/container.xml"

// containerXML models META-INF/container.xml, used to locate the package
// descriptor.
type containerXML struct {
	XMLName   xml.Name   `xml:"container"`
	RootFiles []rootFile `xml:"rootfiles>rootfile"`
}

// rootFile represents a single <rootfile> element inside container.xml.
type rootFile struct {
	FullPath  string `xml:"full-path,attr"`
	MediaType string `xml:"media-type,attr"`
}

// locateDescriptor finds the package descriptor (.opf) path inside the
// archive. It first reads META-INF/container.xml; if that is missing or
// unusable it scans all entry names for one ending in ".opf" and takes the
// first match. Failure is a wrapped ErrStructureUnavailable.
func locateDescriptor(zr *zip.Reader) (string, error) {
	for _, f := range zr.File {
		if strings.EqualFold(f.Name, containerPath) {
			if p, err := parseContainerXML(f); err == nil {
				return p, nil
			}
			break
		}
	}

	// Fallback: first .opf entry in the archive.
	for _, f := range zr.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".opf") {
			return f.Name, nil
		}
	}
	return "", fmt.Errorf("readpos: no package descriptor found: %w", ErrStructureUnavailable)
}

// parseContainerXML decodes a container.xml entry and returns the full-path
// of the first usable rootfile.
func parseContainerXML(f *zip.File) (string, error) {
	data, err := readZipFile(f)
	if err != nil {
		return "", err
	}
	data = stripBOM(data)

	var c containerXML
	if err := xml.Unmarshal(data, &c); err != nil {
		return "", fmt.Errorf("readpos: parse container.xml: %w", err)
	}

	var fallback string
	for _, rf := range c.RootFiles {
		full := strings.TrimSpace(rf.FullPath)
		if full == "" {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(rf.MediaType), "application/oebps-package+xml") {
			return full, nil
		}
		if fallback == "" {
			fallback = full
		}
	}
	if fallback == "" {
		return "", fmt.Errorf("readpos: container.xml has no usable rootfile: %w", ErrStructureUnavailable)
	}
	return fallback, nil
}
