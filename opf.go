package readpos

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"strings"
)

// opfPackage models the subset of the package descriptor this package
// needs: metadata title, manifest items, and spine references.
type opfPackage struct {
	XMLName  xml.Name    `xml:"package"`
	Metadata opfMetadata `xml:"metadata"`
	Manifest opfManifest `xml:"manifest"`
	Spine    opfSpine    `xml:"spine"`
}

// opfMetadata holds the Dublin Core titles from the descriptor.
type opfMetadata struct {
	Titles []string `xml:"http://purl.org/dc/elements/1.1/ title"`
}

// opfManifest wraps the <manifest> element.
type opfManifest struct {
	Items []opfManifestItem `xml:"item"`
}

// opfManifestItem represents a single <item> in the manifest.
type opfManifestItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

// opfSpine wraps the <spine> element.
type opfSpine struct {
	Toc      string            `xml:"toc,attr"`
	ItemRefs []opfSpineItemRef `xml:"itemref"`
}

// opfSpineItemRef represents a single <itemref> in the spine.
type opfSpineItemRef struct {
	IDRef string `xml:"idref,attr"`
}

// parseDescriptor parses the package descriptor XML and populates the
// archive's manifest, spine, and title. Manifest document order is
// preserved; duplicate spine idrefs are dropped so that spine order has no
// duplicate ids.
func (ar *archive) parseDescriptor(data []byte) error {
	data = stripBOM(data)

	var pkg opfPackage
	if err := xml.Unmarshal(data, &pkg); err != nil {
		return fmt.Errorf("readpos: parse package descriptor: %w", ErrStructureUnavailable)
	}

	ar.manifest = make([]manifestEntry, 0, len(pkg.Manifest.Items))
	ar.manifestByID = make(map[string]string, len(pkg.Manifest.Items))
	for _, item := range pkg.Manifest.Items {
		if item.ID == "" || item.Href == "" {
			continue
		}
		ar.manifest = append(ar.manifest, manifestEntry{ID: item.ID, Href: item.Href})
		if _, ok := ar.manifestByID[item.ID]; !ok {
			ar.manifestByID[item.ID] = item.Href
		}
	}

	seen := make(map[string]bool, len(pkg.Spine.ItemRefs))
	ar.spine = make([]string, 0, len(pkg.Spine.ItemRefs))
	for _, ref := range pkg.Spine.ItemRefs {
		if ref.IDRef == "" || seen[ref.IDRef] {
			continue
		}
		seen[ref.IDRef] = true
		ar.spine = append(ar.spine, ref.IDRef)
	}

	for _, t := range pkg.Metadata.Titles {
		if t = strings.TrimSpace(t); t != "" {
			ar.title = t
			break
		}
	}

	ar.ncxID = pkg.Spine.Toc
	return nil
}

// --- DRM detection ---

// encryptionFilePath is the standard path for the encryption descriptor.
const encryptionFilePath = "META-INF/encryption.xml"

// sinfFilePath indicates Apple FairPlay DRM.
const sinfFilePath = "META-INF/sinf.xml"

// fontObfuscationAlgorithms are encryption algorithm URIs that do NOT
// constitute DRM.
var fontObfuscationAlgorithms = map[string]bool{
	"http://www.idpf.org/2008/embedding": true, // IDPF font obfuscation
	"http://ns.adobe.com/pdf/enc#RC":     true, // Adobe font obfuscation
}

type xmlEncryption struct {
	XMLName       xml.Name           `xml:"encryption"`
	EncryptedData []xmlEncryptedData `xml:"EncryptedData"`
}

type xmlEncryptedData struct {
	EncryptionMethod xmlEncryptionMethod `xml:"EncryptionMethod"`
}

type xmlEncryptionMethod struct {
	Algorithm string `xml:"Algorithm,attr"`
}

// drmProtected reports whether the archive carries DRM encryption. Content
// of a protected archive cannot be read, so the analyzer treats it as
// structure-unknown. Font obfuscation alone is not DRM.
func drmProtected(zr *zip.Reader) bool {
	var encFile *zip.File
	for _, f := range zr.File {
		if strings.EqualFold(f.Name, sinfFilePath) {
			return true
		}
		if strings.EqualFold(f.Name, encryptionFilePath) {
			encFile = f
		}
	}
	if encFile == nil {
		return false
	}

	data, err := readZipFile(encFile)
	if err != nil {
		return true // unreadable encryption descriptor: assume protected
	}

	var enc xmlEncryption
	if err := xml.Unmarshal(stripBOM(data), &enc); err != nil {
		return true
	}
	for _, ed := range enc.EncryptedData {
		if !fontObfuscationAlgorithms[ed.EncryptionMethod.Algorithm] {
			return true
		}
	}
	return false
}
