package epub

import (
	"errors"
	"fmt"
	"html"
	"net/url"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/yuanying/pdf2epub/internal/assets"
	"github.com/yuanying/pdf2epub/internal/raster"
)

// Page images packaged into a container.
const (
	ImageExt       = ".png"
	ImageMediaType = "image/png"
	ImagesDir      = "images"
)

// ErrDuplicateID indicates two image files map to the same identifier,
// e.g. "a.png" and "a.PNG".
var ErrDuplicateID = errors.New("duplicate manifest identifier")

// ErrInvalidID indicates an image file name does not yield a valid XML
// identifier, e.g. "page 1.png".
var ErrInvalidID = errors.New("invalid manifest identifier")

// ManifestItem cross-references one page image from the package files.
type ManifestItem struct {
	ID        string // "id" + base name without extension
	Name      string // file name inside images/
	Href      string // container-relative URL, percent-encoded
	MediaType string
}

// Manifest lists the page images of a container in page order.
type Manifest struct {
	Items []ManifestItem
}

// ImageID derives the manifest identifier for an image file name:
// "page-0003.png" becomes "idpage-0003".
func ImageID(name string) string {
	return "id" + strings.TrimSuffix(name, filepath.Ext(name))
}

// NewManifest derives a manifest from ws, keeping its order. The result
// depends only on the file names, so rebuilding it from the same working set
// yields identical identifiers.
func NewManifest(ws *raster.WorkingSet) (*Manifest, error) {
	m := &Manifest{Items: make([]ManifestItem, 0, len(ws.Pages))}
	seen := make(map[string]string, len(ws.Pages))
	for _, id := range assets.ReservedIDs() {
		seen[id] = assets.ContentOPF
	}
	for _, p := range ws.Pages {
		id := ImageID(p.Name)
		if !ValidID(id) {
			return nil, fmt.Errorf("%w: %q from %s", ErrInvalidID, id, p.Name)
		}
		if prev, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %q for %s and %s", ErrDuplicateID, id, prev, p.Name)
		}
		seen[id] = p.Name
		m.Items = append(m.Items, ManifestItem{
			ID:        id,
			Name:      p.Name,
			Href:      (&url.URL{Path: ImagesDir + "/" + p.Name}).String(),
			MediaType: ImageMediaType,
		})
	}
	return m, nil
}

// ValidID reports whether id is an XML NCName: a letter or underscore
// followed by letters, digits, '.', '-' or '_'.
func ValidID(id string) bool {
	if id == "" {
		return false
	}
	for i, r := range id {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case i > 0 && (r == '.' || r == '-' || unicode.IsDigit(r)):
		default:
			return false
		}
	}
	return true
}

// OPFItems renders one <item> line per image for content.opf.
func (m *Manifest) OPFItems() string {
	var sb strings.Builder
	for _, it := range m.Items {
		fmt.Fprintf(&sb, "<item href=\"%s\" id=\"%s\" media-type=\"%s\"/>\n",
			html.EscapeString(it.Href), html.EscapeString(it.ID), it.MediaType)
	}
	return sb.String()
}

// IndexFragments renders one anchored image paragraph per image for
// index.html.
func (m *Manifest) IndexFragments() string {
	var sb strings.Builder
	for _, it := range m.Items {
		fmt.Fprintf(&sb, "<p class=\"pdf-converter1\"><a id=\"%s\"></a><img src=\"%s\" class=\"pdf-converter2\"/></p>\n",
			html.EscapeString(it.ID), html.EscapeString(it.Href))
	}
	return sb.String()
}
