package epub

import (
	"bytes"
	"fmt"
	"path"

	"github.com/PuerkitoBio/goquery"
)

// Content represents a parsed XHTML content file
type Content struct {
	Path      string            // File path
	Document  *goquery.Document // Parsed HTML document
	AnchorIDs []string          // ids of <a> elements, in document order
	ImageRefs []string          // Referenced image paths, resolved against Path
}

// LoadContent parses an XHTML content file located at path within the EPUB.
func LoadContent(name string, content []byte) (*Content, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse XHTML: %w", err)
	}

	c := &Content{
		Path:     name,
		Document: doc,
	}
	baseDir := path.Dir(name)

	doc.Find("a[id]").Each(func(i int, s *goquery.Selection) {
		if id, exists := s.Attr("id"); exists {
			c.AnchorIDs = append(c.AnchorIDs, id)
		}
	})

	doc.Find("img").Each(func(i int, s *goquery.Selection) {
		if src, exists := s.Attr("src"); exists {
			c.ImageRefs = append(c.ImageRefs, path.Join(baseDir, src))
		}
	})

	return c, nil
}
