package epub

import (
	"encoding/xml"
	"fmt"
	"path"
)

// opfPackage represents the OPF XML structure
type opfPackage struct {
	XMLName  xml.Name    `xml:"package"`
	UniqueID string      `xml:"unique-identifier,attr"`
	Metadata opfMetadata `xml:"metadata"`
	Manifest struct {
		Items []opfManifestItem `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		Toc      string `xml:"toc,attr"`
		ItemRefs []struct {
			IDRef string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

// opfMetadata represents the metadata section
type opfMetadata struct {
	Title      []string        `xml:"http://purl.org/dc/elements/1.1/ title"`
	Creator    []string        `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Language   []string        `xml:"http://purl.org/dc/elements/1.1/ language"`
	Identifier []opfIdentifier `xml:"http://purl.org/dc/elements/1.1/ identifier"`
	Date       []string        `xml:"http://purl.org/dc/elements/1.1/ date"`
}

// opfIdentifier represents an identifier element
type opfIdentifier struct {
	Value string `xml:",chardata"`
	ID    string `xml:"id,attr"`
}

// opfManifestItem represents an item in the manifest
type opfManifestItem struct {
	ID        string `xml:"id,attr"`
	Href      string `xml:"href,attr"`
	MediaType string `xml:"media-type,attr"`
}

// ParseOPF parses an OPF file content and returns the OPF structure.
// opfDir is the directory containing the OPF file ("." for the root).
func ParseOPF(content []byte, opfDir string) (*OPF, error) {
	var pkg opfPackage
	if err := xml.Unmarshal(content, &pkg); err != nil {
		return nil, fmt.Errorf("failed to parse OPF XML: %w", err)
	}

	opf := &OPF{
		Manifest: make(map[string]ManifestEntry),
		Metadata: parseMetadata(&pkg.Metadata, pkg.UniqueID),
	}

	for _, item := range pkg.Manifest.Items {
		opf.Manifest[item.ID] = ManifestEntry{
			ID:        item.ID,
			Href:      path.Join(opfDir, item.Href),
			MediaType: item.MediaType,
		}
		opf.ManifestOrder = append(opf.ManifestOrder, item.ID)
	}

	for _, ref := range pkg.Spine.ItemRefs {
		opf.Spine = append(opf.Spine, ref.IDRef)
	}

	if pkg.Spine.Toc != "" {
		if ncxItem, ok := opf.Manifest[pkg.Spine.Toc]; ok {
			opf.NCXPath = ncxItem.Href
		}
	}

	return opf, nil
}

// parseMetadata parses the metadata section
func parseMetadata(meta *opfMetadata, uniqueID string) Metadata {
	md := Metadata{Creators: meta.Creator}

	if len(meta.Title) > 0 {
		md.Title = meta.Title[0]
	}
	if len(meta.Language) > 0 {
		md.Language = meta.Language[0]
	}
	if len(meta.Date) > 0 {
		md.Date = meta.Date[0]
	}

	// Identifier (find the one marked as unique-identifier)
	for _, id := range meta.Identifier {
		if id.ID == uniqueID {
			md.Identifier = id.Value
			break
		}
	}
	if md.Identifier == "" && len(meta.Identifier) > 0 {
		md.Identifier = meta.Identifier[0].Value
	}

	return md
}
