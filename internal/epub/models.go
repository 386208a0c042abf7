package epub

// OPF represents the parsed Open Package Format document
type OPF struct {
	Metadata      Metadata
	Manifest      map[string]ManifestEntry // id -> item
	ManifestOrder []string                 // ids in document order
	Spine         []string                 // idrefs in reading order
	NCXPath       string
}

// Metadata represents the metadata section of the OPF
type Metadata struct {
	Title      string
	Creators   []string
	Language   string
	Identifier string
	Date       string
}

// ManifestEntry represents an item in the manifest
type ManifestEntry struct {
	ID        string
	Href      string
	MediaType string
}

// Summary describes a packaged container.
type Summary struct {
	Title      string
	Identifier string
	Date       string
	Entries    []string // archive entry names in archive order
	Images     []string // manifest hrefs with an image media type, in manifest order
	Anchors    []string // anchor ids in index.html, in document order
	PageRefs   []string // img src values in index.html, in document order
}
