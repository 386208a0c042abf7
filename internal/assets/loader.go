package assets

// Bundle maps a logical template name to its bytes.
// Implementations may load from embedded assets, the filesystem, or memory.
type Bundle interface {
	// Load returns the named template.
	// Returns a *TemplateMissingError if the template doesn't exist.
	Load(name string) ([]byte, error)
}

// Logical template names. Each name is also the path of the generated file
// relative to the container root.
const (
	ContainerXML    = "META-INF/container.xml"
	Mimetype        = "mimetype"
	PageStyles      = "page_styles.css"
	Stylesheet      = "stylesheet.css"
	ContentOPF      = "content.opf"
	IndexHTML       = "index.html"
	TitlePage       = "titlepage.xhtml"
	TableOfContents = "toc.ncx"
)

// StaticNames lists the templates copied into a container unchanged.
func StaticNames() []string {
	return []string{ContainerXML, Mimetype, PageStyles, Stylesheet}
}

// GeneratedNames lists the templates that carry placeholders.
func GeneratedNames() []string {
	return []string{ContentOPF, IndexHTML, TitlePage, TableOfContents}
}

// ReservedIDs lists the manifest and metadata identifiers declared by the
// content.opf template. Generated items must not reuse them.
func ReservedIDs() []string {
	return []string{"idindex", "idtitlepage", "page_css", "css", "ncx", "uuid_id"}
}
