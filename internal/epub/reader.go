package epub

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/yuanying/pdf2epub/internal/assets"
)

const epubMimetype = "application/epub+zip"

// Reader provides access to EPUB file contents
type Reader struct {
	zipReader *zip.ReadCloser
	files     map[string]*zip.File
	opfPath   string
}

// container.xml structure
type container struct {
	Rootfiles struct {
		Rootfile []struct {
			FullPath  string `xml:"full-path,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"rootfile"`
	} `xml:"rootfiles"`
}

var (
	ErrInvalidMimetype    = errors.New("invalid mimetype: must be 'application/epub+zip'")
	ErrMimetypeCompressed = errors.New("mimetype must not be compressed")
	ErrMimetypeNotFirst   = errors.New("mimetype must be the first entry")
	ErrMimetypeNotFound   = errors.New("mimetype file not found")
	ErrContainerNotFound  = errors.New("META-INF/container.xml not found")
	ErrOPFPathNotFound    = errors.New("OPF path not found in container.xml")
)

// Open opens an EPUB file and validates its structure
func Open(path string) (*Reader, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open EPUB: %w", err)
	}

	r := &Reader{
		zipReader: zr,
		files:     make(map[string]*zip.File),
	}
	for _, f := range zr.File {
		r.files[strings.TrimPrefix(f.Name, "./")] = f
	}

	if err := r.validateMimetype(); err != nil {
		zr.Close()
		return nil, err
	}
	if err := r.parseContainer(); err != nil {
		zr.Close()
		return nil, err
	}

	return r, nil
}

// Close closes the EPUB reader
func (r *Reader) Close() error {
	return r.zipReader.Close()
}

// OPFPath returns the path to the OPF file
func (r *Reader) OPFPath() string {
	return r.opfPath
}

// EntryNames returns the archive entry names in archive order.
func (r *Reader) EntryNames() []string {
	names := make([]string, 0, len(r.zipReader.File))
	for _, f := range r.zipReader.File {
		names = append(names, f.Name)
	}
	return names
}

// ReadFile reads the contents of a file from the EPUB
func (r *Reader) ReadFile(name string) ([]byte, error) {
	name = strings.TrimPrefix(name, "./")
	f, ok := r.files[name]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", name)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", name, err)
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

// OPF reads and parses the package document.
func (r *Reader) OPF() (*OPF, error) {
	data, err := r.ReadFile(r.opfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read OPF: %w", err)
	}
	return ParseOPF(data, path.Dir(r.opfPath))
}

// Inspect summarizes the container: package metadata, image items and the
// page fragments of index.html.
func (r *Reader) Inspect() (*Summary, error) {
	opf, err := r.OPF()
	if err != nil {
		return nil, err
	}

	s := &Summary{
		Title:      opf.Metadata.Title,
		Identifier: opf.Metadata.Identifier,
		Date:       opf.Metadata.Date,
		Entries:    r.EntryNames(),
	}
	for _, id := range opf.ManifestOrder {
		item := opf.Manifest[id]
		if strings.HasPrefix(item.MediaType, "image/") {
			s.Images = append(s.Images, item.Href)
		}
	}

	indexPath := path.Join(path.Dir(r.opfPath), assets.IndexHTML)
	data, err := r.ReadFile(indexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}
	content, err := LoadContent(indexPath, data)
	if err != nil {
		return nil, err
	}
	s.Anchors = content.AnchorIDs
	s.PageRefs = content.ImageRefs

	return s, nil
}

// validateMimetype checks that the mimetype file is the first entry, is
// stored uncompressed and declares the EPUB media type.
func (r *Reader) validateMimetype() error {
	f, ok := r.files["mimetype"]
	if !ok {
		return ErrMimetypeNotFound
	}
	if r.zipReader.File[0] != f {
		return ErrMimetypeNotFirst
	}
	if f.Method != zip.Store {
		return ErrMimetypeCompressed
	}

	content, err := r.ReadFile("mimetype")
	if err != nil {
		return fmt.Errorf("failed to read mimetype: %w", err)
	}
	if string(content) != epubMimetype {
		return ErrInvalidMimetype
	}

	return nil
}

// parseContainer parses container.xml to extract OPF path
func (r *Reader) parseContainer() error {
	content, err := r.ReadFile(assets.ContainerXML)
	if err != nil {
		return ErrContainerNotFound
	}

	var c container
	if err := xml.Unmarshal(content, &c); err != nil {
		return fmt.Errorf("failed to parse container.xml: %w", err)
	}

	for _, rf := range c.Rootfiles.Rootfile {
		if rf.MediaType == "application/oebps-package+xml" || rf.MediaType == "" {
			r.opfPath = strings.TrimPrefix(rf.FullPath, "./")
			return nil
		}
	}

	// If no media-type match, use the first one
	if len(c.Rootfiles.Rootfile) > 0 {
		r.opfPath = strings.TrimPrefix(c.Rootfiles.Rootfile[0].FullPath, "./")
		return nil
	}

	return ErrOPFPathNotFound
}
