package raster

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// Default render settings.
const (
	DefaultDPI    = 300
	DefaultWidth  = 600
	DefaultHeight = 800
)

var (
	ErrInvalidRenderSpec = errors.New("invalid render spec")
	ErrUnknownFormat     = errors.New("unknown image format")
)

// Format is the encoding of rendered page images.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// ParseFormat converts a user-supplied name to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Ext returns the file extension for the format, including the dot.
func (f Format) Ext() string {
	if f == FormatJPEG {
		return ".jpg"
	}
	return ".png"
}

// RenderSpec configures rasterization.
type RenderSpec struct {
	DPI    int
	Width  int // target box width in pixels
	Height int // target box height in pixels
	Format Format
}

// DefaultRenderSpec returns 300 DPI, a 600x800 box, PNG.
func DefaultRenderSpec() RenderSpec {
	return RenderSpec{
		DPI:    DefaultDPI,
		Width:  DefaultWidth,
		Height: DefaultHeight,
		Format: FormatPNG,
	}
}

// Validate checks that all dimensions are positive and the format is known.
func (s RenderSpec) Validate() error {
	if s.DPI <= 0 {
		return fmt.Errorf("%w: dpi must be positive, got %d", ErrInvalidRenderSpec, s.DPI)
	}
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("%w: box must be positive, got %dx%d", ErrInvalidRenderSpec, s.Width, s.Height)
	}
	if s.Format != FormatPNG && s.Format != FormatJPEG {
		return fmt.Errorf("%w: %w: %q", ErrInvalidRenderSpec, ErrUnknownFormat, s.Format)
	}
	return nil
}

// Backend renders PDF pages to bitmaps.
type Backend interface {
	// PageCount returns the number of pages in the document at path.
	PageCount(ctx context.Context, path string) (int, error)

	// RenderPage renders the zero-based page of the document at dpi.
	RenderPage(ctx context.Context, path string, page, dpi int) (image.Image, error)
}

// Document is a paginated source file. The page count is discovered on
// first use and cached.
type Document struct {
	Path string

	once  sync.Once
	pages int
	err   error
}

// NewDocument returns a Document for the file at path.
func NewDocument(path string) *Document {
	return &Document{Path: path}
}

// SpoolDocument copies r into a new file under dir and returns a Document
// for it. The caller owns the file and removes it with dir.
func SpoolDocument(r io.Reader, dir string) (*Document, error) {
	f, err := os.CreateTemp(dir, "source-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create spool file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("failed to spool document: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("failed to spool document: %w", err)
	}
	return NewDocument(f.Name()), nil
}

// PageCount asks backend for the page count once and caches the result.
func (d *Document) PageCount(ctx context.Context, backend Backend) (int, error) {
	d.once.Do(func() {
		d.pages, d.err = backend.PageCount(ctx, d.Path)
	})
	return d.pages, d.err
}

// PageImage is one rendered page on disk.
type PageImage struct {
	Index int    // zero-based page index
	Name  string // file name, sorts in page order
	Path  string
}

// WorkingSet is an ordered set of page images under one directory.
type WorkingSet struct {
	Dir   string
	Pages []PageImage
}

// PageName returns the file name for the zero-based page index of a document
// with total pages. Page numbers are one-based and zero-padded to at least
// four digits, widening for larger documents, so plain string order always
// equals page order.
func PageName(index, total int, format Format) string {
	width := max(4, len(fmt.Sprint(total)))
	return fmt.Sprintf("page-%0*d%s", width, index+1, format.Ext())
}

// ListWorkingSet reads dir and returns the files whose extension matches ext
// case-insensitively, sorted by plain string comparison of their names.
// Index reflects the position in that order.
func ListWorkingSet(dir, ext string) (*WorkingSet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), strings.ToLower(ext)) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)

	ws := &WorkingSet{Dir: dir, Pages: make([]PageImage, 0, len(names))}
	for i, name := range names {
		ws.Pages = append(ws.Pages, PageImage{
			Index: i,
			Name:  name,
			Path:  filepath.Join(dir, name),
		})
	}
	return ws, nil
}
