// Package rastertest provides a fake rendering backend and tiny PDF fixtures
// for tests of packages built on raster.
package rastertest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
	"sync/atomic"

	"github.com/disintegration/imaging"
)

// Backend is an in-memory raster.Backend. Every page renders as a solid
// image whose color encodes the page index, so tests can tell pages apart.
type Backend struct {
	Pages  int
	Width  int // rendered width before fitting; defaults to 1200
	Height int // rendered height before fitting; defaults to 1600

	// FailPage makes RenderPage fail for that zero-based page when >= 0.
	FailPage int
	// CountErr is returned by PageCount when set.
	CountErr error

	countCalls  atomic.Int32
	mu          sync.Mutex
	renderCalls []int
}

// NewBackend returns a Backend reporting pages pages and no failures.
func NewBackend(pages int) *Backend {
	return &Backend{Pages: pages, FailPage: -1}
}

// PageCount implements raster.Backend.
func (b *Backend) PageCount(ctx context.Context, path string) (int, error) {
	b.countCalls.Add(1)
	if b.CountErr != nil {
		return 0, b.CountErr
	}
	return b.Pages, nil
}

// RenderPage implements raster.Backend.
func (b *Backend) RenderPage(ctx context.Context, path string, page, dpi int) (image.Image, error) {
	b.mu.Lock()
	b.renderCalls = append(b.renderCalls, page)
	b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if page == b.FailPage {
		return nil, fmt.Errorf("cannot decode page %d", page)
	}
	if page < 0 || page >= b.Pages {
		return nil, fmt.Errorf("page %d out of range", page)
	}

	w, h := b.Width, b.Height
	if w <= 0 {
		w = 1200
	}
	if h <= 0 {
		h = 1600
	}
	return imaging.New(w, h, PageColor(page)), nil
}

// CountCalls reports how many times PageCount was called.
func (b *Backend) CountCalls() int {
	return int(b.countCalls.Load())
}

// RenderCalls reports how many pages were requested.
func (b *Backend) RenderCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.renderCalls)
}

// PageColor is the fill color used for page.
func PageColor(page int) color.NRGBA {
	return color.NRGBA{R: uint8(page * 40), G: uint8(255 - page*20), B: 128, A: 255}
}

// MinimalPDF builds a valid PDF with the given number of blank pages and a
// correct cross-reference table.
func MinimalPDF(pages int) []byte {
	var buf bytes.Buffer
	offsets := make([]int, 0, pages+2)

	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")

	kids := ""
	for i := range pages {
		kids += fmt.Sprintf("%d 0 R ", i+3)
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, pages))
	for range pages {
		obj("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 300 400] >>")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}
