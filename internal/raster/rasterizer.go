package raster

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"
)

// Worker sizing constants.
const (
	MinWorkers = 1
	MaxWorkers = 8

	// cpuDivisor leaves headroom for the renderer's own child processes.
	cpuDivisor = 2

	jpegQuality = 90
)

// ErrEmptyDocument indicates the document reports zero pages.
var ErrEmptyDocument = errors.New("document has no pages")

// Rasterizer turns a document into an ordered set of page images.
type Rasterizer struct {
	Backend Backend
	Workers int
	Logger  *slog.Logger
}

// NewRasterizer creates a Rasterizer using backend with an automatically
// sized worker pool.
func NewRasterizer(backend Backend) *Rasterizer {
	return &Rasterizer{Backend: backend}
}

// ResolveWorkers determines the page rendering parallelism.
// Priority: explicit workers > GOMAXPROCS-based calculation.
func ResolveWorkers(workers int) int {
	if workers > 0 {
		return workers
	}

	n := runtime.GOMAXPROCS(0) / cpuDivisor
	if n < MinWorkers {
		return MinWorkers
	}
	if n > MaxWorkers {
		return MaxWorkers
	}
	return n
}

func (r *Rasterizer) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Render rasterizes every page of doc into outDir and returns the resulting
// working set in page order.
//
// Rendering is all-or-nothing: on failure every page already written by this
// call is removed and a *RenderError is returned.
func (r *Rasterizer) Render(ctx context.Context, doc *Document, outDir string, spec RenderSpec) (*WorkingSet, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if r.Backend == nil {
		return nil, &RenderError{Path: doc.Path, Page: -1, Err: errors.New("no rendering backend configured")}
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, &RenderError{Path: doc.Path, Page: -1, Err: fmt.Errorf("failed to create output directory: %w", err)}
	}

	total, err := doc.PageCount(ctx, r.Backend)
	if err != nil {
		return nil, &RenderError{Path: doc.Path, Page: -1, Err: err}
	}
	if total <= 0 {
		return nil, &RenderError{Path: doc.Path, Page: -1, Err: ErrEmptyDocument}
	}

	workers := ResolveWorkers(r.Workers)
	r.logger().Info("rasterizing document",
		"path", doc.Path, "pages", total, "dpi", spec.DPI,
		"box", fmt.Sprintf("%dx%d", spec.Width, spec.Height), "workers", workers)

	pages := make([]PageImage, total)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range total {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			page, err := r.renderPage(gctx, doc.Path, outDir, i, total, spec)
			if err != nil {
				return &RenderError{Path: doc.Path, Page: i, Err: err}
			}
			pages[i] = page
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		removePages(pages)
		var renderErr *RenderError
		if !errors.As(err, &renderErr) {
			err = &RenderError{Path: doc.Path, Page: -1, Err: err}
		}
		return nil, err
	}

	r.logger().Debug("rasterized document", "path", doc.Path, "dir", outDir, "pages", total)
	return &WorkingSet{Dir: outDir, Pages: pages}, nil
}

func (r *Rasterizer) renderPage(ctx context.Context, path, outDir string, index, total int, spec RenderSpec) (PageImage, error) {
	img, err := r.Backend.RenderPage(ctx, path, index, spec.DPI)
	if err != nil {
		return PageImage{}, err
	}
	if img == nil || img.Bounds().Empty() {
		return PageImage{}, errors.New("backend returned an empty image")
	}

	name := PageName(index, total, spec.Format)
	dest := filepath.Join(outDir, name)
	if err := writeImage(dest, FitToBox(img, spec.Width, spec.Height), spec.Format); err != nil {
		return PageImage{}, err
	}
	return PageImage{Index: index, Name: name, Path: dest}, nil
}

// FitToBox scales img to fit within width x height, keeping its aspect ratio.
// Images already inside the box are returned unchanged.
func FitToBox(img image.Image, width, height int) image.Image {
	return imaging.Fit(img, width, height, imaging.Lanczos)
}

// writeImage encodes img to a hidden temp file next to dest and renames it
// into place, so dest is either complete or absent.
func writeImage(dest string, img image.Image, format Format) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".page-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create page file: %w", err)
	}
	tmpName := tmp.Name()

	var encErr error
	if format == FormatJPEG {
		encErr = imaging.Encode(tmp, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality))
	} else {
		encErr = imaging.Encode(tmp, img, imaging.PNG)
	}
	closeErr := tmp.Close()
	if encErr != nil || closeErr != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to encode page: %w", errors.Join(encErr, closeErr))
	}

	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write page: %w", err)
	}
	return nil
}

func removePages(pages []PageImage) {
	for _, p := range pages {
		if p.Path != "" {
			os.Remove(p.Path)
		}
	}
}
