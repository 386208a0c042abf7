// Package converter orchestrates a conversion run: rasterize the input PDF
// into a private working set, package it, and clean up.
package converter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/yuanying/pdf2epub/internal/archive"
	"github.com/yuanying/pdf2epub/internal/assets"
	"github.com/yuanying/pdf2epub/internal/epub"
	"github.com/yuanying/pdf2epub/internal/fsutil"
	"github.com/yuanying/pdf2epub/internal/raster"
)

// OutputFormat is the artifact produced by a conversion.
type OutputFormat string

// Supported output formats. FormatImages writes the page images into a
// directory instead of a container.
const (
	FormatEPUB   OutputFormat = "epub"
	FormatZIP    OutputFormat = "zip"
	FormatImages OutputFormat = "images"
)

// StdinPath as InputPath reads the PDF from ConvertOptions.Stdin.
const StdinPath = "-"

// Sentinel errors for pipeline validation.
var (
	ErrNoInput             = errors.New("no input: set an input PDF or an images directory")
	ErrConflictingInput    = errors.New("input PDF and images directory are mutually exclusive")
	ErrNoOutput            = errors.New("no output path")
	ErrUnknownFormat       = errors.New("unknown output format")
	ErrIncompatibleFormats = errors.New("epub output requires png page images")
	ErrImagesNeedPDF       = errors.New("images output requires an input PDF")
)

// ParseOutputFormat parses "epub", "zip" or "images", case-insensitively.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatEPUB, FormatZIP, FormatImages:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Ext returns the conventional file extension, including the dot.
// Image directories have none.
func (f OutputFormat) Ext() string {
	if f == FormatImages {
		return ""
	}
	return "." + string(f)
}

// ConvertOptions holds options for the conversion pipeline.
type ConvertOptions struct {
	InputPath  string    // PDF to rasterize, or StdinPath
	Stdin      io.Reader // PDF source for StdinPath; nil = os.Stdin
	ImagesDir  string // pre-rendered page images; skips rasterization
	OutputPath string
	Title      string

	Render  raster.RenderSpec // zero value = raster.DefaultRenderSpec()
	Workers int               // 0 = raster.ResolveWorkers default
	Backend raster.Backend    // nil = poppler-utils from PATH
	Bundle  assets.Bundle     // nil = embedded templates
	Logger  *slog.Logger
	TempDir string // parent of working directories; empty = os.TempDir()
}

// Pipeline orchestrates the PDF to EPUB/ZIP/images conversion.
type Pipeline struct {
	Options ConvertOptions
}

// NewPipeline creates a new conversion pipeline.
func NewPipeline(opts ConvertOptions) *Pipeline {
	return &Pipeline{Options: opts}
}

// ConvertToEPUB produces an EPUB at OutputPath.
func (p *Pipeline) ConvertToEPUB(ctx context.Context) error {
	return p.Convert(ctx, FormatEPUB)
}

// ConvertToZIP produces a flat ZIP of page images at OutputPath.
func (p *Pipeline) ConvertToZIP(ctx context.Context) error {
	return p.Convert(ctx, FormatZIP)
}

// ConvertToImages renders the page images into the directory OutputPath,
// creating it if missing. The directory is never removed.
func (p *Pipeline) ConvertToImages(ctx context.Context) error {
	return p.Convert(ctx, FormatImages)
}

// Convert executes the conversion pipeline.
//
// Failures are logged at error level and returned; the returned error wraps
// the stage error, so *raster.RenderError, *archive.ArchiveError and
// *assets.TemplateMissingError stay reachable through errors.As. The
// temporary working set is always removed; a caller-supplied ImagesDir is
// never modified. FormatImages renders straight into OutputPath; on failure
// the pages it wrote are removed and the directory is left in place.
func (p *Pipeline) Convert(ctx context.Context, format OutputFormat) (err error) {
	log := p.logger().With("output", p.Options.OutputPath, "format", string(format))
	start := time.Now()
	defer func() {
		if err != nil {
			log.Error("conversion failed", "error", err)
			return
		}
		log.Info("conversion finished", "elapsed", time.Since(start).Round(time.Millisecond))
	}()

	spec, err := p.validate(format)
	if err != nil {
		return err
	}

	if format == FormatImages {
		return p.writeImages(ctx, spec, log)
	}

	imagesDir, cleanup, err := p.prepareImages(ctx, spec, log)
	if err != nil {
		return err
	}
	defer cleanup()

	switch format {
	case FormatEPUB:
		return p.writeEPUB(ctx, imagesDir)
	default:
		return p.writeZIP(ctx, imagesDir)
	}
}

func (p *Pipeline) validate(format OutputFormat) (raster.RenderSpec, error) {
	opts := p.Options
	switch format {
	case FormatEPUB, FormatZIP, FormatImages:
	default:
		return raster.RenderSpec{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	switch {
	case opts.InputPath == "" && opts.ImagesDir == "":
		return raster.RenderSpec{}, ErrNoInput
	case opts.InputPath != "" && opts.ImagesDir != "":
		return raster.RenderSpec{}, ErrConflictingInput
	case opts.OutputPath == "":
		return raster.RenderSpec{}, ErrNoOutput
	case format == FormatImages && opts.InputPath == "":
		return raster.RenderSpec{}, ErrImagesNeedPDF
	}

	spec := opts.Render
	if spec == (raster.RenderSpec{}) {
		spec = raster.DefaultRenderSpec()
	}
	if opts.InputPath == "" {
		return spec, nil
	}
	if err := spec.Validate(); err != nil {
		return raster.RenderSpec{}, err
	}
	if format == FormatEPUB && spec.Format != raster.FormatPNG {
		return raster.RenderSpec{}, fmt.Errorf("%w: got %s", ErrIncompatibleFormats, spec.Format)
	}
	return spec, nil
}

// prepareImages returns the directory holding the page images and a cleanup
// function for it.
func (p *Pipeline) prepareImages(ctx context.Context, spec raster.RenderSpec, log *slog.Logger) (string, func(), error) {
	if p.Options.ImagesDir != "" {
		if !fsutil.DirExists(p.Options.ImagesDir) {
			return "", nil, fmt.Errorf("failed to read images directory: %w: %s", os.ErrNotExist, p.Options.ImagesDir)
		}
		return p.Options.ImagesDir, func() {}, nil
	}

	doc, release, err := p.openDocument(log)
	if err != nil {
		return "", nil, err
	}

	workDir, err := fsutil.MkdirUnique(p.Options.TempDir, "pdf2epub-")
	if err != nil {
		release()
		return "", nil, fmt.Errorf("failed to create working directory: %w", err)
	}
	cleanup := func() {
		if err := fsutil.RemoveAll(workDir); err != nil {
			log.Warn("failed to remove working directory", "error", err)
		}
		release()
	}

	if _, err := p.rasterizer().Render(ctx, doc, workDir, spec); err != nil {
		cleanup()
		return "", nil, err
	}
	return workDir, cleanup, nil
}

// openDocument resolves InputPath. A StdinPath source is spooled into its own
// temporary directory, removed by the returned release function.
func (p *Pipeline) openDocument(log *slog.Logger) (*raster.Document, func(), error) {
	if p.Options.InputPath != StdinPath {
		if _, err := os.Stat(p.Options.InputPath); err != nil {
			return nil, nil, fmt.Errorf("failed to open input: %w", err)
		}
		return raster.NewDocument(p.Options.InputPath), func() {}, nil
	}

	dir, err := fsutil.MkdirUnique(p.Options.TempDir, "pdf2epub-src-")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create spool directory: %w", err)
	}
	release := func() {
		if err := fsutil.RemoveAll(dir); err != nil {
			log.Warn("failed to remove spool directory", "error", err)
		}
	}

	src := p.Options.Stdin
	if src == nil {
		src = os.Stdin
	}
	doc, err := raster.SpoolDocument(src, dir)
	if err != nil {
		release()
		return nil, nil, err
	}
	log.Debug("spooled input from stdin", "path", doc.Path)
	return doc, release, nil
}

func (p *Pipeline) writeImages(ctx context.Context, spec raster.RenderSpec, log *slog.Logger) error {
	doc, release, err := p.openDocument(log)
	if err != nil {
		return err
	}
	defer release()

	ws, err := p.rasterizer().Render(ctx, doc, p.Options.OutputPath, spec)
	if err != nil {
		return err
	}
	log.Info("page images written", "pages", len(ws.Pages))
	return nil
}

func (p *Pipeline) rasterizer() *raster.Rasterizer {
	r := raster.NewRasterizer(p.backend())
	r.Workers = p.Options.Workers
	r.Logger = p.logger()
	return r
}

func (p *Pipeline) writeEPUB(ctx context.Context, imagesDir string) error {
	b := epub.NewBuilder(p.bundle())
	b.Logger = p.logger()
	b.TempDir = p.Options.TempDir
	return b.Build(ctx, p.Options.Title, imagesDir, p.Options.OutputPath)
}

func (p *Pipeline) writeZIP(ctx context.Context, imagesDir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return archive.BuildZip(imagesDir, p.Options.OutputPath, p.Options.Title)
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Options.Logger != nil {
		return p.Options.Logger
	}
	return slog.Default()
}

func (p *Pipeline) backend() raster.Backend {
	if p.Options.Backend != nil {
		return p.Options.Backend
	}
	return raster.NewPopplerBackend()
}

func (p *Pipeline) bundle() assets.Bundle {
	if p.Options.Bundle != nil {
		return p.Options.Bundle
	}
	return assets.NewEmbeddedBundle()
}
