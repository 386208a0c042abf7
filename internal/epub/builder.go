package epub

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/yuanying/pdf2epub/internal/archive"
	"github.com/yuanying/pdf2epub/internal/assets"
	"github.com/yuanying/pdf2epub/internal/fsutil"
	"github.com/yuanying/pdf2epub/internal/raster"
)

// Builder packages an ordered set of page images into an EPUB container.
type Builder struct {
	Bundle  assets.Bundle
	Logger  *slog.Logger
	TempDir string // parent of staging directories; empty = os.TempDir()

	// Now and NewUUID are overridable for reproducible output.
	Now     func() time.Time
	NewUUID func() string
}

// NewBuilder creates a Builder reading templates from bundle.
func NewBuilder(bundle assets.Bundle) *Builder {
	return &Builder{Bundle: bundle}
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

func (b *Builder) descriptor(title string) Descriptor {
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	newID := uuid.NewString
	if b.NewUUID != nil {
		newID = b.NewUUID
	}
	return NewDescriptor(title, now(), newID())
}

// Build packages the *.png files of imagesDir, in file name order, into a new
// EPUB at outputFile.
//
// All work happens in a private staging directory that is removed afterwards
// on success and failure alike; a removal failure is logged only. outputFile
// must not exist, and no file is left there if the build fails.
func (b *Builder) Build(ctx context.Context, title, imagesDir, outputFile string) error {
	log := b.logger().With("output", outputFile)
	log.Info("starting epub packaging", "images", imagesDir)

	if b.Bundle == nil {
		return fmt.Errorf("failed to build epub: no template bundle configured")
	}

	ws, err := raster.ListWorkingSet(imagesDir, ImageExt)
	if err != nil {
		return fmt.Errorf("failed to read images: %w", err)
	}
	if len(ws.Pages) == 0 {
		log.Warn("no page images found", "images", imagesDir)
	}
	manifest, err := NewManifest(ws)
	if err != nil {
		return err
	}

	staging, err := fsutil.MkdirUnique(b.TempDir, "epub-staging-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer func() {
		if err := fsutil.RemoveAll(staging); err != nil {
			log.Warn("failed to remove staging directory", "error", err)
		}
	}()

	job := &buildJob{
		staging:  staging,
		bundle:   b.Bundle,
		ws:       ws,
		manifest: manifest,
		desc:     b.descriptor(title),
	}
	steps := []struct {
		name string
		run  func() error
	}{
		{"copy images", job.copyImages},
		{"copy static files", job.copyStaticFiles},
		{"create content.opf", job.createOPF},
		{"create index", job.createIndex},
		{"create title page", job.createTitlePage},
		{"create toc", job.createTOC},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step.run(); err != nil {
			return fmt.Errorf("failed to %s: %w", step.name, err)
		}
		log.Debug("epub step done", "step", step.name)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := archive.WriteDir(staging, outputFile, archive.Options{
		First:  []string{assets.Mimetype},
		Stored: []string{assets.Mimetype},
	}); err != nil {
		return err
	}

	log.Info("epub packaged", "pages", len(manifest.Items), "uuid", job.desc.UUID)
	return nil
}

// buildJob holds the state of one packaging run.
type buildJob struct {
	staging  string
	bundle   assets.Bundle
	ws       *raster.WorkingSet
	manifest *Manifest
	desc     Descriptor
}

func (j *buildJob) copyImages() error {
	dir := filepath.Join(j.staging, ImagesDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, p := range j.ws.Pages {
		if err := fsutil.CopyFile(p.Path, filepath.Join(dir, p.Name)); err != nil {
			return err
		}
	}
	return nil
}

func (j *buildJob) copyStaticFiles() error {
	for _, name := range assets.StaticNames() {
		data, err := j.bundle.Load(name)
		if err != nil {
			return err
		}
		if err := j.write(name, data); err != nil {
			return err
		}
	}
	return nil
}

func (j *buildJob) createOPF() error {
	return j.generate(assets.ContentOPF, j.manifest.OPFItems())
}

func (j *buildJob) createIndex() error {
	return j.generate(assets.IndexHTML, j.manifest.IndexFragments())
}

func (j *buildJob) createTitlePage() error {
	return j.generate(assets.TitlePage, "")
}

func (j *buildJob) createTOC() error {
	return j.generate(assets.TableOfContents, "")
}

// generate loads the named template, substitutes the descriptor and content,
// and writes it under the same name.
func (j *buildJob) generate(name, content string) error {
	tmpl, err := j.bundle.Load(name)
	if err != nil {
		return err
	}
	out := j.desc.Replacer(content).Replace(string(tmpl))
	return j.write(name, []byte(out))
}

func (j *buildJob) write(name string, data []byte) error {
	dest := filepath.Join(j.staging, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}
