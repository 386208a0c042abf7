package raster

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

// Default poppler-utils binaries, resolved through PATH.
const (
	DefaultPdftoppm = "pdftoppm"
	DefaultPdfinfo  = "pdfinfo"
)

// ErrPageCountMissing indicates pdfinfo output had no "Pages:" line.
var ErrPageCountMissing = errors.New("page count not reported")

// PopplerBackend renders pages by running poppler-utils.
type PopplerBackend struct {
	Pdftoppm string
	Pdfinfo  string
	TempDir  string // parent for per-page scratch directories; empty = os.TempDir()
}

// NewPopplerBackend creates a backend using the binaries found on PATH.
func NewPopplerBackend() *PopplerBackend {
	return &PopplerBackend{Pdftoppm: DefaultPdftoppm, Pdfinfo: DefaultPdfinfo}
}

// PageCount runs pdfinfo and parses its "Pages:" line.
func (p *PopplerBackend) PageCount(ctx context.Context, path string) (int, error) {
	out, err := p.run(ctx, p.pdfinfo(), path)
	if err != nil {
		return 0, err
	}
	return parsePageCount(out)
}

// RenderPage runs pdftoppm for a single page into a scratch directory and
// decodes the resulting PNG.
func (p *PopplerBackend) RenderPage(ctx context.Context, path string, page, dpi int) (image.Image, error) {
	scratch, err := os.MkdirTemp(p.TempDir, "pdftoppm-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	n := strconv.Itoa(page + 1)
	prefix := filepath.Join(scratch, "page")
	if _, err := p.run(ctx, p.pdftoppm(),
		"-png", "-r", strconv.Itoa(dpi), "-f", n, "-l", n, "-singlefile", path, prefix); err != nil {
		return nil, err
	}

	img, err := imaging.Open(prefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("failed to decode rendered page: %w", err)
	}
	return img, nil
}

func (p *PopplerBackend) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%s failed: %w: %s", filepath.Base(name), err, msg)
		}
		return nil, fmt.Errorf("%s failed: %w", filepath.Base(name), err)
	}
	return stdout.Bytes(), nil
}

func (p *PopplerBackend) pdftoppm() string {
	if p.Pdftoppm == "" {
		return DefaultPdftoppm
	}
	return p.Pdftoppm
}

func (p *PopplerBackend) pdfinfo() string {
	if p.Pdfinfo == "" {
		return DefaultPdfinfo
	}
	return p.Pdfinfo
}

func parsePageCount(out []byte) (int, error) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok || strings.TrimSpace(key) != "Pages" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, fmt.Errorf("invalid page count %q: %w", value, err)
		}
		return n, nil
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	return 0, ErrPageCountMissing
}

// Compile-time interface check.
var _ Backend = (*PopplerBackend)(nil)
