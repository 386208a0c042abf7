package raster

import (
	"context"
	"errors"
	"image/color"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/yuanying/pdf2epub/internal/raster/rastertest"
)

func TestPageName(t *testing.T) {
	tests := []struct {
		index, total int
		format       Format
		want         string
	}{
		{0, 3, FormatPNG, "page-0001.png"},
		{2, 3, FormatPNG, "page-0003.png"},
		{9, 10, FormatJPEG, "page-0010.jpg"},
		{0, 12345, FormatPNG, "page-00001.png"},
		{12344, 12345, FormatPNG, "page-12345.png"},
	}
	for _, tt := range tests {
		if got := PageName(tt.index, tt.total, tt.format); got != tt.want {
			t.Errorf("PageName(%d, %d) = %q, want %q", tt.index, tt.total, got, tt.want)
		}
	}
}

func TestPageName_SortsInPageOrder(t *testing.T) {
	for _, total := range []int{1, 9, 10, 11, 99, 101, 10000, 10001} {
		names := make([]string, total)
		for i := range total {
			names[i] = PageName(i, total, FormatPNG)
		}
		if !sort.StringsAreSorted(names) {
			t.Fatalf("names for %d pages do not sort in page order", total)
		}
	}
}

func TestRenderSpec_Validate(t *testing.T) {
	if err := DefaultRenderSpec().Validate(); err != nil {
		t.Fatalf("DefaultRenderSpec().Validate() error = %v", err)
	}

	bad := []RenderSpec{
		{DPI: 0, Width: 600, Height: 800, Format: FormatPNG},
		{DPI: 300, Width: -1, Height: 800, Format: FormatPNG},
		{DPI: 300, Width: 600, Height: 0, Format: FormatPNG},
		{DPI: 300, Width: 600, Height: 800, Format: "tiff"},
	}
	for _, spec := range bad {
		if err := spec.Validate(); !errors.Is(err, ErrInvalidRenderSpec) {
			t.Errorf("Validate(%+v) error = %v, want ErrInvalidRenderSpec", spec, err)
		}
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"png": FormatPNG, "PNG": FormatPNG, "jpg": FormatJPEG, "jpeg": FormatJPEG} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("gif"); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("ParseFormat(gif) error = %v, want ErrUnknownFormat", err)
	}
}

func TestRender_ProducesOnePageImagePerPage(t *testing.T) {
	backend := rastertest.NewBackend(5)
	r := &Rasterizer{Backend: backend, Workers: 3}
	out := filepath.Join(t.TempDir(), "pages")

	ws, err := r.Render(context.Background(), NewDocument("book.pdf"), out, DefaultRenderSpec())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	if len(ws.Pages) != 5 {
		t.Fatalf("len(Pages) = %d, want 5", len(ws.Pages))
	}
	for i, p := range ws.Pages {
		if p.Index != i {
			t.Fatalf("Pages[%d].Index = %d", i, p.Index)
		}
		if p.Name != PageName(i, 5, FormatPNG) {
			t.Fatalf("Pages[%d].Name = %q", i, p.Name)
		}
	}

	listed, err := ListWorkingSet(out, ".png")
	if err != nil {
		t.Fatalf("ListWorkingSet() error = %v", err)
	}
	if len(listed.Pages) != 5 {
		t.Fatalf("files on disk = %d, want 5", len(listed.Pages))
	}
	for i, p := range listed.Pages {
		img, err := imaging.Open(p.Path)
		if err != nil {
			t.Fatalf("imaging.Open(%s) error = %v", p.Name, err)
		}
		want := rastertest.PageColor(i)
		got := color.NRGBAModel.Convert(img.At(10, 10)).(color.NRGBA)
		if !near(got.R, want.R) || !near(got.G, want.G) || !near(got.B, want.B) {
			t.Fatalf("%s color = %v, want %v", p.Name, got, want)
		}
	}
}

func near(a, b uint8) bool {
	d := int(a) - int(b)
	return d >= -2 && d <= 2
}

func TestRender_FitsIntoBox(t *testing.T) {
	tests := []struct {
		name         string
		srcW, srcH   int
		wantW, wantH int
	}{
		{"portrait", 1200, 1600, 600, 800},
		{"landscape", 2000, 1000, 600, 300},
		{"small", 300, 200, 300, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := rastertest.NewBackend(1)
			backend.Width, backend.Height = tt.srcW, tt.srcH
			out := t.TempDir()

			ws, err := NewRasterizer(backend).Render(context.Background(), NewDocument("x.pdf"), out, DefaultRenderSpec())
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			img, err := imaging.Open(ws.Pages[0].Path)
			if err != nil {
				t.Fatalf("imaging.Open() error = %v", err)
			}
			if img.Bounds().Dx() != tt.wantW || img.Bounds().Dy() != tt.wantH {
				t.Fatalf("got %dx%d, want %dx%d", img.Bounds().Dx(), img.Bounds().Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestRender_JPEG(t *testing.T) {
	spec := DefaultRenderSpec()
	spec.Format = FormatJPEG
	out := t.TempDir()

	ws, err := NewRasterizer(rastertest.NewBackend(2)).Render(context.Background(), NewDocument("x.pdf"), out, spec)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for _, p := range ws.Pages {
		if !strings.HasSuffix(p.Name, ".jpg") {
			t.Fatalf("page name = %q, want .jpg", p.Name)
		}
	}
}

func TestRender_FailureRemovesAllPages(t *testing.T) {
	backend := rastertest.NewBackend(6)
	backend.FailPage = 3
	out := t.TempDir()

	_, err := (&Rasterizer{Backend: backend, Workers: 2}).Render(context.Background(), NewDocument("bad.pdf"), out, DefaultRenderSpec())

	var renderErr *RenderError
	if !errors.As(err, &renderErr) {
		t.Fatalf("Render() error = %v, want *RenderError", err)
	}
	if renderErr.Page != 3 {
		t.Fatalf("RenderError.Page = %d, want 3", renderErr.Page)
	}
	entries, _ := os.ReadDir(out)
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("output dir not empty after failure: %v", names)
	}
}

func TestRender_PageCountFailure(t *testing.T) {
	backend := rastertest.NewBackend(0)
	backend.CountErr = errors.New("not a PDF")

	_, err := NewRasterizer(backend).Render(context.Background(), NewDocument("junk.pdf"), t.TempDir(), DefaultRenderSpec())

	var renderErr *RenderError
	if !errors.As(err, &renderErr) {
		t.Fatalf("Render() error = %v, want *RenderError", err)
	}
	if renderErr.Page != -1 {
		t.Fatalf("RenderError.Page = %d, want -1", renderErr.Page)
	}
	if !strings.Contains(err.Error(), "not a PDF") {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestRender_EmptyDocument(t *testing.T) {
	_, err := NewRasterizer(rastertest.NewBackend(0)).Render(context.Background(), NewDocument("empty.pdf"), t.TempDir(), DefaultRenderSpec())
	if !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("Render() error = %v, want ErrEmptyDocument", err)
	}
}

func TestRender_UnwritableOutput(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewRasterizer(rastertest.NewBackend(1)).Render(context.Background(), NewDocument("x.pdf"), filepath.Join(file, "sub"), DefaultRenderSpec())

	var renderErr *RenderError
	if !errors.As(err, &renderErr) {
		t.Fatalf("Render() error = %v, want *RenderError", err)
	}
}

func TestRender_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := t.TempDir()

	_, err := NewRasterizer(rastertest.NewBackend(4)).Render(ctx, NewDocument("x.pdf"), out, DefaultRenderSpec())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Render() error = %v, want context.Canceled", err)
	}
	entries, _ := os.ReadDir(out)
	if len(entries) != 0 {
		t.Fatalf("output dir has %d entries after cancel", len(entries))
	}
}

func TestDocument_PageCountCached(t *testing.T) {
	backend := rastertest.NewBackend(7)
	doc := NewDocument("x.pdf")

	for range 3 {
		n, err := doc.PageCount(context.Background(), backend)
		if err != nil || n != 7 {
			t.Fatalf("PageCount() = %d, %v; want 7", n, err)
		}
	}
	if backend.CountCalls() != 1 {
		t.Fatalf("backend PageCount called %d times, want 1", backend.CountCalls())
	}
}

func TestSpoolDocument(t *testing.T) {
	dir := t.TempDir()
	doc, err := SpoolDocument(strings.NewReader("%PDF-1.4 body"), dir)
	if err != nil {
		t.Fatalf("SpoolDocument() error = %v", err)
	}
	if filepath.Dir(doc.Path) != dir {
		t.Fatalf("spooled to %q, want under %q", doc.Path, dir)
	}
	data, _ := os.ReadFile(doc.Path)
	if string(data) != "%PDF-1.4 body" {
		t.Fatalf("spooled content = %q", data)
	}
}

func TestListWorkingSet(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"page-0002.png", "page-0001.PNG", "notes.txt", "page-0010.png", "cover.jpg"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.png"), 0o755); err != nil {
		t.Fatal(err)
	}

	ws, err := ListWorkingSet(dir, ".png")
	if err != nil {
		t.Fatalf("ListWorkingSet() error = %v", err)
	}

	var got []string
	for _, p := range ws.Pages {
		got = append(got, p.Name)
	}
	want := []string{"page-0001.PNG", "page-0002.png", "page-0010.png"}
	if !slices.Equal(got, want) {
		t.Fatalf("names = %v, want %v", got, want)
	}
}

func TestListWorkingSet_PlainStringOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"10.png", "9.png", "1.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	ws, err := ListWorkingSet(dir, ".png")
	if err != nil {
		t.Fatalf("ListWorkingSet() error = %v", err)
	}
	var got []string
	for _, p := range ws.Pages {
		got = append(got, p.Name)
	}
	// Not numeric: "10" sorts before "9".
	want := []string{"1.png", "10.png", "9.png"}
	if !slices.Equal(got, want) {
		t.Fatalf("names = %v, want %v", got, want)
	}
}

func TestParsePageCount(t *testing.T) {
	out := []byte("Title:          Moby Dick\nPages:          3\nEncrypted:      no\n")
	n, err := parsePageCount(out)
	if err != nil || n != 3 {
		t.Fatalf("parsePageCount() = %d, %v; want 3", n, err)
	}

	if _, err := parsePageCount([]byte("Title: x\n")); !errors.Is(err, ErrPageCountMissing) {
		t.Fatalf("parsePageCount() error = %v, want ErrPageCountMissing", err)
	}
	if _, err := parsePageCount([]byte("Pages: many\n")); err == nil {
		t.Fatal("parsePageCount() error = nil, want parse error")
	}
}

func TestPopplerBackend_Render(t *testing.T) {
	if _, err := exec.LookPath(DefaultPdftoppm); err != nil {
		t.Skip("pdftoppm not installed")
	}
	if _, err := exec.LookPath(DefaultPdfinfo); err != nil {
		t.Skip("pdfinfo not installed")
	}

	dir := t.TempDir()
	pdf := filepath.Join(dir, "three.pdf")
	if err := os.WriteFile(pdf, rastertest.MinimalPDF(3), 0o644); err != nil {
		t.Fatal(err)
	}

	ws, err := NewRasterizer(NewPopplerBackend()).Render(context.Background(), NewDocument(pdf), filepath.Join(dir, "out"), DefaultRenderSpec())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if len(ws.Pages) != 3 {
		t.Fatalf("len(Pages) = %d, want 3", len(ws.Pages))
	}
}

func TestPopplerBackend_MissingBinary(t *testing.T) {
	b := &PopplerBackend{Pdfinfo: filepath.Join(t.TempDir(), "no-such-pdfinfo")}
	_, err := NewRasterizer(b).Render(context.Background(), NewDocument("x.pdf"), t.TempDir(), DefaultRenderSpec())

	var renderErr *RenderError
	if !errors.As(err, &renderErr) {
		t.Fatalf("Render() error = %v, want *RenderError", err)
	}
}
