package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

// writeTree creates files (name -> content) under a fresh directory.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	return root
}

func readZip(t *testing.T, path string) *zip.ReadCloser {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("zip.OpenReader() error = %v", err)
	}
	t.Cleanup(func() { zr.Close() })
	return zr
}

func entryNames(zr *zip.ReadCloser) []string {
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

func TestWriteDir_OrderAndNames(t *testing.T) {
	src := writeTree(t, map[string]string{
		"mimetype":               "application/epub+zip",
		"META-INF/container.xml": "<container/>",
		"images/page-0002.png":   "two",
		"images/page-0001.png":   "one",
		"content.opf":            "<package/>",
		"index.html":             "<html/>",
	})
	out := filepath.Join(t.TempDir(), "book.epub")

	err := WriteDir(src, out, Options{First: []string{"mimetype"}, Stored: []string{"mimetype"}})
	if err != nil {
		t.Fatalf("WriteDir() error = %v", err)
	}

	zr := readZip(t, out)
	want := []string{
		"mimetype",
		"META-INF/container.xml",
		"content.opf",
		"images/page-0001.png",
		"images/page-0002.png",
		"index.html",
	}
	got := entryNames(zr)
	if len(got) != len(want) {
		t.Fatalf("entries = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entries[%d] = %q, want %q (all: %v)", i, got[i], want[i], got)
		}
	}
	if zr.File[0].Method != zip.Store {
		t.Fatalf("mimetype method = %d, want Store", zr.File[0].Method)
	}
	if zr.File[1].Method != zip.Deflate {
		t.Fatalf("container.xml method = %d, want Deflate", zr.File[1].Method)
	}
}

func TestWriteDir_Deterministic(t *testing.T) {
	src := writeTree(t, map[string]string{
		"b.png": "bbb",
		"a.png": "aaa",
		"c.png": "ccc",
	})
	dir := t.TempDir()
	first := filepath.Join(dir, "1.zip")
	second := filepath.Join(dir, "2.zip")

	if err := WriteDir(src, first, Options{}); err != nil {
		t.Fatalf("WriteDir() error = %v", err)
	}
	if err := WriteDir(src, second, Options{}); err != nil {
		t.Fatalf("WriteDir() error = %v", err)
	}

	a, _ := os.ReadFile(first)
	b, _ := os.ReadFile(second)
	if !bytes.Equal(a, b) {
		t.Fatal("archives of the same tree differ")
	}
}

func TestWriteDir_ExistingOutputUntouched(t *testing.T) {
	src := writeTree(t, map[string]string{"a.png": "aaa"})
	out := filepath.Join(t.TempDir(), "exists.zip")
	if err := os.WriteFile(out, []byte("precious"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := WriteDir(src, out, Options{})

	var archiveErr *ArchiveError
	if !errors.As(err, &archiveErr) {
		t.Fatalf("WriteDir() error = %v, want *ArchiveError", err)
	}
	if !errors.Is(err, fs.ErrExist) {
		t.Fatalf("WriteDir() error = %v, want fs.ErrExist", err)
	}
	data, _ := os.ReadFile(out)
	if string(data) != "precious" {
		t.Fatalf("existing file modified: %q", data)
	}
}

func TestWriteDir_MissingParent(t *testing.T) {
	src := writeTree(t, map[string]string{"a.png": "aaa"})
	out := filepath.Join(t.TempDir(), "missing", "out.zip")

	var archiveErr *ArchiveError
	if err := WriteDir(src, out, Options{}); !errors.As(err, &archiveErr) {
		t.Fatalf("WriteDir() error = %v, want *ArchiveError", err)
	}
}

func TestWriteDir_MissingSourceLeavesNoOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.zip")

	err := WriteDir(filepath.Join(t.TempDir(), "nope"), out, Options{})
	if err == nil {
		t.Fatal("WriteDir() error = nil, want error")
	}
	if _, statErr := os.Stat(out); !errors.Is(statErr, fs.ErrNotExist) {
		t.Fatalf("output exists after failure: %v", statErr)
	}
}

func TestWriteDir_SourceIsFile(t *testing.T) {
	src := writeTree(t, map[string]string{"a.png": "aaa"})
	out := filepath.Join(t.TempDir(), "out.zip")

	err := WriteDir(filepath.Join(src, "a.png"), out, Options{})
	if !errors.Is(err, ErrNotDirectory) {
		t.Fatalf("WriteDir() error = %v, want ErrNotDirectory", err)
	}
}

func TestBuildZip(t *testing.T) {
	src := writeTree(t, map[string]string{
		"page-0001.png": "p1",
		"page-0002.png": "p2",
		"page-0003.png": "p3",
	})
	out := filepath.Join(t.TempDir(), "pages.zip")

	if err := BuildZip(src, out, "Moby Dick"); err != nil {
		t.Fatalf("BuildZip() error = %v", err)
	}

	zr := readZip(t, out)
	if zr.Comment != "Moby Dick" {
		t.Fatalf("Comment = %q, want %q", zr.Comment, "Moby Dick")
	}
	got := entryNames(zr)
	want := []string{"page-0001.png", "page-0002.png", "page-0003.png"}
	if len(got) != len(want) {
		t.Fatalf("entries = %v, want %v", got, want)
	}
	for i, f := range zr.File {
		if f.Name != want[i] {
			t.Fatalf("entries[%d] = %q, want %q", i, f.Name, want[i])
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("Open(%s) error = %v", f.Name, err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		if string(data) != "p"+string(rune('1'+i)) {
			t.Fatalf("%s content = %q", f.Name, data)
		}
	}
}

func TestSortEntries_FirstIgnoresMissing(t *testing.T) {
	entries := []Entry{{Name: "z"}, {Name: "a"}, {Name: "m"}}
	sortEntries(entries, []string{"m", "absent"})

	want := []string{"m", "a", "z"}
	for i, e := range entries {
		if e.Name != want[i] {
			t.Fatalf("entries[%d] = %q, want %q", i, e.Name, want[i])
		}
	}
}
