// Package archive writes directory trees into ZIP containers.
//
// Entry order is deterministic: the names listed in Options.First are written
// first, in the given order, and the remaining files follow sorted by their
// slash-separated relative path. No modification times are recorded, so two
// archives of identical trees are byte-identical.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
)

// ErrNotDirectory indicates the archive source is not a directory.
var ErrNotDirectory = errors.New("source is not a directory")

// ArchiveError reports a failure creating or writing an output container.
type ArchiveError struct {
	Path  string // output file
	Entry string // entry being written, empty for file-level failures
	Err   error
}

func (e *ArchiveError) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("failed to write archive %s (entry %s): %v", e.Path, e.Entry, e.Err)
	}
	return fmt.Sprintf("failed to write archive %s: %v", e.Path, e.Err)
}

func (e *ArchiveError) Unwrap() error { return e.Err }

// Options controls entry layout.
type Options struct {
	// First lists entry names written before all others, in order.
	// Names absent from the source tree are ignored.
	First []string

	// Stored lists entry names written without compression.
	Stored []string

	// Comment is set as the archive comment.
	Comment string
}

// Entry is one file scheduled for archiving.
type Entry struct {
	Name string // slash-separated path relative to the source root
	Path string // filesystem path
}

// ListEntries walks root and returns every non-directory file as an Entry,
// ordered per opts.
func ListEntries(root string, opts Options) ([]Entry, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}

	var entries []Entry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{Name: filepath.ToSlash(rel), Path: path})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortEntries(entries, opts.First)
	return entries, nil
}

func sortEntries(entries []Entry, first []string) {
	rank := make(map[string]int, len(first))
	for i, name := range first {
		if _, dup := rank[name]; !dup {
			rank[name] = i
		}
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		ra, aFirst := rank[a.Name]
		rb, bFirst := rank[b.Name]
		switch {
		case aFirst && bFirst:
			return ra - rb
		case aFirst:
			return -1
		case bFirst:
			return 1
		}
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
}

// WriteDir archives every file under srcDir into a new file at outputFile.
//
// outputFile must not exist; it is created exclusively, so an existing file
// is never truncated. If any later step fails the partially written output is
// removed. All failures are returned as *ArchiveError.
func WriteDir(srcDir, outputFile string, opts Options) error {
	entries, err := ListEntries(srcDir, opts)
	if err != nil {
		return &ArchiveError{Path: outputFile, Err: fmt.Errorf("failed to list %s: %w", srcDir, err)}
	}

	f, err := os.OpenFile(outputFile, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return &ArchiveError{Path: outputFile, Err: err}
	}

	if err := writeEntries(f, entries, opts); err != nil {
		f.Close()
		os.Remove(outputFile)
		err.Path = outputFile
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(outputFile)
		return &ArchiveError{Path: outputFile, Err: err}
	}
	return nil
}

func writeEntries(w io.Writer, entries []Entry, opts Options) *ArchiveError {
	zw := zip.NewWriter(w)
	if opts.Comment != "" {
		if err := zw.SetComment(opts.Comment); err != nil {
			return &ArchiveError{Err: fmt.Errorf("failed to set comment: %w", err)}
		}
	}

	for _, e := range entries {
		method := zip.Deflate
		if slices.Contains(opts.Stored, e.Name) {
			method = zip.Store
		}
		if err := writeEntry(zw, e, method); err != nil {
			return &ArchiveError{Entry: e.Name, Err: err}
		}
	}

	if err := zw.Close(); err != nil {
		return &ArchiveError{Err: fmt.Errorf("failed to finalize: %w", err)}
	}
	return nil
}

func writeEntry(zw *zip.Writer, e Entry, method uint16) error {
	src, err := os.Open(e.Path)
	if err != nil {
		return err
	}
	defer src.Close()

	ew, err := zw.CreateHeader(&zip.FileHeader{Name: e.Name, Method: method})
	if err != nil {
		return err
	}
	_, err = io.Copy(ew, src)
	return err
}
