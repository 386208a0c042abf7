package raster

import "fmt"

// RenderError reports that a document could not be rasterized.
// Page is the zero-based page that failed, or -1 for document-level failures.
type RenderError struct {
	Path string
	Page int
	Err  error
}

func (e *RenderError) Error() string {
	if e.Page < 0 {
		return fmt.Sprintf("failed to render %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("failed to render %s page %d: %v", e.Path, e.Page+1, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }
