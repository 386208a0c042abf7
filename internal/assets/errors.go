package assets

import (
	"errors"
	"fmt"
)

// ErrInvalidAssetName indicates the asset name contains traversal sequences
// or is otherwise unusable as a bundle key.
var ErrInvalidAssetName = errors.New("invalid asset name")

// TemplateMissingError indicates a required template resource could not be
// located in the bundle.
type TemplateMissingError struct {
	Name string
	Err  error
}

func (e *TemplateMissingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("template %q not found: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("template %q not found", e.Name)
}

func (e *TemplateMissingError) Unwrap() error { return e.Err }
