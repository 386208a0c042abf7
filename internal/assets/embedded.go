package assets

import (
	"embed"
	"path"
	"strings"
)

//go:embed epub
var epubTemplates embed.FS

// EmbeddedBundle serves the templates compiled into the binary.
// Implements Bundle interface.
type EmbeddedBundle struct{}

// NewEmbeddedBundle creates an EmbeddedBundle.
func NewEmbeddedBundle() *EmbeddedBundle {
	return &EmbeddedBundle{}
}

// Load reads a template from the embedded epub/ tree.
func (EmbeddedBundle) Load(name string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, &TemplateMissingError{Name: name, Err: err}
	}
	data, err := epubTemplates.ReadFile(path.Join("epub", name))
	if err != nil {
		return nil, &TemplateMissingError{Name: name, Err: err}
	}
	return data, nil
}

// ValidateName rejects empty, absolute, and escaping names.
func ValidateName(name string) error {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "\\") {
		return ErrInvalidAssetName
	}
	cleaned := path.Clean(name)
	if cleaned != name || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return ErrInvalidAssetName
	}
	return nil
}

// Compile-time interface check.
var _ Bundle = (*EmbeddedBundle)(nil)
