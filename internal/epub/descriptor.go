package epub

import (
	"strings"
	"time"
)

// DefaultAuthor is written to every package; no author metadata is collected.
const DefaultAuthor = "Unknown"

// TimestampLayout is ISO-8601 with a numeric UTC offset.
const TimestampLayout = "2006-01-02T15:04:05-07:00"

// Template placeholders.
const (
	PlaceholderAuthor    = "$AUTHOR"
	PlaceholderTimestamp = "$TIMESTAMP"
	PlaceholderTitle     = "$TITLE"
	PlaceholderUUID      = "$UUID"
	PlaceholderContent   = "$CONTENT"
)

// Descriptor holds the per-run package metadata.
type Descriptor struct {
	Title     string
	Author    string
	Timestamp string
	UUID      string
}

// NewDescriptor builds a descriptor for title generated at now with the
// given package identifier.
func NewDescriptor(title string, now time.Time, id string) Descriptor {
	return Descriptor{
		Title:     title,
		Author:    DefaultAuthor,
		Timestamp: now.Format(TimestampLayout),
		UUID:      id,
	}
}

// Replacer substitutes every placeholder in a single pass. Substituted text
// is never rescanned, so a title containing "$TITLE" stays literal.
// Values are inserted without escaping.
func (d Descriptor) Replacer(content string) *strings.Replacer {
	return strings.NewReplacer(
		PlaceholderAuthor, d.Author,
		PlaceholderTimestamp, d.Timestamp,
		PlaceholderTitle, d.Title,
		PlaceholderUUID, d.UUID,
		PlaceholderContent, content,
	)
}
