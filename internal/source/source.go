// Package source collects candidate invoice documents for ingestion from a local drop
// directory or a Gmail mailbox. A source either returns every document it found or an
// error; partial results are never returned.
package source

import (
	"context"
	"path"
	"strings"

	"sqr/pkg/models"
)

// Source lists candidate documents.
type Source interface {
	Fetch(ctx context.Context) ([]models.Document, error)
}

// Suffixes are the file extensions treated as invoice documents.
var Suffixes = []string{".xml", ".zip", ".pdf"}

// Accepted reports whether name carries one of Suffixes, ignoring case.
func Accepted(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, suffix := range Suffixes {
		if ext == suffix {
			return true
		}
	}
	return false
}
