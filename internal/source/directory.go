package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"sqr/internal/invoice"
	"sqr/internal/logger"
	"sqr/pkg/models"
)

// Directory reads documents dropped into a local folder, recursively and in lexical
// order. Hidden files and folders are skipped, as are files too large to be invoices.
type Directory struct {
	Root string
	log  zerolog.Logger
}

// NewDirectory returns a source over root.
func NewDirectory(root string) *Directory {
	return &Directory{Root: root, log: logger.WithComponent("source.dir")}
}

// Fetch implements Source.
func (d *Directory) Fetch(ctx context.Context) ([]models.Document, error) {
	const op = "Directory.Fetch"

	info, err := os.Stat(d.Root)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %s is not a directory", op, d.Root)
	}

	var docs []models.Document
	err = filepath.WalkDir(d.Root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		name := entry.Name()
		if strings.HasPrefix(name, ".") && p != d.Root {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() || !Accepted(name) {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}
		if info.Size() > invoice.MaxDocumentSizeBytes {
			d.log.Warn().Str("file", p).Int64("size", info.Size()).Msg("Skipping oversized document")
			return nil
		}

		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(d.Root, p)
		if err != nil {
			rel = name
		}
		docs = append(docs, models.Document{
			Filename: name,
			Data:     data,
			Origin:   "dir:" + filepath.ToSlash(rel),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	d.log.Info().Str("root", d.Root).Int("documents", len(docs)).Msg("Collected documents from directory")
	return docs, nil
}
