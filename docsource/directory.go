package docsource

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vectralite/vectralite/hybrid"
)

// Directory loads documents from plain text and markdown files under a root
// directory. The document id is the path relative to the root with forward
// slashes, so a corpus moved to another machine keeps its ids.
type Directory struct {
	root string
}

// NewDirectory creates a Directory source rooted at root.
func NewDirectory(root string) (*Directory, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("docsource: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("docsource: %q is not a directory", root)
	}
	return &Directory{root: root}, nil
}

// ListAll walks the root and returns one document per .md or .txt file,
// sorted by id. The title is the first non-empty line with any leading
// markdown heading marker stripped.
func (d *Directory) ListAll(ctx context.Context) ([]hybrid.Document, error) {
	var docs []hybrid.Document
	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() {
			if strings.HasPrefix(entry.Name(), ".") && path != d.root {
				return filepath.SkipDir
			}
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".md", ".txt":
		default:
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			return err
		}
		text := string(data)
		docs = append(docs, hybrid.Document{
			ID:    filepath.ToSlash(rel),
			Title: firstLineTitle(text),
			Text:  text,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("docsource: walk %q: %w", d.root, err)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func firstLineTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		if line != "" {
			return line
		}
	}
	return ""
}

var _ hybrid.DocumentSource = (*Directory)(nil)
