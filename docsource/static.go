package docsource

import (
	"context"
	"sync"

	"github.com/vectralite/vectralite/hybrid"
)

// Static is an in-memory document source. It doubles as the corpus store for
// deployments that feed documents through the API instead of a directory.
type Static struct {
	mu   sync.RWMutex
	docs map[string]hybrid.Document
}

// NewStatic creates an empty in-memory source.
func NewStatic() *Static {
	return &Static{docs: make(map[string]hybrid.Document)}
}

// Put adds or replaces a document.
func (s *Static) Put(doc hybrid.Document) {
	s.mu.Lock()
	s.docs[doc.ID] = doc
	s.mu.Unlock()
}

// Remove deletes a document by id.
func (s *Static) Remove(id string) {
	s.mu.Lock()
	delete(s.docs, id)
	s.mu.Unlock()
}

// ListAll returns a copy of the current documents.
func (s *Static) ListAll(context.Context) ([]hybrid.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]hybrid.Document, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, d)
	}
	return out, nil
}

var _ hybrid.DocumentSource = (*Static)(nil)
