package hybrid

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/vectralite/vectralite/index"
	"github.com/vectralite/vectralite/index/hnsw"
	"github.com/vectralite/vectralite/vector"
)

// RebuildIndex reconciles the store against the document source, re-embeds
// the corpus, samples a fresh set of centroids, assigns every row to its
// nearest centroid, and atomically swaps in the new graph after persisting
// it. Rebuilds are serialized; searches keep running against the old graph
// until the swap.
//
// If the corpus is smaller than MinEmbeddings the rebuild aborts with
// ErrInsufficientData and the previous snapshot and graph stay in effect.
// It returns the number of centroids in the new graph.
func (e *Engine) RebuildIndex(ctx context.Context) (int, error) {
	e.rebuildMu.Lock()
	defer e.rebuildMu.Unlock()

	if err := e.requireReady(); err != nil {
		return 0, wrap("RebuildIndex", err)
	}

	skipped, err := e.reconcile(ctx)
	if err != nil {
		return 0, wrap("RebuildIndex", err)
	}
	e.mu.Lock()
	e.lastRebuildSkipped = skipped
	e.mu.Unlock()

	rows, err := e.store.SelectAll(ctx)
	if err != nil {
		return 0, wrap("RebuildIndex", err)
	}
	if len(rows) < e.cfg.MinEmbeddings {
		return 0, wrap("RebuildIndex", fmt.Errorf("%w: have %d embeddings, need %d",
			ErrInsufficientData, len(rows), e.cfg.MinEmbeddings))
	}

	if err := e.store.ResetClusters(ctx); err != nil {
		return 0, wrap("RebuildIndex", err)
	}

	// Sample centroids without replacement. The centroid's position in the
	// sample is its cluster id.
	c := min(e.cfg.NumClusters, len(rows))
	perm := e.rng.Perm(len(rows))
	points := make([]index.Point, c)
	for i := 0; i < c; i++ {
		points[i] = index.Point{ID: int64(i), Vector: rows[perm[i]].Vector}
	}

	g := hnsw.New(e.cfg.Graph)
	if err := g.Build(points); err != nil {
		return 0, wrap("RebuildIndex", err)
	}

	for _, row := range rows {
		nearest, err := g.Search(row.Vector, 1)
		if err != nil {
			return 0, wrap("RebuildIndex", err)
		}
		if len(nearest) == 0 {
			return 0, wrap("RebuildIndex", fmt.Errorf("no centroid found for document %q", row.DocumentID))
		}
		if err := e.store.AssignCluster(ctx, row.DocumentID, nearest[0].ID); err != nil {
			return 0, wrap("RebuildIndex", err)
		}
	}

	rec, err := e.snaps.Persist(ctx, g)
	if err != nil {
		return 0, wrap("RebuildIndex", err)
	}
	if _, err := e.snaps.GC(ctx, e.cfg.SnapshotKeep); err != nil {
		e.logger.Warn("snapshot gc failed", zap.Error(err))
	}

	e.mu.Lock()
	e.graph = g
	e.mu.Unlock()

	e.logger.Info("index rebuilt",
		zap.Int("embeddings", len(rows)),
		zap.Int("centroids", c),
		zap.Int("skipped", skipped),
		zap.String("snapshot", rec.FileName))
	return c, nil
}

// reconcile brings the store in line with the source: rows whose document no
// longer exists are removed, and every current document is re-embedded. A
// document that fails to embed is skipped with a warning so one bad input
// cannot abort a full rebuild; it returns the skip count as the rebuild's
// partial-success measure. Store failures are not skippable and abort.
func (e *Engine) reconcile(ctx context.Context) (int, error) {
	docs, err := e.source.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list documents: %w", err)
	}

	live := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		live[d.ID] = struct{}{}
	}
	stored, err := e.store.SelectAll(ctx)
	if err != nil {
		return 0, err
	}
	for _, row := range stored {
		if _, ok := live[row.DocumentID]; ok {
			continue
		}
		if err := e.store.Delete(ctx, row.DocumentID); err != nil {
			return 0, err
		}
		e.logger.Info("removed orphaned embedding", zap.String("document", row.DocumentID))
	}

	skipped := 0
	for _, d := range docs {
		if strings.TrimSpace(d.Text) == "" {
			if err := e.store.Delete(ctx, d.ID); err != nil {
				return skipped, err
			}
			continue
		}
		vec, err := e.embedOne(ctx, d.Text)
		if err != nil {
			skipped++
			e.logger.Warn("skipping document, embedding failed",
				zap.String("document", d.ID), zap.Error(err))
			continue
		}
		err = e.store.InsertOrUpdate(ctx, vector.Embedding{
			DocumentID: d.ID,
			Title:      d.Title,
			Content:    d.Text,
			Vector:     vec,
		})
		if err != nil {
			return skipped, err
		}
	}
	return skipped, nil
}
