package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vectralite/vectralite/config"
	"github.com/vectralite/vectralite/docsource"
	"github.com/vectralite/vectralite/embedder"
	"github.com/vectralite/vectralite/engine"
	"github.com/vectralite/vectralite/hybrid"
	"github.com/vectralite/vectralite/index/hnsw"
	"github.com/vectralite/vectralite/snapshot"
	"github.com/vectralite/vectralite/vector"
)

// app holds the wired components behind every subcommand.
type app struct {
	cfg    config.Config
	db     *sql.DB
	engine *hybrid.Engine
	sink   *docsource.Static
	logger *zap.Logger
}

// newApp assembles the store, embedder, snapshot manager, document source,
// and engine from the configuration file, and initializes the engine.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	db, err := engine.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	closeOnErr := func(err error) (*app, error) {
		_ = db.Close()
		return nil, err
	}

	var emb embedder.Embedder
	switch cfg.Embedder.Provider {
	case "openai":
		emb, err = embedder.NewOpenAI(cfg.Embedder.Model)
		if err != nil {
			return closeOnErr(err)
		}
	case "static":
		emb = embedder.NewStatic(cfg.Embedder.Dimension)
	default:
		return closeOnErr(fmt.Errorf("unknown embedder provider %q", cfg.Embedder.Provider))
	}

	store, err := vector.NewSQLiteStore(db, emb.Dimension())
	if err != nil {
		return closeOnErr(err)
	}

	// A zero seed means every rebuild samples fresh centroids.
	seed := cfg.Index.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	graphCfg := hnsw.Config{
		M:              cfg.Index.M,
		EfConstruction: cfg.Index.EfConstruction,
		EfSearch:       cfg.Index.EfSearch,
		Dim:            emb.Dimension(),
		Seed:           seed,
	}
	snaps, err := snapshot.NewManager(db, cfg.Database.SnapshotDir, graphCfg, logger)
	if err != nil {
		return closeOnErr(err)
	}

	var (
		source hybrid.DocumentSource
		sink   *docsource.Static
	)
	if cfg.Documents.Dir != "" {
		source, err = docsource.NewDirectory(cfg.Documents.Dir)
		if err != nil {
			return closeOnErr(err)
		}
	} else {
		sink = docsource.NewStatic()
		source = sink
	}

	eng, err := hybrid.NewEngine(hybrid.Config{
		NumClusters:      cfg.Index.NumClusters,
		SearchProbeCount: cfg.Index.SearchProbeCount,
		MinEmbeddings:    cfg.Index.MinEmbeddings,
		SnapshotKeep:     cfg.Index.SnapshotKeep,
		Seed:             seed,
		Graph:            graphCfg,
	}, hybrid.Deps{
		Store:     store,
		Source:    source,
		Embedder:  emb,
		Snapshots: snaps,
		Logger:    logger,
	})
	if err != nil {
		return closeOnErr(err)
	}
	if err := eng.Init(ctx); err != nil {
		return closeOnErr(err)
	}

	return &app{cfg: cfg, db: db, engine: eng, sink: sink, logger: logger}, nil
}

func (a *app) Close() {
	_ = a.logger.Sync()
	_ = a.db.Close()
}
