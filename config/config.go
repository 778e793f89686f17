// Package config loads the YAML configuration file and applies defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	Database  Database  `yaml:"database"`
	Documents Documents `yaml:"documents"`
	Embedder  Embedder  `yaml:"embedder"`
	Index     Index     `yaml:"index"`
	Server    Server    `yaml:"server"`
	Logging   Logging   `yaml:"logging"`
}

type Database struct {
	// Path is the SQLite database file, or ":memory:" for an ephemeral store.
	Path string `yaml:"path"`

	// SnapshotDir holds the serialized graph snapshot files.
	SnapshotDir string `yaml:"snapshot_dir"`
}

type Documents struct {
	// Dir is the corpus directory scanned on rebuild. Empty means documents
	// are fed exclusively through the API.
	Dir string `yaml:"dir"`
}

type Embedder struct {
	// Provider is "openai" or "static".
	Provider string `yaml:"provider"`

	// Model is the OpenAI embedding model name.
	Model string `yaml:"model"`

	// Dimension applies to the static provider only; the OpenAI dimension is
	// fixed by the model.
	Dimension int `yaml:"dimension"`
}

type Index struct {
	NumClusters      int   `yaml:"num_clusters"`
	SearchProbeCount int   `yaml:"search_probe_count"`
	MinEmbeddings    int   `yaml:"min_embeddings"`
	SnapshotKeep     int   `yaml:"snapshot_keep"`
	Seed             int64 `yaml:"seed"`
	M                int   `yaml:"m"`
	EfConstruction   int   `yaml:"ef_construction"`
	EfSearch         int   `yaml:"ef_search"`
}

type Server struct {
	Addr string `yaml:"addr"`
}

type Logging struct {
	// Level is a zap level name: debug, info, warn, or error.
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Database: Database{
			Path:        "vectralite.db",
			SnapshotDir: "snapshots",
		},
		Embedder: Embedder{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			Dimension: 256,
		},
		Index: Index{
			NumClusters:      64,
			SearchProbeCount: 4,
			MinEmbeddings:    3,
			SnapshotKeep:     3,
			M:                16,
			EfConstruction:   200,
			EfSearch:         50,
		},
		Server:  Server{Addr: ":8080"},
		Logging: Logging{Level: "info"},
	}
}

// Load reads the YAML file at path over the defaults. A missing file is not
// an error; the defaults are returned unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("config: database.path must not be empty")
	}
	switch c.Embedder.Provider {
	case "openai":
		if c.Embedder.Model == "" {
			return fmt.Errorf("config: embedder.model must be set for the openai provider")
		}
	case "static":
		if c.Embedder.Dimension < 1 {
			return fmt.Errorf("config: embedder.dimension must be positive for the static provider")
		}
	default:
		return fmt.Errorf("config: unknown embedder.provider %q", c.Embedder.Provider)
	}
	if c.Index.NumClusters < 1 || c.Index.SearchProbeCount < 1 || c.Index.MinEmbeddings < 1 {
		return fmt.Errorf("config: index cluster, probe, and minimum embedding counts must be positive")
	}
	return nil
}
