package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	def := Default()
	if cfg.Database.Path != def.Database.Path || cfg.Index.NumClusters != def.Index.NumClusters {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectralite.yaml")
	data := `
database:
  path: /tmp/custom.db
embedder:
  provider: static
  dimension: 128
index:
  num_clusters: 10
  search_probe_count: 2
server:
  addr: ":9999"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.Path != "/tmp/custom.db" {
		t.Fatalf("database path not applied: %q", cfg.Database.Path)
	}
	if cfg.Embedder.Provider != "static" || cfg.Embedder.Dimension != 128 {
		t.Fatalf("embedder not applied: %+v", cfg.Embedder)
	}
	if cfg.Index.NumClusters != 10 || cfg.Index.SearchProbeCount != 2 {
		t.Fatalf("index not applied: %+v", cfg.Index)
	}
	// Untouched sections keep their defaults.
	if cfg.Index.MinEmbeddings != Default().Index.MinEmbeddings {
		t.Fatalf("default lost: %+v", cfg.Index)
	}
	if cfg.Server.Addr != ":9999" {
		t.Fatalf("server addr not applied: %q", cfg.Server.Addr)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown provider": "embedder:\n  provider: quantum\n",
		"bad dimension":    "embedder:\n  provider: static\n  dimension: 0\n",
		"empty db path":    "database:\n  path: \"\"\n",
		"bad clusters":     "index:\n  num_clusters: -3\n",
		"malformed yaml":   "embedder: [",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
				t.Fatalf("write config failed: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
