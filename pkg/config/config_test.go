package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnvVars(t *testing.T) {
	t.Helper()
	vars := []string{
		"LATTICEGRAPH_STORE_DIR",
		"LATTICEGRAPH_STORE_IN_MEMORY",
		"LATTICEGRAPH_STORE_SYNC_WRITES",
		"LATTICEGRAPH_STORE_NUM_VERSIONS_TO_KEEP",
		"LATTICEGRAPH_GRAPH_NAME",
		"LATTICEGRAPH_GRAPH_AUTO_FLUSH",
		"LATTICEGRAPH_GRAPH_SKIP_EXISTENCE_CHECKS",
		"LATTICEGRAPH_GRAPH_AUTO_INDEX",
		"LATTICEGRAPH_GRAPH_INDEXABLE_GRAPH_DISABLED",
		"LATTICEGRAPH_GRAPH_CACHE_CAPACITY",
		"LATTICEGRAPH_GRAPH_VERTEX_CACHE_TTL",
		"LATTICEGRAPH_GRAPH_EDGE_CACHE_TTL",
		"LATTICEGRAPH_GRAPH_PRELOAD_PROPERTIES",
		"LATTICEGRAPH_GRAPH_PRELOAD_EDGE_LABELS",
		"LATTICEGRAPH_GRAPH_LEGACY_INDEX_SWEEP",
		"LATTICEGRAPH_GRAPH_BEST_EFFORT",
		"LATTICEGRAPH_GRAPH_QUERY_THREADS",
		"LATTICEGRAPH_GRAPH_WRITE_THREADS",
		"LATTICEGRAPH_SERVER_LISTEN_ADDR",
		"LATTICEGRAPH_LOG_LEVEL",
		"LATTICEGRAPH_LOG_FORMAT",
	}
	for _, v := range vars {
		os.Unsetenv(v)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg := LoadDefaults()

	if cfg.Store.Dir != "./data" {
		t.Errorf("expected store dir './data', got %q", cfg.Store.Dir)
	}
	if cfg.Store.InMemory {
		t.Error("expected InMemory to be false by default")
	}
	if cfg.Store.NumVersionsToKeep != 1 {
		t.Errorf("expected num versions to keep 1, got %d", cfg.Store.NumVersionsToKeep)
	}

	if cfg.Graph.Name != "graph" {
		t.Errorf("expected graph name 'graph', got %q", cfg.Graph.Name)
	}
	if !cfg.Graph.AutoFlush {
		t.Error("expected AutoFlush to be true by default")
	}
	if cfg.Graph.CacheCapacity != 10000 {
		t.Errorf("expected cache capacity 10000, got %d", cfg.Graph.CacheCapacity)
	}
	if cfg.Graph.VertexCacheTTL != 5*time.Minute {
		t.Errorf("expected vertex cache ttl 5m, got %v", cfg.Graph.VertexCacheTTL)
	}
	if cfg.Graph.QueryThreads != 4 {
		t.Errorf("expected query threads 4, got %d", cfg.Graph.QueryThreads)
	}
	if cfg.Graph.WriteThreads != 4 {
		t.Errorf("expected write threads 4, got %d", cfg.Graph.WriteThreads)
	}

	if cfg.Server.ListenAddr != ":8182" {
		t.Errorf("expected listen addr ':8182', got %q", cfg.Server.ListenAddr)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %q", cfg.Logging.Level)
	}
}

func TestApplyEnvVars_Overrides(t *testing.T) {
	clearEnvVars(t)
	defer clearEnvVars(t)

	os.Setenv("LATTICEGRAPH_STORE_DIR", "/var/lib/latticegraph")
	os.Setenv("LATTICEGRAPH_STORE_IN_MEMORY", "true")
	os.Setenv("LATTICEGRAPH_GRAPH_NAME", "social")
	os.Setenv("LATTICEGRAPH_GRAPH_CACHE_CAPACITY", "500")
	os.Setenv("LATTICEGRAPH_GRAPH_VERTEX_CACHE_TTL", "30s")
	os.Setenv("LATTICEGRAPH_GRAPH_PRELOAD_PROPERTIES", "name, age ,city")
	os.Setenv("LATTICEGRAPH_LOG_LEVEL", "debug")

	cfg := LoadDefaults()
	cfg.applyEnvVars()

	if cfg.Store.Dir != "/var/lib/latticegraph" {
		t.Errorf("expected store dir override, got %q", cfg.Store.Dir)
	}
	if !cfg.Store.InMemory {
		t.Error("expected InMemory overridden to true")
	}
	if cfg.Graph.Name != "social" {
		t.Errorf("expected graph name override, got %q", cfg.Graph.Name)
	}
	if cfg.Graph.CacheCapacity != 500 {
		t.Errorf("expected cache capacity override 500, got %d", cfg.Graph.CacheCapacity)
	}
	if cfg.Graph.VertexCacheTTL != 30*time.Second {
		t.Errorf("expected vertex cache ttl override 30s, got %v", cfg.Graph.VertexCacheTTL)
	}
	want := []string{"name", "age", "city"}
	if len(cfg.Graph.PreloadProperties) != len(want) {
		t.Fatalf("expected %d preload properties, got %d", len(want), len(cfg.Graph.PreloadProperties))
	}
	for i, w := range want {
		if cfg.Graph.PreloadProperties[i] != w {
			t.Errorf("expected preload property %q at index %d, got %q", w, i, cfg.Graph.PreloadProperties[i])
		}
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level override, got %q", cfg.Logging.Level)
	}
}

func TestLoad_FromYAMLFile(t *testing.T) {
	clearEnvVars(t)
	defer clearEnvVars(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlContent := `
store:
  dir: /tmp/graphdata
  sync_writes: true
graph:
  name: knowledge
  cache_capacity: 2000
  query_threads: 8
server:
  listen_addr: ":9000"
logging:
  level: warn
`
	if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Store.Dir != "/tmp/graphdata" {
		t.Errorf("expected store dir from file, got %q", cfg.Store.Dir)
	}
	if !cfg.Store.SyncWrites {
		t.Error("expected sync_writes true from file")
	}
	if cfg.Graph.Name != "knowledge" {
		t.Errorf("expected graph name from file, got %q", cfg.Graph.Name)
	}
	if cfg.Graph.CacheCapacity != 2000 {
		t.Errorf("expected cache capacity from file, got %d", cfg.Graph.CacheCapacity)
	}
	if cfg.Graph.QueryThreads != 8 {
		t.Errorf("expected query threads from file, got %d", cfg.Graph.QueryThreads)
	}
	if cfg.Server.ListenAddr != ":9000" {
		t.Errorf("expected listen addr from file, got %q", cfg.Server.ListenAddr)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected log level from file, got %q", cfg.Logging.Level)
	}
	// Fields left unset in the file keep their defaults.
	if cfg.Graph.WriteThreads != 4 {
		t.Errorf("expected write threads to keep default 4, got %d", cfg.Graph.WriteThreads)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnvVars(t)
	defer clearEnvVars(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("graph:\n  name: fromfile\n"), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	os.Setenv("LATTICEGRAPH_GRAPH_NAME", "fromenv")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Graph.Name != "fromenv" {
		t.Errorf("expected env to win over file, got %q", cfg.Graph.Name)
	}
}

func TestValidate_RejectsBadConfig(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(*Config) {}, false},
		{"empty dir without in-memory", func(c *Config) { c.Store.Dir = "" }, true},
		{"empty graph name", func(c *Config) { c.Graph.Name = "" }, true},
		{"negative cache capacity", func(c *Config) { c.Graph.CacheCapacity = -1 }, true},
		{"zero query threads", func(c *Config) { c.Graph.QueryThreads = 0 }, true},
		{"zero write threads", func(c *Config) { c.Graph.WriteThreads = 0 }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"in-memory allows empty dir", func(c *Config) { c.Store.Dir = ""; c.Store.InMemory = true }, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := LoadDefaults()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestGraphOptions_MapsFields(t *testing.T) {
	cfg := LoadDefaults()
	cfg.Graph.PropertyCacheTTL = map[string]string{"bio": "1h"}

	opts := cfg.GraphOptions()

	if opts.GraphName != cfg.Graph.Name {
		t.Errorf("expected GraphName %q, got %q", cfg.Graph.Name, opts.GraphName)
	}
	if opts.CacheCapacity != cfg.Graph.CacheCapacity {
		t.Errorf("expected CacheCapacity %d, got %d", cfg.Graph.CacheCapacity, opts.CacheCapacity)
	}
	if opts.PropertyCacheTTL["bio"] != time.Hour {
		t.Errorf("expected PropertyCacheTTL[bio] 1h, got %v", opts.PropertyCacheTTL["bio"])
	}
}

func TestStoreOptions_MapsFields(t *testing.T) {
	cfg := LoadDefaults()
	cfg.Store.InMemory = true
	cfg.Store.NumVersionsToKeep = 5

	opts := cfg.StoreOptions()

	if !opts.InMemory {
		t.Error("expected InMemory true")
	}
	if opts.NumVersionsToKeep != 5 {
		t.Errorf("expected NumVersionsToKeep 5, got %d", opts.NumVersionsToKeep)
	}
}
