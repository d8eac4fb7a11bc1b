// Package config loads LatticeGraph's runtime configuration from defaults,
// an optional YAML file, and LATTICEGRAPH_*-prefixed environment variables,
// in that increasing order of precedence. cmd/latticegraph's only flag,
// --config, chooses which YAML file is loaded; no flag overrides a field.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/latticegraph/lattice/pkg/graph"
	"github.com/latticegraph/lattice/pkg/kv"
)

// StoreConfig configures the underlying Badger-backed kv.Engine.
type StoreConfig struct {
	Dir               string `yaml:"dir"`
	InMemory          bool   `yaml:"in_memory"`
	SyncWrites        bool   `yaml:"sync_writes"`
	NumVersionsToKeep int    `yaml:"num_versions_to_keep"`
}

// GraphConfig configures the graph.Graph built on top of the store.
type GraphConfig struct {
	Name                   string            `yaml:"name"`
	AutoFlush              bool              `yaml:"auto_flush"`
	SkipExistenceChecks    bool              `yaml:"skip_existence_checks"`
	AutoIndex              bool              `yaml:"auto_index"`
	IndexableGraphDisabled bool              `yaml:"indexable_graph_disabled"`
	CacheCapacity          int               `yaml:"cache_capacity"`
	VertexCacheTTL         time.Duration     `yaml:"vertex_cache_ttl"`
	EdgeCacheTTL           time.Duration     `yaml:"edge_cache_ttl"`
	PropertyCacheTTL       map[string]string `yaml:"property_cache_ttl"`
	PreloadProperties      []string          `yaml:"preload_properties"`
	PreloadEdgeLabels      []string          `yaml:"preload_edge_labels"`
	LegacyIndexSweep       bool              `yaml:"legacy_index_sweep"`
	BestEffort             bool              `yaml:"best_effort"`
	QueryThreads           int               `yaml:"query_threads"`
	WriteThreads           int               `yaml:"write_threads"`
}

// ServerConfig holds a listen address. It is loaded, overlaid and printed,
// but the serve subcommand opens no network listener and does not read it.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// LoggingConfig holds a logging level and format. Validate checks Level;
// nothing in the module configures a logger from either field.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the fully resolved configuration for a latticegraph process.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Graph   GraphConfig   `yaml:"graph"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

// LoadDefaults returns the baseline configuration used when no file or
// environment variable overrides anything.
func LoadDefaults() *Config {
	return &Config{
		Store: StoreConfig{
			Dir:               "./data",
			InMemory:          false,
			SyncWrites:        false,
			NumVersionsToKeep: 1,
		},
		Graph: GraphConfig{
			Name:                   "graph",
			AutoFlush:              true,
			SkipExistenceChecks:    false,
			AutoIndex:              false,
			IndexableGraphDisabled: false,
			CacheCapacity:          10000,
			VertexCacheTTL:         5 * time.Minute,
			EdgeCacheTTL:           5 * time.Minute,
			LegacyIndexSweep:       false,
			BestEffort:             false,
			QueryThreads:           4,
			WriteThreads:           4,
		},
		Server: ServerConfig{
			ListenAddr: ":8182",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load resolves the full precedence chain: defaults, then configPath (if
// non-empty, else the first file FindConfigFile locates), then
// LATTICEGRAPH_* environment variables.
func Load(configPath string) (*Config, error) {
	cfg := LoadDefaults()

	if configPath == "" {
		configPath = FindConfigFile()
	}
	if configPath != "" {
		if err := cfg.mergeFile(configPath); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvVars()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile loads path as YAML and overlays any fields it sets onto cfg.
// A field takes effect only when its file value is non-zero: an empty
// string, a false boolean, a non-positive number or an empty list/map is
// treated as "not set", so a file cannot turn a true default off,
// matching the teacher's merge-over-defaults style.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	if file.Store.Dir != "" {
		c.Store.Dir = file.Store.Dir
	}
	if file.Store.InMemory {
		c.Store.InMemory = true
	}
	if file.Store.SyncWrites {
		c.Store.SyncWrites = true
	}
	if file.Store.NumVersionsToKeep > 0 {
		c.Store.NumVersionsToKeep = file.Store.NumVersionsToKeep
	}

	if file.Graph.Name != "" {
		c.Graph.Name = file.Graph.Name
	}
	if file.Graph.AutoFlush {
		c.Graph.AutoFlush = true
	}
	if file.Graph.SkipExistenceChecks {
		c.Graph.SkipExistenceChecks = true
	}
	if file.Graph.AutoIndex {
		c.Graph.AutoIndex = true
	}
	if file.Graph.IndexableGraphDisabled {
		c.Graph.IndexableGraphDisabled = true
	}
	if file.Graph.CacheCapacity > 0 {
		c.Graph.CacheCapacity = file.Graph.CacheCapacity
	}
	if file.Graph.VertexCacheTTL > 0 {
		c.Graph.VertexCacheTTL = file.Graph.VertexCacheTTL
	}
	if file.Graph.EdgeCacheTTL > 0 {
		c.Graph.EdgeCacheTTL = file.Graph.EdgeCacheTTL
	}
	if len(file.Graph.PropertyCacheTTL) > 0 {
		c.Graph.PropertyCacheTTL = file.Graph.PropertyCacheTTL
	}
	if len(file.Graph.PreloadProperties) > 0 {
		c.Graph.PreloadProperties = file.Graph.PreloadProperties
	}
	if len(file.Graph.PreloadEdgeLabels) > 0 {
		c.Graph.PreloadEdgeLabels = file.Graph.PreloadEdgeLabels
	}
	if file.Graph.LegacyIndexSweep {
		c.Graph.LegacyIndexSweep = true
	}
	if file.Graph.BestEffort {
		c.Graph.BestEffort = true
	}
	if file.Graph.QueryThreads > 0 {
		c.Graph.QueryThreads = file.Graph.QueryThreads
	}
	if file.Graph.WriteThreads > 0 {
		c.Graph.WriteThreads = file.Graph.WriteThreads
	}

	if file.Server.ListenAddr != "" {
		c.Server.ListenAddr = file.Server.ListenAddr
	}

	if file.Logging.Level != "" {
		c.Logging.Level = file.Logging.Level
	}
	if file.Logging.Format != "" {
		c.Logging.Format = file.Logging.Format
	}

	return nil
}

// applyEnvVars overlays LATTICEGRAPH_* environment variables, the highest
// precedence layer.
func (c *Config) applyEnvVars() {
	c.Store.Dir = getEnv("LATTICEGRAPH_STORE_DIR", c.Store.Dir)
	c.Store.InMemory = getEnvBool("LATTICEGRAPH_STORE_IN_MEMORY", c.Store.InMemory)
	c.Store.SyncWrites = getEnvBool("LATTICEGRAPH_STORE_SYNC_WRITES", c.Store.SyncWrites)
	c.Store.NumVersionsToKeep = getEnvInt("LATTICEGRAPH_STORE_NUM_VERSIONS_TO_KEEP", c.Store.NumVersionsToKeep)

	c.Graph.Name = getEnv("LATTICEGRAPH_GRAPH_NAME", c.Graph.Name)
	c.Graph.AutoFlush = getEnvBool("LATTICEGRAPH_GRAPH_AUTO_FLUSH", c.Graph.AutoFlush)
	c.Graph.SkipExistenceChecks = getEnvBool("LATTICEGRAPH_GRAPH_SKIP_EXISTENCE_CHECKS", c.Graph.SkipExistenceChecks)
	c.Graph.AutoIndex = getEnvBool("LATTICEGRAPH_GRAPH_AUTO_INDEX", c.Graph.AutoIndex)
	c.Graph.IndexableGraphDisabled = getEnvBool("LATTICEGRAPH_GRAPH_INDEXABLE_GRAPH_DISABLED", c.Graph.IndexableGraphDisabled)
	c.Graph.CacheCapacity = getEnvInt("LATTICEGRAPH_GRAPH_CACHE_CAPACITY", c.Graph.CacheCapacity)
	c.Graph.VertexCacheTTL = getEnvDuration("LATTICEGRAPH_GRAPH_VERTEX_CACHE_TTL", c.Graph.VertexCacheTTL)
	c.Graph.EdgeCacheTTL = getEnvDuration("LATTICEGRAPH_GRAPH_EDGE_CACHE_TTL", c.Graph.EdgeCacheTTL)
	c.Graph.PreloadProperties = getEnvStringSlice("LATTICEGRAPH_GRAPH_PRELOAD_PROPERTIES", c.Graph.PreloadProperties)
	c.Graph.PreloadEdgeLabels = getEnvStringSlice("LATTICEGRAPH_GRAPH_PRELOAD_EDGE_LABELS", c.Graph.PreloadEdgeLabels)
	c.Graph.LegacyIndexSweep = getEnvBool("LATTICEGRAPH_GRAPH_LEGACY_INDEX_SWEEP", c.Graph.LegacyIndexSweep)
	c.Graph.BestEffort = getEnvBool("LATTICEGRAPH_GRAPH_BEST_EFFORT", c.Graph.BestEffort)
	c.Graph.QueryThreads = getEnvInt("LATTICEGRAPH_GRAPH_QUERY_THREADS", c.Graph.QueryThreads)
	c.Graph.WriteThreads = getEnvInt("LATTICEGRAPH_GRAPH_WRITE_THREADS", c.Graph.WriteThreads)

	c.Server.ListenAddr = getEnv("LATTICEGRAPH_SERVER_LISTEN_ADDR", c.Server.ListenAddr)

	c.Logging.Level = getEnv("LATTICEGRAPH_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LATTICEGRAPH_LOG_FORMAT", c.Logging.Format)
}

// Validate rejects configurations that would fail deeper in the stack with
// a less legible error.
func (c *Config) Validate() error {
	if !c.Store.InMemory && c.Store.Dir == "" {
		return fmt.Errorf("config: store.dir must be set unless store.in_memory is true")
	}
	if c.Graph.Name == "" {
		return fmt.Errorf("config: graph.name must not be empty")
	}
	if c.Graph.CacheCapacity < 0 {
		return fmt.Errorf("config: graph.cache_capacity must not be negative")
	}
	if c.Graph.QueryThreads <= 0 {
		return fmt.Errorf("config: graph.query_threads must be positive")
	}
	if c.Graph.WriteThreads <= 0 {
		return fmt.Errorf("config: graph.write_threads must be positive")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}

// String renders a plain-text summary of the resolved configuration.
func (c *Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "store: dir=%s in_memory=%v sync_writes=%v num_versions_to_keep=%d\n",
		c.Store.Dir, c.Store.InMemory, c.Store.SyncWrites, c.Store.NumVersionsToKeep)
	fmt.Fprintf(&b, "graph: name=%s auto_flush=%v skip_existence_checks=%v auto_index=%v indexable_graph_disabled=%v\n",
		c.Graph.Name, c.Graph.AutoFlush, c.Graph.SkipExistenceChecks, c.Graph.AutoIndex, c.Graph.IndexableGraphDisabled)
	fmt.Fprintf(&b, "graph: cache_capacity=%d vertex_cache_ttl=%s edge_cache_ttl=%s query_threads=%d write_threads=%d\n",
		c.Graph.CacheCapacity, c.Graph.VertexCacheTTL, c.Graph.EdgeCacheTTL, c.Graph.QueryThreads, c.Graph.WriteThreads)
	fmt.Fprintf(&b, "server: listen_addr=%s\n", c.Server.ListenAddr)
	fmt.Fprintf(&b, "logging: level=%s format=%s", c.Logging.Level, c.Logging.Format)
	return b.String()
}

// StoreOptions converts to kv.Options.
func (c *Config) StoreOptions() kv.Options {
	return kv.Options{
		Dir:               c.Store.Dir,
		InMemory:          c.Store.InMemory,
		SyncWrites:        c.Store.SyncWrites,
		NumVersionsToKeep: c.Store.NumVersionsToKeep,
	}
}

// GraphOptions converts to graph.Options.
func (c *Config) GraphOptions() graph.Options {
	var propertyCacheTTL map[string]time.Duration
	if len(c.Graph.PropertyCacheTTL) > 0 {
		propertyCacheTTL = make(map[string]time.Duration, len(c.Graph.PropertyCacheTTL))
		for key, raw := range c.Graph.PropertyCacheTTL {
			if d, err := time.ParseDuration(raw); err == nil {
				propertyCacheTTL[key] = d
			}
		}
	}
	return graph.Options{
		GraphName:              c.Graph.Name,
		AutoFlush:              c.Graph.AutoFlush,
		SkipExistenceChecks:    c.Graph.SkipExistenceChecks,
		AutoIndex:              c.Graph.AutoIndex,
		IndexableGraphDisabled: c.Graph.IndexableGraphDisabled,
		CacheCapacity:          c.Graph.CacheCapacity,
		VertexCacheTTL:         c.Graph.VertexCacheTTL,
		EdgeCacheTTL:           c.Graph.EdgeCacheTTL,
		PropertyCacheTTL:       propertyCacheTTL,
		PreloadProperties:      c.Graph.PreloadProperties,
		PreloadEdgeLabels:      c.Graph.PreloadEdgeLabels,
		LegacyIndexSweep:       c.Graph.LegacyIndexSweep,
		BestEffort:             c.Graph.BestEffort,
		QueryThreads:           c.Graph.QueryThreads,
		WriteThreads:           c.Graph.WriteThreads,
	}
}

// FindConfigFile searches for a config file in standard locations, in
// priority order. Returns the first path found, or "" if none exist.
func FindConfigFile() string {
	var candidates []string

	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".latticegraph", "config.yaml"))
	}
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		candidates = append(candidates,
			filepath.Join(exeDir, "config.yaml"),
			filepath.Join(exeDir, "latticegraph.yaml"),
		)
	}
	candidates = append(candidates, "config.yaml", "latticegraph.yaml")
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "latticegraph", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Helper functions for environment variable parsing, in the teacher's
// style.

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}

func getEnvStringSlice(key string, defaultVal []string) []string {
	if val := os.Getenv(key); val != "" {
		parts := strings.Split(val, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultVal
}
