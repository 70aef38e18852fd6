package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent reels configuration stored as config.toml
// in the .reels/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	API         APIConfig         `toml:"api"`
	Client      ClientConfig      `toml:"client"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Search      SearchConfig      `toml:"search"`
	GC          GCConfig          `toml:"gc"`
	Eventstream EventstreamConfig `toml:"eventstream"`
}

// StorageConfig holds shared storage settings.
type StorageConfig struct {
	SQLitePath string `toml:"sqlite_path,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to a running
// API server (e.g. reels search against a remote store). Values are full
// URLs (scheme + host + port).
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// VectorStoreConfig holds vector store settings.
type VectorStoreConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string   `toml:"provider,omitempty"`
	Fallbacks  []string `toml:"fallbacks,omitempty"`
	Target     string   `toml:"target,omitempty"`
	Model      string   `toml:"model,omitempty"`
	APIKey     string   `toml:"api_key,omitempty"`
	Dimensions uint     `toml:"dimensions,omitempty"`
}

// SearchConfig holds hybrid search settings.
type SearchConfig struct {
	Fusion string `toml:"fusion,omitempty"`
}

// GCConfig holds garbage collection settings.
type GCConfig struct {
	RetentionDays int `toml:"retention_days,omitempty"`
	BatchSize     int `toml:"batch_size,omitempty"`
}

// EventstreamConfig holds eventstream publisher settings.
type EventstreamConfig struct {
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
// List-valued keys round-trip as comma-separated strings.
var configKeys = map[string]configKeyInfo{
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"client.api_target": {
		get: func(c *Config) string { return c.Client.APITarget },
		set: func(c *Config, v string) error { c.Client.APITarget = v; return nil },
	},
	"vector_store.provider": {
		get: func(c *Config) string { return c.VectorStore.Provider },
		set: func(c *Config, v string) error { c.VectorStore.Provider = v; return nil },
	},
	"vector_store.target": {
		get: func(c *Config) string { return c.VectorStore.Target },
		set: func(c *Config, v string) error { c.VectorStore.Target = v; return nil },
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.fallbacks": {
		get: func(c *Config) string { return strings.Join(c.Embedding.Fallbacks, ",") },
		set: func(c *Config, v string) error {
			c.Embedding.Fallbacks = splitList(v)
			return nil
		},
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.api_key": {
		get: func(c *Config) string { return c.Embedding.APIKey },
		set: func(c *Config, v string) error { c.Embedding.APIKey = v; return nil },
	},
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
	"search.fusion": {
		get: func(c *Config) string { return c.Search.Fusion },
		set: func(c *Config, v string) error {
			switch v {
			case "weighted", "rrf":
				c.Search.Fusion = v
				return nil
			default:
				return fmt.Errorf("invalid value for search.fusion: %q (available: weighted, rrf)", v)
			}
		},
	},
	"gc.retention_days": {
		get: func(c *Config) string { return strconv.Itoa(c.GC.RetentionDays) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for gc.retention_days: %w", err)
			}
			c.GC.RetentionDays = n
			return nil
		},
	},
	"gc.batch_size": {
		get: func(c *Config) string { return strconv.Itoa(c.GC.BatchSize) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for gc.batch_size: %w", err)
			}
			c.GC.BatchSize = n
			return nil
		},
	},
	"eventstream.provider": {
		get: func(c *Config) string { return c.Eventstream.Provider },
		set: func(c *Config, v string) error { c.Eventstream.Provider = v; return nil },
	},
	"eventstream.brokers": {
		get: func(c *Config) string { return strings.Join(c.Eventstream.Brokers, ",") },
		set: func(c *Config, v string) error {
			c.Eventstream.Brokers = splitList(v)
			return nil
		},
	},
	"eventstream.topic": {
		get: func(c *Config) string { return c.Eventstream.Topic },
		set: func(c *Config, v string) error { c.Eventstream.Topic = v; return nil },
	},
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
