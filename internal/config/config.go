// Package config loads the configuration of the kura tools from a TOML file,
// a .env file and KURA_* environment variables, in increasing precedence.
package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/edwinsyarief/kura"
	"github.com/edwinsyarief/kura/snapshot"
)

// Config is the tool configuration.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Snapshot SnapshotConfig `toml:"snapshot"`
	Storage  StorageConfig  `toml:"storage"`
}

// LogConfig selects the logrus level and formatter.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "text" | "json"
}

// StorageConfig sizes chunks of the worlds the tools build.
type StorageConfig struct {
	ChunkBytes    int `toml:"chunk_bytes"`
	ChunkCapacity int `toml:"chunk_capacity"`
}

// SnapshotConfig selects how snapshots are written and where they are kept.
type SnapshotConfig struct {
	Format      string `toml:"format"`
	Compression string `toml:"compression"`
	Store       string `toml:"store"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Storage: StorageConfig{
			ChunkBytes: kura.DefaultChunkBytes,
		},
		Snapshot: SnapshotConfig{
			Format:      "msgpack",
			Compression: "zstd",
			Store:       "kura.db",
		},
	}
}

// Load reads path (skipped when empty), then .env, then the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, errors.Wrapf(err, "config: %s", path)
		}
	}
	// a missing .env is fine
	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"KURA_LOG_LEVEL":            &c.Log.Level,
		"KURA_LOG_FORMAT":           &c.Log.Format,
		"KURA_SNAPSHOT_FORMAT":      &c.Snapshot.Format,
		"KURA_SNAPSHOT_COMPRESSION": &c.Snapshot.Compression,
		"KURA_STORE":                &c.Snapshot.Store,
	}
	for k, p := range str {
		if v, ok := os.LookupEnv(k); ok {
			*p = v
		}
	}
	ints := map[string]*int{
		"KURA_CHUNK_BYTES":    &c.Storage.ChunkBytes,
		"KURA_CHUNK_CAPACITY": &c.Storage.ChunkCapacity,
	}
	for k, p := range ints {
		v, ok := os.LookupEnv(k)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "config: %s", k)
		}
		*p = n
	}
	return nil
}

// Validate checks every field.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "config: log.level")
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return errors.Errorf("config: log.format %q must be text or json", c.Log.Format)
	}
	if c.Storage.ChunkBytes < 0 || c.Storage.ChunkCapacity < 0 {
		return errors.New("config: storage sizes must not be negative")
	}
	if _, err := snapshot.ParseFormat(c.Snapshot.Format); err != nil {
		return errors.Wrap(err, "config: snapshot.format")
	}
	if _, err := snapshot.ParseCompression(c.Snapshot.Compression); err != nil {
		return errors.Wrap(err, "config: snapshot.compression")
	}
	return nil
}

// Logger builds the logger described by the configuration.
func (c *Config) Logger() *logrus.Logger {
	log := logrus.New()
	if c.Log.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	}
	if lvl, err := logrus.ParseLevel(c.Log.Level); err == nil {
		log.SetLevel(lvl)
	}
	return log
}

// WorldOptions returns the kura options for a world built by the tools.
func (c *Config) WorldOptions(log *logrus.Logger) []kura.Option {
	return []kura.Option{
		kura.WithLogger(log.WithField("component", "kura")),
		kura.WithChunkBytes(c.Storage.ChunkBytes),
		kura.WithChunkCapacity(c.Storage.ChunkCapacity),
	}
}

// SnapshotOptions returns the snapshot options selected by the
// configuration. Validate must have succeeded.
func (c *Config) SnapshotOptions() []snapshot.Option {
	f, _ := snapshot.ParseFormat(c.Snapshot.Format)
	comp, _ := snapshot.ParseCompression(c.Snapshot.Compression)
	return []snapshot.Option{snapshot.WithFormat(f), snapshot.WithCompression(comp)}
}
