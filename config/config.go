// Package config loads the process configuration of the cbir command from a
// YAML file and CBIR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cytomine/cbir/distance"
	"github.com/cytomine/cbir/persistence"
)

// Blob backends.
const (
	BlobLocal = "local"
	BlobS3    = "s3"
	BlobMinIO = "minio"
)

// Identity backends.
const (
	KVRedis    = "redis"
	KVBadger   = "badger"
	KVDynamoDB = "dynamodb"
	KVMemory   = "memory"
)

type BlobConfig struct {
	Backend   string `yaml:"backend"`
	Bucket    string `yaml:"bucket,omitempty"`
	Prefix    string `yaml:"prefix,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
	Secure    bool   `yaml:"secure,omitempty"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       int    `yaml:"db"`
	Password string `yaml:"password,omitempty"`
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type BadgerConfig struct {
	Dir      string `yaml:"dir,omitempty"`
	InMemory bool   `yaml:"in_memory,omitempty"`
}

type DynamoDBConfig struct {
	Table  string `yaml:"table,omitempty"`
	Region string `yaml:"region,omitempty"`
}

type KVConfig struct {
	Backend  string         `yaml:"backend"`
	Redis    RedisConfig    `yaml:"redis"`
	Badger   BadgerConfig   `yaml:"badger,omitempty"`
	DynamoDB DynamoDBConfig `yaml:"dynamodb,omitempty"`
}

type ResourceConfig struct {
	MemoryLimitBytes      int64 `yaml:"memory_limit_bytes,omitempty"`
	MaxConcurrentSearches int64 `yaml:"max_concurrent_searches,omitempty"`
	IOLimitBytesPerSec    int64 `yaml:"io_limit_bytes_per_sec,omitempty"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	DataPath    string         `yaml:"data_path"`
	Extractor   string         `yaml:"extractor"`
	NFeatures   int            `yaml:"n_features"`
	Accelerated bool           `yaml:"accelerated"`
	Metric      string         `yaml:"metric"`
	Compression string         `yaml:"compression"`
	Blob        BlobConfig     `yaml:"blob"`
	KV          KVConfig       `yaml:"kv"`
	Resources   ResourceConfig `yaml:"resources,omitempty"`
	Log         LogConfig      `yaml:"log"`
}

func DefaultConfig() *Config {
	return &Config{
		DataPath:    "/data",
		Extractor:   "histogram",
		NFeatures:   128,
		Metric:      "l2",
		Compression: "none",
		Blob: BlobConfig{
			Backend: BlobLocal,
		},
		KV: KVConfig{
			Backend: KVRedis,
			Redis: RedisConfig{
				Host: "localhost",
				Port: 6379,
			},
			DynamoDB: DynamoDBConfig{
				Table: "cbir-identity",
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path or a missing file leaves the defaults in place.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal renders cfg as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}
	integer := func(name string, dst *int) error {
		v, ok := lookup(name)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = n
		return nil
	}
	boolean := func(name string, dst *bool) error {
		v, ok := lookup(name)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = b
		return nil
	}

	str("CBIR_DATA_PATH", &c.DataPath)
	str("CBIR_EXTRACTOR", &c.Extractor)
	str("CBIR_METRIC", &c.Metric)
	str("CBIR_COMPRESSION", &c.Compression)
	str("CBIR_BLOB_BACKEND", &c.Blob.Backend)
	str("CBIR_BLOB_BUCKET", &c.Blob.Bucket)
	str("CBIR_BLOB_PREFIX", &c.Blob.Prefix)
	str("CBIR_BLOB_ENDPOINT", &c.Blob.Endpoint)
	str("CBIR_KV_BACKEND", &c.KV.Backend)
	str("CBIR_REDIS_HOST", &c.KV.Redis.Host)
	str("CBIR_REDIS_PASSWORD", &c.KV.Redis.Password)
	str("CBIR_LOG_LEVEL", &c.Log.Level)
	str("CBIR_LOG_FORMAT", &c.Log.Format)

	return errors.Join(
		integer("CBIR_N_FEATURES", &c.NFeatures),
		integer("CBIR_REDIS_PORT", &c.KV.Redis.Port),
		integer("CBIR_REDIS_DB", &c.KV.Redis.DB),
		boolean("CBIR_ACCELERATED", &c.Accelerated),
	)
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error
	if c.NFeatures <= 0 {
		errs = append(errs, fmt.Errorf("n_features must be positive, got %d", c.NFeatures))
	}
	if c.Extractor == "" {
		errs = append(errs, errors.New("extractor is required"))
	}
	if _, err := c.ParsedMetric(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.ParsedCompression(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	if f := c.Log.Format; f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("log format must be text or json, got %q", f))
	}

	switch c.Blob.Backend {
	case BlobLocal:
		if c.DataPath == "" {
			errs = append(errs, errors.New("data_path is required for the local blob backend"))
		}
	case BlobS3, BlobMinIO:
		if c.Blob.Bucket == "" {
			errs = append(errs, fmt.Errorf("blob.bucket is required for the %s backend", c.Blob.Backend))
		}
		if c.Blob.Backend == BlobMinIO && c.Blob.Endpoint == "" {
			errs = append(errs, errors.New("blob.endpoint is required for the minio backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob backend %q", c.Blob.Backend))
	}

	switch c.KV.Backend {
	case KVRedis:
		if c.KV.Redis.Port <= 0 || c.KV.Redis.Port > 65535 {
			errs = append(errs, fmt.Errorf("kv.redis.port out of range: %d", c.KV.Redis.Port))
		}
		if c.KV.Redis.DB < 0 {
			errs = append(errs, fmt.Errorf("kv.redis.db must be non-negative, got %d", c.KV.Redis.DB))
		}
	case KVBadger:
		if !c.KV.Badger.InMemory && c.KV.Badger.Dir == "" {
			errs = append(errs, errors.New("kv.badger.dir is required unless in_memory"))
		}
	case KVDynamoDB:
		if c.KV.DynamoDB.Table == "" {
			errs = append(errs, errors.New("kv.dynamodb.table is required"))
		}
	case KVMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown kv backend %q", c.KV.Backend))
	}
	return errors.Join(errs...)
}

// ParsedMetric returns Metric as a distance.Metric.
func (c *Config) ParsedMetric() (distance.Metric, error) {
	return distance.ParseMetric(c.Metric)
}

// ParsedCompression returns Compression as a persistence.CompressionType.
func (c *Config) ParsedCompression() (persistence.CompressionType, error) {
	return persistence.ParseCompression(c.Compression)
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(c.Log.Level))); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return l, nil
}
