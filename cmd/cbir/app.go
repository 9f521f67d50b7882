package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cytomine/cbir"
	"github.com/cytomine/cbir/blobstore"
	miniostore "github.com/cytomine/cbir/blobstore/minio"
	s3store "github.com/cytomine/cbir/blobstore/s3"
	"github.com/cytomine/cbir/config"
	"github.com/cytomine/cbir/extractor"
	"github.com/cytomine/cbir/kv"
	badgerkv "github.com/cytomine/cbir/kv/badger"
	dynamokv "github.com/cytomine/cbir/kv/dynamodb"
	rediskv "github.com/cytomine/cbir/kv/redis"
	cbirprom "github.com/cytomine/cbir/metrics/prometheus"
	"github.com/cytomine/cbir/resource"
)

// app holds the wired dependencies of one command invocation.
type app struct {
	cfg      *config.Config
	logger   *cbir.Logger
	ext      extractor.Extractor
	registry *cbir.Registry
	backend  kv.Backend
	gatherer prometheus.Gatherer
}

type appFactory func(ctx context.Context, cfg *config.Config, stderr io.Writer) (*app, error)

func newApp(ctx context.Context, cfg *config.Config, stderr io.Writer) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	level, _ := cfg.LogLevel()
	metric, _ := cfg.ParsedMetric()
	compression, _ := cfg.ParsedCompression()

	hopts := &slog.HandlerOptions{Level: level}
	logger := cbir.NewLogger(slog.NewTextHandler(stderr, hopts))
	if cfg.Log.Format == "json" {
		logger = cbir.NewLogger(slog.NewJSONHandler(stderr, hopts))
	}

	ext, err := extractor.New(cfg.Extractor, cfg.NFeatures)
	if err != nil {
		return nil, err
	}

	rc := resource.NewController(resource.Config{
		MemoryLimitBytes:      cfg.Resources.MemoryLimitBytes,
		MaxConcurrentSearches: cfg.Resources.MaxConcurrentSearches,
		IOLimitBytesPerSec:    cfg.Resources.IOLimitBytesPerSec,
	})

	blobs, err := openBlobStore(ctx, cfg, rc)
	if err != nil {
		return nil, fmt.Errorf("blob store: %w", err)
	}
	backend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("identity backend: %w", err)
	}

	promReg := prometheus.NewRegistry()
	collector, err := cbirprom.New(promReg)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	registry := cbir.NewRegistry(blobs, backend,
		cbir.WithLogger(logger),
		cbir.WithMetrics(collector),
		cbir.WithDimension(cfg.NFeatures),
		cbir.WithMetric(metric),
		cbir.WithAccelerated(cfg.Accelerated),
		cbir.WithCompression(compression),
		cbir.WithResourceController(rc),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		ext:      ext,
		registry: registry,
		backend:  backend,
		gatherer: promReg,
	}, nil
}

func openBlobStore(ctx context.Context, cfg *config.Config, rc *resource.Controller) (blobstore.BlobStore, error) {
	b := cfg.Blob
	switch b.Backend {
	case config.BlobS3:
		optFns := []func(*s3store.Options){s3store.WithPrefix(b.Prefix), s3store.WithRegion(b.Region)}
		if b.Endpoint != "" {
			optFns = append(optFns, s3store.WithEndpoint(b.Endpoint))
		}
		store, err := s3store.New(ctx, b.Bucket, optFns...)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BlobMinIO:
		store, err := miniostore.Dial(b.Endpoint, b.AccessKey, b.SecretKey, b.Secure, b.Bucket, b.Prefix)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return blobstore.NewLocalStore(cfg.DataPath, blobstore.WithResourceController(rc)), nil
	}
}

func openBackend(ctx context.Context, cfg *config.Config, logger *cbir.Logger) (kv.Backend, error) {
	k := cfg.KV
	switch k.Backend {
	case config.KVBadger:
		b, err := badgerkv.Open(badgerkv.Options{
			Dir:      k.Badger.Dir,
			InMemory: k.Badger.InMemory,
			Logger:   logger.Logger,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.KVDynamoDB:
		var loadOpts []func(*awsconfig.LoadOptions) error
		if k.DynamoDB.Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(k.DynamoDB.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, err
		}
		return dynamokv.NewFromConfig(awsCfg, k.DynamoDB.Table), nil
	case config.KVMemory:
		return kv.NewMemory(), nil
	default:
		b, err := rediskv.Dial(ctx, rediskv.Config{
			Addr:     k.Redis.Addr(),
			Password: k.Redis.Password,
			DB:       k.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

// checkStorage rejects storages that were never provisioned on the local backend.
func (a *app) checkStorage(storage string) error {
	if a.cfg.Blob.Backend != config.BlobLocal {
		return nil
	}
	fi, err := os.Stat(filepath.Join(a.cfg.DataPath, storage))
	if err != nil || !fi.IsDir() {
		return fmt.Errorf("storage %q not found", storage)
	}
	return nil
}

// writeMetrics dumps the collected metrics in the Prometheus text format.
func (a *app) writeMetrics(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, a.gatherer)
}

func (a *app) Close() error {
	return errors.Join(a.registry.Close(), a.backend.Close())
}
