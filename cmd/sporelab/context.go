package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"sporelab/internal/blob"
	"sporelab/internal/config"
	"sporelab/internal/core"
	"sporelab/internal/evidence"
	"sporelab/internal/media"
	"sporelab/internal/persistence/memory"
	"sporelab/internal/persistence/postgres"
	"sporelab/internal/persistence/sqlite"
	"sporelab/internal/signedurl"
	"sporelab/pkg/domain"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// backends bundles everything a command needs plus the teardown.
type backends struct {
	svc   *core.Service
	media *media.Service
	cfg   *config.Config
	close func() error
}

func (c *commandContext) openBackends(ctx context.Context) (*backends, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	log := newLogger(cfg)

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	blobs, err := openBlobs(ctx, cfg)
	if err != nil {
		if closeStore != nil {
			_ = closeStore()
		}
		return nil, err
	}

	cache := signedurl.New(signedurl.WithSafetyMargin(time.Duration(cfg.URLs.SafetyMarginSeconds) * time.Second))
	ev := evidence.NewStore(store, blobs, cache, log,
		evidence.WithURLTTL(time.Duration(cfg.URLs.TTLSeconds)*time.Second))
	svc := core.NewService(store, ev,
		core.WithLogger(log),
		core.WithMetricsRecorder(core.NopMetricsRecorder{}))

	b := &backends{
		svc:   svc,
		media: media.NewService(store, ev, log),
		cfg:   cfg,
		close: func() error { return nil },
	}
	if closeStore != nil {
		b.close = closeStore
	}
	return b, nil
}

func (c *commandContext) withBackends(ctx context.Context, fn func(*backends) error) error {
	b, err := c.openBackends(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = b.close() }()
	return fn(b)
}

func openStore(cfg *config.Config) (domain.PersistentStore, func() error, error) {
	switch cfg.Storage.Driver {
	case "memory":
		return memory.NewStore(), nil, nil
	case "sqlite":
		store, err := sqlite.NewStore(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, store.Close, nil
	case "postgres":
		store, err := postgres.NewStore(cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func openBlobs(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	switch cfg.Blob.Driver {
	case "memory":
		return blob.NewMemory(), nil
	case "fs":
		return blob.NewFilesystem(cfg.Blob.FSRoot)
	case "s3":
		return blob.NewS3(ctx, blob.S3Config{
			Region:          cfg.Blob.S3Region,
			Bucket:          cfg.Blob.S3Bucket,
			Endpoint:        cfg.Blob.S3Endpoint,
			AccessKeyID:     cfg.Blob.S3AccessKey,
			SecretAccessKey: cfg.Blob.S3SecretKey,
			PathStyle:       cfg.Blob.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Blob.Driver)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
