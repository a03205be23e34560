package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateBlob(); err != nil {
		return err
	}
	if err := c.validateURLs(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Sweep.MinAgeHours < 0 {
		return errors.New("sweep.min_age_hours must not be negative")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Driver {
	case "memory":
		return nil
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return errors.New("storage.sqlite_path must be set for the sqlite driver")
		}
		return nil
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return errors.New("storage.postgres_dsn must be set for the postgres driver")
		}
		return nil
	default:
		return fmt.Errorf("storage.driver %q is not one of memory, sqlite, postgres", c.Storage.Driver)
	}
}

func (c *Config) validateBlob() error {
	switch c.Blob.Driver {
	case "memory":
		return nil
	case "fs":
		if c.Blob.FSRoot == "" {
			return errors.New("blob.fs_root must be set for the fs driver")
		}
		return nil
	case "s3":
		if c.Blob.S3Bucket == "" {
			return errors.New("blob.s3_bucket must be set for the s3 driver")
		}
		if (c.Blob.S3AccessKey == "") != (c.Blob.S3SecretKey == "") {
			return errors.New("blob.s3_access_key and blob.s3_secret_key must be set together")
		}
		return nil
	default:
		return fmt.Errorf("blob.driver %q is not one of fs, s3, memory", c.Blob.Driver)
	}
}

func (c *Config) validateURLs() error {
	if c.URLs.TTLSeconds <= 0 {
		return errors.New("urls.ttl_seconds must be positive")
	}
	if c.URLs.SafetyMarginSeconds < 0 {
		return errors.New("urls.safety_margin_seconds must not be negative")
	}
	if c.URLs.SafetyMarginSeconds >= c.URLs.TTLSeconds {
		return errors.New("urls.safety_margin_seconds must be smaller than urls.ttl_seconds")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}
