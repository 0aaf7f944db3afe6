// Package config loads and validates the graphfetch CLI configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// CacheConfig tunes the result cache.
type CacheConfig struct {
	MaxEntries int    `toml:"max_entries"`
	TTL        string `toml:"ttl"`
}

// OTELConfig tunes tracing export.
type OTELConfig struct {
	Endpoint string `toml:"endpoint"`
	Service  string `toml:"service"`
}

// Config mirrors the expected graphfetch TOML schema.
type Config struct {
	URL         string            `toml:"url"`
	CachePolicy string            `toml:"cache_policy"`
	Timeout     string            `toml:"timeout"`
	Headers     map[string]string `toml:"headers"`
	Cache       CacheConfig       `toml:"cache"`
	OTEL        OTELConfig        `toml:"otel"`
}

// Plan is the fully-resolved configuration used by the CLI.
type Plan struct {
	URL          string
	CachePolicy  string
	Timeout      time.Duration
	Headers      map[string]string
	CacheMax     int
	CacheTTL     time.Duration
	OTELEndpoint string
	OTELService  string
}

// LoadOptions tunes config loading behavior.
type LoadOptions struct {
	Strict bool
}

// Result wraps a loaded plan alongside any non-fatal warnings.
type Result struct {
	Plan     Plan
	Warnings []string
}

// Load reads, validates, and resolves a graphfetch configuration file.
func Load(path string, opts LoadOptions) (Result, error) {
	var res Result

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return res, fmt.Errorf("read %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return res, fmt.Errorf("%s: %w", path, err)
	}

	unknown, err := collectUnknownKeys(data)
	if err != nil {
		return res, fmt.Errorf("%s: %w", path, err)
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		message := fmt.Sprintf("%s: unknown configuration keys: %s", path, strings.Join(unknown, ", "))
		if opts.Strict {
			return res, errors.New(message)
		}
		res.Warnings = append(res.Warnings, message)
	}

	if cfg.URL == "" {
		return res, fmt.Errorf("%s: url is required", path)
	}

	policy := cfg.CachePolicy
	if policy == "" {
		policy = "cache-first"
	}

	timeout, err := parseDuration(path, "timeout", cfg.Timeout)
	if err != nil {
		return res, err
	}
	ttl, err := parseDuration(path, "cache.ttl", cfg.Cache.TTL)
	if err != nil {
		return res, err
	}
	if cfg.Cache.MaxEntries < 0 {
		return res, fmt.Errorf("%s: cache.max_entries must not be negative", path)
	}

	service := cfg.OTEL.Service
	if service == "" {
		service = "graphfetch"
	}

	res.Plan = Plan{
		URL:          cfg.URL,
		CachePolicy:  policy,
		Timeout:      timeout,
		Headers:      cfg.Headers,
		CacheMax:     cfg.Cache.MaxEntries,
		CacheTTL:     ttl,
		OTELEndpoint: cfg.OTEL.Endpoint,
		OTELService:  service,
	}
	return res, nil
}

func parseDuration(path, field, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid %s %q: %w", path, field, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: %s must not be negative", path, field)
	}
	return d, nil
}

func collectUnknownKeys(data []byte) ([]string, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	known := map[string]struct{}{
		"url":          {},
		"cache_policy": {},
		"timeout":      {},
		"headers":      {},
		"cache":        {},
		"otel":         {},
	}

	unknown := make([]string, 0)
	for key := range raw {
		if _, ok := known[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	return unknown, nil
}
