package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "READINESS_"

// subsections lists nested sections reachable from env keys. Parameter
// bands (model.hrv.normal and friends) can only be set from the file.
var subsections = map[string][]string{
	"cache": {"redis"},
	"model": {"hrv", "load", "sleep", "composite"},
}

// Load builds a Config by layering defaults, an optional YAML file and
// env vars, then validates it. Order of precedence (low -> high):
//  1. Default()
//  2. the file at path, else READINESS_CONFIG, else ~/.readiness/config.yaml if it exists
//  3. env (prefix READINESS_), e.g. READINESS_STORE_DSN -> store.dsn; list
//     keys take comma-separated values
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	path, required := resolvePath(path)
	if path != "" && !required {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolvePath reports the file to read and whether it must exist.
func resolvePath(path string) (string, bool) {
	if path != "" {
		return path, true
	}
	if p := os.Getenv(EnvPrefix + "CONFIG"); p != "" {
		return p, true
	}
	p, err := DefaultPath()
	if err != nil {
		return "", false
	}
	return p, false
}

// listKeys are split on commas when set from the environment.
var listKeys = map[string]bool{
	"lock.addrs":      true,
	"metrics.buckets": true,
}

// envValue maps an env var to its config key, splitting list values.
func envValue(name, value string) (string, interface{}) {
	key := envKey(name)
	if !listKeys[key] {
		return key, value
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return key, items
}

// envKey maps READINESS_CACHE_REDIS_ADDR to cache.redis.addr.
func envKey(s string) string {
	s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	section, rest, ok := strings.Cut(s, "_")
	if !ok {
		return s
	}
	for _, sub := range subsections[section] {
		if r, ok := strings.CutPrefix(rest, sub+"_"); ok {
			rest = sub + "." + r
			break
		}
	}
	return section + "." + rest
}
