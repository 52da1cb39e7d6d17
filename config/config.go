// Package config loads tracing configuration: defaults, then a TOML file,
// then environment variables (env wins).
package config

import (
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Tracing  TracingConfig  `toml:"tracing"`
	Langfuse LangfuseConfig `toml:"langfuse"`
	OTel     OTelConfig     `toml:"otel"`
}

type TracingConfig struct {
	// ContentTracing forwards component input/output payloads to the
	// backend, not just metadata.
	ContentTracing bool `toml:"content_tracing"`
}

type LangfuseConfig struct {
	TraceName    string `toml:"trace_name"`
	Public       bool   `toml:"public"`
	EnforceFlush bool   `toml:"enforce_flush"`

	// Client credentials, passed through to whatever Client the caller
	// constructs.
	Host      string `toml:"host"`
	PublicKey string `toml:"public_key"`
	SecretKey string `toml:"secret_key"`
}

type OTelConfig struct {
	Enabled     bool   `toml:"enabled"`
	ServiceName string `toml:"service_name"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Langfuse: LangfuseConfig{
			TraceName:    "Haystack",
			EnforceFlush: true,
			Host:         "https://cloud.langfuse.com",
		},
		OTel: OTelConfig{ServiceName: "haystack-tracing"},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "tracing.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	// Env overrides
	if v := os.Getenv("HAYSTACK_CONTENT_TRACING_ENABLED"); v != "" {
		cfg.Tracing.ContentTracing = isTrue(v)
	}
	if v := os.Getenv("HAYSTACK_LANGFUSE_ENFORCE_FLUSH"); v != "" {
		cfg.Langfuse.EnforceFlush = isTrue(v)
	}
	if v := os.Getenv("LANGFUSE_HOST"); v != "" {
		cfg.Langfuse.Host = v
	}
	if v := os.Getenv("LANGFUSE_PUBLIC_KEY"); v != "" {
		cfg.Langfuse.PublicKey = v
	}
	if v := os.Getenv("LANGFUSE_SECRET_KEY"); v != "" {
		cfg.Langfuse.SecretKey = v
	}
	if v := os.Getenv("OTEL_SERVICE_NAME"); v != "" {
		cfg.OTel.ServiceName = v
	}

	return cfg
}

func isTrue(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}
