package config

import (
	"strings"

	"passfs/internal/logging"
)

const (
	DefaultFSName        = "passfs"
	DefaultMetricsListen = "127.0.0.1:9090"
)

// defaultValues lists every configuration key with its default. The log
// level defaults to the one LOG_LEVEL or FUSE_DEBUG ask for.
func defaultValues() map[string]any {
	return map[string]any{
		"logging.level":     logging.EnvLevel().String(),
		"logging.format":    "text",
		"logging.output":    "stdout",
		"mount.point":       "",
		"mount.source":      "",
		"mount.fs_name":     DefaultFSName,
		"mount.allow_other": false,
		"mount.read_only":   false,
		"metrics.enabled":   false,
		"metrics.listen":    DefaultMetricsListen,
	}
}

// ApplyDefaults fills zero values and normalizes the log level. Explicit
// values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)

	if cfg.Mount.FSName == "" {
		cfg.Mount.FSName = DefaultFSName
	}
	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = DefaultMetricsListen
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = logging.EnvLevel().String()
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	cfg.Format = strings.ToLower(cfg.Format)

	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}
