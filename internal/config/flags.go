package config

import (
	"fmt"

	"passfs/internal/logging"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FlagConfig is the flag naming the configuration file. It is read
// before Load and is not itself a configuration key.
const FlagConfig = "config"

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"mount":          "mount.point",
	"source":         "mount.source",
	"fs-name":        "mount.fs_name",
	"allow-other":    "mount.allow_other",
	"read-only":      "mount.read_only",
	"log-level":      "logging.level",
	"log-format":     "logging.format",
	"log-output":     "logging.output",
	"metrics":        "metrics.enabled",
	"metrics-listen": "metrics.listen",
}

// RegisterFlags defines the passfs command-line flags on flags.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String(FlagConfig, "", "Path to a YAML configuration file")
	flags.StringP("mount", "m", "", "Mount point for the filesystem")
	flags.StringP("source", "s", "", "Source directory to expose")
	flags.String("fs-name", DefaultFSName, "Filesystem name reported to the kernel")
	flags.Bool("allow-other", false, "Allow other users to access the mount")
	flags.Bool("read-only", false, "Ask the kernel to mount read-only as well")
	flags.String("log-level", logging.EnvLevel().String(), "Log level: ERROR, WARN, INFO, DEBUG or TRACE")
	flags.String("log-format", "text", "Log format: text or json")
	flags.String("log-output", "stdout", "Log destination: stdout, stderr or a file path")
	flags.Bool("metrics", false, "Serve Prometheus metrics")
	flags.String("metrics-listen", DefaultMetricsListen, "Address of the metrics endpoint")
}

// bindFlags binds every registered flag present in flags to its key.
// Flags left at their default do not override the file or environment.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("binding flag --%s: %w", name, err)
		}
	}
	return nil
}
