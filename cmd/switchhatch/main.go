package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var version = "dev"

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
}

func main() {
	var gf globalFlags

	rootCmd := &cobra.Command{
		Use:     "switchhatch",
		Short:   "Unattended egg hatching via an emulated controller",
		Version: version,
		Long: `switchhatch drives a console through the egg collection and hatching
procedure by sending controller reports over a USB gadget HID device, one
report per host polling slot.

Configuration comes from built-in defaults, then the --config YAML file,
then command-line flags.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&gf.configPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&gf.logLevel, "log-level", "", "Log level: error, warn, info, debug (overrides config)")

	rootCmd.AddCommand(runCmd(&gf))
	rootCmd.AddCommand(simulateCmd(&gf))
	rootCmd.AddCommand(speciesCmd(&gf))
	rootCmd.AddCommand(journalCmd(&gf))
	rootCmd.AddCommand(ctlCmd(&gf))
	rootCmd.AddCommand(watchCmd(&gf))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig layers defaults, the config file and flag overrides, then
// validates the result.
func loadConfig(gf *globalFlags, overrides FlagOverrides) (Config, error) {
	cfg := DefaultConfig()
	if gf.configPath != "" {
		var err error
		if cfg, err = LoadConfigFile(gf.configPath); err != nil {
			return Config{}, err
		}
	}
	if gf.logLevel != "" {
		overrides.LogLevel = &gf.logLevel
	}
	overrides.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// logLevels maps logging.level values onto slog levels.
var logLevels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

func parseLogLevel(name string) (slog.Level, error) {
	level, ok := logLevels[strings.ToLower(name)]
	if !ok {
		return slog.LevelInfo, fmt.Errorf("unknown level %q (want debug, info, warn or error)", name)
	}
	return level, nil
}

// newLogger builds the text logger for a validated config.
func newLogger(cfg Config, w io.Writer) *slog.Logger {
	level, _ := parseLogLevel(cfg.Logging.Level)
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
