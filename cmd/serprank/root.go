package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/FranksOps/serprank/internal/config"
	"github.com/FranksOps/serprank/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	v          = config.New()
	configFile string
)

var rootCmd = &cobra.Command{
	Use:           "serprank",
	Short:         "serprank tracks where a site ranks on Google for a set of keywords.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Path to a config file (yaml, json or toml).")
	flags.String("log-level", "info", "Log level: debug, info, warn or error.")
	flags.String("log-format", "json", "Log format: json or text.")
	mustBind(v, "log.level", flags.Lookup("log-level"))
	mustBind(v, "log.format", flags.Lookup("log-format"))
}

// mustBind lets a flag override the config key. Binding only fails for a
// nil flag, which is a programming error.
func mustBind(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

func execute(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// loadConfig reads the configuration and installs the process logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return nil, nil, err
	}
	l, err := logger.Init(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, l, nil
}
