package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/krisalay/callcache/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "callcache",
		Short:        "Memoize and retry function calls",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML configuration file")

	load := func() (*config.Config, *zap.Logger, error) {
		cfg, err := config.NewLoader().WithConfigPath(configPath).Load()
		if err != nil {
			return nil, nil, fmt.Errorf("load config: %w", err)
		}
		logger, err := config.NewLogger(cfg.Log)
		if err != nil {
			return nil, nil, fmt.Errorf("build logger: %w", err)
		}
		return cfg, logger, nil
	}

	root.AddCommand(newDemoCmd(load), newConfigCmd(load))
	return root
}
