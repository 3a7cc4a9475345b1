package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"seisterrain3d/pkg/config"
	"seisterrain3d/pkg/segy"
)

var log = config.NamedLogger("main")

var (
	configPath string
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "seisterrain3d",
		Short:         "render seismic slices on terrain",
		Long:          "positions a 2D slice of a SEG-Y volume beneath a GeoTIFF elevation model and writes an interactive 3D scene",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "seisterrain3d.yaml", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (panic, fatal, error, warn, info, debug); overrides the configuration")

	cmdConfig.AddCommand(cmdConfigInit)
	rootCmd.AddCommand(newRenderCmd(), cmdServe, newDemoCmd(), cmdConfig)

	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration file and applies the log level
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	level := cfg.Output.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	if err := config.SetLogLevel(level); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %v", level, err)
	}
	return cfg, nil
}

func segyOptions(cfg *config.Config) segy.Options {
	return segy.Options{
		InlineByte:    cfg.Segy.InlineByte,
		CrosslineByte: cfg.Segy.CrosslineByte,
	}
}

var cmdConfig = &cobra.Command{
	Use:   "config",
	Short: "configuration commands",
	Args:  cobra.ExactArgs(0),
}

var cmdConfigInit = &cobra.Command{
	Use:   "init",
	Short: "write a default configuration file",
	Long:  "writes the default configuration to the path given with --config",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("%s already exists", configPath)
		}
		if err := config.CreateDefaultConfigFile(configPath); err != nil {
			return err
		}
		fmt.Printf("Default configuration written to: %s\n", configPath)
		return nil
	},
}
