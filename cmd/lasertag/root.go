package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cory-johannsen/lasertag/internal/config"
)

// newRootCmd builds the command tree. Running the root without a
// subcommand is the same as "serve".
func newRootCmd() *cobra.Command {
	var cfgFile string
	v := config.NewViper()

	root := &cobra.Command{
		Use:           "lasertag",
		Short:         "Real-time session server for location-based lasertag games",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, v, cfgFile)
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "configs/dev.yaml", "path to configuration file; empty uses defaults and environment only")
	root.PersistentFlags().String("log-level", "", "override logging.level")
	root.PersistentFlags().Int("port", 0, "override server.port")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the WebSocket game server",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd, v, cfgFile)
			},
		},
		&cobra.Command{
			Use:   "check-config",
			Short: "Load and validate the configuration, then print the effective values",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig(cmd, v, cfgFile)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "config ok\n")
				fmt.Fprintf(out, "  websocket: %s%s\n", cfg.Server.Addr(), cfg.Server.WSPath)
				fmt.Fprintf(out, "  game: duration=%s tick=%s code_length=%d\n", cfg.Game.Duration, cfg.Game.TickInterval, cfg.Game.CodeLength)
				if cfg.Health.Enabled {
					fmt.Fprintf(out, "  health: %s\n", cfg.Health.Addr())
				} else {
					fmt.Fprintf(out, "  health: disabled\n")
				}
				fmt.Fprintf(out, "  logging: %s/%s\n", cfg.Logging.Level, cfg.Logging.Format)
				return nil
			},
		},
	)
	return root
}

// loadConfig reads cfgFile into v, applies flag overrides, and validates.
func loadConfig(cmd *cobra.Command, v *viper.Viper, cfgFile string) (config.Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return config.Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		level, _ := flags.GetString("log-level")
		v.Set("logging.level", level)
	}
	if flags.Changed("port") {
		port, _ := flags.GetInt("port")
		v.Set("server.port", port)
	}
	return config.LoadFromViper(v)
}
