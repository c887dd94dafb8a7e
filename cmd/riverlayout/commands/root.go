package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "riverlayout",
		Short: "riverlayout - layout generator for the river Wayland compositor",
		Long: `riverlayout registers a layout generator with river through the
river-layout-v3 protocol and answers every layout demand with a tiled
arrangement of the visible views.

Features:
  • One layout session per output, created as outputs appear
  • Tile (main + stack) and spiral layouts
  • Runtime commands via riverctl send-layout-cmd
  • Persistent configuration
  • Optional local status API with a live event stream`,
		SilenceUsage: true,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/riverlayout/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}
