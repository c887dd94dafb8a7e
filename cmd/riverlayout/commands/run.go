package commands

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bryanchriswhite/RiverLayout/internal/config"
	"github.com/bryanchriswhite/RiverLayout/internal/logger"
	"github.com/bryanchriswhite/RiverLayout/internal/notify"
	"github.com/bryanchriswhite/RiverLayout/internal/status"
	"github.com/bryanchriswhite/RiverLayout/internal/tiler"
	"github.com/bryanchriswhite/RiverLayout/pkg/river"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const appName = "riverlayout"

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the layout generator",
	Long: `Connect to river and serve layouts until the compositor goes away or a
fatal error occurs.

Select the generator in river with:
  riverctl default-layout <namespace>

Runtime commands (sent with riverctl send-layout-cmd <namespace> ...):
  toggle_layout           switch between tile and spiral
  layout tile|spiral      select a layout
  main_ratio 0.6          set the main area ratio
  main_ratio +0.05        grow or shrink the main area`,
	Example: `  # Run with the configured namespace
  riverlayout run

  # Run a second instance under another namespace
  riverlayout run --namespace spiral --layout spiral

  # Expose the status API on port 9000
  riverlayout run --status-port 9000`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	flags := runCmd.Flags()
	flags.String("namespace", "", "layout namespace to register with river")
	flags.String("layout", "", "initial layout (tile or spiral)")
	flags.Float64("main-ratio", 0, "initial main area ratio (0.1 - 0.9)")
	flags.Int("status-port", 0, "enable the status API on this port")
	flags.String("wayland-display", "", "Wayland socket to connect to (default is $WAYLAND_DISPLAY)")

	viper.BindPFlag("namespace", flags.Lookup("namespace"))
	viper.BindPFlag("layout", flags.Lookup("layout"))
	viper.BindPFlag("main_ratio", flags.Lookup("main-ratio"))
	viper.BindPFlag("status.port", flags.Lookup("status-port"))
	viper.BindPFlag("wayland_display", flags.Lookup("wayland-display"))
}

// applyOverrides copies the values set on the command line over cfg.
func applyOverrides(cfg *config.Config, v *viper.Viper) error {
	if v.IsSet("namespace") {
		cfg.Namespace = v.GetString("namespace")
	}
	if v.IsSet("layout") {
		cfg.Layout = strings.ToLower(v.GetString("layout"))
	}
	if v.IsSet("main_ratio") {
		cfg.MainRatio = v.GetFloat64("main_ratio")
	}
	if v.IsSet("status.port") {
		if port := v.GetInt("status.port"); port > 0 {
			cfg.Status.Port = port
			cfg.Status.Enabled = true
		}
	}
	if v.IsSet("wayland_display") {
		cfg.WaylandDisplay = v.GetString("wayland_display")
	}
	if v.IsSet("log_level") {
		if level := v.GetString("log_level"); level != "" {
			cfg.LogLevel = strings.ToLower(level)
		}
	}
	return cfg.Validate()
}

func runRun(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}

	cfg := configMgr.Get()
	if err := applyOverrides(cfg, viper.GetViper()); err != nil {
		return err
	}

	logger.Init(cfg.LogLevel, cfg.LogPretty)
	log := logger.WithComponent("main")
	log.Info().
		Str("config", configMgr.GetConfigPath()).
		Str("namespace", cfg.Namespace).
		Str("layout", cfg.Layout).
		Float64("main_ratio", cfg.MainRatio).
		Msg("Starting layout generator")

	kind, err := tiler.ParseKind(cfg.Layout)
	if err != nil {
		return err
	}
	gen := tiler.New(kind, cfg.MainRatio)

	opts := []river.Option{river.WithSocket(cfg.WaylandDisplay)}
	if cfg.Status.Enabled {
		srv := status.NewServer(cfg.Namespace)
		opts = append(opts, river.WithObserver(srv))
		go func() {
			if err := srv.Start(cfg.Status.Port); err != nil {
				log.Error().Err(err).Int("port", cfg.Status.Port).Msg("Status server stopped")
			}
		}()
	}

	errc := make(chan error, 1)
	go func() {
		errc <- river.Run(gen, cfg.Namespace, opts...)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
		return nil
	case err := <-errc:
		log.Error().Err(err).Msg("Layout generator stopped")
		if cfg.NotifyOnExit {
			notify.ExitCause(appName, cfg.Namespace, err)
		}
		return fmt.Errorf("layout generator %q stopped: %w", cfg.Namespace, err)
	}
}
