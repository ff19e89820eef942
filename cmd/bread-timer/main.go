// Command bread-timer runs the guided bread recipe walkthrough: a web page
// with per-step countdowns, a GPIO buzzer alarm and MQTT/push alerts.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sweeney/bread-timer/internal/config"
	"github.com/sweeney/bread-timer/internal/logger"
	"github.com/sweeney/bread-timer/internal/recipe"
	"github.com/sweeney/bread-timer/internal/status"
	"github.com/sweeney/bread-timer/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "bread-timer",
		Short:        "Guided bread recipe walkthrough with step timers",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/bread-timer.toml", "TOML config file (missing file uses defaults)")
	addServeFlags(root.PersistentFlags())

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the walkthrough daemon (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, configPath)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}
	root.RunE = serve.RunE

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print the persisted walkthrough state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, configPath)
			if err != nil {
				return err
			}
			return printStatus(cmd.OutOrStdout(), cfg)
		},
	}

	var withOverrides bool
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear the persisted walkthrough state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, configPath)
			if err != nil {
				return err
			}
			return resetState(cmd.OutOrStdout(), cfg, withOverrides)
		},
	}
	resetCmd.Flags().BoolVar(&withOverrides, "edits", false, "also discard edited step content")

	root.AddCommand(serve, statusCmd, resetCmd)
	return root
}

// addServeFlags registers the flags that override config file values.
// Defaults shown in help are the built-in ones.
func addServeFlags(fs *pflag.FlagSet) {
	d := config.Default()
	fs.String("http", d.HTTP, "HTTP listen address (empty to disable)")
	fs.String("broker", d.Broker, "MQTT broker address (empty to disable)")
	fs.String("data-dir", d.DataDir, "directory for persisted state")
	fs.String("store", d.Store, `state backend: "file" or "sqlite"`)
	fs.Duration("tick", d.Tick, "display refresh interval")
	fs.String("heartbeat", d.Heartbeat, "heartbeat cron schedule (empty to disable)")
	fs.String("recipe", "", "TOML recipe replacing the built-in one")
	fs.String("buzzer-chip", d.Buzzer.Chip, "GPIO chip of the buzzer (empty disables audio)")
	fs.Int("buzzer-pin", d.Buzzer.Pin, "GPIO line offset of the buzzer")
	fs.StringSlice("notify", nil, "shoutrrr URL for push alerts (repeatable)")
	fs.String("log-level", d.Log.Level, "debug, info, warn or error")
	fs.String("log-dir", "", "also write a rotating log file here")
}

// loadConfig reads the config file and applies explicitly set flags on top.
func loadConfig(cmd *cobra.Command, path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if err := applyFlags(cmd.Flags(), &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func applyFlags(fs *pflag.FlagSet, cfg *config.Config) error {
	var err error
	str := func(name string, dst *string) {
		if err == nil && fs.Changed(name) {
			*dst, err = fs.GetString(name)
		}
	}
	str("http", &cfg.HTTP)
	str("broker", &cfg.Broker)
	str("data-dir", &cfg.DataDir)
	str("store", &cfg.Store)
	str("heartbeat", &cfg.Heartbeat)
	str("recipe", &cfg.Recipe)
	str("buzzer-chip", &cfg.Buzzer.Chip)
	str("log-level", &cfg.Log.Level)
	str("log-dir", &cfg.Log.Dir)
	if err == nil && fs.Changed("tick") {
		cfg.Tick, err = fs.GetDuration("tick")
	}
	if err == nil && fs.Changed("buzzer-pin") {
		cfg.Buzzer.Pin, err = fs.GetInt("buzzer-pin")
	}
	if err == nil && fs.Changed("notify") {
		cfg.Notify.URLs, err = fs.GetStringSlice("notify")
	}
	return err
}

func setupLogging(cfg config.Config) error {
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	return logger.Init(cfg.Log.Dir)
}

func loadRecipe(cfg config.Config) (*recipe.Recipe, error) {
	if cfg.Recipe == "" {
		return recipe.Default(), nil
	}
	r, err := recipe.LoadFile(cfg.Recipe)
	if err != nil {
		return nil, fmt.Errorf("load recipe: %w", err)
	}
	return r, nil
}

func openStore(cfg config.Config) (store.KV, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if cfg.Store == config.StoreSQLite {
		return store.OpenSQLite(cfg.StorePath())
	}
	return store.NewFileKV(cfg.StorePath()), nil
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
