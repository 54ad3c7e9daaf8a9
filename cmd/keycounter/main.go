// KeyCounter display unit.
//
// keycounter receives keystroke telemetry from workstation agents over a
// TCP socket, keeps a per-device view of the counters and renders it on a
// small panel driven by four buttons. Counter states are mirrored to MQTT
// and InfluxDB when those are enabled.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// configPath is bound to the --config persistent flag.
var configPath string

var rootCmd = &cobra.Command{
	Use:   "keycounter",
	Short: "Keystroke counter display unit.",
	Long: `keycounter listens for keystroke telemetry from workstation agents ` +
		`and shows per-device counters on the attached panel. Without a ` +
		`subcommand it runs the display service.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to config.yaml (default $KEYCOUNTER_CONFIG or "+defaultConfigPath+")")
	rootCmd.RunE = serveCmd.RunE
	rootCmd.AddCommand(serveCmd, sendCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// getConfigPath resolves the configuration file: --config first, then
// KEYCOUNTER_CONFIG, then the default.
func getConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if path := os.Getenv("KEYCOUNTER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information.",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "keycounter %s (commit %s, built %s)\n", version, commit, date)
	},
}
