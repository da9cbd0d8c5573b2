package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/svarun115/assistant-gateway/pkg/protocol"
)

// Version is set at build time via -ldflags
// "-X main.Version=v1.0.0".
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "gatewayd",
	Short: "assistant-gateway — multi-agent credential, tool-bridge, and scheduling gateway",
	Long: "gatewayd hosts the credential vault, per-user MCP tool bridges, the agent " +
		"registry, artifact storage, notification fan-out, the agent spawner, and the " +
		"cron-style scheduler behind a single WebSocket/HTTP service.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: config.json or $ASSISTANT_GATEWAY_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(registryCmd())
	rootCmd.AddCommand(cronCmd())
	rootCmd.AddCommand(versionCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("gatewayd %s (protocol %d)\n", Version, protocol.ProtocolVersion)
		},
	}
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("ASSISTANT_GATEWAY_CONFIG"); v != "" {
		return v
	}
	return "config.json"
}
