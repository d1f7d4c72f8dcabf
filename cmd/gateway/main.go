// cmd/gateway/main.go
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Beehive monitoring gateway",
	Long: `The beehive gateway refreshes apiary telemetry on a timer, evaluates every
hive against the threshold table, serves the aggregated alerts to the dashboard
and notifies beekeepers about the hive under inspection.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".", "config directory (containing config.yaml) or config file")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
