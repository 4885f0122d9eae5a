package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "scriptgate",
	Short: "Script-driven HTTP route host",
	Long: `scriptgate - Serve HTTP routes written in Python, JavaScript, or pipescript.

Routes are declared in scriptgate.toml. Python and JavaScript run inside
WASM interpreters compiled once per process; pipescript runs in a bounded
pool of persistent interpreter slots. All route scripts are validated and
compiled at startup, never at request time.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "scriptgate.toml", "Path to config file")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Disable the compiled-interpreter disk cache")
}
