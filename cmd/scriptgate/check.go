package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the config and compile every route without serving",
	Run:   runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) {
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")
	noCache, _ := cmd.Root().PersistentFlags().GetBool("no-cache")

	svc, err := buildService(configPath, !noCache)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer svc.close()

	for _, e := range svc.registry.Entries() {
		for _, verb := range e.Verbs {
			fmt.Printf("%-7s %s  (%s)\n", verb, e.Pattern, e.Unit.Lang())
		}
	}
	fmt.Printf("ok: %d route mappings\n", svc.registry.Len())
}
