package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var resolvePreferLocal bool

var resolveCmd = &cobra.Command{
	Use:   "resolve <ruc>",
	Short: "Resolve a single RUC and print the consolidated record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("resolve"); err != nil {
			return err
		}
		if resolvePreferLocal {
			cfg.Fallback.PreferLocal = true
		}

		ctx := cmd.Context()
		e, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer e.Close()

		rec, err := e.resolver.Resolve(ctx, args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

func init() {
	resolveCmd.Flags().BoolVar(&resolvePreferLocal, "prefer-local", false, "consult the curated table before live portals")
	rootCmd.AddCommand(resolveCmd)
}
