package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/model"
)

var precacheCmd = &cobra.Command{
	Use:   "precache [ruc...]",
	Short: "Run one cache-warming pass",
	Long:  "Warms the cache for the given RUCs, or for the scheduler's own candidates (curated seeds, popular and recent identifiers, due retries) when none are given.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("precache"); err != nil {
			return err
		}

		ctx := cmd.Context()
		e, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer e.Close()

		if len(args) == 0 {
			e.scheduler.RunOnce(ctx)
			fmt.Println("warming pass complete")
			return nil
		}

		var warmed, failed int
		for _, raw := range args {
			ruc, err := model.ParseRUC(raw)
			if err != nil {
				return err
			}
			if err := e.resolver.Warm(ctx, ruc); err != nil {
				failed++
				zap.L().Warn("warm failed", zap.String("ruc", raw), zap.Error(err))
				continue
			}
			warmed++
		}
		fmt.Printf("warmed %d, failed %d\n", warmed, failed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(precacheCmd)
}
