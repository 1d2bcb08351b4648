package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var scoutFeedback string

var scoutCmd = &cobra.Command{
	Use:   "scout",
	Short: "Run the multi-location scouting workflow",
	Long:  "Scouts each location in scope, repairs low-quality records, enriches the survivors, and stores the result. Ctrl-C cancels cleanly at the next loop boundary.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Scout.Execute(ctx, ctxToken{ctx}, scoutFeedback)
		if err != nil {
			return err
		}
		if result == nil {
			zap.L().Info("scouting cancelled")
			return nil
		}

		zap.L().Info("scouting complete",
			zap.Strings("locations", result.Locations),
			zap.Int("candidates", len(result.Candidates)),
			zap.Int("stored", result.Stored),
			zap.Int("rejected", result.Rejected),
		)
		return nil
	},
}

func init() {
	scoutCmd.Flags().StringVar(&scoutFeedback, "feedback", "", "trip context, e.g. \"Nice, Cannes; 5 days, no museums\"")
	rootCmd.AddCommand(scoutCmd)
}
