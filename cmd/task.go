package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tripforge/placescout/internal/task"
)

var taskFeedback string

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Run and inspect orchestrated tasks",
}

var taskRunCmd = &cobra.Command{
	Use:   "run <task-key>",
	Short: "Execute a task to completion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Orchestrator.ExecuteTask(ctx, ctxToken{ctx}, args[0], taskFeedback)
		if err != nil {
			return err
		}
		if result == nil {
			zap.L().Info("task cancelled", zap.String("task", args[0]))
			return nil
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available task keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := task.Load()
		if err != nil {
			return err
		}
		for _, key := range registry.Keys() {
			cmd.Println(key)
		}
		return nil
	},
}

func init() {
	taskRunCmd.Flags().StringVar(&taskFeedback, "feedback", "", "free-form trip context passed to the task")
	taskCmd.AddCommand(taskRunCmd)
	taskCmd.AddCommand(taskListCmd)
	rootCmd.AddCommand(taskCmd)
}
