package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var placesJSON bool

var placesCmd = &cobra.Command{
	Use:   "places",
	Short: "Inspect the stored place dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		places, err := st.ListPlaces(ctx)
		if err != nil {
			return err
		}

		if placesJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(places)
		}

		for _, p := range places {
			marker := " "
			if p.Enriched() {
				marker = "*"
			}
			fmt.Fprintf(os.Stdout, "%s %-40s %-12s %s\n", marker, p.Name, p.Category, p.SourceTown)
		}
		fmt.Fprintf(os.Stdout, "%d places (* = enriched)\n", len(places))
		return nil
	},
}

var placesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one place as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		p, err := st.GetPlace(ctx, args[0])
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("place %s not found", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	},
}

func init() {
	placesCmd.Flags().BoolVar(&placesJSON, "json", false, "emit the full dataset as JSON")
	placesCmd.AddCommand(placesShowCmd)
	rootCmd.AddCommand(placesCmd)
}
