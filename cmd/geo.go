package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tripforge/placescout/internal/geo"
	"github.com/tripforge/placescout/internal/model"
)

var (
	geoLat    float64
	geoLng    float64
	geoRadius float64
)

var geoCmd = &cobra.Command{
	Use:   "geo",
	Short: "Geographic queries over the stored dataset",
}

var geoNearCmd = &cobra.Command{
	Use:   "near",
	Short: "List stored places within a radius of a point, nearest first",
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

		type hit struct {
			place model.Place
			dist  float64
		}
		var hits []hit
		for _, p := range places {
			if !p.HasCoords() {
				continue
			}
			d := geo.DistanceKm(geoLat, geoLng, p.Lat, p.Lng)
			if d <= geoRadius {
				hits = append(hits, hit{place: p, dist: d})
			}
		}
		sort.Slice(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })

		for _, h := range hits {
			fmt.Fprintf(os.Stdout, "%7.3f km  %-40s %s\n", h.dist, h.place.Name, h.place.Category)
		}
		fmt.Fprintf(os.Stdout, "%d places within %.1f km\n", len(hits), geoRadius)
		return nil
	},
}

func init() {
	geoNearCmd.Flags().Float64Var(&geoLat, "lat", 0, "center latitude")
	geoNearCmd.Flags().Float64Var(&geoLng, "lng", 0, "center longitude")
	geoNearCmd.Flags().Float64Var(&geoRadius, "radius", 10, "radius in kilometers")
	_ = geoNearCmd.MarkFlagRequired("lat")
	_ = geoNearCmd.MarkFlagRequired("lng")
	geoCmd.AddCommand(geoNearCmd)
	rootCmd.AddCommand(geoCmd)
}
