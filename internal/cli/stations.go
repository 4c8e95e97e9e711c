package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/i474232898/frost-ingest/internal/weather"
	"github.com/i474232898/frost-ingest/internal/weather/providers"
)

func stationsCmd(e *env) *cobra.Command {
	var (
		areaNames  []string
		activeOnly bool
	)

	c := &cobra.Command{
		Use:   "stations",
		Short: "List precipitation stations known to the Frost API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := e.cfg.RequireFrost(); err != nil {
				return err
			}
			var areas []weather.Area
			for _, s := range areaNames {
				a, err := weather.ParseArea(s)
				if err != nil {
					return err
				}
				areas = append(areas, a)
			}

			catalog, err := buildCatalog(e.cfg)
			if err != nil {
				return err
			}
			all, err := newFrostClient(e.cfg, catalog).ListStations(cmd.Context())
			if err != nil {
				return err
			}

			printStations(cmd.OutOrStdout(), filterStations(all, areas, activeOnly), activeOnly)
			return nil
		},
	}

	c.Flags().StringSliceVar(&areaNames, "areas", nil, "electricity areas, comma-separated (NO1..NO5); defaults to all")
	c.Flags().BoolVar(&activeOnly, "active-only", true, "only show currently active stations")
	return c
}

// filterStations keeps stations matching the filters, sorted by area then name.
// With an area filter, stations whose county maps to no area are dropped.
func filterStations(all []providers.DiscoveredStation, areas []weather.Area, activeOnly bool) []providers.DiscoveredStation {
	want := make(map[weather.Area]bool, len(areas))
	for _, a := range areas {
		want[a] = true
	}

	var out []providers.DiscoveredStation
	for _, s := range all {
		if activeOnly && !s.Active {
			continue
		}
		if len(areas) > 0 && !want[s.Area] {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Area != out[j].Area {
			return out[i].Area < out[j].Area
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func printStations(w io.Writer, stations []providers.DiscoveredStation, activeOnly bool) {
	current, count := "", 0
	for i, s := range stations {
		area := string(s.Area)
		if area == "" {
			area = string(weather.AreaUnknown)
		}
		if i == 0 || area != current {
			if i > 0 {
				fmt.Fprintf(w, "  (%d stations)\n\n", count)
			}
			fmt.Fprintf(w, "===== %s =====\n", area)
			current, count = area, 0
		}
		marker := " "
		if !s.Active {
			marker = "*"
		}
		fmt.Fprintf(w, " %s %-12s %-42s %-25s %s\n", marker, s.ID, s.Name, s.County, s.Municipality)
		count++
	}
	if len(stations) > 0 {
		fmt.Fprintf(w, "  (%d stations)\n", count)
	}

	fmt.Fprintf(w, "\nTotal: %d stations\n", len(stations))
	if !activeOnly {
		fmt.Fprintln(w, "  (* = inactive station)")
	}
}
