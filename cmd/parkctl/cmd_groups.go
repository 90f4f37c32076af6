package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/parksavvy/internal/availability"
	"github.com/iliyamo/parksavvy/internal/config"
	"github.com/iliyamo/parksavvy/internal/hints"
)

type groupsOptions struct {
	url     string
	key     string
	icons   string
	timeout time.Duration
	asJSON  bool
}

func newGroupsCmd() *cobra.Command {
	var o groupsOptions
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "Print the live availability of every area group",
		Long: `Fetch parking hints from the Supabase REST endpoint and print one
line per group with its state and marker title.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGroups(cmd, o)
		},
	}
	cmd.Flags().StringVar(&o.url, "url", "", "Supabase base URL (default $SUPABASE_URL)")
	cmd.Flags().StringVar(&o.key, "key", "", "Supabase API key (default $SUPABASE_KEY)")
	cmd.Flags().StringVar(&o.icons, "icons", "", "marker icon YAML (default $MARKER_ICONS_FILE)")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 5*time.Second, "fetch timeout")
	cmd.Flags().BoolVar(&o.asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

type groupLine struct {
	availability.GroupAvailability
	Marker availability.MarkerMeta `json:"marker"`
}

func runGroups(cmd *cobra.Command, o groupsOptions) error {
	if o.url == "" {
		o.url = os.Getenv("SUPABASE_URL")
	}
	if o.key == "" {
		o.key = os.Getenv("SUPABASE_KEY")
	}
	if o.icons == "" {
		o.icons = os.Getenv("MARKER_ICONS_FILE")
	}
	if o.url == "" {
		return fmt.Errorf("--url or SUPABASE_URL is required")
	}
	icons, err := config.LoadIcons(o.icons)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	defer cancel()
	rows, err := hints.NewHTTPSource(o.url, o.key, o.timeout).Fetch(ctx)
	if err != nil {
		return err
	}
	_, groups := availability.Aggregate(hints.Inputs(rows))
	log.WithField("rows", len(rows)).Debug("hints fetched")

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]groupLine, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		lines = append(lines, groupLine{GroupAvailability: g, Marker: icons.PickGroupMarkerMeta(k, &g)})
	}

	out := cmd.OutOrStdout()
	if o.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(lines)
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tSTATE\tFREE\tCAPACITY\tTITLE")
	for _, l := range lines {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", l.GroupKey, l.State, l.FreeSlots, l.CapacityEstimate, l.Marker.Title)
	}
	return tw.Flush()
}
