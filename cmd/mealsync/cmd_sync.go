package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"mealsync/internal/store"
)

var (
	importGuest bool
	statusDays  int
	cleanupDays int
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Send changes that were saved while offline",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		var total store.SyncReport
		if importGuest {
			r, err := application.ImportGuest(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d guest records\n", r.Imported)
			total = total.Add(r)
		}
		r, err := application.SyncAll(ctx)
		total = total.Add(r)
		fmt.Fprintf(cmd.OutOrStdout(), "Created %d, updated %d, deleted %d, dropped %d, %d still pending\n",
			total.Created, total.Updated, total.Deleted, total.Dropped, r.Remaining)
		return err
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep syncing in the background until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), "Watching for changes, press Ctrl+C to stop")
		return application.Watch(cmd.Context())
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the session, pending changes and sync history",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := application.Status(cmd.Context(), statusDays)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Mode:      %s\n", st.Mode)
		if st.User != nil {
			fmt.Fprintf(out, "User:      %s\n", st.User.Email)
		}
		fmt.Fprintf(out, "Backend:   %s\n", reachability(st.Reachable))
		fmt.Fprintf(out, "Data:      %d files, %s\n", st.System.DataFiles, st.System.DataSize)
		fmt.Fprintf(out, "Memory:    %d MB alloc, %d goroutines\n", st.System.AllocMB, st.System.Goroutines)

		if len(st.Pending) > 0 {
			kinds := make([]string, 0, len(st.Pending))
			for k := range st.Pending {
				kinds = append(kinds, k)
			}
			sort.Strings(kinds)
			fmt.Fprintln(out, "\nPending changes:")
			for _, k := range kinds {
				fmt.Fprintf(out, "  %-14s %d\n", k, st.Pending[k])
			}
		}

		if len(st.Daily) > 0 {
			fmt.Fprintf(out, "\nLast %d days:\n", statusDays)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, d := range st.Daily {
				fmt.Fprintf(tw, "  %s\t%s\t%d\t%.0f ms\n", d.Date, d.Outcome, d.Count, d.AvgLatencyMS)
			}
			tw.Flush()
		}
		return nil
	},
}

var metricsCleanupCmd = &cobra.Command{
	Use:   "metrics-cleanup",
	Short: "Remove old sync history",
	RunE: func(cmd *cobra.Command, args []string) error {
		affected, err := application.CleanupMetrics(cmd.Context(), cleanupDays)
		if err != nil {
			return fmt.Errorf("cleanup failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Successfully removed %d old sync records.\n", affected)
		return nil
	},
}

func reachability(ok bool) string {
	if ok {
		return "reachable"
	}
	return "unreachable"
}

func init() {
	syncCmd.Flags().BoolVar(&importGuest, "import-guest", false, "copy this device's guest data into the account first")
	statusCmd.Flags().IntVar(&statusDays, "days", 7, "days of sync history to show")
	metricsCleanupCmd.Flags().IntVar(&cleanupDays, "days", 30, "keep records for the last N days")
}
