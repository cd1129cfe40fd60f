package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/cuemby/tabwarden/pkg/client"
	"github.com/cuemby/tabwarden/pkg/types"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start TAB_ID",
	Short: "Start a reload timer for a tab",
	Long: `Start a reload timer for a tab. Starting a timer on a tab that already
has one replaces it.

Examples:
  tabwarden start 7 --interval 45
  tabwarden start 7 --interval 2:30
  tabwarden start 7 --interval 1h`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetString("interval")
		interval, err := ParseInterval(raw)
		if err != nil {
			return err
		}

		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		id := types.TabID(args[0])
		if err := c.StartTimer(id, interval); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✓ Timer started: tab %s (every %s)\n", id, FormatRemaining(interval))
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop TAB_ID",
	Short: "Stop the reload timer for a tab",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		id := types.TabID(args[0])
		if err := c.StopTimer(id); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✓ Timer stopped: tab %s\n", id)
		return nil
	},
}

var stopAllCmd = &cobra.Command{
	Use:   "stop-all",
	Short: "Stop every reload timer",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		if err := c.StopAll(); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "✓ All timers stopped")
		return nil
	},
}

var intervalCmd = &cobra.Command{
	Use:   "interval TAB_ID INTERVAL",
	Short: "Change the interval of a running timer",
	Long: `Change the interval of a running timer. The timer restarts with the new
interval. Tabs without a timer are left alone.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, err := ParseInterval(args[1])
		if err != nil {
			return err
		}

		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		id := types.TabID(args[0])
		if err := c.SetInterval(id, interval); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✓ Interval updated: tab %s (every %s)\n", id, FormatRemaining(interval))
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [TAB_ID]",
	Short: "Show timer status",
	Long: `Show the status of one tab's timer, or of every timer when no tab is
given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if len(args) == 1 {
			status, err := c.Status(types.TabID(args[0]))
			if err != nil {
				return err
			}
			if !status.Active {
				fmt.Fprintf(out, "Tab %s: no timer\n", args[0])
				return nil
			}
			fmt.Fprintf(out, "Tab %s: every %s, next reload in %s\n", args[0],
				FormatRemaining(msDuration(status.Interval)),
				FormatRemaining(secDuration(status.TimeRemaining)))
			return nil
		}

		timers, err := c.ListTimers()
		if err != nil {
			return err
		}
		if len(timers) == 0 {
			fmt.Fprintln(out, "No active timers")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TAB\tSTATE\tINTERVAL\tNEXT RELOAD")
		for _, t := range timers {
			state := "active"
			if t.Pending {
				state = "pending"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.TabID, state,
				FormatRemaining(msDuration(t.Interval)),
				FormatRemaining(secDuration(t.TimeRemaining)))
		}
		return w.Flush()
	},
}

var tabsCmd = &cobra.Command{
	Use:   "tabs",
	Short: "List browser tabs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		tabs, err := c.ListTabs()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TAB\tTIMER\tSTATE\tTITLE")
		for _, t := range tabs {
			timer := "-"
			if t.Timer {
				timer = "yes"
			}
			state := "visible"
			switch {
			case t.Discarded:
				state = "discarded"
			case t.Hidden:
				state = "hidden"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.TabID, timer, state, truncate(t.Title, 50))
		}
		return w.Flush()
	},
}

func init() {
	startCmd.Flags().String("interval", "30", "Reload interval (seconds, m:ss, h:mm:ss or a duration like 90s)")
}

func newClient(cmd *cobra.Command) (*client.Client, error) {
	addr, _ := cmd.Flags().GetString("addr")
	return client.NewClient(addr)
}
