package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	goOverlay "github.com/MrEthical07/goOverlay"
	"github.com/MrEthical07/goOverlay/identity"
)

func newSuspendCmd(a *app) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "suspend <id>",
		Short: "Lock an account out for the configured suspension window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.engine.Suspend(a.context(cmd), identity.ID(args[0]), strings.TrimSpace(reason))
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(cmd, rec)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Suspended %s until %s.\n", rec.UserID, formatTime(rec.ExpiresAt))
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reason shown to the member")
	return cmd
}

func newUnsuspendCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unsuspend <id>",
		Short: "Lift a suspension before it expires",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := identity.ID(args[0])
			if err := a.engine.EndSuspension(a.context(cmd), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reactivated %s.\n", strings.TrimSpace(id.String()))
			return nil
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id>",
		Short: "Show whether an account is suspended or hidden",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.context(cmd)
			id := identity.ID(args[0])
			status := a.engine.CheckSuspension(ctx, id)
			deleted := a.engine.IsDeleted(ctx, id)

			if a.jsonOut {
				return a.printJSON(cmd, struct {
					Suspension goOverlay.SuspensionStatus `json:"suspension"`
					Deleted    bool                       `json:"deleted"`
				}{status, deleted})
			}

			out := cmd.OutOrStdout()
			if status.IsSuspended {
				fmt.Fprintln(out, status.Message)
			} else {
				fmt.Fprintln(out, "Not suspended.")
			}
			if deleted {
				fmt.Fprintln(out, "Hidden from member listings.")
			}
			return nil
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Hide accounts from member listings",
		Long:  "Marks accounts deleted locally. The directory keeps the records; there is no undelete.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]identity.ID, len(args))
			for i, arg := range args {
				ids[i] = identity.ID(arg)
			}
			added, err := a.engine.MarkDeletedBulk(a.context(cmd), ids)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(cmd, added)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Hid %s.\n", plural(len(added), "account"))
			return nil
		},
	}
}

func newMembersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "members",
		Short: "List directory members with their overlay status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			members, err := a.engine.ListMembers(a.context(cmd))
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(cmd, members)
			}

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE\tSTATUS")
			for _, m := range members {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", m.ID, m.DisplayName, m.Email, m.Role, m.Status)
			}
			return tw.Flush()
		},
	}
}

func newActivityCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "activity [id]",
		Short: "Show the last 24 hours of account activity",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.context(cmd)
			var events []goOverlay.ActivityEvent
			if len(args) == 1 {
				events = a.engine.Activity(ctx, identity.ID(args[0]))
				if limit > 0 && len(events) > limit {
					events = events[:limit]
				}
			} else {
				events = a.engine.RecentActivity(ctx, limit)
			}
			if a.jsonOut {
				return a.printJSON(cmd, events)
			}

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "TIME\tUSER\tTYPE\tDESCRIPTION")
			for _, ev := range events {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", formatTime(ev.Timestamp), ev.UserID, ev.Type, ev.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of events to show")
	return cmd
}
