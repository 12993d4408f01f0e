package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/nhle/tracker/internal/app"
	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/theme"
)

func newSubordinatesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "subordinates <department>",
		Short: "List every department below the given one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				tree, err := a.Policy.Resolver().Tree(ctx)
				if err != nil {
					return err
				}
				if !tree.Has(args[0]) {
					return errors.Wrapf(model.ErrNotFound, "department %s", args[0])
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, theme.HeaderStyle.Render("Subordinates of "+args[0]))
				ids := tree.Subordinates(args[0]).Sorted()
				if len(ids) == 0 {
					fmt.Fprintln(out, theme.DimmedStyle.Render("(none)"))
				}
				for _, id := range ids {
					fmt.Fprintln(out, "  "+id)
				}
				return nil
			})
		},
	}
}

func newTasksCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks <user>",
		Short: "List the tasks a user can see",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				list, err := a.Tasks.ListVisible(ctx, args[0])
				if err != nil {
					return err
				}
				renderTasks(cmd.OutOrStdout(), args[0], list, time.Now())
				return nil
			})
		},
	}
}

func renderTasks(w io.Writer, user string, list []model.Task, now time.Time) {
	fmt.Fprintln(w, theme.HeaderStyle.Render(fmt.Sprintf("Tasks visible to %s (%d)", user, len(list))))
	today := model.DateOf(now)
	for _, t := range list {
		due := t.DueDate.Format(time.DateOnly)
		if t.Status != model.StatusCompleted && t.DueDate.Before(today) {
			due = theme.OverdueStyle.Render(due)
		}
		fmt.Fprintf(w, "  %s %s P%s due %s  %s\n",
			theme.StatusStyle(t.Status).Render(fmt.Sprintf("%-11s", t.Status)),
			t.Title,
			theme.PriorityStyle(t.Priority).Render(fmt.Sprint(t.Priority)),
			due,
			theme.DimmedStyle.Render(t.ID),
		)
	}
}

func newNotificationsCmd(opts *rootOptions) *cobra.Command {
	var markRead bool
	cmd := &cobra.Command{
		Use:   "notifications <user>",
		Short: "Show a user's unread notifications",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				unread, err := a.Fanout.GetUnread(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, theme.HeaderStyle.Render(fmt.Sprintf("Unread for %s (%d)", args[0], len(unread))))
				ids := make([]string, 0, len(unread))
				for _, n := range unread {
					fmt.Fprintf(out, "  %s %s: %s\n",
						theme.DimmedStyle.Render(n.CreatedAt.Format(time.DateTime)), n.Title, n.Message)
					ids = append(ids, n.ID)
				}
				if !markRead || len(ids) == 0 {
					return nil
				}
				marked, err := a.Fanout.MarkRead(ctx, args[0], ids)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, theme.SuccessStyle.Render(fmt.Sprintf("marked %d read", marked)))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&markRead, "mark-read", false, "Mark the listed notifications read")
	return cmd
}

func newOverdueCmd(opts *rootOptions) *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "overdue",
		Short: "Notify assignees of overdue tasks, once per day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			now := time.Now().UTC()
			if s := strings.TrimSpace(asOf); s != "" {
				d, err := time.Parse(time.DateOnly, s)
				if err != nil {
					return fmt.Errorf("invalid --as-of: %w", err)
				}
				now = d
			}
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				n, err := a.Tasks.NotifyOverdue(ctx, now)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), theme.SuccessStyle.Render(fmt.Sprintf("%d overdue task(s) notified", n)))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "Evaluate as of this date (UTC, YYYY-MM-DD)")
	return cmd
}
