package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nibzard/mdtasks/internal/diff"
	"github.com/nibzard/mdtasks/internal/service"
	"github.com/nibzard/mdtasks/internal/task"
)

func newListCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list [#tag...]",
		Short: "List open tasks, optionally only those carrying every given tag",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := a.newService(cmd.Context())
			if err != nil {
				return err
			}
			tasks, err := svc.List(cmd.Context(), service.Filter{All: all, Tags: args})
			if err != nil {
				return err
			}
			printTaskList(a.stdout, tasks)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include completed tasks")
	return cmd
}

func newTodayCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "today",
		Short: "List open tasks dated today in the document's timezone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := a.newService(cmd.Context())
			if err != nil {
				return err
			}
			tasks, err := svc.Today(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			printTaskList(a.stdout, tasks)
			return nil
		},
	}
}

func newAddCmd(a *app) *cobra.Command {
	var (
		t        task.Task
		priority string
		tags     []string
	)
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := a.newService(cmd.Context())
			if err != nil {
				return err
			}
			t.Name = strings.Join(args, " ")
			t.Priority = task.Priority(priority)
			t.Tags = tags
			added, err := svc.Add(cmd.Context(), t)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Added: %s\n", formatTask(added))
			return nil
		},
	}
	cmd.Flags().StringVar(&t.Date, "date", "", "Date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&t.Time, "time", "", "Start time (HH:MM, needs --date)")
	cmd.Flags().StringVar(&t.Duration, "duration", "", "Duration (H:MM, defaults to 1:00 when --time is set)")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "Priority (low, medium, high, urgent)")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Tag, repeatable or comma separated")
	cmd.Flags().StringVar(&t.Description, "description", "", "Free text description")
	cmd.Flags().StringVar(&t.Link, "link", "", "Absolute URL")
	return cmd
}

func newCompleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <name>",
		Short: "Mark an open task as completed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := a.newService(cmd.Context())
			if err != nil {
				return err
			}
			done, err := svc.Complete(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Completed: %s\n", done.Name)
			return nil
		},
	}
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a task, open or completed",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := a.newService(cmd.Context())
			if err != nil {
				return err
			}
			removed, err := svc.Remove(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Removed: %s\n", removed.Name)
			return nil
		},
	}
}

func newClearCompletedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-completed",
		Short: "Delete every completed task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := a.newService(cmd.Context())
			if err != nil {
				return err
			}
			n, err := svc.ClearCompleted(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Cleared %d completed task(s).\n", n)
			return nil
		},
	}
}

func newSortCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "sort priority|time",
		Short:     "Reorder open tasks and save the new order",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(task.SortByPriority), string(task.SortByTime)},
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := task.ParseSortKey(args[0])
			if err != nil {
				return err
			}
			svc, _, err := a.newService(cmd.Context())
			if err != nil {
				return err
			}
			tasks, err := svc.Sort(cmd.Context(), key)
			if err != nil {
				return err
			}
			printTaskList(a.stdout, tasks)
			return nil
		},
	}
}

func newTimezoneCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "timezone [tz]",
		Short: "Show or set the document timezone (IANA name)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := a.newService(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) == 0 {
				snap, err := svc.Snapshot(cmd.Context())
				if err != nil {
					return err
				}
				tz := snap.Metadata.Timezone
				if tz == "" {
					tz = "(not set)"
				}
				fmt.Fprintln(a.stdout, tz)
				return nil
			}
			if err := svc.SetTimezone(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Timezone set to %s\n", args[0])
			return nil
		},
	}
}

func printTaskList(w io.Writer, tasks []task.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks.")
		return
	}
	for _, t := range tasks {
		fmt.Fprintln(w, formatTask(t))
	}
}

func formatTask(t task.Task) string {
	box := "[ ]"
	if t.Completed {
		box = "[x]"
	}
	line := box + " " + diff.FormatTask(t)
	if t.Priority != "" {
		line += " !" + string(t.Priority)
	}
	if len(t.Tags) > 0 {
		line += " " + task.FormatTags(t.Tags)
	}
	return line
}
