package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"taskboard/internal/board"
	"taskboard/internal/models"
	"taskboard/internal/tui"
)

const listLayout = "2006-01-02 15:04"

func boardCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Open the interactive task board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBoard(cmd.Context(), s)
		},
	}
}

func runBoard(ctx context.Context, s *session) error {
	return tui.Run(ctx, s.board)
}

func listCmd(s *session) *cobra.Command {
	var status, from, to, title string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print tasks matching the filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := buildFilter(cmd, status, from, to, title)
			if err != nil {
				return err
			}
			s.board.SetFilter(filter)
			if err := s.board.Reload(cmd.Context()); err != nil {
				return err
			}
			printTasks(cmd, s.board.Snapshot())
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "pending or completed")
	cmd.Flags().StringVar(&from, "from", "", "created on or after (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&to, "to", "", "created on or before (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&title, "title", "", "title contains (case-insensitive)")
	return cmd
}

// buildFilter only sets the fields whose flag was given, so an explicit
// --title "" is still sent as a constraint.
func buildFilter(cmd *cobra.Command, status, from, to, title string) (models.TaskFilter, error) {
	var f models.TaskFilter
	if cmd.Flags().Changed("status") {
		st := models.TaskStatus(status)
		if !st.Valid() {
			return f, fmt.Errorf("invalid --status %q (want pending or completed)", status)
		}
		f.Status = &st
	}
	if cmd.Flags().Changed("from") {
		t, err := models.ParseDate(from, time.Local, false)
		if err != nil {
			return f, fmt.Errorf("--from: %w", err)
		}
		f.FromDate = &t
	}
	if cmd.Flags().Changed("to") {
		t, err := models.ParseDate(to, time.Local, true)
		if err != nil {
			return f, fmt.Errorf("--to: %w", err)
		}
		f.ToDate = &t
	}
	if cmd.Flags().Changed("title") {
		f.TitleContains = &title
	}
	return f, nil
}

func printTasks(cmd *cobra.Command, snap board.Snapshot) {
	out := cmd.OutOrStdout()
	if len(snap.Tasks) == 0 {
		fmt.Fprintln(out, "No tasks.")
		return
	}
	now := time.Now()
	rows := make([][]string, 0, len(snap.Tasks))
	for _, t := range snap.Tasks {
		due := ""
		if t.DueDate != nil {
			due = t.DueDate.Local().Format(listLayout)
			if t.IsOverdue(now) {
				due += " !"
			}
		}
		rows = append(rows, []string{
			strconv.FormatInt(t.ID, 10),
			string(t.Status),
			t.Title,
			t.CreatedAt.Local().Format(listLayout),
			due,
		})
	}
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "STATUS", "TITLE", "CREATED", "DUE").
		Rows(rows...)
	fmt.Fprintln(out, tbl.String())
	fmt.Fprintf(out, "%d task(s), sorted by %s\n", len(snap.Tasks), snap.Sort)
}

func addCmd(s *session) *cobra.Command {
	var due string
	cmd := &cobra.Command{
		Use:   "add TITLE DESCRIPTION",
		Short: "Create a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var dueDate *time.Time
			if cmd.Flags().Changed("due") {
				t, err := models.ParseDate(due, time.Local, false)
				if err != nil {
					return fmt.Errorf("--due: %w", err)
				}
				dueDate = &t
			}
			res := s.board.Create(cmd.Context(), args[0], args[1], dueDate)
			if err := report(cmd, s.board, res); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "id %d\n", res.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD or RFC3339)")
	return cmd
}

func completeCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "complete ID",
		Short: "Mark a task as completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return report(cmd, s.board, s.board.Complete(cmd.Context(), id))
		},
	}
}

func deleteCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return report(cmd, s.board, s.board.Delete(cmd.Context(), id))
		},
	}
}

func summaryCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print the link to the downloadable summary report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), s.board.SummaryURL())
			return nil
		},
	}
}

// report prints the mutation notice and turns a failure into the command error.
func report(cmd *cobra.Command, b *board.Board, res board.MutationResult) error {
	var msg string
	for _, n := range b.DrainNotices() {
		if n.Action == res.Action {
			msg = n.Message
		}
	}
	if res.Err != nil {
		if msg == "" {
			msg = "failed"
		}
		return fmt.Errorf("%s: %w", msg, res.Err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("ID must be a positive integer")
	}
	return id, nil
}
