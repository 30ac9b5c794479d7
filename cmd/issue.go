package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/kb/internal/board"
	"github.com/joescharf/kb/internal/models"
	"github.com/joescharf/kb/internal/output"
	"github.com/joescharf/kb/internal/recent"
	"github.com/joescharf/kb/internal/scoring"
)

var (
	issueStatus   string
	issueAssignee string
	issueVisible  bool
	issueNoWait   bool
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Inspect and move board issues",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun(cmd.Context())
	},
}

var issueListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List issues",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun(cmd.Context())
	},
}

var issueShowCmd = &cobra.Command{
	Use:   "show <issue-id>",
	Short: "Show issue details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueShowRun(cmd.Context(), args[0])
	},
}

var issueMoveCmd = &cobra.Command{
	Use:   "move <issue-id> <status>",
	Short: "Move an issue to another column",
	Long: `Move an issue to Backlog, "In Progress", or Done.

The move applies optimistically and commits to the backend after the
configured delay. The command waits for the commit unless --no-wait is
given.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueMoveRun(cmd.Context(), args[0], args[1])
	},
}

var issueResolveCmd = &cobra.Command{
	Use:   "resolve <issue-id>",
	Short: "Move an issue to Done",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueMoveRun(cmd.Context(), args[0], string(models.StatusDone))
	},
}

var issueUndoCmd = &cobra.Command{
	Use:   "undo <issue-id>",
	Short: "Undo a pending move",
	Long: `Undo a move that has not yet committed, restoring the issue's
previous status. Pending state lives with the running board, so this is
mostly useful against 'kb serve' — a fresh process has nothing pending.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueUndoRun(cmd.Context(), args[0])
	},
}

func init() {
	issueListCmd.Flags().StringVar(&issueStatus, "status", "", "Filter by status: Backlog, \"In Progress\", Done")
	issueListCmd.Flags().StringVar(&issueAssignee, "assignee", "", "Filter by assignee")
	issueListCmd.Flags().BoolVar(&issueVisible, "visible", false, "Apply the board's current filters")

	issueMoveCmd.Flags().BoolVar(&issueNoWait, "no-wait", false, "Return immediately without waiting for the commit")
	issueResolveCmd.Flags().BoolVar(&issueNoWait, "no-wait", false, "Return immediately without waiting for the commit")

	issueCmd.AddCommand(issueListCmd)
	issueCmd.AddCommand(issueShowCmd)
	issueCmd.AddCommand(issueMoveCmd)
	issueCmd.AddCommand(issueResolveCmd)
	issueCmd.AddCommand(issueUndoCmd)
	rootCmd.AddCommand(issueCmd)
}

func issueListRun(ctx context.Context) error {
	s, err := getStore(ctx)
	if err != nil {
		return err
	}

	issues := s.Issues()
	if issueVisible {
		issues = s.FilterVisible(issues)
	}

	now := time.Now()
	table := ui.Table([]string{"ID", "Title", "Status", "Pri", "Sev", "Assignee", "Score"})
	count := 0
	for _, it := range issues {
		if issueStatus != "" && it.Status != models.Status(issueStatus) {
			continue
		}
		if issueAssignee != "" && it.Assignee != issueAssignee {
			continue
		}
		table.Append([]string{
			output.Cyan(shortID(it.ID)),
			it.Title,
			output.StatusColor(it.Status),
			output.PriorityColor(it.Priority),
			output.SeverityColor(it.Severity),
			displayAssignee(it.Assignee),
			fmt.Sprintf("%d", scoring.Score(it, now)),
		})
		count++
	}

	if count == 0 {
		ui.Info("No issues match.")
		return nil
	}
	table.Render()
	return nil
}

func issueShowRun(ctx context.Context, ref string) error {
	s, err := getStore(ctx)
	if err != nil {
		return err
	}

	issue, err := findIssue(ctx, s, ref)
	if err != nil {
		return err
	}

	now := time.Now()
	fmt.Fprintf(ui.Out, "%s  %s\n\n", output.Cyan(issue.ID), issue.Title)
	fmt.Fprintf(ui.Out, "  Status:    %s\n", output.StatusColor(issue.Status))
	fmt.Fprintf(ui.Out, "  Priority:  %s\n", output.PriorityColor(issue.Priority))
	fmt.Fprintf(ui.Out, "  Severity:  %s\n", output.SeverityColor(issue.Severity))
	fmt.Fprintf(ui.Out, "  Assignee:  %s\n", displayAssignee(issue.Assignee))
	if len(issue.Tags) > 0 {
		fmt.Fprintf(ui.Out, "  Tags:      %s\n", strings.Join(issue.Tags, ", "))
	}
	if issue.UserDefinedRank != nil {
		fmt.Fprintf(ui.Out, "  Rank:      %d (user-defined)\n", *issue.UserDefinedRank)
	}
	fmt.Fprintf(ui.Out, "  Created:   %s (%d days ago)\n", issue.CreatedAt.Format("2006-01-02"), scoring.DaysSince(issue.CreatedAt, now))
	fmt.Fprintf(ui.Out, "  Score:     %d\n", scoring.Score(issue, now))

	if p, ok := s.PendingFor(issue.ID); ok {
		state := "pending"
		if p.Committed {
			state = "committed"
		}
		fmt.Fprintln(ui.Out)
		ui.Info("Undoable move: %s → %s (%s)", p.Prev.Status, p.NewStatus, state)
	}

	// Track as recently viewed, best effort.
	list := recent.NewList(viper.GetString("state_dir"))
	if err := list.Record(issue.ID); err != nil {
		ui.VerboseLog("recent list not updated: %v", err)
	}
	return nil
}

func issueMoveRun(ctx context.Context, ref, statusStr string) error {
	s, err := getStore(ctx)
	if err != nil {
		return err
	}

	status := models.Status(statusStr)
	if !status.Valid() {
		return fmt.Errorf("unknown status %q (want Backlog, \"In Progress\", or Done)", statusStr)
	}

	issue, err := findIssue(ctx, s, ref)
	if err != nil {
		return err
	}

	if err := s.UpdateIssue(principalFromConfig(), models.StatusPatch(issue.ID, status)); err != nil {
		return fmt.Errorf("move issue: %w", err)
	}
	ui.Success("Moved %s: %s → %s", output.Cyan(shortID(issue.ID)), issue.Status, status)

	if issueNoWait {
		ui.Warning("Not waiting for commit; the write may still fail and roll back")
		return nil
	}
	return waitForCommit(s, issue.ID)
}

func issueUndoRun(ctx context.Context, ref string) error {
	s, err := getStore(ctx)
	if err != nil {
		return err
	}

	issue, err := findIssue(ctx, s, ref)
	if err != nil {
		return err
	}

	undone, err := s.UndoMove(ctx, issue.ID)
	if err != nil {
		return fmt.Errorf("undo move: %w", err)
	}
	if !undone {
		ui.Info("Nothing pending for %s.", shortID(issue.ID))
		return nil
	}
	ui.Success("Undid move for %s", output.Cyan(shortID(issue.ID)))
	return nil
}

// findIssue resolves a full id or unique short prefix to an issue.
func findIssue(ctx context.Context, s *board.Store, ref string) (models.Issue, error) {
	if issue, err := s.GetIssue(ctx, ref); err == nil {
		return issue, nil
	}

	ref = strings.ToLower(ref)
	var matches []models.Issue
	for _, it := range s.Issues() {
		if strings.HasPrefix(strings.ToLower(it.ID), ref) {
			matches = append(matches, it)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return models.Issue{}, fmt.Errorf("issue not found: %s", ref)
	default:
		return models.Issue{}, fmt.Errorf("ambiguous issue id %s (%d matches)", ref, len(matches))
	}
}

// waitForCommit blocks until the pending move commits or rolls back.
// Without this the process would exit before the delayed write lands.
func waitForCommit(s *board.Store, id string) error {
	latency := time.Duration(viper.GetInt("latency_ms")) * time.Millisecond
	deadline := time.Now().Add(boardConfig().CommitDelay + latency + 5*time.Second)

	for time.Now().Before(deadline) {
		p, ok := s.PendingFor(id)
		if !ok {
			// Entry gone before committing means the write failed and
			// the optimistic move rolled back.
			if err := s.Err(); err != nil {
				return fmt.Errorf("move rolled back: %w", err)
			}
			return fmt.Errorf("move rolled back")
		}
		if p.Committed {
			ui.VerboseLog("commit confirmed for %s", shortID(id))
			return nil
		}
		time.Sleep(20 * time.Millisecond)
	}
	return fmt.Errorf("timed out waiting for commit of %s", shortID(id))
}
