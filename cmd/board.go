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
	boardQuery    string
	boardAssignee string
	boardSeverity int
	boardPage     int
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Show the board",
	Long: `Show the board: one column per status, issues ordered by priority
score. Filters narrow what is visible without touching the synced
collection.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return boardRun(cmd.Context())
	},
}

func init() {
	boardCmd.Flags().StringVarP(&boardQuery, "query", "q", "", "Filter by title or tag substring")
	boardCmd.Flags().StringVar(&boardAssignee, "assignee", "", "Filter by assignee (\"all\" for everyone)")
	boardCmd.Flags().IntVar(&boardSeverity, "severity", 0, "Filter by exact severity 1-5 (0 = all)")
	boardCmd.Flags().IntVar(&boardPage, "page", 0, "Page to sync (0 = first)")
	rootCmd.AddCommand(boardCmd)
}

func boardRun(ctx context.Context) error {
	s, err := getStore(ctx)
	if err != nil {
		return err
	}

	if boardQuery != "" {
		s.SetQuery(boardQuery)
	}
	if boardAssignee != "" {
		s.SetAssigneeFilter(boardAssignee)
	}
	if boardSeverity != 0 {
		s.SetSeverityFilter(boardSeverity)
	}
	if boardPage > 0 {
		s.SetPage(boardPage)
		if err := s.GetIssues(ctx, nil); err != nil {
			return fmt.Errorf("sync page %d: %w", boardPage, err)
		}
	}

	now := time.Now()
	for _, status := range models.Statuses {
		issues := s.Column(status, now)

		fmt.Fprintf(ui.Out, "%s (%d)\n", output.StatusColor(status), len(issues))
		if len(issues) == 0 {
			fmt.Fprintln(ui.Out, "  (empty)")
			fmt.Fprintln(ui.Out)
			continue
		}

		table := ui.Table([]string{"ID", "Title", "Pri", "Sev", "Assignee", "Score"})
		for _, it := range issues {
			table.Append([]string{
				output.Cyan(shortID(it.ID)),
				it.Title,
				output.PriorityColor(it.Priority),
				output.SeverityColor(it.Severity),
				displayAssignee(it.Assignee),
				fmt.Sprintf("%d", scoring.Score(it, now)),
			})
		}
		table.Render()
		fmt.Fprintln(ui.Out)
	}

	printPending(s.Pending(), now)
	printRecent(ctx)

	if s.HasMore() {
		ui.Info("Page %d — more issues available (--page %d)", s.Page(), s.Page()+1)
	}
	if !s.LastSync().IsZero() {
		ui.VerboseLog("last sync: %s", s.LastSync().Format(time.RFC3339))
	}
	if err := s.Err(); err != nil {
		ui.Warning("Last sync error: %v", err)
	}
	return nil
}

func printPending(pending []board.PendingUpdate, now time.Time) {
	if len(pending) == 0 {
		return
	}
	for _, p := range pending {
		state := "pending"
		if p.Committed {
			state = "committed"
		}
		ui.Info("Undoable move: %s %s → %s (%s, %s ago)",
			output.Cyan(shortID(p.ID)), p.Prev.Status, p.NewStatus,
			state, now.Sub(p.StartedAt).Round(time.Millisecond))
	}
}

func displayAssignee(assignee string) string {
	if assignee == "" {
		return "(unassigned)"
	}
	return assignee
}

func shortID(id string) string {
	if len(id) > 8 {
		return strings.ToLower(id[:8])
	}
	return strings.ToLower(id)
}

func printRecent(ctx context.Context) {
	list := recent.NewList(viper.GetString("state_dir"))
	ids, err := list.IDs()
	if err != nil || len(ids) == 0 {
		return
	}

	short := make([]string, 0, len(ids))
	for _, id := range ids {
		short = append(short, shortID(id))
	}
	ui.Info("Recently viewed: %s", strings.Join(short, ", "))
}
