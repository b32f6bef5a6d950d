package commands

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/scfdata/internal/cli/output"
	"github.com/leapstack-labs/scfdata/pkg/core"
	"github.com/spf13/cobra"
)

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded build runs",
		Long:  `List build runs recorded in the journal, most recent first.`,
		Example: `  scfdata runs
  scfdata runs --limit 5 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRuns(cmd, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")
	return cmd
}

type runView struct {
	ID          string     `json:"id"`
	Dataset     string     `json:"dataset"`
	Size        int        `json:"size"`
	Accepted    int        `json:"accepted"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

func viewRun(r *core.Run) runView {
	return runView{
		ID:          r.ID,
		Dataset:     r.Dataset,
		Size:        r.Size,
		Accepted:    r.Accepted,
		Status:      string(r.Status),
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		Error:       r.Error,
	}
}

func runDuration(r *core.Run) string {
	if r.CompletedAt == nil {
		return "-"
	}
	return r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()
}

func runRuns(cmd *cobra.Command, limit int) error {
	cc := NewCommandContext(cmd)
	r := cc.Renderer

	store, cleanup, err := cc.OpenStore()
	if err != nil {
		return err
	}
	defer cleanup()

	runs, err := store.ListRuns(limit)
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		views := make([]runView, 0, len(runs))
		for _, run := range runs {
			views = append(views, viewRun(run))
		}
		return r.JSON(views)
	}

	r.Header(1, fmt.Sprintf("Runs (%d)", len(runs)))
	if len(runs) == 0 {
		r.Muted("no runs recorded")
		return nil
	}
	rows := make([][]any, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []any{
			run.ID, run.Dataset, string(run.Status),
			fmt.Sprintf("%d/%d", run.Accepted, run.Size),
			run.StartedAt.Local().Format(time.DateTime), runDuration(run),
		})
	}
	r.Table([]string{"id", "dataset", "status", "accepted", "started", "duration"}, rows)
	return nil
}
