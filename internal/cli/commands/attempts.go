package commands

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/scfdata/internal/cli/output"
	"github.com/leapstack-labs/scfdata/pkg/core"
	"github.com/spf13/cobra"
)

// NewAttemptsCommand creates the attempts command.
func NewAttemptsCommand() *cobra.Command {
	var failedOnly bool

	cmd := &cobra.Command{
		Use:   "attempts <run-id>",
		Short: "List the molecules attempted in a build run",
		Long:  `List every molecule a build run attempted, in build order, with its outcome.`,
		Example: `  scfdata attempts 6f1c2a3e-...
  scfdata attempts 6f1c2a3e-... --failed`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAttempts(cmd, args[0], failedOnly)
		},
	}

	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Only show failed attempts")
	return cmd
}

type attemptView struct {
	Key        int    `json:"key"`
	Name       string `json:"name"`
	Subset     string `json:"subset,omitempty"`
	Status     string `json:"status"`
	Converged  bool   `json:"converged"`
	Iterations *int   `json:"iterations"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

func runAttempts(cmd *cobra.Command, runID string, failedOnly bool) error {
	cc := NewCommandContext(cmd)
	r := cc.Renderer

	store, cleanup, err := cc.OpenStore()
	if err != nil {
		return err
	}
	defer cleanup()

	run, err := store.GetRun(runID)
	if err != nil {
		return err
	}
	attempts, err := store.GetAttemptsForRun(run.ID)
	if err != nil {
		return err
	}

	views := make([]attemptView, 0, len(attempts))
	for _, a := range attempts {
		if failedOnly && a.Status != core.AttemptStatusFailed {
			continue
		}
		views = append(views, attemptView{
			Key:        a.Key,
			Name:       a.Name,
			Subset:     a.Subset,
			Status:     string(a.Status),
			Converged:  a.Converged,
			Iterations: a.Iterations,
			DurationMS: a.DurationMS,
			Error:      a.Error,
		})
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(struct {
			Run      runView       `json:"run"`
			Attempts []attemptView `json:"attempts"`
		}{viewRun(run), views})
	}

	r.Header(1, fmt.Sprintf("Run %s", run.ID))
	r.Println(output.FormatKeyValue("dataset", run.Dataset))
	r.Println(output.FormatKeyValue("status", string(run.Status)))
	r.Println(output.FormatKeyValue("accepted", fmt.Sprintf("%d/%d", run.Accepted, run.Size)))
	if run.Error != "" {
		r.Println(output.FormatKeyValue("error", run.Error))
	}
	r.Println("")

	rows := make([][]any, 0, len(views))
	for _, a := range views {
		rows = append(rows, []any{
			a.Key, a.Name, a.Subset, a.Status,
			iterationsString(a.Iterations),
			(time.Duration(a.DurationMS) * time.Millisecond).String(),
			a.Error,
		})
	}
	r.Table([]string{"key", "name", "subset", "status", "iterations", "duration", "error"}, rows)
	return nil
}
