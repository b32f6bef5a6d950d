package commands

import (
	"fmt"
	"slices"

	"github.com/leapstack-labs/scfdata/internal/cli/output"
	"github.com/leapstack-labs/scfdata/internal/xyz"
	"github.com/spf13/cobra"
)

// NewFramesCommand creates the frames command.
func NewFramesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "frames <in-dir> <out-dir>",
		Short: "Split multi-frame XYZ files into one file per frame",
		Long: `Split every multi-frame .xyz file in <in-dir> (for example a molecular
dynamics trajectory) into single-frame files <stem>_<i>.xyz in <out-dir>,
numbering frames from 1. The result can serve as the geometry directory of
a dataset such as qm9_isomeres_md.`,
		Example: `  scfdata frames trajectories resources/qm9_isomeres_md/xyz`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFrames(cmd, args[0], args[1])
		},
	}
}

func runFrames(cmd *cobra.Command, inDir, outDir string) error {
	cc := NewCommandContext(cmd)
	r := cc.Renderer

	counts, err := xyz.SplitDir(inDir, outDir)
	if err != nil {
		return err
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	cc.Logger.Debug("split frames", "in", inDir, "out", outDir, "files", len(counts), "frames", total)

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(struct {
			Out    string         `json:"out"`
			Frames int            `json:"frames"`
			Files  map[string]int `json:"files"`
		}{outDir, total, counts})
	}

	r.Header(1, "Frames")
	stems := make([]string, 0, len(counts))
	for stem := range counts {
		stems = append(stems, stem)
	}
	slices.Sort(stems)
	rows := make([][]any, 0, len(stems))
	for _, stem := range stems {
		rows = append(rows, []any{stem, counts[stem]})
	}
	r.Table([]string{"file", "frames"}, rows)
	r.Println("")
	r.Success(fmt.Sprintf("wrote %d frames to %s", total, outDir))
	return nil
}
