package dataset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/leapstack-labs/scfdata/internal/pickle"
	"github.com/leapstack-labs/scfdata/internal/scf"
	"github.com/leapstack-labs/scfdata/pkg/core"
)

var (
	// ErrAlreadyBuilt is returned when the dataset directory already exists.
	ErrAlreadyBuilt = errors.New("refusing to build dataset twice")
	// ErrInsufficientSamples is returned when the build ran out of
	// candidates before reaching the target size.
	ErrInsufficientSamples = errors.New("not enough samples could be built")
)

// Report summarizes a build.
type Report struct {
	RunID    string
	Keys     []int
	Failures []core.Outcome
	Elapsed  time.Duration
}

// Build computes every sample of the dataset and persists names.pkl and
// keys.pkl. It refuses to run when the dataset directory already exists.
// Molecules that fail are logged, their directory removed and skipped.
// Cancelling ctx stops the build between molecules; the keys accepted so
// far are still written.
func (d *Dataset) Build(ctx context.Context) (*Report, error) {
	if _, err := os.Stat(d.dir); err == nil {
		return nil, fmt.Errorf("%w: %s exists", ErrAlreadyBuilt, d.dir)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to check %s: %w", d.dir, err)
	}
	if d.cfg.Backend == nil {
		return nil, errors.New("no solver backend configured")
	}

	// configuration errors surface before anything is written
	sizes, err := d.Sizes()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(d.dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create dataset directory: %w", err)
	}

	names, err := d.Names()
	if err != nil {
		return nil, err
	}
	namesPath := filepath.Join(d.dir, NamesFile)
	if _, err := os.Stat(namesPath); errors.Is(err, fs.ErrNotExist) {
		if err := pickle.WriteStrings(namesPath, names); err != nil {
			return nil, fmt.Errorf("failed to save names: %w", err)
		}
	}

	start := time.Now()
	b := &builder{ds: d, names: names, report: &Report{}}
	b.startRun()

	d.logger.Info("building dataset", "size", d.cfg.Size, "candidates", len(names),
		"split", d.cfg.Split.String(), "stratified", d.Stratified())

	var keys []int
	var buildErr error
	if d.Stratified() {
		keys, buildErr = b.stratified(ctx, sizes)
	} else {
		keys, buildErr = b.candidates(ctx, allKeys(len(names)), d.cfg.Size, "")
	}

	b.report.Keys = keys
	b.report.Elapsed = time.Since(start)

	if err := pickle.WriteInts(filepath.Join(d.dir, KeysFile), keys); err != nil {
		buildErr = errors.Join(buildErr, fmt.Errorf("failed to save keys: %w", err))
	}
	if buildErr == nil && len(keys) < d.cfg.Size {
		buildErr = fmt.Errorf("%w: built %d of %d", ErrInsufficientSamples, len(keys), d.cfg.Size)
	}

	b.completeRun(len(keys), buildErr)
	if buildErr != nil {
		d.logger.Error("build failed", "accepted", len(keys), "error", buildErr)
		return b.report, buildErr
	}

	d.logger.Info("build completed", "accepted", len(keys), "failed", len(b.report.Failures),
		"elapsed", b.report.Elapsed.Round(time.Millisecond))
	return b.report, nil
}

func allKeys(n int) []int {
	keys := make([]int, n)
	for i := range keys {
		keys[i] = i
	}
	return keys
}

// builder holds the state of one Build call.
type builder struct {
	ds     *Dataset
	names  []string
	report *Report
	runID  string
}

// candidates builds samples from keys in order until target are accepted.
func (b *builder) candidates(ctx context.Context, keys []int, target int, subset string) ([]int, error) {
	var accepted []int
	for i, key := range keys {
		if len(accepted) >= target {
			break
		}
		if err := ctx.Err(); err != nil {
			return accepted, err
		}

		b.ds.logger.Info("building sample", "candidate", i, "accepted", len(accepted),
			"target", target, "key", key, "name", b.names[key], "subset", subset)

		o := b.sample(ctx, key)
		b.recordAttempt(subset, o)
		if !o.OK() {
			b.report.Failures = append(b.report.Failures, o)
			continue
		}
		accepted = append(accepted, key)
	}
	return accepted, nil
}

// sample builds the reference solution and every guess for key.
// Any failure removes <key>/ and is returned as a failed outcome.
func (b *builder) sample(ctx context.Context, key int) core.Outcome {
	d := b.ds
	name := b.names[key]
	start := time.Now()

	var reference core.Status
	err := d.withSolver(ctx, key, func(s scf.Solver) error {
		var err error
		reference, err = scf.BuildSolution(ctx, d.KeyDir(key), s, true)
		return err
	})

	for _, scheme := range d.Schemes() {
		if err != nil {
			break
		}
		d.logger.Debug("building guess", "key", key, "scheme", scheme)
		err = d.withSolver(ctx, key, func(s scf.Solver) error {
			_, err := scf.BuildGuess(ctx, d.GuessDir(key, scheme), s, scheme)
			return err
		})
	}

	if err != nil {
		d.logger.Warn("unable to build sample", "key", key, "name", name, "error", err)
		if rmErr := os.RemoveAll(d.KeyDir(key)); rmErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to remove %s: %w", d.KeyDir(key), rmErr))
		}
		o := core.Failure(key, name, err)
		o.Duration = time.Since(start)
		return o
	}

	o := core.Success(key, name, reference)
	o.Duration = time.Since(start)
	return o
}

// withSolver runs fn with a fresh solver for key and closes it afterwards.
func (d *Dataset) withSolver(ctx context.Context, key int, fn func(scf.Solver) error) error {
	s, err := d.Solver(ctx, key)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			d.logger.Warn("failed to close solver", "key", key, "error", err)
		}
	}()
	return fn(s)
}

func (b *builder) startRun() {
	j := b.ds.cfg.Journal
	if j == nil {
		return
	}
	run, err := j.CreateRun(b.ds.Name(), b.ds.cfg.Size)
	if err != nil {
		b.ds.logger.Warn("failed to record run", "error", err)
		return
	}
	b.runID = run.ID
	b.report.RunID = run.ID
	b.ds.logger.Debug("created run", "run_id", run.ID)
}

func (b *builder) recordAttempt(subset string, o core.Outcome) {
	if b.runID == "" {
		return
	}
	if err := b.ds.cfg.Journal.RecordAttempt(core.AttemptFromOutcome(b.runID, subset, o)); err != nil {
		b.ds.logger.Warn("failed to record attempt", "key", o.Key, "error", err)
	}
}

func (b *builder) completeRun(accepted int, buildErr error) {
	if b.runID == "" {
		return
	}
	status, msg := core.RunStatusCompleted, ""
	switch {
	case errors.Is(buildErr, context.Canceled), errors.Is(buildErr, context.DeadlineExceeded):
		status, msg = core.RunStatusCancelled, buildErr.Error()
	case buildErr != nil:
		status, msg = core.RunStatusFailed, buildErr.Error()
	}
	if err := b.ds.cfg.Journal.CompleteRun(b.runID, status, accepted, msg); err != nil {
		b.ds.logger.Warn("failed to complete run", "run_id", b.runID, "error", err)
	}
}
