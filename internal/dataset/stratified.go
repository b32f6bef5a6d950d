package dataset

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/leapstack-labs/scfdata/internal/split"
)

// stratified builds train, validation and test subsets whose molecule
// sizes follow the size distribution of all usable candidates.
//
// Every name is probed for its atom count; probe failures are logged and
// dropped. Atom counts are binned, two stratified shuffles carve out the
// validation+test pool and then the test subset, and each subset is built
// from its candidates in balanced order until its target is reached.
// The returned keys are train, validation and test concatenated.
func (b *builder) stratified(ctx context.Context, sizes split.Sizes) ([]int, error) {
	d := b.ds

	var keys, atoms []int
	for key, name := range b.names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		mol, err := d.Molecule(key)
		if err != nil {
			d.logger.Warn("unable to build sample", "key", key, "name", name, "error", err)
			continue
		}
		keys = append(keys, key)
		atoms = append(atoms, mol.NumAtoms())
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: no usable molecules in %s", ErrInsufficientSamples, d.GeometryDir())
	}
	d.logger.Debug("probed molecules", "usable", len(keys), "total", len(b.names))

	labels, err := split.Bins(atoms, split.DefaultEdges)
	if err != nil {
		return nil, err
	}

	holdout := sizes.Val + sizes.Test
	var valTest, test float64
	if d.cfg.Size > 0 {
		valTest = float64(holdout) / float64(d.cfg.Size)
	}
	if holdout > 0 {
		test = float64(sizes.Test) / float64(holdout)
	}

	part, err := split.Stratify(labels, valTest, test, split.DefaultSeed)
	if err != nil {
		return nil, err
	}

	var rng *rand.Rand
	if d.cfg.RemainderSeed != nil {
		rng = split.NewRand(*d.cfg.RemainderSeed)
	}

	var out []int
	for _, sub := range []struct {
		name   string
		target int
		idx    []int
	}{
		{"train", sizes.Train, part.Train},
		{"val", sizes.Val, part.Val},
		{"test", sizes.Test, part.Test},
	} {
		subKeys := make([]int, len(sub.idx))
		subLabels := make([]int, len(sub.idx))
		for i, idx := range sub.idx {
			subKeys[i] = keys[idx]
			subLabels[i] = labels[idx]
		}

		order, err := split.Balance(sub.target, subKeys, subLabels, rng)
		if err != nil {
			return out, err
		}

		d.logger.Info("building subset", "subset", sub.name, "target", sub.target, "candidates", len(order))
		built, err := b.candidates(ctx, order, sub.target, sub.name)
		out = append(out, built...)
		if err != nil {
			return out, err
		}
		if len(built) < sub.target {
			d.logger.Warn("subset incomplete", "subset", sub.name, "built", len(built), "target", sub.target)
		}
	}
	return out, nil
}
