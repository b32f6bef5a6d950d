package split

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// DefaultEdges is the number of bin edges used for atom-count binning,
// giving 13 equal-width bins between the smallest and largest molecule.
const DefaultEdges = 14

// Bins labels each value by the equal-width bin it falls in. The edges
// span [min(values), max(values)]. A value v gets the smallest label i with
// v <= edges[i], so the minimum lands in bin 0 and every other value in the
// right-closed interval (edges[i-1], edges[i]].
func Bins(values []int, edges int) ([]int, error) {
	if edges < 2 {
		return nil, fmt.Errorf("%w: need at least 2 bin edges, got %d", ErrInvalidSplit, edges)
	}
	if len(values) == 0 {
		return nil, nil
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}

	span := floats.Span(make([]float64, edges), float64(lo), float64(hi))
	span[edges-1] = float64(hi)

	labels := make([]int, len(values))
	for i, v := range values {
		labels[i] = sort.SearchFloat64s(span, float64(v))
	}
	return labels, nil
}

// Partition holds indices into the labelled input, one slice per subset.
type Partition struct {
	Train []int
	Val   []int
	Test  []int
}

// Stratify splits the indices of labels in two seeded stratified shuffles:
// the first carves ceil(valTest*n) indices out of the whole pool, the second
// carves ceil(test*m) indices out of those m for the test subset. Both keep
// label proportions as closely as integer counts allow.
func Stratify(labels []int, valTest, test float64, seed uint64) (Partition, error) {
	train, rest, err := StratifiedShuffle(labels, valTest, seed)
	if err != nil {
		return Partition{}, fmt.Errorf("val+test split: %w", err)
	}
	if len(rest) == 0 {
		return Partition{Train: train}, nil
	}

	restLabels := make([]int, len(rest))
	for i, idx := range rest {
		restLabels[i] = labels[idx]
	}
	valPos, testPos, err := StratifiedShuffle(restLabels, test, seed)
	if err != nil {
		return Partition{}, fmt.Errorf("test split: %w", err)
	}

	p := Partition{Train: train, Val: make([]int, len(valPos)), Test: make([]int, len(testPos))}
	for i, pos := range valPos {
		p.Val[i] = rest[pos]
	}
	for i, pos := range testPos {
		p.Test[i] = rest[pos]
	}
	return p, nil
}

// StratifiedShuffle draws ceil(testFraction*n) indices of labels into the
// test side and leaves the rest on the train side. The per-label test
// counts follow a largest-remainder allocation; which members of a label are
// drawn, and the order of both outputs, come from a source seeded with seed.
func StratifiedShuffle(labels []int, testFraction float64, seed uint64) (train, test []int, err error) {
	if !fraction(testFraction) {
		return nil, nil, fmt.Errorf("%w: test fraction must be within [0, 1], got %g", ErrInvalidSplit, testFraction)
	}

	n := len(labels)
	nTest := int(math.Ceil(testFraction * float64(n)))
	nTest = min(nTest, n)

	members := make(map[int][]int)
	var classes []int
	for i, l := range labels {
		if _, ok := members[l]; !ok {
			classes = append(classes, l)
		}
		members[l] = append(members[l], i)
	}
	slices.Sort(classes)

	alloc := allocate(classes, members, nTest, n)

	rng := NewRand(seed)
	for _, c := range classes {
		idx := members[c]
		perm := rng.Perm(len(idx))
		for j, p := range perm {
			if j < alloc[c] {
				test = append(test, idx[p])
			} else {
				train = append(train, idx[p])
			}
		}
	}

	rng.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
	rng.Shuffle(len(test), func(i, j int) { test[i], test[j] = test[j], test[i] })
	return train, test, nil
}

// allocate splits total draws over classes proportionally to their sizes.
// Floors first, then the leftover draws go to the largest fractional parts;
// ties prefer the larger class, then the lower label.
func allocate(classes []int, members map[int][]int, total, n int) map[int]int {
	alloc := make(map[int]int, len(classes))
	if n == 0 || total == 0 {
		return alloc
	}

	type rem struct {
		class, num, size int
	}
	rems := make([]rem, 0, len(classes))
	assigned := 0
	for _, c := range classes {
		size := len(members[c])
		alloc[c] = size * total / n
		assigned += alloc[c]
		rems = append(rems, rem{class: c, num: size * total % n, size: size})
	}

	sort.SliceStable(rems, func(i, j int) bool {
		if rems[i].num != rems[j].num {
			return rems[i].num > rems[j].num
		}
		if rems[i].size != rems[j].size {
			return rems[i].size > rems[j].size
		}
		return rems[i].class < rems[j].class
	})
	for i := 0; assigned < total && i < len(rems); i++ {
		if alloc[rems[i].class] < rems[i].size {
			alloc[rems[i].class]++
			assigned++
		}
	}
	return alloc
}

// Balance orders candidate keys for filling a subset of the given size.
// Keys are grouped by label in order of first appearance; the first
// size/populatedBins keys of every group come first (uniform pass), followed
// by all leftover keys shuffled with rng. A nil rng uses a randomly seeded
// source, so the remainder order then differs between runs.
func Balance(size int, keys, labels []int, rng *rand.Rand) ([]int, error) {
	if len(keys) != len(labels) {
		return nil, fmt.Errorf("%w: %d keys but %d labels", ErrInvalidSplit, len(keys), len(labels))
	}
	if len(keys) == 0 {
		return nil, nil
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	groups := make(map[int][]int)
	var order []int
	for i, k := range keys {
		l := labels[i]
		if _, ok := groups[l]; !ok {
			order = append(order, l)
		}
		groups[l] = append(groups[l], k)
	}

	quota := size / len(order)

	uniform := make([]int, 0, len(keys))
	var remainder []int
	for _, l := range order {
		g := groups[l]
		take := min(quota, len(g))
		uniform = append(uniform, g[:take]...)
		remainder = append(remainder, g[take:]...)
	}

	rng.Shuffle(len(remainder), func(i, j int) {
		remainder[i], remainder[j] = remainder[j], remainder[i]
	})
	return append(uniform, remainder...), nil
}
