package split

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidSplit is returned when split parameters cannot produce a valid
// partition of the requested size.
var ErrInvalidSplit = errors.New("invalid split")

// Sizes holds the number of keys in each subset.
type Sizes struct {
	Train int `json:"train"`
	Val   int `json:"val"`
	Test  int `json:"test"`
}

// Total returns Train+Val+Test.
func (s Sizes) Total() int {
	return s.Train + s.Val + s.Test
}

// Apply slices keys into contiguous, order-preserving subsets:
// [0,Train), [Train,Train+Val), [Train+Val,Total).
// keys must hold at least Total entries; extra entries are ignored.
func (s Sizes) Apply(keys []int) (train, val, test []int, err error) {
	if len(keys) < s.Total() {
		return nil, nil, nil, fmt.Errorf("%w: %d keys available, %d required", ErrInvalidSplit, len(keys), s.Total())
	}
	train = keys[:s.Train:s.Train]
	val = keys[s.Train : s.Train+s.Val : s.Train+s.Val]
	test = keys[s.Train+s.Val : s.Total() : s.Total()]
	return train, val, test, nil
}

// Policy computes subset sizes for a dataset of a given size.
type Policy interface {
	Sizes(size int) (Sizes, error)
	String() string
}

// Proportional assigns ceil(size*Val) keys to validation, ceil(size*Test)
// to test and the remainder to train.
type Proportional struct {
	Val  float64
	Test float64
}

// Sizes implements Policy.
func (p Proportional) Sizes(size int) (Sizes, error) {
	if size < 0 {
		return Sizes{}, fmt.Errorf("%w: negative size %d", ErrInvalidSplit, size)
	}
	if !fraction(p.Val) || !fraction(p.Test) {
		return Sizes{}, fmt.Errorf("%w: fractions must be within [0, 1], got val=%g test=%g", ErrInvalidSplit, p.Val, p.Test)
	}

	val := int(math.Ceil(float64(size) * p.Val))
	test := int(math.Ceil(float64(size) * p.Test))
	train := size - val - test
	if train < 0 {
		return Sizes{}, fmt.Errorf("%w: val=%d + test=%d exceeds size %d", ErrInvalidSplit, val, test, size)
	}
	return Sizes{Train: train, Val: val, Test: test}, nil
}

func (p Proportional) String() string {
	return fmt.Sprintf("proportional(val=%g, test=%g)", p.Val, p.Test)
}

// Ratio assigns floor(size*Train) keys to train and the remainder to
// validation. There is no test subset.
type Ratio struct {
	Train float64
}

// Sizes implements Policy.
func (r Ratio) Sizes(size int) (Sizes, error) {
	if size < 0 {
		return Sizes{}, fmt.Errorf("%w: negative size %d", ErrInvalidSplit, size)
	}
	if !fraction(r.Train) {
		return Sizes{}, fmt.Errorf("%w: ratio must be within [0, 1], got %g", ErrInvalidSplit, r.Train)
	}

	train := int(math.Floor(float64(size) * r.Train))
	return Sizes{Train: train, Val: size - train}, nil
}

func (r Ratio) String() string {
	return fmt.Sprintf("ratio(train=%g)", r.Train)
}

func fraction(f float64) bool {
	return !math.IsNaN(f) && f >= 0 && f <= 1
}
