// Package split turns an ordered list of sample keys into disjoint
// train, validation and test subsets.
//
// Two runtime policies slice the persisted key list contiguously:
//
//   - Proportional: ceil-rounded validation and test counts, remainder to train.
//   - Ratio: floor-rounded train count, remainder to validation, no test subset.
//
// The rounding directions differ, so the two are kept as separate types.
//
// The build of size-stratified datasets additionally uses Bins,
// Stratify and Balance to choose which molecules end up in each subset.
// Every random step takes its seed or source explicitly; nothing here
// touches global random state.
package split
