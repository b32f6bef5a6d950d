// Package basis loads basis set definitions for a fixed element set.
//
// A basis is given either by name ("def2-svp"), which is passed through to
// the solver untouched, or by the path of a Gaussian94 (.gbs) file. For a
// file, only the blocks of the requested elements are kept and every
// requested element must be defined.
package basis

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrMissingElement is returned when a basis file lacks a requested element.
var ErrMissingElement = errors.New("element not defined in basis file")

// Set is a basis restricted to a list of elements.
type Set struct {
	// Source is the basis name or the file it was read from.
	Source string `json:"source"`
	// Definitions maps element symbols to their Gaussian94 block.
	// It is nil for named bases.
	Definitions map[string]string `json:"definitions,omitempty"`
}

// Named reports whether the set refers to a basis by name only.
func (s Set) Named() bool {
	return s.Definitions == nil
}

// Elements returns the elements the set defines, in no particular order.
func (s Set) Elements() []string {
	out := make([]string, 0, len(s.Definitions))
	for el := range s.Definitions {
		out = append(out, el)
	}
	return out
}

// Load builds a Set for elements from a basis name or a .gbs file path.
func Load(nameOrPath string, elements []string) (Set, error) {
	if nameOrPath == "" {
		return Set{}, errors.New("basis: empty name")
	}

	info, err := os.Stat(nameOrPath)
	if err != nil || info.IsDir() {
		if looksLikePath(nameOrPath) {
			return Set{}, fmt.Errorf("basis file %s: %w", nameOrPath, os.ErrNotExist)
		}
		return Set{Source: nameOrPath}, nil
	}

	f, err := os.Open(nameOrPath)
	if err != nil {
		return Set{}, err
	}
	defer func() { _ = f.Close() }()

	blocks, err := Parse(f)
	if err != nil {
		return Set{}, fmt.Errorf("basis file %s: %w", nameOrPath, err)
	}

	set := Set{Source: nameOrPath, Definitions: make(map[string]string, len(elements))}
	for _, el := range elements {
		block, ok := blocks[normalize(el)]
		if !ok {
			return Set{}, fmt.Errorf("%w: %s in %s", ErrMissingElement, el, nameOrPath)
		}
		set.Definitions[el] = block
	}
	return set, nil
}

func looksLikePath(s string) bool {
	return strings.ContainsRune(s, os.PathSeparator) || strings.HasSuffix(s, ".gbs")
}

// Parse splits a Gaussian94 basis file into per-element blocks keyed by
// normalised element symbol. Comment lines ("!") are dropped.
func Parse(r io.Reader) (map[string]string, error) {
	sc := bufio.NewScanner(r)
	blocks := make(map[string]string)

	var (
		element string
		lines   []string
	)
	flush := func() {
		if element != "" && len(lines) > 0 {
			blocks[element] = strings.Join(lines, "\n") + "\n"
		}
		element, lines = "", nil
	}

	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \t\r")
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "" || strings.HasPrefix(trimmed, "!"):
			continue
		case trimmed == "****":
			flush()
			continue
		case element == "":
			fields := strings.Fields(trimmed)
			element = normalize(strings.TrimPrefix(fields[0], "-"))
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	flush()

	if len(blocks) == 0 {
		return nil, errors.New("no element blocks found")
	}
	return blocks, nil
}

// normalize returns the canonical element symbol ("c" -> "C", "CL" -> "Cl").
func normalize(symbol string) string {
	if symbol == "" {
		return symbol
	}
	return strings.ToUpper(symbol[:1]) + strings.ToLower(symbol[1:])
}
