// Package xyz reads molecular geometries in the XYZ format.
//
// A file holds one or more frames. Each frame is an atom count line, a
// comment line and one line per atom ("El x y z", extra columns ignored).
// Lines between frames that do not start a frame are skipped, which covers
// the trailing property lines of QM9 files.
package xyz

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Ext is the geometry file extension.
const Ext = ".xyz"

// Atom is one atom of a frame. Coordinates are in Angstrom.
type Atom struct {
	Symbol string
	Coords [3]float64
}

// Frame is one geometry.
type Frame struct {
	Comment string
	Atoms   []Atom
}

// NumAtoms returns the number of atoms in the frame.
func (f *Frame) NumAtoms() int {
	return len(f.Atoms)
}

// Elements returns the distinct element symbols of the frame in first-seen order.
func (f *Frame) Elements() []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range f.Atoms {
		if !seen[a.Symbol] {
			seen[a.Symbol] = true
			out = append(out, a.Symbol)
		}
	}
	return out
}

// rawFrame keeps the original text lines so frames can be re-emitted verbatim.
type rawFrame struct {
	count  int
	header string
	atoms  []string
}

func scanFrames(r io.Reader) ([]rawFrame, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	var frames []rawFrame
	idx := 0
	for idx < len(lines) {
		for idx < len(lines) && !isCount(lines[idx]) {
			idx++
		}
		if idx >= len(lines) {
			break
		}

		count, err := strconv.Atoi(strings.TrimSpace(lines[idx]))
		if err != nil {
			return nil, fmt.Errorf("frame at line %d: invalid atom count: %w", idx+1, err)
		}
		end := idx + 2 + count
		if end > len(lines) {
			return nil, fmt.Errorf("frame at line %d: expected %d atoms, file ends early", idx+1, count)
		}
		frames = append(frames, rawFrame{count: count, header: lines[idx+1], atoms: lines[idx+2 : end]})
		idx = end
	}
	return frames, nil
}

func isCount(line string) bool {
	s := strings.TrimSpace(line)
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (rf rawFrame) parse() (*Frame, error) {
	f := &Frame{Comment: rf.header, Atoms: make([]Atom, 0, rf.count)}
	for i, line := range rf.atoms {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			return nil, fmt.Errorf("atom %d: expected symbol and 3 coordinates, got %q", i+1, line)
		}
		a := Atom{Symbol: fields[0]}
		for j := 0; j < 3; j++ {
			v, err := parseFloat(fields[1+j])
			if err != nil {
				return nil, fmt.Errorf("atom %d: %w", i+1, err)
			}
			a.Coords[j] = v
		}
		f.Atoms = append(f.Atoms, a)
	}
	return f, nil
}

// parseFloat also accepts the Mathematica exponent notation ("1.2*^-6")
// found in the raw QM9 files.
func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.Replace(s, "*^", "e", 1), 64)
}

// Read parses every frame from r.
func Read(r io.Reader) ([]*Frame, error) {
	raw, err := scanFrames(r)
	if err != nil {
		return nil, err
	}
	frames := make([]*Frame, 0, len(raw))
	for i, rf := range raw {
		f, err := rf.parse()
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i+1, err)
		}
		frames = append(frames, f)
	}
	return frames, nil
}

// ReadFile parses every frame of the file at path.
func ReadFile(path string) ([]*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	frames, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return frames, nil
}

// ReadFirst parses the first frame of the file at path.
func ReadFirst(path string) (*Frame, error) {
	frames, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("%s: no frames", path)
	}
	return frames[0], nil
}

// Stems returns the sorted file stems of every .xyz file in dir.
func Stems(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+Ext))
	if err != nil {
		return nil, err
	}
	stems := make([]string, 0, len(matches))
	for _, m := range matches {
		stems = append(stems, strings.TrimSuffix(filepath.Base(m), Ext))
	}
	sort.Strings(stems)
	return stems, nil
}

// Path returns the geometry file for stem inside dir.
func Path(dir, stem string) string {
	return filepath.Join(dir, stem+Ext)
}
