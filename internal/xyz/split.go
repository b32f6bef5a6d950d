package xyz

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SplitFile writes every frame of the multi-frame file at path into its own
// file in outDir, named <stem>_<i>.xyz with i starting at 1. Frames are
// copied verbatim. It returns the number of frames written.
func SplitFile(path, outDir string) (int, error) {
	in, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	frames, err := scanFrames(in)
	_ = in.Close()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}

	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(path), Ext)
	for i, rf := range frames {
		out := filepath.Join(outDir, fmt.Sprintf("%s_%d%s", stem, i+1, Ext))
		if err := writeRaw(out, rf); err != nil {
			return i, err
		}
	}
	return len(frames), nil
}

// SplitDir applies SplitFile to every .xyz file in inDir.
// The returned map holds the number of frames per input stem.
func SplitDir(inDir, outDir string) (map[string]int, error) {
	stems, err := Stems(inDir)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(stems))
	for _, stem := range stems {
		n, err := SplitFile(Path(inDir, stem), outDir)
		if err != nil {
			return counts, err
		}
		counts[stem] = n
	}
	return counts, nil
}

func writeRaw(path string, rf rawFrame) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	_, _ = fmt.Fprintf(w, "%d\n%s\n", rf.count, rf.header)
	for _, line := range rf.atoms {
		_, _ = fmt.Fprintln(w, line)
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
