// Package pickle reads and writes the small Python pickle files that sit
// next to the NumPy artifacts of a dataset: the permuted name list, the
// accepted key list and the per-sample convergence status.
//
// Files are written with protocol 4 so they stay loadable from Python 3:
// strings are encoded as unicode objects, never as byte strings.
package pickle

import (
	"bufio"
	"fmt"
	"os"
	"reflect"

	ogórek "github.com/kisielk/og-rek"
	"github.com/leapstack-labs/scfdata/pkg/core"
)

// Protocol is the pickle protocol used by WriteFile.
const Protocol = 4

// WriteFile pickles v into path, replacing any existing file.
func WriteFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	w := bufio.NewWriter(f)
	if err := ogórek.NewEncoderWithConfig(w, &ogórek.EncoderConfig{Protocol: Protocol}).Encode(v); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to pickle %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// ReadFile unpickles the single object stored in path.
// A missing file yields an error wrapping fs.ErrNotExist.
func ReadFile(path string) (any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	v, err := ogórek.NewDecoder(bufio.NewReader(f)).Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to unpickle %s: %w", path, err)
	}
	return v, nil
}

// WriteInts pickles a list of ints.
func WriteInts(path string, values []int) error {
	list := make([]any, len(values))
	for i, v := range values {
		list[i] = int64(v)
	}
	return WriteFile(path, list)
}

// ReadInts unpickles a list of ints.
func ReadInts(path string) ([]int, error) {
	v, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected list, got %T", path, v)
	}
	out := make([]int, len(list))
	for i, item := range list {
		n, ok := asInt(item)
		if !ok {
			return nil, fmt.Errorf("%s: item %d: expected int, got %T", path, i, item)
		}
		out[i] = n
	}
	return out, nil
}

// WriteStrings pickles a list of strings.
func WriteStrings(path string, values []string) error {
	list := make([]any, len(values))
	for i, v := range values {
		list[i] = v
	}
	return WriteFile(path, list)
}

// ReadStrings unpickles a list of strings.
func ReadStrings(path string) ([]string, error) {
	v, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected list, got %T", path, v)
	}
	out := make([]string, len(list))
	for i, item := range list {
		s, ok := asString(item)
		if !ok {
			return nil, fmt.Errorf("%s: item %d: expected str, got %T", path, i, item)
		}
		out[i] = s
	}
	return out, nil
}

// WriteStatus pickles a status as {"converged": bool, "iterations": int|None}.
func WriteStatus(path string, status core.Status) error {
	var iterations any = ogórek.None{}
	if status.Iterations != nil {
		iterations = int64(*status.Iterations)
	}
	return WriteFile(path, map[any]any{
		"converged":  status.Converged,
		"iterations": iterations,
	})
}

// ReadStatus unpickles a status dict written by WriteStatus.
func ReadStatus(path string) (core.Status, error) {
	v, err := ReadFile(path)
	if err != nil {
		return core.Status{}, err
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map {
		return core.Status{}, fmt.Errorf("%s: expected dict, got %T", path, v)
	}

	var status core.Status
	seen := false
	for _, k := range rv.MapKeys() {
		key, ok := asString(k.Interface())
		if !ok {
			continue
		}
		val := rv.MapIndex(k).Interface()
		switch key {
		case "converged":
			b, ok := val.(bool)
			if !ok {
				return core.Status{}, fmt.Errorf("%s: converged: expected bool, got %T", path, val)
			}
			status.Converged = b
			seen = true
		case "iterations":
			if _, isNone := val.(ogórek.None); isNone || val == nil {
				continue
			}
			n, ok := asInt(val)
			if !ok {
				return core.Status{}, fmt.Errorf("%s: iterations: expected int, got %T", path, val)
			}
			status.Iterations = &n
		}
	}
	if !seen {
		return core.Status{}, fmt.Errorf("%s: missing converged field", path)
	}
	return status, nil
}

func asInt(v any) (int, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(rv.Uint()), true
	}
	return 0, false
}

// asString accepts any string-kinded value; the decoder may hand back a
// named string type depending on the pickle opcode used.
func asString(v any) (string, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String(), true
	}
	return "", false
}
