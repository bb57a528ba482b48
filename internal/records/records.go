// Package records reads the offline evaluation inputs: comma-delimited text with one
// record per line. Blank lines and lines starting with '#' are ignored.
package records

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Pair is one identity-matching record. Label 1 means same identity.
type Pair struct {
	Line  int
	PathA string
	PathB string
	Label int
}

// Sample is one liveness record. Label 1 means attack.
type Sample struct {
	Line  int
	Path  string
	Label int
}

// LoadPairs reads a `path_a, path_b, label` file.
func LoadPairs(path string) ([]Pair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pairs file: %w", err)
	}
	defer f.Close()
	return ReadPairs(f)
}

// ReadPairs parses pair records from r.
func ReadPairs(r io.Reader) ([]Pair, error) {
	var pairs []Pair
	err := scan(r, 3, func(line int, fields []string) error {
		label, err := parseLabel(fields[2])
		if err != nil {
			return err
		}
		pairs = append(pairs, Pair{Line: line, PathA: fields[0], PathB: fields[1], Label: label})
		return nil
	})
	return pairs, err
}

// LoadSamples reads a `path, label` file.
func LoadSamples(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open samples file: %w", err)
	}
	defer f.Close()
	return ReadSamples(f)
}

// ReadSamples parses liveness records from r.
func ReadSamples(r io.Reader) ([]Sample, error) {
	var samples []Sample
	err := scan(r, 2, func(line int, fields []string) error {
		label, err := parseLabel(fields[1])
		if err != nil {
			return err
		}
		samples = append(samples, Sample{Line: line, Path: fields[0], Label: label})
		return nil
	})
	return samples, err
}

func scan(r io.Reader, want int, fn func(line int, fields []string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		text := strings.TrimSpace(sc.Text())
		if lineNo == 1 {
			text = strings.TrimPrefix(text, "\ufeff")
		}
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Split(text, ",")
		if len(fields) != want {
			return fmt.Errorf("line %d: expected %d comma-separated fields, got %d", lineNo, want, len(fields))
		}
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
			if fields[i] == "" {
				return fmt.Errorf("line %d: field %d is empty", lineNo, i+1)
			}
		}
		if err := fn(lineNo, fields); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read records: %w", err)
	}
	return nil
}

func parseLabel(s string) (int, error) {
	label, err := strconv.Atoi(s)
	if err != nil || (label != 0 && label != 1) {
		return 0, fmt.Errorf("label must be 0 or 1, got %q", s)
	}
	return label, nil
}
