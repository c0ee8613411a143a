// Package testlist reads persisted replay lists: plain text files with one
// test specification per line, optionally suffixed with an annotation
// comment. They are produced by the fail-list and quick-list pipeline
// stages and consumed as an alternate specification source on a later run.
package testlist

import (
	"bufio"
	"fmt"
	"os"

	"github.com/runflo/runflo/types"
)

// Load parses the replay list at path. Blank lines and comment-only lines
// are ignored; annotations after '#' are stripped.
func Load(path string) ([]types.Spec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening replay list: %w", err)
	}
	defer f.Close()

	var specs []types.Spec
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if spec := types.ParseListLine(scanner.Text()); spec != "" {
			specs = append(specs, spec)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading replay list %s: %w", path, err)
	}
	return specs, nil
}

// Save writes specs to path, one per line. Annotation of process counts is
// the writer's concern; Save stores plain specs.
func Save(path string, specs []types.Spec) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating replay list: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, spec := range specs {
		fmt.Fprintln(w, spec)
	}
	return w.Flush()
}
