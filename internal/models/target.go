// Package models defines the core value types shared across fuzzrun:
// discovered fuzz targets, per-target execution outcomes, and aggregate
// run statistics.
package models

import (
	"errors"
	"fmt"
	"strings"
)

// FuzzTarget identifies a single fuzz entry point in a test file.
// Targets are created during discovery and never mutated afterwards.
// Identity is the (FilePath, Function) pair.
type FuzzTarget struct {
	Directory string // Package directory containing the test file
	Function  string // Fuzz function name, e.g. "FuzzParse"
	FilePath  string // Test file the function was found in
}

// Validate checks that the target has all required fields.
func (t *FuzzTarget) Validate() error {
	if t.Function == "" {
		return errors.New("target function is required")
	}
	if !strings.HasPrefix(t.Function, "Fuzz") {
		return fmt.Errorf("target function %q does not follow the Fuzz naming convention", t.Function)
	}
	if t.FilePath == "" {
		return errors.New("target file path is required")
	}
	return nil
}

// ID returns the stable identity string used in logs, the failure sink,
// and the history store.
func (t *FuzzTarget) ID() string {
	return fmt.Sprintf("%s in %s", t.Function, t.FilePath)
}

// PackagePath returns the go-test package argument for the target.
// Directories inside a module are addressed relative to the module root
// with a "./" prefix; the module root itself is ".".
func (t *FuzzTarget) PackagePath() string {
	if t.Directory == "" || t.Directory == "." {
		return "."
	}
	if strings.HasPrefix(t.Directory, "./") {
		return t.Directory
	}
	return "./" + t.Directory
}
