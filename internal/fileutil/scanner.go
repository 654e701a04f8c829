// Package fileutil provides error-tolerant, deterministic file system
// scanning for fuzzrun. Results are sorted so repeated scans of an
// unchanged tree are identical, and non-fatal errors (unreadable
// subdirectories) are collected instead of aborting the walk.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScanOptions configures the directory scanning behavior.
type ScanOptions struct {
	// Suffix restricts matches to file names with this suffix (e.g. "_test.go")
	Suffix string
	// ExcludeDirs is a list of directory names to skip (e.g. "vendor", "testdata")
	ExcludeDirs []string
	// MaxDepth limits recursion depth (0 = unlimited, 1 = root dir only)
	MaxDepth int
}

// ScanResult contains the results of a directory scan.
type ScanResult struct {
	// Files contains root-relative paths of all matched files, sorted
	Files []string
	// Errors contains non-fatal errors encountered during scanning
	Errors []error
}

// ScanDirectory walks root and collects files matching the options.
// Hidden directories (name starting with ".") are always skipped.
// Returned paths are relative to root and slash-separated, so the same
// tree scans identically regardless of the absolute location or platform.
func ScanDirectory(root string, opts ScanOptions) (*ScanResult, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to access directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", root)
	}

	excludeMap := make(map[string]bool, len(opts.ExcludeDirs))
	for _, dir := range opts.ExcludeDirs {
		excludeMap[dir] = true
	}

	result := &ScanResult{}

	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("error accessing %s: %w", path, err))
			return nil // Continue walking
		}

		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("failed to resolve path %s: %w", path, err))
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if excludeMap[d.Name()] || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if opts.MaxDepth > 0 {
				depth := strings.Count(rel, "/") + 1
				if depth >= opts.MaxDepth {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if opts.Suffix != "" && !strings.HasSuffix(d.Name(), opts.Suffix) {
			return nil
		}

		result.Files = append(result.Files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	sort.Strings(result.Files)

	return result, nil
}
