// Package discovery scans a source tree for Go fuzz targets.
//
// Candidate files are *_test.go files anywhere under the root (vendor,
// testdata and hidden directories excluded). Entry points are extracted
// with a textual pattern match over the source, not a full parse: false
// positives in malformed files surface later as target failures, and
// unreadable files produce warnings rather than aborting discovery.
package discovery

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/harrison/fuzzrun/internal/fileutil"
	"github.com/harrison/fuzzrun/internal/models"
)

// fuzzFuncPattern matches Go fuzz function declarations, e.g. "func FuzzParse(".
var fuzzFuncPattern = regexp.MustCompile(`func\s+(Fuzz\w*)\s*\(`)

// defaultReadJobs bounds concurrent file reads during extraction.
const defaultReadJobs = 8

// Warning describes a non-fatal problem encountered during discovery.
type Warning struct {
	File string
	Err  error
}

func (w Warning) String() string {
	return fmt.Sprintf("could not read %s: %v", w.File, w.Err)
}

// Scanner discovers fuzz targets under a root directory.
type Scanner struct {
	root     string
	readJobs int
}

// NewScanner creates a Scanner for the given root directory.
func NewScanner(root string) *Scanner {
	return &Scanner{
		root:     root,
		readJobs: defaultReadJobs,
	}
}

// fileTargets holds the entry points extracted from one test file, in
// declaration order.
type fileTargets struct {
	file      string
	functions []string
}

// Discover returns all fuzz targets under the scanner root in deterministic
// order: sorted by file path, then by in-file declaration order. Scanning an
// unchanged tree twice yields identical lists. An empty result is a valid
// terminal state, not an error.
func (s *Scanner) Discover(ctx context.Context) ([]models.FuzzTarget, []Warning, error) {
	scan, err := fileutil.ScanDirectory(s.root, fileutil.ScanOptions{
		Suffix:      "_test.go",
		ExcludeDirs: []string{"vendor", "testdata"},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan %s: %w", s.root, err)
	}

	var warnings []Warning
	for _, scanErr := range scan.Errors {
		warnings = append(warnings, Warning{Err: scanErr})
	}

	// Extract entry points with bounded parallel reads. Results land in a
	// slice indexed by scan position so output order stays independent of
	// goroutine completion order.
	perFile := make([]fileTargets, len(scan.Files))

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.readJobs)

	for i, file := range scan.Files {
		i, file := i, file
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			content, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(file)))
			if err != nil {
				mu.Lock()
				warnings = append(warnings, Warning{File: file, Err: err})
				mu.Unlock()
				return nil
			}

			matches := fuzzFuncPattern.FindAllSubmatch(content, -1)
			if len(matches) == 0 {
				return nil
			}

			ft := fileTargets{file: file}
			for _, m := range matches {
				ft.functions = append(ft.functions, string(m[1]))
			}
			perFile[i] = ft
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, warnings, err
	}

	var targets []models.FuzzTarget
	for _, ft := range perFile {
		for _, fn := range ft.functions {
			targets = append(targets, models.FuzzTarget{
				Directory: dirOf(ft.file),
				Function:  fn,
				FilePath:  ft.file,
			})
		}
	}

	return targets, warnings, nil
}

// dirOf returns the containing directory of a root-relative file path,
// using "." for files at the root itself.
func dirOf(file string) string {
	dir := path.Dir(file)
	if dir == "" {
		return "."
	}
	return dir
}
