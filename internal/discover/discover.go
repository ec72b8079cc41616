// Package discover finds the documentation files a coverage run analyzes.
package discover

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar"
	"github.com/spf13/afero"
)

// Options controls directory discovery
type Options struct {
	Recursive  bool     // Descend into subdirectories
	Extensions []string // Keep only these extensions; empty keeps all
	Exclude    []string // doublestar globs, matched against slash paths relative to the input
}

// Files returns the absolute paths to analyze. A file input is returned
// as is; a directory is walked in lexical order.
func Files(fs afero.Fs, input string, opts Options) ([]string, error) {
	root, err := filepath.Abs(input)
	if err != nil {
		return nil, fmt.Errorf("error resolving path: %w", err)
	}

	info, err := fs.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("input isn't a valid file or directory: %w", err)
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var files []string
	err = afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}

		excluded, err := isExcluded(root, path, opts.Exclude)
		if err != nil {
			return err
		}

		if info.IsDir() {
			if !opts.Recursive || excluded {
				return filepath.SkipDir
			}
			return nil
		}
		if excluded {
			return nil
		}
		if len(opts.Extensions) == 0 || slices.Contains(opts.Extensions, filepath.Ext(path)) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func isExcluded(root, path string, patterns []string) (bool, error) {
	if len(patterns) == 0 {
		return false, nil
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false, err
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range patterns {
		ok, err := doublestar.Match(pattern, rel)
		if err != nil {
			return false, fmt.Errorf("exclude pattern %q: %w", pattern, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
