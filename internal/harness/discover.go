package harness

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScenarioDirError is returned when a scenarios path is missing or not a directory.
type ScenarioDirError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *ScenarioDirError) Error() string {
	return fmt.Sprintf("scenarios directory %q: %v", e.Path, e.Err)
}

func (e *ScenarioDirError) Unwrap() error {
	return e.Err
}

// FindScenarios returns the scenario files (.yaml, .yml) under dir, sorted.
// Files inside testdata/golden are skipped. A non-empty filter keeps only
// files whose base name contains it.
func FindScenarios(dir, filter string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &ScenarioDirError{Path: dir, Err: err}
	}
	if !info.IsDir() {
		return nil, &ScenarioDirError{Path: dir, Err: fmt.Errorf("not a directory")}
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" && !strings.Contains(filepath.Base(path), filter) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}

	sort.Strings(paths)
	return paths, nil
}
