package harness

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScenarioNotFoundError is returned when a scenario directory doesn't exist.
type ScenarioNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario directory %q does not exist", e.Path)
}

// FindScenarios returns the YAML files under dir in lexical order. filter is
// an optional glob matched against the file name without extension.
func FindScenarios(dir, filter string) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, &ScenarioNotFoundError{Path: dir}
	}
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			if ok, _ := filepath.Match(filter, name); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// SuiteResult summarizes a directory of scenarios.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Failures []ScenarioFailure `json:"failures,omitempty"`

	// Results holds the run of every scenario that loaded, keyed by path.
	Results map[string]*Result `json:"-"`
}

// ScenarioFailure represents one failed scenario.
type ScenarioFailure struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Errors []string `json:"errors"`
}

// RunSuite loads and runs every scenario under dir matching filter.
func RunSuite(dir, filter string, opts ...Option) (*SuiteResult, error) {
	files, err := FindScenarios(dir, filter)
	if err != nil {
		return nil, err
	}

	res := &SuiteResult{Results: make(map[string]*Result)}
	for _, path := range files {
		res.Total++

		scenario, err := LoadScenario(path)
		if err != nil {
			res.fail(filepath.Base(path), path, fmt.Sprintf("failed to load scenario: %v", err))
			continue
		}

		result, err := Run(scenario, opts...)
		if err != nil {
			res.fail(scenario.Name, path, fmt.Sprintf("execution failed: %v", err))
			continue
		}
		res.Results[path] = result

		if !result.Pass {
			res.fail(scenario.Name, path, result.Errors...)
			continue
		}
		res.Passed++
	}
	return res, nil
}

func (r *SuiteResult) fail(name, path string, errs ...string) {
	r.Failed++
	r.Failures = append(r.Failures, ScenarioFailure{Name: name, Path: path, Errors: errs})
}
