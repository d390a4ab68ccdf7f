package harness

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ScenarioNotFoundError is returned when a requested scenario path doesn't exist.
type ScenarioNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario path %q does not exist", e.Path)
}

// FindScenarios expands paths into scenario files. Directories are walked
// recursively for .yaml and .yml files; files are taken as given. The
// result is sorted and free of duplicates.
func FindScenarios(paths ...string) ([]string, error) {
	found := []string{}
	for _, p := range paths {
		info, err := os.Stat(p)
		if os.IsNotExist(err) {
			return nil, &ScenarioNotFoundError{Path: p}
		}
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			found = append(found, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".yaml", ".yml":
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", p, err)
		}
	}
	slices.Sort(found)
	return slices.Compact(found), nil
}

// SuiteResult contains results from running a set of scenario files.
type SuiteResult struct {
	Total    int            `json:"total"`
	Passed   int            `json:"passed"`
	Failed   int            `json:"failed"`
	Failures []SuiteFailure `json:"failures,omitempty"`
}

// SuiteFailure represents a scenario that failed to load, run or pass.
type SuiteFailure struct {
	ScenarioPath string   `json:"scenario_path"`
	Scenario     string   `json:"scenario,omitempty"`
	Errors       []string `json:"errors"`
}

// RunSuite loads and runs every scenario file. Load and execution failures
// are recorded per file; RunSuite itself only fails on an empty file list.
func RunSuite(scenarioPaths []string) (*SuiteResult, error) {
	if len(scenarioPaths) == 0 {
		return nil, fmt.Errorf("no scenario files found")
	}

	result := &SuiteResult{}
	for _, path := range scenarioPaths {
		result.Total++

		scenario, err := LoadScenario(path)
		if err != nil {
			result.fail(path, "", fmt.Sprintf("failed to load scenario: %v", err))
			continue
		}

		runResult, err := Run(scenario)
		if err != nil {
			result.fail(path, scenario.Name, fmt.Sprintf("scenario execution failed: %v", err))
			continue
		}

		if !runResult.Pass {
			result.fail(path, scenario.Name, runResult.Errors...)
			continue
		}

		result.Passed++
	}
	return result, nil
}

func (r *SuiteResult) fail(path, name string, errs ...string) {
	r.Failed++
	r.Failures = append(r.Failures, SuiteFailure{ScenarioPath: path, Scenario: name, Errors: errs})
}
