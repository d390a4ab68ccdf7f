package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/prioritize/internal/ir"
)

// Snapshot captures the outcome of a scenario for golden comparison.
// All fields use canonical JSON serialization for deterministic comparison.
type Snapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Order        []string     `json:"order"`
	Trace        []TraceEvent `json:"trace"`
	ErrorCode    string       `json:"error_code,omitempty"`
}

// toCanonicalMap converts a Snapshot to a map[string]any for canonical JSON serialization.
// ir.MarshalCanonical only handles primitives, slices and maps.
func (s *Snapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"type": event.Type,
			"seq":  event.Seq,
			"key":  event.Key,
		}
		if event.After != "" {
			eventMap["after"] = event.After
		}
		if event.From != "" {
			eventMap["from"] = event.From
		}
		if event.To != "" {
			eventMap["to"] = event.To
		}
		if event.Message != "" {
			eventMap["message"] = event.Message
		}
		traceList[i] = eventMap
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"order":         s.Order,
		"trace":         traceList,
	}
	if s.ErrorCode != "" {
		result["error_code"] = s.ErrorCode
	}
	return result
}

// RunWithGolden executes a scenario and compares its outcome against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the outcome doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already computed result against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := Snapshot{
		ScenarioName: scenarioName,
		Order:        result.Order,
		Trace:        result.Trace,
		ErrorCode:    result.ErrorCode,
	}

	data, err := ir.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
