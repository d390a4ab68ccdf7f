package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/prioritize/internal/config"
	"github.com/roach88/prioritize/internal/ir"
	"github.com/roach88/prioritize/internal/tracker"
)

// Scenario defines a ranking test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Today anchors date horizons. Zero means testutil.ReferenceDate.
	Today time.Time `yaml:"today,omitempty"`

	// RunID is the fixed run ID. Empty means "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	// Rule is the rule under test, in configuration form.
	Rule config.Rule `yaml:"rule"`

	// Backlog is the input in backlog file layout (parents and items).
	Backlog yaml.Node `yaml:"backlog"`

	// Assertions validate the outcome.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates a scenario outcome.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Keys is the expected final order (order).
	Keys []string `yaml:"keys,omitempty"`

	// Item is the subject of before, priority and status.
	Item string `yaml:"item,omitempty"`

	// Other is the item that must come after Item (before).
	Other string `yaml:"other,omitempty"`

	// Moves are the expected moves, "X after Y" (moves).
	Moves []string `yaml:"moves,omitempty"`

	// Count is the expected number of moves (move_count).
	Count int `yaml:"count,omitempty"`

	// Value is the expected priority or status category (priority, status).
	Value string `yaml:"value,omitempty"`

	// Code is the expected runtime error code (error).
	Code string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertOrder     = "order"
	AssertBefore    = "before"
	AssertMoves     = "moves"
	AssertMoveCount = "move_count"
	AssertPriority  = "priority"
	AssertStatus    = "status"
	AssertUnchanged = "unchanged"
	AssertError     = "error"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// Items decodes the scenario backlog.
func (s *Scenario) Items() ([]ir.Item, error) {
	if s.Backlog.Kind == 0 {
		return []ir.Item{}, nil
	}
	data, err := yaml.Marshal(&s.Backlog)
	if err != nil {
		return nil, fmt.Errorf("backlog: %w", err)
	}
	items, err := tracker.ParseBacklog(data)
	if err != nil {
		return nil, fmt.Errorf("backlog: %w", err)
	}
	return items, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Rule.Rule == "" {
		return fmt.Errorf("rule is required")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if _, err := s.Items(); err != nil {
		return err
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertOrder:
		if a.Keys == nil {
			return fmt.Errorf("assertions[%d]: keys is required for order", index)
		}
	case AssertBefore:
		if a.Item == "" || a.Other == "" {
			return fmt.Errorf("assertions[%d]: item and other are required for before", index)
		}
	case AssertMoves:
		if a.Moves == nil {
			return fmt.Errorf("assertions[%d]: moves is required for moves", index)
		}
	case AssertMoveCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for move_count", index)
		}
	case AssertPriority:
		if a.Item == "" {
			return fmt.Errorf("assertions[%d]: item is required for priority", index)
		}
		if _, err := ir.ParsePriority(a.Value); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertStatus:
		if a.Item == "" {
			return fmt.Errorf("assertions[%d]: item is required for status", index)
		}
		if _, err := ir.ParseStatusCategory(a.Value); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertUnchanged:
	case AssertError:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for error", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
