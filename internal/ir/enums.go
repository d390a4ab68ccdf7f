package ir

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Priority is the tracker's fixed, ordered priority enumeration.
// The zero value is PriorityUndefined.
type Priority int

const (
	PriorityUndefined Priority = iota
	PriorityMinor
	PriorityNormal
	PriorityMajor
	PriorityCritical
	PriorityBlocker
)

var priorityNames = []string{"Undefined", "Minor", "Normal", "Major", "Critical", "Blocker"}

// String returns the tracker display name.
func (p Priority) String() string {
	if p < 0 || int(p) >= len(priorityNames) {
		return fmt.Sprintf("Priority(%d)", int(p))
	}
	return priorityNames[p]
}

// ParsePriority parses a display name (case-insensitive). An empty string
// parses as PriorityUndefined.
func ParsePriority(s string) (Priority, error) {
	if s == "" {
		return PriorityUndefined, nil
	}
	for i, name := range priorityNames {
		if strings.EqualFold(name, s) {
			return Priority(i), nil
		}
	}
	return PriorityUndefined, fmt.Errorf("unknown priority %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Priority) UnmarshalText(text []byte) error {
	v, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (p Priority) MarshalYAML() (interface{}, error) {
	return p.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *Priority) UnmarshalYAML(node *yaml.Node) error {
	return p.UnmarshalText([]byte(node.Value))
}

// StatusCategory is the coarse lifecycle bucket of an item.
// The zero value is StatusToDo.
type StatusCategory int

const (
	StatusToDo StatusCategory = iota
	StatusInProgress
	StatusDone
)

var statusCategoryNames = []string{"To Do", "In Progress", "Done"}

// String returns the tracker display name.
func (c StatusCategory) String() string {
	if c < 0 || int(c) >= len(statusCategoryNames) {
		return fmt.Sprintf("StatusCategory(%d)", int(c))
	}
	return statusCategoryNames[c]
}

// ParseStatusCategory parses a display name. Matching ignores case, spaces,
// dashes and underscores so "in_progress" and "In Progress" are equivalent.
func ParseStatusCategory(s string) (StatusCategory, error) {
	if s == "" {
		return StatusToDo, nil
	}
	want := squash(s)
	for i, name := range statusCategoryNames {
		if squash(name) == want {
			return StatusCategory(i), nil
		}
	}
	return StatusToDo, fmt.Errorf("unknown status category %q", s)
}

func squash(s string) string {
	r := strings.NewReplacer(" ", "", "-", "", "_", "")
	return strings.ToLower(r.Replace(s))
}

// MarshalText implements encoding.TextMarshaler.
func (c StatusCategory) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *StatusCategory) UnmarshalText(text []byte) error {
	v, err := ParseStatusCategory(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (c StatusCategory) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *StatusCategory) UnmarshalYAML(node *yaml.Node) error {
	return c.UnmarshalText([]byte(node.Value))
}
