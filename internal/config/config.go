// Package config loads the automation configuration file.
//
// A configuration lists, per issue type, the backlog to read and the rules
// to run against it, in order:
//
//	backlog: backlog.yaml
//	journal: .prioritize/journal.db
//	comments:
//	  footer: "Automated by prioritize."
//	issues:
//	  - type: Epic
//	    rules:
//	      - rank
//	      - rule: timesensitive_rank
//	        kwargs:
//	          horizon_days: 60
//	          manual_override: "'pinned' in labels"
//
// Parsing is strict: unknown fields are rejected. Schema checks live in the
// compiler package, which turns rules into engine policies.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by Parse.
const (
	DefaultJournal    = ".prioritize/journal.db"
	DefaultMaxRetries = 5
	DefaultInterval   = time.Second
)

// Config is the root of a configuration file.
type Config struct {
	// Backlog is the default backlog file for issue types without their own.
	Backlog string `yaml:"backlog,omitempty"`

	// Journal is the SQLite move journal path.
	Journal string `yaml:"journal,omitempty"`

	Comments Comments      `yaml:"comments,omitempty"`
	Retry    Retry         `yaml:"retry,omitempty"`
	Issues   []IssueConfig `yaml:"issues"`
}

// Comments configures messages posted to items.
type Comments struct {
	// Footer is appended to every posted message, separated by a blank line.
	Footer string `yaml:"footer,omitempty"`
}

// Retry configures move application backoff.
type Retry struct {
	MaxRetries int      `yaml:"max_retries,omitempty"`
	Interval   Duration `yaml:"interval,omitempty"`
}

// IssueConfig is the rule list for one issue type.
type IssueConfig struct {
	Type    string `yaml:"type"`
	Backlog string `yaml:"backlog,omitempty"`
	Rules   []Rule `yaml:"rules"`
}

// Rule names a rule and its keyword arguments. In YAML a rule is either a
// bare name or a mapping with "rule" and "kwargs".
type Rule struct {
	Rule   string `yaml:"rule"`
	Kwargs Kwargs `yaml:"kwargs,omitempty"`
}

// UnmarshalYAML accepts both the scalar and the mapping form.
func (r *Rule) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*r = Rule{Rule: node.Value}
		return nil
	}
	type plain Rule
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*r = Rule(p)
	return nil
}

// Kwargs are the rule options. Which ones apply depends on the rule.
type Kwargs struct {
	HorizonDays    int     `yaml:"horizon_days,omitempty"`
	TailThreshold  float64 `yaml:"tail_threshold,omitempty"`
	ManualOverride string  `yaml:"manual_override,omitempty"`
	OrderBy        string  `yaml:"order_by,omitempty"`
	Cascade        bool    `yaml:"cascade,omitempty"`
	OrphansLast    bool    `yaml:"orphans_last,omitempty"`
	ByComponent    bool    `yaml:"by_component,omitempty"`
}

// Set returns the names of the kwargs that carry a value, in declaration order.
func (k Kwargs) Set() []string {
	var names []string
	if k.HorizonDays != 0 {
		names = append(names, "horizon_days")
	}
	if k.TailThreshold != 0 {
		names = append(names, "tail_threshold")
	}
	if k.ManualOverride != "" {
		names = append(names, "manual_override")
	}
	if k.OrderBy != "" {
		names = append(names, "order_by")
	}
	if k.Cascade {
		names = append(names, "cascade")
	}
	if k.OrphansLast {
		names = append(names, "orphans_last")
	}
	if k.ByComponent {
		names = append(names, "by_component")
	}
	return names
}

// Duration is a time.Duration written as a Go duration string ("1500ms").
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	v, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML renders the duration string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Parse decodes a configuration document and applies defaults.
func Parse(data []byte) (*Config, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields

	var cfg Config
	if err := decoder.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("config is empty")
		}
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Load reads and parses a configuration file. Relative paths inside the
// file are resolved against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.resolve(filepath.Dir(path))
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Journal == "" {
		c.Journal = DefaultJournal
	}
	if c.Retry.MaxRetries == 0 {
		c.Retry.MaxRetries = DefaultMaxRetries
	}
	if c.Retry.Interval == 0 {
		c.Retry.Interval = Duration(DefaultInterval)
	}
	for i := range c.Issues {
		if c.Issues[i].Backlog == "" {
			c.Issues[i].Backlog = c.Backlog
		}
	}
}

func (c *Config) resolve(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	c.Backlog = abs(c.Backlog)
	c.Journal = abs(c.Journal)
	for i := range c.Issues {
		c.Issues[i].Backlog = abs(c.Issues[i].Backlog)
	}
}
