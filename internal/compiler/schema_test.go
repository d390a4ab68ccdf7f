package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `
backlog: backlog.yaml
journal: journal.db
comments:
  footer: "Automated ranking."
retry:
  max_retries: 3
  interval: 250ms
issues:
  - type: Epic
    rules:
      - rule: rank
        kwargs:
          orphans_last: true
      - rule: timesensitive_rank
        kwargs:
          horizon_days: 60
          tail_threshold: 0.5
          manual_override: "'pinned' in labels"
  - type: Story
    backlog: stories.yaml
    rules:
      - check_rank
      - rule: rank_with_order_by
        kwargs:
          order_by: priority DESC, duedate
          cascade: true
      - rule: priority_from_rank
        kwargs:
          by_component: true
      - set_status_from_children
`

func TestValidateSchema_Valid(t *testing.T) {
	require.NoError(t, ValidateSchema("prioritize.yaml", []byte(validConfig)))
}

func TestValidateSchema_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown top-level field", "issues: []\nbogus: true\n"},
		{"unknown rule", "issues:\n  - type: Epic\n    rules: [shuffle]\n"},
		{"unknown kwarg", "issues:\n  - type: Epic\n    rules:\n      - rule: rank\n        kwargs:\n          bogus: 1\n"},
		{"tail threshold out of range", "issues:\n  - type: Epic\n    rules:\n      - rule: timesensitive_rank\n        kwargs:\n          tail_threshold: 1.5\n"},
		{"empty issue type", "issues:\n  - type: \"\"\n    rules: [rank]\n"},
		{"bad interval", "retry:\n  interval: soon\nissues: []\n"},
		{"negative retries", "retry:\n  max_retries: -1\nissues: []\n"},
		{"cascade not boolean", "issues:\n  - type: Epic\n    rules:\n      - rule: rank_with_order_by\n        kwargs:\n          order_by: rank\n          cascade: yes please\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSchema("prioritize.yaml", []byte(tt.yaml))
			require.Error(t, err)

			var ce *CompileError
			assert.True(t, errors.As(err, &ce), "want *CompileError, got %T", err)
		})
	}
}

func TestValidateSchema_ReportsField(t *testing.T) {
	err := ValidateSchema("prioritize.yaml", []byte("retry:\n  max_retries: -1\nissues: []\n"))

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "retry.max_retries", ce.Field)
	assert.Contains(t, ce.Message, "out of bound")
	assert.NotContains(t, ce.Message, "max_retries", "message should not repeat the field")
	assert.NotContains(t, ce.Error(), "#Config")
}

func TestErrorField(t *testing.T) {
	tests := []struct {
		path []string
		want string
	}{
		{[]string{"#Config", "retry", "max_retries"}, "retry.max_retries"},
		{[]string{"issues", "0", "type"}, "issues.0.type"},
		{[]string{"#Config"}, "config"},
		{nil, "config"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, errorField(tt.path), "path %v", tt.path)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prioritize.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validConfig), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Issues, 2)
	assert.Equal(t, filepath.Join(dir, "backlog.yaml"), cfg.Issues[0].Backlog)
	assert.Equal(t, filepath.Join(dir, "stories.yaml"), cfg.Issues[1].Backlog)
	assert.Equal(t, "Automated ranking.", cfg.Comments.Footer)
}

func TestLoadConfig_SchemaErrorStopsLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prioritize.yaml")
	require.NoError(t, os.WriteFile(path, []byte("issues: []\nbogus: true\n"), 0o644))

	_, err := LoadConfig(path)
	var ce *CompileError
	assert.True(t, errors.As(err, &ce))
}
