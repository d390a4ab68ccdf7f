package compiler

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"

	"github.com/roach88/prioritize/internal/config"
)

const (
	schemaFilename = "schema.cue"
	schemaRoot     = "#Config"
)

//go:embed schema.cue
var schemaSource string

// ValidateSchema checks a YAML configuration document against the embedded
// CUE schema. Errors carry the position of the offending YAML node.
func ValidateSchema(filename string, data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename(schemaFilename))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling config schema: %w", err)
	}

	f, err := cueyaml.Extract(filename, data)
	if err != nil {
		return formatCUEError(err)
	}
	doc := ctx.BuildFile(f)
	if err := doc.Err(); err != nil {
		return formatCUEError(err)
	}

	v := schema.LookupPath(cue.ParsePath(schemaRoot)).Unify(doc)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// LoadConfig reads a configuration file, checks it against the schema and
// decodes it.
func LoadConfig(path string) (*config.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := ValidateSchema(path, data); err != nil {
		return nil, err
	}
	return config.Load(path)
}
