package tbnio

import (
	"fmt"

	"github.com/BurntSushi/toml"

	tbnerrors "tbnexplorer2/internal/errors"
)

// LoadParamsFile reads a TOML file of scalar variable bindings for `.tbn`
// `{{expr}}` substitution (spec.md §6 "--params-file"; SPEC_FULL.md's
// domain stack table wires github.com/BurntSushi/toml to this path).
// Every top-level key must be a number; nested tables are rejected since
// param expressions only ever reference a flat variable namespace.
func LoadParamsFile(path string) (map[string]float64, error) {
	var raw map[string]interface{}
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, tbnerrors.Wrap(tbnerrors.ParseError, tbnComponent, "failed to parse params file", err)
	}

	vars := make(map[string]float64, len(raw))
	for k, v := range raw {
		switch n := v.(type) {
		case int64:
			vars[k] = float64(n)
		case float64:
			vars[k] = n
		default:
			return nil, tbnerrors.New(tbnerrors.ParseError, tbnComponent,
				fmt.Sprintf("params file key %q must be a number, got %T", k, v))
		}
	}
	return vars, nil
}

// MergeParams overlays CLI `--param k=v` flag values (parsed as float64) on
// top of a params file's bindings, the flags taking precedence.
func MergeParams(fromFile map[string]float64, fromFlags map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(fromFile)+len(fromFlags))
	for k, v := range fromFile {
		out[k] = v
	}
	for k, v := range fromFlags {
		out[k] = v
	}
	return out
}
