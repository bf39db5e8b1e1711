package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// starterYAMLHeader is prepended to the generated starter file, explaining
// that the authoritative runtime config is the JSON sibling written by
// Save; the YAML file is a human-editable reference a user copies values
// from (`tbnexplorer2 init`'s output).
const starterYAMLHeader = "# tbnexplorer2 starter configuration.\n" +
	"# Edit and copy values of interest into .tbnexplorer2/config.json,\n" +
	"# the file tbnexplorer2 actually reads at startup.\n\n"

// WriteStarterYAML renders cfg as a commented YAML reference document at
// <repoRoot>/.tbnexplorer2/config.yaml, for `tbnexplorer2 init` (spec.md §6;
// SPEC_FULL.md's domain stack table wires gopkg.in/yaml.v3 to this path).
func WriteStarterYAML(repoRoot string, cfg *Config) error {
	dir := filepath.Join(repoRoot, ".tbnexplorer2")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	content := append([]byte(starterYAMLHeader), data...)
	return os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o644)
}
