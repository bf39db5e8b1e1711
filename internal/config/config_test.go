package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}
	if cfg.Solvers.Backend != "normaliz" {
		t.Errorf("Solvers.Backend = %q, want %q", cfg.Solvers.Backend, "normaliz")
	}
	if cfg.Equilibrium.Backend != "coffee" {
		t.Errorf("Equilibrium.Backend = %q, want %q", cfg.Equilibrium.Backend, "coffee")
	}
	if cfg.Equilibrium.DefaultTempCelsius != 37.0 {
		t.Errorf("Equilibrium.DefaultTempCelsius = %v, want 37.0", cfg.Equilibrium.DefaultTempCelsius)
	}
	if !cfg.Cache.Enabled {
		t.Error("Cache should be enabled by default")
	}
	if cfg.IBOT.WaterMolarity != 55.14 {
		t.Errorf("IBOT.WaterMolarity = %v, want 55.14", cfg.IBOT.WaterMolarity)
	}
	if cfg.Debug.PreserveSolverInputs {
		t.Error("Debug.PreserveSolverInputs should be false by default")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"unsupported version", func(c *Config) { c.Version = 2 }, true},
		{"unsupported solver backend", func(c *Config) { c.Solvers.Backend = "cplex" }, true},
		{"unsupported equilibrium backend", func(c *Config) { c.Equilibrium.Backend = "mfold" }, true},
		{"4ti2 backend is valid", func(c *Config) { c.Solvers.Backend = "4ti2" }, false},
		{"nupack backend is valid", func(c *Config) { c.Equilibrium.Backend = "nupack" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("Validate() should return an error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() returned unexpected error: %v", err)
			}
			if err != nil {
				if _, ok := err.(*ConfigError); !ok {
					t.Errorf("Validate() error type = %T, want *ConfigError", err)
				}
			}
		})
	}
}

func TestConfigErrorError(t *testing.T) {
	err := &ConfigError{Field: "solvers.backend", Message: "must be 'normaliz' or '4ti2'"}
	want := "config error in field 'solvers.backend': must be 'normaliz' or '4ti2'"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestLoadConfigDefault(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := LoadConfig(tmpDir)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1 (default)", cfg.Version)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	dir := filepath.Join(tmpDir, ".tbnexplorer2")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	content := `{
		"version": 1,
		"solvers": {"backend": "4ti2", "fourTi2Dir": "/opt/4ti2"},
		"equilibrium": {"defaultTempCelsius": 25.0}
	}`
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadConfig(tmpDir)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Solvers.Backend != "4ti2" {
		t.Errorf("Solvers.Backend = %q, want %q", cfg.Solvers.Backend, "4ti2")
	}
	if cfg.Solvers.FourTi2Dir != "/opt/4ti2" {
		t.Errorf("Solvers.FourTi2Dir = %q, want %q", cfg.Solvers.FourTi2Dir, "/opt/4ti2")
	}
	if cfg.Equilibrium.DefaultTempCelsius != 25.0 {
		t.Errorf("Equilibrium.DefaultTempCelsius = %v, want 25.0", cfg.Equilibrium.DefaultTempCelsius)
	}
}

func TestConfigSaveAndReload(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Equilibrium.DefaultTempCelsius = 42.0

	if err := cfg.Save(tmpDir); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	configPath := filepath.Join(tmpDir, ".tbnexplorer2", "config.json")
	if _, err := os.Stat(configPath); err != nil {
		t.Fatalf("config file not created: %v", err)
	}

	loaded, err := LoadConfig(tmpDir)
	if err != nil {
		t.Fatalf("LoadConfig() after save error = %v", err)
	}
	if loaded.Equilibrium.DefaultTempCelsius != 42.0 {
		t.Errorf("Equilibrium.DefaultTempCelsius = %v, want 42.0", loaded.Equilibrium.DefaultTempCelsius)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	for _, v := range GetSupportedEnvVars() {
		os.Unsetenv(v)
	}

	t.Setenv("TBNEXPLORER2_SOLVER_BACKEND", "4ti2")
	t.Setenv("TBNEXPLORER2_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	overrides := applyEnvOverrides(cfg)

	if cfg.Solvers.Backend != "4ti2" {
		t.Errorf("Solvers.Backend = %q, want %q", cfg.Solvers.Backend, "4ti2")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if len(overrides) != 2 {
		t.Errorf("len(overrides) = %d, want 2", len(overrides))
	}
}

func TestGetSupportedEnvVars(t *testing.T) {
	vars := GetSupportedEnvVars()
	if len(vars) == 0 {
		t.Fatal("GetSupportedEnvVars() should not be empty")
	}
	found := false
	for _, v := range vars {
		if v == "TBNEXPLORER2_SOLVER_BACKEND" {
			found = true
		}
	}
	if !found {
		t.Error("GetSupportedEnvVars() should include TBNEXPLORER2_SOLVER_BACKEND")
	}
}

func TestLoadConfigWithDetailsUsesDefaults(t *testing.T) {
	tmpDir := t.TempDir()

	result, err := LoadConfigWithDetails(tmpDir)
	if err != nil {
		t.Fatalf("LoadConfigWithDetails() error = %v", err)
	}
	if !result.UsedDefaults {
		t.Error("UsedDefaults should be true when no config file exists")
	}
	if result.ConfigPath != "" {
		t.Errorf("ConfigPath = %q, want empty", result.ConfigPath)
	}
}

func TestLoadConfigWithDetailsFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	dir := filepath.Join(tmpDir, ".tbnexplorer2")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"version":1}`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	result, err := LoadConfigWithDetails(tmpDir)
	if err != nil {
		t.Fatalf("LoadConfigWithDetails() error = %v", err)
	}
	if result.UsedDefaults {
		t.Error("UsedDefaults should be false when config file exists")
	}
	if result.ConfigPath == "" {
		t.Error("ConfigPath should be set when config file exists")
	}
}
