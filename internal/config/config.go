// Package config loads tbnexplorer2's run configuration: solver binary
// locations, cache settings, and default thermodynamic parameters. Values
// are resolved with precedence flag > env > config file > built-in default
// (the teacher's viper-based config loading, generalized to this project's
// settings).
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config is tbnexplorer2's complete run configuration.
type Config struct {
	Version int `json:"version" mapstructure:"version"`

	Solvers     SolversConfig     `json:"solvers" mapstructure:"solvers"`
	Equilibrium EquilibriumConfig `json:"equilibrium" mapstructure:"equilibrium"`
	Cache       CacheConfig       `json:"cache" mapstructure:"cache"`
	IBOT        IBOTConfig        `json:"ibot" mapstructure:"ibot"`
	Debug       DebugConfig       `json:"debug" mapstructure:"debug"`
	Logging     LoggingConfig     `json:"logging" mapstructure:"logging"`
}

// SolversConfig locates the external lattice-point solver binaries.
type SolversConfig struct {
	Backend        string `json:"backend" mapstructure:"backend"` // "normaliz" or "4ti2"
	NormalizPath   string `json:"normalizPath" mapstructure:"normalizPath"`
	FourTi2Dir     string `json:"fourTi2Dir" mapstructure:"fourTi2Dir"` // install dir containing bin/hilbert, bin/zsolve
	TimeoutSeconds int    `json:"timeoutSeconds" mapstructure:"timeoutSeconds"`
}

// EquilibriumConfig locates the concentration-solver binaries and sets
// default thermodynamic parameters for the equilibrium bridge (C5).
type EquilibriumConfig struct {
	Backend            string  `json:"backend" mapstructure:"backend"` // "coffee" or "nupack"
	CoffeeCLIPath      string  `json:"coffeeCliPath" mapstructure:"coffeeCliPath"`
	NupackPath         string  `json:"nupackPath" mapstructure:"nupackPath"`
	DefaultTempCelsius float64 `json:"defaultTempCelsius" mapstructure:"defaultTempCelsius"`
	TimeoutSeconds     int     `json:"timeoutSeconds" mapstructure:"timeoutSeconds"`
}

// CacheConfig controls the artifact cache (C8).
type CacheConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Path     string `json:"path" mapstructure:"path"`
	TtlHours int    `json:"ttlHours" mapstructure:"ttlHours"`
}

// IBOTConfig holds scheduler defaults for the IBOT off-target balancer (C7).
type IBOTConfig struct {
	MaxIterations    int     `json:"maxIterations" mapstructure:"maxIterations"`
	WaterMolarity    float64 `json:"waterMolarity" mapstructure:"waterMolarity"`
	DefaultUnit      string  `json:"defaultUnit" mapstructure:"defaultUnit"`
}

// DebugConfig controls solver-input preservation for troubleshooting.
type DebugConfig struct {
	PreserveSolverInputs bool `json:"preserveSolverInputs" mapstructure:"preserveSolverInputs"`
}

// LoggingConfig matches the structured logger's own Config fields.
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	Format string `json:"format" mapstructure:"format"`
}

// DefaultConfig returns tbnexplorer2's built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Solvers: SolversConfig{
			Backend:        "normaliz",
			NormalizPath:   "normaliz",
			FourTi2Dir:     "",
			TimeoutSeconds: 300,
		},
		Equilibrium: EquilibriumConfig{
			Backend:            "coffee",
			CoffeeCLIPath:      "coffee-cli",
			NupackPath:         "nupack",
			DefaultTempCelsius: 37.0,
			TimeoutSeconds:     600,
		},
		Cache: CacheConfig{
			Enabled:  true,
			Path:     ".tbnexplorer2/cache.db",
			TtlHours: 0, // 0 means never expire; entries are evicted only by explicit clear
		},
		IBOT: IBOTConfig{
			MaxIterations: 10000,
			WaterMolarity: 55.14,
			DefaultUnit:   "M",
		},
		Debug: DebugConfig{
			PreserveSolverInputs: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "human",
		},
	}
}

// EnvOverride records one environment-variable override applied on top of
// a loaded config, surfaced so callers can report where a setting came from.
type EnvOverride struct {
	EnvVar    string `json:"envVar"`
	Path      string `json:"path"`
	FromValue string `json:"fromValue"`
}

// LoadResult bundles a resolved Config with provenance information.
type LoadResult struct {
	Config       *Config
	ConfigPath   string
	UsedDefaults bool
	EnvOverrides []EnvOverride
}

// LoadConfig loads configuration from <repoRoot>/.tbnexplorer2/config.json,
// falling back to DefaultConfig when absent.
func LoadConfig(repoRoot string) (*Config, error) {
	result, err := LoadConfigWithDetails(repoRoot)
	if err != nil {
		return nil, err
	}
	return result.Config, nil
}

// LoadConfigWithDetails loads configuration and additionally reports which
// environment variables overrode which settings (flag > env > config file
// > built-in default; flags are applied by callers after this returns).
func LoadConfigWithDetails(repoRoot string) (*LoadResult, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(repoRoot, ".tbnexplorer2"))

	usedDefaults := false
	cfg := DefaultConfig()
	configPath := ""

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		usedDefaults = true
	} else {
		if err := v.Unmarshal(cfg); err != nil {
			return nil, err
		}
		configPath = v.ConfigFileUsed()
	}

	overrides := applyEnvOverrides(cfg)

	return &LoadResult{
		Config:       cfg,
		ConfigPath:   configPath,
		UsedDefaults: usedDefaults,
		EnvOverrides: overrides,
	}, nil
}

func applyEnvOverrides(cfg *Config) []EnvOverride {
	var overrides []EnvOverride
	apply := func(envVar, path string, set func(string)) {
		if val, ok := os.LookupEnv(envVar); ok {
			set(val)
			overrides = append(overrides, EnvOverride{EnvVar: envVar, Path: path, FromValue: val})
		}
	}

	apply("TBNEXPLORER2_SOLVER_BACKEND", "solvers.backend", func(v string) { cfg.Solvers.Backend = v })
	apply("TBNEXPLORER2_NORMALIZ_PATH", "solvers.normalizPath", func(v string) { cfg.Solvers.NormalizPath = v })
	apply("TBNEXPLORER2_4TI2_DIR", "solvers.fourTi2Dir", func(v string) { cfg.Solvers.FourTi2Dir = v })
	apply("TBNEXPLORER2_EQUILIBRIUM_BACKEND", "equilibrium.backend", func(v string) { cfg.Equilibrium.Backend = v })
	apply("TBNEXPLORER2_COFFEE_CLI_PATH", "equilibrium.coffeeCliPath", func(v string) { cfg.Equilibrium.CoffeeCLIPath = v })
	apply("TBNEXPLORER2_NUPACK_PATH", "equilibrium.nupackPath", func(v string) { cfg.Equilibrium.NupackPath = v })
	apply("TBNEXPLORER2_CACHE_PATH", "cache.path", func(v string) { cfg.Cache.Path = v })
	apply("TBNEXPLORER2_LOG_LEVEL", "logging.level", func(v string) { cfg.Logging.Level = v })
	apply("TBNEXPLORER2_LOG_FORMAT", "logging.format", func(v string) { cfg.Logging.Format = v })

	return overrides
}

// GetSupportedEnvVars lists every environment variable applyEnvOverrides
// recognizes, for `tbnexplorer2 config env`-style help output.
func GetSupportedEnvVars() []string {
	return []string{
		"TBNEXPLORER2_SOLVER_BACKEND",
		"TBNEXPLORER2_NORMALIZ_PATH",
		"TBNEXPLORER2_4TI2_DIR",
		"TBNEXPLORER2_EQUILIBRIUM_BACKEND",
		"TBNEXPLORER2_COFFEE_CLI_PATH",
		"TBNEXPLORER2_NUPACK_PATH",
		"TBNEXPLORER2_CACHE_PATH",
		"TBNEXPLORER2_LOG_LEVEL",
		"TBNEXPLORER2_LOG_FORMAT",
	}
}

// Save writes the configuration to <repoRoot>/.tbnexplorer2/config.json.
func (c *Config) Save(repoRoot string) error {
	dir := filepath.Join(repoRoot, ".tbnexplorer2")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0o644)
}

// Validate checks basic configuration invariants.
func (c *Config) Validate() error {
	if c.Version != 1 {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	switch c.Solvers.Backend {
	case "normaliz", "4ti2":
	default:
		return &ConfigError{Field: "solvers.backend", Message: "must be 'normaliz' or '4ti2'"}
	}
	switch c.Equilibrium.Backend {
	case "coffee", "nupack":
	default:
		return &ConfigError{Field: "equilibrium.backend", Message: "must be 'coffee' or 'nupack'"}
	}
	return nil
}

// ConfigError reports an invalid configuration field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
