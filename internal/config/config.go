package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"exocompare/domain/compare"
	"exocompare/internal/analysis"
	"exocompare/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Tap         TapConfig         `toml:"tap" yaml:"tap" json:"tap"`
	Filters     FiltersConfig     `toml:"filters" yaml:"filters" json:"filters"`
	Columns     ColumnsConfig     `toml:"columns" yaml:"columns" json:"columns"`
	Metrics     ListConfig        `toml:"metrics" yaml:"metrics" json:"metrics"`
	Units       map[string]string `toml:"units" yaml:"units" json:"units"`
	MethodOrder ListConfig        `toml:"method_order" yaml:"method_order" json:"method_order"`
	Bootstrap   BootstrapConfig   `toml:"bootstrap" yaml:"bootstrap" json:"bootstrap"`
	Analysis    AnalysisConfig    `toml:"analysis" yaml:"analysis" json:"analysis"`
	Thresholds  ThresholdsConfig  `toml:"thresholds" yaml:"thresholds" json:"thresholds"`
	Outputs     OutputsConfig     `toml:"outputs" yaml:"outputs" json:"outputs"`
	Warehouse   WarehouseConfig   `toml:"warehouse" yaml:"warehouse" json:"-"`
	Server      ServerConfig      `toml:"server" yaml:"server" json:"-"`
	Workers     int               `toml:"workers" yaml:"workers" json:"-" validate:"gte=0"`
}

// TapConfig points at the archive's TAP service
type TapConfig struct {
	Endpoint string `toml:"endpoint" yaml:"endpoint" json:"endpoint" validate:"required,url"`
	Table    string `toml:"table" yaml:"table" json:"table" validate:"required"`
	Format   string `toml:"format" yaml:"format" json:"fmt" validate:"oneof=csv"`
	Mode     string `toml:"mode" yaml:"mode" json:"mode" validate:"oneof=sync"`
	// TimeoutSeconds bounds each HTTP attempt.
	TimeoutSeconds int `toml:"timeout_seconds" yaml:"timeout_seconds" json:"-" validate:"gte=0"`
}

// Timeout returns the per-attempt HTTP timeout
func (t TapConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// FiltersConfig restricts which discovery methods are fetched and kept
type FiltersConfig struct {
	DiscoveryMethodIn []string `toml:"discoverymethod_in" yaml:"discoverymethod_in" json:"discoverymethod_in" validate:"min=1,dive,required"`
}

// ColumnsConfig lists the columns requested from the archive
type ColumnsConfig struct {
	Used []string `toml:"used" yaml:"used" json:"used" validate:"min=1,dive,required"`
}

// ListConfig wraps an ordered list so files can write `[metrics] list = [...]`.
type ListConfig struct {
	List []string `toml:"list" yaml:"list" json:"list" validate:"min=1,dive,required"`
}

// BootstrapConfig holds resampling settings
type BootstrapConfig struct {
	Seed           int64   `toml:"seed" yaml:"seed" json:"seed"`
	NResamples     int     `toml:"n_resamples" yaml:"n_resamples" json:"n_resamples" validate:"gt=0"`
	CI             float64 `toml:"ci" yaml:"ci" json:"ci" validate:"gt=0,lt=1"`
	QuantileMethod string  `toml:"quantile_method" yaml:"quantile_method" json:"quantile_method" validate:"required"`
}

// AnalysisConfig holds the baseline and dispersion settings
type AnalysisConfig struct {
	BaselineMethod string `toml:"baseline_method" yaml:"baseline_method" json:"baseline_method" validate:"required"`
	StdDDOF        int    `toml:"std_ddof" yaml:"std_ddof" json:"std_ddof" validate:"gte=0"`
}

// ThresholdsConfig holds group size thresholds
type ThresholdsConfig struct {
	MinGroupSize      int `toml:"min_group_size" yaml:"min_group_size" json:"min_group_size" validate:"gte=0"`
	MinGroupSizeForCI int `toml:"min_group_size_for_ci" yaml:"min_group_size_for_ci" json:"min_group_size_for_ci" validate:"gt=0"`
}

// OutputsConfig holds output locations relative to the project root
type OutputsConfig struct {
	DataRawDir    string `toml:"data_raw_dir" yaml:"data_raw_dir" json:"data_raw_dir" validate:"required"`
	DataCleanDir  string `toml:"data_clean_dir" yaml:"data_clean_dir" json:"data_clean_dir" validate:"required"`
	ArtifactsDir  string `toml:"artifacts_dir" yaml:"artifacts_dir" json:"artifacts_dir" validate:"required"`
	FiguresDir    string `toml:"figures_dir" yaml:"figures_dir" json:"figures_dir" validate:"required"`
	// WarehousePath is the SQLite file used when no DATABASE_URL is set.
	WarehousePath string `toml:"warehouse_path" yaml:"warehouse_path" json:"warehouse_path" validate:"required"`
}

// WarehouseConfig holds the optional Postgres connection; without it the
// SQLite file at outputs.warehouse_path is used
type WarehouseConfig struct {
	URL string `toml:"url" yaml:"url"`
}

// Enabled reports whether a warehouse connection is configured
func (w WarehouseConfig) Enabled() bool {
	return w.URL != ""
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string `toml:"port" yaml:"port" validate:"required"`
	GinMode string `toml:"gin_mode" yaml:"gin_mode"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Tap: TapConfig{
			Endpoint:       "https://exoplanetarchive.ipac.caltech.edu/TAP",
			Table:          "pscomppars",
			Format:         "csv",
			Mode:           "sync",
			TimeoutSeconds: 60,
		},
		Filters: FiltersConfig{
			DiscoveryMethodIn: []string{"Transit", "Radial Velocity", "Imaging", "Microlensing"},
		},
		Columns: ColumnsConfig{
			Used: []string{"pl_name", "discoverymethod", "disc_year", "pl_rade", "pl_orbper", "pl_bmasse", "pl_bmassprov"},
		},
		Metrics: ListConfig{List: []string{"pl_rade", "pl_orbper", "pl_bmasse"}},
		Units: map[string]string{
			"pl_rade":   "Earth radii",
			"pl_orbper": "days",
			"pl_bmasse": "Earth masses",
		},
		MethodOrder: ListConfig{List: []string{"Transit", "Radial Velocity", "Imaging", "Microlensing"}},
		Bootstrap: BootstrapConfig{
			Seed:           18790314,
			NResamples:     10000,
			CI:             0.95,
			QuantileMethod: string(compare.QuantileLinear),
		},
		Analysis: AnalysisConfig{
			BaselineMethod: "Transit",
			StdDDOF:        1,
		},
		Thresholds: ThresholdsConfig{
			MinGroupSize:      2,
			MinGroupSizeForCI: 20,
		},
		Outputs: OutputsConfig{
			DataRawDir:    "data/raw",
			DataCleanDir:  "data/clean",
			ArtifactsDir:  "artifacts",
			FiguresDir:    "artifacts/figures",
			WarehousePath: "warehouse/warehouse.db",
		},
		Server: ServerConfig{
			Port:    "8080",
			GinMode: "release",
		},
		Workers: 1,
	}
}

// Load builds the configuration from defaults, an optional TOML or YAML
// override file and environment variables, in that order, and validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, errors.Wrapf(err, "failed to load configuration file %s", path)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, errors.Wrap(err, "failed to apply environment overrides")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, c)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		return errors.ConfigInvalid(fmt.Sprintf("unsupported config format %q (want .toml, .yaml or .yml)", filepath.Ext(path)))
	}
	if err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var err error
	if c.Bootstrap.Seed, err = getEnvInt64OrDefault("EXO_SEED", c.Bootstrap.Seed); err != nil {
		return err
	}
	if c.Bootstrap.NResamples, err = getEnvIntOrDefault("EXO_RESAMPLES", c.Bootstrap.NResamples); err != nil {
		return err
	}
	if c.Bootstrap.CI, err = getEnvFloatOrDefault("EXO_CI", c.Bootstrap.CI); err != nil {
		return err
	}
	if c.Workers, err = getEnvIntOrDefault("EXO_WORKERS", c.Workers); err != nil {
		return err
	}
	c.Warehouse.URL = getEnvOrDefault("DATABASE_URL", c.Warehouse.URL)
	c.Server.Port = getEnvOrDefault("PORT", c.Server.Port)
	c.Server.GinMode = getEnvOrDefault("GIN_MODE", c.Server.GinMode)
	return nil
}

var validate = validator.New()

// Validate checks struct constraints and the cross-field rules the engine
// relies on. Every problem is reported at once.
func (c *Config) Validate() error {
	var problems []error
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				problems = append(problems, fmt.Errorf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
		} else {
			problems = append(problems, err)
		}
	}
	if !containsString(c.MethodOrder.List, c.Analysis.BaselineMethod) {
		problems = append(problems, fmt.Errorf("analysis.baseline_method %q is not in method_order", c.Analysis.BaselineMethod))
	}
	if _, err := compare.ParseQuantileMethod(c.Bootstrap.QuantileMethod); err != nil {
		problems = append(problems, err)
	}
	return errors.ConfigProblems(problems)
}

// EngineConfig projects the settings the comparison engine consumes.
func (c *Config) EngineConfig() analysis.Config {
	return analysis.Config{
		BaselineMethod: c.Analysis.BaselineMethod,
		MethodOrder:    append([]string(nil), c.MethodOrder.List...),
		Metrics:        append([]string(nil), c.Metrics.List...),
		Units:          c.Units,
		StdDDOF:        c.Analysis.StdDDOF,
		Bootstrap: compare.BootstrapConfig{
			Seed:              c.Bootstrap.Seed,
			Resamples:         c.Bootstrap.NResamples,
			CI:                c.Bootstrap.CI,
			QuantileMethod:    compare.QuantileMethod(c.Bootstrap.QuantileMethod),
			MinGroupSizeForCI: c.Thresholds.MinGroupSizeForCI,
		},
		Workers: c.Workers,
	}
}

// SchemaHash fingerprints the public configuration as sha256 over canonical
// JSON (sorted keys, compact separators). Connection settings are excluded.
func (c *Config) SchemaHash() (string, error) {
	public, err := c.PublicMap()
	if err != nil {
		return "", err
	}
	canonical, err := json.Marshal(public)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

// PublicMap returns the configuration as generic JSON values, for hashing
// and for embedding in run logs.
func (c *Config) PublicMap() (map[string]interface{}, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) (int, error) {
	if value := os.Getenv(key); value != "" {
		intValue, err := strconv.Atoi(value)
		if err != nil {
			return 0, errors.ConfigInvalid(fmt.Sprintf("%s must be an integer, got %q", key, value))
		}
		return intValue, nil
	}
	return defaultValue, nil
}

func getEnvInt64OrDefault(key string, defaultValue int64) (int64, error) {
	if value := os.Getenv(key); value != "" {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, errors.ConfigInvalid(fmt.Sprintf("%s must be an integer, got %q", key, value))
		}
		return intValue, nil
	}
	return defaultValue, nil
}

func getEnvFloatOrDefault(key string, defaultValue float64) (float64, error) {
	if value := os.Getenv(key); value != "" {
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, errors.ConfigInvalid(fmt.Sprintf("%s must be a number, got %q", key, value))
		}
		return floatValue, nil
	}
	return defaultValue, nil
}
