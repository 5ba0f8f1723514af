package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"bondfuzz/internal/dispatch"
	"bondfuzz/internal/errors"
	"bondfuzz/internal/measure"
	"bondfuzz/internal/transform"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Server      ServerConfig      `yaml:"server"`
	Dispatch    DispatchConfig    `yaml:"dispatch"`
	Measurement MeasurementConfig `yaml:"measurement"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Output      OutputConfig      `yaml:"output"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // postgres or sqlite
	URL    string `yaml:"url"`
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port       string `yaml:"port"` // evaluator server
	ViewerPort string `yaml:"viewer_port"`
	GinMode    string `yaml:"gin_mode"`
}

// DispatchConfig holds evaluator call policy
type DispatchConfig struct {
	Workers      int           `yaml:"workers"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	Backoff      time.Duration `yaml:"backoff"`
	MaxBackoff   time.Duration `yaml:"max_backoff"`
	RateLimit    float64       `yaml:"rate_limit"`
	Burst        int           `yaml:"burst"`
	Cache        bool          `yaml:"cache"`
	EvaluatorURL string        `yaml:"evaluator_url"`
}

// MeasurementConfig holds campaign settings
type MeasurementConfig struct {
	Intensities          []float64     `yaml:"intensities"`
	ChainCount           int           `yaml:"chain_count"`
	ChainMaxLength       int           `yaml:"chain_max_length"`
	ChainSeed            int64         `yaml:"chain_seed"`
	CurvePoints          int           `yaml:"curve_points"`
	CurveScenarios       int           `yaml:"curve_scenarios"`
	AdversarialScenarios int           `yaml:"adversarial_scenarios"`
	AdversarialTolerance float64       `yaml:"adversarial_tolerance"`
	FailureThreshold     float64       `yaml:"failure_threshold"`
	WorstDeviations      int           `yaml:"worst_deviations"`
	Deadline             time.Duration `yaml:"deadline"`
}

// GeneratorConfig holds corpus generation settings
type GeneratorConfig struct {
	N    int   `yaml:"n"`
	Seed int64 `yaml:"seed"`
}

// OutputConfig holds report output settings
type OutputConfig struct {
	Dir     string   `yaml:"dir"`
	Formats []string `yaml:"formats"` // json, md, html, xlsx
}

// Load reads .env (if present), environment variables and the optional YAML campaign
// file named by BONDFUZZ_CONFIG, then validates the result
func Load() (*Config, error) {
	// a missing .env is normal
	_ = godotenv.Load()

	config := &Config{
		Database:    *loadDatabaseConfig(),
		Server:      *loadServerConfig(),
		Dispatch:    *loadDispatchConfig(),
		Measurement: *loadMeasurementConfig(),
		Generator:   *loadGeneratorConfig(),
		Output:      *loadOutputConfig(),
	}

	if path := os.Getenv("BONDFUZZ_CONFIG"); path != "" {
		if err := Overlay(config, path); err != nil {
			return nil, err
		}
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

// Overlay applies the YAML campaign file at path on top of config. Keys absent from the
// file keep their current values.
func Overlay(config *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, errors.Wrapf(err, "read campaign file %s", path))
	}
	if err := yaml.Unmarshal(raw, config); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	return nil
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Driver: getEnvOrDefault("DATABASE_DRIVER", "sqlite"),
		URL:    getEnvOrDefault("DATABASE_URL", "bondfuzz.db"),
	}
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:       getEnvOrDefault("PORT", "8080"),
		ViewerPort: getEnvOrDefault("VIEWER_PORT", "8081"),
		GinMode:    getEnvOrDefault("GIN_MODE", "release"),
	}
}

func loadDispatchConfig() *DispatchConfig {
	d := dispatch.DefaultConfig()
	return &DispatchConfig{
		Workers:      getEnvIntOrDefault("WORKERS", d.Workers),
		Timeout:      getEnvDurationOrDefault("EVALUATOR_TIMEOUT", d.Timeout),
		MaxRetries:   getEnvIntOrDefault("MAX_RETRIES", d.MaxRetries),
		Backoff:      getEnvDurationOrDefault("RETRY_BACKOFF", d.Backoff),
		MaxBackoff:   getEnvDurationOrDefault("RETRY_MAX_BACKOFF", d.MaxBackoff),
		RateLimit:    getEnvFloatOrDefault("RATE_LIMIT", d.RateLimit),
		Burst:        getEnvIntOrDefault("RATE_BURST", d.Burst),
		Cache:        getEnvBoolOrDefault("EVALUATOR_CACHE", d.Cache),
		EvaluatorURL: getEnvOrDefault("EVALUATOR_URL", ""),
	}
}

func loadMeasurementConfig() *MeasurementConfig {
	m := measure.DefaultConfig()
	return &MeasurementConfig{
		Intensities:          getEnvFloatsOrDefault("INTENSITIES", m.Intensities),
		ChainCount:           getEnvIntOrDefault("CHAIN_COUNT", m.Chains.Count),
		ChainMaxLength:       getEnvIntOrDefault("CHAIN_MAX_LENGTH", m.Chains.MaxLength),
		ChainSeed:            int64(getEnvIntOrDefault("CHAIN_SEED", int(m.Chains.Seed))),
		CurvePoints:          getEnvIntOrDefault("CURVE_POINTS", m.CurvePoints),
		CurveScenarios:       getEnvIntOrDefault("CURVE_SCENARIOS", m.CurveScenarios),
		AdversarialScenarios: getEnvIntOrDefault("ADVERSARIAL_SCENARIOS", m.AdversarialScenarios),
		AdversarialTolerance: getEnvFloatOrDefault("ADVERSARIAL_TOLERANCE", m.AdversarialTolerance),
		FailureThreshold:     getEnvFloatOrDefault("FAILURE_THRESHOLD", m.FailureThreshold),
		WorstDeviations:      getEnvIntOrDefault("WORST_DEVIATIONS", m.WorstDeviations),
		Deadline:             getEnvDurationOrDefault("CAMPAIGN_DEADLINE", m.Deadline),
	}
}

func loadGeneratorConfig() *GeneratorConfig {
	return &GeneratorConfig{
		N:    getEnvIntOrDefault("CORPUS_SIZE", 100),
		Seed: int64(getEnvIntOrDefault("SEED", 42)),
	}
}

func loadOutputConfig() *OutputConfig {
	return &OutputConfig{
		Dir:     getEnvOrDefault("OUTPUT_DIR", "reports"),
		Formats: getEnvListOrDefault("OUTPUT_FORMATS", []string{"json", "md"}),
	}
}

func validateConfig(config *Config) error {
	switch config.Database.Driver {
	case "postgres", "sqlite":
	default:
		return errors.ConfigInvalid("database driver must be postgres or sqlite, got " + config.Database.Driver)
	}
	if config.Database.URL == "" {
		return errors.ConfigInvalid("database URL is required")
	}
	if config.Dispatch.Workers <= 0 {
		return errors.ConfigInvalid("workers must be positive")
	}
	if config.Generator.N <= 0 {
		return errors.ConfigInvalid("corpus size must be positive")
	}
	for _, f := range config.Output.Formats {
		switch f {
		case "json", "md", "html", "xlsx":
		default:
			return errors.ConfigInvalid("unknown output format " + f)
		}
	}
	if err := config.Measurement.Engine().Validate(); err != nil {
		return errors.ConfigInvalid(err.Error())
	}
	return nil
}

// Dispatcher converts the section into a dispatcher config
func (c DispatchConfig) Dispatcher() dispatch.Config {
	return dispatch.Config{
		Workers:    c.Workers,
		Timeout:    c.Timeout,
		MaxRetries: c.MaxRetries,
		Backoff:    c.Backoff,
		MaxBackoff: c.MaxBackoff,
		RateLimit:  c.RateLimit,
		Burst:      c.Burst,
		Cache:      c.Cache,
	}
}

// Engine converts the section into a measurement engine config
func (c MeasurementConfig) Engine() measure.Config {
	return measure.Config{
		Intensities: c.Intensities,
		Chains: transform.ChainConfig{
			Count:     c.ChainCount,
			MaxLength: c.ChainMaxLength,
			Palette:   transform.DefaultChainConfig().Palette,
			Seed:      c.ChainSeed,
		},
		CurvePoints:          c.CurvePoints,
		CurveScenarios:       c.CurveScenarios,
		AdversarialScenarios: c.AdversarialScenarios,
		AdversarialTolerance: c.AdversarialTolerance,
		FailureThreshold:     c.FailureThreshold,
		WorstDeviations:      c.WorstDeviations,
		Deadline:             c.Deadline,
	}
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// comma-separated floats; any unparsable entry falls back to the default
func getEnvFloatsOrDefault(key string, defaultValue []float64) []float64 {
	parts := getEnvListOrDefault(key, nil)
	if len(parts) == 0 {
		return defaultValue
	}
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return defaultValue
		}
		out = append(out, f)
	}
	return out
}
