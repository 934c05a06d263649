package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/docintake/template-engine/internal/template"
)

const (
	// Mode constants
	ModeStdio = "stdio"
	ModeMatch = "match"

	// Default values
	DefaultLogLevel       = "info"
	DefaultMinConfidence  = 0.6
	DefaultCacheTTL       = 30 * time.Minute
	DefaultMaxConcurrent  = 4
	DefaultFuzzyThreshold = 0.85
	DefaultDatabasePath   = "templates.db"

	weightSumTolerance = 1e-6
)

// Config holds all configuration for the template matching engine
type Config struct {
	// Execution mode: "stdio" runs the MCP tool server, "match" runs a
	// one-shot match of a single document
	Mode string

	// Storage
	DatabasePath string

	// Matching configuration
	MinConfidence   float64
	WeightFormat    float64
	WeightKeyword   float64
	WeightPattern   float64
	WeightStructure float64
	WeightMetadata  float64
	WeightFilename  float64
	FuzzyMatching   bool
	FuzzyThreshold  float64

	// Resource configuration
	FingerprintCacheTTL time.Duration
	MaxConcurrent       int

	// Application configuration
	Version  string
	LogLevel string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Mode:                ModeStdio,
		DatabasePath:        DefaultDatabasePath,
		MinConfidence:       DefaultMinConfidence,
		WeightFormat:        0.15,
		WeightKeyword:       0.30,
		WeightPattern:       0.20,
		WeightStructure:     0.15,
		WeightMetadata:      0.10,
		WeightFilename:      0.10,
		FuzzyMatching:       false,
		FuzzyThreshold:      DefaultFuzzyThreshold,
		FingerprintCacheTTL: DefaultCacheTTL,
		MaxConcurrent:       DefaultMaxConcurrent,
		Version:             "1.0.0",
		LogLevel:            DefaultLogLevel,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	pflag.Parse()

	populateConfigFromViper(cfg)

	if cfg.DatabasePath != "" && cfg.DatabasePath != ":memory:" {
		if expandedPath, err := filepath.Abs(cfg.DatabasePath); err == nil {
			cfg.DatabasePath = expandedPath
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix("TEMPLATE_ENGINE")
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("db", cfg.DatabasePath)
	viper.SetDefault("minconfidence", cfg.MinConfidence)
	viper.SetDefault("weight.format", cfg.WeightFormat)
	viper.SetDefault("weight.keyword", cfg.WeightKeyword)
	viper.SetDefault("weight.pattern", cfg.WeightPattern)
	viper.SetDefault("weight.structure", cfg.WeightStructure)
	viper.SetDefault("weight.metadata", cfg.WeightMetadata)
	viper.SetDefault("weight.filename", cfg.WeightFilename)
	viper.SetDefault("fuzzy", cfg.FuzzyMatching)
	viper.SetDefault("fuzzythreshold", cfg.FuzzyThreshold)
	viper.SetDefault("cachettl", cfg.FingerprintCacheTTL)
	viper.SetDefault("maxconcurrent", cfg.MaxConcurrent)
	viper.SetDefault("loglevel", cfg.LogLevel)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Execution mode: 'stdio' for the MCP tool server, 'match' for a one-shot match")
	pflag.String("db", cfg.DatabasePath, "Path to the template database (':memory:' for ephemeral)")
	pflag.Float64("minconfidence", cfg.MinConfidence, "Minimum confidence for a template match")
	pflag.Float64("weight-format", cfg.WeightFormat, "Scoring weight of the format factor")
	pflag.Float64("weight-keyword", cfg.WeightKeyword, "Scoring weight of the keyword factor")
	pflag.Float64("weight-pattern", cfg.WeightPattern, "Scoring weight of the pattern factor")
	pflag.Float64("weight-structure", cfg.WeightStructure, "Scoring weight of the structure factor")
	pflag.Float64("weight-metadata", cfg.WeightMetadata, "Scoring weight of the metadata factor")
	pflag.Float64("weight-filename", cfg.WeightFilename, "Scoring weight of the filename factor")
	pflag.Bool("fuzzy", cfg.FuzzyMatching, "Enable fuzzy keyword matching")
	pflag.Float64("fuzzythreshold", cfg.FuzzyThreshold, "Similarity threshold for fuzzy keyword matching")
	pflag.Duration("cachettl", cfg.FingerprintCacheTTL, "Expiry window of the document fingerprint cache")
	pflag.Int("maxconcurrent", cfg.MaxConcurrent, "Maximum concurrent batch operations")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	_ = viper.BindPFlag("mode", pflag.Lookup("mode"))
	_ = viper.BindPFlag("db", pflag.Lookup("db"))
	_ = viper.BindPFlag("minconfidence", pflag.Lookup("minconfidence"))
	_ = viper.BindPFlag("weight.format", pflag.Lookup("weight-format"))
	_ = viper.BindPFlag("weight.keyword", pflag.Lookup("weight-keyword"))
	_ = viper.BindPFlag("weight.pattern", pflag.Lookup("weight-pattern"))
	_ = viper.BindPFlag("weight.structure", pflag.Lookup("weight-structure"))
	_ = viper.BindPFlag("weight.metadata", pflag.Lookup("weight-metadata"))
	_ = viper.BindPFlag("weight.filename", pflag.Lookup("weight-filename"))
	_ = viper.BindPFlag("fuzzy", pflag.Lookup("fuzzy"))
	_ = viper.BindPFlag("fuzzythreshold", pflag.Lookup("fuzzythreshold"))
	_ = viper.BindPFlag("cachettl", pflag.Lookup("cachettl"))
	_ = viper.BindPFlag("maxconcurrent", pflag.Lookup("maxconcurrent"))
	_ = viper.BindPFlag("loglevel", pflag.Lookup("loglevel"))
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nTemplate Engine - document template matching and field extraction\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                  # MCP tool server on stdio (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --db=/var/lib/templates.db       # stdio mode with custom database\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=match report.pdf          # one-shot match of a document\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  TEMPLATE_ENGINE_MODE           Execution mode\n")
		fmt.Fprintf(os.Stderr, "  TEMPLATE_ENGINE_DB             Template database path\n")
		fmt.Fprintf(os.Stderr, "  TEMPLATE_ENGINE_MINCONFIDENCE  Minimum match confidence\n")
		fmt.Fprintf(os.Stderr, "  TEMPLATE_ENGINE_MAXCONCURRENT  Maximum concurrent batch operations\n")
		fmt.Fprintf(os.Stderr, "  TEMPLATE_ENGINE_LOGLEVEL       Log level\n")
	}
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.DatabasePath = viper.GetString("db")
	cfg.MinConfidence = viper.GetFloat64("minconfidence")
	cfg.WeightFormat = viper.GetFloat64("weight.format")
	cfg.WeightKeyword = viper.GetFloat64("weight.keyword")
	cfg.WeightPattern = viper.GetFloat64("weight.pattern")
	cfg.WeightStructure = viper.GetFloat64("weight.structure")
	cfg.WeightMetadata = viper.GetFloat64("weight.metadata")
	cfg.WeightFilename = viper.GetFloat64("weight.filename")
	cfg.FuzzyMatching = viper.GetBool("fuzzy")
	cfg.FuzzyThreshold = viper.GetFloat64("fuzzythreshold")
	cfg.FingerprintCacheTTL = viper.GetDuration("cachettl")
	cfg.MaxConcurrent = viper.GetInt("maxconcurrent")
	cfg.LogLevel = viper.GetString("loglevel")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeMatch {
		return errors.New("mode must be either 'stdio' or 'match'")
	}

	if c.DatabasePath == "" {
		return errors.New("database path cannot be empty")
	}

	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return errors.New("minimum confidence must be between 0.0 and 1.0")
	}

	sum := c.WeightFormat + c.WeightKeyword + c.WeightPattern +
		c.WeightStructure + c.WeightMetadata + c.WeightFilename
	if math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("scoring weights must sum to 1.0, got %.4f", sum)
	}

	if c.FuzzyThreshold <= 0 || c.FuzzyThreshold > 1 {
		return errors.New("fuzzy threshold must be in (0.0, 1.0]")
	}

	if c.MaxConcurrent < 1 {
		return errors.New("maximum concurrency must be at least 1")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// ScoreWeights returns the configured scoring weights
func (c *Config) ScoreWeights() template.ScoreWeights {
	return template.ScoreWeights{
		Format:    c.WeightFormat,
		Keyword:   c.WeightKeyword,
		Pattern:   c.WeightPattern,
		Structure: c.WeightStructure,
		Metadata:  c.WeightMetadata,
		Filename:  c.WeightFilename,
	}
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// IsStdioMode returns true if the engine runs as an MCP stdio server
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, DB: %s, MinConfidence: %.2f, MaxConcurrent: %d, LogLevel: %s}",
		c.Mode, c.DatabasePath, c.MinConfidence, c.MaxConcurrent, c.LogLevel)
}
