package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads the compile configuration from environment variables.
// It applies defaults for unset values and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// LoadWorkflow reads the workflow renderer configuration.
func LoadWorkflow() (*WorkflowConfig, error) {
	cfg := &WorkflowConfig{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if errs := cfg.Logging.validate(); len(errs) > 0 {
		return nil, fmt.Errorf("config validation: %w", joinErrors(errs))
	}

	return cfg, nil
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}

		// Try primary env var, then alternate
		value := os.Getenv(envName)
		if value == "" && envAlt != "" {
			value = os.Getenv(envAlt)
		}

		if value == "" {
			if required {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		// Handle time.Duration specially
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Source validation
	switch strings.ToLower(c.Source.Kind) {
	case SourceLocal:
		if c.Source.Dir == "" {
			errs = append(errs, "SOURCE_DIR is required when SOURCE_KIND is local")
		}
	case SourceGCS:
		if c.Source.Bucket == "" {
			errs = append(errs, "SOURCE_BUCKET is required when SOURCE_KIND is gcs")
		}
	default:
		errs = append(errs, fmt.Sprintf("SOURCE_KIND (%q) must be one of: local, gcs", c.Source.Kind))
	}
	if c.Source.MaxConcurrent <= 0 {
		errs = append(errs, "FETCH_MAX_CONCURRENT must be positive")
	}
	if c.Source.Timeout <= 0 {
		errs = append(errs, "FETCH_TIMEOUT must be positive")
	}

	// Database validation
	if c.Database.PostgresEnabled() {
		if c.Database.MaxConns <= 0 {
			errs = append(errs, "DB_MAX_CONNS must be positive")
		}
		if c.Database.MinConns < 0 {
			errs = append(errs, "DB_MIN_CONNS must be non-negative")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
				c.Database.MaxConns, c.Database.MinConns))
		}
		if c.Database.Schema == "" {
			errs = append(errs, "DB_SCHEMA must not be empty")
		}
	}

	errs = append(errs, c.Logging.validate()...)

	if len(errs) > 0 {
		return joinErrors(errs)
	}
	return nil
}

func (l LoggingConfig) validate() []string {
	var errs []string

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(l.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", l.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(l.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", l.Format))
	}
	return errs
}

func joinErrors(errs []string) error {
	return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
}

// EventsBucketOrDefault returns the bucket holding event exports.
func (s *SourceConfig) EventsBucketOrDefault() string {
	if s.EventsBucket != "" {
		return s.EventsBucket
	}
	return s.Bucket
}

// String returns a safe string representation of the config for logging.
// The database URL is masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Source: {Kind: %q, Dir: %q, Bucket: %q, Prefix: %q, EventsBucket: %q, EventsPrefix: %q, MaxConcurrent: %d}, ",
		c.Source.Kind, c.Source.Dir, c.Source.Bucket, c.Source.Prefix,
		c.Source.EventsBucketOrDefault(), c.Source.EventsPrefix, c.Source.MaxConcurrent))
	b.WriteString(fmt.Sprintf("Output: {CSVDir: %q, CohortFile: %q}, ", c.Output.CSVDir, c.Output.CohortFile))
	if c.Database.PostgresEnabled() {
		b.WriteString(fmt.Sprintf("Database: {URL: [MASKED], Schema: %q, MaxConns: %d}, ",
			c.Database.Schema, c.Database.MaxConns))
	} else {
		b.WriteString("Database: {disabled}, ")
	}
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
