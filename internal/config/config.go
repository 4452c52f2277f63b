// Package config loads run configuration from environment variables with
// defaults, and validates it up front so a misconfigured run fails before
// fetching anything.
package config

import "time"

// Config holds the configuration of a compile run.
type Config struct {
	Source   SourceConfig
	Output   OutputConfig
	Database DatabaseConfig
	Logging  LoggingConfig
}

// SourceConfig selects where the raw snapshot is read from.
type SourceConfig struct {
	// Kind is the object store: local or gcs (default: local)
	Kind string `env:"SOURCE_KIND" default:"local"`

	// Dir is the root directory of the local store
	Dir string `env:"SOURCE_DIR"`

	// Bucket is the GCS bucket holding the LMS and content objects
	Bucket string `env:"SOURCE_BUCKET"`

	// Prefix is the snapshot prefix inside the bucket or directory
	Prefix string `env:"SOURCE_PREFIX"`

	// EventsBucket holds the event exports (default: Bucket)
	EventsBucket string `env:"EVENTS_BUCKET"`

	// EventsPrefix is the prefix of the event exports
	EventsPrefix string `env:"EVENTS_PREFIX"`

	// CredentialsFile is a service account key; empty uses default credentials
	CredentialsFile string `env:"GOOGLE_APPLICATION_CREDENTIALS"`

	// MaxConcurrent bounds parallel object fetches (default: 8)
	MaxConcurrent int `env:"FETCH_MAX_CONCURRENT" default:"8"`

	// Timeout bounds a single list or fetch (default: 2m)
	Timeout time.Duration `env:"FETCH_TIMEOUT" default:"2m"`
}

// OutputConfig holds output locations.
type OutputConfig struct {
	// CSVDir receives one CSV file per entity (required)
	CSVDir string `env:"CSV_OUTPUT_DIR" required:"true"`

	// CohortFile is an optional CSV with a course_id column
	CohortFile string `env:"COHORT_FILE"`
}

// DatabaseConfig enables the PostgreSQL sink when URL is set.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	// Schema receives the entity tables (default: enclave)
	Schema string `env:"DB_SCHEMA" default:"enclave"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// WorkflowConfig holds the settings of the workflow renderer.
type WorkflowConfig struct {
	Logging LoggingConfig

	// OutputBucket receives researcher results (default: raise-data)
	OutputBucket string `env:"WORKFLOW_OUTPUT_BUCKET" default:"raise-data"`

	// ExportImage runs the results export step
	ExportImage string `env:"WORKFLOW_DATA_IMAGE" default:"amazon/aws-cli:latest"`

	// OutputPath is where the rendered YAML is written (default: workflow.yaml)
	OutputPath string `env:"WORKFLOW_OUTPUT_PATH" default:"workflow.yaml"`
}

// Source kinds.
const (
	SourceLocal = "local"
	SourceGCS   = "gcs"
)

// PostgresEnabled reports whether the PostgreSQL sink is configured.
func (c *DatabaseConfig) PostgresEnabled() bool {
	return c.URL != ""
}
