// Package config defines the pipeline configuration and its loader.
package config

import (
	"fmt"
	"time"
)

// EmbeddedConfig holds the content of the embedded application.yaml.
type EmbeddedConfig []byte

// Config is the root configuration.
type Config struct {
	Arbo ArboConfig `yaml:"arbo"`
}

// ArboConfig groups every setting of the pipeline.
type ArboConfig struct {
	System       SystemConfig       `yaml:"system"`
	Database     DatabaseConfig     `yaml:"database"`
	Batch        BatchConfig        `yaml:"batch"`
	Retry        RetryConfig        `yaml:"retry"`
	Sources      SourcesConfig      `yaml:"sources"`
	Locations    []string           `yaml:"locations"`
	Jobs         JobsConfig         `yaml:"jobs"`
	Model        ModelConfig        `yaml:"model"`
	Export       ExportConfig       `yaml:"export"`
	Notification NotificationConfig `yaml:"notification"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Tracing      TracingConfig      `yaml:"tracing"`
	API          APIConfig          `yaml:"api"`
}

// SystemConfig holds process-wide settings.
type SystemConfig struct {
	Timezone string        `yaml:"timezone"`
	Logging  LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig describes the relational store.
type DatabaseConfig struct {
	Type     string     `yaml:"type"` // postgres, mysql or sqlite
	Host     string     `yaml:"host"`
	Port     int        `yaml:"port"`
	Database string     `yaml:"database"`
	User     string     `yaml:"user"`
	Password string     `yaml:"password"`
	Sslmode  string     `yaml:"sslmode"`
	Path     string     `yaml:"path"` // sqlite file path or ":memory:"
	LogLevel string     `yaml:"log_level"`
	Pool     PoolConfig `yaml:"pool"`
}

// PoolConfig holds *sql.DB pool settings.
type PoolConfig struct {
	MaxOpenConns           int `yaml:"max_open_conns"`
	MaxIdleConns           int `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes"`
}

// BatchConfig holds merge and job execution settings.
type BatchConfig struct {
	ChunkSize      int           `yaml:"chunk_size"`
	FloatTolerance float64       `yaml:"float_tolerance"`
	WorkerCount    int           `yaml:"worker_count"`
	Timeout        time.Duration `yaml:"timeout"`
	// SkipLimit caps malformed records dropped per location and pipeline. Zero is unlimited.
	SkipLimit int `yaml:"skip_limit"`
}

// RetryConfig configures the exponential backoff used by source clients.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	Factor          float64       `yaml:"factor"`
	Jitter          float64       `yaml:"jitter"`
}

// SourcesConfig holds the external data providers.
type SourcesConfig struct {
	OpenMeteo  OpenMeteoConfig  `yaml:"open_meteo"`
	InfoDengue InfoDengueConfig `yaml:"info_dengue"`
}

// OpenMeteoConfig configures the climate provider.
type OpenMeteoConfig struct {
	ForecastURL       string        `yaml:"forecast_url"`
	ArchiveURL        string        `yaml:"archive_url"`
	Timezone          string        `yaml:"timezone"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	MaxResponseBytes  int64         `yaml:"max_response_bytes"`
	WindowDays        int           `yaml:"window_days"`
}

// InfoDengueConfig configures the epidemiological surveillance provider.
type InfoDengueConfig struct {
	URL               string        `yaml:"url"`
	Diseases          []string      `yaml:"diseases"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	MaxResponseBytes  int64         `yaml:"max_response_bytes"`
}

// JobsConfig holds per-job settings.
type JobsConfig struct {
	Climate         ClimateJobConfig    `yaml:"climate"`
	Epidemiological EpiJobConfig        `yaml:"epidemiological"`
	Backfill        BackfillJobConfig   `yaml:"backfill"`
	Prediction      PredictionJobConfig `yaml:"prediction"`
}

// ClimateJobConfig configures the daily climate collection.
type ClimateJobConfig struct {
	DaysBack int `yaml:"days_back"`
}

// EpiJobConfig configures the epidemiological collection.
type EpiJobConfig struct {
	WeeksBack int `yaml:"weeks_back"`
}

// BackfillJobConfig configures the historical backfill.
type BackfillJobConfig struct {
	StartDate string `yaml:"start_date"` // YYYY-MM-DD
	Resume    bool   `yaml:"resume"`
}

// PredictionJobConfig configures the monthly prediction.
type PredictionJobConfig struct {
	LookbackMonths int    `yaml:"lookback_months"`
	TargetPeriod   string `yaml:"target_period"` // YYYY-MM; empty means the month after the current one
}

// ModelConfig selects the prediction function.
type ModelConfig struct {
	Type    string                 `yaml:"type"` // baseline or remote
	URL     string                 `yaml:"url"`
	Version string                 `yaml:"version"`
	Timeout time.Duration          `yaml:"timeout"`
	Params  map[string]interface{} `yaml:"params"`
}

// ExportConfig configures the Parquet export of predictions.
type ExportConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Prefix      string        `yaml:"prefix"`
	Compression string        `yaml:"compression"`
	Storage     StorageConfig `yaml:"storage"`
}

// StorageConfig describes an object storage target.
type StorageConfig struct {
	Type            string `yaml:"type"` // local or gcs
	BaseDir         string `yaml:"base_dir"`
	Bucket          string `yaml:"bucket"`
	CredentialsFile string `yaml:"credentials_file"`
}

// NotificationConfig configures job completion notifications.
type NotificationConfig struct {
	Kafka KafkaConfig `yaml:"kafka"`
}

// KafkaConfig configures the Kafka notifier. Empty brokers disable it.
type KafkaConfig struct {
	Brokers []string      `yaml:"brokers"`
	Topic   string        `yaml:"topic"`
	Timeout time.Duration `yaml:"timeout"`
}

// MetricsConfig configures Prometheus reporting.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	// AsyncBufferSize queues measurements off the worker goroutines. Zero records synchronously.
	AsyncBufferSize int `yaml:"async_buffer_size"`
}

// TracingConfig configures OpenTelemetry tracing. Empty endpoint disables export.
type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	Protocol    string  `yaml:"protocol"` // http or grpc
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
	ServiceName string  `yaml:"service_name"`
}

// APIConfig configures the read API.
type APIConfig struct {
	ListenAddr   string `yaml:"listen_addr"`
	DefaultLimit int    `yaml:"default_limit"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Arbo: ArboConfig{
			System: SystemConfig{
				Timezone: "America/Sao_Paulo",
				Logging:  LoggingConfig{Level: "INFO", Format: "json"},
			},
			Database: DatabaseConfig{
				Type:     "sqlite",
				Path:     "arbovirus.db",
				Sslmode:  "disable",
				LogLevel: "WARN",
				Pool:     PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetimeMinutes: 30},
			},
			Batch: BatchConfig{
				ChunkSize:      100,
				FloatTolerance: 1e-6,
				WorkerCount:    4,
				Timeout:        30 * time.Minute,
			},
			Retry: RetryConfig{
				MaxAttempts:     3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     10 * time.Second,
				Factor:          2.0,
				Jitter:          0.1,
			},
			Sources: SourcesConfig{
				OpenMeteo: OpenMeteoConfig{
					ForecastURL:       "https://api.open-meteo.com/v1/forecast",
					ArchiveURL:        "https://archive-api.open-meteo.com/v1/archive",
					Timezone:          "America/Sao_Paulo",
					Timeout:           30 * time.Second,
					RequestsPerSecond: 5,
					MaxResponseBytes:  32 << 20,
					WindowDays:        366,
				},
				InfoDengue: InfoDengueConfig{
					URL:               "https://info.dengue.mat.br/api/alertcity",
					Diseases:          []string{"dengue", "chikungunya", "zika"},
					Timeout:           30 * time.Second,
					RequestsPerSecond: 2,
					MaxResponseBytes:  32 << 20,
				},
			},
			Jobs: JobsConfig{
				Climate:         ClimateJobConfig{DaysBack: 7},
				Epidemiological: EpiJobConfig{WeeksBack: 4},
				Backfill:        BackfillJobConfig{StartDate: "2020-01-01", Resume: true},
				Prediction:      PredictionJobConfig{LookbackMonths: 12},
			},
			Model: ModelConfig{Type: "baseline", Timeout: 30 * time.Second},
			Export: ExportConfig{
				Prefix:      "predictions",
				Compression: "SNAPPY",
				Storage:     StorageConfig{Type: "local", BaseDir: "exports"},
			},
			Notification: NotificationConfig{
				Kafka: KafkaConfig{Topic: "arbovirus.job-runs", Timeout: 10 * time.Second},
			},
			Metrics: MetricsConfig{AsyncBufferSize: 256},
			Tracing: TracingConfig{Protocol: "http", SampleRatio: 1.0, ServiceName: "arbovirus-pipeline"},
			API:     APIConfig{ListenAddr: ":8080", DefaultLimit: 50},
		},
	}
}

// Validate checks settings that would otherwise fail deep inside a job.
func (c *Config) Validate() error {
	a := c.Arbo
	switch a.Database.Type {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database type %q", a.Database.Type)
	}
	if a.Batch.ChunkSize <= 0 {
		return fmt.Errorf("batch.chunk_size must be positive, got %d", a.Batch.ChunkSize)
	}
	if a.Batch.WorkerCount <= 0 {
		return fmt.Errorf("batch.worker_count must be positive, got %d", a.Batch.WorkerCount)
	}
	if a.Batch.FloatTolerance < 0 {
		return fmt.Errorf("batch.float_tolerance must not be negative")
	}
	if a.Retry.MaxAttempts < 0 {
		return fmt.Errorf("retry.max_attempts must not be negative")
	}
	if a.Jobs.Prediction.LookbackMonths <= 0 {
		return fmt.Errorf("jobs.prediction.lookback_months must be positive")
	}
	switch a.Model.Type {
	case "baseline":
	case "remote":
		if a.Model.URL == "" {
			return fmt.Errorf("model.url is required for the remote model")
		}
	default:
		return fmt.Errorf("unsupported model type %q", a.Model.Type)
	}
	return nil
}
