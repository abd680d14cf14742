/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BackendBigQuery selects the BigQuery backend. Any other backend value names a
// SQL dialect registered with the database package.
const BackendBigQuery = "bigquery"

// SupportedBackends lists every accepted value of the backend setting.
var SupportedBackends = []string{
	BackendBigQuery,
	"postgres", "cloudsqlpostgres",
	"mysql", "cloudsqlmysql",
	"sqlserver", "cloudsqlsqlserver",
}

// Config holds all configuration for the application
type Config struct {
	Backend  string         `mapstructure:"backend"`
	Database DatabaseConfig `mapstructure:"database"`
	BigQuery BigQueryConfig `mapstructure:"bigquery"`
	Profiler ProfilerConfig `mapstructure:"profiler"`
	GenAI    GenAIConfig    `mapstructure:"genai"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Dialect                        string `mapstructure:"dialect"`
	Host                           string `mapstructure:"host"`
	Port                           int    `mapstructure:"port"`
	User                           string `mapstructure:"user"`
	Password                       string `mapstructure:"password"`
	DBName                         string `mapstructure:"name"`
	SSLMode                        string `mapstructure:"sslmode"`
	CloudSQLInstanceConnectionName string `mapstructure:"cloudsql_instance_connection_name"`
	UsePrivateIP                   bool   `mapstructure:"use_private_ip"`
}

// BigQueryConfig holds the BigQuery client settings.
type BigQueryConfig struct {
	Project string `mapstructure:"project"`
}

// ProfilerConfig bounds the sampling work done per table.
type ProfilerConfig struct {
	MaxRows       int     `mapstructure:"max_rows"`
	MaxExamples   int     `mapstructure:"max_examples"`
	SamplePercent float64 `mapstructure:"sample_percent"`
	Concurrency   int     `mapstructure:"concurrency"`
}

// GenAIConfig configures the Gemini client.
type GenAIConfig struct {
	APIKey      string `mapstructure:"api_key"`
	Model       string `mapstructure:"model"`
	MaxAttempts int    `mapstructure:"max_attempts"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LogConfig selects the log level and encoding ("json" or "console").
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default configuration values.
const (
	DefaultModel         = "gemini-2.5-pro"
	DefaultMaxRows       = 50
	DefaultMaxExamples   = 10
	DefaultSamplePercent = 10.0
	DefaultConcurrency   = 4
	DefaultMaxAttempts   = 3
	DefaultServerPort    = 8080
)

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"backend":                           "backend",
	"host":                              "database.host",
	"port":                              "database.port",
	"username":                          "database.user",
	"password":                          "database.password",
	"database":                          "database.name",
	"sslmode":                           "database.sslmode",
	"cloudsql-instance-connection-name": "database.cloudsql_instance_connection_name",
	"cloudsql-use-private-ip":           "database.use_private_ip",
	"project":                           "bigquery.project",
	"max-rows":                          "profiler.max_rows",
	"max-examples":                      "profiler.max_examples",
	"sample-percent":                    "profiler.sample_percent",
	"concurrency":                       "profiler.concurrency",
	"gemini-api-key":                    "genai.api_key",
	"model":                             "genai.model",
	"max-attempts":                      "genai.max_attempts",
	"listen-port":                       "server.port",
	"log-level":                         "log.level",
	"log-format":                        "log.format",
}

// Load reads configuration from defaults, an optional config file, PROFILER_*
// environment variables and the given flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("PROFILER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("genai.api_key", "PROFILER_GENAI_API_KEY", "GEMINI_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind api key env: %w", err)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	if cfg.Backend != BackendBigQuery {
		cfg.Database.Dialect = cfg.Backend
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", BackendBigQuery)

	v.SetDefault("database.dialect", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 0)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.cloudsql_instance_connection_name", "")
	v.SetDefault("database.use_private_ip", false)

	v.SetDefault("bigquery.project", "")

	v.SetDefault("profiler.max_rows", DefaultMaxRows)
	v.SetDefault("profiler.max_examples", DefaultMaxExamples)
	v.SetDefault("profiler.sample_percent", DefaultSamplePercent)
	v.SetDefault("profiler.concurrency", DefaultConcurrency)

	v.SetDefault("genai.api_key", "")
	v.SetDefault("genai.model", DefaultModel)
	v.SetDefault("genai.max_attempts", DefaultMaxAttempts)

	v.SetDefault("server.port", DefaultServerPort)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Validate checks the settings every command depends on.
func (c *Config) Validate() error {
	if !isSupportedBackend(c.Backend) {
		return fmt.Errorf("unsupported backend: %s (only %s are supported)", c.Backend, strings.Join(SupportedBackends, ", "))
	}
	if c.Backend == BackendBigQuery && c.BigQuery.Project == "" {
		return fmt.Errorf("bigquery.project is required for the bigquery backend")
	}
	if strings.HasPrefix(c.Backend, "cloudsql") && c.Database.CloudSQLInstanceConnectionName == "" {
		return fmt.Errorf("database.cloudsql_instance_connection_name is required for backend %s", c.Backend)
	}
	if c.Profiler.MaxRows <= 0 {
		return fmt.Errorf("profiler.max_rows must be positive, got %d", c.Profiler.MaxRows)
	}
	if c.Profiler.MaxExamples < 0 {
		return fmt.Errorf("profiler.max_examples must not be negative, got %d", c.Profiler.MaxExamples)
	}
	if c.Profiler.SamplePercent < 0 || c.Profiler.SamplePercent > 100 {
		return fmt.Errorf("profiler.sample_percent must be within [0, 100], got %g", c.Profiler.SamplePercent)
	}
	if c.Profiler.Concurrency < 1 {
		return fmt.Errorf("profiler.concurrency must be at least 1, got %d", c.Profiler.Concurrency)
	}
	if c.GenAI.MaxAttempts < 1 {
		return fmt.Errorf("genai.max_attempts must be at least 1, got %d", c.GenAI.MaxAttempts)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}

func isSupportedBackend(backend string) bool {
	for _, b := range SupportedBackends {
		if backend == b {
			return true
		}
	}
	return false
}
