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
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/config"
	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/database"
	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/database/bigquery"
	_ "github.com/GoogleCloudPlatform/db-metadata-profiler/internal/database/mysql"
	_ "github.com/GoogleCloudPlatform/db-metadata-profiler/internal/database/postgres"
	_ "github.com/GoogleCloudPlatform/db-metadata-profiler/internal/database/sqlserver"
	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/enricher"
	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/genai"
	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/logging"
	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/profiler"
)

var (
	cfgFile string

	// Loaded by PersistentPreRunE for every command.
	appConfig *config.Config
	logger    = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "db_metadata_profiler",
	Short: "Profile tables and generate business metadata for them",
	Long: `db_metadata_profiler samples the latest partition of a table (or a bounded
sample of an unpartitioned one), profiles every column and asks Gemini for
business descriptions, glossary terms and sensitivity classifications.`,
	SilenceUsage:      true,
	PersistentPreRunE: initFlagsAndConfig,
}

// initFlagsAndConfig loads configuration from the config file, environment and
// the flags given to cmd, then builds the logger.
func initFlagsAndConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	l, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(l)

	appConfig = cfg
	logger = l
	return nil
}

// backend is a table source usable by the profiler.
type backend interface {
	profiler.QueryExecutor
	profiler.SchemaProvider
	profiler.Dialect
	Close() error
}

func openBackend(ctx context.Context, cfg *config.Config) (backend, error) {
	if cfg.Backend == config.BackendBigQuery {
		client, err := bigquery.New(ctx, cfg.BigQuery.Project, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to BigQuery: %w", err)
		}
		return client, nil
	}
	db, err := database.New(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("Failed to connect to database", zap.Error(err))
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

type serviceOptions struct {
	requireLLM        bool
	additionalContext string
}

// setupService opens the configured backend and, when an API key is present,
// the Gemini client. The returned func releases both.
func setupService(ctx context.Context, opts serviceOptions) (*enricher.Service, func(), error) {
	if appConfig == nil {
		return nil, nil, fmt.Errorf("configuration is not initialized")
	}
	cfg := appConfig

	var llm genai.LLMClient
	if cfg.GenAI.APIKey != "" {
		client, err := genai.NewClient(ctx, genai.Config{APIKey: cfg.GenAI.APIKey, Model: cfg.GenAI.Model}, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := client.IsAPIKeyValid(ctx); err != nil {
			client.Close()
			return nil, nil, err
		}
		llm = client
	} else if opts.requireLLM {
		return nil, nil, fmt.Errorf("a Gemini API key is required (--gemini-api-key or GEMINI_API_KEY)")
	} else {
		logger.Warn("Gemini API key not set, metadata generation is disabled")
	}

	b, err := openBackend(ctx, cfg)
	if err != nil {
		if llm != nil {
			llm.Close()
		}
		return nil, nil, err
	}

	prof := profiler.New(b, b, profiler.Options{
		MaxRows:       cfg.Profiler.MaxRows,
		MaxExamples:   cfg.Profiler.MaxExamples,
		SamplePercent: cfg.Profiler.SamplePercent,
	}, logger)

	retry := enricher.DefaultRetryOptions
	retry.MaxAttempts = cfg.GenAI.MaxAttempts

	svc := enricher.NewService(b, prof, llm, enricher.Options{
		Retry:             retry,
		AdditionalContext: opts.additionalContext,
		Concurrency:       cfg.Profiler.Concurrency,
	}, logger)

	cleanup := func() {
		if err := b.Close(); err != nil {
			logger.Warn("Failed to close backend", zap.Error(err))
		}
		if llm != nil {
			llm.Close()
		}
		_ = logger.Sync()
	}
	return svc, cleanup, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (yaml, json or toml)")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-format", "console", "Log format (console or json)")
	pf.String("backend", config.BackendBigQuery, fmt.Sprintf("Table backend (%s)", strings.Join(config.SupportedBackends, ", ")))

	// BigQuery
	pf.String("project", "", "Google Cloud project used for BigQuery jobs and as the default table project")

	// Database connection flags
	pf.String("host", "", "Database host")
	pf.Int("port", 0, "Database port")
	pf.String("username", "", "Database username")
	pf.String("password", "", "Database password")
	pf.String("database", "", "Database name")
	pf.String("sslmode", "disable", "PostgreSQL sslmode")
	pf.String("cloudsql-instance-connection-name", "", "Cloud SQL instance connection name (for Cloud SQL backends)")
	pf.Bool("cloudsql-use-private-ip", false, "Use private IP for Cloud SQL connection (Cloud SQL)")

	// Profiling bounds
	pf.Int("max-rows", config.DefaultMaxRows, "Maximum number of rows sampled per table")
	pf.Int("max-examples", config.DefaultMaxExamples, "Maximum number of distinct example values kept per column")
	pf.Float64("sample-percent", config.DefaultSamplePercent, "Block sampling percentage for unpartitioned tables (0 or 100 disables sampling)")

	// Gemini
	pf.String("gemini-api-key", "", "Gemini API key (can also be set via GEMINI_API_KEY environment variable)")
	pf.String("model", config.DefaultModel, "Gemini model name")
	pf.Int("max-attempts", config.DefaultMaxAttempts, "Attempts per model call before giving up")

	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(generateMetadataCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
}
