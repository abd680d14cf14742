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
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/enricher"
	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/profiler"
	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/utils"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Profile the columns of one or more tables",
	Long: `Samples each table (its latest partition when partitioned) and computes, per
column, distinct example values, the null ratio and the distinct ratio.`,
	Example: `./db_metadata_profiler profile --project my-project --tables my-project.sales.orders,my-project.sales.customers --max-rows 100
./db_metadata_profiler profile --backend postgres --host localhost --port 5432 --username user --password pass --database shop --tables public.orders`,
	RunE: runProfile,
}

// tableProfileOutput is one entry of the profile command's output file.
type tableProfileOutput struct {
	TableFQN string                 `json:"table_fqn"`
	Profile  *profiler.TableProfile `json:"profile,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

func runProfile(cmd *cobra.Command, args []string) error {
	tablesFlag, _ := cmd.Flags().GetString("tables")
	refs, err := utils.ParseTableRefs(tablesFlag, appConfig.BigQuery.Project)
	if err != nil {
		return fmt.Errorf("invalid --tables: %w", err)
	}

	outputFile, _ := cmd.Flags().GetString("out_file")
	if outputFile == "" {
		outputFile = "profiles.json"
		if len(refs) == 1 {
			outputFile = utils.GetDefaultOutputFilePath(refs[0], "profile")
		}
	}

	ctx := cmd.Context()
	svc, cleanup, err := setupService(ctx, serviceOptions{})
	if err != nil {
		return err
	}
	defer cleanup()

	startTime := time.Now()
	logger.Info("Starting profile operation", zap.Int("tables", len(refs)), zap.String("backend", appConfig.Backend))

	results := svc.ProfileTables(ctx, refs)
	output, failed := profileOutputs(results)

	if err := utils.WriteJSONFile(outputFile, output); err != nil {
		return err
	}
	fmt.Printf("Profiles written to: %s\n", outputFile)

	logger.Info("Profile operation completed", zap.Int("failed", failed), zap.Duration("elapsed", time.Since(startTime)))
	if failed > 0 {
		return fmt.Errorf("%d of %d table(s) could not be profiled", failed, len(refs))
	}
	return nil
}

func profileOutputs(results []enricher.TableResult) ([]tableProfileOutput, int) {
	output := make([]tableProfileOutput, 0, len(results))
	failed := 0
	for _, r := range results {
		entry := tableProfileOutput{TableFQN: r.Table.String(), Profile: r.Profile}
		if r.Err != nil {
			failed++
			entry.Error = r.Err.Error()
			logger.Error("Failed to profile table", zap.String("table", entry.TableFQN), zap.Error(r.Err))
		}
		output = append(output, entry)
	}
	return output, failed
}

func init() {
	profileCmd.Flags().String("tables", "", "Comma-separated tables to profile (project.dataset.table, dataset.table or table) - MANDATORY")
	profileCmd.Flags().Int("concurrency", 4, "Number of tables profiled at the same time")
	profileCmd.Flags().StringP("out_file", "o", "", "File path to save profiles to (optional, defaults to <table>_profile.json or profiles.json)")
	_ = profileCmd.MarkFlagRequired("tables")
}
