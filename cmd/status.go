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

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/utils"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show table metadata without sampling it",
	Long:    `Prints whether the table exists, its partitioning, size, row count and columns.`,
	Example: `./db_metadata_profiler status --project my-project --table my-project.sales.orders`,
	RunE:    runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	tableFlag, _ := cmd.Flags().GetString("table")
	ref, err := utils.ParseTableRef(tableFlag, appConfig.BigQuery.Project)
	if err != nil {
		return fmt.Errorf("invalid --table: %w", err)
	}

	ctx := cmd.Context()
	svc, cleanup, err := setupService(ctx, serviceOptions{})
	if err != nil {
		return err
	}
	defer cleanup()

	status, err := svc.TableStatus(ctx, ref)
	if err != nil {
		return fmt.Errorf("failed to get status of %s: %w", ref, err)
	}

	if outputFile, _ := cmd.Flags().GetString("out_file"); outputFile != "" {
		if err := utils.WriteJSONFile(outputFile, status); err != nil {
			return err
		}
		fmt.Printf("Status written to: %s\n", outputFile)
	} else {
		raw, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(raw))
	}

	if !status.Exists {
		return fmt.Errorf("table %s not found", ref)
	}
	return nil
}

func init() {
	statusCmd.Flags().String("table", "", "Table to inspect (project.dataset.table) - MANDATORY")
	statusCmd.Flags().StringP("out_file", "o", "", "File path to save the status to (optional, printed when omitted)")
	_ = statusCmd.MarkFlagRequired("table")
}
