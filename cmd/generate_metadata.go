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
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/enricher"
	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/utils"
)

var generateMetadataCmd = &cobra.Command{
	Use:   "generate-metadata",
	Short: "Generate business metadata for a table using Gemini",
	Long: `Profiles the table, sends its schema and example values to Gemini and writes
the validated metadata document (descriptions, glossary terms, sensitivity).`,
	Example: `./db_metadata_profiler generate-metadata --project my-project --table my-project.sales.orders --gemini-api-key <key> --context ./glossary.md`,
	RunE:    runGenerateMetadata,
}

func runGenerateMetadata(cmd *cobra.Command, args []string) error {
	tableFlag, _ := cmd.Flags().GetString("table")
	ref, err := utils.ParseTableRef(tableFlag, appConfig.BigQuery.Project)
	if err != nil {
		return fmt.Errorf("invalid --table: %w", err)
	}

	contextFiles, _ := cmd.Flags().GetString("context")
	additionalContext, err := utils.ReadContextFiles(contextFiles)
	if err != nil {
		return err
	}

	outputFile, _ := cmd.Flags().GetString("out_file")
	if outputFile == "" {
		outputFile = utils.GetDefaultOutputFilePath(ref, "generate-metadata")
	}

	ctx := cmd.Context()
	svc, cleanup, err := setupService(ctx, serviceOptions{requireLLM: true, additionalContext: additionalContext})
	if err != nil {
		return err
	}
	defer cleanup()

	logger.Info("Starting generate-metadata operation", zap.String("table", ref.String()), zap.String("model", appConfig.GenAI.Model))

	md, err := svc.GenerateMetadata(ctx, ref)
	if err != nil {
		var invalid *enricher.ErrInvalidMetadata
		if errors.As(err, &invalid) {
			for _, d := range invalid.Details {
				fmt.Printf("  - %s\n", d)
			}
		}
		return fmt.Errorf("failed to generate metadata for %s: %w", ref, err)
	}

	if err := utils.WriteJSONFile(outputFile, md); err != nil {
		return err
	}
	fmt.Printf("Metadata written to: %s\n", outputFile)

	logger.Info("Generate-metadata operation completed", zap.Int("columns", len(md.Columns)))
	return nil
}

func init() {
	generateMetadataCmd.Flags().String("table", "", "Table to describe (project.dataset.table) - MANDATORY")
	generateMetadataCmd.Flags().String("context", "", "Comma-separated files whose content is added to the prompt as additional context")
	generateMetadataCmd.Flags().StringP("out_file", "o", "", "File path to save metadata to (optional, defaults to <table>_metadata.json)")
	_ = generateMetadataCmd.MarkFlagRequired("table")
}
