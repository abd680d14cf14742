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

// Package prompt renders the instructions sent to the language model when
// generating business metadata for a profiled table.
package prompt

import (
	"fmt"
	"strings"

	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/metadata"
	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/profiler"
)

// MaxPromptExamples is the number of example values shown per column.
const MaxPromptExamples = 3

const (
	ModelName    = "metadata-profiler-gemini"
	ModelVersion = "1.0.0"
)

// Build returns the prompt for table. profile may be empty when the sample
// returned no rows; additionalContext is appended verbatim when non-empty.
func Build(table *profiler.Table, profile *profiler.TableProfile, additionalContext string) string {
	fqn := table.Ref.String()

	description := strings.TrimSpace(table.Description)
	if description == "" {
		description = "No previous description"
	}

	var b strings.Builder
	fmt.Fprintf(&b, `
You are an expert in data governance and enterprise data cataloguing.

You are given information about a database table (current description, columns and example values).
Your task is to write clear and concise BUSINESS descriptions (not technical ones).

========================================
CONTEXT
========================================

Table:
- FQN: %s
- Current description: %s

Columns and examples:
%s
`, fqn, description, columnLines(table, profile))

	if ctx := strings.TrimSpace(additionalContext); ctx != "" {
		fmt.Fprintf(&b, `
Additional context:
%s
`, ctx)
	}

	fmt.Fprintf(&b, `
========================================
REQUIRED OUTPUT
========================================

Return **ONLY** a valid, parseable JSON document (no extra text, no comments, no Markdown)
with **EXACTLY** the following structure:

{
  "table_fqn": "%s",
  "table_description": {
    "description": "Text between 300 and 700 characters",
    "accuracy": 0.0,
    "glossary_terms": ["term"],
    "sensitivity": {
      "is_sensitive": false,
      "classification": "Internal",
      "rationale": "Short justification"
    }
  },
  "columns": [
    {
      "name": "column",
      "description": "Text between 300 and 700 characters",
      "accuracy": 0.0,
      "is_computed": false,
      "sensitivity": {
        "is_sensitive": false,
        "classification": "Internal",
        "rationale": "Short justification"
      },
      "glossary_terms": ["term"]
    }
  ],
  "model": {
    "name": "%s",
    "version": "%s"
  },
  "generated_at": "YYYY-MM-DDThh:mm:ssZ"
}

========================================
STRICT RULES
========================================

- Return ONLY the JSON (nothing before, nothing after).
- Use ONLY the columns listed in the context (do not invent columns).
- Produce exactly one object per column.
- "accuracy" must be a number between 0.0 and 1.0.
- "classification" must be one of: %s.
- "is_sensitive" must be true if the column contains:
  - Personal identifiers (name, email, phone, document number, address)
  - Sensitive business information
  Otherwise, false.
- "is_computed" must be true only if the column looks derived from other columns.
- "glossary_terms" must not repeat terms.
- Write in business language (avoid repeating technical types such as STRING, INT64).
- Limit every description to at most 1000 characters.
- If you cannot satisfy a rule, return the JSON with:
  - table_description.description = ""
  - accuracy = 0.0
  - columns with accuracy = 0.0

========================================
TASK
========================================
Using the information provided, generate the requested JSON strictly following the contract.
`, fqn, ModelName, ModelVersion, classificationList())

	return b.String()
}

func columnLines(table *profiler.Table, profile *profiler.TableProfile) string {
	lines := make([]string, 0, len(table.Schema))
	for _, col := range table.Schema {
		examples := "no examples"
		if profile != nil {
			if cp, ok := profile.Get(col.Name); ok && len(cp.ExampleValues) > 0 {
				shown := cp.ExampleValues
				if len(shown) > MaxPromptExamples {
					shown = shown[:MaxPromptExamples]
				}
				examples = strings.Join(shown, ", ")
			}
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", col.Name, examples))
	}
	return strings.Join(lines, "\n")
}

func classificationList() string {
	quoted := make([]string, len(metadata.Classifications))
	for i, c := range metadata.Classifications {
		quoted[i] = fmt.Sprintf("%q", c)
	}
	return strings.Join(quoted, ", ")
}
