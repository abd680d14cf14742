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

// Package metadata defines the business metadata document returned by the
// language model and checks payloads against its contract.
package metadata

import (
	"fmt"

	"github.com/goccy/go-json"
)

// MaxDescriptionLength bounds table and column descriptions.
const MaxDescriptionLength = 2000

// Classifications are the accepted sensitivity classes, most restrictive first.
var Classifications = []string{"Highly sensitive", "Confidential", "Internal", "Public"}

// TableMetadata is a validated metadata document.
type TableMetadata struct {
	TableFQN         string           `json:"table_fqn"`
	TableDescription TableDescription `json:"table_description"`
	Columns          []ColumnMetadata `json:"columns"`
	Model            ModelInfo        `json:"model"`
	GeneratedAt      string           `json:"generated_at"`
}

type TableDescription struct {
	Description   string       `json:"description"`
	Accuracy      float64      `json:"accuracy"`
	GlossaryTerms []string     `json:"glossary_terms"`
	Sensitivity   *Sensitivity `json:"sensitivity,omitempty"`
}

type Sensitivity struct {
	IsSensitive    bool   `json:"is_sensitive"`
	Classification string `json:"classification"`
	Rationale      string `json:"rationale,omitempty"`
}

type ColumnMetadata struct {
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	Accuracy      float64     `json:"accuracy"`
	IsComputed    bool        `json:"is_computed"`
	Sensitivity   Sensitivity `json:"sensitivity"`
	GlossaryTerms []string    `json:"glossary_terms"`
}

type ModelInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Decode validates payload and converts it into a TableMetadata.
func Decode(payload map[string]any) (*TableMetadata, error) {
	if problems := Validate(payload); len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("re-encode metadata: %w", err)
	}
	var md TableMetadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &md, nil
}

// ValidationError lists every contract violation found in a payload.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("metadata failed validation with %d problem(s)", len(e.Problems))
}
