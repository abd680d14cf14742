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
package enricher

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/profiler"
)

// TableStatus summarizes a table without sampling it.
type TableStatus struct {
	TableFQN       string            `json:"table_fqn"`
	Exists         bool              `json:"exists"`
	IsPartitioned  bool              `json:"is_partitioned"`
	PartitionField *string           `json:"partition_field"`
	RowCount       uint64            `json:"row_count"`
	SizeMB         float64           `json:"size_mb"`
	Description    *string           `json:"description"`
	Columns        []ColumnStatus    `json:"columns"`
	Labels         map[string]string `json:"labels"`
	LastModified   *time.Time        `json:"last_modified"`
}

// ColumnStatus describes one top-level column of a table.
type ColumnStatus struct {
	Name                 string             `json:"name"`
	Type                 profiler.FieldType `json:"type"`
	Mode                 profiler.Mode      `json:"mode"`
	Description          *string            `json:"description"`
	IsPartitioningColumn bool               `json:"is_partitioning_column"`
}

// MarshalJSON reports only the name and existence of missing tables.
func (s TableStatus) MarshalJSON() ([]byte, error) {
	if !s.Exists {
		return json.Marshal(struct {
			TableFQN string `json:"table_fqn"`
			Exists   bool   `json:"exists"`
		}{s.TableFQN, false})
	}
	type plain TableStatus
	return json.Marshal(plain(s))
}

// TableResult is the outcome of profiling one table in a batch.
type TableResult struct {
	Table   profiler.TableRef
	Profile *profiler.TableProfile
	Err     error
}
