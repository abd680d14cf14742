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
package profiler

import (
	"context"
	"fmt"
)

// MaxValueColumn is the alias Dialect.MaxPartitionSQL must give the aggregate.
const MaxValueColumn = "max_value"

// PartitionField is the column a table is partitioned on together with its
// declared type. Type is empty when the field is absent from the schema.
type PartitionField struct {
	Name string
	Type FieldType
}

// ResolvePartition returns the partition field of table, or nil when the table
// is not partitioned. Tables partitioned by ingestion time resolve to the
// _PARTITIONDATE pseudo-column.
func ResolvePartition(table *Table) *PartitionField {
	if table == nil || table.Partitioning == nil {
		return nil
	}
	if table.Partitioning.Field == "" {
		return &PartitionField{Name: IngestionTimePartitionColumn, Type: TypeDate}
	}
	pf := &PartitionField{Name: table.Partitioning.Field}
	if col, ok := table.Column(pf.Name); ok {
		pf.Type = col.Type
	}
	return pf
}

// ParamTypeFor maps a declared column type to the parameter type used when
// filtering on that column. Types other than TIMESTAMP, DATE and DATETIME are
// sent as strings.
func ParamTypeFor(declared FieldType) ParamType {
	switch declared {
	case TypeTimestamp:
		return ParamTimestamp
	case TypeDate:
		return ParamDate
	case TypeDateTime:
		return ParamDateTime
	default:
		return ParamString
	}
}

// MaxPartitionValue runs one aggregate query returning the greatest value of
// field across the whole table. The result is Missing when every value of the
// field is NULL.
func MaxPartitionValue(ctx context.Context, exec QueryExecutor, dialect Dialect, ref TableRef, field string) (Value, error) {
	query := dialect.MaxPartitionSQL(ref, field)
	rows, err := exec.Execute(ctx, query)
	if err != nil {
		return Missing, &QueryExecutionError{
			Msg:   fmt.Sprintf("failed to get max partition of %s", ref),
			Query: query,
			Err:   err,
		}
	}
	if len(rows) == 0 {
		return Missing, &EmptyResultError{Msg: fmt.Sprintf("max partition query on %s returned no rows", ref)}
	}
	return rows[0].Get(MaxValueColumn), nil
}
