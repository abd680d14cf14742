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
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// FieldType is the declared storage type of a column.
type FieldType string

const (
	TypeString    FieldType = "STRING"
	TypeBytes     FieldType = "BYTES"
	TypeInteger   FieldType = "INTEGER"
	TypeFloat     FieldType = "FLOAT"
	TypeNumeric   FieldType = "NUMERIC"
	TypeBoolean   FieldType = "BOOLEAN"
	TypeTimestamp FieldType = "TIMESTAMP"
	TypeDate      FieldType = "DATE"
	TypeTime      FieldType = "TIME"
	TypeDateTime  FieldType = "DATETIME"
	TypeGeography FieldType = "GEOGRAPHY"
	TypeRecord    FieldType = "RECORD"
)

// Mode is the repetition mode of a column.
type Mode string

const (
	ModeRequired Mode = "REQUIRED"
	ModeNullable Mode = "NULLABLE"
	ModeRepeated Mode = "REPEATED"
)

// IngestionTimePartitionColumn is the pseudo-column used to filter tables
// partitioned by ingestion time rather than by a named field.
const IngestionTimePartitionColumn = "_PARTITIONDATE"

// TableRef identifies a table. SQL backends read Dataset as the schema and
// ignore Project.
type TableRef struct {
	Project string `json:"project"`
	Dataset string `json:"dataset"`
	Table   string `json:"table"`
}

func (r TableRef) String() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{r.Project, r.Dataset, r.Table} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}

// ColumnDescriptor describes one column of a table schema.
type ColumnDescriptor struct {
	Name        string
	Type        FieldType
	Mode        Mode
	Description string
	// Fields holds the sub-schema of RECORD columns.
	Fields []ColumnDescriptor
}

// Partitioning describes how a table is partitioned. An empty Field means
// the table is partitioned by ingestion time.
type Partitioning struct {
	Field string
}

// Table is the schema provider's view of a table.
type Table struct {
	Ref          TableRef
	Schema       []ColumnDescriptor
	Partitioning *Partitioning
	Description  string
	NumRows      uint64
	NumBytes     int64
	Labels       map[string]string
	LastModified time.Time
}

// Column returns the descriptor with the given name.
func (t *Table) Column(name string) (ColumnDescriptor, bool) {
	for _, c := range t.Schema {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDescriptor{}, false
}

// Row is one sampled row, indexed by column name. Absent columns read as Missing.
type Row map[string]Value

// Get returns the cell for column, Missing when the row does not carry it.
func (r Row) Get(column string) Value {
	if v, ok := r[column]; ok {
		return v
	}
	return Value{}
}

// ParamType is the query parameter type sent to the engine.
type ParamType string

const (
	ParamString    ParamType = "STRING"
	ParamTimestamp ParamType = "TIMESTAMP"
	ParamDate      ParamType = "DATE"
	ParamDateTime  ParamType = "DATETIME"
)

// QueryParameter is a named, explicitly typed query parameter.
type QueryParameter struct {
	Name  string
	Type  ParamType
	Value Value
}

// QueryExecutor runs a query against the engine and returns every row.
// Implementations must be safe for concurrent use.
type QueryExecutor interface {
	Execute(ctx context.Context, query string, params ...QueryParameter) ([]Row, error)
}

// SchemaProvider returns table metadata.
type SchemaProvider interface {
	GetTable(ctx context.Context, ref TableRef) (*Table, error)
}

// Dialect builds the engine-specific query text used by the profiler.
// PartitionSliceSQL must reference exactly one parameter named "max_partition".
type Dialect interface {
	MaxPartitionSQL(ref TableRef, field string) string
	PartitionSliceSQL(ref TableRef, field string, maxRows int) string
	SampleSQL(ref TableRef, maxRows int, percent float64) string
}

// ColumnProfile holds the statistics computed for one column.
type ColumnProfile struct {
	Type          FieldType `json:"type"`
	Mode          Mode      `json:"mode"`
	ExampleValues []string  `json:"example_values"`
	NullRatio     float64   `json:"null_ratio"`
	DistinctRatio float64   `json:"distinct_ratio"`
}

// TableProfile maps column names to their profiles, keeping schema order.
type TableProfile struct {
	columns []string
	byName  map[string]*ColumnProfile
}

// NewTableProfile returns an empty profile.
func NewTableProfile() *TableProfile {
	return &TableProfile{byName: make(map[string]*ColumnProfile)}
}

// Set adds or replaces the profile of a column. New columns are appended.
func (p *TableProfile) Set(name string, cp *ColumnProfile) {
	if _, ok := p.byName[name]; !ok {
		p.columns = append(p.columns, name)
	}
	p.byName[name] = cp
}

// Get returns the profile of a column.
func (p *TableProfile) Get(name string) (*ColumnProfile, bool) {
	cp, ok := p.byName[name]
	return cp, ok
}

// Columns returns the profiled column names in insertion order.
func (p *TableProfile) Columns() []string {
	out := make([]string, len(p.columns))
	copy(out, p.columns)
	return out
}

func (p *TableProfile) Len() int { return len(p.columns) }

// IsEmpty reports whether nothing was profiled (no rows sampled).
func (p *TableProfile) IsEmpty() bool { return len(p.columns) == 0 }

// MarshalJSON encodes the profile as an object whose keys follow schema order.
func (p *TableProfile) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range p.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(p.byName[name])
		if err != nil {
			return nil, fmt.Errorf("marshal profile of column %s: %w", name, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
