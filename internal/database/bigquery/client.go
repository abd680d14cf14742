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

// Package bigquery serves table metadata and sampled rows from BigQuery.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	bq "cloud.google.com/go/bigquery"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/database"
	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/profiler"
)

var (
	_ profiler.QueryExecutor  = (*Client)(nil)
	_ profiler.SchemaProvider = (*Client)(nil)
	_ profiler.Dialect        = (*Client)(nil)
)

// Client implements the profiler collaborators on top of a BigQuery client.
// It is safe for concurrent use.
type Client struct {
	bq     *bq.Client
	logger *zap.Logger
}

// New connects to BigQuery, billing queries to project.
func New(ctx context.Context, project string, logger *zap.Logger, opts ...option.ClientOption) (*Client, error) {
	if project == "" {
		return nil, fmt.Errorf("bigquery project is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := bq.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bigquery client: %w", err)
	}
	logger.Info("Connected to BigQuery", zap.String("project", project))
	return &Client{bq: client, logger: logger}, nil
}

func (c *Client) Close() error {
	if c.bq == nil {
		return nil
	}
	return c.bq.Close()
}

// GetTable implements profiler.SchemaProvider. Missing tables and datasets
// return database.ErrTableNotFound.
func (c *Client) GetTable(ctx context.Context, ref profiler.TableRef) (*profiler.Table, error) {
	md, err := c.bq.DatasetInProject(ref.Project, ref.Dataset).Table(ref.Table).Metadata(ctx)
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", ref, database.ErrTableNotFound)
		}
		return nil, fmt.Errorf("failed to read metadata for %s: %w", ref, err)
	}
	return tableFromMetadata(ref, md), nil
}

// tableFromMetadata keeps BigQuery's own type names. Only time partitioning
// is reported; integer-range partitions are sampled like unpartitioned tables.
func tableFromMetadata(ref profiler.TableRef, md *bq.TableMetadata) *profiler.Table {
	table := &profiler.Table{
		Ref:          ref,
		Schema:       columnsFromSchema(md.Schema),
		Description:  md.Description,
		NumRows:      md.NumRows,
		NumBytes:     md.NumBytes,
		Labels:       md.Labels,
		LastModified: md.LastModifiedTime,
	}
	if md.TimePartitioning != nil {
		table.Partitioning = &profiler.Partitioning{Field: md.TimePartitioning.Field}
	}
	return table
}

func columnsFromSchema(schema bq.Schema) []profiler.ColumnDescriptor {
	columns := make([]profiler.ColumnDescriptor, 0, len(schema))
	for _, f := range schema {
		col := profiler.ColumnDescriptor{
			Name:        f.Name,
			Type:        profiler.FieldType(f.Type),
			Mode:        profiler.ModeNullable,
			Description: f.Description,
		}
		switch {
		case f.Repeated:
			col.Mode = profiler.ModeRepeated
		case f.Required:
			col.Mode = profiler.ModeRequired
		}
		if len(f.Schema) > 0 {
			col.Fields = columnsFromSchema(f.Schema)
		}
		columns = append(columns, col)
	}
	return columns
}

// Execute implements profiler.QueryExecutor. Parameters carry their declared
// type; cells are converted by the result schema.
func (c *Client) Execute(ctx context.Context, query string, params ...profiler.QueryParameter) ([]profiler.Row, error) {
	q := c.bq.Query(query)
	for _, p := range params {
		qp, err := queryParameter(p)
		if err != nil {
			return nil, err
		}
		q.Parameters = append(q.Parameters, qp)
	}

	c.logger.Debug("Executing query", zap.String("query", query), zap.Int("params", len(params)))
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("error executing query: %w", err)
	}

	var out []profiler.Row
	for {
		var cells map[string]bq.Value
		err := it.Next(&cells)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading rows: %w", err)
		}
		row, err := convertRow(cells, it.Schema)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

const timestampParamLayout = "2006-01-02 15:04:05.999999-07:00"

// queryParameter sends every value as text tagged with the declared type, so
// BigQuery never infers the parameter type from the value.
func queryParameter(p profiler.QueryParameter) (bq.QueryParameter, error) {
	bound, err := database.BindValue(p)
	if err != nil {
		return bq.QueryParameter{}, err
	}
	pv := &bq.QueryParameterValue{Type: bq.StandardSQLDataType{TypeKind: string(p.Type)}}
	switch v := bound.(type) {
	case nil:
	case time.Time:
		pv.Value = v.Format(timestampParamLayout)
	case string:
		pv.Value = v
	default:
		return bq.QueryParameter{}, fmt.Errorf("unexpected bound value %T for %s", bound, p.Name)
	}
	return bq.QueryParameter{Name: p.Name, Value: pv}, nil
}

func tableName(ref profiler.TableRef) string {
	return "`" + ref.String() + "`"
}

// columnName quotes field unless it is the ingestion-time pseudo-column,
// which BigQuery only resolves unquoted.
func columnName(field string) string {
	if strings.HasPrefix(field, "_PARTITION") {
		return field
	}
	return "`" + field + "`"
}

// MaxPartitionSQL implements profiler.Dialect.
func (c *Client) MaxPartitionSQL(ref profiler.TableRef, field string) string {
	return fmt.Sprintf("SELECT MAX(%s) AS %s FROM %s", columnName(field), profiler.MaxValueColumn, tableName(ref))
}

// PartitionSliceSQL implements profiler.Dialect.
func (c *Client) PartitionSliceSQL(ref profiler.TableRef, field string, maxRows int) string {
	return fmt.Sprintf("SELECT * FROM %s WHERE %s = @%s LIMIT %d",
		tableName(ref), columnName(field), profiler.PartitionParamName, maxRows)
}

// SampleSQL implements profiler.Dialect. Block sampling may return no rows for
// tables smaller than one storage block.
func (c *Client) SampleSQL(ref profiler.TableRef, maxRows int, percent float64) string {
	if !database.SamplingEnabled(percent) {
		return fmt.Sprintf("SELECT * FROM %s LIMIT %d", tableName(ref), maxRows)
	}
	return fmt.Sprintf("SELECT * FROM %s TABLESAMPLE SYSTEM (%s PERCENT) LIMIT %d",
		tableName(ref), database.FormatPercent(percent), maxRows)
}
