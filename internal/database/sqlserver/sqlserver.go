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
package sqlserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strings"

	"cloud.google.com/go/cloudsqlconn"
	mssql "github.com/denisenkom/go-mssqldb"

	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/config"
	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/database"
	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/profiler"
)

// sqlServerHandler struct implements database.DialectHandler for SQL Server.
type sqlServerHandler struct{}

var _ database.DialectHandler = (*sqlServerHandler)(nil)

type csqlDialer struct {
	dialer     *cloudsqlconn.Dialer
	connName   string
	usePrivate bool
}

// DialContext adheres to the mssql.Dialer interface.
func (c *csqlDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	var opts []cloudsqlconn.DialOption
	if c.usePrivate {
		opts = append(opts, cloudsqlconn.WithPrivateIP())
	}
	return c.dialer.Dial(ctx, c.connName, opts...)
}

// CreateCloudSQLPool for SQL Server
func (h sqlServerHandler) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.CloudSQLInstanceConnectionName == "" {
		return nil, fmt.Errorf("missing CloudSQL instance connection name")
	}

	// WithLazyRefresh() Option is used to perform refresh
	// when needed, rather than on a scheduled interval.
	// This is recommended for serverless environments to
	// avoid background refreshes from throttling CPU.
	dialer, err := cloudsqlconn.NewDialer(context.Background(), cloudsqlconn.WithLazyRefresh())
	if err != nil {
		return nil, fmt.Errorf("cloudsqlconn.NewDialer: %w", err)
	}
	connector, err := mssql.NewConnector(fmt.Sprintf("sqlserver://%s:%s@localhost:1433?database=%s",
		cfg.User, cfg.Password, cfg.DBName))
	if err != nil {
		return nil, fmt.Errorf("mssql.NewConnector: %w", err)
	}
	connector.Dialer = &csqlDialer{
		dialer:     dialer,
		connName:   cfg.CloudSQLInstanceConnectionName,
		usePrivate: cfg.UsePrivateIP,
	}

	return sql.OpenDB(connector), nil
}

// CreateStandardPool creates a standard SQL Server connection pool
func (h sqlServerHandler) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	port := cfg.Port
	if port == 0 {
		port = 1433 // Default SQL Server port
	}
	connStr := fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s",
		cfg.User, cfg.Password, cfg.Host, port, cfg.DBName)

	dbPool, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return nil, fmt.Errorf("sql.Open (standard sqlserver): %w", err)
	}
	return dbPool, nil
}

// QuoteIdentifier for SQL Server
// SQL Server uses square brackets [] for identifiers.
func (h sqlServerHandler) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// An empty dataset falls back to the caller's default schema.
const tableFilter = `s.name = COALESCE(NULLIF(@schema, ''), SCHEMA_NAME()) AND tb.name = @table`

func refArgs(ref profiler.TableRef) []any {
	return []any{sql.Named("schema", ref.Dataset), sql.Named("table", ref.Table)}
}

// ListColumns for SQL Server. Descriptions come from MS_Description extended
// properties.
func (h sqlServerHandler) ListColumns(ctx context.Context, db *database.DB, ref profiler.TableRef) ([]database.ColumnInfo, error) {
	query := `
		SELECT c.name, t.name, c.is_nullable, COALESCE(CAST(ep.value AS NVARCHAR(MAX)), '')
		FROM sys.columns c
		JOIN sys.tables tb ON tb.object_id = c.object_id
		JOIN sys.schemas s ON s.schema_id = tb.schema_id
		JOIN sys.types t ON t.user_type_id = c.user_type_id
		LEFT JOIN sys.extended_properties ep
			ON ep.class = 1 AND ep.major_id = c.object_id AND ep.minor_id = c.column_id AND ep.name = 'MS_Description'
		WHERE ` + tableFilter + `
		ORDER BY c.column_id;`

	rows, err := db.Pool.QueryContext(ctx, query, refArgs(ref)...)
	if err != nil {
		return nil, fmt.Errorf("error querying columns for table %s: %w", ref, err)
	}
	defer rows.Close()

	var columns []database.ColumnInfo
	for rows.Next() {
		var colInfo database.ColumnInfo
		if err := rows.Scan(&colInfo.Name, &colInfo.DataType, &colInfo.Nullable, &colInfo.Description); err != nil {
			return nil, fmt.Errorf("error scanning column info: %w", err)
		}
		columns = append(columns, colInfo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column rows: %w", err)
	}
	return columns, nil
}

// GetTableInfo for SQL Server. Row counts come from the heap or clustered
// index partitions and sizes from allocated pages.
func (h sqlServerHandler) GetTableInfo(ctx context.Context, db *database.DB, ref profiler.TableRef) (*database.TableInfo, error) {
	query := `
		SELECT COALESCE(CAST(ep.value AS NVARCHAR(MAX)), ''),
			(SELECT COALESCE(SUM(p.rows), 0) FROM sys.partitions p
				WHERE p.object_id = tb.object_id AND p.index_id IN (0, 1)),
			(SELECT COALESCE(SUM(a.total_pages), 0) * 8192 FROM sys.partitions p
				JOIN sys.allocation_units a ON a.container_id = p.partition_id
				WHERE p.object_id = tb.object_id)
		FROM sys.tables tb
		JOIN sys.schemas s ON s.schema_id = tb.schema_id
		LEFT JOIN sys.extended_properties ep
			ON ep.class = 1 AND ep.major_id = tb.object_id AND ep.minor_id = 0 AND ep.name = 'MS_Description'
		WHERE ` + tableFilter + `;`

	var info database.TableInfo
	err := db.Pool.QueryRowContext(ctx, query, refArgs(ref)...).Scan(&info.Description, &info.NumRows, &info.NumBytes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", ref, database.ErrTableNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve table info: %w", err)
	}
	return &info, nil
}

// GetPartitionColumn for SQL Server returns the partitioning column of the
// heap or clustered index.
func (h sqlServerHandler) GetPartitionColumn(ctx context.Context, db *database.DB, ref profiler.TableRef) (string, error) {
	query := `
		SELECT c.name
		FROM sys.tables tb
		JOIN sys.schemas s ON s.schema_id = tb.schema_id
		JOIN sys.indexes i ON i.object_id = tb.object_id AND i.index_id IN (0, 1)
		JOIN sys.index_columns ic
			ON ic.object_id = i.object_id AND ic.index_id = i.index_id AND ic.partition_ordinal = 1
		JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
		WHERE ` + tableFilter + `;`

	var column string
	err := db.Pool.QueryRowContext(ctx, query, refArgs(ref)...).Scan(&column)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to retrieve partition column: %w", err)
	}
	return column, nil
}

// MapType for SQL Server. TIMESTAMP is the legacy alias of ROWVERSION and is
// profiled as bytes.
func (h sqlServerHandler) MapType(dataType string) (profiler.FieldType, bool) {
	switch database.NormalizeTypeName(dataType) {
	case "":
		return "", false
	case "tinyint", "smallint", "int", "bigint":
		return profiler.TypeInteger, false
	case "real", "float":
		return profiler.TypeFloat, false
	case "decimal", "numeric", "money", "smallmoney":
		return profiler.TypeNumeric, false
	case "bit":
		return profiler.TypeBoolean, false
	case "date":
		return profiler.TypeDate, false
	case "time":
		return profiler.TypeTime, false
	case "datetime", "datetime2", "smalldatetime":
		return profiler.TypeDateTime, false
	case "datetimeoffset":
		return profiler.TypeTimestamp, false
	case "binary", "varbinary", "image", "timestamp", "rowversion", "geography", "geometry", "hierarchyid":
		return profiler.TypeBytes, false
	}
	return profiler.TypeString, false
}

// ScanValue converts driver values. UNIQUEIDENTIFIER arrives as raw bytes in
// the mixed-endian wire order.
func (h sqlServerHandler) ScanValue(raw any, databaseTypeName string) (profiler.Value, error) {
	if b, ok := raw.([]byte); ok && strings.EqualFold(databaseTypeName, "UNIQUEIDENTIFIER") {
		var id mssql.UniqueIdentifier
		if err := id.Scan(b); err != nil {
			return profiler.Missing, fmt.Errorf("parse uniqueidentifier: %w", err)
		}
		return profiler.StringValue(id.String()), nil
	}
	fieldType, _ := h.MapType(databaseTypeName)
	return database.ConvertValue(raw, fieldType)
}

// Arg binds values by name, matching the @name placeholders.
func (h sqlServerHandler) Arg(name string, value any) any {
	return sql.Named(name, value)
}

func (h sqlServerHandler) PartitionSliceSQL(table, column string, maxRows int) string {
	return fmt.Sprintf("SELECT TOP (%d) * FROM %s WHERE %s = @%s", maxRows, table, column, profiler.PartitionParamName)
}

func (h sqlServerHandler) SampleSQL(table string, maxRows int, percent float64) string {
	if !database.SamplingEnabled(percent) {
		return fmt.Sprintf("SELECT TOP (%d) * FROM %s", maxRows, table)
	}
	return fmt.Sprintf("SELECT TOP (%d) * FROM %s TABLESAMPLE SYSTEM (%s PERCENT)",
		maxRows, table, database.FormatPercent(percent))
}

func init() {
	database.RegisterDialectHandler("sqlserver", sqlServerHandler{})
	database.RegisterDialectHandler("cloudsqlsqlserver", sqlServerHandler{})
}
