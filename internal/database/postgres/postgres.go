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
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/config"
	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/database"
	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/profiler"
)

// postgresHandler struct implements database.DialectHandler for PostgreSQL.
type postgresHandler struct{}

var _ database.DialectHandler = (*postgresHandler)(nil)

// settingOrEnv returns v, or the environment variable k when v is empty.
func settingOrEnv(v, k string) string {
	if v == "" {
		return os.Getenv(k)
	}
	return v
}

// CreateCloudSQLPool for PostgreSQL
func (h postgresHandler) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	dbUser := settingOrEnv(cfg.User, "DB_USER")
	dbPwd := settingOrEnv(cfg.Password, "DB_PASS")
	dbName := settingOrEnv(cfg.DBName, "DB_NAME")
	instanceConnectionName := settingOrEnv(cfg.CloudSQLInstanceConnectionName, "INSTANCE_CONNECTION_NAME")
	usePrivate := cfg.UsePrivateIP || os.Getenv("PRIVATE_IP") != ""

	dsn := fmt.Sprintf("user=%s password=%s database=%s", dbUser, dbPwd, dbName)
	pgxConfig, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	var opts []cloudsqlconn.Option
	if usePrivate {
		opts = append(opts, cloudsqlconn.WithDefaultDialOptions(cloudsqlconn.WithPrivateIP()))
	}
	d, err := cloudsqlconn.NewDialer(context.Background(), opts...)
	if err != nil {
		return nil, err
	}
	pgxConfig.DialFunc = func(ctx context.Context, network, instance string) (net.Conn, error) {
		return d.Dial(ctx, instanceConnectionName)
	}
	dbURI := stdlib.RegisterConnConfig(pgxConfig)
	dbPool, err := sql.Open("pgx", dbURI)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	return dbPool, nil
}

// CreateStandardPool creates a standard PostgreSQL connection pool
func (h postgresHandler) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode,
	)

	dbPool, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	return dbPool, nil
}

// QuoteIdentifier for PostgreSQL
func (h postgresHandler) QuoteIdentifier(name string) string {
	return pq.QuoteIdentifier(name)
}

// ListColumns for PostgreSQL. An empty dataset selects the current schema.
func (h postgresHandler) ListColumns(ctx context.Context, db *database.DB, ref profiler.TableRef) ([]database.ColumnInfo, error) {
	query := `
		SELECT a.attname,
		       format_type(a.atttypid, a.atttypmod),
		       NOT a.attnotnull,
		       COALESCE(col_description(a.attrelid, a.attnum), '')
		FROM pg_catalog.pg_attribute a
		JOIN pg_catalog.pg_class c ON c.oid = a.attrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = COALESCE(NULLIF($1, ''), current_schema())
		  AND c.relname = $2
		  AND a.attnum > 0
		  AND NOT a.attisdropped
		ORDER BY a.attnum;`

	rows, err := db.Pool.QueryContext(ctx, query, ref.Dataset, ref.Table)
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

// GetTableInfo for PostgreSQL. The row count is the planner estimate, -1 when
// the table has never been analyzed.
func (h postgresHandler) GetTableInfo(ctx context.Context, db *database.DB, ref profiler.TableRef) (*database.TableInfo, error) {
	query := `
		SELECT COALESCE(obj_description(c.oid, 'pg_class'), ''),
		       c.reltuples::bigint,
		       pg_total_relation_size(c.oid)
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = COALESCE(NULLIF($1, ''), current_schema())
		  AND c.relname = $2;`

	var info database.TableInfo
	err := db.Pool.QueryRowContext(ctx, query, ref.Dataset, ref.Table).Scan(&info.Description, &info.NumRows, &info.NumBytes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", ref, database.ErrTableNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve table info: %w", err)
	}
	return &info, nil
}

// GetPartitionColumn for PostgreSQL returns the first partition key of a
// declaratively partitioned table. Expression keys have attnum 0 and yield "".
func (h postgresHandler) GetPartitionColumn(ctx context.Context, db *database.DB, ref profiler.TableRef) (string, error) {
	query := `
		SELECT a.attname
		FROM pg_catalog.pg_partitioned_table p
		JOIN pg_catalog.pg_class c ON c.oid = p.partrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_catalog.pg_attribute a ON a.attrelid = c.oid AND a.attnum = p.partattrs[0]
		WHERE n.nspname = COALESCE(NULLIF($1, ''), current_schema())
		  AND c.relname = $2;`

	var column string
	err := db.Pool.QueryRowContext(ctx, query, ref.Dataset, ref.Table).Scan(&column)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to retrieve partition key: %w", err)
	}
	return column, nil
}

// MapType accepts both catalog names ("timestamp with time zone", "text[]")
// and driver names ("TIMESTAMPTZ", "_TEXT").
func (h postgresHandler) MapType(dataType string) (profiler.FieldType, bool) {
	name := database.NormalizeTypeName(dataType)
	if name == "" {
		return "", false
	}
	if strings.HasSuffix(name, "[]") {
		elem, _ := h.MapType(strings.TrimSuffix(name, "[]"))
		return elem, true
	}
	if strings.HasPrefix(name, "_") {
		elem, _ := h.MapType(strings.TrimPrefix(name, "_"))
		return elem, true
	}

	switch name {
	case "smallint", "integer", "bigint", "int2", "int4", "int8", "int", "smallserial", "serial", "bigserial", "oid":
		return profiler.TypeInteger, false
	case "real", "double precision", "float4", "float8":
		return profiler.TypeFloat, false
	case "numeric", "decimal":
		return profiler.TypeNumeric, false
	case "boolean", "bool":
		return profiler.TypeBoolean, false
	case "bytea":
		return profiler.TypeBytes, false
	case "date":
		return profiler.TypeDate, false
	case "timestamp with time zone", "timestamptz":
		return profiler.TypeTimestamp, false
	case "timestamp without time zone", "timestamp":
		return profiler.TypeDateTime, false
	case "time without time zone", "time":
		return profiler.TypeTime, false
	case "geometry", "geography":
		return profiler.TypeGeography, false
	}
	// text, varchar, uuid, json, jsonb, interval, timetz, enums and the rest
	// are profiled as text.
	return profiler.TypeString, false
}

// ScanValue converts a driver value. Arrays arrive in their text form and are
// split with pq's array parser.
func (h postgresHandler) ScanValue(raw any, databaseTypeName string) (profiler.Value, error) {
	fieldType, repeated := h.MapType(databaseTypeName)
	if !repeated || raw == nil {
		return database.ConvertValue(raw, fieldType)
	}

	var elems []sql.NullString
	if err := (pq.GenericArray{A: &elems}).Scan(raw); err != nil {
		return profiler.Missing, fmt.Errorf("parse %s array: %w", databaseTypeName, err)
	}
	values := make([]profiler.Value, 0, len(elems))
	for _, e := range elems {
		if !e.Valid {
			values = append(values, profiler.Missing)
			continue
		}
		v, err := database.ConvertValue(e.String, fieldType)
		if err != nil {
			return profiler.Missing, err
		}
		values = append(values, v)
	}
	return profiler.SequenceValue(values...), nil
}

// Arg passes values through; PostgreSQL binds positionally.
func (h postgresHandler) Arg(name string, value any) any {
	return value
}

func (h postgresHandler) PartitionSliceSQL(table, column string, maxRows int) string {
	return fmt.Sprintf("SELECT * FROM %s WHERE %s = $1 LIMIT %d", table, column, maxRows)
}

func (h postgresHandler) SampleSQL(table string, maxRows int, percent float64) string {
	if !database.SamplingEnabled(percent) {
		return fmt.Sprintf("SELECT * FROM %s LIMIT %d", table, maxRows)
	}
	return fmt.Sprintf("SELECT * FROM %s TABLESAMPLE SYSTEM (%s) LIMIT %d",
		table, database.FormatPercent(percent), maxRows)
}

func init() {
	database.RegisterDialectHandler("postgres", postgresHandler{})
	database.RegisterDialectHandler("cloudsqlpostgres", postgresHandler{})
}
