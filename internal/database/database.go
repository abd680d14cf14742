package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/config"
	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/profiler"
)

// ErrTableNotFound is returned by schema lookups for tables that do not exist.
var ErrTableNotFound = errors.New("table not found")

var (
	_ profiler.QueryExecutor  = (*DB)(nil)
	_ profiler.SchemaProvider = (*DB)(nil)
	_ profiler.Dialect        = (*DB)(nil)
)

// DB holds the database connection pool and dialect handler.
type DB struct {
	Pool    *sql.DB
	Handler DialectHandler
	Config  config.DatabaseConfig
	Logger  *zap.Logger
}

// ColumnInfo holds basic information about a database column.
type ColumnInfo struct {
	Name        string
	DataType    string
	Nullable    bool
	Description string
}

// TableInfo holds table-level metadata read from the catalog.
type TableInfo struct {
	Description string
	NumRows     int64
	NumBytes    int64
}

var (
	dialectHandlers = make(map[string]DialectHandler)
	mu              sync.RWMutex
)

func RegisterDialectHandler(dialect string, handler DialectHandler) {
	mu.Lock()
	defer mu.Unlock()
	dialectHandlers[dialect] = handler
}

func GetDialectHandler(dialect string) (DialectHandler, error) {
	mu.RLock()
	defer mu.RUnlock()
	handler, ok := dialectHandlers[dialect]
	if !ok {
		return nil, fmt.Errorf("unsupported database dialect: %s", dialect)
	}
	return handler, nil
}

func New(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	handler, err := GetDialectHandler(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	var pool *sql.DB
	if strings.HasPrefix(cfg.Dialect, "cloudsql") {
		pool, err = handler.CreateCloudSQLPool(cfg)
	} else {
		pool, err = handler.CreateStandardPool(cfg)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create database pool for dialect %s: %w", cfg.Dialect, err)
	}

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database (ping failed) for dialect %s: %w", cfg.Dialect, err)
	}

	logger.Info("Connected to database", zap.String("dialect", cfg.Dialect), zap.String("database", cfg.DBName))
	return &DB{
		Pool:    pool,
		Handler: handler,
		Config:  cfg,
		Logger:  logger,
	}, nil
}

func (db *DB) GetConfig() config.DatabaseConfig {
	return db.Config
}

func (db *DB) Ping(ctx context.Context) error {
	if db.Pool == nil {
		return fmt.Errorf("database connection pool is not initialized")
	}
	return db.Pool.PingContext(ctx)
}

func (db *DB) Close() error {
	if db.Pool != nil {
		return db.Pool.Close()
	}
	db.logger().Warn("Attempted to close a nil database connection pool")
	return nil
}

func (db *DB) logger() *zap.Logger {
	if db.Logger == nil {
		return zap.NewNop()
	}
	return db.Logger
}

// QualifiedName returns the quoted schema-qualified name of ref. The project
// part of the reference is ignored.
func (db *DB) QualifiedName(ref profiler.TableRef) string {
	if ref.Dataset == "" {
		return db.Handler.QuoteIdentifier(ref.Table)
	}
	return db.Handler.QuoteIdentifier(ref.Dataset) + "." + db.Handler.QuoteIdentifier(ref.Table)
}

// MaxPartitionSQL implements profiler.Dialect.
func (db *DB) MaxPartitionSQL(ref profiler.TableRef, field string) string {
	return fmt.Sprintf("SELECT MAX(%s) AS %s FROM %s",
		db.Handler.QuoteIdentifier(field), profiler.MaxValueColumn, db.QualifiedName(ref))
}

// PartitionSliceSQL implements profiler.Dialect.
func (db *DB) PartitionSliceSQL(ref profiler.TableRef, field string, maxRows int) string {
	return db.Handler.PartitionSliceSQL(db.QualifiedName(ref), db.Handler.QuoteIdentifier(field), maxRows)
}

// SampleSQL implements profiler.Dialect.
func (db *DB) SampleSQL(ref profiler.TableRef, maxRows int, percent float64) string {
	return db.Handler.SampleSQL(db.QualifiedName(ref), maxRows, percent)
}

// Execute implements profiler.QueryExecutor. Cells are converted according to
// the driver-reported column types.
func (db *DB) Execute(ctx context.Context, query string, params ...profiler.QueryParameter) ([]profiler.Row, error) {
	if db.Pool == nil {
		return nil, fmt.Errorf("database connection pool is not initialized")
	}

	args := make([]any, 0, len(params))
	for _, p := range params {
		v, err := BindValue(p)
		if err != nil {
			return nil, err
		}
		args = append(args, db.Handler.Arg(p.Name, v))
	}

	db.logger().Debug("Executing query", zap.String("query", query), zap.Int("params", len(params)))
	rows, err := db.Pool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error executing query: %w", err)
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("error reading column types: %w", err)
	}

	var out []profiler.Row
	for rows.Next() {
		raw := make([]any, len(colTypes))
		ptrs := make([]any, len(colTypes))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}

		row := make(profiler.Row, len(colTypes))
		for i, ct := range colTypes {
			v, err := db.Handler.ScanValue(raw[i], ct.DatabaseTypeName())
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", ct.Name(), err)
			}
			row[ct.Name()] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// GetTable implements profiler.SchemaProvider.
func (db *DB) GetTable(ctx context.Context, ref profiler.TableRef) (*profiler.Table, error) {
	if db.Handler == nil {
		return nil, fmt.Errorf("dialect handler not initialized")
	}

	columns, err := db.Handler.ListColumns(ctx, db, ref)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%s: %w", ref, ErrTableNotFound)
	}

	info, err := db.Handler.GetTableInfo(ctx, db, ref)
	if err != nil {
		return nil, err
	}

	partitionColumn, err := db.Handler.GetPartitionColumn(ctx, db, ref)
	if err != nil {
		return nil, err
	}

	table := &profiler.Table{
		Ref:         ref,
		Schema:      make([]profiler.ColumnDescriptor, 0, len(columns)),
		Description: info.Description,
		NumBytes:    info.NumBytes,
	}
	if info.NumRows > 0 {
		table.NumRows = uint64(info.NumRows)
	}
	for _, c := range columns {
		fieldType, repeated := db.Handler.MapType(c.DataType)
		mode := profiler.ModeNullable
		switch {
		case repeated:
			mode = profiler.ModeRepeated
		case !c.Nullable:
			mode = profiler.ModeRequired
		}
		table.Schema = append(table.Schema, profiler.ColumnDescriptor{
			Name:        c.Name,
			Type:        fieldType,
			Mode:        mode,
			Description: c.Description,
		})
	}
	if partitionColumn != "" {
		table.Partitioning = &profiler.Partitioning{Field: partitionColumn}
	}
	return table, nil
}

// DialectHandler implements the engine-specific parts of the SQL backend.
type DialectHandler interface {
	CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error)
	CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error)
	QuoteIdentifier(name string) string

	// ListColumns returns the columns of ref in ordinal order, or none when
	// the table does not exist.
	ListColumns(ctx context.Context, db *DB, ref profiler.TableRef) ([]ColumnInfo, error)
	GetTableInfo(ctx context.Context, db *DB, ref profiler.TableRef) (*TableInfo, error)
	// GetPartitionColumn returns the column the table is partitioned on, or ""
	// when it is not partitioned by a plain column.
	GetPartitionColumn(ctx context.Context, db *DB, ref profiler.TableRef) (string, error)

	// MapType maps a catalog or driver type name to a declared column type.
	MapType(dataType string) (fieldType profiler.FieldType, repeated bool)
	ScanValue(raw any, databaseTypeName string) (profiler.Value, error)
	// Arg wraps a bound parameter value for the driver.
	Arg(name string, value any) any

	// PartitionSliceSQL and SampleSQL receive already quoted identifiers.
	PartitionSliceSQL(table, column string, maxRows int) string
	SampleSQL(table string, maxRows int, percent float64) string
}
