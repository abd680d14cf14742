package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strings"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/config"
	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/database"
	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/profiler"
)

type mysqlHandler struct{}

var _ database.DialectHandler = (*mysqlHandler)(nil)

func (h mysqlHandler) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.User == "" || cfg.Password == "" || cfg.DBName == "" || cfg.CloudSQLInstanceConnectionName == "" {
		return nil, fmt.Errorf("missing required CloudSQL connection parameter (user, pass, db, instance)")
	}
	instanceConnectionName := cfg.CloudSQLInstanceConnectionName

	d, err := cloudsqlconn.NewDialer(context.Background())
	if err != nil {
		return nil, fmt.Errorf("cloudsqlconn.NewDialer: %w", err)
	}

	var opts []cloudsqlconn.DialOption
	if cfg.UsePrivateIP {
		opts = append(opts, cloudsqlconn.WithPrivateIP())
	}

	network := fmt.Sprintf("cloudsql-%s", instanceConnectionName)

	mysql.RegisterDialContext(network,
		func(ctx context.Context, addr string) (net.Conn, error) {
			conn, dialErr := d.Dial(ctx, instanceConnectionName, opts...)
			if dialErr != nil {
				zap.L().Error("Cloud SQL dial failed", zap.String("instance", instanceConnectionName), zap.Error(dialErr))
			}
			return conn, dialErr
		})

	mysqlCfg := mysql.Config{
		User:                 cfg.User,
		Passwd:               cfg.Password,
		Net:                  network,
		Addr:                 instanceConnectionName,
		DBName:               cfg.DBName,
		AllowNativePasswords: true,
		ParseTime:            true,
	}

	dbPool, err := sql.Open("mysql", mysqlCfg.FormatDSN())
	if err != nil {
		mysql.DeregisterDialContext(network)
		d.Close()
		return nil, fmt.Errorf("sql.Open failed for CloudSQL MySQL: %w", err)
	}
	return dbPool, nil
}

func (h mysqlHandler) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	mysqlCfg := mysql.Config{
		User:                 cfg.User,
		Passwd:               cfg.Password,
		Net:                  "tcp",
		Addr:                 fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		DBName:               cfg.DBName,
		AllowNativePasswords: true,
		ParseTime:            true,
	}
	connStr := mysqlCfg.FormatDSN()

	dbPool, err := sql.Open("mysql", connStr)
	if err != nil {
		return nil, fmt.Errorf("sql.Open (standard mysql): %w", err)
	}
	return dbPool, nil
}

func (h mysqlHandler) QuoteIdentifier(name string) string {
	name = strings.ReplaceAll(name, "`", "``")
	return fmt.Sprintf("`%s`", name)
}

// An empty dataset falls back to the connection's default database.
const schemaFilter = "TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE())"

func (h mysqlHandler) ListColumns(ctx context.Context, db *database.DB, ref profiler.TableRef) ([]database.ColumnInfo, error) {
	query := `
		  SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE = 'YES', COLUMN_COMMENT
		  FROM information_schema.COLUMNS
		  WHERE ` + schemaFilter + `
			AND TABLE_NAME = ?
		  ORDER BY ORDINAL_POSITION;`

	rows, err := db.Pool.QueryContext(ctx, query, ref.Dataset, ref.Table)
	if err != nil {
		return nil, fmt.Errorf("error querying columns for table %s: %w", ref, err)
	}
	defer rows.Close()

	var columns []database.ColumnInfo
	for rows.Next() {
		var colInfo database.ColumnInfo
		var comment sql.NullString
		if err := rows.Scan(&colInfo.Name, &colInfo.DataType, &colInfo.Nullable, &comment); err != nil {
			return nil, fmt.Errorf("error scanning column info: %w", err)
		}
		colInfo.Description = comment.String
		columns = append(columns, colInfo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column rows: %w", err)
	}

	return columns, nil
}

func (h mysqlHandler) GetTableInfo(ctx context.Context, db *database.DB, ref profiler.TableRef) (*database.TableInfo, error) {
	query := `
		  SELECT TABLE_COMMENT, COALESCE(TABLE_ROWS, -1), COALESCE(DATA_LENGTH + INDEX_LENGTH, 0)
		  FROM information_schema.TABLES
		  WHERE ` + schemaFilter + `
			AND TABLE_NAME = ?;`

	var info database.TableInfo
	var comment sql.NullString
	err := db.Pool.QueryRowContext(ctx, query, ref.Dataset, ref.Table).Scan(&comment, &info.NumRows, &info.NumBytes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", ref, database.ErrTableNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve table info for %s: %w", ref, err)
	}
	info.Description = comment.String
	return &info, nil
}

// GetPartitionColumn reads the partition expression of the first partition.
// Only expressions naming a single column, as RANGE COLUMNS and LIST COLUMNS
// partitioning do, are reported.
func (h mysqlHandler) GetPartitionColumn(ctx context.Context, db *database.DB, ref profiler.TableRef) (string, error) {
	query := `
		  SELECT PARTITION_EXPRESSION
		  FROM information_schema.PARTITIONS
		  WHERE ` + schemaFilter + `
			AND TABLE_NAME = ?
			AND PARTITION_EXPRESSION IS NOT NULL
		  ORDER BY PARTITION_ORDINAL_POSITION
		  LIMIT 1;`

	var expr string
	err := db.Pool.QueryRowContext(ctx, query, ref.Dataset, ref.Table).Scan(&expr)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to retrieve partition expression for %s: %w", ref, err)
	}
	return database.PartitionExpressionColumn(expr), nil
}

// MapType accepts information_schema DATA_TYPE values and driver type names
// such as "UNSIGNED BIGINT".
func (h mysqlHandler) MapType(dataType string) (profiler.FieldType, bool) {
	name := database.NormalizeTypeName(dataType)
	name = strings.TrimSuffix(strings.TrimPrefix(name, "unsigned "), " unsigned")

	switch name {
	case "":
		return "", false
	case "tinyint", "smallint", "mediumint", "int", "integer", "bigint", "year":
		return profiler.TypeInteger, false
	case "float", "double", "real":
		return profiler.TypeFloat, false
	case "decimal", "numeric":
		return profiler.TypeNumeric, false
	case "bool", "boolean":
		return profiler.TypeBoolean, false
	case "date":
		return profiler.TypeDate, false
	case "datetime":
		return profiler.TypeDateTime, false
	case "timestamp":
		return profiler.TypeTimestamp, false
	case "binary", "varbinary", "tinyblob", "blob", "mediumblob", "longblob", "bit",
		"geometry", "point", "linestring", "polygon", "multipoint", "multilinestring", "multipolygon", "geometrycollection":
		return profiler.TypeBytes, false
	}
	// TIME holds durations beyond a day, so it is kept as text along with
	// char, text, enum, set and json.
	return profiler.TypeString, false
}

func (h mysqlHandler) ScanValue(raw any, databaseTypeName string) (profiler.Value, error) {
	fieldType, _ := h.MapType(databaseTypeName)
	return database.ConvertValue(raw, fieldType)
}

func (h mysqlHandler) Arg(name string, value any) any {
	return value
}

func (h mysqlHandler) PartitionSliceSQL(table, column string, maxRows int) string {
	return fmt.Sprintf("SELECT * FROM %s WHERE %s = ? LIMIT %d", table, column, maxRows)
}

// SampleSQL keeps each row with the requested probability. MySQL has no
// TABLESAMPLE clause.
func (h mysqlHandler) SampleSQL(table string, maxRows int, percent float64) string {
	if !database.SamplingEnabled(percent) {
		return fmt.Sprintf("SELECT * FROM %s LIMIT %d", table, maxRows)
	}
	return fmt.Sprintf("SELECT * FROM %s WHERE RAND() < %s LIMIT %d",
		table, database.FormatPercent(percent/100), maxRows)
}

func init() {
	database.RegisterDialectHandler("mysql", mysqlHandler{})
	database.RegisterDialectHandler("cloudsqlmysql", mysqlHandler{})
}
