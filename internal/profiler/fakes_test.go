package profiler

import (
	"context"
	"fmt"

	"github.com/stretchr/testify/mock"
)

// MockExecutor records queries and returns canned rows.
type MockExecutor struct {
	mock.Mock
}

func (m *MockExecutor) Execute(ctx context.Context, query string, params ...QueryParameter) ([]Row, error) {
	args := m.Called(query, params)
	rows, _ := args.Get(0).([]Row)
	return rows, args.Error(1)
}

// stubDialect renders fixed, readable SQL so tests can match on it.
type stubDialect struct{}

func (stubDialect) MaxPartitionSQL(ref TableRef, field string) string {
	return fmt.Sprintf("SELECT MAX(%s) AS max_value FROM %s", field, ref)
}

func (stubDialect) PartitionSliceSQL(ref TableRef, field string, maxRows int) string {
	return fmt.Sprintf("SELECT * FROM %s WHERE %s = @max_partition LIMIT %d", ref, field, maxRows)
}

func (stubDialect) SampleSQL(ref TableRef, maxRows int, percent float64) string {
	return fmt.Sprintf("SELECT * FROM %s TABLESAMPLE SYSTEM (%g PERCENT) LIMIT %d", ref, percent, maxRows)
}
