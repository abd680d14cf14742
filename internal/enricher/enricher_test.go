package enricher

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/database"
	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/genai"
	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/profiler"
)

type mockSchemas struct {
	mock.Mock
}

func (m *mockSchemas) GetTable(ctx context.Context, ref profiler.TableRef) (*profiler.Table, error) {
	args := m.Called(ref)
	table, _ := args.Get(0).(*profiler.Table)
	return table, args.Error(1)
}

type mockProfiler struct {
	mock.Mock
}

func (m *mockProfiler) ProfileTable(ctx context.Context, table *profiler.Table) (*profiler.TableProfile, error) {
	args := m.Called(table.Ref)
	profile, _ := args.Get(0).(*profiler.TableProfile)
	return profile, args.Error(1)
}

type mockLLM struct {
	mock.Mock
}

func (m *mockLLM) GenerateMetadata(ctx context.Context, prompt string) (map[string]any, error) {
	args := m.Called(prompt)
	payload, _ := args.Get(0).(map[string]any)
	return payload, args.Error(1)
}

func (m *mockLLM) IsAPIKeyValid(ctx context.Context) error { return nil }

func (m *mockLLM) Close() error { return nil }

var (
	ordersRef = profiler.TableRef{Project: "proj", Dataset: "sales", Table: "orders"}
	fastRetry = RetryOptions{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffMultiplier: 1}
)

func ordersTable() *profiler.Table {
	return &profiler.Table{
		Ref:          ordersRef,
		Description:  "Web shop orders",
		Partitioning: &profiler.Partitioning{Field: "order_date"},
		NumRows:      1200,
		NumBytes:     3*1024*1024 + 512*1024,
		Labels:       map[string]string{"team": "sales"},
		LastModified: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		Schema: []profiler.ColumnDescriptor{
			{Name: "id", Type: profiler.TypeInteger, Mode: profiler.ModeRequired},
			{Name: "order_date", Type: profiler.TypeDate, Mode: profiler.ModeNullable, Description: "Order day"},
		},
	}
}

func ordersProfile() *profiler.TableProfile {
	p := profiler.NewTableProfile()
	p.Set("id", &profiler.ColumnProfile{Type: profiler.TypeInteger, ExampleValues: []string{"1", "2"}, DistinctRatio: 1})
	p.Set("order_date", &profiler.ColumnProfile{Type: profiler.TypeDate, ExampleValues: []string{`"2024-01-15"`}, DistinctRatio: 0.5})
	return p
}

func validPayload() map[string]any {
	var payload map[string]any
	_ = json.Unmarshal([]byte(`{
	  "table_fqn": "proj.sales.orders",
	  "table_description": {"description": "Orders", "accuracy": 0.8, "glossary_terms": ["Order"]},
	  "columns": [{"name": "id", "description": "Order id", "accuracy": 0.9, "is_computed": false,
	    "sensitivity": {"is_sensitive": false, "classification": "Internal"}, "glossary_terms": []}],
	  "model": {"name": "metadata-profiler-gemini", "version": "1.0.0"},
	  "generated_at": "2025-02-01T00:00:00Z"
	}`), &payload)
	return payload
}

func newTestService(t *testing.T, llm genai.LLMClient) (*Service, *mockSchemas, *mockProfiler) {
	schemas := &mockSchemas{}
	prof := &mockProfiler{}
	opts := Options{Retry: fastRetry, AdditionalContext: "Orders are placed by retail customers.", Concurrency: 2}
	return NewService(schemas, prof, llm, opts, zaptest.NewLogger(t)), schemas, prof
}

func TestProfileTable(t *testing.T) {
	svc, schemas, prof := newTestService(t, nil)
	schemas.On("GetTable", ordersRef).Return(ordersTable(), nil)
	prof.On("ProfileTable", ordersRef).Return(ordersProfile(), nil)

	got, err := svc.ProfileTable(context.Background(), ordersRef)

	require.NoError(t, err)
	assert.Equal(t, []string{"id", "order_date"}, got.Columns())
	schemas.AssertExpectations(t)
	prof.AssertExpectations(t)
}

func TestProfileTableErrors(t *testing.T) {
	t.Run("missing table name", func(t *testing.T) {
		svc, _, _ := newTestService(t, nil)
		_, err := svc.ProfileTable(context.Background(), profiler.TableRef{Project: "p", Dataset: "d"})
		var inputErr *ErrInvalidInput
		assert.ErrorAs(t, err, &inputErr)
	})

	t.Run("table not found", func(t *testing.T) {
		svc, schemas, _ := newTestService(t, nil)
		schemas.On("GetTable", ordersRef).Return(nil, database.ErrTableNotFound)
		_, err := svc.ProfileTable(context.Background(), ordersRef)
		assert.ErrorIs(t, err, database.ErrTableNotFound)
	})

	t.Run("query failure is surfaced", func(t *testing.T) {
		svc, schemas, prof := newTestService(t, nil)
		engineErr := errors.New("quota exceeded")
		schemas.On("GetTable", ordersRef).Return(ordersTable(), nil)
		prof.On("ProfileTable", ordersRef).Return(nil, &profiler.QueryExecutionError{Query: "SELECT 1", Err: engineErr})

		_, err := svc.ProfileTable(context.Background(), ordersRef)

		var qerr *profiler.QueryExecutionError
		require.ErrorAs(t, err, &qerr)
		assert.ErrorIs(t, err, engineErr)
		prof.AssertNumberOfCalls(t, "ProfileTable", 1)
	})

	t.Run("deadline becomes timeout", func(t *testing.T) {
		svc, schemas, _ := newTestService(t, nil)
		ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
		defer cancel()
		<-ctx.Done()
		schemas.On("GetTable", ordersRef).Return(nil, context.DeadlineExceeded)

		_, err := svc.ProfileTable(ctx, ordersRef)

		var timeoutErr *ErrTimeout
		assert.ErrorAs(t, err, &timeoutErr)
	})
}

func TestProfileTables(t *testing.T) {
	svc, schemas, prof := newTestService(t, nil)
	customers := profiler.TableRef{Project: "proj", Dataset: "sales", Table: "customers"}
	missing := profiler.TableRef{Project: "proj", Dataset: "sales", Table: "gone"}
	customersTable := &profiler.Table{Ref: customers}

	schemas.On("GetTable", ordersRef).Return(ordersTable(), nil)
	schemas.On("GetTable", customers).Return(customersTable, nil)
	schemas.On("GetTable", missing).Return(nil, database.ErrTableNotFound)
	prof.On("ProfileTable", ordersRef).Return(ordersProfile(), nil)
	prof.On("ProfileTable", customers).Return(profiler.NewTableProfile(), nil)

	results := svc.ProfileTables(context.Background(), []profiler.TableRef{ordersRef, missing, customers})

	require.Len(t, results, 3)
	assert.Equal(t, ordersRef, results[0].Table)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 2, results[0].Profile.Len())
	assert.Equal(t, missing, results[1].Table)
	assert.ErrorIs(t, results[1].Err, database.ErrTableNotFound)
	assert.Equal(t, customers, results[2].Table)
	assert.True(t, results[2].Profile.IsEmpty())
}

func TestGenerateMetadata(t *testing.T) {
	llm := &mockLLM{}
	svc, schemas, prof := newTestService(t, llm)
	schemas.On("GetTable", ordersRef).Return(ordersTable(), nil)
	prof.On("ProfileTable", ordersRef).Return(ordersProfile(), nil)
	llm.On("GenerateMetadata", mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "- FQN: proj.sales.orders") &&
			strings.Contains(p, "- id: 1, 2") &&
			strings.Contains(p, "Orders are placed by retail customers.")
	})).Return(validPayload(), nil).Once()

	md, err := svc.GenerateMetadata(context.Background(), ordersRef)

	require.NoError(t, err)
	assert.Equal(t, "proj.sales.orders", md.TableFQN)
	require.Len(t, md.Columns, 1)
	assert.Equal(t, "Internal", md.Columns[0].Sensitivity.Classification)
	llm.AssertExpectations(t)
}

func TestGenerateMetadataRetriesModelFailures(t *testing.T) {
	llm := &mockLLM{}
	svc, schemas, prof := newTestService(t, llm)
	schemas.On("GetTable", ordersRef).Return(ordersTable(), nil)
	prof.On("ProfileTable", ordersRef).Return(ordersProfile(), nil)
	llm.On("GenerateMetadata", mock.Anything).Return(nil, errors.New("model did not return pure JSON")).Twice()
	llm.On("GenerateMetadata", mock.Anything).Return(validPayload(), nil).Once()

	md, err := svc.GenerateMetadata(context.Background(), ordersRef)

	require.NoError(t, err)
	assert.NotNil(t, md)
	llm.AssertNumberOfCalls(t, "GenerateMetadata", 3)
}

func TestGenerateMetadataGivesUpAfterMaxAttempts(t *testing.T) {
	llm := &mockLLM{}
	svc, schemas, prof := newTestService(t, llm)
	modelErr := errors.New("503 unavailable")
	schemas.On("GetTable", ordersRef).Return(ordersTable(), nil)
	prof.On("ProfileTable", ordersRef).Return(ordersProfile(), nil)
	llm.On("GenerateMetadata", mock.Anything).Return(nil, modelErr)

	_, err := svc.GenerateMetadata(context.Background(), ordersRef)

	var genErr *ErrGeneration
	require.ErrorAs(t, err, &genErr)
	assert.ErrorIs(t, err, modelErr)
	llm.AssertNumberOfCalls(t, "GenerateMetadata", 3)
}

func TestGenerateMetadataInvalidPayload(t *testing.T) {
	llm := &mockLLM{}
	svc, schemas, prof := newTestService(t, llm)
	payload := validPayload()
	payload["table_description"].(map[string]any)["accuracy"] = 7.0
	delete(payload, "generated_at")
	schemas.On("GetTable", ordersRef).Return(ordersTable(), nil)
	prof.On("ProfileTable", ordersRef).Return(ordersProfile(), nil)
	llm.On("GenerateMetadata", mock.Anything).Return(payload, nil)

	_, err := svc.GenerateMetadata(context.Background(), ordersRef)

	var invalid *ErrInvalidMetadata
	require.ErrorAs(t, err, &invalid)
	assert.Len(t, invalid.Details, 2)
	llm.AssertNumberOfCalls(t, "GenerateMetadata", 1)
}

func TestGenerateMetadataWithoutClient(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	_, err := svc.GenerateMetadata(context.Background(), ordersRef)
	var inputErr *ErrInvalidInput
	assert.ErrorAs(t, err, &inputErr)
}

func TestTableStatus(t *testing.T) {
	svc, schemas, _ := newTestService(t, nil)
	schemas.On("GetTable", ordersRef).Return(ordersTable(), nil)

	status, err := svc.TableStatus(context.Background(), ordersRef)

	require.NoError(t, err)
	assert.True(t, status.Exists)
	assert.True(t, status.IsPartitioned)
	require.NotNil(t, status.PartitionField)
	assert.Equal(t, "order_date", *status.PartitionField)
	assert.Equal(t, uint64(1200), status.RowCount)
	assert.Equal(t, 3.5, status.SizeMB)
	require.Len(t, status.Columns, 2)
	assert.False(t, status.Columns[0].IsPartitioningColumn)
	assert.Nil(t, status.Columns[0].Description)
	assert.True(t, status.Columns[1].IsPartitioningColumn)
	assert.Equal(t, "Order day", *status.Columns[1].Description)
	assert.Equal(t, map[string]string{"team": "sales"}, status.Labels)
}

func TestTableStatusIngestionTimePartitioning(t *testing.T) {
	svc, schemas, _ := newTestService(t, nil)
	table := ordersTable()
	table.Partitioning = &profiler.Partitioning{}
	table.Labels = nil
	schemas.On("GetTable", ordersRef).Return(table, nil)

	status, err := svc.TableStatus(context.Background(), ordersRef)

	require.NoError(t, err)
	assert.True(t, status.IsPartitioned)
	assert.Equal(t, profiler.IngestionTimePartitionColumn, *status.PartitionField)
	assert.NotNil(t, status.Labels)
	for _, c := range status.Columns {
		assert.False(t, c.IsPartitioningColumn)
	}
}

func TestTableStatusMissingTable(t *testing.T) {
	svc, schemas, _ := newTestService(t, nil)
	schemas.On("GetTable", ordersRef).Return(nil, database.ErrTableNotFound)

	status, err := svc.TableStatus(context.Background(), ordersRef)

	require.NoError(t, err)
	assert.False(t, status.Exists)
	raw, err := json.Marshal(status)
	require.NoError(t, err)
	assert.JSONEq(t, `{"table_fqn":"proj.sales.orders","exists":false}`, string(raw))
}

func TestTableStatusJSON(t *testing.T) {
	status := statusFromTable(&profiler.Table{
		Ref:    ordersRef,
		Schema: []profiler.ColumnDescriptor{{Name: "id", Type: profiler.TypeInteger, Mode: profiler.ModeNullable}},
	})

	raw, err := json.Marshal(status)
	require.NoError(t, err)
	assert.JSONEq(t, `{
	  "table_fqn": "proj.sales.orders",
	  "exists": true,
	  "is_partitioned": false,
	  "partition_field": null,
	  "row_count": 0,
	  "size_mb": 0,
	  "description": null,
	  "columns": [{"name": "id", "type": "INTEGER", "mode": "NULLABLE", "description": null, "is_partitioning_column": false}],
	  "labels": {},
	  "last_modified": null
	}`, string(raw))
}
