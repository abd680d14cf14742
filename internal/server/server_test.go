package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/database"
	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/enricher"
	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/metadata"
	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/profiler"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) ProfileTable(ctx context.Context, ref profiler.TableRef) (*profiler.TableProfile, error) {
	args := m.Called(ref)
	p, _ := args.Get(0).(*profiler.TableProfile)
	return p, args.Error(1)
}

func (m *mockService) GenerateMetadata(ctx context.Context, ref profiler.TableRef) (*metadata.TableMetadata, error) {
	args := m.Called(ref)
	md, _ := args.Get(0).(*metadata.TableMetadata)
	return md, args.Error(1)
}

func (m *mockService) TableStatus(ctx context.Context, ref profiler.TableRef) (*enricher.TableStatus, error) {
	args := m.Called(ref)
	s, _ := args.Get(0).(*enricher.TableStatus)
	return s, args.Error(1)
}

var ordersRef = profiler.TableRef{Project: "proj", Dataset: "sales", Table: "orders"}

func newTestServer(t *testing.T) (*httptest.Server, *mockService) {
	svc := &mockService{}
	srv := NewServer(Config{Service: svc, Logger: zaptest.NewLogger(t)})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, svc
}

func doRequest(t *testing.T, method, url, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/health", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, body)
	_, err := uuid.Parse(resp.Header.Get(RequestIDHeader))
	assert.NoError(t, err)
}

func TestRequestIDIsPropagated(t *testing.T) {
	ts, _ := newTestServer(t)
	id := uuid.NewString()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, id)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, id, resp.Header.Get(RequestIDHeader))
}

func TestTableStatusEndpoint(t *testing.T) {
	t.Run("existing table", func(t *testing.T) {
		ts, svc := newTestServer(t)
		field := "order_date"
		svc.On("TableStatus", ordersRef).Return(&enricher.TableStatus{
			TableFQN:       "proj.sales.orders",
			Exists:         true,
			IsPartitioned:  true,
			PartitionField: &field,
			RowCount:       10,
			SizeMB:         1.25,
			Columns:        []enricher.ColumnStatus{},
			Labels:         map[string]string{},
		}, nil)

		resp, body := doRequest(t, http.MethodGet, ts.URL+"/tables/proj/sales/orders", "")

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, `"partition_field":"order_date"`)
		assert.Contains(t, body, `"size_mb":1.25`)
		svc.AssertExpectations(t)
	})

	t.Run("missing table", func(t *testing.T) {
		ts, svc := newTestServer(t)
		svc.On("TableStatus", ordersRef).Return(&enricher.TableStatus{TableFQN: "proj.sales.orders"}, nil)

		resp, body := doRequest(t, http.MethodGet, ts.URL+"/tables/proj/sales/orders", "")

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.JSONEq(t, `{"error":"Table not found"}`, body)
	})

	t.Run("backend failure", func(t *testing.T) {
		ts, svc := newTestServer(t)
		svc.On("TableStatus", ordersRef).Return(nil, errors.New("permission denied"))

		resp, body := doRequest(t, http.MethodGet, ts.URL+"/tables/proj/sales/orders", "")

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.JSONEq(t, `{"error":"Internal server error"}`, body)
		assert.NotContains(t, body, "permission denied")
	})
}

func TestProfileEndpoint(t *testing.T) {
	t.Run("profile", func(t *testing.T) {
		ts, svc := newTestServer(t)
		profile := profiler.NewTableProfile()
		profile.Set("id", &profiler.ColumnProfile{
			Type: profiler.TypeInteger, Mode: profiler.ModeRequired,
			ExampleValues: []string{"1"}, NullRatio: 0, DistinctRatio: 1,
		})
		svc.On("ProfileTable", ordersRef).Return(profile, nil)

		resp, body := doRequest(t, http.MethodPost, ts.URL+"/profile", `{"project":"proj","dataset":"sales","table":"orders"}`)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"id":{"type":"INTEGER","mode":"REQUIRED","example_values":["1"],"null_ratio":0,"distinct_ratio":1}}`, body)
	})

	t.Run("empty profile", func(t *testing.T) {
		ts, svc := newTestServer(t)
		svc.On("ProfileTable", ordersRef).Return(profiler.NewTableProfile(), nil)

		resp, body := doRequest(t, http.MethodPost, ts.URL+"/profile", `{"project":"proj","dataset":"sales","table":"orders"}`)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{}`, body)
	})

	t.Run("malformed body", func(t *testing.T) {
		ts, _ := newTestServer(t)
		resp, _ := doRequest(t, http.MethodPost, ts.URL+"/profile", `{"project":`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("incomplete reference", func(t *testing.T) {
		ts, svc := newTestServer(t)
		resp, _ := doRequest(t, http.MethodPost, ts.URL+"/profile", `{"project":"proj","table":"orders"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		svc.AssertNotCalled(t, "ProfileTable", mock.Anything)
	})

	t.Run("table not found", func(t *testing.T) {
		ts, svc := newTestServer(t)
		svc.On("ProfileTable", ordersRef).Return(nil, database.ErrTableNotFound)
		resp, _ := doRequest(t, http.MethodPost, ts.URL+"/profile", `{"project":"proj","dataset":"sales","table":"orders"}`)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestGenerateMetadataEndpoint(t *testing.T) {
	const body = `{"project":"proj","dataset":"sales","table":"orders"}`

	t.Run("success", func(t *testing.T) {
		ts, svc := newTestServer(t)
		svc.On("GenerateMetadata", ordersRef).Return(&metadata.TableMetadata{
			TableFQN: "proj.sales.orders",
			Model:    metadata.ModelInfo{Name: "metadata-profiler-gemini", Version: "1.0.0"},
		}, nil)

		resp, got := doRequest(t, http.MethodPost, ts.URL+"/generate-metadata", body)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, got, `"table_fqn":"proj.sales.orders"`)
	})

	t.Run("invalid metadata", func(t *testing.T) {
		ts, svc := newTestServer(t)
		svc.On("GenerateMetadata", ordersRef).Return(nil, &enricher.ErrInvalidMetadata{
			Details: []string{"'model' is a required property"},
		})

		resp, got := doRequest(t, http.MethodPost, ts.URL+"/generate-metadata", body)

		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.JSONEq(t, `{"error":"Invalid metadata schema","details":["'model' is a required property"]}`, got)
	})

	t.Run("generation failure", func(t *testing.T) {
		ts, svc := newTestServer(t)
		svc.On("GenerateMetadata", ordersRef).Return(nil, &enricher.ErrGeneration{Msg: "model call failed", Err: errors.New("boom")})

		resp, got := doRequest(t, http.MethodPost, ts.URL+"/generate-metadata", body)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.JSONEq(t, `{"error":"Internal server error"}`, got)
	})

	t.Run("timeout", func(t *testing.T) {
		ts, svc := newTestServer(t)
		svc.On("GenerateMetadata", ordersRef).Return(nil, &enricher.ErrTimeout{Msg: "profile table", Err: context.DeadlineExceeded})

		resp, _ := doRequest(t, http.MethodPost, ts.URL+"/generate-metadata", body)

		assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
	})
}

func TestServeShutsDownOnCancel(t *testing.T) {
	srv := NewServer(Config{Service: &mockService{}, Port: 0, Logger: zaptest.NewLogger(t), ShutdownTimeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancellation")
	}
}
