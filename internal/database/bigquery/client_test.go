package bigquery

import (
	"math/big"
	"testing"
	"time"

	bq "cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/profiler"
)

var ordersRef = profiler.TableRef{Project: "proj", Dataset: "sales", Table: "orders"}

func TestTableFromMetadata(t *testing.T) {
	modified := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	md := &bq.TableMetadata{
		Description:      "Orders placed online",
		NumRows:          1200,
		NumBytes:         2 * 1024 * 1024,
		Labels:           map[string]string{"team": "sales"},
		LastModifiedTime: modified,
		TimePartitioning: &bq.TimePartitioning{Type: bq.DayPartitioningType, Field: "order_date"},
		Schema: bq.Schema{
			{Name: "id", Type: bq.IntegerFieldType, Required: true},
			{Name: "order_date", Type: bq.DateFieldType, Description: "Day the order was placed"},
			{Name: "amount", Type: bq.BigNumericFieldType},
			{Name: "items", Type: bq.RecordFieldType, Repeated: true, Schema: bq.Schema{
				{Name: "sku", Type: bq.StringFieldType},
				{Name: "qty", Type: bq.IntegerFieldType},
			}},
		},
	}

	table := tableFromMetadata(ordersRef, md)

	assert.Equal(t, ordersRef, table.Ref)
	assert.Equal(t, "Orders placed online", table.Description)
	assert.Equal(t, uint64(1200), table.NumRows)
	assert.Equal(t, int64(2*1024*1024), table.NumBytes)
	assert.Equal(t, map[string]string{"team": "sales"}, table.Labels)
	assert.Equal(t, modified, table.LastModified)
	require.NotNil(t, table.Partitioning)
	assert.Equal(t, "order_date", table.Partitioning.Field)

	require.Len(t, table.Schema, 4)
	assert.Equal(t, profiler.ColumnDescriptor{Name: "id", Type: profiler.TypeInteger, Mode: profiler.ModeRequired}, table.Schema[0])
	assert.Equal(t, profiler.ModeNullable, table.Schema[1].Mode)
	assert.Equal(t, "Day the order was placed", table.Schema[1].Description)
	assert.Equal(t, profiler.FieldType("BIGNUMERIC"), table.Schema[2].Type)
	assert.Equal(t, profiler.ModeRepeated, table.Schema[3].Mode)
	assert.Equal(t, []profiler.ColumnDescriptor{
		{Name: "sku", Type: profiler.TypeString, Mode: profiler.ModeNullable},
		{Name: "qty", Type: profiler.TypeInteger, Mode: profiler.ModeNullable},
	}, table.Schema[3].Fields)
}

func TestTableFromMetadataPartitioning(t *testing.T) {
	t.Run("ingestion time", func(t *testing.T) {
		table := tableFromMetadata(ordersRef, &bq.TableMetadata{TimePartitioning: &bq.TimePartitioning{Type: bq.DayPartitioningType}})
		require.NotNil(t, table.Partitioning)
		assert.Empty(t, table.Partitioning.Field)

		field := profiler.ResolvePartition(table)
		require.NotNil(t, field)
		assert.Equal(t, profiler.IngestionTimePartitionColumn, field.Name)
	})

	t.Run("integer range", func(t *testing.T) {
		table := tableFromMetadata(ordersRef, &bq.TableMetadata{RangePartitioning: &bq.RangePartitioning{Field: "region_id"}})
		assert.Nil(t, table.Partitioning)
	})

	t.Run("unpartitioned", func(t *testing.T) {
		table := tableFromMetadata(ordersRef, &bq.TableMetadata{})
		assert.Nil(t, table.Partitioning)
	})
}

func TestQueryParameter(t *testing.T) {
	day := civil.Date{Year: 2024, Month: 6, Day: 30}
	tests := []struct {
		name     string
		param    profiler.QueryParameter
		wantType string
		want     any
	}{
		{
			name:     "date",
			param:    profiler.QueryParameter{Name: "max_partition", Type: profiler.ParamDate, Value: profiler.DateValue(day)},
			wantType: "DATE",
			want:     "2024-06-30",
		},
		{
			name: "timestamp",
			param: profiler.QueryParameter{Name: "max_partition", Type: profiler.ParamTimestamp,
				Value: profiler.TimestampValue(time.Date(2024, 6, 30, 10, 0, 0, 250000000, time.UTC))},
			wantType: "TIMESTAMP",
			want:     "2024-06-30 10:00:00.25+00:00",
		},
		{
			name: "datetime",
			param: profiler.QueryParameter{Name: "max_partition", Type: profiler.ParamDateTime,
				Value: profiler.DateTimeValue(civil.DateTime{Date: day, Time: civil.Time{Hour: 23}})},
			wantType: "DATETIME",
			want:     "2024-06-30 23:00:00",
		},
		{
			name:     "string fallback",
			param:    profiler.QueryParameter{Name: "max_partition", Type: profiler.ParamString, Value: profiler.IntValue(42)},
			wantType: "STRING",
			want:     "42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qp, err := queryParameter(tt.param)
			require.NoError(t, err)
			assert.Equal(t, "max_partition", qp.Name)
			pv, ok := qp.Value.(*bq.QueryParameterValue)
			require.True(t, ok)
			assert.Equal(t, tt.wantType, pv.Type.TypeKind)
			assert.Equal(t, tt.want, pv.Value)
		})
	}
}

func TestDialectSQL(t *testing.T) {
	c := &Client{}

	assert.Equal(t, "SELECT MAX(`order_date`) AS max_value FROM `proj.sales.orders`",
		c.MaxPartitionSQL(ordersRef, "order_date"))
	assert.Equal(t, "SELECT MAX(_PARTITIONDATE) AS max_value FROM `proj.sales.orders`",
		c.MaxPartitionSQL(ordersRef, profiler.IngestionTimePartitionColumn))
	assert.Equal(t, "SELECT * FROM `proj.sales.orders` WHERE `order_date` = @max_partition LIMIT 50",
		c.PartitionSliceSQL(ordersRef, "order_date", 50))
	assert.Equal(t, "SELECT * FROM `proj.sales.orders` TABLESAMPLE SYSTEM (10 PERCENT) LIMIT 50",
		c.SampleSQL(ordersRef, 50, 10))
	assert.Equal(t, "SELECT * FROM `proj.sales.orders` LIMIT 50",
		c.SampleSQL(ordersRef, 50, 0))
}

func TestConvertRow(t *testing.T) {
	schema := bq.Schema{
		{Name: "id", Type: bq.IntegerFieldType},
		{Name: "price", Type: bq.NumericFieldType},
		{Name: "tags", Type: bq.StringFieldType, Repeated: true},
		{Name: "shipping", Type: bq.RecordFieldType, Schema: bq.Schema{
			{Name: "city", Type: bq.StringFieldType},
			{Name: "zip", Type: bq.StringFieldType},
		}},
		{Name: "area", Type: bq.GeographyFieldType},
		{Name: "day", Type: bq.DateFieldType},
		{Name: "note", Type: bq.StringFieldType},
	}
	cells := map[string]bq.Value{
		"id":    int64(7),
		"price": big.NewRat(1999, 100),
		"tags":  []bq.Value{"new", "gift"},
		"shipping": map[string]bq.Value{
			"zip":  "10115",
			"city": "Berlin",
		},
		"area": "POINT(13.4 52.5)",
		"day":  civil.Date{Year: 2024, Month: 6, Day: 30},
		"note": nil,
	}

	row, err := convertRow(cells, schema)
	require.NoError(t, err)

	assert.Equal(t, profiler.IntValue(7), row.Get("id"))
	assert.Equal(t, profiler.KindDecimal, row.Get("price").Kind())
	assert.Equal(t, "19.99", row.Get("price").Decimal().String())
	assert.Equal(t, profiler.SequenceValue(profiler.StringValue("new"), profiler.StringValue("gift")), row.Get("tags"))
	assert.Equal(t, profiler.RecordValue(
		profiler.Field{Name: "city", Value: profiler.StringValue("Berlin")},
		profiler.Field{Name: "zip", Value: profiler.StringValue("10115")},
	), row.Get("shipping"))
	assert.Equal(t, profiler.GeographyValue("POINT(13.4 52.5)"), row.Get("area"))
	assert.Equal(t, profiler.DateValue(civil.Date{Year: 2024, Month: 6, Day: 30}), row.Get("day"))
	assert.True(t, row.Get("note").IsMissing())

	display, err := profiler.ToDisplay(row.Get("shipping"))
	require.NoError(t, err)
	assert.Equal(t, `{"city":"Berlin","zip":"10115"}`, display)
}

func TestConvertScalar(t *testing.T) {
	t.Run("positional record", func(t *testing.T) {
		f := &bq.FieldSchema{Name: "pt", Type: bq.RecordFieldType, Schema: bq.Schema{
			{Name: "x", Type: bq.FloatFieldType},
			{Name: "y", Type: bq.FloatFieldType},
		}}
		got, err := convertScalar([]bq.Value{1.5, nil}, f)
		require.NoError(t, err)
		assert.Equal(t, profiler.RecordValue(
			profiler.Field{Name: "x", Value: profiler.FloatValue(1.5)},
			profiler.Field{Name: "y", Value: profiler.Missing},
		), got)
	})

	t.Run("bignumeric keeps scale", func(t *testing.T) {
		r, ok := new(big.Rat).SetString("1/3")
		require.True(t, ok)
		got, err := convertScalar(r, &bq.FieldSchema{Type: bq.BigNumericFieldType})
		require.NoError(t, err)
		assert.Equal(t, int32(-38), got.Decimal().Exponent())
	})

	t.Run("interval", func(t *testing.T) {
		iv := &bq.IntervalValue{Years: 1, Months: 2}
		got, err := convertScalar(iv, &bq.FieldSchema{Type: bq.IntervalFieldType})
		require.NoError(t, err)
		assert.Equal(t, profiler.StringValue(iv.String()), got)
	})

	t.Run("range", func(t *testing.T) {
		f := &bq.FieldSchema{Type: bq.RangeFieldType, RangeElementType: &bq.RangeElementType{Type: bq.DateFieldType}}
		got, err := convertScalar(&bq.RangeValue{Start: civil.Date{Year: 2024, Month: 1, Day: 1}}, f)
		require.NoError(t, err)
		assert.Equal(t, profiler.StringValue("[2024-01-01, UNBOUNDED)"), got)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := convertScalar(struct{}{}, &bq.FieldSchema{Type: bq.StringFieldType})
		var unsupportedErr *profiler.UnsupportedTypeError
		require.ErrorAs(t, err, &unsupportedErr)
		assert.Equal(t, "struct {}", unsupportedErr.GoType)
	})

	t.Run("repeated needs a list", func(t *testing.T) {
		_, err := convertField("solo", &bq.FieldSchema{Type: bq.StringFieldType, Repeated: true})
		assert.Error(t, err)
	})
}
