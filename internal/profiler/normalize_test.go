package profiler

import (
	"encoding/base64"
	"math"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_Scalars(t *testing.T) {
	tests := []struct {
		name     string
		value    Value
		wantKind Kind
		wantText string
	}{
		{"string", StringValue("abc"), KindString, "abc"},
		{"geography", GeographyValue("POINT(1 2)"), KindGeography, "POINT(1 2)"},
		{"bytes", BytesValue([]byte{0xDE, 0xAD}), KindBytes, "3q0="},
		{"decimal trailing zeros", DecimalValue(decimal.RequireFromString("1.50")), KindDecimal, "1.5"},
		{"decimal exponent", DecimalValue(decimal.RequireFromString("15e-1")), KindDecimal, "1.5"},
		{"timestamp with zone", TimestampValue(time.Date(2024, 1, 15, 10, 0, 0, 0, time.FixedZone("EST", -5*3600))), KindTimestamp, "2024-01-15T15:00:00Z"},
		{"timestamp keeps sub-second digits", TimestampValue(time.Date(2024, 1, 15, 10, 0, 0, 250000000, time.UTC)), KindTimestamp, "2024-01-15T10:00:00.25Z"},
		{"date", DateValue(civil.Date{Year: 2024, Month: time.January, Day: 15}), KindDate, "2024-01-15"},
		{"time", TimeValue(civil.Time{Hour: 10, Minute: 30}), KindTime, "10:30:00"},
		{"datetime", DateTimeValue(civil.DateTime{
			Date: civil.Date{Year: 2024, Month: time.January, Day: 15},
			Time: civil.Time{Hour: 10},
		}), KindDateTime, "2024-01-15T10:00:00"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			n := Normalize(tc.value)
			assert.Equal(t, tc.wantKind, n.Kind)
			assert.Equal(t, tc.wantText, n.Text)
		})
	}
}

func TestNormalize_PassThrough(t *testing.T) {
	assert.Equal(t, int64(42), Normalize(IntValue(42)).Int)
	assert.Equal(t, 1.5, Normalize(FloatValue(1.5)).Float)
	assert.True(t, Normalize(BoolValue(true)).Bool)
	assert.Equal(t, KindMissing, Normalize(Missing).Kind)
}

func TestNormalize_TimezonesAreEquivalent(t *testing.T) {
	est := time.FixedZone("", -5*3600)
	a := Normalize(TimestampValue(time.Date(2024, 1, 15, 10, 0, 0, 0, est)))
	b := Normalize(TimestampValue(time.Date(2024, 1, 15, 15, 0, 0, 0, time.UTC)))
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Key(), b.Key())
}

func TestNormalize_BytesRoundTrip(t *testing.T) {
	raw := []byte{0xDE, 0xAD}
	decoded, err := base64.StdEncoding.DecodeString(Normalize(BytesValue(raw)).Text)
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)
}

func TestNormalize_RecordFieldOrderIndependent(t *testing.T) {
	ab := RecordValue(Field{"a", IntValue(1)}, Field{"b", IntValue(2)})
	ba := RecordValue(Field{"b", IntValue(2)}, Field{"a", IntValue(1)})

	n := Normalize(ba)
	require.Len(t, n.Fields, 2)
	assert.Equal(t, "a", n.Fields[0].Name)
	assert.Equal(t, "b", n.Fields[1].Name)
	assert.Equal(t, Normalize(ab).Key(), n.Key())
}

func TestNormalize_NestedRecords(t *testing.T) {
	inner1 := RecordValue(Field{"y", StringValue("q")}, Field{"x", BytesValue([]byte("p"))})
	inner2 := RecordValue(Field{"x", BytesValue([]byte("p"))}, Field{"y", StringValue("q")})
	a := RecordValue(Field{"outer", SequenceValue(inner1)}, Field{"id", IntValue(7)})
	b := RecordValue(Field{"id", IntValue(7)}, Field{"outer", SequenceValue(inner2)})
	assert.True(t, Normalize(a).Equal(Normalize(b)))
}

func TestNormalize_SequenceOrderPreserved(t *testing.T) {
	a := Normalize(SequenceValue(IntValue(1), IntValue(2)))
	b := Normalize(SequenceValue(IntValue(2), IntValue(1)))
	assert.False(t, a.Equal(b))
}

func TestNormalize_KeysDistinguishKinds(t *testing.T) {
	values := []Value{
		IntValue(1),
		FloatValue(1),
		StringValue("1"),
		GeographyValue("1"),
		DecimalValue(decimal.NewFromInt(1)),
		BoolValue(true),
		SequenceValue(IntValue(1)),
		RecordValue(Field{"1", Missing}),
		Missing,
	}
	seen := make(map[string]int)
	for i, v := range values {
		key := Normalize(v).Key()
		if j, ok := seen[key]; ok {
			t.Fatalf("values %d and %d share key %q", j, i, key)
		}
		seen[key] = i
	}
}

func TestNormalize_KeysAreUnambiguous(t *testing.T) {
	// Length prefixes keep concatenated texts apart.
	a := SequenceValue(StringValue("ab"), StringValue("c"))
	b := SequenceValue(StringValue("a"), StringValue("bc"))
	assert.NotEqual(t, Normalize(a).Key(), Normalize(b).Key())

	r1 := RecordValue(Field{"a:", StringValue("b")})
	r2 := RecordValue(Field{"a", StringValue(":b")})
	assert.NotEqual(t, Normalize(r1).Key(), Normalize(r2).Key())
}

func TestNormalize_FloatEquality(t *testing.T) {
	assert.True(t, Normalize(FloatValue(math.Copysign(0, -1))).Equal(Normalize(FloatValue(0))))
	assert.True(t, Normalize(FloatValue(math.NaN())).Equal(Normalize(FloatValue(math.NaN()))))
	assert.False(t, Normalize(FloatValue(math.Inf(1))).Equal(Normalize(FloatValue(math.Inf(-1)))))
}

func TestValue_IsMissing(t *testing.T) {
	assert.True(t, Missing.IsMissing())
	assert.True(t, SequenceValue().IsMissing())
	assert.False(t, SequenceValue(Missing).IsMissing())
	assert.False(t, StringValue("").IsMissing())
	assert.False(t, IntValue(0).IsMissing())
	assert.False(t, RecordValue().IsMissing())
}
