package database

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/profiler"
)

// ConvertValue turns a value returned by a database/sql driver into a
// profiler.Value of the declared type. An empty declared type infers the
// variant from the Go type. nil becomes Missing.
func ConvertValue(raw any, declared profiler.FieldType) (profiler.Value, error) {
	if raw == nil {
		return profiler.Missing, nil
	}

	switch declared {
	case "":
		return inferValue(raw)
	case profiler.TypeString:
		s, err := asText(raw)
		if err != nil {
			return profiler.Missing, err
		}
		return profiler.StringValue(s), nil
	case profiler.TypeGeography:
		s, err := asText(raw)
		if err != nil {
			return profiler.Missing, err
		}
		return profiler.GeographyValue(s), nil
	case profiler.TypeBytes:
		switch v := raw.(type) {
		case []byte:
			return profiler.BytesValue(v), nil
		case string:
			return profiler.BytesValue([]byte(v)), nil
		}
	case profiler.TypeInteger:
		return convertInteger(raw)
	case profiler.TypeFloat:
		switch v := raw.(type) {
		case float64:
			return profiler.FloatValue(v), nil
		case float32:
			return profiler.FloatValue(float64(v)), nil
		case int64:
			return profiler.FloatValue(float64(v)), nil
		case []byte, string:
			s, _ := asText(v)
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return profiler.Missing, fmt.Errorf("parse float %q: %w", s, err)
			}
			return profiler.FloatValue(f), nil
		}
	case profiler.TypeNumeric:
		switch v := raw.(type) {
		case int64:
			return profiler.DecimalValue(decimal.NewFromInt(v)), nil
		case float64:
			return profiler.DecimalValue(decimal.NewFromFloat(v)), nil
		case []byte, string:
			s, _ := asText(v)
			d, err := decimal.NewFromString(strings.TrimSpace(s))
			if err != nil {
				return profiler.Missing, fmt.Errorf("parse numeric %q: %w", s, err)
			}
			return profiler.DecimalValue(d), nil
		}
	case profiler.TypeBoolean:
		switch v := raw.(type) {
		case bool:
			return profiler.BoolValue(v), nil
		case int64:
			return profiler.BoolValue(v != 0), nil
		case []byte, string:
			s, _ := asText(v)
			b, err := parseBool(s)
			if err != nil {
				return profiler.Missing, err
			}
			return profiler.BoolValue(b), nil
		}
	case profiler.TypeTimestamp:
		switch v := raw.(type) {
		case time.Time:
			return profiler.TimestampValue(v), nil
		case []byte, string:
			s, _ := asText(v)
			t, err := parseTimestamp(s)
			if err != nil {
				return profiler.Missing, err
			}
			return profiler.TimestampValue(t), nil
		}
	case profiler.TypeDate:
		switch v := raw.(type) {
		case time.Time:
			return profiler.DateValue(civil.DateOf(v)), nil
		case []byte, string:
			s, _ := asText(v)
			d, err := civil.ParseDate(strings.TrimSpace(s))
			if err != nil {
				return profiler.Missing, fmt.Errorf("parse date %q: %w", s, err)
			}
			return profiler.DateValue(d), nil
		}
	case profiler.TypeDateTime:
		switch v := raw.(type) {
		case time.Time:
			return profiler.DateTimeValue(civil.DateTimeOf(v)), nil
		case []byte, string:
			s, _ := asText(v)
			dt, err := civil.ParseDateTime(strings.Replace(strings.TrimSpace(s), " ", "T", 1))
			if err != nil {
				return profiler.Missing, fmt.Errorf("parse datetime %q: %w", s, err)
			}
			return profiler.DateTimeValue(dt), nil
		}
	case profiler.TypeTime:
		switch v := raw.(type) {
		case time.Time:
			return profiler.TimeValue(civil.TimeOf(v)), nil
		case []byte, string:
			s, _ := asText(v)
			t, err := civil.ParseTime(strings.TrimSpace(s))
			if err != nil {
				return profiler.Missing, fmt.Errorf("parse time %q: %w", s, err)
			}
			return profiler.TimeValue(t), nil
		}
	}
	return profiler.Missing, &profiler.UnsupportedTypeError{
		Msg:    fmt.Sprintf("cannot convert to %s", declared),
		GoType: fmt.Sprintf("%T", raw),
	}
}

func inferValue(raw any) (profiler.Value, error) {
	switch v := raw.(type) {
	case string:
		return profiler.StringValue(v), nil
	case []byte:
		return profiler.StringValue(string(v)), nil
	case int64:
		return profiler.IntValue(v), nil
	case int32:
		return profiler.IntValue(int64(v)), nil
	case int:
		return profiler.IntValue(int64(v)), nil
	case uint64:
		return convertInteger(v)
	case float64:
		return profiler.FloatValue(v), nil
	case float32:
		return profiler.FloatValue(float64(v)), nil
	case bool:
		return profiler.BoolValue(v), nil
	case time.Time:
		return profiler.TimestampValue(v), nil
	}
	return profiler.Missing, &profiler.UnsupportedTypeError{Msg: "unrecognized driver value", GoType: fmt.Sprintf("%T", raw)}
}

// convertInteger keeps unsigned values beyond int64 exact by widening them to
// decimals.
func convertInteger(raw any) (profiler.Value, error) {
	switch v := raw.(type) {
	case int64:
		return profiler.IntValue(v), nil
	case int32:
		return profiler.IntValue(int64(v)), nil
	case int:
		return profiler.IntValue(int64(v)), nil
	case uint64:
		if v > math.MaxInt64 {
			return profiler.DecimalValue(decimal.RequireFromString(strconv.FormatUint(v, 10))), nil
		}
		return profiler.IntValue(int64(v)), nil
	case bool:
		if v {
			return profiler.IntValue(1), nil
		}
		return profiler.IntValue(0), nil
	case []byte, string:
		s, _ := asText(v)
		s = strings.TrimSpace(s)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return profiler.IntValue(i), nil
		}
		if u, err := strconv.ParseUint(s, 10, 64); err == nil {
			return convertInteger(u)
		}
		return profiler.Missing, fmt.Errorf("parse integer %q", s)
	}
	return profiler.Missing, &profiler.UnsupportedTypeError{Msg: "cannot convert to INTEGER", GoType: fmt.Sprintf("%T", raw)}
}

func asText(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	case time.Time:
		return v.Format(time.RFC3339Nano), nil
	}
	return "", &profiler.UnsupportedTypeError{Msg: "cannot convert to text", GoType: fmt.Sprintf("%T", raw)}
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "y", "yes":
		return true, nil
	case "0", "f", "false", "n", "no":
		return false, nil
	}
	return false, fmt.Errorf("parse boolean %q", s)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999",
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q", s)
}

// BindValue converts a typed query parameter into a driver argument. The
// parameter type decides the representation, never the value's own shape.
func BindValue(p profiler.QueryParameter) (any, error) {
	v := p.Value
	if v.IsMissing() {
		return nil, nil
	}
	switch p.Type {
	case profiler.ParamTimestamp:
		switch v.Kind() {
		case profiler.KindTimestamp:
			return v.Timestamp().UTC(), nil
		case profiler.KindDate:
			return v.Date().In(time.UTC), nil
		case profiler.KindDateTime:
			return v.DateTime().In(time.UTC), nil
		}
	case profiler.ParamDate:
		switch v.Kind() {
		case profiler.KindDate:
			return v.Date().String(), nil
		case profiler.KindTimestamp:
			return civil.DateOf(v.Timestamp().UTC()).String(), nil
		case profiler.KindDateTime:
			return v.DateTime().Date.String(), nil
		}
	case profiler.ParamDateTime:
		switch v.Kind() {
		case profiler.KindDateTime:
			return DateTimeText(v.DateTime()), nil
		case profiler.KindDate:
			return DateTimeText(civil.DateTime{Date: v.Date()}), nil
		case profiler.KindTimestamp:
			return DateTimeText(civil.DateTimeOf(v.Timestamp().UTC())), nil
		}
	case profiler.ParamString:
		return ParamText(v), nil
	}
	if p.Type == profiler.ParamTimestamp || p.Type == profiler.ParamDate || p.Type == profiler.ParamDateTime {
		return ParamText(v), nil
	}
	return nil, fmt.Errorf("unsupported parameter type %q for %s", p.Type, p.Name)
}

// DateTimeText renders dt with a space separator, accepted by every supported
// engine.
func DateTimeText(dt civil.DateTime) string {
	return dt.Date.String() + " " + dt.Time.String()
}

// ParamText renders v as the text sent for string-typed parameters.
func ParamText(v profiler.Value) string {
	switch v.Kind() {
	case profiler.KindString, profiler.KindGeography:
		return v.Str()
	case profiler.KindInt:
		return strconv.FormatInt(v.Int(), 10)
	case profiler.KindFloat:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64)
	case profiler.KindBool:
		return strconv.FormatBool(v.Bool())
	default:
		return profiler.Normalize(v).Text
	}
}
