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
package bigquery

import (
	"fmt"
	"math/big"
	"time"

	bq "cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/profiler"
)

func convertRow(cells map[string]bq.Value, schema bq.Schema) (profiler.Row, error) {
	row := make(profiler.Row, len(schema))
	for _, f := range schema {
		v, err := convertField(cells[f.Name], f)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", f.Name, err)
		}
		row[f.Name] = v
	}
	return row, nil
}

func convertField(raw bq.Value, f *bq.FieldSchema) (profiler.Value, error) {
	if raw == nil {
		return profiler.Missing, nil
	}
	if !f.Repeated {
		return convertScalar(raw, f)
	}

	list, ok := raw.([]bq.Value)
	if !ok {
		return profiler.Missing, unsupported(raw, "repeated "+string(f.Type))
	}
	elems := make([]profiler.Value, 0, len(list))
	for _, item := range list {
		v, err := convertScalar(item, f)
		if err != nil {
			return profiler.Missing, err
		}
		elems = append(elems, v)
	}
	return profiler.SequenceValue(elems...), nil
}

// convertScalar converts one non-repeated cell. Records follow the order of
// their sub-schema whether they arrive keyed by name or by position.
func convertScalar(raw bq.Value, f *bq.FieldSchema) (profiler.Value, error) {
	if raw == nil {
		return profiler.Missing, nil
	}
	switch v := raw.(type) {
	case map[string]bq.Value:
		fields := make([]profiler.Field, 0, len(f.Schema))
		for _, sub := range f.Schema {
			fv, err := convertField(v[sub.Name], sub)
			if err != nil {
				return profiler.Missing, fmt.Errorf("%s: %w", sub.Name, err)
			}
			fields = append(fields, profiler.Field{Name: sub.Name, Value: fv})
		}
		return profiler.RecordValue(fields...), nil
	case []bq.Value:
		if f.Type != bq.RecordFieldType || len(v) != len(f.Schema) {
			return profiler.Missing, unsupported(raw, string(f.Type))
		}
		fields := make([]profiler.Field, 0, len(f.Schema))
		for i, sub := range f.Schema {
			fv, err := convertField(v[i], sub)
			if err != nil {
				return profiler.Missing, fmt.Errorf("%s: %w", sub.Name, err)
			}
			fields = append(fields, profiler.Field{Name: sub.Name, Value: fv})
		}
		return profiler.RecordValue(fields...), nil
	case string:
		if f.Type == bq.GeographyFieldType {
			return profiler.GeographyValue(v), nil
		}
		return profiler.StringValue(v), nil
	case []byte:
		return profiler.BytesValue(v), nil
	case int64:
		return profiler.IntValue(v), nil
	case float64:
		return profiler.FloatValue(v), nil
	case bool:
		return profiler.BoolValue(v), nil
	case time.Time:
		return profiler.TimestampValue(v), nil
	case civil.Date:
		return profiler.DateValue(v), nil
	case civil.Time:
		return profiler.TimeValue(v), nil
	case civil.DateTime:
		return profiler.DateTimeValue(v), nil
	case *big.Rat:
		return ratValue(v, f.Type)
	case *bq.IntervalValue:
		return profiler.StringValue(v.String()), nil
	case *bq.RangeValue:
		return profiler.StringValue(rangeText(v, f)), nil
	}
	return profiler.Missing, unsupported(raw, string(f.Type))
}

// ratValue renders NUMERIC with 9 and BIGNUMERIC with 38 fractional digits,
// the scales BigQuery stores them at.
func ratValue(r *big.Rat, fieldType bq.FieldType) (profiler.Value, error) {
	text := bq.NumericString(r)
	if fieldType == bq.BigNumericFieldType {
		text = bq.BigNumericString(r)
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return profiler.Missing, fmt.Errorf("parse %s %q: %w", fieldType, text, err)
	}
	return profiler.DecimalValue(d), nil
}

// rangeText formats a RANGE cell as a half-open interval; nil bounds are
// unbounded.
func rangeText(r *bq.RangeValue, f *bq.FieldSchema) string {
	bound := func(v bq.Value) string {
		if v == nil {
			return "UNBOUNDED"
		}
		if f.RangeElementType != nil {
			elem := &bq.FieldSchema{Type: f.RangeElementType.Type}
			if cv, err := convertScalar(v, elem); err == nil {
				return profiler.Normalize(cv).Text
			}
		}
		return fmt.Sprint(v)
	}
	return "[" + bound(r.Start) + ", " + bound(r.End) + ")"
}

func unsupported(raw bq.Value, declared string) error {
	return &profiler.UnsupportedTypeError{
		Msg:    fmt.Sprintf("cannot convert BigQuery %s value", declared),
		GoType: fmt.Sprintf("%T", raw),
	}
}
