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
package profiler

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindMissing Kind = iota
	KindString
	KindBytes
	KindInt
	KindFloat
	KindDecimal
	KindBool
	KindTimestamp
	KindDate
	KindTime
	KindDateTime
	KindGeography
	KindSequence
	KindRecord
)

var kindNames = [...]string{
	KindMissing:   "missing",
	KindString:    "string",
	KindBytes:     "bytes",
	KindInt:       "int",
	KindFloat:     "float",
	KindDecimal:   "decimal",
	KindBool:      "bool",
	KindTimestamp: "timestamp",
	KindDate:      "date",
	KindTime:      "time",
	KindDateTime:  "datetime",
	KindGeography: "geography",
	KindSequence:  "sequence",
	KindRecord:    "record",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Field is one named member of a record value.
type Field struct {
	Name  string
	Value Value
}

// Value is a raw cell value as read from the engine. The zero Value is Missing.
// Values are built with the constructors below and never mutated afterwards.
type Value struct {
	kind   Kind
	str    string // String, Geography
	raw    []byte // Bytes
	i      int64
	f      float64
	b      bool
	dec    decimal.Decimal
	ts     time.Time
	date   civil.Date
	tod    civil.Time
	dt     civil.DateTime
	elems  []Value
	fields []Field
}

// Missing is the absent value.
var Missing = Value{}

func StringValue(s string) Value { return Value{kind: KindString, str: s} }
func BytesValue(b []byte) Value { return Value{kind: KindBytes, raw: b} }
func IntValue(i int64) Value { return Value{kind: KindInt, i: i} }
func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }
func DecimalValue(d decimal.Decimal) Value { return Value{kind: KindDecimal, dec: d} }
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }
func TimestampValue(t time.Time) Value { return Value{kind: KindTimestamp, ts: t} }
func DateValue(d civil.Date) Value { return Value{kind: KindDate, date: d} }
func TimeValue(t civil.Time) Value { return Value{kind: KindTime, tod: t} }
func DateTimeValue(dt civil.DateTime) Value { return Value{kind: KindDateTime, dt: dt} }
func GeographyValue(wkt string) Value { return Value{kind: KindGeography, str: wkt} }
func SequenceValue(elems ...Value) Value { return Value{kind: KindSequence, elems: elems} }
func RecordValue(fields ...Field) Value { return Value{kind: KindRecord, fields: fields} }

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// IsMissing reports whether v is null or an empty repeated value.
func (v Value) IsMissing() bool {
	switch v.kind {
	case KindMissing:
		return true
	case KindSequence:
		return len(v.elems) == 0
	default:
		return false
	}
}

func (v Value) Str() string { return v.str }
func (v Value) Bytes() []byte { return v.raw }
func (v Value) Int() int64 { return v.i }
func (v Value) Float() float64 { return v.f }
func (v Value) Decimal() decimal.Decimal { return v.dec }
func (v Value) Bool() bool { return v.b }
func (v Value) Timestamp() time.Time { return v.ts }
func (v Value) Date() civil.Date { return v.date }
func (v Value) Time() civil.Time { return v.tod }
func (v Value) DateTime() civil.DateTime { return v.dt }
func (v Value) Elems() []Value { return v.elems }
func (v Value) Fields() []Field { return v.fields }
