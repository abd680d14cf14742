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
	"encoding/base64"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Normalized is the canonical form of a Value. Two values that represent the
// same business value normalize to Normalized values with equal keys.
type Normalized struct {
	Kind Kind
	// Text carries the canonical text of string, bytes (base64), decimal,
	// timestamp, date, time, datetime and geography values.
	Text   string
	Int    int64
	Float  float64
	Bool   bool
	Elems  []Normalized
	Fields []NormalizedField
}

// NormalizedField is a record member in canonical form.
type NormalizedField struct {
	Name  string
	Value Normalized
}

// Normalize converts v into its canonical form. It never fails.
//
// Records are sorted by field name so that emission order does not matter,
// sequences keep their order, bytes become standard base64, decimals are
// re-parsed into their canonical text, and timezone-aware timestamps are
// converted to UTC.
func Normalize(v Value) Normalized {
	switch v.kind {
	case KindMissing:
		return Normalized{Kind: KindMissing}
	case KindString, KindGeography:
		return Normalized{Kind: v.kind, Text: v.str}
	case KindBytes:
		return Normalized{Kind: KindBytes, Text: base64.StdEncoding.EncodeToString(v.raw)}
	case KindInt:
		return Normalized{Kind: KindInt, Int: v.i}
	case KindFloat:
		f := v.f
		if f == 0 {
			f = 0 // folds -0 into +0
		}
		return Normalized{Kind: KindFloat, Float: f}
	case KindDecimal:
		return Normalized{Kind: KindDecimal, Text: canonicalDecimal(v.dec)}
	case KindBool:
		return Normalized{Kind: KindBool, Bool: v.b}
	case KindTimestamp:
		return Normalized{Kind: KindTimestamp, Text: v.ts.UTC().Format(time.RFC3339Nano)}
	case KindDate:
		return Normalized{Kind: KindDate, Text: v.date.String()}
	case KindTime:
		return Normalized{Kind: KindTime, Text: v.tod.String()}
	case KindDateTime:
		return Normalized{Kind: KindDateTime, Text: v.dt.String()}
	case KindSequence:
		elems := make([]Normalized, len(v.elems))
		for i, e := range v.elems {
			elems[i] = Normalize(e)
		}
		return Normalized{Kind: KindSequence, Elems: elems}
	case KindRecord:
		fields := make([]NormalizedField, len(v.fields))
		for i, f := range v.fields {
			fields[i] = NormalizedField{Name: f.Name, Value: Normalize(f.Value)}
		}
		sort.SliceStable(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
		return Normalized{Kind: KindRecord, Fields: fields}
	default:
		return Normalized{Kind: v.kind}
	}
}

// canonicalDecimal re-parses d so that differently formatted inputs of equal
// value ("1.50", "1.5", "15e-1") share one text form.
func canonicalDecimal(d decimal.Decimal) string {
	reparsed, err := decimal.NewFromString(d.String())
	if err != nil {
		return d.String()
	}
	return reparsed.String()
}

// Key returns a deterministic, unambiguous encoding of n suitable as a map
// key. Equal keys mean equal normalized values.
func (n Normalized) Key() string {
	var b strings.Builder
	n.writeKey(&b)
	return b.String()
}

// Equal reports whether n and o are the same normalized value.
func (n Normalized) Equal(o Normalized) bool {
	return n.Key() == o.Key()
}

func (n Normalized) writeKey(b *strings.Builder) {
	switch n.Kind {
	case KindMissing:
		b.WriteString("n;")
	case KindInt:
		b.WriteByte('i')
		b.WriteString(strconv.FormatInt(n.Int, 10))
		b.WriteByte(';')
	case KindFloat:
		b.WriteByte('f')
		b.WriteString(floatKey(n.Float))
		b.WriteByte(';')
	case KindBool:
		if n.Bool {
			b.WriteString("b1;")
		} else {
			b.WriteString("b0;")
		}
	case KindSequence:
		b.WriteByte('[')
		b.WriteString(strconv.Itoa(len(n.Elems)))
		b.WriteByte(':')
		for _, e := range n.Elems {
			e.writeKey(b)
		}
		b.WriteByte(']')
	case KindRecord:
		b.WriteByte('{')
		b.WriteString(strconv.Itoa(len(n.Fields)))
		b.WriteByte(':')
		for _, f := range n.Fields {
			writeLengthPrefixed(b, f.Name)
			f.Value.writeKey(b)
		}
		b.WriteByte('}')
	default:
		// Text-carrying kinds: tag by kind number, then the length-prefixed text.
		b.WriteByte('t')
		b.WriteString(strconv.Itoa(int(n.Kind)))
		b.WriteByte('.')
		writeLengthPrefixed(b, n.Text)
	}
}

func writeLengthPrefixed(b *strings.Builder, s string) {
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteByte(':')
	b.WriteString(s)
}

// floatKey formats f so that every NaN maps to one key.
func floatKey(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
