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
	"bytes"
	"math"
	"strconv"

	"github.com/goccy/go-json"
)

// ToDisplay renders v as compact JSON text for human-facing example lists.
//
// Values made only of JSON-native leaves (text, integers, finite floats,
// booleans, geography text) are encoded as they were read, records keeping
// their emission order. Anything else is encoded from its normalized form:
// bytes as base64, decimals and date/time values as canonical text, records
// in field-name order and non-finite floats as strings.
func ToDisplay(v Value) (string, error) {
	var buf bytes.Buffer
	ok, err := writeDirect(&buf, v)
	if err != nil {
		return "", err
	}
	if ok {
		return buf.String(), nil
	}

	buf.Reset()
	if err := writeNormalized(&buf, Normalize(v)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// writeDirect encodes the original value. It reports false, leaving buf in an
// undefined state, when v holds a leaf JSON has no native encoding for.
func writeDirect(buf *bytes.Buffer, v Value) (bool, error) {
	switch v.kind {
	case KindMissing:
		buf.WriteString("null")
	case KindString, KindGeography:
		if err := writeJSONString(buf, v.str); err != nil {
			return false, err
		}
	case KindInt:
		buf.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return false, nil
		}
		buf.WriteString(strconv.FormatFloat(v.f, 'g', -1, 64))
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindSequence:
		buf.WriteByte('[')
		for i, e := range v.elems {
			if i > 0 {
				buf.WriteByte(',')
			}
			if ok, err := writeDirect(buf, e); !ok || err != nil {
				return false, err
			}
		}
		buf.WriteByte(']')
	case KindRecord:
		buf.WriteByte('{')
		for i, f := range v.fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSONString(buf, f.Name); err != nil {
				return false, err
			}
			buf.WriteByte(':')
			if ok, err := writeDirect(buf, f.Value); !ok || err != nil {
				return false, err
			}
		}
		buf.WriteByte('}')
	default:
		return false, nil
	}
	return true, nil
}

func writeNormalized(buf *bytes.Buffer, n Normalized) error {
	switch n.Kind {
	case KindMissing:
		buf.WriteString("null")
	case KindString, KindGeography, KindBytes, KindDecimal, KindTimestamp, KindDate, KindTime, KindDateTime:
		return writeJSONString(buf, n.Text)
	case KindInt:
		buf.WriteString(strconv.FormatInt(n.Int, 10))
	case KindFloat:
		switch {
		case math.IsNaN(n.Float):
			buf.WriteString(`"NaN"`)
		case math.IsInf(n.Float, 1):
			buf.WriteString(`"+Inf"`)
		case math.IsInf(n.Float, -1):
			buf.WriteString(`"-Inf"`)
		default:
			buf.WriteString(strconv.FormatFloat(n.Float, 'g', -1, 64))
		}
	case KindBool:
		buf.WriteString(strconv.FormatBool(n.Bool))
	case KindSequence:
		buf.WriteByte('[')
		for i, e := range n.Elems {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeNormalized(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindRecord:
		buf.WriteByte('{')
		for i, f := range n.Fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSONString(buf, f.Name); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeNormalized(buf, f.Value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return &UnsupportedTypeError{Msg: "value cannot be serialized for display", GoType: n.Kind.String()}
	}
	return nil
}

// writeJSONString appends s as a JSON string without HTML escaping.
func writeJSONString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return &UnsupportedTypeError{Msg: err.Error(), GoType: "string"}
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}
