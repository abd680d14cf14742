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
	"fmt"
	"math"
)

// Profile computes per-column statistics over rows, in schema order.
//
// With no rows it returns an empty profile without looking at the schema, so
// callers can tell "nothing sampled" from "every column is null". Any value
// that cannot be rendered aborts the whole call.
func Profile(schema []ColumnDescriptor, rows []Row, maxExamples int) (*TableProfile, error) {
	profile := NewTableProfile()
	if len(rows) == 0 {
		return profile, nil
	}
	for _, col := range schema {
		cp, err := profileColumn(col, rows, maxExamples)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		profile.Set(col.Name, cp)
	}
	return profile, nil
}

func profileColumn(col ColumnDescriptor, rows []Row, maxExamples int) (*ColumnProfile, error) {
	present := make([]Value, 0, len(rows))
	for _, row := range rows {
		if v := row.Get(col.Name); !v.IsMissing() {
			present = append(present, v)
		}
	}
	missing := len(rows) - len(present)

	distinct := make(map[string]struct{}, len(present))
	for _, v := range present {
		distinct[Normalize(v).Key()] = struct{}{}
	}

	examples, err := exampleValues(present, maxExamples)
	if err != nil {
		return nil, err
	}

	return &ColumnProfile{
		Type:          col.Type,
		Mode:          col.Mode,
		ExampleValues: examples,
		NullRatio:     ratio(missing, len(rows)),
		DistinctRatio: ratio(len(distinct), len(present)),
	}, nil
}

// exampleValues keeps the first occurrence of each distinct value among the
// first maxExamples present values.
func exampleValues(present []Value, maxExamples int) ([]string, error) {
	examples := []string{}
	if maxExamples <= 0 {
		return examples, nil
	}
	candidates := present
	if len(candidates) > maxExamples {
		candidates = candidates[:maxExamples]
	}
	seen := make(map[string]struct{}, len(candidates))
	for _, v := range candidates {
		key := Normalize(v).Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		text, err := ToDisplay(v)
		if err != nil {
			return nil, err
		}
		examples = append(examples, text)
	}
	return examples, nil
}

// ratio returns n/max(1, d) rounded to three decimals.
func ratio(n, d int) float64 {
	if d < 1 {
		d = 1
	}
	return math.Round(float64(n)/float64(d)*1000) / 1000
}
