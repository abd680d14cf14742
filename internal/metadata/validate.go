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
package metadata

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/goccy/go-json"
)

// Validate checks payload against the metadata contract and returns one
// message per violation, each prefixed with the path of the offending value.
// A nil result means the payload is valid.
func Validate(payload map[string]any) []string {
	v := &validator{}
	v.object("", payload, objectRule{
		required: []string{"table_fqn", "table_description", "columns", "model", "generated_at"},
		props: map[string]func(string, any){
			"table_fqn":         v.str,
			"table_description": v.tableDescription,
			"columns":           v.columns,
			"model":             v.model,
			"generated_at":      v.str,
		},
	})
	return v.problems
}

type objectRule struct {
	required []string
	props    map[string]func(path string, value any)
}

type validator struct {
	problems []string
}

func (v *validator) addf(path, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if path != "" {
		msg = path + ": " + msg
	}
	v.problems = append(v.problems, msg)
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func (v *validator) object(path string, value any, rule objectRule) {
	obj, ok := value.(map[string]any)
	if !ok {
		v.addf(path, "%s is not of type 'object'", describe(value))
		return
	}
	for _, key := range rule.required {
		if _, ok := obj[key]; !ok {
			v.addf(path, "'%s' is a required property", key)
		}
	}

	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var extra []string
	for _, key := range keys {
		check, known := rule.props[key]
		if !known {
			extra = append(extra, "'"+key+"'")
			continue
		}
		check(join(path, key), obj[key])
	}
	if len(extra) > 0 {
		v.addf(path, "Additional properties are not allowed (%s unexpected)", strings.Join(extra, ", "))
	}
}

func (v *validator) tableDescription(path string, value any) {
	v.object(path, value, objectRule{
		required: []string{"description", "accuracy", "glossary_terms"},
		props: map[string]func(string, any){
			"description":    v.description,
			"accuracy":       v.accuracy,
			"glossary_terms": v.glossaryTerms,
			"sensitivity":    v.sensitivity,
		},
	})
}

func (v *validator) columns(path string, value any) {
	items, ok := value.([]any)
	if !ok {
		v.addf(path, "%s is not of type 'array'", describe(value))
		return
	}
	for i, item := range items {
		v.object(fmt.Sprintf("%s[%d]", path, i), item, objectRule{
			required: []string{"name", "description", "accuracy", "is_computed", "sensitivity", "glossary_terms"},
			props: map[string]func(string, any){
				"name":           v.nonEmptyString,
				"description":    v.description,
				"accuracy":       v.accuracy,
				"is_computed":    v.boolean,
				"sensitivity":    v.sensitivity,
				"glossary_terms": v.glossaryTerms,
			},
		})
	}
}

func (v *validator) model(path string, value any) {
	v.object(path, value, objectRule{
		required: []string{"name", "version"},
		props: map[string]func(string, any){
			"name":    v.nonEmptyString,
			"version": v.nonEmptyString,
		},
	})
}

func (v *validator) sensitivity(path string, value any) {
	v.object(path, value, objectRule{
		required: []string{"is_sensitive", "classification"},
		props: map[string]func(string, any){
			"is_sensitive":   v.boolean,
			"classification": v.classification,
			"rationale":      v.str,
		},
	})
}

func (v *validator) str(path string, value any) {
	if _, ok := value.(string); !ok {
		v.addf(path, "%s is not of type 'string'", describe(value))
	}
}

func (v *validator) nonEmptyString(path string, value any) {
	s, ok := value.(string)
	if !ok {
		v.addf(path, "%s is not of type 'string'", describe(value))
		return
	}
	if s == "" {
		v.addf(path, "'' is too short")
	}
}

func (v *validator) description(path string, value any) {
	s, ok := value.(string)
	if !ok {
		v.addf(path, "%s is not of type 'string'", describe(value))
		return
	}
	if utf8.RuneCountInString(s) > MaxDescriptionLength {
		v.addf(path, "description is too long (%d > %d characters)", utf8.RuneCountInString(s), MaxDescriptionLength)
	}
}

func (v *validator) boolean(path string, value any) {
	if _, ok := value.(bool); !ok {
		v.addf(path, "%s is not of type 'boolean'", describe(value))
	}
}

func (v *validator) accuracy(path string, value any) {
	n, ok := number(value)
	if !ok {
		v.addf(path, "%s is not of type 'number'", describe(value))
		return
	}
	if n < 0 {
		v.addf(path, "%v is less than the minimum of 0", n)
	}
	if n > 1 {
		v.addf(path, "%v is greater than the maximum of 1", n)
	}
}

func (v *validator) classification(path string, value any) {
	s, ok := value.(string)
	if !ok {
		v.addf(path, "%s is not of type 'string'", describe(value))
		return
	}
	if !slices.Contains(Classifications, s) {
		v.addf(path, "'%s' is not one of %s", s, describe(Classifications))
	}
}

func (v *validator) glossaryTerms(path string, value any) {
	items, ok := value.([]any)
	if !ok {
		v.addf(path, "%s is not of type 'array'", describe(value))
		return
	}
	seen := make(map[string]bool, len(items))
	duplicated := false
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			v.addf(fmt.Sprintf("%s[%d]", path, i), "%s is not of type 'string'", describe(item))
			continue
		}
		if seen[s] {
			duplicated = true
		}
		seen[s] = true
	}
	if duplicated {
		v.addf(path, "%s has non-unique elements", describe(value))
	}
}

func number(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func describe(value any) string {
	if value == nil {
		return "None"
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(raw)
}
