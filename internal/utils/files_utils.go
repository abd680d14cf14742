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
package utils

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"

	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/profiler"
)

// ReadContextFiles reads the content of the specified context files and combines them into a single string.
func ReadContextFiles(filePaths string) (string, error) {
	if filePaths == "" {
		return "", nil
	}

	var combinedContext strings.Builder
	for _, path := range strings.Split(filePaths, ",") {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read context file '%s': %w", path, err)
		}
		combinedContext.WriteString("\n# Context from file: " + path + "\n")
		combinedContext.WriteString(strings.TrimSpace(string(content)))
		combinedContext.WriteString("\n")
	}
	return combinedContext.String(), nil
}

// GetDefaultOutputFilePath names the file a command writes for ref when
// --out_file is not given.
func GetDefaultOutputFilePath(ref profiler.TableRef, commandName string) string {
	base := strings.ReplaceAll(ref.String(), ".", "_")
	switch commandName {
	case "generate-metadata":
		return fmt.Sprintf("%s_metadata.json", base)
	case "status":
		return fmt.Sprintf("%s_status.json", base)
	default:
		return fmt.Sprintf("%s_profile.json", base)
	}
}

// WriteJSONFile writes v to path as indented JSON.
func WriteJSONFile(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	raw = append(raw, '\n')
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ParseTableRef parses "project.dataset.table", "dataset.table" or "table".
// Shorter forms take defaultProject; SQL backends read the dataset as the
// schema and ignore the project. Parts may be quoted with backticks.
func ParseTableRef(s, defaultProject string) (profiler.TableRef, error) {
	parts := SplitOutsideQuotes(strings.TrimSpace(s), '.')
	for i, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.TrimSuffix(strings.TrimPrefix(p, "`"), "`")
		if p == "" {
			return profiler.TableRef{}, fmt.Errorf("invalid table reference %q: empty name part", s)
		}
		parts[i] = p
	}

	switch len(parts) {
	case 1:
		return profiler.TableRef{Project: defaultProject, Table: parts[0]}, nil
	case 2:
		return profiler.TableRef{Project: defaultProject, Dataset: parts[0], Table: parts[1]}, nil
	case 3:
		return profiler.TableRef{Project: parts[0], Dataset: parts[1], Table: parts[2]}, nil
	}
	return profiler.TableRef{}, fmt.Errorf("invalid table reference %q: expected at most 3 dot-separated parts", s)
}

// ParseTableRefs parses a comma-separated list of table references, dropping
// duplicates while keeping the first-seen order.
func ParseTableRefs(tablesFlag, defaultProject string) ([]profiler.TableRef, error) {
	var refs []profiler.TableRef
	seen := make(map[profiler.TableRef]bool)
	for _, part := range SplitOutsideQuotes(tablesFlag, ',') {
		if strings.TrimSpace(part) == "" {
			continue
		}
		ref, err := ParseTableRef(part, defaultProject)
		if err != nil {
			return nil, err
		}
		if seen[ref] {
			continue
		}
		seen[ref] = true
		refs = append(refs, ref)
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("no tables given")
	}
	return refs, nil
}

// SplitOutsideQuotes splits s on sep, ignoring separators inside
// backtick-quoted sections.
func SplitOutsideQuotes(s string, sep rune) []string {
	var result []string
	var current strings.Builder
	inQuotes := false

	for _, char := range s {
		switch {
		case char == '`':
			inQuotes = !inQuotes
			current.WriteRune(char)
		case char == sep && !inQuotes:
			result = append(result, current.String())
			current.Reset()
		default:
			current.WriteRune(char)
		}
	}
	result = append(result, current.String())

	return result
}
