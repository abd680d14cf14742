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
)

// EmptyResultError is returned when an aggregate query that must produce a
// row produced none.
type EmptyResultError struct {
	Msg string
}

// QueryExecutionError wraps a failure reported by the query engine.
type QueryExecutionError struct {
	Msg   string
	Query string
	Err   error
}

// UnsupportedTypeError is returned for values that cannot be represented or
// serialized, even through the normalized fallback.
type UnsupportedTypeError struct {
	Msg    string
	GoType string
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("empty result: %s", e.Msg)
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("query execution error: %s: %v", e.Msg, e.Err)
}

func (e *QueryExecutionError) Unwrap() error {
	return e.Err
}

func (e *UnsupportedTypeError) Error() string {
	if e.GoType != "" {
		return fmt.Sprintf("unsupported type %s: %s", e.GoType, e.Msg)
	}
	return fmt.Sprintf("unsupported type: %s", e.Msg)
}
