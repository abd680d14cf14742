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
package enricher

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidInput represents errors related to invalid input parameters
type ErrInvalidInput struct {
	Msg string
	Err error
}

// ErrGeneration represents a failed or unparseable model call.
type ErrGeneration struct {
	Msg string
	Err error
}

// ErrInvalidMetadata is returned when the model answered with JSON that does
// not satisfy the metadata contract. Details lists every violation.
type ErrInvalidMetadata struct {
	Details []string
}

// ErrTimeout represents timeout errors during operations
type ErrTimeout struct {
	Msg string
	Err error
}

// ErrCancelled represents errors when an operation is cancelled
type ErrCancelled struct {
	Msg string
	Err error
}

func (e *ErrInvalidInput) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid input error: %s", e.Msg)
	}
	return fmt.Sprintf("invalid input error: %s: %v", e.Msg, e.Err)
}

func (e *ErrInvalidInput) Unwrap() error {
	return e.Err
}

func (e *ErrGeneration) Error() string {
	return fmt.Sprintf("metadata generation error: %s: %v", e.Msg, e.Err)
}

func (e *ErrGeneration) Unwrap() error {
	return e.Err
}

func (e *ErrInvalidMetadata) Error() string {
	return fmt.Sprintf("invalid metadata schema: %s", strings.Join(e.Details, "; "))
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("timeout error: %s: %v", e.Msg, e.Err)
}

func (e *ErrTimeout) Unwrap() error {
	return e.Err
}

func (e *ErrCancelled) Error() string {
	return fmt.Sprintf("operation cancelled: %s: %v", e.Msg, e.Err)
}

func (e *ErrCancelled) Unwrap() error {
	return e.Err
}

// contextError wraps err as ErrTimeout or ErrCancelled when ctx has expired,
// and returns it unchanged otherwise.
func contextError(ctx context.Context, msg string, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &ErrTimeout{Msg: msg, Err: err}
	case errors.Is(ctx.Err(), context.Canceled):
		return &ErrCancelled{Msg: msg, Err: err}
	}
	return err
}
