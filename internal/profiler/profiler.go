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

// Package profiler samples a table and computes per-column statistics and
// representative example values.
package profiler

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Options bounds the work done for a single table.
type Options struct {
	MaxRows       int
	MaxExamples   int
	SamplePercent float64
}

// DefaultOptions returns the default sampling bounds.
func DefaultOptions() Options {
	return Options{
		MaxRows:       50,
		MaxExamples:   10,
		SamplePercent: 10,
	}
}

// Profiler profiles tables through an explicit query collaborator. It keeps no
// per-request state and is safe for concurrent use when exec is.
type Profiler struct {
	exec    QueryExecutor
	dialect Dialect
	opts    Options
	logger  *zap.Logger
}

// New returns a Profiler. A nil logger disables logging.
func New(exec QueryExecutor, dialect Dialect, opts Options, logger *zap.Logger) *Profiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Profiler{exec: exec, dialect: dialect, opts: opts, logger: logger}
}

// Options returns the bounds the profiler was built with.
func (p *Profiler) Options() Options {
	return p.opts
}

// ProfileTable samples the latest partition of table (or a bounded sample of
// the whole table when it is unpartitioned) and profiles every schema column.
func (p *Profiler) ProfileTable(ctx context.Context, table *Table) (*TableProfile, error) {
	if table == nil {
		return nil, fmt.Errorf("profile table: nil table")
	}
	log := p.logger.With(zap.String("table", table.Ref.String()))
	log.Info("Profiling table", zap.Int("max_rows", p.opts.MaxRows), zap.Int("max_examples", p.opts.MaxExamples))

	req := SampleRequest{
		Table:         table.Ref,
		MaxRows:       p.opts.MaxRows,
		SamplePercent: p.opts.SamplePercent,
	}

	if pf := ResolvePartition(table); pf != nil {
		maxValue, err := MaxPartitionValue(ctx, p.exec, p.dialect, table.Ref, pf.Name)
		if err != nil {
			return nil, err
		}
		if maxValue.IsMissing() {
			log.Warn("Partition field has no non-null values, nothing to profile", zap.String("partition_field", pf.Name))
			return NewTableProfile(), nil
		}
		log.Debug("Sampling latest partition",
			zap.String("partition_field", pf.Name),
			zap.String("partition_type", string(pf.Type)),
			zap.String("param_type", string(ParamTypeFor(pf.Type))),
		)
		req.Partition = pf
		req.PartitionValue = maxValue
	} else {
		log.Debug("Table is not partitioned, sampling whole table", zap.Float64("sample_percent", p.opts.SamplePercent))
	}

	rows, err := Sample(ctx, p.exec, p.dialect, req)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		log.Warn("Sample returned no rows")
		return NewTableProfile(), nil
	}

	profile, err := Profile(table.Schema, rows, p.opts.MaxExamples)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", table.Ref, err)
	}
	log.Info("Profiled table", zap.Int("rows", len(rows)), zap.Int("columns", profile.Len()))
	return profile, nil
}
