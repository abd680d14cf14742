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
	"context"
	"fmt"
)

// PartitionParamName is the name of the parameter PartitionSliceSQL binds.
const PartitionParamName = "max_partition"

// SampleRequest describes one sampling round trip.
type SampleRequest struct {
	Table TableRef
	// Partition, when set, restricts the sample to rows whose partition field
	// equals PartitionValue.
	Partition      *PartitionField
	PartitionValue Value
	MaxRows        int
	// SamplePercent is used only for unpartitioned tables. Values outside
	// (0, 100) disable block sampling and read the first MaxRows rows.
	SamplePercent float64
}

// Sample reads at most req.MaxRows rows in a single query. An empty table or
// partition yields an empty slice, not an error.
func Sample(ctx context.Context, exec QueryExecutor, dialect Dialect, req SampleRequest) ([]Row, error) {
	if req.MaxRows <= 0 {
		return []Row{}, nil
	}

	var (
		query  string
		params []QueryParameter
	)
	if req.Partition != nil {
		query = dialect.PartitionSliceSQL(req.Table, req.Partition.Name, req.MaxRows)
		params = []QueryParameter{{
			Name:  PartitionParamName,
			Type:  ParamTypeFor(req.Partition.Type),
			Value: req.PartitionValue,
		}}
	} else {
		query = dialect.SampleSQL(req.Table, req.MaxRows, req.SamplePercent)
	}

	rows, err := exec.Execute(ctx, query, params...)
	if err != nil {
		return nil, &QueryExecutionError{
			Msg:   fmt.Sprintf("failed to sample %s", req.Table),
			Query: query,
			Err:   err,
		}
	}
	if len(rows) > req.MaxRows {
		rows = rows[:req.MaxRows]
	}
	if rows == nil {
		rows = []Row{}
	}
	return rows, nil
}
