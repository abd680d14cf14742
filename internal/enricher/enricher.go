// File: internal/enricher/enricher.go
package enricher

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/database"
	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/genai"
	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/metadata"
	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/profiler"
	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/prompt"
)

// TableProfiler profiles a single table. *profiler.Profiler satisfies it.
type TableProfiler interface {
	ProfileTable(ctx context.Context, table *profiler.Table) (*profiler.TableProfile, error)
}

type Service struct {
	schemas   profiler.SchemaProvider
	profiler  TableProfiler
	llmClient genai.LLMClient
	opts      Options
	logger    *zap.Logger
}

// Options tunes the service. Zero values fall back to defaults.
type Options struct {
	Retry             RetryOptions
	AdditionalContext string
	// Concurrency bounds ProfileTables.
	Concurrency int
}

// NewService wires the collaborators. llm may be nil when metadata generation
// is not needed.
func NewService(schemas profiler.SchemaProvider, prof TableProfiler, llm genai.LLMClient, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = DefaultRetryOptions
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Service{
		schemas:   schemas,
		profiler:  prof,
		llmClient: llm,
		opts:      opts,
		logger:    logger,
	}
}

// ProfileTable loads the schema of ref and profiles a sample of its rows.
func (s *Service) ProfileTable(ctx context.Context, ref profiler.TableRef) (*profiler.TableProfile, error) {
	table, err := s.loadTable(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.profileLoaded(ctx, table)
}

// ProfileTables profiles every ref with at most opts.Concurrency tables in
// flight. Results follow the order of refs; a failure is reported on its own
// result and does not stop the others.
func (s *Service) ProfileTables(ctx context.Context, refs []profiler.TableRef) []TableResult {
	results := make([]TableResult, len(refs))

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i, ref := range refs {
		g.Go(func() error {
			profile, err := s.ProfileTable(ctx, ref)
			results[i] = TableResult{Table: ref, Profile: profile, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// GenerateMetadata profiles ref, asks the model for business metadata and
// validates the answer. Model calls are retried; validation failures are not.
func (s *Service) GenerateMetadata(ctx context.Context, ref profiler.TableRef) (*metadata.TableMetadata, error) {
	if s.llmClient == nil {
		return nil, &ErrInvalidInput{Msg: "metadata generation requires a Gemini client"}
	}
	startTime := time.Now()
	log := s.logger.With(zap.String("table", ref.String()))

	table, err := s.loadTable(ctx, ref)
	if err != nil {
		return nil, err
	}
	profile, err := s.profileLoaded(ctx, table)
	if err != nil {
		return nil, err
	}

	text := prompt.Build(table, profile, s.opts.AdditionalContext)
	log.Debug("Built prompt", zap.Int("chars", len(text)), zap.Int("profiled_columns", profile.Len()))

	payload, err := withRetry(ctx, s.opts.Retry, log, func(ctx context.Context) (map[string]any, error) {
		payload, err := s.llmClient.GenerateMetadata(ctx, text)
		if err != nil {
			if cerr := contextError(ctx, "generate metadata", err); cerr != err {
				return nil, cerr
			}
			return nil, &ErrGeneration{Msg: "model call failed", Err: err}
		}
		return payload, nil
	})
	if err != nil {
		log.Error("Metadata generation failed", zap.Error(err))
		return nil, err
	}

	md, err := metadata.Decode(payload)
	if err != nil {
		var verr *metadata.ValidationError
		if errors.As(err, &verr) {
			log.Warn("Generated metadata failed validation", zap.Strings("details", verr.Problems))
			return nil, &ErrInvalidMetadata{Details: verr.Problems}
		}
		return nil, &ErrGeneration{Msg: "decode metadata", Err: err}
	}

	log.Info("Generated metadata", zap.Int("columns", len(md.Columns)), zap.Duration("elapsed", time.Since(startTime)))
	return md, nil
}

// TableStatus describes ref from its metadata alone. A missing table is
// reported with Exists false rather than as an error.
func (s *Service) TableStatus(ctx context.Context, ref profiler.TableRef) (*TableStatus, error) {
	table, err := s.schemas.GetTable(ctx, ref)
	if errors.Is(err, database.ErrTableNotFound) {
		return &TableStatus{TableFQN: ref.String()}, nil
	}
	if err != nil {
		return nil, contextError(ctx, "get table", fmt.Errorf("failed to get table %s: %w", ref, err))
	}
	return statusFromTable(table), nil
}

func statusFromTable(table *profiler.Table) *TableStatus {
	status := &TableStatus{
		TableFQN: table.Ref.String(),
		Exists:   true,
		RowCount: table.NumRows,
		SizeMB:   math.Round(float64(table.NumBytes)/1024/1024*100) / 100,
		Labels:   table.Labels,
		Columns:  make([]ColumnStatus, 0, len(table.Schema)),
	}
	if status.Labels == nil {
		status.Labels = map[string]string{}
	}
	if table.Description != "" {
		status.Description = &table.Description
	}
	if !table.LastModified.IsZero() {
		modified := table.LastModified
		status.LastModified = &modified
	}

	partitionField := ""
	if pf := profiler.ResolvePartition(table); pf != nil {
		partitionField = pf.Name
		status.IsPartitioned = true
		status.PartitionField = &partitionField
	}

	for _, col := range table.Schema {
		cs := ColumnStatus{
			Name:                 col.Name,
			Type:                 col.Type,
			Mode:                 col.Mode,
			IsPartitioningColumn: partitionField != "" && col.Name == partitionField,
		}
		if col.Description != "" {
			desc := col.Description
			cs.Description = &desc
		}
		status.Columns = append(status.Columns, cs)
	}
	return status
}

func (s *Service) loadTable(ctx context.Context, ref profiler.TableRef) (*profiler.Table, error) {
	if ref.Table == "" {
		return nil, &ErrInvalidInput{Msg: fmt.Sprintf("table name is required in %q", ref.String())}
	}
	table, err := s.schemas.GetTable(ctx, ref)
	if err != nil {
		return nil, contextError(ctx, "get table", fmt.Errorf("failed to get table %s: %w", ref, err))
	}
	return table, nil
}

func (s *Service) profileLoaded(ctx context.Context, table *profiler.Table) (*profiler.TableProfile, error) {
	profile, err := s.profiler.ProfileTable(ctx, table)
	if err != nil {
		return nil, contextError(ctx, "profile table", err)
	}
	return profile, nil
}
