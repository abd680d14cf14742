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

// Package server exposes table status, profiling and metadata generation
// over HTTP.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/enricher"
	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/metadata"
	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/profiler"
)

// Service is the subset of *enricher.Service the handlers call.
type Service interface {
	ProfileTable(ctx context.Context, ref profiler.TableRef) (*profiler.TableProfile, error)
	GenerateMetadata(ctx context.Context, ref profiler.TableRef) (*metadata.TableMetadata, error)
	TableStatus(ctx context.Context, ref profiler.TableRef) (*enricher.TableStatus, error)
}

// Config holds configuration for the HTTP server.
type Config struct {
	Service Service
	Port    int
	Logger  *zap.Logger
	// ShutdownTimeout bounds graceful shutdown. Defaults to 10s.
	ShutdownTimeout time.Duration
}

// Server serves the HTTP API.
type Server struct {
	svc             Service
	port            int
	logger          *zap.Logger
	shutdownTimeout time.Duration
}

// NewServer creates a new server instance.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Server{
		svc:             cfg.Service,
		port:            cfg.Port,
		logger:          logger,
		shutdownTimeout: timeout,
	}
}

// Handler returns the router with every route and middleware installed.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		s.requestLogger,
		middleware.Recoverer,
	)

	h := &handlers{svc: s.svc}
	r.Get("/health", h.health)
	r.Get("/tables/{project}/{dataset}/{table}", h.tableStatus)
	r.Post("/profile", h.profile)
	r.Post("/generate-metadata", h.generateMetadata)

	return r
}

// Serve listens on the configured port and blocks until ctx is cancelled,
// then shuts the server down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		s.logger.Info("Shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
