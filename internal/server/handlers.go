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
package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/database"
	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/enricher"
	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/profiler"
)

const (
	msgTableNotFound   = "Table not found"
	msgInvalidMetadata = "Invalid metadata schema"
	msgInternal        = "Internal server error"
)

// tableRequest is the body of the POST endpoints.
type tableRequest struct {
	Project string `json:"project"`
	Dataset string `json:"dataset"`
	Table   string `json:"table"`
}

func (t tableRequest) ref() profiler.TableRef {
	return profiler.TableRef{Project: t.Project, Dataset: t.Dataset, Table: t.Table}
}

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

type handlers struct {
	svc Service
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) tableStatus(w http.ResponseWriter, r *http.Request) {
	ref := profiler.TableRef{
		Project: chi.URLParam(r, "project"),
		Dataset: chi.URLParam(r, "dataset"),
		Table:   chi.URLParam(r, "table"),
	}
	status, err := h.svc.TableStatus(r.Context(), ref)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !status.Exists {
		writeJSON(w, r, http.StatusNotFound, errorResponse{Error: msgTableNotFound})
		return
	}
	writeJSON(w, r, http.StatusOK, status)
}

func (h *handlers) profile(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTableRequest(w, r)
	if !ok {
		return
	}
	profile, err := h.svc.ProfileTable(r.Context(), req.ref())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, profile)
}

func (h *handlers) generateMetadata(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTableRequest(w, r)
	if !ok {
		return
	}
	md, err := h.svc.GenerateMetadata(r.Context(), req.ref())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, md)
}

func decodeTableRequest(w http.ResponseWriter, r *http.Request) (tableRequest, bool) {
	var req tableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "Request body must be a JSON object"})
		return req, false
	}
	if req.Project == "" || req.Dataset == "" || req.Table == "" {
		writeJSON(w, r, http.StatusUnprocessableEntity, errorResponse{
			Error:   "Missing table reference",
			Details: []string{"project, dataset and table are required"},
		})
		return req, false
	}
	return req, true
}

// writeError maps service errors to status codes. Unexpected errors are
// logged and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		invalidMetadata *enricher.ErrInvalidMetadata
		invalidInput    *enricher.ErrInvalidInput
		timeout         *enricher.ErrTimeout
	)
	switch {
	case errors.As(err, &invalidMetadata):
		writeJSON(w, r, http.StatusUnprocessableEntity, errorResponse{Error: msgInvalidMetadata, Details: invalidMetadata.Details})
	case errors.Is(err, database.ErrTableNotFound):
		writeJSON(w, r, http.StatusNotFound, errorResponse{Error: msgTableNotFound})
	case errors.As(err, &invalidInput):
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: invalidInput.Msg})
	case errors.As(err, &timeout):
		loggerFrom(r.Context()).Error("Request timed out", zap.Error(err))
		writeJSON(w, r, http.StatusGatewayTimeout, errorResponse{Error: "Request timed out"})
	default:
		loggerFrom(r.Context()).Error("Unhandled error", zap.Error(err))
		writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: msgInternal})
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	raw, err := json.Marshal(body)
	if err != nil {
		loggerFrom(r.Context()).Error("Failed to encode response", zap.Error(err))
		status = http.StatusInternalServerError
		raw = []byte(`{"error":"` + msgInternal + `"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}
