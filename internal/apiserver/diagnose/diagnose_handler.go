/*
Copyright 2026 The llm-d Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// The file provides the HTTP handler for the diagnosis endpoint.
package diagnose

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"k8s.io/klog/v2"

	"github.com/llm-d-incubation/diagnosis-gateway/internal/apiserver/common"
	"github.com/llm-d-incubation/diagnosis-gateway/internal/apiserver/metrics"
	"github.com/llm-d-incubation/diagnosis-gateway/internal/apiserver/middleware"
	"github.com/llm-d-incubation/diagnosis-gateway/internal/inference"
	"github.com/llm-d-incubation/diagnosis-gateway/internal/util/logging"
)

const (
	DiagnosePath = "/api/diagnose"
)

type DiagnoseApiHandler struct {
	client       inference.Client
	maxBodyBytes int64
}

func NewDiagnoseApiHandler(client inference.Client, maxBodyBytes int64) *DiagnoseApiHandler {
	return &DiagnoseApiHandler{
		client:       client,
		maxBodyBytes: maxBodyBytes,
	}
}

func (c *DiagnoseApiHandler) GetRoutes() []common.Route {
	return []common.Route{
		{
			Method:      http.MethodPost,
			Pattern:     DiagnosePath,
			HandlerFunc: c.Diagnose,
		},
	}
}

// Diagnose answers 200 with a DiagnosisResponse for every well-formed request,
// including when the completion provider fails.
func (c *DiagnoseApiHandler) Diagnose(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.GetRequestLogger(r)

	symptoms, status, err := c.decodeRequest(w, r)
	if err != nil {
		logger.V(logging.INFO).Info("rejected diagnose request", "status", status, "err", err.Error())
		common.WriteAPIError(ctx, w, status, common.ErrTypeInvalidRequest, err.Error())
		return
	}

	common.WriteJSONResponse(ctx, w, http.StatusOK, c.diagnose(ctx, symptoms))
}

// decodeRequest requires a JSON object whose "symptoms" member is a string.
func (c *DiagnoseApiHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (string, int, error) {
	if c.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, c.maxBodyBytes)
	}

	var req SymptomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return "", http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds %d bytes", maxBytesErr.Limit)
		}
		return "", http.StatusUnprocessableEntity, fmt.Errorf("invalid request body: %w", err)
	}
	if req.Symptoms == nil {
		return "", http.StatusUnprocessableEntity, errors.New("field 'symptoms' is required")
	}
	return *req.Symptoms, http.StatusOK, nil
}

func (c *DiagnoseApiHandler) diagnose(ctx context.Context, symptoms string) *DiagnosisResponse {
	logger := klog.FromContext(ctx)

	req := &inference.CompletionRequest{Prompt: BuildPrompt(symptoms)}
	if requestID, ok := middleware.RequestIDFromContext(ctx); ok {
		req.RequestID = requestID
	}

	start := time.Now()
	resp, cerr := c.client.Complete(ctx, req)
	duration := time.Since(start)

	content := ""
	switch {
	case cerr != nil && cerr.Message != "":
		metrics.RecordCompletion(metrics.ResultFailed, string(cerr.Category), duration)
		metrics.RecordDiagnoseResponse(metrics.ShapeError)
		logger.V(logging.WARNING).Info("completion failed", "category", cerr.Category, "status", cerr.StatusCode, "duration", duration)
		return NewErrorResponse(cerr.Message)
	case cerr != nil:
		// a failure without any error text is shaped like an empty completion
		metrics.RecordCompletion(metrics.ResultFailed, string(cerr.Category), duration)
		logger.V(logging.WARNING).Info("completion failed with an empty body", "category", cerr.Category, "status", cerr.StatusCode, "duration", duration)
	default:
		metrics.RecordCompletion(metrics.ResultSuccess, metrics.CategoryNone, duration)
		logger.V(logging.TRACE).Info("completion received", "bodySize", len(resp.Response))
		content = resp.Content
	}

	shape := metrics.ShapeFallback
	if HasSections(content) {
		shape = metrics.ShapeStructured
	}
	metrics.RecordDiagnoseResponse(shape)

	result := NewDiagnosisResponse(content)
	logger.V(logging.DEBUG).Info("completion shaped", "shape", shape,
		"diagnoses", len(result.Diagnoses), "recommendations", len(result.Recommendations), "duration", duration)
	return result
}
