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

// The file provides helpers for writing JSON responses and OpenAI style error envelopes.
package common

import (
	"context"
	"encoding/json"
	"net/http"

	"k8s.io/klog/v2"
)

const ErrTypeInvalidRequest = "invalid_request_error"

type APIError struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

// WriteJSONResponse encodes v with the given status code.
func WriteJSONResponse(ctx context.Context, w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		klog.FromContext(ctx).Error(err, "failed to write response")
	}
}

// WriteAPIError writes an error envelope. Server errors are logged.
func WriteAPIError(ctx context.Context, w http.ResponseWriter, statusCode int, errType, message string) {
	if statusCode >= http.StatusInternalServerError {
		klog.FromContext(ctx).Error(nil, "request failed", "status", statusCode, "message", message)
	}
	WriteJSONResponse(ctx, w, statusCode, ErrorResponse{
		Error: APIError{
			Code:    statusCode,
			Type:    errType,
			Message: message,
		},
	})
}
