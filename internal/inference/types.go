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

package inference

import (
	"context"
	"fmt"
)

// Client sends a single prompt to a chat completion provider.
type Client interface {
	// Complete returns the content of the first completion choice.
	// A non-nil ClientError means no text is available; its Message describes the failure.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, *ClientError)
}

// CompletionRequest is a single-prompt completion request.
type CompletionRequest struct {
	RequestID string // Forwarded as X-Request-ID when set
	Prompt    string // Sent as the only user message
}

// CompletionResponse holds the text of the first choice and the raw provider body.
type CompletionResponse struct {
	RequestID string
	Content   string
	Response  []byte
}

type ErrorCategory string

const (
	ErrCategoryRateLimit   ErrorCategory = "RATE_LIMIT"       // retryable
	ErrCategoryServer      ErrorCategory = "SERVER_ERROR"     // retryable
	ErrCategoryInvalidReq  ErrorCategory = "INVALID_REQ"      // not retryable
	ErrCategoryAuth        ErrorCategory = "AUTH_ERROR"       // not retryable
	ErrCategoryInvalidResp ErrorCategory = "INVALID_RESPONSE" // not retryable
	ErrCategoryUnknown     ErrorCategory = "UNKNOWN"          // not retryable
)

// ClientError describes a failed completion call.
type ClientError struct {
	Category   ErrorCategory
	StatusCode int    // HTTP status of the provider response, 0 when no response was received
	Message    string // Raw provider body for HTTP failures, transport error text otherwise
	RawError   error  // original error
}

func (e *ClientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Category, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *ClientError) Unwrap() error {
	return e.RawError
}

// IsRetryable reports whether a caller could reasonably retry. The client itself never retries.
func (e *ClientError) IsRetryable() bool {
	return e.Category == ErrCategoryRateLimit || e.Category == ErrCategoryServer
}

// chat completion wire format

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Messages []chatMessage `json:"messages"`
	Model    string        `json:"model"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
