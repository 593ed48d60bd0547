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
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"k8s.io/klog/v2"

	"github.com/llm-d-incubation/diagnosis-gateway/internal/util/logging"
	utls "github.com/llm-d-incubation/diagnosis-gateway/internal/util/tls"
)

const (
	DefaultCompletionURL = "https://router.huggingface.co/v1/chat/completions"
	DefaultModel         = "meta-llama/Llama-3.1-8B-Instruct:fireworks-ai"
)

// HTTPClient implements Client for OpenAI-compatible chat completion endpoints
type HTTPClient struct {
	client *resty.Client
	url    string
	model  string
}

var _ Client = (*HTTPClient)(nil)

// HTTPClientConfig holds configuration for the HTTP client
type HTTPClientConfig struct {
	URL             string        // Full chat completion URL (default: DefaultCompletionURL)
	Model           string        // Model identifier sent with every request (default: DefaultModel)
	APIKey          string        // Bearer token for the provider
	Timeout         time.Duration // Request timeout (default: 0 = none, the request context governs)
	MaxIdleConns    int           // Maximum idle connections (default: 100)
	IdleConnTimeout time.Duration // Idle connection timeout (default: 90 seconds)

	// TLS configuration (optional)
	TLSInsecureSkipVerify bool   // Skip TLS certificate verification (INSECURE, only for testing)
	TLSCACertFile         string // Path to custom CA certificate file (for private CAs)
	TLSClientCertFile     string // Path to client certificate file (for mTLS)
	TLSClientKeyFile      string // Path to client private key file (for mTLS)
	TLSMinVersion         uint16 // Minimum TLS version (default: TLS 1.2)
}

// NewHTTPClient creates a new completion client. It fails only on an unusable TLS configuration.
func NewHTTPClient(config HTTPClientConfig) (*HTTPClient, error) {
	if config.URL == "" {
		config.URL = DefaultCompletionURL
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 100
	}
	if config.IdleConnTimeout == 0 {
		config.IdleConnTimeout = 90 * time.Second
	}

	client := resty.New().
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	if config.Timeout > 0 {
		client.SetTimeout(config.Timeout)
	}

	// adds "Authorization: Bearer <token>" to all requests
	if config.APIKey != "" {
		client.SetAuthToken(config.APIKey)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = config.MaxIdleConns
	transport.MaxIdleConnsPerHost = config.MaxIdleConns
	transport.IdleConnTimeout = config.IdleConnTimeout

	tlsConfig, err := buildTLSConfig(config)
	if err != nil {
		return nil, err
	}
	if tlsConfig != nil {
		transport.TLSClientConfig = tlsConfig
	}
	client.SetTransport(transport)

	return &HTTPClient{
		client: client,
		url:    config.URL,
		model:  config.Model,
	}, nil
}

// Complete sends the prompt as a single user message and returns the first choice's content.
// Exactly one request is made per call.
func (c *HTTPClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, *ClientError) {
	if req == nil {
		return nil, &ClientError{
			Category: ErrCategoryInvalidReq,
			Message:  "request cannot be nil",
		}
	}
	logger := klog.FromContext(ctx)

	restyReq := c.client.R().SetContext(ctx)
	if req.RequestID != "" {
		restyReq.SetHeader("X-Request-ID", req.RequestID)
	}
	restyReq.SetBody(&chatCompletionRequest{
		Messages: []chatMessage{{Role: "user", Content: req.Prompt}},
		Model:    c.model,
	})

	logger.V(logging.DEBUG).Info("Sending completion request", "url", c.url, "model", c.model, "promptLength", len(req.Prompt))

	resp, err := restyReq.Post(c.url)
	if err != nil {
		return nil, c.handleRequestError(ctx, err)
	}

	body := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		return nil, c.handleErrorResponse(ctx, resp.StatusCode(), body)
	}

	content, cerr := parseCompletionBody(body)
	if cerr != nil {
		logger.V(logging.INFO).Info("Completion response has no usable choice", "bodySize", len(body))
		return nil, cerr
	}

	logger.V(logging.DEBUG).Info("Received completion response", "status", resp.StatusCode(), "bodySize", len(body))

	return &CompletionResponse{
		RequestID: req.RequestID,
		Content:   content,
		Response:  body,
	}, nil
}

// parseCompletionBody extracts choices[0].message.content from a 200 body.
// A null content is an empty completion, not an error.
func parseCompletionBody(body []byte) (string, *ClientError) {
	var parsed chatCompletionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &ClientError{
			Category:   ErrCategoryInvalidResp,
			StatusCode: http.StatusOK,
			Message:    string(body),
			RawError:   err,
		}
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message == nil {
		return "", &ClientError{
			Category:   ErrCategoryInvalidResp,
			StatusCode: http.StatusOK,
			Message:    string(body),
			RawError:   errors.New("response has no completion choice"),
		}
	}
	if content := parsed.Choices[0].Message.Content; content != nil {
		return *content, nil
	}
	return "", nil
}

// handleRequestError processes request-level errors (network, timeout, cancellation)
func (c *HTTPClient) handleRequestError(ctx context.Context, err error) *ClientError {
	logger := klog.FromContext(ctx)
	if errors.Is(ctx.Err(), context.Canceled) {
		logger.V(logging.INFO).Info("Completion request cancelled")
		return &ClientError{
			Category: ErrCategoryUnknown,
			Message:  "request cancelled",
			RawError: err,
		}
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		logger.V(logging.INFO).Info("Completion request timed out")
		return &ClientError{
			Category: ErrCategoryServer,
			Message:  "request timeout",
			RawError: err,
		}
	}

	logger.V(logging.INFO).Info("Completion request failed with network error", "err", err.Error())
	return &ClientError{
		Category: ErrCategoryServer,
		Message:  fmt.Sprintf("failed to execute request: %v", err),
		RawError: err,
	}
}

// handleErrorResponse maps a non-200 response to ClientError, keeping the body verbatim
func (c *HTTPClient) handleErrorResponse(ctx context.Context, statusCode int, body []byte) *ClientError {
	category := c.mapStatusCodeToCategory(statusCode)

	klog.FromContext(ctx).V(logging.INFO).Info("Completion request failed", "status", statusCode, "category", category, "bodySize", len(body))

	return &ClientError{
		Category:   category,
		StatusCode: statusCode,
		Message:    string(body),
		RawError:   fmt.Errorf("status code: %d, body: %s", statusCode, string(body)),
	}
}

// mapStatusCodeToCategory maps HTTP status codes to error categories
func (c *HTTPClient) mapStatusCodeToCategory(statusCode int) ErrorCategory {
	switch statusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity: // 400, 422
		return ErrCategoryInvalidReq
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusPaymentRequired: // 401, 403, 402
		return ErrCategoryAuth
	case http.StatusTooManyRequests: // 429
		return ErrCategoryRateLimit
	default:
		if statusCode >= 500 {
			return ErrCategoryServer
		}
		return ErrCategoryUnknown
	}
}

// buildTLSConfig constructs a custom TLS configuration based on provided options
// Returns nil if no custom TLS config is needed (use system defaults)
func buildTLSConfig(config HTTPClientConfig) (*tls.Config, error) {
	if !config.TLSInsecureSkipVerify &&
		config.TLSCACertFile == "" &&
		config.TLSClientCertFile == "" &&
		config.TLSClientKeyFile == "" &&
		config.TLSMinVersion == 0 {
		return nil, nil
	}

	tlsConfig, err := utls.GetTlsConfig(utls.LOAD_TYPE_CLIENT, config.TLSInsecureSkipVerify, utls.Certificates{
		CertFile:   config.TLSClientCertFile,
		KeyFile:    config.TLSClientKeyFile,
		CaCertFile: config.TLSCACertFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build completion client TLS config: %w", err)
	}
	if config.TLSInsecureSkipVerify {
		klog.Warning("TLS certificate verification is disabled - this is insecure and should only be used for testing")
	}
	if config.TLSMinVersion != 0 {
		tlsConfig.MinVersion = config.TLSMinVersion
	}
	return tlsConfig, nil
}
