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

// Package client is a Go client for the diagnosis gateway api.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"k8s.io/klog/v2"

	"github.com/llm-d-incubation/diagnosis-gateway/internal/apiserver/common"
	"github.com/llm-d-incubation/diagnosis-gateway/internal/apiserver/diagnose"
	"github.com/llm-d-incubation/diagnosis-gateway/internal/apiserver/health"
	"github.com/llm-d-incubation/diagnosis-gateway/internal/util/logging"
	utls "github.com/llm-d-incubation/diagnosis-gateway/internal/util/tls"
)

const DefaultServerURL = "http://127.0.0.1:8000"

type Config struct {
	ServerURL string        // Base URL of the api server (default: DefaultServerURL)
	Timeout   time.Duration // Per request timeout, 0 = none

	TLSInsecureSkipVerify bool
	TLSCACertFile         string
}

// Client calls the diagnosis gateway.
type Client struct {
	client  *resty.Client
	baseURL string
}

// APIError is a non-2xx answer from the api server.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("api error (HTTP %d, %s): %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("api error (HTTP %d): %s", e.StatusCode, e.Message)
}

func New(config Config) (*Client, error) {
	if config.ServerURL == "" {
		config.ServerURL = DefaultServerURL
	}

	client := resty.New().SetHeader("Accept", "application/json")
	if config.Timeout > 0 {
		client.SetTimeout(config.Timeout)
	}

	if config.TLSInsecureSkipVerify || config.TLSCACertFile != "" {
		tlsConfig, err := utls.GetTlsConfig(utls.LOAD_TYPE_CLIENT, config.TLSInsecureSkipVerify, utls.Certificates{
			CaCertFile: config.TLSCACertFile,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build TLS config: %w", err)
		}
		client.SetTLSClientConfig(tlsConfig)
	}

	return &Client{
		client:  client,
		baseURL: strings.TrimRight(config.ServerURL, "/"),
	}, nil
}

// Diagnose submits symptoms and returns the shaped diagnosis.
func (c *Client) Diagnose(ctx context.Context, symptoms string) (*diagnose.DiagnosisResponse, error) {
	logger := klog.FromContext(ctx)

	var out diagnose.DiagnosisResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(diagnose.SymptomRequest{Symptoms: &symptoms}).
		Post(c.baseURL + diagnose.DiagnosePath)
	if err != nil {
		return nil, fmt.Errorf("diagnose request failed: %w", err)
	}
	logger.V(logging.DEBUG).Info("diagnose answered",
		"status", resp.StatusCode(),
		"requestID", resp.Header().Get("X-Request-ID"),
		"duration", resp.Time(),
	)

	if resp.StatusCode() != http.StatusOK {
		return nil, newAPIError(resp)
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("failed to decode diagnose response: %w", err)
	}
	return &out, nil
}

// Health returns nil when the server reports healthy.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.client.R().SetContext(ctx).Get(c.baseURL + health.HealthPath)
	if err != nil {
		return fmt.Errorf("health request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return newAPIError(resp)
	}
	if body := strings.TrimSpace(resp.String()); body != health.HealthBody {
		return fmt.Errorf("unexpected health response %q", body)
	}
	return nil
}

// IsAPIError reports whether err carries a server answer with the given status code.
func IsAPIError(err error, statusCode int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == statusCode
}

func newAPIError(resp *resty.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode()}

	var envelope common.ErrorResponse
	if err := json.Unmarshal(resp.Body(), &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Type = envelope.Error.Type
		apiErr.Message = envelope.Error.Message
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(resp.String())
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode())
	}
	return apiErr
}
