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

// Package server assembles the api server: route registration, request middleware, CORS,
// optional TLS, and graceful shutdown.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/cors"
	"k8s.io/klog/v2"

	"github.com/llm-d-incubation/diagnosis-gateway/internal/apiserver/common"
	"github.com/llm-d-incubation/diagnosis-gateway/internal/apiserver/diagnose"
	"github.com/llm-d-incubation/diagnosis-gateway/internal/apiserver/health"
	"github.com/llm-d-incubation/diagnosis-gateway/internal/apiserver/metrics"
	"github.com/llm-d-incubation/diagnosis-gateway/internal/apiserver/middleware"
	"github.com/llm-d-incubation/diagnosis-gateway/internal/inference"
	"github.com/llm-d-incubation/diagnosis-gateway/internal/util/logging"
	utls "github.com/llm-d-incubation/diagnosis-gateway/internal/util/tls"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 120 * time.Second
)

type Server struct {
	config    *common.ServerConfig
	handler   http.Handler
	tlsConfig *tls.Config
}

// New builds a server that talks to the completion provider described by config.
func New(config *common.ServerConfig) (*Server, error) {
	client, err := inference.NewHTTPClient(config.CompletionClientConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create completion client: %w", err)
	}
	return NewWithClient(config, client)
}

// NewWithClient builds a server around an existing completion client.
func NewWithClient(config *common.ServerConfig, client inference.Client) (*Server, error) {
	if config == nil {
		return nil, errors.New("server config was not provided")
	}
	if client == nil {
		return nil, errors.New("completion client was not provided")
	}

	var tlsConfig *tls.Config
	if config.TLSEnabled() {
		var err error
		tlsConfig, err = utls.GetTlsConfig(utls.LOAD_TYPE_SERVER, false, config.TLSCertificates())
		if err != nil {
			return nil, fmt.Errorf("failed to build server TLS config: %w", err)
		}
	}

	mux := http.NewServeMux()
	for _, h := range []common.ApiHandler{
		health.NewHealthApiHandler(),
		metrics.NewMetricsApiHandler(),
		diagnose.NewDiagnoseApiHandler(client, config.MaxBodyBytes),
	} {
		common.RegisterHandler(mux, h)
	}

	return &Server{
		config:    config,
		handler:   newCORS(config.CORSAllowedOrigins).Handler(middleware.RequestMiddleware(mux)),
		tlsConfig: tlsConfig,
	}, nil
}

// newCORS allows browser front ends to call the api. Preflight requests are answered here
// and never reach the mux.
func newCORS(allowedOrigins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
	})
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then drains in-flight requests for up to
// the configured shutdown timeout. ln is closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	logger := klog.FromContext(ctx)

	httpServer := &http.Server{
		Handler:           s.handler,
		TLSConfig:         s.tlsConfig,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
		BaseContext: func(net.Listener) context.Context {
			// request contexts inherit the logger but not the cancellation
			return klog.NewContext(context.Background(), logger)
		},
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", ln.Addr().String(), "tls", s.tlsConfig != nil)
		if s.tlsConfig != nil {
			errCh <- httpServer.ServeTLS(ln, "", "")
		} else {
			errCh <- httpServer.Serve(ln)
		}
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down api server", "timeout", s.config.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, "api server shutdown did not complete")
		return err
	}
	logger.V(logging.DEBUG).Info("api server drained")

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
