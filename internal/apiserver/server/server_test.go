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

package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/llm-d-incubation/diagnosis-gateway/internal/apiserver/common"
	"github.com/llm-d-incubation/diagnosis-gateway/internal/apiserver/diagnose"
	"github.com/llm-d-incubation/diagnosis-gateway/internal/apiserver/health"
	"github.com/llm-d-incubation/diagnosis-gateway/internal/apiserver/metrics"
	"github.com/llm-d-incubation/diagnosis-gateway/internal/apiserver/middleware"
	"github.com/llm-d-incubation/diagnosis-gateway/internal/util/testutil"
)

// fakeProvider is a chat completion endpoint with a scripted reply.
type fakeProvider struct {
	mu         sync.Mutex
	status     int
	body       string
	authHeader string
	requestID  string
	payload    map[string]any
}

func (p *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authHeader = r.Header.Get("Authorization")
	p.requestID = r.Header.Get(middleware.RequestIDHeader)
	p.payload = nil
	_ = json.NewDecoder(r.Body).Decode(&p.payload)
	w.WriteHeader(p.status)
	_, _ = io.WriteString(w, p.body)
}

func (p *fakeProvider) reply(status int, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status, p.body = status, body
}

func (p *fakeProvider) replyContent(content string) {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": content}}},
	})
	p.reply(http.StatusOK, string(body))
}

func (p *fakeProvider) seen() (auth, requestID string, payload map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.authHeader, p.requestID, p.payload
}

type runningServer struct {
	baseURL string
	cancel  context.CancelFunc
	done    chan error
}

func startServer(config *common.ServerConfig) *runningServer {
	srv, err := New(config)
	Expect(err).NotTo(HaveOccurred())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		defer GinkgoRecover()
		done <- srv.Serve(ctx, ln)
	}()

	scheme := "http"
	if config.TLSEnabled() {
		scheme = "https"
	}
	return &runningServer{baseURL: scheme + "://" + ln.Addr().String(), cancel: cancel, done: done}
}

func (s *runningServer) stop() {
	s.cancel()
	Eventually(s.done, 5*time.Second).Should(Receive(BeNil()))
}

func postSymptoms(client *http.Client, baseURL, body string, header http.Header) (*http.Response, diagnose.DiagnosisResponse) {
	req, err := http.NewRequest(http.MethodPost, baseURL+diagnose.DiagnosePath, strings.NewReader(body))
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := client.Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	var out diagnose.DiagnosisResponse
	if resp.StatusCode == http.StatusOK {
		Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
	}
	return resp, out
}

var _ = Describe("API server", func() {
	var (
		provider     *fakeProvider
		providerHTTP *httptest.Server
		config       *common.ServerConfig
	)

	BeforeEach(func() {
		provider = &fakeProvider{}
		providerHTTP = httptest.NewServer(provider)
		DeferCleanup(providerHTTP.Close)

		config = common.NewConfig()
		config.Addr = "127.0.0.1:0"
		config.ShutdownTimeout = 2 * time.Second
		config.Completion.URL = providerHTTP.URL + "/v1/chat/completions"
		config.Completion.Model = "test-model"
		config.Completion.APIKey = "hf_test_token"
		config.CORSAllowedOrigins = []string{"http://localhost:5173"}
		Expect(config.Validate()).To(Succeed())
	})

	Context("over plain HTTP", func() {
		var server *runningServer

		BeforeEach(func() {
			server = startServer(config)
			DeferCleanup(server.stop)
		})

		It("relays symptoms and shapes a structured completion", func() {
			provider.replyContent("Diagnoses:\n- Migraine\n- Tension headache\nRecommendations:\n- Rest\n- Hydrate")

			resp, out := postSymptoms(http.DefaultClient, server.baseURL, `{"symptoms":"throbbing headache"}`, http.Header{
				middleware.RequestIDHeader: []string{"suite-req-1"},
			})

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(out.Diagnoses).To(Equal([]string{"Migraine", "Tension headache"}))
			Expect(out.Recommendations).To(Equal([]string{"Rest", "Hydrate", diagnose.Disclaimer}))

			auth, requestID, payload := provider.seen()
			Expect(auth).To(Equal("Bearer hf_test_token"))
			Expect(requestID).To(Equal("suite-req-1"))
			Expect(payload).To(HaveKeyWithValue("model", "test-model"))
			Expect(payload["messages"]).To(ConsistOf(map[string]any{
				"role":    "user",
				"content": diagnose.BuildPrompt("throbbing headache"),
			}))
		})

		It("answers 200 with the error placeholder when the provider fails", func() {
			provider.reply(http.StatusTooManyRequests, "rate limited")

			resp, out := postSymptoms(http.DefaultClient, server.baseURL, `{"symptoms":"cough"}`, nil)

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(out.Diagnoses).To(Equal([]string{diagnose.CompletionErrorMessage}))
			Expect(out.Recommendations).To(Equal([]string{"rate limited", diagnose.Disclaimer}))
		})

		It("answers 200 with the raw body when the provider returns no choice", func() {
			provider.reply(http.StatusOK, `{"choices":[]}`)

			_, out := postSymptoms(http.DefaultClient, server.baseURL, `{"symptoms":"cough"}`, nil)

			Expect(out.Diagnoses).To(Equal([]string{diagnose.CompletionErrorMessage}))
			Expect(out.Recommendations).To(Equal([]string{`{"choices":[]}`, diagnose.Disclaimer}))
		})

		It("treats a provider failure without a body as empty output", func() {
			provider.reply(http.StatusInternalServerError, "")

			resp, out := postSymptoms(http.DefaultClient, server.baseURL, `{"symptoms":"cough"}`, nil)

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(out.Diagnoses).To(Equal([]string{diagnose.NoOutput}))
			Expect(out.Recommendations).To(Equal([]string{diagnose.FallbackRecommendation, diagnose.Disclaimer}))
		})

		It("uses the fallback shape for free text", func() {
			provider.replyContent("Just some text")

			_, out := postSymptoms(http.DefaultClient, server.baseURL, `{"symptoms":""}`, nil)

			Expect(out.Diagnoses).To(Equal([]string{"Just some text"}))
			Expect(out.Recommendations).To(Equal([]string{diagnose.FallbackRecommendation, diagnose.Disclaimer}))
		})

		It("rejects a body without symptoms", func() {
			resp, _ := postSymptoms(http.DefaultClient, server.baseURL, `{"text":"cough"}`, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
		})

		It("echoes a generated request ID", func() {
			provider.replyContent("ok")
			resp, _ := postSymptoms(http.DefaultClient, server.baseURL, `{"symptoms":"x"}`, nil)
			Expect(resp.Header.Get(middleware.RequestIDHeader)).NotTo(BeEmpty())
		})

		It("answers CORS preflight requests for allowed origins", func() {
			req, err := http.NewRequest(http.MethodOptions, server.baseURL+diagnose.DiagnosePath, nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Origin", "http://localhost:5173")
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			req.Header.Set("Access-Control-Request-Headers", "content-type")

			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()

			Expect(resp.StatusCode).To(BeElementOf(http.StatusOK, http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("http://localhost:5173"))
			Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(ContainSubstring(http.MethodPost))
		})

		It("does not allow other origins", func() {
			provider.replyContent("ok")
			resp, _ := postSymptoms(http.DefaultClient, server.baseURL, `{"symptoms":"x"}`, http.Header{
				"Origin": []string{"http://evil.example"},
			})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(BeEmpty())
		})

		It("serves health and metrics", func() {
			resp, err := http.Get(server.baseURL + health.HealthPath)
			Expect(err).NotTo(HaveOccurred())
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(string(body)).To(Equal(health.HealthBody))

			provider.replyContent("ok")
			postSymptoms(http.DefaultClient, server.baseURL, `{"symptoms":"x"}`, nil)

			resp, err = http.Get(server.baseURL + metrics.MetricsPath)
			Expect(err).NotTo(HaveOccurred())
			body, _ = io.ReadAll(resp.Body)
			resp.Body.Close()
			Expect(string(body)).To(ContainSubstring("completion_requests_total"))
			Expect(string(body)).To(ContainSubstring(`http_requests_total{method="POST",path="/api/diagnose",status="200"}`))
		})
	})

	Context("over TLS", func() {
		It("serves HTTPS with the configured certificate", func() {
			certs := testutil.GenerateCerts(GinkgoT())
			config.TLS.CertFile = certs.ServerCert
			config.TLS.KeyFile = certs.ServerKey
			Expect(config.Validate()).To(Succeed())

			server := startServer(config)
			DeferCleanup(server.stop)

			caPEM, err := os.ReadFile(certs.CACert)
			Expect(err).NotTo(HaveOccurred())
			pool := x509.NewCertPool()
			Expect(pool.AppendCertsFromPEM(caPEM)).To(BeTrue())
			client := &http.Client{Transport: &http.Transport{TLSClientConfig: &tls.Config{RootCAs: pool}}}

			provider.replyContent("Just some text")
			resp, out := postSymptoms(client, server.baseURL, `{"symptoms":"x"}`, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(out.Diagnoses).To(Equal([]string{"Just some text"}))
		})
	})

	Context("construction", func() {
		It("rejects a missing config or client", func() {
			_, err := NewWithClient(nil, nil)
			Expect(err).To(HaveOccurred())
			_, err = NewWithClient(config, nil)
			Expect(err).To(HaveOccurred())
		})

		It("fails on unreadable TLS material", func() {
			config.TLS.CertFile = "/nonexistent/tls.crt"
			config.TLS.KeyFile = "/nonexistent/tls.key"
			_, err := New(config)
			Expect(err).To(HaveOccurred())
		})

		It("fails to start on an address in use", func() {
			ln, err := net.Listen("tcp", "127.0.0.1:0")
			Expect(err).NotTo(HaveOccurred())
			defer ln.Close()

			config.Addr = ln.Addr().String()
			srv, err := New(config)
			Expect(err).NotTo(HaveOccurred())
			Expect(srv.Start(context.Background())).To(HaveOccurred())
		})
	})
})
