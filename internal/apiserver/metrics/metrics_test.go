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

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-d-incubation/diagnosis-gateway/internal/apiserver/common"
)

func TestRecordCompletion(t *testing.T) {
	before := testutil.ToFloat64(completionRequestsTotal.WithLabelValues(ResultFailed, "RATE_LIMIT"))
	RecordCompletion(ResultFailed, "RATE_LIMIT", 2*time.Second)
	after := testutil.ToFloat64(completionRequestsTotal.WithLabelValues(ResultFailed, "RATE_LIMIT"))
	assert.Equal(t, before+1, after)
}

func TestRecordDiagnoseResponse(t *testing.T) {
	before := testutil.ToFloat64(diagnoseResponsesTotal.WithLabelValues(ShapeFallback))
	RecordDiagnoseResponse(ShapeFallback)
	assert.Equal(t, before+1, testutil.ToFloat64(diagnoseResponsesTotal.WithLabelValues(ShapeFallback)))
}

func TestRecordRequest(t *testing.T) {
	inFlight := testutil.ToFloat64(httpRequestsInFlight)
	RecordRequestStart()
	assert.Equal(t, inFlight+1, testutil.ToFloat64(httpRequestsInFlight))

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodPost, "/api/diagnose", "200"))
	RecordRequestFinish(http.MethodPost, "/api/diagnose", "200", 0.5)
	assert.Equal(t, inFlight, testutil.ToFloat64(httpRequestsInFlight))
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodPost, "/api/diagnose", "200")))
}

func TestMetricsHandler(t *testing.T) {
	RecordDiagnoseResponse(ShapeStructured)

	mux := http.NewServeMux()
	common.RegisterHandler(mux, NewMetricsApiHandler())

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, MetricsPath, nil))
	require.Equal(t, http.StatusOK, w.Code)

	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `diagnose_responses_total{shape="structured"}`)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, MetricsPath, nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
