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

package logging

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"k8s.io/klog/v2"
)

func TestRedact(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		want   string
	}{
		{name: "empty", secret: "", want: ""},
		{name: "short secret is fully masked", secret: "abc", want: "***"},
		{name: "eight characters is fully masked", secret: "abcdefgh", want: "********"},
		{name: "long secret keeps prefix", secret: "hf_abcdefghij", want: "hf_a*********"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Redact(tt.secret))
		})
	}
}

func TestGetRequestLogger(t *testing.T) {
	logger := klog.Background().WithValues("requestID", "req-1")
	req := httptest.NewRequest("GET", "/", nil)
	req = req.WithContext(klog.NewContext(req.Context(), logger))

	got := GetRequestLogger(req)
	assert.Equal(t, logger, got)
}
