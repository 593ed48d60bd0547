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

package diagnose

import (
	"fmt"
	"strings"
)

// BuildPrompt interpolates the symptoms verbatim, including the empty string.
func BuildPrompt(symptoms string) string {
	return fmt.Sprintf(promptTemplate, symptoms)
}

// HasSections reports whether text carries both section markers.
func HasSections(text string) bool {
	return strings.Contains(text, DiagnosesMarker) && strings.Contains(text, RecommendationsMarker)
}

// ParseCompletion splits model output into diagnoses and recommendations.
//
// With both markers present, the diagnoses block runs from the first "Diagnoses:" to the
// first "Recommendations:" after it, and the recommendations block from the first
// "Recommendations:" to the next marker of the same kind, if any. Each non-blank line of a
// block becomes one item with surrounding '-' and ' ' removed. Markers in any other order
// are split the same way and yield whatever falls between them.
//
// Without the markers the trimmed text is the single diagnosis (NoOutput when text is
// empty) and FallbackRecommendation the single recommendation.
//
// The disclaimer is not added here.
func ParseCompletion(text string) (diagnoses, recommendations []string) {
	if !HasSections(text) {
		diagnosis := NoOutput
		if text != "" {
			diagnosis = strings.TrimSpace(text)
		}
		return []string{diagnosis}, []string{FallbackRecommendation}
	}

	afterDiagnoses := strings.Split(text, DiagnosesMarker)[1]
	diagnosesBlock := strings.Split(afterDiagnoses, RecommendationsMarker)[0]
	recommendationsBlock := strings.Split(text, RecommendationsMarker)[1]

	return splitItems(diagnosesBlock), splitItems(recommendationsBlock)
}

// splitItems never returns nil so empty blocks encode as [].
func splitItems(block string) []string {
	items := make([]string, 0)
	for _, line := range strings.Split(strings.TrimSpace(block), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		items = append(items, strings.Trim(line, "- "))
	}
	return items
}

// NewDiagnosisResponse shapes a completion into a response ending with the disclaimer.
func NewDiagnosisResponse(text string) *DiagnosisResponse {
	diagnoses, recommendations := ParseCompletion(text)
	return &DiagnosisResponse{
		Diagnoses:       diagnoses,
		Recommendations: append(recommendations, Disclaimer),
	}
}

// NewErrorResponse reports a failed completion call; errText is passed through unchanged.
func NewErrorResponse(errText string) *DiagnosisResponse {
	return &DiagnosisResponse{
		Diagnoses:       []string{CompletionErrorMessage},
		Recommendations: []string{errText, Disclaimer},
	}
}
