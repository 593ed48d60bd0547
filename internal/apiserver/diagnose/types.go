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

// Package diagnose implements the symptom diagnosis endpoint: it builds a prompt from the
// submitted symptoms, asks the completion provider, and reshapes the free-text answer
// into ordered diagnoses and recommendations.
package diagnose

const (
	DiagnosesMarker       = "Diagnoses:"
	RecommendationsMarker = "Recommendations:"

	Disclaimer             = "Disclaimer: This is an AI-generated suggestion. Consult a real doctor for medical advice."
	CompletionErrorMessage = "Error: Unable to get response from Hugging Face API."
	FallbackRecommendation = "Consult a healthcare professional for confirmation."
	NoOutput               = "No output"

	promptTemplate = "A patient presents with the following symptoms: %s. " +
		"List the top 3 possible diagnoses and 3 next step recommendations. " +
		"Format your answer as: Diagnoses: ... Recommendations: ..."
)

// SymptomRequest is the body of POST /api/diagnose.
type SymptomRequest struct {
	Symptoms *string `json:"symptoms"`
}

// DiagnosisResponse lists diagnoses and recommendations in display order.
type DiagnosisResponse struct {
	Diagnoses       []string `json:"diagnoses"`
	Recommendations []string `json:"recommendations"`
}
