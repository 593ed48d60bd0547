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

package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/llm-d-incubation/diagnosis-gateway/internal/apiserver/diagnose"
	"github.com/llm-d-incubation/diagnosis-gateway/internal/client"
	"github.com/llm-d-incubation/diagnosis-gateway/internal/util/logging"
)

const stdinArg = "-"

func newDiagnoseCmd(opts *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "diagnose [symptoms...]",
		Short: "Ask the gateway for possible diagnoses",
		Long: `Send a symptom description to the gateway and print the diagnoses and recommendations.

The symptoms are taken from the arguments, from --file, or from stdin when the
only argument is "-".`,
		Example: `  diagnosectl diagnose "headache and fever for two days"
  diagnosectl diagnose --file symptoms.txt -o json
  echo "dry cough" | diagnosectl diagnose -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			symptoms, err := readSymptoms(cmd.InOrStdin(), file, args)
			if err != nil {
				return err
			}

			c, err := opts.newClient()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			klog.FromContext(ctx).V(logging.DEBUG).Info("sending symptoms", "server", opts.server, "length", len(symptoms))

			result, err := c.Diagnose(ctx, symptoms)
			if client.IsAPIError(err, http.StatusRequestEntityTooLarge) {
				return fmt.Errorf("symptoms are too long for the gateway: %w", err)
			}
			if err != nil {
				return err
			}
			return printDiagnosis(cmd.OutOrStdout(), opts.output, result)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the symptoms from a file")
	return cmd
}

// readSymptoms takes the symptoms from exactly one source.
func readSymptoms(stdin io.Reader, file string, args []string) (string, error) {
	switch {
	case file != "" && len(args) > 0:
		return "", errors.New("symptoms given both as arguments and with --file")
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading symptoms file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	case len(args) == 1 && args[0] == stdinArg:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading symptoms from stdin: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	case len(args) > 0:
		return strings.Join(args, " "), nil
	default:
		return "", errors.New("no symptoms given: pass them as arguments, with --file, or as - for stdin")
	}
}

func printDiagnosis(w io.Writer, output string, result *diagnose.DiagnosisResponse) error {
	if output == outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	var b strings.Builder
	writeSection(&b, "Diagnoses", result.Diagnoses)
	b.WriteString("\n")
	writeSection(&b, "Recommendations", result.Recommendations)
	_, err := io.WriteString(w, b.String())
	return err
}

func writeSection(b *strings.Builder, title string, items []string) {
	fmt.Fprintf(b, "%s:\n", title)
	for i, item := range items {
		fmt.Fprintf(b, "  %d. %s\n", i+1, item)
	}
}
