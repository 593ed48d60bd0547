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

// Package commands implements the diagnosectl commands.
package commands

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/llm-d-incubation/diagnosis-gateway/internal/client"
)

const (
	outputText = "text"
	outputJSON = "json"
)

// rootOptions holds the flags shared by every command.
type rootOptions struct {
	server     string
	timeout    time.Duration
	caCertFile string
	insecure   bool
	output     string
}

func (o *rootOptions) newClient() (*client.Client, error) {
	return client.New(client.Config{
		ServerURL:             o.server,
		Timeout:               o.timeout,
		TLSCACertFile:         o.caCertFile,
		TLSInsecureSkipVerify: o.insecure,
	})
}

// NewRootCmd builds the diagnosectl command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "diagnosectl",
		Short: "Command line client for the diagnosis gateway",
		Long: `diagnosectl sends symptom descriptions to a diagnosis gateway and prints the
suggested diagnoses and next step recommendations.

The answers are AI-generated suggestions and no substitute for a doctor.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.output != outputText && opts.output != outputJSON {
				return fmt.Errorf("unsupported output format %q, use %s or %s", opts.output, outputText, outputJSON)
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(klog.NewContext(ctx, klog.Background().WithName("diagnosectl")))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.server, "server", client.DefaultServerURL, "Base URL of the diagnosis gateway")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 0, "Request timeout, 0 waits for the gateway")
	cmd.PersistentFlags().StringVar(&opts.caCertFile, "ca-cert-file", "", "CA certificate used to verify an https gateway")
	cmd.PersistentFlags().BoolVar(&opts.insecure, "insecure-skip-verify", false, "Skip TLS verification of the gateway (testing only)")
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", outputText, "Output format: text or json")

	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	cmd.PersistentFlags().AddGoFlagSet(klogFlags)

	cmd.AddCommand(
		newDiagnoseCmd(opts),
		newHealthCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
