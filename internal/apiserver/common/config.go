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

// The api server's configuration definitions.
// Values are resolved in the order: defaults, YAML file, environment, explicitly set flags.
package common

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/llm-d-incubation/diagnosis-gateway/internal/inference"
	utls "github.com/llm-d-incubation/diagnosis-gateway/internal/util/tls"
)

const (
	EnvAPIToken      = "HF_TOKEN"
	EnvCompletionURL = "DIAGNOSE_COMPLETION_URL"
	EnvModel         = "DIAGNOSE_MODEL"
)

type ServerConfig struct {
	ConfigFile         string           `yaml:"-"`
	Addr               string           `yaml:"addr"`
	MaxBodyBytes       int64            `yaml:"max_body_bytes"`
	ShutdownTimeout    time.Duration    `yaml:"shutdown_timeout"`
	CORSAllowedOrigins []string         `yaml:"cors_allowed_origins"`
	TLS                TLSConfig        `yaml:"tls"`
	Completion         CompletionConfig `yaml:"completion"`
}

// TLSConfig configures the listener. TLS is enabled when CertFile and KeyFile are set;
// CACertFile additionally requires client certificates.
type TLSConfig struct {
	CertDir    string `yaml:"cert_dir"`
	CertFile   string `yaml:"cert_file"`
	KeyFile    string `yaml:"key_file"`
	CACertFile string `yaml:"ca_cert_file"`
}

type CompletionConfig struct {
	URL                string        `yaml:"url"`
	Model              string        `yaml:"model"`
	Timeout            time.Duration `yaml:"timeout"`
	TokenFile          string        `yaml:"token_file"`
	CACertFile         string        `yaml:"ca_cert_file"`
	ClientCertFile     string        `yaml:"client_cert_file"`
	ClientKeyFile      string        `yaml:"client_key_file"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`

	// APIKey is never read from YAML or flags.
	APIKey string `yaml:"-"`
}

// NewConfig returns a new ServerConfig with default values.
func NewConfig() *ServerConfig {
	return &ServerConfig{
		Addr:               ":8000",
		MaxBodyBytes:       1 << 20,
		ShutdownTimeout:    10 * time.Second,
		CORSAllowedOrigins: []string{"*"},
		Completion: CompletionConfig{
			URL:   inference.DefaultCompletionURL,
			Model: inference.DefaultModel,
		},
	}
}

// AddFlags binds the configuration fields to fs.
func (c *ServerConfig) AddFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "Path to a YAML configuration file")
	fs.StringVar(&c.Addr, "addr", c.Addr, "Address the api server listens on")
	fs.Int64Var(&c.MaxBodyBytes, "max-body-bytes", c.MaxBodyBytes, "Maximum accepted request body size in bytes")
	fs.DurationVar(&c.ShutdownTimeout, "shutdown-timeout", c.ShutdownTimeout, "Time allowed for in-flight requests on shutdown")
	fs.Var((*stringList)(&c.CORSAllowedOrigins), "cors-allowed-origins", "Comma separated list of allowed CORS origins ('*' allows any)")

	fs.StringVar(&c.TLS.CertDir, "tls-cert-dir", c.TLS.CertDir, "Directory that relative TLS file paths are resolved against")
	fs.StringVar(&c.TLS.CertFile, "tls-cert-file", c.TLS.CertFile, "Server certificate file; enables TLS together with --tls-key-file")
	fs.StringVar(&c.TLS.KeyFile, "tls-key-file", c.TLS.KeyFile, "Server private key file")
	fs.StringVar(&c.TLS.CACertFile, "tls-ca-cert-file", c.TLS.CACertFile, "CA certificate used to verify client certificates")

	fs.StringVar(&c.Completion.URL, "completion-url", c.Completion.URL, "Chat completion endpoint URL (env "+EnvCompletionURL+")")
	fs.StringVar(&c.Completion.Model, "model", c.Completion.Model, "Model identifier sent to the completion endpoint (env "+EnvModel+")")
	fs.DurationVar(&c.Completion.Timeout, "completion-timeout", c.Completion.Timeout, "Completion request timeout, 0 leaves it to the request context")
	fs.StringVar(&c.Completion.TokenFile, "token-file", c.Completion.TokenFile, "File holding the completion API token, used when "+EnvAPIToken+" is unset")
	fs.StringVar(&c.Completion.CACertFile, "completion-ca-cert-file", c.Completion.CACertFile, "CA certificate used to verify the completion endpoint")
	fs.StringVar(&c.Completion.ClientCertFile, "completion-client-cert-file", c.Completion.ClientCertFile, "Client certificate for mTLS to the completion endpoint")
	fs.StringVar(&c.Completion.ClientKeyFile, "completion-client-key-file", c.Completion.ClientKeyFile, "Client key for mTLS to the completion endpoint")
	fs.BoolVar(&c.Completion.InsecureSkipVerify, "completion-insecure-skip-verify", c.Completion.InsecureSkipVerify, "Skip TLS verification of the completion endpoint (testing only)")
}

// Load applies the YAML file named by --config and the environment on top of the
// current values, then re-applies the flags that were set explicitly on fs.
func (c *ServerConfig) Load(fs *flag.FlagSet) error {
	explicit := map[string]string{}
	fs.Visit(func(f *flag.Flag) {
		explicit[f.Name] = f.Value.String()
	})

	if c.ConfigFile != "" {
		if err := c.LoadFromYAML(c.ConfigFile); err != nil {
			return fmt.Errorf("failed to load config file %s: %w", c.ConfigFile, err)
		}
	}
	c.LoadFromEnv()

	for name, value := range explicit {
		if err := fs.Set(name, value); err != nil {
			return fmt.Errorf("failed to re-apply flag %s: %w", name, err)
		}
	}

	return c.resolveToken()
}

// LoadFromYAML loads the configuration from a YAML file.
func (c *ServerConfig) LoadFromYAML(filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil {
		return err
	}
	return nil
}

// LoadFromEnv reads the credential and endpoint overrides from the environment.
func (c *ServerConfig) LoadFromEnv() {
	if v := os.Getenv(EnvAPIToken); v != "" {
		c.Completion.APIKey = v
	}
	if v := os.Getenv(EnvCompletionURL); v != "" {
		c.Completion.URL = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		c.Completion.Model = v
	}
}

func (c *ServerConfig) resolveToken() error {
	if c.Completion.APIKey != "" || c.Completion.TokenFile == "" {
		return nil
	}
	data, err := os.ReadFile(c.Completion.TokenFile)
	if err != nil {
		return fmt.Errorf("failed to read token file: %w", err)
	}
	c.Completion.APIKey = strings.TrimSpace(string(data))
	return nil
}

// Validate reports every invalid setting.
func (c *ServerConfig) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("max-body-bytes must be positive, got %d", c.MaxBodyBytes))
	}
	if c.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("shutdown-timeout must not be negative, got %s", c.ShutdownTimeout))
	}
	if err := c.TLSCertificates().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tls: %w", err))
	}
	if c.TLS.CACertFile != "" && c.TLS.CertFile == "" {
		errs = append(errs, errors.New("tls: ca cert file requires cert file and key file"))
	}

	u, err := url.ParseRequestURI(c.Completion.URL)
	if err != nil {
		errs = append(errs, fmt.Errorf("completion url is invalid: %w", err))
	} else if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("completion url must be an absolute http(s) URL, got %q", c.Completion.URL))
	}
	if c.Completion.Model == "" {
		errs = append(errs, errors.New("model must not be empty"))
	}
	if c.Completion.Timeout < 0 {
		errs = append(errs, fmt.Errorf("completion-timeout must not be negative, got %s", c.Completion.Timeout))
	}
	if c.Completion.APIKey == "" {
		errs = append(errs, fmt.Errorf("completion API token is not set: export %s or use --token-file", EnvAPIToken))
	}
	if (c.Completion.ClientCertFile == "") != (c.Completion.ClientKeyFile == "") {
		errs = append(errs, errors.New("completion client cert file and key file must be specified together"))
	}
	return errors.Join(errs...)
}

// TLSEnabled reports whether the listener serves TLS.
func (c *ServerConfig) TLSEnabled() bool {
	return c.TLS.CertFile != "" && c.TLS.KeyFile != ""
}

func (c *ServerConfig) TLSCertificates() utls.Certificates {
	return utls.Certificates{
		Dir:        c.TLS.CertDir,
		CertFile:   c.TLS.CertFile,
		KeyFile:    c.TLS.KeyFile,
		CaCertFile: c.TLS.CACertFile,
	}
}

// CompletionClientConfig converts the completion settings for inference.NewHTTPClient.
func (c *ServerConfig) CompletionClientConfig() inference.HTTPClientConfig {
	return inference.HTTPClientConfig{
		URL:                   c.Completion.URL,
		Model:                 c.Completion.Model,
		APIKey:                c.Completion.APIKey,
		Timeout:               c.Completion.Timeout,
		TLSInsecureSkipVerify: c.Completion.InsecureSkipVerify,
		TLSCACertFile:         c.Completion.CACertFile,
		TLSClientCertFile:     c.Completion.ClientCertFile,
		TLSClientKeyFile:      c.Completion.ClientKeyFile,
	}
}

// stringList is a comma separated flag value.
type stringList []string

func (s *stringList) String() string {
	if s == nil {
		return ""
	}
	return strings.Join(*s, ",")
}

func (s *stringList) Set(value string) error {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*s = out
	return nil
}
