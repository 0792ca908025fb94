// Package http provides a webhook sink that forwards archived audit records
// to external HTTP endpoints, e.g. an alerting service or a downstream
// collector outside the broker network.
package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/archiver/auditpipe/pkg/httputil"
	"github.com/archiver/auditpipe/pkg/pipeline"
	"github.com/archiver/auditpipe/pkg/pipeline/record"
	"go.uber.org/zap"
)

// AuthType represents supported authentication methods
type AuthType string

const (
	AuthTypeNone   AuthType = "none"
	AuthTypeAPIKey AuthType = "apikey"
	AuthTypeBearer AuthType = "bearer"
	AuthTypeBasic  AuthType = "basic"
)

// AuthConfig holds authentication configuration
type AuthConfig struct {
	Type AuthType `json:"type"`
	// API key settings
	APIKey     string `json:"apiKey,omitempty"`
	APIKeyName string `json:"apiKeyName,omitempty"` // Header name for API key
	// Basic auth settings
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	// Bearer settings
	Token string `json:"token,omitempty"`
}

// RetryConfig holds retry settings for failed webhook attempts
type RetryConfig struct {
	MaxRetries  int           `json:"maxRetries"`
	InitialWait time.Duration `json:"initialWait"`
	MaxWait     time.Duration `json:"maxWait"`
}

// EndpointConfig represents configuration for a single endpoint
type EndpointConfig struct {
	Headers map[string]string `json:"headers,omitempty"`
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
}

type peerConfig struct {
	Auth      AuthConfig       `json:"auth"`
	Timeout   string           `json:"timeout"`
	Endpoints []EndpointConfig `json:"endpoints"`
	Retry     RetryConfig      `json:"retry"`
}

// PeerHTTP implements the webhook sink
type PeerHTTP struct {
	logger      *zap.Logger
	auth        AuthConfig
	endpoints   []EndpointConfig
	retryConfig RetryConfig
	timeout     time.Duration
}

// Connect initializes the webhook sink with the provided configuration
func (p *PeerHTTP) Connect(config json.RawMessage, args ...any) error {
	var cfg peerConfig

	if err := json.Unmarshal(config, &cfg); err != nil {
		return fmt.Errorf("failed to unmarshal HTTP config: %w", err)
	}

	if len(cfg.Endpoints) == 0 {
		return fmt.Errorf("no endpoints configured")
	}

	p.timeout = 30 * time.Second
	if cfg.Timeout != "" {
		timeout, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout duration: %w", err)
		}
		p.timeout = timeout
	}

	setDefaultConfig(&cfg)
	p.endpoints = cfg.Endpoints
	p.auth = cfg.Auth
	p.retryConfig = cfg.Retry

	if p.logger == nil {
		p.logger = zap.L()
	}

	if err := p.validateAuth(); err != nil {
		return err
	}

	p.logger.Info("Webhook sink initialized",
		zap.Int("num_endpoints", len(cfg.Endpoints)),
		zap.String("auth_type", string(cfg.Auth.Type)),
		zap.Duration("timeout", p.timeout))

	return nil
}

func setDefaultConfig(cfg *peerConfig) {
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 3
	}
	if cfg.Retry.InitialWait == 0 {
		cfg.Retry.InitialWait = 1 * time.Second
	}
	if cfg.Retry.MaxWait == 0 {
		cfg.Retry.MaxWait = 30 * time.Second
	}

	for i := range cfg.Endpoints {
		if cfg.Endpoints[i].Method == "" {
			cfg.Endpoints[i].Method = http.MethodPost
		}
	}

	if cfg.Auth.Type == "" {
		cfg.Auth.Type = AuthTypeNone
	}
}

func (p *PeerHTTP) validateAuth() error {
	switch p.auth.Type {
	case AuthTypeAPIKey:
		if p.auth.APIKey == "" {
			return fmt.Errorf("API key authentication requires an API key")
		}
		if p.auth.APIKeyName == "" {
			p.auth.APIKeyName = "X-API-Key" // default header name
		}
	case AuthTypeBasic:
		if p.auth.Username == "" || p.auth.Password == "" {
			return fmt.Errorf("basic authentication requires both username and password")
		}
	case AuthTypeBearer:
		if p.auth.Token == "" {
			return fmt.Errorf("bearer authentication requires a token")
		}
	}
	return nil
}

// Pub delivers the audit record to all configured endpoints. An endpoint
// failure does not stop delivery to the remaining endpoints; the last error
// is returned.
func (p *PeerHTTP) Pub(rec record.Record, args ...any) error {
	payload, err := json.Marshal(rec.Value)
	if err != nil {
		return fmt.Errorf("failed to marshal record value: %w", err)
	}

	var lastErr error
	for _, endpoint := range p.endpoints {
		config := httputil.DefaultRequestConfig(endpoint.Method, endpoint.URL)
		config.Headers = p.buildHeaders(endpoint)
		config.Timeout = p.timeout
		config.RetryEnabled = true
		config.MaxRetries = p.retryConfig.MaxRetries
		config.InitialBackoff = p.retryConfig.InitialWait
		config.MaxBackoff = p.retryConfig.MaxWait

		if _, err := httputil.Request(context.Background(), config, payload); err != nil {
			lastErr = err
			p.logger.Error("failed to deliver webhook",
				zap.String("endpoint", endpoint.URL),
				zap.Error(err))
		}
	}

	return lastErr
}

func (p *PeerHTTP) buildHeaders(endpoint EndpointConfig) map[string][]string {
	headers := make(map[string][]string)

	for key, value := range endpoint.Headers {
		headers[key] = []string{value}
	}

	switch p.auth.Type {
	case AuthTypeAPIKey:
		headers[p.auth.APIKeyName] = []string{p.auth.APIKey}
	case AuthTypeBasic:
		headers["Authorization"] = []string{"Basic " + basicAuth(p.auth.Username, p.auth.Password)}
	case AuthTypeBearer:
		headers["Authorization"] = []string{"Bearer " + p.auth.Token}
	}

	return headers
}

func basicAuth(username, password string) string {
	auth := username + ":" + password
	return base64.StdEncoding.EncodeToString([]byte(auth))
}

func (p *PeerHTTP) Type() pipeline.ConnectorType {
	return pipeline.ConnectorTypePub
}

func (p *PeerHTTP) Sub(args ...any) (<-chan record.Record, error) {
	return nil, pipeline.ErrConnectorTypeMismatch
}

func (p *PeerHTTP) Disconnect() error {
	return nil
}

func init() {
	pipeline.RegisterConnector(pipeline.ConnectorHTTP, &PeerHTTP{})
}
