package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/url"
	"os"
	"time"
)

// TLSOptions holds TLS configuration that can be marshaled from JSON/YAML
type TLSOptions struct {
	InsecureSkipVerify bool   `json:"insecureSkipVerify" yaml:"insecureSkipVerify"`
	ServerName         string `json:"serverName,omitempty" yaml:"serverName,omitempty"`
	CAFile             string `json:"caFile,omitempty" yaml:"caFile,omitempty"`
	CertFile           string `json:"certFile,omitempty" yaml:"certFile,omitempty"`
	KeyFile            string `json:"keyFile,omitempty" yaml:"keyFile,omitempty"`
}

// ClientOptions is the JSON/YAML-configurable subset of paho's client
// options.
type ClientOptions struct {
	TLS                  *TLSOptions   `json:"tls,omitempty" yaml:"tls,omitempty"`
	ClientID             string        `json:"clientID"`
	Username             string        `json:"username"`
	Password             string        `json:"password"`
	Servers              []*url.URL    `json:"servers"`
	KeepAlive            int64         `json:"keepAlive,omitempty"`
	PingTimeout          time.Duration `json:"pingTimeout,omitempty"`
	ConnectTimeout       time.Duration `json:"connectTimeout,omitempty"`
	MaxReconnectInterval time.Duration `json:"maxReconnectInterval,omitempty"`
	ConnectRetryInterval time.Duration `json:"connectRetryInterval,omitempty"`
	WriteTimeout         time.Duration `json:"writeTimeout,omitempty"`
	AutoReconnect        bool          `json:"autoReconnect,omitempty"`
	ConnectRetry         bool          `json:"connectRetry,omitempty"`
	ResumeSubs           bool          `json:"resumeSubs,omitempty"`
	CleanSession         bool          `json:"cleanSession,omitempty"`
}

func createTLSConfig(tlsOpts *TLSOptions) (*tls.Config, error) {
	if tlsOpts == nil {
		return nil, nil
	}

	config := &tls.Config{
		InsecureSkipVerify: tlsOpts.InsecureSkipVerify,
		ServerName:         tlsOpts.ServerName,
	}

	// Load CA certificate
	if tlsOpts.CAFile != "" {
		caCert, err := os.ReadFile(tlsOpts.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}

		config.RootCAs = caCertPool
	}

	// Load client certificate and key
	if tlsOpts.CertFile != "" && tlsOpts.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(tlsOpts.CertFile, tlsOpts.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}

		config.Certificates = []tls.Certificate{cert}
	}

	return config, nil
}
