// Package config loads proxyfox settings from the environment, after an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/proxyfox/proxyfox"
	"github.com/proxyfox/proxyfox/mechanisms/evm"
)

var (
	ErrNoCatalog      = errors.New("either CATALOG_PATH or DATABASE_URL is required")
	ErrNoPrivateKey   = errors.New("EVM_PRIVATE_KEY is required")
	ErrNoProxyURL     = errors.New("PROXY_URL is required")
	ErrUnknownNetwork = errors.New("unknown network")
)

type Config struct {
	Port    string
	Env     string
	Network proxyfox.Network
	RPCURL  string

	CatalogPath string
	DatabaseURL string

	RedisURL  string
	ReplayTTL time.Duration

	UpstreamTimeout time.Duration
	ReceiptTimeout  time.Duration

	// Client only
	PrivateKey string
	ProxyURL   string
}

// Load reads the given .env files (".env" when none are named), then the
// environment. Variables already set in the environment win over the files.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg := &Config{
		Port:        getenv("PORT", "8080"),
		Env:         getenv("PROXYFOX_ENV", "production"),
		Network:     proxyfox.Network(getenv("PROXYFOX_NETWORK", string(evm.NetworkFlowTestnet))),
		RPCURL:      os.Getenv("EVM_RPC_URL"),
		CatalogPath: os.Getenv("CATALOG_PATH"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		PrivateKey:  os.Getenv("EVM_PRIVATE_KEY"),
		ProxyURL:    os.Getenv("PROXY_URL"),
	}

	var err error
	if cfg.ReplayTTL, err = duration("REPLAY_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.UpstreamTimeout, err = duration("UPSTREAM_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ReceiptTimeout, err = duration("RECEIPT_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}

	if cfg.RPCURL == "" {
		if network, ok := evm.NetworkConfigs[cfg.Network]; ok {
			cfg.RPCURL = network.RPCURL
		}
	}
	return cfg, nil
}

// NetworkConfig returns the EVM settings for the configured network.
func (c *Config) NetworkConfig() (*evm.NetworkConfig, error) {
	network, err := evm.GetNetworkConfig(c.Network)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNetwork, c.Network)
	}
	return network, nil
}

func (c *Config) Development() bool {
	return c.Env == "development"
}

// Validate checks what the gateway server needs.
func (c *Config) Validate() error {
	if c.CatalogPath == "" && c.DatabaseURL == "" {
		return ErrNoCatalog
	}
	_, err := c.NetworkConfig()
	return err
}

// ValidateClient checks what the paying client needs.
func (c *Config) ValidateClient() error {
	if c.PrivateKey == "" {
		return ErrNoPrivateKey
	}
	if c.ProxyURL == "" {
		return ErrNoProxyURL
	}
	_, err := c.NetworkConfig()
	return err
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
