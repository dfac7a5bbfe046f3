// Package config reads the service configuration from the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/kaiacity/kaiapass/internal/constants"
	"github.com/kaiacity/kaiapass/internal/networks"
	"github.com/kaiacity/kaiapass/internal/wallet"
)

// Provider modes.
const (
	ModeRPC       = "rpc"
	ModeSimulated = "simulated"
)

// Config is the resolved service configuration.
type Config struct {
	Stage    string
	LogLevel string
	Port     string

	ProviderMode    string
	RPCURL          string
	ExpectedChainID uint64
	ContractAddress string
	RequestTimeout  time.Duration
	ReceiptTimeout  time.Duration
	PollInterval    time.Duration
	MaxRetries      int

	DatabaseURL    string
	EventsQueueURL string

	RateLimitRPS       float64
	RateLimitBurst     int
	CORSAllowedOrigins []string
}

// SecretSource resolves a secret from an ARN variable with a plain fallback
// variable. *aws.SecretsManagerClient implements it.
type SecretSource interface {
	GetSecretString(ctx context.Context, arnEnvVar, fallbackEnvVar string) (string, error)
}

// LoadDotEnv loads .env when present. A missing file is not an error.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// Load reads the process environment. secrets may be nil, in which case
// secret values come from their plain variables.
func Load(ctx context.Context, secrets SecretSource) (*Config, error) {
	return FromEnv(ctx, os.Getenv, secrets)
}

// FromEnv builds a Config from lookup.
func FromEnv(ctx context.Context, lookup func(string) string, secrets SecretSource) (*Config, error) {
	r := reader{lookup: lookup}

	cfg := &Config{
		Stage:              r.str("KAIAPASS_STAGE", constants.LocalEnvironment),
		LogLevel:           r.str("LOG_LEVEL", "info"),
		Port:               r.str("API_PORT", "8000"),
		ProviderMode:       strings.ToLower(r.str("KAIAPASS_PROVIDER_MODE", ModeSimulated)),
		ExpectedChainID:    r.uint("KAIAPASS_EXPECTED_CHAIN_ID", constants.DefaultExpectedChainID),
		ContractAddress:    r.str("KAIAPASS_DID_CONTRACT", constants.DefaultDIDContractAddress),
		RequestTimeout:     r.duration("KAIAPASS_REQUEST_TIMEOUT", wallet.DefaultRequestTimeout),
		ReceiptTimeout:     r.duration("KAIAPASS_RECEIPT_TIMEOUT", wallet.DefaultReceiptTimeout),
		PollInterval:       r.duration("KAIAPASS_POLL_INTERVAL", 4*time.Second),
		MaxRetries:         int(r.uint("KAIAPASS_MAX_RETRIES", wallet.DefaultMaxRetries)),
		EventsQueueURL:     r.str("KAIAPASS_EVENTS_QUEUE_URL", ""),
		RateLimitRPS:       r.float("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     int(r.uint("RATE_LIMIT_BURST", 20)),
		CORSAllowedOrigins: r.list("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}

	rpcURL, err := secret(ctx, secrets, lookup, "KAIAPASS_RPC_URL_SECRET_ARN", "KAIAPASS_RPC_URL")
	if err != nil {
		return nil, err
	}
	cfg.RPCURL = rpcURL
	if cfg.RPCURL == "" {
		cfg.RPCURL = networks.DefaultRegistry().Resolve(cfg.ExpectedChainID).RPCURL
	}

	if cfg.DatabaseURL, err = secret(ctx, secrets, lookup, "DATABASE_URL_SECRET_ARN", "DATABASE_URL"); err != nil {
		return nil, err
	}

	if err := errors.Join(r.errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func secret(ctx context.Context, secrets SecretSource, lookup func(string) string, arnVar, plainVar string) (string, error) {
	if secrets == nil {
		return lookup(plainVar), nil
	}
	v, err := secrets.GetSecretString(ctx, arnVar, plainVar)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", plainVar, err)
	}
	return v, nil
}

// Validate checks values that have no usable default.
func (c *Config) Validate() error {
	if !IsValidStage(c.Stage) {
		return fmt.Errorf("invalid KAIAPASS_STAGE %q: must be one of %s, %s, %s, %s",
			c.Stage, constants.ProdEnvironment, constants.DevEnvironment, constants.LocalEnvironment, constants.TestEnvironment)
	}
	if c.ProviderMode != ModeRPC && c.ProviderMode != ModeSimulated {
		return fmt.Errorf("invalid KAIAPASS_PROVIDER_MODE %q", c.ProviderMode)
	}
	if !common.IsHexAddress(c.ContractAddress) {
		return fmt.Errorf("invalid KAIAPASS_DID_CONTRACT %q", c.ContractAddress)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("KAIAPASS_MAX_RETRIES must be at least 1")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("rate limit must be positive")
	}
	return nil
}

// IsValidStage reports whether stage is a known deployment stage.
func IsValidStage(stage string) bool {
	switch stage {
	case constants.ProdEnvironment, constants.DevEnvironment, constants.LocalEnvironment, constants.TestEnvironment:
		return true
	default:
		return false
	}
}

type reader struct {
	lookup func(string) string
	errs   []error
}

func (r *reader) str(key, def string) string {
	if v := strings.TrimSpace(r.lookup(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) uint(key string, def uint64) uint64 {
	v := strings.TrimSpace(r.lookup(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return n
}

func (r *reader) float(key string, def float64) float64 {
	v := strings.TrimSpace(r.lookup(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return f
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(r.lookup(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return d
}

func (r *reader) list(key string, def []string) []string {
	v := strings.TrimSpace(r.lookup(key))
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
