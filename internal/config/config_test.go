package config_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kaiacity/kaiapass/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

type stubSecrets struct {
	values map[string]string
	err    error
}

func (s stubSecrets) GetSecretString(_ context.Context, arnEnvVar, fallbackEnvVar string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if v, ok := s.values[arnEnvVar]; ok {
		return v, nil
	}
	return s.values[fallbackEnvVar], nil
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := config.FromEnv(context.Background(), env(nil), nil)
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Stage)
	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, config.ModeSimulated, cfg.ProviderMode)
	assert.Equal(t, uint64(1001), cfg.ExpectedChainID)
	assert.Equal(t, "0xf2556D5ce076afCbFEC583EBc0876f68FC39329A", cfg.ContractAddress)
	assert.Equal(t, "https://public-en-kairos.node.kaia.io", cfg.RPCURL)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := config.FromEnv(context.Background(), env(map[string]string{
		"KAIAPASS_STAGE":             "prod",
		"KAIAPASS_PROVIDER_MODE":     "RPC",
		"KAIAPASS_EXPECTED_CHAIN_ID": "8217",
		"KAIAPASS_RECEIPT_TIMEOUT":   "90s",
		"KAIAPASS_MAX_RETRIES":       "5",
		"RATE_LIMIT_RPS":             "2.5",
		"CORS_ALLOWED_ORIGINS":       "https://a.example, https://b.example",
	}), nil)
	require.NoError(t, err)

	assert.Equal(t, config.ModeRPC, cfg.ProviderMode)
	assert.Equal(t, uint64(8217), cfg.ExpectedChainID)
	assert.Equal(t, "https://public-en.node.kaia.io", cfg.RPCURL, "default RPC follows the expected chain")
	assert.Equal(t, 90*time.Second, cfg.ReceiptTimeout)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestFromEnv_Secrets(t *testing.T) {
	secrets := stubSecrets{values: map[string]string{
		"KAIAPASS_RPC_URL_SECRET_ARN": "https://private-node.example",
		"DATABASE_URL":                "postgres://localhost/kaiapass",
	}}
	cfg, err := config.FromEnv(context.Background(), env(nil), secrets)
	require.NoError(t, err)
	assert.Equal(t, "https://private-node.example", cfg.RPCURL)
	assert.Equal(t, "postgres://localhost/kaiapass", cfg.DatabaseURL)

	_, err = config.FromEnv(context.Background(), env(nil), stubSecrets{err: errors.New("denied")})
	assert.Error(t, err)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{name: "stage", vars: map[string]string{"KAIAPASS_STAGE": "staging"}},
		{name: "mode", vars: map[string]string{"KAIAPASS_PROVIDER_MODE": "ledger"}},
		{name: "contract", vars: map[string]string{"KAIAPASS_DID_CONTRACT": "0x1234"}},
		{name: "chain id", vars: map[string]string{"KAIAPASS_EXPECTED_CHAIN_ID": "kairos"}},
		{name: "duration", vars: map[string]string{"KAIAPASS_REQUEST_TIMEOUT": "soon"}},
		{name: "retries", vars: map[string]string{"KAIAPASS_MAX_RETRIES": "0"}},
		{name: "rate", vars: map[string]string{"RATE_LIMIT_RPS": "fast"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.FromEnv(context.Background(), env(tt.vars), nil)
			assert.Error(t, err)
		})
	}
}

func TestIsValidStage(t *testing.T) {
	for _, stage := range []string{"prod", "dev", "local", "test"} {
		assert.True(t, config.IsValidStage(stage), stage)
	}
	assert.False(t, config.IsValidStage(""))
}
