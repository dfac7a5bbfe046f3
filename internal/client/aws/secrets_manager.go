package aws

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/kaiacity/kaiapass/internal/logger"
	"go.uber.org/zap"
)

// SecretsAPI is the part of the Secrets Manager client used here.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerClient resolves configuration secrets.
type SecretsManagerClient struct {
	svc    SecretsAPI
	lookup func(string) string
}

// NewSecretsManagerClient loads the default AWS configuration chain
// (environment, shared config, IAM role).
func NewSecretsManagerClient(ctx context.Context) (*SecretsManagerClient, error) {
	cfg, err := LoadConfig(ctx)
	if err != nil {
		return nil, err
	}
	return NewSecretsManagerClientWithAPI(secretsmanager.NewFromConfig(cfg), os.Getenv), nil
}

// NewSecretsManagerClientWithAPI builds a client over svc. lookup reads
// environment variables.
func NewSecretsManagerClientWithAPI(svc SecretsAPI, lookup func(string) string) *SecretsManagerClient {
	if lookup == nil {
		lookup = os.Getenv
	}
	return &SecretsManagerClient{svc: svc, lookup: lookup}
}

// LoadConfig loads the default AWS configuration.
func LoadConfig(ctx context.Context) (aws.Config, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}
	return cfg, nil
}

// LocalEndpointEnvVar points the SQS client at a local emulator
// (e.g. LocalStack) with static credentials.
const LocalEndpointEnvVar = "KAIAPASS_AWS_LOCAL_ENDPOINT"

// NewSQSClient creates an SQS client from the default configuration, or for
// the local emulator when KAIAPASS_AWS_LOCAL_ENDPOINT is set.
func NewSQSClient(ctx context.Context) (*sqs.Client, error) {
	endpoint := strings.TrimSpace(os.Getenv(LocalEndpointEnvVar))
	if endpoint == "" {
		cfg, err := LoadConfig(ctx)
		if err != nil {
			return nil, err
		}
		return sqs.NewFromConfig(cfg), nil
	}

	cfg, err := LoadLocalConfig(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("Using local SQS endpoint", zap.String("endpoint", endpoint))
	return sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	}), nil
}

// LoadLocalConfig loads configuration with static test credentials. Region
// defaults to us-east-1.
func LoadLocalConfig(ctx context.Context) (aws.Config, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1"
	}
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("unable to load local AWS SDK config: %w", err)
	}
	return cfg, nil
}

// GetSecretString resolves a secret. When the variable arnEnvVar names a
// secret it is fetched from Secrets Manager; otherwise, or when the fetch
// fails, the plain variable fallbackEnvVar is used. An empty result is not
// an error: callers decide whether the secret is required.
func (c *SecretsManagerClient) GetSecretString(ctx context.Context, arnEnvVar, fallbackEnvVar string) (string, error) {
	arn := strings.TrimSpace(c.lookup(arnEnvVar))
	if arn != "" && c.svc != nil {
		out, err := c.svc.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(arn)})
		if err == nil && aws.ToString(out.SecretString) != "" {
			logger.Log.Debug("Fetched secret from Secrets Manager", zap.String("arnEnvVar", arnEnvVar))
			return aws.ToString(out.SecretString), nil
		}
		logger.Log.Warn("Failed to retrieve secret from Secrets Manager, falling back to env var",
			zap.String("arnEnvVar", arnEnvVar),
			zap.String("fallbackEnvVar", fallbackEnvVar),
			zap.Error(err),
		)
		if value := c.lookup(fallbackEnvVar); value != "" {
			return value, nil
		}
		if err == nil {
			err = fmt.Errorf("secret %s is empty", arn)
		}
		return "", fmt.Errorf("failed to resolve secret from %s: %w", arnEnvVar, err)
	}
	return c.lookup(fallbackEnvVar), nil
}
