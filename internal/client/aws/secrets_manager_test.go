package aws_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	awsclient "github.com/kaiacity/kaiapass/internal/client/aws"
	"github.com/kaiacity/kaiapass/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.InitLogger("test")
}

type fakeSecrets struct {
	values map[string]string
	err    error
	calls  int
}

func (f *fakeSecrets) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.values[aws.ToString(in.SecretId)]
	if !ok {
		return nil, errors.New("ResourceNotFoundException")
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(v)}, nil
}

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestGetSecretString(t *testing.T) {
	const arn = "arn:aws:secretsmanager:ap-northeast-2:123:secret:rpc"

	tests := []struct {
		name      string
		env       map[string]string
		svc       *fakeSecrets
		want      string
		wantErr   bool
		wantCalls int
	}{
		{
			name:      "from secrets manager",
			env:       map[string]string{"RPC_URL_SECRET_ARN": arn, "RPC_URL": "http://fallback"},
			svc:       &fakeSecrets{values: map[string]string{arn: "https://secret"}},
			want:      "https://secret",
			wantCalls: 1,
		},
		{
			name: "no arn uses plain variable",
			env:  map[string]string{"RPC_URL": "http://plain"},
			svc:  &fakeSecrets{},
			want: "http://plain",
		},
		{
			name: "unset is empty",
			env:  map[string]string{},
			svc:  &fakeSecrets{},
		},
		{
			name:      "fetch failure falls back",
			env:       map[string]string{"RPC_URL_SECRET_ARN": arn, "RPC_URL": "http://fallback"},
			svc:       &fakeSecrets{err: errors.New("AccessDenied")},
			want:      "http://fallback",
			wantCalls: 1,
		},
		{
			name:      "fetch failure without fallback",
			env:       map[string]string{"RPC_URL_SECRET_ARN": arn},
			svc:       &fakeSecrets{err: errors.New("AccessDenied")},
			wantErr:   true,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := awsclient.NewSecretsManagerClientWithAPI(tt.svc, env(tt.env))
			got, err := client.GetSecretString(context.Background(), "RPC_URL_SECRET_ARN", "RPC_URL")
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantCalls, tt.svc.calls)
		})
	}
}

func TestLoadLocalConfig(t *testing.T) {
	t.Setenv("AWS_REGION", "")
	cfg, err := awsclient.LoadLocalConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", cfg.Region)

	creds, err := cfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test", creds.AccessKeyID)

	t.Setenv(awsclient.LocalEndpointEnvVar, "http://localhost:4566")
	client, err := awsclient.NewSQSClient(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, client)
}
