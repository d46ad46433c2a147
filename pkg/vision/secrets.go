package vision

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/pkg/errors"
)

// ErrNoAPIKey is returned when no source can produce a credential for the
// requested provider.
var ErrNoAPIKey = errors.New("no API key available")

// SecretSource resolves the API key for a provider. Implementations are
// explicit handles passed through configuration; there is no process-global
// credential cache.
type SecretSource interface {
	APIKey(ctx context.Context, p Provider) (string, error)
}

// envVarFor maps a provider to its environment variable and secret JSON
// field, both named the same way.
func envVarFor(p Provider) string {
	switch p {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderGoogle:
		return "GOOGLE_API_KEY"
	case ProviderNovita:
		return "NOVITA_API_KEY"
	}
	return ""
}

// EnvSource reads API keys from environment variables.
type EnvSource struct{}

// APIKey implements SecretSource.
func (EnvSource) APIKey(_ context.Context, p Provider) (string, error) {
	name := envVarFor(p)
	if name == "" {
		return "", errors.Wrapf(ErrNoAPIKey, "provider %s", p)
	}
	if key := os.Getenv(name); key != "" {
		return key, nil
	}
	return "", errors.Wrapf(ErrNoAPIKey, "%s not set", name)
}

// secretsManagerAPI is the Secrets Manager surface the source uses.
type secretsManagerAPI interface {
	GetSecretValueWithContext(aws.Context, *secretsmanager.GetSecretValueInput, ...request.Option) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerSource reads API keys from one AWS Secrets Manager secret
// whose value is a JSON object of key names to keys. The secret is fetched
// at most once per handle; the handle's lifetime is the caller's choice,
// typically process scope.
type SecretsManagerSource struct {
	api        secretsManagerAPI
	secretName string

	once sync.Once
	keys map[string]string
	ferr error
}

// NewSecretsManagerSource builds a source against the real service.
func NewSecretsManagerSource(region, secretName string) (*SecretsManagerSource, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, errors.Wrap(err, "creating AWS session")
	}
	return newSecretsManagerSource(secretsmanager.New(sess), secretName), nil
}

func newSecretsManagerSource(api secretsManagerAPI, secretName string) *SecretsManagerSource {
	return &SecretsManagerSource{api: api, secretName: secretName}
}

func (s *SecretsManagerSource) fetch(ctx context.Context) {
	out, err := s.api.GetSecretValueWithContext(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.secretName),
	})
	if err != nil {
		s.ferr = errors.Wrapf(err, "fetching secret %s", s.secretName)
		return
	}
	keys := make(map[string]string)
	if err := json.Unmarshal([]byte(aws.StringValue(out.SecretString)), &keys); err != nil {
		s.ferr = errors.Wrapf(err, "parsing secret %s", s.secretName)
		return
	}
	s.keys = keys
}

// APIKey implements SecretSource.
func (s *SecretsManagerSource) APIKey(ctx context.Context, p Provider) (string, error) {
	s.once.Do(func() { s.fetch(ctx) })
	if s.ferr != nil {
		return "", s.ferr
	}
	if key := s.keys[envVarFor(p)]; key != "" {
		return key, nil
	}
	return "", errors.Wrapf(ErrNoAPIKey, "secret %s has no %s", s.secretName, envVarFor(p))
}

// ChainSource tries each source in order and returns the first key found.
// The conventional order is environment first, then Secrets Manager.
type ChainSource []SecretSource

// APIKey implements SecretSource.
func (c ChainSource) APIKey(ctx context.Context, p Provider) (string, error) {
	var lastErr error
	for _, s := range c {
		key, err := s.APIKey(ctx, p)
		if err == nil && key != "" {
			return key, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.Wrapf(ErrNoAPIKey, "provider %s", p)
	}
	return "", lastErr
}
