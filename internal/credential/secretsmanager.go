package credential

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/dwsmith1983/quaybridge/pkg/types"
)

// SecretsManagerAPI is the subset of the Secrets Manager client used to read secrets.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerSource reads the token from AWS Secrets Manager.
type SecretsManagerSource struct {
	client SecretsManagerAPI
}

// NewSecretsManagerSource creates a SecretsManagerSource.
func NewSecretsManagerSource(client SecretsManagerAPI) *SecretsManagerSource {
	return &SecretsManagerSource{client: client}
}

// Lookup fetches the current version of the secret with id name.
func (s *SecretsManagerSource) Lookup(ctx context.Context, name string) (string, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return "", &Error{Name: name, Source: types.TokenSourceSecretsManager, Err: classifyAPIError(err)}
	}

	value := aws.ToString(out.SecretString)
	if value == "" && len(out.SecretBinary) > 0 {
		value = string(out.SecretBinary)
	}
	if value == "" {
		return "", &Error{Name: name, Source: types.TokenSourceSecretsManager, Err: ErrEmpty}
	}
	return value, nil
}
