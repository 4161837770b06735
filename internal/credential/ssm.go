package credential

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/dwsmith1983/quaybridge/pkg/types"
)

// SSMAPI is the subset of the SSM client used to read parameters.
type SSMAPI interface {
	GetParameters(ctx context.Context, params *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error)
}

// SSMSource reads SecureString parameters from SSM Parameter Store.
type SSMSource struct {
	client SSMAPI
}

// NewSSMSource creates an SSMSource.
func NewSSMSource(client SSMAPI) *SSMSource {
	return &SSMSource{client: client}
}

// Lookup fetches and decrypts the parameter called name.
func (s *SSMSource) Lookup(ctx context.Context, name string) (string, error) {
	out, err := s.client.GetParameters(ctx, &ssm.GetParametersInput{
		Names:          []string{name},
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", &Error{Name: name, Source: types.TokenSourceSSM, Err: classifyAPIError(err)}
	}
	if len(out.InvalidParameters) > 0 {
		return "", &Error{
			Name:   name,
			Source: types.TokenSourceSSM,
			Err:    fmt.Errorf("%w: invalid parameters %s", ErrNotFound, strings.Join(out.InvalidParameters, ", ")),
		}
	}
	if len(out.Parameters) == 0 {
		return "", &Error{Name: name, Source: types.TokenSourceSSM, Err: ErrNotFound}
	}

	value := aws.ToString(out.Parameters[0].Value)
	if value == "" {
		return "", &Error{Name: name, Source: types.TokenSourceSSM, Err: ErrEmpty}
	}
	return value, nil
}
