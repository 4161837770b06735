package credential

import (
	"context"
	"os"

	"github.com/dwsmith1983/quaybridge/pkg/types"
)

// EnvSource reads the token from an environment variable. It is meant for
// local CLI use.
type EnvSource struct{}

// Lookup returns the value of the environment variable called name.
func (EnvSource) Lookup(_ context.Context, name string) (string, error) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", &Error{Name: name, Source: types.TokenSourceEnv, Err: ErrNotFound}
	}
	if v == "" {
		return "", &Error{Name: name, Source: types.TokenSourceEnv, Err: ErrEmpty}
	}
	return v, nil
}
