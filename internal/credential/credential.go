// Package credential resolves the Quay API token from a secret store and
// caches it for the lifetime of the process.
package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/aws/smithy-go"
	"golang.org/x/sync/singleflight"

	"github.com/dwsmith1983/quaybridge/pkg/types"
)

var (
	// ErrNotFound is returned when the named credential does not exist.
	ErrNotFound = errors.New("credential not found")
	// ErrDecryption is returned when the store could not decrypt the value.
	ErrDecryption = errors.New("credential could not be decrypted")
	// ErrEmpty is returned when the credential exists but has no value.
	ErrEmpty = errors.New("credential value is empty")
)

// Error is returned for every failed lookup. The secret value never appears
// in it.
type Error struct {
	Name   string
	Source types.TokenSource
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("retrieving credential %q from %s: %v", e.Name, e.Source, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Source looks up a single secret value by name.
type Source interface {
	Lookup(ctx context.Context, name string) (string, error)
}

// Cached resolves a credential once and serves the cached value afterwards.
// Concurrent first calls share a single lookup. Failures are not cached, so
// a later call retries the store.
type Cached struct {
	source Source
	name   string
	logger *slog.Logger
	group  singleflight.Group

	mu       sync.RWMutex
	value    string
	resolved bool
}

// NewCached creates a Cached provider for the credential called name.
func NewCached(source Source, name string, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{source: source, name: name, logger: logger}
}

// Name returns the credential name.
func (c *Cached) Name() string { return c.name }

// Get returns the credential, resolving it on first use.
func (c *Cached) Get(ctx context.Context) (string, error) {
	if v, ok := c.cached(); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(c.name, func() (interface{}, error) {
		if v, ok := c.cached(); ok {
			return v, nil
		}
		c.logger.InfoContext(ctx, "retrieving Quay API token", "name", c.name)
		token, err := c.source.Lookup(ctx, c.name)
		if err != nil {
			return "", err
		}

		c.mu.Lock()
		c.value = token
		c.resolved = true
		c.mu.Unlock()
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Cached) cached() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, c.resolved
}

// classifyAPIError maps store API error codes onto the package sentinels,
// keeping the original error in the chain.
func classifyAPIError(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	code := apiErr.ErrorCode()
	switch {
	case code == "ParameterNotFound", code == "ResourceNotFoundException":
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case code == "InvalidKeyId", code == "DecryptionFailure", strings.HasPrefix(code, "KMS"):
		return fmt.Errorf("%w: %w", ErrDecryption, err)
	default:
		return err
	}
}
