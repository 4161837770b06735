package bridge

import (
	"errors"
	"fmt"

	"github.com/dwsmith1983/quaybridge/internal/credential"
	"github.com/dwsmith1983/quaybridge/internal/quay"
	"github.com/dwsmith1983/quaybridge/internal/report"
)

// ConfigError is returned when the job payload lacks a required field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("job configuration: %s is required", e.Field)
	}
	return fmt.Sprintf("job configuration: %s: %s", e.Field, e.Reason)
}

// Error kinds reported by ErrorKind.
const (
	KindConfiguration = "configuration"
	KindCredential    = "credential"
	KindTransport     = "transport"
	KindUpstream      = "upstream_status"
	KindFormat        = "response_format"
	KindMalformed     = "malformed_response"
	KindRedirects     = "too_many_redirects"
	KindReport        = "orchestrator_report"
	KindPanic         = "panic"
	KindUnknown       = "unknown"
)

// ErrorKind returns a stable label for the outermost typed error in err's
// chain. It is used in logs and as a metric attribute.
func ErrorKind(err error) string {
	var (
		cfgErr       *ConfigError
		credErr      *credential.Error
		transportErr *quay.TransportError
		statusErr    *quay.StatusError
		formatErr    *quay.FormatError
		malformedErr *quay.MalformedResponseError
		redirectErr  *quay.TooManyRedirectsError
		reportErr    *report.Error
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &cfgErr):
		return KindConfiguration
	case errors.As(err, &credErr):
		return KindCredential
	case errors.As(err, &redirectErr):
		return KindRedirects
	case errors.As(err, &transportErr):
		return KindTransport
	case errors.As(err, &statusErr):
		return KindUpstream
	case errors.As(err, &formatErr):
		return KindFormat
	case errors.As(err, &malformedErr):
		return KindMalformed
	case errors.As(err, &reportErr):
		return KindReport
	default:
		return KindUnknown
	}
}

// errorChain flattens err into the messages of each wrapped error, outermost
// first.
func errorChain(err error) []string {
	var chain []string
	for err != nil {
		chain = append(chain, err.Error())
		switch u := err.(type) {
		case interface{ Unwrap() error }:
			err = u.Unwrap()
		case interface{ Unwrap() []error }:
			errs := u.Unwrap()
			if len(errs) == 0 {
				return chain
			}
			err = errs[len(errs)-1]
		default:
			return chain
		}
	}
	return chain
}
