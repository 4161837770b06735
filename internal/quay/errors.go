package quay

import (
	"fmt"
	"strings"
)

// maxErrorBody caps how much of an upstream body is copied into errors.
const maxErrorBody = 1024

// TransportError is returned when a request never produced an HTTP response:
// DNS, connection, TLS or timeout failures, and an open circuit breaker.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("quay transport: GET %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is returned for any response status other than 200 and a
// followable redirect.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("quay returned status %s for %s", e.Status, e.URL)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// FormatError is returned when a 200 response body is not valid JSON.
type FormatError struct {
	URL  string
	Body string
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("quay response from %s is not valid JSON: %v", e.URL, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// MalformedResponseError is returned when the JSON body does not carry a list
// of builds. Payload is the raw body for diagnostics.
type MalformedResponseError struct {
	Reason  string
	Payload []byte
}

func (e *MalformedResponseError) Error() string {
	return "quay response is missing a list of builds: " + e.Reason
}

// TooManyRedirectsError is returned when a fetch exceeds its redirect budget.
type TooManyRedirectsError struct {
	Limit int
	Chain []string
}

func (e *TooManyRedirectsError) Error() string {
	return fmt.Sprintf("quay fetch stopped after %d redirects: %s", e.Limit, strings.Join(e.Chain, " -> "))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
