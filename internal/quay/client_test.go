package quay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/quaybridge/pkg/types"
)

const buildingBody = `{"builds":[{"id":"b1","phase":"building","trigger_metadata":{"commit":"abc123"}}]}`

func newTestClient(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithHTTPClient(srv.Client())}, opts...)
	c, err := NewClient(srv.URL, opts...)
	require.NoError(t, err)
	return c
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient("not a url/")
	assert.Error(t, err)

	c, err := NewClient("")
	require.NoError(t, err)
	assert.Equal(t, "https://quay.io/api/v1/repository/acme/web/build/", c.BuildsURL("acme/web").String())
}

func TestBuildsURL(t *testing.T) {
	c, err := NewClient("https://quay.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "https://quay.example.com/api/v1/repository/acme/web/build/", c.BuildsURL("acme/web").String())
	assert.Equal(t, "https://quay.example.com/api/v1/repository/acme/web/build/", c.BuildsURL("/acme/web/").String())
}

func TestListBuilds_Success(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, buildingBody)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	builds, err := c.ListBuilds(context.Background(), "acme/web", "tok-1")
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.Equal(t, "b1", builds[0].ID)
	assert.Equal(t, types.PhaseBuilding, builds[0].Phase)
	assert.Equal(t, "abc123", builds[0].TriggerMetadata.Commit)
	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.Equal(t, "/api/v1/repository/acme/web/build/", gotPath)
}

func TestFetchJSON_RedirectPreservesHeaders(t *testing.T) {
	for _, status := range []int{http.StatusMovedPermanently, http.StatusFound} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var finalAuth, finalCustom string
			target := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				finalAuth = r.Header.Get("Authorization")
				finalCustom = r.Header.Get("X-Trace")
				assert.Equal(t, "/moved/builds/", r.URL.Path)
				_, _ = fmt.Fprint(w, buildingBody)
			}))
			defer target.Close()

			var firstAuth string
			origin := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				firstAuth = r.Header.Get("Authorization")
				http.Redirect(w, r, target.URL+"/moved/builds/", status)
			}))
			defer origin.Close()

			c := newTestClient(t, origin)
			header := http.Header{}
			header.Set("Authorization", "Bearer secret")
			header.Set("X-Trace", "t-1")

			body, err := c.FetchJSON(context.Background(), Request{URL: mustURL(t, origin.URL+"/start"), Header: header})
			require.NoError(t, err)
			assert.JSONEq(t, buildingBody, string(body))
			assert.Equal(t, "Bearer secret", firstAuth)
			assert.Equal(t, firstAuth, finalAuth)
			assert.Equal(t, "t-1", finalCustom)
		})
	}
}

func TestFetchJSON_RelativeRedirect(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			w.Header().Set("Location", "/new")
			w.WriteHeader(http.StatusFound)
			return
		}
		_, _ = fmt.Fprint(w, `{"builds":[]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	body, err := c.FetchJSON(context.Background(), Request{URL: mustURL(t, srv.URL+"/old"), Header: http.Header{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"builds":[]}`, string(body))
}

func TestFetchJSON_TooManyRedirects(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Redirect(w, r, "/loop", http.StatusFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithMaxRedirects(3))
	_, err := c.FetchJSON(context.Background(), Request{URL: mustURL(t, srv.URL+"/loop"), Header: http.Header{}})
	require.Error(t, err)

	var tooMany *TooManyRedirectsError
	require.True(t, errors.As(err, &tooMany))
	assert.Equal(t, 3, tooMany.Limit)
	assert.Len(t, tooMany.Chain, 5)
	assert.Equal(t, int32(4), hits.Load())
}

func TestFetchJSON_RedirectWithoutLocation(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.FetchJSON(context.Background(), Request{URL: mustURL(t, srv.URL), Header: http.Header{}})

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusFound, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "without Location")
}

func TestFetchJSON_RefusesDowngrade(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://insecure.example.com/builds/", http.StatusMovedPermanently)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.FetchJSON(context.Background(), Request{URL: mustURL(t, srv.URL), Header: http.Header{}})

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Contains(t, statusErr.Body, "non-TLS")
}

func TestFetchJSON_StatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"unauthorized", http.StatusUnauthorized},
		{"not found", http.StatusNotFound},
		{"not modified", http.StatusNotModified},
		{"temporary redirect", http.StatusTemporaryRedirect},
		{"server error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = fmt.Fprint(w, `{"error":"nope"}`)
			}))
			defer srv.Close()

			c := newTestClient(t, srv)
			_, err := c.FetchJSON(context.Background(), Request{URL: mustURL(t, srv.URL), Header: http.Header{}})

			var statusErr *StatusError
			require.True(t, errors.As(err, &statusErr), "got %T: %v", err, err)
			assert.Equal(t, tt.status, statusErr.StatusCode)
			assert.Contains(t, statusErr.Status, http.StatusText(tt.status))
		})
	}
}

func TestFetchJSON_InvalidJSON(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `<html>maintenance</html>`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.FetchJSON(context.Background(), Request{URL: mustURL(t, srv.URL), Header: http.Header{}})

	var formatErr *FormatError
	require.True(t, errors.As(err, &formatErr))
	assert.Contains(t, formatErr.Body, "maintenance")
}

func TestFetchJSON_TransportError(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := newTestClient(t, srv)
	u := mustURL(t, srv.URL)
	srv.Close()

	_, err := c.FetchJSON(context.Background(), Request{URL: u, Header: http.Header{}})

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.NotNil(t, transportErr.Unwrap())
}

func TestFetchJSON_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newTestClient(t, srv, WithTimeout(50*time.Millisecond))
	_, err := c.FetchJSON(context.Background(), Request{URL: mustURL(t, srv.URL), Header: http.Header{}})

	var transportErr *TransportError
	assert.True(t, errors.As(err, &transportErr))
}

func TestFetchJSON_NilURL(t *testing.T) {
	c, err := NewClient("")
	require.NoError(t, err)
	_, err = c.FetchJSON(context.Background(), Request{})
	assert.Error(t, err)
}

func TestFetchJSON_BreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithBreaker(BreakerConfig{FailThreshold: 2, Cooldown: time.Minute}))
	req := Request{URL: mustURL(t, srv.URL), Header: http.Header{}}

	for i := 0; i < 2; i++ {
		_, err := c.FetchJSON(context.Background(), req)
		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
	}

	_, err := c.FetchJSON(context.Background(), req)
	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), hits.Load(), "open breaker must not reach upstream")
}

func TestFetchJSON_NoBreakerReachesRecoveredUpstream(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 5 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"builds": []}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	req := Request{URL: mustURL(t, srv.URL), Header: http.Header{}}

	for i := 0; i < 5; i++ {
		_, err := c.FetchJSON(context.Background(), req)
		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
	}

	body, err := c.FetchJSON(context.Background(), req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"builds": []}`, string(body))
	assert.Equal(t, int32(6), hits.Load())
}

func TestFetchJSON_BreakerIgnoresClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithBreaker(BreakerConfig{FailThreshold: 1, Cooldown: time.Minute}))
	req := Request{URL: mustURL(t, srv.URL), Header: http.Header{}}

	for i := 0; i < 3; i++ {
		_, err := c.FetchJSON(context.Background(), req)
		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
	}
	assert.Equal(t, int32(3), hits.Load())
}

func TestUpstreamHealthy(t *testing.T) {
	assert.True(t, upstreamHealthy(nil))
	assert.True(t, upstreamHealthy(context.Canceled))
	assert.True(t, upstreamHealthy(&StatusError{StatusCode: 404}))
	assert.True(t, upstreamHealthy(&MalformedResponseError{}))
	assert.False(t, upstreamHealthy(&StatusError{StatusCode: 503}))
	assert.False(t, upstreamHealthy(&TransportError{Err: errors.New("reset")}))
}
