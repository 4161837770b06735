// Package testutil provides shared test utilities for quaybridge.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/dwsmith1983/quaybridge/pkg/types"
)

// Build returns a build record triggered by commit.
func Build(id, commit string, phase types.Phase) types.BuildRecord {
	return types.BuildRecord{
		ID:              id,
		Phase:           phase,
		TriggerMetadata: types.TriggerMetadata{Commit: commit},
	}
}

// QuayServer is an in-memory Quay build API served over TLS.
type QuayServer struct {
	*httptest.Server

	mu       sync.Mutex
	token    string
	builds   map[string][]types.BuildRecord // key: repository
	redirect bool
	failures int
	failCode int
	requests []*http.Request
}

// NewQuayServer starts a fake Quay that accepts token as its bearer
// credential. The server is closed when the test ends.
func NewQuayServer(t *testing.T, token string) *QuayServer {
	t.Helper()
	q := &QuayServer{token: token, builds: make(map[string][]types.BuildRecord)}
	q.Server = httptest.NewTLSServer(http.HandlerFunc(q.serve))
	t.Cleanup(q.Close)
	return q
}

// SetBuilds replaces the build list of repository.
func (q *QuayServer) SetBuilds(repository string, builds ...types.BuildRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.builds[repository] = builds
}

// RedirectFirst makes every build list request answer with a 302 to an
// equivalent path before serving the list.
func (q *QuayServer) RedirectFirst(on bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.redirect = on
}

// FailNext makes the next n requests answer with status before any
// authentication or routing.
func (q *QuayServer) FailNext(n, status int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failures, q.failCode = n, status
}

// Requests returns copies of the requests received so far.
func (q *QuayServer) Requests() []*http.Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*http.Request, len(q.requests))
	copy(out, q.requests)
	return out
}

const (
	buildsPrefix   = "/api/v1/repository/"
	redirectPrefix = "/redirected"
)

func (q *QuayServer) serve(w http.ResponseWriter, r *http.Request) {
	q.mu.Lock()
	q.requests = append(q.requests, r.Clone(r.Context()))
	token, redirect := q.token, q.redirect
	failCode := 0
	if q.failures > 0 {
		q.failures--
		failCode = q.failCode
	}
	q.mu.Unlock()

	if failCode != 0 {
		http.Error(w, `{"error": "unavailable"}`, failCode)
		return
	}

	if r.Header.Get("Authorization") != "Bearer "+token {
		http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
		return
	}

	path := r.URL.Path
	if redirect && !strings.HasPrefix(path, redirectPrefix) {
		http.Redirect(w, r, redirectPrefix+path, http.StatusFound)
		return
	}
	path = strings.TrimPrefix(path, redirectPrefix)
	if !strings.HasPrefix(path, buildsPrefix) || !strings.HasSuffix(path, "/build/") {
		http.NotFound(w, r)
		return
	}
	repo := strings.TrimSuffix(strings.TrimPrefix(path, buildsPrefix), "/build/")

	q.mu.Lock()
	builds := q.builds[repo]
	q.mu.Unlock()

	type wireBuild struct {
		ID              string            `json:"id"`
		Phase           types.Phase       `json:"phase"`
		TriggerMetadata map[string]string `json:"trigger_metadata"`
	}
	list := make([]wireBuild, 0, len(builds))
	for _, b := range builds {
		list = append(list, wireBuild{
			ID:              b.ID,
			Phase:           b.Phase,
			TriggerMetadata: map[string]string{"commit": b.TriggerMetadata.Commit},
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"builds": list})
}
