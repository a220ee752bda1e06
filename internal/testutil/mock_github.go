// Package testutil provides a mock GitHub REST server for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockRepo is one repository owned by the mock account.
type MockRepo struct {
	Name string
	Fork bool
}

// MockGitHub serves the user repository listing and repository deletion
// endpoints for a single account.
type MockGitHub struct {
	server *httptest.Server
	owner  string

	mu             sync.Mutex
	repos          []MockRepo
	handlers       map[string]http.HandlerFunc
	deleteStatus   map[string]int
	deleteDelay    time.Duration
	hideDeleted    bool
	token          string
	remaining      int
	deleted        []string
	listRequests   int
	deleteRequests int
	conditional    int
	lastHeader     http.Header
}

// NewMockGitHub starts a mock server for owner holding repos in listing order.
func NewMockGitHub(owner string, repos ...MockRepo) *MockGitHub {
	m := &MockGitHub{
		owner:        owner,
		repos:        repos,
		handlers:     make(map[string]http.HandlerFunc),
		deleteStatus: make(map[string]int),
		remaining:    5000,
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

// Forks returns n fork repositories named fork-1..fork-n.
func Forks(n int) []MockRepo {
	repos := make([]MockRepo, n)
	for i := range repos {
		repos[i] = MockRepo{Name: fmt.Sprintf("fork-%d", i+1), Fork: true}
	}
	return repos
}

// URL returns the mock server URL, used as the client's base URL.
func (m *MockGitHub) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockGitHub) Close() {
	m.server.Close()
}

// RepoURL returns the API URL the listing reports for a repository.
func (m *MockGitHub) RepoURL(name string) string {
	return fmt.Sprintf("%s/repos/%s/%s", m.server.URL, m.owner, name)
}

// SetHandler overrides the handler for a specific path.
func (m *MockGitHub) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetDeleteStatus forces the status returned when deleting the named repository.
func (m *MockGitHub) SetDeleteStatus(name string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteStatus[name] = status
}

// SetDeleteDelay delays every delete response.
func (m *MockGitHub) SetDeleteDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteDelay = d
}

// HideDeleted removes deleted repositories from later listings, as GitHub does.
func (m *MockGitHub) HideDeleted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hideDeleted = true
}

// RequireToken rejects requests without "Authorization: Token <token>".
func (m *MockGitHub) RequireToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
}

// SetRateLimitRemaining sets the X-RateLimit-Remaining value reported next.
func (m *MockGitHub) SetRateLimitRemaining(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remaining = n
}

// Deleted returns the names of deleted repositories in deletion order.
func (m *MockGitHub) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.deleted))
	copy(out, m.deleted)
	return out
}

// ListRequests returns the number of listing requests served.
func (m *MockGitHub) ListRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listRequests
}

// DeleteRequests returns the number of delete requests served.
func (m *MockGitHub) DeleteRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteRequests
}

// ConditionalCount returns the number of requests carrying If-None-Match.
func (m *MockGitHub) ConditionalCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conditional
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockGitHub) LastRequestHeader() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastHeader.Clone()
}

func (m *MockGitHub) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.lastHeader = r.Header.Clone()
	if r.Header.Get("If-None-Match") != "" {
		m.conditional++
	}
	handler, overridden := m.handlers[r.URL.Path]
	token := m.token
	w.Header().Set("X-RateLimit-Limit", "5000")
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(m.remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))
	if m.remaining > 0 {
		m.remaining--
	}
	m.mu.Unlock()

	if overridden {
		handler(w, r)
		return
	}

	if token != "" && r.Header.Get("Authorization") != "Token "+token {
		writeMessage(w, http.StatusUnauthorized, "Bad credentials")
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.Method == http.MethodGet && len(parts) == 3 && parts[0] == "users" && parts[2] == "repos":
		m.list(w, r, parts[1])
	case r.Method == http.MethodDelete && len(parts) == 3 && parts[0] == "repos":
		m.delete(w, parts[1], parts[2])
	default:
		writeMessage(w, http.StatusNotFound, "Not Found")
	}
}

type repoPayload struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	URL      string `json:"url"`
	Fork     bool   `json:"fork"`
}

func (m *MockGitHub) list(w http.ResponseWriter, r *http.Request, user string) {
	m.mu.Lock()
	m.listRequests++
	visible := make([]MockRepo, 0, len(m.repos))
	for _, repo := range m.repos {
		if m.hideDeleted && m.isDeletedLocked(repo.Name) {
			continue
		}
		visible = append(visible, repo)
	}
	m.mu.Unlock()

	if !strings.EqualFold(user, m.owner) {
		visible = nil
	}

	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 30)
	start := (page - 1) * perPage
	if start > len(visible) {
		start = len(visible)
	}
	end := start + perPage
	if end > len(visible) {
		end = len(visible)
	}

	payload := make([]repoPayload, 0, end-start)
	for _, repo := range visible[start:end] {
		payload = append(payload, repoPayload{
			Name:     repo.Name,
			FullName: m.owner + "/" + repo.Name,
			URL:      m.RepoURL(repo.Name),
			Fork:     repo.Fork,
		})
	}

	body, _ := json.Marshal(payload)
	hash := fnv.New64a()
	hash.Write(body)
	etag := fmt.Sprintf(`W/"%x"`, hash.Sum64())

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (m *MockGitHub) delete(w http.ResponseWriter, owner, name string) {
	m.mu.Lock()
	m.deleteRequests++
	delay := m.deleteDelay
	status, forced := m.deleteStatus[name]
	known := false
	for _, repo := range m.repos {
		if repo.Name == name {
			known = true
			break
		}
	}
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	switch {
	case forced && status != http.StatusNoContent && status != http.StatusOK:
		writeMessage(w, status, http.StatusText(status))
		return
	case !strings.EqualFold(owner, m.owner) || !known:
		writeMessage(w, http.StatusNotFound, "Not Found")
		return
	}

	m.mu.Lock()
	if m.isDeletedLocked(name) {
		m.mu.Unlock()
		writeMessage(w, http.StatusNotFound, "Not Found")
		return
	}
	m.deleted = append(m.deleted, name)
	m.mu.Unlock()

	if !forced {
		status = http.StatusNoContent
	}
	w.WriteHeader(status)
}

func (m *MockGitHub) isDeletedLocked(name string) bool {
	for _, d := range m.deleted {
		if d == name {
			return true
		}
	}
	return false
}

func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"message":           message,
		"documentation_url": "https://docs.github.com/rest",
	})
}
