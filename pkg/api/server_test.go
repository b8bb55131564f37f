package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/capture"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/decoy"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_err"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_io"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/locator"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/redirect"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDecoys struct {
	startErr   error
	configured bool
	started    []locator.Kind
	stopped    []locator.Kind
}

func (f *fakeDecoys) GetStatus(_ *honey_io.RuntimeContext, kind locator.Kind) (*decoy.StatusReport, error) {
	st := decoy.StateStopped
	return &decoy.StatusReport{State: st, Message: decoy.Message(kind, st)}, nil
}

func (f *fakeDecoys) Start(_ *honey_io.RuntimeContext, kind locator.Kind) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, kind)
	return nil
}

func (f *fakeDecoys) Stop(_ *honey_io.RuntimeContext, kind locator.Kind) error {
	f.stopped = append(f.stopped, kind)
	return nil
}

func (f *fakeDecoys) Configure(_ *honey_io.RuntimeContext, _ locator.Kind) (bool, error) {
	changed := !f.configured
	f.configured = true
	return changed, nil
}

type fakeRedirect struct {
	active bool
}

func (f *fakeRedirect) Divert(_ *honey_io.RuntimeContext) (*redirect.DivertResult, error) {
	if f.active {
		return nil, honey_err.NewAlreadyActiveError("SSH redirection is already active")
	}
	f.active = true
	return &redirect.DivertResult{SSHPort: 50022, DecoyPort: 2222}, nil
}

func (f *fakeRedirect) Restore(_ *honey_io.RuntimeContext) (*redirect.RestoreResult, error) {
	if !f.active {
		return &redirect.RestoreResult{}, nil
	}
	f.active = false
	return &redirect.RestoreResult{Active: true, OriginalPort: 22}, nil
}

func (f *fakeRedirect) Status(_ *honey_io.RuntimeContext) (*state.RedirectionState, bool, error) {
	if !f.active {
		return nil, false, nil
	}
	return &state.RedirectionState{SSHPort: 50022, OriginalSSHPort: 22, DecoyPort: 2222, RuleInstalled: true}, true, nil
}

type fakeCaptures struct {
	lastQuery    capture.Query
	lastLogQuery capture.LogQuery
}

func (f *fakeCaptures) QueryEvents(_ *honey_io.RuntimeContext, q capture.Query) ([]capture.CanonicalEvent, error) {
	f.lastQuery = q
	return []capture.CanonicalEvent{{Timestamp: "2024-01-01-10-00-00", Protocol: "httpd"}}, nil
}

func (f *fakeCaptures) ListArtifacts(_ *honey_io.RuntimeContext, page int) (*capture.ArtifactPage, error) {
	if page < 1 {
		return nil, honey_err.NewValidationError("page must be at least 1")
	}
	if page > 2 {
		return nil, honey_err.NewExpectedError(&capture.NoMoreResultsError{Page: page, Total: 12})
	}
	return &capture.ArtifactPage{Page: page, TotalCount: 12, TotalPages: 2}, nil
}

func (f *fakeCaptures) CowrieLog(_ *honey_io.RuntimeContext, q capture.LogQuery) ([]capture.LogEntry, error) {
	f.lastLogQuery = q
	return []capture.LogEntry{{"eventid": "cowrie.login.failed", "username": "root"}}, nil
}

type body struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func newServer() (*Server, *fakeDecoys, *fakeRedirect, *fakeCaptures) {
	d, r, c := &fakeDecoys{}, &fakeRedirect{}, &fakeCaptures{}
	s := &Server{Decoys: d, Redirect: r, Captures: c}
	return s, d, r, c
}

func do(t *testing.T, h http.Handler, method, target, reqBody string) (int, body) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(reqBody))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var b body
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b), rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	return rec.Code, b
}

func TestInfo(t *testing.T) {
	s, _, _, _ := newServer()
	code, b := do(t, s.Handler(), http.MethodGet, "/api", "")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, b.Success)
	assert.Contains(t, string(b.Data), Version)
}

func TestDecoyLifecycleRoutes(t *testing.T) {
	s, d, _, _ := newServer()
	h := s.Handler()

	code, b := do(t, h, http.MethodGet, "/api/cowrie/status", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(b.Data), `"state"`)

	code, b = do(t, h, http.MethodPost, "/api/dionaea/start", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Dionaea started", b.Message)

	code, _ = do(t, h, http.MethodPost, "/api/cowrie/stop", "")
	assert.Equal(t, http.StatusOK, code)

	assert.Equal(t, []locator.Kind{locator.Dionaea}, d.started)
	assert.Equal(t, []locator.Kind{locator.Cowrie}, d.stopped)
}

func TestUnknownDecoyIsNotFound(t *testing.T) {
	s, _, _, _ := newServer()
	code, b := do(t, s.Handler(), http.MethodGet, "/api/glastopf/status", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, b.Success)
}

func TestWrongMethod(t *testing.T) {
	s, _, _, _ := newServer()
	code, b := do(t, s.Handler(), http.MethodGet, "/api/cowrie/start", "")
	assert.Equal(t, http.StatusMethodNotAllowed, code)
	assert.False(t, b.Success)

	req := httptest.NewRequest(http.MethodPut, "/api/redirect", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "DELETE, GET, POST", rec.Header().Get("Allow"))

	code, _ = do(t, s.Handler(), http.MethodPost, "/api/dionaea/status", "")
	assert.Equal(t, http.StatusMethodNotAllowed, code)
}

func TestStartFailureStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not installed", honey_err.NewNotInstalledError("Cowrie"), http.StatusConflict},
		{"not configured", honey_err.NewNotConfiguredError("Cowrie", "listen endpoint missing"), http.StatusConflict},
		{"permission", honey_err.NewPermissionError("root privileges are required"), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, d, _, _ := newServer()
			d.startErr = tt.err
			code, b := do(t, s.Handler(), http.MethodPost, "/api/cowrie/start", "")
			assert.Equal(t, tt.want, code)
			assert.False(t, b.Success)
			assert.NotEmpty(t, b.Error)
		})
	}
}

func TestConfigureIsIdempotent(t *testing.T) {
	s, _, _, _ := newServer()
	h := s.Handler()
	_, b := do(t, h, http.MethodPost, "/api/cowrie/configure", "")
	assert.Equal(t, "Cowrie configured", b.Message)
	_, b = do(t, h, http.MethodPost, "/api/cowrie/configure", "")
	assert.Equal(t, "Cowrie was already configured", b.Message)
}

func TestSetPath(t *testing.T) {
	s, _, _, _ := newServer()
	var gotKind locator.Kind
	var gotPath string
	s.SetPath = func(_ *honey_io.RuntimeContext, kind locator.Kind, path string) error {
		gotKind, gotPath = kind, path
		return nil
	}
	h := s.Handler()

	code, _ := do(t, h, http.MethodPost, "/api/cowrie/set-path", `{"path":"/opt/cowrie"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, locator.Cowrie, gotKind)
	assert.Equal(t, "/opt/cowrie", gotPath)

	code, b := do(t, h, http.MethodPost, "/api/cowrie/set-path", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, b.Error, "path")
}

func TestRedirectRoutes(t *testing.T) {
	s, _, _, _ := newServer()
	h := s.Handler()

	_, b := do(t, h, http.MethodGet, "/api/redirect", "")
	assert.Equal(t, "No redirect is active", b.Message)

	code, b := do(t, h, http.MethodPost, "/api/cowrie/setup-redirect", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(b.Data), `"ssh_port":50022`)

	code, _ = do(t, h, http.MethodPost, "/api/redirect", "")
	assert.Equal(t, http.StatusConflict, code)

	code, b = do(t, h, http.MethodDelete, "/api/redirect", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Configuration restored", b.Message)

	_, b = do(t, h, http.MethodPost, "/api/cowrie/cleanup", "")
	assert.Equal(t, "No redirect is active", b.Message)
}

func TestEventsQuery(t *testing.T) {
	s, _, _, c := newServer()
	h := s.Handler()

	code, _ := do(t, h, http.MethodGet, "/api/dionaea/events?kind=ftpd&limit=5&since=2024-01-01-00-00-00", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, capture.Query{Kind: "ftpd", Limit: 5, Since: "2024-01-01-00-00-00"}, c.lastQuery)

	_, _ = do(t, h, http.MethodGet, "/api/dionaea/events", "")
	assert.Equal(t, "httpd", c.lastQuery.Kind)
	assert.Equal(t, 50, c.lastQuery.Limit)

	code, _ = do(t, h, http.MethodGet, "/api/dionaea/events?limit=ten", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCowrieLogsQuery(t *testing.T) {
	s, _, _, c := newServer()
	h := s.Handler()

	code, b := do(t, h, http.MethodGet, "/api/cowrie/logs?limit=10&event_id=cowrie.login.failed&timestamp=2024-05-01T00:00:00Z", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, capture.LogQuery{Limit: 10, EventID: "cowrie.login.failed", Since: "2024-05-01T00:00:00Z"}, c.lastLogQuery)
	assert.Equal(t, "1 log entries", b.Message)
	assert.Contains(t, string(b.Data), "cowrie.login.failed")

	_, _ = do(t, h, http.MethodGet, "/api/cowrie/logs", "")
	assert.Equal(t, capture.LogQuery{Limit: 50}, c.lastLogQuery)

	code, _ = do(t, h, http.MethodGet, "/api/cowrie/logs?limit=all", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestBinariesPaging(t *testing.T) {
	s, _, _, _ := newServer()
	h := s.Handler()

	code, b := do(t, h, http.MethodGet, "/api/dionaea/binaries?page=2", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Page 2 of 2", b.Message)

	code, b = do(t, h, http.MethodGet, "/api/dionaea/binaries?page=3", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "No more results", b.Message)

	code, _ = do(t, h, http.MethodGet, "/api/dionaea/binaries?page=0", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestStatusForUnclassified(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusFor(assert.AnError))
	assert.Equal(t, http.StatusServiceUnavailable, StatusFor(honey_err.NewPortExhaustionError(10)))
}
