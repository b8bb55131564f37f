// pkg/api/server.go

// Package api exposes the decoy, redirect and capture operations over a
// small JSON HTTP API for the dashboard.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/capture"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/decoy"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_err"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_io"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/locator"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/output"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/redirect"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/state"
	cerr "github.com/cockroachdb/errors"
	"github.com/gorilla/mux"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Version is reported by GET /api.
const Version = "1.0.0"

// Decoys is the lifecycle supervisor.
type Decoys interface {
	GetStatus(rc *honey_io.RuntimeContext, kind locator.Kind) (*decoy.StatusReport, error)
	Start(rc *honey_io.RuntimeContext, kind locator.Kind) error
	Stop(rc *honey_io.RuntimeContext, kind locator.Kind) error
	Configure(rc *honey_io.RuntimeContext, kind locator.Kind) (bool, error)
}

// Diverter is the SSH redirect controller.
type Diverter interface {
	Divert(rc *honey_io.RuntimeContext) (*redirect.DivertResult, error)
	Restore(rc *honey_io.RuntimeContext) (*redirect.RestoreResult, error)
	Status(rc *honey_io.RuntimeContext) (*state.RedirectionState, bool, error)
}

// Captures reads normalized events, captured binaries and Cowrie's log.
type Captures interface {
	QueryEvents(rc *honey_io.RuntimeContext, q capture.Query) ([]capture.CanonicalEvent, error)
	ListArtifacts(rc *honey_io.RuntimeContext, page int) (*capture.ArtifactPage, error)
	CowrieLog(rc *honey_io.RuntimeContext, q capture.LogQuery) ([]capture.LogEntry, error)
}

// Server routes API requests. Requests that touch decoys or the redirect
// are handled one at a time.
type Server struct {
	Decoys   Decoys
	Redirect Diverter
	Captures Captures
	// SetPath validates and records a decoy installation root.
	SetPath func(rc *honey_io.RuntimeContext, kind locator.Kind, path string) error

	mu sync.Mutex
}

type handlerFunc func(rc *honey_io.RuntimeContext, r *http.Request) (string, interface{}, error)

// Handler returns the routes.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.Handle("", methods{http.MethodGet: http.HandlerFunc(s.info)})
	api.Handle("/{decoy:cowrie|dionaea}/status", methods{http.MethodGet: s.wrap("decoy.status", s.decoyStatus, true)})
	api.Handle("/{decoy:cowrie|dionaea}/start", methods{http.MethodPost: s.wrap("decoy.start", s.decoyStart, true)})
	api.Handle("/{decoy:cowrie|dionaea}/stop", methods{http.MethodPost: s.wrap("decoy.stop", s.decoyStop, true)})
	api.Handle("/{decoy:cowrie|dionaea}/set-path", methods{http.MethodPost: s.wrap("decoy.set_path", s.decoySetPath, true)})
	api.Handle("/cowrie/configure", methods{http.MethodPost: s.wrap("decoy.configure", s.cowrieConfigure, true)})
	api.Handle("/cowrie/logs", methods{http.MethodGet: s.wrap("capture.cowrie_logs", s.cowrieLogs, false)})

	api.Handle("/redirect", methods{
		http.MethodGet:    s.wrap("redirect.status", s.redirectStatus, true),
		http.MethodPost:   s.wrap("redirect.create", s.redirectCreate, true),
		http.MethodDelete: s.wrap("redirect.delete", s.redirectDelete, true),
	})
	api.Handle("/cowrie/setup-redirect", methods{http.MethodPost: s.wrap("redirect.create", s.redirectCreate, true)})
	api.Handle("/cowrie/cleanup", methods{http.MethodPost: s.wrap("redirect.delete", s.redirectDelete, true)})

	api.Handle("/dionaea/events", methods{http.MethodGet: s.wrap("capture.events", s.events, false)})
	api.Handle("/dionaea/binaries", methods{http.MethodGet: s.wrap("capture.binaries", s.binaries, false)})

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, output.Result{Message: "not found"})
	})
	return r
}

// methods dispatches one path on the request method; any other method on a
// known path is a 405.
type methods map[string]http.Handler

func (m methods) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h, ok := m[r.Method]; ok {
		h.ServeHTTP(w, r)
		return
	}
	allow := make([]string, 0, len(m))
	for method := range m {
		allow = append(allow, method)
	}
	sort.Strings(allow)
	w.Header().Set("Allow", strings.Join(allow, ", "))
	writeJSON(w, http.StatusMethodNotAllowed, output.Result{Message: "method not allowed"})
}

func (s *Server) info(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, output.Result{
		Success: true,
		Message: "HoneyDash API",
		Data: map[string]interface{}{
			"name":    "HoneyDash API",
			"version": Version,
			"decoys":  []string{string(locator.Cowrie), string(locator.Dionaea)},
		},
	})
}

// wrap gives each request its own runtime context and renders the result
// envelope. serial requests hold the server lock.
func (s *Server) wrap(name string, fn handlerFunc, serial bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		rc := honey_io.NewContext(r.Context(), "api."+name)
		defer rc.End(&err)
		rc.Attributes["http.method"] = r.Method
		rc.Attributes["http.route"] = name

		if serial {
			s.mu.Lock()
			defer s.mu.Unlock()
		}

		msg, data, err := fn(rc, r)
		if err != nil {
			status := StatusFor(err)
			otelzap.Ctx(rc.Ctx).Info("API request failed",
				zap.String("route", name),
				zap.Int("status", status),
				zap.Error(err))
			writeJSON(w, status, output.Result{Message: failureMessage(err), Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, output.Result{Success: true, Message: msg, Data: data})
	})
}

// StatusFor maps an error to an HTTP status by its category.
func StatusFor(err error) int {
	var nmr *capture.NoMoreResultsError
	if errors.As(err, &nmr) {
		return http.StatusNotFound
	}
	cat, ok := honey_err.CategoryOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch cat {
	case honey_err.CategoryValidation:
		return http.StatusBadRequest
	case honey_err.CategoryPermission:
		return http.StatusForbidden
	case honey_err.CategoryNotInstalled, honey_err.CategoryNotConfigured,
		honey_err.CategoryNotRunning, honey_err.CategoryAlreadyActive:
		return http.StatusConflict
	case honey_err.CategoryPortExhaustion:
		return http.StatusServiceUnavailable
	case honey_err.CategoryExternalCommand:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func failureMessage(err error) string {
	var nmr *capture.NoMoreResultsError
	if errors.As(err, &nmr) {
		return "No more results"
	}
	var ce *honey_err.ClassifiedError
	if errors.As(err, &ce) && ce.Message != "" {
		return ce.Message
	}
	return "Request failed"
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func kindOf(r *http.Request) locator.Kind {
	return locator.Kind(mux.Vars(r)["decoy"])
}

func (s *Server) decoyStatus(rc *honey_io.RuntimeContext, r *http.Request) (string, interface{}, error) {
	rep, err := s.Decoys.GetStatus(rc, kindOf(r))
	if err != nil {
		return "", nil, err
	}
	return rep.Message, rep, nil
}

func (s *Server) decoyStart(rc *honey_io.RuntimeContext, r *http.Request) (string, interface{}, error) {
	kind := kindOf(r)
	if err := s.Decoys.Start(rc, kind); err != nil {
		return "", nil, err
	}
	return decoy.DisplayName(kind) + " started", nil, nil
}

func (s *Server) decoyStop(rc *honey_io.RuntimeContext, r *http.Request) (string, interface{}, error) {
	kind := kindOf(r)
	if err := s.Decoys.Stop(rc, kind); err != nil {
		return "", nil, err
	}
	return decoy.DisplayName(kind) + " stopped", nil, nil
}

func (s *Server) decoySetPath(rc *honey_io.RuntimeContext, r *http.Request) (string, interface{}, error) {
	var body struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Path == "" {
		return "", nil, honey_err.NewValidationError("'path' field is required in JSON")
	}
	kind := kindOf(r)
	if s.SetPath == nil {
		return "", nil, cerr.AssertionFailedf("set-path is not wired")
	}
	if err := s.SetPath(rc, kind, body.Path); err != nil {
		return "", nil, err
	}
	rep, err := s.Decoys.GetStatus(rc, kind)
	if err != nil {
		return "", nil, err
	}
	return decoy.DisplayName(kind) + " path set to " + body.Path, rep, nil
}

func (s *Server) cowrieConfigure(rc *honey_io.RuntimeContext, _ *http.Request) (string, interface{}, error) {
	changed, err := s.Decoys.Configure(rc, locator.Cowrie)
	if err != nil {
		return "", nil, err
	}
	if !changed {
		return "Cowrie was already configured", nil, nil
	}
	return "Cowrie configured", nil, nil
}

func (s *Server) redirectStatus(rc *honey_io.RuntimeContext, _ *http.Request) (string, interface{}, error) {
	st, ok, err := s.Redirect.Status(rc)
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return "No redirect is active", nil, nil
	}
	return "Redirect active", st, nil
}

func (s *Server) redirectCreate(rc *honey_io.RuntimeContext, _ *http.Request) (string, interface{}, error) {
	res, err := s.Redirect.Divert(rc)
	if err != nil {
		return "", nil, err
	}
	return "SSH moved to port " + strconv.Itoa(res.SSHPort), res, nil
}

func (s *Server) redirectDelete(rc *honey_io.RuntimeContext, _ *http.Request) (string, interface{}, error) {
	res, err := s.Redirect.Restore(rc)
	if err != nil {
		return "", nil, err
	}
	if !res.Active {
		return "No redirect is active", res, nil
	}
	return "Configuration restored", res, nil
}

func (s *Server) events(rc *honey_io.RuntimeContext, r *http.Request) (string, interface{}, error) {
	q := r.URL.Query()
	query := capture.Query{Kind: q.Get("kind"), Limit: 50, Since: q.Get("since")}
	if query.Kind == "" {
		query.Kind = "httpd"
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return "", nil, honey_err.NewValidationError("limit must be an integer")
		}
		query.Limit = n
	}
	events, err := s.Captures.QueryEvents(rc, query)
	if err != nil {
		return "", nil, err
	}
	return strconv.Itoa(len(events)) + " events", events, nil
}

func (s *Server) cowrieLogs(rc *honey_io.RuntimeContext, r *http.Request) (string, interface{}, error) {
	q := r.URL.Query()
	query := capture.LogQuery{Limit: 50, EventID: q.Get("event_id"), Since: q.Get("timestamp")}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return "", nil, honey_err.NewValidationError("limit must be an integer")
		}
		query.Limit = n
	}
	entries, err := s.Captures.CowrieLog(rc, query)
	if err != nil {
		return "", nil, err
	}
	return strconv.Itoa(len(entries)) + " log entries", entries, nil
}

func (s *Server) binaries(rc *honey_io.RuntimeContext, r *http.Request) (string, interface{}, error) {
	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return "", nil, honey_err.NewValidationError("page must be an integer")
		}
		page = n
	}
	res, err := s.Captures.ListArtifacts(rc, page)
	if err != nil {
		return "", nil, err
	}
	return "Page " + strconv.Itoa(res.Page) + " of " + strconv.Itoa(res.TotalPages), res, nil
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, rc *honey_io.RuntimeContext, addr string) error {
	logger := otelzap.Ctx(rc.Ctx)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("API listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return cerr.Wrapf(err, "serve %s", addr)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("Shutting down API")
	return srv.Shutdown(shutdownCtx)
}
