package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/tourguide"
	"github.com/aretw0/tourguide/internal/logging"
	"github.com/aretw0/tourguide/pkg/adapters/tutorialapi"
	"github.com/aretw0/tourguide/pkg/bus"
	"github.com/aretw0/tourguide/pkg/domain"
	"github.com/aretw0/tourguide/pkg/panel"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// TabLister reports the tabs currently served.
type TabLister interface {
	Tabs() []string
}

// TabOpener opens a new browser tab on url and returns its ID.
type TabOpener interface {
	OpenTab(ctx context.Context, url string) (string, error)
}

// Server exposes the panel over HTTP.
type Server struct {
	Panel   *panel.Panel
	Tabs    TabLister
	Opener  TabOpener
	Metrics http.Handler
	Origins []string
	Logger  *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithOpener enables POST /tabs.
func WithOpener(o TabOpener) Option {
	return func(s *Server) {
		s.Opener = o
	}
}

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.Metrics = h
	}
}

// WithAllowedOrigins restricts CORS to the given origins. "*" allows any.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		s.Origins = origins
	}
}

// WithLogger configures a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.Logger = logger
	}
}

// NewHandler creates the HTTP handler of the panel API.
func NewHandler(p *panel.Panel, tabs TabLister, opts ...Option) http.Handler {
	s := &Server{
		Panel:   p,
		Tabs:    tabs,
		Origins: []string{"*"},
		Logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Get("/healthz", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}

	r.Route("/tabs", func(r chi.Router) {
		r.Get("/", s.ListTabs)
		r.Post("/", s.OpenTab)
		r.Route("/{tab}/tutorial", func(r chi.Router) {
			r.Post("/", s.StartTutorial)
			r.Get("/", s.GetTutorial)
			r.Delete("/", s.CancelTutorial)
			r.Post("/advance", s.AdvanceTutorial)
		})
	})
	return r
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := s.allowOrigin(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowOrigin(origin string) string {
	for _, o := range s.Origins {
		if o == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

// StartRequest is the body of POST /tabs/{tab}/tutorial. Exactly one form is used:
// explicit steps, a catalog ID, or a natural-language query.
type StartRequest struct {
	Steps    []domain.Step `json:"steps,omitempty"`
	Catalog  string        `json:"catalog,omitempty"`
	Action   string        `json:"action,omitempty"`
	Software string        `json:"software,omitempty"`
}

// AdvanceRequest is the body of POST /tabs/{tab}/tutorial/advance.
type AdvanceRequest struct {
	Index int `json:"index"`
}

// OpenTabRequest is the body of POST /tabs.
type OpenTabRequest struct {
	URL string `json:"url"`
}

// StartTutorial handles POST /tabs/{tab}/tutorial.
func (s *Server) StartTutorial(w http.ResponseWriter, r *http.Request) {
	tab := chi.URLParam(r, "tab")
	var body StartRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.fail(w, http.StatusBadRequest, "invalid request body")
		s.Logger.Warn("StartTutorial: invalid request body", "err", err)
		return
	}

	var (
		st  bus.TutorialStatus
		err error
	)
	switch {
	case len(body.Steps) > 0:
		st, err = s.Panel.Initiate(r.Context(), tab, body.Steps)
	case body.Catalog != "":
		st, err = s.Panel.InitiateCatalog(r.Context(), tab, body.Catalog)
	case body.Action != "":
		st, err = s.Panel.InitiateQuery(r.Context(), tab, body.Action, body.Software)
	default:
		s.fail(w, http.StatusBadRequest, "one of steps, catalog or action is required")
		return
	}
	if err != nil {
		s.failWith(w, "StartTutorial", tab, err)
		return
	}
	s.reply(w, http.StatusAccepted, st)
}

// GetTutorial handles GET /tabs/{tab}/tutorial.
func (s *Server) GetTutorial(w http.ResponseWriter, r *http.Request) {
	tab := chi.URLParam(r, "tab")
	st, err := s.Panel.Status(r.Context(), tab)
	if err != nil {
		s.failWith(w, "GetTutorial", tab, err)
		return
	}
	s.reply(w, http.StatusOK, st)
}

// CancelTutorial handles DELETE /tabs/{tab}/tutorial.
func (s *Server) CancelTutorial(w http.ResponseWriter, r *http.Request) {
	tab := chi.URLParam(r, "tab")
	st, err := s.Panel.Cancel(r.Context(), tab)
	if err != nil {
		s.failWith(w, "CancelTutorial", tab, err)
		return
	}
	s.reply(w, http.StatusOK, st)
}

// AdvanceTutorial handles POST /tabs/{tab}/tutorial/advance.
func (s *Server) AdvanceTutorial(w http.ResponseWriter, r *http.Request) {
	tab := chi.URLParam(r, "tab")
	var body AdvanceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.Panel.Advance(r.Context(), tab, body.Index); err != nil {
		s.failWith(w, "AdvanceTutorial", tab, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// ListTabs handles GET /tabs.
func (s *Server) ListTabs(w http.ResponseWriter, r *http.Request) {
	tabs := []string{}
	if s.Tabs != nil {
		tabs = append(tabs, s.Tabs.Tabs()...)
	}
	s.reply(w, http.StatusOK, map[string][]string{"tabs": tabs})
}

// OpenTab handles POST /tabs.
func (s *Server) OpenTab(w http.ResponseWriter, r *http.Request) {
	if s.Opener == nil {
		s.fail(w, http.StatusNotImplemented, "opening tabs is not supported")
		return
	}
	var body OpenTabRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.URL == "" {
		s.fail(w, http.StatusBadRequest, "url is required")
		return
	}
	id, err := s.Opener.OpenTab(r.Context(), body.URL)
	if err != nil {
		s.failWith(w, "OpenTab", "", err)
		return
	}
	s.reply(w, http.StatusCreated, map[string]string{"tab": id})
}

// GetHealth handles GET /healthz.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.reply(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.reply(w, http.StatusOK, map[string]string{
		"app":     "tourguide-http",
		"version": tourguide.Version,
	})
}

// statusOf maps a panel failure to an HTTP status.
func statusOf(err error) int {
	var apiErr *tutorialapi.APIError
	switch {
	case errors.Is(err, bus.ErrNoReceiver), errors.Is(err, tourguide.ErrTabNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTutorialNotFound):
		return http.StatusNotFound
	case errors.Is(err, panel.ErrNoStepSource), errors.Is(err, panel.ErrNoCatalog):
		return http.StatusNotImplemented
	case errors.Is(err, bus.ErrReceiverDetached), errors.Is(err, bus.ErrMailboxFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) failWith(w http.ResponseWriter, op, tab string, err error) {
	code := statusOf(err)
	if code >= http.StatusInternalServerError {
		s.Logger.Error(op+" failed", "tab_id", tab, "err", err)
	} else {
		s.Logger.Debug(op+" rejected", "tab_id", tab, "err", err)
	}
	s.fail(w, code, err.Error())
}

func (s *Server) fail(w http.ResponseWriter, code int, msg string) {
	s.reply(w, code, map[string]string{"error": msg})
}

func (s *Server) reply(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("response encode failed", "err", err)
	}
}
