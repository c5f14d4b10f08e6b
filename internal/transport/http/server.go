package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"timed-quiz-service/internal/app"
)

// Options configures the HTTP surface.
type Options struct {
	// AdminSecret, when set, is required on mutating admin routes.
	AdminSecret string
	// RegistrationRate limits POST /participants per client per second. Zero disables it.
	RegistrationRate  float64
	RegistrationBurst int
	// Registry receives the HTTP metrics and is served on /metrics.
	Registry *prometheus.Registry
}

// Server exposes the content service over JSON HTTP.
type Server struct {
	service  *app.ContentService
	logger   *zap.Logger
	opts     Options
	metrics  *httpMetrics
	limiter  *clientLimiter
	ws       *WSHandler
	registry *prometheus.Registry
}

func NewServer(service *app.ContentService, logger *zap.Logger, opts Options) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	s := &Server{
		service:  service,
		logger:   logger,
		opts:     opts,
		metrics:  newHTTPMetrics(opts.Registry),
		registry: opts.Registry,
	}
	if opts.RegistrationRate > 0 {
		s.limiter = newClientLimiter(opts.RegistrationRate, opts.RegistrationBurst)
	}
	s.ws = NewWSHandler(service, logger, s.metrics.streams)
	return s
}

// Handler returns the full middleware chain around the routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	admin := func(h http.HandlerFunc) http.HandlerFunc { return requireAdmin(s.opts.AdminSecret, h) }

	routes := []struct {
		pattern string
		handler http.HandlerFunc
	}{
		{"GET /settings/{key}", s.handleGetSettings},
		{"PUT /settings/{key}", admin(s.handlePutSettings)},
		{"GET /metadata/{key}", s.handleGetMetadata},
		{"PUT /metadata/{key}", admin(s.handlePutMetadata)},
		{"GET /questions", s.handleListQuestions},
		{"POST /questions", admin(s.handleCreateQuestion)},
		{"POST /questions/batch", admin(s.handleBatch)},
		{"PUT /questions/{id}", admin(s.handleUpdateQuestion)},
		{"DELETE /questions/{id}", admin(s.handleDeleteQuestion)},
		{"GET /participants", s.handleListParticipants},
		{"POST /participants", s.limiter.wrap(s.handleCreateParticipant)},
		{"PUT /participants/{id}", s.handleUpdateParticipant},
		{"DELETE /participants", admin(s.handleDeleteParticipants)},
		{"GET /leaderboard", s.handleLeaderboard},
		{"GET /leaderboard.csv", s.handleLeaderboardCSV},
		{"GET /healthz", s.handleHealth},
	}
	for _, route := range routes {
		mux.Handle(route.pattern, s.metrics.instrument(route.pattern, route.handler))
	}
	mux.HandleFunc("GET /ws/leaderboard", s.ws.ServeWS)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	mux.Handle("/", s.metrics.instrument("unmatched", http.HandlerFunc(handleNotFound)))

	return withRecover(s.logger, withCORS(stripStage(mux)))
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, notFoundResponse{Error: "Not found", Path: r.URL.Path, Method: r.Method})
}
