package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nao1215/magicscraper/internal/metrics"
	"github.com/nao1215/magicscraper/internal/model"
	"github.com/nao1215/magicscraper/internal/pipeline"
	"github.com/nao1215/magicscraper/internal/report"
)

const (
	// DefaultMaxUploadSize is the largest accepted CSV upload.
	DefaultMaxUploadSize = 10 << 20

	// RefreshSeconds is how often the job page reloads while running.
	RefreshSeconds = 2

	previewRows     = 5
	shutdownTimeout = 10 * time.Second
)

//go:embed templates/*.html
var templateFS embed.FS

// Runner processes a batch of URLs for a job.
type Runner func(ctx context.Context, urls, fields []string, onEvent func(pipeline.Event)) (*model.Batch, error)

// Settings describe what the upload form offers.
type Settings struct {
	// Model is the LLM name shown in the banner.
	Model string

	// PricePerMillion is the token price shown in the banner.
	PricePerMillion float64

	// Fields are the selectable fields. All of them are checked by default.
	Fields []string
}

// Server serves the browser front-end.
type Server struct {
	runner    Runner
	settings  Settings
	store     *Store
	logger    *slog.Logger
	metrics   *metrics.Metrics
	preflight func() error
	maxUpload int64
	baseCtx   context.Context
	tmpl      *template.Template
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics enables request metrics and the /metrics endpoint.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithPreflight sets a check run before a job starts, such as the API key
// lookup. Its error is shown on the upload form.
func WithPreflight(fn func() error) Option {
	return func(s *Server) {
		s.preflight = fn
	}
}

// WithMaxUploadSize sets the largest accepted upload in bytes.
func WithMaxUploadSize(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// WithBaseContext sets the parent context of every job.
func WithBaseContext(ctx context.Context) Option {
	return func(s *Server) {
		s.baseCtx = ctx
	}
}

// New creates a Server.
func New(runner Runner, settings Settings, opts ...Option) (*Server, error) {
	s := &Server{
		runner:    runner,
		settings:  settings,
		store:     NewStore(),
		maxUpload: DefaultMaxUploadSize,
		baseCtx:   context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	tmpl, err := template.New("").Funcs(template.FuncMap{
		"label":   report.FieldLabel,
		"percent": report.Percent,
		"cost":    report.Cost,
		"minutes": func(m float64) string { return fmt.Sprintf("%.2f", m) },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	s.tmpl = tmpl

	return s, nil
}

// Store returns the job store.
func (s *Server) Store() *Store {
	return s.store
}

// Handler returns the HTTP handler of the front-end.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}
	r.Use(s.logRequests)

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", s.handleCreateJob)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleJob)
			r.Get("/status", s.handleJobStatus)
			r.Get("/results.csv", s.handleResultsCSV)
			r.Get("/report.md", s.handleReportMarkdown)
			r.Post("/cancel", s.handleCancelJob)
		})
	})

	return r
}

// ListenAndServe serves the front-end on addr until ctx is cancelled, then
// cancels running jobs and shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("web front-end listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.store.CancelAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// startJob runs the batch of a job in the background.
func (s *Server) startJob(j *Job) {
	ctx, cancel := context.WithCancel(s.baseCtx)
	j.mu.Lock()
	j.cancel = cancel
	j.mu.Unlock()

	s.store.Add(j)
	if s.metrics != nil {
		s.metrics.JobsRunning.Inc()
	}

	s.logger.Info("job started", "job", j.ID, "urls", len(j.URLs), "fields", j.Fields)

	go func() {
		defer cancel()

		batch, err := s.runner(ctx, j.URLs, j.Fields, j.handleEvent)
		if batch != nil && batch.Model == "" {
			batch.Model = s.settings.Model
			batch.PricePerMillion = s.settings.PricePerMillion
		}
		j.finish(batch, err)

		if s.metrics != nil {
			s.metrics.JobsRunning.Dec()
		}
		status := j.Status()
		s.logger.Info("job finished", "job", j.ID, "state", status.State, "tokens", status.TotalTokens)
	}()
}

// logRequests logs every request at debug level.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
