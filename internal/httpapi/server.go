package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/MimeLyc/react-agent/internal/persistence"
	"github.com/MimeLyc/react-agent/internal/service"
)

// QuestionService is what the server needs from the service layer.
// *service.QAService satisfies it.
type QuestionService interface {
	Ask(ctx context.Context, question string, maxLoops int) (*service.Result, error)
	History(ctx context.Context, limit int) ([]persistence.RunRecord, error)
	Run(ctx context.Context, id string) (persistence.RunRecord, error)
}

const (
	defaultLoopTimeout     = 30 * time.Second
	defaultMaxLoops        = 10
	defaultMaxBodyBytes    = 64 << 10
	defaultHistoryLimit    = 20
	maxHistoryLimit        = 500
	maxRequestMaxLoopsCeil = 50
)

type Server struct {
	svc QuestionService

	loopTimeout     time.Duration
	defaultMaxLoops int
	maxLoopsCeil    int

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

// WithLoopTimeout sets the time allowed per loop of an /api/ask run. A run
// with a budget of n loops gets n+1 times this, the extra one for the
// final answer.
func WithLoopTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.loopTimeout = d
		}
	}
}

// WithDefaultMaxLoops is the budget the agent uses when a request sets no
// max_loops.
func WithDefaultMaxLoops(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.defaultMaxLoops = n
		}
	}
}

// WithMaxLoopsCeiling caps the max_loops a client may request.
func WithMaxLoopsCeiling(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLoopsCeil = n
		}
	}
}

func NewServer(svc QuestionService, opts ...Option) *Server {
	s := &Server{
		svc:             svc,
		loopTimeout:    defaultLoopTimeout,
		defaultMaxLoops: defaultMaxLoops,
		maxLoopsCeil:    maxRequestMaxLoopsCeil,
		mux:             http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// requestTimeout bounds a run with the given budget, 0 meaning the default.
func (s *Server) requestTimeout(maxLoops int) time.Duration {
	if maxLoops <= 0 {
		maxLoops = s.defaultMaxLoops
	}
	return s.loopTimeout * time.Duration(maxLoops+1)
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/ask", s.handleAsk)
	s.mux.HandleFunc("/api/runs", s.handleListRuns)
	s.mux.HandleFunc("/api/runs/", s.handleGetRun)
	s.mux.HandleFunc("/healthz", s.handleHealth)
}
