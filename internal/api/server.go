package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pbaille/holoself/internal/agent"
	"github.com/pbaille/holoself/internal/config"
	"github.com/pbaille/holoself/internal/labs"
	"github.com/pbaille/holoself/internal/protocol"
	"github.com/pbaille/holoself/internal/store"
	"github.com/pbaille/holoself/internal/vitamind"
	"github.com/pbaille/holoself/internal/voice"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Deps are the collaborators the API serves. Importer, Synth, Trans and UV
// may be nil; the matching endpoints then answer 503.
type Deps struct {
	Store    *store.Store
	Agent    *agent.Service
	Catalog  protocol.Catalog
	Importer *labs.Importer
	Synth    voice.Synthesizer
	Trans    voice.Transcriber
	Pool     *voice.Pool
	UV       *vitamind.UVClient
	LLMModel string
	Location config.LocationConfig
	Logger   *zap.Logger
}

// Server handles HTTP requests for the HoloSelf API
type Server struct {
	Deps
	cfg     config.ServerConfig
	limiter *rate.Limiter
	started time.Time
	now     func() time.Time
}

// New creates a new API server
func New(deps Deps, cfg config.ServerConfig) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Pool == nil {
		deps.Pool = voice.NewPool(1)
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 20
	}
	return &Server{
		Deps:    deps,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		started: time.Now(),
		now:     time.Now,
	}
}

// Handler builds the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(withCORS)
	r.Use(s.rateLimit)

	r.Get("/health", s.health)
	r.Get("/status", s.status)

	r.Get("/supplements", s.listSupplements)
	r.Post("/supplements", s.addSupplement)
	r.Post("/vitals", s.addVital)
	r.Get("/timeline", s.timeline)

	r.Post("/labs/import", s.importLabs)

	r.Route("/exams", func(r chi.Router) {
		r.Get("/generate", s.generateExams)
		r.Post("/refresh", s.refreshExams)
		r.Get("/upcoming", s.upcomingExams)
		r.Post("/{id}/complete", s.completeExam)
	})

	r.Route("/agent", func(r chi.Router) {
		r.Get("/message", s.agentMessage)
		r.Post("/action", s.agentAction)
		r.Get("/stats", s.agentStats)
		r.Post("/transcript", s.agentTranscript)
	})

	r.Route("/voice", func(r chi.Router) {
		r.Post("/speak", s.speak)
		r.Post("/transcribe", s.transcribe)
	})

	r.Get("/vitamin-d", s.vitaminD)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("Starting server", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Logger.Info("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	}
}

// withCORS adds CORS headers for frontend development
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.Logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
