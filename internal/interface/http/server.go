// Package http implements the REST API of the progression engine.
package http

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/application/command"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/application/query"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/interface/http/handlers"
	"github.com/Supriya-Al/LSM-learn-sub000/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int

	// RequestTimeout bounds every API request context.
	RequestTimeout time.Duration

	// MaxBodyBytes limits request bodies (catalog import is the largest).
	MaxBodyBytes int64

	EnableCORS     bool
	AllowedOrigins []string

	// StrictCatalogIntegrity rejects imports with ungated days.
	StrictCatalogIntegrity bool

	// Location resolves attendance dates given as YYYY-MM-DD.
	Location *time.Location

	// ShutdownTimeout bounds the drain of in-flight requests in Run.
	ShutdownTimeout time.Duration

	Version string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
		RequestTimeout: 10 * time.Second,
		MaxBodyBytes:   1 << 20,
		EnableCORS:     true,
		AllowedOrigins: []string{"*"},

		Location:        time.UTC,
		ShutdownTimeout: 10 * time.Second,
		Version:         "v1",
	}
}

func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Dependencies contains all dependencies required by HTTP handlers.
type Dependencies struct {
	// Commands
	Enroll         *command.EnrollHandler
	Drop           *command.DropEnrollmentHandler
	SubmitQuiz     *command.SubmitQuizHandler
	RecordView     *command.RecordLessonViewHandler
	MarkAttendance *command.MarkAttendanceHandler
	ImportCourse   *command.ImportCourseHandler
	Recompute      *command.RecomputeProgressHandler

	// Queries
	Progress    *query.GetEnrollmentProgressHandler
	Certificate *query.GetCertificateEligibilityHandler
	Outline     *query.GetCourseOutlineHandler

	Auth          *handlers.JWTAuthenticator
	QuizLimiter   *handlers.RateLimiter // optional
	HealthChecker handlers.HealthChecker
	Logger        *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	httpServer *http.Server
	router     *http.ServeMux
	handler    http.Handler
	logger     *logger.Logger
	validate   *validator.Validate

	startedAt atomic.Pointer[time.Time]
}

// NewServer creates a new HTTP server with the given configuration and dependencies.
func NewServer(config Config, deps Dependencies) *Server {
	s := &Server{
		config:   config,
		deps:     deps,
		router:   http.NewServeMux(),
		logger:   deps.Logger,
		validate: newValidator(),
	}
	if s.config.Location == nil {
		s.config.Location = time.UTC
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}
	s.logger = s.logger.With(logger.Component("http"))

	s.setupRoutes()
	s.handler = s.buildMiddlewareChain(s.router)

	s.httpServer = &http.Server{
		Addr:           config.Address(),
		Handler:        s.handler,
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}
	return s
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Health & Status Endpoints
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /healthz", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleHealth)
	s.router.HandleFunc("GET /live", s.handleLive)

	// ─────────────────────────────────────────────────────────────────────────
	// API v1 - bearer token required
	// ─────────────────────────────────────────────────────────────────────────
	api := http.NewServeMux()
	api.HandleFunc("POST /api/v1/courses/{courseId}/enroll", s.handleEnroll)
	api.HandleFunc("POST /api/v1/courses/{courseId}/drop", s.handleDrop)
	api.Handle("POST /api/v1/lessons/{lessonId}/quiz-attempts", s.limitQuiz(http.HandlerFunc(s.handleSubmitQuiz)))
	api.HandleFunc("POST /api/v1/lessons/{lessonId}/views", s.handleRecordView)
	api.HandleFunc("PUT /api/v1/courses/{courseId}/attendance/{day}", s.handleMarkAttendance)
	api.HandleFunc("GET /api/v1/courses/{courseId}/progress", s.handleGetProgress)
	api.HandleFunc("GET /api/v1/courses/{courseId}/certificate-eligibility", s.handleGetCertificate)
	api.HandleFunc("GET /api/v1/courses/{courseId}/outline", s.handleGetOutline)

	// ─────────────────────────────────────────────────────────────────────────
	// Admin (role checked by the commands)
	// ─────────────────────────────────────────────────────────────────────────
	api.HandleFunc("PUT /api/v1/admin/courses/{courseId}", s.handleImportCourse)
	api.HandleFunc("POST /api/v1/admin/courses/{courseId}/learners/{userId}/recompute", s.handleRecompute)

	var apiHandler http.Handler = api
	if s.deps.Auth != nil {
		apiHandler = s.deps.Auth.Middleware(s.writeAuthError)(api)
	}
	apiHandler = handlers.Chain(
		handlers.TimeoutMiddleware(s.config.RequestTimeout),
		handlers.RequestSizeLimitMiddleware(s.config.MaxBodyBytes),
	)(apiHandler)
	s.router.Handle("/api/", apiHandler)
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE CHAIN
// ══════════════════════════════════════════════════════════════════════════════

// Порядок: request id -> access log -> recover -> headers -> CORS -> маршруты.
func (s *Server) buildMiddlewareChain(h http.Handler) http.Handler {
	mws := []handlers.MiddlewareFunc{
		s.requestContext,
		s.accessLog,
		s.recoverPanics,
		handlers.SecurityHeadersMiddleware,
	}
	if s.config.EnableCORS {
		mws = append(mws, s.cors)
	}
	return handlers.Chain(mws...)(h)
}

// requestContext puts the request id and a logger carrying it into the context.
// A client-supplied X-Request-ID is kept when it is a sane length.
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		ctx := context.WithValue(r.Context(), contextKeyRequestID, id)
		ctx = logger.WithContext(ctx, s.logger.WithRequestID(id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// reqLog is the request-scoped logger, or the server logger outside a request.
func (s *Server) reqLog(r *http.Request) *logger.Logger {
	if _, ok := r.Context().Value(contextKeyRequestID).(string); ok {
		return logger.FromContext(r.Context())
	}
	return s.logger
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		fields := []logger.Field{
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", rec.status),
			logger.Latency(time.Since(start)),
			logger.String("ip", clientIP(r)),
		}
		if p, ok := handlers.PrincipalFrom(r.Context()); ok {
			fields = append(fields, logger.UserID(p.ID.String()))
		}
		log := s.reqLog(r)
		if rec.status >= http.StatusInternalServerError {
			log.Warn("http request", fields...)
			return
		}
		log.Info("http request", fields...)
	})
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rv := recover()
			if rv == nil {
				return
			}
			if rv == http.ErrAbortHandler {
				panic(rv)
			}
			s.reqLog(r).Error("panic recovered",
				logger.Any("panic", rv),
				logger.String("stack", string(debug.Stack())),
				logger.String("path", r.URL.Path),
			)
			writeJSONError(w, r, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		}()
		next.ServeHTTP(w, r)
	})
}

// cors echoes an allowed Origin back; "*" allows any.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && s.originAllowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			h.Set("Access-Control-Expose-Headers", "X-Request-ID, Retry-After")
			h.Set("Access-Control-Max-Age", "86400")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, o := range s.config.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// limitQuiz applies the per-learner quiz limiter when one is configured.
func (s *Server) limitQuiz(h http.Handler) http.Handler {
	if s.deps.QuizLimiter == nil {
		return h
	}
	return s.deps.QuizLimiter.Middleware(s.writeRateLimited)(h)
}

func (s *Server) writeRateLimited(w http.ResponseWriter, r *http.Request, res handlers.RateLimitResult) {
	secs := int(math.Ceil(res.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))

	msg := fmt.Sprintf("too many quiz attempts, retry in %ds", secs)
	if res.Banned {
		msg = fmt.Sprintf("quiz submissions are blocked for %ds", secs)
	}
	s.writeDomainError(w, r, shared.NewDomainError("http", "SubmitQuiz", shared.ErrRateLimited, msg).
		WithCode(shared.CodeRateLimited), nil)
}

func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	s.reqLog(r).Debug("authentication failed", logger.Err(err))
	writeJSONError(w, r, http.StatusUnauthorized, shared.CodeUnauthenticated, "a valid bearer token is required")
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Run serves until ctx is cancelled or the listener fails, then drains
// in-flight requests for at most ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	now := time.Now()
	if !s.startedAt.CompareAndSwap(nil, &now) {
		return errors.New("http: server already started")
	}

	failed := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", logger.String("address", s.config.Address()))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			failed <- err
		}
		close(failed)
	}()

	select {
	case err := <-failed:
		if err != nil {
			return fmt.Errorf("http: listen on %s: %w", s.config.Address(), err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	drain := s.config.ShutdownTimeout
	if drain <= 0 {
		drain = 10 * time.Second
	}
	sctx, cancel := context.WithTimeout(context.Background(), drain)
	defer cancel()
	if err := s.httpServer.Shutdown(sctx); err != nil {
		return fmt.Errorf("http: shutdown: %w", err)
	}
	return nil
}

// Uptime is zero until Run starts.
func (s *Server) Uptime() time.Duration {
	if t := s.startedAt.Load(); t != nil {
		return time.Since(*t)
	}
	return 0
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

type contextKey string

const contextKeyRequestID contextKey = "request_id"

// statusRecorder remembers the status code for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the peer.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func getRequestID(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}
