package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/sparktutor-go/internal/classifier"
	"github.com/sparktutor-go/internal/config"
	"github.com/sparktutor-go/internal/extract"
	"github.com/sparktutor-go/internal/i18n"
	"github.com/sparktutor-go/internal/middleware"
	"github.com/sparktutor-go/internal/services/ai"
	"github.com/sparktutor-go/internal/services/cache"
	"github.com/sparktutor-go/internal/services/storage"
)

// Server wires the HTTP surface around the classifier and model router.
type Server struct {
	cfg        *config.Config
	server     *http.Server
	classifier *classifier.Classifier
	router     *ai.Router
	extractor  *extract.Service
	cache      cache.Service
	storage    *storage.Manager
	limiter    middleware.RateLimiter
	localizer  *i18n.Localizer
	metrics    *middleware.Metrics
	logger     *logrus.Logger
}

// New creates the server and registers all routes
func New(
	cfg *config.Config,
	clf *classifier.Classifier,
	router *ai.Router,
	extractor *extract.Service,
	cacheService cache.Service,
	storageManager *storage.Manager,
	limiter middleware.RateLimiter,
	localizer *i18n.Localizer,
	metrics *middleware.Metrics,
	logger *logrus.Logger,
) *Server {
	s := &Server{
		cfg:        cfg,
		classifier: clf,
		router:     router,
		extractor:  extractor,
		cache:      cacheService,
		storage:    storageManager,
		limiter:    limiter,
		localizer:  localizer,
		metrics:    metrics,
		logger:     logger,
	}

	r := mux.NewRouter().StrictSlash(true)
	r.HandleFunc("/", s.handleIndex).Methods("GET")
	r.HandleFunc("/api/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/api/chat/text", s.handleChatText).Methods("POST")
	r.HandleFunc("/api/chat/file", s.handleChatFile).Methods("POST")
	r.HandleFunc("/api/classify", s.handleClassify).Methods("POST")
	r.HandleFunc("/api/extract", s.handleExtract).Methods("POST")
	r.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	r.Use(s.loggingMiddleware)

	cors := gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins(cfg.Server.AllowedOrigins),
		gorillahandlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		gorillahandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Requested-With"}),
		gorillahandlers.AllowCredentials(),
	)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      cors(r),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

// Run starts the server and blocks until a shutdown signal or server error.
func (s *Server) Run() error {
	serverErrors := make(chan error, 1)

	go func() {
		s.logger.WithField("addr", s.server.Addr).Info("Starting HTTP server")
		serverErrors <- s.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		s.logger.WithField("signal", sig.String()).Info("Starting shutdown")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	return nil
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w}

		next.ServeHTTP(rw, r)

		status := rw.status
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)

		s.metrics.RecordHTTPRequest(r.URL.Path, r.Method, status, duration)
		s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      status,
			"duration":    duration,
			"remote_addr": r.RemoteAddr,
		}).Info("HTTP request completed")
	})
}

// responseWriter captures the status code for logging and metrics
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	return rw.ResponseWriter.Write(b)
}
