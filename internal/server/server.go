package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"staff-transport/internal/assignment"
	"staff-transport/internal/catalog"
	"staff-transport/internal/config"
	"staff-transport/internal/database"
	"staff-transport/internal/distance"
	"staff-transport/internal/geocoding"
	"staff-transport/internal/handlers"
	"staff-transport/internal/sqlite"
	"staff-transport/internal/trips"
)

// RequestIDHeader carries the per-request correlation id
const RequestIDHeader = "X-Request-ID"

// Server wraps the HTTP server and all dependencies
type Server struct {
	httpServer *http.Server
	handler    *handlers.Handler
	db         database.DataStore
	listener   net.Listener
	addr       string
}

// New creates and initializes a new server (does not start it)
func New(cfg *config.Config) (*Server, error) {
	logrus.WithField("path", cfg.DBPath).Info("Initializing data store")
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize data store: %w", err)
	}

	handler := NewHandler(cfg, store)

	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      Wrap(setupRoutes(handler)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		handler:    handler,
		db:         store,
		addr:       cfg.ServerAddr,
	}, nil
}

// NewHandler wires the services on top of a data store
func NewHandler(cfg *config.Config, store database.DataStore) *handlers.Handler {
	geocoder := geocoding.NewNominatimGeocoder(cfg.NominatimBaseURL)

	retry := distance.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.RouteMaxRetries
	retry.Backoff = distance.LinearBackoff(cfg.RouteRetryStep)
	router := distance.NewOSRMRouteResolver(cfg.OSRMBaseURL, retry)

	return &handlers.Handler{
		DB:       store,
		Geocoder: geocoder,
		Assigner: assignment.NewAssigner(store.Axes(), store.Stops()),
		Trips:    trips.NewCoordinator(store.Trips(), store.Stops(), router, geocoder, trips.WithPacing(cfg.MigrationPacing)),
		Catalog:  catalog.NewService(store.Axes(), store.Stops()),
	}
}

// Start starts the server and returns the actual address (useful for random port)
func (s *Server) Start() (string, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = listener
	actualAddr := listener.Addr().String()
	logrus.WithField("addr", actualAddr).Info("Starting server")

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Error("Server error")
		}
	}()

	return actualAddr, nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	return s.db.Close()
}

// Wrap applies the request id, access log and CORS middleware
func Wrap(next http.Handler) http.Handler {
	return requestIDMiddleware(loggingMiddleware(corsMiddleware(next)))
}

func methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}

// only restricts a handler to one method
func only(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			methodNotAllowed(w)
			return
		}
		h(w, r)
	}
}

// setupRoutes configures all HTTP routes
func setupRoutes(handler *handlers.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/health", only(http.MethodGet, handler.HandleHealthCheck))

	mux.HandleFunc("/api/v1/schedule/assignments", only(http.MethodGet, handler.HandleScheduleAssignments))

	mux.HandleFunc("/api/v1/trips", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.HandleListTrips(w, r)
		case http.MethodPost:
			handler.HandleCreateTrip(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/v1/trips/migrate", only(http.MethodPost, handler.HandleMigrateTrips))

	mux.HandleFunc("/api/v1/trips/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/trips/" {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}

		if strings.HasSuffix(r.URL.Path, "/recompute") {
			only(http.MethodPost, handler.HandleRecomputeTrip)(w, r)
			return
		}

		only(http.MethodGet, handler.HandleGetTrip)(w, r)
	})

	mux.HandleFunc("/api/v1/stops", only(http.MethodPost, handler.HandleCreateStop))

	mux.HandleFunc("/api/v1/stops/nearby", only(http.MethodGet, handler.HandleNearbyStops))

	mux.HandleFunc("/api/v1/axes/", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/stops") {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		only(http.MethodGet, handler.HandleAxisStops)(w, r)
	})

	mux.HandleFunc("/api/v1/address-search", only(http.MethodGet, handler.HandleAddressSearch))

	return mux
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logrus.WithFields(logrus.Fields{
			"component":  "http",
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     lrw.statusCode,
			"bytes":      lrw.bytes,
			"duration":   time.Since(start).String(),
			"request_id": r.Header.Get(RequestIDHeader),
		}).Info("Request handled")
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
	bytes      int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	n, err := lrw.ResponseWriter.Write(b)
	lrw.bytes += n
	return n, err
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// Only allow localhost origins (local admin tools)
		if origin == "" ||
			strings.HasPrefix(origin, "http://localhost:") ||
			strings.HasPrefix(origin, "http://127.0.0.1:") {
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+RequestIDHeader)
			w.Header().Set("Access-Control-Expose-Headers", RequestIDHeader)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
