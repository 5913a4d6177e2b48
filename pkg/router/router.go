package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// --- ANSI color codes ---
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

type HandlerFunc func(http.ResponseWriter, *http.Request)

type route struct {
	pattern  string
	segments []string
	wildcard int
}

type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
	color  bool

	mu       sync.RWMutex
	routes   map[string]HandlerFunc // key = METHOD:PATH
	paths    map[string]bool        // registered paths
	patterns []route                // wildcard paths, most specific first
}

// Option configures a Router
type Option func(*Router)

// WithLogger sends access logs to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithColor renders access logs as one colored line, for terminals.
func WithColor(on bool) Option {
	return func(r *Router) { r.color = on }
}

func New(opts ...Option) *Router {
	r := &Router{
		mux:    http.NewServeMux(),
		logger: zap.NewNop(),
		routes: make(map[string]HandlerFunc),
		paths:  make(map[string]bool),
	}
	for _, o := range opts {
		o(r)
	}

	// Catch-all handler for registered routes and unknown paths
	r.mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		r.dispatch(lrw, req)
		r.logRequest(req, lrw.statusCode, start)
	})

	return r
}

func (r *Router) dispatch(w http.ResponseWriter, req *http.Request) {
	r.mu.RLock()
	h, ok := r.routes[req.Method+":"+req.URL.Path]
	exists := r.paths[req.URL.Path]
	if !ok {
		for _, rt := range r.patterns {
			if !matchWildcardRoute(req.URL.Path, rt.pattern) {
				continue
			}
			exists = true
			if wh, found := r.routes[req.Method+":"+rt.pattern]; found {
				h, ok = wh, true
				break
			}
		}
	}
	r.mu.RUnlock()

	switch {
	case ok:
		h(w, req)
	case exists:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	default:
		http.Error(w, "Not Found", http.StatusNotFound)
	}
}

func (r *Router) logRequest(req *http.Request, status int, start time.Time) {
	duration := time.Since(start)
	if r.color {
		r.logger.Info(fmt.Sprintf("%s%s%s %s %s%d%s %s(%v)%s",
			methodColor(req.Method), req.Method, colorReset,
			req.URL.Path,
			statusColor(status), status, colorReset,
			colorBlue, duration, colorReset,
		))
		return
	}
	r.logger.Info("HTTP request",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", status),
		zap.Duration("duration", duration))
}

// matchWildcardRoute checks if a request path matches a wildcard route pattern.
// A trailing "*" matches one or more remaining segments; an inner "*" matches
// exactly one.
func matchWildcardRoute(requestPath, routePattern string) bool {
	requestSegments := strings.Split(strings.Trim(requestPath, "/"), "/")
	routeSegments := strings.Split(strings.Trim(routePattern, "/"), "/")

	last := len(routeSegments) - 1
	if last >= 0 && routeSegments[last] == "*" {
		if len(requestSegments) < len(routeSegments) {
			return false
		}
		for i := 0; i < last; i++ {
			if routeSegments[i] != "*" && requestSegments[i] != routeSegments[i] {
				return false
			}
		}
		return requestSegments[last] != ""
	}

	if len(requestSegments) != len(routeSegments) {
		return false
	}
	for i, routeSegment := range routeSegments {
		if routeSegment == "*" {
			if requestSegments[i] == "" {
				return false
			}
			continue
		}
		if requestSegments[i] != routeSegment {
			return false
		}
	}
	return true
}

// --- Register paths ---
func (r *Router) register(method, path string, handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[method+":"+path] = handler
	if !r.paths[path] && strings.Contains(path, "*") {
		segs := strings.Split(strings.Trim(path, "/"), "/")
		r.patterns = append(r.patterns, route{pattern: path, segments: segs, wildcard: strings.Count(path, "*")})
		sortBySpecificity(r.patterns)
	}
	r.paths[path] = true
}

// sortBySpecificity puts longer patterns first, then those with fewer
// wildcards, so "/runs/*/errors" wins over "/runs/*".
func sortBySpecificity(routes []route) {
	sort.SliceStable(routes, func(i, j int) bool {
		if len(routes[i].segments) != len(routes[j].segments) {
			return len(routes[i].segments) > len(routes[j].segments)
		}
		return routes[i].wildcard < routes[j].wildcard
	})
}

func (r *Router) GET(path string, handler HandlerFunc)   { r.register(http.MethodGet, path, handler) }
func (r *Router) POST(path string, handler HandlerFunc)  { r.register(http.MethodPost, path, handler) }
func (r *Router) PUT(path string, handler HandlerFunc)   { r.register(http.MethodPut, path, handler) }
func (r *Router) PATCH(path string, handler HandlerFunc) { r.register(http.MethodPatch, path, handler) }
func (r *Router) DELETE(path string, handler HandlerFunc) {
	r.register(http.MethodDelete, path, handler)
}

// Mount serves every method under prefix with h, bypassing route matching.
func (r *Router) Mount(prefix string, h http.Handler) {
	r.mux.Handle(prefix, h)
}

// Getter methods for testing
func (r *Router) Routes() map[string]HandlerFunc {
	return r.routes
}

func (r *Router) Paths() map[string]bool {
	return r.paths
}

// Handler exposes the router as an http.Handler.
func (r *Router) Handler() http.Handler {
	return r.mux
}

// --- Start server ---

// Start serves on addr until ctx is done, then shuts down gracefully.
func (r *Router) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           r.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		r.logger.Info(fmt.Sprintf("🚀 Server started on %shttp://localhost%s%s", colorGreen, addr, colorReset))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// --- Logging response writer to capture status codes ---
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// --- Color helpers ---
func statusColor(code int) string {
	switch {
	case code >= 200 && code < 300:
		return colorGreen
	case code >= 300 && code < 400:
		return colorCyan
	case code >= 400 && code < 500:
		return colorYellow
	default:
		return colorRed
	}
}

func methodColor(method string) string {
	switch method {
	case http.MethodGet:
		return colorGreen
	case http.MethodPost:
		return colorBlue
	case http.MethodPut, http.MethodPatch:
		return colorYellow
	case http.MethodDelete:
		return colorRed
	default:
		return colorCyan
	}
}
