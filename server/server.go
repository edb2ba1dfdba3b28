package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/flowcraft-client/internal/config"
	"github.com/jrsteele09/flowcraft-client/token/jwt"
	"github.com/jrsteele09/flowcraft-client/token/refresh"
	"github.com/jrsteele09/flowcraft-client/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Repos holds the storage the backend runs on.
type Repos struct {
	Users         users.UserRepo
	RefreshTokens refresh.Repo
}

// Server is a development stand-in for the FlowCraft auth API. It issues
// HS256 access tokens and rotating opaque refresh tokens.
type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	repos    Repos
	tokens   *jwt.Creator
	refresh  *refresh.Manager
	validate *validator.Validate
	registry *prometheus.Registry
	metrics  *httpMetrics
}

func New(config config.Config, repos Repos) (*Server, error) {
	s := &Server{
		env:      config.GetEnv(),
		mux:      http.NewServeMux(),
		config:   config,
		repos:    repos,
		tokens:   jwt.NewCreator(config.GetJWTSecret(), config.GetAccessTokenExpiry()),
		refresh:  refresh.NewManager(repos.RefreshTokens, config.GetRefreshTokenLength(), config.GetRefreshTokenExpiry()),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		registry: prometheus.NewRegistry(),
	}
	s.metrics = newHTTPMetrics(s.registry)

	if err := s.InitialiseSystem(config); err != nil {
		return nil, fmt.Errorf("[Server New] Failed to initialise the system: %w", err)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Registry is where the backend's own collectors live; it is served on /metrics.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

func (s *Server) metricsHandler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Printf("[%-19s] %s", colourMethod(method), path)
}

func logError(method, path, error string) {
	log.Printf("[%-19s] %s %s", colourMethod(method), path, Red+error+ResetColor)
}

func colourMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}
