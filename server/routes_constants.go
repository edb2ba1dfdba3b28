package server

// Route path constants
// All API routes live under APIPrefix, matching the production backend.
const (
	APIPrefix = "/api/v1"

	// Auth Routes
	RouteAuthRegister  = APIPrefix + "/auth/register"
	RouteAuthLogin     = APIPrefix + "/auth/login"
	RouteAuthRefresh   = APIPrefix + "/auth/refresh"
	RouteAuthLogout    = APIPrefix + "/auth/logout"
	RouteAuthProfile   = APIPrefix + "/auth/profile"
	RouteAuthTestToken = APIPrefix + "/auth/test-token"

	// Operational Routes
	RouteHealth    = "/health"
	RouteAPIHealth = APIPrefix + "/health"
	RouteMetrics   = "/metrics"
)
