package app

import "strings"

// Route is a screen the application can show.
type Route string

const (
	RouteLogin     Route = "/login"
	RouteDashboard Route = "/dashboard"
)

// Resolve maps a requested path to the route actually shown. The dashboard
// requires a token; every other path lands on the login screen.
func Resolve(path string, authenticated bool) Route {
	path = strings.TrimSpace(path)
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	if Route(path) == RouteDashboard && authenticated {
		return RouteDashboard
	}
	return RouteLogin
}
