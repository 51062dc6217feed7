package app

import "testing"

func TestResolve(t *testing.T) {
	cases := []struct {
		path string
		auth bool
		want Route
	}{
		{"/dashboard", true, RouteDashboard},
		{"/dashboard/", true, RouteDashboard},
		{"/dashboard", false, RouteLogin},
		{"/login", true, RouteLogin},
		{"/login", false, RouteLogin},
		{"/", true, RouteLogin},
		{"", true, RouteLogin},
		{"/settings", true, RouteLogin},
	}
	for _, tc := range cases {
		if got := Resolve(tc.path, tc.auth); got != tc.want {
			t.Fatalf("Resolve(%q, %v) = %s, want %s", tc.path, tc.auth, got, tc.want)
		}
	}
}

func TestStepYear(t *testing.T) {
	years := []int{2000, 2001, 2002}
	if got := stepYear(years, 2001, 1); got != 2002 {
		t.Fatalf("expected 2002, got %d", got)
	}
	if got := stepYear(years, 2002, 1); got != 2002 {
		t.Fatalf("expected clamp at 2002, got %d", got)
	}
	if got := stepYear(years, 2000, -1); got != 2000 {
		t.Fatalf("expected clamp at 2000, got %d", got)
	}
	if got := stepYear(years, 0, -1); got != 2000 {
		t.Fatalf("expected unset year to step onto 2000, got %d", got)
	}
}
