package xadmit

import (
	"errors"
	"testing"
)

func TestMatchSegments(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/api/v1/queries", "/api/v1/queries", true},
		{"/api/v1/queries", "/api/v1/other", false},
		{"/api/*/queries", "/api/v1/queries", true},
		{"/api/*/queries", "/api/v1/x/queries", false},
		{"/api/v*/queries", "/api/v2/queries", true},
		{"/api/v*/queries", "/api/beta/queries", false},
		{"/files/*.json", "/files/report.json", true},
		{"/files/*.json", "/files/report.xml", false},
		{"/api/v1/queries/**", "/api/v1/queries", true},
		{"/api/v1/queries/**", "/api/v1/queries/123", true},
		{"/api/v1/queries/**", "/api/v1/queries/123/results", true},
		{"/api/v1/queries/**", "/api/v2/queries/123", false},
		{"/**", "/anything/at/all", true},
		{"/**", "/", true},
		{"/api/**/export", "/api/export", true},
		{"/api/**/export", "/api/v1/jobs/export", true},
		{"/api/**/export", "/api/v1/jobs/import", false},
		{"/health", "/health", true},
		{"/health", "/healthz", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" vs "+tt.path, func(t *testing.T) {
			got := matchSegments(splitPath(tt.pattern), splitPath(tt.path))
			if got != tt.want {
				t.Errorf("match(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
			}
		})
	}
}

func TestRouteTable_RegistrationOrder(t *testing.T) {
	rt := newRouteTable()
	mustAdd := func(pattern, policy string) {
		t.Helper()
		if err := rt.add(pattern, policy); err != nil {
			t.Fatalf("add(%q): %v", pattern, err)
		}
	}

	// 具体模式在前，宽泛模式在后
	mustAdd("/api/v1/upload/**", "strict")
	mustAdd("/api/v1/**", "standard")
	mustAdd("/**", "relaxed")

	tests := []struct {
		path string
		want string
	}{
		{"/api/v1/upload/file", "strict"},
		{"/api/v1/queries", "standard"},
		{"/metrics", "relaxed"},
	}
	for _, tt := range tests {
		got, ok := rt.resolve(tt.path)
		if !ok || got != tt.want {
			t.Errorf("resolve(%q) = %q (%v), want %q", tt.path, got, ok, tt.want)
		}
	}
}

func TestRouteTable_NoMatch(t *testing.T) {
	rt := newRouteTable()
	if err := rt.add("/api/**", "standard"); err != nil {
		t.Fatalf("add: %v", err)
	}

	if _, ok := rt.resolve("/health"); ok {
		t.Error("expected no match for /health")
	}
}

func TestRouteTable_AddValidation(t *testing.T) {
	rt := newRouteTable()

	if err := rt.add("api/**", "standard"); !errors.Is(err, ErrInvalidRoute) {
		t.Errorf("missing leading slash: got %v", err)
	}
	if err := rt.add("", "standard"); !errors.Is(err, ErrInvalidRoute) {
		t.Errorf("empty pattern: got %v", err)
	}
	if err := rt.add("/api/**", ""); !errors.Is(err, ErrInvalidRoute) {
		t.Errorf("empty policy: got %v", err)
	}
}
