package dispatch

import (
	"errors"
	"testing"
)

func TestNewPattern(t *testing.T) {
	tests := []struct {
		name        string
		pattern     string
		shouldError error
	}{
		{
			name:    "simple static path",
			pattern: "/users",
		},
		{
			name:    "root path",
			pattern: "/",
		},
		{
			name:    "path with dynamic segment",
			pattern: "/users/:id",
		},
		{
			name:    "path with multiple dynamic segments",
			pattern: "/users/:userId/posts/:postId",
		},
		{
			name:    "path with wildcard",
			pattern: "/static/*",
		},
		{
			name:    "path with named wildcard",
			pattern: "/static/*file",
		},
		{
			name:    "path with constraint",
			pattern: "/users/:id([0-9]+)",
		},
		{
			name:    "no leading slash",
			pattern: "users/:id",
		},
		{
			name:        "duplicate parameter names",
			pattern:     "/users/:id/posts/:id",
			shouldError: ErrDuplicateParam,
		},
		{
			name:        "wildcard before last segment",
			pattern:     "/files/*/meta",
			shouldError: ErrWildcardNotLast,
		},
		{
			name:        "parameter without name",
			pattern:     "/users/:",
			shouldError: ErrEmptyParamName,
		},
		{
			name:        "constraint without name",
			pattern:     "/users/:([0-9]+)",
			shouldError: ErrEmptyParamName,
		},
		{
			name:        "empty inner segment",
			pattern:     "/users//posts",
			shouldError: ErrEmptySegment,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pattern, err := NewPattern(tt.pattern)
			if tt.shouldError != nil {
				if !errors.Is(err, tt.shouldError) {
					t.Fatalf("expected %v for pattern %q, got %v", tt.shouldError, tt.pattern, err)
				}
				var patternErr *InvalidPatternError
				if !errors.As(err, &patternErr) {
					t.Fatalf("expected *InvalidPatternError, got %T", err)
				}
				if patternErr.Pattern != tt.pattern {
					t.Errorf("expected error pattern %q, got %q", tt.pattern, patternErr.Pattern)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error for pattern %q: %v", tt.pattern, err)
			}
			if pattern.String() != tt.pattern {
				t.Errorf("expected pattern.String() to be %q, got %q", tt.pattern, pattern.String())
			}
		})
	}
}

func TestNewPatternInvalidConstraint(t *testing.T) {
	_, err := NewPattern("/users/:id([0-9)")
	var patternErr *InvalidPatternError
	if !errors.As(err, &patternErr) {
		t.Fatalf("expected *InvalidPatternError, got %v", err)
	}
}

func TestPatternMatch(t *testing.T) {
	tests := []struct {
		name        string
		pattern     string
		path        string
		shouldMatch bool
		params      Params
	}{
		{
			name:        "static match",
			pattern:     "/users",
			path:        "/users",
			shouldMatch: true,
			params:      Params{},
		},
		{
			name:        "static match is case sensitive",
			pattern:     "/users",
			path:        "/Users",
			shouldMatch: false,
		},
		{
			name:        "static mismatch",
			pattern:     "/users",
			path:        "/posts",
			shouldMatch: false,
		},
		{
			name:        "trailing slash is ignored",
			pattern:     "/users",
			path:        "/users/",
			shouldMatch: true,
			params:      Params{},
		},
		{
			name:        "missing leading slash is ignored",
			pattern:     "/users/:id",
			path:        "users/7",
			shouldMatch: true,
			params:      Params{"id": "7"},
		},
		{
			name:        "root matches root",
			pattern:     "/",
			path:        "/",
			shouldMatch: true,
			params:      Params{},
		},
		{
			name:        "root does not match deeper path",
			pattern:     "/",
			path:        "/users",
			shouldMatch: false,
		},
		{
			name:        "single dynamic segment",
			pattern:     "/users/:id",
			path:        "/users/123",
			shouldMatch: true,
			params:      Params{"id": "123"},
		},
		{
			name:        "multiple dynamic segments",
			pattern:     "/users/:userId/posts/:postId",
			path:        "/users/42/posts/101",
			shouldMatch: true,
			params:      Params{"userId": "42", "postId": "101"},
		},
		{
			name:        "parameter value is captured verbatim",
			pattern:     "/files/:name",
			path:        "/files/a%20b.txt",
			shouldMatch: true,
			params:      Params{"name": "a%20b.txt"},
		},
		{
			name:        "too few segments",
			pattern:     "/users/:id",
			path:        "/users",
			shouldMatch: false,
		},
		{
			name:        "too many segments",
			pattern:     "/users/:id",
			path:        "/users/1/extra",
			shouldMatch: false,
		},
		{
			name:        "empty parameter segment does not match",
			pattern:     "/users/:id/posts",
			path:        "/users//posts",
			shouldMatch: false,
		},
		{
			name:        "wildcard captures remainder",
			pattern:     "/files/*",
			path:        "/files/2024/01/document.pdf",
			shouldMatch: true,
			params:      Params{"*": "2024/01/document.pdf"},
		},
		{
			name:        "named wildcard captures remainder",
			pattern:     "/files/:bucket/*path",
			path:        "/files/docs/a/b/c.txt",
			shouldMatch: true,
			params:      Params{"bucket": "docs", "path": "a/b/c.txt"},
		},
		{
			name:        "wildcard matches empty remainder",
			pattern:     "/files/*",
			path:        "/files",
			shouldMatch: true,
			params:      Params{"*": ""},
		},
		{
			name:        "wildcard still requires prefix",
			pattern:     "/files/*",
			path:        "/images/a.png",
			shouldMatch: false,
		},
		{
			name:        "constraint match",
			pattern:     "/users/:id([0-9]+)",
			path:        "/users/123",
			shouldMatch: true,
			params:      Params{"id": "123"},
		},
		{
			name:        "constraint mismatch",
			pattern:     "/users/:id([0-9]+)",
			path:        "/users/abc",
			shouldMatch: false,
		},
		{
			name:        "constraint is anchored",
			pattern:     "/users/:id([0-9]+)",
			path:        "/users/12ab",
			shouldMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pattern := MustPattern(tt.pattern)
			params, ok := pattern.Match(tt.path)
			if ok != tt.shouldMatch {
				t.Fatalf("expected match %v for %q against %q, got %v", tt.shouldMatch, tt.path, tt.pattern, ok)
			}
			if !tt.shouldMatch {
				return
			}
			if len(params) != len(tt.params) {
				t.Fatalf("expected params %v, got %v", tt.params, params)
			}
			for key, want := range tt.params {
				got, exists := params.Get(key)
				if !exists {
					t.Errorf("expected param %q to be present", key)
					continue
				}
				if got != want {
					t.Errorf("expected param %q to be %q, got %q", key, want, got)
				}
			}
		})
	}
}

func TestPatternMatchUnknownParam(t *testing.T) {
	params, ok := MustPattern("/users/:id").Match("/users/1")
	if !ok {
		t.Fatal("expected match")
	}
	if v, exists := params.Get("name"); exists || v != "" {
		t.Errorf("expected unknown param to be absent, got %q", v)
	}
}

func TestPatternPath(t *testing.T) {
	tests := []struct {
		name        string
		pattern     string
		params      Params
		expected    string
		shouldError bool
	}{
		{
			name:     "static",
			pattern:  "/users/list",
			expected: "/users/list",
		},
		{
			name:     "root",
			pattern:  "/",
			expected: "/",
		},
		{
			name:     "parameters",
			pattern:  "/users/:userId/posts/:postId",
			params:   Params{"userId": "42", "postId": "101"},
			expected: "/users/42/posts/101",
		},
		{
			name:     "wildcard",
			pattern:  "/files/*",
			params:   Params{"*": "2024/01/doc.pdf"},
			expected: "/files/2024/01/doc.pdf",
		},
		{
			name:     "wildcard omitted",
			pattern:  "/files/*",
			expected: "/files",
		},
		{
			name:        "missing parameter",
			pattern:     "/users/:id",
			shouldError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := MustPattern(tt.pattern).Path(tt.params)
			if tt.shouldError {
				if !errors.Is(err, ErrMissingParam) {
					t.Fatalf("expected ErrMissingParam, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if path != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, path)
			}
		})
	}
}

func TestPatternKeys(t *testing.T) {
	keys := MustPattern("/a/:x/b/:y/*rest").Keys()
	expected := []string{"x", "y", "rest"}
	if len(keys) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, keys)
	}
	for i := range expected {
		if keys[i] != expected[i] {
			t.Errorf("expected key %d to be %q, got %q", i, expected[i], keys[i])
		}
	}
}
