package http_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"

	handler "github.com/samirrijal/cityplanner/internal/adapters/http"
)

// findOpenAPISpec locates the openapi.yaml file by walking up from the test directory.
func findOpenAPISpec(t *testing.T) string {
	dir, _ := os.Getwd()

	for i := 0; i < 5; i++ {
		candidate := filepath.Join(dir, "api", "openapi.yaml")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		dir = filepath.Dir(dir)
	}

	t.Fatalf("could not find api/openapi.yaml")
	return ""
}

func loadSpec(t *testing.T) *openapi3.T {
	t.Helper()
	data, err := os.ReadFile(findOpenAPISpec(t))
	if err != nil {
		t.Fatalf("failed to read openapi.yaml: %v", err)
	}

	loader := &openapi3.Loader{IsExternalRefsAllowed: false}
	spec, err := loader.LoadFromData(data)
	if err != nil {
		t.Fatalf("failed to parse OpenAPI spec: %v", err)
	}
	return spec
}

// TestOpenAPISpec validates the document and checks it covers every planner route.
func TestOpenAPISpec(t *testing.T) {
	spec := loadSpec(t)

	if err := spec.Validate(context.Background()); err != nil {
		t.Fatalf("OpenAPI spec validation failed: %v", err)
	}

	expectedPaths := []string{
		"/v1/health",
		"/v1/ready",
		"/v1/config",
		"/v1/view",
		"/v1/layers.geojson",
		"/v1/markers",
		"/v1/markers/{index}",
		"/v1/activities",
		"/v1/recommendations",
		"/graphql",
	}
	for _, path := range expectedPaths {
		if item := spec.Paths.Find(path); item == nil {
			t.Errorf("expected path %s not found in spec", path)
		}
	}

	expectedSchemas := []string{
		"APIError",
		"Marker",
		"Markers",
		"Activity",
		"Outcome",
		"Status",
		"Config",
		"View",
	}
	for _, schema := range expectedSchemas {
		if spec.Components.Schemas[schema] == nil {
			t.Errorf("expected schema %s not found", schema)
		}
	}

	t.Logf("OpenAPI spec valid: %d paths, %d schemas", len(spec.Paths.Map()), len(spec.Components.Schemas))
}

// TestOpenAPIInfo verifies spec metadata.
func TestOpenAPIInfo(t *testing.T) {
	spec := loadSpec(t)

	if spec.Info.Title != "City Planner API" {
		t.Errorf("expected title 'City Planner API', got %q", spec.Info.Title)
	}
	if spec.Info.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %q", spec.Info.Version)
	}
	if len(spec.Servers) == 0 {
		t.Error("expected at least one server")
	}
}

// TestOpenAPIRecommendationResponses checks the documented refusal codes.
func TestOpenAPIRecommendationResponses(t *testing.T) {
	spec := loadSpec(t)

	op := spec.Paths.Find("/v1/recommendations").Post
	if op == nil {
		t.Fatal("POST /v1/recommendations missing")
	}
	for _, code := range []int{200, 202, 409, 422} {
		if op.Responses.Status(code) == nil {
			t.Errorf("response %d not documented", code)
		}
	}
}

func TestDocs_ServesPlannerReference(t *testing.T) {
	saved := handler.OpenAPIPath
	t.Cleanup(func() { handler.OpenAPIPath = saved })
	handler.OpenAPIPath = findOpenAPISpec(t)

	app := setupApp(makeDeps(nil))

	code, body := do(t, app, "GET", "/docs", "")
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	for _, want := range []string{"/v1/markers", "/v1/recommendations", "/ws", "/docs/openapi.yaml"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("docs page does not mention %s", want)
		}
	}

	code, body = do(t, app, "GET", "/docs/openapi.yaml", "")
	if code != 200 || !strings.Contains(string(body), "City Planner API") {
		t.Fatalf("expected the API description, got %d", code)
	}

	handler.OpenAPIPath = filepath.Join(t.TempDir(), "missing.yaml")
	if code, _ := do(t, app, "GET", "/docs/openapi.yaml", ""); code != 404 {
		t.Errorf("expected 404 for a missing document, got %d", code)
	}
}
