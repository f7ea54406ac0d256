package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
)

const maxReportedBody = 300

// OpenAPIValidator checks API responses against api/openapi/openapi.yaml.
type OpenAPIValidator struct {
	router routers.Router
	// unchecked paths serve plain text or the document itself.
	unchecked map[string]bool
}

// LoadOpenAPIValidator loads and validates the document at path.
func LoadOpenAPIValidator(path string) (*OpenAPIValidator, error) {
	doc, err := openapi3.NewLoader().LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load openapi document %s: %w", path, err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}

	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build openapi router: %w", err)
	}

	return &OpenAPIValidator{
		router: router,
		unchecked: map[string]bool{
			"/healthz":          true,
			"/readyz":           true,
			"/api/openapi.yaml": true,
		},
	}, nil
}

// CheckResponse reports on t when resp does not match the documented response for
// method and path. The body is restored so the caller can still read it.
func (v *OpenAPIValidator) CheckResponse(t *testing.T, method, path string, resp *http.Response) {
	t.Helper()

	path, _, _ = strings.Cut(path, "?")
	if v.unchecked[path] {
		return
	}

	// Routes are matched on the path alone; the document declares no servers.
	req, err := http.NewRequest(method, path, nil)
	if err != nil {
		t.Errorf("openapi: build route request: %v", err)
		return
	}
	route, params, err := v.router.FindRoute(req)
	if err != nil {
		t.Errorf("openapi: %s %s is not documented: %v", method, path, err)
		return
	}

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		t.Errorf("openapi: read response body: %v", err)
		return
	}

	err = openapi3filter.ValidateResponse(context.Background(), &openapi3filter.ResponseValidationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{
			Request:    req,
			PathParams: params,
			Route:      route,
		},
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   io.NopCloser(bytes.NewReader(body)),
		Options: &openapi3filter.Options{
			MultiError:            true,
			IncludeResponseStatus: true,
		},
	})
	if err != nil {
		t.Errorf("openapi: %s %s returned %d outside the contract: %v\nbody: %s",
			method, path, resp.StatusCode, err, clip(body))
	}
}

func clip(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxReportedBody {
		return s[:maxReportedBody] + "..."
	}
	return s
}
