package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

// HealthResponse represents the expected JSON response from the health endpoint
type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

func TestHealthHandler(t *testing.T) {
	// Create a request to pass to our handler
	req, err := http.NewRequest("GET", "/health", nil)
	if err != nil {
		t.Fatal(err)
	}

	// Create a ResponseRecorder to record the response
	rr := httptest.NewRecorder()
	handler := HealthHandler(func(ctx context.Context) error { return nil })

	// Call the handler directly with the request and response recorder
	handler.ServeHTTP(rr, req)

	// Check the status code
	assert.Equal(t, http.StatusOK, rr.Code, "handler returned wrong status code")

	// Check the content type
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"), "handler returned wrong content type")

	// Parse the response body
	var resp HealthResponse
	err = json.Unmarshal(rr.Body.Bytes(), &resp)
	assert.NoError(t, err, "failed to parse response body")

	// Check the response body
	assert.Equal(t, "ok", resp.Status, "handler returned unexpected body")
}

func TestHealthHandler_Failing(t *testing.T) {
	rr := httptest.NewRecorder()
	handler := HealthHandler(func(ctx context.Context) error { return errors.New("still seeding") })

	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var resp HealthResponse
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "unavailable", resp.Status)
	assert.Equal(t, "still seeding", resp.Error)
}
