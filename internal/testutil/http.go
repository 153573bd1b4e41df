package testutil

import (
	"bufio"
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"

	"artistsync/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// HTTPTestHelper provides utilities for HTTP testing
type HTTPTestHelper struct {
	t      *testing.T
	router *gin.Engine
}

// NewHTTPTestHelper creates a new HTTP test helper
func NewHTTPTestHelper(t *testing.T) *HTTPTestHelper {
	gin.SetMode(gin.TestMode)
	return &HTTPTestHelper{
		t:      t,
		router: gin.New(),
	}
}

// SetRouter sets the gin router to use for testing
func (h *HTTPTestHelper) SetRouter(router *gin.Engine) {
	h.router = router
}

// Router returns the gin router under test
func (h *HTTPTestHelper) Router() *gin.Engine {
	return h.router
}

// PostJSON performs a POST request with JSON payload
func (h *HTTPTestHelper) PostJSON(url string, payload any) *httptest.ResponseRecorder {
	return h.PostJSONWithHeaders(url, payload, nil)
}

// PostJSONWithHeaders performs a POST request with JSON payload and custom headers
func (h *HTTPTestHelper) PostJSONWithHeaders(url string, payload any, headers map[string]string) *httptest.ResponseRecorder {
	body, err := json.Marshal(payload)
	require.NoError(h.t, err, "Failed to marshal JSON payload")

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(body))
	require.NoError(h.t, err, "Failed to create HTTP request")

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	recorder := httptest.NewRecorder()
	h.router.ServeHTTP(recorder, req)

	return recorder
}

// PostRaw performs a POST request with a raw body
func (h *HTTPTestHelper) PostRaw(url, body string) *httptest.ResponseRecorder {
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(h.t, err, "Failed to create HTTP request")
	req.Header.Set("Content-Type", "application/json")

	recorder := httptest.NewRecorder()
	h.router.ServeHTTP(recorder, req)
	return recorder
}

// GetJSON performs a GET request expecting JSON response
func (h *HTTPTestHelper) GetJSON(url string) *httptest.ResponseRecorder {
	return h.GetWithHeaders(url, map[string]string{"Accept": "application/json"})
}

// GetWithHeaders performs a GET request with custom headers
func (h *HTTPTestHelper) GetWithHeaders(url string, headers map[string]string) *httptest.ResponseRecorder {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(h.t, err, "Failed to create HTTP request")

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	recorder := httptest.NewRecorder()
	h.router.ServeHTTP(recorder, req)

	return recorder
}

// AssertJSONResponse asserts that the response is valid JSON and unmarshals it
func (h *HTTPTestHelper) AssertJSONResponse(recorder *httptest.ResponseRecorder, expectedStatus int, target any) {
	require.Equal(h.t, expectedStatus, recorder.Code, "Unexpected status code: %s", recorder.Body.String())
	require.Equal(h.t, "application/json; charset=utf-8", recorder.Header().Get("Content-Type"), "Expected JSON content type")

	err := json.Unmarshal(recorder.Body.Bytes(), target)
	require.NoError(h.t, err, "Failed to unmarshal JSON response")
}

// AssertErrorResponse asserts that the response contains an error and returns its kind
func (h *HTTPTestHelper) AssertErrorResponse(recorder *httptest.ResponseRecorder, expectedStatus int, expectedErrorSubstring string) string {
	require.Equal(h.t, expectedStatus, recorder.Code, "Unexpected status code: %s", recorder.Body.String())

	var errorResponse struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	err := json.Unmarshal(recorder.Body.Bytes(), &errorResponse)
	require.NoError(h.t, err, "Failed to unmarshal error response")

	require.NotEmpty(h.t, errorResponse.Error, "Expected error field in response")
	require.Contains(h.t, errorResponse.Error, expectedErrorSubstring, "Error message should contain expected substring")
	return errorResponse.Kind
}

// ParseNDJSON decodes a streamed response into its events, in order
func (h *HTTPTestHelper) ParseNDJSON(recorder *httptest.ResponseRecorder) []models.LogEvent {
	require.Equal(h.t, http.StatusOK, recorder.Code, "Unexpected status code")
	require.Equal(h.t, "application/x-ndjson; charset=utf-8", recorder.Header().Get("Content-Type"), "Expected NDJSON content type")

	var events []models.LogEvent
	scanner := bufio.NewScanner(recorder.Body)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var event models.LogEvent
		require.NoError(h.t, json.Unmarshal(line, &event), "Failed to decode event %q", line)
		events = append(events, event)
	}
	require.NoError(h.t, scanner.Err())
	return events
}
