// Package testutil provides testing utilities for the OData batch client.
package testutil

import (
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// BatchPath is the $batch endpoint path served by MockService.
const BatchPath = "/odata/$batch"

// MockResponse defines the behavior for a mock batch response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string][]string
	Delay      time.Duration
}

// MockService is a configurable mock OData service for testing.
// Responses are served in order; the last one repeats.
type MockService struct {
	server    *httptest.Server
	mu        sync.RWMutex
	responses []MockResponse

	// Tracking
	RequestCount int
	LastHeader   http.Header
	LastBody     []byte
}

// NewMockService creates a new mock service answering 200 OK by default.
func NewMockService() *MockService {
	mock := &MockService{}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != BatchPath || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}

		body, _ := io.ReadAll(r.Body)

		mock.mu.Lock()
		mock.RequestCount++
		mock.LastHeader = r.Header.Clone()
		mock.LastBody = body
		resp := mock.next()
		mock.mu.Unlock()

		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, values := range resp.Headers {
			for _, v := range values {
				w.Header().Add(key, v)
			}
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	}))

	return mock
}

// next pops the next configured response. Caller holds mu.
func (m *MockService) next() MockResponse {
	if len(m.responses) == 0 {
		return NewBatchResponse("")
	}
	resp := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return resp
}

// URL returns the mock server URL.
func (m *MockService) URL() string {
	return m.server.URL
}

// ServiceRoot returns the OData service root of the mock.
func (m *MockService) ServiceRoot() string {
	return m.server.URL + "/odata"
}

// Close shuts down the mock server.
func (m *MockService) Close() {
	m.server.Close()
}

// SetResponses configures the responses served in order.
func (m *MockService) SetResponses(responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = responses
}

// GetRequestCount returns the number of batch requests received.
func (m *MockService) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetLastHeader returns the headers of the last batch request.
func (m *MockService) GetLastHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastHeader
}

// CountParts returns the number of top-level parts in the last batch body.
func (m *MockService) CountParts() (int, error) {
	m.mu.RLock()
	header, body := m.LastHeader, m.LastBody
	m.mu.RUnlock()

	_, params, err := mime.ParseMediaType(header.Get("Content-Type"))
	if err != nil {
		return 0, err
	}
	mr := multipart.NewReader(strings.NewReader(string(body)), params["boundary"])
	count := 0
	for {
		_, err := mr.NextPart()
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return count, err
		}
		count++
	}
}

// NewAcceptedResponse creates a 202 Accepted response pointing at a monitor.
// A negative retryAfter omits the Retry-After header.
func NewAcceptedResponse(location string, retryAfter int) MockResponse {
	headers := map[string][]string{
		"Location":           {location},
		"Preference-Applied": {"respond-async"},
		"OData-Version":      {"4.0"},
	}
	if retryAfter >= 0 {
		headers["Retry-After"] = []string{strconv.Itoa(retryAfter)}
	}
	return MockResponse{
		StatusCode: http.StatusAccepted,
		Headers:    headers,
	}
}

// NewBatchResponse creates a 200 OK multipart batch response.
func NewBatchResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string][]string{
			"Content-Type":  {"multipart/mixed; boundary=batchresponse_1"},
			"OData-Version": {"4.0"},
		},
	}
}

// NewThrottledResponse creates a 429 Too Many Requests response.
func NewThrottledResponse(retryAfter int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error":{"code":"429","message":"Too many requests"}}`,
		Headers: map[string][]string{
			"Retry-After":  {strconv.Itoa(retryAfter)},
			"Content-Type": {"application/json"},
		},
	}
}

// NewUnavailableResponse creates a 503 Service Unavailable response that
// advertises Retry-After.
func NewUnavailableResponse(retryAfter int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusServiceUnavailable,
		Body:       `{"error":{"code":"503","message":"Service unavailable"}}`,
		Headers: map[string][]string{
			"Retry-After":  {strconv.Itoa(retryAfter)},
			"Content-Type": {"application/json"},
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error":{"code":"500","message":"Internal server error"}}`,
		Headers: map[string][]string{
			"Content-Type": {"application/json"},
		},
	}
}
