package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/arcreactor/workspace/internal/infrastructure/resilience"
)

// APIError is a non-2xx backend response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// errorBody is the FastAPI error shape. Detail is a string for handled
// errors and a list for request validation failures.
type errorBody struct {
	Detail any `json:"detail"`
}

func newAPIError(resp *resty.Response) *APIError {
	msg := http.StatusText(resp.StatusCode())
	if body, ok := resp.Error().(*errorBody); ok && body != nil {
		if detail, ok := body.Detail.(string); ok && detail != "" {
			msg = detail
		}
	}
	if msg == "" {
		msg = "Request failed"
	}
	return &APIError{Status: resp.StatusCode(), Message: msg}
}

// isBackendHealthy classifies outcomes for the circuit breaker: client
// errors mean the backend answered.
func isBackendHealthy(err error) bool {
	if err == nil {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError
}

func errorType(err error) string {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return "http"
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		return "circuit_open"
	default:
		return "transport"
	}
}
