package openai

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrEmptyMessages  = errors.New("no messages to send")
	ErrMissingAPIKey  = errors.New("missing openai api key")
	ErrUnknownApiType = errors.New("unknown api type")
)

// maxErrorBodySize caps how much of an error response body is kept.
const maxErrorBodySize = 1 << 16

// APIError is returned when the endpoint answers with a non-2xx status,
// after retries are exhausted for retryable statuses.
type APIError struct {
	StatusCode int
	Status     string
	Type       string
	Code       string
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("openai: %s (status %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("openai: unexpected status %d: %s", e.StatusCode, strings.TrimSpace(string(e.Body)))
}

func (e *APIError) IsRetryable() bool {
	return IsRetryableStatus(e.StatusCode)
}

// TransportError is returned when no response could be obtained from the endpoint.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "openai: transport error: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRetryableStatus reports whether a response status is worth retrying: rate limiting and server errors.
func IsRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code < 600)
}

type errorResponse struct {
	Error struct {
		Message string      `json:"message"`
		Type    string      `json:"type"`
		Code    interface{} `json:"code"`
	} `json:"error"`
}

func parseStatusError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	ret := &APIError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       body,
	}

	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil {
		ret.Message = er.Error.Message
		ret.Type = er.Error.Type
		if er.Error.Code != nil {
			ret.Code = fmt.Sprint(er.Error.Code)
		}
	}

	return ret
}
