package onramp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// errorCodeUserLimitExceeded marks the one provider error a quote caller
// treats as an expected outcome rather than a failure worth alerting on.
const errorCodeUserLimitExceeded = "user_limit_exceeded"

// APIError carries a non-success provider response. Error() concatenates the
// raw provider-supplied code and message so the caller sees exactly what the
// provider said.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("onramp api status %d: %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("onramp api status %d: %s", e.StatusCode, e.Message)
}

// IsUserLimitExceeded reports whether err is the provider's purchase-limit
// rejection on a quote request.
func IsUserLimitExceeded(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == errorCodeUserLimitExceeded
}

// decodeAPIError probes the provider's error body for the code and message
// fields it uses across endpoints. An undecodable body still yields an
// APIError carrying the raw text.
func decodeAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode}
	doc := gjson.ParseBytes(body)
	for _, key := range []string{"error_code", "code", "error"} {
		if value := doc.Get(key); value.Type == gjson.String && value.Str != "" {
			apiErr.Code = value.Str
			break
		}
	}
	for _, key := range []string{"error_message", "message"} {
		if value := doc.Get(key); value.Type == gjson.String && value.Str != "" {
			apiErr.Message = value.Str
			break
		}
	}
	if apiErr.Code == "" && apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}
