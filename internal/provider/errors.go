package provider

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrNoChoices is returned when a successful response carries no choices.
var ErrNoChoices = errors.New("no choices in response")

// APIError is a non-2xx response from a completion endpoint.
type APIError struct {
	StatusCode int
	Message    string
	Type       string
	Code       string
}

func (e *APIError) Error() string {
	return e.Message
}

// parseAPIError extracts the {"error":{"message","type","code"}} envelope, falling back to "status N".
func parseAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode}

	if gjson.ValidBytes(body) {
		envelope := gjson.GetBytes(body, "error")
		apiErr.Message = envelope.Get("message").String()
		apiErr.Type = envelope.Get("type").String()
		apiErr.Code = envelope.Get("code").String()
	}

	if apiErr.Message == "" {
		apiErr.Message = fmt.Sprintf("status %d", statusCode)
	}

	return apiErr
}
