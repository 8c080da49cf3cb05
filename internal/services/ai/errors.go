package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"google.golang.org/api/googleapi"
)

// APIError represents an error from the AI provider API
type APIError struct {
	Message     string
	Type        string
	Code        string
	StatusCode  int
	IsPermanent bool // true for quota errors, false for rate limits
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d, type %s): %s", e.StatusCode, e.Type, e.Message)
}

// ExternalServiceError is returned for every failed call to the AI capability:
// unreachable, errored, timed out or cancelled
type ExternalServiceError struct {
	Op      string
	Err     error
	Timeout bool
}

func (e *ExternalServiceError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("AI service timed out during %s", e.Op)
	}
	return fmt.Sprintf("AI service failed during %s: %v", e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// IsExternalServiceError reports whether err is or wraps an ExternalServiceError
func IsExternalServiceError(err error) bool {
	var ese *ExternalServiceError
	return errors.As(err, &ese)
}

// IsRateLimitError checks if an error is a rate limit error
func IsRateLimitError(err error) bool {
	apiErr := ExtractAPIError(err)
	return apiErr != nil && apiErr.StatusCode == http.StatusTooManyRequests && !apiErr.IsPermanent
}

// IsQuotaError checks if an error is a quota exhaustion error
func IsQuotaError(err error) bool {
	apiErr := ExtractAPIError(err)
	return apiErr != nil && (apiErr.IsPermanent || apiErr.Code == "insufficient_quota")
}

// IsRetryable reports whether a failed call may succeed if repeated:
// rate limits and server side errors
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	apiErr := ExtractAPIError(err)
	if apiErr == nil || apiErr.IsPermanent {
		return false
	}
	return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
}

// ExtractAPIError extracts API error details from an error returned by
// either provider SDK. It returns nil when err carries no API status.
func ExtractAPIError(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var openaiErr *openai.Error
	if errors.As(err, &openaiErr) {
		return &APIError{
			Message:     openaiErr.Message,
			Type:        openaiErr.Type,
			Code:        openaiErr.Code,
			StatusCode:  openaiErr.StatusCode,
			IsPermanent: openaiErr.Code == "insufficient_quota",
		}
	}

	var googleErr *googleapi.Error
	if errors.As(err, &googleErr) {
		return &APIError{
			Message:    googleErr.Message,
			StatusCode: googleErr.Code,
		}
	}

	return apiErrorFromMessage(err.Error())
}

// apiErrorFromMessage recognizes API failures that only surface as text,
// such as gRPC status errors from the Gemini client
func apiErrorFromMessage(errStr string) *APIError {
	lower := strings.ToLower(errStr)

	var status int
	switch {
	case strings.Contains(lower, "429"), strings.Contains(lower, "rate limit"),
		strings.Contains(lower, "too many requests"), strings.Contains(lower, "resourceexhausted"),
		strings.Contains(lower, "resource_exhausted"):
		status = http.StatusTooManyRequests
	case strings.Contains(lower, "503"), strings.Contains(lower, "code = unavailable"):
		status = http.StatusServiceUnavailable
	case strings.Contains(lower, "500"), strings.Contains(lower, "code = internal"):
		status = http.StatusInternalServerError
	default:
		return nil
	}

	apiErr := &APIError{StatusCode: status, Message: errStr}

	// OpenAI-compatible servers embed a JSON error body in the message
	if jsonStart := strings.Index(errStr, "{"); jsonStart != -1 {
		jsonStr := errStr[jsonStart:]
		if jsonEnd := strings.LastIndex(jsonStr, "}"); jsonEnd != -1 {
			var errorData struct {
				Message string `json:"message"`
				Type    string `json:"type"`
				Code    string `json:"code"`
			}
			if json.Unmarshal([]byte(jsonStr[:jsonEnd+1]), &errorData) == nil {
				apiErr.Message = errorData.Message
				apiErr.Type = errorData.Type
				apiErr.Code = errorData.Code
				apiErr.IsPermanent = errorData.Code == "insufficient_quota"
			}
		}
	}
	if strings.Contains(lower, "quota") && strings.Contains(lower, "billing") {
		apiErr.IsPermanent = true
	}
	return apiErr
}
