package provider

import (
	"errors"
	"fmt"
)

var (
	// ErrRunNotFound indicates the run doesn't exist in the provider.
	// Terminal: polling a permanently invalid run id cannot succeed.
	ErrRunNotFound = errors.New("run not found in provider")

	// ErrUnauthorized indicates provider authentication failed
	ErrUnauthorized = errors.New("provider authentication failed")

	// ErrProviderUnavailable indicates the provider is temporarily
	// unavailable (5xx). Callers should retry after the poll interval.
	ErrProviderUnavailable = errors.New("provider temporarily unavailable")
)

// DispatchError indicates the provider rejected the workflow trigger. The
// upstream status code is preserved so the API can forward it.
type DispatchError struct {
	StatusCode int
	Message    string
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch rejected with status %d: %s", e.StatusCode, e.Message)
}

// ProviderError represents any other provider-specific error. 4xx codes are
// terminal for polling; retrying a malformed or unauthorized request will not
// succeed.
type ProviderError struct {
	Code    int
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider error %d: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
