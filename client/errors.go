package client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/famomatic/nicov1/internal/nvapi"
)

var (
	// ErrInvalidInput indicates malformed input (not a video id/url, empty selection).
	ErrInvalidInput = errors.New("invalid input")
	// ErrLoginRequired indicates an authenticated session is required.
	ErrLoginRequired = errors.New("login required")
	// ErrPremiumRequired indicates a premium account is required.
	ErrPremiumRequired = errors.New("premium account required")
	// ErrAuthFailed indicates a rejected login.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrWatchUnavailable indicates the watch page returned an error object.
	ErrWatchUnavailable = errors.New("watch data unavailable")
	// ErrAccessDenied indicates an access-rights request was rejected.
	ErrAccessDenied = errors.New("access denied")
	// ErrAPI indicates a failed or malformed API response.
	ErrAPI = errors.New("niconico api error")
	// ErrDownloadFailed indicates a failed download.
	ErrDownloadFailed = errors.New("download failed")
	// ErrExpiredToken indicates the comment thread key expired.
	ErrExpiredToken = errors.New("comment thread key expired")
)

// AuthError describes a failed login.
type AuthError struct {
	Reason string
	// FinalURL is where the login flow ended, when known.
	FinalURL string
}

func (e *AuthError) Error() string {
	if e.FinalURL != "" {
		return fmt.Sprintf("login failed: %s (url=%s)", e.Reason, e.FinalURL)
	}
	return "login failed: " + e.Reason
}

func (e *AuthError) Is(target error) bool {
	return target == ErrAuthFailed
}

// WatchUnavailableError carries the structured error object of a watch page.
// ErrorCode is the platform code verbatim (for example "CONTENT_DELETED").
type WatchUnavailableError struct {
	VideoID        string
	StatusCode     int
	ErrorCode      string
	ReasonCode     string
	DeletedMessage string
}

func (e *WatchUnavailableError) Error() string {
	parts := []string{fmt.Sprintf("watch unavailable: video=%s status=%d code=%s", e.VideoID, e.StatusCode, e.ErrorCode)}
	if e.ReasonCode != "" {
		parts = append(parts, "reason="+e.ReasonCode)
	}
	if e.DeletedMessage != "" {
		parts = append(parts, "message="+e.DeletedMessage)
	}
	return strings.Join(parts, " ")
}

func (e *WatchUnavailableError) Is(target error) bool {
	return target == ErrWatchUnavailable
}

// AccessDeniedError reports an access-rights request that did not return 201.
type AccessDeniedError struct {
	Mode       Mode
	StatusCode int
	ErrorCode  string
}

func (e *AccessDeniedError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("access rights (%s) denied: status=%d code=%s", e.Mode, e.StatusCode, e.ErrorCode)
	}
	return fmt.Sprintf("access rights (%s) denied: status=%d", e.Mode, e.StatusCode)
}

func (e *AccessDeniedError) Is(target error) bool {
	return target == ErrAccessDenied
}

// APIError reports a failed or malformed API response, or an API call
// rejected locally before any request.
type APIError struct {
	Op         string
	StatusCode int
	ErrorCode  string
	Reason     string
	Err        error
}

func (e *APIError) Error() string {
	parts := []string{"api " + e.Op + " failed"}
	if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if e.ErrorCode != "" {
		parts = append(parts, "code="+e.ErrorCode)
	}
	if e.Reason != "" {
		parts = append(parts, e.Reason)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *APIError) Unwrap() error { return e.Err }

func (e *APIError) Is(target error) bool {
	return target == ErrAPI
}

// CommentAPIError reports a failed comment thread request. It matches
// ErrExpiredToken when the server rejected the thread key.
type CommentAPIError struct {
	StatusCode int
	ErrorCode  string
	Err        error
}

func (e *CommentAPIError) Error() string {
	msg := fmt.Sprintf("comment api failed: status=%d", e.StatusCode)
	if e.ErrorCode != "" {
		msg += " code=" + e.ErrorCode
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CommentAPIError) Unwrap() error { return e.Err }

func (e *CommentAPIError) Is(target error) bool {
	switch target {
	case ErrAPI:
		return true
	case ErrExpiredToken:
		return e.ErrorCode == nvapi.ErrorCodeExpiredToken
	}
	return false
}

// DownloadError describes a failed download.
type DownloadError struct {
	VideoID string
	Path    string
	Reason  string
	Err     error
}

func (e *DownloadError) Error() string {
	msg := "download failed: " + e.Reason
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DownloadError) Unwrap() error { return e.Err }

func (e *DownloadError) Is(target error) bool {
	return target == ErrDownloadFailed
}

// ErrorCategory is a coarse classification for CLI exit codes and logs.
type ErrorCategory string

const (
	ErrorCategoryNone            ErrorCategory = "none"
	ErrorCategoryInvalidInput    ErrorCategory = "invalid_input"
	ErrorCategoryLoginRequired   ErrorCategory = "login_required"
	ErrorCategoryPremiumRequired ErrorCategory = "premium_required"
	ErrorCategoryAuth            ErrorCategory = "auth"
	ErrorCategoryUnavailable     ErrorCategory = "unavailable"
	ErrorCategoryAccessDenied    ErrorCategory = "access_denied"
	ErrorCategoryExpiredToken    ErrorCategory = "expired_token"
	ErrorCategoryDownload        ErrorCategory = "download"
	ErrorCategoryAPI             ErrorCategory = "api"
	ErrorCategoryUnknown         ErrorCategory = "unknown"
)

// ClassifyError maps err to an ErrorCategory. Capability gates win over the
// error types that wrap them.
func ClassifyError(err error) ErrorCategory {
	switch {
	case err == nil:
		return ErrorCategoryNone
	case errors.Is(err, ErrInvalidInput):
		return ErrorCategoryInvalidInput
	case errors.Is(err, ErrLoginRequired):
		return ErrorCategoryLoginRequired
	case errors.Is(err, ErrPremiumRequired):
		return ErrorCategoryPremiumRequired
	case errors.Is(err, ErrAuthFailed):
		return ErrorCategoryAuth
	case errors.Is(err, ErrWatchUnavailable):
		return ErrorCategoryUnavailable
	case errors.Is(err, ErrAccessDenied):
		return ErrorCategoryAccessDenied
	case errors.Is(err, ErrExpiredToken):
		return ErrorCategoryExpiredToken
	case errors.Is(err, ErrDownloadFailed):
		return ErrorCategoryDownload
	case errors.Is(err, ErrAPI):
		return ErrorCategoryAPI
	}
	return ErrorCategoryUnknown
}

// apiErrorFrom converts nvapi decode failures into *APIError.
func apiErrorFrom(op string, err error) error {
	if err == nil {
		return nil
	}
	var statusErr *nvapi.StatusError
	if errors.As(err, &statusErr) {
		return &APIError{Op: op, StatusCode: statusErr.HTTPStatus, ErrorCode: statusErr.Meta.ErrorCode}
	}
	return &APIError{Op: op, Err: err}
}
