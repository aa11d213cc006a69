package client

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{name: "nil", err: nil, want: ErrorCategoryNone},
		{name: "invalid input", err: ErrInvalidInput, want: ErrorCategoryInvalidInput},
		{name: "invalid input detail", err: &InvalidInputDetailError{Reason: "empty"}, want: ErrorCategoryInvalidInput},
		{name: "login required", err: ErrLoginRequired, want: ErrorCategoryLoginRequired},
		{name: "premium wrapped in api", err: &APIError{Op: "comments", Err: ErrPremiumRequired}, want: ErrorCategoryPremiumRequired},
		{name: "auth", err: &AuthError{Reason: "credentials rejected"}, want: ErrorCategoryAuth},
		{name: "unavailable", err: &WatchUnavailableError{ErrorCode: "CONTENT_DELETED"}, want: ErrorCategoryUnavailable},
		{name: "access denied", err: &AccessDeniedError{StatusCode: 403}, want: ErrorCategoryAccessDenied},
		{name: "expired token", err: &CommentAPIError{StatusCode: 400, ErrorCode: "EXPIRED_TOKEN"}, want: ErrorCategoryExpiredToken},
		{name: "comment api", err: &CommentAPIError{StatusCode: 500}, want: ErrorCategoryAPI},
		{name: "download detail", err: &DownloadError{Reason: "already exists"}, want: ErrorCategoryDownload},
		{name: "wrapped api", err: fmt.Errorf("outer: %w", &APIError{Op: "videos", StatusCode: 404}), want: ErrorCategoryAPI},
		{name: "unknown", err: errors.New("boom"), want: ErrorCategoryUnknown},
	}
	for _, tt := range tests {
		got := ClassifyError(tt.err)
		if got != tt.want {
			t.Fatalf("%s: ClassifyError()=%q want=%q", tt.name, got, tt.want)
		}
	}
}

func TestCommentAPIError_ExpiredOnlyForExpiredCode(t *testing.T) {
	if errors.Is(&CommentAPIError{StatusCode: 400, ErrorCode: "INVALID_PARAMETER"}, ErrExpiredToken) {
		t.Fatalf("INVALID_PARAMETER must not match ErrExpiredToken")
	}
	if !errors.Is(&CommentAPIError{StatusCode: 400, ErrorCode: "EXPIRED_TOKEN"}, ErrAPI) {
		t.Fatalf("CommentAPIError must match ErrAPI")
	}
}

func TestDownloadError_Unwraps(t *testing.T) {
	inner := errors.New("disk full")
	err := &DownloadError{Reason: "transfer failed", Path: "/tmp/x.mp4", Err: inner}
	if !errors.Is(err, inner) || !errors.Is(err, ErrDownloadFailed) {
		t.Fatalf("DownloadError does not unwrap: %v", err)
	}
}
