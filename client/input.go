package client

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var videoIDPattern = regexp.MustCompile(`^(?:sm|so|nm)?[0-9]+$`)

// InvalidInputDetailError explains why an input was rejected.
type InvalidInputDetailError struct {
	Input  string
	Reason string
}

func (e *InvalidInputDetailError) Error() string {
	return fmt.Sprintf("invalid input %q: %s", e.Input, e.Reason)
}

func (e *InvalidInputDetailError) Is(target error) bool {
	return target == ErrInvalidInput
}

// ExtractVideoID accepts a raw id (sm9, so123, nm456, 1234) or a watch URL on
// nicovideo.jp or nico.ms.
func ExtractVideoID(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", &InvalidInputDetailError{Input: input, Reason: "empty"}
	}
	if videoIDPattern.MatchString(s) {
		return s, nil
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "", &InvalidInputDetailError{Input: input, Reason: "not a video id or url"}
	}
	host := strings.ToLower(u.Hostname())
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	var candidate string
	switch {
	case host == "nico.ms":
		candidate = segments[0]
	case host == "nicovideo.jp" || strings.HasSuffix(host, ".nicovideo.jp"):
		if len(segments) == 2 && segments[0] == "watch" {
			candidate = segments[1]
		}
	default:
		return "", &InvalidInputDetailError{Input: input, Reason: "unsupported_host"}
	}
	if !videoIDPattern.MatchString(candidate) {
		return "", &InvalidInputDetailError{Input: input, Reason: "missing_video_id"}
	}
	return candidate, nil
}
