package nvapi

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrSchema indicates a response body that does not match the expected shape.
var ErrSchema = errors.New("unexpected response schema")

// Meta is the meta block shared by nvapi and comment API responses.
type Meta struct {
	Status    int    `json:"status"`
	ErrorCode string `json:"errorCode,omitempty"`
}

// Envelope is the generic nvapi response wrapper.
type Envelope[T any] struct {
	Meta Meta `json:"meta"`
	Data *T   `json:"data"`
}

// StatusError reports a non-success meta status or HTTP status.
type StatusError struct {
	HTTPStatus int
	Meta       Meta
}

func (e *StatusError) Error() string {
	if e.Meta.ErrorCode != "" {
		return fmt.Sprintf("nvapi status=%d code=%s", e.HTTPStatus, e.Meta.ErrorCode)
	}
	return fmt.Sprintf("nvapi status=%d", e.HTTPStatus)
}

// Decode parses an nvapi body and returns its data block. wantStatus is the
// HTTP status the endpoint reports on success (200 or 201).
func Decode[T any](body []byte, httpStatus, wantStatus int) (*T, error) {
	var env Envelope[T]
	if err := json.Unmarshal(body, &env); err != nil {
		if httpStatus != wantStatus {
			return nil, &StatusError{HTTPStatus: httpStatus}
		}
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if httpStatus != wantStatus || (env.Meta.Status != 0 && env.Meta.Status != wantStatus) {
		return nil, &StatusError{HTTPStatus: httpStatus, Meta: env.Meta}
	}
	if env.Data == nil {
		return nil, fmt.Errorf("%w: data missing", ErrSchema)
	}
	return env.Data, nil
}

// AccessRights is the data block of an access-rights response.
// ref: https://nvapi.nicovideo.jp/v1/watch/<video_id>/access-rights/<type>
type AccessRights struct {
	ContentURL string `json:"contentUrl"`
	CreateTime string `json:"createTime"`
	ExpireTime string `json:"expireTime"`
}

// AccessRightsRequest is the body of an HLS access-rights request.
type AccessRightsRequest struct {
	Outputs [][2]string `json:"outputs"`
}

// ThreadKey is the data block of the thread key endpoint.
type ThreadKey struct {
	ThreadKey string `json:"threadKey"`
}
