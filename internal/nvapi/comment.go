package nvapi

import (
	"encoding/json"
	"fmt"
	"time"
)

// Fork names used by the comment API.
const (
	ForkMain  = "main"
	ForkOwner = "owner"
	ForkEasy  = "easy"
)

// ErrorCodeExpiredToken is returned by the thread server when the thread key
// is stale.
const ErrorCodeExpiredToken = "EXPIRED_TOKEN"

// CommentRequest is the body posted to {server}/v1/threads.
type CommentRequest struct {
	ThreadKey   string            `json:"threadKey"`
	Params      string            `json:"params"`
	Additionals CommentAdditional `json:"additionals"`
}

type CommentAdditional struct {
	When int64 `json:"when,omitempty"`
}

// NewCommentRequest builds a request body; params are embedded as a JSON string.
func NewCommentRequest(threadKey string, params NvCommentParams, when time.Time) (CommentRequest, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return CommentRequest{}, err
	}
	req := CommentRequest{ThreadKey: threadKey, Params: string(raw)}
	if !when.IsZero() {
		req.Additionals.When = when.Unix()
	}
	return req, nil
}

// CommentResponse is the thread server response.
type CommentResponse struct {
	Meta Meta         `json:"meta"`
	Data *CommentData `json:"data"`
}

type CommentData struct {
	GlobalComments []GlobalComment `json:"globalComments"`
	Threads        []Thread        `json:"threads"`
}

type GlobalComment struct {
	ID    string `json:"id"`
	Count int64  `json:"count"`
}

// Thread is one fork of a comment thread.
type Thread struct {
	ID           string    `json:"id"`
	Fork         string    `json:"fork"`
	CommentCount int64     `json:"commentCount"`
	Comments     []Comment `json:"comments"`
}

// Comment is a single comment record. (Thread, No) is unique.
type Comment struct {
	ID          string   `json:"id"`
	No          int64    `json:"no"`
	VposMs      int64    `json:"vposMs"`
	Body        string   `json:"body"`
	Commands    []string `json:"commands"`
	UserID      string   `json:"userId"`
	IsPremium   bool     `json:"isPremium"`
	Score       int64    `json:"score"`
	PostedAt    string   `json:"postedAt"`
	NicoruCount int64    `json:"nicoruCount"`
	NicoruID    *string  `json:"nicoruId"`
	Source      string   `json:"source"`
	IsMyPost    bool     `json:"isMyPost"`

	Thread string `json:"threadId,omitempty"`
	Fork   string `json:"fork,omitempty"`
}

// PostedTime parses PostedAt (RFC 3339).
func (c Comment) PostedTime() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, c.PostedAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: postedAt %q", ErrSchema, c.PostedAt)
	}
	return t, nil
}
