package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/famomatic/nicov1/internal/nvapi"
)

// GetWatchData resolves input (video id or watch URL) to its watch session.
// Sessions are served from the cache while fresh.
func (c *Client) GetWatchData(ctx context.Context, input string) (*WatchSession, error) {
	videoID, err := ExtractVideoID(input)
	if err != nil {
		return nil, err
	}
	if s, ok := c.cachedSession(videoID); ok {
		c.debugf("watch %s: cached session", videoID)
		return s, nil
	}

	ctx, cancel := withDefaultTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("responseType", "json")
	target := strings.TrimRight(c.endpoints.WWW, "/") + "/watch/" + url.PathEscape(videoID) + "?" + q.Encode()
	resp, err := c.get(ctx, target, nil)
	if err != nil {
		return nil, err
	}

	ok := resp.StatusCode == http.StatusOK
	data, werr, err := nvapi.DecodeWatch(resp.Body, ok)
	if err != nil {
		if !ok {
			return nil, &APIError{Op: "watch", StatusCode: resp.StatusCode, Err: err}
		}
		return nil, apiErrorFrom("watch", err)
	}
	if werr != nil {
		status := werr.StatusCode
		if status == 0 {
			status = resp.StatusCode
		}
		c.warnf("watch %s unavailable: %s", videoID, werr.ErrorCode)
		return nil, &WatchUnavailableError{
			VideoID:        videoID,
			StatusCode:     status,
			ErrorCode:      werr.ErrorCode,
			ReasonCode:     werr.ReasonCode,
			DeletedMessage: werr.DeletedMessage,
		}
	}
	c.storeSession(videoID, data)
	return data, nil
}

// IsUnavailable reports whether err is a watch error with the given code
// (for example "CONTENT_DELETED"); an empty code matches any.
func IsUnavailable(err error, code string) bool {
	var werr *WatchUnavailableError
	if !errors.As(err, &werr) {
		return false
	}
	return code == "" || werr.ErrorCode == code
}
