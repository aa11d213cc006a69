package client

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/famomatic/nicov1/internal/dmc"
	"github.com/famomatic/nicov1/internal/nvapi"
)

// Mode selects the kind of access right to negotiate.
type Mode string

const (
	ModeHLS         Mode = "hls"
	ModeStoryboard  Mode = "storyboard"
	ModeProgressive Mode = "progressive"
)

const accessRightKeyHeader = "X-Access-Right-Key"

// AccessGrant is a time-limited authorization for a content URL.
type AccessGrant struct {
	Mode       Mode
	ContentURL string
	CreateTime time.Time
	ExpireTime time.Time
}

// Expired reports whether the grant is past its expiry. A grant without an
// expiry never expires.
func (g *AccessGrant) Expired(now time.Time) bool {
	return !g.ExpireTime.IsZero() && !now.Before(g.ExpireTime)
}

const trackIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// actionTrackID returns 10 random alphanumerics, "_", and epoch milliseconds.
func actionTrackID(now time.Time) (string, error) {
	var b strings.Builder
	limit := big.NewInt(int64(len(trackIDAlphabet)))
	for i := 0; i < 10; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(trackIDAlphabet[n.Int64()])
	}
	b.WriteByte('_')
	b.WriteString(strconv.FormatInt(now.UnixMilli(), 10))
	return b.String(), nil
}

func (c *Client) accessRightsURL(session *WatchSession, kind string) (string, error) {
	trackID, err := actionTrackID(c.now())
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("actionTrackId", trackID)
	return fmt.Sprintf("%s/v1/watch/%s/access-rights/%s?%s",
		strings.TrimRight(c.endpoints.NvAPI, "/"),
		url.PathEscape(session.Client.WatchID),
		kind,
		q.Encode(),
	), nil
}

// RequestContentURL negotiates an HLS access right for outputs. The
// response also sets the media cookie (domand_bid) in the jar.
// Progressive delivery is negotiated with OpenProgressiveSession instead.
func (c *Client) RequestContentURL(ctx context.Context, session *WatchSession, outputs []Output, mode Mode) (*AccessGrant, error) {
	if session == nil {
		return nil, fmt.Errorf("%w: nil session", ErrInvalidInput)
	}
	if mode == "" {
		mode = ModeHLS
	}
	if mode != ModeHLS {
		return nil, fmt.Errorf("%w: content url mode %q", ErrInvalidInput, mode)
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("%w: no outputs", ErrInvalidInput)
	}
	if session.Media.Domand == nil {
		return nil, &APIError{Op: "access_rights", Reason: "hls delivery unavailable"}
	}

	ctx, cancel := withDefaultTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	pairs := make([][2]string, 0, len(outputs))
	for _, o := range outputs {
		pairs = append(pairs, [2]string{o.VideoID, o.AudioID})
	}
	target, err := c.accessRightsURL(session, string(ModeHLS))
	if err != nil {
		return nil, err
	}
	extra := http.Header{}
	extra.Set(accessRightKeyHeader, session.Media.Domand.AccessRightKey)
	resp, err := c.postJSON(ctx, target, nvapi.AccessRightsRequest{Outputs: pairs}, extra)
	if err != nil {
		return nil, err
	}
	return grantFrom(ModeHLS, resp)
}

// GetStoryboardURL negotiates the storyboard access right. Premium only.
func (c *Client) GetStoryboardURL(ctx context.Context, session *WatchSession) (*AccessGrant, error) {
	if session == nil {
		return nil, fmt.Errorf("%w: nil session", ErrInvalidInput)
	}
	if err := c.requirePremium(session); err != nil {
		return nil, err
	}
	if session.Media.Domand == nil || !session.Media.Domand.IsStoryboardAvailable {
		return nil, &APIError{Op: "storyboard", Reason: "storyboard not available"}
	}

	ctx, cancel := withDefaultTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	target, err := c.accessRightsURL(session, string(ModeStoryboard))
	if err != nil {
		return nil, err
	}
	extra := http.Header{}
	extra.Set(accessRightKeyHeader, session.Media.Domand.AccessRightKey)
	resp, err := c.postJSON(ctx, target, nil, extra)
	if err != nil {
		return nil, err
	}
	return grantFrom(ModeStoryboard, resp)
}

func grantFrom(mode Mode, resp *apiResponse) (*AccessGrant, error) {
	if resp.StatusCode != http.StatusCreated {
		denied := &AccessDeniedError{Mode: mode, StatusCode: resp.StatusCode}
		var env nvapi.Envelope[json.RawMessage]
		if json.Unmarshal(resp.Body, &env) == nil {
			denied.ErrorCode = env.Meta.ErrorCode
		}
		return nil, denied
	}
	data, err := nvapi.Decode[nvapi.AccessRights](resp.Body, resp.StatusCode, http.StatusCreated)
	if err != nil {
		return nil, apiErrorFrom("access_rights", err)
	}
	if data.ContentURL == "" {
		return nil, &APIError{Op: "access_rights", StatusCode: resp.StatusCode, Reason: "contentUrl missing"}
	}
	grant := &AccessGrant{Mode: mode, ContentURL: data.ContentURL}
	grant.CreateTime, _ = time.Parse(time.RFC3339, data.CreateTime)
	grant.ExpireTime, _ = time.Parse(time.RFC3339, data.ExpireTime)
	return grant, nil
}

// ProgressiveSession is a legacy delivery session kept alive by a background
// heartbeat. Close it when the content URL is no longer needed.
type ProgressiveSession struct {
	keeper *dmc.Keeper
	output Output
}

// ContentURL is the progressive media URL bound to the session.
func (p *ProgressiveSession) ContentURL() string { return p.keeper.ContentURI() }

// SessionID is the server-assigned session id.
func (p *ProgressiveSession) SessionID() string { return p.keeper.SessionID() }

// Output is the rendition the session was created for.
func (p *ProgressiveSession) Output() Output { return p.output }

// Context is canceled when the heartbeat fails (the failure is the cause)
// or when the session is closed.
func (p *ProgressiveSession) Context() context.Context { return p.keeper.Context() }

// Close stops the heartbeat, waits for it and returns its failure, if any.
func (p *ProgressiveSession) Close() error { return p.keeper.Close() }

// OpenProgressiveSession creates a legacy delivery session for out and
// starts its heartbeat. Track ids of out that the delivery block does not
// list are replaced with the first listed ones. ctx bounds the session
// lifetime, so it should outlive the download.
func (c *Client) OpenProgressiveSession(ctx context.Context, session *WatchSession, out Output) (*ProgressiveSession, error) {
	if session == nil {
		return nil, fmt.Errorf("%w: nil session", ErrInvalidInput)
	}
	if session.Media.Delivery == nil {
		return nil, &APIError{Op: "delivery_session", Reason: "progressive delivery unavailable"}
	}
	src := session.Media.Delivery.Movie.Session
	resolved := Output{
		Label:   out.Label,
		VideoID: pickTrack(src.Videos, out.VideoID),
		AudioID: pickTrack(src.Audios, out.AudioID),
	}
	if resolved.VideoID == "" || resolved.AudioID == "" {
		return nil, &APIError{Op: "delivery_session", Reason: "no delivery tracks"}
	}

	keeper, err := dmc.Open(ctx, dmc.Config{
		HTTPClient: c.httpClient,
		Headers:    c.apiHeaders(http.MethodPost),
		Source:     src,
		VideoSrc:   resolved.VideoID,
		AudioSrc:   resolved.AudioID,
		OnBeat: func(b dmc.Beat) {
			c.debugf("heartbeat #%d ok, next in %s", b.Seq, b.Next.Sub(b.SentAt).Round(time.Millisecond))
		},
	})
	if err != nil {
		return nil, &APIError{Op: "delivery_session", Err: err}
	}
	return &ProgressiveSession{keeper: keeper, output: resolved}, nil
}

func pickTrack(listed []string, want string) string {
	for _, id := range listed {
		if id == want {
			return id
		}
	}
	if len(listed) > 0 {
		return listed[0]
	}
	return ""
}
