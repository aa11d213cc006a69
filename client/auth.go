package client

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/publicsuffix"
)

const (
	loginAuthID       = "1158188129"
	userSessionCookie = "user_session"
	authFlagHeader    = "x-niconico-authflag"
	defaultDeviceName = "nicov1"
)

// LoginOptions configures Login.
type LoginOptions struct {
	// MFA returns the one-time password when the account asks for one.
	MFA func(ctx context.Context) (string, error)
	// DeviceName is reported with the one-time password. Default "nicov1".
	DeviceName string
}

// Login signs in with mail address and password. On success the session
// cookie lives in the client's jar and Premium reflects the account.
func (c *Client) Login(ctx context.Context, mail, password string, opts LoginOptions) error {
	ctx, cancel := withDefaultTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	if mail == "" || password == "" {
		return fmt.Errorf("%w: mail and password are required", ErrInvalidInput)
	}
	c.resetAuth()
	form := url.Values{}
	form.Set("mail_tel", mail)
	form.Set("password", password)
	form.Set("auth_id", loginAuthID)
	target := strings.TrimRight(c.endpoints.Account, "/") + "/login/redirector?site=niconico&next_url=%2F"

	resp, err := c.postForm(ctx, target, form)
	if err != nil {
		return err
	}
	if strings.Contains(resp.FinalURL.Path, "/mfa") {
		resp, err = c.submitMFA(ctx, resp, opts)
		if err != nil {
			return err
		}
	}
	return c.finishLogin(resp)
}

func (c *Client) submitMFA(ctx context.Context, page *apiResponse, opts LoginOptions) (*apiResponse, error) {
	if opts.MFA == nil {
		return nil, &AuthError{Reason: "mfa required", FinalURL: page.FinalURL.String()}
	}
	action := page.FinalURL
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err == nil {
		if raw, ok := doc.Find("form[action]").First().Attr("action"); ok {
			if ref, err := url.Parse(raw); err == nil {
				action = page.FinalURL.ResolveReference(ref)
			}
		}
	}
	otp, err := opts.MFA(ctx)
	if err != nil {
		return nil, &AuthError{Reason: "mfa prompt: " + err.Error()}
	}
	device := opts.DeviceName
	if device == "" {
		device = defaultDeviceName
	}
	form := url.Values{}
	form.Set("otp", strings.TrimSpace(otp))
	form.Set("device_name", device)
	c.debugf("submitting one-time password to %s", action)
	return c.postForm(ctx, action.String(), form)
}

// LoginWithSession signs in with an existing user_session cookie value.
func (c *Client) LoginWithSession(ctx context.Context, userSession string) error {
	ctx, cancel := withDefaultTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	if userSession == "" {
		return fmt.Errorf("%w: empty user_session", ErrInvalidInput)
	}
	c.resetAuth()
	if c.jar == nil {
		return &AuthError{Reason: "no cookie jar"}
	}
	top, err := url.Parse(c.topPage())
	if err != nil {
		return err
	}
	c.jar.SetCookies(top, []*http.Cookie{{
		Name:   userSessionCookie,
		Value:  userSession,
		Path:   "/",
		Domain: cookieDomain(top.Hostname()),
		Secure: top.Scheme == "https",
	}})

	resp, err := c.get(ctx, top.String(), nil)
	if err != nil {
		return err
	}
	return c.finishLogin(resp)
}

// finishLogin checks where the flow ended and records the account type.
func (c *Client) finishLogin(resp *apiResponse) error {
	final := resp.FinalURL.String()
	if strings.Contains(resp.FinalURL.Path, "/login") {
		return &AuthError{Reason: "credentials rejected", FinalURL: final}
	}
	if final != c.topPage() {
		return &AuthError{Reason: "unexpected landing page", FinalURL: final}
	}
	premium, err := parseAuthFlag(resp.Header.Get(authFlagHeader))
	if err != nil {
		return err
	}
	c.authMu.Lock()
	c.auth = authState{loggedIn: true, premium: premium}
	c.authMu.Unlock()
	c.InvalidateSessions()
	c.debugf("logged in (premium=%t)", premium)
	return nil
}

// resetAuth drops the recorded login before a new attempt, so a failed
// attempt never leaves an earlier account's capabilities in place.
func (c *Client) resetAuth() {
	c.authMu.Lock()
	c.auth = authState{}
	c.authMu.Unlock()
	c.InvalidateSessions()
}

func parseAuthFlag(v string) (bool, error) {
	switch strings.TrimSpace(v) {
	case "1":
		return false, nil
	case "3":
		return true, nil
	}
	return false, &AuthError{Reason: fmt.Sprintf("unexpected %s %q", authFlagHeader, v)}
}

// cookieDomain is the registrable domain for host, or empty (host-only) for
// IP addresses and hosts without a public suffix.
func cookieDomain(host string) string {
	if net.ParseIP(host) != nil {
		return ""
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	return domain
}

// Authenticated reports whether a login succeeded.
func (c *Client) Authenticated() bool {
	c.authMu.RLock()
	defer c.authMu.RUnlock()
	return c.auth.loggedIn
}

// Premium reports whether the logged-in account is premium.
func (c *Client) Premium() bool {
	c.authMu.RLock()
	defer c.authMu.RUnlock()
	return c.auth.loggedIn && c.auth.premium
}

// Logout forgets the session: the user_session cookie is expired and cached
// watch sessions are dropped. Nothing is sent to the server.
func (c *Client) Logout() {
	c.authMu.Lock()
	c.auth = authState{}
	c.authMu.Unlock()
	if c.jar != nil {
		if top, err := url.Parse(c.topPage()); err == nil {
			c.jar.SetCookies(top, []*http.Cookie{{
				Name:   userSessionCookie,
				Path:   "/",
				Domain: cookieDomain(top.Hostname()),
				MaxAge: -1,
			}})
		}
	}
	c.InvalidateSessions()
}

func (c *Client) requireLogin() error {
	if !c.Authenticated() {
		return ErrLoginRequired
	}
	return nil
}

// requirePremium accepts a premium login, or a session whose viewer is
// premium (cookies loaded without Login).
func (c *Client) requirePremium(session *WatchSession) error {
	if c.Premium() {
		return nil
	}
	if session != nil && session.Viewer != nil && session.Viewer.IsPremium {
		return nil
	}
	return ErrPremiumRequired
}
