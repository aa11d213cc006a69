// Package dmc creates legacy delivery sessions and keeps them alive.
package dmc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/famomatic/nicov1/internal/nvapi"
)

// ErrNoEndpoint indicates the delivery block lists no session URL.
var ErrNoEndpoint = errors.New("delivery session endpoint missing")

// Session is the server-side delivery session as last reported by the server.
type Session struct {
	ID         string
	ContentURI string
	Lifetime   time.Duration

	// raw is the full data object echoed back on every heartbeat.
	raw json.RawMessage
}

type sessionData struct {
	Session struct {
		ID         string `json:"id"`
		ContentURI string `json:"content_uri"`
		KeepMethod struct {
			Heartbeat struct {
				Lifetime int64 `json:"lifetime"`
			} `json:"heartbeat"`
		} `json:"keep_method"`
	} `json:"session"`
}

// HTTPStatusError reports a rejected session request.
type HTTPStatusError struct {
	Op         string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("delivery session %s failed: status=%d", e.Op, e.StatusCode)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// Endpoint returns the session creation URL from the delivery block.
func Endpoint(src nvapi.DeliverySession) (nvapi.DeliveryURL, error) {
	for _, u := range src.URLs {
		if strings.TrimSpace(u.URL) != "" {
			return u, nil
		}
	}
	return nvapi.DeliveryURL{}, ErrNoEndpoint
}

// BuildRequest renders the session creation payload for one video/audio pair.
func BuildRequest(src nvapi.DeliverySession, endpoint nvapi.DeliveryURL, videoSrc, audioSrc string) ([]byte, error) {
	protocol := "http"
	if len(src.Protocols) > 0 {
		protocol = src.Protocols[0]
	}
	payload := map[string]any{
		"session": map[string]any{
			"client_info": map[string]any{"player_id": src.PlayerID},
			"content_auth": map[string]any{
				"auth_type":           src.AuthTypes[protocol],
				"content_key_timeout": src.ContentKeyTimeout,
				"service_id":          "nicovideo",
				"service_user_id":     src.ServiceUserID,
			},
			"content_id": src.ContentID,
			"content_src_id_sets": []any{map[string]any{
				"content_src_ids": []any{map[string]any{
					"src_id_to_mux": map[string]any{
						"video_src_ids": []string{videoSrc},
						"audio_src_ids": []string{audioSrc},
					},
				}},
			}},
			"content_type": "movie",
			"content_uri":  "",
			"keep_method": map[string]any{
				"heartbeat": map[string]any{"lifetime": src.HeartbeatLifetime},
			},
			"priority": src.Priority,
			"protocol": map[string]any{
				"name": "http",
				"parameters": map[string]any{
					"http_parameters": map[string]any{
						"parameters": map[string]any{
							"http_output_download_parameters": map[string]any{
								"use_ssl":             yesNo(endpoint.IsSSL),
								"use_well_known_port": yesNo(endpoint.IsWellKnownPort),
							},
						},
					},
				},
			},
			"recipe_id": src.RecipeID,
			"session_operation_auth": map[string]any{
				"session_operation_auth_by_signature": map[string]any{
					"signature": src.Signature,
					"token":     src.Token,
				},
			},
			"timing_constraint": "unlimited",
		},
	}
	return json.Marshal(payload)
}

func parseSession(body []byte) (*Session, error) {
	var env struct {
		Meta nvapi.Meta      `json:"meta"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", nvapi.ErrSchema, err)
	}
	var data sessionData
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("%w: data missing", nvapi.ErrSchema)
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", nvapi.ErrSchema, err)
	}
	if data.Session.ID == "" {
		return nil, fmt.Errorf("%w: session.id missing", nvapi.ErrSchema)
	}
	return &Session{
		ID:         data.Session.ID,
		ContentURI: data.Session.ContentURI,
		Lifetime:   time.Duration(data.Session.KeepMethod.Heartbeat.Lifetime) * time.Millisecond,
		raw:        env.Data,
	}, nil
}

func doJSON(ctx context.Context, client *http.Client, method, rawURL string, headers http.Header, body []byte, op string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, err
	}
	for k, vals := range headers {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPStatusError{Op: op, StatusCode: resp.StatusCode}
	}
	return data, nil
}
