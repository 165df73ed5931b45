package room

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPProvider talks to a media room service (LiveKit-style token server)
// over JSON/HTTP:
//
//	POST   {base}/v1/rooms                      -> {"name": ..., "url": ...}
//	POST   {base}/v1/rooms/{name}/token {role}  -> {"token": ...}
//	DELETE {base}/v1/rooms/{name}
type HTTPProvider struct {
	BaseURL string
	APIKey  string

	Client *http.Client
}

func NewHTTPProvider(baseURL, apiKey string) *HTTPProvider {
	return &HTTPProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *HTTPProvider) do(ctx context.Context, method, path string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.BaseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("room provider %s %s: status %d: %s", method, path, resp.StatusCode, slurp)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (p *HTTPProvider) CreateRoom(ctx context.Context, sessionID string) (Room, error) {
	var r Room
	err := p.do(ctx, http.MethodPost, "/v1/rooms", map[string]string{"session_id": sessionID}, &r)
	return r, err
}

func (p *HTTPProvider) IssueAccessToken(ctx context.Context, r Room, role string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	err := p.do(ctx, http.MethodPost, "/v1/rooms/"+r.Name+"/token", map[string]string{"role": role}, &out)
	return out.Token, err
}

func (p *HTTPProvider) DeleteRoom(ctx context.Context, r Room) error {
	return p.do(ctx, http.MethodDelete, "/v1/rooms/"+r.Name, nil, nil)
}
