package compute

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPLauncher drives a worker-runner daemon over plain JSON/HTTP:
//
//	POST   {base}/v1/workers            -> {"id": ..., "endpoint": ...}
//	POST   {base}/v1/workers/{id}/reset
//	DELETE {base}/v1/workers/{id}
type HTTPLauncher struct {
	BaseURL string
	Token   string

	Client *http.Client
}

func NewHTTPLauncher(baseURL, token string) *HTTPLauncher {
	return &HTTPLauncher{
		BaseURL: baseURL,
		Token:   token,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (l *HTTPLauncher) do(ctx context.Context, method, path string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, l.BaseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if l.Token != "" {
		req.Header.Set("Authorization", "Bearer "+l.Token)
	}

	resp, err := l.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("worker runner %s %s: status %d: %s", method, path, resp.StatusCode, slurp)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (l *HTTPLauncher) Provision(ctx context.Context, spec Spec) (Handle, error) {
	var h Handle
	if err := l.do(ctx, http.MethodPost, "/v1/workers", spec, &h); err != nil {
		return Handle{}, err
	}
	if h.LaunchedAt.IsZero() {
		h.LaunchedAt = time.Now().UTC()
	}
	return h, nil
}

func (l *HTTPLauncher) Reset(ctx context.Context, h Handle) error {
	return l.do(ctx, http.MethodPost, "/v1/workers/"+h.ID+"/reset", nil, nil)
}

func (l *HTTPLauncher) Terminate(ctx context.Context, h Handle) error {
	return l.do(ctx, http.MethodDelete, "/v1/workers/"+h.ID, nil, nil)
}
