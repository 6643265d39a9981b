package playback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/membership-portal/internal/platform/api"
	"github.com/example/membership-portal/internal/progress"
)

const syncPath = "/progress/sync"

// HTTPTransport talks to the sync endpoint. It satisfies Sender, ProgressReader and Beacon.
type HTTPTransport struct {
	BaseURL string
	// Token is sent as a bearer token; beacons use it as the session cookie
	// because the browser primitive they stand in for cannot set headers.
	Token         string
	SessionCookie string
	Client        *http.Client
	Log           *zap.Logger
}

func NewHTTPTransport(baseURL, token string, log *zap.Logger) *HTTPTransport {
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPTransport{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		Token:         token,
		SessionCookie: "__session",
		Client:        &http.Client{Timeout: 15 * time.Second},
		Log:           log,
	}
}

func (t *HTTPTransport) Send(ctx context.Context, req progress.SyncRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+syncPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	t.authorize(httpReq)

	resp, err := t.Client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return statusError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (t *HTTPTransport) Fetch(ctx context.Context, contentItemID string) (*progress.View, error) {
	u := t.BaseURL + syncPath + "?contentItemId=" + url.QueryEscape(contentItemID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	t.authorize(httpReq)

	resp, err := t.Client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}
	var out progress.ReadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode progress: %w", err)
	}
	return out.Progress, nil
}

// Beacon posts once in the background and never reads the response.
func (t *HTTPTransport) Beacon(req progress.SyncRequest) {
	body, err := json.Marshal(req)
	if err != nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+syncPath+"?transport=beacon", bytes.NewReader(body))
		if err != nil {
			return
		}
		httpReq.Header.Set("Content-Type", "text/plain;charset=UTF-8")
		if t.Token != "" {
			httpReq.AddCookie(&http.Cookie{Name: t.SessionCookie, Value: t.Token})
		}
		resp, err := t.Client.Do(httpReq)
		if err != nil {
			t.Log.Debug("progress beacon failed", zap.Error(err))
			return
		}
		_ = resp.Body.Close()
	}()
}

func (t *HTTPTransport) authorize(r *http.Request) {
	if t.Token != "" {
		r.Header.Set("Authorization", "Bearer "+t.Token)
	}
}

func statusError(resp *http.Response) error {
	se := &StatusError{StatusCode: resp.StatusCode}
	var env api.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&env); err == nil {
		se.Code = env.Error.Code
	}
	return se
}
