// Package client talks to a brandwatch server.
package client

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

	"github.com/hakim/brandwatch/internal/api"
	"github.com/hakim/brandwatch/internal/models"
	"github.com/hakim/brandwatch/internal/scan"
	"github.com/hakim/brandwatch/internal/storage"
)

// ErrPollExhausted is returned by WaitForScan when the scan is still running
// after the configured number of polls.
var ErrPollExhausted = scan.ErrPollExhausted

// HTTPError is a non-2xx response. A 404 unwraps to storage.ErrNotFound.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

func (e *HTTPError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return storage.ErrNotFound
	}
	return nil
}

type Client struct {
	baseURL    string
	httpClient *http.Client

	// PollInterval and PollAttempts bound WaitForScan.
	PollInterval time.Duration
	PollAttempts int
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		PollInterval: 5 * time.Second,
		PollAttempts: 120,
	}
}

func (c *Client) CreateBrand(ctx context.Context, req api.CreateBrandRequest) (api.CreateBrandResponse, error) {
	var out api.CreateBrandResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/brands", nil, req, &out)
	return out, err
}

func (c *Client) ListBrands(ctx context.Context) ([]*models.Brand, error) {
	var out []*models.Brand
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/brands", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetBrand(ctx context.Context, id string) (*models.Brand, error) {
	var out models.Brand
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/brands/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateBrand(ctx context.Context, id string, upd models.BrandUpdate) (*models.Brand, error) {
	var out models.Brand
	if err := c.doJSON(ctx, http.MethodPut, "/api/v1/brands/"+url.PathEscape(id), nil, upd, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) TriggerScan(ctx context.Context, req api.CreateScanRequest) (api.CreateScanResponse, error) {
	var out api.CreateScanResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/scans", nil, req, &out)
	return out, err
}

func (c *Client) ScanStatus(ctx context.Context, id string) (models.ScanStatusView, error) {
	var out models.ScanStatusView
	err := c.doJSON(ctx, http.MethodGet, "/api/v1/scans/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

func (c *Client) CancelScan(ctx context.Context, id string) (models.ScanStatusView, error) {
	var out models.ScanStatusView
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/scans/"+url.PathEscape(id)+"/cancel", nil, nil, &out)
	return out, err
}

func (c *Client) ListScans(ctx context.Context, brandID string) ([]*models.Scan, error) {
	var out []*models.Scan
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/brands/"+url.PathEscape(brandID)+"/scans", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListFindings(ctx context.Context, scanID string) ([]models.Finding, error) {
	var out []models.Finding
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/scans/"+url.PathEscape(scanID)+"/findings", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListThreats(ctx context.Context, filter models.ThreatFilter) ([]*models.Threat, error) {
	q := url.Values{}
	if filter.Severity != "" {
		q.Set("severity", string(filter.Severity))
	}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	var out []*models.Threat
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/brands/"+url.PathEscape(filter.BrandID)+"/threats", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SetThreatStatus(ctx context.Context, id string, to models.ThreatStatus) (*models.Threat, error) {
	var out models.Threat
	body := map[string]string{"status": string(to)}
	if err := c.doJSON(ctx, http.MethodPatch, "/api/v1/threats/"+url.PathEscape(id), nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ReopenThreat(ctx context.Context, id string) (*models.Threat, error) {
	var out models.Threat
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/threats/"+url.PathEscape(id)+"/reopen", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetAlertPolicy(ctx context.Context, userID string) (*models.AlertPolicy, error) {
	var out models.AlertPolicy
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/users/"+url.PathEscape(userID)+"/alert-policy", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) PutAlertPolicy(ctx context.Context, userID string, req api.PolicyRequest) (*models.AlertPolicy, error) {
	var out models.AlertPolicy
	if err := c.doJSON(ctx, http.MethodPut, "/api/v1/users/"+url.PathEscape(userID)+"/alert-policy", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WaitForScan polls the scan until it is terminal. onUpdate sees every
// status read. After PollAttempts reads it returns the last view together
// with ErrPollExhausted; the scan keeps running on the server.
func (c *Client) WaitForScan(ctx context.Context, id string, onUpdate func(models.ScanStatusView)) (models.ScanStatusView, error) {
	return scan.Poll(ctx, c.PollInterval, c.PollAttempts, func(ctx context.Context) (models.ScanStatusView, error) {
		return c.ScanStatus(ctx, id)
	}, onUpdate)
}

func (c *Client) doJSON(ctx context.Context, method, path string, q url.Values, body any, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		msg := strings.TrimSpace(string(b))
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(b, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &HTTPError{Method: method, Path: path, StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
