// Package etlapi is a client for the downstream ETL API that accepts feature
// collections for a layer and serves the layer's connector environment.
package etlapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/telhawk-systems/etl-central-square/internal/models"
)

// Config addresses one connection layer on the ETL API.
type Config struct {
	BaseURL    string
	Connection string
	Layer      string
	// Token is a static bearer token. Ignored when SigningSecret is set.
	Token         string
	SigningSecret string
	Timeout       time.Duration
}

type Client struct {
	baseURL    string
	connection string
	layer      string
	token      string
	signer     *TokenSigner
	httpClient *http.Client
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		baseURL:    cfg.BaseURL,
		connection: cfg.Connection,
		layer:      cfg.Layer,
		token:      cfg.Token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	if cfg.SigningSecret != "" {
		c.signer = NewTokenSigner(cfg.SigningSecret, 5*time.Minute)
	}
	return c
}

// Layer returns the layer this client is bound to.
func (c *Client) Layer() string {
	return c.layer
}

func (c *Client) layerPath() string {
	return fmt.Sprintf("%s/api/connection/%s/layer/%s",
		c.baseURL, url.PathEscape(c.connection), url.PathEscape(c.layer))
}

// SubmitFeatures posts fc to the layer's CoT endpoint.
func (c *Client) SubmitFeatures(ctx context.Context, fc *models.FeatureCollection) error {
	if c == nil {
		return fmt.Errorf("etl api client not configured")
	}

	body, err := json.Marshal(fc)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.layerPath()+"/cot", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("etl api response status %d: %s", resp.StatusCode, errorMessage(resp.Body))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// layerResponse covers both API generations: environment at the top level or
// nested under incoming.
type layerResponse struct {
	Environment map[string]any `json:"environment"`
	Incoming    *struct {
		Environment map[string]any `json:"environment"`
	} `json:"incoming"`
}

// Environment fetches the layer's connector environment.
func (c *Client) Environment(ctx context.Context) (map[string]any, error) {
	if c == nil {
		return nil, fmt.Errorf("etl api client not configured")
	}

	req, err := c.newRequest(ctx, http.MethodGet, c.layerPath(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("etl api response status %d: %s", resp.StatusCode, errorMessage(resp.Body))
	}

	var layer layerResponse
	if err := json.NewDecoder(resp.Body).Decode(&layer); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	switch {
	case layer.Incoming != nil && layer.Incoming.Environment != nil:
		return layer.Incoming.Environment, nil
	case layer.Environment != nil:
		return layer.Environment, nil
	default:
		return map[string]any{}, nil
	}
}

func (c *Client) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	token := c.token
	if c.signer != nil {
		token, err = c.signer.Sign(c.layer)
		if err != nil {
			return nil, fmt.Errorf("sign token: %w", err)
		}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// errorMessage extracts the API's {"message": ...} error text.
func errorMessage(r io.Reader) string {
	var body struct {
		Message string `json:"message"`
	}
	_ = json.NewDecoder(io.LimitReader(r, 64*1024)).Decode(&body)
	return body.Message
}
