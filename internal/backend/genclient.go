/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

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

	"gocomposer/internal/bridge"
)

// maxAssetBytes caps downloads of generated assets.
const maxAssetBytes = 32 << 20

// GenClient is a minimal HTTP client for a content generation service.
//
// The service accepts POST /v1/generate with a JSON GenerateRequest and answers with
// the asset location and, when known, its size. Images without a size are downloaded
// when FetchAssets is set so they can be placed at their natural aspect ratio.
type GenClient struct {
	BaseURL     string
	Token       string // bearer token
	FetchAssets bool
	client      *http.Client
}

var _ bridge.GenerationClient = (*GenClient)(nil)

// NewGenClient creates a client. baseURL may include a trailing slash; it will be normalized.
func NewGenClient(baseURL, token string, timeout time.Duration) *GenClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GenClient{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		Token:       token,
		FetchAssets: true,
		client:      &http.Client{Timeout: timeout},
	}
}

type generateResponse struct {
	URL      string  `json:"url"`
	MIME     string  `json:"mime"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Duration float64 `json:"duration"`
	// Data is the base64 encoded asset when the service inlines it.
	Data []byte `json:"data"`
}

// Generate asks the service for new content.
func (c *GenClient) Generate(ctx context.Context, req bridge.GenerateRequest) (bridge.GenerateResult, error) {
	var resp generateResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/generate", req, &resp); err != nil {
		return bridge.GenerateResult{}, err
	}
	if strings.TrimSpace(resp.URL) == "" {
		return bridge.GenerateResult{}, fmt.Errorf("generate: response has no url")
	}
	res := bridge.GenerateResult{
		URL:      c.resolve(resp.URL),
		MIME:     resp.MIME,
		Width:    resp.Width,
		Height:   resp.Height,
		Duration: resp.Duration,
		Data:     resp.Data,
	}
	if c.FetchAssets && isImage(req, res) && (res.Width <= 0 || res.Height <= 0) && len(res.Data) == 0 {
		data, err := c.fetch(ctx, res.URL)
		if err != nil {
			return bridge.GenerateResult{}, err
		}
		res.Data = data
	}
	return res, nil
}

// Health reports whether the service answers its health endpoint.
func (c *GenClient) Health(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, c.BaseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health: %s", resp.Status)
	}
	return nil
}

func (c *GenClient) doJSON(ctx context.Context, method, path string, body, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(method, u.Path, resp)
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

func (c *GenClient) fetch(ctx context.Context, assetURL string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch asset: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(http.MethodGet, req.URL.Path, resp)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetBytes+1))
	if err != nil {
		return nil, fmt.Errorf("fetch asset: %w", err)
	}
	if len(data) > maxAssetBytes {
		return nil, fmt.Errorf("fetch asset: larger than %d bytes", maxAssetBytes)
	}
	return data, nil
}

func (c *GenClient) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	// Only send credentials to the configured service.
	if c.Token != "" && strings.HasPrefix(target, c.BaseURL) {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	return req, nil
}

// resolve makes a relative asset URL absolute against BaseURL.
func (c *GenClient) resolve(ref string) string {
	base, err := url.Parse(c.BaseURL + "/")
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(r).String()
}

func isImage(req bridge.GenerateRequest, res bridge.GenerateResult) bool {
	if res.MIME != "" {
		return strings.HasPrefix(res.MIME, "image/")
	}
	return req.Media == "" || req.Media == "image"
}

func statusError(method, path string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(snippet))
	if msg == "" {
		return fmt.Errorf("server %s %s: %s", method, path, resp.Status)
	}
	return fmt.Errorf("server %s %s: %s: %s", method, path, resp.Status, msg)
}
