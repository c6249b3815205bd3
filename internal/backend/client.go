/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storycanvas/internal/domain"
	"storycanvas/internal/store"
)

// Client talks to the canvas server and satisfies the same service
// interface as the embedded store. Status codes map back onto the store
// sentinels, so error handling upstream is identical for both.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

var _ store.CanvasService = (*Client)(nil)

// ClientOptions tune a new client. Zero values give a 10s timeout with
// strict TLS.
type ClientOptions struct {
	Timeout     time.Duration
	TLSInsecure bool
}

// NewClient creates a canvas client. baseURL may carry a trailing slash;
// it is normalized away.
func NewClient(baseURL, token string, opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	transport := http.DefaultTransport
	if opts.TLSInsecure {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		transport = t
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: opts.Timeout, Transport: transport},
	}
}

// FetchToken asks the server for a bearer token and stores it on the
// client for subsequent calls.
func (c *Client) FetchToken(ctx context.Context, subject string, ttl time.Duration) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	body := map[string]any{"subject": subject, "ttlSeconds": int64(ttl.Seconds())}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/token", body, &resp); err != nil {
		return "", err
	}
	c.Token = resp.Token
	return resp.Token, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(method, u.Path, resp)
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// apiError turns an error response into a sentinel-wrapped error.
func apiError(method, path string, resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	_ = json.Unmarshal(b, &payload)
	msg := payload.Error
	if msg == "" {
		msg = resp.Status
	}
	base := fmt.Errorf("server %s %s: %d %s", method, path, resp.StatusCode, msg)
	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w", store.ErrNotFound, base)
	case http.StatusConflict:
		return fmt.Errorf("%w: %w", store.ErrVersionConflict, base)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %w", store.ErrValidation, base)
	default:
		return base
	}
}

func (c *Client) EnsureDefaultCanvas(ctx context.Context, storybookID, _ string) (domain.Page, error) {
	var page domain.Page
	err := c.doJSON(ctx, http.MethodPost, "/api/storybooks/"+url.PathEscape(storybookID)+"/canvas", nil, &page)
	return page, err
}

func (c *Client) CreatePage(ctx context.Context, in domain.CreatePageInput) (domain.Page, error) {
	var page domain.Page
	err := c.doJSON(ctx, http.MethodPost, "/api/pages", in, &page)
	return page, err
}

func (c *Client) GetPage(ctx context.Context, id string) (domain.Page, error) {
	var page domain.Page
	err := c.doJSON(ctx, http.MethodGet, "/api/pages/"+url.PathEscape(id), nil, &page)
	return page, err
}

func (c *Client) UpdatePage(ctx context.Context, id string, in domain.UpdatePageInput) (domain.Page, error) {
	var page domain.Page
	err := c.doJSON(ctx, http.MethodPatch, "/api/pages/"+url.PathEscape(id), in, &page)
	return page, err
}

func (c *Client) ListPages(ctx context.Context, storybookID string) ([]domain.Page, error) {
	var pages []domain.Page
	err := c.doJSON(ctx, http.MethodGet, "/api/storybooks/"+url.PathEscape(storybookID)+"/pages", nil, &pages)
	return pages, err
}

func (c *Client) ReorderPages(ctx context.Context, storybookID string, orderedIDs []string) ([]domain.Page, error) {
	var pages []domain.Page
	body := map[string]any{"ids": orderedIDs}
	err := c.doJSON(ctx, http.MethodPut, "/api/storybooks/"+url.PathEscape(storybookID)+"/pages/order", body, &pages)
	return pages, err
}

func (c *Client) RemovePage(ctx context.Context, id string, expectedVersion int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/pages/%s?expectedVersion=%d", url.PathEscape(id), expectedVersion), nil, nil)
}

func (c *Client) CreateFrame(ctx context.Context, in domain.CreateFrameInput) (domain.Frame, error) {
	var frame domain.Frame
	err := c.doJSON(ctx, http.MethodPost, "/api/frames", in, &frame)
	return frame, err
}

func (c *Client) GetFrame(ctx context.Context, id string) (domain.Frame, error) {
	var frame domain.Frame
	err := c.doJSON(ctx, http.MethodGet, "/api/frames/"+url.PathEscape(id), nil, &frame)
	return frame, err
}

func (c *Client) UpdateFrame(ctx context.Context, id string, in domain.UpdateFrameInput) (domain.Frame, error) {
	var frame domain.Frame
	err := c.doJSON(ctx, http.MethodPatch, "/api/frames/"+url.PathEscape(id), in, &frame)
	return frame, err
}

func (c *Client) MoveFrameZ(ctx context.Context, id string, delta int, expectedVersion int64) ([]domain.Frame, error) {
	var frames []domain.Frame
	body := map[string]any{"delta": delta, "expectedVersion": expectedVersion}
	err := c.doJSON(ctx, http.MethodPost, "/api/frames/"+url.PathEscape(id)+"/z", body, &frames)
	return frames, err
}

func (c *Client) RemoveFrame(ctx context.Context, id string, expectedVersion int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/frames/%s?expectedVersion=%d", url.PathEscape(id), expectedVersion), nil, nil)
}

func (c *Client) ListFrames(ctx context.Context, pageID string) ([]domain.Frame, error) {
	var frames []domain.Frame
	err := c.doJSON(ctx, http.MethodGet, "/api/pages/"+url.PathEscape(pageID)+"/frames", nil, &frames)
	return frames, err
}

// SavePreview uploads a page thumbnail.
func (c *Client) SavePreview(ctx context.Context, pageID string, png []byte) error {
	u := c.BaseURL + "/api/pages/" + url.PathEscape(pageID) + "/preview"
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(png))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "image/png")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(http.MethodPut, u, resp)
	}
	return nil
}

// Preview downloads the cached thumbnail for a page.
func (c *Client) Preview(ctx context.Context, pageID string) ([]byte, error) {
	u := c.BaseURL + "/api/pages/" + url.PathEscape(pageID) + "/preview"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apiError(http.MethodGet, u, resp)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}
