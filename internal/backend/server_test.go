/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storycanvas/internal/domain"
	"storycanvas/internal/store"
)

// newTestServer wires the HTTP server on top of a throwaway SQLite store
// and returns an authenticated client against it.
func newTestServer(t *testing.T, cfg ServerConfig) (*httptest.Server, *Client) {
	t.Helper()
	st, err := store.OpenPath(filepath.Join(t.TempDir(), "canvas.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	if cfg.Secret == "" {
		cfg.Secret = "test-secret"
	}
	ts := httptest.NewServer(NewServer(st, cfg))
	t.Cleanup(ts.Close)

	c := NewClient(ts.URL, "", ClientOptions{Timeout: 5 * time.Second})
	_, err = c.FetchToken(context.Background(), "tester", time.Hour)
	require.NoError(t, err)
	return ts, c
}

func TestTokenIssuance(t *testing.T) {
	_, c := newTestServer(t, ServerConfig{})
	assert.NotEmpty(t, c.Token)

	// A second client with a bogus token is rejected everywhere.
	bad := NewClient(c.BaseURL, "not-a-token", ClientOptions{})
	_, err := bad.ListPages(context.Background(), "book-x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestUnauthenticatedRejected(t *testing.T) {
	ts, _ := newTestServer(t, ServerConfig{})

	resp, err := http.Get(ts.URL + "/api/pages/page-x")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Health and version stay open.
	resp2, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestPageLifecycleOverHTTP(t *testing.T) {
	_, c := newTestServer(t, ServerConfig{})
	ctx := context.Background()

	page, err := c.EnsureDefaultCanvas(ctx, "book-http", "")
	require.NoError(t, err)
	assert.Equal(t, "book-http", page.StorybookID)
	assert.Equal(t, "tester", page.OwnerID)
	assert.EqualValues(t, 1, page.Version)

	// Ensure is idempotent.
	again, err := c.EnsureDefaultCanvas(ctx, "book-http", "")
	require.NoError(t, err)
	assert.Equal(t, page.ID, again.ID)

	second, err := c.CreatePage(ctx, domain.CreatePageInput{
		StorybookID: "book-http",
		SizePreset:  domain.SizePortrait,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, second.OrderIndex)
	assert.Equal(t, "tester", second.OwnerID)

	preset := domain.SizeSquare
	updated, err := c.UpdatePage(ctx, second.ID, domain.UpdatePageInput{
		SizePreset:      &preset,
		ExpectedVersion: second.Version,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SizeSquare, updated.SizePreset)
	assert.Equal(t, second.Version+1, updated.Version)

	pages, err := c.ListPages(ctx, "book-http")
	require.NoError(t, err)
	require.Len(t, pages, 2)

	reordered, err := c.ReorderPages(ctx, "book-http", []string{second.ID, page.ID})
	require.NoError(t, err)
	assert.Equal(t, second.ID, reordered[0].ID)
	assert.Equal(t, 0, reordered[0].OrderIndex)

	require.NoError(t, c.RemovePage(ctx, second.ID, 0))
	_, err = c.GetPage(ctx, second.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFrameLifecycleOverHTTP(t *testing.T) {
	_, c := newTestServer(t, ServerConfig{})
	ctx := context.Background()

	page, err := c.EnsureDefaultCanvas(ctx, "book-frames", "")
	require.NoError(t, err)

	frame, err := c.CreateFrame(ctx, domain.CreateFrameInput{
		PageID:  page.ID,
		Type:    domain.FrameText,
		Content: domain.TextContent{Text: "hello over the wire"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.FrameText, frame.Type)
	require.NotNil(t, frame.Content)
	txt, ok := frame.Content.(domain.TextContent)
	require.True(t, ok, "content should decode back to TextContent, got %T", frame.Content)
	assert.Equal(t, "hello over the wire", txt.Text)

	x := 120.0
	moved, err := c.UpdateFrame(ctx, frame.ID, domain.UpdateFrameInput{
		X:               &x,
		ExpectedVersion: frame.Version,
	})
	require.NoError(t, err)
	assert.Equal(t, 120.0, moved.Geometry.X)
	assert.Equal(t, frame.Version+1, moved.Version)

	other, err := c.CreateFrame(ctx, domain.CreateFrameInput{PageID: page.ID, Type: domain.FrameShape})
	require.NoError(t, err)

	order, err := c.MoveFrameZ(ctx, frame.ID, 10, moved.Version)
	require.NoError(t, err)
	require.Len(t, order, 2)
	assert.Equal(t, frame.ID, order[1].ID, "moved frame should be on top")

	frames, err := c.ListFrames(ctx, page.ID)
	require.NoError(t, err)
	require.Len(t, frames, 2)

	require.NoError(t, c.RemoveFrame(ctx, other.ID, 0))
	_, err = c.GetFrame(ctx, other.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestVersionConflictMapsTo409(t *testing.T) {
	_, c := newTestServer(t, ServerConfig{})
	ctx := context.Background()

	page, err := c.EnsureDefaultCanvas(ctx, "book-conflict", "")
	require.NoError(t, err)

	preset := domain.SizePortrait
	_, err = c.UpdatePage(ctx, page.ID, domain.UpdatePageInput{
		SizePreset:      &preset,
		ExpectedVersion: page.Version + 5,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrVersionConflict)

	// Delete with a stale token fails the same way.
	err = c.RemovePage(ctx, page.ID, page.Version+5)
	assert.ErrorIs(t, err, store.ErrVersionConflict)

	// Zero skips the check: the forced-overwrite path.
	_, err = c.UpdatePage(ctx, page.ID, domain.UpdatePageInput{SizePreset: &preset})
	require.NoError(t, err)
}

func TestValidationMapsTo400(t *testing.T) {
	_, c := newTestServer(t, ServerConfig{})
	ctx := context.Background()

	page, err := c.EnsureDefaultCanvas(ctx, "book-bad", "")
	require.NoError(t, err)

	// Style variant not matching the frame type is rejected.
	_, err = c.CreateFrame(ctx, domain.CreateFrameInput{
		PageID: page.ID,
		Type:   domain.FrameText,
		Style:  domain.ShapeStyle{},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrValidation)

	// Reordering with a foreign id is rejected without changing anything.
	_, err = c.ReorderPages(ctx, "book-bad", []string{"page-nope"})
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestPreviewRoundTripOverHTTP(t *testing.T) {
	_, c := newTestServer(t, ServerConfig{})
	ctx := context.Background()

	page, err := c.EnsureDefaultCanvas(ctx, "book-preview", "")
	require.NoError(t, err)

	_, err = c.Preview(ctx, page.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 1, 2, 3}
	require.NoError(t, c.SavePreview(ctx, page.ID, png))

	got, err := c.Preview(ctx, page.ID)
	require.NoError(t, err)
	assert.Equal(t, png, got)
}

func TestRateLimitPerSubject(t *testing.T) {
	_, c := newTestServer(t, ServerConfig{RatePerSec: 1, Burst: 3})
	ctx := context.Background()

	limited := false
	for i := 0; i < 20; i++ {
		if _, err := c.ListPages(ctx, "book-rate"); err != nil {
			assert.Contains(t, err.Error(), "429")
			limited = true
			break
		}
	}
	assert.True(t, limited, "expected the limiter to kick in within the burst window")
}
