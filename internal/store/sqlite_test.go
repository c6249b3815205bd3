/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"storycanvas/internal/domain"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenPath(filepath.Join(t.TempDir(), "canvas.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustPage(t *testing.T, s *SQLite) domain.Page {
	t.Helper()
	p, err := s.CreatePage(context.Background(), domain.CreatePageInput{
		StorybookID: "book-test",
		OwnerID:     "user-1",
	})
	if err != nil {
		t.Fatalf("create page: %v", err)
	}
	return p
}

func mustFrame(t *testing.T, s *SQLite, pageID string, typ domain.FrameType) domain.Frame {
	t.Helper()
	f, err := s.CreateFrame(context.Background(), domain.CreateFrameInput{PageID: pageID, Type: typ})
	if err != nil {
		t.Fatalf("create frame: %v", err)
	}
	return f
}

func TestEnsureDefaultCanvasIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p1, err := s.EnsureDefaultCanvas(ctx, "book-test", "user-1")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if p1.SizePreset != domain.DefaultSizePreset || p1.Version != 1 {
		t.Fatalf("unexpected default page: %+v", p1)
	}
	p2, err := s.EnsureDefaultCanvas(ctx, "book-test", "user-1")
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if p2.ID != p1.ID {
		t.Fatalf("ensure created a second page: %s vs %s", p1.ID, p2.ID)
	}
	pages, err := s.ListPages(ctx, "book-test")
	if err != nil || len(pages) != 1 {
		t.Fatalf("expected exactly one page, got %d (err=%v)", len(pages), err)
	}
}

func TestCreatePageAssignsOrderIndex(t *testing.T) {
	s := openTestStore(t)
	p1 := mustPage(t, s)
	p2 := mustPage(t, s)
	if p1.OrderIndex != 0 || p2.OrderIndex != 1 {
		t.Fatalf("expected order 0,1 got %d,%d", p1.OrderIndex, p2.OrderIndex)
	}
}

func TestUpdatePageVersioning(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := mustPage(t, s)

	grid := p.Grid
	grid.Columns = 6
	updated, err := s.UpdatePage(ctx, p.ID, domain.UpdatePageInput{Grid: &grid, ExpectedVersion: p.Version})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Version != p.Version+1 {
		t.Fatalf("version must increment by 1: %d -> %d", p.Version, updated.Version)
	}
	if updated.Grid.Columns != 6 {
		t.Fatalf("grid patch not applied: %+v", updated.Grid)
	}

	// stale token rejected
	_, err = s.UpdatePage(ctx, p.ID, domain.UpdatePageInput{Grid: &grid, ExpectedVersion: p.Version})
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	// zero forces the write
	forced, err := s.UpdatePage(ctx, p.ID, domain.UpdatePageInput{Grid: &grid, ExpectedVersion: 0})
	if err != nil {
		t.Fatalf("forced update: %v", err)
	}
	if forced.Version != updated.Version+1 {
		t.Fatalf("forced write must still bump the version")
	}
}

func TestPageResizeClampsFrames(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p, err := s.CreatePage(ctx, domain.CreatePageInput{
		StorybookID: "book-test",
		OwnerID:     "user-1",
		SizePreset:  domain.SizePortrait, // 816x1056
	})
	if err != nil {
		t.Fatalf("create page: %v", err)
	}
	f := mustFrame(t, s, p.ID, domain.FrameText)

	// push the frame to the bottom-right corner
	x, y := 740.0, 980.0
	w, h := 68.0, 68.0
	f, err = s.UpdateFrame(ctx, f.ID, domain.UpdateFrameInput{X: &x, Y: &y, W: &w, H: &h, ExpectedVersion: f.Version})
	if err != nil {
		t.Fatalf("move frame: %v", err)
	}

	// shrink the page; the frame must be pulled back inside
	square := domain.SizeSquare // 768x768
	p2, err := s.UpdatePage(ctx, p.ID, domain.UpdatePageInput{SizePreset: &square, ExpectedVersion: p.Version})
	if err != nil {
		t.Fatalf("resize page: %v", err)
	}

	got, err := s.GetFrame(ctx, f.ID)
	if err != nil {
		t.Fatalf("get frame: %v", err)
	}
	if got.Geometry.X+got.Geometry.W > p2.WidthPx || got.Geometry.Y+got.Geometry.H > p2.HeightPx {
		t.Fatalf("frame outside resized page: %+v page %vx%v", got.Geometry, p2.WidthPx, p2.HeightPx)
	}
	if got.Version != f.Version+1 {
		t.Fatalf("clamped frame must get a version bump: %d -> %d", f.Version, got.Version)
	}
}

func TestReorderPages(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p1 := mustPage(t, s)
	p2 := mustPage(t, s)
	p3 := mustPage(t, s)

	pages, err := s.ReorderPages(ctx, "book-test", []string{p3.ID, p1.ID, p2.ID})
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if pages[0].ID != p3.ID || pages[1].ID != p1.ID || pages[2].ID != p2.ID {
		t.Fatalf("unexpected order: %v", []string{pages[0].ID, pages[1].ID, pages[2].ID})
	}
	for i, p := range pages {
		if p.OrderIndex != i {
			t.Fatalf("order indexes not contiguous: %+v", pages)
		}
	}

	// a partial or foreign id list is rejected and changes nothing
	if _, err := s.ReorderPages(ctx, "book-test", []string{p1.ID, p2.ID}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for partial list, got %v", err)
	}
	if _, err := s.ReorderPages(ctx, "book-test", []string{p1.ID, p2.ID, "page-bogus"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for foreign id, got %v", err)
	}
	after, _ := s.ListPages(ctx, "book-test")
	if after[0].ID != p3.ID {
		t.Fatalf("failed reorder must not change order")
	}
}

func TestRemovePageCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := mustPage(t, s)
	f := mustFrame(t, s, p.ID, domain.FrameShape)

	if err := s.RemovePage(ctx, p.ID, 999); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected conflict for stale delete, got %v", err)
	}
	if err := s.RemovePage(ctx, p.ID, p.Version); err != nil {
		t.Fatalf("remove page: %v", err)
	}
	if _, err := s.GetFrame(ctx, f.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("frames must be deleted with their page, got %v", err)
	}
	if err := s.RemovePage(ctx, p.ID, 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for second delete, got %v", err)
	}
}

func TestCreateFrameDefaultsAndZOrder(t *testing.T) {
	s := openTestStore(t)
	p := mustPage(t, s)

	f1 := mustFrame(t, s, p.ID, domain.FrameText)
	f2 := mustFrame(t, s, p.ID, domain.FrameImage)
	if f1.ZIndex != 0 || f2.ZIndex != 1 {
		t.Fatalf("expected z 0,1 got %d,%d", f1.ZIndex, f2.ZIndex)
	}
	if f1.Version != 1 {
		t.Fatalf("new frame must start at version 1, got %d", f1.Version)
	}
	if _, ok := f1.Style.(domain.TextStyle); !ok {
		t.Fatalf("expected default text style, got %T", f1.Style)
	}
	if f1.Geometry.W < domain.MinFrameSize || f1.Geometry.X < 0 {
		t.Fatalf("default geometry invalid: %+v", f1.Geometry)
	}
}

func TestCreateFrameUnknownPage(t *testing.T) {
	s := openTestStore(t)
	_, err := s.CreateFrame(context.Background(), domain.CreateFrameInput{PageID: "page-missing", Type: domain.FrameText})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateFrameVersioningAndClamp(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := mustPage(t, s)
	f := mustFrame(t, s, p.ID, domain.FrameText)

	// a huge move is clamped into the page, not rejected
	x := 5000.0
	got, err := s.UpdateFrame(ctx, f.ID, domain.UpdateFrameInput{X: &x, ExpectedVersion: f.Version})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Geometry.X+got.Geometry.W > p.WidthPx {
		t.Fatalf("geometry not clamped: %+v", got.Geometry)
	}
	if got.Version != f.Version+1 {
		t.Fatalf("version must increment by 1")
	}

	// stale write rejected, entity unchanged
	y := 10.0
	_, err = s.UpdateFrame(ctx, f.ID, domain.UpdateFrameInput{Y: &y, ExpectedVersion: f.Version})
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	check, _ := s.GetFrame(ctx, f.ID)
	if check.Geometry.Y == 10 {
		t.Fatalf("stale write must not change the frame")
	}

	// mismatched style variant rejected
	_, err = s.UpdateFrame(ctx, f.ID, domain.UpdateFrameInput{Style: domain.ShapeStyle{Kind: "rect"}, ExpectedVersion: got.Version})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateFrameCropLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := mustPage(t, s)
	f := mustFrame(t, s, p.ID, domain.FrameImage)

	crop := domain.Crop{FocalX: 0.5, FocalY: 0.25, Scale: 2}
	got, err := s.UpdateFrame(ctx, f.ID, domain.UpdateFrameInput{Crop: &crop, ExpectedVersion: f.Version})
	if err != nil {
		t.Fatalf("set crop: %v", err)
	}
	reloaded, _ := s.GetFrame(ctx, f.ID)
	if reloaded.Crop == nil || reloaded.Crop.Scale != 2 {
		t.Fatalf("crop not persisted: %+v", reloaded.Crop)
	}

	got, err = s.UpdateFrame(ctx, f.ID, domain.UpdateFrameInput{ClearCrop: true, ExpectedVersion: got.Version})
	if err != nil {
		t.Fatalf("clear crop: %v", err)
	}
	if got.Crop != nil {
		t.Fatalf("crop not cleared")
	}
}

func TestMoveFrameZDenseReassignment(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := mustPage(t, s)
	f1 := mustFrame(t, s, p.ID, domain.FrameText)
	f2 := mustFrame(t, s, p.ID, domain.FrameShape)
	f3 := mustFrame(t, s, p.ID, domain.FrameImage)

	// bring the bottom frame all the way to the front
	frames, err := s.MoveFrameZ(ctx, f1.ID, 100, f1.Version)
	if err != nil {
		t.Fatalf("move z: %v", err)
	}
	order := []string{frames[0].ID, frames[1].ID, frames[2].ID}
	want := []string{f2.ID, f3.ID, f1.ID}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("unexpected order %v, want %v", order, want)
		}
	}
	for i, f := range frames {
		if f.ZIndex != i {
			t.Fatalf("z indexes not dense: %+v", frames)
		}
	}

	// stale token rejected
	if _, err := s.MoveFrameZ(ctx, f1.ID, -1, f1.Version); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestMoveFrameZBumpsDisplacedSiblings(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := mustPage(t, s)
	f1 := mustFrame(t, s, p.ID, domain.FrameText)
	f2 := mustFrame(t, s, p.ID, domain.FrameShape)
	f3 := mustFrame(t, s, p.ID, domain.FrameImage)

	frames, err := s.MoveFrameZ(ctx, f1.ID, 100, f1.Version)
	if err != nil {
		t.Fatalf("move z: %v", err)
	}
	byID := make(map[string]domain.Frame, len(frames))
	for _, f := range frames {
		byID[f.ID] = f
	}
	// f2 and f3 each shifted down a slot; their versions must move too
	if got := byID[f2.ID]; got.Version != f2.Version+1 {
		t.Fatalf("displaced sibling %s kept version %d", f2.ID, got.Version)
	}
	if got := byID[f3.ID]; got.Version != f3.Version+1 {
		t.Fatalf("displaced sibling %s kept version %d", f3.ID, got.Version)
	}
	if got := byID[f1.ID]; got.Version != f1.Version+1 {
		t.Fatalf("moved frame kept version %d", got.Version)
	}

	// moving a frame onto its own slot touches nothing
	frames, err = s.MoveFrameZ(ctx, byID[f1.ID].ID, 100, byID[f1.ID].Version)
	if err != nil {
		t.Fatalf("no-op move: %v", err)
	}
	for _, f := range frames {
		if f.Version != byID[f.ID].Version {
			t.Fatalf("no-op move bumped %s to version %d", f.ID, f.Version)
		}
	}
}

func TestRemoveFrame(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := mustPage(t, s)
	f := mustFrame(t, s, p.ID, domain.FrameLine)

	if err := s.RemoveFrame(ctx, f.ID, f.Version+5); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := s.RemoveFrame(ctx, f.ID, f.Version); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.RemoveFrame(ctx, f.ID, 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPreviewRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := mustPage(t, s)

	if _, err := s.Preview(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found before save, got %v", err)
	}
	if err := s.SavePreview(ctx, p.ID, []byte{1, 2, 3}); err != nil {
		t.Fatalf("save preview: %v", err)
	}
	if err := s.SavePreview(ctx, p.ID, []byte{4, 5}); err != nil {
		t.Fatalf("replace preview: %v", err)
	}
	blob, err := s.Preview(ctx, p.ID)
	if err != nil || len(blob) != 2 || blob[0] != 4 {
		t.Fatalf("unexpected preview blob %v (err=%v)", blob, err)
	}
}

func TestFrameContentRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := mustPage(t, s)
	f := mustFrame(t, s, p.ID, domain.FrameText)

	got, err := s.UpdateFrame(ctx, f.ID, domain.UpdateFrameInput{
		Content:         domain.TextContent{Text: "Once upon a time"},
		ExpectedVersion: f.Version,
	})
	if err != nil {
		t.Fatalf("update content: %v", err)
	}
	reloaded, err := s.GetFrame(ctx, got.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	tc, ok := reloaded.Content.(domain.TextContent)
	if !ok || tc.Text != "Once upon a time" {
		t.Fatalf("content did not round trip: %#v", reloaded.Content)
	}
}
