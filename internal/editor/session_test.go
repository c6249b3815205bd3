/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"storycanvas/internal/autosave"
	"storycanvas/internal/domain"
	"storycanvas/internal/geometry"
	"storycanvas/internal/gesture"
	"storycanvas/internal/store"
)

func openSession(t *testing.T) (*Session, *store.SQLite, domain.Page) {
	t.Helper()
	st, err := store.OpenPath(filepath.Join(t.TempDir(), "canvas.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	page, err := st.EnsureDefaultCanvas(ctx, "book-ed", "user-1")
	if err != nil {
		t.Fatalf("ensure canvas: %v", err)
	}
	s, err := NewSession(ctx, st, page.ID, Options{
		Autosave: autosave.Config{Debounce: time.Hour}, // tests flush explicitly
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(s.Close)
	return s, st, page
}

func addFrame(t *testing.T, st *store.SQLite, pageID string, ft domain.FrameType, r domain.Rect) domain.Frame {
	t.Helper()
	f, err := st.CreateFrame(context.Background(), domain.CreateFrameInput{
		PageID:   pageID,
		Type:     ft,
		Geometry: &r,
	})
	if err != nil {
		t.Fatalf("create frame: %v", err)
	}
	return f
}

func reload(t *testing.T, s *Session) {
	t.Helper()
	if err := s.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
}

func TestFramesPaintOrder(t *testing.T) {
	s, st, page := openSession(t)
	a := addFrame(t, st, page.ID, domain.FrameShape, domain.Rect{X: 0, Y: 0, W: 100, H: 100})
	b := addFrame(t, st, page.ID, domain.FrameShape, domain.Rect{X: 10, Y: 10, W: 100, H: 100})
	reload(t, s)

	frames := s.Frames()
	if len(frames) != 2 {
		t.Fatalf("want 2 frames, got %d", len(frames))
	}
	if frames[0].ID != a.ID || frames[1].ID != b.ID {
		t.Fatalf("paint order wrong: got %s,%s", frames[0].ID, frames[1].ID)
	}
	if frames[0].ZIndex > frames[1].ZIndex {
		t.Fatalf("z order not ascending: %d,%d", frames[0].ZIndex, frames[1].ZIndex)
	}
}

func TestDropTargetTopmostUnlocked(t *testing.T) {
	s, st, page := openSession(t)
	ctx := context.Background()

	// three overlapping containers, created back to front
	overlap := domain.Rect{X: 50, Y: 50, W: 200, H: 200}
	c1 := addFrame(t, st, page.ID, domain.FrameContainer, overlap)
	c2 := addFrame(t, st, page.ID, domain.FrameContainer, overlap)
	c3 := addFrame(t, st, page.ID, domain.FrameContainer, overlap)
	// a topmost text frame must not steal the drop
	addFrame(t, st, page.ID, domain.FrameText, overlap)
	reload(t, s)

	id, ok := s.DropTargetAt(100, 100)
	if !ok || id != c3.ID {
		t.Fatalf("want topmost container %s, got %s ok=%v", c3.ID, id, ok)
	}

	// locking the topmost container falls through to the next
	lock := true
	if _, err := st.UpdateFrame(ctx, c3.ID, domain.UpdateFrameInput{Locked: &lock}); err != nil {
		t.Fatalf("lock: %v", err)
	}
	reload(t, s)
	id, ok = s.DropTargetAt(100, 100)
	if !ok || id != c2.ID {
		t.Fatalf("want next container %s, got %s ok=%v", c2.ID, id, ok)
	}

	if _, ok := s.DropTargetAt(700, 700); ok {
		t.Fatalf("point outside all containers must have no target")
	}
	_ = c1
}

func TestInsertImageAdoptsContainerBounds(t *testing.T) {
	s, st, page := openSession(t)
	target := addFrame(t, st, page.ID, domain.FrameContainer, domain.Rect{X: 100, Y: 100, W: 300, H: 200})
	reload(t, s)

	f, err := s.InsertImage(context.Background(), 150, 150, "assets/cat.png", "drop-1")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if f.Geometry != target.Geometry {
		t.Fatalf("image should adopt container bounds, got %+v", f.Geometry)
	}
	if f.Type != domain.FrameImage {
		t.Fatalf("want image frame, got %s", f.Type)
	}
	if s.Selection() != f.ID {
		t.Fatalf("inserted frame should be selected")
	}
	ic, ok := f.Content.(domain.ImageContent)
	if !ok || ic.Source != "assets/cat.png" {
		t.Fatalf("content not preserved: %#v", f.Content)
	}
}

func TestInsertImageDedupe(t *testing.T) {
	s, _, _ := openSession(t)
	ctx := context.Background()

	if _, err := s.InsertImage(ctx, 300, 300, "a.png", "drop-x"); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	_, err := s.InsertImage(ctx, 300, 300, "a.png", "drop-x")
	if !errors.Is(err, ErrDuplicateDrop) {
		t.Fatalf("want ErrDuplicateDrop, got %v", err)
	}
	// a different key goes through
	if _, err := s.InsertImage(ctx, 300, 300, "a.png", "drop-y"); err != nil {
		t.Fatalf("second key: %v", err)
	}
	if len(s.Frames()) != 2 {
		t.Fatalf("want 2 frames after dedupe, got %d", len(s.Frames()))
	}
}

func TestShowHandles(t *testing.T) {
	s, st, page := openSession(t)
	f := addFrame(t, st, page.ID, domain.FrameShape, domain.Rect{X: 0, Y: 0, W: 100, H: 100})
	reload(t, s)

	if s.ShowHandles(f.ID) {
		t.Fatalf("unselected frame must not show handles")
	}
	s.Select(f.ID)
	if !s.ShowHandles(f.ID) {
		t.Fatalf("selected frame should show handles")
	}
	s.SetCropMode(true)
	if s.ShowHandles(f.ID) {
		t.Fatalf("crop mode must hide handles")
	}
	s.SetCropMode(false)

	lock := true
	if _, err := st.UpdateFrame(context.Background(), f.ID, domain.UpdateFrameInput{Locked: &lock}); err != nil {
		t.Fatalf("lock: %v", err)
	}
	reload(t, s)
	s.Select(f.ID)
	if s.ShowHandles(f.ID) {
		t.Fatalf("locked frame must not show handles")
	}
}

func TestMenuLifecycle(t *testing.T) {
	s, st, page := openSession(t)
	f := addFrame(t, st, page.ID, domain.FrameShape, domain.Rect{X: 100, Y: 100, W: 100, H: 100})
	reload(t, s)

	m := s.OpenMenu(150, 150)
	if m.FrameID != f.ID {
		t.Fatalf("menu should address the frame under the point")
	}
	if _, open := s.Menu(); !open {
		t.Fatalf("menu should be open")
	}

	// the first pointer-down closes the menu and does nothing else
	act := s.PointerDown(gesture.PointerEvent{PointerID: 1, X: 10, Y: 10, Detail: 1}, "")
	if act.Select != "" || act.BeginTextEdit != "" {
		t.Fatalf("menu-closing press must be swallowed, got %+v", act)
	}
	if _, open := s.Menu(); open {
		t.Fatalf("menu should be closed after outside press")
	}

	s.OpenMenu(20, 20)
	s.Escape()
	if _, open := s.Menu(); open {
		t.Fatalf("escape should close the menu")
	}
}

func TestNudgeMovesAndSaves(t *testing.T) {
	s, st, page := openSession(t)
	f := addFrame(t, st, page.ID, domain.FrameShape, domain.Rect{X: 100, Y: 100, W: 100, H: 100})
	reload(t, s)
	ctx := context.Background()

	if s.Nudge(1, 0, false) {
		t.Fatalf("nudge without selection must be a no-op")
	}
	s.Select(f.ID)
	if !s.Nudge(1, 0, false) {
		t.Fatalf("nudge should apply")
	}
	if !s.Nudge(0, 1, true) {
		t.Fatalf("large nudge should apply")
	}
	got := s.Frames()[0].Geometry
	if got.X != 101 || got.Y != 110 {
		t.Fatalf("want (101,110), got (%v,%v)", got.X, got.Y)
	}

	if err := s.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	persisted, err := st.GetFrame(ctx, f.ID)
	if err != nil {
		t.Fatalf("get frame: %v", err)
	}
	if persisted.Geometry.X != 101 || persisted.Geometry.Y != 110 {
		t.Fatalf("persisted geometry (%v,%v)", persisted.Geometry.X, persisted.Geometry.Y)
	}
	if persisted.Version != f.Version+1 {
		t.Fatalf("coalesced nudges must cost one version bump, got %d", persisted.Version)
	}
	if rs := s.RegionStatus(f.ID); rs != autosave.StatusSaved {
		t.Fatalf("region status %v", rs)
	}
}

func TestNudgeDisabledDuringTextFocus(t *testing.T) {
	s, st, page := openSession(t)
	f := addFrame(t, st, page.ID, domain.FrameText, domain.Rect{X: 100, Y: 100, W: 100, H: 100})
	reload(t, s)
	s.Select(f.ID)

	s.SetTextFocus(true)
	if s.Nudge(1, 0, false) {
		t.Fatalf("nudge must be disabled while editing text")
	}
	if err := s.DeleteSelected(context.Background()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(s.Frames()) != 1 {
		t.Fatalf("delete must be disabled while editing text")
	}

	s.SetTextFocus(false)
	if !s.Nudge(1, 0, false) {
		t.Fatalf("nudge should work again")
	}
}

func TestNudgeClampsToPage(t *testing.T) {
	s, st, page := openSession(t)
	f := addFrame(t, st, page.ID, domain.FrameShape, domain.Rect{X: 0, Y: 0, W: 100, H: 100})
	reload(t, s)
	s.Select(f.ID)

	s.Nudge(-1, 0, true)
	if got := s.Frames()[0].Geometry.X; got != 0 {
		t.Fatalf("nudge must clamp at the page edge, got x=%v", got)
	}
	_ = f
}

func TestDeleteSelected(t *testing.T) {
	s, st, page := openSession(t)
	f := addFrame(t, st, page.ID, domain.FrameShape, domain.Rect{X: 0, Y: 0, W: 100, H: 100})
	reload(t, s)
	ctx := context.Background()

	s.Select(f.ID)
	if err := s.DeleteSelected(ctx); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(s.Frames()) != 0 {
		t.Fatalf("frame should be gone locally")
	}
	if s.Selection() != "" {
		t.Fatalf("selection should clear")
	}
	if _, err := st.GetFrame(ctx, f.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("frame should be gone remotely, got %v", err)
	}
}

func TestDragCommitAndFlush(t *testing.T) {
	s, st, page := openSession(t)
	f := addFrame(t, st, page.ID, domain.FrameShape, domain.Rect{X: 100, Y: 100, W: 100, H: 100})
	reload(t, s)
	ctx := context.Background()

	act := s.PointerDown(gesture.PointerEvent{PointerID: 1, X: 150, Y: 150, Detail: 1}, "")
	if act.Select != f.ID {
		t.Fatalf("press should select the frame")
	}
	if pv := s.PointerMove(gesture.PointerEvent{PointerID: 1, X: 190, Y: 170}); pv == nil {
		t.Fatalf("expected a drag preview")
	}
	s.PointerUp(gesture.PointerEvent{PointerID: 1, X: 190, Y: 170})

	got := s.Frames()[0].Geometry
	if got.X != 140 || got.Y != 120 {
		t.Fatalf("commit should move the local frame, got (%v,%v)", got.X, got.Y)
	}

	if err := s.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	persisted, err := st.GetFrame(ctx, f.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if persisted.Geometry.X != 140 || persisted.Geometry.Y != 120 {
		t.Fatalf("persisted (%v,%v)", persisted.Geometry.X, persisted.Geometry.Y)
	}
}

func TestImageResizeKeepsAspect(t *testing.T) {
	s, st, page := openSession(t)
	f := addFrame(t, st, page.ID, domain.FrameImage, domain.Rect{X: 0, Y: 0, W: 200, H: 100})
	reload(t, s)

	s.PointerDown(gesture.PointerEvent{PointerID: 1, X: 199, Y: 99, Detail: 1}, geometry.HandleSE)
	if pv := s.PointerMove(gesture.PointerEvent{PointerID: 1, X: 249, Y: 99}); pv == nil {
		t.Fatalf("expected a resize preview")
	}
	s.PointerUp(gesture.PointerEvent{PointerID: 1, X: 249, Y: 99})

	got := s.Frames()[0].Geometry
	if got.W != 250 || got.H != 125 {
		t.Fatalf("image resize must keep the 200:100 ratio, got %vx%v", got.W, got.H)
	}
	_ = f
}

func TestReleaseCommitSavesImmediately(t *testing.T) {
	// openSession arms an hour-long debounce, so only an immediate save
	// on release can move the stored geometry within the deadline.
	s, st, page := openSession(t)
	f := addFrame(t, st, page.ID, domain.FrameShape, domain.Rect{X: 100, Y: 100, W: 100, H: 100})
	reload(t, s)
	ctx := context.Background()

	s.PointerDown(gesture.PointerEvent{PointerID: 1, X: 150, Y: 150, Detail: 1}, "")
	s.PointerMove(gesture.PointerEvent{PointerID: 1, X: 190, Y: 170})
	s.PointerUp(gesture.PointerEvent{PointerID: 1, X: 190, Y: 170})

	deadline := time.Now().Add(2 * time.Second)
	for {
		persisted, err := st.GetFrame(ctx, f.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if persisted.Geometry.X == 140 && persisted.Geometry.Y == 120 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("release did not save without the debounce, store still at (%v,%v)",
				persisted.Geometry.X, persisted.Geometry.Y)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestForeignPressKeepsSelectionDuringDrag(t *testing.T) {
	s, st, page := openSession(t)
	f := addFrame(t, st, page.ID, domain.FrameShape, domain.Rect{X: 100, Y: 100, W: 100, H: 100})
	reload(t, s)

	s.PointerDown(gesture.PointerEvent{PointerID: 1, X: 150, Y: 150, Detail: 1}, "")
	s.PointerMove(gesture.PointerEvent{PointerID: 1, X: 190, Y: 170})

	// a second pointer pressing the background mid-drag must not clear
	// the selection or disturb the gesture
	act := s.PointerDown(gesture.PointerEvent{PointerID: 2, X: 700, Y: 700, Detail: 1}, "")
	if act.Select != "" || act.BeginTextEdit != "" {
		t.Fatalf("foreign press must yield no action, got %+v", act)
	}
	if s.Selection() != f.ID {
		t.Fatalf("foreign press cleared the selection")
	}

	s.PointerUp(gesture.PointerEvent{PointerID: 1, X: 190, Y: 170})
	got := s.Frames()[0].Geometry
	if got.X != 140 || got.Y != 120 {
		t.Fatalf("drag should still commit, got (%v,%v)", got.X, got.Y)
	}
}

func TestBeginTextEditSelected(t *testing.T) {
	s, st, page := openSession(t)
	txt := addFrame(t, st, page.ID, domain.FrameText, domain.Rect{X: 0, Y: 0, W: 100, H: 100})
	shape := addFrame(t, st, page.ID, domain.FrameShape, domain.Rect{X: 200, Y: 200, W: 100, H: 100})
	reload(t, s)

	if id := s.BeginTextEditSelected(); id != "" {
		t.Fatalf("no selection must not open an editor, got %q", id)
	}
	s.Select(shape.ID)
	if id := s.BeginTextEditSelected(); id != "" {
		t.Fatalf("a shape must not open a text editor, got %q", id)
	}
	s.Select(txt.ID)
	if id := s.BeginTextEditSelected(); id != txt.ID {
		t.Fatalf("want %s, got %q", txt.ID, id)
	}

	s.SetTextFocus(true)
	if id := s.BeginTextEditSelected(); id != "" {
		t.Fatalf("already editing text must be a no-op, got %q", id)
	}
	s.SetTextFocus(false)

	lock := true
	if _, err := st.UpdateFrame(context.Background(), txt.ID, domain.UpdateFrameInput{Locked: &lock}); err != nil {
		t.Fatalf("lock: %v", err)
	}
	reload(t, s)
	s.Select(txt.ID)
	if id := s.BeginTextEditSelected(); id != "" {
		t.Fatalf("locked frame must not open an editor, got %q", id)
	}
}

func TestConflictHaltsThenReloadOrOverwrite(t *testing.T) {
	s, st, page := openSession(t)
	f := addFrame(t, st, page.ID, domain.FrameShape, domain.Rect{X: 100, Y: 100, W: 100, H: 100})
	reload(t, s)
	ctx := context.Background()

	// someone else edits the frame behind the session's back
	x := 400.0
	if _, err := st.UpdateFrame(ctx, f.ID, domain.UpdateFrameInput{X: &x, ExpectedVersion: f.Version}); err != nil {
		t.Fatalf("external update: %v", err)
	}

	s.Select(f.ID)
	s.Nudge(1, 0, false)
	if err := s.Flush(ctx); !errors.Is(err, store.ErrVersionConflict) {
		t.Fatalf("want conflict, got %v", err)
	}
	if status, _ := s.SaveStatus(); status != autosave.StatusConflict {
		t.Fatalf("saver should halt in conflict, got %v", status)
	}
	if s.RegionStatus(f.ID) != autosave.StatusConflict {
		t.Fatalf("region should show the conflict")
	}

	// reload discards the local edit and resumes
	if err := s.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if status, _ := s.SaveStatus(); status != autosave.StatusIdle {
		t.Fatalf("reload should clear the halt, got %v", status)
	}
	if got := s.Frames()[0].Geometry.X; got != 400 {
		t.Fatalf("reload should adopt the remote edit, got x=%v", got)
	}

	// overwrite path: conflict again, then force
	if _, err := st.UpdateFrame(ctx, f.ID, domain.UpdateFrameInput{X: &x}); err != nil {
		t.Fatalf("external update: %v", err)
	}
	s.Select(f.ID)
	s.Nudge(0, 1, false)
	_ = s.Flush(ctx) // may or may not conflict depending on version drift
	if err := s.Overwrite(ctx); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	persisted, err := st.GetFrame(ctx, f.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if persisted.Geometry.Y != 101 {
		t.Fatalf("overwrite should win, got y=%v", persisted.Geometry.Y)
	}
}

