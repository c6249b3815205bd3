/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package editor holds the canvas presentation model: the frame list in
// paint order, selection and handle visibility, the context menu, drop
// targets, keyboard nudges, and the autosave wiring. It is UI-toolkit
// agnostic; internal/ui renders it.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"storycanvas/internal/autosave"
	"storycanvas/internal/domain"
	"storycanvas/internal/geometry"
	"storycanvas/internal/gesture"
	applog "storycanvas/internal/log"
	"storycanvas/internal/store"
)

// ErrDuplicateDrop reports a drop insertion suppressed by the dedupe window.
var ErrDuplicateDrop = errors.New("duplicate drop")

// NudgeStep and NudgeStepLarge are the arrow-key move distances in page
// pixels; the large step applies while the modifier is held.
const (
	NudgeStep      = 1.0
	NudgeStepLarge = 10.0
)

// Menu is the context-menu model: where it opened and which frame it
// addresses (empty for the page background).
type Menu struct {
	X, Y    float64
	FrameID string
}

// Options tunes a session. Zero values fall back to sane defaults.
type Options struct {
	Zoom        float64
	SnapEnabled bool
	DedupeTTL   time.Duration // drop suppression window; 0 uses the default
	Autosave    autosave.Config
}

// Session is the per-page editing state. All methods are safe for
// concurrent use, though pointer events are expected from one goroutine.
type Session struct {
	svc store.CanvasService
	log *slog.Logger

	mu        sync.Mutex
	page      domain.Page
	frames    []domain.Frame // kept in paint order: z asc, id asc
	selection string
	cropMode  bool
	textFocus bool
	menu      *Menu
	zoom      float64
	snap      bool
	pending   map[string]geometry.Rect // frame id -> uncommitted geometry
	statuses  map[string]autosave.Status

	machine *gesture.Machine
	saver   *autosave.Saver
	drops   *Dedupe
}

// NewSession loads the page and its frames and wires the gesture machine
// and autosave controller around them.
func NewSession(ctx context.Context, svc store.CanvasService, pageID string, opts Options) (*Session, error) {
	page, err := svc.GetPage(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("load page: %w", err)
	}
	frames, err := svc.ListFrames(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("load frames: %w", err)
	}
	if opts.Zoom <= 0 {
		opts.Zoom = 1
	}

	s := &Session{
		svc:      svc,
		log:      applog.WithEntity(applog.WithComponent("editor"), "page", pageID),
		page:     page,
		frames:   frames,
		zoom:     opts.Zoom,
		snap:     opts.SnapEnabled,
		pending:  make(map[string]geometry.Rect),
		statuses: make(map[string]autosave.Status),
		drops:    NewDedupe(opts.DedupeTTL),
	}
	s.sortFramesLocked()
	s.machine = gesture.NewMachine(s.gestureOptionsLocked(""))

	cfg := opts.Autosave
	cfg.Save = s.savePending
	if cfg.IsConflict == nil {
		cfg.IsConflict = func(err error) bool { return errors.Is(err, store.ErrVersionConflict) }
	}
	if cfg.Logger == nil {
		cfg.Logger = s.log
	}
	s.saver = autosave.New(cfg)
	return s, nil
}

// Close flushes nothing; pending edits are dropped. Call Flush first if
// they should survive.
func (s *Session) Close() { s.saver.Close() }

// Page returns the current page settings.
func (s *Session) Page() domain.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// Frames returns the frames in paint order: ascending z index, ties broken
// by id so the order is stable across reloads. Render back to front.
func (s *Session) Frames() []domain.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Frame, len(s.frames))
	copy(out, s.frames)
	return out
}

func (s *Session) sortFramesLocked() {
	sort.SliceStable(s.frames, func(i, j int) bool {
		if s.frames[i].ZIndex != s.frames[j].ZIndex {
			return s.frames[i].ZIndex < s.frames[j].ZIndex
		}
		return s.frames[i].ID < s.frames[j].ID
	})
}

func (s *Session) frameLocked(id string) (int, bool) {
	for i := range s.frames {
		if s.frames[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

// Selection returns the selected frame id, empty for none.
func (s *Session) Selection() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

// Select sets the selection; an unknown id clears it.
func (s *Session) Select(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.frameLocked(id); !ok {
		s.selection = ""
		return
	}
	s.selection = id
}

// SetCropMode toggles crop editing; handles are hidden while cropping.
func (s *Session) SetCropMode(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cropMode = on
}

// SetTextFocus tells the session whether focus sits in a text input.
// Keyboard nudges and Delete are suspended while it does.
func (s *Session) SetTextFocus(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.textFocus = on
}

// SetZoom updates the screen-to-page scale for subsequent gestures.
func (s *Session) SetZoom(zoom float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if zoom > 0 {
		s.zoom = zoom
	}
}

// SetSnap toggles grid snapping for subsequent gestures.
func (s *Session) SetSnap(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = on
}

// ShowHandles reports whether resize handles should render for a frame:
// only the selected frame, and never while it is locked or being cropped.
func (s *Session) ShowHandles(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" || id != s.selection || s.cropMode {
		return false
	}
	i, ok := s.frameLocked(id)
	return ok && !s.frames[i].Locked
}

// HitTest returns the topmost frame containing the page-space point, nil
// when the point is over the background.
func (s *Session) HitTest(x, y float64) *domain.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hitTestLocked(x, y)
}

func (s *Session) hitTestLocked(x, y float64) *domain.Frame {
	p := geometry.Pt{X: x, Y: y}
	// frames are sorted back to front; scan front to back
	for i := len(s.frames) - 1; i >= 0; i-- {
		if geometry.Rect(s.frames[i].Geometry).Contains(p) {
			f := s.frames[i]
			return &f
		}
	}
	return nil
}

// DropTargetAt resolves the drop target for a page-space point: the topmost
// unlocked placeholder container whose bounds contain it. Locked containers
// and other frame types are skipped.
func (s *Session) DropTargetAt(x, y float64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropTargetLocked(x, y)
}

// OpenMenu opens the context menu at a page-space point, addressing the
// frame under it (empty for the background).
func (s *Session) OpenMenu(x, y float64) Menu {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := Menu{X: x, Y: y}
	if f := s.hitTestLocked(x, y); f != nil {
		m.FrameID = f.ID
	}
	s.menu = &m
	return m
}

// Menu returns the open context menu, if any.
func (s *Session) Menu() (Menu, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.menu == nil {
		return Menu{}, false
	}
	return *s.menu, true
}

// CloseMenu dismisses the context menu.
func (s *Session) CloseMenu() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.menu = nil
}

// Escape closes the menu if open, otherwise cancels a live gesture.
func (s *Session) Escape() {
	s.mu.Lock()
	if s.menu != nil {
		s.menu = nil
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.machine.Cancel()
}

func (s *Session) gestureOptionsLocked(skipFrame string) gesture.Options {
	anchors := make([]geometry.Anchor, 0, len(s.frames))
	for _, f := range s.frames {
		if f.ID == skipFrame {
			continue
		}
		anchors = append(anchors, geometry.Anchor{Rect: geometry.Rect(f.Geometry)})
	}
	return gesture.Options{
		Page:        pageMetrics(s.page),
		SnapEnabled: s.snap,
		MinSize:     domain.MinFrameSize,
		Zoom:        s.zoom,
		Anchors:     anchors,
	}
}

// pageMetrics bridges page settings to the geometry engine.
func pageMetrics(p domain.Page) geometry.PageMetrics {
	return geometry.PageMetrics{
		Width:        p.WidthPx,
		Height:       p.HeightPx,
		MarginTop:    p.Margins.Top,
		MarginRight:  p.Margins.Right,
		MarginBottom: p.Margins.Bottom,
		MarginLeft:   p.Margins.Left,
		GridEnabled:  p.Grid.Enabled,
		GridColumns:  p.Grid.Columns,
		GridGutter:   p.Grid.Gutter,
		GridRowStep:  p.Grid.RowHeight,
	}
}

// PointerDown routes a press into the gesture machine. Coordinates are in
// screen space; handle names the resize handle hit, empty for a body or
// background press. An open context menu swallows the press and closes.
func (s *Session) PointerDown(ev gesture.PointerEvent, handle geometry.Handle) gesture.Action {
	s.mu.Lock()
	if s.menu != nil {
		s.menu = nil
		s.mu.Unlock()
		return gesture.Action{}
	}
	px, py := ev.X/s.zoom, ev.Y/s.zoom
	var target *gesture.Target
	if f := s.hitTestLocked(px, py); f != nil {
		target = &gesture.Target{
			FrameID:      f.ID,
			Geometry:     geometry.Rect(f.Geometry),
			Locked:       f.Locked,
			AspectLocked: f.Type == domain.FrameImage,
			TextEditable: f.Type == domain.FrameText,
			Handle:       handle,
		}
		s.machine.SetOptions(s.gestureOptionsLocked(f.ID))
	} else {
		s.machine.SetOptions(s.gestureOptionsLocked(""))
	}
	s.mu.Unlock()

	idle := s.machine.Phase() == gesture.PhaseIdle
	act := s.machine.PointerDown(ev, target)
	if idle {
		// A press from a second pointer during a live gesture is ignored
		// by the machine and must not disturb the selection either.
		s.mu.Lock()
		s.selection = act.Select
		s.mu.Unlock()
	}
	return act
}

// PointerMove forwards a move and returns the live preview, if any.
func (s *Session) PointerMove(ev gesture.PointerEvent) *gesture.Preview {
	return s.machine.PointerMove(ev)
}

// PointerUp completes a gesture. A resulting commit is applied to the
// local model immediately and saved right away, skipping the debounce.
func (s *Session) PointerUp(ev gesture.PointerEvent) {
	c := s.machine.PointerUp(ev)
	if c == nil {
		return
	}
	s.applyGeometry(c.FrameID, c.Rect)
	s.saver.Commit()
}

// BeginTextEditSelected asks to open the text editor for the selected
// frame, mirroring the double-click path for an Enter keypress. It
// returns the frame id to edit, or empty when the selection is not an
// editable text frame.
func (s *Session) BeginTextEditSelected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.textFocus || s.selection == "" {
		return ""
	}
	i, ok := s.frameLocked(s.selection)
	if !ok || s.frames[i].Locked || s.frames[i].Type != domain.FrameText {
		return ""
	}
	return s.frames[i].ID
}

// CancelGesture drops a live gesture without committing.
func (s *Session) CancelGesture() { s.machine.Cancel() }

// applyGeometry moves the local frame and schedules a save.
func (s *Session) applyGeometry(id string, r geometry.Rect) {
	s.mu.Lock()
	i, ok := s.frameLocked(id)
	if !ok {
		s.mu.Unlock()
		return
	}
	s.frames[i].Geometry = domain.Rect(r)
	s.pending[id] = r
	s.statuses[id] = autosave.StatusIdle
	s.mu.Unlock()
	s.saver.MarkDirty()
}

// Nudge moves the selected frame by one step (ten with large), clamped to
// the page. It is a no-op while focus is in a text input, nothing is
// selected, or the selected frame is locked.
func (s *Session) Nudge(dx, dy float64, large bool) bool {
	s.mu.Lock()
	if s.textFocus || s.selection == "" {
		s.mu.Unlock()
		return false
	}
	i, ok := s.frameLocked(s.selection)
	if !ok || s.frames[i].Locked {
		s.mu.Unlock()
		return false
	}
	step := NudgeStep
	if large {
		step = NudgeStepLarge
	}
	r := geometry.Rect(s.frames[i].Geometry).Translate(dx*step, dy*step)
	r = geometry.ClampToPage(r, s.page.WidthPx, s.page.HeightPx, domain.MinFrameSize)
	id := s.frames[i].ID
	s.mu.Unlock()

	s.applyGeometry(id, r)
	return true
}

// DeleteSelected removes the selected frame, honoring its version token.
// Disabled while focus is in a text input.
func (s *Session) DeleteSelected(ctx context.Context) error {
	s.mu.Lock()
	if s.textFocus || s.selection == "" {
		s.mu.Unlock()
		return nil
	}
	i, ok := s.frameLocked(s.selection)
	if !ok {
		s.selection = ""
		s.mu.Unlock()
		return nil
	}
	f := s.frames[i]
	s.mu.Unlock()

	if err := s.svc.RemoveFrame(ctx, f.ID, f.Version); err != nil {
		return err
	}
	s.mu.Lock()
	if i, ok := s.frameLocked(f.ID); ok {
		s.frames = append(s.frames[:i], s.frames[i+1:]...)
	}
	delete(s.pending, f.ID)
	s.selection = ""
	s.mu.Unlock()
	return nil
}

// InsertImage handles a drop of an image asset at a page-space point.
// dropKey identifies the drop event; repeats within the dedupe window are
// rejected with ErrDuplicateDrop. When the point sits over an eligible
// placeholder container the new image frame adopts its bounds, otherwise a
// default-sized frame is centered on the point.
func (s *Session) InsertImage(ctx context.Context, x, y float64, source, dropKey string) (domain.Frame, error) {
	if s.drops.Seen(dropKey) {
		return domain.Frame{}, fmt.Errorf("%w: %s", ErrDuplicateDrop, dropKey)
	}

	s.mu.Lock()
	pageID := s.page.ID
	var geom *domain.Rect
	if id, ok := s.dropTargetLocked(x, y); ok {
		if i, found := s.frameLocked(id); found {
			g := s.frames[i].Geometry
			geom = &g
		}
	} else {
		d := domain.NewFrame(s.page, domain.FrameImage)
		g := d.Geometry
		g.X = x - g.W/2
		g.Y = y - g.H/2
		geom = &g
	}
	s.mu.Unlock()

	frame, err := s.svc.CreateFrame(ctx, domain.CreateFrameInput{
		PageID:   pageID,
		Type:     domain.FrameImage,
		Geometry: geom,
		Content:  domain.ImageContent{Source: source},
	})
	if err != nil {
		s.drops.Forget(dropKey)
		return domain.Frame{}, err
	}

	s.mu.Lock()
	s.frames = append(s.frames, frame)
	s.sortFramesLocked()
	s.selection = frame.ID
	s.mu.Unlock()
	return frame, nil
}

func (s *Session) dropTargetLocked(x, y float64) (string, bool) {
	p := geometry.Pt{X: x, Y: y}
	for i := len(s.frames) - 1; i >= 0; i-- {
		f := s.frames[i]
		if f.Type != domain.FrameContainer || f.Locked {
			continue
		}
		if geometry.Rect(f.Geometry).Contains(p) {
			return f.ID, true
		}
	}
	return "", false
}

// RegionStatus reports the save status of one frame's edits, for the
// inline per-region indicator.
func (s *Session) RegionStatus(id string) autosave.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statuses[id]
}

// SaveStatus reports the controller-wide status and last error.
func (s *Session) SaveStatus() (autosave.Status, error) { return s.saver.Status() }

// Flush pushes all pending edits immediately.
func (s *Session) Flush(ctx context.Context) error { return s.saver.Flush(ctx) }

// Reload discards local pending edits and refetches the page and frames,
// clearing a conflict halt.
func (s *Session) Reload(ctx context.Context) error {
	page, err := s.svc.GetPage(ctx, s.page.ID)
	if err != nil {
		return err
	}
	frames, err := s.svc.ListFrames(ctx, page.ID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.page = page
	s.frames = frames
	s.sortFramesLocked()
	s.pending = make(map[string]geometry.Rect)
	s.statuses = make(map[string]autosave.Status)
	if _, ok := s.frameLocked(s.selection); !ok {
		s.selection = ""
	}
	s.mu.Unlock()
	s.saver.Reload()
	return nil
}

// Overwrite force-saves pending edits, discarding the remote versions that
// caused a conflict.
func (s *Session) Overwrite(ctx context.Context) error { return s.saver.Overwrite(ctx) }

// savePending is the autosave SaveFunc: it writes every pending geometry
// patch. force drops the version check (the Overwrite path).
func (s *Session) savePending(ctx context.Context, force bool) error {
	s.mu.Lock()
	batch := make(map[string]geometry.Rect, len(s.pending))
	versions := make(map[string]int64, len(s.pending))
	for id, r := range s.pending {
		batch[id] = r
		if i, ok := s.frameLocked(id); ok {
			versions[id] = s.frames[i].Version
		}
	}
	s.mu.Unlock()

	var firstErr error
	for id, r := range batch {
		expected := versions[id]
		if force {
			expected = 0
		}
		x, y, w, h := r.X, r.Y, r.W, r.H
		updated, err := s.svc.UpdateFrame(ctx, id, domain.UpdateFrameInput{
			X: &x, Y: &y, W: &w, H: &h,
			ExpectedVersion: expected,
		})
		s.mu.Lock()
		if err != nil {
			if errors.Is(err, store.ErrVersionConflict) {
				s.statuses[id] = autosave.StatusConflict
			} else {
				s.statuses[id] = autosave.StatusError
			}
			s.mu.Unlock()
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if i, ok := s.frameLocked(id); ok {
			s.frames[i].Version = updated.Version
			s.frames[i].UpdatedAt = updated.UpdatedAt
		}
		// drop only if no newer edit replaced it mid-save
		if cur, ok := s.pending[id]; ok && cur == r {
			delete(s.pending, id)
		}
		s.statuses[id] = autosave.StatusSaved
		s.mu.Unlock()
	}
	return firstErr
}
