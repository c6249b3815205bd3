/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package gesture turns raw pointer events into selection, move and resize
// actions on frames. The machine is UI-agnostic: a frontend feeds it
// pointer downs, moves and ups in screen coordinates and renders the
// previews it hands back. Exactly one commit is produced per completed
// drag, on release. The machine is not safe for concurrent use; drive it
// from the UI event loop only.
package gesture

import (
	"math"

	"storycanvas/internal/geometry"
)

// Phase is the machine's current state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDragging
	PhaseResizing
)

func (p Phase) String() string {
	switch p {
	case PhaseDragging:
		return "dragging"
	case PhaseResizing:
		return "resizing"
	default:
		return "idle"
	}
}

// DefaultSlop is the distance in screen pixels a pointer must travel
// before a press becomes a drag.
const DefaultSlop = 3.0

// Modifiers are the keyboard modifiers held during a pointer event.
type Modifiers struct {
	Shift bool
	Alt   bool
}

// PointerEvent is one pointer sample in screen coordinates. Detail is the
// click count (2 for a double click). PointerID distinguishes concurrent
// pointers; events from a pointer other than the one that started the
// active gesture are ignored.
type PointerEvent struct {
	PointerID int
	X, Y      float64
	Detail    int
	Mods      Modifiers
}

// Target describes the frame (or handle) under the pointer at press time.
// The frontend resolves hit testing; the machine only needs the result.
type Target struct {
	FrameID  string
	Geometry geometry.Rect
	Locked   bool
	// AspectLocked makes aspect-preserving resize the default for this
	// target (image frames); holding Shift releases it.
	AspectLocked bool
	// TextEditable enables the double-click text edit action.
	TextEditable bool
	// Handle is the resize handle hit, or empty for the frame body.
	Handle geometry.Handle
}

// Options configures a gesture run. Zoom converts screen deltas to page
// deltas; zero means 1. Anchors are sibling rects for smart guides.
type Options struct {
	Page        geometry.PageMetrics
	SnapEnabled bool
	MinSize     float64
	Zoom        float64
	Slop        float64
	Anchors     []geometry.Anchor
	// GuideThreshold in page pixels; zero uses the smart-guide default.
	GuideThreshold float64
}

// Preview is the transient geometry to render while a gesture is live.
// Nothing has been committed yet.
type Preview struct {
	FrameID         string
	Rect            geometry.Rect
	Guides          []geometry.GuideLine
	OutsideSafeArea bool
}

// Commit is the single terminal result of a completed drag.
type Commit struct {
	FrameID string
	Rect    geometry.Rect
}

// Action is what a pointer press asks the frontend to do immediately,
// independent of any drag that may follow.
type Action struct {
	// Select carries the frame id to select, or empty for a background
	// press (clear selection).
	Select string
	// BeginTextEdit carries the frame id whose text editor should open.
	BeginTextEdit string
}

// Machine is the pointer gesture state machine for one canvas.
type Machine struct {
	opts Options

	phase     Phase
	pointerID int
	target    Target
	downX     float64
	downY     float64
	moved     bool
	preview   *Preview
}

// NewMachine returns an idle machine with the given options.
func NewMachine(opts Options) *Machine {
	if opts.Zoom <= 0 {
		opts.Zoom = 1
	}
	if opts.Slop <= 0 {
		opts.Slop = DefaultSlop
	}
	return &Machine{opts: opts}
}

// Phase returns the current state.
func (m *Machine) Phase() Phase { return m.phase }

// SetOptions replaces the options for subsequent gestures. A live gesture
// keeps the options it started with.
func (m *Machine) SetOptions(opts Options) {
	if m.phase != PhaseIdle {
		return
	}
	if opts.Zoom <= 0 {
		opts.Zoom = 1
	}
	if opts.Slop <= 0 {
		opts.Slop = DefaultSlop
	}
	m.opts = opts
}

// PointerDown starts a gesture. A nil target is a background press: the
// selection clears and no gesture arms. A press on a locked frame selects
// it but never arms a drag. A double click on a text-editable frame asks
// for text editing instead of arming a drag.
func (m *Machine) PointerDown(ev PointerEvent, target *Target) Action {
	if m.phase != PhaseIdle {
		// a second pointer while a gesture is live is ignored
		return Action{}
	}
	if target == nil {
		return Action{}
	}

	act := Action{Select: target.FrameID}
	if ev.Detail >= 2 && target.TextEditable && !target.Locked {
		act.BeginTextEdit = target.FrameID
		return act
	}
	if target.Locked {
		return act
	}

	m.pointerID = ev.PointerID
	m.target = *target
	m.downX, m.downY = ev.X, ev.Y
	m.moved = false
	m.preview = nil
	if target.Handle != "" {
		m.phase = PhaseResizing
	} else {
		m.phase = PhaseDragging
	}
	return act
}

// PointerMove advances a live gesture and returns the preview to render,
// or nil when nothing should change (idle, foreign pointer, or still
// within the movement slop).
func (m *Machine) PointerMove(ev PointerEvent) *Preview {
	if m.phase == PhaseIdle || ev.PointerID != m.pointerID {
		return nil
	}

	sdx, sdy := ev.X-m.downX, ev.Y-m.downY
	if !m.moved {
		if math.Hypot(sdx, sdy) < m.opts.Slop {
			return nil
		}
		m.moved = true
	}

	dx, dy := sdx/m.opts.Zoom, sdy/m.opts.Zoom

	var candidate geometry.Rect
	var guides []geometry.GuideLine
	switch m.phase {
	case PhaseDragging:
		candidate = m.target.Geometry.Translate(dx, dy)
		candidate, guides = geometry.ComputeSmartGuides(candidate, m.opts.Anchors, geometry.GuideOptions{
			Threshold:     m.opts.GuideThreshold,
			SnapToEdges:   true,
			SnapToCenters: true,
		})
	case PhaseResizing:
		// Shift inverts the target's default: it forces aspect on free
		// frames and releases it on aspect-locked ones.
		if m.target.AspectLocked != ev.Mods.Shift {
			candidate = geometry.ResizeAspect(m.target.Geometry, m.target.Handle, dx, dy, m.opts.MinSize)
		} else {
			candidate = geometry.ResizeWithHandle(m.target.Geometry, m.target.Handle, dx, dy, m.opts.MinSize)
		}
	}

	res := geometry.Snap(candidate, m.opts.Page, geometry.SnapOptions{
		SnapEnabled: m.opts.SnapEnabled && !ev.Mods.Alt,
		MinSize:     m.opts.MinSize,
	})
	m.preview = &Preview{
		FrameID:         m.target.FrameID,
		Rect:            res.Rect,
		Guides:          guides,
		OutsideSafeArea: res.OutsideSafeArea,
	}
	return m.preview
}

// PointerUp ends a live gesture. It returns the commit exactly once, and
// only when the pointer actually dragged the frame somewhere new. Releases
// from foreign pointers are ignored and keep the gesture live.
func (m *Machine) PointerUp(ev PointerEvent) *Commit {
	if m.phase == PhaseIdle || ev.PointerID != m.pointerID {
		return nil
	}

	preview := m.preview
	moved := m.moved
	start := m.target.Geometry
	frameID := m.target.FrameID
	m.reset()

	if !moved || preview == nil || preview.Rect == start {
		return nil
	}
	return &Commit{FrameID: frameID, Rect: preview.Rect}
}

// Cancel tears down any live gesture without committing. Frontends call it
// on focus loss, escape, or canvas teardown.
func (m *Machine) Cancel() {
	m.reset()
}

func (m *Machine) reset() {
	m.phase = PhaseIdle
	m.pointerID = 0
	m.target = Target{}
	m.moved = false
	m.preview = nil
}
