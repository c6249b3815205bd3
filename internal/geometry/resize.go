/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package geometry

import "math"

// Handle identifies one of the eight compass resize handles of a frame.
type Handle string

const (
	HandleN  Handle = "n"
	HandleNE Handle = "ne"
	HandleE  Handle = "e"
	HandleSE Handle = "se"
	HandleS  Handle = "s"
	HandleSW Handle = "sw"
	HandleW  Handle = "w"
	HandleNW Handle = "nw"
)

// Handles lists all resize handles in clockwise order starting north.
func Handles() []Handle {
	return []Handle{HandleN, HandleNE, HandleE, HandleSE, HandleS, HandleSW, HandleW, HandleNW}
}

func (h Handle) movesWest() bool  { return h == HandleNW || h == HandleW || h == HandleSW }
func (h Handle) movesEast() bool  { return h == HandleNE || h == HandleE || h == HandleSE }
func (h Handle) movesNorth() bool { return h == HandleNW || h == HandleN || h == HandleNE }
func (h Handle) movesSouth() bool { return h == HandleSW || h == HandleS || h == HandleSE }

// IsCorner reports whether the handle moves both axes.
func (h Handle) IsCorner() bool {
	return (h.movesWest() || h.movesEast()) && (h.movesNorth() || h.movesSouth())
}

// ResizeWithHandle moves one edge or corner of start by (dx, dy) in page
// coordinates while keeping the opposite edge fixed. Both dimensions are
// floored at minSize; when a dimension hits the floor the dragged edge
// stops and the fixed edge stays put. The result is not clamped to a page,
// callers pass it through Snap afterwards.
func ResizeWithHandle(start Rect, h Handle, dx, dy, minSize float64) Rect {
	if minSize <= 0 {
		minSize = DefaultMinSize
	}
	r := start

	switch {
	case h.movesEast():
		r.W = math.Max(minSize, start.W+dx)
	case h.movesWest():
		r.W = math.Max(minSize, start.W-dx)
		r.X = start.X + start.W - r.W
	}

	switch {
	case h.movesSouth():
		r.H = math.Max(minSize, start.H+dy)
	case h.movesNorth():
		r.H = math.Max(minSize, start.H-dy)
		r.Y = start.Y + start.H - r.H
	}

	return r
}

// ResizeAspect resizes like ResizeWithHandle but preserves the aspect
// ratio of start. For corner handles the axis with the larger relative
// change wins and the other follows; for edge handles the dragged axis
// leads and the other is centered on the start rectangle.
func ResizeAspect(start Rect, h Handle, dx, dy, minSize float64) Rect {
	if minSize <= 0 {
		minSize = DefaultMinSize
	}
	if start.W <= 0 || start.H <= 0 {
		return ResizeWithHandle(start, h, dx, dy, minSize)
	}
	aspect := start.W / start.H

	free := ResizeWithHandle(start, h, dx, dy, 0)
	var w, h2 float64
	switch {
	case h.IsCorner():
		sx := free.W / start.W
		sy := free.H / start.H
		s := sy
		if math.Abs(sx-1) >= math.Abs(sy-1) {
			s = sx
		}
		w = start.W * s
		h2 = w / aspect
	case h.movesEast() || h.movesWest():
		w = free.W
		h2 = w / aspect
	default:
		h2 = free.H
		w = h2 * aspect
	}

	// floor both dimensions without breaking the ratio
	if w < minSize {
		w = minSize
		h2 = w / aspect
	}
	if h2 < minSize {
		h2 = minSize
		w = h2 * aspect
	}

	r := Rect{W: w, H: h2}

	// anchor the opposite corner or edge
	switch {
	case h.movesWest():
		r.X = start.X + start.W - w
	case h.movesEast():
		r.X = start.X
	default:
		r.X = start.X + (start.W-w)/2
	}
	switch {
	case h.movesNorth():
		r.Y = start.Y + start.H - h2
	case h.movesSouth():
		r.Y = start.Y
	default:
		r.Y = start.Y + (start.H-h2)/2
	}

	return r
}
