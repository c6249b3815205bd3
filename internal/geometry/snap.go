/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package geometry

// Grid snapping and page clamping for frame geometry. Snap never violates
// the page-bounds or minimum-size invariants: clamping is always the final
// step, whatever the grid proposed.

import "math"

// DefaultMinSize is the fallback minimum frame edge length in page pixels.
const DefaultMinSize = 24.0

// DefaultRowStep is the fallback vertical snap step when a page grid does
// not configure a row height.
const DefaultRowStep = 12.0

// PageMetrics carries the page properties snapping needs. The margins
// define the safe area; the grid defines the snap steps.
type PageMetrics struct {
	Width  float64
	Height float64

	MarginTop    float64
	MarginRight  float64
	MarginBottom float64
	MarginLeft   float64

	GridEnabled bool
	GridColumns int
	GridGutter  float64
	GridRowStep float64
}

// SafeArea returns the margin-inner rectangle.
func (p PageMetrics) SafeArea() Rect {
	return Rect{
		X: p.MarginLeft,
		Y: p.MarginTop,
		W: p.Width - p.MarginLeft - p.MarginRight,
		H: p.Height - p.MarginTop - p.MarginBottom,
	}
}

// ColumnStep returns the horizontal snap step: one column width plus one
// gutter. Zero when the grid is not usable.
func (p PageMetrics) ColumnStep() float64 {
	if p.GridColumns <= 0 {
		return 0
	}
	content := p.Width - p.MarginLeft - p.MarginRight
	colW := (content - float64(p.GridColumns-1)*p.GridGutter) / float64(p.GridColumns)
	if colW <= 0 {
		return 0
	}
	return colW + p.GridGutter
}

// RowStep returns the vertical snap step.
func (p PageMetrics) RowStep() float64 {
	if p.GridRowStep > 0 {
		return p.GridRowStep
	}
	return DefaultRowStep
}

// SnapOptions controls a Snap call.
type SnapOptions struct {
	// SnapEnabled is the user toggle; grid snapping also requires the
	// page grid to be enabled.
	SnapEnabled bool
	// MinSize floors w and h; zero means DefaultMinSize.
	MinSize float64
}

// SnapResult is the adjusted rectangle plus the safe-area flag. The flag is
// informational only and never blocks an operation.
type SnapResult struct {
	Rect            Rect
	OutsideSafeArea bool
}

// Snap clamps the proposed rectangle into the page, applies grid snapping
// when both the option and the page grid ask for it, and re-clamps so the
// result always satisfies the bounds and minimum-size invariants.
func Snap(proposed Rect, page PageMetrics, opts SnapOptions) SnapResult {
	minSize := opts.MinSize
	if minSize <= 0 {
		minSize = DefaultMinSize
	}

	r := ClampToPage(proposed, page.Width, page.Height, minSize)

	if opts.SnapEnabled && page.GridEnabled {
		if step := page.ColumnStep(); step > 0 {
			r.X = page.MarginLeft + snapTo(r.X-page.MarginLeft, step)
			if w := snapTo(r.W, step); w >= minSize {
				r.W = w
			}
		}
		row := page.RowStep()
		r.Y = page.MarginTop + snapTo(r.Y-page.MarginTop, row)
		if h := snapTo(r.H, row); h >= minSize {
			r.H = h
		}
		// snapping may have pushed the rect past an edge
		r = ClampToPage(r, page.Width, page.Height, minSize)
	}

	return SnapResult{
		Rect:            r,
		OutsideSafeArea: !page.SafeArea().ContainsRect(r),
	}
}

// ClampToPage forces the rectangle inside [0,0,pageW,pageH] with both edges
// floored at minSize. Size is clamped first so the position clamp cannot
// push the rectangle back out.
func ClampToPage(r Rect, pageW, pageH, minSize float64) Rect {
	r.W = clamp(r.W, minSize, pageW)
	r.H = clamp(r.H, minSize, pageH)
	r.X = clamp(r.X, 0, pageW-r.W)
	r.Y = clamp(r.Y, 0, pageH-r.H)
	return r
}

func snapTo(v, step float64) float64 {
	return math.Round(v/step) * step
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
