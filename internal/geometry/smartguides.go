/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package geometry

// Smart guides for interactive frame moves. A dragged rectangle is aligned
// against the edges and centers of sibling frames and the page safe area.
// Deterministic and UI-agnostic so the same logic drives every frontend.

import "math"

// GuideOptions controls which guide candidates are considered and the
// alignment threshold.
type GuideOptions struct {
	// Threshold is the maximum distance (in page pixels) at which
	// alignment occurs. Typical UI values are 6-8 pixels.
	Threshold float64
	// Align to edges (left, right, top, bottom)
	SnapToEdges bool
	// Align to centers (cx, cy)
	SnapToCenters bool
}

// Anchor is a static reference rect, usually a sibling frame's geometry or
// the page safe area. Weight biases selection when distances tie (higher is
// preferred); use 1 when unsure.
type Anchor struct {
	Rect   Rect
	Weight float64
}

// GuideLine describes a visual guide generated during an alignment.
// Orientation is "vertical" or "horizontal"; Kind is "edge" or "center".
// From and To are the guide extents for rendering and Position is the x
// (vertical) or y (horizontal) coordinate. Values are rounded to 3 decimal
// places for deterministic output.
type GuideLine struct {
	Orientation string
	Kind        string
	Position    float64
	From        Pt
	To          Pt
}

// ComputeSmartGuides aligns a moving rectangle against a set of anchors and
// returns the adjusted rectangle plus the guide lines to render. Alignment
// happens independently in X and Y.
func ComputeSmartGuides(moving Rect, anchors []Anchor, opts GuideOptions) (Rect, []GuideLine) {
	if opts.Threshold <= 0 {
		opts.Threshold = 6
	}
	var guides []GuideLine

	// Horizontal (X) candidates: left, centerX, right
	bestDX, bestDXDist, bestDXGuide := 0.0, math.MaxFloat64, (GuideLine{})
	// Vertical (Y) candidates: top, centerY, bottom
	bestDY, bestDYDist, bestDYGuide := 0.0, math.MaxFloat64, (GuideLine{})

	mxL, mxR, mxT, mxB := moving.X, moving.X+moving.W, moving.Y, moving.Y+moving.H
	mxCX, mxCY := moving.X+moving.W/2, moving.Y+moving.H/2

	for _, a := range anchors {
		axL, axR, axT, axB := a.Rect.X, a.Rect.X+a.Rect.W, a.Rect.Y, a.Rect.Y+a.Rect.H
		axCX, axCY := a.Rect.X+a.Rect.W/2, a.Rect.Y+a.Rect.H/2

		// X axis
		if opts.SnapToEdges {
			// left-to-left
			consider(&bestDX, &bestDXDist, &bestDXGuide, mxL-axL, opts.Threshold, a.Weight, guideForVertical(axL, moving, a.Rect, "edge"))
			// right-to-right
			consider(&bestDX, &bestDXDist, &bestDXGuide, mxR-axR, opts.Threshold, a.Weight, guideForVertical(axR, moving, a.Rect, "edge"))
			// left-to-right (abut) and right-to-left
			consider(&bestDX, &bestDXDist, &bestDXGuide, mxL-axR, opts.Threshold, a.Weight, guideForVertical(axR, moving, a.Rect, "edge"))
			consider(&bestDX, &bestDXDist, &bestDXGuide, mxR-axL, opts.Threshold, a.Weight, guideForVertical(axL, moving, a.Rect, "edge"))
		}
		if opts.SnapToCenters {
			consider(&bestDX, &bestDXDist, &bestDXGuide, mxCX-axCX, opts.Threshold, a.Weight, guideForVertical(axCX, moving, a.Rect, "center"))
		}

		// Y axis
		if opts.SnapToEdges {
			// top-to-top
			consider(&bestDY, &bestDYDist, &bestDYGuide, mxT-axT, opts.Threshold, a.Weight, guideForHorizontal(axT, moving, a.Rect, "edge"))
			// bottom-to-bottom
			consider(&bestDY, &bestDYDist, &bestDYGuide, mxB-axB, opts.Threshold, a.Weight, guideForHorizontal(axB, moving, a.Rect, "edge"))
			// top-to-bottom and bottom-to-top
			consider(&bestDY, &bestDYDist, &bestDYGuide, mxT-axB, opts.Threshold, a.Weight, guideForHorizontal(axB, moving, a.Rect, "edge"))
			consider(&bestDY, &bestDYDist, &bestDYGuide, mxB-axT, opts.Threshold, a.Weight, guideForHorizontal(axT, moving, a.Rect, "edge"))
		}
		if opts.SnapToCenters {
			consider(&bestDY, &bestDYDist, &bestDYGuide, mxCY-axCY, opts.Threshold, a.Weight, guideForHorizontal(axCY, moving, a.Rect, "center"))
		}
	}

	snapped := moving
	if bestDXDist <= opts.Threshold {
		snapped.X = FloatRound(moving.X-bestDX, 3)
		guides = append(guides, bestDXGuide)
	}
	if bestDYDist <= opts.Threshold {
		snapped.Y = FloatRound(moving.Y-bestDY, 3)
		guides = append(guides, bestDYGuide)
	}
	return snapped, guides
}

func consider(bestDelta *float64, bestDist *float64, bestGuide *GuideLine, delta, threshold, weight float64, g GuideLine) {
	dist := math.Abs(delta)
	if dist > threshold {
		return
	}
	score := dist / math.Max(1, weight)
	if score < *bestDist {
		*bestDist = dist
		*bestDelta = delta
		*bestGuide = g
	}
}

func guideForVertical(x float64, a Rect, b Rect, kind string) GuideLine {
	minY := math.Min(a.Y, b.Y)
	maxY := math.Max(a.Y+a.H, b.Y+b.H)
	x = FloatRound(x, 3)
	return GuideLine{
		Orientation: "vertical",
		Kind:        kind,
		Position:    x,
		From:        Pt{x, minY},
		To:          Pt{x, maxY},
	}
}

func guideForHorizontal(y float64, a Rect, b Rect, kind string) GuideLine {
	minX := math.Min(a.X, b.X)
	maxX := math.Max(a.X+a.W, b.X+b.W)
	y = FloatRound(y, 3)
	return GuideLine{
		Orientation: "horizontal",
		Kind:        kind,
		Position:    y,
		From:        Pt{minX, y},
		To:          Pt{maxX, y},
	}
}
