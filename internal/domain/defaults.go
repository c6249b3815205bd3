/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// Creation defaults per frame type and per page preset. A frame created
// without explicit geometry/style/content gets these values so a fresh
// insert is immediately visible and editable on the canvas.

// DefaultStyle returns the default style variant for a frame type.
func DefaultStyle(t FrameType) Style {
	switch t {
	case FrameText:
		return TextStyle{Font: "Literata", Size: 18, Color: "#1a1a1a", Align: "left", LineHeight: 1.4}
	case FrameImage:
		return ImageStyle{Fit: "cover", Radius: 0, BorderColor: "", BorderWidth: 0}
	case FrameShape:
		return ShapeStyle{Kind: "rect", Fill: "#e8e0d4", Stroke: "#1a1a1a", StrokeWidth: 1, Radius: 0}
	case FrameLine:
		return LineStyle{Stroke: "#1a1a1a", StrokeWidth: 2, Dash: ""}
	case FrameContainer:
		return ContainerStyle{Fill: "#f4f1ea", Stroke: "#b9b1a3", StrokeWidth: 1, Dash: "4 4"}
	case FrameGroup:
		return GroupStyle{}
	}
	return nil
}

// DefaultContent returns the default content variant for a frame type.
func DefaultContent(t FrameType) Content {
	switch t {
	case FrameText:
		return TextContent{Text: ""}
	case FrameImage:
		return ImageContent{}
	case FrameShape:
		return ShapeContent{}
	case FrameLine:
		return LineContent{}
	case FrameContainer:
		return ContainerContent{Label: "Drop an image here"}
	case FrameGroup:
		return GroupContent{}
	}
	return nil
}

// DefaultGeometry returns the default bounding box for a new frame of the
// given type on a page of the given size, roughly centered.
func DefaultGeometry(t FrameType, pageW, pageH float64) Rect {
	var w, h float64
	switch t {
	case FrameText:
		w, h = 320, 120
	case FrameImage, FrameContainer:
		w, h = 280, 210
	case FrameShape:
		w, h = 160, 160
	case FrameLine:
		w, h = 240, MinFrameSize
	case FrameGroup:
		w, h = 320, 240
	default:
		w, h = 160, 120
	}
	if w > pageW {
		w = pageW
	}
	if h > pageH {
		h = pageH
	}
	return Rect{X: (pageW - w) / 2, Y: (pageH - h) / 2, W: w, H: h}
}

// DefaultMargins returns the default safe-area margins for a page preset.
func DefaultMargins(SizePreset) Margins {
	return Margins{Top: 48, Right: 48, Bottom: 48, Left: 48, Unit: "px"}
}

// DefaultGrid returns the default layout grid for new pages.
func DefaultGrid() Grid {
	return Grid{Enabled: true, Columns: 12, Gutter: 16, RowHeight: 12, ShowGuides: true}
}

// NewPage builds an unsaved page with derived pixel dimensions and defaults.
// ID and timestamps are assigned by the store.
func NewPage(storybookID, ownerID string, preset SizePreset, orderIndex int) Page {
	if !preset.Valid() {
		preset = DefaultSizePreset
	}
	w, h := preset.PixelSize()
	return Page{
		StorybookID: storybookID,
		OwnerID:     ownerID,
		OrderIndex:  orderIndex,
		SizePreset:  preset,
		WidthPx:     w,
		HeightPx:    h,
		Margins:     DefaultMargins(preset),
		Grid:        DefaultGrid(),
		Background:  Background{Fill: "#ffffff"},
	}
}

// NewFrame builds an unsaved frame of the given type with per-type defaults.
// ID, z index, version and timestamps are assigned by the store.
func NewFrame(page Page, t FrameType) Frame {
	return Frame{
		PageID:      page.ID,
		StorybookID: page.StorybookID,
		OwnerID:     page.OwnerID,
		Type:        t,
		Geometry:    DefaultGeometry(t, page.WidthPx, page.HeightPx),
		Style:       DefaultStyle(t),
		Content:     DefaultContent(t),
	}
}
