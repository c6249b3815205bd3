/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the core data model for the Story Canvas editor:
// storybooks, their ordered pages, and the positionable frames placed on a
// page. Frames carry a monotonically increasing version used as the
// optimistic-concurrency token by the persistence layer.

import "time"

// FrameType is the closed set of frame kinds a page can hold.
type FrameType string

const (
	FrameText      FrameType = "text"
	FrameImage     FrameType = "image"
	FrameShape     FrameType = "shape"
	FrameLine      FrameType = "line"
	FrameContainer FrameType = "frame" // image placeholder container
	FrameGroup     FrameType = "group"
)

// Valid reports whether the frame type is a member of the closed set.
func (t FrameType) Valid() bool {
	switch t {
	case FrameText, FrameImage, FrameShape, FrameLine, FrameContainer, FrameGroup:
		return true
	}
	return false
}

// FrameTypes lists all valid frame types in a stable order.
func FrameTypes() []FrameType {
	return []FrameType{FrameText, FrameImage, FrameShape, FrameLine, FrameContainer, FrameGroup}
}

// SizePreset is the closed set of fixed paper sizes a page can use.
// Pixel dimensions are derived, never stored independently of the preset.
type SizePreset string

const (
	SizeSquare    SizePreset = "square-8x8"
	SizePortrait  SizePreset = "portrait-8.5x11"
	SizeLandscape SizePreset = "landscape-11x8.5"
	SizeA4        SizePreset = "a4-portrait"
)

// Valid reports whether the preset is a member of the closed set.
func (p SizePreset) Valid() bool {
	switch p {
	case SizeSquare, SizePortrait, SizeLandscape, SizeA4:
		return true
	}
	return false
}

// PixelSize returns the page dimensions in page pixel space (96 dpi).
func (p SizePreset) PixelSize() (w, h float64) {
	switch p {
	case SizePortrait:
		return 816, 1056
	case SizeLandscape:
		return 1056, 816
	case SizeA4:
		return 794, 1123
	default: // SizeSquare
		return 768, 768
	}
}

// DefaultSizePreset is used when a page is created without an explicit preset.
const DefaultSizePreset = SizeSquare

// Margins define the safe area inside a page. Unit is informational and
// currently always "px".
type Margins struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
	Unit   string  `json:"unit"`
}

// Grid describes the layout grid frames can snap to.
type Grid struct {
	Enabled    bool    `json:"enabled"`
	Columns    int     `json:"columns"`
	Gutter     float64 `json:"gutter"`
	RowHeight  float64 `json:"rowHeight"`
	ShowGuides bool    `json:"showGuides"`
}

// Background holds page background styling.
type Background struct {
	Fill string `json:"fill"`
}

// Rect is a frame's bounding box in page pixel space.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Crop describes image framing inside an image frame. Nil means no crop.
type Crop struct {
	FocalX float64 `json:"focalX"`
	FocalY float64 `json:"focalY"`
	Scale  float64 `json:"scale"`
}

// Page is a sized canvas holding an ordered collection of frames.
// OrderIndex values are unique and contiguous within a storybook.
type Page struct {
	ID          string     `json:"id"`
	StorybookID string     `json:"storybookId"`
	OwnerID     string     `json:"ownerId"`
	OrderIndex  int        `json:"orderIndex"`
	SizePreset  SizePreset `json:"sizePreset"`
	WidthPx     float64    `json:"widthPx"`
	HeightPx    float64    `json:"heightPx"`
	Margins     Margins    `json:"margins"`
	Grid        Grid       `json:"grid"`
	Background  Background `json:"background"`
	Version     int64      `json:"version"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Frame is a positionable, typed element placed on a page.
// Version increments by exactly 1 on every accepted mutation and is the
// optimistic-concurrency token carried by update and delete requests.
type Frame struct {
	ID          string    `json:"id"`
	PageID      string    `json:"pageId"`
	StorybookID string    `json:"storybookId"`
	OwnerID     string    `json:"ownerId"`
	Type        FrameType `json:"type"`
	Geometry    Rect      `json:"geometry"`
	ZIndex      int       `json:"zIndex"`
	Locked      bool      `json:"locked"`
	Style       Style     `json:"style"`
	Content     Content   `json:"content"`
	Crop        *Crop     `json:"crop,omitempty"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// MinFrameSize is the default minimum width and height of a frame in page
// pixels. Geometry operations floor w/h here; see geometry.SnapOptions for
// the per-call override.
const MinFrameSize = 24.0
