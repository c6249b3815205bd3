/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// Boundary input shapes for the persistence contract, with validation.
// Enums are closed sets: unknown values are rejected here, never coerced.

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// CreateFrameInput describes a frame creation request. Geometry, style and
// content are optional; missing pieces fall back to per-type defaults.
type CreateFrameInput struct {
	PageID   string    `validate:"required"`
	Type     FrameType `validate:"required,oneof=text image shape line frame group"`
	Geometry *Rect
	Style    Style
	Content  Content
	Locked   bool
}

// Validate checks the input against the closed enum sets and variant typing.
func (in CreateFrameInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("create frame: %w", err)
	}
	if in.Style != nil && in.Style.StyleType() != in.Type {
		return fmt.Errorf("create frame: style variant %s does not match frame type %s", in.Style.StyleType(), in.Type)
	}
	if in.Content != nil && in.Content.ContentType() != in.Type {
		return fmt.Errorf("create frame: content variant %s does not match frame type %s", in.Content.ContentType(), in.Type)
	}
	if g := in.Geometry; g != nil && (g.W < 0 || g.H < 0) {
		return fmt.Errorf("create frame: negative geometry %vx%v", g.W, g.H)
	}
	return nil
}

// UpdateFrameInput is a partial patch for a frame. Nil fields are left
// untouched. ExpectedVersion carries the optimistic-concurrency token the
// caller believes is current; zero forces the write (last writer wins), the
// explicit overwrite path of conflict recovery.
type UpdateFrameInput struct {
	X         *float64
	Y         *float64
	W         *float64 `validate:"omitempty,gte=0"`
	H         *float64 `validate:"omitempty,gte=0"`
	ZIndex    *int
	Locked    *bool
	Style     Style
	Content   Content
	Crop      *Crop
	ClearCrop bool

	ExpectedVersion int64 `validate:"gte=0"`
}

// Validate checks patch fields; variant typing against the stored frame type
// is checked by the store, which knows the entity.
func (in UpdateFrameInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("update frame: %w", err)
	}
	if in.Crop != nil && in.Crop.Scale <= 0 {
		return fmt.Errorf("update frame: crop scale must be positive")
	}
	if in.Crop != nil && in.ClearCrop {
		return fmt.Errorf("update frame: crop and clearCrop are mutually exclusive")
	}
	return nil
}

// Empty reports whether the patch changes nothing.
func (in UpdateFrameInput) Empty() bool {
	return in.X == nil && in.Y == nil && in.W == nil && in.H == nil &&
		in.ZIndex == nil && in.Locked == nil && in.Style == nil &&
		in.Content == nil && in.Crop == nil && !in.ClearCrop
}

// CreatePageInput describes a page creation request.
type CreatePageInput struct {
	StorybookID string     `json:"storybookId" validate:"required"`
	OwnerID     string     `json:"ownerId,omitempty" validate:"required"`
	SizePreset  SizePreset `json:"sizePreset,omitempty" validate:"omitempty,oneof=square-8x8 portrait-8.5x11 landscape-11x8.5 a4-portrait"`
}

// Validate checks the input against the closed preset set.
func (in CreatePageInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	return nil
}

// UpdatePageInput is a partial settings patch for a page.
type UpdatePageInput struct {
	SizePreset *SizePreset `json:"sizePreset,omitempty" validate:"omitempty,oneof=square-8x8 portrait-8.5x11 landscape-11x8.5 a4-portrait"`
	Margins    *Margins    `json:"margins,omitempty"`
	Grid       *Grid       `json:"grid,omitempty"`
	Background *Background `json:"background,omitempty"`

	ExpectedVersion int64 `json:"expectedVersion" validate:"gte=0"`
}

// Validate checks patch fields against the closed sets.
func (in UpdatePageInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("update page: %w", err)
	}
	if g := in.Grid; g != nil {
		if g.Columns <= 0 {
			return fmt.Errorf("update page: grid columns must be positive")
		}
		if g.Gutter < 0 || g.RowHeight < 0 {
			return fmt.Errorf("update page: grid gutter and row height must be non-negative")
		}
	}
	if m := in.Margins; m != nil && (m.Top < 0 || m.Right < 0 || m.Bottom < 0 || m.Left < 0) {
		return fmt.Errorf("update page: margins must be non-negative")
	}
	return nil
}
