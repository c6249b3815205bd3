/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// JSON wire codec for frames and frame inputs. Style and content are
// interfaces carrying the tagged envelope, so they need explicit encode
// and decode; everything else falls through to the default rules.

import (
	"encoding/json"
	"time"
)

type frameJSON struct {
	ID          string          `json:"id"`
	PageID      string          `json:"pageId"`
	StorybookID string          `json:"storybookId"`
	OwnerID     string          `json:"ownerId"`
	Type        FrameType       `json:"type"`
	Geometry    Rect            `json:"geometry"`
	ZIndex      int             `json:"zIndex"`
	Locked      bool            `json:"locked"`
	Style       json.RawMessage `json:"style,omitempty"`
	Content     json.RawMessage `json:"content,omitempty"`
	Crop        *Crop           `json:"crop,omitempty"`
	Version     int64           `json:"version"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func (f Frame) MarshalJSON() ([]byte, error) {
	w := frameJSON{
		ID:          f.ID,
		PageID:      f.PageID,
		StorybookID: f.StorybookID,
		OwnerID:     f.OwnerID,
		Type:        f.Type,
		Geometry:    f.Geometry,
		ZIndex:      f.ZIndex,
		Locked:      f.Locked,
		Crop:        f.Crop,
		Version:     f.Version,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
	var err error
	if f.Style != nil {
		if w.Style, err = MarshalStyle(f.Style); err != nil {
			return nil, err
		}
	}
	if f.Content != nil {
		if w.Content, err = MarshalContent(f.Content); err != nil {
			return nil, err
		}
	}
	return json.Marshal(w)
}

func (f *Frame) UnmarshalJSON(data []byte) error {
	var w frameJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	f.ID = w.ID
	f.PageID = w.PageID
	f.StorybookID = w.StorybookID
	f.OwnerID = w.OwnerID
	f.Type = w.Type
	f.Geometry = w.Geometry
	f.ZIndex = w.ZIndex
	f.Locked = w.Locked
	f.Crop = w.Crop
	f.Version = w.Version
	f.CreatedAt = w.CreatedAt
	f.UpdatedAt = w.UpdatedAt
	f.Style = nil
	f.Content = nil
	var err error
	if len(w.Style) > 0 {
		if f.Style, err = UnmarshalStyle(w.Style); err != nil {
			return err
		}
	}
	if len(w.Content) > 0 {
		if f.Content, err = UnmarshalContent(w.Content); err != nil {
			return err
		}
	}
	return nil
}

type createFrameJSON struct {
	PageID   string          `json:"pageId"`
	Type     FrameType       `json:"type"`
	Geometry *Rect           `json:"geometry,omitempty"`
	Style    json.RawMessage `json:"style,omitempty"`
	Content  json.RawMessage `json:"content,omitempty"`
	Locked   bool            `json:"locked,omitempty"`
}

func (in CreateFrameInput) MarshalJSON() ([]byte, error) {
	w := createFrameJSON{PageID: in.PageID, Type: in.Type, Geometry: in.Geometry, Locked: in.Locked}
	var err error
	if in.Style != nil {
		if w.Style, err = MarshalStyle(in.Style); err != nil {
			return nil, err
		}
	}
	if in.Content != nil {
		if w.Content, err = MarshalContent(in.Content); err != nil {
			return nil, err
		}
	}
	return json.Marshal(w)
}

func (in *CreateFrameInput) UnmarshalJSON(data []byte) error {
	var w createFrameJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	in.PageID = w.PageID
	in.Type = w.Type
	in.Geometry = w.Geometry
	in.Locked = w.Locked
	in.Style = nil
	in.Content = nil
	var err error
	if len(w.Style) > 0 {
		if in.Style, err = UnmarshalStyle(w.Style); err != nil {
			return err
		}
	}
	if len(w.Content) > 0 {
		if in.Content, err = UnmarshalContent(w.Content); err != nil {
			return err
		}
	}
	return nil
}

type updateFrameJSON struct {
	X               *float64        `json:"x,omitempty"`
	Y               *float64        `json:"y,omitempty"`
	W               *float64        `json:"w,omitempty"`
	H               *float64        `json:"h,omitempty"`
	ZIndex          *int            `json:"zIndex,omitempty"`
	Locked          *bool           `json:"locked,omitempty"`
	Style           json.RawMessage `json:"style,omitempty"`
	Content         json.RawMessage `json:"content,omitempty"`
	Crop            *Crop           `json:"crop,omitempty"`
	ClearCrop       bool            `json:"clearCrop,omitempty"`
	ExpectedVersion int64           `json:"expectedVersion"`
}

func (in UpdateFrameInput) MarshalJSON() ([]byte, error) {
	w := updateFrameJSON{
		X: in.X, Y: in.Y, W: in.W, H: in.H,
		ZIndex: in.ZIndex, Locked: in.Locked,
		Crop: in.Crop, ClearCrop: in.ClearCrop,
		ExpectedVersion: in.ExpectedVersion,
	}
	var err error
	if in.Style != nil {
		if w.Style, err = MarshalStyle(in.Style); err != nil {
			return nil, err
		}
	}
	if in.Content != nil {
		if w.Content, err = MarshalContent(in.Content); err != nil {
			return nil, err
		}
	}
	return json.Marshal(w)
}

func (in *UpdateFrameInput) UnmarshalJSON(data []byte) error {
	var w updateFrameJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	in.X, in.Y, in.W, in.H = w.X, w.Y, w.W, w.H
	in.ZIndex = w.ZIndex
	in.Locked = w.Locked
	in.Crop = w.Crop
	in.ClearCrop = w.ClearCrop
	in.ExpectedVersion = w.ExpectedVersion
	in.Style = nil
	in.Content = nil
	var err error
	if len(w.Style) > 0 {
		if in.Style, err = UnmarshalStyle(w.Style); err != nil {
			return err
		}
	}
	if len(w.Content) > 0 {
		if in.Content, err = UnmarshalContent(w.Content); err != nil {
			return err
		}
	}
	return nil
}
