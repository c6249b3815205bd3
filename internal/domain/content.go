/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// Style and Content are closed tagged unions keyed by frame type. Each
// variant has an explicit schema; serialization wraps the variant in an
// envelope {"type": <frame type>, ...fields} and decoding is strict, so an
// unknown tag or a stray field is rejected at the persistence boundary
// instead of being carried along as an open map.

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Style is the per-type visual styling variant of a frame.
type Style interface {
	// StyleType returns the frame type this style variant belongs to.
	StyleType() FrameType
}

// TextStyle styles a text frame.
type TextStyle struct {
	Font       string  `json:"font"`
	Size       float64 `json:"size"`
	Color      string  `json:"color"`
	Align      string  `json:"align"`
	LineHeight float64 `json:"lineHeight"`
}

// ImageStyle styles an image frame.
type ImageStyle struct {
	Fit         string  `json:"fit"` // cover | contain
	Radius      float64 `json:"radius"`
	BorderColor string  `json:"borderColor"`
	BorderWidth float64 `json:"borderWidth"`
}

// ShapeStyle styles a shape frame.
type ShapeStyle struct {
	Kind        string  `json:"kind"` // rect | ellipse
	Fill        string  `json:"fill"`
	Stroke      string  `json:"stroke"`
	StrokeWidth float64 `json:"strokeWidth"`
	Radius      float64 `json:"radius"`
}

// LineStyle styles a line frame.
type LineStyle struct {
	Stroke      string  `json:"stroke"`
	StrokeWidth float64 `json:"strokeWidth"`
	Dash        string  `json:"dash"`
}

// ContainerStyle styles an image placeholder container.
type ContainerStyle struct {
	Fill        string  `json:"fill"`
	Stroke      string  `json:"stroke"`
	StrokeWidth float64 `json:"strokeWidth"`
	Dash        string  `json:"dash"`
}

// GroupStyle is the (empty) style variant of a group frame.
type GroupStyle struct{}

func (TextStyle) StyleType() FrameType      { return FrameText }
func (ImageStyle) StyleType() FrameType     { return FrameImage }
func (ShapeStyle) StyleType() FrameType     { return FrameShape }
func (LineStyle) StyleType() FrameType      { return FrameLine }
func (ContainerStyle) StyleType() FrameType { return FrameContainer }
func (GroupStyle) StyleType() FrameType     { return FrameGroup }

// Content is the per-type payload variant of a frame.
type Content interface {
	// ContentType returns the frame type this content variant belongs to.
	ContentType() FrameType
}

// TextContent holds the text of a text frame.
type TextContent struct {
	Text string `json:"text"`
}

// ImageContent holds the image reference and credits of an image frame.
type ImageContent struct {
	Source      string `json:"source"`
	Caption     string `json:"caption"`
	Attribution string `json:"attribution"`
}

// ShapeContent is the (empty) content variant of a shape frame.
type ShapeContent struct{}

// LineContent is the (empty) content variant of a line frame.
type LineContent struct{}

// ContainerContent labels an image placeholder container.
type ContainerContent struct {
	Label string `json:"label"`
}

// GroupContent lists the member frame ids of a group.
type GroupContent struct {
	Children []string `json:"children"`
}

func (TextContent) ContentType() FrameType      { return FrameText }
func (ImageContent) ContentType() FrameType     { return FrameImage }
func (ShapeContent) ContentType() FrameType     { return FrameShape }
func (LineContent) ContentType() FrameType      { return FrameLine }
func (ContainerContent) ContentType() FrameType { return FrameContainer }
func (GroupContent) ContentType() FrameType     { return FrameGroup }

// envelope carries the discriminator tag alongside the variant fields.
type envelope struct {
	Type FrameType `json:"type"`
}

// MarshalStyle serializes a style variant into its tagged envelope.
func MarshalStyle(s Style) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("nil style")
	}
	return marshalTagged(s.StyleType(), s)
}

// UnmarshalStyle decodes a tagged style envelope, rejecting unknown tags and
// unknown fields.
func UnmarshalStyle(data []byte) (Style, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("style envelope: %w", err)
	}
	var s Style
	switch env.Type {
	case FrameText:
		s = &TextStyle{}
	case FrameImage:
		s = &ImageStyle{}
	case FrameShape:
		s = &ShapeStyle{}
	case FrameLine:
		s = &LineStyle{}
	case FrameContainer:
		s = &ContainerStyle{}
	case FrameGroup:
		s = &GroupStyle{}
	default:
		return nil, fmt.Errorf("unknown style type %q", env.Type)
	}
	if err := strictUnmarshal(data, s); err != nil {
		return nil, fmt.Errorf("style %s: %w", env.Type, err)
	}
	return deref(s).(Style), nil
}

// MarshalContent serializes a content variant into its tagged envelope.
func MarshalContent(c Content) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("nil content")
	}
	return marshalTagged(c.ContentType(), c)
}

// UnmarshalContent decodes a tagged content envelope, rejecting unknown tags
// and unknown fields.
func UnmarshalContent(data []byte) (Content, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("content envelope: %w", err)
	}
	var c Content
	switch env.Type {
	case FrameText:
		c = &TextContent{}
	case FrameImage:
		c = &ImageContent{}
	case FrameShape:
		c = &ShapeContent{}
	case FrameLine:
		c = &LineContent{}
	case FrameContainer:
		c = &ContainerContent{}
	case FrameGroup:
		c = &GroupContent{}
	default:
		return nil, fmt.Errorf("unknown content type %q", env.Type)
	}
	if err := strictUnmarshal(data, c); err != nil {
		return nil, fmt.Errorf("content %s: %w", env.Type, err)
	}
	return deref(c).(Content), nil
}

// marshalTagged flattens a variant into a single JSON object with the type tag.
func marshalTagged(t FrameType, v any) ([]byte, error) {
	fields, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	m := map[string]json.RawMessage{}
	if err := json.Unmarshal(fields, &m); err != nil {
		return nil, err
	}
	tag, _ := json.Marshal(t)
	m["type"] = tag
	return json.Marshal(m)
}

// strictUnmarshal decodes into v, tolerating only the "type" tag as an extra
// field relative to v's schema.
func strictUnmarshal(data []byte, v any) error {
	m := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	delete(m, "type")
	stripped, err := json.Marshal(m)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(stripped))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// deref unwraps the pointer used for decoding into the value variant.
func deref(v any) any {
	switch p := v.(type) {
	case *TextStyle:
		return *p
	case *ImageStyle:
		return *p
	case *ShapeStyle:
		return *p
	case *LineStyle:
		return *p
	case *ContainerStyle:
		return *p
	case *GroupStyle:
		return *p
	case *TextContent:
		return *p
	case *ImageContent:
		return *p
	case *ShapeContent:
		return *p
	case *LineContent:
		return *p
	case *ContainerContent:
		return *p
	case *GroupContent:
		return *p
	}
	return v
}
