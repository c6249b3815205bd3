/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package preview renders flat page thumbnails. Frames are painted as
// filled boxes in z order; the result is a recognizable miniature, not a
// faithful rendering, and feeds the page-list preview cache.
package preview

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sort"

	xdraw "golang.org/x/image/draw"

	"storycanvas/internal/domain"
)

// DefaultMaxDim bounds the longer thumbnail edge in pixels.
const DefaultMaxDim = 256

// placeholder palette for frames without an explicit fill
var typeFills = map[domain.FrameType]color.NRGBA{
	domain.FrameText:      {0x44, 0x44, 0x44, 0xff},
	domain.FrameImage:     {0x8a, 0xb4, 0xd8, 0xff},
	domain.FrameShape:     {0xd8, 0xa8, 0x5a, 0xff},
	domain.FrameLine:      {0x66, 0x66, 0x66, 0xff},
	domain.FrameContainer: {0xcf, 0xcf, 0xcf, 0xff},
	domain.FrameGroup:     {0xe8, 0xe8, 0xe8, 0xff},
}

// Render paints the page at full size into an NRGBA image.
func Render(page domain.Page, frames []domain.Frame) (*image.NRGBA, error) {
	w, h := int(page.WidthPx), int(page.HeightPx)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("page %s has no pixel size", page.ID)
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))

	bg, ok := parseHex(page.Background.Fill)
	if !ok {
		bg = color.NRGBA{0xff, 0xff, 0xff, 0xff}
	}
	fillRect(img, img.Bounds(), bg)

	ordered := make([]domain.Frame, len(frames))
	copy(ordered, frames)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].ZIndex != ordered[j].ZIndex {
			return ordered[i].ZIndex < ordered[j].ZIndex
		}
		return ordered[i].ID < ordered[j].ID
	})

	for _, f := range ordered {
		fillRect(img, frameBounds(f), frameFill(f))
	}
	return img, nil
}

// Thumbnail renders the page and scales it so the longer edge is maxDim
// (0 uses the default), returning PNG bytes.
func Thumbnail(page domain.Page, frames []domain.Frame, maxDim int) ([]byte, error) {
	if maxDim <= 0 {
		maxDim = DefaultMaxDim
	}
	full, err := Render(page, frames)
	if err != nil {
		return nil, err
	}

	fw, fh := full.Bounds().Dx(), full.Bounds().Dy()
	tw, th := fw, fh
	if fw >= fh && fw > maxDim {
		tw = maxDim
		th = fh * maxDim / fw
	} else if fh > fw && fh > maxDim {
		th = maxDim
		tw = fw * maxDim / fh
	}
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}

	out := full
	if tw != fw || th != fh {
		scaled := image.NewNRGBA(image.Rect(0, 0, tw, th))
		xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), full, full.Bounds(), xdraw.Over, nil)
		out = scaled
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func frameBounds(f domain.Frame) image.Rectangle {
	g := f.Geometry
	return image.Rect(int(g.X), int(g.Y), int(g.X+g.W), int(g.Y+g.H))
}

// frameFill picks the paint color: an explicit style fill when the variant
// carries one, the type placeholder otherwise.
func frameFill(f domain.Frame) color.NRGBA {
	var hex string
	switch s := f.Style.(type) {
	case domain.ShapeStyle:
		hex = s.Fill
	case domain.ContainerStyle:
		hex = s.Fill
	case domain.TextStyle:
		hex = s.Color
	case domain.LineStyle:
		hex = s.Stroke
	}
	if c, ok := parseHex(hex); ok {
		return c
	}
	if c, ok := typeFills[f.Type]; ok {
		return c
	}
	return color.NRGBA{0xaa, 0xaa, 0xaa, 0xff}
}

func fillRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}

// parseHex reads #rgb and #rrggbb colors.
func parseHex(s string) (color.NRGBA, bool) {
	if len(s) == 0 || s[0] != '#' {
		return color.NRGBA{}, false
	}
	hex := s[1:]
	var r, g, b uint8
	switch len(hex) {
	case 3:
		rv, ok1 := nibble(hex[0])
		gv, ok2 := nibble(hex[1])
		bv, ok3 := nibble(hex[2])
		if !ok1 || !ok2 || !ok3 {
			return color.NRGBA{}, false
		}
		r, g, b = rv*17, gv*17, bv*17
	case 6:
		var vals [6]uint8
		for i := 0; i < 6; i++ {
			v, ok := nibble(hex[i])
			if !ok {
				return color.NRGBA{}, false
			}
			vals[i] = v
		}
		r = vals[0]<<4 | vals[1]
		g = vals[2]<<4 | vals[3]
		b = vals[4]<<4 | vals[5]
	default:
		return color.NRGBA{}, false
	}
	return color.NRGBA{r, g, b, 0xff}, true
}

func nibble(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
