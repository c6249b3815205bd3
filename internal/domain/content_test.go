/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"strings"
	"testing"
)

func TestStyleEnvelopeRoundTrip(t *testing.T) {
	in := TextStyle{Font: "Literata", Size: 21, Color: "#222222", Align: "center", LineHeight: 1.3}
	b, err := MarshalStyle(in)
	if err != nil {
		t.Fatalf("MarshalStyle: %v", err)
	}
	if !strings.Contains(string(b), `"type":"text"`) {
		t.Fatalf("envelope missing type tag: %s", b)
	}
	out, err := UnmarshalStyle(b)
	if err != nil {
		t.Fatalf("UnmarshalStyle: %v", err)
	}
	got, ok := out.(TextStyle)
	if !ok {
		t.Fatalf("wrong variant decoded: %T", out)
	}
	if got != in {
		t.Fatalf("round trip mismatch: %+v != %+v", got, in)
	}
}

func TestContentEnvelopeRoundTrip(t *testing.T) {
	in := ImageContent{Source: "https://img.example/cat.jpg", Caption: "A cat", Attribution: "Photo: Someone"}
	b, err := MarshalContent(in)
	if err != nil {
		t.Fatalf("MarshalContent: %v", err)
	}
	out, err := UnmarshalContent(b)
	if err != nil {
		t.Fatalf("UnmarshalContent: %v", err)
	}
	got, ok := out.(ImageContent)
	if !ok {
		t.Fatalf("wrong variant decoded: %T", out)
	}
	if got != in {
		t.Fatalf("round trip mismatch: %+v != %+v", got, in)
	}
}

func TestUnmarshalStyleRejectsUnknownTag(t *testing.T) {
	if _, err := UnmarshalStyle([]byte(`{"type":"sticker","fill":"#fff"}`)); err == nil {
		t.Fatalf("unknown style tag accepted")
	}
}

func TestUnmarshalStyleRejectsUnknownFields(t *testing.T) {
	if _, err := UnmarshalStyle([]byte(`{"type":"line","stroke":"#000","strokeWidth":2,"dash":"","glow":true}`)); err == nil {
		t.Fatalf("stray field accepted")
	}
}

func TestUnmarshalContentGroupChildren(t *testing.T) {
	b, err := MarshalContent(GroupContent{Children: []string{"frm-a", "frm-b"}})
	if err != nil {
		t.Fatalf("MarshalContent: %v", err)
	}
	out, err := UnmarshalContent(b)
	if err != nil {
		t.Fatalf("UnmarshalContent: %v", err)
	}
	g, ok := out.(GroupContent)
	if !ok {
		t.Fatalf("wrong variant decoded: %T", out)
	}
	if len(g.Children) != 2 || g.Children[0] != "frm-a" || g.Children[1] != "frm-b" {
		t.Fatalf("children lost: %+v", g)
	}
}

func TestMarshalNilVariants(t *testing.T) {
	if _, err := MarshalStyle(nil); err == nil {
		t.Fatalf("nil style accepted")
	}
	if _, err := MarshalContent(nil); err == nil {
		t.Fatalf("nil content accepted")
	}
}
