/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package crash

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"storycanvas/internal/domain"
)

func testDraft(pageID string, at time.Time) Draft {
	return Draft{
		PageID:  pageID,
		Page:    domain.Page{ID: pageID, WidthPx: 768, HeightPx: 768},
		Frames: []domain.Frame{{
			ID:       "frm-1",
			PageID:   pageID,
			Type:     domain.FrameText,
			Geometry: domain.Rect{X: 10, Y: 10, W: 200, H: 80},
			Content:  domain.TextContent{Text: "unsaved words"},
		}},
		SavedAt: at,
	}
}

func TestDraftRoundTrip(t *testing.T) {
	dir := t.TempDir()
	d := testDraft("page-1", time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	path, err := WriteDraft(dir, d)
	if err != nil {
		t.Fatalf("write draft: %v", err)
	}
	got, err := LoadDraft(path)
	if err != nil {
		t.Fatalf("load draft: %v", err)
	}
	if got.PageID != "page-1" || len(got.Frames) != 1 {
		t.Fatalf("draft lost content: %+v", got)
	}
	tc, ok := got.Frames[0].Content.(domain.TextContent)
	if !ok || tc.Text != "unsaved words" {
		t.Fatalf("frame content lost: %#v", got.Frames[0].Content)
	}
}

func TestLatestDraftPicksNewest(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if _, err := WriteDraft(dir, testDraft("page-1", base)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := WriteDraft(dir, testDraft("page-1", base.Add(time.Minute))); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := WriteDraft(dir, testDraft("page-2", base.Add(2*time.Minute))); err != nil {
		t.Fatalf("write: %v", err)
	}

	d, path, err := LatestDraft(dir, "page-1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if d.PageID != "page-1" || !strings.Contains(path, "120100") {
		t.Fatalf("wrong draft picked: %s", path)
	}

	if _, _, err := LatestDraft(dir, "page-9"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing page should report ErrNotExist, got %v", err)
	}

	if err := RemoveDraft(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	d, _, err = LatestDraft(dir, "page-1")
	if err != nil || !strings.Contains(d.SavedAt.Format("150405"), "120000") {
		t.Fatalf("removal should expose the older draft, got %v %v", d.SavedAt, err)
	}
}

func TestLatestDraftMissingDir(t *testing.T) {
	if _, _, err := LatestDraft(filepath.Join(t.TempDir(), "none"), ""); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("want ErrNotExist, got %v", err)
	}
}

func TestRecoverWritesReportAndDraft(t *testing.T) {
	dir := t.TempDir()
	exitCode := -1
	exitFn = func(code int) { exitCode = code }
	defer func() { exitFn = os.Exit }()

	func() {
		defer Recover(dir, func() *Draft {
			d := testDraft("page-1", time.Now())
			return &d
		})
		panic("boom")
	}()

	if exitCode != 2 {
		t.Fatalf("want exit code 2, got %d", exitCode)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var report, draft bool
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "crash-") {
			report = true
		}
		if strings.HasPrefix(e.Name(), "draft-") {
			draft = true
		}
	}
	if !report || !draft {
		t.Fatalf("report=%v draft=%v", report, draft)
	}

	data, _, err := LatestDraft(dir, "page-1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if len(data.Frames) != 1 {
		t.Fatalf("draft frames lost")
	}
}

func TestRecoverNoPanicIsNoop(t *testing.T) {
	dir := t.TempDir()
	exitFn = func(int) { t.Fatalf("exit must not be called without a panic") }
	defer func() { exitFn = os.Exit }()

	func() {
		defer Recover(dir, nil)
	}()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("no files expected, got %d", len(entries))
	}
}
