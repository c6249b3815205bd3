/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash captures panics, writes a report, and flushes the open
// canvas as a recovery draft so unsaved edits survive the process.
package crash

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"storycanvas/internal/domain"
	applog "storycanvas/internal/log"
	"storycanvas/internal/telemetry"
	"storycanvas/internal/version"
)

// exitFn is swapped in tests so Recover does not kill the test process.
var exitFn = os.Exit

// Draft is the unsaved canvas state flushed on a crash.
type Draft struct {
	PageID  string         `json:"pageId"`
	Page    domain.Page    `json:"page"`
	Frames  []domain.Frame `json:"frames"`
	SavedAt time.Time      `json:"savedAt"`
}

// DraftFunc returns the current draft, or nil when there is nothing worth
// recovering. It must not panic.
type DraftFunc func() *Draft

// Recover captures a panic, logs it with the stack, writes a crash report
// and the recovery draft into dir, and exits non-zero.
//
// Usage: defer crash.Recover(crashDir, draftFn)
func Recover(dir string, draft DraftFunc) {
	r := recover()
	if r == nil {
		return
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	reportPath, report, err := writeReport(dir, r, stack)
	if err != nil {
		l.Error("crash report write failed", slog.Any("err", err))
	}
	// opt-in only; a no-op unless the user configured an upload endpoint
	telemetry.UploadCrash(report)
	if draft != nil {
		if d := draft(); d != nil {
			if path, err := WriteDraft(dir, *d); err != nil {
				l.Error("recovery draft write failed", slog.Any("err", err))
			} else {
				l.Info("recovery draft written", slog.String("path", path))
			}
		}
	}

	fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath)
	fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
	exitFn(2)
}

func writeReport(dir string, panicVal any, stack []byte) (string, []byte, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, err
	}
	stamp := time.Now().Format("20060102-150405")
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", stamp))

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Story Canvas Crash Report\n")
	fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&buf, "Version: %s\n", version.String())
	fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return path, buf.Bytes(), err
	}
	return path, buf.Bytes(), nil
}

// WriteDraft persists a recovery draft into dir and returns its path.
func WriteDraft(dir string, d Draft) (string, error) {
	if d.PageID == "" {
		return "", errors.New("draft has no page id")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure crash dir: %w", err)
	}
	if d.SavedAt.IsZero() {
		d.SavedAt = time.Now()
	}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode draft: %w", err)
	}
	stamp := d.SavedAt.Format("20060102-150405")
	path := filepath.Join(dir, fmt.Sprintf("draft-%s-%s.json", d.PageID, stamp))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write draft: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("rename draft: %w", err)
	}
	return path, nil
}

// LoadDraft reads one recovery draft file.
func LoadDraft(path string) (Draft, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Draft{}, fmt.Errorf("read draft: %w", err)
	}
	var d Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return Draft{}, fmt.Errorf("decode draft: %w", err)
	}
	return d, nil
}

// LatestDraft finds the newest recovery draft for a page, empty pageID for
// any page. The second return is the file path; os.ErrNotExist when there
// is none.
func LatestDraft(dir, pageID string) (Draft, string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return Draft{}, "", os.ErrNotExist
	}
	if err != nil {
		return Draft{}, "", fmt.Errorf("read crash dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "draft-") || !strings.HasSuffix(name, ".json") {
			continue
		}
		if pageID != "" && !strings.HasPrefix(name, "draft-"+pageID+"-") {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return Draft{}, "", os.ErrNotExist
	}
	// the timestamp suffix sorts lexicographically
	sort.Strings(names)
	path := filepath.Join(dir, names[len(names)-1])
	d, err := LoadDraft(path)
	if err != nil {
		return Draft{}, path, err
	}
	return d, path, nil
}

// RemoveDraft deletes a consumed recovery draft.
func RemoveDraft(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove draft: %w", err)
	}
	return nil
}
