/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package store persists pages and frames with optimistic concurrency.
// Every accepted mutation increments the entity's version by exactly one;
// a mutation carrying a stale expected version fails with
// ErrVersionConflict and changes nothing. An expected version of zero
// bypasses the check (forced overwrite).
//
// Two implementations exist: the embedded SQLite store in this package and
// the HTTP client in internal/backend talking to the shared server. Both
// satisfy CanvasService so the editor does not care which one it runs on.
package store

import (
	"context"
	"errors"

	"storycanvas/internal/domain"
)

var (
	// ErrNotFound reports a missing page or frame.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict reports a stale expected version.
	ErrVersionConflict = errors.New("version conflict")
	// ErrValidation wraps input validation failures.
	ErrValidation = errors.New("invalid input")
)

// CanvasService is the persistence facade the editor runs against.
type CanvasService interface {
	// EnsureDefaultCanvas returns the storybook's first page, creating
	// one with defaults when the storybook has none. Idempotent.
	EnsureDefaultCanvas(ctx context.Context, storybookID, ownerID string) (domain.Page, error)

	CreatePage(ctx context.Context, in domain.CreatePageInput) (domain.Page, error)
	GetPage(ctx context.Context, id string) (domain.Page, error)
	UpdatePage(ctx context.Context, id string, in domain.UpdatePageInput) (domain.Page, error)
	// ListPages returns the storybook's pages ordered by order index.
	ListPages(ctx context.Context, storybookID string) ([]domain.Page, error)
	// ReorderPages atomically assigns contiguous order indexes following
	// orderedIDs, which must be a permutation of the storybook's pages.
	ReorderPages(ctx context.Context, storybookID string, orderedIDs []string) ([]domain.Page, error)
	RemovePage(ctx context.Context, id string, expectedVersion int64) error

	CreateFrame(ctx context.Context, in domain.CreateFrameInput) (domain.Frame, error)
	GetFrame(ctx context.Context, id string) (domain.Frame, error)
	UpdateFrame(ctx context.Context, id string, in domain.UpdateFrameInput) (domain.Frame, error)
	// MoveFrameZ shifts a frame by delta z slots within its page and
	// reassigns dense z indexes 0..n-1. Large deltas clamp to front or
	// back. It returns the page's frames in their new order.
	MoveFrameZ(ctx context.Context, id string, delta int, expectedVersion int64) ([]domain.Frame, error)
	RemoveFrame(ctx context.Context, id string, expectedVersion int64) error
	// ListFrames returns the page's frames ordered by z index, ties
	// broken by id.
	ListFrames(ctx context.Context, pageID string) ([]domain.Frame, error)
}

// versionMatches applies the optimistic check: zero always matches.
func versionMatches(expected, current int64) bool {
	return expected == 0 || expected == current
}
