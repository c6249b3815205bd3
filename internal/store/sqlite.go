/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"storycanvas/internal/domain"
	"storycanvas/internal/geometry"
	applog "storycanvas/internal/log"
	"storycanvas/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// CanvasDirName stores the local canvas database under the workspace root.
	CanvasDirName  = ".storycanvas"
	CanvasFileName = "canvas.sqlite"

	// schemaVersion tracks the local SQLite schema. Bump it when you
	// perform breaking schema changes and add a migration step.
	schemaVersion = 1
)

// CanvasPath returns the full path to the workspace's canvas database file.
func CanvasPath(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, CanvasDirName, CanvasFileName)
}

// SQLite is the embedded CanvasService backed by a local database file.
type SQLite struct {
	db *sql.DB
}

var _ CanvasService = (*SQLite)(nil)

// OpenWorkspace opens (or creates) the canvas database under the given
// workspace root, enables WAL mode and brings the schema up to date.
func OpenWorkspace(workspaceRoot string) (*SQLite, error) {
	l := applog.WithOperation(applog.WithComponent("store"), "open").With(
		slog.String("root", workspaceRoot),
	)
	if strings.TrimSpace(workspaceRoot) == "" {
		return nil, errors.New("workspace root is required")
	}
	if err := os.MkdirAll(filepath.Join(workspaceRoot, CanvasDirName), 0o755); err != nil {
		l.Error("create canvas dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create canvas dir: %w", err)
	}
	return openFile(CanvasPath(workspaceRoot), l)
}

// OpenPath opens a canvas database at an explicit file path. Tests use it
// with temp directories.
func OpenPath(path string) (*SQLite, error) {
	l := applog.WithOperation(applog.WithComponent("store"), "open").With(
		slog.String("path", path),
	)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create canvas dir: %w", err)
	}
	return openFile(path, l)
}

func openFile(path string, l *slog.Logger) (*SQLite, error) {
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Embedded usage: one writer connection is enough.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("enable foreign_keys failed", slog.Any("err", err))
	}

	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure schema failed", slog.Any("err", err))
		return nil, err
	}

	l.Info("canvas database ready", slog.String("path", path))
	return &SQLite{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error { return s.db.Close() }

func ensureSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS schema_info (
			id         INTEGER PRIMARY KEY CHECK(id=1),
			schema     INTEGER NOT NULL,
			app        TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS pages (
			id           TEXT PRIMARY KEY,
			storybook_id TEXT    NOT NULL,
			owner_id     TEXT    NOT NULL,
			order_index  INTEGER NOT NULL,
			size_preset  TEXT    NOT NULL,
			width_px     REAL    NOT NULL,
			height_px    REAL    NOT NULL,
			margins      TEXT    NOT NULL,
			grid         TEXT    NOT NULL,
			background   TEXT    NOT NULL,
			version      INTEGER NOT NULL,
			created_at   TEXT    NOT NULL,
			updated_at   TEXT    NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_pages_storybook ON pages(storybook_id, order_index);`,
		`CREATE TABLE IF NOT EXISTS frames (
			id           TEXT PRIMARY KEY,
			page_id      TEXT    NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
			storybook_id TEXT    NOT NULL,
			owner_id     TEXT    NOT NULL,
			type         TEXT    NOT NULL,
			x            REAL    NOT NULL,
			y            REAL    NOT NULL,
			w            REAL    NOT NULL,
			h            REAL    NOT NULL,
			z_index      INTEGER NOT NULL,
			locked       INTEGER NOT NULL DEFAULT 0,
			style        TEXT    NOT NULL,
			content      TEXT    NOT NULL,
			crop         TEXT,
			version      INTEGER NOT NULL,
			created_at   TEXT    NOT NULL,
			updated_at   TEXT    NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_frames_page ON frames(page_id, z_index);`,
		// Page thumbnail cache for the page rail.
		`CREATE TABLE IF NOT EXISTS previews (
			page_id    TEXT PRIMARY KEY REFERENCES pages(id) ON DELETE CASCADE,
			thumb_blob BLOB NOT NULL,
			updated_at TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM schema_info WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO schema_info (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert schema info: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read schema info: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE schema_info SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update schema info: %w", err)
		}
	}
	return nil
}

// --- pages ---

func (s *SQLite) EnsureDefaultCanvas(ctx context.Context, storybookID, ownerID string) (domain.Page, error) {
	pages, err := s.ListPages(ctx, storybookID)
	if err != nil {
		return domain.Page{}, err
	}
	if len(pages) > 0 {
		return pages[0], nil
	}
	return s.CreatePage(ctx, domain.CreatePageInput{
		StorybookID: storybookID,
		OwnerID:     ownerID,
		SizePreset:  domain.DefaultSizePreset,
	})
}

func (s *SQLite) CreatePage(ctx context.Context, in domain.CreatePageInput) (domain.Page, error) {
	if err := in.Validate(); err != nil {
		return domain.Page{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var next int
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(order_index)+1, 0) FROM pages WHERE storybook_id=?`, in.StorybookID).Scan(&next)
	if err != nil {
		return domain.Page{}, fmt.Errorf("next order index: %w", err)
	}

	p := domain.NewPage(in.StorybookID, in.OwnerID, in.SizePreset, next)
	p.ID = domain.MustID(domain.PrefixPage)
	p.Version = 1
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt

	margins, grid, background, err := marshalPageJSON(p)
	if err != nil {
		return domain.Page{}, err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO pages
		(id, storybook_id, owner_id, order_index, size_preset, width_px, height_px, margins, grid, background, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.StorybookID, p.OwnerID, p.OrderIndex, string(p.SizePreset), p.WidthPx, p.HeightPx,
		margins, grid, background, p.Version, fmtTime(p.CreatedAt), fmtTime(p.UpdatedAt))
	if err != nil {
		return domain.Page{}, fmt.Errorf("insert page: %w", err)
	}
	return p, nil
}

func (s *SQLite) GetPage(ctx context.Context, id string) (domain.Page, error) {
	row := s.db.QueryRowContext(ctx, selectPage+` WHERE id=?`, id)
	return scanPage(row)
}

func (s *SQLite) ListPages(ctx context.Context, storybookID string) ([]domain.Page, error) {
	rows, err := s.db.QueryContext(ctx, selectPage+` WHERE storybook_id=? ORDER BY order_index, id`, storybookID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	var out []domain.Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLite) UpdatePage(ctx context.Context, id string, in domain.UpdatePageInput) (domain.Page, error) {
	if err := in.Validate(); err != nil {
		return domain.Page{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Page{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	p, err := scanPage(tx.QueryRowContext(ctx, selectPage+` WHERE id=?`, id))
	if err != nil {
		return domain.Page{}, err
	}
	if !versionMatches(in.ExpectedVersion, p.Version) {
		return domain.Page{}, fmt.Errorf("page %s at version %d: %w", id, p.Version, ErrVersionConflict)
	}

	resized := false
	if in.SizePreset != nil && *in.SizePreset != p.SizePreset {
		p.SizePreset = *in.SizePreset
		p.WidthPx, p.HeightPx = p.SizePreset.PixelSize()
		resized = true
	}
	if in.Margins != nil {
		p.Margins = *in.Margins
	}
	if in.Grid != nil {
		p.Grid = *in.Grid
	}
	if in.Background != nil {
		p.Background = *in.Background
	}
	p.Version++
	p.UpdatedAt = time.Now().UTC()

	margins, grid, background, err := marshalPageJSON(p)
	if err != nil {
		return domain.Page{}, err
	}
	res, err := tx.ExecContext(ctx, `UPDATE pages SET size_preset=?, width_px=?, height_px=?, margins=?, grid=?, background=?, version=?, updated_at=?
		WHERE id=? AND version=?`,
		string(p.SizePreset), p.WidthPx, p.HeightPx, margins, grid, background, p.Version, fmtTime(p.UpdatedAt), id, p.Version-1)
	if err != nil {
		return domain.Page{}, fmt.Errorf("update page: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Page{}, fmt.Errorf("page %s: %w", id, ErrVersionConflict)
	}

	// A smaller page can strand frames outside its bounds; pull them back in.
	if resized {
		if err := clampFramesTx(ctx, tx, p); err != nil {
			return domain.Page{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Page{}, fmt.Errorf("commit: %w", err)
	}
	return p, nil
}

// clampFramesTx clamps every frame of the page into the new page bounds.
// Frames that move or shrink get a version bump like any other mutation.
func clampFramesTx(ctx context.Context, tx *sql.Tx, p domain.Page) error {
	rows, err := tx.QueryContext(ctx, `SELECT id, x, y, w, h, version FROM frames WHERE page_id=?`, p.ID)
	if err != nil {
		return fmt.Errorf("load frames: %w", err)
	}
	type adj struct {
		id      string
		r       geometry.Rect
		version int64
	}
	var adjust []adj
	for rows.Next() {
		var a adj
		if err := rows.Scan(&a.id, &a.r.X, &a.r.Y, &a.r.W, &a.r.H, &a.version); err != nil {
			rows.Close()
			return fmt.Errorf("scan frame: %w", err)
		}
		clamped := geometry.ClampToPage(a.r, p.WidthPx, p.HeightPx, domain.MinFrameSize)
		if clamped != a.r {
			a.r = clamped
			adjust = append(adjust, a)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	now := fmtTime(time.Now().UTC())
	for _, a := range adjust {
		if _, err := tx.ExecContext(ctx, `UPDATE frames SET x=?, y=?, w=?, h=?, version=version+1, updated_at=? WHERE id=?`,
			a.r.X, a.r.Y, a.r.W, a.r.H, now, a.id); err != nil {
			return fmt.Errorf("clamp frame %s: %w", a.id, err)
		}
	}
	return nil
}

func (s *SQLite) ReorderPages(ctx context.Context, storybookID string, orderedIDs []string) ([]domain.Page, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT id, order_index FROM pages WHERE storybook_id=?`, storybookID)
	if err != nil {
		return nil, fmt.Errorf("load pages: %w", err)
	}
	current := map[string]int{}
	for rows.Next() {
		var id string
		var idx int
		if err := rows.Scan(&id, &idx); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan page: %w", err)
		}
		current[id] = idx
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// orderedIDs must name exactly the storybook's pages
	if len(orderedIDs) != len(current) {
		return nil, fmt.Errorf("%w: reorder names %d pages, storybook has %d", ErrValidation, len(orderedIDs), len(current))
	}
	seen := map[string]bool{}
	for _, id := range orderedIDs {
		if _, ok := current[id]; !ok {
			return nil, fmt.Errorf("%w: page %s not in storybook", ErrValidation, id)
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: page %s listed twice", ErrValidation, id)
		}
		seen[id] = true
	}

	now := fmtTime(time.Now().UTC())
	for want, id := range orderedIDs {
		if current[id] == want {
			continue
		}
		if _, err := tx.ExecContext(ctx, `UPDATE pages SET order_index=?, version=version+1, updated_at=? WHERE id=?`, want, now, id); err != nil {
			return nil, fmt.Errorf("reorder page %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.ListPages(ctx, storybookID)
}

func (s *SQLite) RemovePage(ctx context.Context, id string, expectedVersion int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var cur int64
	err = tx.QueryRowContext(ctx, `SELECT version FROM pages WHERE id=?`, id).Scan(&cur)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("page %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("read page: %w", err)
	}
	if !versionMatches(expectedVersion, cur) {
		return fmt.Errorf("page %s at version %d: %w", id, cur, ErrVersionConflict)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM frames WHERE page_id=?`, id); err != nil {
		return fmt.Errorf("delete frames: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM previews WHERE page_id=?`, id); err != nil {
		return fmt.Errorf("delete preview: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pages WHERE id=?`, id); err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	return tx.Commit()
}

// --- frames ---

func (s *SQLite) CreateFrame(ctx context.Context, in domain.CreateFrameInput) (domain.Frame, error) {
	if err := in.Validate(); err != nil {
		return domain.Frame{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Frame{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	page, err := scanPage(tx.QueryRowContext(ctx, selectPage+` WHERE id=?`, in.PageID))
	if err != nil {
		return domain.Frame{}, err
	}

	f := domain.NewFrame(page, in.Type)
	f.ID = domain.MustID(domain.PrefixFrame)
	f.Locked = in.Locked
	if in.Geometry != nil {
		f.Geometry = *in.Geometry
	}
	if in.Style != nil {
		f.Style = in.Style
	}
	if in.Content != nil {
		f.Content = in.Content
	}
	f.Geometry = clampRect(f.Geometry, page)
	f.Version = 1
	f.CreatedAt = time.Now().UTC()
	f.UpdatedAt = f.CreatedAt

	var maxZ sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(z_index) FROM frames WHERE page_id=?`, in.PageID).Scan(&maxZ); err != nil {
		return domain.Frame{}, fmt.Errorf("next z index: %w", err)
	}
	if maxZ.Valid {
		f.ZIndex = int(maxZ.Int64) + 1
	}

	style, content, crop, err := marshalFrameJSON(f)
	if err != nil {
		return domain.Frame{}, err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO frames
		(id, page_id, storybook_id, owner_id, type, x, y, w, h, z_index, locked, style, content, crop, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.PageID, f.StorybookID, f.OwnerID, string(f.Type),
		f.Geometry.X, f.Geometry.Y, f.Geometry.W, f.Geometry.H,
		f.ZIndex, boolToInt(f.Locked), style, content, crop, f.Version, fmtTime(f.CreatedAt), fmtTime(f.UpdatedAt))
	if err != nil {
		return domain.Frame{}, fmt.Errorf("insert frame: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Frame{}, fmt.Errorf("commit: %w", err)
	}
	return f, nil
}

func (s *SQLite) GetFrame(ctx context.Context, id string) (domain.Frame, error) {
	row := s.db.QueryRowContext(ctx, selectFrame+` WHERE id=?`, id)
	return scanFrame(row)
}

func (s *SQLite) ListFrames(ctx context.Context, pageID string) ([]domain.Frame, error) {
	rows, err := s.db.QueryContext(ctx, selectFrame+` WHERE page_id=? ORDER BY z_index, id`, pageID)
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	defer rows.Close()

	var out []domain.Frame
	for rows.Next() {
		f, err := scanFrame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *SQLite) UpdateFrame(ctx context.Context, id string, in domain.UpdateFrameInput) (domain.Frame, error) {
	if err := in.Validate(); err != nil {
		return domain.Frame{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Frame{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	f, err := scanFrame(tx.QueryRowContext(ctx, selectFrame+` WHERE id=?`, id))
	if err != nil {
		return domain.Frame{}, err
	}
	if !versionMatches(in.ExpectedVersion, f.Version) {
		return domain.Frame{}, fmt.Errorf("frame %s at version %d: %w", id, f.Version, ErrVersionConflict)
	}
	if in.Style != nil && in.Style.StyleType() != f.Type {
		return domain.Frame{}, fmt.Errorf("%w: style variant %s does not match frame type %s", ErrValidation, in.Style.StyleType(), f.Type)
	}
	if in.Content != nil && in.Content.ContentType() != f.Type {
		return domain.Frame{}, fmt.Errorf("%w: content variant %s does not match frame type %s", ErrValidation, in.Content.ContentType(), f.Type)
	}

	page, err := scanPage(tx.QueryRowContext(ctx, selectPage+` WHERE id=?`, f.PageID))
	if err != nil {
		return domain.Frame{}, err
	}

	if in.X != nil {
		f.Geometry.X = *in.X
	}
	if in.Y != nil {
		f.Geometry.Y = *in.Y
	}
	if in.W != nil {
		f.Geometry.W = *in.W
	}
	if in.H != nil {
		f.Geometry.H = *in.H
	}
	f.Geometry = clampRect(f.Geometry, page)
	if in.ZIndex != nil {
		f.ZIndex = *in.ZIndex
	}
	if in.Locked != nil {
		f.Locked = *in.Locked
	}
	if in.Style != nil {
		f.Style = in.Style
	}
	if in.Content != nil {
		f.Content = in.Content
	}
	if in.Crop != nil {
		c := *in.Crop
		f.Crop = &c
	}
	if in.ClearCrop {
		f.Crop = nil
	}
	f.Version++
	f.UpdatedAt = time.Now().UTC()

	style, content, crop, err := marshalFrameJSON(f)
	if err != nil {
		return domain.Frame{}, err
	}
	res, err := tx.ExecContext(ctx, `UPDATE frames SET x=?, y=?, w=?, h=?, z_index=?, locked=?, style=?, content=?, crop=?, version=?, updated_at=?
		WHERE id=? AND version=?`,
		f.Geometry.X, f.Geometry.Y, f.Geometry.W, f.Geometry.H, f.ZIndex, boolToInt(f.Locked),
		style, content, crop, f.Version, fmtTime(f.UpdatedAt), id, f.Version-1)
	if err != nil {
		return domain.Frame{}, fmt.Errorf("update frame: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Frame{}, fmt.Errorf("frame %s: %w", id, ErrVersionConflict)
	}
	if err := tx.Commit(); err != nil {
		return domain.Frame{}, fmt.Errorf("commit: %w", err)
	}
	return f, nil
}

func (s *SQLite) MoveFrameZ(ctx context.Context, id string, delta int, expectedVersion int64) ([]domain.Frame, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	f, err := scanFrame(tx.QueryRowContext(ctx, selectFrame+` WHERE id=?`, id))
	if err != nil {
		return nil, err
	}
	if !versionMatches(expectedVersion, f.Version) {
		return nil, fmt.Errorf("frame %s at version %d: %w", id, f.Version, ErrVersionConflict)
	}

	rows, err := tx.QueryContext(ctx, `SELECT id FROM frames WHERE page_id=? ORDER BY z_index, id`, f.PageID)
	if err != nil {
		return nil, fmt.Errorf("load page order: %w", err)
	}
	var order []string
	pos := -1
	for rows.Next() {
		var fid string
		if err := rows.Scan(&fid); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan frame id: %w", err)
		}
		if fid == id {
			pos = len(order)
		}
		order = append(order, fid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if pos < 0 {
		return nil, fmt.Errorf("frame %s: %w", id, ErrNotFound)
	}

	target := pos + delta
	if target < 0 {
		target = 0
	}
	if target > len(order)-1 {
		target = len(order) - 1
	}
	if target != pos {
		order = append(order[:pos], order[pos+1:]...)
		order = append(order[:target], append([]string{id}, order[target:]...)...)
	}

	// dense reassignment keeps z indexes contiguous regardless of history;
	// every row whose z actually changes gets a version bump
	now := fmtTime(time.Now().UTC())
	for z, fid := range order {
		if _, err := tx.ExecContext(ctx, `UPDATE frames SET z_index=?, version=version+1, updated_at=? WHERE id=? AND z_index<>?`, z, now, fid, z); err != nil {
			return nil, fmt.Errorf("reassign z for %s: %w", fid, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.ListFrames(ctx, f.PageID)
}

func (s *SQLite) RemoveFrame(ctx context.Context, id string, expectedVersion int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var cur int64
	err = tx.QueryRowContext(ctx, `SELECT version FROM frames WHERE id=?`, id).Scan(&cur)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("frame %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("read frame: %w", err)
	}
	if !versionMatches(expectedVersion, cur) {
		return fmt.Errorf("frame %s at version %d: %w", id, cur, ErrVersionConflict)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM frames WHERE id=?`, id); err != nil {
		return fmt.Errorf("delete frame: %w", err)
	}
	return tx.Commit()
}

// --- previews ---

// SavePreview stores or replaces a page thumbnail.
func (s *SQLite) SavePreview(ctx context.Context, pageID string, png []byte) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO previews (page_id, thumb_blob, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(page_id) DO UPDATE SET thumb_blob=excluded.thumb_blob, updated_at=excluded.updated_at`,
		pageID, png, fmtTime(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("save preview: %w", err)
	}
	return nil
}

// Preview returns the cached thumbnail for a page, or ErrNotFound.
func (s *SQLite) Preview(ctx context.Context, pageID string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT thumb_blob FROM previews WHERE page_id=?`, pageID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("preview for %s: %w", pageID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load preview: %w", err)
	}
	return blob, nil
}

// --- row mapping ---

const selectPage = `SELECT id, storybook_id, owner_id, order_index, size_preset, width_px, height_px, margins, grid, background, version, created_at, updated_at FROM pages`

const selectFrame = `SELECT id, page_id, storybook_id, owner_id, type, x, y, w, h, z_index, locked, style, content, crop, version, created_at, updated_at FROM frames`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPage(row rowScanner) (domain.Page, error) {
	var (
		p                         domain.Page
		preset                    string
		margins, grid, background string
		created, updated          string
	)
	err := row.Scan(&p.ID, &p.StorybookID, &p.OwnerID, &p.OrderIndex, &preset, &p.WidthPx, &p.HeightPx,
		&margins, &grid, &background, &p.Version, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Page{}, fmt.Errorf("page: %w", ErrNotFound)
	}
	if err != nil {
		return domain.Page{}, fmt.Errorf("scan page: %w", err)
	}
	p.SizePreset = domain.SizePreset(preset)
	if err := json.Unmarshal([]byte(margins), &p.Margins); err != nil {
		return domain.Page{}, fmt.Errorf("decode margins: %w", err)
	}
	if err := json.Unmarshal([]byte(grid), &p.Grid); err != nil {
		return domain.Page{}, fmt.Errorf("decode grid: %w", err)
	}
	if err := json.Unmarshal([]byte(background), &p.Background); err != nil {
		return domain.Page{}, fmt.Errorf("decode background: %w", err)
	}
	if p.CreatedAt, err = parseTime(created); err != nil {
		return domain.Page{}, err
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return domain.Page{}, err
	}
	return p, nil
}

func scanFrame(row rowScanner) (domain.Frame, error) {
	var (
		f                domain.Frame
		typ              string
		locked           int
		style, content   string
		crop             sql.NullString
		created, updated string
	)
	err := row.Scan(&f.ID, &f.PageID, &f.StorybookID, &f.OwnerID, &typ,
		&f.Geometry.X, &f.Geometry.Y, &f.Geometry.W, &f.Geometry.H,
		&f.ZIndex, &locked, &style, &content, &crop, &f.Version, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Frame{}, fmt.Errorf("frame: %w", ErrNotFound)
	}
	if err != nil {
		return domain.Frame{}, fmt.Errorf("scan frame: %w", err)
	}
	f.Type = domain.FrameType(typ)
	f.Locked = locked != 0
	if f.Style, err = domain.UnmarshalStyle([]byte(style)); err != nil {
		return domain.Frame{}, fmt.Errorf("decode style: %w", err)
	}
	if f.Content, err = domain.UnmarshalContent([]byte(content)); err != nil {
		return domain.Frame{}, fmt.Errorf("decode content: %w", err)
	}
	if crop.Valid {
		var c domain.Crop
		if err := json.Unmarshal([]byte(crop.String), &c); err != nil {
			return domain.Frame{}, fmt.Errorf("decode crop: %w", err)
		}
		f.Crop = &c
	}
	if f.CreatedAt, err = parseTime(created); err != nil {
		return domain.Frame{}, err
	}
	if f.UpdatedAt, err = parseTime(updated); err != nil {
		return domain.Frame{}, err
	}
	return f, nil
}

func marshalPageJSON(p domain.Page) (margins, grid, background string, err error) {
	mb, err := json.Marshal(p.Margins)
	if err != nil {
		return "", "", "", fmt.Errorf("encode margins: %w", err)
	}
	gb, err := json.Marshal(p.Grid)
	if err != nil {
		return "", "", "", fmt.Errorf("encode grid: %w", err)
	}
	bb, err := json.Marshal(p.Background)
	if err != nil {
		return "", "", "", fmt.Errorf("encode background: %w", err)
	}
	return string(mb), string(gb), string(bb), nil
}

func marshalFrameJSON(f domain.Frame) (style, content string, crop any, err error) {
	sb, err := domain.MarshalStyle(f.Style)
	if err != nil {
		return "", "", nil, fmt.Errorf("encode style: %w", err)
	}
	cb, err := domain.MarshalContent(f.Content)
	if err != nil {
		return "", "", nil, fmt.Errorf("encode content: %w", err)
	}
	if f.Crop != nil {
		crb, err := json.Marshal(f.Crop)
		if err != nil {
			return "", "", nil, fmt.Errorf("encode crop: %w", err)
		}
		crop = string(crb)
	}
	return string(sb), string(cb), crop, nil
}

func clampRect(r domain.Rect, p domain.Page) domain.Rect {
	c := geometry.ClampToPage(geometry.Rect(r), p.WidthPx, p.HeightPx, domain.MinFrameSize)
	return domain.Rect(c)
}

func fmtTime(t time.Time) string { return t.Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
