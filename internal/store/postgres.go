/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package store

// Postgres backing for the shared canvas server. Schema lives in embedded
// SQL migrations applied at startup; the semantics mirror the embedded
// SQLite store exactly so the editor behaves the same against either.

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"storycanvas/internal/domain"
	"storycanvas/internal/geometry"
	applog "storycanvas/internal/log"

	// Postgres driver via database/sql
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Postgres is the server-side CanvasService.
type Postgres struct {
	db *sql.DB
}

var _ CanvasService = (*Postgres)(nil)

// OpenPostgres connects, pings and applies pending migrations.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	l := applog.WithOperation(applog.WithComponent("store"), "open_pg")
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := applyMigrations(ctx, db, l); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	l.Info("postgres ready")
	return &Postgres{db: db}, nil
}

// Close releases the connection pool.
func (s *Postgres) Close() error { return s.db.Close() }

func applyMigrations(ctx context.Context, db *sql.DB, l *slog.Logger) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	// dialect=PostgreSQL
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied := map[int64]bool{}
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("select schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return err
		}
		applied[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, fname := range files {
		ver, err := migrationVersion(fname)
		if err != nil {
			return err
		}
		if applied[ver] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", fname))
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(b)) == "" {
			continue
		}
		l.Info("applying migration", slog.String("file", fname))
		if _, err := db.ExecContext(ctx, string(b)); err != nil {
			return fmt.Errorf("apply %s: %w", fname, err)
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, ver, fname); err != nil {
			return fmt.Errorf("record %s: %w", fname, err)
		}
	}
	return nil
}

func migrationVersion(name string) (int64, error) {
	parts := strings.SplitN(path.Base(name), "_", 2)
	v, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return v, nil
}

// --- pages ---

func (s *Postgres) EnsureDefaultCanvas(ctx context.Context, storybookID, ownerID string) (domain.Page, error) {
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

func (s *Postgres) CreatePage(ctx context.Context, in domain.CreatePageInput) (domain.Page, error) {
	if err := in.Validate(); err != nil {
		return domain.Page{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var next int
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(order_index)+1, 0) FROM pages WHERE storybook_id=$1`, in.StorybookID).Scan(&next)
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		p.ID, p.StorybookID, p.OwnerID, p.OrderIndex, string(p.SizePreset), p.WidthPx, p.HeightPx,
		margins, grid, background, p.Version, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return domain.Page{}, fmt.Errorf("insert page: %w", err)
	}
	return p, nil
}

func (s *Postgres) GetPage(ctx context.Context, id string) (domain.Page, error) {
	return pgScanPage(s.db.QueryRowContext(ctx, selectPage+` WHERE id=$1`, id))
}

func (s *Postgres) ListPages(ctx context.Context, storybookID string) ([]domain.Page, error) {
	rows, err := s.db.QueryContext(ctx, selectPage+` WHERE storybook_id=$1 ORDER BY order_index, id`, storybookID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	var out []domain.Page
	for rows.Next() {
		p, err := pgScanPage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Postgres) UpdatePage(ctx context.Context, id string, in domain.UpdatePageInput) (domain.Page, error) {
	if err := in.Validate(); err != nil {
		return domain.Page{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Page{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	p, err := pgScanPage(tx.QueryRowContext(ctx, selectPage+` WHERE id=$1 FOR UPDATE`, id))
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
	res, err := tx.ExecContext(ctx, `UPDATE pages SET size_preset=$1, width_px=$2, height_px=$3, margins=$4, grid=$5, background=$6, version=$7, updated_at=$8
		WHERE id=$9 AND version=$10`,
		string(p.SizePreset), p.WidthPx, p.HeightPx, margins, grid, background, p.Version, p.UpdatedAt, id, p.Version-1)
	if err != nil {
		return domain.Page{}, fmt.Errorf("update page: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Page{}, fmt.Errorf("page %s: %w", id, ErrVersionConflict)
	}

	if resized {
		if err := pgClampFramesTx(ctx, tx, p); err != nil {
			return domain.Page{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Page{}, fmt.Errorf("commit: %w", err)
	}
	return p, nil
}

func pgClampFramesTx(ctx context.Context, tx *sql.Tx, p domain.Page) error {
	rows, err := tx.QueryContext(ctx, `SELECT id, x, y, w, h FROM frames WHERE page_id=$1 FOR UPDATE`, p.ID)
	if err != nil {
		return fmt.Errorf("load frames: %w", err)
	}
	type adj struct {
		id string
		r  geometry.Rect
	}
	var adjust []adj
	for rows.Next() {
		var a adj
		if err := rows.Scan(&a.id, &a.r.X, &a.r.Y, &a.r.W, &a.r.H); err != nil {
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

	now := time.Now().UTC()
	for _, a := range adjust {
		if _, err := tx.ExecContext(ctx, `UPDATE frames SET x=$1, y=$2, w=$3, h=$4, version=version+1, updated_at=$5 WHERE id=$6`,
			a.r.X, a.r.Y, a.r.W, a.r.H, now, a.id); err != nil {
			return fmt.Errorf("clamp frame %s: %w", a.id, err)
		}
	}
	return nil
}

func (s *Postgres) ReorderPages(ctx context.Context, storybookID string, orderedIDs []string) ([]domain.Page, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT id, order_index FROM pages WHERE storybook_id=$1 FOR UPDATE`, storybookID)
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

	now := time.Now().UTC()
	for want, id := range orderedIDs {
		if current[id] == want {
			continue
		}
		if _, err := tx.ExecContext(ctx, `UPDATE pages SET order_index=$1, version=version+1, updated_at=$2 WHERE id=$3`, want, now, id); err != nil {
			return nil, fmt.Errorf("reorder page %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.ListPages(ctx, storybookID)
}

func (s *Postgres) RemovePage(ctx context.Context, id string, expectedVersion int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var cur int64
	err = tx.QueryRowContext(ctx, `SELECT version FROM pages WHERE id=$1 FOR UPDATE`, id).Scan(&cur)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("page %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("read page: %w", err)
	}
	if !versionMatches(expectedVersion, cur) {
		return fmt.Errorf("page %s at version %d: %w", id, cur, ErrVersionConflict)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pages WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	return tx.Commit()
}

// --- frames ---

func (s *Postgres) CreateFrame(ctx context.Context, in domain.CreateFrameInput) (domain.Frame, error) {
	if err := in.Validate(); err != nil {
		return domain.Frame{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Frame{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	page, err := pgScanPage(tx.QueryRowContext(ctx, selectPage+` WHERE id=$1`, in.PageID))
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
	if err := tx.QueryRowContext(ctx, `SELECT MAX(z_index) FROM frames WHERE page_id=$1`, in.PageID).Scan(&maxZ); err != nil {
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		f.ID, f.PageID, f.StorybookID, f.OwnerID, string(f.Type),
		f.Geometry.X, f.Geometry.Y, f.Geometry.W, f.Geometry.H,
		f.ZIndex, f.Locked, style, content, crop, f.Version, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return domain.Frame{}, fmt.Errorf("insert frame: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Frame{}, fmt.Errorf("commit: %w", err)
	}
	return f, nil
}

func (s *Postgres) GetFrame(ctx context.Context, id string) (domain.Frame, error) {
	return pgScanFrame(s.db.QueryRowContext(ctx, selectFrame+` WHERE id=$1`, id))
}

func (s *Postgres) ListFrames(ctx context.Context, pageID string) ([]domain.Frame, error) {
	rows, err := s.db.QueryContext(ctx, selectFrame+` WHERE page_id=$1 ORDER BY z_index, id`, pageID)
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	defer rows.Close()

	var out []domain.Frame
	for rows.Next() {
		f, err := pgScanFrame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Postgres) UpdateFrame(ctx context.Context, id string, in domain.UpdateFrameInput) (domain.Frame, error) {
	if err := in.Validate(); err != nil {
		return domain.Frame{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Frame{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	f, err := pgScanFrame(tx.QueryRowContext(ctx, selectFrame+` WHERE id=$1 FOR UPDATE`, id))
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

	page, err := pgScanPage(tx.QueryRowContext(ctx, selectPage+` WHERE id=$1`, f.PageID))
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
	res, err := tx.ExecContext(ctx, `UPDATE frames SET x=$1, y=$2, w=$3, h=$4, z_index=$5, locked=$6, style=$7, content=$8, crop=$9, version=$10, updated_at=$11
		WHERE id=$12 AND version=$13`,
		f.Geometry.X, f.Geometry.Y, f.Geometry.W, f.Geometry.H, f.ZIndex, f.Locked,
		style, content, crop, f.Version, f.UpdatedAt, id, f.Version-1)
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

func (s *Postgres) MoveFrameZ(ctx context.Context, id string, delta int, expectedVersion int64) ([]domain.Frame, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	f, err := pgScanFrame(tx.QueryRowContext(ctx, selectFrame+` WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if !versionMatches(expectedVersion, f.Version) {
		return nil, fmt.Errorf("frame %s at version %d: %w", id, f.Version, ErrVersionConflict)
	}

	rows, err := tx.QueryContext(ctx, `SELECT id FROM frames WHERE page_id=$1 ORDER BY z_index, id FOR UPDATE`, f.PageID)
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

	now := time.Now().UTC()
	for z, fid := range order {
		if _, err := tx.ExecContext(ctx, `UPDATE frames SET z_index=$1, version=version+1, updated_at=$2 WHERE id=$3 AND z_index<>$1`, z, now, fid); err != nil {
			return nil, fmt.Errorf("reassign z for %s: %w", fid, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.ListFrames(ctx, f.PageID)
}

func (s *Postgres) RemoveFrame(ctx context.Context, id string, expectedVersion int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var cur int64
	err = tx.QueryRowContext(ctx, `SELECT version FROM frames WHERE id=$1 FOR UPDATE`, id).Scan(&cur)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("frame %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("read frame: %w", err)
	}
	if !versionMatches(expectedVersion, cur) {
		return fmt.Errorf("frame %s at version %d: %w", id, cur, ErrVersionConflict)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM frames WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete frame: %w", err)
	}
	return tx.Commit()
}

// --- previews ---

// SavePreview stores or replaces a page thumbnail.
func (s *Postgres) SavePreview(ctx context.Context, pageID string, png []byte) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO previews (page_id, thumb_blob, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT(page_id) DO UPDATE SET thumb_blob=excluded.thumb_blob, updated_at=excluded.updated_at`,
		pageID, png, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save preview: %w", err)
	}
	return nil
}

// Preview returns the cached thumbnail for a page, or ErrNotFound.
func (s *Postgres) Preview(ctx context.Context, pageID string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT thumb_blob FROM previews WHERE page_id=$1`, pageID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("preview for %s: %w", pageID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load preview: %w", err)
	}
	return blob, nil
}

// --- row mapping ---

func pgScanPage(row rowScanner) (domain.Page, error) {
	var (
		p                         domain.Page
		preset                    string
		margins, grid, background []byte
	)
	err := row.Scan(&p.ID, &p.StorybookID, &p.OwnerID, &p.OrderIndex, &preset, &p.WidthPx, &p.HeightPx,
		&margins, &grid, &background, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Page{}, fmt.Errorf("page: %w", ErrNotFound)
	}
	if err != nil {
		return domain.Page{}, fmt.Errorf("scan page: %w", err)
	}
	p.SizePreset = domain.SizePreset(preset)
	if err := json.Unmarshal(margins, &p.Margins); err != nil {
		return domain.Page{}, fmt.Errorf("decode margins: %w", err)
	}
	if err := json.Unmarshal(grid, &p.Grid); err != nil {
		return domain.Page{}, fmt.Errorf("decode grid: %w", err)
	}
	if err := json.Unmarshal(background, &p.Background); err != nil {
		return domain.Page{}, fmt.Errorf("decode background: %w", err)
	}
	return p, nil
}

func pgScanFrame(row rowScanner) (domain.Frame, error) {
	var (
		f              domain.Frame
		typ            string
		style, content []byte
		crop           []byte
	)
	err := row.Scan(&f.ID, &f.PageID, &f.StorybookID, &f.OwnerID, &typ,
		&f.Geometry.X, &f.Geometry.Y, &f.Geometry.W, &f.Geometry.H,
		&f.ZIndex, &f.Locked, &style, &content, &crop, &f.Version, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Frame{}, fmt.Errorf("frame: %w", ErrNotFound)
	}
	if err != nil {
		return domain.Frame{}, fmt.Errorf("scan frame: %w", err)
	}
	f.Type = domain.FrameType(typ)
	if f.Style, err = domain.UnmarshalStyle(style); err != nil {
		return domain.Frame{}, fmt.Errorf("decode style: %w", err)
	}
	if f.Content, err = domain.UnmarshalContent(content); err != nil {
		return domain.Frame{}, fmt.Errorf("decode content: %w", err)
	}
	if len(crop) > 0 {
		var c domain.Crop
		if err := json.Unmarshal(crop, &c); err != nil {
			return domain.Frame{}, fmt.Errorf("decode crop: %w", err)
		}
		f.Crop = &c
	}
	return f, nil
}
