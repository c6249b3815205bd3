//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"storycanvas/internal/autosave"
	"storycanvas/internal/config"
	"storycanvas/internal/crash"
	"storycanvas/internal/domain"
	"storycanvas/internal/editor"
	"storycanvas/internal/geometry"
	"storycanvas/internal/gesture"
	applog "storycanvas/internal/log"
	"storycanvas/internal/preview"
	"storycanvas/internal/store"
	"storycanvas/internal/telemetry"
	"storycanvas/internal/version"
)

const localStorybookID = "book-local"

// Run starts the Fyne-based canvas editor on a local workspace.
func Run(workspaceDir string) error {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("ui")
	l.Info("starting UI", slog.String("version", version.String()))

	if workspaceDir == "" {
		workspaceDir = "."
	}
	cfg, _, err := config.Load()
	if err != nil {
		l.Warn("config load failed, using defaults", slog.Any("err", err))
		cfg = config.Defaults()
	}

	st, err := store.OpenWorkspace(workspaceDir)
	if err != nil {
		return fmt.Errorf("open workspace: %w", err)
	}
	defer func() { _ = st.Close() }()

	ctx := context.Background()
	owner := os.Getenv("USER")
	if owner == "" {
		owner = "local"
	}
	page, err := st.EnsureDefaultCanvas(ctx, localStorybookID, owner)
	if err != nil {
		return fmt.Errorf("seed canvas: %w", err)
	}

	sess, err := openSession(ctx, st, page.ID, cfg)
	if err != nil {
		return err
	}
	defer sess.Close()
	telemetry.Event("session.open", map[string]any{"frames": len(sess.Frames())})

	crashDir := filepath.Join(workspaceDir, store.CanvasDirName, "crash")
	defer crash.Recover(crashDir, func() *crash.Draft {
		return &crash.Draft{PageID: sess.Page().ID, Page: sess.Page(), Frames: sess.Frames()}
	})

	fyneApp := app.NewWithID("storycanvas")
	w := fyneApp.NewWindow("Story Canvas")
	prefs := fyneApp.Preferences()
	winW := prefs.IntWithFallback("window.width", 1200)
	winH := prefs.IntWithFallback("window.height", 800)
	if winW < 800 {
		winW = 800
	}
	if winH < 600 {
		winH = 600
	}
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	status := widget.NewLabel("Ready")
	cw := newCanvasWidget(sess, st, w, status, l)

	// Pages pane (left)
	var pages []domain.Page
	pagesList := widget.NewList(
		func() int { return len(pages) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			if int(i) < len(pages) {
				o.(*widget.Label).SetText(fmt.Sprintf("Page %d", pages[i].OrderIndex+1))
			}
		},
	)
	refreshPages := func() {
		got, err := st.ListPages(ctx, localStorybookID)
		if err != nil {
			l.Error("list pages failed", slog.Any("err", err))
			return
		}
		pages = got
		pagesList.Refresh()
	}
	refreshPages()
	pagesList.OnSelected = func(id widget.ListItemID) {
		if int(id) >= len(pages) {
			return
		}
		next, err := openSession(ctx, st, pages[id].ID, cfg)
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		old := cw.swapSession(next)
		old.Close()
		cw.Refresh()
	}
	addPage := widget.NewButton("Add Page", func() {
		if _, err := st.CreatePage(ctx, domain.CreatePageInput{StorybookID: localStorybookID, OwnerID: owner}); err != nil {
			dialog.ShowError(err, w)
			return
		}
		refreshPages()
	})
	left := container.NewBorder(
		container.NewVBox(widget.NewLabel("Pages"), widget.NewSeparator()),
		addPage, nil, nil, pagesList)

	// Toolbar
	snapCheck := widget.NewCheck("Snap", func(v bool) { cw.session().SetSnap(v) })
	snapCheck.SetChecked(cfg.Editor.SnapEnabled)
	addText := widget.NewButton("Text", func() { cw.addFrame(ctx, domain.FrameText) })
	addShape := widget.NewButton("Shape", func() { cw.addFrame(ctx, domain.FrameShape) })
	addContainer := widget.NewButton("Placeholder", func() { cw.addFrame(ctx, domain.FrameContainer) })
	deleteBtn := widget.NewButton("Delete", func() { cw.deleteSelected(ctx) })
	toolbar := container.NewHBox(addText, addShape, addContainer, widget.NewSeparator(), deleteBtn, snapCheck)

	content := container.NewBorder(toolbar, status, left, nil, cw)
	w.SetContent(content)

	w.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		sess := cw.session()
		switch ev.Name {
		case fyne.KeyUp:
			sess.Nudge(0, -1, false)
		case fyne.KeyDown:
			sess.Nudge(0, 1, false)
		case fyne.KeyLeft:
			sess.Nudge(-1, 0, false)
		case fyne.KeyRight:
			sess.Nudge(1, 0, false)
		case fyne.KeyReturn, fyne.KeyEnter:
			if id := sess.BeginTextEditSelected(); id != "" {
				cw.editText(id)
			}
		case fyne.KeyDelete, fyne.KeyBackspace:
			cw.deleteSelected(ctx)
		case fyne.KeyEscape:
			sess.Escape()
		default:
			return
		}
		cw.Refresh()
	})

	// Shift+arrows take the larger nudge step; plain typed-key events do
	// not carry modifiers, so these go through shortcuts.
	bigNudge := func(dx, dy float64) func(fyne.Shortcut) {
		return func(fyne.Shortcut) {
			if cw.session().Nudge(dx, dy, true) {
				cw.Refresh()
			}
		}
	}
	for key, fn := range map[fyne.KeyName]func(fyne.Shortcut){
		fyne.KeyUp:    bigNudge(0, -1),
		fyne.KeyDown:  bigNudge(0, 1),
		fyne.KeyLeft:  bigNudge(-1, 0),
		fyne.KeyRight: bigNudge(1, 0),
	} {
		w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: key, Modifier: fyne.KeyModifierShift}, fn)
	}

	w.SetOnClosed(func() {
		prefs.SetInt("window.width", int(w.Canvas().Size().Width))
		prefs.SetInt("window.height", int(w.Canvas().Size().Height))
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cw.session().Flush(flushCtx); err != nil {
			l.Error("flush on close failed", slog.Any("err", err))
		}
	})

	w.ShowAndRun()
	return nil
}

func openSession(ctx context.Context, st *store.SQLite, pageID string, cfg config.AppConfig) (*editor.Session, error) {
	sess, err := editor.NewSession(ctx, st, pageID, editor.Options{
		SnapEnabled: cfg.Editor.SnapEnabled,
		Autosave: autosave.Config{
			Debounce:   time.Duration(cfg.Autosave.DebounceMs) * time.Millisecond,
			RetryBase:  time.Duration(cfg.Autosave.RetryBaseMs) * time.Millisecond,
			MaxRetries: cfg.Autosave.MaxRetries,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	return sess, nil
}

// canvasWidget renders the editing session and feeds pointer input into it.
type canvasWidget struct {
	widget.BaseWidget

	sess   *editor.Session
	st     *store.SQLite
	win    fyne.Window
	status *widget.Label
	log    *slog.Logger

	zoom    float32
	offsetX float32
	offsetY float32

	dragging  bool
	lastDrag  fyne.Position
	livePrev  *gesture.Preview
	handleHit geometry.Handle
}

const gesturePointer = 1

func newCanvasWidget(sess *editor.Session, st *store.SQLite, win fyne.Window, status *widget.Label, l *slog.Logger) *canvasWidget {
	c := &canvasWidget{sess: sess, st: st, win: win, status: status, log: l, zoom: 0.75}
	c.ExtendBaseWidget(c)
	return c
}

func (c *canvasWidget) session() *editor.Session { return c.sess }

func (c *canvasWidget) swapSession(next *editor.Session) *editor.Session {
	old := c.sess
	c.sess = next
	c.livePrev = nil
	c.dragging = false
	return old
}

func (c *canvasWidget) PreferredSize() fyne.Size { return fyne.NewSize(800, 600) }

func (c *canvasWidget) pageOrigin() (cx, cy float32) {
	size := c.Size()
	p := c.sess.Page()
	cx = size.Width/2 - float32(p.WidthPx)*c.zoom/2 + c.offsetX
	cy = size.Height/2 - float32(p.HeightPx)*c.zoom/2 + c.offsetY
	return cx, cy
}

// toPage converts a widget position into page coordinates.
func (c *canvasWidget) toPage(pos fyne.Position) (float64, float64) {
	cx, cy := c.pageOrigin()
	return float64((pos.X - cx) / c.zoom), float64((pos.Y - cy) / c.zoom)
}

// toScreen converts page coordinates into a widget position.
func (c *canvasWidget) toScreen(x, y float64) fyne.Position {
	cx, cy := c.pageOrigin()
	return fyne.NewPos(cx+float32(x)*c.zoom, cy+float32(y)*c.zoom)
}

// event builds a gesture pointer event from a widget position. The widget
// converts to page units up front, so the session keeps its default 1:1
// gesture scale regardless of the viewport zoom.
func (c *canvasWidget) event(pos fyne.Position, detail int) gesture.PointerEvent {
	px, py := c.toPage(pos)
	return gesture.PointerEvent{PointerID: gesturePointer, X: px, Y: py, Detail: detail}
}

// handleAt finds the resize handle under a widget position for the current
// selection, empty when none.
func (c *canvasWidget) handleAt(pos fyne.Position) geometry.Handle {
	sel := c.sess.Selection()
	if sel == "" || !c.sess.ShowHandles(sel) {
		return ""
	}
	var g domain.Rect
	found := false
	for _, f := range c.sess.Frames() {
		if f.ID == sel {
			g = f.Geometry
			found = true
			break
		}
	}
	if !found {
		return ""
	}
	const grab = 6.0
	for _, h := range geometry.Handles() {
		hp := c.handlePos(geometry.Rect(g), h)
		if abs32(pos.X-hp.X) <= grab && abs32(pos.Y-hp.Y) <= grab {
			return h
		}
	}
	return ""
}

func (c *canvasWidget) handlePos(g geometry.Rect, h geometry.Handle) fyne.Position {
	x, y := g.X, g.Y
	switch h {
	case geometry.HandleN:
		x, y = g.X+g.W/2, g.Y
	case geometry.HandleNE:
		x, y = g.X+g.W, g.Y
	case geometry.HandleE:
		x, y = g.X+g.W, g.Y+g.H/2
	case geometry.HandleSE:
		x, y = g.X+g.W, g.Y+g.H
	case geometry.HandleS:
		x, y = g.X+g.W/2, g.Y+g.H
	case geometry.HandleSW:
		x, y = g.X, g.Y+g.H
	case geometry.HandleW:
		x, y = g.X, g.Y+g.H/2
	case geometry.HandleNW:
		x, y = g.X, g.Y
	}
	return c.toScreen(x, y)
}

func abs32(v float32) float64 {
	if v < 0 {
		v = -v
	}
	return float64(v)
}

// Tapped selects the frame under the pointer (or clears the selection).
func (c *canvasWidget) Tapped(e *fyne.PointEvent) {
	c.sess.PointerDown(c.event(e.Position, 1), "")
	c.sess.PointerUp(c.event(e.Position, 1))
	c.updateStatus()
	c.Refresh()
}

// DoubleTapped opens the inline text editor for text frames.
func (c *canvasWidget) DoubleTapped(e *fyne.PointEvent) {
	act := c.sess.PointerDown(c.event(e.Position, 2), "")
	c.sess.PointerUp(c.event(e.Position, 2))
	if act.BeginTextEdit != "" {
		c.editText(act.BeginTextEdit)
	}
	c.Refresh()
}

// TappedSecondary opens the context menu for the frame under the pointer.
func (c *canvasWidget) TappedSecondary(e *fyne.PointEvent) {
	px, py := c.toPage(e.Position)
	m := c.sess.OpenMenu(px, py)

	items := []*fyne.MenuItem{}
	if m.FrameID != "" {
		id := m.FrameID
		items = append(items,
			fyne.NewMenuItem("Bring Forward", func() { c.moveZ(id, 1) }),
			fyne.NewMenuItem("Send Backward", func() { c.moveZ(id, -1) }),
			fyne.NewMenuItem("Toggle Lock", func() { c.toggleLock(id) }),
			fyne.NewMenuItem("Delete", func() { c.deleteSelected(context.Background()) }),
		)
	} else {
		items = append(items, fyne.NewMenuItem("Paste Here", func() {}))
	}
	menu := fyne.NewMenu("", items...)
	popup := widget.NewPopUpMenu(menu, c.win.Canvas())
	popup.ShowAtPosition(e.AbsolutePosition)
	c.sess.CloseMenu()
}

// Dragged drives move/resize through the gesture machine; with nothing
// under the pointer at drag start, it pans the viewport.
func (c *canvasWidget) Dragged(e *fyne.DragEvent) {
	if !c.dragging {
		start := fyne.NewPos(e.Position.X-e.Dragged.DX, e.Position.Y-e.Dragged.DY)
		h := c.handleAt(start)
		sx, sy := c.toPage(start)
		if h == "" && c.sess.HitTest(sx, sy) == nil {
			// background pan
			c.offsetX += e.Dragged.DX
			c.offsetY += e.Dragged.DY
			c.Refresh()
			return
		}
		c.handleHit = h
		c.sess.PointerDown(c.event(start, 1), h)
		c.dragging = true
	}
	c.lastDrag = e.Position
	c.livePrev = c.sess.PointerMove(c.event(e.Position, 1))
	c.Refresh()
}

// DragEnd commits the gesture.
func (c *canvasWidget) DragEnd() {
	if c.dragging {
		c.sess.PointerUp(c.event(c.lastDrag, 1))
		c.dragging = false
		c.handleHit = ""
		c.livePrev = nil
		c.updateStatus()
		c.savePreviewSnapshot(context.Background())
	}
	c.Refresh()
}

// Scrolled zooms the canvas with the wheel.
func (c *canvasWidget) Scrolled(e *fyne.ScrollEvent) {
	c.zoom += e.Scrolled.DY * 0.05
	if c.zoom < 0.1 {
		c.zoom = 0.1
	}
	if c.zoom > 4.0 {
		c.zoom = 4.0
	}
	c.Refresh()
}

func (c *canvasWidget) addFrame(ctx context.Context, ft domain.FrameType) {
	f, err := c.st.CreateFrame(ctx, domain.CreateFrameInput{PageID: c.sess.Page().ID, Type: ft})
	if err != nil {
		dialog.ShowError(err, c.win)
		return
	}
	if err := c.sess.Reload(ctx); err != nil {
		dialog.ShowError(err, c.win)
		return
	}
	c.sess.Select(f.ID)
	c.Refresh()
}

func (c *canvasWidget) deleteSelected(ctx context.Context) {
	if err := c.sess.DeleteSelected(ctx); err != nil {
		dialog.ShowError(err, c.win)
		return
	}
	c.Refresh()
}

func (c *canvasWidget) moveZ(id string, delta int) {
	ctx := context.Background()
	var ver int64
	for _, f := range c.sess.Frames() {
		if f.ID == id {
			ver = f.Version
			break
		}
	}
	if _, err := c.st.MoveFrameZ(ctx, id, delta, ver); err != nil {
		dialog.ShowError(err, c.win)
		return
	}
	if err := c.sess.Reload(ctx); err != nil {
		dialog.ShowError(err, c.win)
	}
	c.Refresh()
}

func (c *canvasWidget) toggleLock(id string) {
	ctx := context.Background()
	for _, f := range c.sess.Frames() {
		if f.ID != id {
			continue
		}
		locked := !f.Locked
		if _, err := c.st.UpdateFrame(ctx, id, domain.UpdateFrameInput{Locked: &locked, ExpectedVersion: f.Version}); err != nil {
			dialog.ShowError(err, c.win)
			return
		}
		if err := c.sess.Reload(ctx); err != nil {
			dialog.ShowError(err, c.win)
		}
		c.Refresh()
		return
	}
}

func (c *canvasWidget) editText(id string) {
	var current string
	for _, f := range c.sess.Frames() {
		if f.ID == id {
			if tc, ok := f.Content.(domain.TextContent); ok {
				current = tc.Text
			}
			break
		}
	}
	entry := widget.NewMultiLineEntry()
	entry.SetText(current)
	c.sess.SetTextFocus(true)
	d := dialog.NewCustomConfirm("Edit Text", "Save", "Cancel", entry, func(save bool) {
		defer c.sess.SetTextFocus(false)
		if !save {
			return
		}
		ctx := context.Background()
		var ver int64
		for _, f := range c.sess.Frames() {
			if f.ID == id {
				ver = f.Version
				break
			}
		}
		if _, err := c.st.UpdateFrame(ctx, id, domain.UpdateFrameInput{
			Content:         domain.TextContent{Text: entry.Text},
			ExpectedVersion: ver,
		}); err != nil {
			dialog.ShowError(err, c.win)
			return
		}
		if err := c.sess.Reload(ctx); err != nil {
			dialog.ShowError(err, c.win)
		}
		c.Refresh()
	}, c.win)
	d.Resize(fyne.NewSize(400, 240))
	d.Show()
}

// updateStatus reflects the autosave state, offering conflict resolution
// when saves are halted.
func (c *canvasWidget) updateStatus() {
	st, err := c.sess.SaveStatus()
	switch st {
	case autosave.StatusConflict:
		c.status.SetText("Conflict: the page changed elsewhere")
		d := dialog.NewConfirm("Save conflict",
			"This page was changed elsewhere. Reload their version, or overwrite it with yours?",
			func(overwrite bool) {
				ctx := context.Background()
				if overwrite {
					if err := c.sess.Overwrite(ctx); err != nil {
						dialog.ShowError(err, c.win)
					}
				} else {
					if err := c.sess.Reload(ctx); err != nil {
						dialog.ShowError(err, c.win)
					}
				}
				c.Refresh()
				c.updateStatus()
			}, c.win)
		d.SetDismissText("Reload")
		d.SetConfirmText("Overwrite")
		d.Show()
	case autosave.StatusError:
		c.status.SetText(fmt.Sprintf("Save failed: %v", err))
	case autosave.StatusSaving:
		c.status.SetText("Saving…")
	case autosave.StatusSaved:
		c.status.SetText("Saved")
	default:
		c.status.SetText("Ready")
	}
}

// savePreviewSnapshot caches a thumbnail for the page list. Failures only log.
func (c *canvasWidget) savePreviewSnapshot(ctx context.Context) {
	png, err := preview.Thumbnail(c.sess.Page(), c.sess.Frames(), 0)
	if err != nil {
		c.log.Warn("thumbnail render failed", slog.Any("err", err))
		return
	}
	if err := c.st.SavePreview(ctx, c.sess.Page().ID, png); err != nil {
		c.log.Warn("thumbnail save failed", slog.Any("err", err))
	}
}

// CreateRenderer builds the canvas scene: background, page, safe-area
// guide, frame boxes, selection overlay and smart guides.
func (c *canvasWidget) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 30, G: 30, B: 34, A: 255})

	pageRect := canvas.NewRectangle(color.White)
	pageRect.StrokeColor = color.RGBA{R: 20, G: 20, B: 20, A: 255}
	pageRect.StrokeWidth = 2

	safe := canvas.NewRectangle(color.RGBA{})
	safe.StrokeColor = color.RGBA{R: 0, G: 120, B: 255, A: 120}
	safe.StrokeWidth = 1

	bbox := canvas.NewRectangle(color.RGBA{})
	bbox.StrokeColor = color.RGBA{R: 0, G: 170, B: 255, A: 255}
	bbox.StrokeWidth = 1
	bbox.Hide()

	handles := make([]*canvas.Rectangle, len(geometry.Handles()))
	for i := range handles {
		handles[i] = canvas.NewRectangle(color.RGBA{R: 0, G: 170, B: 255, A: 255})
		handles[i].Hide()
	}

	objs := []fyne.CanvasObject{bg, pageRect, safe, bbox}
	for _, h := range handles {
		objs = append(objs, h)
	}
	return &canvasRenderer{cw: c, objects: objs, bg: bg, page: pageRect, safe: safe, bbox: bbox, handles: handles}
}

type canvasRenderer struct {
	cw      *canvasWidget
	objects []fyne.CanvasObject

	bg, page *canvas.Rectangle
	safe     *canvas.Rectangle
	bbox     *canvas.Rectangle
	handles  []*canvas.Rectangle

	frameRects []*canvas.Rectangle
	guideLines []*canvas.Line
}

func (r *canvasRenderer) Destroy()                     {}
func (r *canvasRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *canvasRenderer) MinSize() fyne.Size           { return r.cw.PreferredSize() }
func (r *canvasRenderer) Refresh()                     { r.Layout(r.cw.Size()); canvas.Refresh(r.cw) }

func (r *canvasRenderer) Layout(size fyne.Size) {
	c := r.cw
	p := c.sess.Page()
	zoom := c.zoom

	r.bg.Resize(size)
	r.bg.Move(fyne.NewPos(0, 0))

	origin := c.toScreen(0, 0)
	r.page.Resize(fyne.NewSize(float32(p.WidthPx)*zoom, float32(p.HeightPx)*zoom))
	r.page.Move(origin)

	safeX := p.Margins.Left
	safeY := p.Margins.Top
	safeW := p.WidthPx - p.Margins.Left - p.Margins.Right
	safeH := p.HeightPx - p.Margins.Top - p.Margins.Bottom
	r.safe.Resize(fyne.NewSize(float32(safeW)*zoom, float32(safeH)*zoom))
	r.safe.Move(c.toScreen(safeX, safeY))

	frames := c.sess.Frames()
	r.ensureFrameRects(len(frames))
	for i, f := range frames {
		rect := r.frameRects[i]
		g := f.Geometry
		if c.livePrev != nil && c.livePrev.FrameID == f.ID {
			g = domain.Rect(c.livePrev.Rect)
		}
		rect.FillColor = frameColor(f)
		rect.StrokeColor = color.RGBA{R: 30, G: 30, B: 30, A: 255}
		rect.StrokeWidth = 1
		rect.Resize(fyne.NewSize(float32(g.W)*zoom, float32(g.H)*zoom))
		rect.Move(c.toScreen(g.X, g.Y))
		rect.Show()
	}
	for i := len(frames); i < len(r.frameRects); i++ {
		r.frameRects[i].Hide()
	}

	r.layoutSelection(frames)
	r.layoutGuides()
}

func (r *canvasRenderer) layoutSelection(frames []domain.Frame) {
	c := r.cw
	sel := c.sess.Selection()
	if sel == "" || !c.sess.ShowHandles(sel) {
		r.bbox.Hide()
		for _, h := range r.handles {
			h.Hide()
		}
		return
	}
	var g domain.Rect
	found := false
	for _, f := range frames {
		if f.ID == sel {
			g = f.Geometry
			found = true
			break
		}
	}
	if c.livePrev != nil && c.livePrev.FrameID == sel {
		g = domain.Rect(c.livePrev.Rect)
		found = true
	}
	if !found {
		r.bbox.Hide()
		for _, h := range r.handles {
			h.Hide()
		}
		return
	}

	zoom := c.zoom
	r.bbox.Resize(fyne.NewSize(float32(g.W)*zoom, float32(g.H)*zoom))
	r.bbox.Move(c.toScreen(g.X, g.Y))
	r.bbox.Show()

	const sz = float32(8)
	for i, h := range geometry.Handles() {
		pos := c.handlePos(geometry.Rect(g), h)
		r.handles[i].Resize(fyne.NewSize(sz, sz))
		r.handles[i].Move(fyne.NewPos(pos.X-sz/2, pos.Y-sz/2))
		r.handles[i].Show()
	}
}

func (r *canvasRenderer) layoutGuides() {
	c := r.cw
	var guides []geometry.GuideLine
	if c.livePrev != nil {
		guides = c.livePrev.Guides
	}
	r.ensureGuideLines(len(guides))
	for i, g := range guides {
		line := r.guideLines[i]
		line.Position1 = c.toScreen(g.From.X, g.From.Y)
		line.Position2 = c.toScreen(g.To.X, g.To.Y)
		line.Show()
	}
	for i := len(guides); i < len(r.guideLines); i++ {
		r.guideLines[i].Hide()
	}
}

func (r *canvasRenderer) ensureFrameRects(n int) {
	for len(r.frameRects) < n {
		rect := canvas.NewRectangle(color.RGBA{R: 220, G: 220, B: 220, A: 255})
		r.frameRects = append(r.frameRects, rect)
		r.insertBeforeOverlay(rect)
	}
}

func (r *canvasRenderer) ensureGuideLines(n int) {
	for len(r.guideLines) < n {
		line := canvas.NewLine(color.RGBA{R: 255, G: 0, B: 180, A: 200})
		line.StrokeWidth = 1
		r.guideLines = append(r.guideLines, line)
		r.objects = append(r.objects, line)
	}
}

// insertBeforeOverlay keeps frame rects under the selection overlay.
func (r *canvasRenderer) insertBeforeOverlay(obj fyne.CanvasObject) {
	ins := len(r.objects)
	for i, o := range r.objects {
		if o == r.bbox {
			ins = i
			break
		}
	}
	objs := make([]fyne.CanvasObject, 0, len(r.objects)+1)
	objs = append(objs, r.objects[:ins]...)
	objs = append(objs, obj)
	objs = append(objs, r.objects[ins:]...)
	r.objects = objs
}

func frameColor(f domain.Frame) color.Color {
	switch f.Type {
	case domain.FrameText:
		return color.RGBA{R: 245, G: 245, B: 235, A: 255}
	case domain.FrameImage:
		return color.RGBA{R: 150, G: 185, B: 220, A: 255}
	case domain.FrameShape:
		return color.RGBA{R: 220, G: 175, B: 110, A: 255}
	case domain.FrameContainer:
		return color.RGBA{R: 210, G: 210, B: 210, A: 255}
	default:
		return color.RGBA{R: 200, G: 200, B: 200, A: 255}
	}
}
