/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"storycanvas/internal/blueprint"
	"storycanvas/internal/crash"
	applog "storycanvas/internal/log"
	"storycanvas/internal/preview"
	"storycanvas/internal/store"
	"storycanvas/internal/ui"
	"storycanvas/internal/version"
)

const localStorybookID = "book-local"

func usage() {
	fmt.Println("Story Canvas — page and frame editor")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  storycanvas version|-v|--version            Show version")
	fmt.Println("  storycanvas init <dir>                      Create a canvas workspace at <dir>")
	fmt.Println("  storycanvas open <dir>                      Open workspace at <dir> and print a summary")
	fmt.Println("  storycanvas preview <dir> <page#> <out.png> Render a page thumbnail to <out.png>")
	fmt.Println("  storycanvas blueprints <dir>                List frame blueprints in the workspace")
	fmt.Println("  storycanvas ui [<dir>]                      Launch desktop UI (build with -tags fyne for full UI)")
}

func owner() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "local"
}

func openStore(dir string) (*store.SQLite, string) {
	abs, _ := filepath.Abs(dir)
	st, err := store.OpenWorkspace(abs)
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	return st, abs
}

func main() {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("cli")
	defer crash.Recover(filepath.Join(os.TempDir(), "storycanvas-crash"), nil)

	args := os.Args
	ctx := context.Background()
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) > 1 {
		switch args[1] {
		case "version", "--version", "-v":
			fmt.Println("Story Canvas — page and frame editor")
			fmt.Println(version.String())
			return
		case "init":
			if len(args) < 3 {
				fmt.Println("init requires <dir>")
				usage()
				os.Exit(2)
			}
			st, abs := openStore(args[2])
			defer func() { _ = st.Close() }()
			l.Info("init workspace", slog.String("root", abs))
			page, err := st.EnsureDefaultCanvas(ctx, localStorybookID, owner())
			if err != nil {
				l.Error("init failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			fmt.Println("Created workspace at", abs)
			fmt.Printf("First page: %s (%gx%g)\n", page.ID, page.WidthPx, page.HeightPx)
			return
		case "open":
			if len(args) < 3 {
				fmt.Println("open requires <dir>")
				usage()
				os.Exit(2)
			}
			st, abs := openStore(args[2])
			defer func() { _ = st.Close() }()
			l.Info("open workspace", slog.String("root", abs))
			pages, err := st.ListPages(ctx, localStorybookID)
			if err != nil {
				l.Error("open failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			fmt.Println("Workspace:", abs)
			fmt.Printf("Pages: %d\n", len(pages))
			for _, p := range pages {
				frames, err := st.ListFrames(ctx, p.ID)
				if err != nil {
					fmt.Println("Error:", err)
					os.Exit(1)
				}
				fmt.Printf("  %2d. %s  %gx%g  frames=%d  v%d\n",
					p.OrderIndex+1, p.ID, p.WidthPx, p.HeightPx, len(frames), p.Version)
			}
			return
		case "preview":
			if len(args) < 5 {
				fmt.Println("preview requires <dir>, <page#> and <out.png>")
				usage()
				os.Exit(2)
			}
			st, _ := openStore(args[2])
			defer func() { _ = st.Close() }()
			num, err := strconv.Atoi(args[3])
			if err != nil || num < 1 {
				fmt.Println("page# must be a positive number")
				os.Exit(2)
			}
			pages, err := st.ListPages(ctx, localStorybookID)
			if err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			if num > len(pages) {
				fmt.Printf("workspace has only %d page(s)\n", len(pages))
				os.Exit(1)
			}
			page := pages[num-1]
			frames, err := st.ListFrames(ctx, page.ID)
			if err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			png, err := preview.Thumbnail(page, frames, 0)
			if err != nil {
				l.Error("preview render failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			if err := os.WriteFile(args[4], png, 0o644); err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			if err := st.SavePreview(ctx, page.ID, png); err != nil {
				l.Warn("preview cache failed", slog.Any("err", err))
			}
			fmt.Println("Wrote", args[4])
			return
		case "blueprints":
			if len(args) < 3 {
				fmt.Println("blueprints requires <dir>")
				usage()
				os.Exit(2)
			}
			abs, _ := filepath.Abs(args[2])
			dir := filepath.Join(abs, store.CanvasDirName, "blueprints")
			bps, err := blueprint.LoadDir(dir)
			if err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			if len(bps) == 0 {
				fmt.Println("No blueprints in", dir)
				return
			}
			for _, b := range bps {
				fmt.Printf("  %-24s %-8s %s\n", b.Name, b.Type, b.Description)
			}
			return
		case "ui":
			var dir string
			if len(args) >= 3 {
				dir = args[2]
			}
			if err := ui.Run(dir); err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			return
		}
	}

	usage()
}
