/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package autosave debounces edit notifications into background saves.
// At most one save is in flight at a time; edits arriving mid-save queue a
// follow-up save instead of a second flight. Transient errors retry with
// exponential backoff; a version conflict halts autosaving until the
// caller resolves it by reloading or overwriting.
package autosave

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Status is the externally visible save state, suitable for a status bar.
type Status int

const (
	StatusIdle Status = iota
	StatusSaving
	StatusSaved
	StatusConflict
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSaving:
		return "saving"
	case StatusSaved:
		return "saved"
	case StatusConflict:
		return "conflict"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// Defaults applied by New when the corresponding Config field is zero.
const (
	DefaultDebounce    = 800 * time.Millisecond
	DefaultRetryBase   = 400 * time.Millisecond
	DefaultMaxRetries  = 3
	DefaultSavedWindow = 2 * time.Second
)

// SaveFunc persists the current dirty state. force is true only for an
// overwrite after a conflict; implementations then bypass their version
// check. The function must honor ctx cancellation.
type SaveFunc func(ctx context.Context, force bool) error

// Config configures a Saver. Save is required.
type Config struct {
	Debounce   time.Duration
	RetryBase  time.Duration
	MaxRetries int
	// SavedWindow is how long the saved state stays visible before the
	// status settles back to idle.
	SavedWindow time.Duration

	Save SaveFunc
	// IsConflict classifies a Save error as a version conflict. Nil
	// means no error is ever a conflict.
	IsConflict func(error) bool
	// OnStatus, when set, is called outside the Saver's lock after
	// every status transition.
	OnStatus func(Status, error)

	Logger *slog.Logger
}

// Saver is the autosave controller for one open canvas.
type Saver struct {
	cfg Config
	log *slog.Logger

	mu         sync.Mutex
	status     Status
	lastErr    error
	timer      *time.Timer
	savedTimer *time.Timer
	inFlight   bool
	pending    bool
	closed     bool

	cancelMu sync.Mutex
	cancel   context.CancelFunc

	wg sync.WaitGroup
}

// New returns a Saver. It panics when cfg.Save is nil since the controller
// is useless without it.
func New(cfg Config) *Saver {
	if cfg.Save == nil {
		panic("autosave: Config.Save is required")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = DefaultRetryBase
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.SavedWindow <= 0 {
		cfg.SavedWindow = DefaultSavedWindow
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Saver{cfg: cfg, log: cfg.Logger}
}

// Status returns the current state and, for error or conflict states, the
// error that caused it.
func (s *Saver) Status() (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.lastErr
}

// MarkDirty records an edit and (re)arms the debounce timer. While a save
// is in flight the edit queues a follow-up save instead. After a conflict
// the call is a no-op until Reload or Overwrite resolves it.
func (s *Saver) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.status == StatusConflict {
		return
	}
	if s.inFlight {
		s.pending = true
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.cfg.Debounce, func() { s.fire(false) })
}

// Commit saves immediately, skipping the debounce, without blocking.
// Gesture releases use it so the committed geometry hits the store right
// away. While a save is in flight the commit queues a follow-up save;
// after a conflict it is a no-op until the conflict is resolved.
func (s *Saver) Commit() {
	s.mu.Lock()
	if s.closed || s.status == StatusConflict {
		s.mu.Unlock()
		return
	}
	if s.inFlight {
		s.pending = true
		s.mu.Unlock()
		return
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	s.fire(false)
}

// Flush saves immediately, skipping the debounce. It blocks until the save
// attempt (including retries) finishes and returns its error. Flushing
// while a save is in flight waits for that flight instead of starting
// another.
func (s *Saver) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if s.status == StatusConflict {
		err := s.lastErr
		s.mu.Unlock()
		return err
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.inFlight {
		s.pending = true
		s.mu.Unlock()
		s.wg.Wait()
		_, err := s.Status()
		return err
	}
	s.mu.Unlock()

	s.fire(false)
	s.wg.Wait()
	_, err := s.Status()
	return err
}

// Reload resolves a conflict by accepting the remote state. The caller has
// already refetched; local dirty state is discarded and autosaving resumes.
func (s *Saver) Reload() {
	s.mu.Lock()
	if s.status != StatusConflict {
		s.mu.Unlock()
		return
	}
	s.status = StatusIdle
	s.lastErr = nil
	s.pending = false
	s.mu.Unlock()
	s.notify(StatusIdle, nil)
}

// Overwrite resolves a conflict by force-saving the local state over the
// remote version. It blocks until the forced save finishes.
func (s *Saver) Overwrite(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StatusConflict || s.closed {
		s.mu.Unlock()
		return nil
	}
	s.status = StatusIdle
	s.lastErr = nil
	s.mu.Unlock()

	s.fire(true)
	s.wg.Wait()
	_, err := s.Status()
	return err
}

// Close stops the debounce timer and cancels any in-flight save. The Saver
// must not be used afterwards.
func (s *Saver) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.savedTimer != nil {
		s.savedTimer.Stop()
		s.savedTimer = nil
	}
	s.mu.Unlock()

	s.cancelMu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancelMu.Unlock()
	s.wg.Wait()
}

// fire starts one save flight unless one is already running.
func (s *Saver) fire(force bool) {
	s.mu.Lock()
	if s.closed || s.inFlight {
		if s.inFlight {
			s.pending = true
		}
		s.mu.Unlock()
		return
	}
	s.inFlight = true
	s.timer = nil
	if s.savedTimer != nil {
		s.savedTimer.Stop()
		s.savedTimer = nil
	}
	s.status = StatusSaving
	s.mu.Unlock()
	s.notify(StatusSaving, nil)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelMu.Lock()
	s.cancel = cancel
	s.cancelMu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.run(ctx, force)
	}()
}

// run performs the save with retries, then settles the resulting status
// and re-arms the debounce when edits queued up during the flight.
func (s *Saver) run(ctx context.Context, force bool) {
	var err error
	for attempt := 0; ; attempt++ {
		err = s.cfg.Save(ctx, force)
		if err == nil || ctx.Err() != nil {
			break
		}
		if s.cfg.IsConflict != nil && s.cfg.IsConflict(err) {
			break
		}
		if attempt >= s.cfg.MaxRetries {
			break
		}
		backoff := s.cfg.RetryBase << attempt
		s.log.Warn("save failed, retrying", "attempt", attempt+1, "backoff", backoff, "error", err)
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(backoff):
			continue
		}
		break
	}

	s.mu.Lock()
	s.inFlight = false
	rearm := false
	var status Status
	switch {
	case err == nil:
		status = StatusSaved
		s.lastErr = nil
		rearm = s.pending
	case s.cfg.IsConflict != nil && s.cfg.IsConflict(err):
		status = StatusConflict
		s.lastErr = err
		s.pending = false
	case errors.Is(err, context.Canceled):
		status = StatusIdle
		s.lastErr = nil
	default:
		status = StatusError
		s.lastErr = err
	}
	s.status = status
	if rearm && !s.closed {
		s.pending = false
		s.timer = time.AfterFunc(s.cfg.Debounce, func() { s.fire(false) })
	}
	if status == StatusSaved && !s.closed {
		if s.savedTimer != nil {
			s.savedTimer.Stop()
		}
		s.savedTimer = time.AfterFunc(s.cfg.SavedWindow, s.settleSaved)
	}
	s.mu.Unlock()
	s.notify(status, err)
}

// settleSaved flips a lingering saved status back to idle once the
// display window elapses. A save that started in the meantime wins.
func (s *Saver) settleSaved() {
	s.mu.Lock()
	if s.closed || s.inFlight || s.status != StatusSaved {
		s.mu.Unlock()
		return
	}
	s.status = StatusIdle
	s.savedTimer = nil
	s.mu.Unlock()
	s.notify(StatusIdle, nil)
}

func (s *Saver) notify(status Status, err error) {
	if s.cfg.OnStatus != nil {
		s.cfg.OnStatus(status, err)
	}
}
