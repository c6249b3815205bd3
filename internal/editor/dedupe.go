/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"sync"
	"time"
)

// Dedupe is a small time-scoped set used to drop repeated drop-insertions
// of the same asset. It is owned by a session instance, never process-wide,
// so lifetime and test isolation stay explicit. Safe for concurrent use.
type Dedupe struct {
	mu   sync.Mutex
	ttl  time.Duration
	max  int
	seen map[string]time.Time
	now  func() time.Time
}

// DefaultDedupeTTL is how long a drop key suppresses repeats.
const DefaultDedupeTTL = 5 * time.Second

// NewDedupe creates a dedupe set. ttl <= 0 uses the default; the set is
// capped at a few thousand keys and pruned lazily.
func NewDedupe(ttl time.Duration) *Dedupe {
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	return &Dedupe{
		ttl:  ttl,
		max:  4096,
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

// Seen records key and reports whether it was already recorded within the
// TTL window. The first call for a key returns false.
func (d *Dedupe) Seen(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if at, ok := d.seen[key]; ok && now.Sub(at) < d.ttl {
		return true
	}
	if len(d.seen) >= d.max {
		d.pruneLocked(now)
	}
	d.seen[key] = now
	return false
}

// Forget drops a key early, re-allowing its insertion.
func (d *Dedupe) Forget(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, key)
}

// Len reports the number of tracked keys, expired entries included until
// the next prune.
func (d *Dedupe) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

func (d *Dedupe) pruneLocked(now time.Time) {
	for k, at := range d.seen {
		if now.Sub(at) >= d.ttl {
			delete(d.seen, k)
		}
	}
	// Still full of live keys: drop everything rather than grow unbounded.
	if len(d.seen) >= d.max {
		d.seen = make(map[string]time.Time)
	}
}
