/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"sync"

	"golang.org/x/time/rate"
)

// keyedLimiter applies an independent token bucket per key (one bucket per
// authenticated subject). The map is pruned when it grows past maxKeys so
// a churn of short-lived subjects cannot grow it without bound.
type keyedLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
	maxKeys  int
}

func newKeyedLimiter(rps float64, burst int) *keyedLimiter {
	return &keyedLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(rps),
		burst:    burst,
		maxKeys:  4096,
	}
}

// allow reports whether a request for the key may proceed right now.
func (kl *keyedLimiter) allow(key string) bool {
	kl.mu.Lock()
	l, ok := kl.limiters[key]
	if !ok {
		if len(kl.limiters) >= kl.maxKeys {
			kl.limiters = make(map[string]*rate.Limiter)
		}
		l = rate.NewLimiter(kl.limit, kl.burst)
		kl.limiters[key] = l
	}
	kl.mu.Unlock()
	return l.Allow()
}
