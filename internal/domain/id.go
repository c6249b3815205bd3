/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Entity IDs are prefixed NanoIDs ("page-V1StGXR8_Z5jdHi6B-myT"). The prefix
// makes ids self-describing in logs and in the database.

const (
	PrefixStorybook = "book"
	PrefixPage      = "page"
	PrefixFrame     = "frm"
)

// NewID creates a prefixed unique ID. It returns an error only when the
// system entropy source fails.
func NewID(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustID is like NewID but panics on entropy failure. Use during
// initialization or where an id failure should abort the operation outright.
func MustID(prefix string) string {
	id, err := NewID(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate id: %v", err))
	}
	return id
}
