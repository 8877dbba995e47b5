// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package dedup decides whether a source message has already produced a
// complaint. The check asks the complaint store directly, so it survives
// restarts, and it fails open: a lookup error is logged and the message is
// treated as new.
package dedup

import (
	"context"
	"log/slog"
)

// Lookup is the store query the checker needs.
type Lookup interface {
	ExistsByMessageID(ctx context.Context, messageID string) (bool, error)
}

// Checker tracks which message IDs have already been ingested.
type Checker struct {
	lookup Lookup
}

// NewChecker creates a dedup checker backed by the complaint store.
func NewChecker(lookup Lookup) *Checker {
	return &Checker{lookup: lookup}
}

// AlreadyProcessed returns true if a complaint for messageID exists.
// Storage errors are logged and reported as false.
func (c *Checker) AlreadyProcessed(ctx context.Context, messageID string) bool {
	if c == nil || c.lookup == nil {
		return false
	}
	exists, err := c.lookup.ExistsByMessageID(ctx, messageID)
	if err != nil {
		slog.Warn("dedup lookup failed, treating message as new",
			"message_id", messageID,
			"error", err,
		)
		return false
	}
	return exists
}
