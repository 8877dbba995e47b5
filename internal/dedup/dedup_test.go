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

package dedup

import (
	"context"
	"errors"
	"testing"
)

type mockLookup struct {
	seen  map[string]bool
	err   error
	calls int
}

func (m *mockLookup) ExistsByMessageID(_ context.Context, id string) (bool, error) {
	m.calls++
	if m.err != nil {
		return false, m.err
	}
	return m.seen[id], nil
}

func TestAlreadyProcessed(t *testing.T) {
	lookup := &mockLookup{seen: map[string]bool{"m1": true}}
	c := NewChecker(lookup)

	if !c.AlreadyProcessed(context.Background(), "m1") {
		t.Error("m1 should be processed")
	}
	if c.AlreadyProcessed(context.Background(), "m2") {
		t.Error("m2 should not be processed")
	}
	if lookup.calls != 2 {
		t.Errorf("lookup calls = %d, want 2", lookup.calls)
	}
}

// TestAlreadyProcessed_FailsOpen verifies storage errors never block ingestion.
func TestAlreadyProcessed_FailsOpen(t *testing.T) {
	c := NewChecker(&mockLookup{
		seen: map[string]bool{"m1": true},
		err:  errors.New("connection refused"),
	})

	if c.AlreadyProcessed(context.Background(), "m1") {
		t.Error("lookup error must be treated as not processed")
	}
}

func TestAlreadyProcessed_NilLookup(t *testing.T) {
	var c *Checker
	if c.AlreadyProcessed(context.Background(), "m1") {
		t.Error("nil checker must report not processed")
	}
	if NewChecker(nil).AlreadyProcessed(context.Background(), "m1") {
		t.Error("checker without lookup must report not processed")
	}
}
