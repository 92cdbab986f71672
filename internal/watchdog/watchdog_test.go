// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Ember Works

package watchdog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)

func TestFailureRun(t *testing.T) {
	w := New(Config{MaxFailures: 3, StaleAfter: 30 * time.Second}, t0)

	w.OnFailure()
	w.OnFailure()
	assert.Equal(t, Healthy, w.Health())

	w.OnFailure()
	assert.Equal(t, Unhealthy, w.Health())
}

func TestCounterSaturates(t *testing.T) {
	w := New(Config{MaxFailures: 3, StaleAfter: 30 * time.Second}, t0)

	for i := 0; i < 10; i++ {
		w.OnFailure()
	}
	assert.Equal(t, 3, w.Failures())

	// One success after a long failure run fully recovers.
	w.OnSuccess(t0.Add(time.Minute))
	assert.Equal(t, 0, w.Failures())
	assert.Equal(t, Healthy, w.Health())
}

func TestSuccessResetsRun(t *testing.T) {
	w := New(Config{MaxFailures: 3, StaleAfter: 30 * time.Second}, t0)

	w.OnFailure()
	w.OnFailure()
	w.OnSuccess(t0.Add(5 * time.Second))
	w.OnFailure()
	w.OnFailure()
	assert.Equal(t, Healthy, w.Health())
}

func TestStaleness(t *testing.T) {
	w := New(Config{MaxFailures: 3, StaleAfter: 30 * time.Second}, t0)
	w.OnSuccess(t0)

	assert.False(t, w.CheckStale(t0.Add(30*time.Second)))
	assert.True(t, w.CheckStale(t0.Add(31*time.Second)))
}

// A session that connects but never yields a status must still trip the
// staleness check, measured from construction time.
func TestStaleWithoutAnySuccess(t *testing.T) {
	w := New(Config{MaxFailures: 3, StaleAfter: 30 * time.Second}, t0)

	assert.False(t, w.CheckStale(t0.Add(10*time.Second)))
	assert.True(t, w.CheckStale(t0.Add(31*time.Second)))
}

// Staleness and the failure run are independent triggers: intermittent
// successes keep the counter low while the clock can still go stale, and
// rapid failures trip the counter long before staleness.
func TestTriggersAreIndependent(t *testing.T) {
	w := New(Config{MaxFailures: 3, StaleAfter: 30 * time.Second}, t0)
	w.OnSuccess(t0)

	w.OnFailure()
	w.OnFailure()
	w.OnFailure()
	assert.Equal(t, Unhealthy, w.Health())
	assert.False(t, w.CheckStale(t0.Add(2*time.Second)))
}

func TestReset(t *testing.T) {
	w := New(Config{MaxFailures: 3, StaleAfter: 30 * time.Second}, t0)
	for i := 0; i < 3; i++ {
		w.OnFailure()
	}

	later := t0.Add(2 * time.Minute)
	w.Reset(later)

	assert.Equal(t, Healthy, w.Health())
	assert.False(t, w.CheckStale(later.Add(10*time.Second)))
}

func TestDefaults(t *testing.T) {
	w := New(Config{}, t0)

	for i := 0; i < DefaultMaxFailures; i++ {
		w.OnFailure()
	}
	assert.Equal(t, Unhealthy, w.Health())
	assert.True(t, w.CheckStale(t0.Add(DefaultStaleAfter+time.Second)))
}
