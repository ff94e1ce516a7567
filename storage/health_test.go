package storage_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quireapp/quire/storage"
)

// testClock is a manually stepped time source.
type testClock struct {
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func TestHealthTracker_UnknownProviderIsHealthy(t *testing.T) {
	tracker := storage.NewHealthTracker()
	assert.True(t, tracker.IsHealthy("dropbox"))
}

func TestHealthTracker_FailureThreshold(t *testing.T) {
	tracker := storage.NewHealthTracker()

	tracker.Observe("dropbox", false)
	assert.True(t, tracker.IsHealthy("dropbox"), "1 failure: still healthy")

	tracker.Observe("dropbox", false)
	assert.True(t, tracker.IsHealthy("dropbox"), "2 failures: still healthy")

	tracker.Observe("dropbox", false)
	assert.False(t, tracker.IsHealthy("dropbox"), "3 consecutive failures: unhealthy")

	tracker.Observe("dropbox", true)
	assert.True(t, tracker.IsHealthy("dropbox"), "one success resets the record")

	status := tracker.Snapshot()["dropbox"]
	assert.True(t, status.Healthy)
	assert.Zero(t, status.Failures)
}

func TestHealthTracker_InterveningSuccessResetsCount(t *testing.T) {
	tracker := storage.NewHealthTracker()

	tracker.Observe("gofile", false)
	tracker.Observe("gofile", false)
	tracker.Observe("gofile", true)
	tracker.Observe("gofile", false)
	tracker.Observe("gofile", false)

	assert.True(t, tracker.IsHealthy("gofile"), "failures must be consecutive to trip the threshold")
}

func TestHealthTracker_PassiveRecovery(t *testing.T) {
	clock := newTestClock()
	tracker := storage.NewHealthTracker(storage.WithClock(clock.Now))

	for i := 0; i < 3; i++ {
		tracker.Observe("telegram", false)
	}
	assert.False(t, tracker.IsHealthy("telegram"))

	// Still inside the quiet window: no recovery.
	clock.Advance(storage.DefaultRecoveryWindow - time.Second)
	assert.False(t, tracker.IsHealthy("telegram"))

	// Past the window: optimistically healthy again, without any success
	// observation, and the failure counter restarts.
	clock.Advance(2 * time.Second)
	assert.True(t, tracker.IsHealthy("telegram"))

	tracker.Observe("telegram", false)
	assert.True(t, tracker.IsHealthy("telegram"), "counter restarted after passive recovery")
}

func TestHealthTracker_CustomThresholdAndWindow(t *testing.T) {
	clock := newTestClock()
	tracker := storage.NewHealthTracker(
		storage.WithClock(clock.Now),
		storage.WithFailureThreshold(1),
		storage.WithRecoveryWindow(time.Minute),
	)

	tracker.Observe("catbox", false)
	assert.False(t, tracker.IsHealthy("catbox"))

	clock.Advance(61 * time.Second)
	assert.True(t, tracker.IsHealthy("catbox"))
}

func TestHealthTracker_SnapshotTracksLastObserved(t *testing.T) {
	clock := newTestClock()
	tracker := storage.NewHealthTracker(storage.WithClock(clock.Now))

	tracker.Observe("pixeldrain", true)
	first := tracker.Snapshot()["pixeldrain"].LastObserved

	clock.Advance(time.Minute)
	tracker.Observe("pixeldrain", false)
	second := tracker.Snapshot()["pixeldrain"].LastObserved

	assert.True(t, second.After(first), "every observation updates the timestamp")
}
