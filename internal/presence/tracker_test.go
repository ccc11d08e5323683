package presence

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lanwatch/internal/device"
)

func obsSet(at time.Time, macs ...device.MAC) device.ObservationSet {
	set := make(device.ObservationSet)
	for _, mac := range macs {
		set.Add(device.Observation{MAC: mac, IP: net.ParseIP("192.168.1.50"), SeenAt: at})
	}
	return set
}

func kinds(transitions []Transition) map[device.MAC]device.EventKind {
	out := make(map[device.MAC]device.EventKind)
	for _, tr := range transitions {
		out[tr.MAC] = tr.Kind
	}
	return out
}

func TestFirstCycleOnlyArrivals(t *testing.T) {
	tr := NewTracker(Config{MissThreshold: 2})
	now := time.Now()

	transitions := tr.Reconcile(obsSet(now, "aa:aa:aa:aa:aa:aa", "bb:bb:bb:bb:bb:bb"), now)

	require.Len(t, transitions, 2)
	for _, transition := range transitions {
		assert.Equal(t, device.EventArrived, transition.Kind)
	}
	assert.Equal(t, 2, tr.Len())
}

func TestSteadyStateEmitsNothing(t *testing.T) {
	tr := NewTracker(Config{MissThreshold: 2})
	now := time.Now()

	tr.Reconcile(obsSet(now, "aa:aa:aa:aa:aa:aa"), now)
	later := now.Add(time.Minute)
	transitions := tr.Reconcile(obsSet(later, "aa:aa:aa:aa:aa:aa"), later)

	assert.Empty(t, transitions)
	rec := tr.Snapshot()[0]
	assert.Equal(t, later, rec.LastSeen)
	assert.Equal(t, now, rec.FirstSeen)
}

func TestDepartureDebounce(t *testing.T) {
	// threshold=2: present in cycles 1,2, absent in 3,4.
	// Departed must fire exactly once, at cycle 4, not cycle 3.
	tr := NewTracker(Config{MissThreshold: 2})
	now := time.Now()
	a := device.MAC("aa:aa:aa:aa:aa:aa")

	tr.Reconcile(obsSet(now, a), now)                         // cycle 1: arrive
	tr.Reconcile(obsSet(now.Add(time.Minute), a), now.Add(time.Minute)) // cycle 2

	c3 := now.Add(2 * time.Minute)
	transitions := tr.Reconcile(obsSet(c3), c3) // cycle 3: first miss
	assert.Empty(t, transitions, "one miss must not trigger a departure")

	c4 := now.Add(3 * time.Minute)
	transitions = tr.Reconcile(obsSet(c4), c4) // cycle 4: second miss
	require.Len(t, transitions, 1)
	assert.Equal(t, device.EventDeparted, transitions[0].Kind)
	assert.Equal(t, a, transitions[0].MAC)

	// No repeated departure on subsequent absent cycles.
	c5 := now.Add(4 * time.Minute)
	assert.Empty(t, tr.Reconcile(obsSet(c5), c5))
}

func TestSingleMissSuppressed(t *testing.T) {
	// present, absent, present with threshold=2: no event ever.
	tr := NewTracker(Config{MissThreshold: 2})
	now := time.Now()
	a := device.MAC("aa:aa:aa:aa:aa:aa")

	tr.Reconcile(obsSet(now, a), now)

	c2 := now.Add(time.Minute)
	assert.Empty(t, tr.Reconcile(obsSet(c2), c2))

	c3 := now.Add(2 * time.Minute)
	assert.Empty(t, tr.Reconcile(obsSet(c3, a), c3), "re-sighting within the debounce window is silent")

	// Miss counter was reset by the re-sighting.
	c4 := now.Add(3 * time.Minute)
	assert.Empty(t, tr.Reconcile(obsSet(c4), c4))
}

func TestReturnAfterDeparture(t *testing.T) {
	tr := NewTracker(Config{MissThreshold: 1})
	now := time.Now()
	a := device.MAC("aa:aa:aa:aa:aa:aa")

	tr.Reconcile(obsSet(now, a), now)

	c2 := now.Add(time.Minute)
	transitions := tr.Reconcile(obsSet(c2), c2)
	require.Len(t, transitions, 1)
	assert.Equal(t, device.EventDeparted, transitions[0].Kind)

	c3 := now.Add(2 * time.Minute)
	transitions = tr.Reconcile(obsSet(c3, a), c3)
	require.Len(t, transitions, 1)
	assert.Equal(t, device.EventArrived, transitions[0].Kind)

	// FirstSeen survives the absence; only one record per MAC.
	require.Equal(t, 1, tr.Len())
	assert.Equal(t, now, tr.Snapshot()[0].FirstSeen)
}

func TestNeverObservedNeverReported(t *testing.T) {
	tr := NewTracker(Config{MissThreshold: 2})
	now := time.Now()

	for i := 0; i < 5; i++ {
		at := now.Add(time.Duration(i) * time.Minute)
		transitions := tr.Reconcile(obsSet(at, "aa:aa:aa:aa:aa:aa"), at)
		for _, transition := range transitions {
			assert.NotEqual(t, device.MAC("cc:cc:cc:cc:cc:cc"), transition.MAC)
		}
	}
	assert.Equal(t, 1, tr.Len())
}

func TestSkippedCycleLeavesStateUntouched(t *testing.T) {
	// A failed scan skips Reconcile entirely; state must be unchanged
	// and the debounce counter must not advance across the gap.
	tr := NewTracker(Config{MissThreshold: 2})
	now := time.Now()
	a := device.MAC("aa:aa:aa:aa:aa:aa")

	tr.Reconcile(obsSet(now, a), now)
	c2 := now.Add(time.Minute)
	tr.Reconcile(obsSet(c2), c2) // one miss

	before := tr.Snapshot()

	// Failed cycle: no Reconcile call.

	after := tr.Snapshot()
	assert.Equal(t, before, after)

	// The miss counter continues from one, so the next miss departs.
	c4 := now.Add(3 * time.Minute)
	transitions := tr.Reconcile(obsSet(c4), c4)
	require.Len(t, transitions, 1)
	assert.Equal(t, device.EventDeparted, transitions[0].Kind)
}

func TestTransitionsAlternate(t *testing.T) {
	tr := NewTracker(Config{MissThreshold: 1})
	now := time.Now()
	a := device.MAC("aa:aa:aa:aa:aa:aa")

	var history []device.EventKind
	pattern := []bool{true, false, true, true, false, true, false, false, true}
	for i, present := range pattern {
		at := now.Add(time.Duration(i) * time.Minute)
		set := obsSet(at)
		if present {
			set = obsSet(at, a)
		}
		for _, transition := range tr.Reconcile(set, at) {
			history = append(history, transition.Kind)
		}
	}

	require.NotEmpty(t, history)
	assert.Equal(t, device.EventArrived, history[0])
	for i := 1; i < len(history); i++ {
		assert.NotEqual(t, history[i-1], history[i], "transitions for one device must strictly alternate")
	}
}

func TestPruneAbsentRecords(t *testing.T) {
	tr := NewTracker(Config{MissThreshold: 1, Retention: time.Hour})
	now := time.Now()
	a := device.MAC("aa:aa:aa:aa:aa:aa")

	tr.Reconcile(obsSet(now, a), now)
	c2 := now.Add(time.Minute)
	tr.Reconcile(obsSet(c2), c2) // departs
	require.Equal(t, 1, tr.Len())

	// Still inside the retention window.
	c3 := now.Add(30 * time.Minute)
	tr.Reconcile(obsSet(c3), c3)
	assert.Equal(t, 1, tr.Len())

	// Beyond the retention window the record is evicted.
	c4 := now.Add(2 * time.Hour)
	tr.Reconcile(obsSet(c4), c4)
	assert.Equal(t, 0, tr.Len())
}

func TestPruneDisabled(t *testing.T) {
	tr := NewTracker(Config{MissThreshold: 1, Retention: 0})
	now := time.Now()
	a := device.MAC("aa:aa:aa:aa:aa:aa")

	tr.Reconcile(obsSet(now, a), now)
	c2 := now.Add(time.Minute)
	tr.Reconcile(obsSet(c2), c2)

	far := now.Add(365 * 24 * time.Hour)
	tr.Reconcile(obsSet(far), far)
	assert.Equal(t, 1, tr.Len(), "zero retention keeps records forever")
}

func TestPresentRecordsNeverPruned(t *testing.T) {
	tr := NewTracker(Config{MissThreshold: 5, Retention: time.Minute})
	now := time.Now()
	a := device.MAC("aa:aa:aa:aa:aa:aa")

	tr.Reconcile(obsSet(now, a), now)

	// Device misses scans but is still within the debounce window;
	// it stays present and must not be pruned however much time passes.
	far := now.Add(time.Hour)
	tr.Reconcile(obsSet(far), far)
	assert.Equal(t, 1, tr.Len())
}

func TestOnlineAndSnapshot(t *testing.T) {
	tr := NewTracker(Config{MissThreshold: 1})
	now := time.Now()

	tr.Reconcile(obsSet(now, "bb:bb:bb:bb:bb:bb", "aa:aa:aa:aa:aa:aa"), now)
	c2 := now.Add(time.Minute)
	tr.Reconcile(obsSet(c2, "aa:aa:aa:aa:aa:aa"), c2)

	online := tr.Online()
	require.Len(t, online, 1)
	assert.Equal(t, device.MAC("aa:aa:aa:aa:aa:aa"), online[0].MAC)

	snapshot := tr.Snapshot()
	require.Len(t, snapshot, 2)
	// Sorted by MAC.
	assert.Equal(t, device.MAC("aa:aa:aa:aa:aa:aa"), snapshot[0].MAC)
	assert.Equal(t, device.MAC("bb:bb:bb:bb:bb:bb"), snapshot[1].MAC)
	assert.False(t, snapshot[1].Present)
}

func TestForget(t *testing.T) {
	tr := NewTracker(Config{MissThreshold: 2})
	now := time.Now()
	a := device.MAC("aa:aa:aa:aa:aa:aa")

	tr.Reconcile(obsSet(now, a), now)
	tr.Forget(a)
	assert.Equal(t, 0, tr.Len())

	// The device arrives again as if never seen.
	c2 := now.Add(time.Minute)
	transitions := tr.Reconcile(obsSet(c2, a), c2)
	require.Len(t, transitions, 1)
	assert.Equal(t, device.EventArrived, transitions[0].Kind)
}

func TestMultipleDevicesMixedCycle(t *testing.T) {
	tr := NewTracker(Config{MissThreshold: 1})
	now := time.Now()
	a := device.MAC("aa:aa:aa:aa:aa:aa")
	b := device.MAC("bb:bb:bb:bb:bb:bb")
	c := device.MAC("cc:cc:cc:cc:cc:cc")

	tr.Reconcile(obsSet(now, a, b), now)

	// b leaves, c arrives in the same cycle.
	c2 := now.Add(time.Minute)
	transitions := tr.Reconcile(obsSet(c2, a, c), c2)

	got := kinds(transitions)
	assert.Equal(t, device.EventDeparted, got[b])
	assert.Equal(t, device.EventArrived, got[c])
	_, hasA := got[a]
	assert.False(t, hasA, "steady device must not transition")
}

func TestDefaultThreshold(t *testing.T) {
	tr := NewTracker(Config{})
	assert.Equal(t, DefaultMissThreshold, tr.cfg.MissThreshold)
}
