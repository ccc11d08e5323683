// Package presence implements the device presence state machine. A
// Tracker consumes one observation set per scan cycle, diffs it against
// the previously known presence set, and emits arrival and departure
// transitions exactly once per genuine state change. Departures are
// debounced: a device must be missing for a configured number of
// consecutive cycles before it is reported gone, so a single dropped
// probe never causes notification flapping.
package presence

import (
	"sort"
	"time"

	"lanwatch/internal/device"
)

// Default state machine parameters.
const (
	DefaultMissThreshold = 2
	DefaultRetention     = 7 * 24 * time.Hour
)

// Record is the tracker's memory of a device's last known state. At
// most one record exists per MAC; records live only as long as the
// process unless an event store persists them on the side.
type Record struct {
	MAC       device.MAC
	FirstSeen time.Time
	LastSeen  time.Time
	Present   bool
	// Misses counts consecutive cycles the device was absent from
	// scan results while still considered present. Reset on any
	// re-sighting; failed scan cycles do not advance it.
	Misses int
}

// Transition is a single presence change detected during reconciliation.
type Transition struct {
	MAC  device.MAC
	Kind device.EventKind
	At   time.Time
}

// Config holds the tracker's tuning parameters.
type Config struct {
	// MissThreshold is the number of consecutive missed cycles before
	// a present device is reported departed.
	MissThreshold int

	// Retention bounds how long absent devices are remembered before
	// their records are pruned. Zero disables pruning.
	Retention time.Duration
}

// Tracker owns the presence records. It is not safe for concurrent
// use: records are mutated exclusively by the single cycle goroutine,
// and readers consume the copies returned by Snapshot.
type Tracker struct {
	cfg     Config
	records map[device.MAC]*Record
}

// NewTracker creates a tracker. A non-positive miss threshold falls
// back to the default.
func NewTracker(cfg Config) *Tracker {
	if cfg.MissThreshold <= 0 {
		cfg.MissThreshold = DefaultMissThreshold
	}
	return &Tracker{
		cfg:     cfg,
		records: make(map[device.MAC]*Record),
	}
}

// Reconcile applies one cycle's observation set and returns the
// transitions it caused, in deterministic MAC order. The set must be
// fully materialized before the call; a failed scan must skip
// reconciliation entirely rather than pass an empty set, since absence
// of evidence from a failed scan is not evidence of absence.
func (t *Tracker) Reconcile(set device.ObservationSet, now time.Time) []Transition {
	var transitions []Transition

	// Sightings first: arrivals and refreshes.
	for _, mac := range set.MACs() {
		rec, ok := t.records[mac]
		if !ok {
			t.records[mac] = &Record{
				MAC:       mac,
				FirstSeen: now,
				LastSeen:  now,
				Present:   true,
			}
			transitions = append(transitions, Transition{MAC: mac, Kind: device.EventArrived, At: now})
			continue
		}

		rec.LastSeen = now
		rec.Misses = 0
		if !rec.Present {
			rec.Present = true
			transitions = append(transitions, Transition{MAC: mac, Kind: device.EventArrived, At: now})
		}
	}

	// Then misses: count down toward departure.
	for _, mac := range t.sortedMACs() {
		rec := t.records[mac]
		if !rec.Present || set.Has(mac) {
			continue
		}
		rec.Misses++
		if rec.Misses >= t.cfg.MissThreshold {
			rec.Present = false
			rec.Misses = 0
			transitions = append(transitions, Transition{MAC: mac, Kind: device.EventDeparted, At: now})
		}
	}

	t.prune(now)

	return transitions
}

// prune drops absent records idle beyond the retention window.
func (t *Tracker) prune(now time.Time) {
	if t.cfg.Retention <= 0 {
		return
	}
	for mac, rec := range t.records {
		if !rec.Present && now.Sub(rec.LastSeen) > t.cfg.Retention {
			delete(t.records, mac)
		}
	}
}

// Forget removes a device's record, if any. Used when a device becomes
// ignored through a config reload.
func (t *Tracker) Forget(mac device.MAC) {
	delete(t.records, mac)
}

// Snapshot returns copies of all records in MAC order.
func (t *Tracker) Snapshot() []Record {
	out := make([]Record, 0, len(t.records))
	for _, mac := range t.sortedMACs() {
		out = append(out, *t.records[mac])
	}
	return out
}

// Online returns copies of the records currently marked present, in
// MAC order.
func (t *Tracker) Online() []Record {
	var out []Record
	for _, mac := range t.sortedMACs() {
		if rec := t.records[mac]; rec.Present {
			out = append(out, *rec)
		}
	}
	return out
}

// Len returns the number of tracked records.
func (t *Tracker) Len() int {
	return len(t.records)
}

func (t *Tracker) sortedMACs() []device.MAC {
	macs := make([]device.MAC, 0, len(t.records))
	for mac := range t.records {
		macs = append(macs, mac)
	}
	sort.Slice(macs, func(i, j int) bool { return macs[i] < macs[j] })
	return macs
}
