// Package device defines the core identity and event types used across
// lanwatch. A device is identified solely by its MAC address; everything
// else (display name, notification level) is policy layered on top by the
// registry.
package device

import (
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MAC is a canonical device identifier: lowercase, colon-separated,
// six octets. Values are only constructed through ParseMAC so that map
// keys compare reliably regardless of the source format.
type MAC string

// ParseMAC normalizes a MAC address string into its canonical form.
// Colon, hyphen and dot separated forms are accepted; only 48-bit
// addresses are valid device identities.
func ParseMAC(s string) (MAC, error) {
	hw, err := net.ParseMAC(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid MAC address %q: %w", s, err)
	}
	if len(hw) != 6 {
		return "", fmt.Errorf("invalid MAC address %q: not a 48-bit address", s)
	}
	return MAC(strings.ToLower(hw.String())), nil
}

// String returns the canonical textual form.
func (m MAC) String() string {
	return string(m)
}

// IsBroadcast reports whether the address is the Ethernet broadcast
// address ff:ff:ff:ff:ff:ff.
func (m MAC) IsBroadcast() bool {
	return m == "ff:ff:ff:ff:ff:ff"
}

// IsMulticast reports whether the least significant bit of the first
// octet is set. Multicast addresses never identify a single device and
// are dropped during scan normalization.
func (m MAC) IsMulticast() bool {
	hw, err := net.ParseMAC(string(m))
	if err != nil || len(hw) == 0 {
		return false
	}
	return hw[0]&0x01 != 0
}

// Observation is a single sighting of a device during one scan cycle.
// Observations are ephemeral and never persisted across cycles.
type Observation struct {
	MAC    MAC
	IP     net.IP
	SeenAt time.Time
}

// ObservationSet holds the deduplicated observations of one scan cycle,
// keyed by MAC. A MAC appearing twice keeps the last-seen IP.
type ObservationSet map[MAC]Observation

// Add inserts an observation, replacing any previous sighting of the
// same MAC.
func (s ObservationSet) Add(obs Observation) {
	s[obs.MAC] = obs
}

// Has reports whether the set contains a sighting of mac.
func (s ObservationSet) Has(mac MAC) bool {
	_, ok := s[mac]
	return ok
}

// MACs returns the observed addresses in sorted order for deterministic
// iteration.
func (s ObservationSet) MACs() []MAC {
	macs := make([]MAC, 0, len(s))
	for mac := range s {
		macs = append(macs, mac)
	}
	sort.Slice(macs, func(i, j int) bool { return macs[i] < macs[j] })
	return macs
}

// Merge copies all observations from other into s, keeping other's
// entry on conflict.
func (s ObservationSet) Merge(other ObservationSet) {
	for _, obs := range other {
		s.Add(obs)
	}
}

// Level controls how a transition notification is delivered for a
// device.
type Level string

const (
	LevelNormal        Level = "normal"
	LevelSilent        Level = "silent"
	LevelVibrate       Level = "vibrate"
	LevelTimeSensitive Level = "timeSensitive"
)

// ParseLevel validates a notification level string. The empty string
// maps to LevelNormal.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case "":
		return LevelNormal, nil
	case LevelNormal, LevelSilent, LevelVibrate, LevelTimeSensitive:
		return Level(s), nil
	default:
		return "", fmt.Errorf("invalid notification level %q", s)
	}
}

// Policy is the resolved notification policy for a device, derived by
// joining its MAC against the registry snapshot.
type Policy struct {
	MAC         MAC
	DisplayName string
	Level       Level
	Ignored     bool
}

// EventKind distinguishes the two presence transitions.
type EventKind string

const (
	EventArrived  EventKind = "arrived"
	EventDeparted EventKind = "departed"
)

// Event is a single presence transition, produced exactly once per
// genuine state change and consumed once by the notifier.
type Event struct {
	ID         uuid.UUID
	MAC        MAC
	Kind       EventKind
	OccurredAt time.Time
	Policy     Policy
	// Hostname is a best-effort reverse-DNS hint, set only for
	// devices without a configured display name.
	Hostname string
}

// NewEvent constructs a transition event with a fresh identifier and a
// snapshot of the device's policy at the time of the transition.
func NewEvent(mac MAC, kind EventKind, at time.Time, policy Policy) Event {
	return Event{
		ID:         uuid.New(),
		MAC:        mac,
		Kind:       kind,
		OccurredAt: at,
		Policy:     policy,
	}
}
