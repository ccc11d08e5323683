// Package registry resolves device identity and notification policy
// from configuration. A registry holds an immutable snapshot; reloads
// build a complete new snapshot and swap it atomically so a running
// cycle never observes a half-updated view.
package registry

import (
	"sync/atomic"

	"lanwatch/internal/config"
	"lanwatch/internal/device"
	lanerrors "lanwatch/internal/errors"
)

// Registry maps MAC addresses to device policy. Safe for concurrent
// use: Classify reads the current snapshot, Reload swaps it.
type Registry struct {
	snap atomic.Pointer[snapshot]
}

// snapshot is an immutable, fully-canonicalized view of the device
// configuration.
type snapshot struct {
	names   map[device.MAC]string
	ignored map[device.MAC]struct{}
	levels  map[device.MAC]device.Level
}

// New builds a registry from the device configuration. Malformed MAC
// addresses or unknown levels are rejected.
func New(cfg config.DevicesConfig) (*Registry, error) {
	snap, err := buildSnapshot(cfg)
	if err != nil {
		return nil, err
	}

	r := &Registry{}
	r.snap.Store(snap)
	return r, nil
}

func buildSnapshot(cfg config.DevicesConfig) (*snapshot, error) {
	snap := &snapshot{
		names:   make(map[device.MAC]string, len(cfg.Mapping)),
		ignored: make(map[device.MAC]struct{}, len(cfg.Ignore)),
		levels:  make(map[device.MAC]device.Level, len(cfg.Levels)),
	}

	for raw, name := range cfg.Mapping {
		mac, err := device.ParseMAC(raw)
		if err != nil {
			return nil, lanerrors.ErrConfigInvalid("devices.mapping", raw)
		}
		snap.names[mac] = name
	}

	for _, raw := range cfg.Ignore {
		mac, err := device.ParseMAC(raw)
		if err != nil {
			return nil, lanerrors.ErrConfigInvalid("devices.ignore", raw)
		}
		snap.ignored[mac] = struct{}{}
	}

	for raw, rawLevel := range cfg.Levels {
		mac, err := device.ParseMAC(raw)
		if err != nil {
			return nil, lanerrors.ErrConfigInvalid("devices.notification_levels", raw)
		}
		level, err := device.ParseLevel(rawLevel)
		if err != nil {
			return nil, lanerrors.ErrConfigInvalid("devices.notification_levels", rawLevel)
		}
		snap.levels[mac] = level
	}

	return snap, nil
}

// Classify resolves the policy for a device. Unmapped devices get the
// MAC itself as display name and the normal notification level. With an
// unchanged snapshot the result is always identical for a given MAC.
func (r *Registry) Classify(mac device.MAC) device.Policy {
	snap := r.snap.Load()

	policy := device.Policy{
		MAC:         mac,
		DisplayName: mac.String(),
		Level:       device.LevelNormal,
	}

	if name, ok := snap.names[mac]; ok {
		policy.DisplayName = name
	}
	if level, ok := snap.levels[mac]; ok {
		policy.Level = level
	}
	if _, ok := snap.ignored[mac]; ok {
		policy.Ignored = true
	}

	return policy
}

// Ignored reports whether a device is on the ignore list.
func (r *Registry) Ignored(mac device.MAC) bool {
	_, ok := r.snap.Load().ignored[mac]
	return ok
}

// Named reports whether a device has a configured display name.
func (r *Registry) Named(mac device.MAC) bool {
	_, ok := r.snap.Load().names[mac]
	return ok
}

// Reload replaces the snapshot atomically. The old snapshot stays
// active if the new configuration is invalid.
func (r *Registry) Reload(cfg config.DevicesConfig) error {
	snap, err := buildSnapshot(cfg)
	if err != nil {
		return err
	}
	r.snap.Store(snap)
	return nil
}

// Size returns the number of mapped devices.
func (r *Registry) Size() int {
	return len(r.snap.Load().names)
}

// IgnoredCount returns the number of ignored devices.
func (r *Registry) IgnoredCount() int {
	return len(r.snap.Load().ignored)
}
