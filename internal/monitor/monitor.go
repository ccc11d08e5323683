// Package monitor runs the presence monitoring loop. Each cycle sweeps
// the network, reconciles the result against the presence tracker,
// classifies the transitions through the device registry, and hands
// notifications to the dispatcher. Cycles are strictly serialized: the
// next sweep starts only after the previous one finished, and a sweep
// still running when its successor is due causes the successor to be
// skipped rather than overlapped.
package monitor

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"lanwatch/internal/config"
	"lanwatch/internal/device"
	"lanwatch/internal/logging"
	"lanwatch/internal/metrics"
	"lanwatch/internal/notify"
	"lanwatch/internal/presence"
	"lanwatch/internal/registry"
	"lanwatch/internal/resolve"
	"lanwatch/internal/store"
)

// Sweeper produces one observation set per call. Satisfied by
// scan.Chain.
type Sweeper interface {
	Scan(ctx context.Context) (device.ObservationSet, string, error)
}

// Queue accepts notifications without blocking. Satisfied by
// notify.Dispatcher.
type Queue interface {
	Enqueue(n notify.Notification) bool
}

// DeviceStatus is one device's state as exposed to the status API.
type DeviceStatus struct {
	MAC       string    `json:"mac"`
	Name      string    `json:"name"`
	IP        string    `json:"ip,omitempty"`
	Present   bool      `json:"present"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// Snapshot is the monitor's externally visible state, replaced
// atomically after every cycle.
type Snapshot struct {
	UpdatedAt time.Time      `json:"updated_at"`
	Cycle     uint64         `json:"cycle"`
	Strategy  string         `json:"strategy"`
	Online    int            `json:"online"`
	Devices   []DeviceStatus `json:"devices"`
}

// Monitor owns the scan cycle. All mutable state is confined to the
// goroutine calling Cycle; concurrent readers get the published
// Snapshot.
type Monitor struct {
	cfg      *config.Config
	sweeper  Sweeper
	registry *registry.Registry
	tracker  *presence.Tracker
	queue    Queue
	store    *store.Store
	resolver resolve.Resolver
	metrics  *metrics.Metrics
	log      *logging.Logger
	clock    func() time.Time

	cycles  uint64
	lastIPs map[device.MAC]net.IP

	snap    atomic.Pointer[Snapshot]
	running atomic.Bool
}

// Options bundles the monitor's collaborators. Store may be nil when
// persistence is disabled; Resolver and Metrics default when nil.
type Options struct {
	Config   *config.Config
	Sweeper  Sweeper
	Registry *registry.Registry
	Queue    Queue
	Store    *store.Store
	Resolver resolve.Resolver
	Metrics  *metrics.Metrics
	Logger   *logging.Logger
}

// New assembles a monitor.
func New(opts Options) *Monitor {
	log := opts.Logger
	if log == nil {
		log = logging.Default()
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = resolve.Nop()
	}
	m := &Monitor{
		cfg:      opts.Config,
		sweeper:  opts.Sweeper,
		registry: opts.Registry,
		tracker: presence.NewTracker(presence.Config{
			MissThreshold: opts.Config.Monitor.MissThreshold,
			Retention:     opts.Config.Monitor.Retention,
		}),
		queue:    opts.Queue,
		store:    opts.Store,
		resolver: resolver,
		metrics:  opts.Metrics,
		log:      log.WithComponent("monitor"),
		clock:    time.Now,
		lastIPs:  make(map[device.MAC]net.IP),
	}
	m.snap.Store(&Snapshot{})
	return m
}

// Status returns the last published snapshot. Safe for concurrent use.
func (m *Monitor) Status() *Snapshot {
	return m.snap.Load()
}

// Cycle runs one sweep-and-reconcile pass. A failed sweep fails the
// cycle without touching presence state: the tracker only ever sees
// complete observation sets, so a scanner outage cannot masquerade as
// an empty network.
func (m *Monitor) Cycle(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		m.log.Warn("previous cycle still running, skipping")
		return nil
	}
	defer m.running.Store(false)

	start := m.clock()
	set, strategy, err := m.sweeper.Scan(ctx)
	if err != nil {
		if m.metrics != nil {
			m.metrics.RecordCycle("failed", time.Since(start).Seconds())
		}
		m.log.ErrorScan("scan cycle failed", strategy, err)
		return err
	}
	if m.metrics != nil {
		m.metrics.RecordScan(strategy, time.Since(start).Seconds())
	}

	m.dropIgnored(set)
	for mac, obs := range set {
		if obs.IP != nil {
			m.lastIPs[mac] = obs.IP
		}
	}

	first := m.cycles == 0
	now := m.clock()
	transitions := m.tracker.Reconcile(set, now)
	events := m.buildEvents(ctx, set, transitions)

	for _, ev := range events {
		m.log.Info("presence transition",
			"mac", string(ev.MAC),
			"kind", string(ev.Kind),
			"name", ev.Policy.DisplayName)
		if m.metrics != nil {
			m.metrics.RecordEvent(string(ev.Kind))
		}
		m.persistEvent(ctx, ev)
		// The first cycle establishes the baseline; the devices it
		// finds did not "just join".
		if !first {
			m.notifyEvent(ev)
		}
	}

	m.persistDevices(ctx)
	m.cycles++
	m.publish(now, strategy)

	if m.metrics != nil {
		snap := m.snap.Load()
		m.metrics.SetDevices(snap.Online, len(snap.Devices))
		m.metrics.RecordCycle("success", time.Since(start).Seconds())
	}
	m.log.InfoCycle("cycle complete", fmt.Sprintf("%d", m.cycles),
		"strategy", strategy,
		"observed", len(set),
		"transitions", len(transitions),
		"duration", time.Since(start))
	return nil
}

// dropIgnored filters ignored devices out of the observation set
// before the tracker sees it, so they never accumulate state or emit
// transitions.
func (m *Monitor) dropIgnored(set device.ObservationSet) {
	for mac := range set {
		if m.registry.Ignored(mac) {
			delete(set, mac)
		}
	}
}

func (m *Monitor) buildEvents(ctx context.Context, set device.ObservationSet, transitions []presence.Transition) []device.Event {
	events := make([]device.Event, 0, len(transitions))
	for _, tr := range transitions {
		policy := m.registry.Classify(tr.MAC)
		ev := device.NewEvent(tr.MAC, tr.Kind, tr.At, policy)
		if tr.Kind == device.EventArrived && !m.registry.Named(tr.MAC) && m.cfg.Monitor.ResolveHostnames {
			if obs, ok := set[tr.MAC]; ok {
				ev.Hostname = m.resolver.Reverse(ctx, obs.IP)
			}
		}
		events = append(events, ev)
	}
	return events
}

func (m *Monitor) notifyEvent(ev device.Event) {
	if m.queue == nil {
		return
	}
	ok := m.queue.Enqueue(notify.FromEvent(ev))
	if m.metrics != nil {
		if ok {
			m.metrics.RecordNotification("queued")
		} else {
			m.metrics.RecordNotification("dropped")
		}
	}
}

func (m *Monitor) persistEvent(ctx context.Context, ev device.Event) {
	if m.store == nil {
		return
	}
	if err := m.store.RecordEvent(ctx, ev); err != nil {
		m.log.Error("persisting event failed", "mac", string(ev.MAC), "error", err)
	}
}

func (m *Monitor) persistDevices(ctx context.Context) {
	if m.store == nil {
		return
	}
	for _, rec := range m.tracker.Snapshot() {
		if err := m.store.UpsertDevice(ctx, rec); err != nil {
			m.log.Error("persisting device failed", "mac", string(rec.MAC), "error", err)
			return
		}
	}
	if m.cfg.Monitor.Retention > 0 {
		cutoff := m.clock().Add(-m.cfg.Monitor.Retention)
		if _, err := m.store.PruneEvents(ctx, cutoff); err != nil {
			m.log.Error("pruning events failed", "error", err)
		}
	}
}

func (m *Monitor) publish(now time.Time, strategy string) {
	records := m.tracker.Snapshot()
	devices := make([]DeviceStatus, 0, len(records))
	online := 0
	for _, rec := range records {
		if rec.Present {
			online++
		}
		policy := m.registry.Classify(rec.MAC)
		status := DeviceStatus{
			MAC:       string(rec.MAC),
			Name:      policy.DisplayName,
			Present:   rec.Present,
			FirstSeen: rec.FirstSeen,
			LastSeen:  rec.LastSeen,
		}
		if ip, ok := m.lastIPs[rec.MAC]; ok {
			status.IP = ip.String()
		}
		devices = append(devices, status)
	}
	m.snap.Store(&Snapshot{
		UpdatedAt: now,
		Cycle:     m.cycles,
		Strategy:  strategy,
		Online:    online,
		Devices:   devices,
	})
}

// InitialReport enqueues one summary notification listing the devices
// found by the baseline cycle.
func (m *Monitor) InitialReport() {
	if m.queue == nil {
		return
	}
	online := m.tracker.Online()
	names := make([]string, 0, len(online))
	for _, rec := range online {
		names = append(names, m.registry.Classify(rec.MAC).DisplayName)
	}
	sort.Strings(names)

	body := "No devices online"
	if len(names) > 0 {
		body = fmt.Sprintf("%d online: %s", len(names), strings.Join(names, ", "))
	}
	m.queue.Enqueue(notify.Notification{
		Title: "Presence monitor started",
		Body:  body,
		Level: device.LevelVibrate,
	})
}

// Reload swaps the device registry from fresh configuration. Presence
// records for newly ignored devices are forgotten so they exit
// silently instead of emitting a final departure.
func (m *Monitor) Reload(devices config.DevicesConfig) error {
	if err := m.registry.Reload(devices); err != nil {
		return err
	}
	for _, rec := range m.tracker.Snapshot() {
		if m.registry.Ignored(rec.MAC) {
			m.tracker.Forget(rec.MAC)
		}
	}
	m.log.Info("device registry reloaded",
		"mapped", m.registry.Size(),
		"ignored", m.registry.IgnoredCount())
	return nil
}

// RunOnce performs a single cycle, used by the --once flag.
func (m *Monitor) RunOnce(ctx context.Context, initialReport bool) error {
	if err := m.Cycle(ctx); err != nil {
		return err
	}
	if initialReport {
		m.InitialReport()
	}
	return nil
}

// Run executes cycles until the context is canceled. With a cron
// schedule configured the cycle fires on the schedule; otherwise a
// fixed-interval ticker drives it. The first cycle always runs
// immediately so the baseline exists before the first tick.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.Cycle(ctx); err != nil {
		m.log.Error("baseline cycle failed", "error", err)
	} else if m.cfg.Monitor.InitialReport {
		m.InitialReport()
	}

	if m.cfg.Monitor.Schedule != "" {
		return m.runCron(ctx)
	}
	return m.runTicker(ctx)
}

func (m *Monitor) runTicker(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.Monitor.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := m.Cycle(ctx); err != nil {
				m.log.Error("cycle failed", "error", err)
			}
		}
	}
}

func (m *Monitor) runCron(ctx context.Context) error {
	scheduler := cron.New()
	_, err := scheduler.AddFunc(m.cfg.Monitor.Schedule, func() {
		if err := m.Cycle(ctx); err != nil {
			m.log.Error("scheduled cycle failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", m.cfg.Monitor.Schedule, err)
	}

	scheduler.Start()
	<-ctx.Done()

	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(m.cfg.Monitor.ShutdownTimeout):
		m.log.Warn("shutdown timeout waiting for running cycle")
	}
	return ctx.Err()
}
