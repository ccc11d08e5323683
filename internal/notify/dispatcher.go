package notify

import (
	"context"
	"sync"
	"time"

	"lanwatch/internal/logging"
)

// DefaultQueueSize bounds the dispatcher queue when configuration does
// not say otherwise.
const DefaultQueueSize = 64

const sendTimeout = 30 * time.Second

// Dispatcher decouples notification delivery from the scan loop. A
// single worker goroutine drains a bounded queue; Enqueue never
// blocks, dropping the notification with a warning when the queue is
// full.
type Dispatcher struct {
	notifier Notifier
	queue    chan Notification
	log      *logging.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once

	mu      sync.Mutex
	dropped uint64
	sent    uint64
	failed  uint64
}

// NewDispatcher creates a dispatcher over the given notifier. Call
// Start before enqueueing and Close to drain on shutdown.
func NewDispatcher(notifier Notifier, queueSize int, log *logging.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if log == nil {
		log = logging.Default()
	}
	return &Dispatcher{
		notifier: notifier,
		queue:    make(chan Notification, queueSize),
		log:      log.WithComponent("notify"),
	}
}

// Start launches the delivery worker.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.run()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for n := range d.queue {
		d.deliver(n)
	}
}

func (d *Dispatcher) deliver(n Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := d.notifier.Send(ctx, n); err != nil {
		d.log.ErrorNotify("notification delivery failed", err,
			"title", n.Title,
			"mac", string(n.MAC))
		d.count(&d.failed)
		return
	}
	d.log.InfoNotify("notification delivered",
		"title", n.Title,
		"mac", string(n.MAC))
	d.count(&d.sent)
}

// Enqueue queues a notification without blocking. Returns false when
// the queue was full and the notification dropped.
func (d *Dispatcher) Enqueue(n Notification) bool {
	select {
	case d.queue <- n:
		return true
	default:
		d.log.Warn("notification queue full, dropping",
			"title", n.Title,
			"mac", string(n.MAC))
		d.count(&d.dropped)
		return false
	}
}

// Close stops accepting notifications and waits for the queued ones to
// be delivered.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.queue)
	})
	d.wg.Wait()
}

func (d *Dispatcher) count(counter *uint64) {
	d.mu.Lock()
	*counter++
	d.mu.Unlock()
}

// Stats reports delivery counters since startup.
func (d *Dispatcher) Stats() (sent, failed, dropped uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sent, d.failed, d.dropped
}
