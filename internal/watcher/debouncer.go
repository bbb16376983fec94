package watcher

import (
	"sort"
	"sync"
	"time"
)

// Debouncer collects events per path and hands them over once no new event
// arrived for window, or as soon as maxBatch paths are pending.
type Debouncer struct {
	window   time.Duration
	maxBatch int
	onFlush  func([]FileEvent)

	mu      sync.Mutex
	pending map[string]FileEvent
	quiet   *time.Timer
	// gen is bumped on every Add so a timer that fired late sees it lost
	gen     uint64
	stopped bool
}

func NewDebouncer(window time.Duration, maxBatch int, onFlush func([]FileEvent)) *Debouncer {
	if maxBatch <= 0 {
		maxBatch = DefaultConfig().MaxBatch
	}
	return &Debouncer{
		window:   window,
		maxBatch: maxBatch,
		onFlush:  onFlush,
		pending:  make(map[string]FileEvent),
	}
}

func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}

	if prev, ok := d.pending[event.Path]; ok {
		event = merge(prev, event)
	}
	d.pending[event.Path] = event
	d.gen++

	var batch []FileEvent
	if len(d.pending) >= d.maxBatch {
		batch = d.drain()
	} else {
		d.arm(d.gen)
	}
	d.mu.Unlock()

	d.deliver(batch)
}

// arm restarts the quiet period. Called with mu held.
func (d *Debouncer) arm(gen uint64) {
	if d.quiet != nil {
		d.quiet.Stop()
	}
	d.quiet = time.AfterFunc(d.window, func() { d.expire(gen) })
}

func (d *Debouncer) expire(gen uint64) {
	d.mu.Lock()
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	batch := d.drain()
	d.mu.Unlock()

	d.deliver(batch)
}

// drain empties the pending set in path order and disarms the timer.
// Called with mu held.
func (d *Debouncer) drain() []FileEvent {
	if d.quiet != nil {
		d.quiet.Stop()
		d.quiet = nil
	}
	if len(d.pending) == 0 {
		return nil
	}

	batch := make([]FileEvent, 0, len(d.pending))
	for _, ev := range d.pending {
		batch = append(batch, ev)
	}
	clear(d.pending)
	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
	return batch
}

func (d *Debouncer) deliver(batch []FileEvent) {
	if len(batch) > 0 && d.onFlush != nil {
		d.onFlush(batch)
	}
}

// Pending reports how many paths wait for the next flush.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop flushes whatever is pending and ignores later events.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	batch := d.drain()
	d.mu.Unlock()

	d.deliver(batch)
}
