// Package progress carries progress messages and a cooperative stop signal
// between a launch pipeline and whatever observes it.
package progress

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// StopMessage is emitted when a producer observes the stop signal.
const StopMessage = "Stop signal received"

// DefaultCapacity is the queue size used when NewBus is given a non-positive capacity.
const DefaultCapacity = 256

// Kind tags a Message.
type Kind int

const (
	Downloading Kind = iota
	Info
	Errored
)

func (k Kind) String() string {
	switch k {
	case Downloading:
		return "downloading"
	case Info:
		return "info"
	case Errored:
		return "error"
	default:
		return "unknown"
	}
}

// Message is a single progress notification.
type Message struct {
	Kind Kind
	Text string
}

// Bus is a multi-producer, single-consumer progress queue with a latched
// cancel signal and a (step, total) counter pair.
//
// Downloading messages are lossy: once the queue is full the oldest queued
// Downloading message is dropped. Info and Errored messages are never dropped.
type Bus struct {
	mu       sync.Mutex
	queue    []Message
	capacity int
	dropped  uint64
	closed   bool

	notify chan struct{}

	stop     chan struct{}
	stopOnce sync.Once
	stopSeen atomic.Bool

	step  atomic.Uint64
	total atomic.Uint64
}

// NewBus creates a bus whose lossy queue holds up to capacity messages.
func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{
		capacity: capacity,
		notify:   make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
}

// Downloading reports a unit of download work.
func (b *Bus) Downloading(text string) { b.send(Message{Kind: Downloading, Text: text}) }

// Info reports a phase transition or result.
func (b *Bus) Info(text string) { b.send(Message{Kind: Info, Text: text}) }

// Errored reports a failure.
func (b *Bus) Errored(text string) { b.send(Message{Kind: Errored, Text: text}) }

func (b *Bus) send(m Message) {
	if b == nil {
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if len(b.queue) >= b.capacity && !b.makeRoom(m) {
		b.dropped++
		b.mu.Unlock()
		return
	}
	b.queue = append(b.queue, m)
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// makeRoom evicts the oldest Downloading message. It reports false when m
// itself should be dropped instead. Must hold b.mu.
func (b *Bus) makeRoom(m Message) bool {
	for i, q := range b.queue {
		if q.Kind == Downloading {
			b.queue = append(b.queue[:i], b.queue[i+1:]...)
			b.dropped++
			return true
		}
	}
	// Queue is full of undroppable messages; grow for those, drop progress.
	return m.Kind != Downloading
}

// Drain returns every queued message in FIFO order and empties the queue.
func (b *Bus) Drain() []Message {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return nil
	}
	out := b.queue
	b.queue = nil
	return out
}

// Dropped returns how many Downloading messages were discarded.
func (b *Bus) Dropped() uint64 {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Notify is signalled after a message is queued. It never carries data and
// may coalesce several sends. A nil bus never notifies.
func (b *Bus) Notify() <-chan struct{} {
	if b == nil {
		return nil
	}
	return b.notify
}

// Close stops accepting messages once the consumer is gone. Queued
// messages remain drainable.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Cancel latches the stop signal. Safe to call more than once.
func (b *Bus) Cancel() {
	if b == nil {
		return
	}
	b.stopOnce.Do(func() {
		slog.Debug("stop signal raised")
		close(b.stop)
	})
}

// Cancelled polls the stop signal without blocking.
func (b *Bus) Cancelled() bool {
	if b == nil {
		return false
	}
	select {
	case <-b.stop:
		return true
	default:
		return false
	}
}

// Done is closed once Cancel is called. A nil bus is never done.
func (b *Bus) Done() <-chan struct{} {
	if b == nil {
		return nil
	}
	return b.stop
}

// CheckStop is the producer checkpoint. When the stop signal is set it emits
// Errored(StopMessage) once per bus and returns true.
func (b *Bus) CheckStop() bool {
	if !b.Cancelled() {
		return false
	}
	if b.stopSeen.CompareAndSwap(false, true) {
		b.Errored(StopMessage)
	}
	return true
}

// SetTotal starts a phase of n units and resets step to zero.
func (b *Bus) SetTotal(n uint64) {
	if b == nil {
		return
	}
	b.step.Store(0)
	b.total.Store(n)
}

// Advance records one completed unit. step never exceeds total.
func (b *Bus) Advance() {
	if b == nil {
		return
	}
	for {
		cur := b.step.Load()
		if cur >= b.total.Load() {
			return
		}
		if b.step.CompareAndSwap(cur, cur+1) {
			return
		}
	}
}

// Progress returns the current (step, total) pair.
func (b *Bus) Progress() (step, total uint64) {
	if b == nil {
		return 0, 0
	}
	total = b.total.Load()
	step = b.step.Load()
	if step > total {
		step = total
	}
	return step, total
}

// Fraction is step / max(total, 1).
func (b *Bus) Fraction() float64 {
	step, total := b.Progress()
	if total == 0 {
		total = 1
	}
	return float64(step) / float64(total)
}
