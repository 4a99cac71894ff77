package touch

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrHardwareFault marks an unrecoverable touch or display failure.
var ErrHardwareFault = errors.New("hardware fault")

// Source is the touch controller. Poll must not block: it returns false when
// no sample is waiting. An error wrapping ErrHardwareFault is fatal.
type Source interface {
	Poll() (Sample, bool, error)
}

// Queue is a Source fed from other goroutines, such as an interrupt handler
// or the simulator's HTTP endpoint.
type Queue struct {
	ch    chan Sample
	clock clockwork.Clock

	// push serializes writers so a tap's contact and release stay adjacent.
	push sync.Mutex

	mu    sync.Mutex
	fault error
}

// NewQueue creates a queue holding up to size pending samples.
func NewQueue(size int, clock clockwork.Clock) *Queue {
	if size <= 0 {
		size = 16
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Queue{
		ch:    make(chan Sample, size),
		clock: clock,
	}
}

// Push enqueues a sample without blocking. A zero At is stamped with the
// current time. It returns false when the queue is full.
func (q *Queue) Push(s Sample) bool {
	q.push.Lock()
	defer q.push.Unlock()
	return q.enqueue(s)
}

func (q *Queue) enqueue(s Sample) bool {
	if s.At.IsZero() {
		s.At = q.clock.Now()
	}
	select {
	case q.ch <- s:
		return true
	default:
		return false
	}
}

// Tap enqueues a contact at raw (x, y) and its release hold later. Both
// samples are queued back to back or neither is.
func (q *Queue) Tap(x, y float64, hold time.Duration) bool {
	q.push.Lock()
	defer q.push.Unlock()

	// Poll only removes samples, so room checked here is still there below.
	if len(q.ch)+2 > cap(q.ch) {
		return false
	}
	now := q.clock.Now()
	return q.enqueue(Sample{X: x, Y: y, Pressure: 1, Contact: true, At: now}) &&
		q.enqueue(Sample{X: x, Y: y, Contact: false, At: now.Add(hold)})
}

// Fail makes every later Poll report a hardware fault.
func (q *Queue) Fail(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.fault == nil {
		q.fault = fmt.Errorf("%w: %v", ErrHardwareFault, err)
	}
}

// Poll returns the next pending sample, if any.
func (q *Queue) Poll() (Sample, bool, error) {
	q.mu.Lock()
	fault := q.fault
	q.mu.Unlock()
	if fault != nil {
		return Sample{}, false, fault
	}

	select {
	case s := <-q.ch:
		return s, true, nil
	default:
		return Sample{}, false, nil
	}
}

// Pending returns the number of queued samples.
func (q *Queue) Pending() int {
	return len(q.ch)
}
