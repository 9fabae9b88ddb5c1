package browse

import (
	"sync"
	"time"
)

// Debouncer delivers the last triggered value once no new value has arrived
// for the configured delay.
type Debouncer[T any] struct {
	delay time.Duration
	fire  func(T)

	mu      sync.Mutex
	timer   *time.Timer
	pending uint64
	stopped bool
}

func NewDebouncer[T any](delay time.Duration, fire func(T)) *Debouncer[T] {
	return &Debouncer[T]{delay: delay, fire: fire}
}

func (debouncer *Debouncer[T]) Trigger(value T) {
	debouncer.mu.Lock()
	defer debouncer.mu.Unlock()

	if debouncer.stopped {
		return
	}
	if debouncer.timer != nil {
		debouncer.timer.Stop()
	}

	debouncer.pending++
	token := debouncer.pending
	debouncer.timer = time.AfterFunc(debouncer.delay, func() {
		debouncer.mu.Lock()
		current := token == debouncer.pending && !debouncer.stopped
		debouncer.mu.Unlock()
		if current {
			debouncer.fire(value)
		}
	})
}

// Cancel drops a pending value without stopping the debouncer.
func (debouncer *Debouncer[T]) Cancel() {
	debouncer.mu.Lock()
	defer debouncer.mu.Unlock()

	debouncer.pending++
	if debouncer.timer != nil {
		debouncer.timer.Stop()
		debouncer.timer = nil
	}
}

func (debouncer *Debouncer[T]) Stop() {
	debouncer.mu.Lock()
	defer debouncer.mu.Unlock()

	debouncer.stopped = true
	debouncer.pending++
	if debouncer.timer != nil {
		debouncer.timer.Stop()
		debouncer.timer = nil
	}
}
