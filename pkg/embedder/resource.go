package embedder

import (
	"fmt"
	"sync"

	"github.com/perbu/docqa/pkg/docqa"
)

// resource is a lazily opened, explicitly closed shared value such as a
// loaded model or an API client. open runs at most once, even when many
// goroutines call get concurrently for the first time.
type resource[T any] struct {
	mu      sync.Mutex
	open    func() (T, error)
	release func(T) error

	val    T
	loaded bool
	closed bool
	opens  int
}

func newResource[T any](open func() (T, error), release func(T) error) *resource[T] {
	return &resource[T]{open: open, release: release}
}

func (r *resource[T]) get() (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	if r.closed {
		return zero, fmt.Errorf("%w: model has been closed", docqa.ErrEmbedding)
	}
	if r.loaded {
		return r.val, nil
	}

	val, err := r.open()
	r.opens++
	if err != nil {
		return zero, fmt.Errorf("%w: loading model: %v", docqa.ErrEmbedding, err)
	}
	r.val = val
	r.loaded = true
	return val, nil
}

func (r *resource[T]) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	if !r.loaded {
		return nil
	}

	var err error
	if r.release != nil {
		err = r.release(r.val)
	}
	var zero T
	r.val = zero
	r.loaded = false
	return err
}

// openCount reports how many times open has run.
func (r *resource[T]) openCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opens
}
