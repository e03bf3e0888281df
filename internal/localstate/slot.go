// Package localstate provides durable named-slot state: an in-memory
// authoritative value mirrored asynchronously to a key-value store.
//
// A Slot loads its value once at Open time, falling back to (and
// persisting) a default when nothing usable is stored. After that the
// in-memory value is the source of truth: Set and Update apply
// synchronously and in strict call order, while durable writes happen on a
// background queue. A failed durable write never rolls the value back; it
// is reported on the Failures channel instead.
package localstate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/coinwatch/coinwatch/internal/common"
	"github.com/coinwatch/coinwatch/internal/interfaces"
)

// writeQueueSize bounds the pending durable-write queue. Mutations beyond
// this while the store is unreachable will block until a write completes.
const writeQueueSize = 256

// PersistenceWriteError reports a failed durable mirror write. The
// in-memory value it was mirroring remains authoritative.
type PersistenceWriteError struct {
	Key string
	Err error
}

func (e *PersistenceWriteError) Error() string {
	return fmt.Sprintf("durable write for slot '%s' failed: %v", e.Key, e.Err)
}

func (e *PersistenceWriteError) Unwrap() error {
	return e.Err
}

// Slot is a durable single-value container for T.
type Slot[T any] struct {
	key    string
	kv     interfaces.KeyValueStore
	logger *common.Logger

	mu     sync.Mutex
	value  T
	closed bool

	pending  chan string
	failures chan error
	done     chan struct{}
}

// Open reads the previously persisted value for key, falling back to def
// when nothing is stored or the stored value fails to parse. The fallback
// is persisted immediately so later opens see a consistent value. The
// initial read is the only blocking I/O a Slot ever does on the caller's
// goroutine.
func Open[T any](ctx context.Context, kv interfaces.KeyValueStore, key string, def T, logger *common.Logger) (*Slot[T], error) {
	s := &Slot[T]{
		key:      key,
		kv:       kv,
		logger:   logger,
		value:    def,
		pending:  make(chan string, writeQueueSize),
		failures: make(chan error, 16),
		done:     make(chan struct{}),
	}

	raw, err := kv.Get(ctx, key)
	if err != nil {
		logger.Debug().Str("key", key).Msg("No stored value, seeding default")
		s.seedDefault(ctx, def)
	} else if err := json.Unmarshal([]byte(raw), &s.value); err != nil {
		// Corrupt stored value is absorbed: fall back and overwrite.
		logger.Warn().Err(err).Str("key", key).Msg("Stored value unreadable, seeding default")
		s.value = def
		s.seedDefault(ctx, def)
	}

	go s.writeLoop()

	return s, nil
}

// seedDefault persists the fallback synchronously so the next Open for
// this key finds it.
func (s *Slot[T]) seedDefault(ctx context.Context, def T) {
	data, err := json.Marshal(def)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", s.key).Msg("Cannot marshal default value")
		return
	}
	if err := s.kv.Set(ctx, s.key, string(data)); err != nil {
		s.logger.Warn().Err(err).Str("key", s.key).Msg("Failed to persist default value")
	}
}

// Get returns the current value. Callers must treat reference-typed values
// as read-only; mutations go through Set or Update.
func (s *Slot[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set replaces the value and queues a durable write.
func (s *Slot[T]) Set(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
	s.enqueueLocked()
}

// Update applies fn to the current value and stores the result. Each call
// sees the result of the immediately preceding mutation, never a stale
// snapshot, so rapid read-modify-write sequences lose no updates. fn must
// be pure. Returns the new value.
func (s *Slot[T]) Update(fn func(T) T) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = fn(s.value)
	s.enqueueLocked()
	return s.value
}

// enqueueLocked serializes the current value and hands it to the write
// loop. Called with mu held so queue order matches mutation order.
func (s *Slot[T]) enqueueLocked() {
	if s.closed {
		return
	}
	data, err := json.Marshal(s.value)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", s.key).Msg("Cannot serialize slot value, skipping mirror")
		return
	}
	s.pending <- string(data)
}

// Failures is the side channel for durable-write errors. Values are
// *PersistenceWriteError. The channel is buffered and drops on overflow;
// consumers that care should drain it.
func (s *Slot[T]) Failures() <-chan error {
	return s.failures
}

// Close drains outstanding writes and stops the write loop. The slot must
// not be used afterwards.
func (s *Slot[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.pending)
	<-s.done
}

func (s *Slot[T]) writeLoop() {
	defer close(s.done)
	defer close(s.failures)
	for data := range s.pending {
		if err := s.kv.Set(context.Background(), s.key, data); err != nil {
			werr := &PersistenceWriteError{Key: s.key, Err: err}
			s.logger.Warn().Err(err).Str("key", s.key).Msg("Durable write failed, in-memory value stays authoritative")
			select {
			case s.failures <- werr:
			default:
			}
		}
	}
}
