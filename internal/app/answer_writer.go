package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// answerWriter serializes answer persistence for one attempt. A single
// goroutine owns every UpdateAnswers call, so writes can never be applied
// out of order; because each write carries the full answers map, pending
// snapshots coalesce to the newest one. Failed writes are logged, flagged
// as unsaved, and retried after retryDelay while newer input keeps the
// in-memory map authoritative.
type answerWriter struct {
	store      AttemptStore
	attemptID  string
	log        *zap.Logger
	retryDelay time.Duration

	mu       sync.Mutex
	cond     *sync.Cond
	latest   map[string]string
	dirty    bool
	inFlight bool
	unsaved  bool
	closed   bool
}

func newAnswerWriter(store AttemptStore, attemptID string, retryDelay time.Duration, log *zap.Logger) *answerWriter {
	w := &answerWriter{
		store:      store,
		attemptID:  attemptID,
		log:        log,
		retryDelay: retryDelay,
	}
	w.cond = sync.NewCond(&w.mu)
	go w.drain()
	return w
}

// Enqueue hands the writer a fresh snapshot of the full answers map. The
// caller keeps ownership of its own map; snapshot must not be mutated after
// the call.
func (w *answerWriter) Enqueue(snapshot map[string]string) {
	w.mu.Lock()
	if !w.closed {
		w.latest = snapshot
		w.dirty = true
		w.cond.Broadcast()
	}
	w.mu.Unlock()
}

func (w *answerWriter) drain() {
	for {
		w.mu.Lock()
		for !w.dirty && !w.closed {
			w.cond.Wait()
		}
		if w.closed {
			w.mu.Unlock()
			return
		}
		snapshot := w.latest
		w.dirty = false
		w.inFlight = true
		w.mu.Unlock()

		err := w.store.UpdateAnswers(context.Background(), w.attemptID, snapshot)

		w.mu.Lock()
		w.inFlight = false
		if err != nil {
			w.unsaved = true
			// Re-mark dirty so the snapshot is retried unless a newer one
			// already replaced it.
			if !w.dirty {
				w.latest = snapshot
				w.dirty = true
			}
			closed := w.closed
			w.cond.Broadcast()
			w.mu.Unlock()
			w.log.Warn("answer write failed, will retry",
				zap.String("attemptId", w.attemptID),
				zap.Error(err))
			if closed {
				return
			}
			time.Sleep(w.retryDelay)
			continue
		}
		w.unsaved = false
		w.cond.Broadcast()
		w.mu.Unlock()
	}
}

// Unsaved reports whether the most recent write attempt failed, for the
// non-fatal "unsaved changes" signal surfaced to the UI.
func (w *answerWriter) Unsaved() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.unsaved
}

// Flush blocks until the queue is empty and no write is in flight, or the
// writer is closed. Used by tests and by callers that need a durability
// point short of finalization.
func (w *answerWriter) Flush() {
	w.mu.Lock()
	for (w.dirty || w.inFlight) && !w.closed && !w.unsaved {
		w.cond.Wait()
	}
	w.mu.Unlock()
}

// Close stops the drain goroutine. Pending snapshots are abandoned; the
// finalizing write carries the authoritative answers map anyway.
func (w *answerWriter) Close() {
	w.mu.Lock()
	w.closed = true
	w.cond.Broadcast()
	w.mu.Unlock()
}
