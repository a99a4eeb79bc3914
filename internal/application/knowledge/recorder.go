package knowledge

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agent-hub/agent-hub/internal/domain/knowledge"
)

const storeTimeout = 5 * time.Second

// Recorder buffers task history writes so the orchestrator never blocks on
// the knowledge store. Records are dropped, with a log line, when the buffer
// is full or the store keeps failing; task execution must not depend on it.
type Recorder struct {
	store  knowledge.Store
	queue  chan *knowledge.TaskRecord
	logger zerolog.Logger

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	dropped int
}

func NewRecorder(store knowledge.Store, queueSize int, logger zerolog.Logger) *Recorder {
	if queueSize <= 0 {
		queueSize = 256
	}
	r := &Recorder{
		store:  store,
		queue:  make(chan *knowledge.TaskRecord, queueSize),
		logger: logger.With().Str("service", "knowledge-recorder").Logger(),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go r.drain()
	return r
}

// RecordTask enqueues a task outcome without blocking. A nil store turns the
// recorder into a no-op.
func (r *Recorder) RecordTask(rec *knowledge.TaskRecord) {
	if r.store == nil || rec == nil {
		return
	}
	select {
	case r.queue <- rec:
	default:
		r.mu.Lock()
		r.dropped++
		n := r.dropped
		r.mu.Unlock()
		r.logger.Warn().
			Str("task_id", rec.TaskID).
			Int("dropped_total", n).
			Msg("knowledge queue full, record dropped")
	}
}

// Dropped returns how many records were discarded due to backpressure.
func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

func (r *Recorder) drain() {
	defer close(r.done)
	for {
		select {
		case rec := <-r.queue:
			r.persist(rec)
		case <-r.stop:
			// Flush whatever is already queued, then exit.
			for {
				select {
				case rec := <-r.queue:
					r.persist(rec)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) persist(rec *knowledge.TaskRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if _, err := r.store.StoreTaskHistory(ctx, rec); err != nil {
		r.logger.Warn().Err(err).Str("task_id", rec.TaskID).Msg("store task history failed")
	}
}

// Close stops the drain loop after flushing queued records.
func (r *Recorder) Close(ctx context.Context) error {
	r.stopOnce.Do(func() { close(r.stop) })
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
