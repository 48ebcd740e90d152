package middleware

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue/v2"
	"github.com/humbleclay/humbleclay/errors"
	"github.com/humbleclay/humbleclay/server/metrics"
)

// QueueMiddleware bounds the number of requests admitted to the batch
// endpoints. Incoming requests join a FIFO queue; when the queue is at
// capacity, new requests are rejected immediately rather than piling up
// behind long-running batch runs.
//
// Request lifecycle:
//  1. A completion channel is enqueued for the request.
//  2. The request is processed by the next handler.
//  3. On completion the channel is closed and the entry dequeued,
//     even if the handler panics.
type QueueMiddleware struct {
	queue      *queue.Queue[chan struct{}] // FIFO queue of request completion channels
	maxSize    atomic.Int64                // Maximum queue size, updated atomically
	mu         sync.RWMutex                // Protects queue operations
	processing int32                       // Count of requests being processed
	metrics    *metrics.Metrics            // Prometheus metrics for monitoring
	done       chan struct{}               // Signals shutdown
}

// QueueOptions defines the operational parameters for the queue middleware.
type QueueOptions struct {
	MaxSize int64            // Maximum number of queued requests
	Metrics *metrics.Metrics // Metrics collector for monitoring
}

// NewQueueMiddleware initializes a new queue middleware with the given
// options. The queue begins accepting requests immediately.
func NewQueueMiddleware(opts QueueOptions) *QueueMiddleware {
	qm := &QueueMiddleware{
		queue:   queue.New[chan struct{}](),
		metrics: opts.Metrics,
		done:    make(chan struct{}),
	}
	qm.maxSize.Store(opts.MaxSize)
	return qm
}

// SetMaxSize updates the maximum number of requests allowed in the
// queue. Takes effect immediately for new requests.
func (qm *QueueMiddleware) SetMaxSize(size int64) {
	qm.maxSize.Store(size)
}

// GetQueueSize returns the current queue length.
func (qm *QueueMiddleware) GetQueueSize() int {
	qm.mu.RLock()
	defer qm.mu.RUnlock()
	return qm.queue.Length()
}

// GetMaxSize returns the current maximum queue size.
func (qm *QueueMiddleware) GetMaxSize() int64 {
	return qm.maxSize.Load()
}

// GetProcessing returns the number of requests currently being processed.
func (qm *QueueMiddleware) GetProcessing() int32 {
	return atomic.LoadInt32(&qm.processing)
}

// Shutdown waits for queued requests to drain, bounded by the context.
func (qm *QueueMiddleware) Shutdown(ctx context.Context) error {
	select {
	case <-qm.done:
		// Already shut down
	default:
		close(qm.done)
	}

	for {
		qm.mu.RLock()
		drained := qm.queue.Length() == 0 && atomic.LoadInt32(&qm.processing) == 0
		qm.mu.RUnlock()
		if drained {
			return nil
		}
		select {
		case <-ctx.Done():
			if qm.metrics != nil {
				qm.metrics.ErrorsTotal.WithLabelValues("queue_shutdown_timeout").Inc()
			}
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// Handler manages the request lifecycle through the queue.
func (qm *QueueMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-qm.done:
			errors.ErrorWithType(w, "Server is shutting down", errors.InternalError, http.StatusServiceUnavailable)
			return
		default:
		}

		qm.mu.Lock()
		if int64(qm.queue.Length()) >= qm.maxSize.Load() {
			qm.mu.Unlock()
			if qm.metrics != nil {
				qm.metrics.ErrorsTotal.WithLabelValues("queue_full").Inc()
			}
			errors.ErrorWithType(w, "Request queue is full", errors.RateLimitError, http.StatusTooManyRequests)
			return
		}

		completion := make(chan struct{})
		qm.queue.Add(completion)
		if qm.metrics != nil {
			qm.metrics.ActiveRequests.WithLabelValues("queued").Set(float64(qm.queue.Length()))
		}
		qm.mu.Unlock()

		atomic.AddInt32(&qm.processing, 1)
		defer func() {
			atomic.AddInt32(&qm.processing, -1)

			qm.mu.Lock()
			// Remove this request's entry; completion channels are
			// processed FIFO, so the head is always the oldest request
			// still in flight.
			if qm.queue.Length() > 0 {
				qm.queue.Remove()
			}
			if qm.metrics != nil {
				qm.metrics.ActiveRequests.WithLabelValues("queued").Set(float64(qm.queue.Length()))
			}
			qm.mu.Unlock()

			close(completion)
		}()

		next.ServeHTTP(w, r)
	})
}
