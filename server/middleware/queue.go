package middleware

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue/v2"
	"github.com/swen128/slack-gpt/server/metrics"
)

// QueueMiddleware implements a bounded FIFO admission queue for the events
// endpoint. Each inbound event either enters the queue and is processed in
// arrival order, or is rejected with 503 when the queue is full.
//
// Slack redelivers events that were rejected, so shedding load here is
// safe: a rejected delivery is retried by the platform, not lost.
//
// Request lifecycle:
//  1. The request is appended to the queue if space is available
//  2. It waits until every earlier request has finished processing
//  3. Its resources are released when the handler returns, even on panic
type QueueMiddleware struct {
	queue      *queue.Queue[chan struct{}] // FIFO of completion channels
	maxSize    atomic.Int64
	mu         sync.Mutex
	processing int32
	metrics    *metrics.Metrics
}

// QueueConfig defines the operational parameters for the queue middleware.
type QueueConfig struct {
	MaxSize int64            // Maximum number of requests allowed to wait
	Metrics *metrics.Metrics // Prometheus metrics for monitoring
}

// NewQueueMiddleware initializes a new queue middleware with the given
// configuration. The queue begins accepting requests immediately.
func NewQueueMiddleware(cfg QueueConfig) *QueueMiddleware {
	qm := &QueueMiddleware{
		queue:   queue.New[chan struct{}](),
		metrics: cfg.Metrics,
	}
	qm.maxSize.Store(cfg.MaxSize)
	return qm
}

// SetMaxSize updates the maximum number of requests allowed in the queue.
// Takes effect immediately for new requests.
func (qm *QueueMiddleware) SetMaxSize(size int64) {
	qm.maxSize.Store(size)
}

// GetQueueSize returns the current queue length.
func (qm *QueueMiddleware) GetQueueSize() int {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	return qm.queue.Length()
}

// GetProcessing returns the number of requests currently being processed.
func (qm *QueueMiddleware) GetProcessing() int32 {
	return atomic.LoadInt32(&qm.processing)
}

// Handler manages the request lifecycle through the queue.
func (qm *QueueMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		done := make(chan struct{})

		qm.mu.Lock()
		if int64(qm.queue.Length()) >= qm.maxSize.Load() {
			qm.mu.Unlock()
			if qm.metrics != nil {
				qm.metrics.ErrorsTotal.WithLabelValues("queue_full").Inc()
			}
			http.Error(w, "Server too busy", http.StatusServiceUnavailable)
			return
		}
		qm.queue.Add(done)
		var ahead []chan struct{}
		for i := 0; i < qm.queue.Length()-1; i++ {
			ahead = append(ahead, qm.queue.Get(i))
		}
		qm.mu.Unlock()

		if qm.metrics != nil {
			qm.metrics.ActiveRequests.WithLabelValues("queued").Inc()
		}

		// Wait for every request ahead of us to complete, preserving
		// arrival order.
		for _, ch := range ahead {
			select {
			case <-ch:
			case <-r.Context().Done():
				qm.remove(done)
				close(done)
				if qm.metrics != nil {
					qm.metrics.ActiveRequests.WithLabelValues("queued").Dec()
				}
				return
			}
		}

		if qm.metrics != nil {
			qm.metrics.ActiveRequests.WithLabelValues("queued").Dec()
			qm.metrics.ActiveRequests.WithLabelValues("processing").Inc()
		}
		atomic.AddInt32(&qm.processing, 1)

		defer func() {
			atomic.AddInt32(&qm.processing, -1)
			if qm.metrics != nil {
				qm.metrics.ActiveRequests.WithLabelValues("processing").Dec()
			}
			qm.remove(done)
			close(done)
		}()

		next.ServeHTTP(w, r)
	})
}

// remove drops the given completion channel from the queue.
func (qm *QueueMiddleware) remove(target chan struct{}) {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	for i := 0; i < qm.queue.Length(); i++ {
		if qm.queue.Get(i) == target {
			// queue/v2 only pops from the front; rebuild without the target.
			length := qm.queue.Length()
			for j := 0; j < length; j++ {
				ch := qm.queue.Remove()
				if ch != target {
					qm.queue.Add(ch)
				}
			}
			return
		}
	}
}
