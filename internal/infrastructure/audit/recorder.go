package audit

import (
	"context"
	"sync"
	"time"

	"veille-rag-api/pkg/logger"
	"veille-rag-api/pkg/metrics"
)

// Publisher 审计事件发布端
type Publisher interface {
	Publish(ctx context.Context, event Event) (string, error)
}

// Recorder 异步审计记录器。
// Record 非阻塞：队列满时丢弃事件并计数，
// 问答主链路永远不因审计降速或失败。
type Recorder struct {
	producer Publisher
	queue    chan Event

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewRecorder 创建审计记录器并启动后台发送协程
func NewRecorder(producer Publisher, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = 1024
	}
	r := &Recorder{
		producer: producer,
		queue:    make(chan Event, queueSize),
		done:     make(chan struct{}),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Record 提交审计事件，队列满时丢弃
func (r *Recorder) Record(event Event) {
	select {
	case r.queue <- event:
	default:
		metrics.AuditDroppedTotal.Inc()
		logger.Warn(context.Background(), "audit queue full, event dropped",
			"event_id", event.ID,
		)
	}
}

// Close 停止接收并冲刷剩余事件
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
	})
}

func (r *Recorder) run() {
	defer r.wg.Done()

	for {
		select {
		case event := <-r.queue:
			r.publish(event)
		case <-r.done:
			// 冲刷队列中剩余事件
			for {
				select {
				case event := <-r.queue:
					r.publish(event)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) publish(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := r.producer.Publish(ctx, event); err != nil {
		metrics.AuditPublishedTotal.WithLabelValues("error").Inc()
		logger.Warn(ctx, "failed to publish audit event",
			"event_id", event.ID,
			"error", err,
		)
		return
	}
	metrics.AuditPublishedTotal.WithLabelValues("success").Inc()
}
