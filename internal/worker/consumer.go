package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dispatchd/notification-dispatcher/internal/domain"
)

// Handle is the send-only reference the consumer holds to a worker
// actor: it accepts a job and returns without awaiting processing.
type Handle interface {
	Accept(job *domain.Job)
}

// Consumer is the single long-running task that polls the main queue
// and demultiplexes jobs by channel to worker actors. It never exits
// while the service is running: pop errors are logged and the loop
// resumes after a backoff.
type Consumer struct {
	queue         domain.Queue
	notifications domain.NotificationRepository
	workers       map[domain.Channel]Handle
	queueKey      string
	idleBackoff   time.Duration
	logger        *slog.Logger

	running    atomic.Bool
	mu         sync.Mutex
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewConsumer creates a queue consumer with a routing map from channel
// to worker handle.
func NewConsumer(
	queue domain.Queue,
	notifications domain.NotificationRepository,
	workers map[domain.Channel]Handle,
	queueKey string,
	idleBackoff time.Duration,
	logger *slog.Logger,
) *Consumer {
	return &Consumer{
		queue:         queue,
		notifications: notifications,
		workers:       workers,
		queueKey:      queueKey,
		idleBackoff:   idleBackoff,
		logger:        logger,
	}
}

// Start launches the poll loop.
func (c *Consumer) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running.Load() {
		return
	}
	c.running.Store(true)

	ctx, c.cancelFunc = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.run(ctx)
}

// Stop halts the poll loop and waits for it to finish.
func (c *Consumer) Stop() {
	c.mu.Lock()
	if !c.running.Load() {
		c.mu.Unlock()
		return
	}
	c.running.Store(false)
	c.mu.Unlock()

	c.cancelFunc()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("queue consumer stopped")
	case <-time.After(30 * time.Second):
		c.logger.Warn("queue consumer stop timed out")
	}
}

// Running reports whether the consumer loop is active.
func (c *Consumer) Running() bool {
	return c.running.Load()
}

func (c *Consumer) run(ctx context.Context) {
	defer c.wg.Done()

	c.logger.Info("queue consumer started", "queue_key", c.queueKey)

	for c.running.Load() && ctx.Err() == nil {
		raw, err := c.queue.Pop(ctx, c.queueKey)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("queue pop error, restarting after backoff", "error", err)
			c.sleep(ctx)
			continue
		}

		if raw == nil {
			c.sleep(ctx)
			continue
		}

		c.dispatch(ctx, raw)
	}
}

// dispatch routes one popped value. Poisoned payloads and jobs for
// unknown channels land verbatim on the dead-letter queue; a valid job
// is handed to its worker's mailbox without awaiting delivery.
func (c *Consumer) dispatch(ctx context.Context, raw []byte) {
	var job domain.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		c.logger.Error("failed to parse job, moving to failed queue", "error", err)
		c.deadLetterRaw(ctx, raw)
		return
	}

	handle, ok := c.workers[domain.Channel(job.Channel)]
	if !ok {
		c.logger.Error("no worker found for channel, moving to failed queue",
			"channel", job.Channel,
			"notification_id", job.NotificationID,
		)
		if err := c.queue.Push(ctx, domain.FailedQueueKey(c.queueKey), raw); err != nil {
			c.logger.Error("cannot push to failed queue", "error", err)
		}
		return
	}

	handle.Accept(&job)
}

// deadLetterRaw pushes the unparseable bytes verbatim to the failed
// queue and tries to mark the row failed using any notification_id
// recoverable from the raw JSON.
func (c *Consumer) deadLetterRaw(ctx context.Context, raw []byte) {
	if err := c.queue.Push(ctx, domain.FailedQueueKey(c.queueKey), raw); err != nil {
		c.logger.Error("cannot push to failed queue", "error", err)
	}

	id := recoverNotificationID(raw)
	if id == "" {
		c.logger.Error("notification id not recoverable from poisoned payload")
		return
	}

	rows, err := c.notifications.UpdateStatus(ctx, id, domain.StatusFailed)
	if err != nil {
		c.logger.Error("status update error", "notification_id", id, "error", err)
		return
	}
	c.logger.Info("poisoned job marked failed", "notification_id", id, "rows_affected", rows)
}

func (c *Consumer) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(c.idleBackoff):
	}
}

func recoverNotificationID(raw []byte) string {
	var partial map[string]any
	if err := json.Unmarshal(raw, &partial); err != nil {
		return ""
	}
	if id, ok := partial["notification_id"].(string); ok {
		return id
	}
	return ""
}
