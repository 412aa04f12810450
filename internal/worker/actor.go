package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dispatchd/notification-dispatcher/internal/domain"
)

// Sender is the channel-specific delivery capability wrapped by an
// Actor. A nil return means the send succeeded and the sender has
// already written status=sent where its protocol requires it.
type Sender interface {
	Send(ctx context.Context, job *domain.Job) error
}

// DeliveryMetrics records delivery outcomes. Implemented by
// handler.Metrics; optional.
type DeliveryMetrics interface {
	RecordSent(channel string)
	RecordFailed(channel, reason string)
	RecordRetry(channel string)
}

// Actor wraps a Sender with the retry and dead-letter policy. Each
// actor owns one goroutine draining a bounded mailbox, so there is one
// in-flight send per channel at any time. Accept returns as soon as
// the job is buffered; a full mailbox blocks the caller, which is how
// backpressure reaches the queue consumer.
type Actor struct {
	channel       domain.Channel
	sender        Sender
	notifications domain.NotificationRepository
	queue         domain.Queue
	queueKey      string
	maxRetries    int
	mailbox       chan *domain.Job
	logger        *slog.Logger
	metrics       DeliveryMetrics
	broadcast     domain.StatusBroadcast

	wg         sync.WaitGroup
	mu         sync.Mutex
	started    bool
	cancelFunc context.CancelFunc
}

// NewActor creates a channel worker actor.
func NewActor(
	channel domain.Channel,
	sender Sender,
	notifications domain.NotificationRepository,
	queue domain.Queue,
	queueKey string,
	maxRetries int,
	mailboxSize int,
	logger *slog.Logger,
) *Actor {
	return &Actor{
		channel:       channel,
		sender:        sender,
		notifications: notifications,
		queue:         queue,
		queueKey:      queueKey,
		maxRetries:    maxRetries,
		mailbox:       make(chan *domain.Job, mailboxSize),
		logger:        logger.With("channel", channel),
	}
}

// SetMetrics sets the delivery metrics recorder.
func (a *Actor) SetMetrics(m DeliveryMetrics) {
	a.metrics = m
}

// SetStatusBroadcast sets the function to broadcast status updates.
func (a *Actor) SetStatusBroadcast(fn domain.StatusBroadcast) {
	a.broadcast = fn
}

// Start launches the mailbox loop.
func (a *Actor) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return
	}
	a.started = true

	ctx, a.cancelFunc = context.WithCancel(ctx)
	a.wg.Add(1)
	go a.run(ctx)
}

// Stop cancels the mailbox loop and waits for the in-flight send.
func (a *Actor) Stop() {
	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		return
	}
	a.started = false
	a.mu.Unlock()

	a.cancelFunc()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.logger.Info("worker actor stopped")
	case <-time.After(30 * time.Second):
		a.logger.Warn("worker actor stop timed out")
	}
}

// Accept enqueues a job on the actor's mailbox. It does not wait for
// the job to be processed.
func (a *Actor) Accept(job *domain.Job) {
	a.mailbox <- job
}

func (a *Actor) run(ctx context.Context) {
	defer a.wg.Done()

	a.logger.Info("worker actor started")

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-a.mailbox:
			a.process(ctx, job)
		}
	}
}

func (a *Actor) process(ctx context.Context, job *domain.Job) {
	logger := a.logger.With(
		"notification_id", job.NotificationID,
		"retry_count", job.RetryCount,
	)

	err := a.sender.Send(ctx, job)
	if err == nil {
		if a.metrics != nil {
			a.metrics.RecordSent(job.Channel)
		}
		a.broadcastStatus(job, domain.StatusSent)
		return
	}

	logger.Error("send request error", "error", err)

	if domain.IsTerminal(err) {
		logger.Warn("unrecoverable job, moving to failed queue")
		a.deadLetter(ctx, job, "terminal", logger)
		return
	}

	if job.RetryCount < a.maxRetries {
		job.RetryCount++
		logger.Warn("retrying job, putting back to queue",
			"attempt", job.RetryCount,
			"max", a.maxRetries,
		)

		data, merr := job.Marshal()
		if merr != nil {
			logger.Error("cannot serialize job for retry", "error", merr)
			return
		}
		if perr := a.queue.Push(ctx, a.queueKey, data); perr != nil {
			logger.Error("cannot put job back to queue", "error", perr)
			return
		}
		if a.metrics != nil {
			a.metrics.RecordRetry(job.Channel)
		}
		return
	}

	logger.Error("job failed too many times, moving to failed queue")
	a.deadLetter(ctx, job, "exhausted", logger)
}

// deadLetter copies the job to the dead-letter queue and marks the row
// failed. Both writes are best-effort; a job is never dropped without
// at least a log line.
func (a *Actor) deadLetter(ctx context.Context, job *domain.Job, reason string, logger *slog.Logger) {
	data, err := job.Marshal()
	if err != nil {
		logger.Error("cannot serialize job for failed queue", "error", err)
	} else if err := a.queue.Push(ctx, domain.FailedQueueKey(a.queueKey), data); err != nil {
		logger.Error("cannot push to failed queue", "error", err)
	}

	rows, err := a.notifications.UpdateStatus(ctx, job.NotificationID, domain.StatusFailed)
	if err != nil {
		logger.Error("status update error", "error", err)
	} else {
		logger.Info("status updated", "rows_affected", rows)
	}

	if a.metrics != nil {
		a.metrics.RecordFailed(job.Channel, reason)
	}
	a.broadcastStatus(job, domain.StatusFailed)
}

func (a *Actor) broadcastStatus(job *domain.Job, status domain.Status) {
	if a.broadcast == nil {
		return
	}
	a.broadcast(domain.StatusUpdate{
		NotificationID: job.NotificationID,
		Channel:        domain.Channel(job.Channel),
		Status:         status,
		Timestamp:      time.Now().UTC(),
	})
}
