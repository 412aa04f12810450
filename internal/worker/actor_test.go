package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchd/notification-dispatcher/internal/domain"
)

const testQueueKey = "jobs"

func newTestActor(sender Sender, repo *recordRepo, queue *memQueue) (*Actor, *recordMetrics, *recordBroadcast) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	actor := NewActor(domain.ChannelPush, sender, repo, queue, testQueueKey, 3, 8, logger)

	metrics := newRecordMetrics()
	actor.SetMetrics(metrics)

	broadcast := &recordBroadcast{}
	actor.SetStatusBroadcast(broadcast.record)

	return actor, metrics, broadcast
}

func newPushJob(retryCount int) *domain.Job {
	return &domain.Job{
		NotificationID: uuid.New().String(),
		Recipient:      "device-token-1",
		RecipientType:  "token",
		Channel:        "push",
		Payload:        json.RawMessage(`{"title":"Hi","body":"There"}`),
		RetryCount:     retryCount,
	}
}

func TestActor_ProcessSuccess(t *testing.T) {
	ctx := context.Background()
	queue := newMemQueue()
	repo := &recordRepo{}
	sender := &stubSender{}
	actor, metrics, broadcast := newTestActor(sender, repo, queue)

	actor.process(ctx, newPushJob(0))

	assert.Equal(t, 1, metrics.sentCount("push"))
	assert.Empty(t, repo.statusCalls())

	depth, _ := queue.Depth(ctx, testQueueKey)
	assert.Equal(t, int64(0), depth)

	updates := broadcast.all()
	require.Len(t, updates, 1)
	assert.Equal(t, domain.StatusSent, updates[0].Status)
}

func TestActor_ProcessRetryableError(t *testing.T) {
	ctx := context.Background()
	queue := newMemQueue()
	repo := &recordRepo{}
	sender := &stubSender{err: domain.NewProviderError(500, "upstream down")}
	actor, metrics, _ := newTestActor(sender, repo, queue)

	actor.process(ctx, newPushJob(0))

	// Job is pushed back to the main queue with its retry count bumped
	raw, err := queue.Pop(ctx, testQueueKey)
	require.NoError(t, err)
	require.NotNil(t, raw)

	var requeued domain.Job
	require.NoError(t, json.Unmarshal(raw, &requeued))
	assert.Equal(t, 1, requeued.RetryCount)

	assert.Equal(t, 1, metrics.retryCount("push"))
	assert.Empty(t, repo.statusCalls())

	failedDepth, _ := queue.Depth(ctx, domain.FailedQueueKey(testQueueKey))
	assert.Equal(t, int64(0), failedDepth)
}

func TestActor_ProcessRetriesExhausted(t *testing.T) {
	ctx := context.Background()
	queue := newMemQueue()
	repo := &recordRepo{}
	sender := &stubSender{err: domain.NewProviderError(500, "upstream down")}
	actor, metrics, broadcast := newTestActor(sender, repo, queue)

	job := newPushJob(3)
	actor.process(ctx, job)

	// Nothing re-enters the main queue
	depth, _ := queue.Depth(ctx, testQueueKey)
	assert.Equal(t, int64(0), depth)

	// Dead-letter carries the final retry count
	raw, err := queue.Pop(ctx, domain.FailedQueueKey(testQueueKey))
	require.NoError(t, err)
	require.NotNil(t, raw)

	var dead domain.Job
	require.NoError(t, json.Unmarshal(raw, &dead))
	assert.Equal(t, 3, dead.RetryCount)
	assert.Equal(t, job.NotificationID, dead.NotificationID)

	calls := repo.statusCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, job.NotificationID, calls[0].id)
	assert.Equal(t, domain.StatusFailed, calls[0].status)

	assert.Equal(t, 1, metrics.failedCount("push", "exhausted"))

	updates := broadcast.all()
	require.Len(t, updates, 1)
	assert.Equal(t, domain.StatusFailed, updates[0].Status)
}

func TestActor_ProcessTerminalError(t *testing.T) {
	ctx := context.Background()
	queue := newMemQueue()
	repo := &recordRepo{}
	sender := &stubSender{err: domain.ErrInvalidPayload}
	actor, metrics, _ := newTestActor(sender, repo, queue)

	job := newPushJob(0)
	actor.process(ctx, job)

	// No retry: a malformed payload goes straight to the failed queue
	depth, _ := queue.Depth(ctx, testQueueKey)
	assert.Equal(t, int64(0), depth)

	raw, err := queue.Pop(ctx, domain.FailedQueueKey(testQueueKey))
	require.NoError(t, err)
	require.NotNil(t, raw)

	var dead domain.Job
	require.NoError(t, json.Unmarshal(raw, &dead))
	assert.Equal(t, 0, dead.RetryCount)

	assert.Equal(t, 1, metrics.failedCount("push", "terminal"))
	assert.Equal(t, 0, metrics.retryCount("push"))
}

func TestActor_RetryLifecycle(t *testing.T) {
	// Drive a permanently failing job through the whole retry loop by
	// hand: each pass pops the requeued job and processes it again.
	ctx := context.Background()
	queue := newMemQueue()
	repo := &recordRepo{}
	sender := &stubSender{err: domain.TransportError{Err: context.DeadlineExceeded}}
	actor, metrics, _ := newTestActor(sender, repo, queue)

	job := newPushJob(0)
	data, err := job.Marshal()
	require.NoError(t, err)
	require.NoError(t, queue.Push(ctx, testQueueKey, data))

	var seen []int
	for {
		raw, err := queue.Pop(ctx, testQueueKey)
		require.NoError(t, err)
		if raw == nil {
			break
		}
		var next domain.Job
		require.NoError(t, json.Unmarshal(raw, &next))
		seen = append(seen, next.RetryCount)
		actor.process(ctx, &next)
	}

	assert.Equal(t, []int{0, 1, 2, 3}, seen)
	assert.Equal(t, 3, metrics.retryCount("push"))
	assert.Equal(t, 1, metrics.failedCount("push", "exhausted"))

	failedDepth, _ := queue.Depth(ctx, domain.FailedQueueKey(testQueueKey))
	assert.Equal(t, int64(1), failedDepth)
}

func TestActor_StartAcceptStop(t *testing.T) {
	queue := newMemQueue()
	repo := &recordRepo{}
	sender := &stubSender{}
	actor, metrics, _ := newTestActor(sender, repo, queue)

	actor.Start(context.Background())
	defer actor.Stop()

	actor.Accept(newPushJob(0))
	actor.Accept(newPushJob(0))

	assert.Eventually(t, func() bool {
		return metrics.sentCount("push") == 2
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 2, sender.sent())
}
