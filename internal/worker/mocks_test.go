package worker

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/dispatchd/notification-dispatcher/internal/domain"
)

// memQueue is an in-memory domain.Queue with list semantics.
type memQueue struct {
	mu    sync.Mutex
	lists map[string][][]byte
}

func newMemQueue() *memQueue {
	return &memQueue{lists: make(map[string][][]byte)}
}

func (q *memQueue) Push(ctx context.Context, key string, value []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.lists[key] = append(q.lists[key], value)
	return nil
}

func (q *memQueue) Pop(ctx context.Context, key string) ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	list := q.lists[key]
	if len(list) == 0 {
		return nil, nil
	}
	head := list[0]
	q.lists[key] = list[1:]
	return head, nil
}

func (q *memQueue) Depth(ctx context.Context, key string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.lists[key])), nil
}

type statusCall struct {
	id     string
	status domain.Status
}

// recordRepo records UpdateStatus calls.
type recordRepo struct {
	mu      sync.Mutex
	updates []statusCall
}

func (r *recordRepo) Insert(ctx context.Context, n *domain.Notification) error {
	return nil
}

func (r *recordRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	return nil, domain.ErrNotFound
}

func (r *recordRepo) UpdateStatus(ctx context.Context, id string, status domain.Status) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, statusCall{id: id, status: status})
	return 1, nil
}

func (r *recordRepo) statusCalls() []statusCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]statusCall(nil), r.updates...)
}

// stubSender returns a fixed error and records the jobs it saw.
type stubSender struct {
	mu   sync.Mutex
	err  error
	jobs []*domain.Job
}

func (s *stubSender) Send(ctx context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	return s.err
}

func (s *stubSender) sent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// recordMetrics counts delivery outcomes.
type recordMetrics struct {
	mu      sync.Mutex
	sent    map[string]int
	failed  map[string]int
	retried map[string]int
}

func newRecordMetrics() *recordMetrics {
	return &recordMetrics{
		sent:    make(map[string]int),
		failed:  make(map[string]int),
		retried: make(map[string]int),
	}
}

func (m *recordMetrics) RecordSent(channel string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[channel]++
}

func (m *recordMetrics) RecordFailed(channel, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[channel+"/"+reason]++
}

func (m *recordMetrics) RecordRetry(channel string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retried[channel]++
}

func (m *recordMetrics) sentCount(channel string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[channel]
}

func (m *recordMetrics) failedCount(channel, reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failed[channel+"/"+reason]
}

func (m *recordMetrics) retryCount(channel string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retried[channel]
}

// recordBroadcast captures status updates.
type recordBroadcast struct {
	mu      sync.Mutex
	updates []domain.StatusUpdate
}

func (b *recordBroadcast) record(update domain.StatusUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updates = append(b.updates, update)
}

func (b *recordBroadcast) all() []domain.StatusUpdate {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.StatusUpdate(nil), b.updates...)
}
