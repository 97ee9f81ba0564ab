package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"core-auth/internal/audit/domain"
)

// fakeReader serves queued messages, then blocks until the context is cancelled.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	fetchErr  error
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if r.fetchErr != nil {
		err := r.fetchErr
		r.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type fakeRepo struct {
	mu     sync.Mutex
	stored []*domain.Event
	err    error
}

func (f *fakeRepo) Create(_ context.Context, e *domain.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.stored = append(f.stored, e)
	return nil
}

func (f *fakeRepo) ListByAccount(context.Context, string, int32, int32) ([]*domain.Event, error) {
	return nil, nil
}

func (f *fakeRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stored)
}

func message(t *testing.T, offset int64, e *domain.Event) kafka.Message {
	t.Helper()
	b, err := json.Marshal(e)
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: b}
}

func TestConsumer_StoresAndCommits(t *testing.T) {
	ev := domain.NewEvent(domain.ActionAuthenticate, false, time.Now())
	ev.Detail = "invalid credentials"
	reader := &fakeReader{queue: []kafka.Message{
		message(t, 1, ev),
		{Offset: 2, Value: []byte("not json")},
		message(t, 3, domain.NewEvent(domain.ActionRegister, true, time.Now())),
	}}
	repo := &fakeRepo{}
	c := newConsumer(reader, repo, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	assert.Eventually(t, func() bool { return len(reader.commits()) == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int64{1, 2, 3}, reader.commits())
	require.Equal(t, 2, repo.count())
	assert.Equal(t, ev.ID, repo.stored[0].ID)
	assert.Equal(t, "invalid credentials", repo.stored[0].Detail)
}

func TestConsumer_StoreFailureStopsWithoutCommit(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		message(t, 7, domain.NewEvent(domain.ActionLogout, true, time.Now())),
	}}
	c := newConsumer(reader, &fakeRepo{err: errors.New("db down")}, nil)

	err := c.Run(context.Background())
	assert.Error(t, err)
	assert.Empty(t, reader.commits())
}

func TestConsumer_FetchError(t *testing.T) {
	reader := &fakeReader{fetchErr: errors.New("broker gone")}
	c := newConsumer(reader, &fakeRepo{}, nil)
	assert.Error(t, c.Run(context.Background()))
	assert.NoError(t, c.Close())
}
