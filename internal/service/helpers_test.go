package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/BloggingApp/currents-service/internal/metrics"
	"github.com/BloggingApp/currents-service/internal/model"
	"github.com/BloggingApp/currents-service/internal/repository"
	"github.com/BloggingApp/currents-service/internal/repository/memory"
	"github.com/BloggingApp/currents-service/internal/repository/redisrepo"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sentMessage struct {
	queue string
	body  []byte
}

type fakeBroker struct {
	mu     sync.Mutex
	sent   []sentMessage
	queues map[string]chan amqp.Delivery
	err    error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{queues: make(map[string]chan amqp.Delivery)}
}

func (b *fakeBroker) PublishJSON(ctx context.Context, queue string, v any) error {
	if b.err != nil {
		return b.err
	}
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, sentMessage{queue: queue, body: body})
	return nil
}

func (b *fakeBroker) Consume(queue string) (<-chan amqp.Delivery, error) {
	return b.queue(queue), nil
}

func (b *fakeBroker) queue(name string) chan amqp.Delivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.queues[name]
	if !ok {
		ch = make(chan amqp.Delivery, 16)
		b.queues[name] = ch
	}
	return ch
}

func (b *fakeBroker) messages(queue string) []sentMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []sentMessage
	for _, m := range b.sent {
		if m.queue == queue {
			out = append(out, m)
		}
	}
	return out
}

// fakeAck records how a delivery was settled.
type fakeAck struct {
	mu      sync.Mutex
	acked   bool
	nacked  bool
	requeue bool
	done    chan struct{}
}

func newFakeAck() *fakeAck {
	return &fakeAck{done: make(chan struct{})}
}

func (a *fakeAck) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = true
	close(a.done)
	return nil
}

func (a *fakeAck) Nack(tag uint64, multiple bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked = true
	a.requeue = requeue
	close(a.done)
	return nil
}

func (a *fakeAck) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func delivery(ack *fakeAck, v any) amqp.Delivery {
	var body []byte
	switch b := v.(type) {
	case string:
		body = []byte(b)
	default:
		body, _ = json.Marshal(v)
	}
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: body}
}

type testEnv struct {
	svc    *Service
	store  *memory.Store
	repo   *repository.Repository
	broker *fakeBroker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.New()
	repo := repository.New(store.Post, store.User, redisrepo.NewMemory())
	broker := newFakeBroker()
	svc := New(zap.NewNop(), repo, broker, metrics.New(), Options{
		StoreTimeout: time.Second,
		CacheTTL:     time.Minute,
	})

	return &testEnv{
		svc:    svc,
		store:  store,
		repo:   repo,
		broker: broker,
	}
}

func (e *testEnv) addUser(t *testing.T, username string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, e.store.User.Create(context.Background(), model.CachedUser{ID: id, Username: username}))
	return id
}

func strPtr(s string) *string {
	return &s
}
