package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/utask/internal/logging"
	"github.com/dmitrijs2005/utask/internal/server/metrics"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

var (
	ErrQueueFull = errors.New("notification queue is full")
	ErrClosed    = errors.New("notification dispatcher is closed")
)

const sendTimeout = 10 * time.Second

// Dispatcher implements Notifier on top of a Sender. Messages are queued and
// sent by a single background worker; a failed send is logged and counted,
// never retried, so a user does not get the same mail twice.
type Dispatcher struct {
	sender  Sender
	baseURL string
	clock   clockwork.Clock
	logger  logging.Logger
	metrics *metrics.Metrics

	ch   chan Message
	done chan struct{}
	wg   sync.WaitGroup

	// mu keeps Close from running between the closed check and the send,
	// so every accepted message is in ch before the worker drains it.
	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(sender Sender, baseURL string, bufferSize int, clock clockwork.Clock, logger logging.Logger, m *metrics.Metrics) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 1
	}

	d := &Dispatcher{
		sender:  sender,
		baseURL: baseURL,
		clock:   clock,
		logger:  logger.With("module", "notify"),
		metrics: m,
		ch:      make(chan Message, bufferSize),
		done:    make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) SendConfirmation(ctx context.Context, email, token string) error {
	return d.enqueue(ctx, KindConfirmation, email, token)
}

func (d *Dispatcher) SendPasswordReset(ctx context.Context, email, token string) error {
	return d.enqueue(ctx, KindPasswordReset, email, token)
}

func (d *Dispatcher) enqueue(ctx context.Context, kind Kind, email, token string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.metrics.NotificationFailed(string(kind))
		return ErrClosed
	}

	m := Message{
		ID:        uuid.NewString(),
		Kind:      kind,
		Email:     email,
		Token:     token,
		Link:      Link(d.baseURL, kind, token),
		CreatedAt: d.clock.Now(),
	}

	select {
	case d.ch <- m:
		return nil
	default:
		d.metrics.NotificationFailed(string(kind))
		d.logger.Error(ctx, "notification dropped", "kind", string(kind), "email", email, "error", ErrQueueFull)
		return ErrQueueFull
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case m := <-d.ch:
			d.send(m)
		case <-d.done:
			for {
				select {
				case m := <-d.ch:
					d.send(m)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) send(m Message) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := d.sender.Send(ctx, m); err != nil {
		d.metrics.NotificationFailed(string(m.Kind))
		d.logger.Error(ctx, "notification delivery failed",
			"id", m.ID, "kind", string(m.Kind), "email", m.Email, "error", err)
		return
	}
	d.logger.Debug(ctx, "notification delivered", "id", m.ID, "kind", string(m.Kind))
}

// Close stops accepting messages and waits until the queue is drained.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.done)
	d.mu.Unlock()

	d.wg.Wait()
}
