// Package notify is the asynchronous notification port. Callers hand an
// Email to a Notifier and move on; delivery happens on background workers
// and its failures are logged, never returned.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Email is a rendered message ready for a Sender.
type Email struct {
	Kind    string `json:"kind"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Sender delivers one email synchronously.
type Sender interface {
	Send(ctx context.Context, e Email) error
}

// Notifier accepts emails without blocking on delivery.
type Notifier interface {
	Notify(ctx context.Context, e Email)
}

var notifications = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mail_notifications_total",
		Help: "Email notifications by kind and outcome (sent, failed, dropped).",
	},
	[]string{"kind", "outcome"},
)

func init() {
	prometheus.MustRegister(notifications)
}

// Dispatcher is a Notifier backed by a bounded queue and a fixed worker pool.
type Dispatcher struct {
	sender      Sender
	queue       chan Email
	log         zerolog.Logger
	sendTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

var _ Notifier = (*Dispatcher)(nil)

// NewDispatcher starts workers goroutines draining a queue of size entries.
func NewDispatcher(sender Sender, size, workers int, lg zerolog.Logger) *Dispatcher {
	if size < 1 {
		size = 1
	}
	if workers < 1 {
		workers = 1
	}
	d := &Dispatcher{
		sender:      sender,
		queue:       make(chan Email, size),
		log:         lg.With().Str("component", "notify").Logger(),
		sendTimeout: 10 * time.Second,
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Notify enqueues e. A full queue or a closed dispatcher drops the email.
func (d *Dispatcher) Notify(_ context.Context, e Email) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(e, "dispatcher closed")
		return
	}
	select {
	case d.queue <- e:
	default:
		d.drop(e, "queue full")
	}
}

// Close stops accepting emails and waits for queued ones to be sent, or for
// ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Join(errors.New("notify: pending emails not flushed"), ctx.Err())
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for e := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
		err := d.sender.Send(ctx, e)
		cancel()
		if err != nil {
			notifications.WithLabelValues(e.Kind, "failed").Inc()
			d.log.Error().Err(err).Str("kind", e.Kind).Msg("email delivery failed")
			continue
		}
		notifications.WithLabelValues(e.Kind, "sent").Inc()
	}
}

func (d *Dispatcher) drop(e Email, reason string) {
	notifications.WithLabelValues(e.Kind, "dropped").Inc()
	d.log.Warn().Str("kind", e.Kind).Str("reason", reason).Msg("email dropped")
}
