package events

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/learnflow-api/internal/observability"
)

// State describes the notifier's connection to its broker.
type State string

const (
	StateUnconfigured State = "unconfigured"
	StateConnected    State = "connected"
	StateFailing      State = "failing"
	StateClosed       State = "closed"
)

func (s State) gaugeValue() float64 {
	switch s {
	case StateConnected:
		return 1
	case StateFailing:
		return 2
	case StateClosed:
		return 3
	default:
		return 0
	}
}

// Publish results recorded in metrics.
const (
	resultSent     = "sent"
	resultFailed   = "failed"
	resultDropped  = "dropped"
	resultDisabled = "disabled"
)

// Options tunes the notifier queue.
type Options struct {
	BufferSize     int
	PublishTimeout time.Duration
}

// Health is a point-in-time view of the notifier.
type Health struct {
	State       State      `json:"state"`
	Transport   string     `json:"transport"`
	Published   int64      `json:"published"`
	Failed      int64      `json:"failed"`
	Dropped     int64      `json:"dropped"`
	LastError   string     `json:"last_error,omitempty"`
	LastErrorAt *time.Time `json:"last_error_at,omitempty"`
}

// Notifier is the process-scoped event publisher. Start connects it once;
// a failed connect disables it for the life of the process.
type Notifier struct {
	transport Transport
	opts      Options
	logger    zerolog.Logger
	now       func() time.Time

	queue chan Message
	done  chan struct{}

	mu        sync.RWMutex
	state     State
	accepting bool
	started   bool
	lastErr   string
	lastErrAt *time.Time
	startOnce sync.Once
	closeOnce sync.Once
	published atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// NewNotifier constructs a notifier. A nil transport yields an unconfigured no-op notifier.
func NewNotifier(transport Transport, opts Options, logger zerolog.Logger) *Notifier {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 256
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = time.Second
	}

	n := &Notifier{
		transport: transport,
		opts:      opts,
		logger:    logger.With().Str("component", "event_notifier").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
		done:      make(chan struct{}),
		state:     StateUnconfigured,
	}
	observability.EventNotifierState().Set(n.state.gaugeValue())
	return n
}

// Start connects the transport and launches the dispatch worker.
// It never returns an error: a connect failure leaves the notifier permanently disabled.
func (n *Notifier) Start(ctx context.Context) {
	n.startOnce.Do(func() {
		if n.transport == nil {
			n.logger.Warn().Msg("no event transport configured; domain events will not be published")
			close(n.done)
			return
		}

		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := n.transport.Connect(connectCtx)
		cancel()
		if err != nil {
			n.recordError(err)
			n.setState(StateFailing)
			n.logger.Error().Err(err).Str("transport", n.transport.Name()).
				Msg("event transport unavailable; notifier disabled for the process lifetime")
			close(n.done)
			return
		}

		n.mu.Lock()
		n.queue = make(chan Message, n.opts.BufferSize)
		n.accepting = true
		n.started = true
		n.mu.Unlock()
		n.setState(StateConnected)
		n.logger.Info().Str("transport", n.transport.Name()).Msg("event notifier connected")

		go n.run()
	})
}

// Publish stamps, serialises and enqueues an event. It never blocks and never fails:
// a disabled notifier or a full queue drops the event.
func (n *Notifier) Publish(ctx context.Context, topic, key string, event Event) {
	if event == nil {
		return
	}

	event.stamp(event.Type(), n.now())

	n.mu.RLock()
	defer n.mu.RUnlock()

	if !n.accepting {
		observability.EventsPublished().WithLabelValues(topic, resultDisabled).Inc()
		n.logger.Debug().Str("topic", topic).Str("event_type", event.Type()).Msg("notifier disabled; event skipped")
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		n.failed.Add(1)
		observability.EventsPublished().WithLabelValues(topic, resultFailed).Inc()
		n.logger.Warn().Err(err).Str("topic", topic).Msg("failed to encode event")
		return
	}

	select {
	case n.queue <- Message{Topic: topic, Key: key, Payload: payload}:
		trace.SpanFromContext(ctx).AddEvent("event.enqueued", trace.WithAttributes(
			attribute.String("event.topic", topic),
			attribute.String("event.type", event.Type()),
		))
	default:
		n.dropped.Add(1)
		observability.EventsPublished().WithLabelValues(topic, resultDropped).Inc()
		n.logger.Warn().Str("topic", topic).Str("event_type", event.Type()).Msg("event queue full; event dropped")
	}
}

func (n *Notifier) run() {
	defer close(n.done)

	for msg := range n.queue {
		ctx, cancel := context.WithTimeout(context.Background(), n.opts.PublishTimeout)
		err := n.transport.Send(ctx, msg)
		cancel()

		if err != nil {
			n.failed.Add(1)
			n.recordError(err)
			n.setState(StateFailing)
			observability.EventsPublished().WithLabelValues(msg.Topic, resultFailed).Inc()
			n.logger.Warn().Err(err).Str("topic", msg.Topic).Str("key", msg.Key).Msg("failed to publish event")
			continue
		}

		n.published.Add(1)
		observability.EventsPublished().WithLabelValues(msg.Topic, resultSent).Inc()
		n.mu.RLock()
		recovered := n.state == StateFailing
		n.mu.RUnlock()
		if recovered {
			n.setState(StateConnected)
			n.logger.Info().Msg("event transport recovered")
		}
	}
}

// Close stops accepting events, drains the queue within ctx and disposes the transport.
func (n *Notifier) Close(ctx context.Context) error {
	var closeErr error
	n.closeOnce.Do(func() {
		n.mu.Lock()
		wasStarted := n.started
		n.accepting = false
		if wasStarted {
			close(n.queue)
		}
		n.mu.Unlock()

		if wasStarted {
			select {
			case <-n.done:
			case <-ctx.Done():
				n.logger.Warn().Int("pending", len(n.queue)).Msg("event queue not drained before shutdown")
			}
		}

		if n.transport != nil {
			if err := n.transport.Close(); err != nil {
				n.logger.Warn().Err(err).Msg("failed to close event transport")
				closeErr = err
			}
		}
		n.setState(StateClosed)
	})
	return closeErr
}

// Health reports the current state and counters.
func (n *Notifier) Health() Health {
	n.mu.RLock()
	defer n.mu.RUnlock()

	health := Health{
		State:     n.state,
		Published: n.published.Load(),
		Failed:    n.failed.Load(),
		Dropped:   n.dropped.Load(),
		LastError: n.lastErr,
	}
	if n.transport != nil {
		health.Transport = n.transport.Name()
	}
	if n.lastErrAt != nil {
		at := *n.lastErrAt
		health.LastErrorAt = &at
	}
	return health
}

func (n *Notifier) setState(state State) {
	n.mu.Lock()
	n.state = state
	n.mu.Unlock()
	observability.EventNotifierState().Set(state.gaugeValue())
}

func (n *Notifier) recordError(err error) {
	at := n.now()
	n.mu.Lock()
	n.lastErr = err.Error()
	n.lastErrAt = &at
	n.mu.Unlock()
}
