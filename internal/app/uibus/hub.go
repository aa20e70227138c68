// Package uibus fans UI messages (champ-select mirror, login progress, account changes) out to
// connected UI streams.
package uibus

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	concpool "github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/coachpo/riftpilot/errs"
	"github.com/coachpo/riftpilot/internal/infra/telemetry"
)

// MessageType names a UI signal.
type MessageType string

// UI message types.
const (
	TypeChampSelectUpdate MessageType = "champ-select-update"
	TypeChampSelectEnd    MessageType = "champ-select-end"
	TypeLoginStatus       MessageType = "login-status"
	TypeAccountsUpdated   MessageType = "accounts-updated"
	TypeConnection        MessageType = "connection"
)

// Message is one UI signal.
type Message struct {
	ID      string          `json:"id"`
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
	At      time.Time       `json:"at"`
}

// Publisher is the write side used by the core.
type Publisher interface {
	Publish(ctx context.Context, typ MessageType, payload any) error
}

// SubscriptionID uniquely identifies a hub subscription.
type SubscriptionID string

// Config configures subscriber buffers.
type Config struct {
	BufferSize    int
	FanoutWorkers int
	Logger        *log.Logger
}

func (c Config) normalize() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = 64
	}
	if c.FanoutWorkers <= 0 {
		c.FanoutWorkers = 4
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
	return c
}

type subscriber struct {
	ctx    context.Context
	cancel context.CancelFunc
	ch     chan Message
	once   sync.Once
	mu     sync.Mutex
	closed bool
}

func (s *subscriber) close() {
	s.once.Do(func() {
		s.cancel()
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
}

// Hub is an in-memory broadcast hub. Slow subscribers lose their oldest buffered message rather
// than blocking the publisher.
type Hub struct {
	cfg    Config
	logger *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.RWMutex
	subscribers  map[SubscriptionID]*subscriber
	shutdownOnce sync.Once
	nextID       uint64

	published metric.Int64Counter
	dropped   metric.Int64Counter
	gauge     metric.Int64UpDownCounter
}

// NewHub constructs an empty hub.
func NewHub(cfg Config) *Hub {
	cfg = cfg.normalize()
	ctx, cancel := context.WithCancel(context.Background())
	hub := &Hub{
		cfg:          cfg,
		logger:       cfg.Logger,
		ctx:          ctx,
		cancel:       cancel,
		mu:           sync.RWMutex{},
		subscribers:  make(map[SubscriptionID]*subscriber),
		shutdownOnce: sync.Once{},
		nextID:       0,
		published:    nil,
		dropped:      nil,
		gauge:        nil,
	}

	meter := otel.Meter("uibus")
	hub.published, _ = meter.Int64Counter("uibus.messages.published",
		metric.WithDescription("UI messages published"),
		metric.WithUnit("{message}"))
	hub.dropped, _ = meter.Int64Counter("uibus.messages.dropped",
		metric.WithDescription("UI messages dropped due to subscriber backpressure"),
		metric.WithUnit("{message}"))
	hub.gauge, _ = meter.Int64UpDownCounter("uibus.subscribers",
		metric.WithDescription("Active UI subscribers"),
		metric.WithUnit("{subscriber}"))
	return hub
}

// Publish encodes payload and delivers it to every subscriber.
func (h *Hub) Publish(ctx context.Context, typ MessageType, payload any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if typ == "" {
		return errs.New("uibus/publish", errs.CodeInvalid, errs.WithMessage("message type required"))
	}
	if err := h.ctx.Err(); err != nil {
		return errs.New("uibus/publish", errs.CodeUnavailable, errs.WithMessage("hub closed"))
	}
	raw, err := encodePayload(payload)
	if err != nil {
		return errs.New("uibus/publish", errs.CodeInvalid, errs.WithField("type", string(typ)), errs.WithCause(err))
	}
	msg := Message{ID: uuid.NewString(), Type: typ, Payload: raw, At: time.Now().UTC()}

	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	attrs := metric.WithAttributes(
		telemetry.AttrEnvironment.String(telemetry.Environment()),
		telemetry.AttrMessageType.String(string(typ)),
	)
	if h.published != nil {
		h.published.Add(ctx, 1, attrs)
	}
	if len(subs) == 0 {
		return nil
	}

	p := concpool.New().WithMaxGoroutines(h.cfg.FanoutWorkers)
	for _, sub := range subs {
		p.Go(func() {
			if !h.deliver(sub, msg) && h.dropped != nil {
				h.dropped.Add(ctx, 1, attrs)
			}
		})
	}
	p.Wait()
	return nil
}

// deliver reports false when an older message had to be dropped to make room.
func (h *Hub) deliver(sub *subscriber, msg Message) bool {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return true
	}
	select {
	case sub.ch <- msg:
		return true
	default:
	}
	select {
	case <-sub.ch:
	default:
	}
	h.logger.Printf("uibus: subscriber buffer full; dropped oldest message before %s", msg.Type)
	select {
	case sub.ch <- msg:
	default:
	}
	return false
}

// Subscribe registers a subscriber; the channel closes on Unsubscribe, ctx cancellation or Close.
func (h *Hub) Subscribe(ctx context.Context) (SubscriptionID, <-chan Message, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := h.ctx.Err(); err != nil {
		return "", nil, errs.New("uibus/subscribe", errs.CodeUnavailable, errs.WithMessage("hub closed"))
	}
	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscriber{
		ctx:    subCtx,
		cancel: cancel,
		ch:     make(chan Message, h.cfg.BufferSize),
		once:   sync.Once{},
		mu:     sync.Mutex{},
		closed: false,
	}
	id := SubscriptionID(fmt.Sprintf("ui-%d", atomic.AddUint64(&h.nextID, 1)))

	h.mu.Lock()
	h.subscribers[id] = sub
	h.mu.Unlock()
	if h.gauge != nil {
		h.gauge.Add(ctx, 1, metric.WithAttributes(telemetry.AttrEnvironment.String(telemetry.Environment())))
	}

	go h.observe(id, sub)
	return id, sub.ch, nil
}

// Unsubscribe removes the subscription and closes its channel.
func (h *Hub) Unsubscribe(id SubscriptionID) {
	h.mu.Lock()
	sub, ok := h.subscribers[id]
	delete(h.subscribers, id)
	h.mu.Unlock()
	if !ok {
		return
	}
	if h.gauge != nil {
		h.gauge.Add(context.Background(), -1, metric.WithAttributes(telemetry.AttrEnvironment.String(telemetry.Environment())))
	}
	sub.close()
}

// Close shuts down the hub and all subscriptions.
func (h *Hub) Close() {
	h.shutdownOnce.Do(func() {
		h.cancel()
		h.mu.Lock()
		for id, sub := range h.subscribers {
			sub.close()
			delete(h.subscribers, id)
		}
		h.mu.Unlock()
	})
}

func (h *Hub) observe(id SubscriptionID, sub *subscriber) {
	select {
	case <-sub.ctx.Done():
	case <-h.ctx.Done():
	}
	h.Unsubscribe(id)
	sub.close()
}

func encodePayload(payload any) (json.RawMessage, error) {
	switch v := payload.(type) {
	case nil:
		return json.RawMessage("null"), nil
	case json.RawMessage:
		if len(v) == 0 {
			return json.RawMessage("null"), nil
		}
		return v, nil
	default:
		return json.Marshal(v)
	}
}
