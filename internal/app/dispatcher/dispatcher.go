// Package dispatcher validates inbound control-plane frames and fans events out to observers.
package dispatcher

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/coachpo/riftpilot/internal/domain/schema"
	"github.com/coachpo/riftpilot/internal/infra/telemetry"
)

// Observer consumes dispatched events. Returned errors are logged and never stop delivery.
type Observer interface {
	Observe(ctx context.Context, evt schema.Event) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, evt schema.Event) error

// Observe calls f.
func (f ObserverFunc) Observe(ctx context.Context, evt schema.Event) error {
	return f(ctx, evt)
}

type registration struct {
	name     string
	observer Observer
}

// Dispatcher delivers each valid event to every registered observer, synchronously and in
// registration order.
type Dispatcher struct {
	logger *log.Logger

	mu        sync.RWMutex
	observers []registration

	environment      string
	eventsDispatched metric.Int64Counter
	eventsIgnored    metric.Int64Counter
	observerFailures metric.Int64Counter
	dispatchDuration metric.Float64Histogram
}

// New constructs an empty dispatcher.
func New(logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	d := &Dispatcher{
		logger:           logger,
		mu:               sync.RWMutex{},
		observers:        nil,
		environment:      telemetry.Environment(),
		eventsDispatched: nil,
		eventsIgnored:    nil,
		observerFailures: nil,
		dispatchDuration: nil,
	}

	meter := otel.Meter("dispatcher")
	d.eventsDispatched, _ = meter.Int64Counter("dispatcher.events.dispatched",
		metric.WithDescription("Events delivered to observers"),
		metric.WithUnit("{event}"))
	d.eventsIgnored, _ = meter.Int64Counter("dispatcher.frames.ignored",
		metric.WithDescription("Frames that were not event envelopes"),
		metric.WithUnit("{frame}"))
	d.observerFailures, _ = meter.Int64Counter("dispatcher.observer.failures",
		metric.WithDescription("Observer errors and recovered panics"),
		metric.WithUnit("{failure}"))
	d.dispatchDuration, _ = meter.Float64Histogram("dispatcher.dispatch.duration",
		metric.WithDescription("Frame dispatch duration"),
		metric.WithUnit("ms"))
	return d
}

// Register appends an observer. Observers are registered at startup and never removed.
func (d *Dispatcher) Register(name string, observer Observer) {
	if observer == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("observer-%d", len(d.observers)+1)
	}
	d.observers = append(d.observers, registration{name: name, observer: observer})
}

// HandleFrame adapts Dispatch to the session's frame handler signature.
func (d *Dispatcher) HandleFrame(ctx context.Context, raw []byte) {
	d.Dispatch(ctx, raw)
}

// Dispatch parses raw and, when it is an event envelope, delivers it to every observer. It reports
// whether the frame was an event. Other frames are dropped silently.
func (d *Dispatcher) Dispatch(ctx context.Context, raw []byte) bool {
	evt, ok := schema.ParseEventFrame(raw)
	if !ok {
		if d.eventsIgnored != nil {
			d.eventsIgnored.Add(ctx, 1, metric.WithAttributes(telemetry.AttrEnvironment.String(d.environment)))
		}
		return false
	}
	d.Deliver(ctx, evt)
	return true
}

// Deliver hands an already-parsed event to every observer.
func (d *Dispatcher) Deliver(ctx context.Context, evt schema.Event) {
	start := time.Now()
	d.mu.RLock()
	observers := d.observers
	d.mu.RUnlock()

	for _, reg := range observers {
		d.deliverOne(ctx, reg, evt)
	}

	attrs := metric.WithAttributes(telemetry.EventAttributes(d.environment, evt.URI, string(evt.EventType))...)
	if d.eventsDispatched != nil {
		d.eventsDispatched.Add(ctx, 1, attrs)
	}
	if d.dispatchDuration != nil {
		d.dispatchDuration.Record(ctx, float64(time.Since(start).Microseconds())/1000, attrs)
	}
}

func (d *Dispatcher) deliverOne(ctx context.Context, reg registration, evt schema.Event) {
	var err error
	recovered := panics.Try(func() {
		err = reg.observer.Observe(ctx, evt)
	})
	if recovered != nil {
		err = recovered.AsError()
	}
	if err == nil {
		return
	}
	d.logger.Printf("dispatcher: observer %s failed on %s %s: %v", reg.name, evt.EventType, evt.URI, err)
	if d.observerFailures != nil {
		d.observerFailures.Add(ctx, 1, metric.WithAttributes(
			telemetry.AttrEnvironment.String(d.environment),
			telemetry.AttrObserver.String(reg.name),
		))
	}
}
