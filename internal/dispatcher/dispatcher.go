package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/crowdeval/crowdeval/internal/dispatcher"

var (
	// ErrUnknownCommand is returned for events without a handler.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrQueueFull is returned when a non-blocking buffer rejects an event.
	ErrQueueFull = errors.New("queue full")
	// ErrClosed is returned for buffered events dispatched after Close.
	ErrClosed = errors.New("dispatcher closed")
)

// Event represents an incoming command from the ingest stream or an internal
// producer.
type Event struct {
	Command   string
	Payload   []byte
	Value     any // in-process payload, set by internal producers
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger is satisfied by *slog.Logger.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered makes the handler async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered handler block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

type buffer struct {
	events  chan Event
	pending sync.WaitGroup
	done    chan struct{}
}

// instruments are the OTel meters of one dispatcher. They are no-ops unless
// a meter provider is installed.
type instruments struct {
	queueSize metric.Int64ObservableGauge
	handled   metric.Int64Counter
	failed    metric.Int64Counter
	dropped   metric.Int64Counter
	duration  metric.Float64Histogram
}

// Dispatcher routes ingest commands to their handlers.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger
	meters   instruments

	mu      sync.RWMutex
	buffers map[string]*buffer
	closed  bool
}

// New creates a Dispatcher logging through logger.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		buffers:  make(map[string]*buffer),
		logger:   logger,
	}
	if err := d.initMeters(otel.Meter(meterName)); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dispatcher) initMeters(m metric.Meter) error {
	var err error
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&d.meters.handled, "crowdeval.dispatch.handled", "Events passed to a handler"},
		{&d.meters.failed, "crowdeval.dispatch.failed", "Events whose handler returned an error"},
		{&d.meters.dropped, "crowdeval.dispatch.dropped", "Events rejected by a full queue"},
	}
	for _, c := range counters {
		if *c.dst, err = m.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return fmt.Errorf("creating %s: %w", c.name, err)
		}
	}

	d.meters.duration, err = m.Float64Histogram("crowdeval.dispatch.duration",
		metric.WithDescription("Handler run time"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("creating duration histogram: %w", err)
	}

	d.meters.queueSize, err = m.Int64ObservableGauge("crowdeval.dispatch.queue",
		metric.WithDescription("Events waiting in a command buffer"),
	)
	if err != nil {
		return fmt.Errorf("creating queue gauge: %w", err)
	}
	_, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		d.mu.RLock()
		defer d.mu.RUnlock()
		for cmd, buf := range d.buffers {
			o.ObserveInt64(d.meters.queueSize, int64(len(buf.events)),
				metric.WithAttributes(attribute.String("command", cmd)))
		}
		return nil
	}, d.meters.queueSize)
	if err != nil {
		return fmt.Errorf("registering queue callback: %w", err)
	}
	return nil
}

// Register installs h for command. Options wrap it in this order: metrics,
// then logging, then the buffer.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := d.withMetrics(command, h)
	if cfg.logged {
		handler = d.withLogging(command, handler)
	}
	if cfg.bufferSize > 0 {
		handler = d.withBuffer(command, cfg.bufferSize, cfg.blocking, handler)
	}

	d.handlers[command] = handler
}

// Dispatch routes e to its handler. A zero timestamp is set to now.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	h, ok := d.handlers[e.Command]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, e.Command)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return h(e)
}

// HasHandler reports whether command has a handler.
func (d *Dispatcher) HasHandler(command string) bool {
	_, ok := d.handlers[command]
	return ok
}

// Drain blocks until every event queued for command has been handled. It
// returns at once for unbuffered or unknown commands.
func (d *Dispatcher) Drain(command string) {
	d.mu.RLock()
	buf, ok := d.buffers[command]
	d.mu.RUnlock()
	if ok {
		buf.pending.Wait()
	}
}

// Close drains every buffer and stops its worker. Buffered commands
// dispatched afterwards fail with ErrClosed.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	bufs := make([]*buffer, 0, len(d.buffers))
	for _, buf := range d.buffers {
		bufs = append(bufs, buf)
	}
	d.mu.Unlock()

	for _, buf := range bufs {
		buf.pending.Wait()
		close(buf.events)
		<-buf.done
	}
}

func (d *Dispatcher) withMetrics(command string, h HandlerFunc) HandlerFunc {
	cmdAttr := metric.WithAttributes(attribute.String("command", command))
	return func(e Event) (any, error) {
		start := time.Now()
		result, err := h(e)
		ctx := context.Background()
		d.meters.duration.Record(ctx, time.Since(start).Seconds(), cmdAttr)
		d.meters.handled.Add(ctx, 1, cmdAttr)
		if err != nil {
			d.meters.failed.Add(ctx, 1, cmdAttr)
		}
		return result, err
	}
}

func (d *Dispatcher) withBuffer(command string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buf := &buffer{events: make(chan Event, size), done: make(chan struct{})}

	d.mu.Lock()
	d.buffers[command] = buf
	d.mu.Unlock()

	go func() {
		defer close(buf.done)
		for e := range buf.events {
			if _, err := h(e); err != nil && d.logger != nil {
				d.logger.Error("buffered handler failed", "command", command, "error", err)
			}
			buf.pending.Done()
		}
	}()

	dropped := metric.WithAttributes(attribute.String("command", command))
	return func(e Event) (any, error) {
		// the read lock keeps Close from closing the channel mid-send
		d.mu.RLock()
		defer d.mu.RUnlock()
		if d.closed {
			return nil, fmt.Errorf("%w: %s", ErrClosed, command)
		}

		buf.pending.Add(1)
		if blocking {
			buf.events <- e
			return "queued", nil
		}
		select {
		case buf.events <- e:
			return "queued", nil
		default:
			buf.pending.Done()
			d.meters.dropped.Add(context.Background(), 1, dropped)
			return nil, fmt.Errorf("%w: %s", ErrQueueFull, command)
		}
	}
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling event", "command", command, "bytes", len(e.Payload))

		result, err := h(e)
		if err != nil {
			d.logger.Error("event failed", "command", command, "duration", time.Since(start), "error", err)
			return result, err
		}
		d.logger.Debug("event complete", "command", command, "duration", time.Since(start))
		return result, nil
	}
}
