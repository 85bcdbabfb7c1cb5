package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/qinyuanle/legal-qa-engine/internal/core/domain"
	"github.com/qinyuanle/legal-qa-engine/internal/infrastructure/resilience"
)

const (
	rebuildQueueGroup = "graph-workers"
	forcePayload      = "force"
)

// Bus carries both messaging concerns: per-request progress events published
// fire-and-forget, and the rebuild request channel between the API and the
// worker.
type Bus struct {
	conn           *nats.Conn
	eventsSubject  string
	rebuildSubject string
	runner         *resilience.Runner
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	Runner               *resilience.Runner
}

func New(url, eventsSubject, rebuildSubject string) (*Bus, error) {
	return NewWithOptions(url, eventsSubject, rebuildSubject, Options{})
}

func NewWithOptions(url, eventsSubject, rebuildSubject string, options Options) (*Bus, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("legal-qa-engine"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Bus{
		conn:           conn,
		eventsSubject:  eventsSubject,
		rebuildSubject: rebuildSubject,
		runner:         options.Runner,
	}, nil
}

func (b *Bus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

// Publish sends one progress event. Losing an event never fails the request,
// so there is no retry here; the caller logs and moves on.
func (b *Bus) Publish(_ context.Context, event domain.ProgressEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal progress event: %w", err)
	}
	if err := b.conn.Publish(b.eventsSubject, payload); err != nil {
		return wrapTemporary("publish progress event", err)
	}
	return nil
}

func (b *Bus) PublishRebuildRequested(ctx context.Context, force bool) error {
	payload := []byte("")
	if force {
		payload = []byte(forcePayload)
	}

	call := func(_ context.Context) error {
		if err := b.conn.Publish(b.rebuildSubject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return b.conn.Flush()
	}

	var err error
	if b.runner != nil {
		err = b.runner.Do(ctx, "nats_rebuild_publish", classifyBusError, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporary("publish rebuild request", err)
	}
	return nil
}

// SubscribeRebuildRequested blocks until ctx is done, running the handler for
// every rebuild request. The queue group ensures one worker handles each
// request even when several workers run.
func (b *Bus) SubscribeRebuildRequested(ctx context.Context, handler func(context.Context, bool) error) error {
	sub, err := b.conn.QueueSubscribe(b.rebuildSubject, rebuildQueueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		force := string(msg.Data) == forcePayload
		if err := handler(handlerCtx, force); err != nil {
			slog.Error("rebuild_handler_failed", "force", force, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := b.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := b.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
