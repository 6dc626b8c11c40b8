// NATS JetStream mirror for run lifecycle events
package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"infrasim/internal/run"
)

// NATSPublisher mirrors run and tenant events onto JetStream subjects so
// out-of-process consumers can follow simulations. It plugs into the
// broadcaster as a regular subscriber.
type NATSPublisher struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	logger *slog.Logger
}

// NewNATSPublisher connects to NATS with reconnect handling and returns
// a publisher ready to subscribe to the broadcaster.
func NewNATSPublisher(natsURL string, logger *slog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	return &NATSPublisher{nc: nc, js: js, logger: logger}, nil
}

// Deliver implements run.Subscriber. Publishing is async; the broadcast
// path never waits on the wire.
func (p *NATSPublisher) Deliver(ev run.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := subjectFor(ev)
	if _, err := p.js.PublishAsync(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug("event published", "subject", subject, "kind", ev.Kind)
	return nil
}

// subjectFor maps an event to its JetStream subject. Tenant
// notifications route by tenant, everything else by run.
func subjectFor(ev run.Event) string {
	if ev.Kind == run.EventTenantNotification {
		return "sim.tenant." + ev.TenantID + ".notifications"
	}
	kind := strings.TrimPrefix(string(ev.Kind), "run-")
	return "sim.run." + ev.RunID + "." + kind
}

// Close drains the connection.
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
