package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSConfig configures the outbound event bridge.
type NATSConfig struct {
	URL            string
	Name           string
	SubjectPrefix  string
	ReconnectWait  time.Duration
	MaxReconnects  int
	ConnectTimeout time.Duration
}

// NATSBridge forwards engine events to NATS subjects
// <prefix>.<team>.<event_type> so presentation layers can render them.
type NATSBridge struct {
	conn   *nats.Conn
	prefix string
	logger *zap.Logger
}

// NewNATSBridge connects to NATS.
func NewNATSBridge(cfg NATSConfig, logger *zap.Logger) (*NATSBridge, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = nats.DefaultTimeout
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = nats.DefaultReconnectWait
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = "tickets"
	}
	logger.Info("connected to nats", zap.String("url", conn.ConnectedUrl()))
	return &NATSBridge{conn: conn, prefix: prefix, logger: logger}, nil
}

// Subject returns the subject an event is published on.
func Subject(prefix string, event Event) string {
	team := string(event.Team)
	if team == "" {
		team = "all"
	}
	return fmt.Sprintf("%s.%s.%s", prefix, team, event.Type)
}

// Publish sends event as JSON.
func (b *NATSBridge) Publish(_ context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.conn.Publish(Subject(b.prefix, event), payload); err != nil {
		return fmt.Errorf("publish event %s: %w", event.ID, err)
	}
	return nil
}

// Attach subscribes the bridge to every event on d.
func (b *NATSBridge) Attach(d Dispatcher) {
	SubscribeAll(d, b.Publish)
}

// Close drains pending messages and closes the connection.
func (b *NATSBridge) Close() {
	if b == nil || b.conn == nil {
		return
	}
	if err := b.conn.Drain(); err != nil {
		b.logger.Warn("nats drain failed", zap.Error(err))
		b.conn.Close()
	}
}
