// Package events publishes committed movement transitions to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// conn is the subset of *nats.Conn used by the publisher.
type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
	Close()
}

// Publisher writes JSON events to NATS subjects. A Publisher without a
// connection drops events, so callers never need a nil check.
type Publisher struct {
	conn   conn
	logger *slog.Logger
}

// Connect dials NATS. An empty url returns a noop publisher.
func Connect(url, name string, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if url == "" {
		logger.Info("nats disabled, transition events are dropped")
		return &Publisher{logger: logger}, nil
	}
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", slog.Any("error", err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &Publisher{conn: nc, logger: logger}, nil
}

func newPublisher(c conn, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: c, logger: logger}
}

// Enabled reports whether events leave the process.
func (p *Publisher) Enabled() bool {
	return p != nil && p.conn != nil
}

// Publish marshals payload and publishes it on subject.
func (p *Publisher) Publish(ctx context.Context, subject string, payload any) error {
	if !p.Enabled() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", subject, err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() {
	if !p.Enabled() {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn("nats drain", slog.Any("error", err))
		p.conn.Close()
	}
}
