// Package journal publishes per-request traces to an external sink.
//
// Records are published to NATS subjects of the form:
//
//	<prefix>.<intent>.<state>
//
// for example portfoliod.requests.pnl.routed. Publishing is best effort:
// callers log failures and carry on.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DefaultSubjectPrefix is used when none is configured.
const DefaultSubjectPrefix = "portfoliod.requests"

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("journal publisher closed")

// Record is one handled request.
type Record struct {
	RequestID string          `json:"request_id"`
	Timestamp time.Time       `json:"timestamp"`
	Intent    string          `json:"intent"`
	State     string          `json:"state"`
	Answer    string          `json:"answer"`
	ErrorType string          `json:"error_type,omitempty"`
	Duration  time.Duration   `json:"duration_ns"`
	Slots     json.RawMessage `json:"slots,omitempty"`
	Trace     json.RawMessage `json:"trace,omitempty"`
}

// Publisher delivers records.
type Publisher interface {
	Publish(ctx context.Context, rec Record) error
}

// Nop discards records.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Record) error { return nil }

// NATSPublisher publishes JSON records to NATS.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	owned  bool
	logger *zap.Logger
}

// Connect dials url and returns a publisher that owns the connection.
func Connect(url, prefix string, logger *zap.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("portfoliod-journal"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("journal disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("journal reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	p := NewNATSPublisher(nc, prefix, logger)
	p.owned = true
	return p, nil
}

// NewNATSPublisher wraps an existing connection. Close does not close it.
func NewNATSPublisher(nc *nats.Conn, prefix string, logger *zap.Logger) *NATSPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSPublisher{conn: nc, prefix: prefix, logger: logger}
}

// Subject returns the subject a record is published to.
func (p *NATSPublisher) Subject(rec Record) string {
	return fmt.Sprintf("%s.%s.%s", p.prefix, token(rec.Intent), token(rec.State))
}

// Publish implements Publisher.
func (p *NATSPublisher) Publish(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.conn == nil || p.conn.IsClosed() {
		return ErrClosed
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	subject := p.Subject(rec)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug("journal record published", zap.String("subject", subject), zap.String("request_id", rec.RequestID))
	return nil
}

// Close drains an owned connection.
func (p *NATSPublisher) Close() error {
	if !p.owned || p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	return p.conn.Drain()
}

// token makes s safe as a single subject token.
func token(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		}
		return r
	}, s)
}
