// Package forward delivers decoded gateway events to their consumers
// outside the session manager.
package forward

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"botgate/internal/domain"
)

// DefaultSubjectPrefix roots every published subject.
const DefaultSubjectPrefix = "botgate.events"

// NATSConfig configures the NATS forwarder.
type NATSConfig struct {
	URL           string
	Token         string        // optional auth token
	Name          string        // client connection name (default: "botgate")
	SubjectPrefix string        // (default: DefaultSubjectPrefix)
	ReconnectWait time.Duration // (default: 500ms)
	Timeout       time.Duration // connect timeout (default: 3s)
}

// Message is the JSON body published for each event.
type Message struct {
	Session  string          `json:"session"`
	Owner    string          `json:"owner"`
	Event    string          `json:"event"`
	Sequence *uint64         `json:"sequence,omitempty"`
	Data     json.RawMessage `json:"data"`
}

type publisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATSForwarder publishes each event to <prefix>.<owner>.<event>.
type NATSForwarder struct {
	pub    publisher
	nc     *nats.Conn
	prefix string
	logger *slog.Logger
}

// NewNATSForwarder connects to cfg.URL.
func NewNATSForwarder(cfg NATSConfig, logger *slog.Logger) (*NATSForwarder, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("nats url missing")
	}
	if cfg.Name == "" {
		cfg.Name = "botgate"
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	f := newNATSForwarder(nc, cfg.SubjectPrefix, logger)
	f.nc = nc
	return f, nil
}

func newNATSForwarder(pub publisher, prefix string, logger *slog.Logger) *NATSForwarder {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSForwarder{pub: pub, prefix: strings.TrimSuffix(prefix, "."), logger: logger}
}

// Forward publishes d. Payloads are marshalled as decoded, so consumers
// receive the same JSON shape the gateway sent.
func (f *NATSForwarder) Forward(_ context.Context, d domain.Delivery) error {
	data, err := json.Marshal(d.Payload)
	if err != nil {
		return domain.NewSubSystemError("forward", "NATSForwarder.Forward", domain.ErrForwardFailed, err.Error())
	}
	body, err := json.Marshal(Message{
		Session:  d.Session.Fingerprint(),
		Owner:    d.Owner,
		Event:    d.Event,
		Sequence: d.Sequence,
		Data:     data,
	})
	if err != nil {
		return domain.NewSubSystemError("forward", "NATSForwarder.Forward", domain.ErrForwardFailed, err.Error())
	}

	msg := nats.NewMsg(f.Subject(d.Owner, d.Event))
	msg.Data = body
	msg.Header.Set("Botgate-Session", d.Session.Fingerprint())
	if d.Sequence != nil {
		msg.Header.Set("Botgate-Seq", strconv.FormatUint(*d.Sequence, 10))
	}
	if err := f.pub.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w: %w", msg.Subject, domain.ErrForwardFailed, err)
	}
	return nil
}

// Subject builds the subject for owner and event.
func (f *NATSForwarder) Subject(owner, event string) string {
	return f.prefix + "." + token(owner) + "." + token(event)
}

// Close drains the connection.
func (f *NATSForwarder) Close() error {
	if f.nc == nil {
		return nil
	}
	return f.nc.Drain()
}

var subjectReplacer = strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_", "\t", "_")

// token makes s safe as a single subject token.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return subjectReplacer.Replace(s)
}
