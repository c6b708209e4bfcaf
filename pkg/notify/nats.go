package notify

import (
	"context"
	"encoding/json"
	"fmt"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes structured CloudEvents to "<subject>.<event type name>".
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	owned   bool
}

// NewNATSPublisher connects to url.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("eventgate"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn, subject: subject, owned: true}, nil
}

// NewNATSPublisherFromConn publishes over an existing connection, which Close leaves open.
func NewNATSPublisherFromConn(conn *nats.Conn, subject string) *NATSPublisher {
	return &NATSPublisher{conn: conn, subject: subject}
}

func (p *NATSPublisher) Publish(ctx context.Context, event cloudevents.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode cloudevent: %w", err)
	}
	msg := nats.NewMsg(routingKey(p.subject, event))
	msg.Header.Set("Content-Type", ContentType)
	msg.Header.Set(nats.MsgIdHdr, event.ID())
	msg.Data = body
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", event.Type(), err)
	}
	return nil
}

// Close flushes pending messages and closes an owned connection.
func (p *NATSPublisher) Close() error {
	if !p.owned {
		return p.conn.Flush()
	}
	return p.conn.Drain()
}
