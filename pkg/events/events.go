package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/dynaprizes/waitlist/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	ID        string
}

func newMessage(subject string, data []byte) *Message {
	return &Message{
		Subject:   subject,
		Data:      data,
		Timestamp: time.Now(),
		ID:        uuid.NewString(),
	}
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url,
		nats.Name("waitlist"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

// Publish hands the payload to the NATS client buffer and returns without
// waiting for delivery.
func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "bytes", len(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(newMessage(msg.Subject, msg.Data))
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(newMessage(msg.Subject, msg.Data))
	})
	return err
}

// Close drains in-flight messages before closing the connection.
func (n *NATSEventBus) Close() error {
	return n.conn.Drain()
}

const (
	ParticipantAdmitted = "waitlist.participant.admitted"
)

// ParticipantAdmittedEvent is emitted once per new admission.
type ParticipantAdmittedEvent struct {
	Email        string    `json:"email,omitempty"`
	Mobile       string    `json:"mobile,omitempty"`
	Position     int64     `json:"position"`
	ReferralCode string    `json:"referral_code"`
	ReferralLink string    `json:"referral_link"`
	Total        int64     `json:"total"`
	ReferredBy   string    `json:"referred_by,omitempty"`
	AdmittedAt   time.Time `json:"admitted_at"`
}
