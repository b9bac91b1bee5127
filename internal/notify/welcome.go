package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dynaprizes/waitlist/internal/mailer"
	"github.com/dynaprizes/waitlist/pkg/events"
	"github.com/dynaprizes/waitlist/pkg/logger"
)

const sendTimeout = 15 * time.Second

// WelcomeNotifier sends the welcome email for every admitted participant
// that signed up with an email address.
type WelcomeNotifier struct {
	mail mailer.Service
}

func NewWelcomeNotifier(mail mailer.Service) *WelcomeNotifier {
	return &WelcomeNotifier{mail: mail}
}

// Register subscribes the notifier. A non-empty queue spreads deliveries
// across worker replicas.
func (n *WelcomeNotifier) Register(sub events.Subscriber, queue string) error {
	if queue == "" {
		return sub.Subscribe(events.ParticipantAdmitted, n.Handle)
	}
	return sub.QueueSubscribe(events.ParticipantAdmitted, queue, n.Handle)
}

func (n *WelcomeNotifier) Handle(msg *events.Message) {
	var ev events.ParticipantAdmittedEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		logger.Error("Discarding malformed admission event", "error", err, "subject", msg.Subject)
		return
	}
	if ev.Email == "" {
		logger.Debug("No email on admission, skipping welcome", "position", ev.Position)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	err := n.mail.SendWelcome(ctx, mailer.Welcome{
		To:           ev.Email,
		Position:     ev.Position,
		Total:        ev.Total,
		ReferralCode: ev.ReferralCode,
		ReferralLink: ev.ReferralLink,
	})
	if err != nil {
		logger.Error("Failed to send welcome email", "error", err, "position", ev.Position)
		return
	}
	logger.Info("Welcome email sent", "position", ev.Position)
}
