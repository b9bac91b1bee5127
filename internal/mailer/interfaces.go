package mailer

import "context"

// Welcome is everything the welcome email needs about a new participant.
type Welcome struct {
	To           string
	Position     int64
	Total        int64
	ReferralCode string
	ReferralLink string
}

type Service interface {
	SendWelcome(ctx context.Context, w Welcome) error
}
