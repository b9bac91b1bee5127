package mailer

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dynaprizes/waitlist/pkg/logger"
)

// DevMailer prints mail instead of sending it.
type DevMailer struct {
	out io.Writer
}

func NewDevMailer(out io.Writer) *DevMailer {
	if out == nil {
		out = os.Stdout
	}
	return &DevMailer{out: out}
}

func (d *DevMailer) SendWelcome(ctx context.Context, w Welcome) error {
	logger.InfoContext(ctx, "[DEV MAIL] Welcome email",
		"to", w.To,
		"position", w.Position,
		"referral_code", w.ReferralCode,
	)

	_, err := fmt.Fprintf(d.out, "\n"+
		"------------------------------------------------------------\n"+
		"WELCOME EMAIL (DEV MODE)\n"+
		"------------------------------------------------------------\n"+
		"To: %s\n"+
		"Subject: %s\n"+
		"\n"+
		"%s"+
		"------------------------------------------------------------\n\n",
		w.To, welcomeSubject, welcomeText(w))
	return err
}
