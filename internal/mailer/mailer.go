package mailer

import (
	"fmt"
	"os"

	"github.com/dynaprizes/waitlist/pkg/config"
)

// New picks the provider named by EMAIL_PROVIDER.
func New(cfg config.EmailConfig) (Service, error) {
	switch cfg.Provider {
	case config.EmailProviderDev, "":
		return NewDevMailer(os.Stdout), nil
	case config.EmailProviderSMTP:
		return NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.From, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPUseTLS), nil
	case config.EmailProviderMailerSend:
		return NewMailerSend(cfg.MailerSendKey, cfg.FromName, cfg.From), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}
