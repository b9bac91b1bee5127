package mailer

import (
	"fmt"
	"html"
)

const welcomeSubject = "You're on the Dynaprizes waitlist"

func welcomeText(w Welcome) string {
	return fmt.Sprintf("You're #%d of %d on the waitlist.\n"+
		"Your referral code is %s.\n"+
		"Share your link to move up: %s\n",
		w.Position, w.Total, w.ReferralCode, w.ReferralLink)
}

func welcomeHTML(w Welcome) string {
	link := html.EscapeString(w.ReferralLink)
	return fmt.Sprintf(`<p>You're <b>#%d</b> of %d on the waitlist.</p>
<p>Your referral code is <b>%s</b>.</p>
<p>Share <a href="%s">%s</a> to move up.</p>`,
		w.Position, w.Total, html.EscapeString(w.ReferralCode), link, link)
}
