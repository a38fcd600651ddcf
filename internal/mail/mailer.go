package mail

import (
	"fmt"
	"log"
	"net/url"

	gomail "gopkg.in/gomail.v2"
)

// Mailer sends magic-link emails over SMTP. Delivery failures are logged and
// swallowed: the login token already exists, so the caller must not fail.
type Mailer struct {
	dialer  *gomail.Dialer
	from    string
	baseURL string
}

// NewMailer creates a mailer. If host is empty the mailer is disabled and
// Send only logs the link, which keeps local development working without an
// SMTP server.
func NewMailer(host string, port int, username, password, from, baseURL string) *Mailer {
	m := &Mailer{from: from, baseURL: baseURL}
	if host != "" {
		m.dialer = gomail.NewDialer(host, port, username, password)
	}
	return m
}

// SendMagicLink delivers the sign-in link to the given address.
func (m *Mailer) SendMagicLink(email, token string) {
	link := fmt.Sprintf("%s/api/v1/auth/verify?token=%s&email=%s",
		m.baseURL, token, url.QueryEscape(email))

	if m.dialer == nil {
		log.Printf("WARNING: SMTP not configured, magic link for %s: %s", maskEmail(email), link)
		return
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", "Sign in to ACAMS Learning System")
	msg.SetBody("text/plain", fmt.Sprintf(
		"Sign in to ACAMS Learning System\n\nClick this link to sign in:\n%s\n\nThis link will expire in 15 minutes. If you didn't request this, please ignore this email.", link))
	msg.AddAlternative("text/html", fmt.Sprintf(
		`<p>Click the link below to sign in to your account:</p>
<p><a href="%s">Sign In</a></p>
<p style="font-size:12px;color:#999">This link will expire in 15 minutes. If you didn't request this, please ignore this email.</p>`, link))

	if err := m.dialer.DialAndSend(msg); err != nil {
		// Token creation already succeeded; the user can request another link.
		log.Printf("ERROR: Failed to send magic link email to %s: %v", maskEmail(email), err)
		return
	}

	log.Printf("INFO: Magic link email sent to %s", maskEmail(email))
}

func maskEmail(email string) string {
	if len(email) <= 5 {
		return "..."
	}
	return email[:5] + "..."
}
