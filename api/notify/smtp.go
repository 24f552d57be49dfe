package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPNotifier emails alerts through a STARTTLS-capable relay.
type SMTPNotifier struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

func (n *SMTPNotifier) Alert(ctx context.Context, a Alert) error {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", n.From)
	fmt.Fprintf(&b, "To: %s\r\n", n.To)
	fmt.Fprintf(&b, "Subject: ALERT: Gradient Sentry Node %s is DOWN\r\n", a.NodeName)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&b, `<html><body>
<h2>Gradient Sentry Node Alert</h2>
<p>The following Sentry Node is DOWN:</p>
<ul>
<li><strong>Name:</strong> %s</li>
<li><strong>IP Address:</strong> %s</li>
<li><strong>Provider:</strong> %s</li>
<li><strong>Region:</strong> %s</li>
<li><strong>Time:</strong> %s</li>
</ul>
<p>Automatic recovery has been attempted.</p>
</body></html>`, a.NodeName, a.IP, a.Provider, a.Region, a.Time.Format("2006-01-02 15:04:05"))

	addr := fmt.Sprintf("%s:%d", n.Host, n.Port)
	auth := smtp.PlainAuth("", n.Username, n.Password, n.Host)
	return smtp.SendMail(addr, auth, n.From, []string{n.To}, []byte(b.String()))
}
