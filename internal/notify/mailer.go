package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/custom_stores/internal/config"
)

type OrderLine struct {
	Name     string
	Image    string
	Quantity uint
	Color    string
	Price    decimal.Decimal
}

type OrderConfirmation struct {
	OrderNumber string
	PaymentID   string
	Items       []OrderLine
	TotalPrice  decimal.Decimal
	Street      string
	City        string
	State       string
	ZipCode     string
	Country     string
}

type Mailer interface {
	SendOrderConfirmation(ctx context.Context, to string, o OrderConfirmation) error
	SendPasswordReset(ctx context.Context, to, link string) error
	SendVerification(ctx context.Context, to, code string) error
	SendWelcome(ctx context.Context, to, name string) error
}

// New returns an SMTP mailer, or a log-only one when SMTP_HOST is unset.
func New(cfg config.SMTPConfig, l *slog.Logger) Mailer {
	if cfg.Host == "" {
		return &LogMailer{Logger: l}
	}
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type SMTPMailer struct {
	cfg  config.SMTPConfig
	send sendFunc
}

func (m *SMTPMailer) SendOrderConfirmation(ctx context.Context, to string, o OrderConfirmation) error {
	return m.render(ctx, to, "Order Confirmation - Your Order is Confirmed!", orderTmpl, o)
}

func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, link string) error {
	return m.render(ctx, to, "Password Reset Request", resetTmpl, map[string]string{"Link": link})
}

func (m *SMTPMailer) SendVerification(ctx context.Context, to, code string) error {
	return m.render(ctx, to, "Email Verification", verifyTmpl, map[string]string{"Code": code})
}

func (m *SMTPMailer) SendWelcome(ctx context.Context, to, name string) error {
	return m.render(ctx, to, "Welcome to Our Store!", welcomeTmpl, map[string]string{"Name": name})
}

func (m *SMTPMailer) render(ctx context.Context, to, subject string, tmpl *template.Template, data any) error {
	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("render %q: %w", subject, err)
	}
	return m.deliver(ctx, to, subject, body.String())
}

func (m *SMTPMailer) deliver(ctx context.Context, to, subject, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return fmt.Errorf("invalid header value")
	}

	from := m.cfg.From
	if from == "" {
		from = m.cfg.User
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	msg.WriteString(html)

	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	if err := m.send(addr, auth, from, []string{to}, msg.Bytes()); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

// LogMailer only logs; used in development and when SMTP is not configured.
type LogMailer struct {
	Logger *slog.Logger
}

func (m *LogMailer) log(ctx context.Context, kind, to string, attrs ...any) error {
	l := m.Logger
	if l == nil {
		l = slog.Default()
	}
	l.InfoContext(ctx, "mail_skipped", append([]any{"kind", kind, "to", to, "reason", "smtp not configured"}, attrs...)...)
	return nil
}

func (m *LogMailer) SendOrderConfirmation(ctx context.Context, to string, o OrderConfirmation) error {
	return m.log(ctx, "order_confirmation", to, "order", o.OrderNumber)
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, to, link string) error {
	return m.log(ctx, "password_reset", to)
}

func (m *LogMailer) SendVerification(ctx context.Context, to, code string) error {
	return m.log(ctx, "verification", to)
}

func (m *LogMailer) SendWelcome(ctx context.Context, to, name string) error {
	return m.log(ctx, "welcome", to)
}
