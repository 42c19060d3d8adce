// Package notify sends booking confirmations to guests by e-mail.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/iliyamo/hotel-booking/internal/queue"
)

// SMTPConfig holds the outgoing mail server settings.  An empty Host puts
// the mailer in log-only mode.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Sender abstracts gomail's dialer so tests can capture messages.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type Mailer struct {
	cfg    SMTPConfig
	sender Sender
	log    *logrus.Entry
}

// NewMailer builds a mailer backed by an SMTP dialer when cfg.Host is set.
func NewMailer(cfg SMTPConfig, log *logrus.Entry) *Mailer {
	m := &Mailer{cfg: cfg, log: log}
	if cfg.Host != "" {
		m.sender = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	}
	return m
}

// WithSender replaces the transport.
func (m *Mailer) WithSender(s Sender) *Mailer {
	m.sender = s
	return m
}

// SendBookingConfirmation mails the guest a summary of the confirmed
// booking.  Without a transport or a recipient it only logs the message.
func (m *Mailer) SendBookingConfirmation(ctx context.Context, ev queue.BookingConfirmedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	subject := fmt.Sprintf("Xác nhận đặt phòng #%s", shortID(ev.OrderID))
	body := confirmationBody(ev)

	if m.sender == nil || strings.TrimSpace(ev.CustomerEmail) == "" {
		m.log.WithFields(logrus.Fields{
			"to":       ev.CustomerEmail,
			"order_id": ev.OrderID,
			"subject":  subject,
		}).Info("[MOCK EMAIL] booking confirmation")
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", ev.CustomerEmail)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	if err := m.sender.DialAndSend(msg); err != nil {
		return fmt.Errorf("send confirmation: %w", err)
	}
	m.log.WithField("order_id", ev.OrderID).Info("confirmation mail sent")
	return nil
}

func confirmationBody(ev queue.BookingConfirmedEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Xin chào %s,\n\n", ev.CustomerName)
	fmt.Fprintf(&b, "Đặt phòng của bạn đã được xác nhận.\n\n")
	fmt.Fprintf(&b, "Phòng: %s\n", ev.RoomTitle)
	fmt.Fprintf(&b, "Nhận phòng: %s\n", ev.CheckIn)
	if ev.CheckOut != "" {
		fmt.Fprintf(&b, "Trả phòng: %s\n", ev.CheckOut)
	}
	if ev.Duration != "" {
		fmt.Fprintf(&b, "Thời gian: %s\n", ev.Duration)
	}
	fmt.Fprintf(&b, "Số tiền: %d VND\n", ev.Amount)
	if ev.TransactionRef != "" {
		fmt.Fprintf(&b, "Mã giao dịch: %s\n", ev.TransactionRef)
	}
	b.WriteString("\nCảm ơn bạn đã lựa chọn chúng tôi.\n")
	return b.String()
}

func shortID(id string) string {
	r := []rune(id)
	if len(r) <= 6 {
		return strings.ToUpper(id)
	}
	return strings.ToUpper(string(r[len(r)-6:]))
}
