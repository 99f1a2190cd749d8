package services

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"binary-plan-engine/models"

	"gopkg.in/gomail.v2"
	"gorm.io/gorm"
)

// Notifier is the outbound notification sink. Every caller treats failures as
// best-effort: they are logged, never allowed to touch committed financial
// state.
type Notifier interface {
	NotifyMember(memberID, event string, payload map[string]interface{}) error
	SendReport(recipients []string, subject, htmlBody string) error
}

// EmailNotifier delivers member notifications and batch reports over SMTP.
type EmailNotifier struct {
	DB   *gorm.DB
	host string
	port int
	user string
	pass string
	from string
}

func NewEmailNotifier(db *gorm.DB) *EmailNotifier {
	port, err := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if err != nil {
		port = 587
	}
	return &EmailNotifier{
		DB:   db,
		host: os.Getenv("SMTP_HOST"),
		port: port,
		user: os.Getenv("SMTP_USER"),
		pass: os.Getenv("SMTP_PASS"),
		from: os.Getenv("FROM_EMAIL"),
	}
}

var notificationSubjects = map[string]string{
	"rank-achieved": "You reached a new rank! 🏆",
	"direct-bonus":  "Direct referral bonus credited 💰",
}

func (n *EmailNotifier) NotifyMember(memberID, event string, payload map[string]interface{}) error {
	var member models.Member
	if err := n.DB.First(&member, "id = ?", memberID).Error; err != nil {
		return fmt.Errorf("member lookup for notification: %w", err)
	}
	if member.Email == "" {
		log.Printf("⚠️ [NOTIFY] member %s has no email, dropping %s notification", memberID, event)
		return nil
	}

	subject, ok := notificationSubjects[event]
	if !ok {
		subject = event
	}

	body := fmt.Sprintf("<p>Hi %s,</p><p>Event: <b>%s</b></p><ul>", member.FullName, event)
	for k, v := range payload {
		body += fmt.Sprintf("<li>%s: %v</li>", k, v)
	}
	body += "</ul>"

	return n.send([]string{member.Email}, subject, body)
}

func (n *EmailNotifier) SendReport(recipients []string, subject, htmlBody string) error {
	if len(recipients) == 0 {
		log.Printf("⚠️ [NOTIFY] no report recipients configured, skipping %q", subject)
		return nil
	}
	return n.send(recipients, subject, htmlBody)
}

func (n *EmailNotifier) send(to []string, subject, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	d := gomail.NewDialer(n.host, n.port, n.user, n.pass)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	log.Printf("📧 [NOTIFY] sent %q to %d recipient(s)", subject, len(to))
	return nil
}

// LogNotifier is the dev/test sink: it only logs.
type LogNotifier struct{}

func (LogNotifier) NotifyMember(memberID, event string, payload map[string]interface{}) error {
	log.Printf("🔔 [NOTIFY] member=%s event=%s payload=%v", memberID, event, payload)
	return nil
}

func (LogNotifier) SendReport(recipients []string, subject, _ string) error {
	log.Printf("🔔 [NOTIFY] report %q to %v", subject, recipients)
	return nil
}
