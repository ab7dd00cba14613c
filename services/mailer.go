package services

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/borderlesste/cavb-visa-sub000/models"

	"gopkg.in/gomail.v2"
)

// Mailer sends transactional email over SMTP. Every send is best-effort:
// a missing SMTP config or a delivery failure is logged and reported as a
// Skipped outcome, never as an error to the caller.
type Mailer struct{}

func NewMailer() *Mailer {
	return &Mailer{}
}

func (m *Mailer) SendVerificationEmail(to, firstName, token string) Outcome {
	appURL := os.Getenv("APP_URL")
	link := fmt.Sprintf("%s/verify-email/%s", appURL, token)
	body := fmt.Sprintf(
		"<p>Hello %s,</p><p>Welcome! Please confirm your email address by clicking the link below:</p><p><a href=\"%s\">Verify my email</a></p><p>The link expires in 24 hours.</p>",
		firstName, link,
	)
	return m.send(to, "Verify your email address", body)
}

func (m *Mailer) SendDecisionEmail(to, firstName string, app *models.Application) Outcome {
	var body string
	switch app.Status {
	case models.StatusApproved:
		body = fmt.Sprintf(
			"<p>Hello %s,</p><p>Your %s application has been <b>approved</b>. You can now schedule your appointment.</p>",
			firstName, models.VisaTypeLabel(app.VisaType),
		)
	case models.StatusRejected:
		body = fmt.Sprintf(
			"<p>Hello %s,</p><p>Unfortunately your %s application has been rejected. Check your notifications for details.</p>",
			firstName, models.VisaTypeLabel(app.VisaType),
		)
	default:
		return Skipped("no email for status " + string(app.Status))
	}
	return m.send(to, "Update on your visa application", body)
}

func (m *Mailer) SendAppointmentEmail(to, firstName string, appt *models.Appointment) Outcome {
	body := fmt.Sprintf(
		"<p>Hello %s,</p><p>Your appointment is confirmed for <b>%s at %s</b>.</p><p>Location: %s</p><p>Your confirmation letter is available in your account.</p>",
		firstName, appt.Date, appt.Time, appt.Location,
	)
	return m.send(to, "Appointment confirmation", body)
}

func (m *Mailer) send(to, subject, htmlBody string) Outcome {
	host := os.Getenv("SMTP_HOST")
	user := os.Getenv("SMTP_USER")
	pass := os.Getenv("SMTP_PASSWORD")
	if host == "" || user == "" {
		log.Printf("email to %s skipped: SMTP not configured", to)
		return Skipped("smtp not configured")
	}

	port, err := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if err != nil {
		port = 587
	}

	from := os.Getenv("SMTP_FROM")
	if from == "" {
		from = user
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	dialer := gomail.NewDialer(host, port, user, pass)
	if err := dialer.DialAndSend(msg); err != nil {
		log.Printf("email to %s failed: %v", to, err)
		return Skipped(err.Error())
	}
	return Delivered()
}
