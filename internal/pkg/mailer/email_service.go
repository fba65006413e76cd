// FILE: internal/pkg/mailer/email_service.go
package mailer

import (
	"fmt"
	"time"

	"gopkg.in/gomail.v2"
)

type IEmailService interface {
	SendExpiryWarning(toEmail, fullName, planName string, endDate time.Time, daysLeft int) error
	SendGraceNotice(toEmail, fullName string, graceEndsAt time.Time) error
	SendExpiredNotice(toEmail, fullName string) error
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
}

func NewEmailService(host string, port int, username, password, senderEmail string) IEmailService {
	d := gomail.NewDialer(host, port, username, password)

	return &emailService{
		dialer:      d,
		senderEmail: senderEmail,
	}
}

func (s *emailService) SendExpiryWarning(toEmail, fullName, planName string, endDate time.Time, daysLeft int) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.senderEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", fmt.Sprintf("Your VIP membership expires in %d day(s)", daysLeft))

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Hi %s,</h2>
			<p>Your <b>%s</b> VIP membership expires on <b>%s</b>.</p>
			<p>Renew from the app to keep unlimited translations, video calls and profile boosts.</p>
			<p>If auto-renew is on, no action is needed.</p>
		</div>
	`, fullName, planName, endDate.Format("January 2, 2006"))

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send expiry warning to %s: %v\n", toEmail, err)
		return err
	}

	fmt.Printf("[MAILER] Expiry warning sent to %s\n", toEmail)
	return nil
}

func (s *emailService) SendGraceNotice(toEmail, fullName string, graceEndsAt time.Time) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.senderEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", "There was a problem renewing your VIP membership")

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Hi %s,</h2>
			<p>We could not confirm your latest VIP renewal. Your benefits stay active until <b>%s</b>.</p>
			<p>Please check your payment method in the App Store or Google Play to avoid losing access.</p>
		</div>
	`, fullName, graceEndsAt.Format("January 2, 2006 15:04 MST"))

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send grace notice to %s: %v\n", toEmail, err)
		return err
	}

	fmt.Printf("[MAILER] Grace notice sent to %s\n", toEmail)
	return nil
}

func (s *emailService) SendExpiredNotice(toEmail, fullName string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.senderEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", "Your VIP membership has ended")

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Hi %s,</h2>
			<p>Your VIP membership has ended and your account is back on the free tier.</p>
			<p>You can re-subscribe anytime from the app to get your benefits back.</p>
		</div>
	`, fullName)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send expired notice to %s: %v\n", toEmail, err)
		return err
	}

	fmt.Printf("[MAILER] Expired notice sent to %s\n", toEmail)
	return nil
}
