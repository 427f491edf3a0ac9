package utils

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"time"

	"gopkg.in/gomail.v2"

	"crmpanel/config"
)

var resetEmailTemplate = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Password Reset</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .otp-code { font-size: 24px; font-weight: bold; color: #3498db; margin: 20px 0; text-align: center; }
        .footer { margin-top: 30px; font-size: 12px; color: #7f8c8d; text-align: center; }
    </style>
</head>
<body>
    <h2>Password Reset Code</h2>
    <p>Hello,</p>
    <p>Use this code to reset your password:</p>
    <div class="otp-code">{{.OTP}}</div>
    <p>The code expires in 10 minutes. If you didn't request a reset, you can ignore this email.</p>
    <div class="footer">© {{.Year}} CRM Panel</div>
</body>
</html>`))

// SendPasswordResetOTPEmail delivers the reset code over SMTP.
func SendPasswordResetOTPEmail(to, otp string) error {
	cfg := config.AppConfig
	if cfg.SMTPHost == "" {
		return fmt.Errorf("SMTP is not configured")
	}

	port, err := strconv.Atoi(cfg.SMTPPort)
	if err != nil {
		return fmt.Errorf("invalid SMTP port %q: %w", cfg.SMTPPort, err)
	}

	var body bytes.Buffer
	if err := resetEmailTemplate.Execute(&body, map[string]interface{}{
		"OTP":  otp,
		"Year": time.Now().Year(),
	}); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", cfg.FromEmail)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Your password reset code")
	m.SetBody("text/html", body.String())

	d := gomail.NewDialer(cfg.SMTPHost, port, cfg.SMTPUsername, cfg.SMTPPassword)
	return d.DialAndSend(m)
}
