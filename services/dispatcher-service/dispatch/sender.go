package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/smtp"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"civic-reporting-system/pkg/config"
)

type EmailSender interface {
	SendEmail(ctx context.Context, m Email) error
}

type WhatsAppSender interface {
	SendWhatsApp(ctx context.Context, to, body string) error
}

// SMTPSender delivers plain-text mail through an SMTP relay.
type SMTPSender struct {
	addr     string
	from     string
	auth     smtp.Auth
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPSender{
		addr:     cfg.Host + ":" + strconv.Itoa(cfg.Port),
		from:     cfg.From,
		auth:     auth,
		sendMail: smtp.SendMail,
	}
}

func (s *SMTPSender) SendEmail(ctx context.Context, m Email) error {
	if len(m.To) == 0 {
		return fmt.Errorf("email %q has no recipients", m.Subject)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	rcpt := append(append([]string{}, m.To...), m.CC...)
	if err := s.sendMail(s.addr, s.auth, s.from, rcpt, s.compose(m)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", strings.Join(m.To, ","), err)
	}
	return nil
}

func (s *SMTPSender) compose(m Email) []byte {
	var b strings.Builder
	b.WriteString("From: " + s.from + "\r\n")
	b.WriteString("To: " + strings.Join(m.To, ", ") + "\r\n")
	if len(m.CC) > 0 {
		b.WriteString("Cc: " + strings.Join(m.CC, ", ") + "\r\n")
	}
	b.WriteString("Subject: " + m.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(m.Body)
	return []byte(b.String())
}

const twilioBaseURL = "https://api.twilio.com/2010-04-01"

// TwilioSender posts WhatsApp messages to the Twilio Messages API.
type TwilioSender struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	client     *http.Client
}

func NewTwilioSender(cfg config.TwilioConfig) *TwilioSender {
	return &TwilioSender{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.WhatsAppNumber,
		baseURL:    twilioBaseURL,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *TwilioSender) SendWhatsApp(ctx context.Context, to, body string) error {
	formattedTo := FormatWhatsAppNumber(to)
	if formattedTo == "" {
		return fmt.Errorf("invalid whatsapp number %q", to)
	}

	form := url.Values{}
	form.Set("To", formattedTo)
	form.Set("From", FormatWhatsAppNumber(s.from))
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", s.baseURL, s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("twilio request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr twilioError
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("twilio error %d: %s", apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("twilio returned %s", resp.Status)
	}
	return nil
}

// FormatWhatsAppNumber returns the whatsapp:+<number> address Twilio expects.
// Ten digit numbers without a country code are taken as Indian mobiles.
func FormatWhatsAppNumber(number string) string {
	number = strings.TrimSpace(strings.ReplaceAll(number, "whatsapp:", ""))
	if number == "" {
		return ""
	}
	if !strings.HasPrefix(number, "+") {
		switch {
		case strings.HasPrefix(number, "91"):
			number = "+" + number
		case len(number) == 10:
			number = "+91" + number
		default:
			number = "+" + number
		}
	}
	return "whatsapp:" + number
}

// LogSender stands in for a channel that is not configured.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) SendEmail(_ context.Context, m Email) error {
	s.logger.Info("email delivery not configured, logging instead",
		zap.Strings("to", m.To),
		zap.Strings("cc", m.CC),
		zap.String("subject", m.Subject),
	)
	return nil
}

func (s *LogSender) SendWhatsApp(_ context.Context, to, body string) error {
	s.logger.Info("whatsapp delivery not configured, logging instead",
		zap.String("to", to),
		zap.Int("length", len(body)),
	)
	return nil
}
