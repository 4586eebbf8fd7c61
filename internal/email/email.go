// Package email provides the Gmail connector backing the agent's
// send_gmail tool: RFC 5322 composition and SMTP delivery.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/errandhq/errand/internal/config"
)

// Sender composes and delivers messages through one SMTP account.
type Sender struct {
	logger *slog.Logger
	cfg    config.GmailConfig
}

// NewSender creates a Sender for the configured account.
func NewSender(logger *slog.Logger, cfg config.GmailConfig) *Sender {
	return &Sender{logger: logger, cfg: cfg}
}

// Configured reports whether the account can send mail.
func (s *Sender) Configured() bool {
	return s.cfg.Host != "" && s.cfg.Username != "" && s.cfg.From != ""
}

// Send composes a message from the markdown body and delivers it.
// Returns the generated Message-ID.
func (s *Sender) Send(ctx context.Context, to, subject, body string) (string, error) {
	if !s.Configured() {
		return "", fmt.Errorf("email: smtp account not configured")
	}
	if strings.TrimSpace(to) == "" {
		return "", fmt.Errorf("email: recipient is required")
	}

	msg, msgID, err := ComposeMessage(ComposeOptions{
		From:    s.cfg.From,
		To:      to,
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		return "", fmt.Errorf("email: compose: %w", err)
	}

	start := time.Now()
	if err := sendMail(ctx, s.cfg, extractAddress(s.cfg.From), []string{extractAddress(to)}, msg); err != nil {
		return "", fmt.Errorf("email: send: %w", err)
	}

	s.logger.Info("email sent",
		"to", extractAddress(to),
		"subject", subject,
		"elapsed", time.Since(start).Truncate(time.Millisecond),
	)
	return msgID, nil
}

// extractAddress extracts the bare email address from a string that
// may be in "Name <addr>" or just "addr" format.
func extractAddress(s string) string {
	if idx := len(s) - 1; idx > 0 && s[idx] == '>' {
		if start := strings.LastIndexByte(s, '<'); start >= 0 {
			return s[start+1 : idx]
		}
	}
	return s
}
