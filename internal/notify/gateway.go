// ABOUTME: HTTP gateway notifier posting email and SMS alerts via resty
// ABOUTME: Best-effort delivery with retries; errors never propagate to callers

package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/sjoekim64/dxchart/internal/config"
)

// GatewayNotifier posts notifications to an external email/SMS gateway.
type GatewayNotifier struct {
	client *resty.Client
	cfg    config.NotifyConfig
	logger *slog.Logger
}

// gatewayResponse is the gateway's delivery report.
type gatewayResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// NewGatewayNotifier creates a notifier targeting the configured gateway.
func NewGatewayNotifier(cfg config.NotifyConfig) *GatewayNotifier {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetHeader("Content-Type", "application/json")

	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}

	return &GatewayNotifier{
		client: client,
		cfg:    cfg,
		logger: slog.Default().With("component", "notify"),
	}
}

// Notify delivers the message over each configured channel. Delivery is
// best-effort: a channel that fails is logged and reported false in the
// receipt, never surfaced as an error.
func (n *GatewayNotifier) Notify(ctx context.Context, msg Message) Receipt {
	var receipt Receipt

	if n.cfg.EmailTo != "" {
		receipt.Email = n.sendEmail(ctx, msg)
	}
	if n.cfg.SMSTo != "" {
		receipt.SMS = n.sendSMS(ctx, msg)
	}

	n.logger.Info("notification dispatched",
		"kind", msg.Kind,
		"username", msg.Username,
		"email", receipt.Email,
		"sms", receipt.SMS)

	return receipt
}

func (n *GatewayNotifier) sendEmail(ctx context.Context, msg Message) bool {
	body := map[string]any{
		"from":    n.cfg.EmailFrom,
		"to":      n.cfg.EmailTo,
		"subject": emailSubject(msg),
		"text":    messageText(msg),
	}

	var result gatewayResponse
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post("/v1/email")

	if err != nil {
		n.logger.Warn("email notification failed", "error", err)
		return false
	}
	if resp.IsError() || !result.Success {
		n.logger.Warn("email notification rejected",
			"status", resp.StatusCode(), "error", result.Error)
		return false
	}
	return true
}

func (n *GatewayNotifier) sendSMS(ctx context.Context, msg Message) bool {
	body := map[string]any{
		"to":   n.cfg.SMSTo,
		"text": messageText(msg),
	}

	var result gatewayResponse
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post("/v1/sms")

	if err != nil {
		n.logger.Warn("sms notification failed", "error", err)
		return false
	}
	if resp.IsError() || !result.Success {
		n.logger.Warn("sms notification rejected",
			"status", resp.StatusCode(), "error", result.Error)
		return false
	}
	return true
}

func emailSubject(msg Message) string {
	switch msg.Kind {
	case KindRegistration:
		return "New registration pending approval: " + msg.Username
	case KindApproval:
		return "Account approved: " + msg.Username
	default:
		return "Account notification: " + msg.Username
	}
}

func messageText(msg Message) string {
	text := string(msg.Kind) + " for user " + msg.Username
	if msg.ClinicName != "" {
		text += " (" + msg.ClinicName
		if msg.TherapistName != "" {
			text += ", " + msg.TherapistName
		}
		text += ")"
	}
	return text
}

var _ Notifier = (*GatewayNotifier)(nil)
