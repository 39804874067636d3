// Package provider defines the outbound delivery interfaces. The gateway
// ships with a logging implementation for development; real carrier
// integrations plug in behind the same interfaces.
package provider

import (
	"context"
	"log/slog"

	"github.com/pigeonhq/pigeon/internal/model"
)

// SMSSender delivers an SMS notification to a carrier.
type SMSSender interface {
	SendSMS(ctx context.Context, n model.Notification) error
}

// PushSender delivers a push notification to a push gateway.
type PushSender interface {
	SendPush(ctx context.Context, n model.Notification) error
}

// LogProvider records deliveries to the structured log instead of sending
// them anywhere. Default in local and test environments.
type LogProvider struct {
	logger *slog.Logger
}

// NewLogProvider creates a LogProvider.
func NewLogProvider(logger *slog.Logger) *LogProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProvider{logger: logger}
}

func (p *LogProvider) SendSMS(ctx context.Context, n model.Notification) error {
	p.logger.InfoContext(ctx, "sms delivered",
		"notification_id", n.ID,
		"service_id", n.ServiceID,
		"template_id", n.TemplateID,
	)
	return nil
}

func (p *LogProvider) SendPush(ctx context.Context, n model.Notification) error {
	p.logger.InfoContext(ctx, "push delivered",
		"notification_id", n.ID,
		"service_id", n.ServiceID,
		"template_id", n.TemplateID,
	)
	return nil
}
