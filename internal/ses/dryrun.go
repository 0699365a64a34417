package ses

import (
	"context"

	"github.com/kmcoleman/bajarun-notify/internal/notify"
	"github.com/kmcoleman/bajarun-notify/internal/pkg/logger"
)

// DryRun is a delivery service that logs instead of sending. Used in local
// mode when no SES sender address is configured.
type DryRun struct{}

func (DryRun) Send(_ context.Context, msg notify.OutboundMessage) error {
	logger.Info("dry-run delivery",
		"recipient", msg.To,
		"subject", msg.Subject,
		"html_bytes", len(msg.HTML))
	return nil
}
