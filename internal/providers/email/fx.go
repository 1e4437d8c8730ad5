package email

import (
	"github.com/smallbiznis/settlekit/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.email",
	fx.Provide(NewFromConfig),
)

// NewFromConfig picks Resend when an API key is set and the no-op provider otherwise.
func NewFromConfig(cfg config.Config, log *zap.Logger) Provider {
	if cfg.Email.ResendAPIKey == "" {
		log.Warn("RESEND_API_KEY not set, invoice emails are not sent")
		return &NoOpProvider{}
	}
	return NewResend(Config{
		APIKey:    cfg.Email.ResendAPIKey,
		FromEmail: cfg.Email.FromEmail,
		FromName:  cfg.Email.FromName,
	}, log)
}
