package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

type Config struct {
	APIKey    string
	FromEmail string
	FromName  string
}

type ResendProvider struct {
	client *resend.Client
	log    *zap.Logger
	from   string
}

func NewResend(cfg Config, log *zap.Logger) *ResendProvider {
	return &ResendProvider{
		client: resend.NewClient(cfg.APIKey),
		log:    log.Named("email.resend"),
		from:   fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromEmail),
	}
}

func (p *ResendProvider) Name() string { return "resend" }

func (p *ResendProvider) Send(ctx context.Context, msg Message) (string, error) {
	if len(msg.To) == 0 {
		return "", errors.New("email has no recipients")
	}

	attachments := make([]*resend.Attachment, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		attachments = append(attachments, &resend.Attachment{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Content:     a.Content,
		})
	}

	params := &resend.SendEmailRequest{
		From:        p.from,
		To:          msg.To,
		Subject:     msg.Subject,
		Html:        msg.HTMLBody,
		Attachments: attachments,
		Headers: map[string]string{
			"X-Entity-Ref-ID": uuid.New().String(),
		},
		Tags: convertToResendTags(msg.Tags),
	}

	sent, err := p.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		p.log.Warn("failed to send email", zap.String("subject", msg.Subject), zap.Error(err))
		return "", fmt.Errorf("failed to send email: %w", err)
	}

	p.log.Info("email sent", zap.String("email_id", sent.Id), zap.String("subject", msg.Subject))
	return sent.Id, nil
}

func convertToResendTags(tags map[string]string) []resend.Tag {
	var resendTags []resend.Tag
	for name, value := range tags {
		resendTags = append(resendTags, resend.Tag{
			Name:  name,
			Value: value,
		})
	}
	return resendTags
}
