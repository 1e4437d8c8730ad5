package email

import "context"

type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

type Message struct {
	To          []string
	Subject     string
	HTMLBody    string
	Tags        map[string]string
	Attachments []Attachment
}

type Provider interface {
	Name() string
	// Send returns the provider's message id.
	Send(ctx context.Context, msg Message) (string, error)
}

// NoOpProvider accepts every message. Used when no API key is configured.
type NoOpProvider struct{}

func (p *NoOpProvider) Name() string { return "noop" }

func (p *NoOpProvider) Send(ctx context.Context, msg Message) (string, error) {
	return "", nil
}
