package pdf

import "context"

type Provider interface {
	GenerateInvoice(ctx context.Context, data InvoiceData) ([]byte, error)
}

type NoOpProvider struct{}

func (p *NoOpProvider) GenerateInvoice(ctx context.Context, data InvoiceData) ([]byte, error) {
	return nil, nil
}
