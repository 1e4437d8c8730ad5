package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/smallbiznis/settlekit/internal/invoice/domain"
	"github.com/smallbiznis/settlekit/internal/invoice/render"
	"github.com/smallbiznis/settlekit/internal/providers/email"
	"github.com/smallbiznis/settlekit/internal/providers/pdf"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var errNoRecipient = errors.New("buyer_has_no_email")

type NotifierParams struct {
	fx.In

	Log      *zap.Logger
	Email    email.Provider
	PDF      pdf.Provider `optional:"true"`
	Renderer render.Renderer
}

// EmailNotifier sends the invoice as an HTML email with a PDF copy attached.
// Transient send errors are retried with exponential backoff inside one call.
type EmailNotifier struct {
	log        *zap.Logger
	email      email.Provider
	pdf        pdf.Provider
	renderer   render.Renderer
	maxRetries uint64
	newBackOff func() *backoff.ExponentialBackOff
}

func NewEmailNotifier(p NotifierParams) domain.Notifier {
	return &EmailNotifier{
		log:        p.Log.Named("invoice.notifier"),
		email:      p.Email,
		pdf:        p.PDF,
		renderer:   p.Renderer,
		maxRetries: 2,
		newBackOff: func() *backoff.ExponentialBackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			b.MaxElapsedTime = 15 * time.Second
			return b
		},
	}
}

func (n *EmailNotifier) SendInvoice(ctx context.Context, invoice domain.Invoice) domain.DeliveryOutcome {
	outcome := domain.DeliveryOutcome{Provider: n.email.Name()}

	input := render.InputFor(invoice, render.Brand{})
	to := strings.TrimSpace(input.Buyer.Email)
	if to == "" {
		outcome.Error = errNoRecipient.Error()
		return outcome
	}

	html, err := n.renderer.RenderHTML(input)
	if err != nil {
		outcome.Error = "render: " + err.Error()
		return outcome
	}

	msg := email.Message{
		To:       []string{to},
		Subject:  "Your invoice " + invoice.InvoiceNumber,
		HTMLBody: html,
		Tags:     map[string]string{"category": "invoice"},
	}
	if attachment, err := n.attachment(ctx, input); err != nil {
		n.log.Warn("invoice pdf not generated, sending without attachment",
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.Error(err),
		)
	} else if attachment != nil {
		msg.Attachments = append(msg.Attachments, *attachment)
	}

	var messageID string
	operation := func() error {
		id, err := n.email.Send(ctx, msg)
		if err != nil {
			return err
		}
		messageID = id
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(n.newBackOff(), n.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	outcome.Success = true
	outcome.MessageID = messageID
	return outcome
}

func (n *EmailNotifier) attachment(ctx context.Context, input render.RenderInput) (*email.Attachment, error) {
	if n.pdf == nil {
		return nil, nil
	}
	doc, err := n.pdf.GenerateInvoice(ctx, pdfData(input))
	if err != nil {
		return nil, err
	}
	if len(doc) == 0 {
		return nil, nil
	}
	return &email.Attachment{
		Filename:    input.Invoice.InvoiceNumber + ".pdf",
		ContentType: "application/pdf",
		Content:     doc,
	}, nil
}

func pdfData(input render.RenderInput) pdf.InvoiceData {
	pricing := input.Pricing
	buyerName := input.Buyer.Name
	if input.Buyer.IsBusiness && input.Buyer.CompanyName != "" {
		buyerName = input.Buyer.CompanyName
	}
	return pdf.InvoiceData{
		InvoiceNumber:   input.Invoice.InvoiceNumber,
		IssueDate:       input.Invoice.IssueDate.UTC().Format("2006-01-02"),
		SellerName:      input.Seller.Name,
		SellerVATNumber: input.Seller.VATNumber,
		BuyerName:       buyerName,
		BuyerEmail:      input.Buyer.Email,
		BuyerCountry:    input.Buyer.CountryCode,
		BuyerVATNumber:  input.Buyer.VATNumber,
		Description:     pricing.Description,
		Net:             render.FormatMoney(pricing.NetAmount, pricing.Currency),
		VATLabel:        vatLabel(pricing.VATRate),
		VAT:             render.FormatMoney(pricing.VATAmount, pricing.Currency),
		Total:           render.FormatMoney(pricing.GrossAmount, pricing.Currency),
		ExemptionNote:   input.Invoice.VATExemptReason,
	}
}
