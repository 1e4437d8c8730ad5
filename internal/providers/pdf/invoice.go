package pdf

import (
	"context"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// InvoiceData holds preformatted strings; the PDF layer does no money math.
type InvoiceData struct {
	InvoiceNumber string
	IssueDate     string

	SellerName      string
	SellerVATNumber string

	BuyerName      string
	BuyerEmail     string
	BuyerCountry   string
	BuyerVATNumber string

	Description string
	Net         string
	VATLabel    string
	VAT         string
	Total       string

	ExemptionNote string
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateInvoice(ctx context.Context, invoice InvoiceData) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(10,
		text.NewCol(12, "Invoice", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(12,
		col.New(6).Add(
			text.New("Invoice number: "+invoice.InvoiceNumber, props.Text{Top: 0}),
			text.New("Date of issue: "+invoice.IssueDate, props.Text{Top: 4}),
		),
		col.New(6),
	)

	m.AddRow(30,
		col.New(6).Add(
			text.New(invoice.SellerName, props.Text{Style: fontstyle.Bold}),
			text.New(vatLine(invoice.SellerVATNumber), props.Text{Top: 5}),
		),
		col.New(6).Add(
			text.New("Bill to", props.Text{Style: fontstyle.Bold}),
			text.New(invoice.BuyerName, props.Text{Top: 5}),
			text.New(invoice.BuyerEmail, props.Text{Top: 9}),
			text.New(invoice.BuyerCountry, props.Text{Top: 13}),
			text.New(vatLine(invoice.BuyerVATNumber), props.Text{Top: 17}),
		),
	)

	m.AddRow(10,
		text.NewCol(10, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(15,
		text.NewCol(10, invoice.Description, props.Text{Size: 9}),
		text.NewCol(2, invoice.Net, props.Text{Size: 9, Align: align.Right}),
	)

	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Net", props.Text{Size: 9}),
		text.NewCol(2, invoice.Net, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, invoice.VATLabel, props.Text{Size: 9}),
		text.NewCol(2, invoice.VAT, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Total", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, invoice.Total, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	if invoice.ExemptionNote != "" {
		m.AddRow(15,
			text.NewCol(12, invoice.ExemptionNote, props.Text{Size: 8, Top: 5}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return doc.GetBytes(), nil
}

func vatLine(number string) string {
	if number == "" {
		return ""
	}
	return "VAT " + number
}
