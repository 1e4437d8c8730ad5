package render

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/settlekit/internal/invoice/domain"
)

const invoiceHTMLTemplate = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Invoice {{.Invoice.InvoiceNumber}}</title>
  <style>
    :root {
      --primary: {{.Brand.PrimaryColor}};
      --font: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
    }
    * { box-sizing: border-box; }
    body {
      margin: 0;
      padding: 40px;
      font-family: var(--font);
      color: #1a1f36;
      background: #f7f9fc;
      -webkit-font-smoothing: antialiased;
    }
    .invoice-card {
      background: #ffffff;
      max-width: 760px;
      margin: 0 auto;
      padding: 60px;
      box-shadow: 0 2px 5px rgba(0,0,0,0.04);
      border-radius: 4px;
    }
    .header {
      display: flex;
      justify-content: space-between;
      margin-bottom: 40px;
    }
    .header-left h1 {
      margin: 0;
      font-size: 24px;
      font-weight: 700;
      color: #1a1f36;
    }
    .header-right {
      text-align: right;
      font-weight: 600;
      color: #8792a2;
      font-size: 16px;
    }

    .meta-grid {
      display: flex;
      justify-content: space-between;
      margin-bottom: 40px;
    }
    .col {
      flex: 1;
    }
    .label {
      font-size: 11px;
      text-transform: uppercase;
      color: #8792a2;
      margin-bottom: 6px;
      font-weight: 600;
      letter-spacing: 0.3px;
    }
    .value {
      font-size: 14px;
      line-height: 1.5;
      color: #1a1f36;
    }

    .amount-section {
      margin-bottom: 40px;
    }
    .amount-large {
      font-size: 32px;
      font-weight: 700;
      color: #1a1f36;
      margin-bottom: 4px;
    }
    .notice {
      font-size: 13px;
      color: #697386;
      border-left: 3px solid var(--primary);
      padding-left: 12px;
      margin-bottom: 30px;
    }

    table {
      width: 100%;
      border-collapse: collapse;
      margin-bottom: 30px;
    }
    th {
      text-align: left;
      text-transform: uppercase;
      font-size: 11px;
      color: #8792a2;
      border-bottom: 1px solid #e3e8ee;
      padding: 10px 0;
      font-weight: 600;
      letter-spacing: 0.3px;
    }
    td {
      padding: 16px 0;
      border-bottom: 1px solid #e3e8ee;
      font-size: 14px;
      color: #1a1f36;
      vertical-align: top;
    }
    .td-right { text-align: right; }

    .item-title { font-weight: 600; margin-bottom: 2px; }
    .item-sub { font-size: 12px; color: #697386; }

    .totals {
      width: 100%;
      display: flex;
      flex-direction: column;
      align-items: flex-end;
    }
    .total-row {
      display: flex;
      justify-content: space-between;
      width: 250px;
      padding: 6px 0;
      font-size: 14px;
    }
    .total-label { color: #697386; }
    .total-value { color: #1a1f36; text-align: right; font-weight: 500; }
    .total-final {
      border-top: 1px solid #e3e8ee;
      margin-top: 10px;
      padding-top: 10px;
      font-weight: 700;
      font-size: 16px;
      color: #1a1f36;
    }

    .footer {
      margin-top: 60px;
      font-size: 12px;
      color: #8792a2;
      border-top: 1px solid #e3e8ee;
      padding-top: 20px;
    }
    .mt-4 { margin-top: 4px; }
  </style>
</head>
<body>
  <div class="invoice-card">
    <div class="header">
      <div class="header-left">
        <h1>Invoice</h1>
        <div class="label mt-4" style="margin-top: 12px;">Invoice number</div>
        <div class="value">{{.Invoice.InvoiceNumber}}</div>
      </div>
      <div class="header-right">{{.Seller.Name}}</div>
    </div>

    <div class="meta-grid">
      <div class="col">
        <div class="label">Bill to</div>
        <div class="value">
          <strong>{{partyName .Buyer}}</strong><br>
          {{if .Buyer.Email}}{{.Buyer.Email}}<br>{{end}}
          {{if .Buyer.CountryCode}}{{.Buyer.CountryCode}}<br>{{end}}
          {{if .Buyer.VATNumber}}VAT {{.Buyer.VATNumber}}{{end}}
        </div>
      </div>
      <div class="col">
        <div class="label">Sold by</div>
        <div class="value">
          <strong>{{partyName .Seller}}</strong><br>
          {{if .Seller.VATNumber}}VAT {{.Seller.VATNumber}}{{end}}
        </div>
      </div>
      <div class="col" style="flex: 0 0 200px;">
        <div class="label">Date issued</div>
        <div class="value">{{formatDate .Invoice.IssueDate}}</div>
      </div>
    </div>

    <div class="amount-section">
      <div class="amount-large">{{formatMoney .Pricing.GrossAmount .Pricing.Currency}}</div>
      <div class="value" style="color: #697386;">paid in full</div>
    </div>

    <table>
      <thead>
        <tr>
          <th style="width: 70%;">Description</th>
          <th class="td-right">Amount</th>
        </tr>
      </thead>
      <tbody>
        <tr>
          <td><div class="item-title">{{.Pricing.Description}}</div></td>
          <td class="td-right" style="font-weight: 500;">{{formatMoney .Pricing.NetAmount .Pricing.Currency}}</td>
        </tr>
      </tbody>
    </table>

    <div class="totals">
      <div class="total-row">
        <span class="total-label">Net</span>
        <span class="total-value">{{formatMoney .Pricing.NetAmount .Pricing.Currency}}</span>
      </div>
      <div class="total-row">
        <span class="total-label">VAT{{if .Pricing.VATRate}} ({{formatRate .Pricing.VATRate}}){{end}}</span>
        <span class="total-value">{{formatMoney .Pricing.VATAmount .Pricing.Currency}}</span>
      </div>
      <div class="total-row total-final">
        <span class="total-label" style="color: #1a1f36;">Total</span>
        <span class="total-value">{{formatMoney .Pricing.GrossAmount .Pricing.Currency}}</span>
      </div>
    </div>

    {{if .Invoice.VATExemptReason}}
    <div class="notice">{{.Invoice.VATExemptReason}}</div>
    {{end}}

    {{if .Brand.FooterNotes}}
    <div class="footer">{{.Brand.FooterNotes}}</div>
    {{end}}
  </div>
</body>
</html>
`

var hexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type Brand struct {
	PrimaryColor string
	FooterNotes  string
}

type RenderInput struct {
	Invoice domain.Invoice
	Buyer   domain.Party
	Seller  domain.Party
	Pricing domain.PricingBreakdown
	Brand   Brand
}

type Renderer interface {
	RenderHTML(input RenderInput) (string, error)
}

type HTMLRenderer struct {
	tpl *template.Template
}

func NewRenderer() Renderer {
	funcs := template.FuncMap{
		"formatMoney": FormatMoney,
		"formatDate":  formatDate,
		"formatRate":  formatRate,
		"partyName":   partyName,
	}
	return &HTMLRenderer{
		tpl: template.Must(template.New("invoice").Funcs(funcs).Parse(invoiceHTMLTemplate)),
	}
}

// InputFor unpacks the JSON snapshots stored on inv.
func InputFor(inv domain.Invoice, brand Brand) RenderInput {
	return RenderInput{
		Invoice: inv,
		Buyer:   inv.Buyer.Data(),
		Seller:  inv.Seller.Data(),
		Pricing: inv.Pricing.Data(),
		Brand:   brand,
	}
}

func (r *HTMLRenderer) RenderHTML(input RenderInput) (string, error) {
	input.Brand.PrimaryColor = sanitizeColor(input.Brand.PrimaryColor)

	var buf bytes.Buffer
	if err := r.tpl.Execute(&buf, input); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// FormatMoney prints minor units as "GBP 12.34" without going through floats.
func FormatMoney(amount int64, currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "GBP"
	}
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s %s%d.%02d", currency, sign, amount/100, amount%100)
}

func formatDate(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.UTC().Format("2006-01-02")
}

func formatRate(value string) string {
	rate, err := decimal.NewFromString(value)
	if err != nil {
		return value
	}
	return rate.Mul(decimal.NewFromInt(100)).String() + "%"
}

func partyName(p domain.Party) string {
	if p.IsBusiness && strings.TrimSpace(p.CompanyName) != "" {
		return p.CompanyName
	}
	return p.Name
}

func sanitizeColor(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "#111827"
	}
	if hexColorPattern.MatchString(trimmed) {
		return trimmed
	}
	return "#111827"
}
