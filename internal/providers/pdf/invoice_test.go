package pdf

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateInvoiceProducesPDF(t *testing.T) {
	doc, err := New().GenerateInvoice(context.Background(), InvoiceData{
		InvoiceNumber: "INV-2025-000001",
		IssueDate:     "2025-05-02",
		SellerName:    "Settlekit Ltd",
		BuyerName:     "Jo Bloggs",
		Description:   "Resource purchase",
		Net:           "GBP 8.33",
		VATLabel:      "VAT (20%)",
		VAT:           "GBP 1.67",
		Total:         "GBP 10.00",
	})
	require.NoError(t, err)
	require.NotEmpty(t, doc)
	assert.Equal(t, "%PDF", string(doc[:4]))
}
