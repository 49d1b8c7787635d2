package pdf_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/smallbiznis/cobranca/internal/boleto/pdf"
)

func TestGenerateSlip(t *testing.T) {
	provider := pdf.New()

	doc, err := provider.GenerateSlip(context.Background(), pdf.SlipData{
		BancoNome:        "Bradesco",
		BankCode:         "237",
		Beneficiario:     "Cobranca Servicos Ltda",
		PagadorNome:      "M**** S****",
		PagadorDocumento: "123*****09",
		NossoNumero:      "000000012345",
		NumeroDocumento:  "FAT-2026-08-1",
		Valor:            "R$ 985,50",
		Vencimento:       "2026-09-15",
		LinhaDigitavel:   "23790.00116 60000.000013 23450.000003 1 98550000098550",
		CodigoBarras:     "23791985500000985500001160000000001323450000",
	})
	if err != nil {
		t.Fatalf("generate slip: %v", err)
	}
	if !bytes.HasPrefix(doc, []byte("%PDF")) {
		t.Fatalf("expected a pdf document, got %q", doc[:min(16, len(doc))])
	}
}

func TestGenerateSlipWithoutBarcode(t *testing.T) {
	provider := pdf.New()

	doc, err := provider.GenerateSlip(context.Background(), pdf.SlipData{
		BancoNome:      "Bradesco",
		BankCode:       "237",
		PagadorNome:    "A** C****",
		Vencimento:     "2026-09-20",
		Valor:          "R$ 100,00",
		LinhaDigitavel: "23790.00116 60000.000013 23450.000003 1 98550000010000",
	})
	if err != nil {
		t.Fatalf("generate slip: %v", err)
	}
	if len(doc) == 0 {
		t.Fatal("expected a document")
	}
}
