// Package pdf renders a printable boleto slip for titles the bank
// registered without returning a document.
package pdf

import "context"

// SlipData carries the printable fields of a registered boleto. Values
// arrive pre-formatted; the renderer does no masking or currency math.
type SlipData struct {
	BancoNome        string
	BankCode         string
	Beneficiario     string
	PagadorNome      string
	PagadorDocumento string
	NossoNumero      string
	NumeroDocumento  string
	Valor            string
	Vencimento       string
	LinhaDigitavel   string
	CodigoBarras     string
}

type Provider interface {
	GenerateSlip(ctx context.Context, data SlipData) ([]byte, error)
}
