// Package domain defines the bank gateway contract and wire shapes.
package domain

import (
	"context"
	"strings"

	boletodomain "github.com/smallbiznis/cobranca/internal/boleto/domain"
)

// IssueRequest is the registrarTitulo shape sent to the bank. Identifier
// fields (product, negotiation, agreement) come from configuration; the rest
// is derived from the fatura.
type IssueRequest struct {
	ProductID       int64   `json:"produto"`
	NegotiationID   string  `json:"negociacao,omitempty"`
	AgreementNo     string  `json:"nuCPFCNPJ,omitempty"`
	Carteira        int64   `json:"carteira"`
	Especie         string  `json:"especieTitulo"`
	NumeroDocumento string  `json:"numeroDocumento"`
	Valor           float64 `json:"valor"`
	Vencimento      string  `json:"vencimento"`
	PagadorNome     string  `json:"nomePagador"`
	PagadorDocument string  `json:"documentoPagador"`
	PagadorEndereco string  `json:"enderecoPagador,omitempty"`
	PagadorCEP      string  `json:"cepPagador,omitempty"`
	PagadorCidade   string  `json:"cidadePagador,omitempty"`
	PagadorUF       string  `json:"ufPagador,omitempty"`
}

// BoletoResponse is the shape both registrarTitulo and consultarTitulo
// return. The fake client must produce exactly this shape too.
type BoletoResponse struct {
	NossoNumero     string  `json:"nossoNumero"`
	NumeroDocumento string  `json:"numeroDocumento"`
	ExternalID      string  `json:"idTitulo,omitempty"`
	Valor           float64 `json:"valor"`
	Vencimento      string  `json:"vencimento"`
	Status          string  `json:"status"`
	LinhaDigitavel  string  `json:"linhaDigitavel,omitempty"`
	CodigoBarras    string  `json:"codigoBarras,omitempty"`
	ValorPago       float64 `json:"valorPago,omitempty"`
	DataLiquidacao  string  `json:"dataLiquidacao,omitempty"`
	URLPDF          string  `json:"urlPDF,omitempty"`
}

// LookupKey identifies a registered boleto at the bank. ExternalID wins when
// both are present.
type LookupKey struct {
	ExternalID  string
	NossoNumero string
}

type Client interface {
	IssueBoleto(ctx context.Context, req *IssueRequest) (*BoletoResponse, error)
	GetBoleto(ctx context.Context, key LookupKey) (*BoletoResponse, error)
	CancelBoleto(ctx context.Context, key LookupKey) (*BoletoResponse, error)
	// FetchPDF downloads the slip document when the bank does not expose a
	// direct URL in the response.
	FetchPDF(ctx context.Context, key LookupKey) ([]byte, error)
}

// MapStatus folds the bank's free status vocabulary into the closed internal
// enum at the client boundary. The second return is false for vocabulary we
// have never seen, in which case callers keep the current status.
func MapStatus(raw string) (boletodomain.Status, bool) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), " ", ""))
	switch normalized {
	case "PENDENTE", "EMPROCESSAMENTO":
		return boletodomain.StatusPendente, true
	case "REGISTRADO", "EMABERTO", "ABERTO", "EMITIDO":
		return boletodomain.StatusRegistrado, true
	case "PAGO", "LIQUIDADO", "PAGOTOTAL":
		return boletodomain.StatusPago, true
	case "CANCELADO", "BAIXADO", "BAIXADOPORSOLICITACAO":
		return boletodomain.StatusCancelado, true
	default:
		return "", false
	}
}
