// Package fake is a deterministic in-memory bank client for sandbox and
// tests. It produces the exact response shape of the live client so callers
// cannot tell which implementation is wired in.
package fake

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/smallbiznis/cobranca/internal/bank/domain"
)

type Client struct {
	mu      sync.Mutex
	issued  map[string]*domain.BoletoResponse
	byNosso map[string]string
}

func New() *Client {
	return &Client{
		issued:  make(map[string]*domain.BoletoResponse),
		byNosso: make(map[string]string),
	}
}

func (c *Client) IssueBoleto(ctx context.Context, req *domain.IssueRequest) (*domain.BoletoResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	seed := digest(req.NumeroDocumento)
	externalID := fmt.Sprintf("fake-%d", seed)
	if existing, ok := c.issued[externalID]; ok {
		return clone(existing), nil
	}

	nossoNumero := fmt.Sprintf("%012d", seed%1_000_000_000_000)
	resp := &domain.BoletoResponse{
		NossoNumero:     nossoNumero,
		NumeroDocumento: req.NumeroDocumento,
		ExternalID:      externalID,
		Valor:           req.Valor,
		Vencimento:      req.Vencimento,
		Status:          "REGISTRADO",
		LinhaDigitavel:  fmt.Sprintf("23790.%05d %05d.%06d %05d.%06d 1 %014d", seed%100000, seed%100000, seed%1000000, seed%100000, seed%1000000, seed%100000000000000),
		CodigoBarras:    fmt.Sprintf("2379%040d", seed),
		URLPDF:          fmt.Sprintf("https://sandbox.invalid/boletos/%s.pdf", nossoNumero),
	}
	c.issued[externalID] = resp
	c.byNosso[nossoNumero] = externalID
	return clone(resp), nil
}

func (c *Client) GetBoleto(ctx context.Context, key domain.LookupKey) (*domain.BoletoResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	resp, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return clone(resp), nil
}

func (c *Client) CancelBoleto(ctx context.Context, key domain.LookupKey) (*domain.BoletoResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	resp, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	if resp.Status == "LIQUIDADO" {
		return nil, &domain.APIError{HTTPStatus: 422, Code: "93", Message: "titulo ja liquidado"}
	}
	resp.Status = "BAIXADO"
	return clone(resp), nil
}

func (c *Client) FetchPDF(ctx context.Context, key domain.LookupKey) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	resp, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return []byte("%PDF-1.4 fake boleto " + resp.NossoNumero), nil
}

// Settle flips an issued boleto to paid. Test hook, not part of the Client
// contract.
func (c *Client) Settle(ref string, amount float64, when time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	resp, err := c.lookup(domain.LookupKey{ExternalID: ref, NossoNumero: ref})
	if err != nil {
		return false
	}
	resp.Status = "LIQUIDADO"
	resp.ValorPago = amount
	resp.DataLiquidacao = when.Format("2006-01-02")
	return true
}

func (c *Client) lookup(key domain.LookupKey) (*domain.BoletoResponse, error) {
	if key.ExternalID != "" {
		if resp, ok := c.issued[key.ExternalID]; ok {
			return resp, nil
		}
	}
	if key.NossoNumero != "" {
		if externalID, ok := c.byNosso[key.NossoNumero]; ok {
			return c.issued[externalID], nil
		}
	}
	return nil, &domain.APIError{HTTPStatus: 404, Code: "01", Message: "titulo nao encontrado"}
}

func digest(value string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(value))
	return h.Sum64()
}

func clone(resp *domain.BoletoResponse) *domain.BoletoResponse {
	copied := *resp
	return &copied
}
