// Package client implements the live Bradesco gateway over mTLS.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/smallbiznis/cobranca/internal/bank/domain"
	bankconfigdomain "github.com/smallbiznis/cobranca/internal/bankconfig/domain"
	bankconfigservice "github.com/smallbiznis/cobranca/internal/bankconfig/service"
	"github.com/smallbiznis/cobranca/internal/config"
	obsmetrics "github.com/smallbiznis/cobranca/internal/observability/metrics"
	"github.com/smallbiznis/cobranca/pkg/mtls"
	"go.uber.org/zap"
)

const (
	issuePath  = "/boleto/cobranca-registro/v1/titulos"
	lookupPath = "/boleto/cobranca-consulta/v1/titulos"
	cancelPath = "/boleto/cobranca-baixa/v1/titulos"
	pdfPath    = "/boleto/cobranca-pdf/v1/titulos"
)

type Client struct {
	log     *zap.Logger
	cfg     config.Config
	tokens  *bankconfigservice.Service
	metrics *obsmetrics.Metrics

	mu   sync.Mutex
	http *http.Client
}

func New(log *zap.Logger, cfg config.Config, tokens *bankconfigservice.Service, metrics *obsmetrics.Metrics) *Client {
	return &Client{
		log:     log.Named("bank.client"),
		cfg:     cfg,
		tokens:  tokens,
		metrics: metrics,
	}
}

func (c *Client) IssueBoleto(ctx context.Context, req *domain.IssueRequest) (*domain.BoletoResponse, error) {
	resp, err := c.post(ctx, issuePath, req)
	c.metrics.BankCall("issue", outcomeFor(err))
	return resp, err
}

func (c *Client) GetBoleto(ctx context.Context, key domain.LookupKey) (*domain.BoletoResponse, error) {
	resp, err := c.get(ctx, lookupPath, key)
	c.metrics.BankCall("lookup", outcomeFor(err))
	return resp, err
}

func (c *Client) CancelBoleto(ctx context.Context, key domain.LookupKey) (*domain.BoletoResponse, error) {
	payload := map[string]string{}
	if key.ExternalID != "" {
		payload["idTitulo"] = key.ExternalID
	}
	if key.NossoNumero != "" {
		payload["nossoNumero"] = key.NossoNumero
	}
	resp, err := c.post(ctx, cancelPath, payload)
	c.metrics.BankCall("cancel", outcomeFor(err))
	return resp, err
}

func (c *Client) FetchPDF(ctx context.Context, key domain.LookupKey) ([]byte, error) {
	body, _, err := c.do(ctx, http.MethodGet, pdfPath+"?"+lookupQuery(key), nil)
	c.metrics.BankCall("pdf", outcomeFor(err))
	if err != nil {
		return nil, err
	}
	return body, nil
}

// outcomeFor buckets a call result by the bank error taxonomy.
func outcomeFor(err error) string {
	switch {
	case err == nil:
		return obsmetrics.OutcomeOK
	case domain.IsAPIError(err):
		return obsmetrics.OutcomeRejected
	case errors.Is(err, domain.ErrMalformedResponse):
		return obsmetrics.OutcomeMalformed
	default:
		return obsmetrics.OutcomeTransport
	}
}

func (c *Client) post(ctx context.Context, path string, payload any) (*domain.BoletoResponse, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	body, _, err := c.do(ctx, http.MethodPost, path, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	return decodeBoleto(body)
}

func (c *Client) get(ctx context.Context, path string, key domain.LookupKey) (*domain.BoletoResponse, error) {
	body, _, err := c.do(ctx, http.MethodGet, path+"?"+lookupQuery(key), nil)
	if err != nil {
		return nil, err
	}
	return decodeBoleto(body)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) ([]byte, int, error) {
	bankCfg, err := c.tokens.ResolveConfig(ctx, c.cfg.BankCode)
	if err != nil {
		return nil, 0, err
	}
	bankCfg, err = c.tokens.RefreshAccessToken(ctx, bankCfg, false)
	if err != nil {
		return nil, 0, err
	}

	httpClient, err := c.httpClient(bankCfg)
	if err != nil {
		return nil, 0, err
	}

	base := bankCfg.Setting("base_url")
	if base == "" {
		base = c.cfg.BankBaseURL
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(base, "/")+path, body)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+bankCfg.AccessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, 0, &domain.TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &domain.TransportError{Op: method + " " + path, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, apiError(resp.StatusCode, raw)
	}
	return raw, resp.StatusCode, nil
}

// httpClient lazily builds the mTLS transport from the resolved credential
// record and reuses it across calls.
func (c *Client) httpClient(bankCfg *bankconfigdomain.BankAPIConfig) (*http.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.http != nil {
		return c.http, nil
	}
	httpClient, err := mtls.NewHTTPClient(bankCfg.CertPath, bankCfg.KeyPath, c.cfg.BankTimeout)
	if err != nil {
		return nil, err
	}
	c.http = httpClient
	return c.http, nil
}

func decodeBoleto(raw []byte) (*domain.BoletoResponse, error) {
	var parsed domain.BoletoResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	if parsed.NossoNumero == "" && parsed.Status == "" {
		return nil, fmt.Errorf("%w: response missing nossoNumero and status", domain.ErrMalformedResponse)
	}
	return &parsed, nil
}

type bankErrorBody struct {
	Codigo   string `json:"codigo"`
	Mensagem string `json:"mensagem"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

func apiError(status int, raw []byte) error {
	var parsed bankErrorBody
	_ = json.Unmarshal(raw, &parsed)
	code := parsed.Codigo
	if code == "" {
		code = parsed.Code
	}
	message := parsed.Mensagem
	if message == "" {
		message = parsed.Message
	}
	if message == "" {
		message = strings.TrimSpace(string(raw))
	}
	return &domain.APIError{HTTPStatus: status, Code: code, Message: message}
}

func lookupQuery(key domain.LookupKey) string {
	values := url.Values{}
	if key.ExternalID != "" {
		values.Set("idTitulo", key.ExternalID)
	}
	if key.NossoNumero != "" {
		values.Set("nossoNumero", key.NossoNumero)
	}
	return values.Encode()
}
