package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/smallbiznis/cobranca/internal/bankconfig/domain"
	"github.com/smallbiznis/cobranca/internal/clock"
	"github.com/smallbiznis/cobranca/internal/config"
	"github.com/smallbiznis/cobranca/pkg/mtls"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Cfg   config.Config
	Clock clock.Clock
	Repo  domain.Repository
}

// Service resolves bank credentials and keeps the cached bearer token fresh.
// Concurrent refreshes are tolerated: the bank issues idempotent tokens, so
// a duplicate refresh under race wastes one call but is harmless.
type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	cfg   config.Config
	clock clock.Clock
	repo  domain.Repository
}

func NewService(p Params) *Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("bankconfig.service"),
		cfg:   p.Cfg,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// ResolveConfig returns the credential record for the bank code, preferring
// an active record for the current environment.
func (s *Service) ResolveConfig(ctx context.Context, bankCode string) (*domain.BankAPIConfig, error) {
	bankCode = strings.TrimSpace(bankCode)
	if bankCode == "" {
		bankCode = s.cfg.BankCode
	}
	return s.repo.Resolve(ctx, s.db, bankCode, s.cfg.Environment)
}

// RefreshAccessToken returns cfg with a usable bearer token, refreshing it
// when force is set or the cached token is absent/expired. The refreshed
// token is persisted; an auth failure propagates to the caller without retry.
func (s *Service) RefreshAccessToken(ctx context.Context, cfg *domain.BankAPIConfig, force bool) (*domain.BankAPIConfig, error) {
	if cfg == nil {
		return nil, domain.ErrConfigNotFound
	}
	now := s.clock.Now()
	if !force && cfg.TokenValid(now) {
		return cfg, nil
	}

	token, expiresIn, err := s.requestToken(ctx, cfg)
	if err != nil {
		return nil, err
	}

	expiresAt := now.Add(time.Duration(expiresIn) * time.Second)
	if err := s.repo.SaveToken(ctx, s.db, cfg.ID, token, expiresAt); err != nil {
		return nil, err
	}
	cfg.AccessToken = token
	cfg.TokenExpiresAt = &expiresAt

	s.log.Info("bank access token refreshed",
		zap.String("bank_code", cfg.BankCode),
		zap.Time("expires_at", expiresAt),
	)
	return cfg, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (s *Service) requestToken(ctx context.Context, cfg *domain.BankAPIConfig) (string, int64, error) {
	httpClient, err := mtls.NewHTTPClient(cfg.CertPath, cfg.KeyPath, s.cfg.BankTimeout)
	if err != nil {
		return "", 0, err
	}

	authURL := cfg.Setting("auth_url")
	if authURL == "" {
		authURL = s.cfg.BankAuthURL
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(cfg.ClientID, cfg.ClientSecret)

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("bank auth request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("bank auth response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", 0, fmt.Errorf("%w: status %d: %s", domain.ErrAuthFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", 0, fmt.Errorf("%w: malformed token response", domain.ErrAuthFailed)
	}
	if strings.TrimSpace(parsed.AccessToken) == "" {
		return "", 0, fmt.Errorf("%w: empty access token", domain.ErrAuthFailed)
	}
	if parsed.ExpiresIn <= 0 {
		parsed.ExpiresIn = 3600
	}
	return parsed.AccessToken, parsed.ExpiresIn, nil
}
