package server

import (
	"crypto/subtle"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obsmetrics "github.com/smallbiznis/cobranca/internal/observability/metrics"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

// HandleBankWebhook verifies the shared secret, hands the raw body to the
// worker and answers the bank immediately. Processing happens off the
// request path so a slow bank query never times the callback out.
func (s *Server) HandleBankWebhook(c *gin.Context) {
	if !s.authorizeWebhook(c) {
		s.metrics.WebhookReceived(obsmetrics.WebhookUnauthorized)
		AbortWithError(c, ErrUnauthorized)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if !s.worker.Enqueue(payload) {
		// Still acknowledged: reconciliation covers the dropped update.
		s.metrics.WebhookReceived(obsmetrics.WebhookDropped)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	s.metrics.WebhookReceived(obsmetrics.WebhookAccepted)
	s.log.Debug("bank webhook accepted", zap.Int("bytes", len(payload)))
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// authorizeWebhook accepts the secret either as X-Webhook-Token or as a
// bearer token. Comparison is constant time.
func (s *Server) authorizeWebhook(c *gin.Context) bool {
	secret := s.cfg.WebhookSecret
	if secret == "" {
		return false
	}

	candidate := c.GetHeader("X-Webhook-Token")
	if candidate == "" {
		header := c.GetHeader("Authorization")
		if strings.HasPrefix(header, "Bearer ") {
			candidate = strings.TrimPrefix(header, "Bearer ")
		}
	}
	if candidate == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(secret)) == 1
}
