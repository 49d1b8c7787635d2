package config

import (
	"testing"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestBankAgreementReload(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	holder, err := NewBankAgreementHolder()
	if err != nil {
		t.Fatalf("new holder: %v", err)
	}
	initial := holder.Get()

	bad := viper.New()
	bad.Set("bank.productId", -1)
	bad.Set("bank.carteira", 9)
	holder.reload(bad, "cobranca.yml")
	if got := holder.Get(); got != initial {
		t.Fatalf("invalid agreement must be ignored, got %+v", got)
	}

	good := viper.New()
	good.Set("bank.productId", 26)
	good.Set("bank.carteira", 4)
	good.Set("bank.especie", "DM")
	good.Set("bank.negotiationId", "123456789012345678")
	holder.reload(good, "cobranca.yml")
	got := holder.Get()
	if got.ProductID != 26 || got.Carteira != 4 || got.NegotiationID != "123456789012345678" {
		t.Fatalf("valid agreement not applied: %+v", got)
	}

	var sawInvalid, sawReloaded bool
	for _, entry := range logs.All() {
		switch entry.Message {
		case "invalid bank agreement ignored":
			sawInvalid = true
		case "bank agreement reloaded":
			sawReloaded = true
		}
	}
	if !sawInvalid || !sawReloaded {
		t.Fatalf("expected structured reload logs, got %v", logs.All())
	}
}
