package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// BankAgreement holds the contract identifiers the bank requires on every
// registration request. They change when the commercial agreement with the
// bank is renegotiated, hence the file-backed holder with hot reload.
type BankAgreement struct {
	ProductID     int    `mapstructure:"productId"`
	NegotiationID string `mapstructure:"negotiationId"`
	Carteira      int    `mapstructure:"carteira"`
	AgreementNo   string `mapstructure:"agreementNo"`
	Especie       string `mapstructure:"especie"`
}

func DefaultBankAgreement() BankAgreement {
	return BankAgreement{
		ProductID: 9,
		Carteira:  9,
		Especie:   "DM",
	}
}

type BankAgreementHolder struct {
	current atomic.Value // holds BankAgreement
}

func NewBankAgreementHolder() (*BankAgreementHolder, error) {
	v := viper.New()

	v.SetConfigName("cobranca")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/cobranca/config") // Volume-mounted config
	v.AddConfigPath("/etc/cobranca")            // System config
	v.AddConfigPath(".")                        // Current directory (dev mode)

	v.SetEnvPrefix("COBRANCA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultBankAgreement()
		v.SetDefault("bank.productId", defaults.ProductID)
		v.SetDefault("bank.carteira", defaults.Carteira)
		v.SetDefault("bank.especie", defaults.Especie)
	}

	var cfg BankAgreement
	if err := v.UnmarshalKey("bank", &cfg); err != nil {
		return nil, err
	}
	if err := validateBankAgreement(cfg); err != nil {
		return nil, err
	}

	holder := &BankAgreementHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		holder.reload(v, e.Name)
	})

	return holder, nil
}

// reload re-reads the bank section and swaps the agreement in. A broken or
// invalid file keeps the previous agreement in place.
func (h *BankAgreementHolder) reload(v *viper.Viper, source string) {
	log := zap.L().Named("config.bank")
	var updated BankAgreement
	if err := v.UnmarshalKey("bank", &updated); err != nil {
		log.Warn("bank agreement reload failed", zap.String("source", source), zap.Error(err))
		return
	}
	if err := validateBankAgreement(updated); err != nil {
		log.Warn("invalid bank agreement ignored", zap.String("source", source), zap.Error(err))
		return
	}
	h.current.Store(updated)
	log.Info("bank agreement reloaded", zap.String("source", source))
}

func (h *BankAgreementHolder) Get() BankAgreement {
	return h.current.Load().(BankAgreement)
}

func validateBankAgreement(cfg BankAgreement) error {
	if cfg.ProductID <= 0 {
		return errors.New("bank.productId must be positive")
	}
	if cfg.Carteira <= 0 {
		return errors.New("bank.carteira must be positive")
	}
	return nil
}
