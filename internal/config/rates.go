package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// RateFile is the on-disk shape of rates.yml. Rates are fractions (0.20 for 20%),
// thresholds and fees are minor units.
type RateFile struct {
	Tiers          []TierFile                `mapstructure:"tiers"`
	TierCurrency   string                    `mapstructure:"tierCurrency"`
	VAT            VATFile                   `mapstructure:"vat"`
	MinimumPayout  map[string]int64          `mapstructure:"minimumPayout"`
	TransactionFee map[string]TransactionFee `mapstructure:"transactionFee"`
}

type TierFile struct {
	Name        string  `mapstructure:"name"`
	RoyaltyRate float64 `mapstructure:"royaltyRate"`
	MinNetSales int64   `mapstructure:"minNetSales"`
	MaxNetSales *int64  `mapstructure:"maxNetSales"`
}

type VATFile struct {
	Enabled                 bool               `mapstructure:"enabled"`
	DomesticCountry         string             `mapstructure:"domesticCountry"`
	DefaultRate             float64            `mapstructure:"defaultRate"`
	PricingType             string             `mapstructure:"pricingType"`
	ApplicableJurisdictions []string           `mapstructure:"applicableJurisdictions"`
	PerCountryRate          map[string]float64 `mapstructure:"perCountryRate"`
	ReverseChargeEnabled    bool               `mapstructure:"reverseChargeEnabled"`
	SupportedCurrencies     []string           `mapstructure:"supportedCurrencies"`
}

type TransactionFee struct {
	MinimumTicket int64 `mapstructure:"minimumTicket"`
	FixedFee      int64 `mapstructure:"fixedFee"`
}

func int64Ptr(v int64) *int64 { return &v }

func DefaultRateFile() RateFile {
	return RateFile{
		Tiers: []TierFile{
			{Name: "bronze", RoyaltyRate: 0.60, MinNetSales: 0, MaxNetSales: int64Ptr(100_000)},
			{Name: "silver", RoyaltyRate: 0.70, MinNetSales: 100_000, MaxNetSales: int64Ptr(500_000)},
			{Name: "gold", RoyaltyRate: 0.80, MinNetSales: 500_000, MaxNetSales: nil},
		},
		TierCurrency: "GBP",
		VAT: VATFile{
			Enabled:         true,
			DomesticCountry: "GB",
			DefaultRate:     0.20,
			PricingType:     "inclusive",
			ApplicableJurisdictions: []string{
				"GB", "AT", "BE", "BG", "HR", "CY", "CZ", "DK", "EE", "FI", "FR", "DE", "GR", "HU",
				"IE", "IT", "LV", "LT", "LU", "MT", "NL", "PL", "PT", "RO", "SK", "SI", "ES", "SE",
			},
			PerCountryRate:       map[string]float64{},
			ReverseChargeEnabled: true,
			SupportedCurrencies:  []string{"GBP", "EUR", "USD"},
		},
		MinimumPayout: map[string]int64{"GBP": 1000, "EUR": 1000, "USD": 1000},
		TransactionFee: map[string]TransactionFee{
			"GBP": {MinimumTicket: 300, FixedFee: 20},
			"EUR": {MinimumTicket: 300, FixedFee: 25},
			"USD": {MinimumTicket: 300, FixedFee: 30},
		},
	}
}

// RateFileHolder keeps the last valid rates.yml and notifies subscribers on reload.
type RateFileHolder struct {
	current atomic.Value // holds RateFile
	log     *zap.Logger

	mu          sync.Mutex
	subscribers []func(RateFile)
	fromFile    bool
}

func NewRateFileHolder(cfg Config, log *zap.Logger) (*RateFileHolder, error) {
	v := viper.New()

	v.SetConfigName("rates")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/settlekit")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SETTLEKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &RateFileHolder{log: log.Named("config.rates")}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		holder.current.Store(DefaultRateFile())
		return holder, nil
	}

	var file RateFile
	if err := v.UnmarshalKey("rates", &file); err != nil {
		return nil, err
	}
	if err := ValidateRateFile(file); err != nil {
		return nil, err
	}
	holder.current.Store(file)
	holder.fromFile = true

	if cfg.RateFileWatch {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated RateFile
			if err := v.UnmarshalKey("rates", &updated); err != nil {
				holder.log.Warn("rate file reload failed", zap.String("file", e.Name), zap.Error(err))
				return
			}
			holder.apply(updated, e.Name)
		})
	}

	return holder, nil
}

// NewStaticRateFileHolder returns a holder that never reloads.
func NewStaticRateFileHolder(file RateFile) *RateFileHolder {
	holder := &RateFileHolder{log: zap.NewNop()}
	holder.current.Store(file)
	return holder
}

func (h *RateFileHolder) Get() RateFile {
	return h.current.Load().(RateFile)
}

// FromFile reports whether the current value came from rates.yml rather than defaults.
func (h *RateFileHolder) FromFile() bool {
	return h.fromFile
}

// Subscribe registers fn to be called with every valid reload.
func (h *RateFileHolder) Subscribe(fn func(RateFile)) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	h.subscribers = append(h.subscribers, fn)
	h.mu.Unlock()
}

func (h *RateFileHolder) apply(updated RateFile, source string) {
	if err := ValidateRateFile(updated); err != nil {
		h.log.Warn("invalid rate file ignored", zap.String("file", source), zap.Error(err))
		return
	}
	h.current.Store(updated)
	h.log.Info("rate file reloaded", zap.String("file", source))

	h.mu.Lock()
	subscribers := append([]func(RateFile){}, h.subscribers...)
	h.mu.Unlock()
	for _, fn := range subscribers {
		fn(updated)
	}
}

// ValidateRateFile performs shape checks only; tier ordering and rate bounds are
// enforced by the rate config store.
func ValidateRateFile(file RateFile) error {
	if len(file.Tiers) == 0 {
		return errors.New("rates.tiers cannot be empty")
	}
	for i, tier := range file.Tiers {
		if strings.TrimSpace(tier.Name) == "" {
			return fmt.Errorf("rates.tiers[%d].name is required", i)
		}
	}
	if file.VAT.Enabled && strings.TrimSpace(file.VAT.DomesticCountry) == "" {
		return errors.New("rates.vat.domesticCountry is required when vat is enabled")
	}
	if len(file.VAT.SupportedCurrencies) == 0 {
		return errors.New("rates.vat.supportedCurrencies cannot be empty")
	}
	return nil
}
