package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// FeeRules are the tunable matching and reporting rules of the fee engine.
type FeeRules struct {
	Synonyms              []SynonymRule `mapstructure:"synonyms"`
	MinSubstringLength    int           `mapstructure:"minSubstringLength"`
	MatchYearlessPayments bool          `mapstructure:"matchYearlessPayments"`
	RecentPaymentsCount   int           `mapstructure:"recentPaymentsCount"`
	LargePaymentThreshold string        `mapstructure:"largePaymentThreshold"`
	SummaryCacheTTL       time.Duration `mapstructure:"summaryCacheTTL"`
	CurrencySymbol        string        `mapstructure:"currencySymbol"`
}

type SynonymRule struct {
	Concept  string   `mapstructure:"concept"`
	Keywords []string `mapstructure:"keywords"`
}

// LargePayment returns the amount above which a payment is flagged.
func (r FeeRules) LargePayment() decimal.Decimal {
	v, err := decimal.NewFromString(strings.TrimSpace(r.LargePaymentThreshold))
	if err != nil {
		return decimal.NewFromInt(100000)
	}
	return v
}

func DefaultFeeRules() FeeRules {
	return FeeRules{
		Synonyms: []SynonymRule{
			{Concept: "tuition", Keywords: []string{"tuition", "tution"}},
			{Concept: "transport", Keywords: []string{"transport", "bus"}},
			{Concept: "library", Keywords: []string{"library", "book"}},
			{Concept: "uniform", Keywords: []string{"uniform"}},
			{Concept: "exam", Keywords: []string{"exam", "examination"}},
			{Concept: "activity", Keywords: []string{"activity", "activities"}},
		},
		MinSubstringLength:    3,
		MatchYearlessPayments: false,
		RecentPaymentsCount:   5,
		LargePaymentThreshold: "100000",
		SummaryCacheTTL:       5 * time.Minute,
		CurrencySymbol:        "₹",
	}
}

type FeeRulesHolder struct {
	current atomic.Value // holds FeeRules
}

// NewStaticFeeRulesHolder returns a holder that never reloads.
func NewStaticFeeRulesHolder(rules FeeRules) *FeeRulesHolder {
	holder := &FeeRulesHolder{}
	holder.current.Store(rules)
	return holder
}

func NewFeeRulesHolder(log *zap.Logger) (*FeeRulesHolder, error) {
	log = log.Named("config.fees")
	v := viper.New()

	v.SetConfigName("fees")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/feeledger")
	v.AddConfigPath(".")

	v.SetEnvPrefix("FEELEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultFeeRules()
	v.SetDefault("fees.synonyms", defaults.Synonyms)
	v.SetDefault("fees.minSubstringLength", defaults.MinSubstringLength)
	v.SetDefault("fees.matchYearlessPayments", defaults.MatchYearlessPayments)
	v.SetDefault("fees.recentPaymentsCount", defaults.RecentPaymentsCount)
	v.SetDefault("fees.largePaymentThreshold", defaults.LargePaymentThreshold)
	v.SetDefault("fees.summaryCacheTTL", defaults.SummaryCacheTTL)
	v.SetDefault("fees.currencySymbol", defaults.CurrencySymbol)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	cfg, err := decodeFeeRules(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticFeeRulesHolder(cfg)
	if !fileLoaded {
		log.Info("fees.yml not found, using default fee rules")
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeFeeRules(v)
		if err != nil {
			log.Warn("fee rules reload rejected", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("fee rules reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *FeeRulesHolder) Get() FeeRules {
	return h.current.Load().(FeeRules)
}

func decodeFeeRules(v *viper.Viper) (FeeRules, error) {
	var cfg FeeRules
	if err := v.UnmarshalKey("fees", &cfg); err != nil {
		return FeeRules{}, err
	}
	if err := validateFeeRules(cfg); err != nil {
		return FeeRules{}, err
	}
	return cfg, nil
}

func validateFeeRules(cfg FeeRules) error {
	if len(cfg.Synonyms) == 0 {
		return errors.New("fees.synonyms cannot be empty")
	}
	for _, rule := range cfg.Synonyms {
		if strings.TrimSpace(rule.Concept) == "" || len(rule.Keywords) == 0 {
			return errors.New("fees.synonyms entries need a concept and keywords")
		}
	}
	if cfg.MinSubstringLength < 0 {
		return errors.New("fees.minSubstringLength cannot be negative")
	}
	if cfg.RecentPaymentsCount <= 0 {
		return errors.New("fees.recentPaymentsCount must be positive")
	}
	if _, err := decimal.NewFromString(strings.TrimSpace(cfg.LargePaymentThreshold)); err != nil {
		return errors.New("fees.largePaymentThreshold must be a number")
	}
	if cfg.SummaryCacheTTL < 0 {
		return errors.New("fees.summaryCacheTTL cannot be negative")
	}
	return nil
}
