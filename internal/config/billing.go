package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// BillingConfig holds the operator-tunable settings of the billing engine.
type BillingConfig struct {
	// Timezone decides which calendar day "today" is when bills are evaluated.
	Timezone           string        `mapstructure:"timezone"`
	GenerationSchedule string        `mapstructure:"generationSchedule"`
	GenerationLockTTL  time.Duration `mapstructure:"generationLockTTL"`
	PersistEvaluations bool          `mapstructure:"persistEvaluations"`
	DefaultPageSize    int           `mapstructure:"defaultPageSize"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		Timezone:           "UTC",
		GenerationSchedule: "0 2 * * *",
		GenerationLockTTL:  30 * time.Minute,
		PersistEvaluations: false,
		DefaultPageSize:    50,
	}
}

// Location resolves the configured timezone, falling back to UTC.
func (c BillingConfig) Location() *time.Location {
	loc, err := time.LoadLocation(strings.TrimSpace(c.Timezone))
	if err != nil || loc == nil {
		return time.UTC
	}
	return loc
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/societybill")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SOCIETYBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.timezone", defaults.Timezone)
	v.SetDefault("billing.generationSchedule", defaults.GenerationSchedule)
	v.SetDefault("billing.generationLockTTL", defaults.GenerationLockTTL)
	v.SetDefault("billing.persistEvaluations", defaults.PersistEvaluations)
	v.SetDefault("billing.defaultPageSize", defaults.DefaultPageSize)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := ValidateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticBillingConfigHolder(cfg)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-config] reload failed: %v", err)
			return
		}
		if err := ValidateBillingConfig(updated); err != nil {
			log.Printf("[billing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[billing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticBillingConfigHolder wraps a fixed config, used by tests and when no billing.yml exists.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *BillingConfigHolder) Get() BillingConfig {
	if h == nil {
		return DefaultBillingConfig()
	}
	cfg, ok := h.current.Load().(BillingConfig)
	if !ok {
		return DefaultBillingConfig()
	}
	return cfg
}

func ValidateBillingConfig(cfg BillingConfig) error {
	if _, err := time.LoadLocation(strings.TrimSpace(cfg.Timezone)); err != nil {
		return fmt.Errorf("billing.timezone: %w", err)
	}
	if strings.TrimSpace(cfg.GenerationSchedule) == "" {
		return errors.New("billing.generationSchedule cannot be empty")
	}
	if _, err := cron.ParseStandard(cfg.GenerationSchedule); err != nil {
		return fmt.Errorf("billing.generationSchedule: %w", err)
	}
	if cfg.GenerationLockTTL <= 0 {
		return errors.New("billing.generationLockTTL must be positive")
	}
	if cfg.DefaultPageSize <= 0 || cfg.DefaultPageSize > 250 {
		return errors.New("billing.defaultPageSize must be between 1 and 250")
	}
	return nil
}
