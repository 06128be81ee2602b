package config

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
)

// Config represents the application configuration
type Config struct {
	RPCUrl           string   `mapstructure:"rpc_url" validate:"required,url"`
	ExplorerURL      string   `mapstructure:"explorer_url" validate:"required,url"`
	PriceURL         string   `mapstructure:"price_url" validate:"required,url"`
	Wallets          []string `mapstructure:"wallets" validate:"required,min=1,dive,eth_addr"`
	Blocks           []uint64 `mapstructure:"blocks" validate:"required,min=1"`
	ExcludeContracts []string `mapstructure:"exclude_contracts" validate:"omitempty,dive,eth_addr"`
	RateLimitDelay   string   `mapstructure:"rate_limit_delay" validate:"omitempty,duration"`
	Output           string   `mapstructure:"output" validate:"required"`
	Interval         string   `mapstructure:"interval" validate:"omitempty,schedule"`
	Timezone         string   `mapstructure:"timezone" validate:"omitempty,timezone"`
	RunImmediately   *bool    `mapstructure:"run_immediately"`
	LogLevel         string   `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
	HTTPPort         int      `mapstructure:"http_port" validate:"omitempty,min=1024,max=65535"`
}

// Credentials holds API keys sourced from the environment only
type Credentials struct {
	ExplorerAPIKey string
	PriceAPIKey    string
}

// Delay returns the inter-call throttle delay, defaulting to 200ms
func (c *Config) Delay() time.Duration {
	if c.RateLimitDelay == "" {
		return 200 * time.Millisecond
	}
	d, err := time.ParseDuration(c.RateLimitDelay)
	if err != nil {
		return 200 * time.Millisecond
	}
	return d
}

// ExcludedSet returns the excluded token contracts as a lowercase lookup set
func (c *Config) ExcludedSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.ExcludeContracts))
	for _, contract := range c.ExcludeContracts {
		set[strings.ToLower(contract)] = struct{}{}
	}
	return set
}

// GetTimezone returns the configured timezone, defaulting to UTC
func (c *Config) GetTimezone() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ShouldRunImmediately reports whether daemon mode runs a report on startup
func (c *Config) ShouldRunImmediately() bool {
	if c.RunImmediately == nil {
		return true
	}
	return *c.RunImmediately
}

// ethAddressValidator validates Ethereum addresses
func ethAddressValidator(fl validator.FieldLevel) bool {
	return common.IsHexAddress(fl.Field().String())
}

// durationValidator validates duration strings
func durationValidator(fl validator.FieldLevel) bool {
	if fl.Field().String() == "" {
		return true
	}
	_, err := time.ParseDuration(fl.Field().String())
	return err == nil
}

// scheduleValidator validates interval strings: a duration or a 5/6-field cron expression
func scheduleValidator(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true // run once mode
	}
	if fields := strings.Fields(s); len(fields) == 5 || len(fields) == 6 {
		return true
	}
	_, err := time.ParseDuration(s)
	return err == nil
}

// NewValidator creates a validator with custom validation rules
func NewValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterValidation("eth_addr", ethAddressValidator)
	validate.RegisterValidation("duration", durationValidator)
	validate.RegisterValidation("schedule", scheduleValidator)
	return validate
}
