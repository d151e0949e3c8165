package api

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.temporal.io/sdk/client"

	kafkapublisher "github.com/Apurer/order-ledger/internal/domains/orders/adapters/messaging/kafka"
)

// Credit policies selectable through CREDIT_POLICY.
const (
	CreditPolicyLocal    = "local"
	CreditPolicyRegistry = "registry"
)

// Config carries environment-driven settings for the API, worker and relay processes.
type Config struct {
	Port              string
	PostgresDSN       string
	TemporalAddress   string
	TemporalNamespace string
	TemporalDisabled  bool

	KafkaBrokers       string
	KafkaClientID      string
	TopicOrderExecuted string
	TopicStockReturn   string

	ClientRegistryURL string
	CatalogURL        string
	UpstreamTimeout   time.Duration
	CreditPolicy      string

	RateLimitRPS    float64
	RateLimitBurst  int
	OutboxBatchSize int
}

// LoadConfig reads environment variables (and CONFIG_FILE when set), applies defaults and validates.
func LoadConfig() (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := strings.TrimSpace(v.GetString("config_file")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := Config{
		Port:               strings.TrimSpace(v.GetString("port")),
		PostgresDSN:        strings.TrimSpace(v.GetString("postgres_dsn")),
		TemporalAddress:    strings.TrimSpace(v.GetString("temporal_address")),
		TemporalNamespace:  strings.TrimSpace(v.GetString("temporal_namespace")),
		TemporalDisabled:   isTruthy(v.GetString("temporal_disabled")),
		KafkaBrokers:       strings.TrimSpace(v.GetString("kafka_brokers")),
		KafkaClientID:      strings.TrimSpace(v.GetString("kafka_client_id")),
		TopicOrderExecuted: strings.TrimSpace(v.GetString("topic_order_executed")),
		TopicStockReturn:   strings.TrimSpace(v.GetString("topic_stock_return")),
		ClientRegistryURL:  strings.TrimSpace(v.GetString("client_registry_url")),
		CatalogURL:         strings.TrimSpace(v.GetString("catalog_url")),
		CreditPolicy:       strings.ToLower(strings.TrimSpace(v.GetString("credit_policy"))),
	}

	var err error
	if cfg.UpstreamTimeout, err = time.ParseDuration(strings.TrimSpace(v.GetString("upstream_timeout"))); err != nil {
		return Config{}, fmt.Errorf("UPSTREAM_TIMEOUT must be a duration: %w", err)
	}
	if cfg.RateLimitRPS, err = parseFloat(v, "rate_limit_rps"); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitBurst, err = parseInt(v, "rate_limit_burst"); err != nil {
		return Config{}, err
	}
	if cfg.OutboxBatchSize, err = parseInt(v, "outbox_batch_size"); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the processes cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	if c.UpstreamTimeout <= 0 {
		errs = append(errs, errors.New("UPSTREAM_TIMEOUT must be positive"))
	}
	if c.CreditPolicy != CreditPolicyLocal && c.CreditPolicy != CreditPolicyRegistry {
		errs = append(errs, fmt.Errorf("CREDIT_POLICY must be %q or %q, got %q", CreditPolicyLocal, CreditPolicyRegistry, c.CreditPolicy))
	}
	if c.RateLimitRPS < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS must not be negative"))
	}
	if c.RateLimitBurst < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_BURST must not be negative"))
	}
	if c.OutboxBatchSize <= 0 {
		errs = append(errs, errors.New("OUTBOX_BATCH_SIZE must be positive"))
	}
	if c.ClientRegistryURL == "" || c.CatalogURL == "" {
		errs = append(errs, errors.New("CLIENT_REGISTRY_URL and CATALOG_URL must be set"))
	}
	return errors.Join(errs...)
}

// Topics returns the broker topics for order events.
func (c Config) Topics() kafkapublisher.Topics {
	return kafkapublisher.Topics{StockCommit: c.TopicOrderExecuted, StockReturn: c.TopicStockReturn}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("config_file", "")
	v.SetDefault("port", "8080")
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("temporal_address", client.DefaultHostPort)
	v.SetDefault("temporal_namespace", client.DefaultNamespace)
	v.SetDefault("temporal_disabled", "false")

	v.SetDefault("kafka_brokers", "")
	v.SetDefault("kafka_client_id", "order-ledger")
	v.SetDefault("topic_order_executed", kafkapublisher.DefaultStockCommitTopic)
	v.SetDefault("topic_stock_return", kafkapublisher.DefaultStockReturnTopic)

	v.SetDefault("client_registry_url", "http://localhost:8081")
	v.SetDefault("catalog_url", "http://localhost:8082")
	v.SetDefault("upstream_timeout", "5s")
	v.SetDefault("credit_policy", CreditPolicyLocal)

	v.SetDefault("rate_limit_rps", "0")
	v.SetDefault("rate_limit_burst", "0")
	v.SetDefault("outbox_batch_size", "100")
}

func parseFloat(v *viper.Viper, key string) (float64, error) {
	out, err := strconv.ParseFloat(strings.TrimSpace(v.GetString(key)), 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", strings.ToUpper(key), err)
	}
	return out, nil
}

func parseInt(v *viper.Viper, key string) (int, error) {
	out, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", strings.ToUpper(key), err)
	}
	return out, nil
}

func isTruthy(value string) bool {
	value = strings.TrimSpace(strings.ToLower(value))
	return value == "1" || value == "true" || value == "yes"
}
