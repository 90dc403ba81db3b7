package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
)

type Config struct {
	Port             string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	StripeSecretKey  string
	StripeWebhookKey string

	OrderSNSTopicARN string
	KafkaBrokers     string
	OrderEventsTopic string

	Currency string
	Fees     FeeRates
}

// FeeRates holds the financial split parameters. Defaults match the
// marketplace terms: 19% tax, 5% platform commission, 2.9% + 0.25 processor.
type FeeRates struct {
	TaxRate           decimal.Decimal
	PlatformRate      decimal.Decimal
	ProcessorRate     decimal.Decimal
	ProcessorFixedFee decimal.Decimal
}

func LoadConfig() (*Config, error) {
	fees, err := loadFeeRates()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:             getEnv("PORT", "8085"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "Europe/Berlin"),
		StripeSecretKey:  os.Getenv("STRIPE_API_KEY"),
		StripeWebhookKey: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		OrderSNSTopicARN: getEnv("ORDER_SNS_TOPIC_ARN", "arn:aws:sns:eu-central-1:000000000000:order-events"),
		KafkaBrokers:     os.Getenv("KAFKA_BROKERS"),
		OrderEventsTopic: getEnv("ORDER_EVENTS_TOPIC", "order.events"),
		Currency:         getEnv("CURRENCY", "eur"),
		Fees:             fees,
	}

	if cfg.PostgresUser == "" || cfg.PostgresPassword == "" || cfg.PostgresDB == "" || cfg.PostgresHost == "" ||
		cfg.StripeSecretKey == "" || cfg.StripeWebhookKey == "" {
		return nil, fmt.Errorf("missing required environment variables")
	}

	return cfg, nil
}

func loadFeeRates() (FeeRates, error) {
	rates := FeeRates{}
	for _, f := range []struct {
		dst      *decimal.Decimal
		key      string
		fallback string
	}{
		{&rates.TaxRate, "TAX_RATE", "0.19"},
		{&rates.PlatformRate, "PLATFORM_FEE_RATE", "0.05"},
		{&rates.ProcessorRate, "PROCESSOR_FEE_RATE", "0.029"},
		{&rates.ProcessorFixedFee, "PROCESSOR_FIXED_FEE", "0.25"},
	} {
		v, err := decimal.NewFromString(getEnv(f.key, f.fallback))
		if err != nil {
			return FeeRates{}, fmt.Errorf("invalid %s: %w", f.key, err)
		}
		*f.dst = v
	}
	return rates, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
