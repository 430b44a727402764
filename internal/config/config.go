package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Email    EmailConfig
	Payment  PaymentConfig
	Pricing  PricingConfig
	Webhook  WebhookConfig
	QR       QRConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	DSN            string
	MaxOpenConns   int
	MaxIdleConns   int
	MaxLifetime    time.Duration
	ConnectRetries int
	MigrationsDir  string
	AutoMigrate    bool
}

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	ApprovalTTL time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Enabled bool
	Topics  TopicConfig
}

type TopicConfig struct {
	CheckoutCreated       string
	CheckoutStatusChanged string
	CheckoutApproved      string
}

func (t TopicConfig) All() []string {
	return []string{t.CheckoutCreated, t.CheckoutStatusChanged, t.CheckoutApproved}
}

type EmailConfig struct {
	Enabled      bool
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	From         string
	SendTimeout  time.Duration
}

const (
	ProviderMercadoPago = "mercadopago"
	ProviderStripe      = "stripe"

	EnvironmentSandbox    = "sandbox"
	EnvironmentProduction = "production"
)

type PaymentConfig struct {
	Provider                  string
	Environment               string
	MPAccessToken             string
	MPWebhookSecretSandbox    string
	MPWebhookSecretProduction string
	StripeSecretKey           string
	StripeWebhookSecret       string
	Currency                  string
	SuccessURL                string
	FailureURL                string
	PendingURL                string
	NotificationURL           string
}

// WebhookSecret returns the Mercado Pago signing secret for the configured environment.
func (p PaymentConfig) WebhookSecret() string {
	if p.Environment == EnvironmentProduction {
		return p.MPWebhookSecretProduction
	}
	return p.MPWebhookSecretSandbox
}

// PriceTier applies from MinTickets full tickets upward.
type PriceTier struct {
	MinTickets int
	UnitPrice  float64
}

type PricingConfig struct {
	FullTicketTiers []PriceTier
	HalfTicketPrice float64
}

type WebhookConfig struct {
	LookupAttempts int
	LookupDelay    time.Duration
}

type QRConfig struct {
	Secret string
}

const defaultTiers = "1:499,5:469,10:449"

func Load() *Config {
	tiers, err := ParseTiers(getEnv("PRICE_TIERS", defaultTiers))
	if err != nil {
		tiers, _ = ParseTiers(defaultTiers)
	}

	return &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", ":8085"),
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: time.Duration(getEnvInt("SHUTDOWN_TIMEOUT_SECONDS", 5)) * time.Second,
		},
		Database: DatabaseConfig{
			DSN:            getEnv("POSTGRES_DSN", ""),
			MaxOpenConns:   getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:   getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:    time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
			ConnectRetries: getEnvInt("DB_CONNECT_RETRIES", 5),
			MigrationsDir:  getEnv("MIGRATIONS_DIR", "./migrations"),
			AutoMigrate:    getEnvBool("AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:        getEnv("REDIS_ADDR", "localhost:6379"),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getEnvInt("REDIS_DB", 0),
			ApprovalTTL: time.Duration(getEnvInt("APPROVAL_GUARD_TTL_HOURS", 720)) * time.Hour,
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
			Enabled: getEnvBool("KAFKA_ENABLED", true),
			Topics: TopicConfig{
				CheckoutCreated:       getEnv("KAFKA_TOPIC_CHECKOUT_CREATED", "checkout.created"),
				CheckoutStatusChanged: getEnv("KAFKA_TOPIC_CHECKOUT_STATUS", "checkout.status_changed"),
				CheckoutApproved:      getEnv("KAFKA_TOPIC_CHECKOUT_APPROVED", "checkout.approved"),
			},
		},
		Email: EmailConfig{
			Enabled:      getEnvBool("EMAIL_ENABLED", true),
			SMTPHost:     getEnv("SMTP_HOST", "localhost"),
			SMTPPort:     getEnvInt("SMTP_PORT", 587),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			From:         getEnv("EMAIL_FROM", "tickets@localhost"),
			SendTimeout:  time.Duration(getEnvInt("SMTP_TIMEOUT_SECONDS", 15)) * time.Second,
		},
		Payment: PaymentConfig{
			Provider:                  strings.ToLower(getEnv("PAYMENT_PROVIDER", ProviderMercadoPago)),
			Environment:               strings.ToLower(getEnv("PAYMENT_ENVIRONMENT", EnvironmentSandbox)),
			MPAccessToken:             getEnv("MP_ACCESS_TOKEN", ""),
			MPWebhookSecretSandbox:    getEnv("MP_WEBHOOK_SECRET_SANDBOX", ""),
			MPWebhookSecretProduction: getEnv("MP_WEBHOOK_SECRET_PRODUCTION", ""),
			StripeSecretKey:           getEnv("STRIPE_SECRET_KEY", ""),
			StripeWebhookSecret:       getEnv("STRIPE_WEBHOOK_SECRET", ""),
			Currency:                  strings.ToUpper(getEnv("PAYMENT_CURRENCY", "BRL")),
			SuccessURL:                getEnv("CHECKOUT_SUCCESS_URL", "http://localhost:3000/checkout/success"),
			FailureURL:                getEnv("CHECKOUT_FAILURE_URL", "http://localhost:3000/checkout/failure"),
			PendingURL:                getEnv("CHECKOUT_PENDING_URL", "http://localhost:3000/checkout/pending"),
			NotificationURL:           getEnv("CHECKOUT_NOTIFICATION_URL", ""),
		},
		Pricing: PricingConfig{
			FullTicketTiers: tiers,
			HalfTicketPrice: getEnvFloat("HALF_TICKET_PRICE", 249.5),
		},
		Webhook: WebhookConfig{
			LookupAttempts: getEnvInt("WEBHOOK_LOOKUP_ATTEMPTS", 3),
			LookupDelay:    time.Duration(getEnvInt("WEBHOOK_LOOKUP_DELAY_MS", 1000)) * time.Millisecond,
		},
		QR: QRConfig{
			Secret: getEnv("QR_SECRET", "change-me"),
		},
	}
}

// ParseTiers reads "min:price" pairs such as "1:499,5:469,10:449", sorted by min.
func ParseTiers(raw string) ([]PriceTier, error) {
	var tiers []PriceTier
	for _, part := range splitList(raw) {
		pieces := strings.SplitN(part, ":", 2)
		if len(pieces) != 2 {
			return nil, fmt.Errorf("invalid price tier %q", part)
		}
		min, err := strconv.Atoi(strings.TrimSpace(pieces[0]))
		if err != nil || min < 1 {
			return nil, fmt.Errorf("invalid tier minimum in %q", part)
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(pieces[1]), 64)
		if err != nil || price < 0 {
			return nil, fmt.Errorf("invalid tier price in %q", part)
		}
		tiers = append(tiers, PriceTier{MinTickets: min, UnitPrice: price})
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("no price tiers configured")
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].MinTickets < tiers[j].MinTickets })
	return tiers, nil
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
