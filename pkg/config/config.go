package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App       AppConfig
	Auth      AuthConfig
	Password  PasswordConfig
	Store     StoreConfig
	Shipping  ShippingConfig
	Carrier   CarrierConfig
	Shortener ShortenerConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BACKOFFICE_APP_ENV" required:"true"`
	Port         string `envconfig:"BACKOFFICE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BACKOFFICE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BACKOFFICE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AuthConfig holds the operator basic-auth credentials. The password is
// stored as an argon2id hash produced by pkg/security.
type AuthConfig struct {
	Username     string `envconfig:"BACKOFFICE_AUTH_USERNAME" required:"true"`
	PasswordHash string `envconfig:"BACKOFFICE_AUTH_PASSWORD_HASH" required:"true"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"BACKOFFICE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"BACKOFFICE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"BACKOFFICE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"BACKOFFICE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"BACKOFFICE_ARGON_KEY_LEN" default:"32"`
}

// StoreConfig points the order store at its data directory.
type StoreConfig struct {
	DataDir string `envconfig:"BACKOFFICE_STORE_DATA_DIR" default:"outputs"`
}

type ShippingConfig struct {
	SheetURL       string        `envconfig:"BACKOFFICE_SHIPPING_SHEET_URL" required:"true"`
	LinesSheet     string        `envconfig:"BACKOFFICE_SHIPPING_LINES_SHEET" default:"Customer_Lines"`
	BaseSheet      string        `envconfig:"BACKOFFICE_SHIPPING_BASE_SHEET" default:"Customer Base"`
	FetchTimeout   time.Duration `envconfig:"BACKOFFICE_SHIPPING_FETCH_TIMEOUT" default:"30s"`
	CacheTTL       time.Duration `envconfig:"BACKOFFICE_SHIPPING_CACHE_TTL" default:"15m"`
	RetryOnFailure bool          `envconfig:"BACKOFFICE_SHIPPING_RETRY" default:"true"`
}

type CarrierConfig struct {
	BaseURL            string        `envconfig:"BACKOFFICE_CARRIER_BASE_URL" default:"https://app.rtdeliveries.net/api/v10"`
	APIKey             string        `envconfig:"BACKOFFICE_CARRIER_API_KEY" required:"true"`
	Email              string        `envconfig:"BACKOFFICE_CARRIER_EMAIL" required:"true"`
	Password           string        `envconfig:"BACKOFFICE_CARRIER_PASSWORD" required:"true"`
	ShopID             int           `envconfig:"BACKOFFICE_CARRIER_SHOP_ID" required:"true"`
	DeliveryTypeID     int           `envconfig:"BACKOFFICE_CARRIER_DELIVERY_TYPE_ID" default:"3"`
	DeliveryPriorityID int           `envconfig:"BACKOFFICE_CARRIER_DELIVERY_PRIORITY_ID" default:"2"`
	SpecialRequestID   int           `envconfig:"BACKOFFICE_CARRIER_SPECIAL_REQUEST_ID" default:"4"`
	CurrencyTypeID     int           `envconfig:"BACKOFFICE_CARRIER_CURRENCY_TYPE_ID" default:"1"`
	Timeout            time.Duration `envconfig:"BACKOFFICE_CARRIER_TIMEOUT" default:"20s"`
}

type ShortenerConfig struct {
	BaseURL string        `envconfig:"BACKOFFICE_SHORTENER_BASE_URL" default:"https://api.tinyurl.com"`
	APIKey  string        `envconfig:"BACKOFFICE_SHORTENER_API_KEY" required:"true"`
	Domain  string        `envconfig:"BACKOFFICE_SHORTENER_DOMAIN" default:"tinyurl.com"`
	Timeout time.Duration `envconfig:"BACKOFFICE_SHORTENER_TIMEOUT" default:"10s"`
}
