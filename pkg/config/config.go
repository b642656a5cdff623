package config

import (
	"fmt"
	"net/url"
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
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Checkout     CheckoutConfig
	Paystack     PaystackConfig
	Flutterwave  FlutterwaveConfig
	OPay         OPayConfig
	Cloudinary   CloudinaryConfig
	Scanner      ScannerConfig
	Sendgrid     SendgridConfig
	WhatsApp     WhatsAppConfig
	Admin        AdminConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BOOKPRINTA_APP_ENV" required:"true"`
	Port         string `envconfig:"BOOKPRINTA_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"BOOKPRINTA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BOOKPRINTA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"BOOKPRINTA_DB_DSN"`
	Driver string `envconfig:"BOOKPRINTA_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"BOOKPRINTA_DB_HOST"`
	Port     int    `envconfig:"BOOKPRINTA_DB_PORT" default:"5432"`
	User     string `envconfig:"BOOKPRINTA_DB_USER"`
	Password string `envconfig:"BOOKPRINTA_DB_PASSWORD"`
	Name     string `envconfig:"BOOKPRINTA_DB_NAME"`
	SSLMode  string `envconfig:"BOOKPRINTA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BOOKPRINTA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BOOKPRINTA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BOOKPRINTA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BOOKPRINTA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BOOKPRINTA_REDIS_URL"`
	Address      string        `envconfig:"BOOKPRINTA_REDIS_ADDR"`
	Password     string        `envconfig:"BOOKPRINTA_REDIS_PASSWORD"`
	DB           int           `envconfig:"BOOKPRINTA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BOOKPRINTA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BOOKPRINTA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BOOKPRINTA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BOOKPRINTA_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"BOOKPRINTA_REDIS_WRITE_TIMEOUT" default:"3s"`

	WebhookDedupTTL time.Duration `envconfig:"BOOKPRINTA_WEBHOOK_DEDUP_TTL" default:"720h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool   `envconfig:"BOOKPRINTA_USE_SQLITE" default:"false"`
	AutoMigrate bool   `envconfig:"BOOKPRINTA_AUTO_MIGRATE" default:"false"`
	AVScan      string `envconfig:"BOOKPRINTA_AV_SCAN" default:"off"`
}

type CheckoutConfig struct {
	CallbackBaseURL string        `envconfig:"BOOKPRINTA_CHECKOUT_CALLBACK_BASE_URL" default:"https://bookprinta.com/checkout/callback"`
	SignupBaseURL   string        `envconfig:"BOOKPRINTA_SIGNUP_BASE_URL" default:"https://bookprinta.com/signup/finish"`
	SignupTokenTTL  time.Duration `envconfig:"BOOKPRINTA_SIGNUP_TOKEN_TTL" default:"24h"`
	DefaultCurrency string        `envconfig:"BOOKPRINTA_DEFAULT_CURRENCY" default:"NGN"`
}

type PaystackConfig struct {
	SecretKey string `envconfig:"BOOKPRINTA_PAYSTACK_SECRET_KEY"`
	PublicKey string `envconfig:"BOOKPRINTA_PAYSTACK_PUBLIC_KEY"`
	BaseURL   string `envconfig:"BOOKPRINTA_PAYSTACK_BASE_URL" default:"https://api.paystack.co"`
}

type FlutterwaveConfig struct {
	SecretKey  string `envconfig:"BOOKPRINTA_FLUTTERWAVE_SECRET_KEY"`
	SecretHash string `envconfig:"BOOKPRINTA_FLUTTERWAVE_SECRET_HASH"`
	BaseURL    string `envconfig:"BOOKPRINTA_FLUTTERWAVE_BASE_URL" default:"https://api.flutterwave.com/v3"`
}

type OPayConfig struct {
	MerchantID string `envconfig:"BOOKPRINTA_OPAY_MERCHANT_ID"`
	PublicKey  string `envconfig:"BOOKPRINTA_OPAY_PUBLIC_KEY"`
	SecretKey  string `envconfig:"BOOKPRINTA_OPAY_SECRET_KEY"`
	BaseURL    string `envconfig:"BOOKPRINTA_OPAY_BASE_URL" default:"https://liveapi.opaycheckout.com"`
}

type CloudinaryConfig struct {
	CloudName   string `envconfig:"BOOKPRINTA_CLOUDINARY_CLOUD_NAME"`
	APIKey      string `envconfig:"BOOKPRINTA_CLOUDINARY_API_KEY"`
	APISecret   string `envconfig:"BOOKPRINTA_CLOUDINARY_API_SECRET"`
	MaxUploadMB int    `envconfig:"BOOKPRINTA_CLOUDINARY_MAX_UPLOAD_MB" default:"10"`
}

type ScannerConfig struct {
	Address string        `envconfig:"BOOKPRINTA_CLAMAV_ADDR" default:"127.0.0.1:3310"`
	Timeout time.Duration `envconfig:"BOOKPRINTA_CLAMAV_TIMEOUT" default:"20s"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"BOOKPRINTA_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"BOOKPRINTA_SENDGRID_FROM_EMAIL" default:"hello@bookprinta.com"`
}

type WhatsAppConfig struct {
	AccessToken   string `envconfig:"BOOKPRINTA_WHATSAPP_ACCESS_TOKEN"`
	PhoneNumberID string `envconfig:"BOOKPRINTA_WHATSAPP_PHONE_NUMBER_ID"`
	BaseURL       string `envconfig:"BOOKPRINTA_WHATSAPP_BASE_URL" default:"https://graph.facebook.com/v19.0"`
}

type AdminConfig struct {
	NotifyEmail    string `envconfig:"BOOKPRINTA_ADMIN_NOTIFY_EMAIL"`
	NotifyWhatsApp string `envconfig:"BOOKPRINTA_ADMIN_NOTIFY_WHATSAPP"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	required := []struct {
		env   string
		value string
	}{
		{"BOOKPRINTA_DB_HOST", db.Host},
		{"BOOKPRINTA_DB_USER", db.User},
		{"BOOKPRINTA_DB_NAME", db.Name},
	}
	for _, item := range required {
		if item.value == "" {
			missing = append(missing, item.env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either BOOKPRINTA_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
