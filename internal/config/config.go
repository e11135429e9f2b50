package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	DB struct {
		DSN string `yaml:"dsn"`
	} `yaml:"db"`
	Lock struct {
		Backend  string `yaml:"backend"` // redis | postgres | memory
		RedisURL string `yaml:"redis_url"`
	} `yaml:"lock"`
	Security struct {
		DataEncryptionKey string `yaml:"data_encryption_key"`
	} `yaml:"security"`
	Orders struct {
		MinAmount   string `yaml:"min_amount"`
		MaxAmount   string `yaml:"max_amount"`
		DefaultLang string `yaml:"default_lang"`
		// AllowedCountries restricts destinations by ISO code. Empty means
		// every country the catalog knows.
		AllowedCountries []string `yaml:"allowed_countries"`
	} `yaml:"orders"`
	Pricing struct {
		Fees map[string]string `yaml:"fees"` // face amount -> fee, both 2dp strings
	} `yaml:"pricing"`
	Poller struct {
		IntervalSeconds       int `yaml:"interval_seconds"`
		ProviderTimeoutSecond int `yaml:"provider_timeout_seconds"`
	} `yaml:"poller"`
	SumUp struct {
		BaseURL      string `yaml:"base_url"`
		APIKey       string `yaml:"api_key"`
		MerchantCode string `yaml:"merchant_code"`
	} `yaml:"sumup"`
	Reloadly struct {
		BaseURL          string `yaml:"base_url"`
		AuthURL          string `yaml:"auth_url"`
		ClientID         string `yaml:"client_id"`
		ClientSecret     string `yaml:"client_secret"`
		DisableExecution bool   `yaml:"disable_execution"`
	} `yaml:"reloadly"`
	WhatsApp struct {
		BaseURL       string `yaml:"base_url"`
		Token         string `yaml:"token"`
		PhoneNumberID string `yaml:"phone_number_id"`
		VerifyToken   string `yaml:"verify_token"`
		AppSecret     string `yaml:"app_secret"`
		Production    bool   `yaml:"production"`
	} `yaml:"whatsapp"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if cfg.Server.Addr == "" {
		return nil, errors.New("server.addr is required")
	}
	if cfg.DB.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	if cfg.Security.DataEncryptionKey == "" {
		return nil, errors.New("security.data_encryption_key is required")
	}
	if cfg.Lock.Backend == "redis" && cfg.Lock.RedisURL == "" {
		return nil, errors.New("lock.redis_url is required for the redis backend")
	}
	if len(cfg.Pricing.Fees) == 0 {
		return nil, errors.New("pricing.fees must configure at least one tier")
	}
	if cfg.SumUp.APIKey == "" || cfg.SumUp.MerchantCode == "" {
		return nil, errors.New("sumup credentials are incomplete")
	}
	if !cfg.Reloadly.DisableExecution && (cfg.Reloadly.ClientID == "" || cfg.Reloadly.ClientSecret == "") {
		return nil, errors.New("reloadly credentials are incomplete")
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Lock.Backend == "" {
		cfg.Lock.Backend = "postgres"
	}
	if cfg.Orders.MinAmount == "" {
		cfg.Orders.MinAmount = "1.99"
	}
	if cfg.Orders.MaxAmount == "" {
		cfg.Orders.MaxAmount = "50"
	}
	if cfg.Orders.DefaultLang == "" {
		cfg.Orders.DefaultLang = "fr"
	}
	if cfg.Poller.IntervalSeconds <= 0 {
		cfg.Poller.IntervalSeconds = 20
	}
	if cfg.Poller.ProviderTimeoutSecond <= 0 {
		cfg.Poller.ProviderTimeoutSecond = 10
	}
	if cfg.SumUp.BaseURL == "" {
		cfg.SumUp.BaseURL = "https://api.sumup.com"
	}
	if cfg.Reloadly.BaseURL == "" {
		cfg.Reloadly.BaseURL = "https://topups.reloadly.com"
	}
	if cfg.Reloadly.AuthURL == "" {
		cfg.Reloadly.AuthURL = "https://auth.reloadly.com/oauth/token"
	}
	if cfg.WhatsApp.BaseURL == "" {
		cfg.WhatsApp.BaseURL = "https://graph.facebook.com/v19.0"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.DB.DSN = v
	}
	if v := os.Getenv("LOCK_BACKEND"); v != "" {
		cfg.Lock.Backend = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Lock.RedisURL = v
	}
	if v := os.Getenv("DATA_ENCRYPTION_KEY"); v != "" {
		cfg.Security.DataEncryptionKey = v
	}
	if v := os.Getenv("MIN_AMOUNT"); v != "" {
		cfg.Orders.MinAmount = v
	}
	if v := os.Getenv("MAX_AMOUNT"); v != "" {
		cfg.Orders.MaxAmount = v
	}
	if v := os.Getenv("DEFAULT_LANG"); v != "" {
		cfg.Orders.DefaultLang = v
	}
	if v := os.Getenv("ALLOWED_COUNTRIES"); v != "" {
		cfg.Orders.AllowedCountries = strings.Split(v, ",")
	}
	if v := os.Getenv("POLLER_INTERVAL_SECONDS"); v != "" {
		cfg.Poller.IntervalSeconds = atoiOr(cfg.Poller.IntervalSeconds, v)
	}
	if v := os.Getenv("PROVIDER_TIMEOUT_SECONDS"); v != "" {
		cfg.Poller.ProviderTimeoutSecond = atoiOr(cfg.Poller.ProviderTimeoutSecond, v)
	}
	if v := os.Getenv("SUMUP_BASE_URL"); v != "" {
		cfg.SumUp.BaseURL = v
	}
	if v := os.Getenv("SUMUP_API_KEY"); v != "" {
		cfg.SumUp.APIKey = v
	}
	if v := os.Getenv("SUMUP_MERCHANT_CODE"); v != "" {
		cfg.SumUp.MerchantCode = v
	}
	if v := os.Getenv("RELOADLY_BASE_URL"); v != "" {
		cfg.Reloadly.BaseURL = v
	}
	if v := os.Getenv("RELOADLY_AUTH_URL"); v != "" {
		cfg.Reloadly.AuthURL = v
	}
	if v := os.Getenv("RELOADLY_CLIENT_ID"); v != "" {
		cfg.Reloadly.ClientID = v
	}
	if v := os.Getenv("RELOADLY_CLIENT_SECRET"); v != "" {
		cfg.Reloadly.ClientSecret = v
	}
	if v := os.Getenv("RELOADLY_ENABLED"); v != "" {
		cfg.Reloadly.DisableExecution = v != "true"
	}
	if v := os.Getenv("WHATSAPP_BASE_URL"); v != "" {
		cfg.WhatsApp.BaseURL = v
	}
	if v := os.Getenv("WHATSAPP_TOKEN"); v != "" {
		cfg.WhatsApp.Token = v
	}
	if v := os.Getenv("WHATSAPP_PHONE_NUMBER_ID"); v != "" {
		cfg.WhatsApp.PhoneNumberID = v
	}
	if v := os.Getenv("WHATSAPP_VERIFY_TOKEN"); v != "" {
		cfg.WhatsApp.VerifyToken = v
	}
	if v := os.Getenv("META_APP_SECRET"); v != "" {
		cfg.WhatsApp.AppSecret = v
	}
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.WhatsApp.Production = v == "production"
	}
}

func atoiOr(fallback int, v string) int {
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}
