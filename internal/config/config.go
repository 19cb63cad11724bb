package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL       string
	DBMaxOpenConns    int
	DBConnMaxIdleTime time.Duration

	// Weiban（微伴助手）
	WeibanCorpID  string
	WeibanSecret  string
	WeibanBaseURL string
	WeibanTimeout time.Duration

	// Coupon
	CouponAmount      decimal.Decimal
	CouponDescription string

	// Rate Limit
	RateLimitPerMinute int

	// Server
	ServerPort  string
	TLSCertFile string
	TLSKeyFile  string
	StaticDir   string

	// CORS
	CORSAllowedOrigin string

	// Metrics
	// MetricsAddr が空の場合、/metricsは公開しない。
	MetricsAddr string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.WeibanCorpID = os.Getenv("WEIBAN_CORP_ID")
	if cfg.WeibanCorpID == "" {
		missing = append(missing, "WEIBAN_CORP_ID")
	}

	cfg.WeibanSecret = os.Getenv("WEIBAN_SECRET")
	if cfg.WeibanSecret == "" {
		missing = append(missing, "WEIBAN_SECRET")
	}

	amount := os.Getenv("COUPON_AMOUNT")
	if amount == "" {
		missing = append(missing, "COUPON_AMOUNT")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, fmt.Errorf("invalid COUPON_AMOUNT %q: %w", amount, err)
	}
	if !d.IsPositive() {
		return nil, fmt.Errorf("COUPON_AMOUNT must be positive, got %s", d.String())
	}
	cfg.CouponAmount = d

	// Optional fields with defaults
	cfg.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 20)
	cfg.DBConnMaxIdleTime = getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	cfg.WeibanBaseURL = strings.TrimRight(getEnvString("WEIBAN_BASE_URL", "https://open.weibanzhushou.com"), "/")
	cfg.WeibanTimeout = getEnvDuration("WEIBAN_TIMEOUT", 10*time.Second)
	cfg.CouponDescription = getEnvString("COUPON_DESCRIPTION", "新用户添加企业微信奖励")
	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", 60)
	server := LoadServer()
	cfg.ServerPort = server.Port
	cfg.TLSCertFile = server.TLSCertFile
	cfg.TLSKeyFile = server.TLSKeyFile
	cfg.StaticDir = getEnvString("STATIC_DIR", "public")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "")
	cfg.MetricsAddr = getEnvString("METRICS_ADDR", "")

	return cfg, nil
}

// TLSEnabled は証明書と秘密鍵の両方が指定されているかを返す。
// ファイルの存在確認は起動時に行う。
func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// ServerConfig はHTTPサーバーの待ち受け設定。
// healthcheckサブコマンドは必須環境変数なしでこれだけを読み込む。
type ServerConfig struct {
	Port        string
	TLSCertFile string
	TLSKeyFile  string
}

// LoadServer は環境変数から待ち受け設定を読み込む。
func LoadServer() ServerConfig {
	return ServerConfig{
		Port:        getEnvString("SERVER_PORT", "8080"),
		TLSCertFile: getEnvStringAllowEmpty("TLS_CERT_FILE", "cert.pem"),
		TLSKeyFile:  getEnvStringAllowEmpty("TLS_KEY_FILE", "key.pem"),
	}
}

// TLSAvailable は証明書と秘密鍵が指定され、どちらのファイルも存在するかを返す。
func (s ServerConfig) TLSAvailable() bool {
	if s.TLSCertFile == "" || s.TLSKeyFile == "" {
		return false
	}
	for _, f := range []string{s.TLSCertFile, s.TLSKeyFile} {
		if _, err := os.Stat(f); err != nil {
			return false
		}
	}
	return true
}

// Server はConfigの待ち受け設定を返す。
func (c *Config) Server() ServerConfig {
	return ServerConfig{
		Port:        c.ServerPort,
		TLSCertFile: c.TLSCertFile,
		TLSKeyFile:  c.TLSKeyFile,
	}
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// getEnvStringAllowEmpty は明示的に空文字が設定された場合も空文字を返す。
// TLS_CERT_FILE="" でTLSを無効化するために使う。
func getEnvStringAllowEmpty(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
