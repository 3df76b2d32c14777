package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config はアプリケーション設定を表す
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Reservation ReservationConfig
}

// ServerConfig はサーバー設定
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig はデータベース設定
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig はRedis設定
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// ReservationConfig は予約処理のタイミング設定
type ReservationConfig struct {
	// Window はチケットを RESERVED にしてから自動失効するまでの時間
	Window time.Duration
	// LockWaitBudget は分散ロック取得の最大待機時間
	LockWaitBudget time.Duration
	// LockLeaseBudget は分散ロックのリース期間
	LockLeaseBudget time.Duration
	// ReaperPeriod は期限切れチケット回収の実行間隔
	ReaperPeriod time.Duration
	// ReaperInitialDelay は起動後最初の回収までの待機時間
	ReaperInitialDelay time.Duration
	// CacheTTL は読み取りキャッシュの保持時間
	CacheTTL time.Duration
	// UseRedisLock が false の場合 internal/infrastructure/memlock を使う
	// （単一プロセスでの動作確認・テスト用）
	UseRedisLock bool
}

// Load は環境変数・YAML設定ファイルから設定を読み込む。設定ファイルは
// CONFIG_PATH で指定されたパス、無ければ ./config.yaml を探し、
// 見つからなくても環境変数とデフォルト値だけで動作する
func Load() *Config {
	v := viper.New()
	v.SetConfigType("yaml")

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "設定ファイル読み込みエラー（デフォルト値を使用）: %v\n", err)
		}
	} else {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			fmt.Fprintf(os.Stderr, "設定ファイルが変更されました: %s\n", e.Name)
		})
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("server.port"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("database.host"),
			Port:     v.GetString("database.port"),
			User:     v.GetString("database.user"),
			Password: v.GetString("database.password"),
			DBName:   v.GetString("database.name"),
			SSLMode:  v.GetString("database.sslmode"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetString("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Reservation: ReservationConfig{
			Window:             v.GetDuration("reservation.window"),
			LockWaitBudget:     v.GetDuration("reservation.lock_wait_budget"),
			LockLeaseBudget:    v.GetDuration("reservation.lock_lease_budget"),
			ReaperPeriod:       v.GetDuration("reservation.reaper_period"),
			ReaperInitialDelay: v.GetDuration("reservation.reaper_initial_delay"),
			CacheTTL:           v.GetDuration("reservation.cache_ttl"),
			UseRedisLock:       v.GetBool("reservation.use_redis_lock"),
		},
	}

	applyDatabaseURL(&cfg.Database, os.Getenv("DATABASE_URL"))
	applyRedisURL(&cfg.Redis, os.Getenv("REDIS_URL"))

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "ticket_reservation")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("reservation.window", 10*time.Minute)
	v.SetDefault("reservation.lock_wait_budget", 3*time.Second)
	v.SetDefault("reservation.lock_lease_budget", 10*time.Second)
	v.SetDefault("reservation.reaper_period", 5*time.Minute)
	v.SetDefault("reservation.reaper_initial_delay", 1*time.Minute)
	v.SetDefault("reservation.cache_ttl", 10*time.Minute)
	v.SetDefault("reservation.use_redis_lock", true)

	// ドットを含まない環境変数名（PORT, DB_HOST など）も拾えるようにする
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	v.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.name", "DB_NAME")
	v.BindEnv("database.sslmode", "DB_SSLMODE")
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")
	v.BindEnv("reservation.window", "RESERVATION_WINDOW")
	v.BindEnv("reservation.lock_wait_budget", "LOCK_WAIT_BUDGET")
	v.BindEnv("reservation.lock_lease_budget", "LOCK_LEASE_BUDGET")
	v.BindEnv("reservation.reaper_period", "REAPER_PERIOD")
	v.BindEnv("reservation.reaper_initial_delay", "REAPER_INITIAL_DELAY")
	v.BindEnv("reservation.cache_ttl", "CACHE_TTL")
	v.BindEnv("reservation.use_redis_lock", "USE_REDIS_LOCK")
}

// applyDatabaseURL は Heroku/Railway 形式の DATABASE_URL が設定されていれば
// 個別項目を上書きする
func applyDatabaseURL(cfg *DatabaseConfig, raw string) {
	if raw == "" {
		return
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return
	}

	cfg.Host = u.Hostname()
	if port := u.Port(); port != "" {
		cfg.Port = port
	}
	if u.User != nil {
		cfg.User = u.User.Username()
		if pass, ok := u.User.Password(); ok {
			cfg.Password = pass
		}
	}
	cfg.DBName = strings.TrimPrefix(u.Path, "/")

	if sslmode := u.Query().Get("sslmode"); sslmode != "" {
		cfg.SSLMode = sslmode
	} else {
		cfg.SSLMode = "require"
	}
}

// applyRedisURL は redis://[:password@]host:port 形式の REDIS_URL が
// 設定されていれば個別項目を上書きする
func applyRedisURL(cfg *RedisConfig, raw string) {
	if raw == "" {
		return
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return
	}

	cfg.Host = u.Hostname()
	if port := u.Port(); port != "" {
		cfg.Port = port
	}
	if u.User != nil {
		if pass, ok := u.User.Password(); ok {
			cfg.Password = pass
		}
	}
}

// DSN はPostgreSQL接続文字列を返す
func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + c.Port +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}

// Addr はRedis接続アドレスを返す
func (c *RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}
