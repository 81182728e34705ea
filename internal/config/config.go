package config

import (
	"flag"
	"regexp"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	// Server-side settings
	DatabaseDSN     string        `env:"DATABASE_URI"`
	StoreKey        string        `env:"STORE_KEY"`
	PersistDebounce time.Duration `env:"PERSIST_DEBOUNCE" envDefault:"1s"`
	CursorSecret    string        `env:"CURSOR_SECRET"`
	Areas           string        `env:"AREAS"`

	// Shared settings
	BaseURL     string `env:"BASE_URL"`
	EnableHTTPS bool   `env:"ENABLE_HTTPS"`

	// Client-side settings
	ServerURL    string `env:"-"`
	WebSocketURL string `env:"-"`
	PageSize     int    `env:"PAGE_SIZE"`
	Version      bool   `env:"-"` // show version and exit (flag only)

	// BuildVersion заполняется бинарником из ldflags
	BuildVersion string `env:"-"`
}

const (
	DefaultBaseURL      = "localhost:8081"
	DefaultStoreKey     = "haventory"
	DefaultCursorSecret = "dev-cursor-secret"
	DefaultPageSize     = 50
)

var hostPortRe = regexp.MustCompile(`^[A-Za-z0-9\.\-]+:\d{1,5}$`)

func NewConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{}
	_ = env.Parse(cfg)

	// Server flags
	flag.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "persistence DSN: sqlite path, postgres://, redis:// or memory")
	flag.StringVar(&cfg.StoreKey, "store-key", cfg.StoreKey, "key of the persisted snapshot")
	flag.DurationVar(&cfg.PersistDebounce, "persist-debounce", cfg.PersistDebounce, "quiet interval before a coalesced write (0 = write-through)")
	flag.StringVar(&cfg.CursorSecret, "cursor-secret", cfg.CursorSecret, "секрет для подписи курсоров пагинации")
	flag.StringVar(&cfg.Areas, "areas", cfg.Areas, "static area registry: id=Name,id2=Name 2")
	// Shared flags
	flag.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "server address host:port")
	flag.BoolVar(&cfg.EnableHTTPS, "https", cfg.EnableHTTPS, "use https/wss schemes")
	// Client flags
	flag.IntVar(&cfg.PageSize, "page-size", cfg.PageSize, "items per page in the client cache")
	flag.BoolVar(&cfg.Version, "version", cfg.Version, "Show version and exit")

	flag.Parse()

	cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.DatabaseDSN == "" {
		cfg.DatabaseDSN = "haventory.db"
	}
	if cfg.StoreKey == "" {
		cfg.StoreKey = DefaultStoreKey
	}
	if cfg.CursorSecret == "" {
		cfg.CursorSecret = DefaultCursorSecret
	}
	if cfg.PersistDebounce < 0 {
		cfg.PersistDebounce = 0
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	// BaseURL только в виде "address:port" (без схемы и пути), иначе дефолт
	if !hostPortRe.MatchString(cfg.BaseURL) {
		cfg.BaseURL = DefaultBaseURL
	}

	if cfg.EnableHTTPS {
		cfg.ServerURL = "https://" + cfg.BaseURL
		cfg.WebSocketURL = "wss://" + cfg.BaseURL + "/api/ws"
	} else {
		cfg.ServerURL = "http://" + cfg.BaseURL
		cfg.WebSocketURL = "ws://" + cfg.BaseURL + "/api/ws"
	}
	if cfg.BuildVersion == "" {
		cfg.BuildVersion = "dev"
	}
}
