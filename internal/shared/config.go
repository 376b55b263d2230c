package shared

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// SupplierEnv is one supplier's connection settings, read from
// <CODE>_BASE_URL, <CODE>_API_KEY, <CODE>_RPS and <CODE>_MAX_AGE.
type SupplierEnv struct {
	Code    string        `ignored:"true"`
	BaseURL string        `envconfig:"BASE_URL"`
	APIKey  string        `envconfig:"API_KEY"`
	RPS     int           `envconfig:"RPS" default:"5"`
	MaxAge  time.Duration `envconfig:"MAX_AGE" default:"2h"`
}

// Enabled reports whether the supplier has enough settings to be called.
func (s SupplierEnv) Enabled() bool { return s.BaseURL != "" && s.APIKey != "" }

type Config struct {
	AppEnv      string        `envconfig:"APP_ENV" default:"prod"`
	LogLevel    string        `envconfig:"LOG_LEVEL" default:"info"`
	HTTPAddr    string        `envconfig:"HTTP_ADDR" default:":8080"`
	MetricsAddr string        `envconfig:"METRICS_ADDR" default:":9100"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"15s"`

	CatalogDriver string `envconfig:"CATALOG_DRIVER" default:"mysql"` // mysql | sqlite
	MySQLDSN      string `envconfig:"MYSQL_DSN" default:"root:root@tcp(localhost:3306)/hotel_fusion?parseTime=true&charset=utf8mb4,utf8&loc=UTC"`
	SQLitePath    string `envconfig:"SQLITE_PATH" default:"./data/catalog.db"`

	RedisAddr   string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPass   string        `envconfig:"REDIS_PASSWORD"`
	RedisDB     int           `envconfig:"REDIS_DB" default:"0"`
	RedisPrefix string        `envconfig:"REDIS_PREFIX" default:"hotelfusion:"`
	SnapshotTTL time.Duration `envconfig:"SNAPSHOT_TTL" default:"5m"`

	AMQPURL string `envconfig:"AMQP_URL"`

	BreakerThreshold int           `envconfig:"BREAKER_THRESHOLD" default:"5"`
	BreakerReset     time.Duration `envconfig:"BREAKER_RESET" default:"30s"`

	MatchAcceptScore     float64 `envconfig:"MATCH_ACCEPT_SCORE" default:"0.75"`
	MatchNameWeight      float64 `envconfig:"MATCH_NAME_WEIGHT" default:"0.4"`
	MatchGeoWeight       float64 `envconfig:"MATCH_GEO_WEIGHT" default:"0.4"`
	MatchStarWeight      float64 `envconfig:"MATCH_STAR_WEIGHT" default:"0.2"`
	MatchStarTolerance   float64 `envconfig:"MATCH_STAR_TOLERANCE" default:"0.5"`
	MatchChainConfidence float64 `envconfig:"MATCH_CHAIN_CONFIDENCE" default:"0.9"`
	GeoRadiusKm          float64 `envconfig:"GEO_RADIUS_KM" default:"0.2"`

	HotEvery     time.Duration `envconfig:"HOT_EVERY" default:"5m"`
	TailEvery    time.Duration `envconfig:"TAIL_EVERY" default:"15m"`
	ReloadEvery  time.Duration `envconfig:"RELOAD_EVERY" default:"1h"`
	HotMaxAge    time.Duration `envconfig:"HOT_MAX_AGE" default:"5m"`
	BatchSize    int           `envconfig:"BATCH_SIZE" default:"50"`
	BatchPause   time.Duration `envconfig:"BATCH_PAUSE" default:"1s"`
	TailLimit    int           `envconfig:"TAIL_LIMIT" default:"200"`
	HotSetSize   int           `envconfig:"HOT_SET_SIZE" default:"1000"`
	HotWindow    time.Duration `envconfig:"HOT_WINDOW" default:"720h"`
	BatchTimeout time.Duration `envconfig:"BATCH_TIMEOUT" default:"2m"`

	SearchAdults     int    `envconfig:"SEARCH_ADULTS" default:"2"`
	SearchCurrency   string `envconfig:"SEARCH_CURRENCY" default:"USD"`
	SearchMaxResults int    `envconfig:"SEARCH_MAX_RESULTS" default:"100"`

	// Ingestor: destinations are "City:CC" pairs.
	Workers             int      `envconfig:"INGEST_WORKERS" default:"8"`
	IngestDestinations  []string `envconfig:"INGEST_DESTINATIONS" default:"Dubai:AE"`
	IngestCheckInOffset int      `envconfig:"INGEST_CHECKIN_OFFSET_DAYS" default:"30"`
	IngestNights        int      `envconfig:"INGEST_NIGHTS" default:"2"`

	RateHawk  SupplierEnv `envconfig:"RATEHAWK"`
	Hotelbeds SupplierEnv `envconfig:"HOTELBEDS"`
	TBO       SupplierEnv `envconfig:"TBO"`
}

// Suppliers lists the enabled suppliers.
func (c Config) Suppliers() []SupplierEnv {
	var out []SupplierEnv
	for _, s := range []SupplierEnv{c.RateHawk, c.Hotelbeds, c.TBO} {
		if s.Enabled() {
			out = append(out, s)
		}
	}
	return out
}

// Destination is one ingest seed.
type Destination struct {
	City    string
	Country string
}

// Destinations parses IngestDestinations, skipping malformed entries.
func (c Config) Destinations() []Destination {
	var out []Destination
	for _, d := range c.IngestDestinations {
		city, cc, ok := strings.Cut(strings.TrimSpace(d), ":")
		if !ok || strings.TrimSpace(city) == "" || strings.TrimSpace(cc) == "" {
			log.Warn().Str("destination", d).Msg("ignoring malformed ingest destination")
			continue
		}
		out = append(out, Destination{City: strings.TrimSpace(city), Country: strings.ToUpper(strings.TrimSpace(cc))})
	}
	return out
}

// Parse reads the environment into a Config.
func Parse() (Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	c.RateHawk.Code, c.Hotelbeds.Code, c.TBO.Code = "RATEHAWK", "HOTELBEDS", "TBO"
	return c, nil
}

// Load reads .env when present, then the environment. Invalid settings are fatal.
func Load() Config {
	_ = godotenv.Load()
	c, err := Parse()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if len(c.Suppliers()) == 0 {
		log.Warn().Msg("no supplier configured; set <SUPPLIER>_BASE_URL and <SUPPLIER>_API_KEY")
	}
	for _, s := range []SupplierEnv{c.RateHawk, c.Hotelbeds, c.TBO} {
		if s.BaseURL != "" && s.APIKey == "" {
			log.Warn().Str("supplier", s.Code).Msg(s.Code + "_API_KEY is empty")
		}
	}
	return c
}
