package secret

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "secret")

var ErrMissingConfig = errors.New("missing configuration")

// Config is everything the server reads from its environment.
type Config struct {
	SpotifyClientID     string `json:"client_id"`
	SpotifyClientSecret string `json:"client_secret"`

	SupplyUser  string `json:"playlist_supply_user"`
	SupplyPass  string `json:"playlist_supply_pass"`
	SupplyEmail string `json:"playlist_supply_email"`

	TokenSecret string `json:"token_secret"`
	PGDSN       string `json:"pg_dsn"`
	Port        string `json:"port"`

	SearchDelay    time.Duration `json:"-"`
	SearchJitter   time.Duration `json:"-"`
	SearchWorkers  int           `json:"-"`
	LastFMMaxPages int           `json:"-"`

	LogLevel  string `json:"-"`
	LogFormat string `json:"-"`
}

// Load reads envFile (if present) into the environment, then:
// 1. Environment variables
// 2. authconfig.json in the working directory for anything still unset
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	// ----- 1. Environment -----
	cfg := Config{
		SpotifyClientID:     os.Getenv("SPOTIFY_CLIENT_ID"),
		SpotifyClientSecret: os.Getenv("SPOTIFY_CLIENT_SECRET"),
		SupplyUser:          os.Getenv("PLAYLIST_SUPPLY_USER"),
		SupplyPass:          os.Getenv("PLAYLIST_SUPPLY_PASS"),
		SupplyEmail:         os.Getenv("PLAYLIST_SUPPLY_EMAIL"),
		TokenSecret:         os.Getenv("PF_TOKEN_SECRET"),
		PGDSN:               os.Getenv("PG_DSN"),
		Port:                envOr("PORT", "8080"),
		LogLevel:            envOr("LOG_LEVEL", "info"),
		LogFormat:           envOr("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.SearchDelay, err = envMillis("SEARCH_DELAY_MS", 400); err != nil {
		return Config{}, err
	}
	if cfg.SearchJitter, err = envMillis("SEARCH_JITTER_MS", 200); err != nil {
		return Config{}, err
	}
	if cfg.SearchWorkers, err = envInt("SEARCH_WORKERS", 1); err != nil {
		return Config{}, err
	}
	if cfg.LastFMMaxPages, err = envInt("LASTFM_MAX_PAGES", 5); err != nil {
		return Config{}, err
	}

	// ----- 2. Local authconfig.json -----
	if b, err := os.ReadFile("authconfig.json"); err == nil {
		var file Config
		if err := json.Unmarshal(b, &file); err != nil {
			return Config{}, fmt.Errorf("invalid authconfig.json: %w", err)
		}
		cfg.fillFrom(file)
		log.Info("filled missing settings from authconfig.json")
	}

	if cfg.SupplyEmail == "" {
		cfg.SupplyEmail = cfg.SupplyUser
	}
	return cfg, nil
}

func (c *Config) fillFrom(o Config) {
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&c.SpotifyClientID, o.SpotifyClientID)
	fill(&c.SpotifyClientSecret, o.SpotifyClientSecret)
	fill(&c.SupplyUser, o.SupplyUser)
	fill(&c.SupplyPass, o.SupplyPass)
	fill(&c.SupplyEmail, o.SupplyEmail)
	fill(&c.TokenSecret, o.TokenSecret)
	fill(&c.PGDSN, o.PGDSN)
}

// Validate checks what the server cannot start without. PlaylistSupply
// credentials are checked per run instead.
func (c Config) Validate() error {
	var missing []error
	if c.SpotifyClientID == "" || c.SpotifyClientSecret == "" {
		missing = append(missing, fmt.Errorf("%w: SPOTIFY_CLIENT_ID/SPOTIFY_CLIENT_SECRET", ErrMissingConfig))
	}
	if c.TokenSecret == "" {
		missing = append(missing, fmt.Errorf("%w: PF_TOKEN_SECRET", ErrMissingConfig))
	}
	if c.SearchWorkers < 1 {
		missing = append(missing, fmt.Errorf("SEARCH_WORKERS must be at least 1, got %d", c.SearchWorkers))
	}
	return errors.Join(missing...)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envMillis(key string, def int) (time.Duration, error) {
	n, err := envInt(key, def)
	return time.Duration(n) * time.Millisecond, err
}
