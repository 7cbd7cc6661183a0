// Package config resolves tripwallet settings from flags, the config file,
// TRIPWALLET_ environment variables, and .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Veraticus/tripwallet/internal/common"
	"github.com/Veraticus/tripwallet/internal/currency"
	"github.com/Veraticus/tripwallet/internal/ledger"
	"github.com/Veraticus/tripwallet/internal/rates"
	"github.com/Veraticus/tripwallet/internal/sheets"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Ledger backends.
const (
	BackendFile   = "file"
	BackendGitHub = "github"
	BackendSheets = "sheets"
	BackendSQLite = "sqlite"
)

// Rate sources.
const (
	SourceNaver  = "naver"
	SourceStatic = "static"
)

// DefaultServerAddr is where the HTTP API listens.
const DefaultServerAddr = "127.0.0.1:8080"

// Config is the resolved application configuration.
type Config struct {
	Static        map[currency.Code]decimal.Decimal
	Sheets        sheets.Config
	GitHub        ledger.GitHubConfig
	Backend       string
	LedgerPath    string
	SQLitePath    string
	RateSource    string
	RateURL       string
	RateCachePath string
	ServerAddr    string
	CertDir       string
	Members       []string
	RateTTL       time.Duration
	FetchTimeout  time.Duration
	RatesPerMin   int
	ServerTLS     bool
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("ledger.backend", BackendFile)
	v.SetDefault("ledger.path", ledger.DefaultFilePath)
	v.SetDefault("github.branch", "main")
	v.SetDefault("github.path", ledger.DefaultFilePath)
	v.SetDefault("sheets.tab", sheets.DefaultTab)
	v.SetDefault("sqlite.path", "~/.local/share/tripwallet/ledger.db")
	v.SetDefault("rates.source", SourceNaver)
	v.SetDefault("rates.url", rates.DefaultNaverURL)
	v.SetDefault("rates.ttl", rates.DefaultTTL)
	v.SetDefault("rates.timeout", 10*time.Second)
	v.SetDefault("rates.requests_per_minute", 30)
	v.SetDefault("server.addr", DefaultServerAddr)
	v.SetDefault("server.cert_dir", "~/.config/tripwallet/certs")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// LoadDotEnv loads KEY=value pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		path = ExpandPath(path)
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// Load resolves the configuration from v. Secrets fall back to the
// conventional environment variables when the config leaves them empty.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Backend:       strings.ToLower(v.GetString("ledger.backend")),
		LedgerPath:    ExpandPath(v.GetString("ledger.path")),
		SQLitePath:    ExpandPath(v.GetString("sqlite.path")),
		RateSource:    strings.ToLower(v.GetString("rates.source")),
		RateURL:       v.GetString("rates.url"),
		RateCachePath: ExpandPath(v.GetString("rates.cache_path")),
		RateTTL:       v.GetDuration("rates.ttl"),
		FetchTimeout:  v.GetDuration("rates.timeout"),
		RatesPerMin:   v.GetInt("rates.requests_per_minute"),
		ServerAddr:    v.GetString("server.addr"),
		ServerTLS:     v.GetBool("server.tls"),
		CertDir:       ExpandPath(v.GetString("server.cert_dir")),
		Members:       normalizeMembers(v.GetStringSlice("members")),
		GitHub: ledger.GitHubConfig{
			Token:   firstNonEmpty(v.GetString("github.token"), os.Getenv("GITHUB_TOKEN")),
			Owner:   v.GetString("github.owner"),
			Repo:    v.GetString("github.repo"),
			Branch:  v.GetString("github.branch"),
			Path:    v.GetString("github.path"),
			BaseURL: v.GetString("github.base_url"),
		},
		Sheets: loadSheetsConfig(v),
	}

	static, err := loadStaticRates(v)
	if err != nil {
		return nil, err
	}
	cfg.Static = static

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that do not depend on a backend being reachable.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendFile, BackendGitHub, BackendSheets, BackendSQLite:
	default:
		return fmt.Errorf("%w: unknown ledger backend %q", common.ErrInvalidConfig, c.Backend)
	}

	switch c.RateSource {
	case SourceNaver:
	case SourceStatic:
		if len(c.Static) == 0 {
			return fmt.Errorf("%w: rates.static must list at least one rate", common.ErrMissingConfig)
		}
	default:
		return fmt.Errorf("%w: unknown rate source %q", common.ErrInvalidConfig, c.RateSource)
	}

	if c.RateTTL < 0 {
		return fmt.Errorf("%w: rates.ttl cannot be negative", common.ErrInvalidConfig)
	}
	if c.RatesPerMin < 0 {
		return fmt.Errorf("%w: rates.requests_per_minute cannot be negative", common.ErrInvalidConfig)
	}
	return nil
}

// loadSheetsConfig follows this precedence:
// 1. Viper configuration (from config file or TRIPWALLET_ env vars)
// 2. Direct environment variables (GOOGLE_SHEETS_*)
// 3. Default values
func loadSheetsConfig(v *viper.Viper) sheets.Config {
	cfg := sheets.DefaultConfig()

	cfg.ServiceAccountPath = ExpandPath(firstNonEmpty(
		v.GetString("sheets.service_account_path"),
		os.Getenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH")))
	cfg.ClientID = firstNonEmpty(v.GetString("sheets.client_id"), os.Getenv("GOOGLE_SHEETS_CLIENT_ID"))
	cfg.ClientSecret = firstNonEmpty(v.GetString("sheets.client_secret"), os.Getenv("GOOGLE_SHEETS_CLIENT_SECRET"))
	cfg.RefreshToken = firstNonEmpty(v.GetString("sheets.refresh_token"), os.Getenv("GOOGLE_SHEETS_REFRESH_TOKEN"))
	cfg.SpreadsheetID = firstNonEmpty(v.GetString("sheets.spreadsheet_id"), os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID"))

	if tab := v.GetString("sheets.tab"); tab != "" {
		cfg.Tab = tab
	}
	return cfg
}

func loadStaticRates(v *viper.Viper) (map[currency.Code]decimal.Decimal, error) {
	raw := v.GetStringMapString("rates.static")
	out := make(map[currency.Code]decimal.Decimal, len(raw))
	for key, value := range raw {
		code, err := currency.Parse(key)
		if err != nil {
			return nil, fmt.Errorf("%w: rates.static.%s: %w", common.ErrInvalidConfig, key, err)
		}
		rate, err := decimal.NewFromString(strings.ReplaceAll(value, ",", ""))
		if err != nil || !rate.IsPositive() {
			return nil, fmt.Errorf("%w: rates.static.%s must be a positive number, got %q", common.ErrInvalidConfig, key, value)
		}
		out[code] = rate
	}
	return out, nil
}

func normalizeMembers(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, m := range in {
		// Env vars arrive as one comma-separated string.
		for _, part := range strings.Split(m, ",") {
			part = strings.TrimSpace(part)
			if part == "" || seen[part] {
				continue
			}
			seen[part] = true
			out = append(out, part)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ExpandPath resolves a leading ~ to the home directory and then expands
// $VAR references, so ledger and cache paths can live in the user's config.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return os.ExpandEnv(path)
}
