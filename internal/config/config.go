package config

import (
	"cmp"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"lyrahub/internal/domain"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed sources.yaml
var defaultSources []byte

type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	DBPath     string `env:"DB_PATH"     envDefault:"db.sqlite"`
	SiteURL    string `env:"SITE_URL"`

	CORSOrigins        []string      `env:"CORS_ORIGINS"          envDefault:"*"    envSeparator:","`
	RateLimitPerMinute int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"120"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT"      envDefault:"15s"`

	JWTSecret         string        `env:"JWT_SECRET,required,notEmpty"`
	JWTTTL            time.Duration `env:"JWT_TTL"                      envDefault:"168h"`
	CronSecret        string        `env:"CRON_SECRET"`
	UnsubscribeSecret string        `env:"UNSUBSCRIBE_SECRET"`

	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
	GitHubToken  string `env:"GITHUB_TOKEN"`

	SMTP SMTP `envPrefix:"SMTP_"`

	MailRatePerSecond float64 `env:"MAIL_RATE_PER_SECOND" envDefault:"5"`

	DigestCron       string          `env:"DIGEST_CRON"`
	DigestTopN       int             `env:"DIGEST_TOP_N"       envDefault:"2"`
	DigestWindow     time.Duration   `env:"DIGEST_WINDOW"      envDefault:"48h"`
	DigestTargetLang domain.Language `env:"DIGEST_TARGET_LANG" envDefault:"zh"`
	DigestRunTimeout time.Duration   `env:"DIGEST_RUN_TIMEOUT" envDefault:"15m"`

	SourcesFile string `env:"SOURCES_FILE"`

	FetchTimeout   time.Duration `env:"FETCH_TIMEOUT"   envDefault:"15s"`
	SendTimeout    time.Duration `env:"SEND_TIMEOUT"    envDefault:"30s"`
	SummaryTimeout time.Duration `env:"SUMMARY_TIMEOUT" envDefault:"60s"`
}

type SMTP struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT"     envDefault:"587"`
	User     string `env:"USER"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM"`
	TLS      bool   `env:"TLS"      envDefault:"true"`
}

// Enabled reports whether enough is configured to deliver mail.
func (s SMTP) Enabled() bool {
	return s.Host != "" && s.From != ""
}

// Sources is the content source catalogue plus the keyword filter applied to
// fetched entries.
type Sources struct {
	Sources  []domain.Source `yaml:"sources"`
	Keywords []string        `yaml:"keywords"`
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		panic(fmt.Errorf("load .env: %w", err))
	}

	var cfg Config
	env.Must(cfg, env.Parse(&cfg))

	if cfg.UnsubscribeSecret == "" {
		cfg.UnsubscribeSecret = cfg.CronSecret
	}

	if !cfg.DigestTargetLang.Valid() {
		panic(fmt.Errorf("%w: DIGEST_TARGET_LANG %q", domain.ErrInvalidInput, cfg.DigestTargetLang))
	}

	cfg.DigestTopN = max(cfg.DigestTopN, 1)
	cfg.SiteURL = strings.TrimRight(cfg.SiteURL, "/")

	return cfg
}

// LoadSources reads the catalogue from path, or the embedded default when
// path is empty.
func LoadSources(path string) (Sources, error) {
	data := defaultSources

	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return Sources{}, fmt.Errorf("read sources file: %w", err)
		}
	}

	return ParseSources(data)
}

func ParseSources(data []byte) (Sources, error) {
	var s Sources
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Sources{}, fmt.Errorf("unmarshal sources: %w", err)
	}

	var errs []error
	for i, src := range s.Sources {
		if src.Kind == domain.SourceKindRepo {
			if strings.TrimSpace(src.Query) == "" {
				errs = append(errs, fmt.Errorf("source %d: %w: empty query", i, domain.ErrInvalidInput))
			}
		} else if strings.TrimSpace(src.URL) == "" {
			errs = append(errs, fmt.Errorf("source %d: %w: empty url", i, domain.ErrInvalidInput))
		}

		switch src.Kind {
		case domain.SourceKindNews, domain.SourceKindPaper, domain.SourceKindRepo:
		case "":
			s.Sources[i].Kind = domain.SourceKindNews
		default:
			errs = append(errs, fmt.Errorf("source %d: %w: kind %q", i, domain.ErrInvalidInput, src.Kind))
		}

		if src.Lang != "" && !src.Lang.Valid() {
			errs = append(errs, fmt.Errorf("source %d: %w: lang %q", i, domain.ErrInvalidInput, src.Lang))
		}

		if s.Sources[i].Name == "" {
			s.Sources[i].Name = cmp.Or(src.URL, src.Query)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return Sources{}, err
	}

	return s, nil
}
