package singularity

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog"
)

// DefaultAppURL is the metadata base used when NEXT_PUBLIC_APP_URL is unset.
const DefaultAppURL = "http://localhost:3000"

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// SiteConfig holds all runtime configuration for a singularity site.
type SiteConfig struct {
	AppURL                 string // NEXT_PUBLIC_APP_URL (default "http://localhost:3000")
	GoogleSiteVerification string // GOOGLE_SITE_VERIFICATION, emitted verbatim

	Addr      string // Listen address (default ":3000")
	Env       string // APP_ENV: "production" (default) or "development"
	LogLevel  string // LOG_LEVEL (default "info")
	PublicDir string // Directory for deployment-provided static assets (default "public")

	BuildConfigPath string        // SINGULARITY_CONFIG (default "singularity.config.yaml")
	ImageCachePath  string        // IMAGE_CACHE_PATH (default "data/images.db")
	ImageCacheTTL   time.Duration // IMAGE_CACHE_TTL (default 1h)

	// Now is the render-time clock. Defaults to time.Now.
	Now func() time.Time

	baseURL *url.URL
}

func (c *SiteConfig) setDefaults() {
	if c.AppURL == "" {
		c.AppURL = DefaultAppURL
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.Env == "" {
		c.Env = EnvProduction
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.PublicDir == "" {
		c.PublicDir = "public"
	}
	if c.BuildConfigPath == "" {
		c.BuildConfigPath = "singularity.config.yaml"
	}
	if c.ImageCachePath == "" {
		c.ImageCachePath = "data/images.db"
	}
	if c.ImageCacheTTL == 0 {
		c.ImageCacheTTL = time.Hour
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Validate checks the configuration and parses the metadata base.
func (c *SiteConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.AppURL, validation.Required, validation.By(absoluteHTTPURL)),
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.Env, validation.Required, validation.In(EnvDevelopment, EnvProduction)),
		validation.Field(&c.LogLevel, validation.By(logLevel)),
		validation.Field(&c.ImageCacheTTL, validation.Min(time.Duration(0))),
	); err != nil {
		return err
	}
	u, err := url.Parse(c.AppURL)
	if err != nil {
		return fmt.Errorf("app url: %w", err)
	}
	c.baseURL = u
	return nil
}

// BaseURL returns the parsed metadata base. Only valid after Validate.
func (c *SiteConfig) BaseURL() *url.URL {
	return c.baseURL
}

// Development reports whether the site runs in development mode.
func (c *SiteConfig) Development() bool {
	return c.Env == EnvDevelopment
}

func absoluteHTTPURL(value interface{}) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil {
		return errors.New("must be a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("must use http or https")
	}
	if u.Host == "" {
		return errors.New("must include a host")
	}
	return nil
}

func logLevel(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := zerolog.ParseLevel(s); err != nil {
		return errors.New("unknown log level")
	}
	return nil
}

// ConfigFromEnv builds a SiteConfig from environment variables, applies
// defaults and validates it. An invalid NEXT_PUBLIC_APP_URL is reported here,
// at startup.
func ConfigFromEnv() (SiteConfig, error) {
	cfg := SiteConfig{
		AppURL:                 strings.TrimSpace(os.Getenv("NEXT_PUBLIC_APP_URL")),
		GoogleSiteVerification: os.Getenv("GOOGLE_SITE_VERIFICATION"),
		Addr:                   os.Getenv("ADDR"),
		Env:                    os.Getenv("APP_ENV"),
		LogLevel:               os.Getenv("LOG_LEVEL"),
		PublicDir:              os.Getenv("PUBLIC_DIR"),
		BuildConfigPath:        os.Getenv("SINGULARITY_CONFIG"),
		ImageCachePath:         os.Getenv("IMAGE_CACHE_PATH"),
	}
	if v := os.Getenv("IMAGE_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return SiteConfig{}, fmt.Errorf("singularity: IMAGE_CACHE_TTL: %w", err)
		}
		cfg.ImageCacheTTL = d
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return SiteConfig{}, fmt.Errorf("singularity: invalid config: %w", err)
	}
	return cfg, nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithBuildConfig overrides the build configuration instead of loading it
// from BuildConfigPath.
func WithBuildConfig(bc BuildConfig) Option {
	return func(a *App) {
		a.Build = bc
		a.buildSet = true
	}
}

// WithLogger sets the application logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *App) {
		a.Logger = l
	}
}

// WithImageFetcher replaces the HTTP client used for remote image sources.
func WithImageFetcher(f Fetcher) Option {
	return func(a *App) {
		a.fetcher = f
	}
}
