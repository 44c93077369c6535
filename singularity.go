// Package singularity serves the Singularity site with Echo and templ: a root
// layout with document metadata and accessibility chrome, a home page, and an
// image optimizer restricted to the configured image domains.
package singularity

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/tdewolff/minify/v2"

	"github.com/dipannama/singularity/views"
)

const (
	imageRequestsPerMinute = 60
	shutdownTimeout        = 10 * time.Second
)

// App is the central singularity application. It wires together the config,
// image optimizer, middleware and routes.
type App struct {
	Config   SiteConfig
	Build    BuildConfig
	Echo     *echo.Echo
	Logger   zerolog.Logger
	Document views.Document
	Images   *Optimizer
	Cache    *ImageCache
	Store    *ImageStore

	metrics        *metrics
	metricsHandler echo.HandlerFunc
	limiter        *RateLimiter
	minifier       *minify.M
	fetcher        Fetcher
	buildSet       bool
	stopPruner     func()
}

// New creates a new App with the given configuration. Nothing is opened
// until Setup.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	a := &App{
		Config:   cfg,
		Echo:     e,
		Logger:   zerolog.Nop(),
		minifier: newMinifier(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Setup validates the configuration, loads the build configuration, opens the
// image store and registers middleware and routes. Configuration errors are
// returned here, before any request is served.
func (a *App) Setup() error {
	if err := a.Config.Validate(); err != nil {
		return fmt.Errorf("singularity: invalid config: %w", err)
	}

	if !a.buildSet {
		bc, err := LoadBuildConfig(a.Config.BuildConfigPath)
		if err != nil {
			return fmt.Errorf("singularity: %w", err)
		}
		a.Build = bc
	} else if err := a.Build.Validate(); err != nil {
		return fmt.Errorf("singularity: invalid build config: %w", err)
	}

	a.Document = views.DefaultDocument(a.Config.BaseURL(), a.Config.GoogleSiteVerification)
	a.Echo.Debug = a.Config.Development()

	store, err := NewImageStore(a.Config.ImageCachePath)
	if err != nil {
		return fmt.Errorf("singularity: init image store: %w", err)
	}
	a.Store = store
	cached, err := store.CountImages()
	if err != nil {
		return fmt.Errorf("singularity: read image store: %w", err)
	}
	a.Cache = NewImageCache(store, a.Config.ImageCacheTTL)
	a.Images = NewOptimizer(&a.Build, a.Config.PublicDir, a.Cache, a.fetcher)
	a.stopPruner = a.Cache.StartPruner(a.Config.ImageCacheTTL, func(err error) {
		a.Logger.Warn().Err(err).Msg("prune image cache")
	})

	a.limiter = NewRateLimiter(imageRequestsPerMinute, time.Minute)
	a.metrics = newMetrics()
	a.metricsHandler = echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: a.metrics.registry,
	})

	a.setupMiddleware()
	a.setupRoutes()

	a.Logger.Info().
		Str("app_url", a.Config.AppURL).
		Str("env", a.Config.Env).
		Bool("strict_mode", a.Build.ReactStrictMode).
		Bool("app_dir", a.Build.Experimental.AppDir).
		Bool("minify", a.Build.SWCMinify).
		Strs("image_domains", a.Build.Images.Domains).
		Int("cached_images", cached).
		Msg("configured")
	return nil
}

// Start runs Setup and serves until ctx is cancelled, then shuts down
// gracefully.
func (a *App) Start(ctx context.Context) error {
	if err := a.Setup(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", a.Config.Addr).Msg("listening")
		if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.Logger.Info().Msg("shutting down")
	return a.Echo.Shutdown(shutdownCtx)
}

func (a *App) setupRoutes() {
	e := a.Echo

	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	e.GET(views.StylesheetPath, a.handleStylesheet(embeddedFS))
	e.Static("/public", a.Config.PublicDir)

	for _, name := range []string{"favicon.ico", "favicon.svg", "apple-touch-icon.png", "manifest.json", "og-image.png"} {
		e.GET("/"+name, a.staticFile(name))
	}
	e.GET("/robots.txt", a.handleRobots)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/metrics", a.metricsHandler)

	e.GET("/_image", a.handleImage)
	e.GET("/", a.handleHome)
}

// handleStylesheet serves the embedded site stylesheet, minified when the
// build config asks for it.
func (a *App) handleStylesheet(fsys fs.FS) echo.HandlerFunc {
	return func(c echo.Context) error {
		data, err := fs.ReadFile(fsys, "globals.css")
		if err != nil {
			return err
		}
		if a.Build.SWCMinify {
			if out, err := a.minifier.Bytes("text/css", data); err == nil {
				data = out
			}
		}
		return c.Blob(http.StatusOK, "text/css; charset=utf-8", data)
	}
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.stopPruner != nil {
		a.stopPruner()
	}
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
