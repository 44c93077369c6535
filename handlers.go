package singularity

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/dipannama/singularity/views"
)

func (a *App) handleHome(c echo.Context) error {
	return a.renderPage(c, http.StatusOK, "home", views.Home())
}

// handleImage serves /_image?url=&w=&q=.
func (a *App) handleImage(c echo.Context) error {
	if !a.limiter.Allow(c.RealIP()) {
		a.metrics.imageRequests.WithLabelValues("limited").Inc()
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many image requests")
	}

	req, err := a.Images.ParseImageRequest(c.QueryParam("url"), c.QueryParam("w"), c.QueryParam("q"))
	if err != nil {
		a.metrics.imageRequests.WithLabelValues("rejected").Inc()
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	img, hit, err := a.Images.Optimize(c.Request().Context(), req)
	switch {
	case err == nil:
	case isNotFound(err):
		a.metrics.imageRequests.WithLabelValues("rejected").Inc()
		return echo.NewHTTPError(http.StatusNotFound, "image source not found")
	case badImageRequest(err):
		a.metrics.imageRequests.WithLabelValues("rejected").Inc()
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		a.metrics.imageRequests.WithLabelValues("error").Inc()
		return err
	}

	result, xcache := "miss", "MISS"
	if hit {
		result, xcache = "hit", "HIT"
	}
	a.metrics.imageRequests.WithLabelValues(result).Inc()

	h := c.Response().Header()
	h.Set("Cache-Control", "public, max-age="+strconv.Itoa(int(a.Config.ImageCacheTTL.Seconds()))+", must-revalidate")
	h.Set("X-Cache", xcache)
	h.Set("Vary", "Accept")
	return c.Blob(http.StatusOK, img.ContentType, img.Data)
}

// staticFile serves a deployment-provided asset from the public directory.
// Missing files fall through to the not-found page.
func (a *App) staticFile(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.File(filepath.Join(a.Config.PublicDir, name))
	}
}

func (a *App) handleSitemap(c echo.Context) error {
	return a.renderSitemap(c, a.routedPages())
}

func (a *App) handleRobots(c echo.Context) error {
	return c.String(http.StatusOK, a.robotsTxt())
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	ok := errors.As(err, &he)
	if ok && he.Code == http.StatusNotFound && c.Request().URL.Path != "/_image" {
		if rerr := a.renderPage(c, http.StatusNotFound, "not_found", views.NotFound()); rerr != nil {
			a.Logger.Error().Err(rerr).Msg("render not found page")
		}
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		a.Logger.Error().Err(err).Str("path", c.Request().URL.Path).Msg("server error")
		if rerr := a.renderPage(c, code, "server_error", views.ServerError()); rerr != nil {
			a.Logger.Error().Err(rerr).Msg("render server error page")
		}
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
