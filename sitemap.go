package singularity

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// routedPages lists the paths of the site's pages.
func (a *App) routedPages() []string {
	return []string{"/"}
}

func (a *App) renderSitemap(c echo.Context, paths []string) error {
	lastMod := a.Config.Now().UTC().Format("2006-01-02")
	urls := make([]sitemapURL, 0, len(paths))
	for _, p := range paths {
		urls = append(urls, sitemapURL{
			Loc:     a.Document.Metadata.Resolve(p),
			LastMod: lastMod,
		})
	}
	sitemap := sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	if _, err := c.Response().Write([]byte(xml.Header)); err != nil {
		return err
	}
	return xml.NewEncoder(c.Response()).Encode(sitemap)
}

// robotsTxt mirrors the robots metadata: indexable sites allow everything
// except the image optimizer.
func (a *App) robotsTxt() string {
	var b strings.Builder
	b.WriteString("User-agent: *\n")
	if a.Document.Metadata.Robots.Index {
		b.WriteString("Allow: /\n")
		b.WriteString("Disallow: /_image\n")
	} else {
		b.WriteString("Disallow: /\n")
	}
	fmt.Fprintf(&b, "\nSitemap: %s\n", a.Document.Metadata.Resolve("/sitemap.xml"))
	return b.String()
}
