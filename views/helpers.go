package views

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
)

const (
	siteName        = "Singularity"
	siteTitle       = "Singularity - Production-Ready Next.js App"
	siteDescription = "A modern, production-ready Next.js application with TypeScript, Tailwind CSS, and best practices."
	ogImagePath     = "/og-image.png"
)

// DefaultMetadata builds the site's metadata record. base must be absolute;
// googleVerification is emitted verbatim when non-empty.
func DefaultMetadata(base *url.URL, googleVerification string) Metadata {
	return Metadata{
		Title: Title{
			Default:  siteTitle,
			Template: "%s | " + siteName,
		},
		Description: siteDescription,
		Keywords:    []string{"Next.js", "React", "TypeScript", "Tailwind CSS", "Production-Ready"},
		Authors:     []Author{{Name: "Singularity Team"}},
		Creator:     siteName,
		Publisher:   siteName,
		Base:        base,
		OpenGraph: OpenGraph{
			Type:        "website",
			Locale:      "en_US",
			URL:         "./",
			Title:       siteTitle,
			Description: siteDescription,
			SiteName:    siteName,
			Images: []OGImage{
				{URL: ogImagePath, Width: 1200, Height: 630, Alt: siteName},
			},
		},
		Twitter: Twitter{
			Card:        "summary_large_image",
			Title:       siteTitle,
			Description: siteDescription,
			Images:      []string{ogImagePath},
			Creator:     "@singularity",
		},
		Robots: Robots{
			Index:  true,
			Follow: true,
			GoogleBot: GoogleBot{
				Index:           true,
				Follow:          true,
				MaxVideoPreview: -1,
				MaxImagePreview: "large",
				MaxSnippet:      -1,
			},
		},
		Verification: Verification{Google: googleVerification},
	}
}

// DefaultViewport returns the site's viewport record.
func DefaultViewport() Viewport {
	return Viewport{
		Width:        "device-width",
		InitialScale: 1,
		MaximumScale: 5,
		UserScalable: true,
		ThemeColors: []ThemeColor{
			{Media: "(prefers-color-scheme: light)", Color: "#ffffff"},
			{Media: "(prefers-color-scheme: dark)", Color: "#000000"},
		},
	}
}

// DefaultFont returns the Inter declaration used by the layout.
func DefaultFont() Font {
	return Font{
		Family:   "Inter",
		Subsets:  []string{"latin"},
		Display:  "swap",
		Variable: "--font-inter",
	}
}

// DefaultDocument assembles the document record for the site.
func DefaultDocument(base *url.URL, googleVerification string) Document {
	return Document{
		Metadata: DefaultMetadata(base, googleVerification),
		Viewport: DefaultViewport(),
		Font:     DefaultFont(),
		Brand:    siteName,
	}
}

// Content renders the viewport meta content attribute.
func (v Viewport) Content() string {
	parts := []string{}
	if v.Width != "" {
		parts = append(parts, "width="+v.Width)
	}
	if v.InitialScale > 0 {
		parts = append(parts, "initial-scale="+formatScale(v.InitialScale))
	}
	if v.MaximumScale > 0 {
		parts = append(parts, "maximum-scale="+formatScale(v.MaximumScale))
	}
	if v.UserScalable {
		parts = append(parts, "user-scalable=yes")
	} else {
		parts = append(parts, "user-scalable=no")
	}
	return strings.Join(parts, ", ")
}

func formatScale(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Content renders the robots meta content attribute.
func (r Robots) Content() string {
	return directives(r.Index, r.Follow)
}

// Content renders the googlebot meta content attribute.
func (g GoogleBot) Content() string {
	parts := []string{directives(g.Index, g.Follow)}
	parts = append(parts, "max-video-preview:"+strconv.Itoa(g.MaxVideoPreview))
	if g.MaxImagePreview != "" {
		parts = append(parts, "max-image-preview:"+g.MaxImagePreview)
	}
	parts = append(parts, "max-snippet:"+strconv.Itoa(g.MaxSnippet))
	return strings.Join(parts, ", ")
}

func directives(index, follow bool) string {
	i, f := "noindex", "nofollow"
	if index {
		i = "index"
	}
	if follow {
		f = "follow"
	}
	return i + ", " + f
}

// Content renders the format-detection meta content attribute. Only disabled
// detectors are listed.
func (f FormatDetection) Content() string {
	var parts []string
	if !f.Telephone {
		parts = append(parts, "telephone=no")
	}
	if !f.Address {
		parts = append(parts, "address=no")
	}
	if !f.Email {
		parts = append(parts, "email=no")
	}
	return strings.Join(parts, ", ")
}

// StylesheetURL returns the Google Fonts CSS URL for the font.
func (f Font) StylesheetURL() string {
	// css2 takes the family value unescaped apart from spaces.
	u := "https://fonts.googleapis.com/css2?family=" + strings.ReplaceAll(f.Family, " ", "+") + ":wght@400;600;700"
	if f.Display != "" {
		u += "&display=" + url.QueryEscape(f.Display)
	}
	return u
}

// ClassName returns the class that exposes the font's CSS variable.
func (f Font) ClassName() string {
	if f.Variable == "" {
		return ""
	}
	return "font-" + strings.TrimPrefix(f.Variable, "--font-")
}

// WebsiteJsonLD produces a Schema.org WebSite JSON-LD block for the document.
func WebsiteJsonLD(m Metadata) string {
	data := map[string]interface{}{
		"@context": "https://schema.org",
		"@type":    "WebSite",
		"name":     m.OpenGraph.SiteName,
		"url":      m.Resolve("/"),
	}
	if m.Description != "" {
		data["description"] = m.Description
	}
	if m.Publisher != "" {
		data["publisher"] = map[string]string{
			"@type": "Organization",
			"name":  m.Publisher,
		}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}
