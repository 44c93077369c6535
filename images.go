package singularity

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/sync/singleflight"
)

const (
	maxImageWidth   = 3840
	defaultQuality  = 75
	maxSourceSize   = 20 << 20   // 20MB
	maxSourcePixels = 50_000_000 // decoded frame bound per request
	fetchTimeout    = 10 * time.Second
)

// Image optimizer request errors. All map to 400 Bad Request.
var (
	ErrMissingURL     = errors.New("url parameter is required")
	ErrInvalidURL     = errors.New("url must be a local path or an absolute http(s) URL")
	ErrHostNotAllowed = errors.New("image host is not configured in images.domains")
	ErrInvalidWidth   = fmt.Errorf("w must be an integer between 1 and %d", maxImageWidth)
	ErrInvalidQuality = errors.New("q must be an integer between 1 and 100")
	ErrInvalidImage   = errors.New("source is not a decodable image")
)

// Fetcher retrieves remote image sources.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// httpFetcher fetches over HTTP and refuses redirects to hosts outside the
// allow-list.
type httpFetcher struct {
	client *http.Client
}

func newHTTPFetcher(allowed func(host string) bool) *httpFetcher {
	return &httpFetcher{client: &http.Client{
		Timeout: fetchTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return errors.New("too many redirects")
			}
			if !allowed(req.URL.Hostname()) {
				return ErrHostNotAllowed
			}
			return nil
		},
	}}
}

func (f *httpFetcher) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, ErrHostNotAllowed) {
			return nil, ErrHostNotAllowed
		}
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: upstream status %d", rawURL, resp.StatusCode)
	}
	return resp.Body, nil
}

// Optimizer resizes and re-encodes images from the public directory or from
// allow-listed remote hosts.
type Optimizer struct {
	build     *BuildConfig
	publicDir string
	fetcher   Fetcher
	cache     *ImageCache
	group     singleflight.Group
}

// NewOptimizer creates an Optimizer. A nil fetcher uses an HTTP client that
// honours the allow-list on redirects.
func NewOptimizer(build *BuildConfig, publicDir string, cache *ImageCache, fetcher Fetcher) *Optimizer {
	if fetcher == nil {
		fetcher = newHTTPFetcher(build.AllowsHost)
	}
	return &Optimizer{
		build:     build,
		publicDir: publicDir,
		fetcher:   fetcher,
		cache:     cache,
	}
}

// ParseImageRequest validates the url, w and q query values.
func (o *Optimizer) ParseImageRequest(rawURL, w, q string) (ImageRequest, error) {
	if rawURL == "" {
		return ImageRequest{}, ErrMissingURL
	}
	req := ImageRequest{Quality: defaultQuality}

	switch {
	case strings.HasPrefix(rawURL, "/") && !strings.HasPrefix(rawURL, "//"):
		req.Source = path.Clean(rawURL)
	default:
		u, err := url.Parse(rawURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return ImageRequest{}, ErrInvalidURL
		}
		if !o.build.AllowsHost(u.Hostname()) {
			return ImageRequest{}, ErrHostNotAllowed
		}
		req.Source = u.String()
	}

	width, err := strconv.Atoi(w)
	if err != nil || width < 1 || width > maxImageWidth {
		return ImageRequest{}, ErrInvalidWidth
	}
	req.Width = width

	if q != "" {
		quality, err := strconv.Atoi(q)
		if err != nil || quality < 1 || quality > 100 {
			return ImageRequest{}, ErrInvalidQuality
		}
		req.Quality = quality
	}
	return req, nil
}

// Optimize returns the optimized variant for req, serving from cache when
// possible. Concurrent calls for the same variant share one encode.
func (o *Optimizer) Optimize(ctx context.Context, req ImageRequest) (OptimizedImage, bool, error) {
	key := req.Key()
	if img, err := o.cache.Get(key); err == nil {
		return img, true, nil
	} else if !isNotFound(err) {
		return OptimizedImage{}, false, err
	}

	v, err, _ := o.group.Do(key, func() (interface{}, error) {
		// Shared by every waiter on key, so it must outlive the first caller.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()

		src, err := o.open(fetchCtx, req.Source)
		if err != nil {
			return OptimizedImage{}, err
		}
		defer src.Close()

		img, err := processImage(io.LimitReader(src, maxSourceSize), req.Width, req.Quality)
		if err != nil {
			return OptimizedImage{}, err
		}
		img.Key = key
		if err := o.cache.Put(img); err != nil {
			return OptimizedImage{}, fmt.Errorf("cache image: %w", err)
		}
		return img, nil
	})
	if err != nil {
		return OptimizedImage{}, false, err
	}
	return v.(OptimizedImage), false, nil
}

func (o *Optimizer) open(ctx context.Context, source string) (io.ReadCloser, error) {
	if strings.HasPrefix(source, "/") {
		f, err := os.Open(filepath.Join(o.publicDir, filepath.FromSlash(source)))
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return f, err
	}
	return o.fetcher.Fetch(ctx, source)
}

// processImage decodes an image from src, downscales it to width when wider,
// and encodes it as JPEG at the given quality. Sources above maxSourcePixels
// are rejected from their header before any pixel data is decoded.
func processImage(src io.Reader, width, quality int) (OptimizedImage, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return OptimizedImage{}, fmt.Errorf("read source: %w", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return OptimizedImage{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return OptimizedImage{}, fmt.Errorf("%w: empty %dx%d frame", ErrInvalidImage, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxSourcePixels {
		return OptimizedImage{}, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrInvalidImage, cfg.Width, cfg.Height, maxSourcePixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return OptimizedImage{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if w > width {
		newH := h * width / w
		if newH < 1 {
			newH = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, width, newH))
		draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
		w = width
		h = newH
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return OptimizedImage{}, fmt.Errorf("encode jpeg: %w", err)
	}

	return OptimizedImage{
		ContentType: "image/jpeg",
		Width:       w,
		Height:      h,
		Data:        buf.Bytes(),
	}, nil
}

// badImageRequest reports whether err is a client error from ParseImageRequest
// or an undecodable source.
func badImageRequest(err error) bool {
	for _, target := range []error{ErrMissingURL, ErrInvalidURL, ErrHostNotAllowed, ErrInvalidWidth, ErrInvalidQuality, ErrInvalidImage} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
