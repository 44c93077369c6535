package singularity

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// stubFetcher serves fixed bytes per URL and counts calls.
type stubFetcher struct {
	mu    sync.Mutex
	data  map[string][]byte
	calls atomic.Int32
	delay time.Duration
}

func (f *stubFetcher) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.data[rawURL]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func newTestOptimizer(t *testing.T, fetcher Fetcher) (*Optimizer, string) {
	t.Helper()
	publicDir := t.TempDir()
	build := DefaultBuildConfig()
	cache := NewImageCache(setupTestStore(t), time.Hour)
	return NewOptimizer(&build, publicDir, cache, fetcher), publicDir
}

func TestParseImageRequest(t *testing.T) {
	o, _ := newTestOptimizer(t, &stubFetcher{})

	tests := []struct {
		name    string
		url     string
		w, q    string
		want    ImageRequest
		wantErr error
	}{
		{"local path", "/og-image.png", "640", "", ImageRequest{Source: "/og-image.png", Width: 640, Quality: 75}, nil},
		{"local path cleaned", "/a/../og-image.png", "640", "90", ImageRequest{Source: "/og-image.png", Width: 640, Quality: 90}, nil},
		{"allowed remote", "https://images.example.com/cat.png", "320", "50", ImageRequest{Source: "https://images.example.com/cat.png", Width: 320, Quality: 50}, nil},
		{"missing url", "", "640", "", ImageRequest{}, ErrMissingURL},
		{"disallowed host", "https://evil.example.com/cat.png", "640", "", ImageRequest{}, ErrHostNotAllowed},
		{"protocol relative", "//images.example.com/cat.png", "640", "", ImageRequest{}, ErrInvalidURL},
		{"bad scheme", "ftp://images.example.com/cat.png", "640", "", ImageRequest{}, ErrInvalidURL},
		{"missing width", "/og-image.png", "", "", ImageRequest{}, ErrInvalidWidth},
		{"zero width", "/og-image.png", "0", "", ImageRequest{}, ErrInvalidWidth},
		{"huge width", "/og-image.png", "4000", "", ImageRequest{}, ErrInvalidWidth},
		{"bad quality", "/og-image.png", "640", "101", ImageRequest{}, ErrInvalidQuality},
		{"non-numeric quality", "/og-image.png", "640", "high", ImageRequest{}, ErrInvalidQuality},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := o.ParseImageRequest(tt.url, tt.w, tt.q)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, badImageRequest(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProcessImageDownscales(t *testing.T) {
	img, err := processImage(bytes.NewReader(pngBytes(t, 200, 100)), 50, 80)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.ContentType)
	assert.Equal(t, 50, img.Width)
	assert.Equal(t, 25, img.Height)

	decoded, err := jpeg.Decode(bytes.NewReader(img.Data))
	require.NoError(t, err)
	assert.Equal(t, 50, decoded.Bounds().Dx())
	assert.Equal(t, 25, decoded.Bounds().Dy())
}

func TestProcessImageDoesNotUpscale(t *testing.T) {
	img, err := processImage(bytes.NewReader(pngBytes(t, 40, 20)), 640, 75)
	require.NoError(t, err)
	assert.Equal(t, 40, img.Width)
	assert.Equal(t, 20, img.Height)
}

// pngHeader returns a PNG with only an IHDR for a w x h 1-bit grayscale frame.
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 1
	writePNGChunk(&buf, "IHDR", ihdr)
	writePNGChunk(&buf, "IEND", nil)
	return buf.Bytes()
}

func writePNGChunk(buf *bytes.Buffer, typ string, data []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(data)))
	buf.Write(n[:])
	buf.WriteString(typ)
	buf.Write(data)
	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(data)
	binary.BigEndian.PutUint32(n[:], crc.Sum32())
	buf.Write(n[:])
}

func TestProcessImageRejectsOversizedFrame(t *testing.T) {
	src := pngHeader(20000, 20000)
	require.Less(t, len(src), 100)

	_, err := processImage(bytes.NewReader(src), 64, 75)
	assert.ErrorIs(t, err, ErrInvalidImage)
	assert.Contains(t, err.Error(), "20000x20000")
	assert.True(t, badImageRequest(err))
}

func TestProcessImageRejectsGarbage(t *testing.T) {
	_, err := processImage(bytes.NewReader([]byte("not an image")), 100, 75)
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestOptimizeLocalSource(t *testing.T) {
	o, publicDir := newTestOptimizer(t, &stubFetcher{})
	require.NoError(t, os.WriteFile(filepath.Join(publicDir, "og-image.png"), pngBytes(t, 120, 60), 0o644))

	req, err := o.ParseImageRequest("/og-image.png", "60", "")
	require.NoError(t, err)

	img, hit, err := o.Optimize(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 60, img.Width)
	assert.Equal(t, 30, img.Height)

	_, hit, err = o.Optimize(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestOptimizeMissingLocalSource(t *testing.T) {
	o, _ := newTestOptimizer(t, &stubFetcher{})
	req, err := o.ParseImageRequest("/missing.png", "60", "")
	require.NoError(t, err)

	_, _, err = o.Optimize(context.Background(), req)
	assert.True(t, isNotFound(err))
}

func TestOptimizeRemoteSourceCachedAcrossRestarts(t *testing.T) {
	fetcher := &stubFetcher{data: map[string][]byte{
		"https://images.example.com/cat.png": pngBytes(t, 80, 80),
	}}
	o, _ := newTestOptimizer(t, fetcher)
	req, err := o.ParseImageRequest("https://images.example.com/cat.png", "40", "")
	require.NoError(t, err)

	_, hit, err := o.Optimize(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, hit)

	// A fresh cache has no memory entries, the SQLite copy is still served.
	restarted := NewOptimizer(o.build, o.publicDir, NewImageCache(o.cache.store, time.Hour), fetcher)
	_, hit, err = restarted.Optimize(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestOptimizeSurvivesCancelledCaller(t *testing.T) {
	fetcher := &stubFetcher{data: map[string][]byte{
		"https://images.example.com/bird.png": pngBytes(t, 64, 64),
	}}
	o, _ := newTestOptimizer(t, fetcher)
	req, err := o.ParseImageRequest("https://images.example.com/bird.png", "32", "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	img, _, err := o.Optimize(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Width)
}

func TestOptimizeCollapsesConcurrentRequests(t *testing.T) {
	fetcher := &stubFetcher{
		data:  map[string][]byte{"https://images.example.com/dog.png": pngBytes(t, 64, 64)},
		delay: 50 * time.Millisecond,
	}
	o, _ := newTestOptimizer(t, fetcher)
	req, err := o.ParseImageRequest("https://images.example.com/dog.png", "32", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := o.Optimize(context.Background(), req)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, fetcher.calls.Load(), int32(2))
}

func TestHTTPFetcherRefusesRedirectToUnlistedHost(t *testing.T) {
	f := newHTTPFetcher(func(host string) bool { return host == "images.example.com" })
	err := f.client.CheckRedirect(mustRequest(t, "https://evil.example.com/x.png"), nil)
	assert.True(t, errors.Is(err, ErrHostNotAllowed))

	err = f.client.CheckRedirect(mustRequest(t, "https://images.example.com/x.png"), nil)
	assert.NoError(t, err)
}

func mustRequest(t *testing.T, raw string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, raw, nil)
	require.NoError(t, err)
	return req
}
