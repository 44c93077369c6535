package singularity

import (
	"strconv"
	"time"
)

// ImageRequest is a validated image optimizer request.
type ImageRequest struct {
	Source  string // local path ("/og-image.png") or absolute http(s) URL
	Width   int
	Quality int
}

// Key identifies the optimized variant in the caches.
func (r ImageRequest) Key() string {
	return r.Source + "|" + strconv.Itoa(r.Width) + "|" + strconv.Itoa(r.Quality)
}

// OptimizedImage is an encoded image variant stored in SQLite and served by
// the optimizer.
type OptimizedImage struct {
	Key         string
	ContentType string
	Width       int
	Height      int
	Data        []byte
	CreatedAt   time.Time
}
