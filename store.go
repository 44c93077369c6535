package singularity

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ImageStore wraps a SQLite database holding optimized image variants so they
// survive restarts.
type ImageStore struct {
	db *sql.DB
}

// NewImageStore opens (or creates) the SQLite database at path, ensures the
// data directory exists, and creates the schema.
func NewImageStore(path string) (*ImageStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets readers proceed while a variant is being written; busy_timeout
	// makes writers wait instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &ImageStore{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *ImageStore) Close() error {
	return s.db.Close()
}

func (s *ImageStore) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS optimized_images (
    key TEXT PRIMARY KEY,
    content_type TEXT NOT NULL,
    width INTEGER NOT NULL,
    height INTEGER NOT NULL,
    data BLOB NOT NULL,
    created_at TEXT NOT NULL
);
`)
	return err
}

// GetImage returns a stored variant by key. It returns ErrNotFound when the
// key is unknown.
func (s *ImageStore) GetImage(key string) (OptimizedImage, error) {
	var contentType, createdAt string
	var width, height int
	var data []byte
	err := s.db.QueryRow(`SELECT content_type, width, height, data, created_at FROM optimized_images WHERE key = ?`, key).
		Scan(&contentType, &width, &height, &data, &createdAt)
	if err != nil {
		return OptimizedImage{}, err
	}
	created, _ := time.Parse(time.RFC3339, createdAt)
	return OptimizedImage{
		Key:         key,
		ContentType: contentType,
		Width:       width,
		Height:      height,
		Data:        data,
		CreatedAt:   created,
	}, nil
}

// SaveImage upserts a variant.
func (s *ImageStore) SaveImage(img OptimizedImage) error {
	created := img.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.Exec(`INSERT OR REPLACE INTO optimized_images (key, content_type, width, height, data, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		img.Key, img.ContentType, img.Width, img.Height, img.Data, created.UTC().Format(time.RFC3339))
	return err
}

// DeleteImagesBefore removes variants created before cutoff and returns how
// many were removed.
func (s *ImageStore) DeleteImagesBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM optimized_images WHERE created_at < ?`, cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountImages returns the number of stored variants.
func (s *ImageStore) CountImages() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM optimized_images`).Scan(&n)
	return n, err
}
