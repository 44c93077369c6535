package singularity

import (
	"errors"
	"fmt"
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// BuildConfig is the static framework configuration read once at startup.
// Unrecognized keys in the file are ignored.
type BuildConfig struct {
	ReactStrictMode bool               `yaml:"reactStrictMode" json:"reactStrictMode"`
	Experimental    ExperimentalConfig `yaml:"experimental" json:"experimental"`
	SWCMinify       bool               `yaml:"swcMinify" json:"swcMinify"`
	Images          ImagesConfig       `yaml:"images" json:"images"`
}

// ExperimentalConfig holds experimental feature flags.
type ExperimentalConfig struct {
	// AppDir composes pages inside the root layout. When off, pages render
	// in a bare document without the persistent chrome.
	AppDir bool `yaml:"appDir" json:"appDir"`
}

// ImagesConfig controls the image optimizer.
type ImagesConfig struct {
	// Domains lists the remote hosts the optimizer may fetch from.
	Domains []string `yaml:"domains" json:"domains"`
}

// DefaultBuildConfig returns the scaffold's build configuration.
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		ReactStrictMode: true,
		Experimental:    ExperimentalConfig{AppDir: true},
		SWCMinify:       true,
		Images:          ImagesConfig{Domains: []string{"images.example.com"}},
	}
}

// Validate checks that every image domain is a bare host name.
func (b *BuildConfig) Validate() error {
	return validation.ValidateStruct(&b.Images,
		validation.Field(&b.Images.Domains, validation.Each(validation.Required, validation.By(bareHost))),
	)
}

func bareHost(value interface{}) error {
	s, _ := value.(string)
	if strings.ContainsAny(s, "/:?#@ ") {
		return errors.New("must be a host name without scheme, port or path")
	}
	if strings.Trim(s, ".") != s {
		return errors.New("must not start or end with a dot")
	}
	return nil
}

// AllowsHost reports whether host is in the image domain allow-list.
// Matching is exact and case-insensitive.
func (b *BuildConfig) AllowsHost(host string) bool {
	host = strings.ToLower(host)
	for _, d := range b.Images.Domains {
		if strings.ToLower(d) == host {
			return true
		}
	}
	return false
}

// LoadBuildConfig reads the build configuration from path, expanding
// ${VAR} references. A missing file yields the defaults; keys present in the
// file override them.
func LoadBuildConfig(path string) (BuildConfig, error) {
	cfg := DefaultBuildConfig()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return BuildConfig{}, fmt.Errorf("read build config %s: %w", path, err)
	}
	if err := ParseBuildConfig([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return BuildConfig{}, fmt.Errorf("parse build config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseBuildConfig decodes YAML (or JSON) into cfg and validates the result.
func ParseBuildConfig(data []byte, cfg *BuildConfig) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	return cfg.Validate()
}
