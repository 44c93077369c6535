package singularity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestLoadBuildConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadBuildConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadBuildConfig: %v", err)
	}
	want := BuildConfig{
		ReactStrictMode: true,
		Experimental:    ExperimentalConfig{AppDir: true},
		SWCMinify:       true,
		Images:          ImagesConfig{Domains: []string{"images.example.com"}},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadBuildConfigOverridesAndIgnoresUnknownKeys(t *testing.T) {
	path := writeFile(t, t.TempDir(), "singularity.config.yaml", `
reactStrictMode: false
swcMinify: false
poweredByHeader: false
experimental:
  appDir: false
  serverActions: true
images:
  domains:
    - cdn.example.org
    - images.example.com
`)
	cfg, err := LoadBuildConfig(path)
	if err != nil {
		t.Fatalf("LoadBuildConfig: %v", err)
	}
	want := BuildConfig{
		Images: ImagesConfig{Domains: []string{"cdn.example.org", "images.example.com"}},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadBuildConfigPartialKeepsDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "c.yaml", "swcMinify: false\n")
	cfg, err := LoadBuildConfig(path)
	if err != nil {
		t.Fatalf("LoadBuildConfig: %v", err)
	}
	if cfg.SWCMinify {
		t.Error("swcMinify should be overridden")
	}
	if !cfg.ReactStrictMode || !cfg.Experimental.AppDir {
		t.Error("unset keys should keep their defaults")
	}
}

func TestLoadBuildConfigJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "c.json", `{"reactStrictMode": true, "images": {"domains": ["a.example.net"]}}`)
	cfg, err := LoadBuildConfig(path)
	if err != nil {
		t.Fatalf("LoadBuildConfig: %v", err)
	}
	if len(cfg.Images.Domains) != 1 || cfg.Images.Domains[0] != "a.example.net" {
		t.Errorf("Domains = %v", cfg.Images.Domains)
	}
}

func TestLoadBuildConfigExpandsEnv(t *testing.T) {
	t.Setenv("IMAGE_HOST", "media.example.com")
	path := writeFile(t, t.TempDir(), "c.yaml", "images:\n  domains: [\"${IMAGE_HOST}\"]\n")
	cfg, err := LoadBuildConfig(path)
	if err != nil {
		t.Fatalf("LoadBuildConfig: %v", err)
	}
	if !cfg.AllowsHost("media.example.com") {
		t.Errorf("Domains = %v, want media.example.com", cfg.Images.Domains)
	}
}

func TestLoadBuildConfigRejectsBadDomains(t *testing.T) {
	for _, domain := range []string{"https://images.example.com", "images.example.com/path", "host:8080", `""`} {
		path := writeFile(t, t.TempDir(), "c.yaml", "images:\n  domains: ["+domain+"]\n")
		if _, err := LoadBuildConfig(path); err == nil {
			t.Errorf("expected error for domain %s", domain)
		}
	}
}

func TestLoadBuildConfigMalformed(t *testing.T) {
	path := writeFile(t, t.TempDir(), "c.yaml", "images: [unterminated\n")
	if _, err := LoadBuildConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestAllowsHost(t *testing.T) {
	cfg := DefaultBuildConfig()
	tests := []struct {
		host string
		want bool
	}{
		{"images.example.com", true},
		{"IMAGES.example.com", true},
		{"evil.example.com", false},
		{"example.com", false},
		{"images.example.com.evil.net", false},
	}
	for _, tt := range tests {
		if got := cfg.AllowsHost(tt.host); got != tt.want {
			t.Errorf("AllowsHost(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}
