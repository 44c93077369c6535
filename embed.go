package singularity

import "embed"

// EmbeddedAssets contains the site stylesheet served under /public/.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
