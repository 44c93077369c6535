package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/dipannama/singularity"
)

// version is set at build time via ldflags.
var version = "dev"

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := configFrom(cmd)
	if err != nil {
		return err
	}
	logger := singularity.NewLogger(cfg, os.Stdout)

	app := singularity.New(cfg, singularity.WithLogger(logger))
	defer app.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return app.Start(ctx)
}

func printConfig(_ context.Context, cmd *cli.Command) error {
	cfg, err := configFrom(cmd)
	if err != nil {
		return err
	}
	bc, err := singularity.LoadBuildConfig(cfg.BuildConfigPath)
	if err != nil {
		return err
	}
	out := struct {
		AppURL    string                  `yaml:"appUrl"`
		Env       string                  `yaml:"env"`
		Addr      string                  `yaml:"addr"`
		PublicDir string                  `yaml:"publicDir"`
		Build     singularity.BuildConfig `yaml:"build"`
	}{cfg.AppURL, cfg.Env, cfg.Addr, cfg.PublicDir, bc}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return err
	}
	return enc.Close()
}

// configFrom reads the environment and applies flag overrides.
func configFrom(cmd *cli.Command) (singularity.SiteConfig, error) {
	cfg, err := singularity.ConfigFromEnv()
	if err != nil {
		return singularity.SiteConfig{}, err
	}
	if v := cmd.String("config"); v != "" {
		cfg.BuildConfigPath = v
	}
	if v := cmd.String("addr"); v != "" {
		cfg.Addr = v
	}
	if cmd.Bool("dev") {
		cfg.Env = singularity.EnvDevelopment
	}
	return cfg, nil
}

// pruneCache drops expired optimized images from the store and reports what
// is left.
func pruneCache(_ context.Context, cmd *cli.Command) error {
	cfg, err := configFrom(cmd)
	if err != nil {
		return err
	}
	store, err := singularity.NewImageStore(cfg.ImageCachePath)
	if err != nil {
		return fmt.Errorf("open image store: %w", err)
	}
	defer store.Close()

	removed, err := singularity.NewImageCache(store, cfg.ImageCacheTTL).Prune()
	if err != nil {
		return fmt.Errorf("prune image cache: %w", err)
	}
	remaining, err := store.CountImages()
	if err != nil {
		return fmt.Errorf("count cached images: %w", err)
	}
	fmt.Printf("removed %d expired images, %d remaining\n", removed, remaining)
	return nil
}

func main() {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the build config file",
			Sources: cli.EnvVars("SINGULARITY_CONFIG"),
		},
		&cli.StringFlag{
			Name:  "addr",
			Usage: "Listen address (overrides ADDR)",
		},
		&cli.BoolFlag{
			Name:  "dev",
			Usage: "Run in development mode (overrides APP_ENV)",
		},
	}

	cmd := &cli.Command{
		Name:   "singularity",
		Usage:  "Serve the Singularity site",
		Flags:  flags,
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP server",
				Flags:  flags,
				Action: serve,
			},
			{
				Name:   "config",
				Usage:  "Print the effective configuration",
				Flags:  flags,
				Action: printConfig,
			},
			{
				Name:  "cache",
				Usage: "Manage the optimized image cache",
				Commands: []*cli.Command{
					{
						Name:   "prune",
						Usage:  "Remove expired optimized images",
						Flags:  flags,
						Action: pruneCache,
					},
				},
			},
			{
				Name:  "version",
				Usage: "Print the version",
				Action: func(context.Context, *cli.Command) error {
					fmt.Printf("singularity %s\n", version)
					return nil
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		logger.Error().Err(err).Msg("singularity failed")
		os.Exit(1)
	}
}
