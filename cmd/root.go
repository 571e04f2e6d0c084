// Package cmd implements the jsonpartial command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/jsonpartial/internal/config"
	"github.com/zjrosen/jsonpartial/internal/loader"
	"github.com/zjrosen/jsonpartial/internal/log"
	"github.com/zjrosen/jsonpartial/internal/partial"
	"github.com/zjrosen/jsonpartial/internal/tracing"
)

var version = "dev"

// app holds state shared by every command of one invocation.
type app struct {
	v        *viper.Viper
	cfgFile  string
	debug    bool
	logFile  string
	cfg      config.Config
	provider *tracing.Provider
	cleanups []func()
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "jsonpartial",
		Short: "Render JSON documents assembled from reusable partials",
		Long: `Render JSON documents that reference reusable JSON partials.

A reference is written <name> wherever a JSON value may appear:

  {"header": <layout.header>, "items": [<item>, <item>]}

Partials come from a directory of *.json files (layout/header.json is
<layout.header>) and/or a YAML manifest mapping names to JSON.`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "",
		"config file (default: .jsonpartial/config.yaml or ~/.config/jsonpartial/config.yaml)")
	flags.StringP("partials", "p", "", "directory of *.json partials")
	flags.StringP("manifest", "m", "", "YAML manifest of partials")
	flags.BoolVar(&a.debug, "debug", false, "enable debug logging (also JSONPARTIAL_DEBUG=1)")
	flags.StringVar(&a.logFile, "log-file", "", "write logs to this file instead of stderr")

	_ = a.v.BindPFlag("partials_dir", flags.Lookup("partials"))
	_ = a.v.BindPFlag("manifest", flags.Lookup("manifest"))

	rootCmd.AddCommand(
		newRenderCmd(a),
		newListCmd(a),
		newWatchCmd(a),
		newInitCmd(a),
		newConfigCmd(a),
	)
	return rootCmd, a
}

// setup runs before every command: logging, config, then tracing.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if err := a.initLogging(cmd); err != nil {
		return err
	}
	if err := a.initConfig(); err != nil {
		return err
	}

	provider, err := tracing.NewProvider(a.cfg.Tracing)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	a.provider = provider
	a.cleanups = append(a.cleanups, func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			log.ErrorErr(log.CatTrace, "failed to flush traces", err)
		}
	})
	return nil
}

func (a *app) initLogging(cmd *cobra.Command) error {
	if os.Getenv("JSONPARTIAL_DEBUG") != "" {
		a.debug = true
	}

	level := log.LevelWarn
	if a.debug {
		level = log.LevelDebug
	}

	if a.logFile == "" {
		log.InitWriter(cmd.ErrOrStderr(), level)
		return nil
	}

	cleanup, err := log.Init(a.logFile)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	log.SetMinLevel(level)
	a.cleanups = append(a.cleanups, cleanup)
	return nil
}

func (a *app) initConfig() error {
	defaults := config.Defaults()
	a.v.SetDefault("partials_dir", defaults.PartialsDir)
	a.v.SetDefault("manifest", defaults.Manifest)
	a.v.SetDefault("strict", defaults.Strict)
	a.v.SetDefault("transitive_invalidation", defaults.TransitiveInvalidation)
	a.v.SetDefault("indent", defaults.Indent)
	a.v.SetDefault("watch.debounce", defaults.Watch.Debounce)
	a.v.SetDefault("watch.context", defaults.Watch.Context)
	a.v.SetDefault("cache.ttl", defaults.Cache.TTL)
	a.v.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	a.v.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	a.v.SetDefault("tracing.file_path", defaults.Tracing.FilePath)
	a.v.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	a.v.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)

	a.v.SetEnvPrefix("JSONPARTIAL")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else if _, err := os.Stat(config.LocalConfigPath); err == nil {
		// Config lookup order:
		// 1. .jsonpartial/config.yaml (current directory)
		// 2. ~/.config/jsonpartial/config.yaml (user config)
		a.v.SetConfigFile(config.LocalConfigPath)
	} else {
		home, _ := os.UserHomeDir()
		a.v.AddConfigPath(filepath.Join(home, ".config", "jsonpartial"))
		a.v.SetConfigName("config")
		a.v.SetConfigType("yaml")
	}

	if err := a.v.ReadInConfig(); err != nil {
		// An explicit --config may not exist yet for init and config set.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("reading config: %w", err)
		}
		log.Debug(log.CatConfig, "no config file found, using defaults")
	} else {
		log.Debug(log.CatConfig, "loaded config", "path", a.v.ConfigFileUsed())
	}

	if err := a.v.Unmarshal(&a.cfg); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// close releases everything setup acquired, in reverse order.
func (a *app) close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
	a.cleanups = nil
}

// configPath is where config edits are written.
func (a *app) configPath() string {
	if a.cfgFile != "" {
		return a.cfgFile
	}
	if used := a.v.ConfigFileUsed(); used != "" {
		if _, err := os.Stat(used); err == nil {
			return used
		}
	}
	return config.LocalConfigPath
}

// newEngine builds an engine from the config.
func (a *app) newEngine() *partial.Engine {
	opts := []partial.RegistryOption{partial.Strict(a.cfg.Strict)}
	if a.cfg.TransitiveInvalidation {
		opts = append(opts, partial.TransitiveInvalidation())
	}
	return partial.New(opts...)
}

// loadPartials registers the configured partial directory and manifest.
func (a *app) loadPartials(ctx context.Context, engine *partial.Engine, opts ...loader.Option) (*loader.Loader, error) {
	opts = append([]loader.Option{
		loader.WithTracer(a.provider.Tracer()),
		loader.WithCacheTTL(a.cfg.Cache.TTL),
	}, opts...)
	l := loader.New(engine, opts...)
	if a.cfg.PartialsDir != "" {
		if _, err := l.Load(ctx, a.cfg.PartialsDir); err != nil {
			return nil, err
		}
	}
	if a.cfg.Manifest != "" {
		if _, err := l.LoadManifest(ctx, a.cfg.Manifest); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// watchPaths lists the partial sources to watch.
func (a *app) watchPaths() []string {
	var paths []string
	if a.cfg.PartialsDir != "" {
		paths = append(paths, a.cfg.PartialsDir)
	}
	if a.cfg.Manifest != "" {
		paths = append(paths, a.cfg.Manifest)
	}
	return paths
}

// Execute runs the root command.
func Execute() error {
	rootCmd, a := newRootCmd()
	defer a.close()
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags).
func SetVersion(v string) {
	version = v
}
