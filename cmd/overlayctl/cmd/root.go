// Package cmd implements the overlayctl commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	goOverlay "github.com/MrEthical07/goOverlay"
	"github.com/MrEthical07/goOverlay/jwt"
	"github.com/MrEthical07/goOverlay/kv"
)

// app is the state shared by every command of one invocation.
type app struct {
	configPath string
	flags      cliConfig
	jsonOut    bool

	cfg     cliConfig
	logger  *slog.Logger
	store   kv.Store
	tokens  *jwt.Manager
	engine  *goOverlay.Engine
	closers []func() error

	stdin io.Reader
}

// Execute runs overlayctl with os.Args.
func Execute() error {
	return newRootCmd(os.Stdin).Execute()
}

func newRootCmd(stdin io.Reader) *cobra.Command {
	a := &app{stdin: stdin}

	root := &cobra.Command{
		Use:   "overlayctl",
		Short: "Account suspension, deletion and activity overlay for a member directory",
		Long: `overlayctl keeps local account state that the member directory does not:
temporary suspensions, hidden (deleted) members, a 24h activity log and
login streaks.

  overlayctl login sam@example.com
  overlayctl suspend 42 --reason "policy violation"
  overlayctl members
  overlayctl serve --listen 127.0.0.1:8085`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd)
		},
	}

	defaults := defaultCLIConfig()
	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", defaultConfigPath(), "path to the YAML config file")
	pf.StringVar(&a.flags.Backend, "backend", defaults.Backend, "state backend: memory, file, sqlite, redis or redis-embedded")
	pf.StringVar(&a.flags.DataDir, "data-dir", defaults.DataDir, "directory for the file and sqlite backends")
	pf.StringVar(&a.flags.RedisAddr, "redis-addr", defaults.RedisAddr, "redis address for the redis backend")
	pf.StringVar(&a.flags.Directory.URL, "directory-url", "", "base URL of the remote member directory")
	pf.StringVar(&a.flags.Directory.Seed, "directory-seed", "", "YAML file seeding an in-process member directory")
	pf.StringVar(&a.flags.LogLevel, "log-level", defaults.LogLevel, "log level: debug, info, warn or error")
	pf.BoolVar(&a.jsonOut, "json", false, "print machine-readable JSON")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newSuspendCmd(a),
		newUnsuspendCmd(a),
		newStatusCmd(a),
		newDeleteCmd(a),
		newMembersCmd(a),
		newActivityCmd(a),
		newServeCmd(a),
		newWatchCmd(a),
	)
	for _, sub := range root.Commands() {
		a.closeAfter(sub)
	}
	return root
}

// closeAfter releases the engine and backend once sub returns, whether or
// not it failed.
func (a *app) closeAfter(sub *cobra.Command) {
	run := sub.RunE
	if run == nil {
		return
	}
	sub.RunE = func(cmd *cobra.Command, args []string) (err error) {
		defer func() {
			err = errors.Join(err, a.close())
		}()
		return run(cmd, args)
	}
}

func defaultConfigPath() string {
	return filepath.Join(defaultDataDir(), "config.yaml")
}

// open loads the config, applies explicitly set flags on top and builds the
// engine. Anything opened before a failure is released again.
func (a *app) open(cmd *cobra.Command) (err error) {
	defer func() {
		if err != nil {
			_ = a.close()
		}
	}()

	flags := cmd.Flags()
	cfg, err := loadCLIConfig(a.configPath, flags.Changed("config"))
	if err != nil {
		return err
	}
	if flags.Changed("backend") {
		cfg.Backend = a.flags.Backend
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = a.flags.DataDir
	}
	if flags.Changed("redis-addr") {
		cfg.RedisAddr = a.flags.RedisAddr
	}
	if flags.Changed("directory-url") {
		cfg.Directory.URL = a.flags.Directory.URL
		cfg.Directory.Seed = ""
	}
	if flags.Changed("directory-seed") {
		cfg.Directory.Seed = a.flags.Directory.Seed
		cfg.Directory.URL = ""
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.flags.LogLevel
	}
	if err := cfg.validate(); err != nil {
		return err
	}
	a.cfg = cfg

	level, _ := parseLevel(cfg.LogLevel)
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	store, closeStore, err := openStore(cfg, a.logger)
	if err != nil {
		return err
	}
	a.store = store
	a.closers = append(a.closers, closeStore)

	if a.tokens, err = newTokenManager(cfg.Tokens); err != nil {
		return err
	}
	dir, err := openDirectory(cfg, a.tokens, a.logger)
	if err != nil {
		return err
	}

	b := goOverlay.New().
		WithConfig(cfg.Config).
		WithStore(store).
		WithLogger(a.logger).
		WithAuditSink(goOverlay.NewSlogSink(a.logger))
	if dir != nil {
		b = b.WithDirectory(dir)
	}
	if a.engine, err = b.Build(); err != nil {
		return err
	}
	a.closers = append(a.closers, func() error {
		a.engine.Close()
		return nil
	})
	return nil
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newTokenManager(cfg tokenConfig) (*jwt.Manager, error) {
	if cfg.SigningKey == "" {
		return nil, nil
	}
	m, err := jwt.NewManager(jwt.Config{
		TTL:           cfg.TTL,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte(cfg.SigningKey),
		Issuer:        cfg.Issuer,
	})
	if err != nil {
		return nil, fmt.Errorf("tokens: %w", err)
	}
	return m, nil
}

func (a *app) context(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
