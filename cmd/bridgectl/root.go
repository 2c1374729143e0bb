package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sprintbridge/backend/internal/executor"
	"github.com/sprintbridge/backend/internal/infrastructure/config"
	"github.com/sprintbridge/backend/internal/infrastructure/logging"
	"github.com/sprintbridge/backend/internal/infrastructure/server"
	"github.com/sprintbridge/backend/internal/page"
	"github.com/sprintbridge/backend/internal/relay"
	"github.com/sprintbridge/backend/internal/runtime"
	"github.com/sprintbridge/backend/internal/storage"
	"github.com/sprintbridge/backend/internal/window"
)

type globalFlags struct {
	configPath   string
	runtimeURL   string
	address      string
	local        bool
	storagePath  string
	docstoreBase string
	output       string
	timeout      time.Duration
	verbose      bool
}

// globalState is shared by every command.
type globalState struct {
	ctx    context.Context
	stdOut io.Writer
	stdErr io.Writer
	flags  globalFlags
	config *config.Config
	logger *logging.Logger
}

func newGlobalState(ctx context.Context, stdOut, stdErr io.Writer) *globalState {
	return &globalState{
		ctx:    ctx,
		stdOut: stdOut,
		stdErr: stdErr,
		logger: logging.NewNop(),
	}
}

func newRootCommand(gs *globalState) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "bridgectl",
		Short:         "Talk to the SprintBridge executor",
		Long:          "Call the issue tracker, the document store and arbitrary URLs through the SprintBridge executor.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return gs.setup()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&gs.flags.configPath, "config", "c", os.Getenv("BRIDGE_CONFIG"), "YAML or TOML config file")
	flags.StringVar(&gs.flags.runtimeURL, "runtime", "", "executor runtime WebSocket URL (default from config)")
	flags.StringVarP(&gs.flags.address, "address", "a", "", "executor HTTP address (default from config)")
	flags.BoolVar(&gs.flags.local, "local", false, "run the executor in process instead of connecting to one")
	flags.StringVar(&gs.flags.storagePath, "storage", "", "state database for --local (default from config)")
	flags.StringVar(&gs.flags.docstoreBase, "docstore-base", "", "document store origin for --local (default from config)")
	flags.StringVarP(&gs.flags.output, "output", "o", "yaml", "output format: yaml or json")
	flags.DurationVar(&gs.flags.timeout, "timeout", time.Minute, "per-command timeout")
	flags.BoolVarP(&gs.flags.verbose, "verbose", "v", false, "log to stderr")

	rootCmd.AddCommand(
		getCmdPing(gs),
		getCmdTracker(gs),
		getCmdDocstore(gs),
		getCmdProxy(gs),
		getCmdScript(gs),
		getCmdStatus(gs),
		getCmdCookies(gs),
		getCmdVersion(gs),
	)
	return rootCmd
}

// setup resolves configuration and applies flag overrides.
func (gs *globalState) setup() error {
	cfg, err := config.Load(gs.flags.configPath)
	if err != nil {
		return err
	}
	if gs.flags.runtimeURL != "" {
		cfg.Relay.RuntimeURL = gs.flags.runtimeURL
	}
	if gs.flags.storagePath != "" {
		cfg.Storage.Path = gs.flags.storagePath
	}
	if gs.flags.docstoreBase != "" {
		cfg.Docstore.BaseURL = gs.flags.docstoreBase
	}
	gs.config = cfg

	if gs.flags.verbose {
		gs.logger = logging.NewDevelopment()
	}
	return nil
}

// httpAddress returns the executor HTTP base URL.
func (gs *globalState) httpAddress() string {
	if gs.flags.address != "" {
		return gs.flags.address
	}
	return "http://" + gs.config.Server.Host + ":" + gs.config.Server.Port
}

// commandContext bounds one command by --timeout.
func (gs *globalState) commandContext() (context.Context, context.CancelFunc) {
	if gs.flags.timeout <= 0 {
		return context.WithCancel(gs.ctx)
	}
	return context.WithTimeout(gs.ctx, gs.flags.timeout)
}

// session is one page attached to a relay.
type session struct {
	api     *page.API
	win     *window.Window
	relay   *relay.Relay
	closers []func() error
}

// Close tears the session down in reverse order of construction.
func (s *session) Close() error {
	s.api.Close()
	s.relay.Stop()
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	if err := s.win.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// connect builds window, relay and page API and waits for the relay.
func (gs *globalState) connect(ctx context.Context) (*session, error) {
	var (
		sender  runtime.Sender
		closers []func() error
	)

	if gs.flags.local {
		if err := os.MkdirAll(filepath.Dir(gs.config.Storage.Path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
		store, err := storage.Open(gs.config.Storage.Path)
		if err != nil {
			return nil, err
		}
		closers = append(closers, store.Close)
		exec := executor.New(store, server.ExecutorConfig(gs.config), executor.WithLogger(gs.logger))
		sender = runtime.NewLocal(exec, runtime.WithLocalLogger(gs.logger))
	} else {
		client, err := runtime.Dial(ctx, gs.config.Relay.RuntimeURL, runtime.WithDialLogger(gs.logger))
		if err != nil {
			return nil, err
		}
		closers = append(closers, client.Close)
		sender = client
	}

	win := window.New(window.WithLogger(gs.logger))
	rl := relay.New(win, sender, relay.Config{
		ReadyDelay:     gs.config.Relay.ReadyDelay.Duration,
		ForwardTimeout: gs.config.Relay.ForwardTimeout.Duration,
	}, relay.WithLogger(gs.logger))

	fail := func(err error) (*session, error) {
		rl.Stop()
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
		_ = win.Close()
		return nil, err
	}

	if err := rl.Start(); err != nil {
		return fail(err)
	}
	api, err := page.Install(win, page.Options{
		PingTimeout:  gs.config.Page.PingTimeout.Duration,
		DocstoreSite: gs.config.Docstore.Site,
		Logger:       gs.logger,
	})
	if err != nil {
		return fail(err)
	}
	if err := api.WaitReady(ctx); err != nil {
		api.Close()
		return fail(fmt.Errorf("relay not ready: %w", err))
	}

	gs.logger.Debug("Session ready",
		zap.Bool("local", gs.flags.local),
		zap.String("window", win.ID()),
	)
	return &session{api: api, win: win, relay: rl, closers: closers}, nil
}

// withSession runs fn against a fresh session bounded by --timeout.
func (gs *globalState) withSession(fn func(ctx context.Context, api *page.API) error) error {
	ctx, cancel := gs.commandContext()
	defer cancel()

	s, err := gs.connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s.api)
}

func getCmdVersion(gs *globalState) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the bridge API version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(gs.stdOut, "bridgectl "+config.Version)
			return err
		},
	}
}
