// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// placekeeper keeps a region of a shared pixel canvas matching a list
// of prioritized pixel orders, placing one correction per cooldown.
//
// Usage:
//
//	placekeeper [flags]
//
// Configuration comes from the YAML file named by --config or
// PLACEKEEPER_CONFIG; without either the built-in defaults are used.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/placekeeper/lib/canvas"
	"github.com/bureau-foundation/placekeeper/lib/clock"
	"github.com/bureau-foundation/placekeeper/lib/config"
	"github.com/bureau-foundation/placekeeper/lib/credential"
	"github.com/bureau-foundation/placekeeper/lib/notify"
	"github.com/bureau-foundation/placekeeper/lib/orders"
	"github.com/bureau-foundation/placekeeper/lib/placement"
	"github.com/bureau-foundation/placekeeper/lib/process"
	"github.com/bureau-foundation/placekeeper/lib/realtime"
	"github.com/bureau-foundation/placekeeper/lib/status"
	"github.com/bureau-foundation/placekeeper/lib/version"
	"github.com/bureau-foundation/placekeeper/reconcile"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

// options are the command-line overrides applied on top of the
// configuration file.
type options struct {
	configPath   string
	logLevel     string
	ordersURL    string
	tokenFile    string
	statusListen string
	quiet        bool
	showVersion  bool
}

func (o *options) register(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&o.configPath, "config", "c", "", "path to the YAML configuration (default: $PLACEKEEPER_CONFIG)")
	flagSet.StringVar(&o.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	flagSet.StringVar(&o.ordersURL, "orders", "", "orders document URL or path (overrides endpoints.orders)")
	flagSet.StringVar(&o.tokenFile, "token-file", "", "read the bearer token from this file instead of scraping the canvas page")
	flagSet.StringVar(&o.statusListen, "status-listen", "", "serve /status and /healthz on this address (overrides status.listen)")
	flagSet.BoolVarP(&o.quiet, "quiet", "q", false, "do not print notifications to stdout")
	flagSet.BoolVar(&o.showVersion, "version", false, "print version information and exit")
}

// apply overlays the flags that were set onto cfg.
func (o *options) apply(cfg *config.Config) {
	if o.ordersURL != "" {
		cfg.Endpoints.Orders = o.ordersURL
	}
	if o.tokenFile != "" {
		cfg.Credential.Source = config.SourceFile
		cfg.Credential.TokenFile = o.tokenFile
	}
	if o.statusListen != "" {
		cfg.Status.Listen = o.statusListen
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func run() error {
	var opts options
	flagSet := pflag.NewFlagSet("placekeeper", pflag.ContinueOnError)
	opts.register(flagSet)
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return &process.UsageError{Err: err}
	}
	if flagSet.NArg() > 0 {
		return process.Usage("unexpected argument: %s", flagSet.Arg(0))
	}

	if opts.showVersion {
		fmt.Printf("placekeeper %s\n", version.Full())
		return nil
	}

	level, err := parseLevel(opts.logLevel)
	if err != nil {
		return &process.UsageError{Err: err}
	}
	logger := newLogger(level)
	slog.SetDefault(logger)

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.Real()
	notifier := notify.Multi{notify.Log{Logger: logger}}
	if !opts.quiet {
		notifier = append(notifier, notify.NewConsole(os.Stdout, clk))
	}

	logger.Info("placekeeper starting",
		"version", version.Info(),
		"orders", cfg.Endpoints.Orders,
		"credential_source", cfg.Credential.Source,
		"canvas", fmt.Sprintf("%dx%d#%d", cfg.Canvas.Width, cfg.Canvas.Height, cfg.Canvas.Index),
	)

	holder := credential.NewHolder(credentialSource(cfg, logger), logger, notifier)
	defer holder.Close()
	if err := acquireCredential(ctx, holder, cfg, clk, logger); err != nil {
		return err
	}

	agent, err := newAgent(cfg, holder, notifier, clk, logger)
	if err != nil {
		return err
	}
	return agent.run(ctx)
}

// acquireCredential retries the initial acquisition until it succeeds
// or ctx ends.
func acquireCredential(ctx context.Context, holder *credential.Holder, cfg *config.Config, clk clock.Clock, logger *slog.Logger) error {
	for {
		err := holder.Acquire(ctx)
		if err == nil {
			return nil
		}
		logger.Warn("couldn't obtain access token", "error", err, "retry_in", cfg.Timing.AcquireRetry)
		select {
		case <-ctx.Done():
			return fmt.Errorf("obtaining access token: %w", err)
		case <-clk.After(cfg.Timing.AcquireRetry):
		}
	}
}

func credentialSource(cfg *config.Config, logger *slog.Logger) credential.Source {
	switch cfg.Credential.Source {
	case config.SourceFile:
		return &credential.FileSource{Path: cfg.Credential.TokenFile}
	case config.SourceBrowser:
		return &credential.BrowserSource{
			URL:         cfg.Endpoints.Page,
			Marker:      cfg.Credential.Marker,
			ControlURL:  cfg.Credential.BrowserControlURL,
			UserDataDir: cfg.Credential.BrowserUserDataDir,
			Stealth:     cfg.Credential.Stealth,
			Timeout:     cfg.Timing.RequestTimeout,
			Logger:      logger,
		}
	default:
		return &credential.PageSource{
			URL:        cfg.Endpoints.Page,
			Marker:     cfg.Credential.Marker,
			CookieFile: cfg.Credential.CookieFile,
			UserAgent:  cfg.Client.UserAgent,
			Client:     &http.Client{Timeout: cfg.Timing.RequestTimeout},
		}
	}
}

// agent is the wired set of long-running components.
type agent struct {
	store        *orders.Store
	engine       *reconcile.Engine
	statusListen string
	logger       *slog.Logger
}

func newAgent(cfg *config.Config, holder *credential.Holder, notifier notify.Notifier, clk clock.Clock, logger *slog.Logger) (*agent, error) {
	httpClient := &http.Client{Timeout: cfg.Timing.RequestTimeout}

	frames := realtime.New(realtime.Config{
		URL:       cfg.Endpoints.Realtime,
		Origin:    cfg.Client.Origin,
		UserAgent: cfg.Client.UserAgent,
		Channel: realtime.Channel{
			TeamOwner: cfg.Channel.TeamOwner,
			Category:  cfg.Channel.Category,
			Tag:       cfg.Channel.Tag,
		},
		HandshakeTimeout: cfg.Timing.HandshakeTimeout,
		Clock:            clk,
		Logger:           logger.With("component", "realtime"),
	}, holder)

	fetcher := canvas.NewFetcher(frames, &canvas.Decoder{
		Client:    httpClient,
		UserAgent: cfg.Client.UserAgent,
		Width:     cfg.Canvas.Width,
		Height:    cfg.Canvas.Height,
		Logger:    logger.With("component", "canvas"),
	})

	ordersClient := orders.NewHTTPClient()
	ordersClient.Timeout = cfg.Timing.RequestTimeout
	store := orders.NewStore(orders.Config{
		Location:  cfg.Endpoints.Orders,
		Interval:  cfg.Timing.OrdersRefresh,
		Client:    ordersClient,
		UserAgent: version.UserAgent(),
		Clock:     clk,
		Notifier:  notifier,
		Logger:    logger.With("component", "orders"),
	})

	submitter := placement.New(placement.Config{
		URL:         cfg.Endpoints.Mutation,
		CanvasIndex: cfg.Canvas.Index,
		Origin:      cfg.Client.Origin,
		Referer:     cfg.Client.Referer,
		ClientName:  cfg.Client.ClientName,
		UserAgent:   cfg.Client.UserAgent,
		HTTPClient:  httpClient,
	}, holder)

	var reauthenticator reconcile.Reauthenticator
	if cfg.Credential.ReacquireOnReject {
		reauthenticator = holder
	}

	engine, err := reconcile.New(reconcile.Config{
		Snapshots:       fetcher,
		Orders:          store,
		Submitter:       submitter,
		Reauthenticator: reauthenticator,
		Notifier:        notifier,
		Clock:           clk,
		Logger:          logger.With("component", "engine"),
		AcquireRetry:    cfg.Timing.AcquireRetry,
		ParseRetry:      cfg.Timing.ParseRetry,
		IdleRecheck:     cfg.Timing.IdleRecheck,
		CooldownMargin:  cfg.Timing.CooldownMargin,
	})
	if err != nil {
		return nil, err
	}

	return &agent{store: store, engine: engine, statusListen: cfg.Status.Listen, logger: logger}, nil
}

// run loads the orders once, then runs the refresher, the optional
// status endpoint and the engine until ctx ends.
func (a *agent) run(ctx context.Context) error {
	var listener net.Listener
	if a.statusListen != "" {
		var err error
		listener, err = net.Listen("tcp", a.statusListen)
		if err != nil {
			return fmt.Errorf("status endpoint: %w", err)
		}
	}

	// A failed initial load leaves the empty set; the engine idles until
	// the next refresh succeeds.
	a.store.Refresh(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.store.Run(ctx)
	}()

	if listener != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handler := status.NewHandler(a.engine, a.store)
			if err := status.Serve(ctx, listener, handler, a.logger.With("component", "status")); err != nil {
				a.logger.Error("status endpoint stopped", "error", err)
			}
		}()
	}

	a.engine.Run(ctx)
	wg.Wait()
	a.logger.Info("placekeeper stopped")
	return nil
}
